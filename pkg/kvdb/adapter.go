// Copyright 2025 Hyli
//
// KV Adapter for CometBFT Database Integration
// Wraps CometBFT's dbm.DB interface to back the wallet snapshot store.

package kvdb

import (
	dbm "github.com/cometbft/cometbft-db"
)

// KVAdapter wraps a CometBFT dbm.DB and exposes the small KV surface the
// host's snapshot store needs. This keeps the host decoupled from the
// storage backend (GoLevelDB in production, MemDB in tests).
type KVAdapter struct {
	db dbm.DB
}

// NewKVAdapter creates a new KVAdapter for the given underlying DB.
func NewKVAdapter(db dbm.DB) *KVAdapter {
	return &KVAdapter{db: db}
}

// Get implements host.KV.Get
func (a *KVAdapter) Get(key []byte) ([]byte, error) {
	if a.db == nil {
		return nil, nil
	}

	// CometBFT DB returns (val, error)
	if v, err := a.db.Get(key); err != nil {
		return nil, err
	} else {
		// v may be nil if key not found – that's fine, the snapshot
		// store treats nil as "not present".
		return v, nil
	}
}

// Set implements host.KV.Set
func (a *KVAdapter) Set(key, value []byte) error {
	if a.db == nil {
		return nil
	}

	// Use SetSync for durable writes at snapshot time
	if err := a.db.SetSync(key, value); err != nil {
		return err
	}
	return nil
}

// Close releases the underlying database.
func (a *KVAdapter) Close() error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}
