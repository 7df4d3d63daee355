// Copyright 2025 Hyli
//
// Snapshot persistence: the wallet is serialized as a length-prefixed
// sequence of account records with the salts alongside, and rebuilt
// deterministically by re-inserting each record under its key.

package host

import (
	"fmt"
	"sort"

	"github.com/near/borsh-go"

	"github.com/hyli/wallet-node/pkg/wallet"
)

// KV is the storage surface the snapshot store needs; kvdb.KVAdapter
// implements it over CometBFT's database backends.
type KV interface {
	Get(key []byte) ([]byte, error)
	Set(key, value []byte) error
}

var snapshotKey = []byte("wallet/state")

type saltEntry struct {
	Identity string
	Salt     string
}

type snapshot struct {
	InviteCodePublicKey [33]byte
	Accounts            []wallet.AccountInfo
	Salts               []saltEntry
}

// Save writes the wallet snapshot to the store.
func (w *Wallet) Save(kv KV) error {
	w.mu.RLock()
	snap := snapshot{
		InviteCodePublicKey: w.inviteCodePublicKey,
		Accounts:            make([]wallet.AccountInfo, 0, len(w.accounts)),
		Salts:               make([]saltEntry, 0, len(w.salts)),
	}
	for _, record := range w.accounts {
		snap.Accounts = append(snap.Accounts, record.Clone())
	}
	for identity, salt := range w.salts {
		snap.Salts = append(snap.Salts, saltEntry{Identity: identity, Salt: salt})
	}
	w.mu.RUnlock()

	sort.Slice(snap.Accounts, func(i, j int) bool { return snap.Accounts[i].Identity < snap.Accounts[j].Identity })
	sort.Slice(snap.Salts, func(i, j int) bool { return snap.Salts[i].Identity < snap.Salts[j].Identity })

	data, err := borsh.Serialize(snap)
	if err != nil {
		return fmt.Errorf("failed to serialize wallet snapshot: %w", err)
	}
	return kv.Set(snapshotKey, data)
}

// Load restores a wallet from the store. It reports false when no
// snapshot exists.
func (w *Wallet) Load(kv KV) (bool, error) {
	data, err := kv.Get(snapshotKey)
	if err != nil {
		return false, fmt.Errorf("failed to read wallet snapshot: %w", err)
	}
	if data == nil {
		return false, nil
	}

	var snap snapshot
	if err := borsh.Deserialize(&snap, data); err != nil {
		return false, fmt.Errorf("failed to decode wallet snapshot: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.inviteCodePublicKey = snap.InviteCodePublicKey
	for _, record := range snap.Accounts {
		if err := w.writeRecord(record); err != nil {
			return false, err
		}
	}
	for _, entry := range snap.Salts {
		w.salts[entry.Identity] = entry.Salt
	}
	w.logger.Printf("Restored wallet snapshot: %d accounts", len(snap.Accounts))
	return true, nil
}
