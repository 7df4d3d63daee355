// Copyright 2025 Hyli
//
// Host Executor
//
// Owns the full sparse merkle tree of account records. Handle applies
// one wallet blob to the state; BuildWitness/MergeWitnesses package the
// pre-state evidence the guest executor re-executes. Handle is
// single-threaded per wallet instance; API readers take the read lock.

package host

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"

	"github.com/hyli/wallet-node/pkg/model"
	"github.com/hyli/wallet-node/pkg/smt"
	"github.com/hyli/wallet-node/pkg/wallet"
)

var (
	ErrUnknownAccount    = errors.New("account does not exist")
	ErrUnknownSalt       = errors.New("salt not found")
	ErrInviteKeyAlreadySet = errors.New("Invite code public key already set")
)

// Constructor is the optional bootstrap payload. When present it
// installs the privileged "hyli" account and a non-default invite key —
// the only way a non-default key may exist without an explicit
// UpdateInviteCodePublicKey step.
type Constructor struct {
	HyliPasswordHash    string   `json:"hyli_password_hash"`
	InviteCodePublicKey [33]byte `json:"invite_code_public_key"`
}

// Wallet is the host-side wallet state.
type Wallet struct {
	mu                  sync.RWMutex
	inviteCodePublicKey [33]byte
	tree                *smt.Tree
	accounts            map[string]wallet.AccountInfo
	salts               map[string]string
	logger              *log.Logger
}

// ConstructState builds a wallet from an optional bootstrap payload.
func ConstructState(metadata *Constructor) (*Wallet, error) {
	w := &Wallet{
		inviteCodePublicKey: wallet.DefaultInviteCodePublicKey,
		tree:                smt.NewTree(),
		accounts:            make(map[string]wallet.AccountInfo),
		salts:               make(map[string]string),
		logger:              log.New(log.Writer(), "[Host] ", log.LstdFlags),
	}
	if metadata != nil {
		w.inviteCodePublicKey = metadata.InviteCodePublicKey
		hyli := wallet.AccountInfo{
			Identity:   "hyli",
			AuthMethod: wallet.NewPasswordAuth(metadata.HyliPasswordHash),
		}
		if err := w.writeRecord(hyli); err != nil {
			return nil, err
		}
		w.salts["hyli"] = "hyli-random-salt"
	}
	return w, nil
}

// Handle validates and applies the wallet blob the calldata points at.
// Transition failures come back as success=false outputs with the
// commitment pinned to the pre-state; only internal errors are returned
// as errors.
func (w *Wallet) Handle(calldata *model.Calldata) (*model.HyleOutput, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	initial := wallet.StateCommitment(w.tree.Root(), w.inviteCodePublicKey)

	blob, err := calldata.CurrentBlob()
	if err != nil {
		return nil, err
	}
	action, err := wallet.ParseAction(blob.Data)
	if err != nil {
		return model.AsHyleOutput(initial, initial, calldata, "", err), nil
	}

	if action.Enum == wallet.ActionUpdateInviteCodePublicKey {
		if w.inviteCodePublicKey != wallet.DefaultInviteCodePublicKey {
			return model.AsHyleOutput(initial, initial, calldata, "", ErrInviteKeyAlreadySet), nil
		}
		w.inviteCodePublicKey = action.UpdateInviteCodePublicKey.InviteCodePublicKey
		next := wallet.StateCommitment(w.tree.Root(), w.inviteCodePublicKey)
		return model.AsHyleOutput(initial, next, calldata, "Updated public key", nil), nil
	}

	account, _ := action.Account()
	record, ok := w.accounts[account]
	if !ok {
		record = wallet.AccountInfo{Identity: account}
	} else {
		record = record.Clone()
	}
	record.Identity = account

	msg, applyErr := wallet.ApplyAction(&record, action, calldata, w.inviteCodePublicKey)
	if applyErr == nil {
		if err := w.writeRecord(record); err != nil {
			return nil, err
		}
	}
	if action.Enum == wallet.ActionRegisterIdentity {
		// Salts are data-availability payload, not consensus state;
		// they are recorded for the client even when the transition
		// fails.
		w.salts[account] = action.RegisterIdentity.Salt
	}

	next := wallet.StateCommitment(w.tree.Root(), w.inviteCodePublicKey)
	return model.AsHyleOutput(initial, next, calldata, msg, applyErr), nil
}

// writeRecord stores a record in the account map and its hash in the
// tree. Caller must hold the write lock.
func (w *Wallet) writeRecord(record wallet.AccountInfo) error {
	leafHash, err := record.Hash()
	if err != nil {
		return fmt.Errorf("failed to hash account %s: %w", record.Identity, err)
	}
	w.accounts[record.Identity] = record
	w.tree.Update(wallet.AccountKey(record.Identity), leafHash)
	return nil
}

// Get returns the live record; uninitialized slots read as absent.
func (w *Wallet) Get(account string) (wallet.AccountInfo, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	record, ok := w.accounts[account]
	if !ok || record.AuthMethod.IsUninitialized() {
		return wallet.AccountInfo{}, fmt.Errorf("%w: %s", ErrUnknownAccount, account)
	}
	return record.Clone(), nil
}

// GetSalt returns the password salt recorded for an account.
func (w *Wallet) GetSalt(account string) (string, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	salt, ok := w.salts[account]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownSalt, account)
	}
	return salt, nil
}

// StateCommitment returns the current commitment.
func (w *Wallet) StateCommitment() []byte {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return wallet.StateCommitment(w.tree.Root(), w.inviteCodePublicKey)
}

// SMTRoot returns the current tree root.
func (w *Wallet) SMTRoot() smt.H256 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.tree.Root()
}

// InviteCodePublicKey returns the live invite-code public key.
func (w *Wallet) InviteCodePublicKey() [33]byte {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.inviteCodePublicKey
}

// Accounts returns a stable snapshot of the live records, sorted by
// identity.
func (w *Wallet) Accounts() []wallet.AccountInfo {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]wallet.AccountInfo, 0, len(w.accounts))
	for _, record := range w.accounts {
		out = append(out, record.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Identity < out[j].Identity })
	return out
}
