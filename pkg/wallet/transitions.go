// Copyright 2025 Hyli
//
// The deterministic transition function over account records. Both the
// host executor and the guest executor run exactly this code; the two
// halves may never diverge.

package wallet

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"

	"github.com/hyli/wallet-node/pkg/model"
)

var (
	ErrAccountMismatch    = errors.New("Account does not match registered identity")
	ErrAlreadyRegistered  = errors.New("Identity already registered")
	ErrInvalidNonce       = errors.New("Invalid nonce")
	ErrSessionKeyExists   = errors.New("Session key already exists")
	ErrSessionKeyNotFound = errors.New("Session key not found")
	ErrSessionKeyExpired  = errors.New("Session key expired")
	ErrSessionKeyLane     = errors.New("Session key not valid for this lane")
	ErrMissingTxContext   = errors.New("tx_ctx is missing")
	ErrPartialCalldata    = errors.New("All blobs should be in the Calldata for whitelist validation")
)

// ApplyAction runs a non-administrative action against the record and
// returns the program output. The record is mutated only when the whole
// action succeeds; on error it is left exactly as it was, so failing
// transitions are no-ops on the tree.
func ApplyAction(record *AccountInfo, action *WalletAction, calldata *model.Calldata, invitePubKey [33]byte) (string, error) {
	work := record.Clone()
	msg, err := applyAction(&work, action, calldata, invitePubKey)
	if err != nil {
		return "", err
	}
	*record = work
	return msg, nil
}

func applyAction(record *AccountInfo, action *WalletAction, calldata *model.Calldata, invitePubKey [33]byte) (string, error) {
	switch action.Enum {
	case ActionRegisterIdentity:
		act := &action.RegisterIdentity
		if err := CheckInviteCode(act.Account, act.InviteCode, calldata, invitePubKey); err != nil {
			return "", err
		}
		return record.HandleRegistration(act.Account, act.Nonce, act.AuthMethod, calldata)
	case ActionUseSessionKey:
		act := &action.UseSessionKey
		return record.HandleSessionKeyUsage(act.Account, act.Nonce, calldata)
	default:
		return record.HandleAuthenticatedAction(action, calldata)
	}
}

// Clone copies the record, including its session key list.
func (a *AccountInfo) Clone() AccountInfo {
	out := *a
	if a.SessionKeys != nil {
		out.SessionKeys = make([]SessionKey, len(a.SessionKeys))
		copy(out.SessionKeys, a.SessionKeys)
	}
	return out
}

// HandleRegistration verifies the new auth method's witness and then
// installs it on the record.
func (a *AccountInfo) HandleRegistration(account string, nonce uint64, authMethod AuthMethod, calldata *model.Calldata) (string, error) {
	if _, err := authMethod.Verify(calldata, account, nonce); err != nil {
		return "", err
	}
	return a.registerIdentity(account, nonce, authMethod)
}

// HandleSessionKeyUsage authorizes a transaction with a session key: the
// witness is a secp256k1 signature over SHA256 of the decimal nonce.
func (a *AccountInfo) HandleSessionKeyUsage(account string, nonce uint64, calldata *model.Calldata) (string, error) {
	if a.Identity != account {
		return "", ErrAccountMismatch
	}
	digest := sha256.Sum256([]byte(strconv.FormatUint(nonce, 10)))
	blob, err := model.CheckSecp256k1(calldata, digest)
	if err != nil {
		return "", err
	}
	return a.useSessionKey(hex.EncodeToString(blob.PublicKey[:]), calldata, nonce)
}

// HandleAuthenticatedAction runs the actions that require the record's
// own auth method: VerifyIdentity, AddSessionKey, RemoveSessionKey.
func (a *AccountInfo) HandleAuthenticatedAction(action *WalletAction, calldata *model.Calldata) (string, error) {
	switch action.Enum {
	case ActionVerifyIdentity:
		act := &action.VerifyIdentity
		if _, err := a.AuthMethod.Verify(calldata, act.Account, act.Nonce); err != nil {
			return "", err
		}
		if a.Identity != act.Account {
			return "", ErrAccountMismatch
		}
		return a.verifyIdentity(act.Nonce, calldata)
	case ActionAddSessionKey:
		act := &action.AddSessionKey
		if _, err := a.AuthMethod.Verify(calldata, act.Account, act.Nonce); err != nil {
			return "", err
		}
		if a.Identity != act.Account {
			return "", ErrAccountMismatch
		}
		if err := a.verifyAndUpdateNonce(act.Nonce, calldata); err != nil {
			return "", err
		}
		return a.addSessionKey(act.Key, act.ExpirationDate, act.Whitelist, act.LaneId)
	case ActionRemoveSessionKey:
		act := &action.RemoveSessionKey
		if _, err := a.AuthMethod.Verify(calldata, act.Account, act.Nonce); err != nil {
			return "", err
		}
		if err := a.verifyAndUpdateNonce(act.Nonce, calldata); err != nil {
			return "", err
		}
		return a.removeSessionKey(act.Key)
	default:
		return "", fmt.Errorf("unexpected action %s", action.Kind())
	}
}

func (a *AccountInfo) registerIdentity(account string, nonce uint64, authMethod AuthMethod) (string, error) {
	if a.Identity != account {
		return "", ErrAlreadyRegistered
	}
	if !a.AuthMethod.IsUninitialized() {
		return "", ErrAlreadyRegistered
	}
	a.AuthMethod = authMethod
	a.Nonce = nonce
	return fmt.Sprintf("Successfully registered identity for account: %s", account), nil
}

func (a *AccountInfo) verifyIdentity(nonce uint64, calldata *model.Calldata) (string, error) {
	if err := a.verifyAndUpdateNonce(nonce, calldata); err != nil {
		return "", err
	}
	return "Identity verified", nil
}

// verifyAndUpdateNonce enforces the nonce discipline: strictly greater
// than the stored nonce, or equal when a prior blob in the same
// transaction already proved this identity. The stored nonce becomes
// max(stored, nonce).
func (a *AccountInfo) verifyAndUpdateNonce(nonce uint64, calldata *model.Calldata) error {
	if nonce > a.Nonce {
		a.Nonce = nonce
		return nil
	}
	if nonce == a.Nonce && priorBlobProvesIdentity(calldata, a.Identity) {
		return nil
	}
	return ErrInvalidNonce
}

func (a *AccountInfo) addSessionKey(key string, expiration uint64, whitelist *[]model.ContractName, laneId *model.LaneId) (string, error) {
	for _, sk := range a.SessionKeys {
		if sk.PublicKey == key {
			return "", ErrSessionKeyExists
		}
	}
	a.SessionKeys = append(a.SessionKeys, SessionKey{
		PublicKey:      key,
		ExpirationDate: expiration,
		Whitelist:      whitelist,
		LaneId:         laneId,
	})
	return "Session key added", nil
}

func (a *AccountInfo) removeSessionKey(key string) (string, error) {
	for i, sk := range a.SessionKeys {
		if sk.PublicKey == key {
			a.SessionKeys = append(a.SessionKeys[:i], a.SessionKeys[i+1:]...)
			return "Session key removed", nil
		}
	}
	return "", ErrSessionKeyNotFound
}

func (a *AccountInfo) useSessionKey(publicKey string, calldata *model.Calldata, nonce uint64) (string, error) {
	if calldata.TxCtx == nil {
		return "", ErrMissingTxContext
	}
	// Whitelist validation needs the whole transaction in view.
	if uint32(len(calldata.Blobs)) != calldata.TxBlobCount {
		return "", ErrPartialCalldata
	}

	for i := range a.SessionKeys {
		sk := &a.SessionKeys[i]
		if sk.PublicKey != publicKey {
			continue
		}
		if sk.Whitelist != nil {
			for j := range calldata.Blobs {
				blob := &calldata.Blobs[j]
				if blob.Index == calldata.Index {
					continue
				}
				if blob.Blob.ContractName == model.ContractSecp256k1 {
					continue
				}
				if !containsContract(*sk.Whitelist, blob.Blob.ContractName) {
					return "", fmt.Errorf("Blob: %s not whitelisted", blob.Blob.ContractName)
				}
			}
		}
		if sk.LaneId != nil && *sk.LaneId != calldata.TxCtx.LaneId {
			return "", ErrSessionKeyLane
		}
		if sk.ExpirationDate <= calldata.TxCtx.Timestamp {
			return "", ErrSessionKeyExpired
		}
		if err := a.verifyAndUpdateNonce(nonce, calldata); err != nil {
			return "", err
		}
		return "Session key is valid", nil
	}
	return "", ErrSessionKeyNotFound
}

func containsContract(list []model.ContractName, name model.ContractName) bool {
	for _, n := range list {
		if n == name {
			return true
		}
	}
	return false
}
