// Copyright 2025 Hyli
//
// Typed wallet actions and the blob codec around them.

package wallet

import (
	"fmt"

	"github.com/near/borsh-go"

	"github.com/hyli/wallet-node/pkg/model"
)

// Action variant tags, in wire order. UpdateInviteCodePublicKey stays
// last for binary compatibility.
const (
	ActionRegisterIdentity = iota
	ActionVerifyIdentity
	ActionAddSessionKey
	ActionRemoveSessionKey
	ActionUseSessionKey
	ActionUpdateInviteCodePublicKey
)

// JsonWebToken is the OIDC token payload carried alongside JWT-backed
// actions. The state machine treats it as data-availability payload; the
// consensus check runs against the check_jwt side blob.
type JsonWebToken struct {
	Token            string     `json:"token"`
	ClientID         string     `json:"client_id"`
	Algorithm        string     `json:"algorithm"`
	ProviderRsaInfos *[2]string `json:"provider_rsa_infos,omitempty"`
}

// RegisterIdentity creates an account. The salt is not part of the
// authenticated state; it is recorded host-side so clients can rebuild
// password hashes.
type RegisterIdentity struct {
	Account    string
	Nonce      uint64
	Salt       string
	AuthMethod AuthMethod
	InviteCode string
	Jwt        *JsonWebToken
}

// VerifyIdentity proves control of an account and bumps its nonce.
type VerifyIdentity struct {
	Account string
	Nonce   uint64
	Jwt     *JsonWebToken
}

// AddSessionKey authorizes a new session key.
type AddSessionKey struct {
	Account        string
	Key            string
	ExpirationDate uint64
	Whitelist      *[]model.ContractName
	LaneId         *model.LaneId
	Nonce          uint64
	Jwt            *JsonWebToken
}

// RemoveSessionKey revokes a session key.
type RemoveSessionKey struct {
	Account string
	Key     string
	Nonce   uint64
	Jwt     *JsonWebToken
}

// UseSessionKey authorizes a transaction with a previously added session
// key instead of the primary auth method.
type UseSessionKey struct {
	Account string
	Nonce   uint64
}

// UpdateInviteCodePublicKey rotates the invite-code public key. It is
// administrative, targets no account, and is accepted exactly once.
type UpdateInviteCodePublicKey struct {
	InviteCodePublicKey [33]byte
	SmtRoot             [32]byte
}

// WalletAction is the tagged union decoded from a wallet blob.
type WalletAction struct {
	Enum                      borsh.Enum `borsh_enum:"true"`
	RegisterIdentity          RegisterIdentity
	VerifyIdentity            VerifyIdentity
	AddSessionKey             AddSessionKey
	RemoveSessionKey          RemoveSessionKey
	UseSessionKey             UseSessionKey
	UpdateInviteCodePublicKey UpdateInviteCodePublicKey
}

// Account returns the account an action targets. Administrative actions
// target none.
func (a *WalletAction) Account() (string, bool) {
	switch a.Enum {
	case ActionRegisterIdentity:
		return a.RegisterIdentity.Account, true
	case ActionVerifyIdentity:
		return a.VerifyIdentity.Account, true
	case ActionAddSessionKey:
		return a.AddSessionKey.Account, true
	case ActionRemoveSessionKey:
		return a.RemoveSessionKey.Account, true
	case ActionUseSessionKey:
		return a.UseSessionKey.Account, true
	default:
		return "", false
	}
}

// Kind names the action for logs and the history indexer.
func (a *WalletAction) Kind() string {
	switch a.Enum {
	case ActionRegisterIdentity:
		return "register_identity"
	case ActionVerifyIdentity:
		return "verify_identity"
	case ActionAddSessionKey:
		return "add_session_key"
	case ActionRemoveSessionKey:
		return "remove_session_key"
	case ActionUseSessionKey:
		return "use_session_key"
	case ActionUpdateInviteCodePublicKey:
		return "update_invite_code_public_key"
	default:
		return "unknown"
	}
}

// AsBlob encodes the action into a transaction blob.
func (a *WalletAction) AsBlob(contractName model.ContractName) (model.Blob, error) {
	data, err := borsh.Serialize(*a)
	if err != nil {
		return model.Blob{}, fmt.Errorf("failed to encode wallet action: %w", err)
	}
	return model.Blob{ContractName: contractName, Data: data}, nil
}

// ParseAction decodes a wallet action from blob bytes.
func ParseAction(data []byte) (*WalletAction, error) {
	var a WalletAction
	if err := borsh.Deserialize(&a, data); err != nil {
		return nil, fmt.Errorf("failed to decode wallet action: %w", err)
	}
	return &a, nil
}

// ParseCalldata decodes the wallet action the calldata's own blob
// carries.
func ParseCalldata(calldata *model.Calldata) (*WalletAction, error) {
	blob, err := calldata.CurrentBlob()
	if err != nil {
		return nil, err
	}
	return ParseAction(blob.Data)
}

// priorBlobProvesIdentity scans blobs earlier in the same transaction
// for a RegisterIdentity or VerifyIdentity naming the account. A hit
// lets a later blob reuse the nonce it proved.
func priorBlobProvesIdentity(calldata *model.Calldata, account string) bool {
	current, err := calldata.CurrentBlob()
	if err != nil {
		return false
	}
	for i := range calldata.Blobs {
		if calldata.Blobs[i].Index >= calldata.Index {
			continue
		}
		if calldata.Blobs[i].Blob.ContractName != current.ContractName {
			continue
		}
		action, err := ParseAction(calldata.Blobs[i].Blob.Data)
		if err != nil {
			continue
		}
		switch action.Enum {
		case ActionRegisterIdentity:
			if action.RegisterIdentity.Account == account {
				return true
			}
		case ActionVerifyIdentity:
			if action.VerifyIdentity.Account == account {
				return true
			}
		}
	}
	return false
}
