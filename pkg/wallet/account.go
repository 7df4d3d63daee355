// Copyright 2025 Hyli
//
// Account records and authentication policy.
//
// An account is an SMT leaf keyed by SHA256(identity). The auth method
// is a closed tagged variant; verification dispatches on the variant and
// never through an interface, because the set is small and fixed.

package wallet

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/near/borsh-go"

	"github.com/hyli/wallet-node/pkg/model"
	"github.com/hyli/wallet-node/pkg/smt"
)

// Auth method variant tags, in wire order.
const (
	AuthKindUninitialized = iota
	AuthKindPassword
	AuthKindJwt
	AuthKindEthereum
	AuthKindHyliApp
)

// AuthUninitialized marks an account slot that has never been
// registered. Its leaf hashes to the zero digest so the key reads as
// absent from the tree.
type AuthUninitialized struct{}

// AuthPassword authenticates with a salted password hash, checked
// against a check_secret side blob.
type AuthPassword struct {
	Hash string
}

// AuthJwt authenticates with an OIDC email hash, checked against a
// check_jwt side blob.
type AuthJwt struct {
	EmailHash [32]byte
}

// AuthEthereum authenticates with an Ethereum personal-message
// signature from the given address (hex, 0x-optional).
type AuthEthereum struct {
	Address string
}

// AuthHyliApp authenticates with a HyliApp signature; the address is the
// truncated SHA-256 of the compressed public key.
type AuthHyliApp struct {
	Address string
}

// AuthMethod is the tagged authentication variant stored in the record.
type AuthMethod struct {
	Enum          borsh.Enum `borsh_enum:"true"`
	Uninitialized AuthUninitialized
	Password      AuthPassword
	Jwt           AuthJwt
	Ethereum      AuthEthereum
	HyliApp       AuthHyliApp
}

// NewPasswordAuth builds a Password auth method.
func NewPasswordAuth(hash string) AuthMethod {
	return AuthMethod{Enum: AuthKindPassword, Password: AuthPassword{Hash: hash}}
}

// NewJwtAuth builds a Jwt auth method.
func NewJwtAuth(emailHash [32]byte) AuthMethod {
	return AuthMethod{Enum: AuthKindJwt, Jwt: AuthJwt{EmailHash: emailHash}}
}

// NewEthereumAuth builds an Ethereum auth method.
func NewEthereumAuth(address string) AuthMethod {
	return AuthMethod{Enum: AuthKindEthereum, Ethereum: AuthEthereum{Address: address}}
}

// NewHyliAppAuth builds a HyliApp auth method.
func NewHyliAppAuth(address string) AuthMethod {
	return AuthMethod{Enum: AuthKindHyliApp, HyliApp: AuthHyliApp{Address: address}}
}

// IsUninitialized reports whether the account slot has never been
// registered.
func (m AuthMethod) IsUninitialized() bool {
	return m.Enum == AuthKindUninitialized
}

// MarshalJSON renders the variant for the API surface.
func (m AuthMethod) MarshalJSON() ([]byte, error) {
	switch m.Enum {
	case AuthKindPassword:
		return json.Marshal(map[string]string{"type": "password", "hash": m.Password.Hash})
	case AuthKindJwt:
		return json.Marshal(map[string]string{"type": "jwt", "email_hash": hex.EncodeToString(m.Jwt.EmailHash[:])})
	case AuthKindEthereum:
		return json.Marshal(map[string]string{"type": "ethereum", "address": m.Ethereum.Address})
	case AuthKindHyliApp:
		return json.Marshal(map[string]string{"type": "hyliapp", "address": m.HyliApp.Address})
	default:
		return json.Marshal(map[string]string{"type": "uninitialized"})
	}
}

// SessionKey is a secp256k1 public key an account authorizes to co-sign
// transactions. Whitelist scopes the contracts it may touch; LaneId pins
// it to one execution lane. Keys are kept in insertion order so the leaf
// hash never depends on map iteration.
type SessionKey struct {
	PublicKey      string               `json:"public_key"`
	ExpirationDate uint64               `json:"expiration_date"`
	Whitelist      *[]model.ContractName `json:"whitelist,omitempty"`
	LaneId         *model.LaneId        `json:"lane_id,omitempty"`
}

// AccountInfo is the SMT leaf value.
type AccountInfo struct {
	// The identity is also the key material of the merkle leaf.
	Identity    string       `json:"identity"`
	AuthMethod  AuthMethod   `json:"auth_method"`
	SessionKeys []SessionKey `json:"session_keys"`
	Nonce       uint64       `json:"nonce"`
}

// AccountKey derives the 256-bit tree key for an identity.
func AccountKey(identity string) smt.H256 {
	return smt.H256(sha256.Sum256([]byte(identity)))
}

// Hash computes the leaf digest. Uninitialized records hash to the zero
// digest so the key is treated as absent.
func (a *AccountInfo) Hash() (smt.H256, error) {
	if a.AuthMethod.IsUninitialized() {
		return smt.Zero, nil
	}
	serialized, err := borsh.Serialize(*a)
	if err != nil {
		return smt.Zero, fmt.Errorf("failed to serialize account info: %w", err)
	}
	return smt.H256(sha256.Sum256(serialized)), nil
}

// Encode serializes the record with the canonical wire encoding.
func (a *AccountInfo) Encode() ([]byte, error) {
	return borsh.Serialize(*a)
}

// DecodeAccountInfo deserializes a canonical record.
func DecodeAccountInfo(data []byte) (*AccountInfo, error) {
	var a AccountInfo
	if err := borsh.Deserialize(&a, data); err != nil {
		return nil, fmt.Errorf("failed to decode account info: %w", err)
	}
	return &a, nil
}
