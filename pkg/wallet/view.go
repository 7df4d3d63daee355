// Copyright 2025 Hyli
//
// The witness envelope shared between host and guest, and the state
// commitment both must derive identically.

package wallet

import (
	"crypto/sha256"
	"fmt"

	"github.com/near/borsh-go"

	"github.com/hyli/wallet-node/pkg/smt"
)

// StateCommitment binds the SMT root and the invite-code public key:
// SHA256(root || pubkey). Folding the key in prevents a compromised
// host from rotating it without moving the commitment.
func StateCommitment(root smt.H256, invitePubKey [33]byte) []byte {
	h := sha256.New()
	h.Write(root[:])
	h.Write(invitePubKey[:])
	return h.Sum(nil)
}

// PartialWalletData is one account's slice of the pre-state: the record
// plus the merkle proof tying it to the committed root.
type PartialWalletData struct {
	Proof       smt.Proof
	AccountInfo AccountInfo
}

// ZkView is the witness envelope the guest executor consumes: the
// claimed commitment, the invite-code public key, and one partial-data
// entry per wallet blob, ordered so popping from the end yields blobs
// in execution order.
type ZkView struct {
	Commitment          []byte
	InviteCodePublicKey [33]byte
	PartialData         []PartialWalletData
}

// Encode serializes the view canonically.
func (v *ZkView) Encode() ([]byte, error) {
	return borsh.Serialize(*v)
}

// DecodeZkView deserializes a witness envelope.
func DecodeZkView(data []byte) (*ZkView, error) {
	var v ZkView
	if err := borsh.Deserialize(&v, data); err != nil {
		return nil, fmt.Errorf("failed to decode zk view: %w", err)
	}
	return &v, nil
}
