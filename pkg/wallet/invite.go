// Copyright 2025 Hyli
//
// Invite-code verification. Codes are issued off-process by a signer
// holding the key matched to the wallet's invite-code public key; the
// state machine only checks the signature blob folded into the
// registration transaction.

package wallet

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/hyli/wallet-node/pkg/model"
)

// DefaultInviteCodePublicKey is the compile-time default. Production
// deployments must rotate it with UpdateInviteCodePublicKey or a
// bootstrap payload; the commitment binds whichever key is live.
var DefaultInviteCodePublicKey = [33]byte{
	2, 82, 222, 37, 58, 251, 184, 56, 112, 182, 255, 255, 252, 221, 235, 53, 107, 2, 98, 178, 4,
	234, 13, 218, 118, 136, 8, 202, 95, 190, 184, 177, 226,
}

var ErrInvitePublicKey = errors.New("Invalid public key")

// InviteMessage is the exact string the invite signer commits to.
func InviteMessage(code, account string) string {
	return fmt.Sprintf("Invite - %s for %s", code, account)
}

// CheckInviteCode verifies the invite signature blob carried in the
// registration transaction: the signed digest must cover the canonical
// invite message and the signer must be the state's invite-code key.
func CheckInviteCode(account, inviteCode string, calldata *model.Calldata, invitePubKey [33]byte) error {
	digest := sha256.Sum256([]byte(InviteMessage(inviteCode, account)))
	blob, err := model.CheckSecp256k1(calldata, digest)
	if err != nil {
		return err
	}
	if blob.PublicKey != invitePubKey {
		return ErrInvitePublicKey
	}
	return nil
}
