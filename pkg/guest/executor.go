// Copyright 2025 Hyli
//
// Guest Executor (ZK view)
//
// Re-executes a wallet transition from a witness envelope alone: a
// commitment, the invite-code public key and merkle-proved leaves. Runs
// inside the zk-VM, so it is strictly sequential and deterministic — no
// I/O, no clock, no map iteration in any hashed path. A witness that
// fails verification panics, which makes the proof unissuable; that is
// the correct outcome for an unsound witness.

package guest

import (
	"bytes"
	"fmt"

	"github.com/hyli/wallet-node/pkg/model"
	"github.com/hyli/wallet-node/pkg/smt"
	"github.com/hyli/wallet-node/pkg/wallet"
)

// Execute applies the calldata's wallet blob against the view. The view
// is mutated: one partial-data entry is consumed and the commitment is
// advanced. Transition failures are ordinary failed outputs — the
// commitment is still re-derived so host and guest stay bit-identical
// even for failing transitions.
func Execute(view *wallet.ZkView, calldata *model.Calldata) (*model.HyleOutput, error) {
	blob, err := calldata.CurrentBlob()
	if err != nil {
		return nil, err
	}
	initial := append([]byte(nil), view.Commitment...)

	action, err := wallet.ParseAction(blob.Data)
	if err != nil {
		return model.AsHyleOutput(initial, initial, calldata, "", err), nil
	}

	if action.Enum == wallet.ActionUpdateInviteCodePublicKey {
		act := &action.UpdateInviteCodePublicKey
		if view.InviteCodePublicKey != wallet.DefaultInviteCodePublicKey {
			return model.AsHyleOutput(initial, initial, calldata, "", fmt.Errorf("Invite code public key already set")), nil
		}
		view.InviteCodePublicKey = act.InviteCodePublicKey
		view.Commitment = wallet.StateCommitment(smt.H256(act.SmtRoot), view.InviteCodePublicKey)
		return model.AsHyleOutput(initial, view.Commitment, calldata, "Updated public key", nil), nil
	}

	// Without state for this calldata the proof cannot be generated.
	if len(view.PartialData) == 0 {
		panic("No partial data available for the contract state")
	}
	partial := view.PartialData[len(view.PartialData)-1]
	view.PartialData = view.PartialData[:len(view.PartialData)-1]

	record := partial.AccountInfo
	accountKey := wallet.AccountKey(record.Identity)
	leafHash, err := record.Hash()
	if err != nil {
		panic(fmt.Sprintf("Failed to hash account leaf: %v", err))
	}
	leaves := []smt.Leaf{{Key: accountKey, Hash: leafHash}}

	// Validate internal consistency, then check the commitment.
	root, err := partial.Proof.ComputeRoot(leaves)
	if err != nil {
		panic(fmt.Sprintf("Failed to compute root from proof: %v", err))
	}
	derived := wallet.StateCommitment(root, view.InviteCodePublicKey)
	if !bytes.Equal(view.Commitment, derived) {
		panic(fmt.Sprintf("State commitment mismatch: expected %x, got %x", view.Commitment, derived))
	}
	verified, err := partial.Proof.Verify(root, leaves)
	if err != nil || !verified {
		panic("Proof verification failed for the contract state")
	}

	msg, applyErr := wallet.ApplyAction(&record, action, calldata, view.InviteCodePublicKey)

	// Recompute the commitment from the (possibly unchanged) leaf so a
	// failing transition still lands on the host's commitment.
	newLeafHash, err := record.Hash()
	if err != nil {
		panic(fmt.Sprintf("Failed to hash account leaf: %v", err))
	}
	newRoot, err := partial.Proof.ComputeRoot([]smt.Leaf{{Key: accountKey, Hash: newLeafHash}})
	if err != nil {
		panic(fmt.Sprintf("Failed to compute new root: %v", err))
	}
	view.Commitment = wallet.StateCommitment(newRoot, view.InviteCodePublicKey)

	return model.AsHyleOutput(initial, view.Commitment, calldata, msg, applyErr), nil
}
