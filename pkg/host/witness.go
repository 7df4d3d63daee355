// Copyright 2025 Hyli
//
// Witness construction: one ZkView per wallet blob, merged so a
// multi-blob transaction executes sequentially against a single view.

package host

import (
	"fmt"

	"github.com/hyli/wallet-node/pkg/model"
	"github.com/hyli/wallet-node/pkg/smt"
	"github.com/hyli/wallet-node/pkg/wallet"
)

// BuildWitness packages the pre-state evidence for one wallet blob: the
// commitment, the invite-code public key, and the account leaf with its
// merkle proof. Administrative actions and undecodable blobs produce a
// view with no partial data, so failures stay provable.
func (w *Wallet) BuildWitness(blob model.Blob) ([]byte, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	view := wallet.ZkView{
		Commitment:          wallet.StateCommitment(w.tree.Root(), w.inviteCodePublicKey),
		InviteCodePublicKey: w.inviteCodePublicKey,
	}

	action, err := wallet.ParseAction(blob.Data)
	if err == nil {
		if account, ok := action.Account(); ok {
			record, live := w.accounts[account]
			if live {
				record = record.Clone()
			} else {
				record = wallet.AccountInfo{}
			}
			record.Identity = account

			proof, err := w.tree.MerkleProof([]smt.H256{wallet.AccountKey(account)})
			if err != nil {
				return nil, fmt.Errorf("failed to generate proof for %s: %w", account, err)
			}
			view.PartialData = []wallet.PartialWalletData{{Proof: *proof, AccountInfo: record}}
		}
	}

	data, err := view.Encode()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize zk view: %w", err)
	}
	return data, nil
}

// MergeWitnesses combines two witnesses so the guest consumes them in
// the order they were produced: the later view's partial data is kept in
// front and the earlier view's commitment becomes the merged
// commitment, since the guest pops partial data from the end.
func (w *Wallet) MergeWitnesses(initial, next []byte) ([]byte, error) {
	initialView, err := wallet.DecodeZkView(initial)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize initial view: %w", err)
	}
	nextView, err := wallet.DecodeZkView(next)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize next view: %w", err)
	}

	nextView.PartialData = append(nextView.PartialData, initialView.PartialData...)
	nextView.Commitment = initialView.Commitment

	data, err := nextView.Encode()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize combined view: %w", err)
	}
	return data, nil
}
