// Copyright 2025 Hyli
//
// Node orchestration: drives the host executor over the wallet blobs of
// a settled transaction, composes the per-blob witnesses into one view,
// dispatches proving tasks and records history. This is the glue
// between the settlement feed and the wallet core.

package node

import (
	"context"
	"fmt"
	"log"
	"strconv"

	"github.com/google/uuid"

	"github.com/hyli/wallet-node/pkg/history"
	"github.com/hyli/wallet-node/pkg/host"
	"github.com/hyli/wallet-node/pkg/model"
	"github.com/hyli/wallet-node/pkg/prover"
	"github.com/hyli/wallet-node/pkg/server"
	"github.com/hyli/wallet-node/pkg/wallet"
)

// Node wires the host executor to its collaborators.
type Node struct {
	wallet       *host.Wallet
	contractName model.ContractName
	dispatcher   *prover.Dispatcher // nil disables proving
	events       *history.Store     // nil disables history
	logger       *log.Logger
}

// New builds a node around a host wallet.
func New(w *host.Wallet, contractName model.ContractName, dispatcher *prover.Dispatcher, events *history.Store) *Node {
	return &Node{
		wallet:       w,
		contractName: contractName,
		dispatcher:   dispatcher,
		events:       events,
		logger:       log.New(log.Writer(), "[Node] ", log.LstdFlags),
	}
}

// Wallet exposes the host state for the API surface.
func (n *Node) Wallet() *host.Wallet {
	return n.wallet
}

// TxResult is the outcome of one processed transaction.
type TxResult struct {
	Outputs []*model.HyleOutput
	// Witness is the composed view covering every wallet blob of the
	// transaction, in guest execution order. Empty when the transaction
	// carries no wallet blob.
	Witness []byte
}

// ProcessTransaction applies every wallet blob of a transaction in
// ascending blob order. Witnesses are built against the pre-state of
// each blob and merged so the guest replays them in the same order.
func (n *Node) ProcessTransaction(ctx context.Context, identity model.Identity, txHash [32]byte, blobs []model.Blob, txCtx *model.TxContext) (*TxResult, error) {
	indexed := model.IndexBlobs(blobs...)
	result := &TxResult{}

	for i := range indexed {
		if indexed[i].Blob.ContractName != n.contractName {
			continue
		}

		calldata := &model.Calldata{
			Identity:    identity,
			TxHash:      txHash,
			Blobs:       indexed,
			TxBlobCount: uint32(len(indexed)),
			Index:       indexed[i].Index,
			TxCtx:       txCtx,
		}

		prevRoot := n.wallet.SMTRoot()
		witness, err := n.wallet.BuildWitness(indexed[i].Blob)
		if err != nil {
			return nil, fmt.Errorf("failed to build witness for blob %d: %w", i, err)
		}

		output, err := n.wallet.Handle(calldata)
		if err != nil {
			return nil, fmt.Errorf("failed to handle blob %d: %w", i, err)
		}
		result.Outputs = append(result.Outputs, output)

		if result.Witness == nil {
			result.Witness = witness
		} else {
			result.Witness, err = n.wallet.MergeWitnesses(result.Witness, witness)
			if err != nil {
				return nil, fmt.Errorf("failed to merge witnesses: %w", err)
			}
		}

		action, err := wallet.ParseAction(indexed[i].Blob.Data)
		if err == nil {
			server.TransitionsHandled.WithLabelValues(action.Kind(), strconv.FormatBool(output.Success)).Inc()
			if n.events != nil {
				if err := n.events.RecordOutput(ctx, action, calldata, output); err != nil {
					n.logger.Printf("Failed to record history: %v", err)
				}
			}
		}

		if n.dispatcher != nil {
			n.dispatcher.Submit(prover.Task{
				ID:           uuid.New(),
				Witness:      witness,
				Calldata:     *calldata,
				PrevRoot:     prevRoot,
				NextRoot:     n.wallet.SMTRoot(),
				InvitePubKey: n.wallet.InviteCodePublicKey(),
			})
		}
	}

	server.AccountsLive.Set(float64(len(n.wallet.Accounts())))
	return result, nil
}
