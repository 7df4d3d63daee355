// Copyright 2025 Hyli
//
// Transaction intake over HTTP. In production the settlement feed calls
// ProcessTransaction directly; this endpoint serves local stacks and
// integration tooling.

package node

import (
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"net/http"

	"github.com/hyli/wallet-node/pkg/model"
)

type submitTxBlob struct {
	ContractName string `json:"contract_name"`
	Data         string `json:"data"` // base64
}

type submitTxRequest struct {
	Identity string            `json:"identity"`
	TxHash   string            `json:"tx_hash"` // hex, 32 bytes
	Blobs    []submitTxBlob    `json:"blobs"`
	TxCtx    *model.TxContext  `json:"tx_ctx,omitempty"`
}

type submitTxResponse struct {
	Outputs []outputSummary `json:"outputs"`
	Witness string          `json:"witness"` // base64 composed zk view
}

type outputSummary struct {
	Index          model.BlobIndex `json:"index"`
	Success        bool            `json:"success"`
	ProgramOutputs string          `json:"program_outputs"`
	NextCommitment string          `json:"next_commitment"`
}

// HandleSubmitTx handles POST /api/tx.
func (n *Node) HandleSubmitTx(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var body submitTxRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	var txHash [32]byte
	raw, err := hex.DecodeString(body.TxHash)
	if err != nil || len(raw) != 32 {
		http.Error(w, "tx_hash must be 32 hex-encoded bytes", http.StatusBadRequest)
		return
	}
	copy(txHash[:], raw)

	blobs := make([]model.Blob, 0, len(body.Blobs))
	for _, b := range body.Blobs {
		data, err := base64.StdEncoding.DecodeString(b.Data)
		if err != nil {
			http.Error(w, "blob data must be base64", http.StatusBadRequest)
			return
		}
		blobs = append(blobs, model.Blob{ContractName: model.ContractName(b.ContractName), Data: data})
	}

	result, err := n.ProcessTransaction(r.Context(), model.Identity(body.Identity), txHash, blobs, body.TxCtx)
	if err != nil {
		n.logger.Printf("Failed to process transaction: %v", err)
		http.Error(w, "failed to process transaction", http.StatusInternalServerError)
		return
	}

	response := submitTxResponse{Witness: base64.StdEncoding.EncodeToString(result.Witness)}
	for _, out := range result.Outputs {
		response.Outputs = append(response.Outputs, outputSummary{
			Index:          out.Index,
			Success:        out.Success,
			ProgramOutputs: string(out.ProgramOutputs),
			NextCommitment: hex.EncodeToString(out.NextStateCommitment),
		})
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		n.logger.Printf("Failed to encode response: %v", err)
	}
}
