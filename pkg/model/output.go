// Copyright 2025 Hyli
//
// HyleOutput is the record a transition hands back to the settlement
// layer: the commitment pair, the program output bytes and the echoed
// call context.

package model

// HyleOutput is returned by the host executor for every handled blob.
// Transition failures are reported with Success=false and a human
// readable message in ProgramOutputs; the commitments are always set.
type HyleOutput struct {
	InitialStateCommitment []byte        `json:"initial_state_commitment"`
	NextStateCommitment    []byte        `json:"next_state_commitment"`
	ProgramOutputs         []byte        `json:"program_outputs"`
	Success                bool          `json:"success"`
	Identity               Identity      `json:"identity"`
	TxHash                 [32]byte      `json:"tx_hash"`
	Index                  BlobIndex     `json:"index"`
	Blobs                  []IndexedBlob `json:"blobs"`
}

// AsHyleOutput folds a transition result into the output record. err is
// nil on success; its message becomes the program output otherwise.
func AsHyleOutput(initial, next []byte, calldata *Calldata, msg string, err error) *HyleOutput {
	out := &HyleOutput{
		InitialStateCommitment: initial,
		NextStateCommitment:    next,
		Identity:               calldata.Identity,
		TxHash:                 calldata.TxHash,
		Index:                  calldata.Index,
		Blobs:                  calldata.Blobs,
	}
	if err != nil {
		out.Success = false
		out.ProgramOutputs = []byte(err.Error())
		return out
	}
	out.Success = true
	out.ProgramOutputs = []byte(msg)
	return out
}
