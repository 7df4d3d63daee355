// Copyright 2025 Hyli
//
// Core transaction model shared by the host executor, the guest executor
// and the API surface. All on-chain payloads are encoded with borsh
// (length-prefixed, little-endian, no map reordering) so that record
// hashes are stable across hosts.

package model

import (
	"fmt"

	"github.com/near/borsh-go"
)

// Identity is a fully qualified account identity, "username@contract".
type Identity string

// ContractName names a registered contract within a transaction blob.
type ContractName string

// LaneId pins execution to a specific data-availability lane.
type LaneId string

// BlobIndex is the position of a blob inside its transaction.
type BlobIndex uint32

// Well-known side-blob contract names. These are a string-literal
// protocol between the wallet and its auxiliary verifiers.
const (
	ContractCheckSecret = "check_secret"
	ContractCheckJwt    = "check_jwt"
	ContractSecp256k1   = "secp256k1"
)

// Blob is a single (contract, payload) tuple within a transaction.
type Blob struct {
	ContractName ContractName `json:"contract_name"`
	Data         []byte       `json:"data"`
}

// IndexedBlob pairs a blob with its transaction-local index.
type IndexedBlob struct {
	Index BlobIndex `json:"index"`
	Blob  Blob      `json:"blob"`
}

// TxContext carries consensus-provided execution context. Timestamp is
// unix-ms; time comparisons inside the state machine must use it rather
// than the wall clock.
type TxContext struct {
	BlockHeight uint64 `json:"block_height"`
	Timestamp   uint64 `json:"timestamp"`
	LaneId      LaneId `json:"lane_id"`
	ChainId     uint64 `json:"chain_id"`
}

// Calldata is the full per-blob execution context passed to Handle.
type Calldata struct {
	Identity     Identity      `json:"identity"`
	TxHash       [32]byte      `json:"tx_hash"`
	Blobs        []IndexedBlob `json:"blobs"`
	TxBlobCount  uint32        `json:"tx_blob_count"`
	Index        BlobIndex     `json:"index"`
	TxCtx        *TxContext    `json:"tx_ctx,omitempty"`
	PrivateInput []byte        `json:"private_input,omitempty"`
}

// BlobAt returns the blob at the given transaction index.
func (c *Calldata) BlobAt(index BlobIndex) (*Blob, bool) {
	for i := range c.Blobs {
		if c.Blobs[i].Index == index {
			return &c.Blobs[i].Blob, true
		}
	}
	return nil, false
}

// CurrentBlob returns the blob this invocation serves.
func (c *Calldata) CurrentBlob() (*Blob, error) {
	b, ok := c.BlobAt(c.Index)
	if !ok {
		return nil, fmt.Errorf("calldata has no blob at index %d", c.Index)
	}
	return b, nil
}

// FindBlobByContract returns the first blob with the given contract name.
func (c *Calldata) FindBlobByContract(name ContractName) (*Blob, bool) {
	for i := range c.Blobs {
		if c.Blobs[i].Blob.ContractName == name {
			return &c.Blobs[i].Blob, true
		}
	}
	return nil, false
}

// IndexBlobs assigns ascending indices to a plain blob list, the order in
// which the settlement layer delivers them.
func IndexBlobs(blobs ...Blob) []IndexedBlob {
	indexed := make([]IndexedBlob, len(blobs))
	for i, b := range blobs {
		indexed[i] = IndexedBlob{Index: BlobIndex(i), Blob: b}
	}
	return indexed
}

// Encode serializes a value with the canonical wire encoding.
func Encode(v interface{}) ([]byte, error) {
	return borsh.Serialize(v)
}

// Decode deserializes canonical wire bytes into target.
func Decode(target interface{}, data []byte) error {
	return borsh.Deserialize(target, data)
}
