// Copyright 2025 Hyli
//
// Secp256k1 witness blob: a signed digest carried alongside a wallet
// blob. Used for invite-code checks, Ethereum/HyliApp authentication and
// session-key usage.

package model

import (
	"errors"
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

var (
	ErrNoSecp256k1Blob      = errors.New("missing secp256k1 blob")
	ErrSecp256k1BadSig      = errors.New("invalid secp256k1 signature")
	ErrSecp256k1DigestMatch = errors.New("secp256k1 blob digest does not match expected data")
)

// Secp256k1Blob carries an ECDSA witness over a 32-byte digest. The
// signature is the 64-byte r||s form over the compressed public key.
type Secp256k1Blob struct {
	Identity  Identity `json:"identity"`
	Data      [32]byte `json:"data"`
	PublicKey [33]byte `json:"public_key"`
	Signature [64]byte `json:"signature"`
}

// AsBlob wraps the witness in a transaction blob under the secp256k1
// contract name.
func (s *Secp256k1Blob) AsBlob() (Blob, error) {
	data, err := Encode(*s)
	if err != nil {
		return Blob{}, fmt.Errorf("failed to encode secp256k1 blob: %w", err)
	}
	return Blob{ContractName: ContractSecp256k1, Data: data}, nil
}

// Verify checks the ECDSA signature over the embedded digest.
func (s *Secp256k1Blob) Verify() error {
	if !ethcrypto.VerifySignature(s.PublicKey[:], s.Data[:], s.Signature[:]) {
		return ErrSecp256k1BadSig
	}
	return nil
}

// CheckSecp256k1 locates a secp256k1 witness bound to the calldata
// identity whose signed digest equals the expected one, and verifies its
// signature. The witness is found by scanning rather than by a fixed
// blob index, so callers may place it anywhere in the transaction.
func CheckSecp256k1(calldata *Calldata, expected [32]byte) (*Secp256k1Blob, error) {
	for i := range calldata.Blobs {
		if calldata.Blobs[i].Blob.ContractName != ContractSecp256k1 {
			continue
		}
		var blob Secp256k1Blob
		if err := Decode(&blob, calldata.Blobs[i].Blob.Data); err != nil {
			continue
		}
		if blob.Identity != calldata.Identity || blob.Data != expected {
			continue
		}
		if err := blob.Verify(); err != nil {
			return nil, err
		}
		return &blob, nil
	}
	return nil, ErrNoSecp256k1Blob
}
