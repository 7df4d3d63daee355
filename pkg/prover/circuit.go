// Copyright 2025 Hyli
//
// Transition Binding ZK Circuit Definition
//
// Proves that the prover knows the SMT roots and invite-code public key
// behind a wallet state transition:
//   1. PrevCommitment is the MiMC fold of the pre-state root and the
//      invite-code public key
//   2. NextCommitment is the MiMC fold of the post-state root and the
//      same invite-code public key
//
// Uses gnark for ZK-SNARK circuit definition (Groth16 proving system).

package prover

import (
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/hash/mimc"
)

// TransitionCircuit binds a (prev, next) commitment pair to private
// state roots sharing one invite-code public key.
type TransitionCircuit struct {
	// ===================
	// PUBLIC INPUTS (known to verifier)
	// ===================

	// PrevCommitment = MiMC(PrevRoot0, PrevRoot1, PubKey0, PubKey1, PubKey2)
	PrevCommitment frontend.Variable `gnark:",public"`

	// NextCommitment = MiMC(NextRoot0, NextRoot1, PubKey0, PubKey1, PubKey2)
	NextCommitment frontend.Variable `gnark:",public"`

	// ===================
	// PRIVATE INPUTS (known only to prover)
	// ===================

	// Pre-state SMT root, split into two 16-byte field elements.
	PrevRoot [2]frontend.Variable

	// Post-state SMT root, split into two 16-byte field elements.
	NextRoot [2]frontend.Variable

	// Compressed invite-code public key, split into 11-byte chunks.
	InvitePubKey [3]frontend.Variable
}

// Define implements the circuit constraints.
func (c *TransitionCircuit) Define(api frontend.API) error {
	prev, err := foldCommitment(api, c.PrevRoot, c.InvitePubKey)
	if err != nil {
		return err
	}
	api.AssertIsEqual(c.PrevCommitment, prev)

	next, err := foldCommitment(api, c.NextRoot, c.InvitePubKey)
	if err != nil {
		return err
	}
	api.AssertIsEqual(c.NextCommitment, next)

	return nil
}

// foldCommitment computes MiMC(root0, root1, pk0, pk1, pk2) in-circuit.
// The native counterpart lives in prover.go and must write the same
// element order.
func foldCommitment(api frontend.API, root [2]frontend.Variable, pubKey [3]frontend.Variable) (frontend.Variable, error) {
	h, err := mimc.NewMiMC(api)
	if err != nil {
		return nil, err
	}
	h.Write(root[0], root[1], pubKey[0], pubKey[1], pubKey[2])
	return h.Sum(), nil
}
