// Copyright 2025 Hyli
//
// Transition Prover - Generates Groth16 proofs binding wallet state
// transitions to their SMT roots.
//
// This package provides:
//   - Circuit compilation and setup (one-time)
//   - Proof generation per handled wallet blob
//   - Local verification for the test and audit paths

package prover

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
	"github.com/google/uuid"
)

var ErrNotInitialized = errors.New("prover not initialized")

// TransitionProver handles ZK proof generation for wallet transitions.
type TransitionProver struct {
	mu sync.RWMutex

	// Compiled circuit constraint system
	cs constraint.ConstraintSystem

	// Groth16 proving and verification keys
	pk groth16.ProvingKey
	vk groth16.VerifyingKey

	initialized bool
}

// TransitionProof is a generated proof with its public inputs.
type TransitionProof struct {
	TaskID         uuid.UUID
	PrevCommitment *big.Int
	NextCommitment *big.Int
	Proof          groth16.Proof
}

// NewTransitionProver returns an uninitialized prover; call Initialize
// before proving.
func NewTransitionProver() *TransitionProver {
	return &TransitionProver{}
}

// Initialize compiles the circuit and runs the Groth16 setup. This is
// expensive and runs once per process.
func (p *TransitionProver) Initialize() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.initialized {
		return nil
	}

	var circuit TransitionCircuit
	cs, err := frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder, &circuit)
	if err != nil {
		return fmt.Errorf("failed to compile transition circuit: %w", err)
	}

	pk, vk, err := groth16.Setup(cs)
	if err != nil {
		return fmt.Errorf("failed to run Groth16 setup: %w", err)
	}

	p.cs = cs
	p.pk = pk
	p.vk = vk
	p.initialized = true
	return nil
}

// ProveTransition generates a proof for a (prevRoot, nextRoot) pair
// under the given invite-code public key.
func (p *TransitionProver) ProveTransition(taskID uuid.UUID, prevRoot, nextRoot [32]byte, invitePubKey [33]byte) (*TransitionProof, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.initialized {
		return nil, ErrNotInitialized
	}

	prevChunks := splitRoot(prevRoot)
	nextChunks := splitRoot(nextRoot)
	keyChunks := splitPubKey(invitePubKey)

	prevCommitment := foldCommitmentNative(prevChunks, keyChunks)
	nextCommitment := foldCommitmentNative(nextChunks, keyChunks)

	assignment := TransitionCircuit{
		PrevCommitment: prevCommitment,
		NextCommitment: nextCommitment,
		PrevRoot:       [2]frontend.Variable{prevChunks[0], prevChunks[1]},
		NextRoot:       [2]frontend.Variable{nextChunks[0], nextChunks[1]},
		InvitePubKey:   [3]frontend.Variable{keyChunks[0], keyChunks[1], keyChunks[2]},
	}

	witness, err := frontend.NewWitness(&assignment, ecc.BN254.ScalarField())
	if err != nil {
		return nil, fmt.Errorf("failed to build witness: %w", err)
	}

	proof, err := groth16.Prove(p.cs, p.pk, witness)
	if err != nil {
		return nil, fmt.Errorf("failed to generate proof: %w", err)
	}

	return &TransitionProof{
		TaskID:         taskID,
		PrevCommitment: prevCommitment,
		NextCommitment: nextCommitment,
		Proof:          proof,
	}, nil
}

// VerifyTransition checks a proof against its public inputs.
func (p *TransitionProver) VerifyTransition(proof *TransitionProof) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.initialized {
		return ErrNotInitialized
	}

	assignment := TransitionCircuit{
		PrevCommitment: proof.PrevCommitment,
		NextCommitment: proof.NextCommitment,
	}
	publicWitness, err := frontend.NewWitness(&assignment, ecc.BN254.ScalarField(), frontend.PublicOnly())
	if err != nil {
		return fmt.Errorf("failed to build public witness: %w", err)
	}
	if err := groth16.Verify(proof.Proof, p.vk, publicWitness); err != nil {
		return fmt.Errorf("proof verification failed: %w", err)
	}
	return nil
}

// splitRoot splits a 32-byte root into two 16-byte big-endian field
// elements.
func splitRoot(root [32]byte) [2]*big.Int {
	return [2]*big.Int{
		new(big.Int).SetBytes(root[:16]),
		new(big.Int).SetBytes(root[16:]),
	}
}

// splitPubKey splits a 33-byte compressed key into 11-byte chunks.
func splitPubKey(pubKey [33]byte) [3]*big.Int {
	return [3]*big.Int{
		new(big.Int).SetBytes(pubKey[:11]),
		new(big.Int).SetBytes(pubKey[11:22]),
		new(big.Int).SetBytes(pubKey[22:]),
	}
}

// foldCommitmentNative mirrors the in-circuit MiMC fold. The element
// write order must stay in lockstep with circuit.go.
func foldCommitmentNative(root [2]*big.Int, pubKey [3]*big.Int) *big.Int {
	h := mimc.NewMiMC()
	for _, v := range []*big.Int{root[0], root[1], pubKey[0], pubKey[1], pubKey[2]} {
		var elem fr.Element
		elem.SetBigInt(v)
		b := elem.Bytes()
		h.Write(b[:])
	}
	return new(big.Int).SetBytes(h.Sum(nil))
}
