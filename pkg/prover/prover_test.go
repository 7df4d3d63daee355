// Copyright 2025 Hyli
//
// Transition prover tests. Setup is expensive, so one prover is shared
// across the package tests.

package prover

import (
	"math/big"
	"sync"
	"testing"

	"github.com/google/uuid"
)

var (
	sharedProver *TransitionProver
	proverOnce   sync.Once
	proverErr    error
)

func testProver(t *testing.T) *TransitionProver {
	t.Helper()
	proverOnce.Do(func() {
		sharedProver = NewTransitionProver()
		proverErr = sharedProver.Initialize()
	})
	if proverErr != nil {
		t.Fatalf("failed to initialize prover: %v", proverErr)
	}
	return sharedProver
}

func TestProveAndVerifyTransition(t *testing.T) {
	p := testProver(t)

	prevRoot := [32]byte{1, 2, 3}
	nextRoot := [32]byte{4, 5, 6}
	pubKey := [33]byte{2, 82, 222}

	proof, err := p.ProveTransition(uuid.New(), prevRoot, nextRoot, pubKey)
	if err != nil {
		t.Fatalf("failed to prove transition: %v", err)
	}
	if proof.PrevCommitment.Sign() == 0 || proof.NextCommitment.Sign() == 0 {
		t.Fatal("commitments should be non-zero field elements")
	}
	if err := p.VerifyTransition(proof); err != nil {
		t.Fatalf("proof should verify: %v", err)
	}
}

func TestVerifyTransition_RejectsForgedInputs(t *testing.T) {
	p := testProver(t)

	proof, err := p.ProveTransition(uuid.New(), [32]byte{1}, [32]byte{2}, [33]byte{3})
	if err != nil {
		t.Fatalf("failed to prove transition: %v", err)
	}

	forged := *proof
	forged.NextCommitment = new(big.Int).Add(proof.NextCommitment, big.NewInt(1))
	if err := p.VerifyTransition(&forged); err == nil {
		t.Fatal("verification must fail for forged public inputs")
	}
}

func TestNativeFoldMatchesIdenticalInputs(t *testing.T) {
	a := foldCommitmentNative(splitRoot([32]byte{9}), splitPubKey([33]byte{8}))
	b := foldCommitmentNative(splitRoot([32]byte{9}), splitPubKey([33]byte{8}))
	if a.Cmp(b) != 0 {
		t.Error("native fold must be deterministic")
	}
	c := foldCommitmentNative(splitRoot([32]byte{10}), splitPubKey([33]byte{8}))
	if a.Cmp(c) == 0 {
		t.Error("native fold must depend on the root")
	}
}
