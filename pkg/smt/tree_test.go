// Copyright 2025 Hyli
//
// Sparse Merkle Tree Tests

package smt

import (
	"bytes"
	"crypto/sha256"
	"testing"
)

func h(s string) H256 {
	return H256(sha256.Sum256([]byte(s)))
}

func TestEmptyTree_RootIsZero(t *testing.T) {
	tree := NewTree()
	if !tree.Root().IsZero() {
		t.Errorf("empty tree root should be zero, got %x", tree.Root())
	}
}

func TestUpdate_ChangesRoot(t *testing.T) {
	tree := NewTree()
	root1 := tree.Update(h("key-1"), h("value-1"))
	if root1.IsZero() {
		t.Fatal("root should be non-zero after insert")
	}
	root2 := tree.Update(h("key-2"), h("value-2"))
	if root2 == root1 {
		t.Error("root should change after second insert")
	}
	// Overwriting with the same value keeps the root stable.
	root3 := tree.Update(h("key-2"), h("value-2"))
	if root3 != root2 {
		t.Errorf("root changed on idempotent update: %x != %x", root3, root2)
	}
}

func TestUpdate_ZeroDeletes(t *testing.T) {
	tree := NewTree()
	tree.Update(h("key-1"), h("value-1"))
	rootWithOne := tree.Update(h("key-2"), h("value-2"))

	tree.Update(h("key-3"), h("value-3"))
	root := tree.Update(h("key-3"), Zero)
	if root != rootWithOne {
		t.Errorf("deleting a leaf should restore the prior root: %x != %x", root, rootWithOne)
	}
	if tree.Len() != 2 {
		t.Errorf("expected 2 leaves, got %d", tree.Len())
	}
	if !tree.Get(h("key-3")).IsZero() {
		t.Error("deleted key should read as zero")
	}
}

func TestRoot_InsertionOrderIndependent(t *testing.T) {
	a := NewTree()
	b := NewTree()
	keys := []string{"alice", "bob", "carol", "dave", "erin"}
	for _, k := range keys {
		a.Update(h(k), h(k+"-value"))
	}
	for i := len(keys) - 1; i >= 0; i-- {
		b.Update(h(keys[i]), h(keys[i]+"-value"))
	}
	if a.Root() != b.Root() {
		t.Errorf("roots differ across insertion orders: %x != %x", a.Root(), b.Root())
	}
}

func TestMerkleProof_Membership(t *testing.T) {
	tree := NewTree()
	for _, k := range []string{"alice", "bob", "carol"} {
		tree.Update(h(k), h(k+"-value"))
	}

	proof, err := tree.MerkleProof([]H256{h("bob")})
	if err != nil {
		t.Fatalf("failed to build proof: %v", err)
	}

	leaves := []Leaf{{Key: h("bob"), Hash: h("bob-value")}}
	root, err := proof.ComputeRoot(leaves)
	if err != nil {
		t.Fatalf("failed to compute root from proof: %v", err)
	}
	if root != tree.Root() {
		t.Errorf("computed root mismatch: got %x, want %x", root, tree.Root())
	}
	ok, err := proof.Verify(tree.Root(), leaves)
	if err != nil || !ok {
		t.Errorf("proof should verify: ok=%v err=%v", ok, err)
	}
}

func TestMerkleProof_NonMembership(t *testing.T) {
	tree := NewTree()
	for _, k := range []string{"alice", "bob"} {
		tree.Update(h(k), h(k+"-value"))
	}

	proof, err := tree.MerkleProof([]H256{h("mallory")})
	if err != nil {
		t.Fatalf("failed to build proof: %v", err)
	}
	ok, err := proof.Verify(tree.Root(), []Leaf{{Key: h("mallory"), Hash: Zero}})
	if err != nil || !ok {
		t.Errorf("non-membership proof should verify: ok=%v err=%v", ok, err)
	}
	// The same proof with a non-zero value must not verify.
	ok, err = proof.Verify(tree.Root(), []Leaf{{Key: h("mallory"), Hash: h("fake")}})
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if ok {
		t.Error("proof with forged leaf value should not verify")
	}
}

func TestMerkleProof_EmptyTree(t *testing.T) {
	tree := NewTree()
	proof, err := tree.MerkleProof([]H256{h("anyone")})
	if err != nil {
		t.Fatalf("failed to build proof: %v", err)
	}
	root, err := proof.ComputeRoot([]Leaf{{Key: h("anyone"), Hash: Zero}})
	if err != nil {
		t.Fatalf("failed to compute root: %v", err)
	}
	if !root.IsZero() {
		t.Errorf("empty-tree proof should compute the zero root, got %x", root)
	}
}

func TestMerkleProof_MultiKey(t *testing.T) {
	tree := NewTree()
	values := map[string]string{}
	for _, k := range []string{"alice", "bob", "carol", "dave", "erin", "frank"} {
		values[k] = k + "-value"
		tree.Update(h(k), h(values[k]))
	}

	keys := []H256{h("bob"), h("erin"), h("alice")}
	proof, err := tree.MerkleProof(keys)
	if err != nil {
		t.Fatalf("failed to build multi-key proof: %v", err)
	}
	leaves := []Leaf{
		{Key: h("alice"), Hash: h("alice-value")},
		{Key: h("bob"), Hash: h("bob-value")},
		{Key: h("erin"), Hash: h("erin-value")},
	}
	ok, err := proof.Verify(tree.Root(), leaves)
	if err != nil || !ok {
		t.Fatalf("multi-key proof should verify: ok=%v err=%v", ok, err)
	}

	// Tampering with one leaf breaks the whole proof.
	leaves[1].Hash = h("tampered")
	ok, err = proof.Verify(tree.Root(), leaves)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if ok {
		t.Error("tampered multi-key proof should not verify")
	}
}

func TestMerkleProof_UpdatedLeafComputesNewRoot(t *testing.T) {
	tree := NewTree()
	for _, k := range []string{"alice", "bob", "carol"} {
		tree.Update(h(k), h(k+"-value"))
	}

	proof, err := tree.MerkleProof([]H256{h("bob")})
	if err != nil {
		t.Fatalf("failed to build proof: %v", err)
	}

	// The same sibling path must reproduce the post-update root, which
	// is what lets the guest executor advance the commitment.
	expected := tree.Update(h("bob"), h("bob-value-2"))
	got, err := proof.ComputeRoot([]Leaf{{Key: h("bob"), Hash: h("bob-value-2")}})
	if err != nil {
		t.Fatalf("failed to compute updated root: %v", err)
	}
	if got != expected {
		t.Errorf("updated root mismatch: got %x, want %x", got, expected)
	}
}

func TestProof_CanonicalSerialization(t *testing.T) {
	tree := NewTree()
	for _, k := range []string{"alice", "bob", "carol", "dave"} {
		tree.Update(h(k), h(k+"-value"))
	}

	p1, err := tree.MerkleProof([]H256{h("carol"), h("alice")})
	if err != nil {
		t.Fatalf("failed to build proof: %v", err)
	}
	p2, err := tree.MerkleProof([]H256{h("alice"), h("carol")})
	if err != nil {
		t.Fatalf("failed to build proof: %v", err)
	}

	b1, err := p1.Encode()
	if err != nil {
		t.Fatalf("failed to encode proof: %v", err)
	}
	b2, err := p2.Encode()
	if err != nil {
		t.Fatalf("failed to encode proof: %v", err)
	}
	if !bytes.Equal(b1, b2) {
		t.Error("proofs for the same key set should serialize identically")
	}

	decoded, err := DecodeProof(b1)
	if err != nil {
		t.Fatalf("failed to decode proof: %v", err)
	}
	rb, err := decoded.Encode()
	if err != nil {
		t.Fatalf("failed to re-encode proof: %v", err)
	}
	if !bytes.Equal(rb, b1) {
		t.Error("proof round-trip should be byte stable")
	}
}
