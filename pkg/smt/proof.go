// Copyright 2025 Hyli
//
// Compact merkle proofs.
//
// A proof for a key set carries one bitmap per key (bit h set means the
// sibling at height h is supplied in the sibling list) plus the non-zero
// siblings in consumption order. Verification replays the bottom-up
// merge with a queue: adjacent proved subtrees merge with each other,
// bitmap-flagged heights consume the next supplied sibling, and every
// other sibling is the zero digest. The same replay reconstructs the
// root, which is how the guest executor re-derives commitments.

package smt

import (
	"errors"
	"fmt"

	"github.com/near/borsh-go"
)

var (
	ErrProofLeafCount = errors.New("proof bitmap count does not match leaf count")
	ErrProofCorrupted = errors.New("merkle proof is corrupted")
)

// Proof is the canonical sibling-path witness for a set of keys.
type Proof struct {
	LeavesBitmap []H256
	Siblings     []H256
}

// Encode serializes the proof canonically.
func (p *Proof) Encode() ([]byte, error) {
	return borsh.Serialize(*p)
}

// DecodeProof deserializes canonical proof bytes.
func DecodeProof(data []byte) (*Proof, error) {
	var p Proof
	if err := borsh.Deserialize(&p, data); err != nil {
		return nil, fmt.Errorf("failed to decode merkle proof: %w", err)
	}
	return &p, nil
}

func setBit(h *H256, height int) {
	h[height/8] |= 1 << (height % 8)
}

func hasBit(h H256, height int) bool {
	return (h[height/8]>>(height%8))&1 == 1
}

// queueItem is a subtree representative during the bottom-up replay.
type queueItem struct {
	key     H256
	height  int
	value   H256
	leafIdx int
}

// isSibling reports whether two nodes at the given height share a
// parent.
func isSibling(a, b H256, height int) bool {
	return clearBitsBelow(a, height+1) == clearBitsBelow(b, height+1)
}

// MerkleProof builds a proof for the given keys against the current
// tree. Absent keys are supported; their leaves verify with the zero
// digest (non-membership).
func (t *Tree) MerkleProof(keys []H256) (*Proof, error) {
	if len(keys) == 0 {
		return nil, ErrNoKeys
	}
	sorted := dedupSortKeys(keys)

	t.mu.RLock()
	defer t.mu.RUnlock()

	bitmap := make([]H256, len(sorted))
	var siblings []H256

	queue := make([]queueItem, 0, len(sorted))
	for i, k := range sorted {
		queue = append(queue, queueItem{key: k, height: 0, leafIdx: i})
	}

	for len(queue) > 0 {
		it := queue[0]
		queue = queue[1:]
		if it.height == TreeHeight {
			break
		}
		if len(queue) > 0 && queue[0].height == it.height && isSibling(it.key, queue[0].key, it.height) {
			// The sibling subtree carries proved keys of its own; the
			// verifier reconstructs it, so nothing is emitted here.
			queue = queue[1:]
		} else {
			sibKey := clearBitsBelow(it.key, it.height)
			sibKey[it.height/8] ^= 1 << (it.height % 8)
			if sib := t.subtreeRootLocked(sibKey, it.height); !sib.IsZero() {
				siblings = append(siblings, sib)
				setBit(&bitmap[it.leafIdx], it.height)
			}
		}
		queue = append(queue, queueItem{
			key:     clearBitsBelow(it.key, it.height+1),
			height:  it.height + 1,
			leafIdx: it.leafIdx,
		})
	}

	return &Proof{LeavesBitmap: bitmap, Siblings: siblings}, nil
}

// ComputeRoot replays the proof against the given leaves and returns the
// root they commit to. Leaves may be supplied in any order; they are
// matched to bitmaps by key order.
func (p *Proof) ComputeRoot(leaves []Leaf) (H256, error) {
	if len(leaves) == 0 {
		return Zero, ErrNoKeys
	}
	sorted := sortLeaves(leaves)
	if len(sorted) != len(p.LeavesBitmap) {
		return Zero, ErrProofLeafCount
	}

	queue := make([]queueItem, 0, len(sorted))
	for i, leaf := range sorted {
		queue = append(queue, queueItem{key: leaf.Key, height: 0, value: leaf.Hash, leafIdx: i})
	}

	sibIdx := 0
	for {
		it := queue[0]
		queue = queue[1:]
		if it.height == TreeHeight {
			if len(queue) != 0 || sibIdx != len(p.Siblings) {
				return Zero, ErrProofCorrupted
			}
			return it.value, nil
		}

		var sibling H256
		if len(queue) > 0 && queue[0].height == it.height && isSibling(it.key, queue[0].key, it.height) {
			sibling = queue[0].value
			queue = queue[1:]
		} else if hasBit(p.LeavesBitmap[it.leafIdx], it.height) {
			if sibIdx >= len(p.Siblings) {
				return Zero, ErrProofCorrupted
			}
			sibling = p.Siblings[sibIdx]
			sibIdx++
		}

		var parent H256
		if getBit(it.key, it.height) == 0 {
			parent = merge(it.value, sibling)
		} else {
			parent = merge(sibling, it.value)
		}
		queue = append(queue, queueItem{
			key:     clearBitsBelow(it.key, it.height+1),
			height:  it.height + 1,
			value:   parent,
			leafIdx: it.leafIdx,
		})
	}
}

// Verify checks the proof binds the given leaves to the claimed root.
func (p *Proof) Verify(root H256, leaves []Leaf) (bool, error) {
	computed, err := p.ComputeRoot(leaves)
	if err != nil {
		return false, err
	}
	return computed == root, nil
}

// dedupSortKeys returns the keys sorted as little-endian integers with
// duplicates removed.
func dedupSortKeys(keys []H256) []H256 {
	out := make([]H256, len(keys))
	copy(out, keys)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && cmpKeys(out[j], out[j-1]) < 0; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	dedup := out[:0]
	for i, k := range out {
		if i == 0 || k != out[i-1] {
			dedup = append(dedup, k)
		}
	}
	return dedup
}
