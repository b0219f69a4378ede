// Package merkle provides support for committing a block to the ordered set
// of messages it carries. The tree is built over the message content
// identifiers and can produce proofs of inclusion.
package merkle

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/minio/sha256-simd"
)

// ZeroRoot represents the root of a tree with no leaves. Blocks that carry no
// messages use this value.
const ZeroRoot string = "0x0000000000000000000000000000000000000000000000000000000000000000"

// Proof order values identify on which side a proof hash is concatenated.
const (
	ProofLeft  int64 = 0
	ProofRight int64 = 1
)

// =============================================================================

// Tree represents a merkle tree where levels[0] holds the hashed leaves and
// the last level holds the root.
type Tree struct {
	levels [][][]byte
}

// NewTree constructs a tree over the specified leaves. The order of the leaves
// is part of the root.
func NewTree(leaves [][]byte) (*Tree, error) {
	if len(leaves) == 0 {
		return nil, errors.New("cannot construct tree with no content")
	}

	level := make([][]byte, len(leaves))
	for i, leaf := range leaves {
		level[i] = hash(leaf)
	}

	t := Tree{levels: [][][]byte{level}}
	for len(level) > 1 {
		var next [][]byte
		for i := 0; i < len(level); i += 2 {
			left, right := i, i+1
			if right == len(level) {
				right = i
			}
			next = append(next, hash(level[left], level[right]))
		}

		t.levels = append(t.levels, next)
		level = next
	}

	return &t, nil
}

// Root returns the root hash of the tree.
func (t *Tree) Root() []byte {
	return t.levels[len(t.levels)-1][0]
}

// RootHex returns the hex encoded root hash of the tree.
func (t *Tree) RootHex() string {
	return hexutil.Encode(t.Root())
}

// Proof returns the set of hashes and the order of concatenating those
// hashes for proving the leaf at the specified index is in the tree. An order
// of ProofLeft means the proof hash comes first.
func (t *Tree) Proof(index int) ([][]byte, []int64, error) {
	if index < 0 || index >= len(t.levels[0]) {
		return nil, nil, fmt.Errorf("leaf index %d out of range", index)
	}

	var proof [][]byte
	var order []int64
	for _, level := range t.levels[:len(t.levels)-1] {
		switch {
		case index%2 == 1:
			proof = append(proof, level[index-1])
			order = append(order, ProofLeft)

		case index+1 < len(level):
			proof = append(proof, level[index+1])
			order = append(order, ProofRight)

		default:
			proof = append(proof, level[index])
			order = append(order, ProofRight)
		}

		index /= 2
	}

	return proof, order, nil
}

// =============================================================================

// RootHex calculates the hex encoded root for the specified leaves. When
// there are no leaves, ZeroRoot is returned.
func RootHex(leaves [][]byte) string {
	if len(leaves) == 0 {
		return ZeroRoot
	}

	t, err := NewTree(leaves)
	if err != nil {
		return ZeroRoot
	}

	return t.RootHex()
}

// VerifyProof checks the leaf and proof produce the specified root.
func VerifyProof(root []byte, leaf []byte, proof [][]byte, order []int64) bool {
	if len(proof) != len(order) {
		return false
	}

	h := hash(leaf)
	for i, p := range proof {
		switch order[i] {
		case ProofLeft:
			h = hash(p, h)
		default:
			h = hash(h, p)
		}
	}

	return bytes.Equal(h, root)
}

// hash returns the sha256 of the concatenated values.
func hash(values ...[]byte) []byte {
	h := sha256.New()
	for _, v := range values {
		h.Write(v)
	}

	return h.Sum(nil)
}
