// Package merkle implements the balanced binary Merkle tree used both by
// the Aggregator's auxiliary prefix-sum index (§4.2) and the Availability
// layer's chunk commitment (§4.5), with domain-separated leaf/node hashing
// at the full 32-byte digest §6 specifies.
package merkle

import (
	"bytes"
	"fmt"

	"golang.org/x/crypto/sha3"

	"archimedes/internal/measure"
)

const (
	leafPrefix byte = 0x00
	nodePrefix byte = 0x01
)

// Digest is a 32-byte tree node hash.
type Digest [32]byte

// Tree is a full binary Merkle tree over 32-byte digests. Leaves are padded
// with a fixed sentinel out to the next power of two, so any n ≥ 1 leaves
// produce a well-formed tree.
type Tree struct {
	layers [][]Digest
}

// Build hashes each entry in leaves under the leaf domain tag, pads to the
// next power of two with the sentinel hash(leafPrefix), and folds layers up
// to a single root under the node domain tag.
func Build(leaves [][]byte) *Tree {
	measure.Global.Add("merkle.Build.calls", 1)
	n := len(leaves)
	size := 1
	for size < n {
		size <<= 1
	}
	if size == 0 {
		size = 1
	}
	layer := make([]Digest, size)
	for i := 0; i < n; i++ {
		layer[i] = hashLeaf(leaves[i])
	}
	sentinel := hashLeaf(nil)
	for i := n; i < size; i++ {
		layer[i] = sentinel
	}
	layers := [][]Digest{layer}

	for sz := size; sz > 1; sz >>= 1 {
		prev := layers[len(layers)-1]
		next := make([]Digest, sz/2)
		for i := 0; i < sz; i += 2 {
			next[i/2] = hashNode(prev[i], prev[i+1])
		}
		layers = append(layers, next)
	}
	return &Tree{layers: layers}
}

// Root returns the tree root. Build always produces at least one layer, so
// Root is defined for every non-nil Tree.
func (t *Tree) Root() Digest {
	return t.layers[len(t.layers)-1][0]
}

// Depth is the number of sibling hashes in a Path, i.e. log2 of the padded
// leaf count.
func (t *Tree) Depth() int {
	return len(t.layers) - 1
}

// Path returns the sibling hashes from leaf idx up to (but not including)
// the root, one per layer.
func (t *Tree) Path(idx int) ([]Digest, error) {
	if idx < 0 || idx >= len(t.layers[0]) {
		return nil, fmt.Errorf("merkle: leaf index %d out of range [0,%d)", idx, len(t.layers[0]))
	}
	path := make([]Digest, t.Depth())
	for lvl := 0; lvl < t.Depth(); lvl++ {
		sib := idx ^ 1
		path[lvl] = t.layers[lvl][sib]
		idx >>= 1
	}
	return path, nil
}

// VerifyPath recomputes the root from leaf, its sibling path, and its
// index, and compares it against root. It runs in time linear in the path
// length regardless of where (or whether) a mismatch occurs.
func VerifyPath(leaf []byte, path []Digest, root Digest, idx int) bool {
	h := hashLeaf(leaf)
	for _, sib := range path {
		if idx&1 == 0 {
			h = hashNode(h, sib)
		} else {
			h = hashNode(sib, h)
		}
		idx >>= 1
	}
	return bytes.Equal(h[:], root[:])
}

func hashLeaf(data []byte) Digest {
	var out Digest
	x := sha3.NewShake256()
	x.Write([]byte{leafPrefix})
	x.Write(data)
	x.Read(out[:])
	return out
}

func hashNode(left, right Digest) Digest {
	var out Digest
	x := sha3.NewShake256()
	x.Write([]byte{nodePrefix})
	x.Write(left[:])
	x.Write(right[:])
	x.Read(out[:])
	return out
}
