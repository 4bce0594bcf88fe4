package merkle

import (
	"errors"
	"slices"
)

// ErrLeafNotFound is returned when a proof is requested for a leaf the tree does not hold.
var ErrLeafNotFound = errors.New("merkle: leaf not found")

// Tree is an immutable binary Merkle tree over sorted, unique leaves. Parents hash their
// children in ascending byte order and an unpaired node is promoted to the next layer as is.
type Tree struct {
	layers [][]Hash
	index  map[Hash]int
}

// New builds a tree. The input slice is copied so callers may reuse it.
func New(leaves []Hash) *Tree {
	base := slices.Clone(leaves)
	slices.SortFunc(base, Hash.Compare)
	base = slices.Compact(base)

	index := make(map[Hash]int, len(base))
	for i, l := range base {
		index[l] = i
	}

	layers := [][]Hash{base}
	for cur := base; len(cur) > 1; {
		next := make([]Hash, 0, (len(cur)+1)/2)
		for i := 0; i < len(cur); i += 2 {
			if i+1 == len(cur) {
				next = append(next, cur[i])
				continue
			}
			next = append(next, HashPair(cur[i], cur[i+1]))
		}
		layers = append(layers, next)
		cur = next
	}
	return &Tree{layers: layers, index: index}
}

// Root returns EmptyRoot for a tree without leaves.
func (t *Tree) Root() Hash {
	top := t.layers[len(t.layers)-1]
	if len(top) == 0 {
		return EmptyRoot
	}
	return top[0]
}

// Width is the number of distinct leaves.
func (t *Tree) Width() int { return len(t.layers[0]) }

// Height is the number of layers, leaves included. An empty tree has height 1.
func (t *Tree) Height() int { return len(t.layers) }

// Leaves returns a copy of the sorted leaf layer.
func (t *Tree) Leaves() []Hash { return slices.Clone(t.layers[0]) }

func (t *Tree) Contains(leaf Hash) bool {
	_, ok := t.index[leaf]
	return ok
}

// Proof returns the sibling path from leaf to the root. Layers where the node was promoted
// without a sibling contribute nothing.
func (t *Tree) Proof(leaf Hash) ([]Hash, error) {
	idx, ok := t.index[leaf]
	if !ok {
		return nil, ErrLeafNotFound
	}
	proof := make([]Hash, 0, len(t.layers)-1)
	for _, layer := range t.layers[:len(t.layers)-1] {
		sibling := idx ^ 1
		if sibling < len(layer) {
			proof = append(proof, layer[sibling])
		}
		idx /= 2
	}
	return proof, nil
}

// Verify folds proof over leaf and compares the result with root.
func Verify(proof []Hash, root, leaf Hash) bool {
	computed := leaf
	for _, p := range proof {
		computed = HashPair(computed, p)
	}
	return computed == root
}
