package econ

import (
	"errors"

	"github.com/nodalync/node/crypto"
)

// ErrNoLeaves is returned by BuildTree/Proof when given an empty leaf set.
var ErrNoLeaves = errors.New("econ: no leaves")

// BuildTree returns the level-by-level hashes of a balanced Merkle tree over
// leaves, adapted from core/merkle_tree_operations.go: leaves are hashed with
// crypto.ContentHash, internal nodes combine children with
// crypto.MerkleNodeHash's domain-separated construction, and — unlike the
// teacher, which duplicates a level's last node when its length is odd — an
// odd node here is promoted unchanged to the next level (spec.md §4.5), so a
// lone entry's hash never gets silently self-paired.
func BuildTree(leaves [][]byte) ([][]crypto.Hash, error) {
	if len(leaves) == 0 {
		return nil, ErrNoLeaves
	}

	level := make([]crypto.Hash, len(leaves))
	for i, l := range leaves {
		level[i] = crypto.ContentHash(l)
	}
	tree := [][]crypto.Hash{level}

	for len(level) > 1 {
		next := make([]crypto.Hash, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			if i+1 < len(level) {
				next = append(next, crypto.MerkleNodeHash(level[i].Bytes(), level[i+1].Bytes()))
			} else {
				next = append(next, level[i])
			}
		}
		tree = append(tree, next)
		level = next
	}
	return tree, nil
}

// Root returns BuildTree's top-level hash.
func Root(leaves [][]byte) (crypto.Hash, error) {
	tree, err := BuildTree(leaves)
	if err != nil {
		return crypto.Hash{}, err
	}
	return tree[len(tree)-1][0], nil
}

// proofStep is one hop of a Merkle proof: the sibling hash, and whether a
// sibling exists (false when the node was promoted unchanged at this level,
// so nothing to hash).
type proofStep struct {
	sibling    crypto.Hash
	hasSibling bool
}

// Proof returns an inclusion proof for the leaf at index, ordered from leaf
// level upward, plus the tree root.
func Proof(leaves [][]byte, index int) ([]proofStep, crypto.Hash, error) {
	if len(leaves) == 0 {
		return nil, crypto.Hash{}, ErrNoLeaves
	}
	if index < 0 || index >= len(leaves) {
		return nil, crypto.Hash{}, errors.New("econ: index out of range")
	}

	tree, err := BuildTree(leaves)
	if err != nil {
		return nil, crypto.Hash{}, err
	}

	var proof []proofStep
	idx := index
	for lvl := 0; lvl < len(tree)-1; lvl++ {
		level := tree[lvl]
		if idx%2 == 0 {
			if idx+1 < len(level) {
				proof = append(proof, proofStep{sibling: level[idx+1], hasSibling: true})
			} else {
				proof = append(proof, proofStep{hasSibling: false})
			}
		} else {
			proof = append(proof, proofStep{sibling: level[idx-1], hasSibling: true})
		}
		idx /= 2
	}
	root := tree[len(tree)-1][0]
	return proof, root, nil
}

// VerifyProof reconstructs the root from leaf, index and proof and compares
// it against root.
func VerifyProof(root crypto.Hash, leaf []byte, proof []proofStep, index int) bool {
	hash := crypto.ContentHash(leaf)
	for _, step := range proof {
		if !step.hasSibling {
			// odd node promoted unchanged; hash carries forward as-is.
			index /= 2
			continue
		}
		if index%2 == 0 {
			hash = crypto.MerkleNodeHash(hash.Bytes(), step.sibling.Bytes())
		} else {
			hash = crypto.MerkleNodeHash(step.sibling.Bytes(), hash.Bytes())
		}
		index /= 2
	}
	return hash == root
}
