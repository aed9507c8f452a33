package spv

import (
	"crypto/sha256"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// verifyMerkleProof folds a leaf up a proof of concatenated 32-byte
// sibling hashes and compares the result against the expected root. The
// index selects left/right placement at each level; it must be fully
// consumed by the proof depth.
func verifyMerkleProof(leaf, root chainhash.Hash, proof []byte, index uint32) bool {
	if len(proof)%chainhash.HashSize != 0 {
		return false
	}

	current := leaf
	idx := index
	for offset := 0; offset < len(proof); offset += chainhash.HashSize {
		sibling := proof[offset : offset+chainhash.HashSize]
		var pair [2 * chainhash.HashSize]byte
		if idx&1 == 1 {
			copy(pair[:chainhash.HashSize], sibling)
			copy(pair[chainhash.HashSize:], current[:])
		} else {
			copy(pair[:chainhash.HashSize], current[:])
			copy(pair[chainhash.HashSize:], sibling)
		}
		current = chainhash.DoubleHashH(pair[:])
		idx >>= 1
	}

	// A non-zero remainder means the claimed index lies outside the tree
	// the proof describes.
	return idx == 0 && current == root
}

// coinbaseLeaf completes the double-SHA256 of a coinbase transaction from
// its single-SHA256 preimage. Callers supply the preimage rather than the
// full coinbase to keep proofs small.
func coinbaseLeaf(preimage [sha256.Size]byte) chainhash.Hash {
	return chainhash.Hash(sha256.Sum256(preimage[:]))
}
