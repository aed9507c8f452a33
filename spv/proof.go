// Package spv validates that claimed Bitcoin-network facts are
// cryptographically true: that a transaction is included in a
// sufficiently worked-on header chain, and that it pays a given address
// at least a given amount. Verification is pure; the package mutates no
// engine state.
package spv

import (
	"crypto/sha256"
	"fmt"
	"math/big"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// DefaultDifficultyFactor is the accumulated-work requirement expressed
// as a multiple of one epoch difficulty, i.e. the number of confirming
// headers a proof must carry.
const DefaultDifficultyFactor = 6

// Proof is a single-use Merkle-inclusion proof bundle for one
// transaction. The coinbase proof pins the tree depth: a fake tree built
// from 64-byte leaves cannot produce a consistent coinbase branch of the
// same length.
type Proof struct {
	// MerkleProof is the concatenation of 32-byte intermediate hashes from
	// the transaction up to the block merkle root.
	MerkleProof []byte
	// TxIndexInBlock is the transaction's position in the block, used to
	// orient the proof.
	TxIndexInBlock uint32
	// BitcoinHeaders is a concatenation of 80-byte headers starting at
	// the block containing the transaction.
	BitcoinHeaders []byte
	// CoinbasePreimage is the single-SHA256 of the block's coinbase
	// transaction.
	CoinbasePreimage [sha256.Size]byte
	// CoinbaseProof is the coinbase transaction's branch up to the same
	// merkle root.
	CoinbaseProof []byte
}

// Verifier checks payment proofs against a difficulty relay.
type Verifier struct {
	relay            Relay
	chainParams      *chaincfg.Params
	difficultyFactor uint64
}

func NewVerifier(relay Relay, chainParams *chaincfg.Params, difficultyFactor uint64) *Verifier {
	if difficultyFactor == 0 {
		difficultyFactor = DefaultDifficultyFactor
	}

	return &Verifier{
		relay:            relay,
		chainParams:      chainParams,
		difficultyFactor: difficultyFactor,
	}
}

// ChainParams exposes the Bitcoin network the verifier decodes addresses
// for.
func (v *Verifier) ChainParams() *chaincfg.Params {
	return v.chainParams
}

// ValidateInclusionProof checks that the transaction described by txInfo
// is included in the block headed by the first supplied header, and that
// the header chain is linked, matches the relay's difficulty epochs and
// carries enough accumulated work. Rejections are ProofErrors carrying
// the taxonomy code of the first failed check.
func (v *Verifier) ValidateInclusionProof(txInfo *TxInfo, proof *Proof) error {
	if v.relay == nil {
		return proofErr(CodeRelayUnset)
	}

	if !validateInputVector(txInfo.InputVector) {
		return proofErr(CodeBadInputVector)
	}
	if !validateOutputVector(txInfo.OutputVector) {
		return proofErr(CodeBadOutputVector)
	}

	if len(proof.MerkleProof)%chainhash.HashSize != 0 ||
		len(proof.CoinbaseProof)%chainhash.HashSize != 0 {
		return proofErr(CodeBadProofLength)
	}
	if len(proof.MerkleProof) != len(proof.CoinbaseProof) {
		return proofErr(CodeProofDepthMismatch)
	}

	headers, err := parseHeaders(proof.BitcoinHeaders)
	if err != nil {
		return err
	}

	current, err := v.relay.CurrentEpochDifficulty()
	if err != nil {
		return fmt.Errorf("failed to query current epoch difficulty: %w", err)
	}
	prev, err := v.relay.PrevEpochDifficulty()
	if err != nil {
		return fmt.Errorf("failed to query previous epoch difficulty: %w", err)
	}

	for i := range headers {
		work := headerWork(&headers[i])
		if work.Cmp(current) != 0 && work.Cmp(prev) != 0 {
			return proofErr(CodeWrongDifficultyEpoch)
		}
	}

	accumulated, err := v.relay.ValidateHeaderChain(proof.BitcoinHeaders)
	if err != nil {
		if CodeOf(err) != 0 {
			return err
		}

		return proofErr(CodeBadHeaderChain)
	}

	required := new(big.Int).Mul(current, new(big.Int).SetUint64(v.difficultyFactor))
	if accumulated.Cmp(required) < 0 {
		return proofErr(CodeInsufficientChainWork)
	}

	root := headers[0].MerkleRoot
	if !verifyMerkleProof(txInfo.TxID(), root, proof.MerkleProof, proof.TxIndexInBlock) {
		return proofErr(CodeBadMerkleProof)
	}
	if !verifyMerkleProof(coinbaseLeaf(proof.CoinbasePreimage), root, proof.CoinbaseProof, 0) {
		return proofErr(CodeBadCoinbaseProof)
	}

	return nil
}
