package spv

import (
	"bytes"
	"math/big"

	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/wire"
)

// HeaderLen is the serialized length of a Bitcoin block header.
const HeaderLen = 80

// parseHeaders splits a concatenation of 80-byte headers into wire block
// headers. Rejections carry the verifier taxonomy codes.
func parseHeaders(raw []byte) ([]wire.BlockHeader, error) {
	if len(raw) == 0 {
		return nil, proofErr(CodeEmptyHeaderChain)
	}
	if len(raw)%HeaderLen != 0 {
		return nil, proofErr(CodeBadHeaderLength)
	}

	headers := make([]wire.BlockHeader, len(raw)/HeaderLen)
	for i := range headers {
		r := bytes.NewReader(raw[i*HeaderLen : (i+1)*HeaderLen])
		if err := headers[i].Deserialize(r); err != nil {
			return nil, proofErr(CodeBadHeaderChain)
		}
	}

	return headers, nil
}

// headerWork returns the expected number of hashes needed to satisfy the
// header's compact target, the measure the relay reports epoch
// difficulties in.
func headerWork(h *wire.BlockHeader) *big.Int {
	return blockchain.CalcWork(h.Bits)
}

// validateHeaderChain checks that raw encodes a well-formed, internally
// linked header chain in which every header meets its own proof-of-work
// target, and returns the accumulated work of the chain.
func validateHeaderChain(raw []byte) (*big.Int, error) {
	headers, err := parseHeaders(raw)
	if err != nil {
		return nil, err
	}

	accumulated := new(big.Int)
	for i := range headers {
		h := &headers[i]

		if i > 0 {
			prevHash := headers[i-1].BlockHash()
			if h.PrevBlock != prevHash {
				return nil, proofErr(CodeBadHeaderChain)
			}
		}

		target := blockchain.CompactToBig(h.Bits)
		if target.Sign() <= 0 {
			return nil, proofErr(CodeBadHeaderChain)
		}

		hash := h.BlockHash()
		if blockchain.HashToBig(&hash).Cmp(target) > 0 {
			return nil, proofErr(CodeInsufficientWork)
		}

		accumulated.Add(accumulated, headerWork(h))
	}

	return accumulated, nil
}
