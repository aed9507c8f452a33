package spv

import "fmt"

// ProofCode enumerates the distinct rejection conditions of the proof
// verifier. Codes are stable and suitable for audit-log correlation.
type ProofCode uint8

const (
	CodeRelayUnset            ProofCode = 1
	CodeBadInputVector        ProofCode = 2
	CodeBadOutputVector       ProofCode = 3
	CodeProofDepthMismatch    ProofCode = 4
	CodeBadMerkleProof        ProofCode = 5
	CodeBadCoinbaseProof      ProofCode = 6
	CodeEmptyHeaderChain      ProofCode = 7
	CodeWrongDifficultyEpoch  ProofCode = 8
	CodeBadHeaderChain        ProofCode = 9
	CodeInsufficientWork      ProofCode = 10
	CodeInsufficientChainWork ProofCode = 11
	CodeBadHeaderLength       ProofCode = 12
	CodePaymentNotFound       ProofCode = 13
	CodeBadAddress            ProofCode = 14
	CodeBadTransactionShape   ProofCode = 15
	CodeBadProofLength        ProofCode = 16
)

func (c ProofCode) String() string {
	switch c {
	case CodeRelayUnset:
		return "relay not configured"
	case CodeBadInputVector:
		return "malformed input vector"
	case CodeBadOutputVector:
		return "malformed output vector"
	case CodeProofDepthMismatch:
		return "tx and coinbase proof depth mismatch"
	case CodeBadMerkleProof:
		return "invalid transaction merkle proof"
	case CodeBadCoinbaseProof:
		return "invalid coinbase merkle proof"
	case CodeEmptyHeaderChain:
		return "empty header chain"
	case CodeWrongDifficultyEpoch:
		return "header difficulty not current or previous epoch"
	case CodeBadHeaderChain:
		return "invalid header chain"
	case CodeInsufficientWork:
		return "insufficient work in header"
	case CodeInsufficientChainWork:
		return "insufficient accumulated chain work"
	case CodeBadHeaderLength:
		return "header chain not a multiple of 80 bytes"
	case CodePaymentNotFound:
		return "no output pays the requested address and amount"
	case CodeBadAddress:
		return "undecodable address"
	case CodeBadTransactionShape:
		return "invalid transaction shape"
	case CodeBadProofLength:
		return "merkle proof not a multiple of 32 bytes"
	default:
		return "unknown proof failure"
	}
}

// ProofError is a verifier rejection carrying its taxonomy code.
type ProofError struct {
	Code ProofCode
}

func (e *ProofError) Error() string {
	return fmt.Sprintf("spv: %s (code %d)", e.Code, e.Code)
}

func proofErr(code ProofCode) error {
	return &ProofError{Code: code}
}

// CodeOf extracts the taxonomy code from a verifier error, or 0 if err is
// not a ProofError.
func CodeOf(err error) ProofCode {
	if pe, ok := err.(*ProofError); ok {
		return pe.Code
	}

	return 0
}
