package types

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// OperationType identifies the kind of state transition a watchdog is
// authorizing on behalf of the custodial-reserve protocol.
type OperationType uint8

const (
	OperationReserveAttestation OperationType = iota
	OperationWalletRegistration
	OperationStatusChange
	OperationRedemptionFulfillment

	numOperationTypes
)

func (t OperationType) Valid() bool {
	return t < numOperationTypes
}

// RequiresPaymentProof reports whether executing an operation of this type
// is gated on an SPV proof that a claimed Bitcoin payment occurred.
func (t OperationType) RequiresPaymentProof() bool {
	return t == OperationWalletRegistration || t == OperationRedemptionFulfillment
}

func (t OperationType) String() string {
	switch t {
	case OperationReserveAttestation:
		return "reserve_attestation"
	case OperationWalletRegistration:
		return "wallet_registration"
	case OperationStatusChange:
		return "status_change"
	case OperationRedemptionFulfillment:
		return "redemption_fulfillment"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

// OperationID is the content-derived fingerprint of a logical request.
type OperationID [chainhash.HashSize]byte

// NewOperationID derives the identity of an operation from its type, the
// proposing watchdog, a caller-chosen disambiguator and the opaque payload.
// Two submissions agree on the ID iff they describe the same request.
func NewOperationID(opType OperationType, proposer []byte, nonce uint64, data []byte) OperationID {
	buf := make([]byte, 0, 1+len(proposer)+8+len(data))
	buf = append(buf, byte(opType))
	buf = append(buf, proposer...)
	buf = binary.BigEndian.AppendUint64(buf, nonce)
	buf = append(buf, data...)

	return OperationID(chainhash.DoubleHashH(buf))
}

func (id OperationID) String() string {
	return hex.EncodeToString(id[:])
}

func OperationIDFromBytes(b []byte) (OperationID, error) {
	var id OperationID
	if len(b) != chainhash.HashSize {
		return id, fmt.Errorf("invalid operation id length: %d", len(b))
	}
	copy(id[:], b)

	return id, nil
}

// Operation is a single entry in the optimistic operation ledger.
type Operation struct {
	ID   OperationID
	Type OperationType
	// Data is the opaque encoded payload, interpreted only by the
	// executor (and the proof verifier for proof-gated types).
	Data []byte
	// Proposer is the x-only serialized public key of the primary
	// validator that submitted the operation.
	Proposer []byte
	Nonce    uint64

	SubmittedAt time.Time
	// FinalizeAt is the absolute time after which execution is permitted.
	// Reset from the moment of each challenge, not from submission.
	FinalizeAt time.Time

	ObjectionCount  uint32
	EscalationLevel uint8
	Challenged      bool

	Executed    bool
	ExecutedAt  time.Time
	ExecutionOK bool
}

// Challenge is a recorded objection by a watchdog against a pending
// operation. At most one per (operation, challenger) pair.
type Challenge struct {
	// Challenger is the x-only serialized public key of the objecting
	// watchdog.
	Challenger  []byte
	Evidence    []byte
	SubmittedAt time.Time
}

// RedemptionStatus mirrors the redemption bookkeeping states of the
// custodial ledger, as far as the proof verifier needs to know them.
type RedemptionStatus uint8

const (
	RedemptionPending RedemptionStatus = iota
	RedemptionFulfilled
	RedemptionDefaulted
)
