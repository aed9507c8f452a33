package service

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/btcsuite/btcd/btcutil"

	"github.com/reservelabs/reserve-watchdog/spv"
	"github.com/reservelabs/reserve-watchdog/types"
)

// Executor performs the actual business effect once an operation is
// authorized to run. The engine routes by operation type and records the
// boolean outcome; it neither retries nor interprets failures.
type Executor interface {
	Execute(opType types.OperationType, data []byte) bool
}

// RegisterExecutor binds an executor to an operation type, replacing any
// previous binding. Wire executors up before serving.
func (e *Engine) RegisterExecutor(opType types.OperationType, ex Executor) {
	e.executors[opType] = ex
}

// PaymentProof is the single-use SPV bundle supplied when executing a
// proof-gated operation.
type PaymentProof struct {
	TxInfo *spv.TxInfo
	Proof  *spv.Proof
}

// PaymentClaim is the leading portion of a proof-gated operation's
// payload: the Bitcoin address and minimum amount the proving transaction
// must pay. The remainder of the payload stays opaque to the engine.
type PaymentClaim struct {
	Address string
	Amount  btcutil.Amount
}

// EncodePaymentClaim prefixes an opaque payload with a payment claim.
func EncodePaymentClaim(claim PaymentClaim, rest []byte) []byte {
	buf := make([]byte, 0, 2+len(claim.Address)+8+len(rest))
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(claim.Address)))
	buf = append(buf, claim.Address...)
	buf = binary.BigEndian.AppendUint64(buf, uint64(claim.Amount))
	buf = append(buf, rest...)

	return buf
}

// DecodePaymentClaim extracts the payment claim from a proof-gated
// payload.
func DecodePaymentClaim(data []byte) (PaymentClaim, error) {
	r := bytes.NewReader(data)

	var lenBuf [2]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return PaymentClaim{}, fmt.Errorf("failed to read address length: %w", err)
	}
	addrLen := binary.BigEndian.Uint16(lenBuf[:])
	if addrLen == 0 || int(addrLen) > r.Len() {
		return PaymentClaim{}, fmt.Errorf("invalid address length %d", addrLen)
	}

	addr := make([]byte, addrLen)
	if _, err := io.ReadFull(r, addr); err != nil {
		return PaymentClaim{}, err
	}

	var amountBuf [8]byte
	if _, err := io.ReadFull(r, amountBuf[:]); err != nil {
		return PaymentClaim{}, fmt.Errorf("failed to read amount: %w", err)
	}

	return PaymentClaim{
		Address: string(addr),
		Amount:  btcutil.Amount(binary.BigEndian.Uint64(amountBuf[:])),
	}, nil
}
