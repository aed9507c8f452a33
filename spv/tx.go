package spv

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	"github.com/reservelabs/reserve-watchdog/types"
)

const (
	// MaxTxSize bounds the serialized transaction accepted for shape
	// validation (DoS bound).
	MaxTxSize = 100 * 1024

	// MaxTxOutputs bounds the number of outputs accepted for shape
	// validation (DoS bound).
	MaxTxOutputs = 10

	// LocktimeTolerance is how far beyond current time a timestamp
	// locktime may point before the transaction is rejected as a replay
	// risk.
	LocktimeTolerance = 2 * time.Hour

	// locktimeThreshold is the value below which a Bitcoin locktime is a
	// block height rather than a unix timestamp.
	locktimeThreshold = 500_000_000

	outpointSize = chainhash.HashSize + 4
)

// TxInfo carries a raw Bitcoin transaction split into the four fields the
// verifier operates on, each encoded exactly as the Bitcoin network
// serializes raw transactions: the vectors keep their leading varint
// element counts.
type TxInfo struct {
	Version      uint32
	InputVector  []byte
	OutputVector []byte
	Locktime     uint32
}

// Serialize re-assembles the legacy (non-witness) wire encoding.
func (t *TxInfo) Serialize() []byte {
	buf := make([]byte, 0, 8+len(t.InputVector)+len(t.OutputVector))
	buf = binary.LittleEndian.AppendUint32(buf, t.Version)
	buf = append(buf, t.InputVector...)
	buf = append(buf, t.OutputVector...)
	buf = binary.LittleEndian.AppendUint32(buf, t.Locktime)

	return buf
}

// TxID returns the double-SHA256 hash of the serialized transaction.
func (t *TxInfo) TxID() chainhash.Hash {
	return chainhash.DoubleHashH(t.Serialize())
}

// SerializedSize is the byte length of the wire encoding.
func (t *TxInfo) SerializedSize() int {
	return 8 + len(t.InputVector) + len(t.OutputVector)
}

// validateInputVector checks that the vector is a well-formed varint-
// prefixed sequence of transaction inputs consuming the buffer exactly.
func validateInputVector(vector []byte) bool {
	r := bytes.NewReader(vector)
	count, err := wire.ReadVarInt(r, 0)
	if err != nil || count == 0 {
		return false
	}

	for i := uint64(0); i < count; i++ {
		// outpoint
		if r.Len() < outpointSize {
			return false
		}
		if _, err := io.CopyN(io.Discard, r, outpointSize); err != nil {
			return false
		}
		scriptLen, err := wire.ReadVarInt(r, 0)
		if err != nil || scriptLen > MaxTxSize || scriptLen+4 > uint64(r.Len()) {
			return false
		}
		// signature script + sequence
		if _, err := io.CopyN(io.Discard, r, int64(scriptLen)+4); err != nil {
			return false
		}
	}

	return r.Len() == 0
}

// validateOutputVector checks that the vector is a well-formed varint-
// prefixed sequence of transaction outputs consuming the buffer exactly.
func validateOutputVector(vector []byte) bool {
	outs, err := parseOutputs(vector)

	return err == nil && len(outs) > 0
}

// parseOutputs decodes the varint-prefixed output vector into wire TxOuts.
func parseOutputs(vector []byte) ([]*wire.TxOut, error) {
	r := bytes.NewReader(vector)
	count, err := wire.ReadVarInt(r, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to read output count: %w", err)
	}
	if count == 0 {
		return nil, fmt.Errorf("empty output vector")
	}

	outs := make([]*wire.TxOut, 0, count)
	for i := uint64(0); i < count; i++ {
		var value [8]byte
		if _, err := io.ReadFull(r, value[:]); err != nil {
			return nil, fmt.Errorf("failed to read output value: %w", err)
		}
		scriptLen, err := wire.ReadVarInt(r, 0)
		if err != nil {
			return nil, fmt.Errorf("failed to read script length: %w", err)
		}
		if scriptLen > uint64(r.Len()) {
			return nil, fmt.Errorf("script length %d exceeds remaining %d bytes", scriptLen, r.Len())
		}
		script := make([]byte, scriptLen)
		if _, err := io.ReadFull(r, script); err != nil {
			return nil, err
		}

		outs = append(outs, &wire.TxOut{
			Value:    int64(binary.LittleEndian.Uint64(value[:])),
			PkScript: script,
		})
	}

	if r.Len() != 0 {
		return nil, fmt.Errorf("%d trailing bytes after output vector", r.Len())
	}

	return outs, nil
}

// ValidateTxShape applies the structural and anti-abuse checks required
// before a redemption-fulfilling transaction may be considered at all.
// It never returns an error; an unacceptable transaction yields false.
func (v *Verifier) ValidateTxShape(status types.RedemptionStatus, txInfo *TxInfo, now time.Time) bool {
	if status != types.RedemptionPending {
		return false
	}
	if txInfo == nil || len(txInfo.InputVector) == 0 || len(txInfo.OutputVector) == 0 {
		return false
	}
	if !validateInputVector(txInfo.InputVector) || !validateOutputVector(txInfo.OutputVector) {
		return false
	}
	if txInfo.SerializedSize() > MaxTxSize {
		return false
	}

	outs, err := parseOutputs(txInfo.OutputVector)
	if err != nil || len(outs) > MaxTxOutputs {
		return false
	}

	// A timestamp locktime far in the future could be replayed against a
	// later redemption; heights are not subject to the check.
	if txInfo.Locktime >= locktimeThreshold {
		if int64(txInfo.Locktime) > now.Add(LocktimeTolerance).Unix() {
			return false
		}
	}

	return txInfo.Version == 1 || txInfo.Version == 2
}
