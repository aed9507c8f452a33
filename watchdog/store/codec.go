package store

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"github.com/reservelabs/reserve-watchdog/types"
)

// Records are small and fixed in layout, so they are encoded by hand in
// big-endian field order rather than through a codegen framework.

const maxRecordFieldLen = 1 << 20

func writeBytes(w *bytes.Buffer, b []byte) {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(b)))
	w.Write(lenBuf[:])
	w.Write(b)
}

func readBytes(r *bytes.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n > maxRecordFieldLen {
		return nil, fmt.Errorf("record field too long: %d", n)
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}

	return b, nil
}

func writeUint64(w *bytes.Buffer, v uint64) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	w.Write(buf[:])
}

func readUint64(r *bytes.Reader) (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}

	return binary.BigEndian.Uint64(buf[:]), nil
}

func writeUint32(w *bytes.Buffer, v uint32) {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], v)
	w.Write(buf[:])
}

func readUint32(r *bytes.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}

	return binary.BigEndian.Uint32(buf[:]), nil
}

func writeBool(w *bytes.Buffer, v bool) {
	if v {
		w.WriteByte(1)
	} else {
		w.WriteByte(0)
	}
}

func readBool(r *bytes.Reader) (bool, error) {
	b, err := r.ReadByte()
	if err != nil {
		return false, err
	}

	return b != 0, nil
}

func writeTime(w *bytes.Buffer, t time.Time) {
	if t.IsZero() {
		writeUint64(w, 0)

		return
	}
	writeUint64(w, uint64(t.UnixNano()))
}

func readTime(r *bytes.Reader) (time.Time, error) {
	v, err := readUint64(r)
	if err != nil {
		return time.Time{}, err
	}
	if v == 0 {
		return time.Time{}, nil
	}

	return time.Unix(0, int64(v)).UTC(), nil
}

func marshalOperation(op *types.Operation) []byte {
	var buf bytes.Buffer
	buf.WriteByte(byte(op.Type))
	writeBytes(&buf, op.Data)
	writeBytes(&buf, op.Proposer)
	writeUint64(&buf, op.Nonce)
	writeTime(&buf, op.SubmittedAt)
	writeTime(&buf, op.FinalizeAt)
	writeUint32(&buf, op.ObjectionCount)
	buf.WriteByte(op.EscalationLevel)
	writeBool(&buf, op.Challenged)
	writeBool(&buf, op.Executed)
	writeTime(&buf, op.ExecutedAt)
	writeBool(&buf, op.ExecutionOK)

	return buf.Bytes()
}

func unmarshalOperation(id types.OperationID, b []byte) (*types.Operation, error) {
	r := bytes.NewReader(b)
	op := &types.Operation{ID: id}

	opType, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	op.Type = types.OperationType(opType)

	if op.Data, err = readBytes(r); err != nil {
		return nil, err
	}
	if op.Proposer, err = readBytes(r); err != nil {
		return nil, err
	}
	if op.Nonce, err = readUint64(r); err != nil {
		return nil, err
	}
	if op.SubmittedAt, err = readTime(r); err != nil {
		return nil, err
	}
	if op.FinalizeAt, err = readTime(r); err != nil {
		return nil, err
	}
	if op.ObjectionCount, err = readUint32(r); err != nil {
		return nil, err
	}
	if op.EscalationLevel, err = r.ReadByte(); err != nil {
		return nil, err
	}
	if op.Challenged, err = readBool(r); err != nil {
		return nil, err
	}
	if op.Executed, err = readBool(r); err != nil {
		return nil, err
	}
	if op.ExecutedAt, err = readTime(r); err != nil {
		return nil, err
	}
	if op.ExecutionOK, err = readBool(r); err != nil {
		return nil, err
	}

	return op, nil
}

func marshalChallenge(c *types.Challenge) []byte {
	var buf bytes.Buffer
	writeBytes(&buf, c.Challenger)
	writeBytes(&buf, c.Evidence)
	writeTime(&buf, c.SubmittedAt)

	return buf.Bytes()
}

func unmarshalChallenge(b []byte) (*types.Challenge, error) {
	r := bytes.NewReader(b)
	c := &types.Challenge{}

	var err error
	if c.Challenger, err = readBytes(r); err != nil {
		return nil, err
	}
	if c.Evidence, err = readBytes(r); err != nil {
		return nil, err
	}
	if c.SubmittedAt, err = readTime(r); err != nil {
		return nil, err
	}

	return c, nil
}

func marshalParams(p *types.ConsensusParams) []byte {
	var buf bytes.Buffer
	writeUint32(&buf, p.Threshold)
	writeUint64(&buf, uint64(p.BasePeriod))
	for _, d := range p.EscalationDelays {
		writeUint64(&buf, uint64(d))
	}
	for _, t := range p.EscalationThresholds {
		writeUint32(&buf, t)
	}

	return buf.Bytes()
}

func unmarshalParams(b []byte) (*types.ConsensusParams, error) {
	r := bytes.NewReader(b)
	p := &types.ConsensusParams{}

	var err error
	if p.Threshold, err = readUint32(r); err != nil {
		return nil, err
	}
	base, err := readUint64(r)
	if err != nil {
		return nil, err
	}
	p.BasePeriod = time.Duration(base)
	for i := range p.EscalationDelays {
		d, err := readUint64(r)
		if err != nil {
			return nil, err
		}
		p.EscalationDelays[i] = time.Duration(d)
	}
	for i := range p.EscalationThresholds {
		if p.EscalationThresholds[i], err = readUint32(r); err != nil {
			return nil, err
		}
	}

	return p, nil
}
