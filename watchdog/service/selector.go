package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"

	"github.com/reservelabs/reserve-watchdog/types"
)

// ChainInfo supplies the coarse monotonic chain-time signal seeding
// proposer rotation. Block height is coarse enough that a submitter
// cannot cheaply re-roll selection for a specific payload.
type ChainInfo interface {
	BestHeight() (uint64, error)
}

// selectPrimaryValidator deterministically maps (type, payload, height)
// to an index into the key-ordered active roster. Repeated calls with
// identical inputs and an unchanged roster yield the same watchdog;
// selection rotates when the chain height advances.
func (e *Engine) selectPrimaryValidator(opType types.OperationType, data []byte) (validator []byte, height uint64, err error) {
	height, err = e.chain.BestHeight()
	if err != nil {
		return nil, 0, err
	}

	roster, err := e.roster.List()
	if err != nil {
		return nil, 0, err
	}
	if len(roster) == 0 {
		return nil, 0, ErrNoActiveWatchdogs
	}

	// HMAC keyed by the payload spreads distinct payloads uniformly over
	// the roster even when heights are adjacent.
	mac := hmac.New(sha256.New, data)
	var msg [9]byte
	binary.BigEndian.PutUint64(msg[:8], height)
	msg[8] = byte(opType)
	mac.Write(msg[:])
	digest := mac.Sum(nil)

	idx := binary.BigEndian.Uint64(digest[:8]) % uint64(len(roster))

	return roster[idx], height, nil
}

// SelectPrimaryValidator returns the watchdog authorized to submit the
// given operation, emitting the selection event even for read-only
// queries.
func (e *Engine) SelectPrimaryValidator(opType types.OperationType, data []byte) ([]byte, error) {
	if !opType.Valid() {
		return nil, ErrInvalidOperationType
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	validator, height, err := e.selectPrimaryValidator(opType, data)
	if err != nil {
		return nil, err
	}

	e.emit(types.PrimaryValidatorSelected{
		Type:      opType,
		Height:    height,
		Validator: validator,
	})

	return validator, nil
}
