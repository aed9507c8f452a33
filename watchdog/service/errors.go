package service

import (
	"errors"

	"github.com/reservelabs/reserve-watchdog/watchdog/store"
)

var (
	// ErrNotAuthorized is returned when a capability-gated call is made
	// by a principal not holding the capability.
	ErrNotAuthorized = errors.New("caller does not hold the required capability")

	// ErrNotActiveWatchdog is returned when the caller is not in the
	// active roster.
	ErrNotActiveWatchdog = errors.New("caller is not an active watchdog")

	// ErrNotPrimaryValidator is returned when a submission comes from a
	// watchdog other than the selected primary validator.
	ErrNotPrimaryValidator = errors.New("caller is not the primary validator for this operation")

	// ErrInvalidOperationType is returned for an unrecognized operation
	// kind.
	ErrInvalidOperationType = errors.New("invalid operation type")

	// ErrSystemPaused is returned when submissions are attempted while
	// the engine is paused.
	ErrSystemPaused = errors.New("system is paused")

	// ErrSystemNotPaused is returned when unpausing an engine that is not
	// paused.
	ErrSystemNotPaused = errors.New("system is not paused")

	// ErrCapacityExceeded is returned when adding a watchdog beyond the
	// maximum roster size.
	ErrCapacityExceeded = errors.New("watchdog roster at maximum size")

	// ErrBelowMinimum is returned when removing a watchdog would breach
	// the minimum roster size.
	ErrBelowMinimum = errors.New("removal would breach minimum roster size")

	// ErrInvalidThreshold is returned for a consensus threshold outside
	// [2, roster size].
	ErrInvalidThreshold = errors.New("consensus threshold out of range")

	// ErrInvalidPeriod is returned for a base challenge period outside
	// [1h, 24h].
	ErrInvalidPeriod = errors.New("base challenge period out of range")

	// ErrChallengeWindowClosed is returned when challenging an operation
	// whose window has already elapsed.
	ErrChallengeWindowClosed = errors.New("challenge window closed")

	// ErrChallengeWindowOpen is returned when executing an operation
	// whose window has not yet elapsed.
	ErrChallengeWindowOpen = errors.New("challenge window still open")

	// ErrAlreadyExecuted is returned for any mutation of a terminally
	// executed operation.
	ErrAlreadyExecuted = errors.New("operation already executed")

	// ErrNoActiveWatchdogs is returned when proposer selection runs
	// against an empty roster.
	ErrNoActiveWatchdogs = errors.New("no active watchdogs")

	// ErrProofRequired is returned when executing a proof-gated operation
	// without a payment proof bundle.
	ErrProofRequired = errors.New("operation type requires a payment proof")

	// ErrMalformedPayload is returned when a proof-gated operation's
	// payload does not decode into a payment claim.
	ErrMalformedPayload = errors.New("malformed operation payload")

	// ErrInvalidTransactionShape is returned when the proving transaction
	// fails the structural/anti-abuse checks.
	ErrInvalidTransactionShape = errors.New("transaction failed shape validation")

	// ErrPaymentNotVerified is returned when the proven transaction does
	// not pay the claimed address and amount.
	ErrPaymentNotVerified = errors.New("transaction does not pay the claimed address and amount")
)

// Conditions surfaced directly from the ledger keep their store identity
// so callers can test with errors.Is either way.
var (
	ErrOperationNotFound  = store.ErrOperationNotFound
	ErrDuplicateOperation = store.ErrDuplicateOperation
	ErrAlreadyObjected    = store.ErrDuplicateChallenge
	ErrAlreadyActive      = store.ErrWatchdogAlreadyActive
	ErrNotActive          = store.ErrWatchdogNotActive
)
