package store

import "errors"

var (
	// ErrCorruptedLedgerDB is returned when the ledger database does not
	// have the expected bucket layout or holds undecodable records.
	ErrCorruptedLedgerDB = errors.New("ledger db is corrupted")

	// ErrDuplicateOperation is returned when an operation with the same
	// content-derived fingerprint already exists.
	ErrDuplicateOperation = errors.New("operation already exists")

	// ErrOperationNotFound is returned when the queried operation is not
	// in the ledger.
	ErrOperationNotFound = errors.New("operation not found")

	// ErrDuplicateChallenge is returned when a watchdog has already
	// challenged the operation.
	ErrDuplicateChallenge = errors.New("challenge already recorded for this watchdog")

	// ErrWatchdogAlreadyActive is returned when adding a watchdog that is
	// already in the active roster.
	ErrWatchdogAlreadyActive = errors.New("watchdog already active")

	// ErrWatchdogNotActive is returned when the watchdog is not in the
	// active roster.
	ErrWatchdogNotActive = errors.New("watchdog not active")

	// ErrParamsNotFound is returned when consensus parameters have not
	// been seeded yet.
	ErrParamsNotFound = errors.New("consensus parameters not found")
)
