package types

import "time"

// Event is an audit/observability record emitted by the consensus engine.
// Events are delivered to registered sinks synchronously, inside the call
// whose state transition they describe.
type Event interface {
	EventName() string
}

type WatchdogAdded struct {
	Watchdog []byte
}

func (WatchdogAdded) EventName() string { return "WatchdogAdded" }

type WatchdogRemoved struct {
	Watchdog []byte
	Reason   string
}

func (WatchdogRemoved) EventName() string { return "WatchdogRemoved" }

type ParametersUpdated struct {
	Params ConsensusParams
}

func (ParametersUpdated) EventName() string { return "ParametersUpdated" }

type PrimaryValidatorSelected struct {
	Type      OperationType
	Height    uint64
	Validator []byte
}

func (PrimaryValidatorSelected) EventName() string { return "PrimaryValidatorSelected" }

type OperationSubmitted struct {
	ID         OperationID
	Type       OperationType
	Proposer   []byte
	FinalizeAt time.Time
}

func (OperationSubmitted) EventName() string { return "OperationSubmitted" }

type OperationChallenged struct {
	ID             OperationID
	Challenger     []byte
	ObjectionCount uint32
	FinalizeAt     time.Time
}

func (OperationChallenged) EventName() string { return "OperationChallenged" }

type ConsensusEscalated struct {
	ID       OperationID
	OldLevel uint8
	NewLevel uint8
	// Delay is the full window applied at the new level.
	Delay time.Duration
}

func (ConsensusEscalated) EventName() string { return "ConsensusEscalated" }

type OperationExecuted struct {
	ID OperationID
	// Caller may be any principal; execution is permissionless once the
	// challenge window has elapsed.
	Caller []byte
	// Success reports the downstream executor outcome. A false value does
	// not re-open the challenge window.
	Success bool
}

func (OperationExecuted) EventName() string { return "OperationExecuted" }

type EmergencyOverride struct {
	ID     OperationID
	Caller []byte
}

func (EmergencyOverride) EventName() string { return "EmergencyOverride" }

type SystemPaused struct{}

func (SystemPaused) EventName() string { return "SystemPaused" }

type SystemUnpaused struct{}

func (SystemUnpaused) EventName() string { return "SystemUnpaused" }
