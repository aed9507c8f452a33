package types

import (
	"fmt"
	"time"
)

const (
	// MinWatchdogs and MaxWatchdogs bound the size of the active roster.
	MinWatchdogs = 3
	MaxWatchdogs = 20

	// MinConsensusThreshold is the smallest admissible agreement threshold.
	MinConsensusThreshold = 2

	// MinChallengePeriod and MaxChallengePeriod bound the base challenge
	// window length.
	MinChallengePeriod = time.Hour
	MaxChallengePeriod = 24 * time.Hour

	// NumEscalationLevels is the number of tiers in the escalation ladder.
	NumEscalationLevels = 4
)

// escalationMultipliers scales the base challenge period into the delay
// ladder: level 0 always equals the base period, higher levels are fixed
// multiples of it.
var escalationMultipliers = [NumEscalationLevels]uint32{1, 4, 12, 24}

// DefaultEscalationThresholds maps objection counts to escalation levels
// via "largest threshold not exceeding the count".
var DefaultEscalationThresholds = [NumEscalationLevels]uint32{0, 2, 3, 5}

// ConsensusParams are the tunable thresholds governing minimum agreement,
// the base challenge window and the escalation schedule.
type ConsensusParams struct {
	// Threshold is the minimum number of watchdogs whose agreement is
	// considered decisive by escalation/reporting layers.
	Threshold uint32
	// BasePeriod is the challenge window granted to an uncontested
	// operation.
	BasePeriod time.Duration

	EscalationDelays     [NumEscalationLevels]time.Duration
	EscalationThresholds [NumEscalationLevels]uint32
}

// DefaultConsensusParams returns the observed production configuration:
// threshold 3, base period 1h, delays [1h, 4h, 12h, 24h], thresholds
// [0, 2, 3, 5].
func DefaultConsensusParams() ConsensusParams {
	p := ConsensusParams{
		Threshold:            3,
		EscalationThresholds: DefaultEscalationThresholds,
	}
	p.SetBasePeriod(time.Hour)

	return p
}

// SetBasePeriod updates the base challenge period and rederives the delay
// ladder proportionally.
func (p *ConsensusParams) SetBasePeriod(base time.Duration) {
	p.BasePeriod = base
	for i, m := range escalationMultipliers {
		p.EscalationDelays[i] = time.Duration(m) * base
	}
}

// Validate checks internal consistency against the current roster size.
func (p *ConsensusParams) Validate(rosterSize uint32) error {
	if p.Threshold < MinConsensusThreshold || p.Threshold > rosterSize {
		return fmt.Errorf("threshold %d outside [%d, %d]", p.Threshold, MinConsensusThreshold, rosterSize)
	}
	if p.BasePeriod < MinChallengePeriod || p.BasePeriod > MaxChallengePeriod {
		return fmt.Errorf("base period %s outside [%s, %s]", p.BasePeriod, MinChallengePeriod, MaxChallengePeriod)
	}
	for i := 1; i < NumEscalationLevels; i++ {
		if p.EscalationDelays[i] <= p.EscalationDelays[i-1] {
			return fmt.Errorf("escalation delays not strictly increasing at level %d", i)
		}
		if p.EscalationThresholds[i] <= p.EscalationThresholds[i-1] {
			return fmt.Errorf("escalation thresholds not strictly increasing at level %d", i)
		}
	}

	return nil
}

// LevelFor returns the escalation level for an objection count: the
// largest level whose threshold does not exceed the count.
func (p *ConsensusParams) LevelFor(objections uint32) uint8 {
	level := 0
	for i := 1; i < NumEscalationLevels; i++ {
		if objections >= p.EscalationThresholds[i] {
			level = i
		}
	}

	return uint8(level)
}

// DelayFor returns the challenge delay applied after an objection raises
// the count to the given value.
func (p *ConsensusParams) DelayFor(objections uint32) time.Duration {
	return p.EscalationDelays[p.LevelFor(objections)]
}
