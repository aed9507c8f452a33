// Package service implements the optimistic operation-consensus engine:
// a bounded set of mutually distrusting watchdogs authorizes sensitive
// custodial-reserve state transitions through optimistic execution with a
// challengeable delay, gated on SPV payment proofs for operation kinds
// that touch custodial Bitcoin wallets or redemptions.
package service

import (
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/lightningnetwork/lnd/kvdb"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/reservelabs/reserve-watchdog/metrics"
	"github.com/reservelabs/reserve-watchdog/spv"
	"github.com/reservelabs/reserve-watchdog/types"
	"github.com/reservelabs/reserve-watchdog/watchdog/store"
)

// Engine serializes all ledger mutation behind one mutex: every call
// either commits its full state transition and events, or fails with a
// named condition and changes nothing. There is no blocking model;
// concurrency means external callers racing to be first.
type Engine struct {
	mu sync.Mutex

	ops    *store.OperationStore
	roster *store.WatchdogStore
	params *store.ParamsStore

	verifier *spv.Verifier
	chain    ChainInfo

	executors map[types.OperationType]Executor
	sinks     []EventSink

	// admin is the x-only key holding the membership-management,
	// emergency-override and pause capabilities.
	admin  []byte
	paused *atomic.Bool

	logger  *zap.Logger
	metrics *metrics.WatchdogMetrics

	// timeNow is swapped out by tests exercising the challenge windows.
	timeNow func() time.Time
}

// NewEngine builds an engine over the given database. A ledger with no
// stored consensus parameters is seeded with initialParams; a populated
// ledger keeps what it has.
func NewEngine(
	db kvdb.Backend,
	verifier *spv.Verifier,
	chain ChainInfo,
	admin *btcec.PublicKey,
	initialParams types.ConsensusParams,
	wdMetrics *metrics.WatchdogMetrics,
	logger *zap.Logger,
) (*Engine, error) {
	ops, err := store.NewOperationStore(db)
	if err != nil {
		return nil, fmt.Errorf("failed to initiate operation store: %w", err)
	}
	roster, err := store.NewWatchdogStore(db)
	if err != nil {
		return nil, fmt.Errorf("failed to initiate watchdog store: %w", err)
	}
	params, err := store.NewParamsStore(db)
	if err != nil {
		return nil, fmt.Errorf("failed to initiate params store: %w", err)
	}

	if _, err := params.Get(); err != nil {
		if !errors.Is(err, store.ErrParamsNotFound) {
			return nil, err
		}
		if err := params.Put(&initialParams); err != nil {
			return nil, err
		}
	}

	return &Engine{
		ops:       ops,
		roster:    roster,
		params:    params,
		verifier:  verifier,
		chain:     chain,
		executors: make(map[types.OperationType]Executor),
		admin:     schnorr.SerializePubKey(admin),
		paused:    atomic.NewBool(false),
		logger:    logger,
		metrics:   wdMetrics,
		timeNow:   time.Now,
	}, nil
}

func (e *Engine) isAdmin(caller *btcec.PublicKey) bool {
	return caller != nil && string(schnorr.SerializePubKey(caller)) == string(e.admin)
}

// AddWatchdog inserts a watchdog into the active roster. Gated by the
// membership-management capability.
func (e *Engine) AddWatchdog(caller, watchdog *btcec.PublicKey) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.isAdmin(caller) {
		return ErrNotAuthorized
	}

	count, err := e.roster.Count()
	if err != nil {
		return err
	}
	if count >= types.MaxWatchdogs {
		return ErrCapacityExceeded
	}

	pk := schnorr.SerializePubKey(watchdog)
	if err := e.roster.Add(pk, e.timeNow()); err != nil {
		return err
	}

	e.metrics.SetActiveWatchdogs(count + 1)
	e.emit(types.WatchdogAdded{Watchdog: pk})

	return nil
}

// RemoveWatchdog deletes a watchdog from the active roster, recording the
// operator-supplied reason in the audit trail. Gated by the
// membership-management capability.
func (e *Engine) RemoveWatchdog(caller, watchdog *btcec.PublicKey, reason string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.isAdmin(caller) {
		return ErrNotAuthorized
	}

	pk := schnorr.SerializePubKey(watchdog)
	active, err := e.roster.IsActive(pk)
	if err != nil {
		return err
	}
	if !active {
		return ErrNotActive
	}

	count, err := e.roster.Count()
	if err != nil {
		return err
	}
	if count <= types.MinWatchdogs {
		return ErrBelowMinimum
	}

	if err := e.roster.Remove(pk); err != nil {
		return err
	}

	e.metrics.SetActiveWatchdogs(count - 1)
	e.emit(types.WatchdogRemoved{Watchdog: pk, Reason: reason})

	return nil
}

// UpdateParams changes the consensus threshold and base challenge period,
// rederiving the escalation-delay ladder proportionally. Operations
// already in flight keep the schedule captured at their creation or last
// challenge; only subsequent challenges observe the new ladder.
func (e *Engine) UpdateParams(caller *btcec.PublicKey, threshold uint32, basePeriod time.Duration) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.isAdmin(caller) {
		return ErrNotAuthorized
	}

	count, err := e.roster.Count()
	if err != nil {
		return err
	}
	if threshold < types.MinConsensusThreshold || threshold > count {
		return ErrInvalidThreshold
	}
	if basePeriod < types.MinChallengePeriod || basePeriod > types.MaxChallengePeriod {
		return ErrInvalidPeriod
	}

	params, err := e.params.Get()
	if err != nil {
		return err
	}
	params.Threshold = threshold
	params.SetBasePeriod(basePeriod)

	if err := e.params.Put(params); err != nil {
		return err
	}

	e.emit(types.ParametersUpdated{Params: *params})

	return nil
}

// SubmitOperation enters a new operation into the ledger in its
// unchallenged state, with a finalize time one base period away. Only the
// currently selected primary validator may submit.
func (e *Engine) SubmitOperation(
	caller *btcec.PublicKey,
	opType types.OperationType,
	data []byte,
	nonce uint64,
) (types.OperationID, error) {
	var zero types.OperationID

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.paused.Load() {
		return zero, ErrSystemPaused
	}
	if !opType.Valid() {
		return zero, ErrInvalidOperationType
	}

	pk := schnorr.SerializePubKey(caller)
	active, err := e.roster.IsActive(pk)
	if err != nil {
		return zero, err
	}
	if !active {
		return zero, ErrNotActiveWatchdog
	}

	selected, height, err := e.selectPrimaryValidator(opType, data)
	if err != nil {
		return zero, err
	}
	e.emit(types.PrimaryValidatorSelected{Type: opType, Height: height, Validator: selected})
	if string(selected) != string(pk) {
		return zero, ErrNotPrimaryValidator
	}

	params, err := e.params.Get()
	if err != nil {
		return zero, err
	}

	now := e.timeNow()
	op := &types.Operation{
		ID:          types.NewOperationID(opType, pk, nonce, data),
		Type:        opType,
		Data:        data,
		Proposer:    pk,
		Nonce:       nonce,
		SubmittedAt: now,
		FinalizeAt:  now.Add(params.BasePeriod),
	}

	if err := e.ops.CreateOperation(op); err != nil {
		return zero, err
	}

	e.metrics.IncSubmitted(opType.String())
	e.updatePendingGauge()
	e.emit(types.OperationSubmitted{
		ID:         op.ID,
		Type:       opType,
		Proposer:   pk,
		FinalizeAt: op.FinalizeAt,
	})

	return op.ID, nil
}

// ChallengeOperation records a watchdog's objection against a pending
// operation. Each objection restarts the waiting period from the moment
// of the challenge at the escalation level its objection count maps to.
func (e *Engine) ChallengeOperation(caller *btcec.PublicKey, id types.OperationID, evidence []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	pk := schnorr.SerializePubKey(caller)
	active, err := e.roster.IsActive(pk)
	if err != nil {
		return err
	}
	if !active {
		return ErrNotActiveWatchdog
	}

	op, err := e.ops.GetOperation(id)
	if err != nil {
		return err
	}
	if op.Executed {
		return ErrAlreadyExecuted
	}

	now := e.timeNow()
	if !now.Before(op.FinalizeAt) {
		return ErrChallengeWindowClosed
	}

	params, err := e.params.Get()
	if err != nil {
		return err
	}

	challenge := &types.Challenge{
		Challenger:  pk,
		Evidence:    evidence,
		SubmittedAt: now,
	}

	var (
		oldLevel, newLevel uint8
		objections         uint32
		finalizeAt         time.Time
	)
	if err := e.ops.ApplyChallenge(id, challenge, func(op *types.Operation) error {
		op.ObjectionCount++
		objections = op.ObjectionCount

		oldLevel = op.EscalationLevel
		newLevel = params.LevelFor(objections)
		op.EscalationLevel = newLevel

		op.FinalizeAt = now.Add(params.EscalationDelays[newLevel])
		finalizeAt = op.FinalizeAt
		op.Challenged = true

		return nil
	}); err != nil {
		return err
	}

	e.metrics.IncChallenges()
	e.emit(types.OperationChallenged{
		ID:             id,
		Challenger:     pk,
		ObjectionCount: objections,
		FinalizeAt:     finalizeAt,
	})
	if newLevel > oldLevel {
		e.metrics.IncEscalations()
		e.emit(types.ConsensusEscalated{
			ID:       id,
			OldLevel: oldLevel,
			NewLevel: newLevel,
			Delay:    params.EscalationDelays[newLevel],
		})
	}

	return nil
}

// CanExecute reports whether the operation exists, is unexecuted and has
// passed its finalize time. Read-only.
func (e *Engine) CanExecute(id types.OperationID) (bool, error) {
	op, err := e.ops.GetOperation(id)
	if err != nil {
		if errors.Is(err, store.ErrOperationNotFound) {
			return false, nil
		}

		return false, err
	}

	return !op.Executed && !e.timeNow().Before(op.FinalizeAt), nil
}

// ExecuteOperation runs a finalizable operation. Callable by anyone; the
// caller tag is recorded for audit. Proof-gated operation kinds must
// supply a payment proof, and a verifier rejection fails the call leaving
// the operation unexecuted. The downstream executor's business outcome is
// recorded as data and never re-opens the challenge window.
func (e *Engine) ExecuteOperation(caller []byte, id types.OperationID, proof *PaymentProof) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	op, err := e.ops.GetOperation(id)
	if err != nil {
		return err
	}
	if op.Executed {
		return ErrAlreadyExecuted
	}

	now := e.timeNow()
	if now.Before(op.FinalizeAt) {
		return ErrChallengeWindowOpen
	}

	return e.executeLocked(caller, op, proof, now)
}

// EmergencyExecute force-executes an operation immediately, bypassing the
// challenge window. Gated by the emergency capability and separately
// logged; the payment-proof gate still applies.
func (e *Engine) EmergencyExecute(caller *btcec.PublicKey, id types.OperationID, proof *PaymentProof) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.isAdmin(caller) {
		return ErrNotAuthorized
	}

	op, err := e.ops.GetOperation(id)
	if err != nil {
		return err
	}
	if op.Executed {
		return ErrAlreadyExecuted
	}

	pk := schnorr.SerializePubKey(caller)
	e.metrics.IncEmergencyOverrides()
	e.emit(types.EmergencyOverride{ID: id, Caller: pk})

	return e.executeLocked(pk, op, proof, e.timeNow())
}

func (e *Engine) executeLocked(caller []byte, op *types.Operation, proof *PaymentProof, now time.Time) error {
	if op.Type.RequiresPaymentProof() {
		if err := e.verifyPaymentProof(op, proof, now); err != nil {
			return err
		}
	}

	success := false
	if ex, ok := e.executors[op.Type]; ok {
		success = ex.Execute(op.Type, op.Data)
	} else {
		e.logger.Warn("no executor registered for operation type",
			zap.String("operation_type", op.Type.String()))
	}

	if err := e.ops.MarkExecuted(op.ID, now, success); err != nil {
		return err
	}

	e.metrics.IncExecuted(op.Type.String(), success)
	e.updatePendingGauge()
	e.emit(types.OperationExecuted{ID: op.ID, Caller: caller, Success: success})

	return nil
}

func (e *Engine) verifyPaymentProof(op *types.Operation, proof *PaymentProof, now time.Time) error {
	if proof == nil || proof.TxInfo == nil || proof.Proof == nil {
		return ErrProofRequired
	}

	claim, err := DecodePaymentClaim(op.Data)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrMalformedPayload, err)
	}

	if op.Type == types.OperationRedemptionFulfillment {
		if !e.verifier.ValidateTxShape(types.RedemptionPending, proof.TxInfo, now) {
			return ErrInvalidTransactionShape
		}
	}

	if err := e.verifier.ValidateInclusionProof(proof.TxInfo, proof.Proof); err != nil {
		if code := spv.CodeOf(err); code != 0 {
			e.metrics.IncProofRejections(strconv.Itoa(int(code)))
		}

		return err
	}

	if !e.verifier.VerifyPayment(claim.Address, claim.Amount, proof.TxInfo) {
		return ErrPaymentNotVerified
	}

	return nil
}

// Pause suspends submissions. Gated by the pause capability.
func (e *Engine) Pause(caller *btcec.PublicKey) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.isAdmin(caller) {
		return ErrNotAuthorized
	}
	if !e.paused.CompareAndSwap(false, true) {
		return ErrSystemPaused
	}

	e.emit(types.SystemPaused{})

	return nil
}

// Unpause resumes submissions. Gated by the pause capability.
func (e *Engine) Unpause(caller *btcec.PublicKey) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.isAdmin(caller) {
		return ErrNotAuthorized
	}
	if !e.paused.CompareAndSwap(true, false) {
		return ErrSystemNotPaused
	}

	e.emit(types.SystemUnpaused{})

	return nil
}

// IsActiveWatchdog reports roster membership. Read-only.
func (e *Engine) IsActiveWatchdog(watchdog *btcec.PublicKey) (bool, error) {
	return e.roster.IsActive(schnorr.SerializePubKey(watchdog))
}

// Watchdogs returns the active roster in key order. Read-only.
func (e *Engine) Watchdogs() ([][]byte, error) {
	return e.roster.List()
}

// Params returns the current consensus parameters. Read-only.
func (e *Engine) Params() (*types.ConsensusParams, error) {
	return e.params.Get()
}

// GetOperation returns an operation's full record. Read-only.
func (e *Engine) GetOperation(id types.OperationID) (*types.Operation, error) {
	return e.ops.GetOperation(id)
}

// GetChallenges returns the objections recorded against an operation.
// Read-only.
func (e *Engine) GetChallenges(id types.OperationID) ([]*types.Challenge, error) {
	return e.ops.ListChallenges(id)
}

func (e *Engine) updatePendingGauge() {
	ops, err := e.ops.ListOperations()
	if err != nil {
		return
	}
	pending := 0
	for _, op := range ops {
		if !op.Executed {
			pending++
		}
	}
	e.metrics.SetPendingOperations(pending)
}
