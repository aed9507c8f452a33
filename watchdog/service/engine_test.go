package service

import (
	"bytes"
	"math/rand"
	"testing"
	"time"

	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/stretchr/testify/require"

	"github.com/reservelabs/reserve-watchdog/metrics"
	"github.com/reservelabs/reserve-watchdog/spv"
	"github.com/reservelabs/reserve-watchdog/testutil"
	"github.com/reservelabs/reserve-watchdog/types"
	wdcfg "github.com/reservelabs/reserve-watchdog/watchdog/config"
)

type recordingSink struct {
	events []types.Event
}

func (s *recordingSink) HandleEvent(ev types.Event) {
	s.events = append(s.events, ev)
}

func (s *recordingSink) ofName(name string) []types.Event {
	var out []types.Event
	for _, ev := range s.events {
		if ev.EventName() == name {
			out = append(out, ev)
		}
	}

	return out
}

type fakeChain struct {
	height uint64
}

func (c *fakeChain) BestHeight() (uint64, error) {
	return c.height, nil
}

type fakeExecutor struct {
	calls    int
	result   bool
	lastData []byte
}

func (e *fakeExecutor) Execute(_ types.OperationType, data []byte) bool {
	e.calls++
	e.lastData = data

	return e.result
}

type testEnv struct {
	t      *testing.T
	engine *Engine
	admin  *btcec.PublicKey
	chain  *fakeChain
	sink   *recordingSink
	wds    []*btcec.PublicKey
	now    time.Time
}

func newTestEnv(t *testing.T, r *rand.Rand, numWatchdogs int) *testEnv {
	homePath := t.TempDir()
	cfg := wdcfg.DefaultDBConfigWithHomePath(homePath)

	db, err := cfg.GetDBBackend()
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, db.Close())
	})

	work := blockchain.CalcWork(testutil.TestHeaderBits)
	relay := spv.NewStaticRelay(work, work)
	verifier := spv.NewVerifier(relay, &chaincfg.SimNetParams, 6)

	_, admin := testutil.GenBTCKeyPair(r)
	chain := &fakeChain{height: 100}

	engine, err := NewEngine(
		db, verifier, chain, admin,
		types.DefaultConsensusParams(),
		metrics.NewWatchdogMetrics(),
		testutil.GetTestLogger(t),
	)
	require.NoError(t, err)

	env := &testEnv{
		t:      t,
		engine: engine,
		admin:  admin,
		chain:  chain,
		sink:   &recordingSink{},
		now:    time.Unix(1_700_000_000, 0),
	}
	engine.timeNow = func() time.Time { return env.now }
	engine.Subscribe(env.sink)

	for i := 0; i < numWatchdogs; i++ {
		_, pk := testutil.GenBTCKeyPair(r)
		require.NoError(t, engine.AddWatchdog(admin, pk))
		env.wds = append(env.wds, pk)
	}

	return env
}

func (env *testEnv) advance(d time.Duration) {
	env.now = env.now.Add(d)
}

// primaryFor returns the watchdog key authorized to submit the operation.
func (env *testEnv) primaryFor(opType types.OperationType, data []byte) *btcec.PublicKey {
	selected, err := env.engine.SelectPrimaryValidator(opType, data)
	require.NoError(env.t, err)
	for _, pk := range env.wds {
		if bytes.Equal(schnorr.SerializePubKey(pk), selected) {
			return pk
		}
	}
	env.t.Fatal("selected validator not in roster")

	return nil
}

// challengers returns n watchdogs other than the given one.
func (env *testEnv) challengers(except *btcec.PublicKey, n int) []*btcec.PublicKey {
	exceptPk := schnorr.SerializePubKey(except)
	var out []*btcec.PublicKey
	for _, pk := range env.wds {
		if !bytes.Equal(schnorr.SerializePubKey(pk), exceptPk) {
			out = append(out, pk)
		}
		if len(out) == n {
			break
		}
	}
	require.Len(env.t, out, n)

	return out
}

func (env *testEnv) submit(opType types.OperationType, data []byte, nonce uint64) types.OperationID {
	proposer := env.primaryFor(opType, data)
	id, err := env.engine.SubmitOperation(proposer, opType, data, nonce)
	require.NoError(env.t, err)

	return id
}

func TestRosterManagement(t *testing.T) {
	t.Parallel()
	r := rand.New(rand.NewSource(10))
	env := newTestEnv(t, r, types.MinWatchdogs)

	_, outsider := testutil.GenBTCKeyPair(r)
	_, candidate := testutil.GenBTCKeyPair(r)

	// only the admin manages membership
	require.ErrorIs(t, env.engine.AddWatchdog(outsider, candidate), ErrNotAuthorized)
	require.ErrorIs(t, env.engine.RemoveWatchdog(outsider, env.wds[0], "r"), ErrNotAuthorized)

	// duplicates are rejected
	require.ErrorIs(t, env.engine.AddWatchdog(env.admin, env.wds[0]), ErrAlreadyActive)

	// removal below the minimum roster size is rejected
	require.ErrorIs(t, env.engine.RemoveWatchdog(env.admin, env.wds[0], "test"), ErrBelowMinimum)

	// fill to capacity
	for i := types.MinWatchdogs; i < types.MaxWatchdogs; i++ {
		_, pk := testutil.GenBTCKeyPair(r)
		require.NoError(t, env.engine.AddWatchdog(env.admin, pk))
	}
	require.ErrorIs(t, env.engine.AddWatchdog(env.admin, candidate), ErrCapacityExceeded)

	// removing an unknown watchdog is rejected
	require.ErrorIs(t, env.engine.RemoveWatchdog(env.admin, candidate, "unknown"), ErrNotActive)

	// a removal with capacity above the minimum succeeds and is audited
	require.NoError(t, env.engine.RemoveWatchdog(env.admin, env.wds[0], "key rotation"))
	active, err := env.engine.IsActiveWatchdog(env.wds[0])
	require.NoError(t, err)
	require.False(t, active)

	removed := env.sink.ofName("WatchdogRemoved")
	require.Len(t, removed, 1)
	require.Equal(t, "key rotation", removed[0].(types.WatchdogRemoved).Reason)
}

func TestSubmitOperation(t *testing.T) {
	t.Parallel()
	r := rand.New(rand.NewSource(10))
	env := newTestEnv(t, r, 5)

	data := testutil.GenRandomByteArray(r, 48)
	proposer := env.primaryFor(types.OperationReserveAttestation, data)

	// an unknown principal cannot submit
	_, outsider := testutil.GenBTCKeyPair(r)
	_, err := env.engine.SubmitOperation(outsider, types.OperationReserveAttestation, data, 1)
	require.ErrorIs(t, err, ErrNotActiveWatchdog)

	// an active watchdog that is not the selected primary cannot submit
	other := env.challengers(proposer, 1)[0]
	_, err = env.engine.SubmitOperation(other, types.OperationReserveAttestation, data, 1)
	require.ErrorIs(t, err, ErrNotPrimaryValidator)

	// an unrecognized type is rejected
	_, err = env.engine.SubmitOperation(proposer, types.OperationType(200), data, 1)
	require.ErrorIs(t, err, ErrInvalidOperationType)

	id, err := env.engine.SubmitOperation(proposer, types.OperationReserveAttestation, data, 1)
	require.NoError(t, err)

	op, err := env.engine.GetOperation(id)
	require.NoError(t, err)
	require.Equal(t, types.OperationReserveAttestation, op.Type)
	require.Equal(t, schnorr.SerializePubKey(proposer), op.Proposer)
	require.Equal(t, uint32(0), op.ObjectionCount)
	require.True(t, env.now.Add(time.Hour).Equal(op.FinalizeAt))

	// the same request resubmitted is a duplicate
	_, err = env.engine.SubmitOperation(proposer, types.OperationReserveAttestation, data, 1)
	require.ErrorIs(t, err, ErrDuplicateOperation)

	// a different nonce names a different request
	id2, err := env.engine.SubmitOperation(proposer, types.OperationReserveAttestation, data, 2)
	require.NoError(t, err)
	require.NotEqual(t, id, id2)
}

func TestChallengeEscalationLadder(t *testing.T) {
	t.Parallel()
	r := rand.New(rand.NewSource(10))
	env := newTestEnv(t, r, 6)

	data := testutil.GenRandomByteArray(r, 32)
	id := env.submit(types.OperationStatusChange, data, 1)
	proposer := env.primaryFor(types.OperationStatusChange, data)
	challengers := env.challengers(proposer, 5)

	expected := []struct {
		objections uint32
		level      uint8
		delay      time.Duration
		escalates  bool
	}{
		{1, 0, time.Hour, false},
		{2, 1, 4 * time.Hour, true},
		{3, 2, 12 * time.Hour, true},
		{4, 2, 12 * time.Hour, false},
		{5, 3, 24 * time.Hour, true},
	}

	for i, exp := range expected {
		env.advance(10 * time.Minute)
		require.NoError(t, env.engine.ChallengeOperation(challengers[i], id, []byte("evidence")))

		op, err := env.engine.GetOperation(id)
		require.NoError(t, err)
		require.Equal(t, exp.objections, op.ObjectionCount)
		require.Equal(t, exp.level, op.EscalationLevel)
		require.True(t, op.Challenged)
		// each objection restarts the window from the moment of the
		// challenge
		require.True(t, env.now.Add(exp.delay).Equal(op.FinalizeAt))
	}

	escalations := env.sink.ofName("ConsensusEscalated")
	require.Len(t, escalations, 3)
	require.Equal(t, uint8(1), escalations[0].(types.ConsensusEscalated).NewLevel)
	require.Equal(t, uint8(2), escalations[1].(types.ConsensusEscalated).NewLevel)
	require.Equal(t, uint8(3), escalations[2].(types.ConsensusEscalated).NewLevel)
	require.Equal(t, 24*time.Hour, escalations[2].(types.ConsensusEscalated).Delay)

	// one objection per watchdog per operation
	err := env.engine.ChallengeOperation(challengers[0], id, []byte("again"))
	require.ErrorIs(t, err, ErrAlreadyObjected)

	op, err := env.engine.GetOperation(id)
	require.NoError(t, err)
	require.Equal(t, uint32(5), op.ObjectionCount)

	challenges, err := env.engine.GetChallenges(id)
	require.NoError(t, err)
	require.Len(t, challenges, 5)
}

func TestChallengeWindowClosed(t *testing.T) {
	t.Parallel()
	r := rand.New(rand.NewSource(10))
	env := newTestEnv(t, r, 4)

	data := testutil.GenRandomByteArray(r, 32)
	id := env.submit(types.OperationReserveAttestation, data, 1)
	proposer := env.primaryFor(types.OperationReserveAttestation, data)
	challenger := env.challengers(proposer, 1)[0]

	// outsiders cannot challenge
	_, outsider := testutil.GenBTCKeyPair(r)
	require.ErrorIs(t, env.engine.ChallengeOperation(outsider, id, nil), ErrNotActiveWatchdog)

	// unknown operations cannot be challenged
	err := env.engine.ChallengeOperation(challenger, testutil.GenRandomOperation(r).ID, nil)
	require.ErrorIs(t, err, ErrOperationNotFound)

	// past the window the objection is too late
	env.advance(time.Hour)
	require.ErrorIs(t, env.engine.ChallengeOperation(challenger, id, nil), ErrChallengeWindowClosed)

	// executed operations are terminal
	ex := &fakeExecutor{result: true}
	env.engine.RegisterExecutor(types.OperationReserveAttestation, ex)
	require.NoError(t, env.engine.ExecuteOperation([]byte("anyone"), id, nil))
	require.ErrorIs(t, env.engine.ChallengeOperation(challenger, id, nil), ErrAlreadyExecuted)
}

func TestExecuteAtMostOnce(t *testing.T) {
	t.Parallel()
	r := rand.New(rand.NewSource(10))
	env := newTestEnv(t, r, 4)

	ex := &fakeExecutor{result: true}
	env.engine.RegisterExecutor(types.OperationStatusChange, ex)

	data := testutil.GenRandomByteArray(r, 32)
	id := env.submit(types.OperationStatusChange, data, 1)

	// the window is still open
	ok, err := env.engine.CanExecute(id)
	require.NoError(t, err)
	require.False(t, ok)
	require.ErrorIs(t, env.engine.ExecuteOperation([]byte("caller"), id, nil), ErrChallengeWindowOpen)
	require.Zero(t, ex.calls)

	env.advance(time.Hour)

	ok, err = env.engine.CanExecute(id)
	require.NoError(t, err)
	require.True(t, ok)

	// execution is permissionless once finalizable
	require.NoError(t, env.engine.ExecuteOperation([]byte("caller"), id, nil))
	require.Equal(t, 1, ex.calls)
	require.Equal(t, data, ex.lastData)

	op, err := env.engine.GetOperation(id)
	require.NoError(t, err)
	require.True(t, op.Executed)
	require.True(t, op.ExecutionOK)
	require.True(t, env.now.Equal(op.ExecutedAt))

	// a second execution never reaches the executor
	require.ErrorIs(t, env.engine.ExecuteOperation([]byte("caller"), id, nil), ErrAlreadyExecuted)
	require.Equal(t, 1, ex.calls)

	ok, err = env.engine.CanExecute(id)
	require.NoError(t, err)
	require.False(t, ok)

	// unknown operations are not executable
	ok, err = env.engine.CanExecute(testutil.GenRandomOperation(r).ID)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestExecuteFailureIsTerminal(t *testing.T) {
	t.Parallel()
	r := rand.New(rand.NewSource(10))
	env := newTestEnv(t, r, 4)

	ex := &fakeExecutor{result: false}
	env.engine.RegisterExecutor(types.OperationStatusChange, ex)

	id := env.submit(types.OperationStatusChange, testutil.GenRandomByteArray(r, 32), 1)
	env.advance(time.Hour)

	// a failed downstream outcome is recorded, not retried
	require.NoError(t, env.engine.ExecuteOperation([]byte("caller"), id, nil))

	op, err := env.engine.GetOperation(id)
	require.NoError(t, err)
	require.True(t, op.Executed)
	require.False(t, op.ExecutionOK)

	require.ErrorIs(t, env.engine.ExecuteOperation([]byte("caller"), id, nil), ErrAlreadyExecuted)
	require.Equal(t, 1, ex.calls)

	executed := env.sink.ofName("OperationExecuted")
	require.Len(t, executed, 1)
	require.False(t, executed[0].(types.OperationExecuted).Success)
}

func TestProofGatedExecution(t *testing.T) {
	t.Parallel()
	r := rand.New(rand.NewSource(10))
	env := newTestEnv(t, r, 5)

	ex := &fakeExecutor{result: true}
	env.engine.RegisterExecutor(types.OperationWalletRegistration, ex)

	params := &chaincfg.SimNetParams
	address := testutil.GenP2PKHAddress(r, t, params)
	amount := btcutil.Amount(250_000)
	txInfo := testutil.GenPaymentTxInfo(r, t, params, address, amount)
	proofBundle, _ := testutil.GenValidPaymentProof(r, t, txInfo, 8, 6)
	proof := &PaymentProof{TxInfo: txInfo, Proof: proofBundle}

	claim := PaymentClaim{Address: address, Amount: amount}
	data := EncodePaymentClaim(claim, testutil.GenRandomByteArray(r, 16))

	id := env.submit(types.OperationWalletRegistration, data, 1)
	env.advance(time.Hour)

	// no proof bundle
	require.ErrorIs(t, env.engine.ExecuteOperation([]byte("caller"), id, nil), ErrProofRequired)
	require.Zero(t, ex.calls)

	// a tampered proof fails with its taxonomy code and leaves the
	// operation pending
	tampered := *proofBundle
	tampered.MerkleProof = append([]byte{}, proofBundle.MerkleProof...)
	tampered.MerkleProof[0] ^= 0xff
	err := env.engine.ExecuteOperation([]byte("caller"), id, &PaymentProof{TxInfo: txInfo, Proof: &tampered})
	require.Equal(t, spv.CodeBadMerkleProof, spv.CodeOf(err))
	require.Zero(t, ex.calls)

	op, err := env.engine.GetOperation(id)
	require.NoError(t, err)
	require.False(t, op.Executed)

	// the valid proof completes the execution
	require.NoError(t, env.engine.ExecuteOperation([]byte("caller"), id, proof))
	require.Equal(t, 1, ex.calls)
	require.Equal(t, data, ex.lastData)
}

func TestProofGatedPaymentMismatch(t *testing.T) {
	t.Parallel()
	r := rand.New(rand.NewSource(10))
	env := newTestEnv(t, r, 5)

	params := &chaincfg.SimNetParams
	address := testutil.GenP2PKHAddress(r, t, params)
	amount := btcutil.Amount(250_000)
	txInfo := testutil.GenPaymentTxInfo(r, t, params, address, amount)
	proofBundle, _ := testutil.GenValidPaymentProof(r, t, txInfo, 8, 6)
	proof := &PaymentProof{TxInfo: txInfo, Proof: proofBundle}

	// the claim demands more than the proven transaction pays
	claim := PaymentClaim{Address: address, Amount: 2 * amount}
	data := EncodePaymentClaim(claim, nil)

	id := env.submit(types.OperationWalletRegistration, data, 1)
	env.advance(time.Hour)

	require.ErrorIs(t, env.engine.ExecuteOperation([]byte("caller"), id, proof), ErrPaymentNotVerified)

	// a payload that does not decode is malformed
	badID := env.submit(types.OperationWalletRegistration, []byte{0x01}, 2)
	env.advance(time.Hour)
	require.ErrorIs(t, env.engine.ExecuteOperation([]byte("caller"), badID, proof), ErrMalformedPayload)
}

func TestRedemptionShapeGate(t *testing.T) {
	t.Parallel()
	r := rand.New(rand.NewSource(10))
	env := newTestEnv(t, r, 5)

	params := &chaincfg.SimNetParams
	address := testutil.GenP2PKHAddress(r, t, params)
	amount := btcutil.Amount(250_000)
	txInfo := testutil.GenPaymentTxInfo(r, t, params, address, amount)
	// an unsupported version fails the structural gate before any proof
	// work
	txInfo.Version = 3
	proofBundle, _ := testutil.GenValidPaymentProof(r, t, txInfo, 8, 6)

	claim := PaymentClaim{Address: address, Amount: amount}
	data := EncodePaymentClaim(claim, nil)

	id := env.submit(types.OperationRedemptionFulfillment, data, 1)
	env.advance(time.Hour)

	err := env.engine.ExecuteOperation([]byte("caller"), id, &PaymentProof{TxInfo: txInfo, Proof: proofBundle})
	require.ErrorIs(t, err, ErrInvalidTransactionShape)
}

func TestEmergencyExecute(t *testing.T) {
	t.Parallel()
	r := rand.New(rand.NewSource(10))
	env := newTestEnv(t, r, 4)

	ex := &fakeExecutor{result: true}
	env.engine.RegisterExecutor(types.OperationStatusChange, ex)

	id := env.submit(types.OperationStatusChange, testutil.GenRandomByteArray(r, 32), 1)

	// the window is still open; only the admin may bypass it
	_, outsider := testutil.GenBTCKeyPair(r)
	require.ErrorIs(t, env.engine.EmergencyExecute(outsider, id, nil), ErrNotAuthorized)

	require.NoError(t, env.engine.EmergencyExecute(env.admin, id, nil))
	require.Equal(t, 1, ex.calls)

	op, err := env.engine.GetOperation(id)
	require.NoError(t, err)
	require.True(t, op.Executed)

	require.Len(t, env.sink.ofName("EmergencyOverride"), 1)
	require.ErrorIs(t, env.engine.EmergencyExecute(env.admin, id, nil), ErrAlreadyExecuted)
}

func TestEmergencyExecuteKeepsProofGate(t *testing.T) {
	t.Parallel()
	r := rand.New(rand.NewSource(10))
	env := newTestEnv(t, r, 5)

	params := &chaincfg.SimNetParams
	address := testutil.GenP2PKHAddress(r, t, params)
	claim := PaymentClaim{Address: address, Amount: 100_000}
	data := EncodePaymentClaim(claim, nil)

	id := env.submit(types.OperationWalletRegistration, data, 1)

	// the override bypasses the window, never the payment proof
	require.ErrorIs(t, env.engine.EmergencyExecute(env.admin, id, nil), ErrProofRequired)
}

func TestPauseUnpause(t *testing.T) {
	t.Parallel()
	r := rand.New(rand.NewSource(10))
	env := newTestEnv(t, r, 4)

	_, outsider := testutil.GenBTCKeyPair(r)
	require.ErrorIs(t, env.engine.Pause(outsider), ErrNotAuthorized)

	require.NoError(t, env.engine.Pause(env.admin))
	require.ErrorIs(t, env.engine.Pause(env.admin), ErrSystemPaused)

	data := testutil.GenRandomByteArray(r, 32)
	_, err := env.engine.SubmitOperation(env.wds[0], types.OperationReserveAttestation, data, 1)
	require.ErrorIs(t, err, ErrSystemPaused)

	require.NoError(t, env.engine.Unpause(env.admin))
	require.ErrorIs(t, env.engine.Unpause(env.admin), ErrSystemNotPaused)

	env.submit(types.OperationReserveAttestation, data, 1)

	require.Len(t, env.sink.ofName("SystemPaused"), 1)
	require.Len(t, env.sink.ofName("SystemUnpaused"), 1)
}

func TestUpdateParams(t *testing.T) {
	t.Parallel()
	r := rand.New(rand.NewSource(10))
	env := newTestEnv(t, r, 5)

	_, outsider := testutil.GenBTCKeyPair(r)
	require.ErrorIs(t, env.engine.UpdateParams(outsider, 3, 2*time.Hour), ErrNotAuthorized)

	// threshold is bounded by [2, roster size]
	require.ErrorIs(t, env.engine.UpdateParams(env.admin, 1, 2*time.Hour), ErrInvalidThreshold)
	require.ErrorIs(t, env.engine.UpdateParams(env.admin, 6, 2*time.Hour), ErrInvalidThreshold)

	// period is bounded by [1h, 24h]
	require.ErrorIs(t, env.engine.UpdateParams(env.admin, 3, 30*time.Minute), ErrInvalidPeriod)
	require.ErrorIs(t, env.engine.UpdateParams(env.admin, 3, 25*time.Hour), ErrInvalidPeriod)

	// an operation in flight keeps the schedule captured at submission
	data := testutil.GenRandomByteArray(r, 32)
	id := env.submit(types.OperationReserveAttestation, data, 1)
	oldFinalize := env.now.Add(time.Hour)

	require.NoError(t, env.engine.UpdateParams(env.admin, 4, 2*time.Hour))

	params, err := env.engine.Params()
	require.NoError(t, err)
	require.Equal(t, uint32(4), params.Threshold)
	require.Equal(t, 2*time.Hour, params.BasePeriod)
	// the ladder is rederived proportionally
	require.Equal(t,
		[types.NumEscalationLevels]time.Duration{2 * time.Hour, 8 * time.Hour, 24 * time.Hour, 48 * time.Hour},
		params.EscalationDelays)

	op, err := env.engine.GetOperation(id)
	require.NoError(t, err)
	require.True(t, oldFinalize.Equal(op.FinalizeAt))

	// a subsequent challenge observes the new ladder
	proposer := env.primaryFor(types.OperationReserveAttestation, data)
	challenger := env.challengers(proposer, 1)[0]
	env.advance(10 * time.Minute)
	require.NoError(t, env.engine.ChallengeOperation(challenger, id, nil))

	op, err = env.engine.GetOperation(id)
	require.NoError(t, err)
	require.True(t, env.now.Add(2*time.Hour).Equal(op.FinalizeAt))

	require.Len(t, env.sink.ofName("ParametersUpdated"), 1)
}

// TestContestedOperationLifecycle walks the documented five-watchdog
// deployment through submission, two objections and the escalated wait.
func TestContestedOperationLifecycle(t *testing.T) {
	t.Parallel()
	r := rand.New(rand.NewSource(10))
	env := newTestEnv(t, r, 5)

	ex := &fakeExecutor{result: true}
	env.engine.RegisterExecutor(types.OperationStatusChange, ex)

	data := testutil.GenRandomByteArray(r, 32)
	id := env.submit(types.OperationStatusChange, data, 7)
	proposer := env.primaryFor(types.OperationStatusChange, data)
	challengers := env.challengers(proposer, 2)

	env.advance(15 * time.Minute)
	require.NoError(t, env.engine.ChallengeOperation(challengers[0], id, []byte("stale attestation")))
	env.advance(15 * time.Minute)
	require.NoError(t, env.engine.ChallengeOperation(challengers[1], id, []byte("stale attestation")))

	// two objections put the operation at level one: a four hour wait
	op, err := env.engine.GetOperation(id)
	require.NoError(t, err)
	require.Equal(t, uint8(1), op.EscalationLevel)
	require.True(t, env.now.Add(4*time.Hour).Equal(op.FinalizeAt))

	// not executable during the escalated wait
	require.ErrorIs(t, env.engine.ExecuteOperation([]byte("caller"), id, nil), ErrChallengeWindowOpen)

	// no further objections arrive; the wait runs out
	env.advance(4 * time.Hour)
	require.NoError(t, env.engine.ExecuteOperation([]byte("caller"), id, nil))
	require.Equal(t, 1, ex.calls)

	// queries are read-only and stable across repetition
	op1, err := env.engine.GetOperation(id)
	require.NoError(t, err)
	op2, err := env.engine.GetOperation(id)
	require.NoError(t, err)
	require.Equal(t, op1, op2)
}
