package spv_test

import (
	"math/rand"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"

	"github.com/reservelabs/reserve-watchdog/spv"
	"github.com/reservelabs/reserve-watchdog/testutil"
	"github.com/reservelabs/reserve-watchdog/types"
)

func genShapeFixture(r *rand.Rand, t *testing.T) (*spv.Verifier, *spv.TxInfo) {
	params := &chaincfg.SimNetParams
	v := spv.NewVerifier(spv.NewStaticRelay(big1(), big1()), params, 1)
	address := testutil.GenP2PKHAddress(r, t, params)
	txInfo := testutil.GenPaymentTxInfo(r, t, params, address, btcutil.Amount(50_000))

	return v, txInfo
}

func TestValidateTxShape(t *testing.T) {
	t.Parallel()
	r := rand.New(rand.NewSource(10))
	now := time.Unix(1_700_000_000, 0)

	v, txInfo := genShapeFixture(r, t)

	require.True(t, v.ValidateTxShape(types.RedemptionPending, txInfo, now))

	// version 1 is equally acceptable
	versioned := *txInfo
	versioned.Version = 1
	require.True(t, v.ValidateTxShape(types.RedemptionPending, &versioned, now))

	// only pending redemptions may be fulfilled
	require.False(t, v.ValidateTxShape(types.RedemptionFulfilled, txInfo, now))
	require.False(t, v.ValidateTxShape(types.RedemptionDefaulted, txInfo, now))

	require.False(t, v.ValidateTxShape(types.RedemptionPending, nil, now))

	empty := *txInfo
	empty.InputVector = nil
	require.False(t, v.ValidateTxShape(types.RedemptionPending, &empty, now))

	malformed := *txInfo
	malformed.InputVector = []byte{0x02, 0x01}
	require.False(t, v.ValidateTxShape(types.RedemptionPending, &malformed, now))

	unversioned := *txInfo
	unversioned.Version = 3
	require.False(t, v.ValidateTxShape(types.RedemptionPending, &unversioned, now))
}

func TestValidateTxShapeOutputBound(t *testing.T) {
	t.Parallel()
	r := rand.New(rand.NewSource(10))
	now := time.Unix(1_700_000_000, 0)

	v, txInfo := genShapeFixture(r, t)

	outs := make([]*wire.TxOut, spv.MaxTxOutputs+1)
	for i := range outs {
		outs[i] = &wire.TxOut{
			Value:    1000,
			PkScript: testutil.GenRandomByteArray(r, 25),
		}
	}

	crowded := *txInfo
	crowded.OutputVector = testutil.GenOutputVector(t, outs)
	require.False(t, v.ValidateTxShape(types.RedemptionPending, &crowded, now))

	// exactly at the bound passes
	crowded.OutputVector = testutil.GenOutputVector(t, outs[:spv.MaxTxOutputs])
	require.True(t, v.ValidateTxShape(types.RedemptionPending, &crowded, now))
}

func TestValidateTxShapeSizeBound(t *testing.T) {
	t.Parallel()
	r := rand.New(rand.NewSource(10))
	now := time.Unix(1_700_000_000, 0)

	v, txInfo := genShapeFixture(r, t)

	outs := []*wire.TxOut{{
		Value:    1000,
		PkScript: testutil.GenRandomByteArray(r, spv.MaxTxSize),
	}}

	oversized := *txInfo
	oversized.OutputVector = testutil.GenOutputVector(t, outs)
	require.False(t, v.ValidateTxShape(types.RedemptionPending, &oversized, now))
}

func TestValidateTxShapeLocktime(t *testing.T) {
	t.Parallel()
	r := rand.New(rand.NewSource(10))
	now := time.Unix(1_700_000_000, 0)

	v, txInfo := genShapeFixture(r, t)

	// height locktimes are exempt from the replay check
	byHeight := *txInfo
	byHeight.Locktime = 800_000
	require.True(t, v.ValidateTxShape(types.RedemptionPending, &byHeight, now))

	// a timestamp locktime within tolerance is fine
	recent := *txInfo
	recent.Locktime = uint32(now.Add(time.Hour).Unix())
	require.True(t, v.ValidateTxShape(types.RedemptionPending, &recent, now))

	// one beyond tolerance is a replay risk
	future := *txInfo
	future.Locktime = uint32(now.Add(spv.LocktimeTolerance + time.Hour).Unix())
	require.False(t, v.ValidateTxShape(types.RedemptionPending, &future, now))
}
