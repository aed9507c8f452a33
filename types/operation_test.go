package types_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/reservelabs/reserve-watchdog/testutil"
	"github.com/reservelabs/reserve-watchdog/types"
)

func TestOperationIDDeterminism(t *testing.T) {
	t.Parallel()
	r := rand.New(rand.NewSource(10))

	proposer := testutil.GenRandomWatchdogPk(r)
	data := testutil.GenRandomByteArray(r, 48)

	id := types.NewOperationID(types.OperationStatusChange, proposer, 7, data)
	require.Equal(t, id, types.NewOperationID(types.OperationStatusChange, proposer, 7, data))

	// every input participates in the identity
	require.NotEqual(t, id, types.NewOperationID(types.OperationReserveAttestation, proposer, 7, data))
	require.NotEqual(t, id, types.NewOperationID(types.OperationStatusChange, proposer, 8, data))
	require.NotEqual(t, id, types.NewOperationID(types.OperationStatusChange, testutil.GenRandomWatchdogPk(r), 7, data))
	require.NotEqual(t, id, types.NewOperationID(types.OperationStatusChange, proposer, 7, testutil.GenRandomByteArray(r, 48)))

	parsed, err := types.OperationIDFromBytes(id[:])
	require.NoError(t, err)
	require.Equal(t, id, parsed)

	_, err = types.OperationIDFromBytes(id[:16])
	require.Error(t, err)
}

func TestOperationTypeProperties(t *testing.T) {
	t.Parallel()

	require.True(t, types.OperationReserveAttestation.Valid())
	require.True(t, types.OperationRedemptionFulfillment.Valid())
	require.False(t, types.OperationType(4).Valid())

	require.False(t, types.OperationReserveAttestation.RequiresPaymentProof())
	require.False(t, types.OperationStatusChange.RequiresPaymentProof())
	require.True(t, types.OperationWalletRegistration.RequiresPaymentProof())
	require.True(t, types.OperationRedemptionFulfillment.RequiresPaymentProof())
}
