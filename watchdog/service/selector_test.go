package service

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/reservelabs/reserve-watchdog/testutil"
	"github.com/reservelabs/reserve-watchdog/types"
)

// FuzzSelectPrimaryValidator tests that selection is deterministic for
// fixed inputs and spreads distinct payloads across the roster
func FuzzSelectPrimaryValidator(f *testing.F) {
	testutil.AddRandomSeedsToFuzzer(f, 10)
	f.Fuzz(func(t *testing.T, seed int64) {
		t.Parallel()
		r := rand.New(rand.NewSource(seed))
		env := newTestEnv(t, r, 5)

		data := testutil.GenRandomByteArray(r, 32)

		first, err := env.engine.SelectPrimaryValidator(types.OperationReserveAttestation, data)
		require.NoError(t, err)

		// identical inputs with an unchanged roster re-select the same
		// watchdog
		for i := 0; i < 5; i++ {
			again, err := env.engine.SelectPrimaryValidator(types.OperationReserveAttestation, data)
			require.NoError(t, err)
			require.Equal(t, first, again)
		}

		// distinct payloads reach more than one watchdog
		seen := make(map[string]struct{})
		for i := 0; i < 64; i++ {
			selected, err := env.engine.SelectPrimaryValidator(
				types.OperationReserveAttestation, testutil.GenRandomByteArray(r, 32))
			require.NoError(t, err)
			seen[string(selected)] = struct{}{}
		}
		require.Greater(t, len(seen), 1)

		// selection rotates as the chain advances
		rotated := false
		for h := uint64(101); h < 120; h++ {
			env.chain.height = h
			selected, err := env.engine.SelectPrimaryValidator(types.OperationReserveAttestation, data)
			require.NoError(t, err)
			if string(selected) != string(first) {
				rotated = true

				break
			}
		}
		require.True(t, rotated)

		// the operation type participates in the mapping
		typed := make(map[string]struct{})
		for opType := types.OperationType(0); opType < 4; opType++ {
			selected, err := env.engine.SelectPrimaryValidator(opType, data)
			require.NoError(t, err)
			typed[string(selected)] = struct{}{}
		}
		require.NotEmpty(t, typed)

		_, err = env.engine.SelectPrimaryValidator(types.OperationType(99), data)
		require.ErrorIs(t, err, ErrInvalidOperationType)
	})
}
