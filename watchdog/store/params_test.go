package store_test

import (
	"math/rand"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/reservelabs/reserve-watchdog/testutil"
	"github.com/reservelabs/reserve-watchdog/types"
	"github.com/reservelabs/reserve-watchdog/watchdog/config"
	wdstore "github.com/reservelabs/reserve-watchdog/watchdog/store"
)

// FuzzParamsStore tests consensus parameters round-trip through the store
func FuzzParamsStore(f *testing.F) {
	testutil.AddRandomSeedsToFuzzer(f, 10)
	f.Fuzz(func(t *testing.T, seed int64) {
		t.Parallel()
		r := rand.New(rand.NewSource(seed))

		homePath := t.TempDir()
		cfg := config.DefaultDBConfigWithHomePath(homePath)

		db, err := cfg.GetDBBackend()
		require.NoError(t, err)
		s, err := wdstore.NewParamsStore(db)
		require.NoError(t, err)

		defer func() {
			err := db.Close()
			require.NoError(t, err)
			err = os.RemoveAll(homePath)
			require.NoError(t, err)
		}()

		// fresh store has no parameters
		_, err = s.Get()
		require.ErrorIs(t, err, wdstore.ErrParamsNotFound)

		params := types.DefaultConsensusParams()
		params.Threshold = 2 + uint32(r.Intn(5))
		params.SetBasePeriod(time.Duration(1+r.Intn(24)) * time.Hour)

		require.NoError(t, s.Put(&params))

		stored, err := s.Get()
		require.NoError(t, err)
		require.Equal(t, params.Threshold, stored.Threshold)
		require.Equal(t, params.BasePeriod, stored.BasePeriod)
		require.Equal(t, params.EscalationDelays, stored.EscalationDelays)
		require.Equal(t, params.EscalationThresholds, stored.EscalationThresholds)

		// replacing works
		params.Threshold++
		require.NoError(t, s.Put(&params))
		stored, err = s.Get()
		require.NoError(t, err)
		require.Equal(t, params.Threshold, stored.Threshold)
	})
}
