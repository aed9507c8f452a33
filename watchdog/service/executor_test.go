package service

import (
	"math/rand"
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/stretchr/testify/require"

	"github.com/reservelabs/reserve-watchdog/testutil"
)

// FuzzPaymentClaimCodec tests that claims round-trip ahead of an opaque
// payload tail and that truncations are rejected
func FuzzPaymentClaimCodec(f *testing.F) {
	testutil.AddRandomSeedsToFuzzer(f, 10)
	f.Fuzz(func(t *testing.T, seed int64) {
		t.Parallel()
		r := rand.New(rand.NewSource(seed))

		claim := PaymentClaim{
			Address: testutil.GenRandomHexStr(r, 10+uint64(r.Intn(20))),
			Amount:  btcutil.Amount(1 + r.Int63n(21_000_000)),
		}
		rest := testutil.GenRandomByteArray(r, uint64(r.Intn(64)))

		data := EncodePaymentClaim(claim, rest)
		decoded, err := DecodePaymentClaim(data)
		require.NoError(t, err)
		require.Equal(t, claim, decoded)

		// truncating anywhere inside the claim prefix fails
		prefixLen := 2 + len(claim.Address) + 8
		for _, cut := range []int{0, 1, 2, prefixLen - 1} {
			_, err := DecodePaymentClaim(data[:cut])
			require.Error(t, err)
		}

		// a zero-length address is not a claim
		_, err = DecodePaymentClaim([]byte{0x00, 0x00, 1, 2, 3, 4, 5, 6, 7, 8})
		require.Error(t, err)
	})
}
