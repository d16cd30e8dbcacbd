package slippage

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swapdesk/internal/model"
)

func TestMinOutZeroTolerance(t *testing.T) {
	x := big.NewInt(123456789)
	got, err := MinOut(x, 0)
	require.NoError(t, err)
	assert.Zero(t, x.Cmp(got))
}

func TestMinOutStrictlyDecreasing(t *testing.T) {
	x := big.NewInt(1_000_000)
	prev, err := MinOut(x, 0)
	require.NoError(t, err)
	for bps := uint32(1); bps < BpsDenominator; bps++ {
		got, err := MinOut(x, bps)
		require.NoError(t, err)
		require.Equal(t, -1, got.Cmp(prev), "bps=%d", bps)
		prev = got
	}
}

func TestMinOutRejectsFullTolerance(t *testing.T) {
	for _, bps := range []uint32{10_000, 10_001, 65_535} {
		_, err := MinOut(big.NewInt(1), bps)
		assert.ErrorIs(t, err, model.ErrInvalidTolerance)
	}
}

func TestMinOutFloors(t *testing.T) {
	got, err := MinOut(big.NewInt(199), 50)
	require.NoError(t, err)
	// 199 * 9950 / 10000 = 198.005
	assert.Equal(t, int64(198), got.Int64())
}

func TestMaxInCeils(t *testing.T) {
	got, err := MaxIn(big.NewInt(199), 50)
	require.NoError(t, err)
	// 199 * 10050 / 10000 = 199.995
	assert.Equal(t, int64(200), got.Int64())
}

func TestLiquidityBounds(t *testing.T) {
	minA, minB, err := LiquidityBounds(big.NewInt(1000), big.NewInt(2000), 100)
	require.NoError(t, err)
	assert.Equal(t, int64(990), minA.Int64())
	assert.Equal(t, int64(1980), minB.Int64())

	_, _, err = LiquidityBounds(big.NewInt(1), big.NewInt(1), 10_000)
	assert.ErrorIs(t, err, model.ErrInvalidTolerance)
}

func TestDeadline(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	assert.Equal(t, uint64(1_700_000_300), Deadline(now, 5*time.Minute))
}
