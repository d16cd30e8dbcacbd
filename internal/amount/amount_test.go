package amount

import (
	"math/big"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swapdesk/internal/model"
)

func mustBig(t *testing.T, s string) *big.Int {
	t.Helper()
	v, ok := new(big.Int).SetString(s, 10)
	require.True(t, ok, "bad literal %s", s)
	return v
}

func TestToBaseUnits(t *testing.T) {
	cases := []struct {
		in       string
		decimals uint8
		want     string
	}{
		{"1", 18, "1000000000000000000"},
		{"1.5", 6, "1500000"},
		{"0.000001", 6, "1"},
		{".5", 2, "50"},
		{"12.", 2, "1200"},
		{" 3 ", 0, "3"},
		{"0.1234567", 6, "123456"},
		{"", 18, "0"},
		{"abc", 18, "0"},
		{"1.2.3", 18, "0"},
		{"-", 18, "0"},
		{"1e18", 0, "0"},
	}
	for _, tc := range cases {
		got, err := ToBaseUnits(tc.in, tc.decimals)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got.String(), tc.in)
	}
}

func TestToBaseUnitsNegative(t *testing.T) {
	_, err := ToBaseUnits("-1", 18)
	require.ErrorIs(t, err, model.ErrInvalidAmount)
}

func TestParseStrict(t *testing.T) {
	got, err := ParseStrict("2.25", 2)
	require.NoError(t, err)
	assert.Equal(t, "225", got.String())

	for _, in := range []string{"", "-", "1.2.3", "abc", "-4", "0.001"} {
		_, err := ParseStrict(in, 2)
		assert.ErrorIs(t, err, model.ErrInvalidAmount, in)
	}
}

func TestToDecimalString(t *testing.T) {
	assert.Equal(t, "0", ToDecimalString(nil, 18))
	assert.Equal(t, "0", ToDecimalString(big.NewInt(0), 18))
	assert.Equal(t, "1.5", ToDecimalString(big.NewInt(1500000), 6))
	assert.Equal(t, "0.000001", ToDecimalString(big.NewInt(1), 6))
	assert.Equal(t, "42", ToDecimalString(big.NewInt(42), 0))
	assert.Equal(t, "1", ToDecimalString(mustBig(t, "1000000000000000000"), 18))
	assert.Equal(t, "-0.5", ToDecimalString(big.NewInt(-5), 1))
}

func TestRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	max := new(big.Int).Lsh(big.NewInt(1), 200)
	for d := uint8(0); d <= 18; d++ {
		values := []*big.Int{big.NewInt(0), big.NewInt(1), Pow10(d), new(big.Int).Sub(max, big.NewInt(1))}
		for i := 0; i < 20; i++ {
			values = append(values, new(big.Int).Rand(rng, max))
		}
		for _, v := range values {
			got, err := ToBaseUnits(ToDecimalString(v, d), d)
			require.NoError(t, err)
			require.Zero(t, v.Cmp(got), "decimals=%d value=%s got=%s", d, v, got)
		}
	}
}

func TestPow10Large(t *testing.T) {
	assert.Equal(t, "1000000000000000000000000", Pow10(24).String())
}
