package amount

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"0", "0"},
		{"100", "100"},
		{"-42", "-42"},
		{"+7", "7"},
		{" 1,000,000 ", "1000000"},
		{"1_000", "1000"},
		{"1.5e3", "1500"},
		{"2000.000", "2000"},
		{"0e-100000000", "0"},
		{"-0.000", "0"},
		{"1200e-2", "12"},
		{"1000000000000000000000000000000", "1000000000000000000000000000000"},
		{"-170141183460469231731687303715884105728", "-170141183460469231731687303715884105728"},
	}
	for _, tc := range cases {
		got, err := Parse(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got.String(), tc.in)
	}
}

func TestParseRejects(t *testing.T) {
	_, err := Parse("")
	assert.ErrorIs(t, err, ErrEmpty)

	for _, in := range []string{"abc", "0x10", "1.5", "12e-1", "NaN", "5e-100000000", "123e-3"} {
		_, err := Parse(in)
		assert.ErrorIs(t, err, ErrInvalid, in)
	}

	for _, in := range []string{"170141183460469231731687303715884105728", "1e39", "9e999999999"} {
		_, err := Parse(in)
		assert.ErrorIs(t, err, ErrOverflow, in)
	}
}

func TestParseLargeNegativeExponentIsFast(t *testing.T) {
	start := time.Now()
	for _, in := range []string{"0e-2147483648", "0e-100000000", "7e-2147483648", "-3e-999999999"} {
		_, _ = ParseOrZero(in)
	}
	assert.Less(t, time.Since(start), time.Second)
}

func TestParseOrZero(t *testing.T) {
	v, ok := ParseOrZero("not-a-number")
	assert.False(t, ok)
	assert.Equal(t, "0", v.String())

	v, ok = ParseOrZero("0")
	assert.True(t, ok)
	assert.Equal(t, "0", v.String())
}

func TestDeltaExactForLargeMagnitudes(t *testing.T) {
	pre, ok := ParseOrZero("999999999999999999999999999999")
	require.True(t, ok)
	post, ok := ParseOrZero("1000000000000000000000000000001")
	require.True(t, ok)

	assert.Equal(t, "2", Delta(pre, post).String())
	assert.Equal(t, "-2", Delta(post, pre).String())
	assert.Equal(t, "5", Delta(nil, big.NewInt(5)).String())
}

func TestNegAndString(t *testing.T) {
	assert.Equal(t, "-5", String(Neg(big.NewInt(5))))
	assert.Equal(t, "0", String(nil))
	assert.Equal(t, "0", String(Neg(nil)))
}
