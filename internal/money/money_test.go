package money

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundIsHalfToEven(t *testing.T) {
	cases := map[string]string{
		"0.125":  "0.12",
		"0.135":  "0.14",
		"2.345":  "2.34",
		"2.3451": "2.35",
		"-1.005": "-1.00",
	}
	for in, want := range cases {
		assert.Equal(t, want, MustNew(in).String(), "round(%s)", in)
	}
}

func TestAccumulateThenRoundOnce(t *testing.T) {
	third := FromInt(10).Div(decimal.NewFromInt(3))

	total := Sum(third, third, third)
	assert.Equal(t, "10.00", total.String())

	// Rounding each part first drifts by a cent.
	roundedParts := Sum(
		FromDecimal(third.Round()),
		FromDecimal(third.Round()),
		FromDecimal(third.Round()),
	)
	assert.Equal(t, "9.99", roundedParts.String())
}

func TestArithmetic(t *testing.T) {
	a := MustNew("12.5")
	b := MustNew("2.25")

	assert.True(t, a.Add(b).Equal(MustNew("14.75")))
	assert.True(t, a.Sub(b).Equal(MustNew("10.25")))
	assert.True(t, a.Mul(decimal.RequireFromString("1.2")).Equal(MustNew("15")))
	assert.True(t, a.MulInt(4).Equal(MustNew("50")))
	assert.True(t, a.Max(b).Equal(a))
	assert.True(t, b.Max(a).Equal(a))
	assert.True(t, a.Neg().IsNegative())
	assert.True(t, Zero.IsZero())
	assert.Equal(t, 1, a.Cmp(b))
}

func TestJSONKeepsFullPrecision(t *testing.T) {
	in := MustNew("1.23456789")

	raw, err := json.Marshal(in)
	require.NoError(t, err)
	assert.Equal(t, `"1.23456789"`, string(raw))

	var out Amount
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.True(t, in.Equal(out))
	assert.Equal(t, "1.23456789", out.Exact())

	require.NoError(t, json.Unmarshal([]byte(`42.5`), &out))
	assert.True(t, out.Equal(MustNew("42.5")))
}

func TestNewRejectsGarbage(t *testing.T) {
	_, err := New("twelve")
	require.Error(t, err)
}
