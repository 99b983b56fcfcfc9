package materials

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kg46sp8kps-web/gestima-sub002/internal/money"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func upTo(s string) decimal.NullDecimal { return decimal.NewNullDecimal(dec(s)) }

func steelCategory() PriceCategory {
	// deliberately unsorted
	return PriceCategory{
		ID: 1,
		Tiers: []PriceTier{
			{ID: 3, MinWeight: dec("100"), PricePerKg: money.MustNew("95")},
			{ID: 1, MinWeight: dec("0"), MaxWeight: upTo("15"), PricePerKg: money.MustNew("120")},
			{ID: 2, MinWeight: dec("15"), MaxWeight: upTo("100"), PricePerKg: money.MustNew("110")},
		},
	}
}

func TestResolveTierBoundaryBelongsToUpperTier(t *testing.T) {
	tier, err := ResolveTier(steelCategory(), dec("15.0"))
	require.NoError(t, err)
	assert.Equal(t, int64(2), tier.ID)
	assert.Equal(t, "110.00", tier.PricePerKg.String())

	tier, err = ResolveTier(steelCategory(), dec("100"))
	require.NoError(t, err)
	assert.Equal(t, int64(3), tier.ID)
}

func TestResolveTierCoversWholeRange(t *testing.T) {
	c := steelCategory()
	cases := map[string]int64{
		"0":          1,
		"0.0001":     1,
		"14.9999":    1,
		"15":         2,
		"57.3":       2,
		"99.999999":  2,
		"100":        3,
		"1000000000": 3,
	}
	for w, want := range cases {
		tier, err := ResolveTier(c, dec(w))
		require.NoError(t, err, "weight %s", w)
		assert.Equal(t, want, tier.ID, "weight %s", w)

		matching := 0
		for _, tr := range c.Tiers {
			if tr.Contains(dec(w)) {
				matching++
			}
		}
		assert.Equal(t, 1, matching, "weight %s must hit exactly one tier", w)
	}
}

func TestResolveTierFailures(t *testing.T) {
	_, err := ResolveTier(PriceCategory{ID: 9}, dec("1"))
	require.ErrorIs(t, err, ErrNoMatchingTier)

	_, err = ResolveTier(steelCategory(), dec("-0.5"))
	require.ErrorIs(t, err, ErrNoMatchingTier)

	gappy := PriceCategory{ID: 4, Tiers: []PriceTier{
		{MinWeight: dec("0"), MaxWeight: upTo("10")},
		{MinWeight: dec("20")},
	}}
	_, err = ResolveTier(gappy, dec("12"))
	var nm *NoMatchingTierError
	require.ErrorAs(t, err, &nm)
	assert.Equal(t, int64(4), nm.CategoryID)
}

func TestValidateTiers(t *testing.T) {
	require.NoError(t, ValidateTiers(steelCategory().Tiers))

	cases := map[string][]PriceTier{
		"empty": nil,
		"not from zero": {
			{MinWeight: dec("1")},
		},
		"gap": {
			{MinWeight: dec("0"), MaxWeight: upTo("10")},
			{MinWeight: dec("11")},
		},
		"overlap": {
			{MinWeight: dec("0"), MaxWeight: upTo("10")},
			{MinWeight: dec("5")},
		},
		"bounded last": {
			{MinWeight: dec("0"), MaxWeight: upTo("10")},
		},
		"unbounded middle": {
			{MinWeight: dec("0")},
			{MinWeight: dec("10")},
		},
		"negative price": {
			{MinWeight: dec("0"), PricePerKg: money.MustNew("-1")},
		},
	}
	for name, tiers := range cases {
		assert.ErrorIs(t, ValidateTiers(tiers), ErrInvalidTiers, name)
	}
}
