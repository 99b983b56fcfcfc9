package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kg46sp8kps-web/gestima-sub002/internal/domain/materials"
	"github.com/kg46sp8kps-web/gestima-sub002/internal/domain/parts"
	"github.com/kg46sp8kps-web/gestima-sub002/internal/domain/sysconfig"
	"github.com/kg46sp8kps-web/gestima-sub002/internal/domain/workcenters"
	"github.com/kg46sp8kps-web/gestima-sub002/internal/money"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func flatRateCenter(rate string) workcenters.WorkCenter {
	return workcenters.WorkCenter{ID: 1, Code: "DMU50", AmortizationRate: money.MustNew(rate)}
}

func millingOp(setup, piece string) ResolvedOperation {
	return ResolvedOperation{
		Operation: parts.Operation{
			ID: 10, Seq: 1, WorkCenterID: 1, CuttingMode: parts.CuttingMid,
			SetupMinutes: dec(setup), PieceMinutes: dec(piece),
		},
		WorkCenter: flatRateCenter("1200"),
	}
}

func steelTiers() materials.PriceCategory {
	return materials.PriceCategory{ID: 1, Tiers: []materials.PriceTier{
		{ID: 1, MinWeight: dec("0"), MaxWeight: decimal.NewNullDecimal(dec("15")), PricePerKg: money.MustNew("120")},
		{ID: 2, MinWeight: dec("15"), MaxWeight: decimal.NewNullDecimal(dec("100")), PricePerKg: money.MustNew("110")},
		{ID: 3, MinWeight: dec("100"), PricePerKg: money.MustNew("95")},
	}}
}

// 100x100x100 mm steel block: 1 dm³, 7.85 kg.
func steelBlock() ResolvedMaterial {
	return ResolvedMaterial{
		Input:    parts.MaterialInput{ID: 5, CategoryID: 1, QtyPerPart: dec("1")},
		Geometry: materials.SquareBar{Side: dec("100"), L: dec("100")},
		Category: steelTiers(),
		Density:  dec("7.85"),
	}
}

func TestComposeSetupAmortization(t *testing.T) {
	in := Input{PartID: 1, Operations: []ResolvedOperation{millingOp("30", "2")}}
	coef := sysconfig.DefaultCoefficients()

	b1, err := Compose(in, 1, coef)
	require.NoError(t, err)
	assert.Equal(t, "600.00", b1.Totals.SetupPerBatch.String())
	assert.Equal(t, "600.00", b1.Totals.SetupPerPiece.String())
	assert.Equal(t, "40.00", b1.Totals.Machining.String())

	b100, err := Compose(in, 100, coef)
	require.NoError(t, err)
	assert.Equal(t, "600.00", b100.Totals.SetupPerBatch.String())
	assert.Equal(t, "6.00", b100.Totals.SetupPerPiece.String())
	assert.Equal(t, "6.00", b100.Operations[0].SetupPerPiece.String())
	assert.Equal(t, "46.00", b100.Totals.UnitPrice.String())
	assert.Equal(t, "4600.00", b100.Totals.TotalCost.String())

	prev := b1.Totals.MachiningBase
	for _, q := range []int{2, 3, 7, 10, 50, 100, 1000} {
		b, err := Compose(in, q, coef)
		require.NoError(t, err)
		assert.Equal(t, -1, b.Totals.MachiningBase.Cmp(prev), "quantity %d", q)
		prev = b.Totals.MachiningBase
	}
}

func TestComposeRejectsNonPositiveQuantity(t *testing.T) {
	for _, q := range []int{0, -1} {
		_, err := Compose(Input{}, q, sysconfig.DefaultCoefficients())
		require.ErrorIs(t, err, ErrInvalidQuantity)
		assert.Equal(t, "invalid_quantity", Reason(err))
	}
}

func TestComposeOverheadAndMarginWaterfall(t *testing.T) {
	in := Input{
		Materials:  []ResolvedMaterial{steelBlock()},
		Operations: []ResolvedOperation{millingOp("0", "5")}, // 100 per piece
	}
	coef := sysconfig.Coefficients{
		Overhead:          dec("1.2"),
		Margin:            dec("1.1"),
		StockMarkup:       dec("1.05"),
		CooperationMarkup: dec("1"),
	}

	b, err := Compose(in, 1, coef)
	require.NoError(t, err)
	tt := b.Totals

	assert.Equal(t, "100.00", tt.MachiningBase.String())
	assert.Equal(t, "20.00", tt.OverheadIncrement.String())
	assert.Equal(t, "12.00", tt.MarginIncrement.String())
	assert.Equal(t, "132.00", tt.MachiningTotal.String())

	// 7.85 kg in the first bracket, 120/kg
	assert.Equal(t, "942.00", tt.MaterialBase.String())
	assert.Equal(t, "47.10", tt.MaterialMarkup.String())
	assert.Equal(t, "989.10", tt.Material.String())

	assert.Equal(t, "1121.10", tt.UnitPrice.String())
	assert.True(t, tt.UnitPrice.Equal(money.Sum(tt.Material, tt.MachiningBase, tt.OverheadIncrement, tt.MarginIncrement, tt.Cooperation)))
}

func TestComposeTierFollowsBatchWeight(t *testing.T) {
	in := Input{Materials: []ResolvedMaterial{steelBlock()}}

	b, err := Compose(in, 1, sysconfig.DefaultCoefficients())
	require.NoError(t, err)
	assert.Equal(t, int64(1), b.Materials[0].Tier.ID)
	assert.Equal(t, WeightDensity, b.Materials[0].WeightSource)

	// 2 x 7.85 = 15.7 kg crosses into the second bracket
	b, err = Compose(in, 2, sysconfig.DefaultCoefficients())
	require.NoError(t, err)
	assert.Equal(t, int64(2), b.Materials[0].Tier.ID)
	assert.Equal(t, "863.50", b.Materials[0].Cost.String())
	assert.True(t, b.Materials[0].TotalWeight.Equal(dec("15.7")))
}

func TestComposeCatalogWeightWins(t *testing.T) {
	m := steelBlock()
	m.Item = &materials.Item{ID: 77, Code: "SQ100", WeightPerMeter: decimal.NewNullDecimal(dec("80"))}

	b, err := Compose(Input{Materials: []ResolvedMaterial{m}}, 1, sysconfig.DefaultCoefficients())
	require.NoError(t, err)
	line := b.Materials[0]
	assert.Equal(t, WeightCatalog, line.WeightSource)
	assert.True(t, line.WeightPerPiece.Equal(dec("8")), line.WeightPerPiece.String())
	assert.Equal(t, "SQ100", line.ItemCode)
	assert.False(t, line.Density.Valid)
}

func TestComposeDefaultDensityIsFlagged(t *testing.T) {
	m := steelBlock()
	m.WeightSource = WeightDefaultDensity

	b, err := Compose(Input{Materials: []ResolvedMaterial{m}}, 1, sysconfig.DefaultCoefficients())
	require.NoError(t, err)
	assert.True(t, b.Degraded)
	assert.Equal(t, WeightDefaultDensity, b.Materials[0].WeightSource)
}

func TestComposeUnpricableMaterial(t *testing.T) {
	noTiers := steelBlock()
	noTiers.Category.Tiers = nil
	_, err := Compose(Input{Materials: []ResolvedMaterial{noTiers}}, 1, sysconfig.DefaultCoefficients())
	var ue *UnpricableMaterialError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, UnpricableNoTier, ue.Reason)
	assert.ErrorIs(t, err, ErrNoMatchingTier)
	assert.Equal(t, "unpricable_material", Reason(err))

	noDensity := steelBlock()
	noDensity.Density = decimal.Zero
	_, err = Compose(Input{Materials: []ResolvedMaterial{noDensity}}, 1, sysconfig.DefaultCoefficients())
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, UnpricableUnknownDensity, ue.Reason)
}

func TestComposeCooperation(t *testing.T) {
	coop := ResolvedOperation{Operation: parts.Operation{
		ID: 20, Seq: 2, Cooperation: true,
		CoopFlatPrice: money.MustNew("35"), CoopMinPrice: money.MustNew("50"),
		SetupMinutes: dec("999"), PieceMinutes: dec("999"),
	}}
	coef := sysconfig.DefaultCoefficients()
	coef.CooperationMarkup = dec("1.1")
	coef.Overhead = dec("2")

	b, err := Compose(Input{Operations: []ResolvedOperation{coop}}, 10, coef)
	require.NoError(t, err)
	assert.Equal(t, "50.00", b.Totals.CooperationBase.String())
	assert.Equal(t, "5.00", b.Totals.CooperationMarkup.String())
	assert.Equal(t, "55.00", b.Totals.Cooperation.String())
	assert.True(t, b.Totals.MachiningTotal.IsZero(), "cooperation is not time-based and gets no overhead")
	assert.True(t, b.Totals.SetupPerBatch.IsZero())
	assert.Equal(t, "550.00", b.Totals.TotalCost.String())
}

func TestComposeCuttingModeManningUtilization(t *testing.T) {
	op := millingOp("0", "10") // 200 per piece at mid
	op.Operation.CuttingMode = parts.CuttingLow
	op.Operation.Manning = dec("0.5")
	op.Operation.Utilization = dec("0.8")

	b, err := Compose(Input{Operations: []ResolvedOperation{op}}, 1, sysconfig.DefaultCoefficients())
	require.NoError(t, err)
	// 200 * 1.15 * 0.5 / 0.8
	assert.Equal(t, "143.75", b.Totals.Machining.String())
}

func TestComposeRejectsBadCoefficients(t *testing.T) {
	_, err := Compose(Input{}, 1, sysconfig.Coefficients{})
	require.ErrorIs(t, err, sysconfig.ErrInvalidCoefficient)
	assert.Equal(t, "invalid_input", Reason(err))
}

func TestComposeRoundsOnlyForDisplay(t *testing.T) {
	// 10 min setup at 100/h over 3 pieces. Rounding the piece price first
	// would give 3 x 5.56 = 16.68.
	in := Input{Operations: []ResolvedOperation{{
		Operation:  parts.Operation{ID: 1, SetupMinutes: dec("10")},
		WorkCenter: flatRateCenter("100"),
	}}}
	b, err := Compose(in, 3, sysconfig.DefaultCoefficients())
	require.NoError(t, err)
	assert.Equal(t, "5.56", b.Totals.UnitPrice.String())
	assert.Equal(t, "16.67", b.Totals.TotalCost.String())
	assert.Equal(t, "16.67", b.Totals.SetupPerBatch.String())
}
