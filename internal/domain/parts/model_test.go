package parts

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kg46sp8kps-web/gestima-sub002/internal/domain/materials"
)

func TestCuttingModeTimeFactor(t *testing.T) {
	assert.Equal(t, "1.15", CuttingLow.TimeFactor().String())
	assert.Equal(t, "1", CuttingMid.TimeFactor().String())
	assert.Equal(t, "0.85", CuttingHigh.TimeFactor().String())
	assert.Equal(t, "1", CuttingMode("").TimeFactor().String())
	assert.False(t, CuttingMode("turbo").Valid())
}

func TestMaterialInputGeometryIgnoresIrrelevantFields(t *testing.T) {
	in := MaterialInput{
		Shape: materials.ShapeRoundBar,
		Dims: materials.Dimensions{
			Diameter:      decimal.NewNullDecimal(decimal.NewFromInt(30)),
			Length:        decimal.NewNullDecimal(decimal.NewFromInt(80)),
			WallThickness: decimal.NewNullDecimal(decimal.NewFromInt(-5)),
		},
	}
	g, err := in.Geometry()
	require.NoError(t, err)
	assert.Equal(t, materials.ShapeRoundBar, g.Shape())
	assert.True(t, g.Length().Equal(decimal.NewFromInt(80)))
}
