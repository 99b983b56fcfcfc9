package batches

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kg46sp8kps-web/gestima-sub002/internal/domain/materials"
	"github.com/kg46sp8kps-web/gestima-sub002/internal/money"
	"github.com/kg46sp8kps-web/gestima-sub002/internal/pricing"
)

func TestSnapshotKeepsFullPrecision(t *testing.T) {
	at := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	third := money.FromDecimal(decimal.NewFromInt(10).Div(decimal.NewFromInt(3)))
	b := Batch{
		ID: 4, PartID: 2, Quantity: 3,
		Breakdown: pricing.Breakdown{
			PartID: 2, Quantity: 3,
			Materials: []pricing.MaterialLine{{
				InputID: 9,
				Tier: materials.PriceTier{
					ID: 1, MinWeight: decimal.Zero, MaxWeight: decimal.NewNullDecimal(decimal.NewFromInt(15)),
					PricePerKg: money.MustNew("120"),
				},
				PricePerKg: money.MustNew("120"),
			}},
			Totals: pricing.Totals{UnitPrice: third, TotalCost: third.MulInt(3)},
		},
	}

	payload, err := EncodeSnapshot(NewSnapshot(b, at))
	require.NoError(t, err)

	s, err := DecodeSnapshot(payload)
	require.NoError(t, err)
	assert.Equal(t, SnapshotSchemaVersion, s.SchemaVersion)
	assert.Equal(t, int64(4), s.BatchID)
	assert.True(t, at.Equal(s.FrozenAt))
	assert.True(t, s.Breakdown.Totals.UnitPrice.Equal(third), "got %s", s.Breakdown.Totals.UnitPrice.Exact())
	assert.Equal(t, "10.00", s.Breakdown.Totals.TotalCost.String())
	assert.Equal(t, "15", s.Breakdown.Materials[0].Tier.MaxWeight.Decimal.String())
}

func TestDecodeSnapshotRejectsUnknownSchema(t *testing.T) {
	_, err := DecodeSnapshot([]byte(`{"schema_version": 99, "batch_id": 1}`))
	require.ErrorIs(t, err, ErrSnapshotSchema)

	_, err = DecodeSnapshot([]byte(`{"batch_id": 1}`))
	require.ErrorIs(t, err, ErrSnapshotSchema)

	_, err = DecodeSnapshot([]byte(`not json`))
	require.Error(t, err)
}
