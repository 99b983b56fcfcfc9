package export

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/kg46sp8kps-web/gestima-sub002/internal/domain/materials"
	"github.com/kg46sp8kps-web/gestima-sub002/internal/infra/memstore"
	"github.com/kg46sp8kps-web/gestima-sub002/internal/pricing"
)

func demoSeries(t *testing.T, qtys ...int) []pricing.Breakdown {
	t.Helper()
	s := memstore.New()
	d := memstore.SeedDemo(s)
	cat := pricing.Catalog{Parts: s, WorkCenters: s, Materials: pricing.NewCache(s), Config: s}
	p := pricing.NewPricer(cat, pricing.Options{Now: func() time.Time { return time.Unix(0, 0) }},
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	bds, err := p.Series(context.Background(), d.PartID, qtys)
	require.NoError(t, err)
	return bds
}

func TestQuoteWorkbook(t *testing.T) {
	buf, err := QuoteWorkbook("SHAFT-01 Drive shaft", demoSeries(t, 1, 100))
	require.NoError(t, err)

	f, err := excelize.OpenReader(buf)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	title, err := f.GetCellValue(SummarySheet, "A1")
	require.NoError(t, err)
	assert.Equal(t, "SHAFT-01 Drive shaft", title)

	rows, err := f.GetRows(SummarySheet)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "unit_price", rows[1][8])
	assert.Equal(t, "1", rows[2][0])
	assert.Equal(t, "849.57", rows[2][8])
	assert.Equal(t, "100", rows[3][0])

	ops, err := f.GetRows(OperationsSheet)
	require.NoError(t, err)
	assert.Len(t, ops, 1+2*3)
	assert.Equal(t, "LATHE", ops[2][3])
}

func tierBook(t *testing.T, rows ...[]any) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	require.NoError(t, setRow(f, sheet, 1, tiersHeader))
	for i, r := range rows {
		require.NoError(t, setRow(f, sheet, i+2, r))
	}
	buf := &bytes.Buffer{}
	require.NoError(t, f.Write(buf))
	return buf
}

func TestParseTiers(t *testing.T) {
	tiers, err := ParseTiers(tierBook(t,
		[]any{"15", "100", "110"},
		[]any{"0", "15", "120,50"},
		[]any{"", "", ""},
		[]any{"100", "", "95"},
	))
	require.NoError(t, err)
	require.Len(t, tiers, 3)
	assert.Equal(t, "120.50", tiers[1].PricePerKg.String())
	assert.False(t, tiers[2].MaxWeight.Valid)
}

func TestParseTiersRejects(t *testing.T) {
	cases := map[string]*bytes.Buffer{
		"gap":         tierBook(t, []any{"0", "10", "1"}, []any{"12", "", "1"}),
		"bounded end": tierBook(t, []any{"0", "10", "1"}),
		"bad number":  tierBook(t, []any{"zero", "", "1"}),
		"empty":       tierBook(t),
	}
	for name, buf := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseTiers(buf)
			require.ErrorIs(t, err, materials.ErrInvalidTiers)
		})
	}
}

func TestTiersRoundTrip(t *testing.T) {
	s := memstore.New()
	d := memstore.SeedDemo(s)
	cat, _, err := s.GetPriceCategory(context.Background(), d.SteelCategoryID)
	require.NoError(t, err)

	buf, err := TiersWorkbook(cat)
	require.NoError(t, err)
	tiers, err := ParseTiers(buf)
	require.NoError(t, err)
	require.Len(t, tiers, len(cat.Tiers))
	for i := range tiers {
		assert.True(t, tiers[i].MinWeight.Equal(cat.Tiers[i].MinWeight))
		assert.True(t, tiers[i].PricePerKg.Equal(cat.Tiers[i].PricePerKg))
	}
}
