package export

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/kg46sp8kps-web/gestima-sub002/internal/domain/materials"
	"github.com/kg46sp8kps-web/gestima-sub002/internal/money"
)

var tiersHeader = []any{"min_weight", "max_weight", "price_per_kg"}

// TiersWorkbook writes a category's brackets in the layout ParseTiers reads
// back. An unbounded bracket has an empty max_weight cell.
func TiersWorkbook(cat materials.PriceCategory) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	if err := setRow(f, sheet, 1, tiersHeader); err != nil {
		return nil, err
	}
	for i, t := range cat.Tiers {
		var upper any = ""
		if t.MaxWeight.Valid {
			upper = t.MaxWeight.Decimal.String()
		}
		if err := setRow(f, sheet, i+2, []any{t.MinWeight.String(), upper, t.PricePerKg.Exact()}); err != nil {
			return nil, err
		}
	}

	buf := &bytes.Buffer{}
	if err := f.Write(buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf, nil
}

// ParseTiers reads min_weight | max_weight | price_per_kg rows from the active
// sheet. The first row is a header. Decimal commas are accepted. The result
// must partition [0, inf) or materials.ErrInvalidTiers is returned.
func ParseTiers(r io.Reader) ([]materials.PriceTier, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: open workbook: %v", materials.ErrInvalidTiers, err)
	}
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows(f.GetSheetName(f.GetActiveSheetIndex()))
	if err != nil {
		return nil, err
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("%w: workbook has no tier rows", materials.ErrInvalidTiers)
	}

	var tiers []materials.PriceTier
	for i, row := range rows[1:] {
		line := i + 2
		row = append(row, "", "", "")
		minStr, maxStr, priceStr := norm(row[0]), norm(row[1]), norm(row[2])
		if minStr == "" && maxStr == "" && priceStr == "" {
			continue
		}

		var t materials.PriceTier
		if t.MinWeight, err = decimal.NewFromString(minStr); err != nil {
			return nil, fmt.Errorf("%w: row %d: min_weight %q", materials.ErrInvalidTiers, line, row[0])
		}
		if maxStr != "" {
			upper, err := decimal.NewFromString(maxStr)
			if err != nil {
				return nil, fmt.Errorf("%w: row %d: max_weight %q", materials.ErrInvalidTiers, line, row[1])
			}
			t.MaxWeight = decimal.NewNullDecimal(upper)
		}
		if t.PricePerKg, err = money.New(priceStr); err != nil {
			return nil, fmt.Errorf("%w: row %d: price_per_kg %q", materials.ErrInvalidTiers, line, row[2])
		}
		tiers = append(tiers, t)
	}

	if err := materials.ValidateTiers(tiers); err != nil {
		return nil, err
	}
	return tiers, nil
}

func norm(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
}
