// Package export reads and writes the Excel files the quoting office works with.
package export

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/kg46sp8kps-web/gestima-sub002/internal/money"
	"github.com/kg46sp8kps-web/gestima-sub002/internal/pricing"
)

const (
	SummarySheet    = "Quote"
	OperationsSheet = "Operations"
)

var summaryHeader = []any{
	"quantity", "material", "setup_per_piece", "machining", "overhead", "margin",
	"machining_total", "cooperation", "unit_price", "total_cost", "degraded",
}

var operationsHeader = []any{
	"quantity", "seq", "operation", "work_center", "cutting_mode", "setup_minutes",
	"piece_minutes", "setup_per_batch", "setup_per_piece", "machining_per_piece", "cooperation_per_piece",
}

// QuoteWorkbook writes one summary row per quantity and one operations row per
// quantity and operation. Money cells carry display-rounded values.
func QuoteWorkbook(title string, bds []pricing.Breakdown) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(f.GetActiveSheetIndex()), SummarySheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(OperationsSheet); err != nil {
		return nil, err
	}

	if err := f.SetCellValue(SummarySheet, "A1", title); err != nil {
		return nil, err
	}
	if err := setRow(f, SummarySheet, 2, summaryHeader); err != nil {
		return nil, err
	}
	if err := setRow(f, OperationsSheet, 1, operationsHeader); err != nil {
		return nil, err
	}

	row, opRow := 3, 2
	for _, b := range bds {
		t := b.Totals
		err := setRow(f, SummarySheet, row, []any{
			b.Quantity, cell(t.Material), cell(t.SetupPerPiece), cell(t.Machining),
			cell(t.OverheadIncrement), cell(t.MarginIncrement), cell(t.MachiningTotal),
			cell(t.Cooperation), cell(t.UnitPrice), cell(t.TotalCost), b.Degraded,
		})
		if err != nil {
			return nil, err
		}
		row++

		for _, op := range b.Operations {
			err := setRow(f, OperationsSheet, opRow, []any{
				b.Quantity, op.Seq, op.Name, op.WorkCenterCode, string(op.CuttingMode),
				op.SetupMinutes.InexactFloat64(), op.PieceMinutes.InexactFloat64(),
				cell(op.SetupPerBatch), cell(op.SetupPerPiece), cell(op.MachiningPerPiece),
				cell(op.CooperationPerPiece),
			})
			if err != nil {
				return nil, err
			}
			opRow++
		}
	}

	buf := &bytes.Buffer{}
	if err := f.Write(buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf, nil
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	c, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, c, &values)
}

func cell(a money.Amount) float64 { return a.Round().InexactFloat64() }
