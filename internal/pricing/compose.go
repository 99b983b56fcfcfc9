package pricing

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kg46sp8kps-web/gestima-sub002/internal/domain/materials"
	"github.com/kg46sp8kps-web/gestima-sub002/internal/domain/parts"
	"github.com/kg46sp8kps-web/gestima-sub002/internal/domain/sysconfig"
	"github.com/kg46sp8kps-web/gestima-sub002/internal/domain/workcenters"
	"github.com/kg46sp8kps-web/gestima-sub002/internal/money"
)

var (
	one            = decimal.NewFromInt(1)
	minutesPerHour = decimal.NewFromInt(60)
)

// Input is everything a part's price depends on, loaded and resolved. It does
// not depend on the quantity, so one Input serves a whole series.
type Input struct {
	PartID        int64
	Materials     []ResolvedMaterial
	Operations    []ResolvedOperation
	ConfigVersion int64
	ComputedAt    time.Time
}

// ResolvedMaterial is a material input with its stock item chosen.
type ResolvedMaterial struct {
	Input parts.MaterialInput
	// Geometry is what gets weighed: the stock item's profile at the required length.
	Geometry materials.Geometry
	Item     *materials.Item
	Matched  bool
	Category materials.PriceCategory
	Density  decimal.Decimal
	// WeightSource is WeightDensity or WeightDefaultDensity; an item with a
	// catalog kg/m overrides it.
	WeightSource WeightSource
}

type ResolvedOperation struct {
	Operation  parts.Operation
	WorkCenter workcenters.WorkCenter
}

// Compose prices one quantity. It reads nothing but its arguments.
func Compose(in Input, quantity int, coef sysconfig.Coefficients) (Breakdown, error) {
	if quantity <= 0 {
		return Breakdown{}, fmt.Errorf("%w: %d", ErrInvalidQuantity, quantity)
	}
	if err := coef.Validate(); err != nil {
		return Breakdown{}, err
	}
	qty := decimal.NewFromInt(int64(quantity))

	b := Breakdown{
		PartID:        in.PartID,
		Quantity:      quantity,
		Materials:     make([]MaterialLine, 0, len(in.Materials)),
		Operations:    make([]OperationLine, 0, len(in.Operations)),
		Coefficients:  coef,
		ConfigVersion: in.ConfigVersion,
		ComputedAt:    in.ComputedAt,
	}
	var t Totals

	for _, m := range in.Materials {
		line, err := composeMaterial(m, qty, coef.StockMarkup)
		if err != nil {
			return Breakdown{}, err
		}
		if line.WeightSource == WeightDefaultDensity {
			b.Degraded = true
		}
		t.MaterialBase = t.MaterialBase.Add(line.BaseCost)
		t.MaterialMarkup = t.MaterialMarkup.Add(line.MarkupIncrement)
		b.Materials = append(b.Materials, line)
	}
	t.Material = t.MaterialBase.Add(t.MaterialMarkup)

	for _, ro := range in.Operations {
		line, err := composeOperation(ro, qty)
		if err != nil {
			return Breakdown{}, err
		}
		t.SetupPerBatch = t.SetupPerBatch.Add(line.SetupPerBatch)
		t.Machining = t.Machining.Add(line.MachiningPerPiece)
		t.CooperationBase = t.CooperationBase.Add(line.CooperationPerPiece)
		b.Operations = append(b.Operations, line)
	}

	t.SetupPerPiece = t.SetupPerBatch.Div(qty)
	t.MachiningBase = t.SetupPerPiece.Add(t.Machining)
	withOverhead := t.MachiningBase.Mul(coef.Overhead)
	t.OverheadIncrement = withOverhead.Sub(t.MachiningBase)
	t.MachiningTotal = withOverhead.Mul(coef.Margin)
	t.MarginIncrement = t.MachiningTotal.Sub(withOverhead)

	t.Cooperation = t.CooperationBase.Mul(coef.CooperationMarkup)
	t.CooperationMarkup = t.Cooperation.Sub(t.CooperationBase)

	t.UnitPrice = money.Sum(t.Material, t.MachiningTotal, t.Cooperation)
	t.TotalCost = t.UnitPrice.MulInt(int64(quantity))
	b.Totals = t
	return b, nil
}

func composeMaterial(m ResolvedMaterial, qty, stockMarkup decimal.Decimal) (MaterialLine, error) {
	in := m.Input
	fail := func(reason string, err error) (MaterialLine, error) {
		return MaterialLine{}, &UnpricableMaterialError{InputID: in.ID, Reason: reason, Err: err}
	}
	if m.Geometry == nil {
		return fail(UnpricableInvalidGeometry, nil)
	}
	if !in.QtyPerPart.IsPositive() {
		return fail(UnpricableQtyPerPart, nil)
	}

	line := MaterialLine{
		InputID:    in.ID,
		CategoryID: m.Category.ID,
		Matched:    m.Matched,
		Shape:      m.Geometry.Shape(),
		Dims:       m.Geometry.Dimensions(),
		QtyPerPart: in.QtyPerPart,
	}
	if m.Item != nil {
		id := m.Item.ID
		line.ItemID = &id
		line.ItemCode = m.Item.Code
	}

	var blank decimal.Decimal
	if m.Item != nil && m.Item.WeightPerMeter.Valid && m.Item.WeightPerMeter.Decimal.IsPositive() {
		line.WeightSource = WeightCatalog
		line.WeightPerMeter = m.Item.WeightPerMeter
		blank = materials.WeightFromCatalog(m.Item.WeightPerMeter.Decimal, m.Geometry.Length())
	} else {
		if !m.Density.IsPositive() {
			return fail(UnpricableUnknownDensity, nil)
		}
		line.WeightSource = m.WeightSource
		if line.WeightSource == "" {
			line.WeightSource = WeightDensity
		}
		line.Density = decimal.NewNullDecimal(m.Density)
		blank = materials.WeightFromDensity(m.Geometry, m.Density)
	}
	line.WeightPerPiece = blank.Mul(in.QtyPerPart)
	line.TotalWeight = line.WeightPerPiece.Mul(qty)

	tier, err := materials.ResolveTier(m.Category, line.TotalWeight)
	if err != nil {
		return fail(UnpricableNoTier, err)
	}
	line.Tier = tier
	line.PricePerKg = tier.PricePerKg
	line.BaseCost = tier.PricePerKg.Mul(line.WeightPerPiece)
	line.Cost = line.BaseCost.Mul(stockMarkup)
	line.MarkupIncrement = line.Cost.Sub(line.BaseCost)
	return line, nil
}

func composeOperation(ro ResolvedOperation, qty decimal.Decimal) (OperationLine, error) {
	op := ro.Operation
	line := OperationLine{
		OperationID:  op.ID,
		Seq:          op.Seq,
		Name:         op.Name,
		WorkCenterID: op.WorkCenterID,
		Cooperation:  op.Cooperation,
	}

	if op.Cooperation {
		line.CoopFlatPrice = op.CoopFlatPrice
		line.CoopMinPrice = op.CoopMinPrice
		line.CooperationPerPiece = op.CoopFlatPrice.Max(op.CoopMinPrice)
		if line.CooperationPerPiece.IsNegative() {
			return OperationLine{}, fmt.Errorf("%w: operation %d has a negative cooperation price", ErrInvalidOperation, op.ID)
		}
		return line, nil
	}

	// Zero coefficients are unset columns and count as 1.
	manning, utilization := orOne(op.Manning), orOne(op.Utilization)
	if op.SetupMinutes.IsNegative() || op.PieceMinutes.IsNegative() || manning.IsNegative() || utilization.IsNegative() {
		return OperationLine{}, fmt.Errorf("%w: operation %d has negative times or coefficients", ErrInvalidOperation, op.ID)
	}

	wc := ro.WorkCenter
	line.WorkCenterCode = wc.Code
	line.RatesChangedAt = wc.RatesChangedAt
	line.CuttingMode = op.CuttingMode
	line.TimeFactor = op.CuttingMode.TimeFactor()
	line.SetupMinutes = op.SetupMinutes
	line.PieceMinutes = op.PieceMinutes
	line.Manning = manning
	line.Utilization = utilization
	line.SetupRate = wc.SetupRate()
	line.OperationRate = wc.OperationRate()

	line.SetupPerBatch = line.SetupRate.Mul(op.SetupMinutes).Div(minutesPerHour)
	line.SetupPerPiece = line.SetupPerBatch.Div(qty)

	// rate/h * minutes * cutting factor * manning / (60 * utilization)
	minutes := op.PieceMinutes.Mul(line.TimeFactor).Mul(manning)
	line.MachiningPerPiece = line.OperationRate.Mul(minutes).Div(minutesPerHour.Mul(utilization))
	return line, nil
}

func orOne(d decimal.Decimal) decimal.Decimal {
	if d.IsZero() {
		return one
	}
	return d
}
