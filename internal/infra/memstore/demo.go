package memstore

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/kg46sp8kps-web/gestima-sub002/internal/domain/materials"
	"github.com/kg46sp8kps-web/gestima-sub002/internal/domain/parts"
	"github.com/kg46sp8kps-web/gestima-sub002/internal/domain/workcenters"
	"github.com/kg46sp8kps-web/gestima-sub002/internal/money"
)

// Demo holds the ids of the data SeedDemo created.
type Demo struct {
	SteelGroupID    int64
	SteelCategoryID int64
	// RoundBars maps a bar diameter in mm to its catalog item id.
	RoundBars   map[int64]int64
	SawID       int64
	LatheID     int64
	PartID      int64
	InputID     int64
	SawOpID     int64
	LatheOpID   int64
	HardeningID int64
}

// SeedDemo fills the store with a small shaft: Ø21 x 100 mm steel turned on a
// lathe after sawing, hardened by a subcontractor.
func SeedDemo(s *Store) Demo {
	d := Demo{RoundBars: make(map[int64]int64)}
	dec := decimal.RequireFromString
	some := func(v string) decimal.NullDecimal { return decimal.NewNullDecimal(dec(v)) }

	steel := s.AddGroup(materials.Group{Code: "11", Name: "Steel", Density: dec("7.85")})
	d.SteelGroupID = steel.ID
	s.SetDefaultDensity(dec("7.85"))

	cat := s.AddPriceCategory(materials.PriceCategory{
		Code: "STEEL-ROUND", Name: "Steel round bar", GroupID: &steel.ID,
		Tiers: []materials.PriceTier{
			{MinWeight: dec("0"), MaxWeight: some("15"), PricePerKg: money.MustNew("120")},
			{MinWeight: dec("15"), MaxWeight: some("100"), PricePerKg: money.MustNew("110")},
			{MinWeight: dec("100"), PricePerKg: money.MustNew("95")},
		},
	})
	d.SteelCategoryID = cat.ID

	for _, dia := range []int64{20, 25, 30, 40} {
		it := s.AddItem(materials.Item{
			Code:       "RB" + decimal.NewFromInt(dia).String(),
			Name:       "Round bar Ø" + decimal.NewFromInt(dia).String(),
			Shape:      materials.ShapeRoundBar,
			Dims:       materials.Dimensions{Diameter: decimal.NewNullDecimal(decimal.NewFromInt(dia))},
			CategoryID: cat.ID,
			GroupID:    &steel.ID,
		})
		d.RoundBars[dia] = it.ID
	}

	ratesSince := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	saw := s.AddWorkCenter(workcenters.WorkCenter{
		Code: "SAW", Name: "Band saw",
		AmortizationRate: money.MustNew("200"), LaborRate: money.MustNew("400"),
		RatesChangedAt: ratesSince,
	})
	lathe := s.AddWorkCenter(workcenters.WorkCenter{
		Code: "LATHE", Name: "CNC lathe",
		AmortizationRate: money.MustNew("600"), LaborRate: money.MustNew("400"),
		ToolingRate: money.MustNew("100"), OverheadRate: money.MustNew("200"),
		RatesChangedAt: ratesSince,
	})
	d.SawID, d.LatheID = saw.ID, lathe.ID

	part := s.AddPart(parts.Part{Number: "SHAFT-01", Name: "Drive shaft"})
	d.PartID = part.ID

	d.InputID = s.AddMaterialInput(parts.MaterialInput{
		PartID:     part.ID,
		Shape:      materials.ShapeRoundBar,
		Dims:       materials.Dimensions{Diameter: some("21"), Length: some("100")},
		CategoryID: cat.ID,
		QtyPerPart: dec("1"),
	}).ID

	d.SawOpID = s.AddOperation(parts.Operation{
		PartID: part.ID, Seq: 10, Name: "Saw", WorkCenterID: saw.ID, CuttingMode: parts.CuttingMid,
		SetupMinutes: dec("10"), PieceMinutes: dec("1"),
	}).ID
	d.LatheOpID = s.AddOperation(parts.Operation{
		PartID: part.ID, Seq: 20, Name: "Turn", WorkCenterID: lathe.ID, CuttingMode: parts.CuttingMid,
		SetupMinutes: dec("30"), PieceMinutes: dec("2"),
	}).ID
	d.HardeningID = s.AddOperation(parts.Operation{
		PartID: part.ID, Seq: 30, Name: "Hardening", Cooperation: true,
		CoopFlatPrice: money.MustNew("35"), CoopMinPrice: money.MustNew("50"),
	}).ID
	return d
}
