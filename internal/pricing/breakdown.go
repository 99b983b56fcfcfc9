package pricing

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/kg46sp8kps-web/gestima-sub002/internal/domain/materials"
	"github.com/kg46sp8kps-web/gestima-sub002/internal/domain/parts"
	"github.com/kg46sp8kps-web/gestima-sub002/internal/domain/sysconfig"
	"github.com/kg46sp8kps-web/gestima-sub002/internal/money"
)

type WeightSource string

const (
	WeightCatalog        WeightSource = "catalog"
	WeightDensity        WeightSource = "density"
	WeightDefaultDensity WeightSource = "default_density"
)

// MaterialLine is the material cost of one input, per finished piece unless
// named otherwise.
type MaterialLine struct {
	InputID    int64                `json:"input_id"`
	CategoryID int64                `json:"category_id"`
	ItemID     *int64               `json:"item_id,omitempty"`
	ItemCode   string               `json:"item_code,omitempty"`
	Matched    bool                 `json:"matched"`
	Shape      materials.Shape      `json:"shape"`
	Dims       materials.Dimensions `json:"dims"`
	QtyPerPart decimal.Decimal      `json:"qty_per_part"`

	WeightSource   WeightSource        `json:"weight_source"`
	Density        decimal.NullDecimal `json:"density"`
	WeightPerMeter decimal.NullDecimal `json:"weight_per_meter"`
	WeightPerPiece decimal.Decimal     `json:"weight_per_piece"`
	TotalWeight    decimal.Decimal     `json:"total_weight"`

	Tier            materials.PriceTier `json:"tier"`
	PricePerKg      money.Amount        `json:"price_per_kg"`
	BaseCost        money.Amount        `json:"base_cost"`
	MarkupIncrement money.Amount        `json:"markup_increment"`
	Cost            money.Amount        `json:"cost"`
}

// OperationLine is the cost of one operation. Setup is paid once per batch and
// spread over its pieces.
type OperationLine struct {
	OperationID    int64             `json:"operation_id"`
	Seq            int               `json:"seq"`
	Name           string            `json:"name"`
	WorkCenterID   int64             `json:"work_center_id"`
	WorkCenterCode string            `json:"work_center_code,omitempty"`
	// RatesChangedAt is the work center's rate stamp as read for this price.
	RatesChangedAt time.Time `json:"rates_changed_at"`
	Cooperation    bool              `json:"cooperation"`
	CuttingMode    parts.CuttingMode `json:"cutting_mode,omitempty"`
	TimeFactor     decimal.Decimal   `json:"time_factor"`

	SetupMinutes decimal.Decimal `json:"setup_minutes"`
	PieceMinutes decimal.Decimal `json:"piece_minutes"`
	Manning      decimal.Decimal `json:"manning"`
	Utilization  decimal.Decimal `json:"utilization"`

	SetupRate     money.Amount `json:"setup_rate"`
	OperationRate money.Amount `json:"operation_rate"`

	SetupPerBatch     money.Amount `json:"setup_per_batch"`
	SetupPerPiece     money.Amount `json:"setup_per_piece"`
	MachiningPerPiece money.Amount `json:"machining_per_piece"`

	CoopFlatPrice       money.Amount `json:"coop_flat_price"`
	CoopMinPrice        money.Amount `json:"coop_min_price"`
	CooperationPerPiece money.Amount `json:"cooperation_per_piece"`
}

// Totals is the cost waterfall of one piece. Every increment is kept so a
// consumer can show how the unit price was built.
type Totals struct {
	MaterialBase   money.Amount `json:"material_base"`
	MaterialMarkup money.Amount `json:"material_markup"`
	Material       money.Amount `json:"material"`

	SetupPerBatch     money.Amount `json:"setup_per_batch"`
	SetupPerPiece     money.Amount `json:"setup_per_piece"`
	Machining         money.Amount `json:"machining"`
	MachiningBase     money.Amount `json:"machining_base"` // setup per piece + machining
	OverheadIncrement money.Amount `json:"overhead_increment"`
	MarginIncrement   money.Amount `json:"margin_increment"`
	MachiningTotal    money.Amount `json:"machining_total"`

	CooperationBase   money.Amount `json:"cooperation_base"`
	CooperationMarkup money.Amount `json:"cooperation_markup"`
	Cooperation       money.Amount `json:"cooperation"`

	UnitPrice money.Amount `json:"unit_price"`
	TotalCost money.Amount `json:"total_cost"`
}

// Breakdown is the full price of one quantity of a part.
type Breakdown struct {
	PartID        int64                  `json:"part_id"`
	Quantity      int                    `json:"quantity"`
	Materials     []MaterialLine         `json:"materials"`
	Operations    []OperationLine        `json:"operations"`
	Totals        Totals                 `json:"totals"`
	Coefficients  sysconfig.Coefficients `json:"coefficients"`
	ConfigVersion int64                  `json:"config_version"`
	// Degraded is set when any material was weighed with the default density.
	Degraded   bool      `json:"degraded"`
	ComputedAt time.Time `json:"computed_at"`
}

// RateStamps maps every work center this breakdown depends on to the rate
// stamp it was priced with.
func (b Breakdown) RateStamps() map[int64]time.Time {
	out := make(map[int64]time.Time)
	for _, op := range b.Operations {
		if op.Cooperation {
			continue
		}
		if _, ok := out[op.WorkCenterID]; !ok {
			out[op.WorkCenterID] = op.RatesChangedAt
		}
	}
	return out
}
