package materials

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/kg46sp8kps-web/gestima-sub002/internal/money"
)

type Shape string

const (
	ShapeRoundBar  Shape = "round_bar"
	ShapeSquareBar Shape = "square_bar"
	ShapeFlatBar   Shape = "flat_bar"
	ShapeHexBar    Shape = "hexagonal_bar"
	ShapeTube      Shape = "tube"
	ShapePlate     Shape = "plate"
	ShapeCasting   Shape = "casting"
)

func (s Shape) Valid() bool {
	switch s {
	case ShapeRoundBar, ShapeSquareBar, ShapeFlatBar, ShapeHexBar, ShapeTube, ShapePlate, ShapeCasting:
		return true
	}
	return false
}

// Dimensions is the flat, nullable column set shared by material inputs and
// catalog items. Which fields matter depends on the shape; see DecodeGeometry.
// All values are millimetres.
type Dimensions struct {
	Diameter      decimal.NullDecimal `json:"diameter"`
	Width         decimal.NullDecimal `json:"width"`
	Height        decimal.NullDecimal `json:"height"`
	WallThickness decimal.NullDecimal `json:"wall_thickness"`
	Length        decimal.NullDecimal `json:"length"`
}

// Group is a material family (steel, aluminium, brass...) carrying its density.
type Group struct {
	ID      int64
	Code    string
	Name    string
	Density decimal.Decimal // kg/dm³
}

// Item is one concrete stock entry of the catalog.
type Item struct {
	ID         int64
	Code       string
	Name       string
	Shape      Shape
	Dims       Dimensions
	CategoryID int64
	GroupID    *int64

	// WeightPerMeter is the catalog's authoritative kg/m; it wins over geometry.
	WeightPerMeter decimal.NullDecimal

	DeletedAt *time.Time
	Version   int64
	UpdatedAt time.Time
}

// Deleted reports whether the item is tombstoned and must not be used for new pricing.
func (it Item) Deleted() bool { return it.DeletedAt != nil }

// PriceCategory owns the weight brackets used to price material.
type PriceCategory struct {
	ID      int64
	Code    string
	Name    string
	GroupID *int64
	Tiers   []PriceTier
	Version int64
}

// PriceTier is one weight bracket: [MinWeight, MaxWeight), MaxWeight null means unbounded.
type PriceTier struct {
	ID         int64               `json:"id"`
	CategoryID int64               `json:"category_id"`
	MinWeight  decimal.Decimal     `json:"min_weight"`
	MaxWeight  decimal.NullDecimal `json:"max_weight"`
	PricePerKg money.Amount        `json:"price_per_kg"`
}

// Contains reports whether weight falls inside the bracket.
func (t PriceTier) Contains(weight decimal.Decimal) bool {
	if weight.LessThan(t.MinWeight) {
		return false
	}
	return !t.MaxWeight.Valid || weight.LessThan(t.MaxWeight.Decimal)
}
