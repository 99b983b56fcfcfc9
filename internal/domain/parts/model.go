package parts

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/kg46sp8kps-web/gestima-sub002/internal/domain/materials"
	"github.com/kg46sp8kps-web/gestima-sub002/internal/money"
)

type CuttingMode string

const (
	CuttingLow  CuttingMode = "low"
	CuttingMid  CuttingMode = "mid"
	CuttingHigh CuttingMode = "high"
)

var timeFactors = map[CuttingMode]decimal.Decimal{
	CuttingLow:  decimal.RequireFromString("1.15"),
	CuttingMid:  decimal.NewFromInt(1),
	CuttingHigh: decimal.RequireFromString("0.85"),
}

func (m CuttingMode) Valid() bool {
	_, ok := timeFactors[m]
	return ok
}

// TimeFactor scales the per-piece time: conservative cutting takes longer,
// aggressive cutting shorter. Unknown modes count as mid.
func (m CuttingMode) TimeFactor() decimal.Decimal {
	if f, ok := timeFactors[m]; ok {
		return f
	}
	return timeFactors[CuttingMid]
}

type Part struct {
	ID        int64
	Number    string
	Name      string
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// MaterialInput is one stock requirement of a part.
type MaterialInput struct {
	ID         int64
	PartID     int64
	Shape      materials.Shape
	Dims       materials.Dimensions
	CategoryID int64
	// ItemID pins a concrete catalog item; nil lets the matcher choose one.
	ItemID *int64
	// GroupID is used for density when the pinned item carries no group.
	GroupID    *int64
	QtyPerPart decimal.Decimal
	Version    int64
}

// Geometry decodes the input's shape-specific dimensions.
func (in MaterialInput) Geometry() (materials.Geometry, error) {
	return materials.DecodeGeometry(in.Shape, in.Dims)
}

// Operation is one manufacturing step. Cooperation operations are priced by
// the subcontractor's fee, not by time and rate.
type Operation struct {
	ID           int64
	PartID       int64
	Seq          int
	Name         string
	WorkCenterID int64
	CuttingMode  CuttingMode

	SetupMinutes decimal.Decimal
	PieceMinutes decimal.Decimal
	Manning      decimal.Decimal // share of an operator's time, 1 = one operator
	Utilization  decimal.Decimal // share of machine time actually cutting, (0,1]

	Cooperation   bool
	CoopFlatPrice money.Amount
	CoopMinPrice  money.Amount

	Version int64
}
