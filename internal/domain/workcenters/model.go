package workcenters

import (
	"time"

	"github.com/kg46sp8kps-web/gestima-sub002/internal/money"
)

// WorkCenter is a machine or resource priced by the hour.
type WorkCenter struct {
	ID   int64
	Code string
	Name string

	AmortizationRate money.Amount
	LaborRate        money.Amount
	ToolingRate      money.Amount
	OverheadRate     money.Amount

	// RatesChangedAt moves whenever any of the four rates changes; batches
	// priced with an older stamp are stale.
	RatesChangedAt time.Time

	DeletedAt *time.Time
	Version   int64
}

func (w WorkCenter) Deleted() bool { return w.DeletedAt != nil }

// SetupRate is the hourly rate while the machine is being set up: no tool wear.
func (w WorkCenter) SetupRate() money.Amount {
	return money.Sum(w.AmortizationRate, w.LaborRate, w.OverheadRate)
}

// OperationRate is the hourly rate while cutting.
func (w WorkCenter) OperationRate() money.Amount {
	return w.SetupRate().Add(w.ToolingRate)
}

// Rates is the editable part of a work center.
type Rates struct {
	Amortization money.Amount `json:"amortization"`
	Labor        money.Amount `json:"labor"`
	Tooling      money.Amount `json:"tooling"`
	Overhead     money.Amount `json:"overhead"`
}

func (w WorkCenter) Rates() Rates {
	return Rates{Amortization: w.AmortizationRate, Labor: w.LaborRate, Tooling: w.ToolingRate, Overhead: w.OverheadRate}
}

// WithRates returns a copy carrying r. RatesChangedAt is bumped to at only if
// a rate actually differs, and always moves forward by at least a microsecond.
func (w WorkCenter) WithRates(r Rates, at time.Time) WorkCenter {
	if w.Rates().equal(r) {
		return w
	}
	w.AmortizationRate, w.LaborRate, w.ToolingRate, w.OverheadRate = r.Amortization, r.Labor, r.Tooling, r.Overhead
	if !at.After(w.RatesChangedAt) {
		at = w.RatesChangedAt.Add(time.Microsecond)
	}
	w.RatesChangedAt = at
	return w
}

func (r Rates) equal(o Rates) bool {
	return r.Amortization.Equal(o.Amortization) && r.Labor.Equal(o.Labor) &&
		r.Tooling.Equal(o.Tooling) && r.Overhead.Equal(o.Overhead)
}
