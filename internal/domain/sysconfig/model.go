package sysconfig

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var ErrInvalidCoefficient = errors.New("invalid coefficient")

// Coefficients are multiplicative: 1.25 means +25 %, 1 means no change.
type Coefficients struct {
	Overhead          decimal.Decimal `json:"overhead"`
	Margin            decimal.Decimal `json:"margin"`
	StockMarkup       decimal.Decimal `json:"stock_markup"`
	CooperationMarkup decimal.Decimal `json:"cooperation_markup"`
}

func DefaultCoefficients() Coefficients {
	one := decimal.NewFromInt(1)
	return Coefficients{Overhead: one, Margin: one, StockMarkup: one, CooperationMarkup: one}
}

// Validate rejects coefficients that would lower a price below its base cost
// or make it zero.
func (c Coefficients) Validate() error {
	one := decimal.NewFromInt(1)
	for name, v := range map[string]decimal.Decimal{
		"overhead":           c.Overhead,
		"margin":             c.Margin,
		"stock_markup":       c.StockMarkup,
		"cooperation_markup": c.CooperationMarkup,
	} {
		if v.LessThan(one) {
			return fmt.Errorf("%w: %s = %s, must be >= 1", ErrInvalidCoefficient, name, v)
		}
	}
	return nil
}

// Config is an immutable copy of the process-wide pricing settings, passed
// explicitly into every computation.
type Config struct {
	Coefficients Coefficients
	// DefaultDensity (kg/dm³) prices materials with no known group and no
	// catalog weight.
	DefaultDensity decimal.Decimal
	Version        int64
	UpdatedAt      time.Time
	UpdatedBy      string
}

type HistoryEntry struct {
	ID           int64
	Version      int64
	Coefficients Coefficients
	ChangedBy    string
	ChangedAt    time.Time
}
