package materials

import (
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

var (
	ErrNoMatchingTier = errors.New("no matching price tier")
	ErrInvalidTiers   = errors.New("invalid price tiers")
)

// NoMatchingTierError carries the lookup that failed.
type NoMatchingTierError struct {
	CategoryID int64
	Weight     decimal.Decimal
	Reason     string
}

func (e *NoMatchingTierError) Error() string {
	return fmt.Sprintf("category %d, weight %s kg: %s", e.CategoryID, e.Weight, e.Reason)
}

func (e *NoMatchingTierError) Unwrap() error { return ErrNoMatchingTier }

// ResolveTier picks the bracket with the largest lower bound that is still <= weight.
// A weight equal to a boundary belongs to the bracket starting there.
func ResolveTier(c PriceCategory, weight decimal.Decimal) (PriceTier, error) {
	if weight.IsNegative() {
		return PriceTier{}, &NoMatchingTierError{CategoryID: c.ID, Weight: weight, Reason: "negative weight"}
	}
	if len(c.Tiers) == 0 {
		return PriceTier{}, &NoMatchingTierError{CategoryID: c.ID, Weight: weight, Reason: "category has no tiers"}
	}

	tiers := sortedTiers(c.Tiers)
	// first index whose lower bound is above weight; the one before it is the candidate
	i := sort.Search(len(tiers), func(i int) bool { return tiers[i].MinWeight.GreaterThan(weight) })
	if i == 0 {
		return PriceTier{}, &NoMatchingTierError{CategoryID: c.ID, Weight: weight, Reason: "below the lowest tier"}
	}
	t := tiers[i-1]
	if !t.Contains(weight) {
		return PriceTier{}, &NoMatchingTierError{CategoryID: c.ID, Weight: weight, Reason: "gap between tiers"}
	}
	return t, nil
}

// ValidateTiers checks that the brackets partition [0, ∞): the first starts at 0,
// each next one starts where the previous ends, only the last is unbounded.
func ValidateTiers(tiers []PriceTier) error {
	if len(tiers) == 0 {
		return fmt.Errorf("%w: at least one tier required", ErrInvalidTiers)
	}
	sorted := sortedTiers(tiers)
	if !sorted[0].MinWeight.IsZero() {
		return fmt.Errorf("%w: first tier must start at 0, starts at %s", ErrInvalidTiers, sorted[0].MinWeight)
	}
	for i, t := range sorted {
		if t.PricePerKg.IsNegative() {
			return fmt.Errorf("%w: tier %d has negative price", ErrInvalidTiers, i+1)
		}
		last := i == len(sorted)-1
		if !t.MaxWeight.Valid {
			if !last {
				return fmt.Errorf("%w: only the last tier may be unbounded (tier %d)", ErrInvalidTiers, i+1)
			}
			continue
		}
		if !t.MaxWeight.Decimal.GreaterThan(t.MinWeight) {
			return fmt.Errorf("%w: tier %d upper bound %s not above lower bound %s", ErrInvalidTiers, i+1, t.MaxWeight.Decimal, t.MinWeight)
		}
		if last {
			return fmt.Errorf("%w: last tier must be unbounded", ErrInvalidTiers)
		}
		if next := sorted[i+1].MinWeight; !next.Equal(t.MaxWeight.Decimal) {
			return fmt.Errorf("%w: tier %d ends at %s but tier %d starts at %s", ErrInvalidTiers, i+1, t.MaxWeight.Decimal, i+2, next)
		}
	}
	return nil
}

func sortedTiers(in []PriceTier) []PriceTier {
	out := make([]PriceTier, len(in))
	copy(out, in)
	sort.SliceStable(out, func(i, j int) bool { return out[i].MinWeight.LessThan(out[j].MinWeight) })
	return out
}
