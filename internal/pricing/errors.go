package pricing

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kg46sp8kps-web/gestima-sub002/internal/domain/materials"
	"github.com/kg46sp8kps-web/gestima-sub002/internal/domain/sysconfig"
	"github.com/kg46sp8kps-web/gestima-sub002/internal/optlock"
)

var (
	ErrInvalidQuantity        = errors.New("invalid quantity")
	ErrNoMatchingTier         = materials.ErrNoMatchingTier
	ErrUnpricableMaterial     = errors.New("unpricable material")
	ErrInvalidOperation       = errors.New("invalid operation")
	ErrAlreadyFrozen          = errors.New("batch already frozen")
	ErrBatchFrozen            = errors.New("batch is frozen")
	ErrConcurrentModification = optlock.ErrConcurrentModification
	ErrBatchSetFreeze         = errors.New("batch set freeze failed")
	ErrNotFound               = optlock.ErrNotFound
)

// UnpricableMaterialError aborts composition for a part. Reason is one of the
// Unpricable* codes; Err carries the underlying cause when there is one.
type UnpricableMaterialError struct {
	InputID int64
	Reason  string
	Err     error
}

const (
	UnpricableInvalidGeometry = "invalid_geometry"
	UnpricableUnknownCategory = "unknown_category"
	UnpricableNoStockMatch    = "no_stock_match"
	UnpricableNoTier          = "no_matching_tier"
	UnpricableUnknownDensity  = "unknown_density"
	UnpricableQtyPerPart      = "invalid_qty_per_part"
)

func (e *UnpricableMaterialError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("material input %d unpricable (%s): %v", e.InputID, e.Reason, e.Err)
	}
	return fmt.Sprintf("material input %d unpricable (%s)", e.InputID, e.Reason)
}

func (e *UnpricableMaterialError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrUnpricableMaterial}
	}
	return []error{ErrUnpricableMaterial, e.Err}
}

// MemberFailure is why one batch of a set could not be frozen.
type MemberFailure struct {
	BatchID int64  `json:"batch_id"`
	Reason  string `json:"reason"`
	Err     error  `json:"-"`
}

// BatchSetFreezeError reports every member that blocked a set freeze. Nothing
// was frozen when it is returned.
type BatchSetFreezeError struct {
	SetID    int64
	Failures []MemberFailure
}

func (e *BatchSetFreezeError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("batch %d: %s", f.BatchID, f.Reason))
	}
	return fmt.Sprintf("batch set %d not frozen: %s", e.SetID, strings.Join(parts, "; "))
}

func (e *BatchSetFreezeError) Unwrap() error { return ErrBatchSetFreeze }

// Reason maps an error to a stable machine-readable code.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrBatchSetFreeze):
		return "batch_set_partial_failure"
	case errors.Is(err, ErrInvalidQuantity):
		return "invalid_quantity"
	case errors.Is(err, ErrUnpricableMaterial):
		return "unpricable_material"
	case errors.Is(err, ErrNoMatchingTier):
		return "no_matching_tier"
	case errors.Is(err, ErrAlreadyFrozen):
		return "already_frozen"
	case errors.Is(err, ErrBatchFrozen):
		return "batch_frozen"
	case errors.Is(err, ErrConcurrentModification):
		return "concurrent_modification"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidOperation),
		errors.Is(err, materials.ErrInvalidGeometry),
		errors.Is(err, materials.ErrUnknownShape),
		errors.Is(err, materials.ErrInvalidTiers),
		errors.Is(err, sysconfig.ErrInvalidCoefficient):
		return "invalid_input"
	}
	return "internal"
}
