package snapshot

import (
	"context"
	"fmt"
	"time"

	"github.com/kg46sp8kps-web/gestima-sub002/internal/domain/batches"
	"github.com/kg46sp8kps-web/gestima-sub002/internal/pricing"
)

// PriceView is what a consumer displays for a batch.
type PriceView struct {
	BatchID   int64             `json:"batch_id"`
	PartID    int64             `json:"part_id"`
	Quantity  int               `json:"quantity"`
	Status    batches.Status    `json:"status"`
	Stale     bool              `json:"stale"`
	FrozenAt  *time.Time        `json:"frozen_at,omitempty"`
	Version   int64             `json:"version"`
	Breakdown pricing.Breakdown `json:"breakdown"`
}

// ReadPrice returns a frozen batch's snapshot verbatim, touching no live data,
// or a draft batch's last computed breakdown with its staleness.
func (e *Engine) ReadPrice(ctx context.Context, batchID int64) (PriceView, error) {
	b, err := e.getBatch(ctx, batchID)
	if err != nil {
		return PriceView{}, err
	}
	v := PriceView{
		BatchID:  b.ID,
		PartID:   b.PartID,
		Quantity: b.Quantity,
		Status:   b.Status,
		FrozenAt: b.FrozenAt,
		Version:  b.Version,
	}

	if b.Frozen() {
		snap, err := e.GetSnapshot(ctx, batchID)
		if err != nil {
			return PriceView{}, err
		}
		v.Breakdown = snap.Breakdown
		return v, nil
	}

	v.Breakdown = b.Breakdown
	if v.Stale, err = e.IsStale(ctx, b); err != nil {
		return PriceView{}, err
	}
	return v, nil
}

func (e *Engine) GetSnapshot(ctx context.Context, batchID int64) (batches.Snapshot, error) {
	snap, ok, err := e.store.GetSnapshot(ctx, batchID)
	if err != nil {
		return batches.Snapshot{}, fmt.Errorf("get snapshot of batch %d: %w", batchID, err)
	}
	if !ok {
		return batches.Snapshot{}, fmt.Errorf("snapshot of batch %d: %w", batchID, pricing.ErrNotFound)
	}
	return snap, nil
}

// IsStale reports whether a work center the draft batch was priced with has
// changed its rates since. The stored rate stamp is compared with the current
// one, so the pricing clock plays no part. Frozen batches are never stale. A
// work center that is gone also makes the batch stale.
func (e *Engine) IsStale(ctx context.Context, b batches.Batch) (bool, error) {
	if b.Frozen() {
		return false, nil
	}
	for id, stamp := range b.Breakdown.RateStamps() {
		wc, ok, err := e.workCenters.GetWorkCenter(ctx, id)
		if err != nil {
			return false, fmt.Errorf("get work center %d: %w", id, err)
		}
		if !ok || wc.Deleted() || !wc.RatesChangedAt.Equal(stamp) {
			return true, nil
		}
	}
	return false, nil
}

// StaleBatches lists the part's draft batches that need a recalculation.
// Nothing is recalculated here.
func (e *Engine) StaleBatches(ctx context.Context, partID int64) ([]batches.Batch, error) {
	all, err := e.store.ListBatches(ctx, partID)
	if err != nil {
		return nil, fmt.Errorf("list batches of part %d: %w", partID, err)
	}
	var out []batches.Batch
	for _, b := range all {
		stale, err := e.IsStale(ctx, b)
		if err != nil {
			return nil, err
		}
		if stale {
			out = append(out, b)
		}
	}
	return out, nil
}

// ReportStale is StaleBatches plus a notification when anything is stale.
func (e *Engine) ReportStale(ctx context.Context, partID int64) ([]batches.Batch, error) {
	stale, err := e.StaleBatches(ctx, partID)
	if err != nil || len(stale) == 0 {
		return stale, err
	}
	if err := e.notifier.StaleBatches(ctx, partID, stale); err != nil {
		e.log.Warn("stale notification failed", "part_id", partID, "err", err)
	}
	return stale, nil
}
