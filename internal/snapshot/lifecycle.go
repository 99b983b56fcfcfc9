package snapshot

import (
	"context"
	"errors"
	"fmt"

	"github.com/kg46sp8kps-web/gestima-sub002/internal/domain/batches"
	"github.com/kg46sp8kps-web/gestima-sub002/internal/optlock"
	"github.com/kg46sp8kps-web/gestima-sub002/internal/pricing"
)

// Recalculate re-prices a draft batch from current data. expectedVersion is
// the version the caller last read; 0 means the version read here. A frozen
// batch is never touched and yields ErrBatchFrozen.
func (e *Engine) Recalculate(ctx context.Context, batchID, expectedVersion int64) (batches.Batch, error) {
	b, err := e.getBatch(ctx, batchID)
	if err != nil {
		return batches.Batch{}, err
	}
	if b.Frozen() {
		e.log.Warn("recalculation refused on frozen batch", "batch_id", batchID)
		return batches.Batch{}, fmt.Errorf("batch %d: %w", batchID, pricing.ErrBatchFrozen)
	}
	if expectedVersion == 0 {
		expectedVersion = b.Version
	}

	bds, err := e.pricer.Series(ctx, b.PartID, []int{b.Quantity})
	if err != nil {
		return batches.Batch{}, err
	}
	bd := bds[0]

	v, err := e.store.SaveBreakdown(ctx, batchID, expectedVersion, bd, bd.ComputedAt)
	if err != nil {
		e.observeConflict(err)
		return batches.Batch{}, err
	}
	b.Breakdown = bd
	b.RecalculatedAt = bd.ComputedAt
	b.Version = v
	e.log.Debug("batch recalculated", "batch_id", batchID, "version", v, "unit_price", bd.Totals.UnitPrice.String())
	return b, nil
}

// FreezeBatch makes a draft batch permanent by storing a copy of its last
// computed breakdown. A second call yields ErrAlreadyFrozen and leaves the
// first snapshot as it was.
func (e *Engine) FreezeBatch(ctx context.Context, batchID, expectedVersion int64) (snap batches.Snapshot, err error) {
	defer func() { e.rec.ObserveFreeze("batch", resultOf(err)) }()

	b, err := e.getBatch(ctx, batchID)
	if err != nil {
		return batches.Snapshot{}, err
	}
	if err := freezable(b); err != nil {
		return batches.Snapshot{}, err
	}
	if expectedVersion == 0 {
		expectedVersion = b.Version
	}

	snap = batches.NewSnapshot(b, e.now().UTC())
	item := batches.FreezeItem{BatchID: b.ID, ExpectedVersion: expectedVersion, Snapshot: snap}
	if err := e.store.FreezeBatches(ctx, nil, []batches.FreezeItem{item}, snap.FrozenAt); err != nil {
		var fe *batches.FreezeError
		if errors.As(err, &fe) {
			err = fe.Err
		}
		e.observeConflict(err)
		return batches.Snapshot{}, err
	}

	e.log.Info("batch frozen", "batch_id", b.ID, "part_id", b.PartID, "quantity", b.Quantity,
		"unit_price", snap.Breakdown.Totals.UnitPrice.String())
	if err := e.notifier.BatchFrozen(ctx, snap); err != nil {
		e.log.Warn("freeze notification failed", "batch_id", b.ID, "err", err)
	}
	return snap, nil
}

// FreezeBatchSet freezes every batch of the set in one transaction or none of
// them. On failure the returned *pricing.BatchSetFreezeError lists each
// member that blocked the freeze.
func (e *Engine) FreezeBatchSet(ctx context.Context, setID int64) (snaps []batches.Snapshot, err error) {
	defer func() { e.rec.ObserveFreeze("set", resultOf(err)) }()

	set, ok, err := e.store.GetBatchSet(ctx, setID)
	if err != nil {
		return nil, fmt.Errorf("get batch set %d: %w", setID, err)
	}
	if !ok {
		return nil, fmt.Errorf("batch set %d: %w", setID, pricing.ErrNotFound)
	}
	if set.Frozen() {
		return nil, fmt.Errorf("batch set %d: %w", setID, pricing.ErrAlreadyFrozen)
	}
	if len(set.BatchIDs) == 0 {
		return nil, fmt.Errorf("%w: batch set %d has no batches", pricing.ErrBatchSetFreeze, setID)
	}

	at := e.now().UTC()
	var failures []pricing.MemberFailure
	items := make([]batches.FreezeItem, 0, len(set.BatchIDs))
	for _, id := range set.BatchIDs {
		b, err := e.getBatch(ctx, id)
		if err == nil {
			err = freezable(b)
		}
		if err != nil {
			failures = append(failures, pricing.MemberFailure{BatchID: id, Reason: pricing.Reason(err), Err: err})
			continue
		}
		items = append(items, batches.FreezeItem{BatchID: id, ExpectedVersion: b.Version, Snapshot: batches.NewSnapshot(b, at)})
	}
	if len(failures) > 0 {
		e.log.Warn("batch set freeze rejected", "set_id", setID, "failures", len(failures))
		return nil, &pricing.BatchSetFreezeError{SetID: setID, Failures: failures}
	}

	if err := e.store.FreezeBatches(ctx, &setID, items, at); err != nil {
		e.log.Warn("batch set freeze rolled back", "set_id", setID, "err", err)
		var fe *batches.FreezeError
		if errors.As(err, &fe) {
			e.observeConflict(fe.Err)
			return nil, &pricing.BatchSetFreezeError{SetID: setID, Failures: []pricing.MemberFailure{
				{BatchID: fe.BatchID, Reason: pricing.Reason(fe.Err), Err: fe.Err},
			}}
		}
		return nil, err
	}

	snaps = make([]batches.Snapshot, len(items))
	for i, it := range items {
		snaps[i] = it.Snapshot
	}
	frozenAt := at
	set.FrozenAt = &frozenAt
	e.log.Info("batch set frozen", "set_id", setID, "part_id", set.PartID, "batches", len(snaps))
	if err := e.notifier.BatchSetFrozen(ctx, set, snaps); err != nil {
		e.log.Warn("freeze notification failed", "set_id", setID, "err", err)
	}
	return snaps, nil
}

// freezable checks a batch can be frozen as it stands.
func freezable(b batches.Batch) error {
	if b.Frozen() {
		return fmt.Errorf("batch %d: %w", b.ID, pricing.ErrAlreadyFrozen)
	}
	if b.Breakdown.Quantity != b.Quantity || b.Breakdown.ComputedAt.IsZero() {
		return fmt.Errorf("batch %d has no computed price: %w", b.ID, pricing.ErrUnpricableMaterial)
	}
	return nil
}

func (e *Engine) getBatch(ctx context.Context, id int64) (batches.Batch, error) {
	b, ok, err := e.store.GetBatch(ctx, id)
	if err != nil {
		return batches.Batch{}, fmt.Errorf("get batch %d: %w", id, err)
	}
	if !ok {
		return batches.Batch{}, fmt.Errorf("batch %d: %w", id, pricing.ErrNotFound)
	}
	return b, nil
}

func (e *Engine) observeConflict(err error) {
	var ce *optlock.ConflictError
	if errors.As(err, &ce) {
		e.rec.ObserveConflict(ce.Entity)
	}
}

func resultOf(err error) string {
	if err == nil {
		return "ok"
	}
	return pricing.Reason(err)
}
