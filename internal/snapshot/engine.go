// Package snapshot owns the batch lifecycle: draft batches are priced and
// recalculated from live data; frozen batches are read only from their
// snapshot and never change again.
package snapshot

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kg46sp8kps-web/gestima-sub002/internal/domain/batches"
	"github.com/kg46sp8kps-web/gestima-sub002/internal/pricing"
)

type Store interface {
	CreateBatch(ctx context.Context, b batches.Batch) (batches.Batch, error)
	GetBatch(ctx context.Context, id int64) (batches.Batch, bool, error)
	ListBatches(ctx context.Context, partID int64) ([]batches.Batch, error)
	SaveBreakdown(ctx context.Context, id, expectedVersion int64, bd pricing.Breakdown, at time.Time) (int64, error)
	CreateBatchSet(ctx context.Context, s batches.BatchSet, members []batches.Batch) (batches.BatchSet, []batches.Batch, error)
	GetBatchSet(ctx context.Context, id int64) (batches.BatchSet, bool, error)
	FreezeBatches(ctx context.Context, setID *int64, items []batches.FreezeItem, at time.Time) error
	GetSnapshot(ctx context.Context, batchID int64) (batches.Snapshot, bool, error)
}

type Pricer interface {
	Series(ctx context.Context, partID int64, quantities []int) ([]pricing.Breakdown, error)
}

type Notifier interface {
	BatchFrozen(ctx context.Context, s batches.Snapshot) error
	BatchSetFrozen(ctx context.Context, set batches.BatchSet, snaps []batches.Snapshot) error
	StaleBatches(ctx context.Context, partID int64, stale []batches.Batch) error
}

// Recorder receives lifecycle counters.
type Recorder interface {
	ObserveFreeze(kind, result string)
	ObserveConflict(entity string)
}

type Options struct {
	Notifier Notifier
	Recorder Recorder
	Now      func() time.Time
}

type Engine struct {
	store       Store
	pricer      Pricer
	workCenters pricing.WorkCenterSource
	notifier    Notifier
	rec         Recorder
	now         func() time.Time
	log         *slog.Logger
}

func New(store Store, pricer Pricer, wcs pricing.WorkCenterSource, opts Options, log *slog.Logger) *Engine {
	if opts.Notifier == nil {
		opts.Notifier = nopNotifier{}
	}
	if opts.Recorder == nil {
		opts.Recorder = nopRecorder{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Engine{
		store:       store,
		pricer:      pricer,
		workCenters: wcs,
		notifier:    opts.Notifier,
		rec:         opts.Recorder,
		now:         opts.Now,
		log:         log.With("component", "snapshot"),
	}
}

// PriceSeries prices a part for every quantity and stores each result as a draft batch.
func (e *Engine) PriceSeries(ctx context.Context, partID int64, quantities []int) ([]batches.Batch, error) {
	bds, err := e.pricer.Series(ctx, partID, quantities)
	if err != nil {
		return nil, err
	}
	return e.createAll(ctx, partID, bds)
}

func (e *Engine) Price(ctx context.Context, partID int64, quantity int) (batches.Batch, error) {
	out, err := e.PriceSeries(ctx, partID, []int{quantity})
	if err != nil {
		return batches.Batch{}, err
	}
	return out[0], nil
}

// CreateBatchSet prices every quantity into draft batches grouped under one set.
// The set and its members are stored together or not at all.
func (e *Engine) CreateBatchSet(ctx context.Context, partID int64, name string, quantities []int) (batches.BatchSet, []batches.Batch, error) {
	// price first so an unpricable part leaves no empty set behind
	bds, err := e.pricer.Series(ctx, partID, quantities)
	if err != nil {
		return batches.BatchSet{}, nil, err
	}
	members := make([]batches.Batch, len(bds))
	for i, bd := range bds {
		members[i] = draft(partID, bd)
	}
	set, out, err := e.store.CreateBatchSet(ctx, batches.BatchSet{PartID: partID, Name: name}, members)
	if err != nil {
		return batches.BatchSet{}, nil, fmt.Errorf("create batch set: %w", err)
	}
	return set, out, nil
}

func (e *Engine) createAll(ctx context.Context, partID int64, bds []pricing.Breakdown) ([]batches.Batch, error) {
	out := make([]batches.Batch, 0, len(bds))
	for _, bd := range bds {
		b, err := e.store.CreateBatch(ctx, draft(partID, bd))
		if err != nil {
			return nil, fmt.Errorf("create batch for quantity %d: %w", bd.Quantity, err)
		}
		out = append(out, b)
	}
	return out, nil
}

func draft(partID int64, bd pricing.Breakdown) batches.Batch {
	return batches.Batch{
		PartID:         partID,
		Quantity:       bd.Quantity,
		Status:         batches.StatusDraft,
		Breakdown:      bd,
		RecalculatedAt: bd.ComputedAt,
	}
}

type nopNotifier struct{}

func (nopNotifier) BatchFrozen(context.Context, batches.Snapshot) error { return nil }
func (nopNotifier) BatchSetFrozen(context.Context, batches.BatchSet, []batches.Snapshot) error {
	return nil
}
func (nopNotifier) StaleBatches(context.Context, int64, []batches.Batch) error { return nil }

type nopRecorder struct{}

func (nopRecorder) ObserveFreeze(string, string) {}
func (nopRecorder) ObserveConflict(string)       {}
