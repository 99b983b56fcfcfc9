package memstore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kg46sp8kps-web/gestima-sub002/internal/domain/batches"
	"github.com/kg46sp8kps-web/gestima-sub002/internal/domain/materials"
	"github.com/kg46sp8kps-web/gestima-sub002/internal/domain/parts"
	"github.com/kg46sp8kps-web/gestima-sub002/internal/optlock"
	"github.com/kg46sp8kps-web/gestima-sub002/internal/pricing"
)

func opByID(t *testing.T, s *Store, partID, id int64) parts.Operation {
	t.Helper()
	ops, err := s.GetOperations(context.Background(), partID)
	require.NoError(t, err)
	for _, op := range ops {
		if op.ID == id {
			return op
		}
	}
	t.Fatalf("operation %d not found", id)
	return parts.Operation{}
}

func TestConcurrentOperationUpdatesFromSameVersion(t *testing.T) {
	s := New()
	d := SeedDemo(s)
	ctx := context.Background()
	read := opByID(t, s, d.PartID, d.LatheOpID)
	require.Equal(t, int64(1), read.Version)

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i, minutes := range []string{"3", "4"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			op := read
			op.PieceMinutes = decimal.RequireFromString(minutes)
			_, results[i] = s.UpdateOperation(ctx, op)
		}()
	}
	wg.Wait()

	ok, conflicts := 0, 0
	for _, err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, pricing.ErrConcurrentModification):
			conflicts++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, conflicts)
	assert.Equal(t, int64(2), opByID(t, s, d.PartID, d.LatheOpID).Version, "bumped exactly once")
}

func TestStaleWriteLeavesRowUntouched(t *testing.T) {
	s := New()
	d := SeedDemo(s)
	ctx := context.Background()

	in, ok, err := s.GetMaterialInput(ctx, d.InputID)
	require.NoError(t, err)
	require.True(t, ok)

	fresh := in
	fresh.QtyPerPart = decimal.NewFromInt(2)
	_, err = s.UpdateMaterialInput(ctx, fresh)
	require.NoError(t, err)

	stale := in
	stale.QtyPerPart = decimal.NewFromInt(5)
	_, err = s.UpdateMaterialInput(ctx, stale)
	var ce *optlock.ConflictError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "material_input", ce.Entity)

	got, _, _ := s.GetMaterialInput(ctx, d.InputID)
	assert.Equal(t, "2", got.QtyPerPart.String())
}

func TestTombstonedItemsLeaveTheMatchList(t *testing.T) {
	s := New()
	d := SeedDemo(s)
	ctx := context.Background()

	items, err := s.GetMaterialItems(ctx, d.SteelCategoryID, materials.ShapeRoundBar)
	require.NoError(t, err)
	require.Len(t, items, 4)

	it, _, _ := s.GetItem(ctx, d.RoundBars[25])
	_, err = s.TombstoneItem(ctx, it.ID, it.Version, time.Now())
	require.NoError(t, err)

	items, err = s.GetMaterialItems(ctx, d.SteelCategoryID, materials.ShapeRoundBar)
	require.NoError(t, err)
	assert.Len(t, items, 3)

	got, ok, err := s.GetItem(ctx, it.ID)
	require.NoError(t, err)
	require.True(t, ok, "tombstoned items stay readable")
	assert.True(t, got.Deleted())
}

func TestFreezeBatchesAllOrNothing(t *testing.T) {
	s := New()
	d := SeedDemo(s)
	ctx := context.Background()
	now := time.Now().UTC()

	var members []batches.Batch
	for _, q := range []int{1, 10, 100} {
		members = append(members, batches.Batch{PartID: d.PartID, Quantity: q})
	}
	set, created, err := s.CreateBatchSet(ctx, batches.BatchSet{PartID: d.PartID, Name: "offer"}, members)
	require.NoError(t, err)
	var ids []int64
	for _, b := range created {
		require.Equal(t, set.ID, *b.SetID)
		ids = append(ids, b.ID)
	}
	assert.Equal(t, ids, set.BatchIDs)

	items := make([]batches.FreezeItem, len(ids))
	for i, id := range ids {
		b, _, _ := s.GetBatch(ctx, id)
		items[i] = batches.FreezeItem{BatchID: id, ExpectedVersion: b.Version, Snapshot: batches.NewSnapshot(b, now)}
	}
	items[2].ExpectedVersion = 7

	err = s.FreezeBatches(ctx, &set.ID, items, now)
	var fe *batches.FreezeError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, ids[2], fe.BatchID)
	for _, id := range ids {
		b, _, _ := s.GetBatch(ctx, id)
		assert.Equal(t, batches.StatusDraft, b.Status)
		_, ok, _ := s.GetSnapshot(ctx, id)
		assert.False(t, ok)
	}

	items[2].ExpectedVersion = 1
	require.NoError(t, s.FreezeBatches(ctx, &set.ID, items, now))
	got, _, _ := s.GetBatchSet(ctx, set.ID)
	assert.True(t, got.Frozen())
	assert.Equal(t, ids, got.BatchIDs)

	err = s.FreezeBatches(ctx, nil, items[:1], now)
	require.ErrorIs(t, err, pricing.ErrAlreadyFrozen)
}

func TestCreateBatchSetStoresNothingOnRejectedMember(t *testing.T) {
	s := New()
	d := SeedDemo(s)
	ctx := context.Background()

	members := []batches.Batch{
		{PartID: d.PartID, Quantity: 1},
		{PartID: d.PartID + 1000, Quantity: 10},
	}
	_, _, err := s.CreateBatchSet(ctx, batches.BatchSet{PartID: d.PartID, Name: "offer"}, members)
	require.ErrorIs(t, err, optlock.ErrNotFound)

	list, err := s.ListBatches(ctx, d.PartID)
	require.NoError(t, err)
	assert.Empty(t, list)
	s.mu.RLock()
	assert.Empty(t, s.sets)
	s.mu.RUnlock()
}

func TestDeletePartCascades(t *testing.T) {
	s := New()
	d := SeedDemo(s)
	ctx := context.Background()

	require.NoError(t, s.DeletePart(ctx, d.PartID, 1))

	_, ok, _ := s.GetPart(ctx, d.PartID)
	assert.False(t, ok)
	ops, _ := s.GetOperations(ctx, d.PartID)
	assert.Empty(t, ops)
	inputs, _ := s.ListMaterialInputs(ctx, d.PartID)
	assert.Empty(t, inputs)

	_, err := s.UpdateOperation(ctx, parts.Operation{ID: d.LatheOpID, Version: 1, CuttingMode: parts.CuttingMid})
	require.ErrorIs(t, err, optlock.ErrNotFound)
}

func TestTombstonedWorkCenterRejectsWrites(t *testing.T) {
	s := New()
	d := SeedDemo(s)
	ctx := context.Background()
	at := time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)

	v, err := s.TombstoneWorkCenter(ctx, d.SawID, 1, at)
	require.NoError(t, err)

	wc, _, _ := s.GetWorkCenter(ctx, d.SawID)
	_, err = s.UpdateWorkCenterRates(ctx, d.SawID, v, wc.Rates(), at.Add(time.Hour))
	require.ErrorIs(t, err, optlock.ErrNotFound)

	_, err = s.TombstoneWorkCenter(ctx, d.SawID, v, at.Add(time.Hour))
	require.ErrorIs(t, err, optlock.ErrNotFound)

	got, _, _ := s.GetWorkCenter(ctx, d.SawID)
	assert.Equal(t, v, got.Version, "rejected writes leave the version alone")
	assert.True(t, at.Equal(*got.DeletedAt))
}
