package memstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/kg46sp8kps-web/gestima-sub002/internal/domain/batches"
	"github.com/kg46sp8kps-web/gestima-sub002/internal/optlock"
	"github.com/kg46sp8kps-web/gestima-sub002/internal/pricing"
)

func (s *Store) CreateBatch(_ context.Context, b batches.Batch) (batches.Batch, error) {
	s.mu.Lock()
	if _, ok := s.parts[b.PartID]; !ok {
		s.mu.Unlock()
		return batches.Batch{}, fmt.Errorf("part %d: %w", b.PartID, optlock.ErrNotFound)
	}
	b.ID = s.nextID()
	b.Status = batches.StatusDraft
	b.Version = 1
	b.CreatedAt = time.Now().UTC()
	s.batches[b.ID] = b
	s.mu.Unlock()

	s.guard.Track(entityBatch, b.ID, b.Version)
	return b, nil
}

func (s *Store) GetBatch(_ context.Context, id int64) (batches.Batch, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.batches[id]
	return b, ok, nil
}

func (s *Store) ListBatches(_ context.Context, partID int64) ([]batches.Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []batches.Batch
	for _, b := range s.batches {
		if b.PartID == partID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Quantity != out[j].Quantity {
			return out[i].Quantity < out[j].Quantity
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) SaveBreakdown(_ context.Context, id, expectedVersion int64, bd pricing.Breakdown, at time.Time) (int64, error) {
	v, err := s.guard.Update(entityBatch, id, expectedVersion, func(next int64) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		b := s.batches[id]
		if b.Frozen() {
			return fmt.Errorf("batch %d: %w", id, pricing.ErrBatchFrozen)
		}
		b.Breakdown = bd
		b.RecalculatedAt = at
		b.Version = next
		s.batches[id] = b
		return nil
	})
	if err != nil {
		return 0, s.classify(id, err, pricing.ErrBatchFrozen)
	}
	return v, nil
}

// classify turns a version conflict on a batch that is frozen by now into frozenErr.
func (s *Store) classify(id int64, err, frozenErr error) error {
	if !errors.Is(err, optlock.ErrConcurrentModification) {
		return err
	}
	s.mu.RLock()
	b := s.batches[id]
	s.mu.RUnlock()
	if b.Frozen() {
		return fmt.Errorf("batch %d: %w", id, frozenErr)
	}
	return err
}

// CreateBatchSet stores the set and its draft members under one lock.
func (s *Store) CreateBatchSet(_ context.Context, set batches.BatchSet, members []batches.Batch) (batches.BatchSet, []batches.Batch, error) {
	s.mu.Lock()
	if _, ok := s.parts[set.PartID]; !ok {
		s.mu.Unlock()
		return batches.BatchSet{}, nil, fmt.Errorf("part %d: %w", set.PartID, optlock.ErrNotFound)
	}
	for _, m := range members {
		if m.PartID != set.PartID {
			s.mu.Unlock()
			return batches.BatchSet{}, nil, fmt.Errorf("batch for part %d cannot join set of part %d: %w", m.PartID, set.PartID, optlock.ErrNotFound)
		}
	}
	set.ID = s.nextID()
	set.Version = 1
	set.BatchIDs = make([]int64, 0, len(members))
	now := time.Now().UTC()
	out := make([]batches.Batch, len(members))
	for i, m := range members {
		setID := set.ID
		m.ID = s.nextID()
		m.Status = batches.StatusDraft
		m.Version = 1
		m.CreatedAt = now
		m.SetID = &setID
		s.batches[m.ID] = m
		out[i] = m
		set.BatchIDs = append(set.BatchIDs, m.ID)
	}
	s.sets[set.ID] = set
	s.mu.Unlock()

	for _, b := range out {
		s.guard.Track(entityBatch, b.ID, b.Version)
	}
	return set, out, nil
}

func (s *Store) GetBatchSet(_ context.Context, id int64) (batches.BatchSet, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set, ok := s.sets[id]
	if !ok {
		return batches.BatchSet{}, false, nil
	}
	set.BatchIDs = nil
	var members []batches.Batch
	for _, b := range s.batches {
		if b.SetID != nil && *b.SetID == id {
			members = append(members, b)
		}
	}
	sort.Slice(members, func(i, j int) bool {
		if members[i].Quantity != members[j].Quantity {
			return members[i].Quantity < members[j].Quantity
		}
		return members[i].ID < members[j].ID
	})
	for _, b := range members {
		set.BatchIDs = append(set.BatchIDs, b.ID)
	}
	return set, true, nil
}

// FreezeBatches checks every version first, then writes all batches and
// snapshots. A failure leaves every batch as it was.
func (s *Store) FreezeBatches(_ context.Context, setID *int64, items []batches.FreezeItem, at time.Time) error {
	expects := make([]optlock.Expect, len(items))
	for i, it := range items {
		expects[i] = optlock.Expect{Entity: entityBatch, ID: it.BatchID, Version: it.ExpectedVersion}
	}

	err := s.guard.UpdateMany(expects, func() error {
		s.mu.Lock()
		defer s.mu.Unlock()

		payloads := make([][]byte, len(items))
		for i, it := range items {
			if s.batches[it.BatchID].Frozen() {
				return &batches.FreezeError{BatchID: it.BatchID, Err: pricing.ErrAlreadyFrozen}
			}
			p, err := batches.EncodeSnapshot(it.Snapshot)
			if err != nil {
				return &batches.FreezeError{BatchID: it.BatchID, Err: err}
			}
			payloads[i] = p
		}
		if setID != nil {
			set, ok := s.sets[*setID]
			if !ok {
				return fmt.Errorf("batch set %d: %w", *setID, optlock.ErrNotFound)
			}
			if set.Frozen() {
				return fmt.Errorf("batch set %d: %w", *setID, pricing.ErrAlreadyFrozen)
			}
		}

		// all checks passed; nothing below can fail
		for i, it := range items {
			b := s.batches[it.BatchID]
			b.Status = batches.StatusFrozen
			b.FrozenAt = &at
			b.Version = it.ExpectedVersion + 1
			s.batches[it.BatchID] = b
			s.snapshots[it.BatchID] = payloads[i]
		}
		if setID != nil {
			set := s.sets[*setID]
			set.FrozenAt = &at
			set.Version++
			s.sets[*setID] = set
		}
		return nil
	})
	if err == nil {
		return nil
	}

	var fe *batches.FreezeError
	if errors.As(err, &fe) {
		return err
	}
	var ce *optlock.ConflictError
	if errors.As(err, &ce) {
		return &batches.FreezeError{BatchID: ce.ID, Err: s.classify(ce.ID, err, pricing.ErrAlreadyFrozen)}
	}
	if errors.Is(err, optlock.ErrNotFound) {
		for _, it := range items {
			if _, ok := s.guard.Version(entityBatch, it.BatchID); !ok {
				return &batches.FreezeError{BatchID: it.BatchID, Err: err}
			}
		}
	}
	return err
}

func (s *Store) GetSnapshot(_ context.Context, batchID int64) (batches.Snapshot, bool, error) {
	s.mu.RLock()
	payload, ok := s.snapshots[batchID]
	s.mu.RUnlock()
	if !ok {
		return batches.Snapshot{}, false, nil
	}
	snap, err := batches.DecodeSnapshot(payload)
	if err != nil {
		return batches.Snapshot{}, false, err
	}
	return snap, true, nil
}
