package memstore

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/kg46sp8kps-web/gestima-sub002/internal/domain/parts"
	"github.com/kg46sp8kps-web/gestima-sub002/internal/optlock"
)

func (s *Store) AddPart(p parts.Part) parts.Part {
	s.mu.Lock()
	p.ID = s.nextID()
	p.Version = 1
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	s.parts[p.ID] = p
	s.mu.Unlock()

	s.guard.Track(entityPart, p.ID, p.Version)
	return p
}

func (s *Store) AddMaterialInput(in parts.MaterialInput) parts.MaterialInput {
	s.mu.Lock()
	in.ID = s.nextID()
	in.Version = 1
	s.inputs[in.ID] = in
	s.mu.Unlock()

	s.guard.Track(entityInput, in.ID, in.Version)
	return in
}

func (s *Store) AddOperation(op parts.Operation) parts.Operation {
	s.mu.Lock()
	op.ID = s.nextID()
	op.Version = 1
	s.operations[op.ID] = op
	s.mu.Unlock()

	s.guard.Track(entityOperation, op.ID, op.Version)
	return op
}

func (s *Store) GetPart(_ context.Context, id int64) (parts.Part, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.parts[id]
	return p, ok, nil
}

func (s *Store) UpdatePart(_ context.Context, p parts.Part) (int64, error) {
	return s.guard.Update(entityPart, p.ID, p.Version, func(next int64) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		cur := s.parts[p.ID]
		cur.Number, cur.Name = p.Number, p.Name
		cur.Version = next
		cur.UpdatedAt = time.Now().UTC()
		s.parts[p.ID] = cur
		return nil
	})
}

// DeletePart removes the part with its inputs, operations, batches, sets and snapshots.
func (s *Store) DeletePart(_ context.Context, id, expectedVersion int64) error {
	var gone []optlock.Expect
	_, err := s.guard.Update(entityPart, id, expectedVersion, func(int64) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.parts, id)
		for k, in := range s.inputs {
			if in.PartID == id {
				delete(s.inputs, k)
				gone = append(gone, optlock.Expect{Entity: entityInput, ID: k})
			}
		}
		for k, op := range s.operations {
			if op.PartID == id {
				delete(s.operations, k)
				gone = append(gone, optlock.Expect{Entity: entityOperation, ID: k})
			}
		}
		for k, b := range s.batches {
			if b.PartID == id {
				delete(s.batches, k)
				delete(s.snapshots, k)
				gone = append(gone, optlock.Expect{Entity: entityBatch, ID: k})
			}
		}
		for k, set := range s.sets {
			if set.PartID == id {
				delete(s.sets, k)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	// Forget takes the guard lock, so it runs after Update released it.
	s.guard.Forget(entityPart, id)
	for _, g := range gone {
		s.guard.Forget(g.Entity, g.ID)
	}
	return nil
}

func (s *Store) GetMaterialInput(_ context.Context, id int64) (parts.MaterialInput, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	in, ok := s.inputs[id]
	return in, ok, nil
}

func (s *Store) ListMaterialInputs(_ context.Context, partID int64) ([]parts.MaterialInput, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []parts.MaterialInput
	for _, in := range s.inputs {
		if in.PartID == partID {
			out = append(out, in)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) UpdateMaterialInput(_ context.Context, in parts.MaterialInput) (int64, error) {
	if _, err := in.Geometry(); err != nil {
		return 0, err
	}
	return s.guard.Update(entityInput, in.ID, in.Version, func(next int64) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		cur := s.inputs[in.ID]
		in.PartID = cur.PartID
		in.Version = next
		s.inputs[in.ID] = in
		return nil
	})
}

func (s *Store) GetOperations(_ context.Context, partID int64) ([]parts.Operation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []parts.Operation
	for _, op := range s.operations {
		if op.PartID == partID {
			out = append(out, op)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Seq != out[j].Seq {
			return out[i].Seq < out[j].Seq
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) UpdateOperation(_ context.Context, op parts.Operation) (int64, error) {
	if !op.CuttingMode.Valid() {
		return 0, fmt.Errorf("operation %d: unknown cutting mode %q", op.ID, op.CuttingMode)
	}
	return s.guard.Update(entityOperation, op.ID, op.Version, func(next int64) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		cur := s.operations[op.ID]
		op.PartID = cur.PartID
		op.Version = next
		s.operations[op.ID] = op
		return nil
	})
}
