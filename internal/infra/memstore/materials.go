package memstore

import (
	"context"
	"sort"
	"time"

	"github.com/kg46sp8kps-web/gestima-sub002/internal/domain/materials"
)

func (s *Store) AddGroup(g materials.Group) materials.Group {
	s.mu.Lock()
	defer s.mu.Unlock()
	g.ID = s.nextID()
	s.groups[g.ID] = g
	return g
}

func (s *Store) AddItem(it materials.Item) materials.Item {
	s.mu.Lock()
	it.ID = s.nextID()
	it.Version = 1
	it.UpdatedAt = time.Now().UTC()
	s.items[it.ID] = it
	s.mu.Unlock()

	s.guard.Track(entityItem, it.ID, it.Version)
	return it
}

// AddPriceCategory stores a category with its tiers. Tiers are not validated,
// so tests can model broken catalogs.
func (s *Store) AddPriceCategory(c materials.PriceCategory) materials.PriceCategory {
	s.mu.Lock()
	c.ID = s.nextID()
	c.Version = 1
	c.Tiers = s.numberTiers(c.ID, c.Tiers)
	s.categories[c.ID] = c
	s.mu.Unlock()

	s.guard.Track(entityCategory, c.ID, c.Version)
	return cloneCategory(c)
}

// numberTiers must be called with mu held.
func (s *Store) numberTiers(categoryID int64, tiers []materials.PriceTier) []materials.PriceTier {
	out := make([]materials.PriceTier, len(tiers))
	for i, t := range tiers {
		t.ID = s.nextID()
		t.CategoryID = categoryID
		out[i] = t
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MinWeight.LessThan(out[j].MinWeight) })
	return out
}

func (s *Store) GetGroup(_ context.Context, id int64) (materials.Group, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.groups[id]
	return g, ok, nil
}

func (s *Store) GetItem(_ context.Context, id int64) (materials.Item, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	it, ok := s.items[id]
	return it, ok, nil
}

func (s *Store) GetMaterialItems(_ context.Context, categoryID int64, shape materials.Shape) ([]materials.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []materials.Item
	for _, it := range s.items {
		if it.CategoryID == categoryID && it.Shape == shape && !it.Deleted() {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) GetPriceCategory(_ context.Context, id int64) (materials.PriceCategory, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.categories[id]
	return cloneCategory(c), ok, nil
}

func (s *Store) ReplaceTiers(_ context.Context, categoryID, expectedVersion int64, tiers []materials.PriceTier) (int64, error) {
	if err := materials.ValidateTiers(tiers); err != nil {
		return 0, err
	}
	return s.guard.Update(entityCategory, categoryID, expectedVersion, func(next int64) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		c := s.categories[categoryID]
		c.Tiers = s.numberTiers(categoryID, tiers)
		c.Version = next
		s.categories[categoryID] = c
		return nil
	})
}

func (s *Store) UpdateItem(_ context.Context, it materials.Item) (int64, error) {
	if _, err := materials.DecodeProfile(it.Shape, it.Dims); err != nil {
		return 0, err
	}
	return s.guard.Update(entityItem, it.ID, it.Version, func(next int64) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		cur := s.items[it.ID]
		it.DeletedAt = cur.DeletedAt
		it.Version = next
		it.UpdatedAt = time.Now().UTC()
		s.items[it.ID] = it
		return nil
	})
}

func (s *Store) TombstoneItem(_ context.Context, id, expectedVersion int64, at time.Time) (int64, error) {
	return s.guard.Update(entityItem, id, expectedVersion, func(next int64) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		it := s.items[id]
		it.DeletedAt = &at
		it.Version = next
		s.items[id] = it
		return nil
	})
}

func cloneCategory(c materials.PriceCategory) materials.PriceCategory {
	c.Tiers = append([]materials.PriceTier(nil), c.Tiers...)
	return c
}
