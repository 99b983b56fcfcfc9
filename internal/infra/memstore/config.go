package memstore

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kg46sp8kps-web/gestima-sub002/internal/domain/sysconfig"
	"github.com/kg46sp8kps-web/gestima-sub002/internal/domain/workcenters"
	"github.com/kg46sp8kps-web/gestima-sub002/internal/money"
	"github.com/kg46sp8kps-web/gestima-sub002/internal/optlock"
)

func (s *Store) AddWorkCenter(w workcenters.WorkCenter) workcenters.WorkCenter {
	s.mu.Lock()
	w.ID = s.nextID()
	w.Version = 1
	s.workCenters[w.ID] = w
	s.mu.Unlock()

	s.guard.Track(entityWorkCenter, w.ID, w.Version)
	return w
}

func (s *Store) GetWorkCenter(_ context.Context, id int64) (workcenters.WorkCenter, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.workCenters[id]
	return w, ok, nil
}

func (s *Store) UpdateWorkCenterRates(_ context.Context, id, expectedVersion int64, rates workcenters.Rates, at time.Time) (int64, error) {
	for name, v := range map[string]money.Amount{
		"amortization": rates.Amortization, "labor": rates.Labor, "tooling": rates.Tooling, "overhead": rates.Overhead,
	} {
		if v.IsNegative() {
			return 0, fmt.Errorf("work center %d: negative %s rate", id, name)
		}
	}
	return s.guard.Update(entityWorkCenter, id, expectedVersion, func(next int64) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.workCenters[id].Deleted() {
			return fmt.Errorf("work center %d: %w", id, optlock.ErrNotFound)
		}
		w := s.workCenters[id].WithRates(rates, at)
		w.Version = next
		s.workCenters[id] = w
		return nil
	})
}

func (s *Store) TombstoneWorkCenter(_ context.Context, id, expectedVersion int64, at time.Time) (int64, error) {
	return s.guard.Update(entityWorkCenter, id, expectedVersion, func(next int64) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		w := s.workCenters[id]
		if w.Deleted() {
			return fmt.Errorf("work center %d: %w", id, optlock.ErrNotFound)
		}
		w.DeletedAt = &at
		w.Version = next
		s.workCenters[id] = w
		return nil
	})
}

// SetDefaultDensity seeds the fallback density without touching the version.
func (s *Store) SetDefaultDensity(d decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.config.DefaultDensity = d
}

func (s *Store) GetSystemConfig(_ context.Context) (sysconfig.Config, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config, nil
}

func (s *Store) UpdateSystemConfig(_ context.Context, expectedVersion int64, coef sysconfig.Coefficients, by string, at time.Time) (int64, error) {
	if err := coef.Validate(); err != nil {
		return 0, err
	}
	return s.guard.Update(entitySystemConfig, systemConfigID, expectedVersion, func(next int64) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.config.Coefficients = coef
		s.config.Version = next
		s.config.UpdatedAt = at
		s.config.UpdatedBy = by
		s.history = append(s.history, sysconfig.HistoryEntry{
			ID: s.nextID(), Version: next, Coefficients: coef, ChangedBy: by, ChangedAt: at,
		})
		return nil
	})
}

func (s *Store) SystemConfigHistory(_ context.Context, limit int) ([]sysconfig.HistoryEntry, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []sysconfig.HistoryEntry
	for i := len(s.history) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.history[i])
	}
	return out, nil
}
