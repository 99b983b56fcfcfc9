// Package memstore keeps every repository in process memory with the same
// contracts as the Postgres repositories: version-checked writes through an
// optlock.Guard and all-or-nothing freezes. Used by tests and by the
// "memory" store mode.
package memstore

import (
	"sync"

	"github.com/kg46sp8kps-web/gestima-sub002/internal/domain/batches"
	"github.com/kg46sp8kps-web/gestima-sub002/internal/domain/materials"
	"github.com/kg46sp8kps-web/gestima-sub002/internal/domain/parts"
	"github.com/kg46sp8kps-web/gestima-sub002/internal/domain/sysconfig"
	"github.com/kg46sp8kps-web/gestima-sub002/internal/domain/workcenters"
	"github.com/kg46sp8kps-web/gestima-sub002/internal/optlock"
)

const (
	entityPart          = "part"
	entityInput         = "material_input"
	entityOperation     = "operation"
	entityWorkCenter    = "work_center"
	entityItem          = "material_item"
	entityCategory      = "price_category"
	entityBatch         = "batch"
	entitySystemConfig  = "system_config"
	systemConfigID      = 1
	defaultHistoryLimit = 50
)

// Store is safe for concurrent use. Lock order is guard before mu; nothing
// takes the guard while holding mu.
type Store struct {
	guard *optlock.Guard

	mu          sync.RWMutex
	seq         int64
	parts       map[int64]parts.Part
	inputs      map[int64]parts.MaterialInput
	operations  map[int64]parts.Operation
	workCenters map[int64]workcenters.WorkCenter
	groups      map[int64]materials.Group
	items       map[int64]materials.Item
	categories  map[int64]materials.PriceCategory
	config      sysconfig.Config
	history     []sysconfig.HistoryEntry
	batches     map[int64]batches.Batch
	sets        map[int64]batches.BatchSet
	snapshots   map[int64][]byte
}

func New() *Store {
	s := &Store{
		guard:       optlock.NewGuard(),
		parts:       make(map[int64]parts.Part),
		inputs:      make(map[int64]parts.MaterialInput),
		operations:  make(map[int64]parts.Operation),
		workCenters: make(map[int64]workcenters.WorkCenter),
		groups:      make(map[int64]materials.Group),
		items:       make(map[int64]materials.Item),
		categories:  make(map[int64]materials.PriceCategory),
		batches:     make(map[int64]batches.Batch),
		sets:        make(map[int64]batches.BatchSet),
		snapshots:   make(map[int64][]byte),
		config:      sysconfig.Config{Coefficients: sysconfig.DefaultCoefficients(), Version: 1},
	}
	s.guard.Track(entitySystemConfig, systemConfigID, 1)
	return s
}

// nextID must be called with mu held.
func (s *Store) nextID() int64 {
	s.seq++
	return s.seq
}
