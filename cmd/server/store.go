package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/kg46sp8kps-web/gestima-sub002/internal/config"
	"github.com/kg46sp8kps-web/gestima-sub002/internal/domain/batches"
	"github.com/kg46sp8kps-web/gestima-sub002/internal/domain/materials"
	"github.com/kg46sp8kps-web/gestima-sub002/internal/domain/parts"
	"github.com/kg46sp8kps-web/gestima-sub002/internal/domain/sysconfig"
	"github.com/kg46sp8kps-web/gestima-sub002/internal/domain/workcenters"
	"github.com/kg46sp8kps-web/gestima-sub002/internal/infra/db"
	apihttp "github.com/kg46sp8kps-web/gestima-sub002/internal/infra/http"
	"github.com/kg46sp8kps-web/gestima-sub002/internal/infra/memstore"
	"github.com/kg46sp8kps-web/gestima-sub002/internal/pricing"
	"github.com/kg46sp8kps-web/gestima-sub002/internal/snapshot"
	"github.com/kg46sp8kps-web/gestima-sub002/migrations"
)

type materialStore interface {
	pricing.MaterialSource
	pricing.CatalogStore
}

// backend is the persistence the service runs on, either in memory or Postgres.
type backend struct {
	parts       pricing.PartSource
	workCenters apihttp.WorkCenters
	materials   materialStore
	config      apihttp.SystemConfig
	batches     snapshot.Store
	close       func()
}

func openBackend(ctx context.Context, cfg config.Config, log *slog.Logger) (backend, error) {
	density := decimal.NewFromFloat(cfg.Pricing.DefaultDensity)

	if cfg.App.Store == config.StoreMemory {
		s := memstore.New()
		demo := memstore.SeedDemo(s)
		s.SetDefaultDensity(density)
		log.Info("in-memory store seeded", "part_id", demo.PartID)
		return backend{parts: s, workCenters: s, materials: s, config: s, batches: s, close: func() {}}, nil
	}

	if err := db.Migrate(cfg.Postgres.DSN, migrations.FS, "."); err != nil {
		return backend{}, fmt.Errorf("migrations: %w", err)
	}
	log.Info("migrations applied")

	pool, err := db.Connect(ctx, cfg.Postgres.DSN, cfg.Postgres.MaxConns)
	if err != nil {
		return backend{}, fmt.Errorf("db connect: %w", err)
	}
	log.Info("db connected")

	sys := sysconfig.NewRepo(pool)
	if err := sys.SetDefaultDensity(ctx, density); err != nil {
		pool.Close()
		return backend{}, fmt.Errorf("set default density: %w", err)
	}
	return backend{
		parts:       parts.NewRepo(pool),
		workCenters: workcenters.NewRepo(pool),
		materials:   materials.NewRepo(pool),
		config:      sys,
		batches:     batches.NewRepo(pool),
		close:       pool.Close,
	}, nil
}
