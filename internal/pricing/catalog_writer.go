package pricing

import (
	"context"
	"time"

	"github.com/kg46sp8kps-web/gestima-sub002/internal/domain/materials"
)

// CatalogStore is the write side of the material catalog.
type CatalogStore interface {
	ReplaceTiers(ctx context.Context, categoryID, expectedVersion int64, tiers []materials.PriceTier) (int64, error)
	UpdateItem(ctx context.Context, it materials.Item) (int64, error)
	TombstoneItem(ctx context.Context, id, expectedVersion int64, at time.Time) (int64, error)
}

// CatalogWriter routes catalog writes through the cache so readers never see
// prices older than an acknowledged write.
type CatalogWriter struct {
	cache *Cache
	store CatalogStore
}

func NewCatalogWriter(cache *Cache, store CatalogStore) *CatalogWriter {
	return &CatalogWriter{cache: cache, store: store}
}

func (w *CatalogWriter) ReplaceTiers(ctx context.Context, categoryID, expectedVersion int64, tiers []materials.PriceTier) (v int64, err error) {
	err = w.cache.Mutate(func() error {
		v, err = w.store.ReplaceTiers(ctx, categoryID, expectedVersion, tiers)
		return err
	})
	return v, err
}

func (w *CatalogWriter) UpdateItem(ctx context.Context, it materials.Item) (v int64, err error) {
	err = w.cache.Mutate(func() error {
		v, err = w.store.UpdateItem(ctx, it)
		return err
	})
	return v, err
}

func (w *CatalogWriter) TombstoneItem(ctx context.Context, id, expectedVersion int64, at time.Time) (v int64, err error) {
	err = w.cache.Mutate(func() error {
		v, err = w.store.TombstoneItem(ctx, id, expectedVersion, at)
		return err
	})
	return v, err
}
