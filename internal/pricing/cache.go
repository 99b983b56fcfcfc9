package pricing

import (
	"context"
	"sync"

	"github.com/kg46sp8kps-web/gestima-sub002/internal/domain/materials"
)

// MaterialSource is the read side of the material catalog.
type MaterialSource interface {
	GetGroup(ctx context.Context, id int64) (materials.Group, bool, error)
	GetItem(ctx context.Context, id int64) (materials.Item, bool, error)
	GetPriceCategory(ctx context.Context, id int64) (materials.PriceCategory, bool, error)
	GetMaterialItems(ctx context.Context, categoryID int64, shape materials.Shape) ([]materials.Item, error)
}

type itemsKey struct {
	categoryID int64
	shape      materials.Shape
}

// Cache keeps price categories and catalog item lists in memory. Catalog
// writes must go through Mutate: the write and the invalidation happen under
// the same exclusive lock, so no reader sees the old data once the write is
// acknowledged. A fetch that overlapped a write is returned to its caller but
// never stored.
type Cache struct {
	src MaterialSource

	mu         sync.RWMutex
	gen        uint64
	categories map[int64]materials.PriceCategory
	items      map[itemsKey][]materials.Item
}

func NewCache(src MaterialSource) *Cache {
	return &Cache{
		src:        src,
		categories: make(map[int64]materials.PriceCategory),
		items:      make(map[itemsKey][]materials.Item),
	}
}

func (c *Cache) GetGroup(ctx context.Context, id int64) (materials.Group, bool, error) {
	return c.src.GetGroup(ctx, id)
}

func (c *Cache) GetItem(ctx context.Context, id int64) (materials.Item, bool, error) {
	return c.src.GetItem(ctx, id)
}

func (c *Cache) GetPriceCategory(ctx context.Context, id int64) (materials.PriceCategory, bool, error) {
	c.mu.RLock()
	cat, ok := c.categories[id]
	gen := c.gen
	c.mu.RUnlock()
	if ok {
		return cloneCategory(cat), true, nil
	}

	cat, found, err := c.src.GetPriceCategory(ctx, id)
	if err != nil || !found {
		return cat, found, err
	}

	c.mu.Lock()
	if c.gen == gen {
		c.categories[id] = cloneCategory(cat)
	}
	c.mu.Unlock()
	return cat, true, nil
}

func (c *Cache) GetMaterialItems(ctx context.Context, categoryID int64, shape materials.Shape) ([]materials.Item, error) {
	k := itemsKey{categoryID, shape}
	c.mu.RLock()
	items, ok := c.items[k]
	gen := c.gen
	c.mu.RUnlock()
	if ok {
		return append([]materials.Item(nil), items...), nil
	}

	items, err := c.src.GetMaterialItems(ctx, categoryID, shape)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.gen == gen {
		c.items[k] = append([]materials.Item(nil), items...)
	}
	c.mu.Unlock()
	return items, nil
}

// Mutate runs a catalog write with readers excluded and drops everything
// cached before releasing them. write must not read through the cache.
func (c *Cache) Mutate(write func() error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	err := write()
	c.invalidateLocked()
	return err
}

// Invalidate drops everything cached.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidateLocked()
}

func (c *Cache) invalidateLocked() {
	c.gen++
	clear(c.categories)
	clear(c.items)
}

func cloneCategory(c materials.PriceCategory) materials.PriceCategory {
	c.Tiers = append([]materials.PriceTier(nil), c.Tiers...)
	return c
}
