package materials

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/kg46sp8kps-web/gestima-sub002/internal/money"
	"github.com/kg46sp8kps-web/gestima-sub002/internal/optlock"
)

type Repo struct{ pool *pgxpool.Pool }

func NewRepo(pool *pgxpool.Pool) *Repo { return &Repo{pool: pool} }

const itemColumns = `id, code, name, shape, diameter, width, height, wall_thickness,
	category_id, group_id, weight_per_meter, deleted_at, version, updated_at`

func scanItem(row pgx.Row) (Item, error) {
	var it Item
	var shape string
	err := row.Scan(
		&it.ID, &it.Code, &it.Name, &shape,
		&it.Dims.Diameter, &it.Dims.Width, &it.Dims.Height, &it.Dims.WallThickness,
		&it.CategoryID, &it.GroupID, &it.WeightPerMeter, &it.DeletedAt, &it.Version, &it.UpdatedAt,
	)
	it.Shape = Shape(shape)
	return it, err
}

func (r *Repo) GetGroup(ctx context.Context, id int64) (Group, bool, error) {
	var g Group
	err := r.pool.QueryRow(ctx, `
		SELECT id, code, name, density
		FROM material_groups
		WHERE id = $1 AND deleted_at IS NULL
	`, id).Scan(&g.ID, &g.Code, &g.Name, &g.Density)
	if errors.Is(err, pgx.ErrNoRows) {
		return Group{}, false, nil
	}
	if err != nil {
		return Group{}, false, err
	}
	return g, true, nil
}

// GetItem returns the item even when tombstoned; callers decide what a
// tombstone means for them.
func (r *Repo) GetItem(ctx context.Context, id int64) (Item, bool, error) {
	it, err := scanItem(r.pool.QueryRow(ctx, `SELECT `+itemColumns+` FROM material_items WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Item{}, false, nil
	}
	if err != nil {
		return Item{}, false, err
	}
	return it, true, nil
}

// GetMaterialItems lists live catalog items of one category and shape.
func (r *Repo) GetMaterialItems(ctx context.Context, categoryID int64, shape Shape) ([]Item, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+itemColumns+`
		FROM material_items
		WHERE category_id = $1 AND shape = $2 AND deleted_at IS NULL
		ORDER BY id
	`, categoryID, string(shape))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (r *Repo) GetPriceCategory(ctx context.Context, id int64) (PriceCategory, bool, error) {
	var c PriceCategory
	err := r.pool.QueryRow(ctx, `
		SELECT id, code, name, group_id, version
		FROM material_price_categories
		WHERE id = $1
	`, id).Scan(&c.ID, &c.Code, &c.Name, &c.GroupID, &c.Version)
	if errors.Is(err, pgx.ErrNoRows) {
		return PriceCategory{}, false, nil
	}
	if err != nil {
		return PriceCategory{}, false, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, category_id, min_weight, max_weight, price_per_kg
		FROM material_price_tiers
		WHERE category_id = $1
		ORDER BY min_weight ASC
	`, id)
	if err != nil {
		return PriceCategory{}, false, err
	}
	defer rows.Close()

	for rows.Next() {
		var t PriceTier
		var price decimal.Decimal
		if err := rows.Scan(&t.ID, &t.CategoryID, &t.MinWeight, &t.MaxWeight, &price); err != nil {
			return PriceCategory{}, false, err
		}
		t.PricePerKg = money.FromDecimal(price)
		c.Tiers = append(c.Tiers, t)
	}
	if err := rows.Err(); err != nil {
		return PriceCategory{}, false, err
	}
	return c, true, nil
}

// ReplaceTiers swaps the whole bracket set of a category in one transaction,
// guarded by the category version. Returns the new version.
func (r *Repo) ReplaceTiers(ctx context.Context, categoryID, expectedVersion int64, tiers []PriceTier) (int64, error) {
	if err := ValidateTiers(tiers); err != nil {
		return 0, err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := optlock.Exec(ctx, tx, "price_category", "material_price_categories", categoryID, expectedVersion, `
		UPDATE material_price_categories
		SET version = version + 1, updated_at = NOW()
		WHERE id = $1 AND version = $2
	`); err != nil {
		return 0, err
	}

	if _, err := tx.Exec(ctx, `DELETE FROM material_price_tiers WHERE category_id = $1`, categoryID); err != nil {
		return 0, fmt.Errorf("delete tiers: %w", err)
	}
	for _, t := range tiers {
		if _, err := tx.Exec(ctx, `
			INSERT INTO material_price_tiers (category_id, min_weight, max_weight, price_per_kg)
			VALUES ($1,$2,$3,$4)
		`, categoryID, t.MinWeight, t.MaxWeight, t.PricePerKg.Decimal()); err != nil {
			return 0, fmt.Errorf("insert tier: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return expectedVersion + 1, nil
}

// UpdateItem writes catalog fields of an item read at it.Version.
func (r *Repo) UpdateItem(ctx context.Context, it Item) (int64, error) {
	if _, err := DecodeProfile(it.Shape, it.Dims); err != nil {
		return 0, err
	}
	err := optlock.Exec(ctx, r.pool, "material_item", "material_items", it.ID, it.Version, `
		UPDATE material_items
		SET code = $3, name = $4, shape = $5, diameter = $6, width = $7, height = $8,
		    wall_thickness = $9, category_id = $10, group_id = $11, weight_per_meter = $12,
		    version = version + 1, updated_at = NOW()
		WHERE id = $1 AND version = $2
	`, it.Code, it.Name, string(it.Shape), it.Dims.Diameter, it.Dims.Width, it.Dims.Height,
		it.Dims.WallThickness, it.CategoryID, it.GroupID, it.WeightPerMeter)
	if err != nil {
		return 0, err
	}
	return it.Version + 1, nil
}

// TombstoneItem hides an item from new pricing. Frozen snapshots keep their copies.
func (r *Repo) TombstoneItem(ctx context.Context, id, expectedVersion int64, at time.Time) (int64, error) {
	err := optlock.Exec(ctx, r.pool, "material_item", "material_items", id, expectedVersion, `
		UPDATE material_items
		SET deleted_at = $3, version = version + 1, updated_at = NOW()
		WHERE id = $1 AND version = $2
	`, at)
	if err != nil {
		return 0, err
	}
	return expectedVersion + 1, nil
}
