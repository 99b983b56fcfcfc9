package parts

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/kg46sp8kps-web/gestima-sub002/internal/domain/materials"
	"github.com/kg46sp8kps-web/gestima-sub002/internal/money"
	"github.com/kg46sp8kps-web/gestima-sub002/internal/optlock"
)

type Repo struct{ pool *pgxpool.Pool }

func NewRepo(pool *pgxpool.Pool) *Repo { return &Repo{pool: pool} }

func (r *Repo) GetPart(ctx context.Context, id int64) (Part, bool, error) {
	var p Part
	err := r.pool.QueryRow(ctx, `
		SELECT id, number, name, version, created_at, updated_at
		FROM parts
		WHERE id = $1
	`, id).Scan(&p.ID, &p.Number, &p.Name, &p.Version, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Part{}, false, nil
	}
	if err != nil {
		return Part{}, false, err
	}
	return p, true, nil
}

func (r *Repo) UpdatePart(ctx context.Context, p Part) (int64, error) {
	err := optlock.Exec(ctx, r.pool, "part", "parts", p.ID, p.Version, `
		UPDATE parts
		SET number = $3, name = $4, version = version + 1, updated_at = NOW()
		WHERE id = $1 AND version = $2
	`, p.Number, p.Name)
	if err != nil {
		return 0, err
	}
	return p.Version + 1, nil
}

// DeletePart removes a part; inputs, operations and batches go with it (ON DELETE CASCADE).
func (r *Repo) DeletePart(ctx context.Context, id, expectedVersion int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM parts WHERE id = $1 AND version = $2`, id, expectedVersion)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	p, ok, err := r.GetPart(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("part %d: %w", id, optlock.ErrNotFound)
	}
	return &optlock.ConflictError{Entity: "part", ID: id, Expected: expectedVersion, Actual: p.Version}
}

const inputColumns = `id, part_id, shape, diameter, width, height, wall_thickness, length,
	category_id, item_id, group_id, qty_per_part, version`

func scanInput(row pgx.Row) (MaterialInput, error) {
	var in MaterialInput
	var shape string
	err := row.Scan(
		&in.ID, &in.PartID, &shape,
		&in.Dims.Diameter, &in.Dims.Width, &in.Dims.Height, &in.Dims.WallThickness, &in.Dims.Length,
		&in.CategoryID, &in.ItemID, &in.GroupID, &in.QtyPerPart, &in.Version,
	)
	in.Shape = materials.Shape(shape)
	return in, err
}

func (r *Repo) GetMaterialInput(ctx context.Context, id int64) (MaterialInput, bool, error) {
	in, err := scanInput(r.pool.QueryRow(ctx, `SELECT `+inputColumns+` FROM material_inputs WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return MaterialInput{}, false, nil
	}
	if err != nil {
		return MaterialInput{}, false, err
	}
	return in, true, nil
}

func (r *Repo) ListMaterialInputs(ctx context.Context, partID int64) ([]MaterialInput, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+inputColumns+`
		FROM material_inputs
		WHERE part_id = $1
		ORDER BY id
	`, partID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []MaterialInput
	for rows.Next() {
		in, err := scanInput(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, in)
	}
	return out, rows.Err()
}

func (r *Repo) UpdateMaterialInput(ctx context.Context, in MaterialInput) (int64, error) {
	if _, err := in.Geometry(); err != nil {
		return 0, err
	}
	err := optlock.Exec(ctx, r.pool, "material_input", "material_inputs", in.ID, in.Version, `
		UPDATE material_inputs
		SET shape = $3, diameter = $4, width = $5, height = $6, wall_thickness = $7, length = $8,
		    category_id = $9, item_id = $10, group_id = $11, qty_per_part = $12,
		    version = version + 1
		WHERE id = $1 AND version = $2
	`, string(in.Shape), in.Dims.Diameter, in.Dims.Width, in.Dims.Height, in.Dims.WallThickness, in.Dims.Length,
		in.CategoryID, in.ItemID, in.GroupID, in.QtyPerPart)
	if err != nil {
		return 0, err
	}
	return in.Version + 1, nil
}

func (r *Repo) GetOperations(ctx context.Context, partID int64) ([]Operation, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, part_id, seq, name, work_center_id, cutting_mode,
		       setup_minutes, piece_minutes, manning, utilization,
		       cooperation, coop_flat_price, coop_min_price, version
		FROM operations
		WHERE part_id = $1
		ORDER BY seq, id
	`, partID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Operation
	for rows.Next() {
		var op Operation
		var mode string
		var flat, minPrice decimal.Decimal
		if err := rows.Scan(&op.ID, &op.PartID, &op.Seq, &op.Name, &op.WorkCenterID, &mode,
			&op.SetupMinutes, &op.PieceMinutes, &op.Manning, &op.Utilization,
			&op.Cooperation, &flat, &minPrice, &op.Version); err != nil {
			return nil, err
		}
		op.CuttingMode = CuttingMode(mode)
		op.CoopFlatPrice = money.FromDecimal(flat)
		op.CoopMinPrice = money.FromDecimal(minPrice)
		out = append(out, op)
	}
	return out, rows.Err()
}

func (r *Repo) UpdateOperation(ctx context.Context, op Operation) (int64, error) {
	if !op.CuttingMode.Valid() {
		return 0, fmt.Errorf("operation %d: unknown cutting mode %q", op.ID, op.CuttingMode)
	}
	err := optlock.Exec(ctx, r.pool, "operation", "operations", op.ID, op.Version, `
		UPDATE operations
		SET seq = $3, name = $4, work_center_id = $5, cutting_mode = $6,
		    setup_minutes = $7, piece_minutes = $8, manning = $9, utilization = $10,
		    cooperation = $11, coop_flat_price = $12, coop_min_price = $13,
		    version = version + 1
		WHERE id = $1 AND version = $2
	`, op.Seq, op.Name, op.WorkCenterID, string(op.CuttingMode),
		op.SetupMinutes, op.PieceMinutes, op.Manning, op.Utilization,
		op.Cooperation, op.CoopFlatPrice.Decimal(), op.CoopMinPrice.Decimal())
	if err != nil {
		return 0, err
	}
	return op.Version + 1, nil
}
