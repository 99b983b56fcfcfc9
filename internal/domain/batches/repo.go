package batches

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kg46sp8kps-web/gestima-sub002/internal/optlock"
	"github.com/kg46sp8kps-web/gestima-sub002/internal/pricing"
)

type Repo struct{ pool *pgxpool.Pool }

func NewRepo(pool *pgxpool.Pool) *Repo { return &Repo{pool: pool} }

const batchColumns = `id, part_id, quantity, status, breakdown, recalculated_at, frozen_at, set_id, version, created_at`

func scanBatch(row pgx.Row) (Batch, error) {
	var b Batch
	var status string
	var raw []byte
	if err := row.Scan(&b.ID, &b.PartID, &b.Quantity, &status, &raw, &b.RecalculatedAt,
		&b.FrozenAt, &b.SetID, &b.Version, &b.CreatedAt); err != nil {
		return Batch{}, err
	}
	b.Status = Status(status)
	if err := json.Unmarshal(raw, &b.Breakdown); err != nil {
		return Batch{}, fmt.Errorf("decode batch %d breakdown: %w", b.ID, err)
	}
	return b, nil
}

// CreateBatch stores a new draft batch and returns it with its id and version.
func (r *Repo) CreateBatch(ctx context.Context, b Batch) (Batch, error) {
	return insertBatch(ctx, r.pool, b)
}

func insertBatch(ctx context.Context, q optlock.Querier, b Batch) (Batch, error) {
	raw, err := json.Marshal(b.Breakdown)
	if err != nil {
		return Batch{}, err
	}
	b.Status = StatusDraft
	b.Version = 1
	err = q.QueryRow(ctx, `
		INSERT INTO batches (part_id, quantity, status, breakdown, recalculated_at, set_id, version)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING id, created_at
	`, b.PartID, b.Quantity, string(b.Status), raw, b.RecalculatedAt, b.SetID, b.Version).Scan(&b.ID, &b.CreatedAt)
	if err != nil {
		return Batch{}, fmt.Errorf("insert batch for quantity %d: %w", b.Quantity, err)
	}
	return b, nil
}

func (r *Repo) GetBatch(ctx context.Context, id int64) (Batch, bool, error) {
	b, err := scanBatch(r.pool.QueryRow(ctx, `SELECT `+batchColumns+` FROM batches WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Batch{}, false, nil
	}
	if err != nil {
		return Batch{}, false, err
	}
	return b, true, nil
}

func (r *Repo) ListBatches(ctx context.Context, partID int64) ([]Batch, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+batchColumns+`
		FROM batches
		WHERE part_id = $1
		ORDER BY quantity, id
	`, partID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Batch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// SaveBreakdown replaces the breakdown of a draft batch read at expectedVersion.
func (r *Repo) SaveBreakdown(ctx context.Context, id, expectedVersion int64, bd pricing.Breakdown, at time.Time) (int64, error) {
	raw, err := json.Marshal(bd)
	if err != nil {
		return 0, err
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE batches
		SET breakdown = $3, recalculated_at = $4, version = version + 1
		WHERE id = $1 AND version = $2 AND status = 'draft'
	`, id, expectedVersion, raw, at)
	if err != nil {
		return 0, fmt.Errorf("save batch %d breakdown: %w", id, err)
	}
	if tag.RowsAffected() == 1 {
		return expectedVersion + 1, nil
	}
	return 0, classify(ctx, r.pool, id, expectedVersion, pricing.ErrBatchFrozen)
}

// classify explains why a draft-only, version-guarded update matched no row.
func classify(ctx context.Context, q optlock.Querier, id, expected int64, frozenErr error) error {
	var status string
	var version int64
	err := q.QueryRow(ctx, `SELECT status, version FROM batches WHERE id = $1`, id).Scan(&status, &version)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("batch %d: %w", id, optlock.ErrNotFound)
	}
	if err != nil {
		return err
	}
	if Status(status) == StatusFrozen {
		return fmt.Errorf("batch %d: %w", id, frozenErr)
	}
	return &optlock.ConflictError{Entity: "batch", ID: id, Expected: expected, Actual: version}
}

// CreateBatchSet stores the set and its draft members in one transaction.
func (r *Repo) CreateBatchSet(ctx context.Context, s BatchSet, members []Batch) (BatchSet, []Batch, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return BatchSet{}, nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	s.Version = 1
	if err := tx.QueryRow(ctx, `
		INSERT INTO batch_sets (part_id, name, version)
		VALUES ($1,$2,$3)
		RETURNING id
	`, s.PartID, s.Name, s.Version).Scan(&s.ID); err != nil {
		return BatchSet{}, nil, err
	}
	s.BatchIDs = make([]int64, 0, len(members))
	out := make([]Batch, 0, len(members))
	for _, m := range members {
		if m.PartID != s.PartID {
			return BatchSet{}, nil, fmt.Errorf("batch for part %d cannot join set of part %d: %w", m.PartID, s.PartID, optlock.ErrNotFound)
		}
		setID := s.ID
		m.SetID = &setID
		b, err := insertBatch(ctx, tx, m)
		if err != nil {
			return BatchSet{}, nil, err
		}
		out = append(out, b)
		s.BatchIDs = append(s.BatchIDs, b.ID)
	}
	if err := tx.Commit(ctx); err != nil {
		return BatchSet{}, nil, err
	}
	return s, out, nil
}

func (r *Repo) GetBatchSet(ctx context.Context, id int64) (BatchSet, bool, error) {
	var s BatchSet
	err := r.pool.QueryRow(ctx, `
		SELECT id, part_id, name, frozen_at, version
		FROM batch_sets
		WHERE id = $1
	`, id).Scan(&s.ID, &s.PartID, &s.Name, &s.FrozenAt, &s.Version)
	if errors.Is(err, pgx.ErrNoRows) {
		return BatchSet{}, false, nil
	}
	if err != nil {
		return BatchSet{}, false, err
	}

	rows, err := r.pool.Query(ctx, `SELECT id FROM batches WHERE set_id = $1 ORDER BY quantity, id`, id)
	if err != nil {
		return BatchSet{}, false, err
	}
	defer rows.Close()
	for rows.Next() {
		var bid int64
		if err := rows.Scan(&bid); err != nil {
			return BatchSet{}, false, err
		}
		s.BatchIDs = append(s.BatchIDs, bid)
	}
	if err := rows.Err(); err != nil {
		return BatchSet{}, false, err
	}
	return s, true, nil
}

// FreezeBatches freezes every item and stores its snapshot in one transaction.
// Each batch must still be a draft at its expected version. When setID is set
// the set is marked frozen too. On any failure nothing is written and the
// error is a *FreezeError naming the batch.
func (r *Repo) FreezeBatches(ctx context.Context, setID *int64, items []FreezeItem, at time.Time) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, it := range items {
		tag, err := tx.Exec(ctx, `
			UPDATE batches
			SET status = 'frozen', frozen_at = $3, version = version + 1
			WHERE id = $1 AND version = $2 AND status = 'draft'
		`, it.BatchID, it.ExpectedVersion, at)
		if err != nil {
			return &FreezeError{BatchID: it.BatchID, Err: err}
		}
		if tag.RowsAffected() != 1 {
			return &FreezeError{BatchID: it.BatchID, Err: classify(ctx, tx, it.BatchID, it.ExpectedVersion, pricing.ErrAlreadyFrozen)}
		}

		payload, err := EncodeSnapshot(it.Snapshot)
		if err != nil {
			return &FreezeError{BatchID: it.BatchID, Err: err}
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO batch_snapshots (batch_id, schema_version, payload, created_at)
			VALUES ($1,$2,$3,$4)
		`, it.BatchID, it.Snapshot.SchemaVersion, payload, at); err != nil {
			return &FreezeError{BatchID: it.BatchID, Err: fmt.Errorf("insert snapshot: %w", err)}
		}
	}

	if setID != nil {
		tag, err := tx.Exec(ctx, `
			UPDATE batch_sets SET frozen_at = $2, version = version + 1
			WHERE id = $1 AND frozen_at IS NULL
		`, *setID, at)
		if err != nil {
			return err
		}
		if tag.RowsAffected() != 1 {
			return fmt.Errorf("batch set %d: %w", *setID, pricing.ErrAlreadyFrozen)
		}
	}

	return tx.Commit(ctx)
}

func (r *Repo) GetSnapshot(ctx context.Context, batchID int64) (Snapshot, bool, error) {
	var payload []byte
	err := r.pool.QueryRow(ctx, `SELECT payload FROM batch_snapshots WHERE batch_id = $1`, batchID).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return Snapshot{}, false, nil
	}
	if err != nil {
		return Snapshot{}, false, err
	}
	s, err := DecodeSnapshot(payload)
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("batch %d: %w", batchID, err)
	}
	return s, true, nil
}
