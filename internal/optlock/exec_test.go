package optlock

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubQuerier answers the guarded UPDATE with a fixed row count and the
// follow-up version read with version, or no row when missing is set.
type stubQuerier struct {
	affected int64
	version  int64
	missing  bool
}

func (q stubQuerier) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	if q.affected == 1 {
		return pgconn.NewCommandTag("UPDATE 1"), nil
	}
	return pgconn.NewCommandTag("UPDATE 0"), nil
}

func (q stubQuerier) QueryRow(context.Context, string, ...any) pgx.Row {
	return versionRow(q)
}

type versionRow stubQuerier

func (r versionRow) Scan(dest ...any) error {
	if r.missing {
		return pgx.ErrNoRows
	}
	*dest[0].(*int64) = r.version
	return nil
}

func TestExecClassifiesZeroRows(t *testing.T) {
	ctx := context.Background()
	const sql = `UPDATE work_centers SET version = version + 1 WHERE id = $1 AND version = $2 AND deleted_at IS NULL`

	t.Run("applied", func(t *testing.T) {
		require.NoError(t, Exec(ctx, stubQuerier{affected: 1}, "work_center", "work_centers", 4, 2, sql))
	})

	t.Run("stale version", func(t *testing.T) {
		err := Exec(ctx, stubQuerier{version: 3}, "work_center", "work_centers", 4, 2, sql)
		var ce *ConflictError
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, int64(3), ce.Actual)
	})

	t.Run("missing row", func(t *testing.T) {
		err := Exec(ctx, stubQuerier{missing: true}, "work_center", "work_centers", 4, 2, sql)
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("row excluded at the expected version", func(t *testing.T) {
		err := Exec(ctx, stubQuerier{version: 2}, "work_center", "work_centers", 4, 2, sql)
		require.ErrorIs(t, err, ErrNotFound)
		assert.NotErrorIs(t, err, ErrConcurrentModification)
	})
}
