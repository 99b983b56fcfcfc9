//go:build integration

package optlock_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kg46sp8kps-web/gestima-sub002/internal/domain/workcenters"
	"github.com/kg46sp8kps-web/gestima-sub002/internal/infra/db/dbtest"
	"github.com/kg46sp8kps-web/gestima-sub002/internal/money"
	"github.com/kg46sp8kps-web/gestima-sub002/internal/optlock"
)

const renameWorkCenter = `
	UPDATE work_centers SET name = $3, version = version + 1
	WHERE id = $1 AND version = $2 AND deleted_at IS NULL
`

func TestExecOnPostgres(t *testing.T) {
	pool := dbtest.Pool(t)
	ctx := context.Background()
	since := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	version := func(t *testing.T, id int64) int64 {
		t.Helper()
		var v int64
		require.NoError(t, pool.QueryRow(ctx, `SELECT version FROM work_centers WHERE id = $1`, id).Scan(&v))
		return v
	}

	t.Run("second writer from the same version conflicts", func(t *testing.T) {
		id := dbtest.InsertWorkCenter(t, pool, "LATHE", "500", since)

		require.NoError(t, optlock.Exec(ctx, pool, "work_center", "work_centers", id, 1, renameWorkCenter, "first"))
		err := optlock.Exec(ctx, pool, "work_center", "work_centers", id, 1, renameWorkCenter, "second")

		var ce *optlock.ConflictError
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, int64(1), ce.Expected)
		assert.Equal(t, int64(2), ce.Actual)
		assert.Equal(t, int64(2), version(t, id))

		var name string
		require.NoError(t, pool.QueryRow(ctx, `SELECT name FROM work_centers WHERE id = $1`, id).Scan(&name))
		assert.Equal(t, "first", name)
	})

	t.Run("tombstoned row at the expected version is not found", func(t *testing.T) {
		id := dbtest.InsertWorkCenter(t, pool, "SAW", "300", since)
		_, err := pool.Exec(ctx, `UPDATE work_centers SET deleted_at = $2 WHERE id = $1`, id, since)
		require.NoError(t, err)

		err = optlock.Exec(ctx, pool, "work_center", "work_centers", id, 1, renameWorkCenter, "late")
		require.ErrorIs(t, err, optlock.ErrNotFound)
		assert.NotErrorIs(t, err, optlock.ErrConcurrentModification)
		assert.Equal(t, int64(1), version(t, id))
	})

	t.Run("missing row is not found", func(t *testing.T) {
		err := optlock.Exec(ctx, pool, "work_center", "work_centers", 4242, 1, renameWorkCenter, "ghost")
		require.ErrorIs(t, err, optlock.ErrNotFound)
	})
}

func TestWorkCenterRateStampOnPostgres(t *testing.T) {
	pool := dbtest.Pool(t)
	ctx := context.Background()
	repo := workcenters.NewRepo(pool)
	since := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	id := dbtest.InsertWorkCenter(t, pool, "MILL", "650", since)

	wc, ok, err := repo.GetWorkCenter(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)

	v, err := repo.UpdateWorkCenterRates(ctx, id, wc.Version, wc.Rates(), since.Add(time.Hour))
	require.NoError(t, err)
	got, _, err := repo.GetWorkCenter(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, v, got.Version)
	assert.True(t, got.RatesChangedAt.Equal(since), "unchanged rates keep the stamp, got %s", got.RatesChangedAt)

	r := got.Rates()
	r.Labor = money.MustNew("700")
	_, err = repo.UpdateWorkCenterRates(ctx, id, got.Version, r, since.Add(2*time.Hour))
	require.NoError(t, err)
	got, _, err = repo.GetWorkCenter(ctx, id)
	require.NoError(t, err)
	assert.True(t, got.RatesChangedAt.Equal(since.Add(2*time.Hour)), "got %s", got.RatesChangedAt)
	assert.Equal(t, "700.00", got.LaborRate.String())

	// a writer clock behind the stored stamp still moves it forward
	r.Labor = money.MustNew("720")
	_, err = repo.UpdateWorkCenterRates(ctx, id, got.Version, r, since)
	require.NoError(t, err)
	after, _, err := repo.GetWorkCenter(ctx, id)
	require.NoError(t, err)
	assert.True(t, after.RatesChangedAt.After(got.RatesChangedAt))
}
