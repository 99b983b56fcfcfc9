package workcenters

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

// GetWorkCenter returns the work center even when tombstoned.
func (r *Repo) GetWorkCenter(ctx context.Context, id int64) (WorkCenter, bool, error) {
	var w WorkCenter
	var am, lab, tool, ovh decimal.Decimal
	err := r.pool.QueryRow(ctx, `
		SELECT id, code, name, amortization_rate, labor_rate, tooling_rate, overhead_rate,
		       rates_changed_at, deleted_at, version
		FROM work_centers
		WHERE id = $1
	`, id).Scan(&w.ID, &w.Code, &w.Name, &am, &lab, &tool, &ovh, &w.RatesChangedAt, &w.DeletedAt, &w.Version)
	if errors.Is(err, pgx.ErrNoRows) {
		return WorkCenter{}, false, nil
	}
	if err != nil {
		return WorkCenter{}, false, err
	}
	w.AmortizationRate = money.FromDecimal(am)
	w.LaborRate = money.FromDecimal(lab)
	w.ToolingRate = money.FromDecimal(tool)
	w.OverheadRate = money.FromDecimal(ovh)
	return w, true, nil
}

// UpdateWorkCenterRates writes new hourly rates read at expectedVersion. rates_changed_at
// moves only if a rate really changed, so a no-op save does not mark batches stale.
// When it moves it always moves forward.
func (r *Repo) UpdateWorkCenterRates(ctx context.Context, id, expectedVersion int64, rates Rates, at time.Time) (int64, error) {
	for name, v := range map[string]money.Amount{
		"amortization": rates.Amortization, "labor": rates.Labor, "tooling": rates.Tooling, "overhead": rates.Overhead,
	} {
		if v.IsNegative() {
			return 0, fmt.Errorf("work center %d: negative %s rate", id, name)
		}
	}
	err := optlock.Exec(ctx, r.pool, "work_center", "work_centers", id, expectedVersion, `
		UPDATE work_centers
		SET rates_changed_at = CASE
		        WHEN amortization_rate <> $3 OR labor_rate <> $4 OR tooling_rate <> $5 OR overhead_rate <> $6
		        THEN GREATEST($7, rates_changed_at + INTERVAL '1 microsecond') ELSE rates_changed_at END,
		    amortization_rate = $3, labor_rate = $4, tooling_rate = $5, overhead_rate = $6,
		    version = version + 1
		WHERE id = $1 AND version = $2 AND deleted_at IS NULL
	`, rates.Amortization.Decimal(), rates.Labor.Decimal(), rates.Tooling.Decimal(), rates.Overhead.Decimal(), at)
	if err != nil {
		return 0, err
	}
	return expectedVersion + 1, nil
}

// TombstoneWorkCenter hides the work center from new operations. Existing rows
// keep pointing at it; batches priced on it report stale.
func (r *Repo) TombstoneWorkCenter(ctx context.Context, id, expectedVersion int64, at time.Time) (int64, error) {
	err := optlock.Exec(ctx, r.pool, "work_center", "work_centers", id, expectedVersion, `
		UPDATE work_centers
		SET deleted_at = $3, version = version + 1
		WHERE id = $1 AND version = $2 AND deleted_at IS NULL
	`, at)
	if err != nil {
		return 0, err
	}
	return expectedVersion + 1, nil
}
