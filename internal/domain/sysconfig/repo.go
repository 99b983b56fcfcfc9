package sysconfig

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/kg46sp8kps-web/gestima-sub002/internal/optlock"
)

// configID is the single row of system_config.
const configID = 1

type Repo struct{ pool *pgxpool.Pool }

func NewRepo(pool *pgxpool.Pool) *Repo { return &Repo{pool: pool} }

func (r *Repo) GetSystemConfig(ctx context.Context) (Config, error) {
	var c Config
	err := r.pool.QueryRow(ctx, `
		SELECT overhead, margin, stock_markup, cooperation_markup, default_density,
		       version, updated_at, updated_by
		FROM system_config
		WHERE id = $1
	`, configID).Scan(&c.Coefficients.Overhead, &c.Coefficients.Margin, &c.Coefficients.StockMarkup,
		&c.Coefficients.CooperationMarkup, &c.DefaultDensity, &c.Version, &c.UpdatedAt, &c.UpdatedBy)
	if errors.Is(err, pgx.ErrNoRows) {
		return Config{}, fmt.Errorf("system config: %w", optlock.ErrNotFound)
	}
	return c, err
}

// SetDefaultDensity writes the configured fallback density. The version is
// left alone: density is deployment configuration, not an edited setting.
func (r *Repo) SetDefaultDensity(ctx context.Context, d decimal.Decimal) error {
	_, err := r.pool.Exec(ctx, `UPDATE system_config SET default_density = $2 WHERE id = $1`, configID, d)
	return err
}

// UpdateSystemConfig replaces the coefficients read at expectedVersion and appends a
// history row in the same transaction.
func (r *Repo) UpdateSystemConfig(ctx context.Context, expectedVersion int64, coef Coefficients, by string, at time.Time) (int64, error) {
	if err := coef.Validate(); err != nil {
		return 0, err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := optlock.Exec(ctx, tx, "system_config", "system_config", configID, expectedVersion, `
		UPDATE system_config
		SET overhead = $3, margin = $4, stock_markup = $5, cooperation_markup = $6,
		    updated_by = $7, updated_at = $8, version = version + 1
		WHERE id = $1 AND version = $2
	`, coef.Overhead, coef.Margin, coef.StockMarkup, coef.CooperationMarkup, by, at); err != nil {
		return 0, err
	}

	next := expectedVersion + 1
	if _, err := tx.Exec(ctx, `
		INSERT INTO system_config_history
		(version, overhead, margin, stock_markup, cooperation_markup, changed_by, changed_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, next, coef.Overhead, coef.Margin, coef.StockMarkup, coef.CooperationMarkup, by, at); err != nil {
		return 0, fmt.Errorf("insert config history: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return next, nil
}

// SystemConfigHistory returns the newest changes first.
func (r *Repo) SystemConfigHistory(ctx context.Context, limit int) ([]HistoryEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, version, overhead, margin, stock_markup, cooperation_markup, changed_by, changed_at
		FROM system_config_history
		ORDER BY version DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []HistoryEntry
	for rows.Next() {
		var h HistoryEntry
		if err := rows.Scan(&h.ID, &h.Version, &h.Coefficients.Overhead, &h.Coefficients.Margin,
			&h.Coefficients.StockMarkup, &h.Coefficients.CooperationMarkup, &h.ChangedBy, &h.ChangedAt); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}
