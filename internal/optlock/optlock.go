// Package optlock implements version-counter concurrency control for every
// mutable pricing input. A write carries the version the caller last read; the
// comparison and the bump happen in the same statement, and a mismatch leaves
// the stored row untouched.
package optlock

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrConcurrentModification = errors.New("concurrent modification")
	ErrNotFound               = errors.New("record not found")
)

// ConflictError names the entity whose stored version no longer matches.
type ConflictError struct {
	Entity   string
	ID       int64
	Expected int64
	Actual   int64
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s %d: expected version %d, stored version %d", e.Entity, e.ID, e.Expected, e.Actual)
}

func (e *ConflictError) Unwrap() error { return ErrConcurrentModification }

// Querier is the subset of pgxpool.Pool and pgx.Tx used by Exec.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Exec runs a version-guarded UPDATE. The statement must use $1 for the id and
// $2 for the expected version and must bump version by one, e.g.
//
//	UPDATE operations SET ..., version = version + 1 WHERE id = $1 AND version = $2
//
// When no row matched, the current version is read from table to tell a missing
// row from a stale one. A row still at the expected version was excluded by
// another condition of the statement (a tombstone, usually) and is reported as
// not found: retrying cannot succeed.
func Exec(ctx context.Context, q Querier, entity, table string, id, expected int64, sql string, args ...any) error {
	all := append([]any{id, expected}, args...)
	tag, err := q.Exec(ctx, sql, all...)
	if err != nil {
		return fmt.Errorf("update %s %d: %w", entity, id, err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var actual int64
	err = q.QueryRow(ctx, `SELECT version FROM `+table+` WHERE id = $1`, id).Scan(&actual)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s %d: %w", entity, id, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("read %s %d version: %w", entity, id, err)
	}
	if actual == expected {
		return fmt.Errorf("%s %d: %w", entity, id, ErrNotFound)
	}
	return &ConflictError{Entity: entity, ID: id, Expected: expected, Actual: actual}
}

// Guard gives in-memory stores the same compare-and-bump contract as Exec.
type Guard struct {
	mu       sync.Mutex
	versions map[key]int64
}

type key struct {
	entity string
	id     int64
}

func NewGuard() *Guard {
	return &Guard{versions: make(map[key]int64)}
}

// Track registers an entity at its initial version.
func (g *Guard) Track(entity string, id, version int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.versions[key{entity, id}] = version
}

// Forget drops an entity, after which updates report ErrNotFound.
func (g *Guard) Forget(entity string, id int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.versions, key{entity, id})
}

func (g *Guard) Version(entity string, id int64) (int64, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	v, ok := g.versions[key{entity, id}]
	return v, ok
}

// Update checks expected against the stored version and, on a match, runs apply
// and bumps the version, all under one lock. apply receives the new version.
// If apply fails the version is left as it was.
func (g *Guard) Update(entity string, id, expected int64, apply func(newVersion int64) error) (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	k := key{entity, id}
	actual, ok := g.versions[k]
	if !ok {
		return 0, fmt.Errorf("%s %d: %w", entity, id, ErrNotFound)
	}
	if actual != expected {
		return 0, &ConflictError{Entity: entity, ID: id, Expected: expected, Actual: actual}
	}
	next := actual + 1
	if apply != nil {
		if err := apply(next); err != nil {
			return 0, err
		}
	}
	g.versions[k] = next
	return next, nil
}

// Expect is one entity at the version a caller read.
type Expect struct {
	Entity  string
	ID      int64
	Version int64
}

// UpdateMany is Update for several entities at once: every version is checked
// before apply runs, and either all are bumped or none.
func (g *Guard) UpdateMany(expects []Expect, apply func() error) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, e := range expects {
		actual, ok := g.versions[key{e.Entity, e.ID}]
		if !ok {
			return fmt.Errorf("%s %d: %w", e.Entity, e.ID, ErrNotFound)
		}
		if actual != e.Version {
			return &ConflictError{Entity: e.Entity, ID: e.ID, Expected: e.Version, Actual: actual}
		}
	}
	if apply != nil {
		if err := apply(); err != nil {
			return err
		}
	}
	for _, e := range expects {
		g.versions[key{e.Entity, e.ID}] = e.Version + 1
	}
	return nil
}
