// Package storage is the Postgres persistence layer for appointments,
// groups, and drafts. Methods that take a pgx.Tx compose into the caller's
// transaction; the rest run on the pool directly.
package storage

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/whiskerwell/scheduling/libs/db"
)

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

// IsSlotTaken reports whether err is the database slot guard firing: the
// partial unique index on slot-holder timestamps (23505) or an exclusion
// constraint (23P01). This is the last line of defense behind the in-tx
// admission check.
func IsSlotTaken(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "23505" || pgErr.Code == "23P01"
}

func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
