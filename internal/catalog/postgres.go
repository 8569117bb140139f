package catalog

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/whiskerwell/scheduling/internal/schederr"
	"github.com/whiskerwell/scheduling/libs/db"
)

type PostgresStore struct {
	pool *db.Pool
}

func NewPostgresStore(pool *db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Pet(ctx context.Context, id int64) (Pet, error) {
	var p Pet
	err := s.pool.QueryRow(ctx, `
		SELECT p.id, p.name, o.id, o.name, COALESCE(o.phone, ''), COALESCE(o.email, '')
		FROM pets p
		JOIN owners o ON o.id = p.owner_id
		WHERE p.id = $1
	`, id).Scan(&p.ID, &p.Name, &p.OwnerID, &p.OwnerName, &p.OwnerPhone, &p.OwnerEmail)
	if errors.Is(err, pgx.ErrNoRows) {
		return Pet{}, schederr.NotFound("pet", id)
	}
	if err != nil {
		return Pet{}, err
	}
	return p, nil
}

func (s *PostgresStore) Category(ctx context.Context, id int64) (Category, error) {
	var c Category
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, requires_subtype
		FROM service_categories
		WHERE id = $1
	`, id).Scan(&c.ID, &c.Name, &c.RequiresSubtype)
	if errors.Is(err, pgx.ErrNoRows) {
		return Category{}, schederr.NotFound("service category", id)
	}
	if err != nil {
		return Category{}, err
	}
	return c, nil
}

func (s *PostgresStore) Subtype(ctx context.Context, id int64) (Subtype, error) {
	var st Subtype
	err := s.pool.QueryRow(ctx, `
		SELECT id, category_id, name
		FROM service_subtypes
		WHERE id = $1
	`, id).Scan(&st.ID, &st.CategoryID, &st.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return Subtype{}, schederr.NotFound("service subtype", id)
	}
	if err != nil {
		return Subtype{}, err
	}
	return st, nil
}
