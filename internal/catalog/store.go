// Package catalog is the boundary to the pet/owner/service catalog, which
// is owned by another subsystem. The scheduling core only depends on the
// Store interface; the Postgres implementation reads the catalog's tables
// directly since both live in the same database today.
package catalog

import "context"

type Pet struct {
	ID         int64
	Name       string
	OwnerID    int64
	OwnerName  string
	OwnerPhone string
	OwnerEmail string
}

type Category struct {
	ID              int64
	Name            string
	RequiresSubtype bool
}

type Subtype struct {
	ID         int64
	CategoryID int64
	Name       string
}

type Store interface {
	Pet(ctx context.Context, id int64) (Pet, error)
	Category(ctx context.Context, id int64) (Category, error)
	Subtype(ctx context.Context, id int64) (Subtype, error)
}
