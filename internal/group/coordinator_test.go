package group

import (
	"context"
	"testing"

	"github.com/whiskerwell/scheduling/internal/authz"
	"github.com/whiskerwell/scheduling/internal/catalog"
	"github.com/whiskerwell/scheduling/internal/schederr"
)

type stubCatalog struct {
	pets map[int64]catalog.Pet
}

func (s stubCatalog) Pet(_ context.Context, id int64) (catalog.Pet, error) {
	p, ok := s.pets[id]
	if !ok {
		return catalog.Pet{}, schederr.NotFound("pet", id)
	}
	return p, nil
}

func (s stubCatalog) Category(_ context.Context, id int64) (catalog.Category, error) {
	return catalog.Category{}, schederr.NotFound("category", id)
}

func (s stubCatalog) Subtype(_ context.Context, id int64) (catalog.Subtype, error) {
	return catalog.Subtype{}, schederr.NotFound("subtype", id)
}

func TestEnsureOwnsPets(t *testing.T) {
	c := &Coordinator{catalog: stubCatalog{pets: map[int64]catalog.Pet{
		7: {ID: 7, OwnerID: 42},
		8: {ID: 8, OwnerID: 43},
	}}}
	ctx := context.Background()
	staff := authz.Actor{UserID: "s-1", Role: authz.RoleStaff}
	owner := authz.Actor{UserID: "u-42", Role: authz.RoleOwner, OwnerID: 42}

	if err := c.ensureOwnsPets(ctx, staff, []int64{7, 8}); err != nil {
		t.Fatalf("staff blocked: %v", err)
	}
	if err := c.ensureOwnsPets(ctx, owner, []int64{7, 7}); err != nil {
		t.Fatalf("owner blocked on own pet: %v", err)
	}
	if err := c.ensureOwnsPets(ctx, owner, []int64{7, 8}); !schederr.IsAuthorization(err) {
		t.Fatalf("got %v, want authorization error for a foreign pet", err)
	}
	if err := c.ensureOwnsPets(ctx, owner, []int64{99}); !schederr.IsNotFound(err) {
		t.Fatalf("got %v, want not-found for an unknown pet", err)
	}
}
