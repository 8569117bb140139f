package authz

import (
	"net/http/httptest"
	"testing"
)

func TestFromRequest(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("X-User-Id", "u-7")
	r.Header.Set("X-Role", "staff")

	a := FromRequest(r)
	if a.UserID != "u-7" || !a.IsStaff() {
		t.Fatalf("unexpected actor %+v", a)
	}

	r2 := httptest.NewRequest("GET", "/", nil)
	r2.Header.Set("X-User-Id", "u-8")
	r2.Header.Set("X-Role", "admin")
	r2.Header.Set("X-Owner-Id", "42")

	a2 := FromRequest(r2)
	if a2.IsStaff() {
		t.Fatal("unknown roles must fall back to owner")
	}
	if a2.OwnerID != 42 {
		t.Fatalf("expected owner id 42, got %d", a2.OwnerID)
	}
}

func TestOwnsPet(t *testing.T) {
	staff := Actor{UserID: "s", Role: RoleStaff}
	if !staff.OwnsPet(999) {
		t.Fatal("staff act on any pet")
	}

	owner := Actor{UserID: "o", Role: RoleOwner, OwnerID: 5}
	if !owner.OwnsPet(5) {
		t.Fatal("owner must own their own pet")
	}
	if owner.OwnsPet(6) {
		t.Fatal("owner must not own someone else's pet")
	}

	anon := Actor{Role: RoleOwner}
	if anon.OwnsPet(0) {
		t.Fatal("missing owner id never grants ownership")
	}
}
