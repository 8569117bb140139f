// Package authz carries the acting identity explicitly through every
// operation instead of reading it from ambient session state.
package authz

import (
	"net/http"
	"strconv"
)

type Role string

const (
	RoleStaff Role = "staff"
	RoleOwner Role = "owner"
)

// Actor is who is performing an operation. The gateway authenticates the
// caller and asserts identity via headers; this service only interprets
// them. OwnerID is set for pet-owner callers and grounds ownership checks.
type Actor struct {
	UserID  string
	Role    Role
	OwnerID int64
}

func (a Actor) IsStaff() bool {
	return a.Role == RoleStaff
}

// OwnsPet reports whether the actor may act on a pet owned by ownerID.
// Staff may act on any pet.
func (a Actor) OwnsPet(ownerID int64) bool {
	if a.IsStaff() {
		return true
	}
	return a.OwnerID != 0 && a.OwnerID == ownerID
}

func FromRequest(r *http.Request) Actor {
	role := Role(r.Header.Get("X-Role"))
	if role != RoleStaff {
		role = RoleOwner
	}
	ownerID, _ := strconv.ParseInt(r.Header.Get("X-Owner-Id"), 10, 64)
	return Actor{
		UserID:  r.Header.Get("X-User-Id"),
		Role:    role,
		OwnerID: ownerID,
	}
}
