// Package authz holds the single decision policy shared by every workflow.
package authz

import (
	"context"

	"github.com/jensholdgaard/clubhub/internal/store"
)

// Actor is an authenticated caller with its resolved role.
type Actor struct {
	UserID string
	Role   store.Role
	// ProfileID is the ID of the active profile matching Role, or "" when
	// the user has none.
	ProfileID string
}

// IsAdmin reports whether the actor holds the admin role.
func (a Actor) IsAdmin() bool { return a.Role == store.RoleAdmin }

// Party is a role-qualified profile entitled to decide on an entity.
type Party struct {
	Role      store.Role
	ProfileID string
}

// Decidable is implemented by anything that names the parties allowed to
// move it out of pending.
type Decidable interface {
	Deciders() []Party
}

// Parties adapts a fixed list of parties to Decidable.
type Parties []Party

func (p Parties) Deciders() []Party { return p }

// CanDecide reports whether a may decide on d. Admins may always decide;
// anyone else must be one of d's deciders.
func CanDecide(a Actor, d Decidable) bool {
	if a.IsAdmin() {
		return true
	}
	if a.ProfileID == "" {
		return false
	}
	for _, p := range d.Deciders() {
		if p.Role == a.Role && p.ProfileID == a.ProfileID {
			return true
		}
	}
	return false
}

// SportAssignments answers whether a manager is assigned to a sport.
type SportAssignments interface {
	IsAssigned(ctx context.Context, managerID, sportID string) (bool, error)
}

// OrganizesSport reports whether a may organize competition in sportID:
// admins always may, managers only in the sports they are assigned to.
func OrganizesSport(ctx context.Context, assigned SportAssignments, a Actor, sportID string) (bool, error) {
	if a.IsAdmin() {
		return true, nil
	}
	if a.Role != store.RoleManager || a.ProfileID == "" {
		return false, nil
	}
	return assigned.IsAssigned(ctx, a.ProfileID, sportID)
}
