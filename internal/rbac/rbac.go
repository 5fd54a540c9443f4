// Package rbac filters entity sets by the requesting principal's role and
// ownership. The filter is a pure function over a per-request snapshot of the
// application ownership chain; it holds no state and caches nothing.
package rbac

import (
	"github.com/errormonitoring/backend/pkg/models"
)

// Principal identifies the authenticated caller. Unauthenticated requests are
// rejected at the boundary and never reach the filter.
type Principal struct {
	UserID int64
	Role   models.Role
}

// IsAdmin reports whether the principal has the widest role.
func (p Principal) IsAdmin() bool {
	return p.Role == models.RoleAdmin
}

// CanWrite reports whether the principal may hit mutating endpoints at all.
// VIEWER is read-only; the write endpoints enforce this, not the filter.
func (p Principal) CanWrite() bool {
	return p.Role == models.RoleAdmin || p.Role == models.RoleDeveloper
}

// Scoped is any entity that can name its owning application. Entities with no
// resolvable application belong to no one and are visible only to ADMIN and
// VIEWER.
type Scoped interface {
	OwningApplication() (int64, bool)
}

// OwnerIndex maps application id to the owning user id. It is built from a
// store snapshot once per request so visibility decisions never traverse live
// object graphs.
type OwnerIndex map[int64]int64

// NewOwnerIndex builds an OwnerIndex from an application snapshot.
func NewOwnerIndex(apps []*models.Application) OwnerIndex {
	idx := make(OwnerIndex, len(apps))
	for _, a := range apps {
		idx[a.ID] = a.CreatedBy
	}
	return idx
}

// Visible returns the subset of items the principal may see.
//
// ADMIN and VIEWER get the full set. DEVELOPER gets only items whose owning
// application was created by them; items with a nil or unresolvable
// application id are excluded. Any unknown role is treated as VIEWER, the
// most restrictive read default.
func Visible[T Scoped](p Principal, owners OwnerIndex, items []T) []T {
	switch models.ParseRole(string(p.Role)) {
	case models.RoleAdmin, models.RoleViewer:
		return items
	}

	visible := make([]T, 0, len(items))
	for _, item := range items {
		appID, ok := item.OwningApplication()
		if !ok {
			continue
		}
		owner, ok := owners[appID]
		if !ok {
			continue
		}
		if owner == p.UserID {
			visible = append(visible, item)
		}
	}
	return visible
}

// Owns reports whether the principal owns the given application. ADMIN owns
// everything for authorization purposes.
func (p Principal) Owns(owners OwnerIndex, appID int64) bool {
	if p.IsAdmin() {
		return true
	}
	owner, ok := owners[appID]
	return ok && owner == p.UserID
}
