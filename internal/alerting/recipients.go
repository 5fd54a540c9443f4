package alerting

import (
	"context"
	"errors"
	"strings"

	"github.com/errormonitoring/backend/internal/store"
	"github.com/errormonitoring/backend/pkg/models"
)

// Resolution is the outcome of recipient resolution. It is constructed only
// through the Resolver, which guarantees at least one address: resolution
// never fails the surrounding operation, it falls back to the administrative
// address instead.
type Resolution struct {
	addresses []string
	fellBack  bool
}

// Addresses returns the ordered, deduplicated recipient list.
func (r Resolution) Addresses() []string {
	return r.addresses
}

// Recipients collapses the resolution to the comma-joined string frozen onto
// an Alert at creation time. Never empty.
func (r Resolution) Recipients() string {
	return strings.Join(r.addresses, ",")
}

// FellBack reports whether resolution gave up and used the administrative
// fallback address.
func (r Resolution) FellBack() bool {
	return r.fellBack
}

// SplitRecipients splits a frozen recipients string back into addresses,
// trimming whitespace and dropping empties.
func SplitRecipients(s string) []string {
	parts := strings.Split(s, ",")
	addrs := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			addrs = append(addrs, p)
		}
	}
	return addrs
}

// Resolver computes notification addresses by walking the ownership chain
// (application -> createdBy -> user).
type Resolver struct {
	store        Store
	adminAddress string
}

// NewResolver creates a Resolver. adminAddress is the single administrative
// fallback used whenever ownership cannot be resolved.
func NewResolver(s Store, adminAddress string) *Resolver {
	return &Resolver{store: s, adminAddress: adminAddress}
}

func (r *Resolver) fallback() Resolution {
	return Resolution{addresses: []string{r.adminAddress}, fellBack: true}
}

// ForError resolves recipients for an error-sourced alert: the owning
// application's owner alone, or the administrative fallback when the chain
// cannot be walked.
func (r *Resolver) ForError(ctx context.Context, applicationID *int64) Resolution {
	if applicationID == nil {
		return r.fallback()
	}

	app, err := r.store.GetApplication(ctx, *applicationID)
	if err != nil {
		return r.fallback()
	}

	owner, err := r.store.GetUser(ctx, app.CreatedBy)
	if err != nil || owner.Email == "" {
		return r.fallback()
	}

	return Resolution{addresses: []string{owner.Email}}
}

// ForUser resolves recipients for a user-sourced alert (a principal manually
// filing one). A DEVELOPER creator notifies only themselves. An ADMIN creator
// additionally notifies the target application's owner when that owner exists
// and differs from the creator, creator first.
func (r *Resolver) ForUser(ctx context.Context, creatorID int64, applicationID *int64) Resolution {
	creator, err := r.store.GetUser(ctx, creatorID)
	if err != nil || creator.Email == "" {
		return r.fallback()
	}

	if creator.Role != models.RoleAdmin || applicationID == nil {
		return Resolution{addresses: []string{creator.Email}}
	}

	app, err := r.store.GetApplication(ctx, *applicationID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Resolution{addresses: []string{creator.Email}}
		}
		return r.fallback()
	}

	if app.CreatedBy == creatorID {
		return Resolution{addresses: []string{creator.Email}}
	}

	owner, err := r.store.GetUser(ctx, app.CreatedBy)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Resolution{addresses: []string{creator.Email}}
		}
		return r.fallback()
	}
	if owner.Email == "" || owner.Email == creator.Email {
		return Resolution{addresses: []string{creator.Email}}
	}

	return Resolution{addresses: []string{creator.Email, owner.Email}}
}
