package store

import (
	"context"
	"errors"

	"github.com/errormonitoring/backend/pkg/models"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")

// Store is the data access interface. All database operations go through
// here; the persisted store is the single source of truth, and each write
// is one atomic row insert/update.
type Store interface {
	Ping(ctx context.Context) error

	GetUser(ctx context.Context, id int64) (*models.User, error)
	CreateUser(ctx context.Context, u *models.User) error

	GetApplication(ctx context.Context, id int64) (*models.Application, error)
	GetApplicationByName(ctx context.Context, name string) (*models.Application, error)
	GetApplicationsByAPIKeyPrefix(ctx context.Context, prefix string) ([]*models.Application, error)
	ListApplications(ctx context.Context) ([]*models.Application, error)
	ListApplicationsByOwner(ctx context.Context, ownerID int64) ([]*models.Application, error)
	CreateApplication(ctx context.Context, app *models.Application) error
	UpdateApplication(ctx context.Context, app *models.Application) error
	SetApplicationPaused(ctx context.Context, id int64, paused bool) error
	DeleteApplication(ctx context.Context, id int64) error

	CreateErrorLog(ctx context.Context, e *models.ErrorLog) error
	GetErrorLog(ctx context.Context, id int64) (*models.ErrorLog, error)
	ListErrorLogs(ctx context.Context, filter ErrorLogFilter) ([]*models.ErrorLog, error)
	// MarkErrorResolved flips an open error to Resolved. Resolving an
	// already-resolved error is a no-op success that keeps the original
	// resolved_at.
	MarkErrorResolved(ctx context.Context, id int64) error

	CreateAlert(ctx context.Context, a *models.Alert) error
	GetAlert(ctx context.Context, id int64) (*models.Alert, error)
	ListAlerts(ctx context.Context, filter AlertFilter) ([]*models.Alert, error)
	// MarkAlertResolved is a one-way transition. An already-resolved or
	// nonexistent alert returns ErrNotFound.
	MarkAlertResolved(ctx context.Context, id int64) error
	DeleteAlert(ctx context.Context, id int64) error

	CreateAuditLog(ctx context.Context, l *models.AuditLog) error
	ListAuditLogs(ctx context.Context, filter AuditLogFilter) ([]*models.AuditLog, error)
}

type ErrorLogFilter struct {
	Severity string
	Status   string
	Limit    int
}

type AlertFilter struct {
	UnresolvedOnly bool
	Limit          int
}

type AuditLogFilter struct {
	Action     string
	EntityType string
	UserID     *int64
	Limit      int
}
