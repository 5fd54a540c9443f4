// Package ingest accepts raw error reports, classifies them, and persists
// them as ErrorLogs. Every persisted error is handed to the escalation
// engine; what escalation does next can never fail the ingestion.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/errormonitoring/backend/pkg/models"
)

// ErrEmptyMessage is the one validation failure ingestion can produce.
// Severity never causes rejection; it always has a default.
var ErrEmptyMessage = errors.New("error message is required")

// Store is the slice of the persistence layer ingestion needs.
type Store interface {
	GetApplication(ctx context.Context, id int64) (*models.Application, error)
	GetApplicationByName(ctx context.Context, name string) (*models.Application, error)
	ListApplications(ctx context.Context) ([]*models.Application, error)
	CreateErrorLog(ctx context.Context, e *models.ErrorLog) error
}

// Escalator turns a persisted ErrorLog into an Alert.
type Escalator interface {
	Escalate(ctx context.Context, errLog *models.ErrorLog) (*models.Alert, error)
}

// Report is a raw error report from a monitored application.
type Report struct {
	ApplicationID   *int64
	ApplicationName string
	Message         string
	StackTrace      string
	Source          string
	ErrorType       string
	Endpoint        string
	Severity        string
}

// Outcome distinguishes a persisted error from a suppressed one. Suppression
// is a successful outcome, not an error.
type Outcome struct {
	Suppressed bool
	ErrorLog   *models.ErrorLog
}

// Service classifies and persists incoming error reports.
type Service struct {
	store     Store
	escalator Escalator
}

// NewService creates an ingestion Service.
func NewService(s Store, e Escalator) *Service {
	return &Service{store: s, escalator: e}
}

// Ingest normalizes severity, resolves the owning application, applies the
// pause gate, persists the ErrorLog, and unconditionally hands it to the
// escalation engine. Escalation failure is logged and swallowed: ingestion
// success is never contingent on escalation.
func (s *Service) Ingest(ctx context.Context, r Report) (Outcome, error) {
	if strings.TrimSpace(r.Message) == "" {
		return Outcome{}, ErrEmptyMessage
	}

	if r.ApplicationName != "" && s.isPaused(ctx, r.ApplicationName) {
		slog.Info("error report suppressed: application paused", "application", r.ApplicationName)
		return Outcome{Suppressed: true}, nil
	}

	errLog := &models.ErrorLog{
		ApplicationID: s.resolveApplication(ctx, r),
		Message:       r.Message,
		StackTrace:    r.StackTrace,
		Source:        r.Source,
		ErrorType:     r.ErrorType,
		Endpoint:      r.Endpoint,
		Severity:      models.ParseSeverity(r.Severity),
		Status:        models.ErrorStatusOpen,
		CreatedAt:     time.Now().UTC(),
	}

	if err := s.store.CreateErrorLog(ctx, errLog); err != nil {
		return Outcome{}, fmt.Errorf("persist error log: %w", err)
	}

	if _, err := s.escalator.Escalate(ctx, errLog); err != nil {
		slog.Error("escalation failed", "error_log_id", errLog.ID, "error", err)
	}

	return Outcome{ErrorLog: errLog}, nil
}

// resolveApplication prefers an explicit id, then an exact name match.
// Anything unresolvable leaves the error unattributed (nil).
func (s *Service) resolveApplication(ctx context.Context, r Report) *int64 {
	if r.ApplicationID != nil {
		if app, err := s.store.GetApplication(ctx, *r.ApplicationID); err == nil {
			return &app.ID
		}
		return nil
	}

	if r.ApplicationName == "" {
		return nil
	}
	app, err := s.store.GetApplicationByName(ctx, r.ApplicationName)
	if err != nil {
		return nil
	}
	return &app.ID
}

// isPaused checks the suppression gate. Exact name match first, then a
// case-insensitive substring match in both directions as a tolerance for
// near-miss naming at the reporting side. Lookup failure means not paused:
// the gate may only ever drop reports it can positively attribute.
func (s *Service) isPaused(ctx context.Context, name string) bool {
	if app, err := s.store.GetApplicationByName(ctx, name); err == nil {
		return app.IsPaused
	}

	apps, err := s.store.ListApplications(ctx)
	if err != nil {
		return false
	}
	lower := strings.ToLower(name)
	for _, app := range apps {
		appLower := strings.ToLower(app.Name)
		if strings.Contains(appLower, lower) || strings.Contains(lower, appLower) {
			return app.IsPaused
		}
	}
	return false
}
