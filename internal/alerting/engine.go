// Package alerting synthesizes alerts from persisted errors, resolves who to
// notify, and drives best-effort notification dispatch. Dispatch failures are
// logged and swallowed; they never roll back an alert or the error that
// produced it.
package alerting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/errormonitoring/backend/internal/config"
	"github.com/errormonitoring/backend/internal/notify"
	"github.com/errormonitoring/backend/internal/rbac"
	"github.com/errormonitoring/backend/internal/store"
	"github.com/errormonitoring/backend/pkg/models"
)

// ErrForbidden means the principal is authenticated but lacks ownership or
// role for the operation. Surfaced distinctly from not-found.
var ErrForbidden = errors.New("operation not permitted for this principal")

// Store is the slice of the persistence layer the engine needs.
type Store interface {
	GetApplication(ctx context.Context, id int64) (*models.Application, error)
	GetUser(ctx context.Context, id int64) (*models.User, error)
	CreateAlert(ctx context.Context, a *models.Alert) error
	GetAlert(ctx context.Context, id int64) (*models.Alert, error)
	MarkAlertResolved(ctx context.Context, id int64) error
	DeleteAlert(ctx context.Context, id int64) error
}

// Engine creates and resolves alerts.
type Engine struct {
	store           Store
	resolver        *Resolver
	mailer          notify.Mailer
	systemUserID    int64
	dispatchTimeout time.Duration
}

// NewEngine creates an Engine. cfg.SystemUserID is the fallback identity for
// alerts whose source error has no resolvable application owner.
func NewEngine(s Store, mailer notify.Mailer, cfg config.NotifyConfig) *Engine {
	return &Engine{
		store:           s,
		resolver:        NewResolver(s, cfg.AdminAddress),
		mailer:          mailer,
		systemUserID:    cfg.SystemUserID,
		dispatchTimeout: cfg.DispatchTimeout,
	}
}

// Escalate synthesizes an Alert from a persisted ErrorLog. Invoked for every
// non-suppressed error regardless of severity; Low escalates exactly like
// Critical. Recipients are resolved once and frozen onto the alert.
func (e *Engine) Escalate(ctx context.Context, errLog *models.ErrorLog) (*models.Alert, error) {
	createdBy := e.systemUserID
	applicationName := "Unknown Application"

	if errLog.ApplicationID != nil {
		if app, err := e.store.GetApplication(ctx, *errLog.ApplicationID); err == nil {
			createdBy = app.CreatedBy
			applicationName = app.Name
		}
	}

	res := e.resolver.ForError(ctx, errLog.ApplicationID)

	alert := &models.Alert{
		ApplicationID: errLog.ApplicationID,
		ErrorLogID:    &errLog.ID,
		AlertLevel:    errLog.Severity.AlertLevel(),
		AlertMessage:  errLog.Message,
		Recipients:    res.Recipients(),
		IsActive:      true,
		IsResolved:    false,
		CreatedBy:     createdBy,
		CreatedAt:     time.Now().UTC(),
	}

	if err := e.store.CreateAlert(ctx, alert); err != nil {
		return nil, fmt.Errorf("persist alert: %w", err)
	}

	go e.dispatch(res.Addresses(),
		notify.ErrorSubject(applicationName),
		notify.ErrorBody(applicationName, errLog.Message))

	return alert, nil
}

// ManualAlertRequest is a user-filed alert, independent of the ingestion path.
type ManualAlertRequest struct {
	ApplicationID *int64
	ErrorLogID    *int64
	AlertLevel    string
	AlertMessage  string
}

// CreateManual files an alert on behalf of an authenticated principal. A
// non-ADMIN principal may only create alerts for applications they own.
// Recipients use the user-sourced resolution variant and are frozen at
// creation.
func (e *Engine) CreateManual(ctx context.Context, p rbac.Principal, req ManualAlertRequest) (*models.Alert, error) {
	if !p.CanWrite() {
		return nil, ErrForbidden
	}

	if !p.IsAdmin() {
		if req.ApplicationID == nil {
			return nil, ErrForbidden
		}
		app, err := e.store.GetApplication(ctx, *req.ApplicationID)
		if err != nil {
			return nil, err
		}
		if app.CreatedBy != p.UserID {
			return nil, ErrForbidden
		}
	}

	res := e.resolver.ForUser(ctx, p.UserID, req.ApplicationID)
	level := models.ParseSeverity(req.AlertLevel).AlertLevel()

	alert := &models.Alert{
		ApplicationID: req.ApplicationID,
		ErrorLogID:    req.ErrorLogID,
		AlertLevel:    level,
		AlertMessage:  req.AlertMessage,
		Recipients:    res.Recipients(),
		IsActive:      true,
		IsResolved:    false,
		CreatedBy:     p.UserID,
		CreatedAt:     time.Now().UTC(),
	}

	if err := e.store.CreateAlert(ctx, alert); err != nil {
		return nil, fmt.Errorf("persist alert: %w", err)
	}

	go e.dispatch(res.Addresses(),
		notify.AlertCreatedSubject(level),
		notify.AlertCreatedBody(level, req.AlertMessage))

	return alert, nil
}

// Resolve transitions an open alert to resolved. The transition is terminal;
// an already-resolved or nonexistent alert is reported as not found. A
// non-ADMIN principal may only resolve alerts for applications they own.
func (e *Engine) Resolve(ctx context.Context, p rbac.Principal, id int64) (*models.Alert, error) {
	if !p.CanWrite() {
		return nil, ErrForbidden
	}

	alert, err := e.store.GetAlert(ctx, id)
	if err != nil {
		return nil, err
	}

	if !p.IsAdmin() {
		if alert.ApplicationID == nil {
			return nil, ErrForbidden
		}
		app, err := e.store.GetApplication(ctx, *alert.ApplicationID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, ErrForbidden
			}
			return nil, err
		}
		if app.CreatedBy != p.UserID {
			return nil, ErrForbidden
		}
	}

	if err := e.store.MarkAlertResolved(ctx, id); err != nil {
		return nil, err
	}

	resolved, err := e.store.GetAlert(ctx, id)
	if err != nil {
		return nil, err
	}

	resolvedAt := time.Now().UTC()
	if resolved.ResolvedAt != nil {
		resolvedAt = *resolved.ResolvedAt
	}
	go e.dispatch(SplitRecipients(resolved.Recipients),
		notify.AlertResolvedSubject(resolved.AlertLevel),
		notify.AlertResolvedBody(resolved.AlertLevel, resolved.AlertMessage, resolvedAt))

	return resolved, nil
}

// Delete removes an alert entirely. No notification is sent; deletion is for
// alerts filed in error, not for resolving real incidents. A non-ADMIN
// principal may only delete alerts for applications they own.
func (e *Engine) Delete(ctx context.Context, p rbac.Principal, id int64) error {
	if !p.CanWrite() {
		return ErrForbidden
	}

	alert, err := e.store.GetAlert(ctx, id)
	if err != nil {
		return err
	}

	if !p.IsAdmin() {
		if alert.ApplicationID == nil {
			return ErrForbidden
		}
		app, err := e.store.GetApplication(ctx, *alert.ApplicationID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrForbidden
			}
			return err
		}
		if app.CreatedBy != p.UserID {
			return ErrForbidden
		}
	}

	return e.store.DeleteAlert(ctx, id)
}

// dispatch sends one message per address, detached from the request that
// triggered it. Failures are logged and swallowed.
func (e *Engine) dispatch(addresses []string, subject, body string) {
	ctx, cancel := context.WithTimeout(context.Background(), e.dispatchTimeout)
	defer cancel()

	for _, to := range addresses {
		if err := e.mailer.Send(ctx, to, subject, body); err != nil {
			slog.Error("notification dispatch failed", "to", to, "subject", subject, "error", err)
		}
	}
}
