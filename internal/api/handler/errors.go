package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	mw "github.com/errormonitoring/backend/internal/api/middleware"
	"github.com/errormonitoring/backend/internal/api/response"
	"github.com/errormonitoring/backend/internal/ingest"
	"github.com/errormonitoring/backend/internal/rbac"
	"github.com/errormonitoring/backend/internal/store"
	"github.com/errormonitoring/backend/pkg/models"
)

// Auditor records mutating actions. Handlers call it after a successful write.
type Auditor interface {
	Record(ctx context.Context, userID *int64, action, entityType, entityID string, r *http.Request)
}

// Ingester accepts error reports from instrumented applications.
type Ingester interface {
	Ingest(ctx context.Context, r ingest.Report) (ingest.Outcome, error)
}

// ErrorStore is the slice of the persistence layer the error handlers need.
type ErrorStore interface {
	ListErrorLogs(ctx context.Context, filter store.ErrorLogFilter) ([]*models.ErrorLog, error)
	GetErrorLog(ctx context.Context, id int64) (*models.ErrorLog, error)
	MarkErrorResolved(ctx context.Context, id int64) error
	GetApplication(ctx context.Context, id int64) (*models.Application, error)
	ListApplications(ctx context.Context) ([]*models.Application, error)
}

// ErrorHandler serves the error ingestion and triage endpoints.
type ErrorHandler struct {
	ingester Ingester
	store    ErrorStore
	audit    Auditor
}

func NewErrorHandler(ing Ingester, s ErrorStore, a Auditor) *ErrorHandler {
	return &ErrorHandler{ingester: ing, store: s, audit: a}
}

// Ingest handles POST /api/v1/errors. The endpoint never rejects a report for
// a bad severity or an unknown application; only an empty message fails.
func (h *ErrorHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ApplicationID   *int64 `json:"application_id"`
		ApplicationName string `json:"application_name"`
		Message         string `json:"message"`
		StackTrace      string `json:"stack_trace"`
		Source          string `json:"source"`
		ErrorType       string `json:"error_type"`
		Endpoint        string `json:"endpoint"`
		Severity        string `json:"severity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
		return
	}

	report := ingest.Report{
		ApplicationID:   req.ApplicationID,
		ApplicationName: req.ApplicationName,
		Message:         req.Message,
		StackTrace:      req.StackTrace,
		Source:          req.Source,
		ErrorType:       req.ErrorType,
		Endpoint:        req.Endpoint,
		Severity:        req.Severity,
	}

	// A key-authenticated report is pinned to the signing application,
	// whatever the body claims.
	if app, ok := mw.ApplicationFrom(r.Context()); ok {
		report.ApplicationID = &app.ID
		report.ApplicationName = app.Name
	}

	outcome, err := h.ingester.Ingest(r.Context(), report)
	if err != nil {
		if errors.Is(err, ingest.ErrEmptyMessage) {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "message is required", nil)
			return
		}
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to record error", nil)
		return
	}

	if outcome.Suppressed {
		response.Accepted(w, map[string]any{"suppressed": true})
		return
	}

	response.Created(w, outcome.ErrorLog)
}

// List handles GET /api/v1/errors with optional severity, status, and limit
// filters. Results are trimmed to what the principal may see.
func (h *ErrorHandler) List(w http.ResponseWriter, r *http.Request) {
	p, ok := mw.PrincipalFrom(r.Context())
	if !ok {
		response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing principal", nil)
		return
	}

	filter := store.ErrorLogFilter{
		Severity: r.URL.Query().Get("severity"),
		Status:   r.URL.Query().Get("status"),
		Limit:    queryInt(r, "limit"),
	}

	logs, err := h.store.ListErrorLogs(r.Context(), filter)
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list errors", nil)
		return
	}

	apps, err := h.store.ListApplications(r.Context())
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list errors", nil)
		return
	}

	response.JSON(w, rbac.Visible(p, rbac.NewOwnerIndex(apps), logs))
}

// Resolve handles PUT /api/v1/errors/{id}/resolve. Resolving an already
// resolved error succeeds without touching its resolution timestamp.
func (h *ErrorHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	p, ok := mw.PrincipalFrom(r.Context())
	if !ok {
		response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing principal", nil)
		return
	}

	id, err := pathID(r)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "id must be an integer", nil)
		return
	}

	errLog, err := h.store.GetErrorLog(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			response.Error(w, http.StatusNotFound, "NOT_FOUND", "Error not found", nil)
			return
		}
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to resolve error", nil)
		return
	}

	if !p.IsAdmin() {
		if errLog.ApplicationID == nil || !h.ownsApplication(r.Context(), p, *errLog.ApplicationID) {
			response.Error(w, http.StatusForbidden, "FORBIDDEN", "Insufficient permissions", nil)
			return
		}
	}

	if err := h.store.MarkErrorResolved(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			response.Error(w, http.StatusNotFound, "NOT_FOUND", "Error not found", nil)
			return
		}
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to resolve error", nil)
		return
	}

	resolved, err := h.store.GetErrorLog(r.Context(), id)
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to resolve error", nil)
		return
	}

	h.audit.Record(r.Context(), &p.UserID, "error.resolve", "error_log", strconv.FormatInt(id, 10), r)
	response.JSON(w, resolved)
}

func (h *ErrorHandler) ownsApplication(ctx context.Context, p rbac.Principal, appID int64) bool {
	app, err := h.store.GetApplication(ctx, appID)
	if err != nil {
		return false
	}
	return app.CreatedBy == p.UserID
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func queryInt(r *http.Request, name string) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil {
		return 0
	}
	return v
}
