package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/errormonitoring/backend/internal/alerting"
	mw "github.com/errormonitoring/backend/internal/api/middleware"
	"github.com/errormonitoring/backend/internal/api/response"
	"github.com/errormonitoring/backend/internal/rbac"
	"github.com/errormonitoring/backend/internal/store"
	"github.com/errormonitoring/backend/pkg/models"
)

// AlertEngine is the alert lifecycle surface the handlers call into.
type AlertEngine interface {
	CreateManual(ctx context.Context, p rbac.Principal, req alerting.ManualAlertRequest) (*models.Alert, error)
	Resolve(ctx context.Context, p rbac.Principal, id int64) (*models.Alert, error)
	Delete(ctx context.Context, p rbac.Principal, id int64) error
}

// AlertStore is the read-side store slice for alert listings.
type AlertStore interface {
	ListAlerts(ctx context.Context, filter store.AlertFilter) ([]*models.Alert, error)
	ListApplications(ctx context.Context) ([]*models.Application, error)
}

// AlertHandler serves the alert endpoints.
type AlertHandler struct {
	engine AlertEngine
	store  AlertStore
	audit  Auditor
}

func NewAlertHandler(e AlertEngine, s AlertStore, a Auditor) *AlertHandler {
	return &AlertHandler{engine: e, store: s, audit: a}
}

// List handles GET /api/v1/alerts.
func (h *AlertHandler) List(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, false)
}

// ListUnresolved handles GET /api/v1/alerts/unresolved.
func (h *AlertHandler) ListUnresolved(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, true)
}

func (h *AlertHandler) list(w http.ResponseWriter, r *http.Request, unresolvedOnly bool) {
	p, ok := mw.PrincipalFrom(r.Context())
	if !ok {
		response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing principal", nil)
		return
	}

	alerts, err := h.store.ListAlerts(r.Context(), store.AlertFilter{
		UnresolvedOnly: unresolvedOnly,
		Limit:          queryInt(r, "limit"),
	})
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list alerts", nil)
		return
	}

	apps, err := h.store.ListApplications(r.Context())
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list alerts", nil)
		return
	}

	response.JSON(w, rbac.Visible(p, rbac.NewOwnerIndex(apps), alerts))
}

// Create handles POST /api/v1/alerts, the manual alert path.
func (h *AlertHandler) Create(w http.ResponseWriter, r *http.Request) {
	p, ok := mw.PrincipalFrom(r.Context())
	if !ok {
		response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing principal", nil)
		return
	}

	var req struct {
		ApplicationID *int64 `json:"application_id"`
		ErrorLogID    *int64 `json:"error_log_id"`
		AlertLevel    string `json:"alert_level"`
		AlertMessage  string `json:"alert_message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
		return
	}

	if strings.TrimSpace(req.AlertMessage) == "" {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "alert_message is required", nil)
		return
	}

	alert, err := h.engine.CreateManual(r.Context(), p, alerting.ManualAlertRequest{
		ApplicationID: req.ApplicationID,
		ErrorLogID:    req.ErrorLogID,
		AlertLevel:    req.AlertLevel,
		AlertMessage:  req.AlertMessage,
	})
	if err != nil {
		switch {
		case errors.Is(err, alerting.ErrForbidden):
			response.Error(w, http.StatusForbidden, "FORBIDDEN", "Insufficient permissions", nil)
		case errors.Is(err, store.ErrNotFound):
			response.Error(w, http.StatusNotFound, "NOT_FOUND", "Application not found", nil)
		default:
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create alert", nil)
		}
		return
	}

	h.audit.Record(r.Context(), &p.UserID, "alert.create", "alert", strconv.FormatInt(alert.ID, 10), r)
	response.Created(w, alert)
}

// Resolve handles PUT /api/v1/alerts/{id}/resolve. Resolution is terminal; a
// second resolve of the same alert reports not found.
func (h *AlertHandler) Resolve(w http.ResponseWriter, r *http.Request) {
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

	alert, err := h.engine.Resolve(r.Context(), p, id)
	if err != nil {
		switch {
		case errors.Is(err, alerting.ErrForbidden):
			response.Error(w, http.StatusForbidden, "FORBIDDEN", "Insufficient permissions", nil)
		case errors.Is(err, store.ErrNotFound):
			response.Error(w, http.StatusNotFound, "NOT_FOUND", "Alert not found", nil)
		default:
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to resolve alert", nil)
		}
		return
	}

	h.audit.Record(r.Context(), &p.UserID, "alert.resolve", "alert", strconv.FormatInt(id, 10), r)
	response.JSON(w, alert)
}

// Delete handles DELETE /api/v1/alerts/{id}.
func (h *AlertHandler) Delete(w http.ResponseWriter, r *http.Request) {
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

	if err := h.engine.Delete(r.Context(), p, id); err != nil {
		switch {
		case errors.Is(err, alerting.ErrForbidden):
			response.Error(w, http.StatusForbidden, "FORBIDDEN", "Insufficient permissions", nil)
		case errors.Is(err, store.ErrNotFound):
			response.Error(w, http.StatusNotFound, "NOT_FOUND", "Alert not found", nil)
		default:
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to delete alert", nil)
		}
		return
	}

	h.audit.Record(r.Context(), &p.UserID, "alert.delete", "alert", strconv.FormatInt(id, 10), r)
	response.NoContent(w)
}
