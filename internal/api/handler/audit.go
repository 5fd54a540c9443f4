package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/errormonitoring/backend/internal/api/response"
	"github.com/errormonitoring/backend/internal/store"
	"github.com/errormonitoring/backend/pkg/models"
)

// AuditStore is the read-side store slice for the audit trail.
type AuditStore interface {
	ListAuditLogs(ctx context.Context, filter store.AuditLogFilter) ([]*models.AuditLog, error)
}

// AuditHandler serves GET /api/v1/audit. The route is admin-gated by
// middleware, so the handler only deals with filtering.
type AuditHandler struct {
	store AuditStore
}

func NewAuditHandler(s AuditStore) *AuditHandler {
	return &AuditHandler{store: s}
}

func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := store.AuditLogFilter{
		Action:     r.URL.Query().Get("action"),
		EntityType: r.URL.Query().Get("entity_type"),
		Limit:      queryInt(r, "limit"),
	}
	if raw := r.URL.Query().Get("user_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "user_id must be an integer", nil)
			return
		}
		filter.UserID = &id
	}

	logs, err := h.store.ListAuditLogs(r.Context(), filter)
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list audit entries", nil)
		return
	}

	response.JSON(w, logs)
}
