package handler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	mw "github.com/errormonitoring/backend/internal/api/middleware"
	"github.com/errormonitoring/backend/internal/api/response"
	"github.com/errormonitoring/backend/internal/rbac"
	"github.com/errormonitoring/backend/internal/store"
	"github.com/errormonitoring/backend/pkg/models"
)

const apiKeyPrefixLen = 8

// ApplicationStore is the store slice the application handlers need.
type ApplicationStore interface {
	GetApplication(ctx context.Context, id int64) (*models.Application, error)
	ListApplications(ctx context.Context) ([]*models.Application, error)
	CreateApplication(ctx context.Context, app *models.Application) error
	UpdateApplication(ctx context.Context, app *models.Application) error
	SetApplicationPaused(ctx context.Context, id int64, paused bool) error
	DeleteApplication(ctx context.Context, id int64) error
}

// ApplicationHandler serves the application registry endpoints.
type ApplicationHandler struct {
	store ApplicationStore
	audit Auditor
}

func NewApplicationHandler(s ApplicationStore, a Auditor) *ApplicationHandler {
	return &ApplicationHandler{store: s, audit: a}
}

// List handles GET /api/v1/applications.
func (h *ApplicationHandler) List(w http.ResponseWriter, r *http.Request) {
	p, ok := mw.PrincipalFrom(r.Context())
	if !ok {
		response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing principal", nil)
		return
	}

	apps, err := h.store.ListApplications(r.Context())
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list applications", nil)
		return
	}

	response.JSON(w, rbac.Visible(p, rbac.NewOwnerIndex(apps), apps))
}

// Create handles POST /api/v1/applications. The raw ingestion key is returned
// exactly once; only its bcrypt hash and lookup prefix are stored.
func (h *ApplicationHandler) Create(w http.ResponseWriter, r *http.Request) {
	p, ok := mw.PrincipalFrom(r.Context())
	if !ok {
		response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing principal", nil)
		return
	}

	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Technology  string `json:"technology"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "name is required", nil)
		return
	}

	rawKey, hash, err := generateAPIKey()
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create application", nil)
		return
	}

	now := time.Now().UTC()
	app := &models.Application{
		Name:         strings.TrimSpace(req.Name),
		Description:  req.Description,
		Technology:   req.Technology,
		APIKeyHash:   hash,
		APIKeyPrefix: rawKey[:apiKeyPrefixLen],
		IsActive:     true,
		IsPaused:     false,
		CreatedBy:    p.UserID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := h.store.CreateApplication(r.Context(), app); err != nil {
		if errors.Is(err, store.ErrDuplicateKey) {
			response.Error(w, http.StatusConflict, "DUPLICATE_NAME", "An application with that name already exists", nil)
			return
		}
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create application", nil)
		return
	}

	h.audit.Record(r.Context(), &p.UserID, "application.create", "application", strconv.FormatInt(app.ID, 10), r)
	response.Created(w, map[string]any{
		"application": app,
		"api_key":     rawKey,
	})
}

// Update handles PUT /api/v1/applications/{id}.
func (h *ApplicationHandler) Update(w http.ResponseWriter, r *http.Request) {
	p, app, ok := h.authorized(w, r)
	if !ok {
		return
	}

	var req struct {
		Name        *string `json:"name"`
		Description *string `json:"description"`
		Technology  *string `json:"technology"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
		return
	}

	if req.Name != nil {
		if strings.TrimSpace(*req.Name) == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "name cannot be empty", nil)
			return
		}
		app.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		app.Description = *req.Description
	}
	if req.Technology != nil {
		app.Technology = *req.Technology
	}
	app.UpdatedAt = time.Now().UTC()

	if err := h.store.UpdateApplication(r.Context(), app); err != nil {
		if errors.Is(err, store.ErrDuplicateKey) {
			response.Error(w, http.StatusConflict, "DUPLICATE_NAME", "An application with that name already exists", nil)
			return
		}
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update application", nil)
		return
	}

	h.audit.Record(r.Context(), &p.UserID, "application.update", "application", strconv.FormatInt(app.ID, 10), r)
	response.JSON(w, app)
}

// Pause handles PUT /api/v1/applications/{id}/pause. Reports from a paused
// application are suppressed at ingestion.
func (h *ApplicationHandler) Pause(w http.ResponseWriter, r *http.Request) {
	h.setPaused(w, r, true, "application.pause")
}

// Resume handles PUT /api/v1/applications/{id}/resume.
func (h *ApplicationHandler) Resume(w http.ResponseWriter, r *http.Request) {
	h.setPaused(w, r, false, "application.resume")
}

func (h *ApplicationHandler) setPaused(w http.ResponseWriter, r *http.Request, paused bool, action string) {
	p, app, ok := h.authorized(w, r)
	if !ok {
		return
	}

	if err := h.store.SetApplicationPaused(r.Context(), app.ID, paused); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			response.Error(w, http.StatusNotFound, "NOT_FOUND", "Application not found", nil)
			return
		}
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update application", nil)
		return
	}

	app.IsPaused = paused
	h.audit.Record(r.Context(), &p.UserID, action, "application", strconv.FormatInt(app.ID, 10), r)
	response.JSON(w, app)
}

// Delete handles DELETE /api/v1/applications/{id}. Errors and alerts that
// reference the application survive with their application link cleared.
func (h *ApplicationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	p, app, ok := h.authorized(w, r)
	if !ok {
		return
	}

	if err := h.store.DeleteApplication(r.Context(), app.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			response.Error(w, http.StatusNotFound, "NOT_FOUND", "Application not found", nil)
			return
		}
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to delete application", nil)
		return
	}

	h.audit.Record(r.Context(), &p.UserID, "application.delete", "application", strconv.FormatInt(app.ID, 10), r)
	response.NoContent(w)
}

// authorized loads the target application and enforces owner-or-admin. On
// failure it writes the response and returns ok=false.
func (h *ApplicationHandler) authorized(w http.ResponseWriter, r *http.Request) (rbac.Principal, *models.Application, bool) {
	p, ok := mw.PrincipalFrom(r.Context())
	if !ok {
		response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing principal", nil)
		return rbac.Principal{}, nil, false
	}

	id, err := pathID(r)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "id must be an integer", nil)
		return rbac.Principal{}, nil, false
	}

	app, err := h.store.GetApplication(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			response.Error(w, http.StatusNotFound, "NOT_FOUND", "Application not found", nil)
			return rbac.Principal{}, nil, false
		}
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load application", nil)
		return rbac.Principal{}, nil, false
	}

	if !p.IsAdmin() && app.CreatedBy != p.UserID {
		response.Error(w, http.StatusForbidden, "FORBIDDEN", "Insufficient permissions", nil)
		return rbac.Principal{}, nil, false
	}

	return p, app, true
}

func generateAPIKey() (raw, hash string, err error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("generate api key: %w", err)
	}
	raw = "em_" + hex.EncodeToString(buf)

	h, err := bcrypt.GenerateFromPassword([]byte(raw), bcrypt.DefaultCost)
	if err != nil {
		return "", "", fmt.Errorf("hash api key: %w", err)
	}
	return raw, string(h), nil
}
