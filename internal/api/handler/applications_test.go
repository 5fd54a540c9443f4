package handler_test

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/errormonitoring/backend/internal/api/handler"
	"github.com/errormonitoring/backend/internal/store"
	"github.com/errormonitoring/backend/pkg/models"
)

type mockAppStore struct {
	apps      map[int64]*models.Application
	nextID    int64
	createErr error
	updateErr error

	paused  map[int64]bool
	deleted []int64
}

func newMockAppStore() *mockAppStore {
	return &mockAppStore{
		apps: map[int64]*models.Application{
			10: {ID: 10, Name: "Billing", CreatedBy: 2, IsActive: true},
			11: {ID: 11, Name: "Gateway", CreatedBy: 1, IsActive: true},
		},
		nextID: 12,
		paused: map[int64]bool{},
	}
}

func (m *mockAppStore) GetApplication(_ context.Context, id int64) (*models.Application, error) {
	if app, ok := m.apps[id]; ok {
		return app, nil
	}
	return nil, store.ErrNotFound
}

func (m *mockAppStore) ListApplications(_ context.Context) ([]*models.Application, error) {
	apps := make([]*models.Application, 0, len(m.apps))
	for _, a := range m.apps {
		apps = append(apps, a)
	}
	return apps, nil
}

func (m *mockAppStore) CreateApplication(_ context.Context, app *models.Application) error {
	if m.createErr != nil {
		return m.createErr
	}
	app.ID = m.nextID
	m.nextID++
	m.apps[app.ID] = app
	return nil
}

func (m *mockAppStore) UpdateApplication(_ context.Context, app *models.Application) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	m.apps[app.ID] = app
	return nil
}

func (m *mockAppStore) SetApplicationPaused(_ context.Context, id int64, paused bool) error {
	if _, ok := m.apps[id]; !ok {
		return store.ErrNotFound
	}
	m.paused[id] = paused
	return nil
}

func (m *mockAppStore) DeleteApplication(_ context.Context, id int64) error {
	if _, ok := m.apps[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.apps, id)
	m.deleted = append(m.deleted, id)
	return nil
}

func TestListApplications_DeveloperScope(t *testing.T) {
	h := handler.NewApplicationHandler(newMockAppStore(), &mockAuditor{})

	w := serve("GET", "/applications", "/applications", h.List, &developer, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	data := dataBody(t, w).([]any)
	require.Len(t, data, 1)
	assert.Equal(t, "Billing", data[0].(map[string]any)["name"])
}

func TestCreateApplication_ReturnsRawKeyOnce(t *testing.T) {
	ms := newMockAppStore()
	aud := &mockAuditor{}
	h := handler.NewApplicationHandler(ms, aud)

	body := `{"name":"Checkout","description":"payment flow","technology":"go"}`
	w := serve("POST", "/applications", "/applications", h.Create, &developer, strings.NewReader(body))

	require.Equal(t, http.StatusCreated, w.Code)
	data := dataBody(t, w).(map[string]any)

	rawKey, ok := data["api_key"].(string)
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(rawKey, "em_"))

	appBody := data["application"].(map[string]any)
	assert.Equal(t, "Checkout", appBody["name"])
	assert.Equal(t, rawKey[:8], appBody["api_key_prefix"])
	// The hash never leaves the server
	_, leaked := appBody["api_key_hash"]
	assert.False(t, leaked)

	created := ms.apps[12]
	require.NotNil(t, created)
	assert.Equal(t, int64(2), created.CreatedBy)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(created.APIKeyHash), []byte(rawKey)))
	assert.Equal(t, []string{"application.create"}, aud.actions)
}

func TestCreateApplication_NameRequired(t *testing.T) {
	h := handler.NewApplicationHandler(newMockAppStore(), &mockAuditor{})

	w := serve("POST", "/applications", "/applications", h.Create, &developer, strings.NewReader(`{"name":"  "}`))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateApplication_DuplicateName(t *testing.T) {
	ms := newMockAppStore()
	ms.createErr = store.ErrDuplicateKey
	h := handler.NewApplicationHandler(ms, &mockAuditor{})

	w := serve("POST", "/applications", "/applications", h.Create, &admin, strings.NewReader(`{"name":"Billing"}`))

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "DUPLICATE_NAME", errBody(t, w)["code"])
}

func TestUpdateApplication_Owner(t *testing.T) {
	ms := newMockAppStore()
	h := handler.NewApplicationHandler(ms, &mockAuditor{})

	body := `{"description":"billing and invoicing"}`
	w := serve("PUT", "/applications/{id}", "/applications/10", h.Update, &developer, strings.NewReader(body))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "billing and invoicing", ms.apps[10].Description)
	assert.Equal(t, "Billing", ms.apps[10].Name)
}

func TestUpdateApplication_NonOwnerForbidden(t *testing.T) {
	h := handler.NewApplicationHandler(newMockAppStore(), &mockAuditor{})

	w := serve("PUT", "/applications/{id}", "/applications/11", h.Update, &developer, strings.NewReader(`{}`))

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestUpdateApplication_AdminOverridesOwnership(t *testing.T) {
	ms := newMockAppStore()
	h := handler.NewApplicationHandler(ms, &mockAuditor{})

	body := `{"name":"Billing v2"}`
	w := serve("PUT", "/applications/{id}", "/applications/10", h.Update, &admin, strings.NewReader(body))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Billing v2", ms.apps[10].Name)
}

func TestUpdateApplication_NotFound(t *testing.T) {
	h := handler.NewApplicationHandler(newMockAppStore(), &mockAuditor{})

	w := serve("PUT", "/applications/{id}", "/applications/999", h.Update, &admin, strings.NewReader(`{}`))

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPauseResumeApplication(t *testing.T) {
	ms := newMockAppStore()
	aud := &mockAuditor{}
	h := handler.NewApplicationHandler(ms, aud)

	w := serve("PUT", "/applications/{id}/pause", "/applications/10/pause", h.Pause, &developer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, ms.paused[10])
	assert.Equal(t, true, dataBody(t, w).(map[string]any)["is_paused"])

	w = serve("PUT", "/applications/{id}/resume", "/applications/10/resume", h.Resume, &developer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, ms.paused[10])

	assert.Equal(t, []string{"application.pause", "application.resume"}, aud.actions)
}

func TestDeleteApplication(t *testing.T) {
	ms := newMockAppStore()
	aud := &mockAuditor{}
	h := handler.NewApplicationHandler(ms, aud)

	w := serve("DELETE", "/applications/{id}", "/applications/10", h.Delete, &developer, nil)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, []int64{10}, ms.deleted)
	assert.Equal(t, []string{"application.delete"}, aud.actions)
}

func TestDeleteApplication_NonOwnerForbidden(t *testing.T) {
	ms := newMockAppStore()
	h := handler.NewApplicationHandler(ms, &mockAuditor{})

	w := serve("DELETE", "/applications/{id}", "/applications/11", h.Delete, &developer, nil)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, ms.deleted)
}
