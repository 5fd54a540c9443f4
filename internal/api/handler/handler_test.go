package handler_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	mw "github.com/errormonitoring/backend/internal/api/middleware"
	"github.com/errormonitoring/backend/internal/rbac"
	"github.com/errormonitoring/backend/pkg/models"
)

var (
	admin     = rbac.Principal{UserID: 1, Role: models.RoleAdmin}
	developer = rbac.Principal{UserID: 2, Role: models.RoleDeveloper}
	viewer    = rbac.Principal{UserID: 3, Role: models.RoleViewer}
)

// mockAuditor records the actions it was asked to persist.
type mockAuditor struct {
	actions []string
}

func (m *mockAuditor) Record(_ context.Context, _ *int64, action, _, _ string, _ *http.Request) {
	m.actions = append(m.actions, action)
}

// serve routes one request through a fresh chi router so URL params resolve.
func serve(method, pattern, path string, h http.HandlerFunc, p *rbac.Principal, body io.Reader) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.MethodFunc(method, pattern, h)

	req := httptest.NewRequest(method, path, body)
	if p != nil {
		req = req.WithContext(mw.WithPrincipal(req.Context(), *p))
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func dataBody(t *testing.T, w *httptest.ResponseRecorder) any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body["data"]
}

func errBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body["error"].(map[string]any)
}
