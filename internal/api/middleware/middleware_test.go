package middleware_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	mw "github.com/errormonitoring/backend/internal/api/middleware"
	"github.com/errormonitoring/backend/internal/rbac"
	"github.com/errormonitoring/backend/pkg/models"
)

const testSecret = "middleware-test-secret"

// --- Mock Store ---

type mockStore struct {
	apps []*models.Application
	err  error
}

func (m *mockStore) GetApplicationsByAPIKeyPrefix(_ context.Context, _ string) ([]*models.Application, error) {
	return m.apps, m.err
}

// --- Mock Cache ---

type mockCache struct {
	counter int64
	err     error
}

func (m *mockCache) Set(_ context.Context, _ string, _ []byte, _ time.Duration) error { return nil }
func (m *mockCache) Get(_ context.Context, _ string) ([]byte, bool, error)            { return nil, false, nil }
func (m *mockCache) Delete(_ context.Context, _ string) error                         { return nil }
func (m *mockCache) Ping(_ context.Context) error                                     { return nil }
func (m *mockCache) IncrWithExpiry(_ context.Context, _ string, _ time.Duration) (int64, error) {
	m.counter++
	return m.counter, m.err
}

// --- helpers ---

func okHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}
}

func signToken(t *testing.T, secret string, userID int64, role string) string {
	t.Helper()
	claims := jwt.MapClaims{
		"uid":  userID,
		"role": role,
		"exp":  time.Now().Add(time.Hour).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func hashKey(t *testing.T, rawKey string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(rawKey), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

func errBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body["error"].(map[string]any)
}

func asPrincipal(p rbac.Principal, r *http.Request) *http.Request {
	return r.WithContext(mw.WithPrincipal(r.Context(), p))
}

// ========================================
// Auth Middleware Tests
// ========================================

func TestAuth_MissingAuthHeader(t *testing.T) {
	auth := mw.NewAuth(&mockStore{}, testSecret, false)
	handler := auth.Authenticate(okHandler())

	req := httptest.NewRequest("GET", "/test", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "INVALID_TOKEN", errBody(t, w)["code"])
}

func TestAuth_InvalidBearerFormat(t *testing.T) {
	auth := mw.NewAuth(&mockStore{}, testSecret, false)
	handler := auth.Authenticate(okHandler())

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("Authorization", "Basic abc123")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuth_WrongSigningKey(t *testing.T) {
	auth := mw.NewAuth(&mockStore{}, testSecret, false)
	handler := auth.Authenticate(okHandler())

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "other-secret", 1, "ADMIN"))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "INVALID_TOKEN", errBody(t, w)["code"])
}

func TestAuth_ExpiredToken(t *testing.T) {
	claims := jwt.MapClaims{
		"uid":  int64(1),
		"role": "ADMIN",
		"exp":  time.Now().Add(-time.Hour).Unix(),
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	auth := mw.NewAuth(&mockStore{}, testSecret, false)
	handler := auth.Authenticate(okHandler())

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("Authorization", "Bearer "+raw)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuth_ValidToken(t *testing.T) {
	auth := mw.NewAuth(&mockStore{}, testSecret, false)

	var got rbac.Principal
	var gotOK bool
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, gotOK = mw.PrincipalFrom(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	handler := auth.Authenticate(inner)

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, 42, "DEVELOPER"))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, gotOK)
	assert.Equal(t, int64(42), got.UserID)
	assert.Equal(t, models.RoleDeveloper, got.Role)
}

func TestAuth_UnknownRoleBecomesViewer(t *testing.T) {
	auth := mw.NewAuth(&mockStore{}, testSecret, false)

	var got rbac.Principal
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = mw.PrincipalFrom(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	handler := auth.Authenticate(inner)

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, 7, "SUPERUSER"))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, models.RoleViewer, got.Role)
}

func TestAuth_RequireWriter(t *testing.T) {
	auth := mw.NewAuth(&mockStore{}, testSecret, false)
	handler := auth.RequireWriter(okHandler())

	tests := []struct {
		role models.Role
		want int
	}{
		{models.RoleAdmin, http.StatusOK},
		{models.RoleDeveloper, http.StatusOK},
		{models.RoleViewer, http.StatusForbidden},
	}
	for _, tt := range tests {
		req := asPrincipal(rbac.Principal{UserID: 1, Role: tt.role}, httptest.NewRequest("PUT", "/test", nil))
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		assert.Equal(t, tt.want, w.Code, "role %s", tt.role)
	}
}

func TestAuth_RequireAdmin(t *testing.T) {
	auth := mw.NewAuth(&mockStore{}, testSecret, false)
	handler := auth.RequireAdmin(okHandler())

	req := asPrincipal(rbac.Principal{UserID: 1, Role: models.RoleDeveloper}, httptest.NewRequest("GET", "/test", nil))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "FORBIDDEN", errBody(t, w)["code"])

	req = asPrincipal(rbac.Principal{UserID: 1, Role: models.RoleAdmin}, httptest.NewRequest("GET", "/test", nil))
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

// ========================================
// Ingest Auth Tests
// ========================================

func TestIngestAuth_NoKeyOptionalMode(t *testing.T) {
	auth := mw.NewAuth(&mockStore{}, testSecret, false)

	var gotApp bool
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, gotApp = mw.ApplicationFrom(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	handler := auth.AuthenticateIngest(inner)

	req := httptest.NewRequest("POST", "/errors", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.False(t, gotApp)
}

func TestIngestAuth_NoKeyRequiredMode(t *testing.T) {
	auth := mw.NewAuth(&mockStore{}, testSecret, true)
	handler := auth.AuthenticateIngest(okHandler())

	req := httptest.NewRequest("POST", "/errors", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestIngestAuth_ValidKey(t *testing.T) {
	rawKey := "em_test1234567890abcdef"
	ms := &mockStore{apps: []*models.Application{{
		ID:           10,
		Name:         "Billing",
		APIKeyHash:   hashKey(t, rawKey),
		APIKeyPrefix: rawKey[:8],
		IsActive:     true,
	}}}
	auth := mw.NewAuth(ms, testSecret, true)

	var gotApp *models.Application
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotApp, _ = mw.ApplicationFrom(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	handler := auth.AuthenticateIngest(inner)

	req := httptest.NewRequest("POST", "/errors", nil)
	req.Header.Set("X-Api-Key", rawKey)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, gotApp)
	assert.Equal(t, int64(10), gotApp.ID)
}

func TestIngestAuth_WrongKey(t *testing.T) {
	rawKey := "em_test1234567890abcdef"
	ms := &mockStore{apps: []*models.Application{{
		ID:           10,
		APIKeyHash:   hashKey(t, "entirely_different_key"),
		APIKeyPrefix: rawKey[:8],
		IsActive:     true,
	}}}
	auth := mw.NewAuth(ms, testSecret, false)
	handler := auth.AuthenticateIngest(okHandler())

	req := httptest.NewRequest("POST", "/errors", nil)
	req.Header.Set("X-Api-Key", rawKey)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestIngestAuth_InactiveApplication(t *testing.T) {
	rawKey := "em_dead1234567890abcdef"
	ms := &mockStore{apps: []*models.Application{{
		ID:           11,
		APIKeyHash:   hashKey(t, rawKey),
		APIKeyPrefix: rawKey[:8],
		IsActive:     false,
	}}}
	auth := mw.NewAuth(ms, testSecret, false)
	handler := auth.AuthenticateIngest(okHandler())

	req := httptest.NewRequest("POST", "/errors", nil)
	req.Header.Set("X-Api-Key", rawKey)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

// ========================================
// Rate Limit Middleware Tests
// ========================================

func TestRateLimit_AllowsUnderLimit(t *testing.T) {
	mc := &mockCache{counter: 0}
	rl := mw.NewRateLimit(mc, 60)

	handler := rl.Limit(okHandler())

	req := asPrincipal(rbac.Principal{UserID: 1, Role: models.RoleAdmin}, httptest.NewRequest("GET", "/test", nil))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "60", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "59", w.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, w.Header().Get("X-RateLimit-Reset"))
}

func TestRateLimit_RejectsOverLimit(t *testing.T) {
	mc := &mockCache{counter: 60} // next IncrWithExpiry will return 61
	rl := mw.NewRateLimit(mc, 60)

	handler := rl.Limit(okHandler())

	req := asPrincipal(rbac.Principal{UserID: 1, Role: models.RoleAdmin}, httptest.NewRequest("GET", "/test", nil))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", errBody(t, w)["code"])
}

func TestRateLimit_NoPrincipal_PassThrough(t *testing.T) {
	mc := &mockCache{}
	rl := mw.NewRateLimit(mc, 60)

	handler := rl.Limit(okHandler())

	req := httptest.NewRequest("GET", "/test", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(0), mc.counter)
}

func TestRateLimit_FailOpenOnCacheError(t *testing.T) {
	mc := &mockCache{err: assert.AnError}
	rl := mw.NewRateLimit(mc, 60)

	handler := rl.Limit(okHandler())

	req := asPrincipal(rbac.Principal{UserID: 1, Role: models.RoleAdmin}, httptest.NewRequest("GET", "/test", nil))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimit_IngestKeyedByAddress(t *testing.T) {
	mc := &mockCache{counter: 0}
	rl := mw.NewRateLimit(mc, 60)

	handler := rl.LimitIngest(okHandler())

	req := httptest.NewRequest("POST", "/errors", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(1), mc.counter)
}

// ========================================
// Recovery Middleware Tests
// ========================================

func TestRecovery_CatchesPanic(t *testing.T) {
	panicking := http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		panic("something went wrong")
	})

	handler := mw.Recovery(panicking)

	req := httptest.NewRequest("GET", "/test", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "INTERNAL_ERROR", errBody(t, w)["code"])
}

func TestRecovery_NoPanic(t *testing.T) {
	handler := mw.Recovery(okHandler())

	req := httptest.NewRequest("GET", "/test", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

// ========================================
// Request ID Middleware Tests
// ========================================

func TestRequestID_Generated(t *testing.T) {
	var got string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = mw.RequestIDFrom(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	handler := mw.RequestID(inner)

	req := httptest.NewRequest("GET", "/test", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.NotEmpty(t, got)
	assert.Equal(t, got, w.Header().Get("X-Request-Id"))
}

func TestRequestID_HonorsCallerID(t *testing.T) {
	handler := mw.RequestID(okHandler())

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("X-Request-Id", "caller-supplied")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, "caller-supplied", w.Header().Get("X-Request-Id"))
}

// ========================================
// Logging Middleware Tests
// ========================================

func TestLogger_SetsStatus(t *testing.T) {
	handler := mw.Logger(okHandler())

	req := httptest.NewRequest("GET", "/test", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}
