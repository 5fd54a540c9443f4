package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/errormonitoring/backend/internal/api/response"
	"github.com/errormonitoring/backend/internal/rbac"
	"github.com/errormonitoring/backend/pkg/models"
)

const keyPrefixLen = 8

// AuthStore is the subset of the store the auth middleware needs.
type AuthStore interface {
	GetApplicationsByAPIKeyPrefix(ctx context.Context, prefix string) ([]*models.Application, error)
}

// Auth provides authentication middleware for the dashboard API and the
// error ingestion endpoint.
type Auth struct {
	store             AuthStore
	jwtSecret         []byte
	ingestKeyRequired bool
}

// NewAuth creates a new Auth middleware.
func NewAuth(s AuthStore, jwtSecret string, ingestKeyRequired bool) *Auth {
	return &Auth{store: s, jwtSecret: []byte(jwtSecret), ingestKeyRequired: ingestKeyRequired}
}

type principalClaims struct {
	UserID int64  `json:"uid"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// Authenticate validates the Bearer token issued by the identity provider and
// sets the principal in the request context. Unknown roles degrade to viewer.
func (a *Auth) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := extractBearerToken(r)
		if raw == "" {
			response.Error(w, http.StatusUnauthorized,
				"INVALID_TOKEN", "Missing or invalid Authorization header", nil)
			return
		}

		claims := &principalClaims{}
		token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return a.jwtSecret, nil
		})
		if err != nil || !token.Valid || claims.UserID == 0 {
			response.Error(w, http.StatusUnauthorized,
				"INVALID_TOKEN", "Invalid or expired token", nil)
			return
		}

		p := rbac.Principal{UserID: claims.UserID, Role: models.ParseRole(claims.Role)}
		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
	})
}

// RequireWriter rejects principals whose role cannot mutate resources.
func (a *Auth) RequireWriter(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := PrincipalFrom(r.Context())
		if !ok || !p.CanWrite() {
			response.Error(w, http.StatusForbidden,
				"FORBIDDEN", "Insufficient permissions", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin restricts a route to administrators.
func (a *Auth) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := PrincipalFrom(r.Context())
		if !ok || !p.IsAdmin() {
			response.Error(w, http.StatusForbidden,
				"FORBIDDEN", "Insufficient permissions", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// AuthenticateIngest validates the per-application API key on the ingestion
// endpoint. When ingest keys are optional and no key is supplied, the request
// passes through without an application in context. A supplied key is always
// verified, even in optional mode.
func (a *Auth) AuthenticateIngest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rawKey := r.Header.Get("X-Api-Key")
		if rawKey == "" {
			rawKey = extractBearerToken(r)
		}
		if rawKey == "" {
			if a.ingestKeyRequired {
				response.Error(w, http.StatusUnauthorized,
					"INVALID_TOKEN", "Missing API key", nil)
				return
			}
			next.ServeHTTP(w, r)
			return
		}

		if len(rawKey) < keyPrefixLen {
			response.Error(w, http.StatusUnauthorized,
				"INVALID_TOKEN", "Invalid API key format", nil)
			return
		}

		apps, err := a.store.GetApplicationsByAPIKeyPrefix(r.Context(), rawKey[:keyPrefixLen])
		if err != nil {
			response.Error(w, http.StatusInternalServerError,
				"INTERNAL_ERROR", "Failed to validate API key", nil)
			return
		}

		for _, app := range apps {
			if bcrypt.CompareHashAndPassword([]byte(app.APIKeyHash), []byte(rawKey)) == nil {
				if !app.IsActive {
					break
				}
				next.ServeHTTP(w, r.WithContext(WithApplication(r.Context(), app)))
				return
			}
		}

		response.Error(w, http.StatusUnauthorized,
			"INVALID_TOKEN", "Invalid API key", nil)
	})
}

func extractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
