package middleware

import (
	"context"

	"github.com/errormonitoring/backend/internal/rbac"
	"github.com/errormonitoring/backend/pkg/models"
)

type contextKey string

const (
	principalKey   contextKey = "principal"
	applicationKey contextKey = "application"
	requestIDKey   contextKey = "request_id"
)

// WithPrincipal returns a context carrying the authenticated principal.
func WithPrincipal(ctx context.Context, p rbac.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFrom extracts the authenticated principal from the context.
func PrincipalFrom(ctx context.Context) (rbac.Principal, bool) {
	p, ok := ctx.Value(principalKey).(rbac.Principal)
	return p, ok
}

// WithApplication returns a context carrying the application that signed the
// ingestion request.
func WithApplication(ctx context.Context, app *models.Application) context.Context {
	return context.WithValue(ctx, applicationKey, app)
}

// ApplicationFrom extracts the ingesting application, if any.
func ApplicationFrom(ctx context.Context) (*models.Application, bool) {
	app, ok := ctx.Value(applicationKey).(*models.Application)
	return app, ok
}

func withRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFrom returns the request id assigned by the RequestID middleware.
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}
