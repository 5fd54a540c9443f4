// Package audit records mutating actions. Writes are best-effort: a failed
// audit insert is logged and must never break the action it describes.
package audit

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/errormonitoring/backend/pkg/models"
)

type Store interface {
	CreateAuditLog(ctx context.Context, l *models.AuditLog) error
}

// Recorder writes audit entries.
type Recorder struct {
	store Store
}

func NewRecorder(s Store) *Recorder {
	return &Recorder{store: s}
}

// Record persists one audit entry, extracting client address and user agent
// from the request when present.
func (r *Recorder) Record(ctx context.Context, userID *int64, action, entityType, entityID string, req *http.Request) {
	entry := &models.AuditLog{
		UserID:     userID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		CreatedAt:  time.Now().UTC(),
	}
	if req != nil {
		entry.IPAddress = clientIP(req)
		entry.UserAgent = req.Header.Get("User-Agent")
	}

	if err := r.store.CreateAuditLog(ctx, entry); err != nil {
		slog.Error("audit write failed", "action", action, "entity_type", entityType, "error", err)
	}
}

func clientIP(req *http.Request) string {
	if xff := req.Header.Get("X-Forwarded-For"); xff != "" {
		return strings.TrimSpace(strings.Split(xff, ",")[0])
	}
	return req.RemoteAddr
}
