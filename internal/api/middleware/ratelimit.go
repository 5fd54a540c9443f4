package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/errormonitoring/backend/internal/api/response"
	"github.com/errormonitoring/backend/internal/cache"
)

const defaultRequestsPerMinute = 120

// RateLimit provides sliding-window rate limiting via Redis.
type RateLimit struct {
	cache          cache.Cache
	requestsPerMin int
}

// NewRateLimit creates a new RateLimit middleware.
func NewRateLimit(c cache.Cache, requestsPerMin int) *RateLimit {
	if requestsPerMin <= 0 {
		requestsPerMin = defaultRequestsPerMinute
	}
	return &RateLimit{cache: c, requestsPerMin: requestsPerMin}
}

// Limit applies rate limiting keyed by the authenticated user.
func (rl *RateLimit) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := PrincipalFrom(r.Context())
		if !ok {
			// No principal means auth middleware didn't run; pass through
			next.ServeHTTP(w, r)
			return
		}
		rl.limit(w, r, next, cache.RateLimitKey(p.UserID))
	})
}

// LimitIngest applies rate limiting on the ingestion endpoint keyed by the
// client address, since most reports arrive unauthenticated.
func (rl *RateLimit) LimitIngest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		addr := r.RemoteAddr
		if host := strings.LastIndex(addr, ":"); host > 0 {
			addr = addr[:host]
		}
		rl.limit(w, r, next, cache.IngestRateLimitKey(addr))
	})
}

func (rl *RateLimit) limit(w http.ResponseWriter, r *http.Request, next http.Handler, key string) {
	count, err := rl.cache.IncrWithExpiry(r.Context(), key, 60*time.Second)
	if err != nil {
		// On Redis error, allow the request (fail open)
		next.ServeHTTP(w, r)
		return
	}

	remaining := rl.requestsPerMin - int(count)
	if remaining < 0 {
		remaining = 0
	}
	resetTime := time.Now().Add(60 * time.Second).Unix()

	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.requestsPerMin))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", resetTime))

	if count > int64(rl.requestsPerMin) {
		w.Header().Set("Retry-After", "60")
		response.Error(w, http.StatusTooManyRequests,
			"RATE_LIMIT_EXCEEDED", "Too many requests", nil)
		return
	}

	next.ServeHTTP(w, r)
}
