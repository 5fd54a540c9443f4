package cache

import "fmt"

// RateLimitKey is the per-user request counter key. The counter expires on
// its own, so keys are windowless.
func RateLimitKey(userID int64) string {
	return fmt.Sprintf("ratelimit:user:%d", userID)
}

// IngestRateLimitKey is the per-source counter for unauthenticated error
// ingestion, keyed by client address.
func IngestRateLimitKey(addr string) string {
	return fmt.Sprintf("ratelimit:ingest:%s", addr)
}
