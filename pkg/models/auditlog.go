package models

import "time"

// AuditLog records a mutating action against an entity. Entries are written
// best-effort; a failed audit write never breaks the action it describes.
type AuditLog struct {
	ID         int64     `db:"id"          json:"id"`
	UserID     *int64    `db:"user_id"     json:"user_id"`
	Action     string    `db:"action"      json:"action"`
	EntityType string    `db:"entity_type" json:"entity_type"`
	EntityID   string    `db:"entity_id"   json:"entity_id"`
	IPAddress  string    `db:"ip_address"  json:"ip_address"`
	UserAgent  string    `db:"user_agent"  json:"user_agent"`
	CreatedAt  time.Time `db:"created_at"  json:"created_at"`
}
