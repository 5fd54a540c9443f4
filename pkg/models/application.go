package models

import "time"

// Application is a monitored application. CreatedBy is the owning user for
// write purposes; IsPaused is an ingestion-time suppression switch and is
// independent of IsActive.
//
// Raw ingest API keys are shown once at creation; only the bcrypt hash and an
// 8-character prefix are stored.
type Application struct {
	ID           int64     `db:"id"             json:"id"`
	Name         string    `db:"name"           json:"name"`
	Description  string    `db:"description"    json:"description"`
	Technology   string    `db:"technology"     json:"technology"`
	APIKeyHash   string    `db:"api_key_hash"   json:"-"`
	APIKeyPrefix string    `db:"api_key_prefix" json:"api_key_prefix"`
	IsActive     bool      `db:"is_active"      json:"is_active"`
	IsPaused     bool      `db:"is_paused"      json:"is_paused"`
	CreatedBy    int64     `db:"created_by"     json:"created_by"`
	CreatedAt    time.Time `db:"created_at"     json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"     json:"updated_at"`
}

// OwningApplication identifies the application an entity belongs to for
// visibility purposes. An application belongs to itself.
func (a *Application) OwningApplication() (int64, bool) {
	return a.ID, true
}
