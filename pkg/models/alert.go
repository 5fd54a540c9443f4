package models

import "time"

// Alert is synthesized from a persisted ErrorLog (or filed manually against
// an application). Recipients is the comma-joined address list resolved at
// creation time and never re-resolved afterwards. Resolving an alert is a
// one-way transition: IsResolved=true implies IsActive=false.
type Alert struct {
	ID            int64      `db:"id"             json:"id"`
	ApplicationID *int64     `db:"application_id" json:"application_id"`
	ErrorLogID    *int64     `db:"error_log_id"   json:"error_log_id"`
	AlertLevel    string     `db:"alert_level"    json:"alert_level"`
	AlertMessage  string     `db:"alert_message"  json:"alert_message"`
	Recipients    string     `db:"recipients"     json:"recipients"`
	IsActive      bool       `db:"is_active"      json:"is_active"`
	IsResolved    bool       `db:"is_resolved"    json:"is_resolved"`
	CreatedBy     int64      `db:"created_by"     json:"created_by"`
	CreatedAt     time.Time  `db:"created_at"     json:"created_at"`
	ResolvedAt    *time.Time `db:"resolved_at"    json:"resolved_at"`
}

func (a *Alert) OwningApplication() (int64, bool) {
	if a.ApplicationID == nil {
		return 0, false
	}
	return *a.ApplicationID, true
}
