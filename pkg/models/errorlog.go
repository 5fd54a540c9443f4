package models

import (
	"strings"
	"time"
)

// Severity is totally ordered: Low < Medium < High < Critical.
type Severity string

const (
	SeverityLow      Severity = "Low"
	SeverityMedium   Severity = "Medium"
	SeverityHigh     Severity = "High"
	SeverityCritical Severity = "Critical"
)

// ParseSeverity matches case-insensitively against the known severities.
// Unmatched or absent input defaults to Medium; a report is never rejected
// for its severity.
func ParseSeverity(s string) Severity {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "critical":
		return SeverityCritical
	case "high":
		return SeverityHigh
	case "medium":
		return SeverityMedium
	case "low":
		return SeverityLow
	default:
		return SeverityMedium
	}
}

// AlertLevel is the uppercased severity carried on alerts.
func (s Severity) AlertLevel() string {
	return strings.ToUpper(string(s))
}

const (
	ErrorStatusOpen     = "Open"
	ErrorStatusResolved = "Resolved"
)

// ErrorLog is a persisted error report. ApplicationID is nil when the report
// named no resolvable application; such errors belong to no one and are
// visible only to ADMIN/VIEWER.
type ErrorLog struct {
	ID            int64      `db:"id"             json:"id"`
	ApplicationID *int64     `db:"application_id" json:"application_id"`
	Message       string     `db:"message"        json:"message"`
	StackTrace    string     `db:"stack_trace"    json:"stack_trace"`
	Source        string     `db:"source"         json:"source"`
	ErrorType     string     `db:"error_type"     json:"error_type"`
	Endpoint      string     `db:"endpoint"       json:"endpoint"`
	Severity      Severity   `db:"severity"       json:"severity"`
	Status        string     `db:"status"         json:"status"`
	CreatedAt     time.Time  `db:"created_at"     json:"created_at"`
	ResolvedAt    *time.Time `db:"resolved_at"    json:"resolved_at"`
}

func (e *ErrorLog) OwningApplication() (int64, bool) {
	if e.ApplicationID == nil {
		return 0, false
	}
	return *e.ApplicationID, true
}
