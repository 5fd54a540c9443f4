package models

import "time"

// Role controls breadth of visibility. ADMIN sees everything, VIEWER sees
// everything read-only, DEVELOPER sees only entities owned by their own
// applications.
type Role string

const (
	RoleAdmin     Role = "ADMIN"
	RoleDeveloper Role = "DEVELOPER"
	RoleViewer    Role = "VIEWER"
)

// ParseRole maps a raw role string to a Role. Unknown or empty input maps to
// VIEWER, the most restrictive read role.
func ParseRole(s string) Role {
	switch Role(s) {
	case RoleAdmin, RoleDeveloper, RoleViewer:
		return Role(s)
	default:
		return RoleViewer
	}
}

// User is an account that can read or mutate monitored data.
type User struct {
	ID           int64     `db:"id"            json:"id"`
	Username     string    `db:"username"      json:"username"`
	Email        string    `db:"email"         json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Role         Role      `db:"role"          json:"role"`
	IsActive     bool      `db:"is_active"     json:"is_active"`
	CreatedAt    time.Time `db:"created_at"    json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"    json:"updated_at"`
}
