package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/errormonitoring/backend/pkg/models"
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Users ---

const userColumns = `id, username, email, password_hash, role, is_active, created_at, updated_at`

func (s *PostgresStore) GetUser(ctx context.Context, id int64) (*models.User, error) {
	var u models.User
	err := s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Role, &u.IsActive,
		&u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

func (s *PostgresStore) CreateUser(ctx context.Context, u *models.User) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO users (username, email, password_hash, role, is_active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id`,
		u.Username, u.Email, u.PasswordHash, u.Role, u.IsActive, u.CreatedAt, u.UpdatedAt,
	).Scan(&u.ID)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// --- Applications ---

const appColumns = `id, name, description, technology, api_key_hash, api_key_prefix,
	 is_active, is_paused, created_by, created_at, updated_at`

func scanApplication(row pgx.Row) (*models.Application, error) {
	var a models.Application
	err := row.Scan(&a.ID, &a.Name, &a.Description, &a.Technology, &a.APIKeyHash,
		&a.APIKeyPrefix, &a.IsActive, &a.IsPaused, &a.CreatedBy, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *PostgresStore) GetApplication(ctx context.Context, id int64) (*models.Application, error) {
	a, err := scanApplication(s.pool.QueryRow(ctx,
		`SELECT `+appColumns+` FROM applications WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get application: %w", err)
	}
	return a, nil
}

func (s *PostgresStore) GetApplicationByName(ctx context.Context, name string) (*models.Application, error) {
	a, err := scanApplication(s.pool.QueryRow(ctx,
		`SELECT `+appColumns+` FROM applications WHERE name = $1`, name))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get application by name: %w", err)
	}
	return a, nil
}

func (s *PostgresStore) GetApplicationsByAPIKeyPrefix(ctx context.Context, prefix string) ([]*models.Application, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+appColumns+` FROM applications WHERE api_key_prefix = $1`, prefix)
	if err != nil {
		return nil, fmt.Errorf("get applications by api key prefix: %w", err)
	}
	defer rows.Close()
	return collectApplications(rows)
}

func (s *PostgresStore) ListApplications(ctx context.Context) ([]*models.Application, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+appColumns+` FROM applications ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	defer rows.Close()
	return collectApplications(rows)
}

func (s *PostgresStore) ListApplicationsByOwner(ctx context.Context, ownerID int64) ([]*models.Application, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+appColumns+` FROM applications WHERE created_by = $1 ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list applications by owner: %w", err)
	}
	defer rows.Close()
	return collectApplications(rows)
}

func collectApplications(rows pgx.Rows) ([]*models.Application, error) {
	var apps []*models.Application
	for rows.Next() {
		a, err := scanApplication(rows)
		if err != nil {
			return nil, fmt.Errorf("scan application: %w", err)
		}
		apps = append(apps, a)
	}
	return apps, rows.Err()
}

func (s *PostgresStore) CreateApplication(ctx context.Context, app *models.Application) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO applications (name, description, technology, api_key_hash, api_key_prefix,
		   is_active, is_paused, created_by, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING id`,
		app.Name, app.Description, app.Technology, app.APIKeyHash, app.APIKeyPrefix,
		app.IsActive, app.IsPaused, app.CreatedBy, app.CreatedAt, app.UpdatedAt,
	).Scan(&app.ID)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create application: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateApplication(ctx context.Context, app *models.Application) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE applications SET name = $2, description = $3, technology = $4,
		   is_active = $5, updated_at = NOW()
		 WHERE id = $1`,
		app.ID, app.Name, app.Description, app.Technology, app.IsActive)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("update application: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) SetApplicationPaused(ctx context.Context, id int64, paused bool) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE applications SET is_paused = $2, updated_at = NOW() WHERE id = $1`, id, paused)
	if err != nil {
		return fmt.Errorf("set application paused: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) DeleteApplication(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM applications WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete application: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Error logs ---

const errorLogColumns = `id, application_id, message, stack_trace, source, error_type,
	 endpoint, severity, status, created_at, resolved_at`

func (s *PostgresStore) CreateErrorLog(ctx context.Context, e *models.ErrorLog) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO error_logs (application_id, message, stack_trace, source, error_type,
		   endpoint, severity, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id`,
		e.ApplicationID, e.Message, e.StackTrace, e.Source, e.ErrorType,
		e.Endpoint, e.Severity, e.Status, e.CreatedAt,
	).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("create error log: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetErrorLog(ctx context.Context, id int64) (*models.ErrorLog, error) {
	var e models.ErrorLog
	err := s.pool.QueryRow(ctx,
		`SELECT `+errorLogColumns+` FROM error_logs WHERE id = $1`, id,
	).Scan(&e.ID, &e.ApplicationID, &e.Message, &e.StackTrace, &e.Source, &e.ErrorType,
		&e.Endpoint, &e.Severity, &e.Status, &e.CreatedAt, &e.ResolvedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get error log: %w", err)
	}
	return &e, nil
}

func (s *PostgresStore) ListErrorLogs(ctx context.Context, filter ErrorLogFilter) ([]*models.ErrorLog, error) {
	conditions := []string{"TRUE"}
	args := []any{}
	argIdx := 1

	if filter.Severity != "" {
		conditions = append(conditions, fmt.Sprintf("severity = $%d", argIdx))
		args = append(args, filter.Severity)
		argIdx++
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, filter.Status)
		argIdx++
	}

	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	query := fmt.Sprintf(
		`SELECT `+errorLogColumns+` FROM error_logs WHERE %s ORDER BY created_at DESC LIMIT $%d`,
		strings.Join(conditions, " AND "), argIdx)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list error logs: %w", err)
	}
	defer rows.Close()

	var logs []*models.ErrorLog
	for rows.Next() {
		var e models.ErrorLog
		if err := rows.Scan(&e.ID, &e.ApplicationID, &e.Message, &e.StackTrace, &e.Source,
			&e.ErrorType, &e.Endpoint, &e.Severity, &e.Status, &e.CreatedAt, &e.ResolvedAt); err != nil {
			return nil, fmt.Errorf("scan error log: %w", err)
		}
		logs = append(logs, &e)
	}
	return logs, rows.Err()
}

func (s *PostgresStore) MarkErrorResolved(ctx context.Context, id int64) error {
	// COALESCE keeps the original resolved_at so a second resolve is a
	// no-op success.
	tag, err := s.pool.Exec(ctx,
		`UPDATE error_logs SET status = 'Resolved', resolved_at = COALESCE(resolved_at, NOW())
		 WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark error resolved: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Alerts ---

const alertColumns = `id, application_id, error_log_id, alert_level, alert_message,
	 recipients, is_active, is_resolved, created_by, created_at, resolved_at`

func (s *PostgresStore) CreateAlert(ctx context.Context, a *models.Alert) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO alerts (application_id, error_log_id, alert_level, alert_message,
		   recipients, is_active, is_resolved, created_by, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id`,
		a.ApplicationID, a.ErrorLogID, a.AlertLevel, a.AlertMessage,
		a.Recipients, a.IsActive, a.IsResolved, a.CreatedBy, a.CreatedAt,
	).Scan(&a.ID)
	if err != nil {
		return fmt.Errorf("create alert: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetAlert(ctx context.Context, id int64) (*models.Alert, error) {
	var a models.Alert
	err := s.pool.QueryRow(ctx,
		`SELECT `+alertColumns+` FROM alerts WHERE id = $1`, id,
	).Scan(&a.ID, &a.ApplicationID, &a.ErrorLogID, &a.AlertLevel, &a.AlertMessage,
		&a.Recipients, &a.IsActive, &a.IsResolved, &a.CreatedBy, &a.CreatedAt, &a.ResolvedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get alert: %w", err)
	}
	return &a, nil
}

func (s *PostgresStore) ListAlerts(ctx context.Context, filter AlertFilter) ([]*models.Alert, error) {
	where := "TRUE"
	if filter.UnresolvedOnly {
		where = "is_resolved = FALSE"
	}

	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+alertColumns+` FROM alerts WHERE `+where+` ORDER BY created_at DESC LIMIT $1`,
		limit)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	defer rows.Close()

	var alerts []*models.Alert
	for rows.Next() {
		var a models.Alert
		if err := rows.Scan(&a.ID, &a.ApplicationID, &a.ErrorLogID, &a.AlertLevel,
			&a.AlertMessage, &a.Recipients, &a.IsActive, &a.IsResolved, &a.CreatedBy,
			&a.CreatedAt, &a.ResolvedAt); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		alerts = append(alerts, &a)
	}
	return alerts, rows.Err()
}

func (s *PostgresStore) MarkAlertResolved(ctx context.Context, id int64) error {
	// One-way transition: resolving an already-resolved alert matches no
	// row and reports not found without touching resolved_at.
	tag, err := s.pool.Exec(ctx,
		`UPDATE alerts SET is_resolved = TRUE, is_active = FALSE, resolved_at = NOW()
		 WHERE id = $1 AND is_resolved = FALSE`, id)
	if err != nil {
		return fmt.Errorf("mark alert resolved: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) DeleteAlert(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM alerts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete alert: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Audit logs ---

func (s *PostgresStore) CreateAuditLog(ctx context.Context, l *models.AuditLog) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO audit_logs (user_id, action, entity_type, entity_id, ip_address, user_agent, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id`,
		l.UserID, l.Action, l.EntityType, l.EntityID, l.IPAddress, l.UserAgent, l.CreatedAt,
	).Scan(&l.ID)
	if err != nil {
		return fmt.Errorf("create audit log: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListAuditLogs(ctx context.Context, filter AuditLogFilter) ([]*models.AuditLog, error) {
	conditions := []string{"TRUE"}
	args := []any{}
	argIdx := 1

	if filter.Action != "" {
		conditions = append(conditions, fmt.Sprintf("action = $%d", argIdx))
		args = append(args, filter.Action)
		argIdx++
	}
	if filter.EntityType != "" {
		conditions = append(conditions, fmt.Sprintf("entity_type = $%d", argIdx))
		args = append(args, filter.EntityType)
		argIdx++
	}
	if filter.UserID != nil {
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", argIdx))
		args = append(args, *filter.UserID)
		argIdx++
	}

	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	query := fmt.Sprintf(
		`SELECT id, user_id, action, entity_type, entity_id, ip_address, user_agent, created_at
		 FROM audit_logs WHERE %s ORDER BY created_at DESC LIMIT $%d`,
		strings.Join(conditions, " AND "), argIdx)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	defer rows.Close()

	var logs []*models.AuditLog
	for rows.Next() {
		var l models.AuditLog
		if err := rows.Scan(&l.ID, &l.UserID, &l.Action, &l.EntityType, &l.EntityID,
			&l.IPAddress, &l.UserAgent, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit log: %w", err)
		}
		logs = append(logs, &l)
	}
	return logs, rows.Err()
}

// isDuplicateKeyError checks if a pgx error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}
