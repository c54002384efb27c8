package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"bizhub-backend/pkg/models"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// PostgresDatabase talks to Postgres directly through lib/pq.
type PostgresDatabase struct {
	db *sql.DB
}

var _ DatabaseInterface = (*PostgresDatabase)(nil)

// NewPostgresDatabase opens a pool sized for serverless use. Some hosts
// only answer once connect_timeout or sslmode is spelled out, so a few
// DSN variants are tried in order.
func NewPostgresDatabase(ctx context.Context, dsn string, logger *zap.Logger) (*PostgresDatabase, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	dsn = strings.TrimSpace(dsn)
	strategies := []string{
		dsn,
		addConnectionParams(dsn, "connect_timeout=10"),
		addConnectionParams(dsn, "sslmode=require&connect_timeout=10"),
	}

	var lastErr error
	for i, strategy := range strategies {
		db, err := sql.Open("postgres", strategy)
		if err != nil {
			lastErr = err
			logger.Warn("postgres open failed", zap.Int("strategy", i+1), zap.Error(err))
			continue
		}

		db.SetMaxOpenConns(5)
		db.SetMaxIdleConns(2)
		db.SetConnMaxLifetime(5 * time.Minute)
		db.SetConnMaxIdleTime(2 * time.Minute)

		if err := db.PingContext(ctx); err != nil {
			lastErr = err
			logger.Warn("postgres ping failed", zap.Int("strategy", i+1), zap.Error(err))
			_ = db.Close()
			continue
		}

		logger.Info("postgres connection established", zap.Int("strategy", i+1))
		return &PostgresDatabase{db: db}, nil
	}
	return nil, fmt.Errorf("failed to connect to PostgreSQL with all strategies: %w", lastErr)
}

// NewPostgresDatabaseFromDB wraps an existing pool.
func NewPostgresDatabaseFromDB(db *sql.DB) *PostgresDatabase {
	return &PostgresDatabase{db: db}
}

// addConnectionParams appends params to a URL or key=value DSN.
func addConnectionParams(dsn, params string) string {
	if params == "" {
		return dsn
	}
	if !strings.HasPrefix(dsn, "postgres://") && !strings.HasPrefix(dsn, "postgresql://") {
		return dsn + " " + strings.ReplaceAll(params, "&", " ")
	}
	separator := "?"
	if strings.Contains(dsn, "?") {
		separator = "&"
	}
	return dsn + separator + params
}

// mapError translates driver errors into the package sentinels.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("%s: %w", pqErr.Message, ErrConflict)
		case "23503": // foreign_key_violation
			return fmt.Errorf("%s: %w", pqErr.Message, ErrNotFound)
		}
	}
	return err
}

func nullIfEmpty(s string) interface{} {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}

func timeOrNil(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

func expectRow(res sql.Result, err error) error {
	if err != nil {
		return mapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

// Profiles

const profileColumns = `id, email, COALESCE(full_name,''), COALESCE(phone,''), COALESCE(company,''),
    COALESCE(avatar_url,''), role, COALESCE(org_id::text,''), is_active, onboarding_completed,
    created_at, updated_at`

func scanProfile(row rowScanner) (*models.Profile, error) {
	var p models.Profile
	var role string
	err := row.Scan(&p.ID, &p.Email, &p.FullName, &p.Phone, &p.Company, &p.AvatarURL,
		&role, &p.OrgID, &p.IsActive, &p.OnboardingCompleted, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.Role = models.Role(role)
	return &p, nil
}

func (db *PostgresDatabase) CreateProfile(ctx context.Context, p *models.Profile) error {
	p.ID = newID(p.ID)
	if p.Role == "" {
		p.Role = models.RoleUser
	}
	err := db.db.QueryRowContext(ctx, `
        INSERT INTO profiles (id, email, full_name, phone, company, avatar_url, role, org_id,
                              is_active, onboarding_completed, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
        RETURNING created_at, updated_at
    `, p.ID, p.Email, nullIfEmpty(p.FullName), nullIfEmpty(p.Phone), nullIfEmpty(p.Company),
		nullIfEmpty(p.AvatarURL), string(p.Role), nullIfEmpty(p.OrgID), p.IsActive, p.OnboardingCompleted).
		Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create profile: %w", mapError(err))
	}
	return nil
}

func (db *PostgresDatabase) GetProfile(ctx context.Context, id string) (*models.Profile, error) {
	p, err := scanProfile(db.db.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("profile %s: %w", id, mapError(err))
	}
	return p, nil
}

func (db *PostgresDatabase) UpdateProfile(ctx context.Context, p *models.Profile) error {
	err := db.db.QueryRowContext(ctx, `
        UPDATE profiles
        SET email = $2, full_name = $3, phone = $4, company = $5, avatar_url = $6,
            role = $7, org_id = $8, is_active = $9, onboarding_completed = $10, updated_at = NOW()
        WHERE id = $1
        RETURNING updated_at
    `, p.ID, p.Email, nullIfEmpty(p.FullName), nullIfEmpty(p.Phone), nullIfEmpty(p.Company),
		nullIfEmpty(p.AvatarURL), string(p.Role), nullIfEmpty(p.OrgID), p.IsActive, p.OnboardingCompleted).
		Scan(&p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update profile %s: %w", p.ID, mapError(err))
	}
	return nil
}

func (db *PostgresDatabase) ListProfiles(ctx context.Context, filter models.ProfileFilter) ([]models.Profile, error) {
	roles := make([]string, len(filter.Roles))
	for i, r := range filter.Roles {
		roles[i] = string(r)
	}
	rows, err := db.db.QueryContext(ctx, `
        SELECT `+profileColumns+`
        FROM profiles
        WHERE ($1 = '' OR org_id::text = $1)
          AND (cardinality($2::text[]) = 0 OR role = ANY($2))
        ORDER BY email
    `, filter.OrgID, pq.Array(roles))
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	defer rows.Close()

	var result []models.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *p)
	}
	return result, rows.Err()
}

// Organizations

func (db *PostgresDatabase) CreateOrganization(ctx context.Context, org *models.Organization) error {
	org.ID = newID(org.ID)
	if org.Slug == "" {
		org.Slug = models.Slugify(org.Name)
	}
	err := db.db.QueryRowContext(ctx, `
        INSERT INTO organizations (id, name, slug, created_at, updated_at)
        VALUES ($1, $2, $3, NOW(), NOW())
        RETURNING created_at, updated_at
    `, org.ID, org.Name, org.Slug).Scan(&org.CreatedAt, &org.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create organization: %w", mapError(err))
	}
	return nil
}

func (db *PostgresDatabase) GetOrganization(ctx context.Context, id string) (*models.Organization, error) {
	var o models.Organization
	err := db.db.QueryRowContext(ctx, `SELECT id, name, slug, created_at, updated_at FROM organizations WHERE id = $1`, id).
		Scan(&o.ID, &o.Name, &o.Slug, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("organization %s: %w", id, mapError(err))
	}
	return &o, nil
}

func (db *PostgresDatabase) ListOrganizations(ctx context.Context) ([]models.Organization, error) {
	rows, err := db.db.QueryContext(ctx, `SELECT id, name, slug, created_at, updated_at FROM organizations ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list organizations: %w", err)
	}
	defer rows.Close()

	var result []models.Organization
	for rows.Next() {
		var o models.Organization
		if err := rows.Scan(&o.ID, &o.Name, &o.Slug, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, o)
	}
	return result, rows.Err()
}

func (db *PostgresDatabase) AddUserOrganization(ctx context.Context, m *models.UserOrganization) error {
	m.ID = newID(m.ID)
	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var others int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM user_organizations WHERE user_id = $1`, m.UserID).Scan(&others); err != nil {
		return fmt.Errorf("failed to count memberships: %w", err)
	}
	if others == 0 {
		m.IsPrimary = true
	}
	if m.IsPrimary {
		if _, err := tx.ExecContext(ctx, `UPDATE user_organizations SET is_primary = FALSE WHERE user_id = $1`, m.UserID); err != nil {
			return fmt.Errorf("failed to clear primary membership: %w", err)
		}
	}
	err = tx.QueryRowContext(ctx, `
        INSERT INTO user_organizations (id, user_id, org_id, is_primary, created_at)
        VALUES ($1, $2, $3, $4, NOW())
        RETURNING created_at
    `, m.ID, m.UserID, m.OrgID, m.IsPrimary).Scan(&m.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to add membership: %w", mapError(err))
	}
	return tx.Commit()
}

func (db *PostgresDatabase) ListUserOrganizations(ctx context.Context, userID string) ([]models.UserOrganization, error) {
	rows, err := db.db.QueryContext(ctx, `
        SELECT m.id, m.user_id, m.org_id, m.is_primary, m.created_at,
               o.id, o.name, o.slug, o.created_at, o.updated_at
        FROM user_organizations m
        JOIN organizations o ON o.id = m.org_id
        WHERE m.user_id = $1
        ORDER BY m.is_primary DESC, m.created_at ASC
    `, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}
	defer rows.Close()

	var result []models.UserOrganization
	for rows.Next() {
		var m models.UserOrganization
		var o models.Organization
		if err := rows.Scan(&m.ID, &m.UserID, &m.OrgID, &m.IsPrimary, &m.CreatedAt,
			&o.ID, &o.Name, &o.Slug, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, err
		}
		m.Organization = &o
		result = append(result, m)
	}
	return result, rows.Err()
}

func (db *PostgresDatabase) SetPrimaryOrganization(ctx context.Context, userID, orgID string) error {
	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `UPDATE user_organizations SET is_primary = FALSE WHERE user_id = $1 AND org_id <> $2`, userID, orgID); err != nil {
		return fmt.Errorf("failed to clear primary membership: %w", err)
	}
	res, err := tx.ExecContext(ctx, `UPDATE user_organizations SET is_primary = TRUE WHERE user_id = $1 AND org_id = $2`, userID, orgID)
	if err := expectRow(res, err); err != nil {
		return fmt.Errorf("membership %s/%s: %w", userID, orgID, err)
	}
	return tx.Commit()
}

// Tasks

const taskColumns = `id, org_id, title, COALESCE(description,''), status, priority,
    COALESCE(assignee_id::text,''), COALESCE(creator_id::text,''), due_date, recurrence_rule,
    next_occurrence_at, COALESCE(parent_task_id::text,''), completed_at, created_at, updated_at`

func scanTask(row rowScanner) (*models.Task, error) {
	var t models.Task
	var status, priority string
	var due, next, completed sql.NullTime
	var rule []byte
	err := row.Scan(&t.ID, &t.OrgID, &t.Title, &t.Description, &status, &priority,
		&t.AssigneeID, &t.CreatorID, &due, &rule, &next, &t.ParentTaskID, &completed,
		&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	t.Status = models.TaskStatus(status)
	t.Priority = models.TaskPriority(priority)
	t.DueDate = timePtr(due)
	t.NextOccurrenceAt = timePtr(next)
	t.CompletedAt = timePtr(completed)
	if len(rule) > 0 {
		var r models.RecurrenceRule
		if err := json.Unmarshal(rule, &r); err != nil {
			return nil, fmt.Errorf("task %s has malformed recurrence rule: %w", t.ID, err)
		}
		t.RecurrenceRule = &r
	}
	return &t, nil
}

func ruleJSON(r *models.RecurrenceRule) (interface{}, error) {
	if r == nil {
		return nil, nil
	}
	data, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// rowQuerier is satisfied by both *sql.DB and *sql.Tx.
type rowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func (db *PostgresDatabase) CreateTask(ctx context.Context, t *models.Task) error {
	return insertTask(ctx, db.db, t)
}

func insertTask(ctx context.Context, q rowQuerier, t *models.Task) error {
	t.ID = newID(t.ID)
	rule, err := ruleJSON(t.RecurrenceRule)
	if err != nil {
		return err
	}
	err = q.QueryRowContext(ctx, `
        INSERT INTO tasks (id, org_id, title, description, status, priority, assignee_id, creator_id,
                           due_date, recurrence_rule, next_occurrence_at, parent_task_id, completed_at,
                           created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10::jsonb, $11, $12, $13, NOW(), NOW())
        RETURNING created_at, updated_at
    `, t.ID, t.OrgID, t.Title, nullIfEmpty(t.Description), string(t.Status), string(t.Priority),
		nullIfEmpty(t.AssigneeID), nullIfEmpty(t.CreatorID), timeOrNil(t.DueDate), rule,
		timeOrNil(t.NextOccurrenceAt), nullIfEmpty(t.ParentTaskID), timeOrNil(t.CompletedAt)).
		Scan(&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", mapError(err))
	}
	return nil
}

func (db *PostgresDatabase) GetTask(ctx context.Context, id string) (*models.Task, error) {
	t, err := scanTask(db.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("task %s: %w", id, mapError(err))
	}
	return t, nil
}

func (db *PostgresDatabase) UpdateTask(ctx context.Context, t *models.Task) error {
	return updateTask(ctx, db.db, t)
}

func updateTask(ctx context.Context, q rowQuerier, t *models.Task) error {
	rule, err := ruleJSON(t.RecurrenceRule)
	if err != nil {
		return err
	}
	err = q.QueryRowContext(ctx, `
        UPDATE tasks
        SET title = $2, description = $3, status = $4, priority = $5, assignee_id = $6,
            due_date = $7, recurrence_rule = $8::jsonb, next_occurrence_at = $9,
            completed_at = $10, updated_at = NOW()
        WHERE id = $1
        RETURNING updated_at
    `, t.ID, t.Title, nullIfEmpty(t.Description), string(t.Status), string(t.Priority),
		nullIfEmpty(t.AssigneeID), timeOrNil(t.DueDate), rule, timeOrNil(t.NextOccurrenceAt),
		timeOrNil(t.CompletedAt)).Scan(&t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update task %s: %w", t.ID, mapError(err))
	}
	return nil
}

func (db *PostgresDatabase) CompleteTask(ctx context.Context, done, next *models.Task) error {
	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := updateTask(ctx, tx, done); err != nil {
		return err
	}
	if next != nil {
		if err := insertTask(ctx, tx, next); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (db *PostgresDatabase) DeleteTask(ctx context.Context, id string) error {
	res, err := db.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err := expectRow(res, err); err != nil {
		return fmt.Errorf("task %s: %w", id, err)
	}
	return nil
}

func (db *PostgresDatabase) ListTasks(ctx context.Context, q models.TaskQuery) ([]models.Task, error) {
	statuses := make([]string, len(q.Statuses))
	for i, s := range q.Statuses {
		statuses[i] = string(s)
	}
	rows, err := db.db.QueryContext(ctx, `
        SELECT `+taskColumns+`
        FROM tasks
        WHERE ($1 = '' OR org_id::text = $1)
          AND ($2 = '' OR assignee_id::text = $2)
          AND (cardinality($3::text[]) = 0 OR status = ANY($3))
        ORDER BY created_at DESC
    `, q.OrgID, q.AssigneeID, pq.Array(statuses))
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	var result []models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *t)
	}
	return result, rows.Err()
}

// Workstreams

func (db *PostgresDatabase) CreateWorkstream(ctx context.Context, ws *models.Workstream) error {
	ws.ID = newID(ws.ID)
	err := db.db.QueryRowContext(ctx, `
        INSERT INTO workstreams (id, org_id, name, vertical, created_at)
        VALUES ($1, $2, $3, $4, NOW())
        RETURNING created_at
    `, ws.ID, ws.OrgID, ws.Name, ws.Vertical).Scan(&ws.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create workstream: %w", mapError(err))
	}
	return nil
}

func (db *PostgresDatabase) GetWorkstream(ctx context.Context, id string) (*models.Workstream, error) {
	var ws models.Workstream
	err := db.db.QueryRowContext(ctx, `SELECT id, org_id, name, vertical, created_at FROM workstreams WHERE id = $1`, id).
		Scan(&ws.ID, &ws.OrgID, &ws.Name, &ws.Vertical, &ws.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("workstream %s: %w", id, mapError(err))
	}
	return &ws, nil
}

func (db *PostgresDatabase) ListWorkstreams(ctx context.Context, orgID string) ([]models.Workstream, error) {
	rows, err := db.db.QueryContext(ctx, `
        SELECT id, org_id, name, vertical, created_at
        FROM workstreams
        WHERE ($1 = '' OR org_id::text = $1)
        ORDER BY name
    `, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list workstreams: %w", err)
	}
	defer rows.Close()

	var result []models.Workstream
	for rows.Next() {
		var ws models.Workstream
		if err := rows.Scan(&ws.ID, &ws.OrgID, &ws.Name, &ws.Vertical, &ws.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, ws)
	}
	return result, rows.Err()
}

func (db *PostgresDatabase) CreateWorkstreamEntry(ctx context.Context, e *models.WorkstreamEntry) error {
	e.ID = newID(e.ID)
	err := db.db.QueryRowContext(ctx, `
        INSERT INTO workstream_entries (id, workstream_id, org_id, vertical, title, status, note, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
        RETURNING updated_at
    `, e.ID, e.WorkstreamID, e.OrgID, e.Vertical, e.Title, string(e.Status), nullIfEmpty(e.Note)).
		Scan(&e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create workstream entry: %w", mapError(err))
	}
	return nil
}

func (db *PostgresDatabase) ListWorkstreamEntries(ctx context.Context, orgID, workstreamID string) ([]models.WorkstreamEntry, error) {
	rows, err := db.db.QueryContext(ctx, `
        SELECT id, workstream_id, org_id, vertical, title, status, COALESCE(note,''), updated_at
        FROM workstream_entries
        WHERE ($1 = '' OR org_id::text = $1)
          AND ($2 = '' OR workstream_id::text = $2)
        ORDER BY updated_at DESC
    `, orgID, workstreamID)
	if err != nil {
		return nil, fmt.Errorf("failed to list workstream entries: %w", err)
	}
	defer rows.Close()

	var result []models.WorkstreamEntry
	for rows.Next() {
		var e models.WorkstreamEntry
		var status string
		if err := rows.Scan(&e.ID, &e.WorkstreamID, &e.OrgID, &e.Vertical, &e.Title, &status, &e.Note, &e.UpdatedAt); err != nil {
			return nil, err
		}
		e.Status = models.StatusColor(status)
		result = append(result, e)
	}
	return result, rows.Err()
}

// Files

const fileColumns = `id, org_id, name, path, COALESCE(content_type,''), size,
    COALESCE(uploaded_by::text,''), client_visible, created_at`

func scanFile(row rowScanner) (*models.FileObject, error) {
	var f models.FileObject
	err := row.Scan(&f.ID, &f.OrgID, &f.Name, &f.Path, &f.ContentType, &f.Size,
		&f.UploadedBy, &f.ClientVisible, &f.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (db *PostgresDatabase) CreateFile(ctx context.Context, f *models.FileObject) error {
	f.ID = newID(f.ID)
	err := db.db.QueryRowContext(ctx, `
        INSERT INTO files (id, org_id, name, path, content_type, size, uploaded_by, client_visible, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
        RETURNING created_at
    `, f.ID, f.OrgID, f.Name, f.Path, nullIfEmpty(f.ContentType), f.Size, nullIfEmpty(f.UploadedBy), f.ClientVisible).
		Scan(&f.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", mapError(err))
	}
	return nil
}

func (db *PostgresDatabase) GetFile(ctx context.Context, id string) (*models.FileObject, error) {
	f, err := scanFile(db.db.QueryRowContext(ctx, `SELECT `+fileColumns+` FROM files WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("file %s: %w", id, mapError(err))
	}
	return f, nil
}

func (db *PostgresDatabase) ListFiles(ctx context.Context, orgID string) ([]models.FileObject, error) {
	rows, err := db.db.QueryContext(ctx, `
        SELECT `+fileColumns+`
        FROM files
        WHERE ($1 = '' OR org_id::text = $1)
        ORDER BY created_at DESC
    `, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	defer rows.Close()

	var result []models.FileObject
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *f)
	}
	return result, rows.Err()
}

func (db *PostgresDatabase) DeleteFile(ctx context.Context, id string) error {
	res, err := db.db.ExecContext(ctx, `DELETE FROM files WHERE id = $1`, id)
	if err := expectRow(res, err); err != nil {
		return fmt.Errorf("file %s: %w", id, err)
	}
	return nil
}

func (db *PostgresDatabase) HealthCheck(ctx context.Context) error {
	return db.db.PingContext(ctx)
}

func (db *PostgresDatabase) Close() error {
	return db.db.Close()
}
