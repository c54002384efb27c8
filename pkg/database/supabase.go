package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"bizhub-backend/pkg/models"
	"bizhub-backend/pkg/supabase"
)

// SupabaseDatabase reaches the tables through PostgREST. It avoids raw
// Postgres sockets, which serverless runtimes often cannot open.
type SupabaseDatabase struct {
	client *supabase.Client
}

var _ DatabaseInterface = (*SupabaseDatabase)(nil)

// NewSupabaseDatabase uses key (normally the service role key) for every call.
func NewSupabaseDatabase(baseURL, key string) *SupabaseDatabase {
	return &SupabaseDatabase{client: supabase.NewClient(baseURL, "", key)}
}

func NewSupabaseDatabaseWithClient(c *supabase.Client) *SupabaseDatabase {
	return &SupabaseDatabase{client: c}
}

func restError(err error) error {
	var apiErr *supabase.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Status {
		case http.StatusConflict:
			return fmt.Errorf("%s: %w", apiErr.Message, ErrConflict)
		case http.StatusNotFound:
			return fmt.Errorf("%s: %w", apiErr.Message, ErrNotFound)
		}
	}
	return err
}

func eq(v string) string {
	return "eq." + v
}

func in(values []string) string {
	return "in.(" + strings.Join(values, ",") + ")"
}

func (db *SupabaseDatabase) request(ctx context.Context, method, table string, q url.Values, body interface{}) ([]byte, error) {
	path := "/" + table
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	data, err := db.client.REST(ctx, method, path, body, nil)
	if err != nil {
		return nil, restError(err)
	}
	return data, nil
}

func decodeRows[T any](data []byte) ([]T, error) {
	var rows []T
	if len(data) == 0 {
		return rows, nil
	}
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode rows: %w", err)
	}
	return rows, nil
}

// decodeFirst copies the first returned row into dst.
func decodeFirst[T any](data []byte, dst *T) error {
	rows, err := decodeRows[T](data)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return ErrNotFound
	}
	*dst = rows[0]
	return nil
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// Profiles

func profileRow(p *models.Profile) map[string]interface{} {
	return map[string]interface{}{
		"email":                p.Email,
		"full_name":            nullable(p.FullName),
		"phone":                nullable(p.Phone),
		"company":              nullable(p.Company),
		"avatar_url":           nullable(p.AvatarURL),
		"role":                 string(p.Role),
		"org_id":               nullable(p.OrgID),
		"is_active":            p.IsActive,
		"onboarding_completed": p.OnboardingCompleted,
	}
}

func (db *SupabaseDatabase) CreateProfile(ctx context.Context, p *models.Profile) error {
	p.ID = newID(p.ID)
	if p.Role == "" {
		p.Role = models.RoleUser
	}
	row := profileRow(p)
	row["id"] = p.ID
	data, err := db.request(ctx, http.MethodPost, "profiles", nil, row)
	if err != nil {
		return fmt.Errorf("failed to create profile: %w", err)
	}
	return decodeFirst(data, p)
}

func (db *SupabaseDatabase) GetProfile(ctx context.Context, id string) (*models.Profile, error) {
	data, err := db.request(ctx, http.MethodGet, "profiles", url.Values{"id": {eq(id)}, "select": {"*"}}, nil)
	if err != nil {
		return nil, fmt.Errorf("profile %s: %w", id, err)
	}
	var p models.Profile
	if err := decodeFirst(data, &p); err != nil {
		return nil, fmt.Errorf("profile %s: %w", id, err)
	}
	return &p, nil
}

func (db *SupabaseDatabase) UpdateProfile(ctx context.Context, p *models.Profile) error {
	data, err := db.request(ctx, http.MethodPatch, "profiles", url.Values{"id": {eq(p.ID)}}, profileRow(p))
	if err != nil {
		return fmt.Errorf("failed to update profile %s: %w", p.ID, err)
	}
	if err := decodeFirst(data, p); err != nil {
		return fmt.Errorf("profile %s: %w", p.ID, err)
	}
	return nil
}

func (db *SupabaseDatabase) ListProfiles(ctx context.Context, filter models.ProfileFilter) ([]models.Profile, error) {
	q := url.Values{"select": {"*"}, "order": {"email.asc"}}
	if filter.OrgID != "" {
		q.Set("org_id", eq(filter.OrgID))
	}
	if len(filter.Roles) > 0 {
		roles := make([]string, len(filter.Roles))
		for i, r := range filter.Roles {
			roles[i] = string(r)
		}
		q.Set("role", in(roles))
	}
	data, err := db.request(ctx, http.MethodGet, "profiles", q, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	return decodeRows[models.Profile](data)
}

// Organizations

func (db *SupabaseDatabase) CreateOrganization(ctx context.Context, org *models.Organization) error {
	org.ID = newID(org.ID)
	if org.Slug == "" {
		org.Slug = models.Slugify(org.Name)
	}
	data, err := db.request(ctx, http.MethodPost, "organizations", nil, map[string]interface{}{
		"id":   org.ID,
		"name": org.Name,
		"slug": org.Slug,
	})
	if err != nil {
		return fmt.Errorf("failed to create organization: %w", err)
	}
	return decodeFirst(data, org)
}

func (db *SupabaseDatabase) GetOrganization(ctx context.Context, id string) (*models.Organization, error) {
	data, err := db.request(ctx, http.MethodGet, "organizations", url.Values{"id": {eq(id)}, "select": {"*"}}, nil)
	if err != nil {
		return nil, fmt.Errorf("organization %s: %w", id, err)
	}
	var org models.Organization
	if err := decodeFirst(data, &org); err != nil {
		return nil, fmt.Errorf("organization %s: %w", id, err)
	}
	return &org, nil
}

func (db *SupabaseDatabase) ListOrganizations(ctx context.Context) ([]models.Organization, error) {
	data, err := db.request(ctx, http.MethodGet, "organizations", url.Values{"select": {"*"}, "order": {"name.asc"}}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list organizations: %w", err)
	}
	return decodeRows[models.Organization](data)
}

func (db *SupabaseDatabase) AddUserOrganization(ctx context.Context, m *models.UserOrganization) error {
	m.ID = newID(m.ID)
	existing, err := db.request(ctx, http.MethodGet, "user_organizations", url.Values{
		"user_id": {eq(m.UserID)},
		"select":  {"id"},
	}, nil)
	if err != nil {
		return fmt.Errorf("failed to count memberships: %w", err)
	}
	if rows, err := decodeRows[map[string]interface{}](existing); err == nil && len(rows) == 0 {
		m.IsPrimary = true
	}
	if m.IsPrimary {
		if _, err := db.request(ctx, http.MethodPatch, "user_organizations", url.Values{"user_id": {eq(m.UserID)}},
			map[string]interface{}{"is_primary": false}); err != nil {
			return fmt.Errorf("failed to clear primary membership: %w", err)
		}
	}
	data, err := db.request(ctx, http.MethodPost, "user_organizations", nil, map[string]interface{}{
		"id":         m.ID,
		"user_id":    m.UserID,
		"org_id":     m.OrgID,
		"is_primary": m.IsPrimary,
	})
	if err != nil {
		return fmt.Errorf("failed to add membership: %w", err)
	}
	return decodeFirst(data, m)
}

func (db *SupabaseDatabase) ListUserOrganizations(ctx context.Context, userID string) ([]models.UserOrganization, error) {
	data, err := db.request(ctx, http.MethodGet, "user_organizations", url.Values{
		"user_id": {eq(userID)},
		"select":  {"*,organization:organizations(*)"},
		"order":   {"is_primary.desc,created_at.asc"},
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}
	return decodeRows[models.UserOrganization](data)
}

func (db *SupabaseDatabase) SetPrimaryOrganization(ctx context.Context, userID, orgID string) error {
	data, err := db.request(ctx, http.MethodGet, "user_organizations", url.Values{
		"user_id": {eq(userID)},
		"org_id":  {eq(orgID)},
		"select":  {"id"},
	}, nil)
	if err != nil {
		return fmt.Errorf("failed to load membership: %w", err)
	}
	var row map[string]interface{}
	if err := decodeFirst(data, &row); err != nil {
		return fmt.Errorf("membership %s/%s: %w", userID, orgID, err)
	}

	if _, err := db.request(ctx, http.MethodPatch, "user_organizations", url.Values{
		"user_id": {eq(userID)},
		"org_id":  {"neq." + orgID},
	}, map[string]interface{}{"is_primary": false}); err != nil {
		return fmt.Errorf("failed to clear primary membership: %w", err)
	}
	if _, err := db.request(ctx, http.MethodPatch, "user_organizations", url.Values{
		"user_id": {eq(userID)},
		"org_id":  {eq(orgID)},
	}, map[string]interface{}{"is_primary": true}); err != nil {
		return fmt.Errorf("failed to set primary membership: %w", err)
	}
	return nil
}

// Tasks

func taskRow(t *models.Task) map[string]interface{} {
	return map[string]interface{}{
		"title":              t.Title,
		"description":        nullable(t.Description),
		"status":             string(t.Status),
		"priority":           string(t.Priority),
		"assignee_id":        nullable(t.AssigneeID),
		"due_date":           t.DueDate,
		"recurrence_rule":    t.RecurrenceRule,
		"next_occurrence_at": t.NextOccurrenceAt,
		"completed_at":       t.CompletedAt,
	}
}

func (db *SupabaseDatabase) CreateTask(ctx context.Context, t *models.Task) error {
	t.ID = newID(t.ID)
	row := taskRow(t)
	row["id"] = t.ID
	row["org_id"] = t.OrgID
	row["creator_id"] = nullable(t.CreatorID)
	row["parent_task_id"] = nullable(t.ParentTaskID)
	data, err := db.request(ctx, http.MethodPost, "tasks", nil, row)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}
	return decodeFirst(data, t)
}

func (db *SupabaseDatabase) GetTask(ctx context.Context, id string) (*models.Task, error) {
	data, err := db.request(ctx, http.MethodGet, "tasks", url.Values{"id": {eq(id)}, "select": {"*"}}, nil)
	if err != nil {
		return nil, fmt.Errorf("task %s: %w", id, err)
	}
	var t models.Task
	if err := decodeFirst(data, &t); err != nil {
		return nil, fmt.Errorf("task %s: %w", id, err)
	}
	return &t, nil
}

func (db *SupabaseDatabase) UpdateTask(ctx context.Context, t *models.Task) error {
	data, err := db.request(ctx, http.MethodPatch, "tasks", url.Values{"id": {eq(t.ID)}}, taskRow(t))
	if err != nil {
		return fmt.Errorf("failed to update task %s: %w", t.ID, err)
	}
	if err := decodeFirst(data, t); err != nil {
		return fmt.Errorf("task %s: %w", t.ID, err)
	}
	return nil
}

// CompleteTask inserts the successor first and removes it again when the
// completion cannot be saved. PostgREST offers no multi-request transaction.
func (db *SupabaseDatabase) CompleteTask(ctx context.Context, done, next *models.Task) error {
	if next != nil {
		if err := db.CreateTask(ctx, next); err != nil {
			return err
		}
	}
	if err := db.UpdateTask(ctx, done); err != nil {
		if next != nil {
			if rmErr := db.DeleteTask(ctx, next.ID); rmErr != nil {
				return fmt.Errorf("%w (successor %s left behind: %v)", err, next.ID, rmErr)
			}
		}
		return err
	}
	return nil
}

func (db *SupabaseDatabase) DeleteTask(ctx context.Context, id string) error {
	data, err := db.request(ctx, http.MethodDelete, "tasks", url.Values{"id": {eq(id)}}, nil)
	if err != nil {
		return fmt.Errorf("failed to delete task %s: %w", id, err)
	}
	var deleted models.Task
	if err := decodeFirst(data, &deleted); err != nil {
		return fmt.Errorf("task %s: %w", id, err)
	}
	return nil
}

func (db *SupabaseDatabase) ListTasks(ctx context.Context, q models.TaskQuery) ([]models.Task, error) {
	params := url.Values{"select": {"*"}, "order": {"created_at.desc"}}
	if q.OrgID != "" {
		params.Set("org_id", eq(q.OrgID))
	}
	if q.AssigneeID != "" {
		params.Set("assignee_id", eq(q.AssigneeID))
	}
	if len(q.Statuses) > 0 {
		statuses := make([]string, len(q.Statuses))
		for i, s := range q.Statuses {
			statuses[i] = string(s)
		}
		params.Set("status", in(statuses))
	}
	data, err := db.request(ctx, http.MethodGet, "tasks", params, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	return decodeRows[models.Task](data)
}

// Workstreams

func (db *SupabaseDatabase) CreateWorkstream(ctx context.Context, ws *models.Workstream) error {
	ws.ID = newID(ws.ID)
	data, err := db.request(ctx, http.MethodPost, "workstreams", nil, map[string]interface{}{
		"id":       ws.ID,
		"org_id":   ws.OrgID,
		"name":     ws.Name,
		"vertical": ws.Vertical,
	})
	if err != nil {
		return fmt.Errorf("failed to create workstream: %w", err)
	}
	return decodeFirst(data, ws)
}

func (db *SupabaseDatabase) GetWorkstream(ctx context.Context, id string) (*models.Workstream, error) {
	data, err := db.request(ctx, http.MethodGet, "workstreams", url.Values{"id": {eq(id)}, "select": {"*"}}, nil)
	if err != nil {
		return nil, fmt.Errorf("workstream %s: %w", id, err)
	}
	var ws models.Workstream
	if err := decodeFirst(data, &ws); err != nil {
		return nil, fmt.Errorf("workstream %s: %w", id, err)
	}
	return &ws, nil
}

func (db *SupabaseDatabase) ListWorkstreams(ctx context.Context, orgID string) ([]models.Workstream, error) {
	q := url.Values{"select": {"*"}, "order": {"name.asc"}}
	if orgID != "" {
		q.Set("org_id", eq(orgID))
	}
	data, err := db.request(ctx, http.MethodGet, "workstreams", q, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list workstreams: %w", err)
	}
	return decodeRows[models.Workstream](data)
}

func (db *SupabaseDatabase) CreateWorkstreamEntry(ctx context.Context, e *models.WorkstreamEntry) error {
	e.ID = newID(e.ID)
	data, err := db.request(ctx, http.MethodPost, "workstream_entries", nil, map[string]interface{}{
		"id":            e.ID,
		"workstream_id": e.WorkstreamID,
		"org_id":        e.OrgID,
		"vertical":      e.Vertical,
		"title":         e.Title,
		"status":        string(e.Status),
		"note":          nullable(e.Note),
	})
	if err != nil {
		return fmt.Errorf("failed to create workstream entry: %w", err)
	}
	return decodeFirst(data, e)
}

func (db *SupabaseDatabase) ListWorkstreamEntries(ctx context.Context, orgID, workstreamID string) ([]models.WorkstreamEntry, error) {
	q := url.Values{"select": {"*"}, "order": {"updated_at.desc"}}
	if orgID != "" {
		q.Set("org_id", eq(orgID))
	}
	if workstreamID != "" {
		q.Set("workstream_id", eq(workstreamID))
	}
	data, err := db.request(ctx, http.MethodGet, "workstream_entries", q, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list workstream entries: %w", err)
	}
	return decodeRows[models.WorkstreamEntry](data)
}

// Files

func (db *SupabaseDatabase) CreateFile(ctx context.Context, f *models.FileObject) error {
	f.ID = newID(f.ID)
	data, err := db.request(ctx, http.MethodPost, "files", nil, map[string]interface{}{
		"id":             f.ID,
		"org_id":         f.OrgID,
		"name":           f.Name,
		"path":           f.Path,
		"content_type":   nullable(f.ContentType),
		"size":           f.Size,
		"uploaded_by":    nullable(f.UploadedBy),
		"client_visible": f.ClientVisible,
	})
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	return decodeFirst(data, f)
}

func (db *SupabaseDatabase) GetFile(ctx context.Context, id string) (*models.FileObject, error) {
	data, err := db.request(ctx, http.MethodGet, "files", url.Values{"id": {eq(id)}, "select": {"*"}}, nil)
	if err != nil {
		return nil, fmt.Errorf("file %s: %w", id, err)
	}
	var f models.FileObject
	if err := decodeFirst(data, &f); err != nil {
		return nil, fmt.Errorf("file %s: %w", id, err)
	}
	return &f, nil
}

func (db *SupabaseDatabase) ListFiles(ctx context.Context, orgID string) ([]models.FileObject, error) {
	q := url.Values{"select": {"*"}, "order": {"created_at.desc"}}
	if orgID != "" {
		q.Set("org_id", eq(orgID))
	}
	data, err := db.request(ctx, http.MethodGet, "files", q, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	return decodeRows[models.FileObject](data)
}

func (db *SupabaseDatabase) DeleteFile(ctx context.Context, id string) error {
	data, err := db.request(ctx, http.MethodDelete, "files", url.Values{"id": {eq(id)}}, nil)
	if err != nil {
		return fmt.Errorf("failed to delete file %s: %w", id, err)
	}
	var deleted models.FileObject
	if err := decodeFirst(data, &deleted); err != nil {
		return fmt.Errorf("file %s: %w", id, err)
	}
	return nil
}

func (db *SupabaseDatabase) HealthCheck(ctx context.Context) error {
	_, err := db.request(ctx, http.MethodGet, "profiles", url.Values{"select": {"id"}, "limit": {"1"}}, nil)
	return err
}

// Close is a no-op; the HTTP client holds no dedicated connection.
func (db *SupabaseDatabase) Close() error {
	return nil
}
