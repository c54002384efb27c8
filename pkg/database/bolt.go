package database

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"bizhub-backend/pkg/models"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"
)

var (
	profilesBucket    = []byte("profiles")
	orgsBucket        = []byte("organizations")
	userOrgsBucket    = []byte("user_organizations") // key: user_id/org_id
	tasksBucket       = []byte("tasks")
	workstreamsBucket = []byte("workstreams")
	entriesBucket     = []byte("workstream_entries")
	filesBucket       = []byte("files")

	allBuckets = [][]byte{
		profilesBucket, orgsBucket, userOrgsBucket, tasksBucket,
		workstreamsBucket, entriesBucket, filesBucket,
	}
)

// BoltDatabase stores every record as JSON in an embedded bbolt file.
// It backs local development and tests.
type BoltDatabase struct {
	db *bbolt.DB
}

var _ DatabaseInterface = (*BoltDatabase)(nil)

func NewBoltDatabase(path string) (*BoltDatabase, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bbolt database: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create buckets: %w", err)
	}
	return &BoltDatabase{db: db}, nil
}

func putJSON(b *bbolt.Bucket, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return b.Put([]byte(key), data)
}

func getJSON[T any](tx *bbolt.Tx, bucket []byte, key string) (*T, error) {
	val := tx.Bucket(bucket).Get([]byte(key))
	if val == nil {
		return nil, ErrNotFound
	}
	var v T
	if err := json.Unmarshal(val, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func listJSON[T any](tx *bbolt.Tx, bucket []byte, keep func(T) bool) ([]T, error) {
	var out []T
	err := tx.Bucket(bucket).ForEach(func(_, v []byte) error {
		var item T
		if err := json.Unmarshal(v, &item); err != nil {
			return err
		}
		if keep == nil || keep(item) {
			out = append(out, item)
		}
		return nil
	})
	return out, err
}

func (s *BoltDatabase) get(bucket []byte, key string, v interface{}) error {
	return s.db.View(func(tx *bbolt.Tx) error {
		val := tx.Bucket(bucket).Get([]byte(key))
		if val == nil {
			return ErrNotFound
		}
		return json.Unmarshal(val, v)
	})
}

func (s *BoltDatabase) insert(bucket []byte, key string, v interface{}) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucket)
		if b.Get([]byte(key)) != nil {
			return ErrConflict
		}
		return putJSON(b, key, v)
	})
}

func (s *BoltDatabase) replace(bucket []byte, key string, v interface{}) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucket)
		if b.Get([]byte(key)) == nil {
			return ErrNotFound
		}
		return putJSON(b, key, v)
	})
}

func (s *BoltDatabase) remove(bucket []byte, key string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucket)
		if b.Get([]byte(key)) == nil {
			return ErrNotFound
		}
		return b.Delete([]byte(key))
	})
}

func newID(id string) string {
	if id == "" {
		return uuid.NewString()
	}
	return id
}

// Profiles

func (s *BoltDatabase) CreateProfile(_ context.Context, p *models.Profile) error {
	p.ID = newID(p.ID)
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	return s.insert(profilesBucket, p.ID, p)
}

func (s *BoltDatabase) GetProfile(_ context.Context, id string) (*models.Profile, error) {
	var p models.Profile
	if err := s.get(profilesBucket, id, &p); err != nil {
		return nil, fmt.Errorf("profile %s: %w", id, err)
	}
	return &p, nil
}

func (s *BoltDatabase) UpdateProfile(_ context.Context, p *models.Profile) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		existing, err := getJSON[models.Profile](tx, profilesBucket, p.ID)
		if err != nil {
			return fmt.Errorf("profile %s: %w", p.ID, err)
		}
		p.CreatedAt = existing.CreatedAt
		p.UpdatedAt = time.Now().UTC()
		return putJSON(tx.Bucket(profilesBucket), p.ID, p)
	})
}

func (s *BoltDatabase) ListProfiles(_ context.Context, filter models.ProfileFilter) ([]models.Profile, error) {
	var out []models.Profile
	err := s.db.View(func(tx *bbolt.Tx) error {
		var err error
		out, err = listJSON(tx, profilesBucket, filter.Matches)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

// Organizations

func (s *BoltDatabase) CreateOrganization(_ context.Context, org *models.Organization) error {
	org.ID = newID(org.ID)
	if org.Slug == "" {
		org.Slug = models.Slugify(org.Name)
	}
	now := time.Now().UTC()
	org.CreatedAt, org.UpdatedAt = now, now

	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(orgsBucket)
		if b.Get([]byte(org.ID)) != nil {
			return ErrConflict
		}
		same, err := listJSON(tx, orgsBucket, func(o models.Organization) bool { return o.Slug == org.Slug })
		if err != nil {
			return err
		}
		if len(same) > 0 {
			return fmt.Errorf("organization slug %q: %w", org.Slug, ErrConflict)
		}
		return putJSON(b, org.ID, org)
	})
}

func (s *BoltDatabase) GetOrganization(_ context.Context, id string) (*models.Organization, error) {
	var org models.Organization
	if err := s.get(orgsBucket, id, &org); err != nil {
		return nil, fmt.Errorf("organization %s: %w", id, err)
	}
	return &org, nil
}

func (s *BoltDatabase) ListOrganizations(_ context.Context) ([]models.Organization, error) {
	var out []models.Organization
	err := s.db.View(func(tx *bbolt.Tx) error {
		var err error
		out, err = listJSON[models.Organization](tx, orgsBucket, nil)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list organizations: %w", err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func membershipKey(userID, orgID string) string {
	return userID + "/" + orgID
}

type membershipRow struct {
	key string
	m   models.UserOrganization
}

// userMemberships collects the user's rows with a prefix seek. Callers
// write back only after the cursor is done.
func userMemberships(tx *bbolt.Tx, userID string) ([]membershipRow, error) {
	var rows []membershipRow
	prefix := []byte(userID + "/")
	c := tx.Bucket(userOrgsBucket).Cursor()
	for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
		var m models.UserOrganization
		if err := json.Unmarshal(v, &m); err != nil {
			return nil, err
		}
		rows = append(rows, membershipRow{key: string(k), m: m})
	}
	return rows, nil
}

func (s *BoltDatabase) AddUserOrganization(_ context.Context, m *models.UserOrganization) error {
	m.ID = newID(m.ID)
	m.CreatedAt = time.Now().UTC()

	return s.db.Update(func(tx *bbolt.Tx) error {
		if tx.Bucket(orgsBucket).Get([]byte(m.OrgID)) == nil {
			return fmt.Errorf("organization %s: %w", m.OrgID, ErrNotFound)
		}
		b := tx.Bucket(userOrgsBucket)
		key := membershipKey(m.UserID, m.OrgID)
		if b.Get([]byte(key)) != nil {
			return fmt.Errorf("membership %s: %w", key, ErrConflict)
		}

		others, err := userMemberships(tx, m.UserID)
		if err != nil {
			return err
		}
		if len(others) == 0 {
			m.IsPrimary = true
		}
		if m.IsPrimary {
			for _, row := range others {
				if !row.m.IsPrimary {
					continue
				}
				row.m.IsPrimary = false
				if err := putJSON(b, row.key, row.m); err != nil {
					return err
				}
			}
		}

		stored := *m
		stored.Organization = nil
		return putJSON(b, key, stored)
	})
}

func (s *BoltDatabase) ListUserOrganizations(_ context.Context, userID string) ([]models.UserOrganization, error) {
	var out []models.UserOrganization
	err := s.db.View(func(tx *bbolt.Tx) error {
		rows, err := userMemberships(tx, userID)
		if err != nil {
			return err
		}
		for _, row := range rows {
			m := row.m
			if org, err := getJSON[models.Organization](tx, orgsBucket, m.OrgID); err == nil {
				m.Organization = org
			}
			out = append(out, m)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}
	sortMemberships(out)
	return out, nil
}

func sortMemberships(ms []models.UserOrganization) {
	sort.SliceStable(ms, func(i, j int) bool {
		if ms[i].IsPrimary != ms[j].IsPrimary {
			return ms[i].IsPrimary
		}
		return ms[i].CreatedAt.Before(ms[j].CreatedAt)
	})
}

func (s *BoltDatabase) SetPrimaryOrganization(_ context.Context, userID, orgID string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(userOrgsBucket)
		target := membershipKey(userID, orgID)
		if b.Get([]byte(target)) == nil {
			return fmt.Errorf("membership %s: %w", target, ErrNotFound)
		}
		rows, err := userMemberships(tx, userID)
		if err != nil {
			return err
		}
		for _, row := range rows {
			want := row.key == target
			if row.m.IsPrimary == want {
				continue
			}
			row.m.IsPrimary = want
			if err := putJSON(b, row.key, row.m); err != nil {
				return err
			}
		}
		return nil
	})
}

// Tasks

func (s *BoltDatabase) CreateTask(_ context.Context, t *models.Task) error {
	t.ID = newID(t.ID)
	now := time.Now().UTC()
	t.CreatedAt, t.UpdatedAt = now, now
	return s.insert(tasksBucket, t.ID, t)
}

func (s *BoltDatabase) GetTask(_ context.Context, id string) (*models.Task, error) {
	var t models.Task
	if err := s.get(tasksBucket, id, &t); err != nil {
		return nil, fmt.Errorf("task %s: %w", id, err)
	}
	return &t, nil
}

func (s *BoltDatabase) UpdateTask(_ context.Context, t *models.Task) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		existing, err := getJSON[models.Task](tx, tasksBucket, t.ID)
		if err != nil {
			return fmt.Errorf("task %s: %w", t.ID, err)
		}
		t.CreatedAt = existing.CreatedAt
		t.UpdatedAt = time.Now().UTC()
		return putJSON(tx.Bucket(tasksBucket), t.ID, t)
	})
}

func (s *BoltDatabase) CompleteTask(_ context.Context, done, next *models.Task) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(tasksBucket)
		existing, err := getJSON[models.Task](tx, tasksBucket, done.ID)
		if err != nil {
			return fmt.Errorf("task %s: %w", done.ID, err)
		}
		now := time.Now().UTC()
		done.CreatedAt = existing.CreatedAt
		done.UpdatedAt = now
		if err := putJSON(b, done.ID, done); err != nil {
			return err
		}
		if next == nil {
			return nil
		}
		next.ID = newID(next.ID)
		if b.Get([]byte(next.ID)) != nil {
			return fmt.Errorf("task %s: %w", next.ID, ErrConflict)
		}
		next.CreatedAt, next.UpdatedAt = now, now
		return putJSON(b, next.ID, next)
	})
}

func (s *BoltDatabase) DeleteTask(_ context.Context, id string) error {
	if err := s.remove(tasksBucket, id); err != nil {
		return fmt.Errorf("task %s: %w", id, err)
	}
	return nil
}

func (s *BoltDatabase) ListTasks(_ context.Context, q models.TaskQuery) ([]models.Task, error) {
	var out []models.Task
	err := s.db.View(func(tx *bbolt.Tx) error {
		var err error
		out, err = listJSON(tx, tasksBucket, q.Matches)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// Workstreams

func (s *BoltDatabase) CreateWorkstream(_ context.Context, ws *models.Workstream) error {
	ws.ID = newID(ws.ID)
	ws.CreatedAt = time.Now().UTC()
	return s.insert(workstreamsBucket, ws.ID, ws)
}

func (s *BoltDatabase) GetWorkstream(_ context.Context, id string) (*models.Workstream, error) {
	var ws models.Workstream
	if err := s.get(workstreamsBucket, id, &ws); err != nil {
		return nil, fmt.Errorf("workstream %s: %w", id, err)
	}
	return &ws, nil
}

func (s *BoltDatabase) ListWorkstreams(_ context.Context, orgID string) ([]models.Workstream, error) {
	var out []models.Workstream
	err := s.db.View(func(tx *bbolt.Tx) error {
		var err error
		out, err = listJSON(tx, workstreamsBucket, func(ws models.Workstream) bool {
			return orgID == "" || ws.OrgID == orgID
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list workstreams: %w", err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *BoltDatabase) CreateWorkstreamEntry(_ context.Context, e *models.WorkstreamEntry) error {
	e.ID = newID(e.ID)
	e.UpdatedAt = time.Now().UTC()
	return s.insert(entriesBucket, e.ID, e)
}

func (s *BoltDatabase) ListWorkstreamEntries(_ context.Context, orgID, workstreamID string) ([]models.WorkstreamEntry, error) {
	var out []models.WorkstreamEntry
	err := s.db.View(func(tx *bbolt.Tx) error {
		var err error
		out, err = listJSON(tx, entriesBucket, func(e models.WorkstreamEntry) bool {
			return (orgID == "" || e.OrgID == orgID) && (workstreamID == "" || e.WorkstreamID == workstreamID)
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list workstream entries: %w", err)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

// Files

func (s *BoltDatabase) CreateFile(_ context.Context, f *models.FileObject) error {
	f.ID = newID(f.ID)
	f.CreatedAt = time.Now().UTC()
	return s.insert(filesBucket, f.ID, f)
}

func (s *BoltDatabase) GetFile(_ context.Context, id string) (*models.FileObject, error) {
	var f models.FileObject
	if err := s.get(filesBucket, id, &f); err != nil {
		return nil, fmt.Errorf("file %s: %w", id, err)
	}
	return &f, nil
}

func (s *BoltDatabase) ListFiles(_ context.Context, orgID string) ([]models.FileObject, error) {
	var out []models.FileObject
	err := s.db.View(func(tx *bbolt.Tx) error {
		var err error
		out, err = listJSON(tx, filesBucket, func(f models.FileObject) bool {
			return orgID == "" || f.OrgID == orgID
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *BoltDatabase) DeleteFile(_ context.Context, id string) error {
	if err := s.remove(filesBucket, id); err != nil {
		return fmt.Errorf("file %s: %w", id, err)
	}
	return nil
}

func (s *BoltDatabase) HealthCheck(_ context.Context) error {
	return s.db.View(func(tx *bbolt.Tx) error {
		if tx.Bucket(profilesBucket) == nil {
			return fmt.Errorf("bucket %s missing", profilesBucket)
		}
		return nil
	})
}

func (s *BoltDatabase) Close() error {
	return s.db.Close()
}
