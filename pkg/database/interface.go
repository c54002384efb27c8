package database

import (
	"context"
	"errors"
	"fmt"
	"os"

	"bizhub-backend/pkg/config"
	"bizhub-backend/pkg/models"

	"go.uber.org/zap"
)

var (
	ErrNotFound = errors.New("record not found")
	ErrConflict = errors.New("record already exists")
)

// DatabaseInterface is the storage contract every backend implements.
// Implementations assign ids and timestamps on create when they are empty.
type DatabaseInterface interface {
	// Profiles
	CreateProfile(ctx context.Context, p *models.Profile) error
	GetProfile(ctx context.Context, id string) (*models.Profile, error)
	UpdateProfile(ctx context.Context, p *models.Profile) error
	ListProfiles(ctx context.Context, filter models.ProfileFilter) ([]models.Profile, error)

	// Organizations & memberships
	CreateOrganization(ctx context.Context, org *models.Organization) error
	GetOrganization(ctx context.Context, id string) (*models.Organization, error)
	ListOrganizations(ctx context.Context) ([]models.Organization, error)
	AddUserOrganization(ctx context.Context, m *models.UserOrganization) error
	// ListUserOrganizations returns the memberships with Organization
	// filled in, primary first.
	ListUserOrganizations(ctx context.Context, userID string) ([]models.UserOrganization, error)
	// SetPrimaryOrganization marks one membership primary and clears the
	// flag on the user's others.
	SetPrimaryOrganization(ctx context.Context, userID, orgID string) error

	// Tasks
	CreateTask(ctx context.Context, t *models.Task) error
	GetTask(ctx context.Context, id string) (*models.Task, error)
	UpdateTask(ctx context.Context, t *models.Task) error
	// CompleteTask saves done and inserts next (when non-nil) atomically.
	CompleteTask(ctx context.Context, done, next *models.Task) error
	DeleteTask(ctx context.Context, id string) error
	ListTasks(ctx context.Context, q models.TaskQuery) ([]models.Task, error)

	// Workstreams
	CreateWorkstream(ctx context.Context, ws *models.Workstream) error
	GetWorkstream(ctx context.Context, id string) (*models.Workstream, error)
	ListWorkstreams(ctx context.Context, orgID string) ([]models.Workstream, error)
	CreateWorkstreamEntry(ctx context.Context, e *models.WorkstreamEntry) error
	// ListWorkstreamEntries lists entries of orgID; an empty workstreamID
	// means every workstream of the org.
	ListWorkstreamEntries(ctx context.Context, orgID, workstreamID string) ([]models.WorkstreamEntry, error)

	// Files
	CreateFile(ctx context.Context, f *models.FileObject) error
	GetFile(ctx context.Context, id string) (*models.FileObject, error)
	ListFiles(ctx context.Context, orgID string) ([]models.FileObject, error)
	DeleteFile(ctx context.Context, id string) error

	HealthCheck(ctx context.Context) error
	Close() error
}

// DatabaseConfig selects and configures a backend.
type DatabaseConfig struct {
	UseLocalDB  bool
	LocalDBPath string
	PostgresDSN string
	SupabaseURL string
	SupabaseKey string
	Debug       bool
}

// ConfigFromApp derives the store settings from the process config. The
// service role key is preferred so PostgREST calls bypass row level
// security; the anon key is the fallback.
func ConfigFromApp(cfg *config.Config) DatabaseConfig {
	key := cfg.SupabaseServiceKey
	if key == "" {
		key = cfg.SupabaseAnonKey
	}
	return DatabaseConfig{
		UseLocalDB:  cfg.UseLocalDB,
		LocalDBPath: cfg.LocalDBPath,
		PostgresDSN: cfg.PostgresDSN,
		SupabaseURL: cfg.SupabaseURL,
		SupabaseKey: key,
		Debug:       cfg.Debug,
	}
}

// NewDatabase picks a backend. Serverless runtimes prefer the Supabase
// REST API over a direct Postgres connection; elsewhere Postgres wins.
// The local bbolt file is used only when asked for explicitly.
func NewDatabase(ctx context.Context, config DatabaseConfig, logger *zap.Logger) (DatabaseInterface, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	hasSupabase := config.SupabaseURL != "" && config.SupabaseKey != ""

	switch {
	case config.UseLocalDB:
		logger.Info("using local bbolt database", zap.String("path", config.LocalDBPath))
		db, err := NewBoltDatabase(config.LocalDBPath)
		if err != nil {
			return nil, err
		}
		return db, nil
	case IsServerlessEnvironment() && hasSupabase:
		logger.Info("using Supabase REST API (serverless)")
		return NewSupabaseDatabase(config.SupabaseURL, config.SupabaseKey), nil
	case config.PostgresDSN != "":
		logger.Info("using PostgreSQL database")
		db, err := NewPostgresDatabase(ctx, config.PostgresDSN, logger)
		if err != nil {
			return nil, err
		}
		return db, nil
	case hasSupabase:
		logger.Info("using Supabase REST API")
		return NewSupabaseDatabase(config.SupabaseURL, config.SupabaseKey), nil
	}
	return nil, fmt.Errorf("no valid database configuration found: set POSTGRES_DSN, SUPABASE_URL+SUPABASE_SERVICE_KEY or USE_LOCAL_DB")
}

// IsServerlessEnvironment reports whether the process runs inside a
// Vercel, Netlify or Lambda function.
func IsServerlessEnvironment() bool {
	for _, key := range []string{"VERCEL_ENV", "VERCEL_URL", "NETLIFY", "AWS_LAMBDA_FUNCTION_NAME"} {
		if os.Getenv(key) != "" {
			return true
		}
	}
	return false
}
