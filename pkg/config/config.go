package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

// Config holds process-wide settings read from the environment.
type Config struct {
	Environment string
	Port        string

	// Database
	UseLocalDB  bool
	LocalDBPath string
	PostgresDSN string

	// Supabase
	SupabaseURL        string
	SupabaseAnonKey    string
	SupabaseServiceKey string
	SupabaseJWTSecret  string
	StorageBucket      string

	// Sessions
	RedisURL           string
	AuthSessionTimeout time.Duration

	// Front-end base URL for redirects; empty means relative redirects.
	SiteURL string

	// CORS
	AllowedOrigins []string

	// Rate limiting (per client IP)
	RateLimitRPS   float64
	RateLimitBurst int

	Debug    bool
	LogLevel string
}

// LoadConfig reads the environment, after loading the .env file that
// matches ENVIRONMENT. Variables already set are never overwritten.
func LoadConfig() *Config {
	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	switch env {
	case "production":
		_ = godotenv.Load(".env.production")
	default:
		_ = godotenv.Load(".env.local")
	}

	cfg := &Config{
		Environment:        getEnvWithDefault("ENVIRONMENT", "development"),
		Port:               getEnvWithDefault("PORT", "3000"),
		UseLocalDB:         getEnvBool("USE_LOCAL_DB", false),
		LocalDBPath:        getEnvWithDefault("LOCAL_DB_PATH", "./data/bizhub.db"),
		StorageBucket:      getEnvWithDefault("STORAGE_BUCKET", "files"),
		AuthSessionTimeout: getEnvDuration("AUTH_SESSION_TIMEOUT", 10*time.Second),
		RateLimitRPS:       getEnvFloat("RATE_LIMIT_RPS", 10),
		RateLimitBurst:     getEnvInt("RATE_LIMIT_BURST", 40),
		Debug:              getEnvBool("DEBUG", false),
		LogLevel:           getEnvWithDefault("LOG_LEVEL", "info"),
	}

	// Trim whitespace to avoid trailing spaces/newlines from env sources
	cfg.PostgresDSN = strings.TrimSpace(os.Getenv("POSTGRES_DSN"))
	cfg.SupabaseURL = strings.TrimRight(strings.TrimSpace(os.Getenv("SUPABASE_URL")), "/")
	cfg.SupabaseAnonKey = strings.TrimSpace(os.Getenv("SUPABASE_ANON_KEY"))
	cfg.SupabaseServiceKey = strings.TrimSpace(os.Getenv("SUPABASE_SERVICE_KEY"))
	cfg.SupabaseJWTSecret = strings.TrimSpace(os.Getenv("SUPABASE_JWT_SECRET"))
	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	cfg.SiteURL = strings.TrimRight(strings.TrimSpace(os.Getenv("SITE_URL")), "/")

	allowedOrigins := getEnvWithDefault("ALLOWED_ORIGINS", "*")
	if allowedOrigins == "*" {
		cfg.AllowedOrigins = []string{"*"}
	} else {
		for _, o := range strings.Split(allowedOrigins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, o)
			}
		}
	}

	if cfg.Environment == "production" {
		cfg.Debug = false
	}

	return cfg
}

var (
	cachedConfig *Config
	configOnce   sync.Once
)

// GetCached returns the process-wide Config. On serverless platforms it is
// built once per cold start and reused across warm invocations.
func GetCached() *Config {
	configOnce.Do(func() {
		cachedConfig = LoadConfig()
	})
	return cachedConfig
}

// Validate checks that the settings are usable together.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT is required")
	}
	if c.SupabaseJWTSecret == "" {
		return fmt.Errorf("SUPABASE_JWT_SECRET is required to verify access tokens")
	}
	switch {
	case c.UseLocalDB:
		if c.IsProduction() {
			return fmt.Errorf("USE_LOCAL_DB is not allowed in production")
		}
	case c.PostgresDSN != "":
	case c.SupabaseURL != "" && c.SupabaseServiceKey != "":
	default:
		return fmt.Errorf("database not configured: set POSTGRES_DSN, SUPABASE_URL+SUPABASE_SERVICE_KEY or USE_LOCAL_DB")
	}
	if c.RateLimitRPS < 0 || c.RateLimitBurst < 0 {
		return fmt.Errorf("rate limit settings must not be negative")
	}
	return nil
}

// HasSupabase reports whether the Supabase auth and storage APIs are reachable.
func (c *Config) HasSupabase() bool {
	return c.SupabaseURL != "" && (c.SupabaseAnonKey != "" || c.SupabaseServiceKey != "")
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(strings.TrimSpace(value)); err == nil {
			return parsed
		}
	}
	return defaultValue
}
