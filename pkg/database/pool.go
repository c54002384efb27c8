package database

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// idleTimeout is how long a pooled store may sit unused before the next
// request replaces it.
const idleTimeout = 30 * time.Minute

// DatabasePool keeps one store per process so warm serverless
// invocations reuse the connection opened by the cold start.
type DatabasePool struct {
	instance DatabaseInterface
	config   DatabaseConfig
	mu       sync.RWMutex
	lastUsed time.Time
}

var (
	globalPool *DatabasePool
	poolMutex  sync.Mutex
)

// GetDatabase returns the shared store, creating it on first use and
// replacing it when the config changed, it went idle or it fails its
// health check.
func GetDatabase(ctx context.Context, config DatabaseConfig, logger *zap.Logger) (DatabaseInterface, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	poolMutex.Lock()
	defer poolMutex.Unlock()

	if globalPool != nil && !shouldRecreateConnection(ctx, globalPool, config, logger) {
		globalPool.mu.Lock()
		globalPool.lastUsed = time.Now()
		globalPool.mu.Unlock()
		return globalPool.instance, nil
	}

	if globalPool != nil && globalPool.instance != nil {
		_ = globalPool.instance.Close()
		globalPool = nil
	}

	instance, err := NewDatabase(ctx, config, logger)
	if err != nil {
		return nil, err
	}
	globalPool = &DatabasePool{
		instance: instance,
		config:   config,
		lastUsed: time.Now(),
	}
	return instance, nil
}

func shouldRecreateConnection(ctx context.Context, pool *DatabasePool, newConfig DatabaseConfig, logger *zap.Logger) bool {
	if pool == nil || pool.instance == nil {
		return true
	}
	if pool.config != newConfig {
		logger.Info("database configuration changed, recreating connection")
		return true
	}

	pool.mu.RLock()
	expired := time.Since(pool.lastUsed) > idleTimeout
	pool.mu.RUnlock()
	if expired {
		logger.Info("database connection idle too long, recreating")
		return true
	}

	if err := pool.instance.HealthCheck(ctx); err != nil {
		logger.Warn("database health check failed, recreating", zap.Error(err))
		return true
	}
	return false
}

// CloseDatabase closes the shared store, if any.
func CloseDatabase() error {
	poolMutex.Lock()
	defer poolMutex.Unlock()

	if globalPool == nil {
		return nil
	}
	err := globalPool.instance.Close()
	globalPool = nil
	if err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

// GetConnectionStats describes the shared store for the health endpoint.
func GetConnectionStats() map[string]interface{} {
	poolMutex.Lock()
	defer poolMutex.Unlock()

	if globalPool == nil {
		return map[string]interface{}{"status": "no_connection"}
	}

	globalPool.mu.RLock()
	lastUsed := globalPool.lastUsed
	globalPool.mu.RUnlock()

	return map[string]interface{}{
		"status":    "connected",
		"last_used": lastUsed.Format(time.RFC3339),
		"idle":      time.Since(lastUsed).Round(time.Second).String(),
		"backend":   BackendName(globalPool.config),
	}
}

// BackendName names the backend NewDatabase picks for c.
func BackendName(c DatabaseConfig) string {
	switch {
	case c.UseLocalDB:
		return "bbolt"
	case IsServerlessEnvironment() && c.SupabaseURL != "" && c.SupabaseKey != "":
		return "supabase"
	case c.PostgresDSN != "":
		return "postgres"
	default:
		return "supabase"
	}
}
