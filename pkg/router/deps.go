package router

import (
	"context"

	"bizhub-backend/pkg/config"
	customMiddleware "bizhub-backend/pkg/middleware"
	"bizhub-backend/pkg/session"
	"bizhub-backend/pkg/supabase"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// BuildDeps wires the process-wide collaborators from cfg. The store is
// left unset: serverless callers resolve it per request.
func BuildDeps(ctx context.Context, cfg *config.Config, logger *zap.Logger) Deps {
	if logger == nil {
		logger = zap.NewNop()
	}
	deps := Deps{Config: cfg, Logger: logger}

	if cfg.HasSupabase() {
		client := supabase.NewClient(cfg.SupabaseURL, cfg.SupabaseAnonKey, cfg.SupabaseServiceKey)
		deps.Auth = client
		deps.Storage = client
	} else {
		logger.Warn("supabase not configured, sign-in and file storage are disabled")
	}

	deps.Revoker = session.NewMemoryRevoker()
	if cfg.RedisURL != "" {
		if rr, err := session.NewRedisRevokerFromURL(ctx, cfg.RedisURL); err != nil {
			logger.Warn("redis unavailable, revoked sessions are tracked per instance", zap.Error(err))
		} else {
			deps.Revoker = rr
		}
	}

	if cfg.RateLimitRPS > 0 {
		deps.Limiter = customMiddleware.NewRateLimiter(logger.Named("ratelimit"), customMiddleware.ClientIPKeyFunc,
			rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst, customMiddleware.WithSkipper(customMiddleware.SkipHealthChecks))
	}
	return deps
}

// Close stops the limiter janitor and closes the Redis connection, if any.
func (d Deps) Close() {
	if d.Limiter != nil {
		d.Limiter.Stop()
	}
	if rr, ok := d.Revoker.(*session.RedisRevoker); ok {
		if err := rr.Close(); err != nil && d.Logger != nil {
			d.Logger.Warn("closing redis revoker", zap.Error(err))
		}
	}
}
