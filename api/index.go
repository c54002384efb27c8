package handler

import (
	"context"
	"net/http"
	"sync"

	"bizhub-backend/pkg/config"
	"bizhub-backend/pkg/database"
	"bizhub-backend/pkg/logging"
	"bizhub-backend/pkg/router"
	"bizhub-backend/pkg/utils"

	"go.uber.org/zap"
)

// shared across warm invocations of the same function instance
var (
	sharedOnce sync.Once
	sharedDeps router.Deps
)

func initShared(cfg *config.Config) {
	sharedOnce.Do(func() {
		logger, err := logging.New(cfg)
		if err != nil {
			logger = zap.NewNop()
		}
		// limiter and redis live as long as the instance
		sharedDeps = router.BuildDeps(context.Background(), cfg, logger)
	})
}

// Handler is the Vercel function entrypoint. Every route is served by one
// chi router built around the shared store.
func Handler(w http.ResponseWriter, r *http.Request) {
	cfg := config.GetCached()
	if err := cfg.Validate(); err != nil {
		utils.WriteInternalServerErrorResponse(w, "Configuration error: "+err.Error())
		return
	}
	initShared(cfg)

	db, err := database.GetDatabase(r.Context(), database.ConfigFromApp(cfg), sharedDeps.Logger)
	if err != nil {
		sharedDeps.Logger.Error("database unavailable", zap.Error(err))
		utils.WriteServiceUnavailableResponse(w, "Database unavailable")
		return
	}

	deps := sharedDeps
	deps.DB = db
	router.New(deps).ServeHTTP(w, r)
}
