// Package router assembles the chi router shared by the long-running
// server and the serverless entrypoint.
package router

import (
	"net/http"
	"time"

	"bizhub-backend/pkg/config"
	"bizhub-backend/pkg/database"
	"bizhub-backend/pkg/handlers"
	customMiddleware "bizhub-backend/pkg/middleware"
	"bizhub-backend/pkg/models"
	"bizhub-backend/pkg/session"
	"bizhub-backend/pkg/supabase"
	"bizhub-backend/pkg/utils"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

const (
	requestTimeout = 25 * time.Second
	maxJSONBody    = 1 << 20
)

// Deps are the collaborators the routes need. Auth, Storage, Revoker and
// Limiter are optional.
type Deps struct {
	Config  *config.Config
	DB      database.DatabaseInterface
	Auth    supabase.AuthClient
	Storage supabase.StorageClient
	Revoker session.Revoker
	Limiter *customMiddleware.RateLimiter
	Logger  *zap.Logger
}

// New builds the application router.
func New(deps Deps) *chi.Mux {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	router := chi.NewRouter()
	setupMiddleware(router, deps)
	setupRoutes(router, deps)
	return router
}

func setupMiddleware(router *chi.Mux, deps Deps) {
	cfg := deps.Config

	router.Use(middleware.RequestID)
	// keyed on the raw peer, so ahead of RealIP
	if deps.Limiter != nil {
		router.Use(deps.Limiter.Limit)
	}
	router.Use(middleware.RealIP)
	// Normalize path and restore scheme/host before logging and routing
	router.Use(customMiddleware.Normalize())
	router.Use(customMiddleware.RequestLogger(deps.Logger))
	router.Use(customMiddleware.Recovery(cfg, deps.Logger))
	router.Use(customMiddleware.CORS(cfg))
	router.Use(middleware.Timeout(requestTimeout))
	router.Use(middleware.Compress(5))

	if cfg.IsDevelopment() {
		router.Use(middleware.Heartbeat("/ping"))
	}
}

func setupRoutes(router *chi.Mux, deps Deps) {
	cfg, db, logger := deps.Config, deps.DB, deps.Logger
	jwtService := utils.NewJWTService(cfg.SupabaseJWTSecret)

	// session only: used before a profile exists and for sign-out
	sessionAuth := customMiddleware.AuthMiddleware(customMiddleware.AuthConfig{
		JWT:     jwtService,
		Revoker: deps.Revoker,
		Logger:  logger,
	})
	profileAuth := customMiddleware.AuthMiddleware(customMiddleware.AuthConfig{
		JWT:      jwtService,
		Revoker:  deps.Revoker,
		Profiles: db,
		Logger:   logger,
	})

	adminOnly := customMiddleware.RequireRole(models.RoleAdmin)
	managers := customMiddleware.RequireRole(models.RoleAdmin, models.RoleManager)

	authHandler := handlers.NewAuthHandler(cfg, db, deps.Auth, jwtService, deps.Revoker, logger)
	systemHandler := handlers.NewSystemHandler(cfg, db, logger)
	profileHandler := handlers.NewProfileHandler(cfg, db, logger)
	orgsHandler := handlers.NewOrgsHandler(cfg, db, logger)
	usersHandler := handlers.NewUsersHandler(cfg, db, logger)
	tasksHandler := handlers.NewTasksHandler(cfg, db, logger)
	workstreamsHandler := handlers.NewWorkstreamsHandler(cfg, db, logger)
	filesHandler := handlers.NewFilesHandler(cfg, db, deps.Storage, logger)

	router.Get("/", systemHandler.HealthCheck)
	router.Get("/healthz", systemHandler.HealthCheck)

	if cfg.IsDevelopment() {
		router.Get("/debug/db-pool", func(w http.ResponseWriter, r *http.Request) {
			utils.WriteSuccessResponse(w, database.GetConnectionStats())
		})
	}

	router.Route("/auth", func(r chi.Router) {
		r.Get("/login", authHandler.Login)
		r.Get("/callback", authHandler.Callback)
		r.Post("/callback", authHandler.CallbackFragment)
		r.With(sessionAuth, customMiddleware.ContentTypeJSON).Post("/set-password", authHandler.SetPassword)
	})

	router.Route("/api", func(r chi.Router) {
		r.With(sessionAuth).Post("/auth/logout", authHandler.Logout)

		r.Group(func(r chi.Router) {
			r.Use(profileAuth)

			r.Get("/me", systemHandler.Me)
			r.Get("/navigation", systemHandler.Navigation)

			// multipart, so outside the JSON-only group
			r.Post("/files", filesHandler.UploadFile)

			r.Group(func(r chi.Router) {
				r.Use(customMiddleware.MaxBodySize(maxJSONBody))
				r.Use(customMiddleware.ContentTypeJSON)

				r.Route("/profile", func(r chi.Router) {
					r.Get("/", profileHandler.GetProfile)
					r.Put("/", profileHandler.UpdateProfile)
				})

				r.Route("/orgs", func(r chi.Router) {
					r.Get("/", orgsHandler.ListMyOrganizations)
					r.With(adminOnly).Post("/", orgsHandler.CreateOrganization)
					r.Put("/primary", orgsHandler.SetPrimaryOrganization)
					r.Get("/{id}", orgsHandler.GetOrganization)
					r.With(adminOnly).Post("/{id}/members", orgsHandler.AddMember)
				})

				r.Route("/users", func(r chi.Router) {
					r.With(managers).Get("/", usersHandler.ListUsers)
					r.With(adminOnly).Get("/clients", usersHandler.ListClients)
				})

				r.Route("/tasks", func(r chi.Router) {
					r.Get("/", tasksHandler.ListTasks)
					r.Post("/", tasksHandler.CreateTask)
					r.Get("/rollup", tasksHandler.Rollup)
					r.Get("/{id}", tasksHandler.GetTask)
					r.Put("/{id}", tasksHandler.UpdateTask)
					r.Delete("/{id}", tasksHandler.DeleteTask)
					r.Post("/{id}/complete", tasksHandler.CompleteTask)
				})

				r.Route("/workstreams", func(r chi.Router) {
					r.Get("/", workstreamsHandler.ListWorkstreams)
					r.With(managers).Post("/", workstreamsHandler.CreateWorkstream)
					r.Get("/{id}/entries", workstreamsHandler.ListEntries)
					r.Post("/{id}/entries", workstreamsHandler.CreateEntry)
				})

				r.Get("/files", filesHandler.ListFiles)
				r.Get("/files/{id}/download", filesHandler.DownloadFile)
				r.Delete("/files/{id}", filesHandler.DeleteFile)
			})
		})
	})

	router.NotFound(handlers.NotFound)
	router.MethodNotAllowed(handlers.MethodNotAllowed)
}
