package middleware

import (
	"net/http"

	"bizhub-backend/pkg/config"

	"github.com/go-chi/cors"
)

// CORS allows the front ends to call the API from their own origins.
func CORS(cfg *config.Config) func(http.Handler) http.Handler {
	corsOptions := cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodPatch,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowedHeaders: []string{
			"Accept",
			"Authorization",
			"Content-Type",
			"X-CSRF-Token",
			"X-Requested-With",
			"X-Request-Id",
		},
		ExposedHeaders: []string{"Link", "X-Request-Id", "Retry-After"},
		MaxAge:         300,
	}

	// Credentials cannot be combined with a wildcard origin.
	if isWildcard(cfg.AllowedOrigins) {
		corsOptions.AllowedOrigins = []string{"*"}
	} else {
		corsOptions.AllowCredentials = true
	}

	return cors.Handler(corsOptions)
}

func isWildcard(origins []string) bool {
	if len(origins) == 0 {
		return true
	}
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}
