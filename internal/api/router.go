// Package api serves audit results over HTTP.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nmslite/switchaudit/internal/auth"
	"github.com/nmslite/switchaudit/internal/middleware"
	"github.com/nmslite/switchaudit/internal/runner"
)

// RunService starts runs and exposes the latest one.
type RunService interface {
	Start(ctx context.Context) (*runner.Run, error)
	Latest() (*runner.Run, bool)
	Running() bool
}

// NewRouter creates and configures the API router. Runs triggered over HTTP live in runCtx,
// not the request context. With a nil authService the run endpoints are unauthenticated
// and /api/v1/login is not served.
func NewRouter(runCtx context.Context, runs RunService, authService *auth.Service, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "api")

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recovery(logger))

	healthHandler := NewHealthHandler(runs)
	runHandler := NewRunHandler(runCtx, runs, logger)

	r.Get("/health", healthHandler.Health)

	r.Route("/api/v1", func(r chi.Router) {
		if authService != nil {
			r.Post("/login", NewAuthHandler(authService).Login)
		}

		r.Group(func(r chi.Router) {
			if authService != nil {
				r.Use(middleware.JWTAuth(authService))
			}

			r.Route("/runs", func(r chi.Router) {
				r.Post("/", runHandler.Start)
				r.Get("/latest", runHandler.Latest)
				r.Get("/latest/failures", runHandler.Failures)
			})
		})
	})

	return r
}
