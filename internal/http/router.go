// Package http assembles the API router: the shared middleware chain, the
// liveness and metrics endpoints, and the per-feature mounts with their role
// guards.
package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	cataloghandler "presente/internal/catalog/handler"
	enrollhandler "presente/internal/enrollment/handler"
	"presente/internal/platform/metrics"
	"presente/internal/platform/middleware"
	rollhandler "presente/internal/rollcall/handler"
	rosterhandler "presente/internal/roster/handler"
	id "presente/pkg/domain"
)

// Handlers groups the per-feature handlers the router mounts.
type Handlers struct {
	Catalog    *cataloghandler.Handler
	Enrollment *enrollhandler.Handler
	Rollcall   *rollhandler.Handler
	Roster     *rosterhandler.Handler
}

// Config carries the router's cross-cutting dependencies.
type Config struct {
	Logger         *slog.Logger
	Metrics        *metrics.Metrics
	TokenValidator middleware.TokenValidator
	RequestTimeout time.Duration
}

// New builds the API router. The unauthenticated surface is /healthz and
// /metrics; everything under /api/v1 requires a valid bearer token.
func New(cfg Config, handlers Handlers) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.ClientMetadata)
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	r.Use(middleware.Timeout(timeout))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Latency(routePattern))
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	admin := middleware.RequireRole(cfg.Logger, id.RoleAdmin)
	privileged := middleware.RequireRole(cfg.Logger, id.RoleTeacher, id.RoleAdmin)
	student := middleware.RequireRole(cfg.Logger, id.RoleStudent)

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(middleware.ContentTypeJSON)
		api.Use(middleware.RequireAuth(cfg.TokenValidator, cfg.Logger))

		handlers.Catalog.Register(api, admin)
		api.Group(func(g chi.Router) {
			g.Use(privileged)
			handlers.Enrollment.Register(g)
			handlers.Roster.Register(g)
		})
		handlers.Rollcall.Register(api, privileged, student)
	})

	return r
}

// routePattern resolves the chi route template for metric labels.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}
