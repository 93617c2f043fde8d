package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Yulikepython/drive-cleaner/internal/config"
	"github.com/Yulikepython/drive-cleaner/internal/handler"
	"github.com/Yulikepython/drive-cleaner/internal/middleware"
	"github.com/Yulikepython/drive-cleaner/internal/model"
)

const (
	exportMaxDuration = 30 * time.Minute
	exportIdleTimeout = time.Minute
)

type Handlers struct {
	Health  *handler.HealthHandler
	Ledger  *handler.LedgerHandler
	Runs    *handler.RunsHandler
	Audit   *handler.AuditHandler
	Metrics http.Handler
}

func New(cfg *config.Config, authMiddleware *middleware.AuthMiddleware, h Handlers) http.Handler {
	r := chi.NewRouter()
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(cfg.RateLimitRPM, 0)

	r.Use(middleware.Recovery)
	r.Use(middleware.Logging)
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(middleware.SecurityHeaders)

	r.Get("/health", h.Health.Health)
	if h.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.Metrics)
	}

	viewer := []string{model.RoleViewer, model.RoleOperator}
	operator := []string{model.RoleOperator}

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(rateLimitMiddleware.Handler)
		api.Use(authMiddleware.RequireAuth)

		// The export streams and must not sit behind the buffering timeout.
		api.With(
			authMiddleware.RequireRoles(viewer...),
			middleware.StreamingTimeout(exportMaxDuration, exportIdleTimeout),
		).Get("/ledger/export", h.Ledger.Export)

		api.Group(func(timed chi.Router) {
			timed.Use(middleware.Timeout(cfg.RequestTimeout))

			timed.With(authMiddleware.RequireRoles(viewer...)).Get("/ledger", h.Ledger.List)
			timed.With(authMiddleware.RequireRoles(viewer...)).Get("/ledger/{row}/file", h.Ledger.FileInfo)
			timed.With(authMiddleware.RequireRoles(operator...)).Put("/ledger/{row}/exemption", h.Ledger.SetExemption)

			timed.With(authMiddleware.RequireRoles(viewer...)).Get("/runs", h.Runs.List)
			timed.With(authMiddleware.RequireRoles(viewer...)).Get("/runs/{run_id}", h.Runs.Get)
			timed.With(authMiddleware.RequireRoles(operator...)).Post("/runs/{phase}", h.Runs.Trigger)

			timed.With(authMiddleware.RequireRoles(operator...)).Get("/audit", h.Audit.List)
		})
	})

	return r
}
