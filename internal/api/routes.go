package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/vamp-go/vamp-go/internal/backend"
	"github.com/vamp-go/vamp-go/internal/config"
	"github.com/vamp-go/vamp-go/internal/metrics"
	"github.com/vamp-go/vamp-go/internal/models"
	"github.com/vamp-go/vamp-go/internal/queue"
	"github.com/vamp-go/vamp-go/internal/render"
)

// Dependencies are the services the handlers call into.
type Dependencies struct {
	Backend  backend.Backend
	Renderer *render.Renderer
	Models   *models.Registry
	Queue    *queue.Manager
	Metrics  *metrics.Metrics
}

// NewRouter constructs the HTTP router with middleware and routes.
func NewRouter(cfg *config.Config, deps Dependencies, logger zerolog.Logger) chi.Router {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(otelhttp.NewMiddleware("vamp-server"))
	r.Use(LoggingMiddleware(logger))
	if deps.Metrics != nil {
		r.Use(MetricsMiddleware(deps.Metrics))
	}
	r.Use(CORSMiddleware)

	if cfg.Metrics.Enabled && deps.Metrics != nil {
		r.Handle(cfg.Metrics.Path, deps.Metrics.Handler())
	}

	h := NewHandler(deps, cfg, logger)

	r.Group(func(r chi.Router) {
		if cfg.Auth.APIKey != "" {
			r.Use(AuthMiddleware(cfg.Auth.APIKey))
		}

		r.Get("/v1/health", h.HandleHealthGet)
		r.Post("/v1/health", h.HandleHealthPost)

		r.Get("/v1/models", h.HandleModels)

		r.Post("/v1/vamp", h.HandleVamp)
		r.Post("/v1/mask", h.HandleMaskPreview)
	})

	return r
}
