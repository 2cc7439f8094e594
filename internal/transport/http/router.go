package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"fintools/internal/config"
	"fintools/internal/middleware"
)

// RouterDeps carries the handlers and cross-cutting pieces the router mounts.
type RouterDeps struct {
	Config  *config.Config
	Logger  *slog.Logger
	Tools   *ToolsHandler
	Stream  *StreamHandler
	Health  *HealthHandler
	WS      http.Handler
	Metrics http.Handler
}

// NewRouter assembles the HTTP surface.
func NewRouter(deps RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.StructuredLogger(deps.Logger))
	r.Use(middleware.Recoverer(deps.Logger))
	r.Use(middleware.SecurityHeaders)

	if deps.Config.Security.EnableCORS {
		r.Use(middleware.CORS(middleware.CORSConfig{
			AllowedOrigins: deps.Config.Security.AllowedOrigins,
		}))
	}
	if deps.Config.Security.RateLimit.Enabled {
		limiter := middleware.NewRateLimiter(
			deps.Config.Security.RateLimit.RPS,
			deps.Config.Security.RateLimit.Burst,
			deps.Logger,
		)
		r.Use(limiter.Handler)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", deps.Health.Check)
		r.Get("/tools", deps.Tools.List)
		r.Post("/tools/invoke", deps.Tools.Invoke)
		r.Post("/tools/stream", deps.Stream.Stream)
	})

	if deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics)
	}
	if deps.WS != nil {
		r.Handle("/ws", deps.WS)
	}

	return r
}
