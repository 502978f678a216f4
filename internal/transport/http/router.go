package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"macromon/internal/config"
	"macromon/internal/middleware"
	"macromon/internal/storage"
)

// RouterDeps holds everything the router mounts.
type RouterDeps struct {
	Runner         Runner
	Reader         storage.MetricsReader
	WebSocket      http.HandlerFunc // nil disables /ws
	PrometheusHTTP http.Handler     // nil disables /metrics
	Logger         *slog.Logger
}

// NewRouter assembles the middleware chain and routes.
func NewRouter(cfg *config.Config, deps RouterDeps) chi.Router {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.StructuredLogger(logger))
	r.Use(middleware.Recoverer(logger))
	r.Use(middleware.CORS(middleware.CORSConfig{AllowedOrigins: cfg.Security.AllowedOrigins}))
	if cfg.Security.RateLimit.Enabled {
		rl := middleware.NewRateLimiter(cfg.Security.RateLimit.RPS, cfg.Security.RateLimit.Burst, logger)
		r.Use(rl.Handler)
	}
	r.Use(render.SetContentType(render.ContentTypeJSON))

	runHandler := NewRunHandler(deps.Runner, cfg.Server.RunTimeout, logger)
	metricsHandler := NewMetricsHandler(deps.Reader, logger)

	r.Route("/api", func(r chi.Router) {
		r.Post("/runs", runHandler.Start)
		r.Get("/metrics/{metricID}", metricsHandler.Get)
	})

	r.Get("/healthz", healthz)

	if deps.PrometheusHTTP != nil {
		r.Handle("/metrics", deps.PrometheusHTTP)
	}
	if deps.WebSocket != nil {
		r.Get("/ws", deps.WebSocket)
	}

	return r
}

func healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok","time":"` + time.Now().UTC().Format(time.RFC3339) + `"}`))
}
