package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/turtacn/molcore/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/molcore/internal/interfaces/http/handlers"
	"github.com/turtacn/molcore/internal/interfaces/http/middleware"
)

// DefaultMetricsPath is where the metrics handler is mounted when
// RouterConfig.MetricsPath is empty.
const DefaultMetricsPath = "/metrics"

// RouterConfig aggregates the handler and middleware dependencies of the
// route tree. Nil fields are skipped.
type RouterConfig struct {
	// Handlers
	MoleculeHandler *handlers.MoleculeHandler
	HealthHandler   *handlers.HealthHandler

	// Middleware
	CORS        *middleware.CORSConfig
	RateLimiter *middleware.RateLimiter
	Logging     *middleware.LoggingConfig

	// Infrastructure
	Logger         logging.Logger
	HTTPMetrics    middleware.HTTPRecorder
	MetricsHandler http.Handler
	MetricsPath    string
}

// NewRouter constructs the route tree: global middleware, the probe and
// metrics endpoints, and the /api/v1 molecule group.
func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}

	logCfg := middleware.DefaultLoggingConfig()
	if cfg.Logging != nil {
		logCfg = *cfg.Logging
	}

	r := chi.NewRouter()
	r.NotFound(handlers.NotFound)

	// --- Global middleware ---
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Recover(logger.Named("http")))
	r.Use(middleware.RequestLogging(logger.Named("http"), logCfg))
	if cfg.HTTPMetrics != nil {
		r.Use(middleware.Metrics(cfg.HTTPMetrics))
	}
	if cfg.CORS != nil {
		r.Use(middleware.CORS(*cfg.CORS))
	}

	// --- Probes ---
	if cfg.HealthHandler != nil {
		r.Get("/healthz", cfg.HealthHandler.Liveness)
		r.Get("/readyz", cfg.HealthHandler.Readiness)
	}

	if cfg.MetricsHandler != nil {
		path := cfg.MetricsPath
		if path == "" {
			path = DefaultMetricsPath
		}
		r.Handle(path, cfg.MetricsHandler)
	}

	// --- API v1 ---
	r.Route("/api/v1", func(api chi.Router) {
		if cfg.RateLimiter != nil {
			api.Use(cfg.RateLimiter.Handler)
		}
		registerMoleculeRoutes(api, cfg.MoleculeHandler)
	})

	return r
}

// registerMoleculeRoutes mounts the molecule endpoints under /molecules.
// Every operation takes a JSON body, so all routes are POST.
func registerMoleculeRoutes(r chi.Router, h *handlers.MoleculeHandler) {
	if h == nil {
		return
	}
	r.Route("/molecules", func(mr chi.Router) {
		mr.Post("/canonical", h.Canonical)
		mr.Post("/match", h.Match)
		mr.Post("/fingerprint", h.Fingerprint)
		mr.Post("/similarity", h.Similarity)

		mr.Route("/batch", func(br chi.Router) {
			br.Post("/canonical", h.BatchCanonical)
			br.Post("/fingerprint", h.BatchFingerprint)
		})
	})
}
