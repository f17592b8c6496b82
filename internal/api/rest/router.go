package rest

import (
	"net/http"

	"github.com/davidmoltin/efiling-workflows/internal/api/rest/handlers"
	customMiddleware "github.com/davidmoltin/efiling-workflows/internal/api/rest/middleware"
	"github.com/davidmoltin/efiling-workflows/pkg/config"
	"github.com/davidmoltin/efiling-workflows/pkg/logger"
	"github.com/davidmoltin/efiling-workflows/pkg/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Router holds the HTTP router and dependencies
type Router struct {
	router      *chi.Mux
	logger      *logger.Logger
	handlers    *handlers.Handlers
	tokens      customMiddleware.TokenValidator
	rateLimiter *customMiddleware.RateLimiter
	metrics     *metrics.Metrics
	gatherer    prometheus.Gatherer
}

// NewRouter creates a new HTTP router. gatherer backs /metrics; pass
// prometheus.DefaultGatherer in production.
func NewRouter(
	cfg *config.ServerConfig,
	log *logger.Logger,
	h *handlers.Handlers,
	tokens customMiddleware.TokenValidator,
	m *metrics.Metrics,
	gatherer prometheus.Gatherer,
) *Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(customMiddleware.Logger(log))
	r.Use(middleware.Recoverer)
	r.Use(customMiddleware.Metrics(m))
	r.Use(customMiddleware.SecurityHeaders())
	r.Use(customMiddleware.RequestSizeLimit(customMiddleware.GetMaxRequestSize()))

	// Never allow "*" with credentials enabled
	allowCredentials := true
	for _, origin := range cfg.AllowedOrigins {
		if origin == "*" {
			log.Warn("CORS: Wildcard origin '*' detected with credentials enabled. Disabling credentials for security.")
			allowCredentials = false
			break
		}
	}

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: allowCredentials,
		MaxAge:           300,
	}))

	rps, burst := cfg.RateLimitRPS, cfg.RateLimitBurst
	if rps <= 0 {
		rps = 10
	}
	if burst <= 0 {
		burst = rps * 2
	}

	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	return &Router{
		router:      r,
		logger:      log,
		handlers:    h,
		tokens:      tokens,
		rateLimiter: customMiddleware.NewRateLimiter(rps, burst, log),
		metrics:     m,
		gatherer:    gatherer,
	}
}

// SetupRoutes configures all API routes
func (r *Router) SetupRoutes() {
	r.router.Handle("/metrics", promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{}))

	r.router.Get("/health", r.handlers.Health.Health)
	r.router.Get("/ready", r.handlers.Health.Ready)

	r.router.Route("/api/v1", func(router chi.Router) {
		router.Use(customMiddleware.JWTAuth(r.tokens, r.metrics, r.logger))
		router.Use(customMiddleware.RateLimit(r.rateLimiter))

		router.Route("/workflows", func(router chi.Router) {
			router.Post("/", r.handlers.Workflow.Start)
			router.Get("/{id}", r.handlers.Workflow.Get)
			router.Post("/{id}/stages/{stageId}/actions", r.handlers.Workflow.PerformAction)
		})

		router.Route("/files/{id}", func(router chi.Router) {
			router.Get("/movements", r.handlers.File.Movements)
			router.Get("/workflows", r.handlers.File.Workflows)
			router.Get("/signatures", r.handlers.File.Signatures)
			router.Post("/signatures", r.handlers.File.Sign)
		})

		router.Route("/notifications", func(router chi.Router) {
			router.Get("/", r.handlers.Notification.List)
			router.Post("/{id}/read", r.handlers.Notification.MarkRead)
			if r.handlers.Stream != nil {
				router.Get("/stream", r.handlers.Stream.ServeHTTP)
			}
		})
	})
}

// RateLimiter exposes the limiter so the server can run its cleanup loop
func (r *Router) RateLimiter() *customMiddleware.RateLimiter {
	return r.rateLimiter
}

// Handler returns the http.Handler
func (r *Router) Handler() http.Handler {
	return r.router
}
