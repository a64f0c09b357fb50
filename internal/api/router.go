package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/auditgate-platform/auditgate/internal/database"
	"github.com/auditgate-platform/auditgate/internal/events"
	mw "github.com/auditgate-platform/auditgate/internal/middleware"
)

// HandlerSet holds handler functions injected from main.go to avoid import cycles.
type HandlerSet struct {
	// Audit handlers
	SubmitAudit        http.HandlerFunc
	GetQuota           http.HandlerFunc
	ListAudits         http.HandlerFunc
	ListContractAudits http.HandlerFunc
	CacheStats         http.HandlerFunc

	// Subscription handlers
	ActivateSubscription   http.HandlerFunc
	DeactivateSubscription http.HandlerFunc
	GetSubscription        http.HandlerFunc

	// Auth middleware
	AuthMiddleware func(http.Handler) http.Handler
}

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	CORSAllowedOrigins []string
	SubmitRateLimiter  func(http.Handler) http.Handler
}

func NewRouter(pool *pgxpool.Pool, natsClient *events.Client, cfg RouterConfig, h HandlerSet) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(mw.SecurityHeaders)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(mw.Metrics)
	r.Use(cors.Handler(mw.CORS(cfg.CORSAllowedOrigins)))

	// Liveness probe — always 200, no dependency checks
	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		JSON(w, http.StatusOK, map[string]string{"status": "alive"})
	})

	// Readiness probe — checks DB and NATS
	readinessHandler := func(w http.ResponseWriter, r *http.Request) {
		health := map[string]string{
			"status":   "healthy",
			"database": "healthy",
			"nats":     "healthy",
		}

		status := http.StatusOK

		if pool != nil {
			if err := database.HealthCheck(r.Context(), pool); err != nil {
				health["database"] = "unhealthy"
				health["status"] = "degraded"
				status = http.StatusServiceUnavailable
			}
		} else {
			health["database"] = "not configured"
		}

		if natsClient != nil && !natsClient.Healthy() {
			health["nats"] = "unhealthy"
			health["status"] = "degraded"
			status = http.StatusServiceUnavailable
		} else if natsClient == nil {
			health["nats"] = "not configured"
		}

		JSON(w, status, health)
	}

	r.Get("/health/ready", readinessHandler)
	r.Get("/health", readinessHandler)

	// Prometheus metrics
	r.Handle("/metrics", promhttp.Handler())

	// API v1 — everything requires an API key
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(h.AuthMiddleware)

		r.Route("/audits", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				if cfg.SubmitRateLimiter != nil {
					r.Use(cfg.SubmitRateLimiter)
				}
				r.Post("/", h.SubmitAudit)
			})
			r.Get("/", h.ListAudits)
		})

		r.Get("/contracts/{subject}/audits", h.ListContractAudits)
		r.Get("/quota", h.GetQuota)
		r.Get("/cache/stats", h.CacheStats)

		r.Route("/subscriptions", func(r chi.Router) {
			r.Post("/", h.ActivateSubscription)
			r.Get("/", h.GetSubscription)
			r.Delete("/", h.DeactivateSubscription)
		})
	})

	return r
}
