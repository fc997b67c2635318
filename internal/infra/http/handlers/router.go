package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/hauldesk/hauldesk-api/internal/infra/http/middleware"
)

type RouterConfig struct {
	AllowedOrigins []string
	Quote          *QuoteHandler
	SocialWebhook  *SocialWebhookHandler
	Health         *HealthHandler
	Logger         *zap.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(logger))
	r.Use(chimw.Recoverer)
	r.Use(middleware.Metrics)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		MaxAge:         300,
	}))

	if cfg.Health != nil {
		r.Get("/healthz", cfg.Health.Handle)
	}
	r.Handle("/metrics", promhttp.Handler())

	if cfg.Quote != nil {
		r.Post("/api/quotes", cfg.Quote.Handle)
	}
	if cfg.SocialWebhook != nil {
		r.Post("/webhooks/social", cfg.SocialWebhook.Handle)
	}

	return r
}
