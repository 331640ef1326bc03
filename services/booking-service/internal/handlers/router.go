package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/md-rashed-zaman/slotkeeper/libs/httpx"
	"github.com/md-rashed-zaman/slotkeeper/libs/runtime"
)

type RouterConfig struct {
	ServiceName string
	Logger      *slog.Logger
	Booking     *BookingHandler
	// StripeWebhook is mounted at /webhooks/stripe when set.
	StripeWebhook http.Handler
	// Metrics is mounted at /metrics when set.
	Metrics           http.Handler
	Ready             []runtime.ReadyCheck
	CORS              httpx.CORSPolicy
	RateLimiter       httpx.Limiter
	RateLimitFailOpen bool
	BodyLimitBytes    int64
	RequestTimeout    time.Duration
}

// NewRouter assembles the HTTP surface: API routes behind rate limiting, plus probes,
// metrics and the payment webhook.
func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.BodyLimitBytes <= 0 {
		cfg.BodyLimitBytes = 1 << 20
	}
	r := chi.NewRouter()
	r.Get("/healthz", runtime.HealthHandler())
	r.Get("/readyz", runtime.ReadyHandler(cfg.Ready...))
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}
	if cfg.StripeWebhook != nil {
		r.Method(http.MethodPost, "/webhooks/stripe", cfg.StripeWebhook)
	}

	var limiter httpx.Middleware
	if cfg.RateLimiter != nil {
		limiter = httpx.WithRateLimit(cfg.RateLimiter, httpx.ActorOrClientKey, cfg.Logger, cfg.RateLimitFailOpen)
	}
	r.Group(func(r chi.Router) {
		if limiter != nil {
			r.Use(limiter)
		}
		r.Use(httpx.WithBodyLimit(cfg.BodyLimitBytes))
		cfg.Booking.Register(r)
	})

	var timeout httpx.Middleware
	if cfg.RequestTimeout > 0 {
		timeout = httpx.WithTimeout(cfg.RequestTimeout)
	}
	h := httpx.Chain(r,
		httpx.WithRequestID,
		httpx.WithAccessLog(cfg.Logger),
		httpx.WithCORS(cfg.CORS),
		timeout,
	)
	return otelhttp.NewHandler(h, cfg.ServiceName)
}
