package httptransport

import (
	"log/slog"
	"net/http"
	"net/netip"
	"time"

	"github.com/go-chi/chi/v5"

	"warden/internal/platform/metrics"
	"warden/internal/platform/middleware"
	"warden/pkg/platform/middleware/metadata"
	"warden/pkg/platform/middleware/requesttime"
)

const defaultRequestTimeout = 30 * time.Second

// RouterConfig carries the cross-cutting dependencies of the router.
type RouterConfig struct {
	Logger  *slog.Logger
	Metrics *metrics.Metrics
	// Validator enables bearer auth on /v1 when set.
	Validator      middleware.JWTValidator
	RequestTimeout time.Duration
	// RateLimit runs on /v1 before auth when set.
	RateLimit func(http.Handler) http.Handler
	// TrustedProxies may set the caller address through forwarding headers.
	TrustedProxies []netip.Prefix
}

// NewRouter wires all endpoints. Health and metrics stay unauthenticated.
func NewRouter(h *Handler, cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	r := chi.NewRouter()
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID)
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata(cfg.TrustedProxies...))
	if cfg.Metrics != nil {
		r.Use(middleware.LatencyMiddleware(cfg.Metrics))
	}

	r.Get("/healthz", h.handleHealth)
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())
	}

	r.Route("/v1", func(v1 chi.Router) {
		v1.Use(middleware.Logger(logger))
		v1.Use(middleware.Timeout(timeout))
		v1.Use(middleware.ContentTypeJSON)
		if cfg.RateLimit != nil {
			v1.Use(cfg.RateLimit)
		}
		if cfg.Validator != nil {
			v1.Use(middleware.RequireAuth(cfg.Validator, logger))
		}

		v1.Post("/verifications", h.handleVerify)
		v1.Get("/addresses/{address}", h.handleAddress)
		v1.Get("/processors", h.handleProcessors)
		v1.Post("/punishments", h.handleIssuePunishment)
		v1.Post("/punishments/{id}/pardon", h.handlePardon)
	})
	return r
}
