package httptransport

import (
	"log/slog"
	"net/http"
	"net/netip"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"backoffice/pkg/platform/middleware/metadata"
	"backoffice/pkg/platform/middleware/ratelimit"
	"backoffice/pkg/platform/middleware/requesttime"
	"backoffice/pkg/requestcontext"
)

// RouterConfig holds the boundary's cross-cutting settings.
type RouterConfig struct {
	Verifier       *TokenVerifier
	RateLimit      *ratelimit.Config
	AllowedOrigins []string
	Timeout        time.Duration
	Logger         *slog.Logger
	// TrustIdentityHeaders accepts X-User-* and X-Tenant-* identity without a
	// bearer token.
	TrustIdentityHeaders bool
	// TrustedProxies may set X-Forwarded-For and X-Real-IP.
	TrustedProxies []netip.Prefix
	// Metrics is mounted at /metrics outside the identity and rate limit chain.
	Metrics http.Handler
}

// NewRouter builds the middleware chain and mounts h.
func NewRouter(h *Handler, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(metadata.New(cfg.TrustedProxies))
	r.Use(requesttime.Middleware)
	if cfg.Logger != nil {
		r.Use(requestLogger(cfg.Logger))
	}
	if len(cfg.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{
				"Authorization", "Content-Type",
				metadata.HeaderRequestID, metadata.HeaderCorrelationID, metadata.HeaderDeviceID,
				HeaderTenantID, HeaderTenantRegion, HeaderTenantLocale,
				HeaderUserID, HeaderUserEmail, HeaderUserRole, HeaderUserTenantID, HeaderSessionID,
			},
			ExposedHeaders: []string{metadata.HeaderRequestID, "Retry-After"},
			MaxAge:         300,
		}))
	}
	if cfg.RateLimit != nil {
		r.Use(ratelimit.New(*cfg.RateLimit).Middleware)
	}
	if cfg.Timeout > 0 {
		r.Use(chimw.Timeout(cfg.Timeout))
	}
	r.Use(Identity(cfg.Verifier, cfg.TrustIdentityHeaders, cfg.Logger))

	h.Register(r)
	if cfg.Metrics == nil {
		return r
	}

	root := chi.NewRouter()
	root.Method(http.MethodGet, "/metrics", cfg.Metrics)
	root.Mount("/", r)
	return root
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.InfoContext(r.Context(), "http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", requestcontext.RequestID(r.Context()),
			)
		})
	}
}
