package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chi_middleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouteRegistrar is implemented by every handler in this package.
type RouteRegistrar interface {
	RegisterRoutes(r chi.Router)
}

// RouterConfig holds the middleware settings of NewRouter.
type RouterConfig struct {
	// RequestTimeout bounds each request; zero disables it.
	RequestTimeout time.Duration
	// TrustProxyHeaders rewrites RemoteAddr from X-Forwarded-For / X-Real-IP.
	// Left off, clients cannot choose their own rate-limit key.
	TrustProxyHeaders bool
}

// NewRouter builds the gateway router with the shared middleware stack and
// GET /metrics.
func NewRouter(cfg RouterConfig, handlers ...RouteRegistrar) http.Handler {
	r := chi.NewRouter()
	r.Use(chi_middleware.RequestID)
	if cfg.TrustProxyHeaders {
		r.Use(chi_middleware.RealIP)
	}
	r.Use(chi_middleware.Recoverer)
	r.Use(CORS)
	r.Use(PrometheusMetricsMiddleware)
	if cfg.RequestTimeout > 0 {
		r.Use(chi_middleware.Timeout(cfg.RequestTimeout))
	}

	r.Handle("/metrics", promhttp.Handler())
	for _, h := range handlers {
		h.RegisterRoutes(r)
	}
	return r
}
