package httptransport

import (
	"log/slog"
	"net/http"
	"net/netip"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"proctor/internal/platform/health"
	"proctor/pkg/platform/middleware/admin"
	"proctor/pkg/platform/middleware/auth"
	"proctor/pkg/platform/middleware/device"
	"proctor/pkg/platform/middleware/metadata"
	request "proctor/pkg/platform/middleware/request"
	"proctor/pkg/platform/middleware/requesttime"
)

const requestTimeout = 30 * time.Second

// RouteRegistrar is implemented by every domain handler.
type RouteRegistrar interface {
	Register(r chi.Router)
}

// AdminRouteRegistrar is implemented by handlers with instructor routes.
type AdminRouteRegistrar interface {
	RegisterAdmin(r chi.Router)
}

// Config is everything the router needs.
type Config struct {
	Logger         *slog.Logger
	Tokens         auth.JWTValidator
	AdminToken     string
	TrustedProxies []netip.Prefix
	MaxBodyBytes   int64
	Gatherer       prometheus.Gatherer
	Health         *health.Handler
	// Student routes mount behind bearer auth.
	Student []RouteRegistrar
	// Admin routes mount behind the admin token. An empty AdminToken disables them.
	Admin []AdminRouteRegistrar
}

// NewRouter wires all public endpoints with middleware.
func NewRouter(cfg Config) http.Handler {
	r := chi.NewRouter()

	r.Use(request.RequestID)
	r.Use(request.Recovery(cfg.Logger))
	r.Use(request.Logger(cfg.Logger))
	r.Use(metadata.New(cfg.TrustedProxies).Handler)
	r.Use(device.Middleware)
	r.Use(requesttime.Middleware)
	r.Use(chimw.Timeout(requestTimeout))
	if cfg.MaxBodyBytes > 0 {
		r.Use(request.BodyLimit(cfg.MaxBodyBytes))
	}
	r.Use(request.ContentTypeJSON)

	if cfg.Health != nil {
		cfg.Health.Register(r)
	}
	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(cfg.Tokens, cfg.Logger))
		for _, h := range cfg.Student {
			h.Register(r)
		}
	})

	if cfg.AdminToken != "" {
		r.Group(func(r chi.Router) {
			r.Use(admin.RequireAdminToken(cfg.AdminToken, cfg.Logger))
			for _, h := range cfg.Admin {
				h.RegisterAdmin(r)
			}
		})
	}

	return r
}
