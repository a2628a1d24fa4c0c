package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/hongminglow/staff-portal/internal/admin"
	"github.com/hongminglow/staff-portal/internal/auth"
	"github.com/hongminglow/staff-portal/internal/config"
	"github.com/hongminglow/staff-portal/internal/http/handlers"
	"github.com/hongminglow/staff-portal/internal/invite"
	"github.com/hongminglow/staff-portal/internal/metrics"
	"github.com/hongminglow/staff-portal/internal/middleware"
	"github.com/hongminglow/staff-portal/internal/roster"
)

// Server wraps an http.Server with configured routes.
type Server struct {
	inner *http.Server
}

// New wires up middleware, routes, and returns a ready server. svc is the
// raw administration backend; New adds instrumentation around it.
func New(cfg config.Config, svc admin.Service, logger *logrus.Logger, reg *prometheus.Registry) *Server {
	collector := metrics.NewCollector(reg)
	svc = admin.Instrument(svc, collector)

	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTIssuer, time.Hour)
	rosters := roster.NewRegistry(svc, cfg.SuperAdminEmail, cfg.SessionCacheSize, cfg.SessionTTL,
		roster.WithRejectionObserver(collector.ObserveRejectedMutation))
	metrics.RegisterSessionGauge(reg, rosters.Len)
	// The roster refreshes once an invite's success message has been shown.
	forms := invite.NewRegistry(svc, cfg.SessionCacheSize, cfg.SessionTTL, func(p auth.Principal) {
		if err := rosters.Refresh(auth.WithPrincipal(context.Background(), p), p); err != nil {
			logger.WithError(err).WithField("principal", p.Email).Warn("reload roster after invite failed")
		}
	}, invite.WithSuccessDisplay(cfg.InviteSuccessDisplay))
	inviteLimit := middleware.NewRateLimiter(cfg.InviteRatePerMinute)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.Logging(logger))
	r.Use(middleware.CORS(cfg.CORSOrigins))

	handlers.NewHealthHandler(time.Now()).Register(r)
	r.Method(http.MethodGet, "/metrics", metrics.Handler(reg))

	adminHandler := handlers.NewAdminHandler(rosters, forms, logger)
	r.Group(func(r chi.Router) {
		r.Use(middleware.Authenticate(tokens))
		adminHandler.Register(r, inviteLimit.Middleware)
	})

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddress(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	return &Server{inner: httpServer}
}

// Handler exposes the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.inner.Handler
}

// Start begins serving HTTP traffic.
func (s *Server) Start() error {
	return s.inner.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.inner.Shutdown(ctx)
}
