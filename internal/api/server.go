package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/edvin/tenantctl/internal/api/handler"
	mw "github.com/edvin/tenantctl/internal/api/middleware"
	"github.com/edvin/tenantctl/internal/config"
	"github.com/edvin/tenantctl/internal/core"
	"github.com/edvin/tenantctl/internal/notify"
	"github.com/edvin/tenantctl/internal/queue"
	"github.com/edvin/tenantctl/internal/runner"
	"github.com/edvin/tenantctl/internal/webhook"
)

type Server struct {
	router   chi.Router
	logger   zerolog.Logger
	services *core.Services
	pool     *pgxpool.Pool
	redis    *queue.RedisQueue
	verifier *webhook.Verifier
	caps     mw.Capabilities
	cfg      *config.Config
}

func NewServer(logger zerolog.Logger, pool *pgxpool.Pool, redis *queue.RedisQueue, cfg *config.Config) (*Server, error) {
	caps, err := mw.LoadCapabilities(cfg.RolesFile)
	if err != nil {
		return nil, err
	}

	notifier := notify.FromConfig(logger, cfg.SlackWebhookURL,
		cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword,
		cfg.AlertEmailFrom, cfg.AlertEmailTo)
	run := runner.NewExecRunner(logger, cfg)
	services := core.NewServices(logger, pool, redis, run, notifier)

	s := &Server{
		router:   chi.NewRouter(),
		logger:   logger,
		services: services,
		pool:     pool,
		redis:    redis,
		verifier: webhook.NewVerifier(logger, cfg.StripeSigningSecret, cfg.PaddlePublicKey, cfg.WebhookSecret),
		caps:     caps,
		cfg:      cfg,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s, nil
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(mw.RequestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(mw.Metrics)
}

func (s *Server) setupRoutes() {
	s.router.Handle("/metrics", promhttp.Handler())
	s.router.Get("/healthz", s.handleHealthz)
	s.router.Get("/readyz", s.handleReadyz)

	// The webhook authenticates itself cryptographically; it never sees
	// API-key auth.
	wh := handler.NewWebhook(s.verifier, s.services.Coordinator)
	s.router.Post("/billing/webhook", wh.Handle)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(mw.Auth(s.pool))

		tenant := handler.NewTenant(s.services.Registry, s.services.Coordinator)
		r.With(mw.RequireCapability(s.caps, "tenant:read")).Get("/tenants", tenant.List)
		r.With(mw.RequireCapability(s.caps, "tenant:read")).Get("/tenants/{name}", tenant.Get)
		r.With(mw.RequireCapability(s.caps, "tenant:write")).Post("/tenants", tenant.Provision)
		r.With(mw.RequireCapability(s.caps, "tenant:delete")).Delete("/tenants/{name}", tenant.Delete)
		r.With(mw.RequireCapability(s.caps, "tenant:write")).Put("/tenants/{name}/quota", tenant.SetQuota)
		r.With(mw.RequireCapability(s.caps, "tenant:read")).Post("/tenants/{name}/quota-check", tenant.CheckQuota)
		r.With(mw.RequireCapability(s.caps, "tenant:write")).Post("/tenants/{name}/suspend", tenant.Suspend)
		r.With(mw.RequireCapability(s.caps, "tenant:write")).Post("/tenants/{name}/unsuspend", tenant.Unsuspend)

		job := handler.NewJob(s.services.Coordinator, s.services.Jobs)
		r.With(mw.RequireCapability(s.caps, "job:write")).Post("/tenants/{name}/backups", job.EnqueueBackup)
		r.With(mw.RequireCapability(s.caps, "job:write")).Post("/tenants/{name}/restores", job.EnqueueRestore)
		r.With(mw.RequireCapability(s.caps, "job:write")).Post("/tenants/{name}/modules", job.EnqueueModules)
		r.With(mw.RequireCapability(s.caps, "job:read")).Get("/jobs", job.ListActive)
		r.With(mw.RequireCapability(s.caps, "job:read")).Get("/jobs/{id}", job.Get)

		audit := handler.NewAudit(s.services.Audit)
		r.With(mw.RequireCapability(s.caps, "audit:read")).Get("/audit-records", audit.List)
	})
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	checks := map[string]string{}
	healthy := true

	if err := s.pool.Ping(ctx); err != nil {
		checks["db"] = err.Error()
		healthy = false
	} else {
		checks["db"] = "ok"
	}

	if err := s.redis.Ping(ctx); err != nil {
		checks["queue"] = err.Error()
		healthy = false
	} else {
		checks["queue"] = "ok"
	}

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(checks)
}
