// Package api exposes the analytics engines over a JSON HTTP interface.
// This is the caller boundary of the system: it supplies records and
// configuration to the stateless core, renders results, and owns the
// deviation/audit side effects through the service layer.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"veritas/app"
	"veritas/internal"
	"veritas/internal/config"
	"veritas/internal/repository"
)

// Server is the HTTP application.
type Server struct {
	router *chi.Mux
	svc    *app.QualityService
	repo   repository.Repository
	cfg    *config.Config
	log    *internal.Logger
}

// NewServer wires the router, middleware, and routes.
func NewServer(cfg *config.Config, svc *app.QualityService, repo repository.Repository) *Server {
	s := &Server{
		router: chi.NewRouter(),
		svc:    svc,
		repo:   repo,
		cfg:    cfg,
		log:    internal.DefaultLogger.With("api"),
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(60 * time.Second))
	if cfg.Server.MetricsEnabled {
		s.router.Use(metricsMiddleware)
		s.router.Handle("/metrics", promhttp.Handler())
	}

	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Post("/capability", s.handleCapability)
		r.Post("/capability/sweep", s.handleCapabilitySweep)
		r.Post("/normality", s.handleNormality)
		r.Post("/anova", s.handleANOVA)
		r.Post("/tukey", s.handleTukey)
		r.Post("/comparability", s.handleComparability)
		r.Post("/stability/poolability", s.handlePoolability)
		r.Post("/stability/projection", s.handleProjection)
		r.Post("/stability/assessment", s.handleStabilityAssessment)
		r.Post("/qc/scan", s.handleQCScan)
		r.Post("/anomaly", s.handleAnomaly)
		r.Post("/reports/summary", s.handleSummaryReport)

		r.Get("/deviations", s.handleListDeviations)
		r.Patch("/deviations/{id}", s.handleUpdateDeviation)
		r.Get("/audit", s.handleAuditLog)
	})

	return s
}

// Handler returns the root http handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe starts the server on the configured port.
func (s *Server) ListenAndServe() error {
	addr := ":" + s.cfg.Server.Port
	s.log.Info("listening on %s", addr)
	return http.ListenAndServe(addr, s.router)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
