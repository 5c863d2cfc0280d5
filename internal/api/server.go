package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/edvin/domains/internal/api/handler"
	mw "github.com/edvin/domains/internal/api/middleware"
)

// Pinger reports database reachability for /readyz. *pgxpool.Pool satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	router     chi.Router
	logger     zerolog.Logger
	db         Pinger
	domains    handler.DomainService
	subdomains handler.SubdomainService
	apiToken   string
}

func NewServer(logger zerolog.Logger, db Pinger, domains handler.DomainService, subdomains handler.SubdomainService, apiToken string) *Server {
	s := &Server{
		router:     chi.NewRouter(),
		logger:     logger,
		db:         db,
		domains:    domains,
		subdomains: subdomains,
		apiToken:   apiToken,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
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

	// Asked by the TLS terminator before on-demand issuance; no auth.
	guard := handler.NewTLSGuard(s.domains)
	s.router.Get("/verify-domain", guard.VerifyDomain)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(mw.BearerAuth(s.apiToken))

		domain := handler.NewDomain(s.domains)
		r.Get("/tenants/{tenantID}/domains", domain.List)
		r.Post("/tenants/{tenantID}/domains", domain.Create)
		r.Get("/domains/{id}", domain.Get)
		r.Delete("/domains/{id}", domain.Delete)
		r.Post("/domains/{id}/dns-check", domain.DNSCheck)
		r.Post("/domains/{id}/verify", domain.Verify)
		r.Post("/domains/{id}/reactivate", domain.Reactivate)
		r.Post("/domains/{id}/suspend", domain.Suspend)

		subdomain := handler.NewSubdomain(s.subdomains)
		r.Get("/subdomains/{namespace}/{ownerID}", subdomain.Get)
		r.Put("/subdomains/{namespace}/{ownerID}", subdomain.Assign)
		r.Delete("/subdomains/{namespace}/{ownerID}", subdomain.Delete)
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	checks := map[string]string{}
	healthy := true

	if err := s.db.Ping(ctx); err != nil {
		checks["db"] = err.Error()
		healthy = false
	} else {
		checks["db"] = "ok"
	}

	w.Header().Set("Content-Type", "application/json")
	if healthy {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(checks)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
