// Package api implements the JSON REST surface over the Resource Manager:
// routing, decode, call, encode. No business logic lives here; every
// operation is a thin translation onto a ResourceManager call, with the
// error taxonomy mapped to 404/400/409 at the boundary.
package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/cloudkeep/poolkeeper/pkg/log"
	"github.com/cloudkeep/poolkeeper/pkg/manager"
	"github.com/cloudkeep/poolkeeper/pkg/metrics"
)

// Server serves the HTTP API for a single ResourceManager instance.
type Server struct {
	manager *manager.ResourceManager
	logger  zerolog.Logger
	httpSrv *http.Server
}

// NewServer returns a Server wrapping mgr.
func NewServer(mgr *manager.ResourceManager) *Server {
	return &Server{
		manager: mgr,
		logger:  log.WithComponent("api"),
	}
}

// Router builds the chi router with the full route table plus the
// operational endpoints (/metrics, /health, /ready, /live).
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.StripSlashes)
	r.Use(chimiddleware.Recoverer)
	r.Use(s.instrument)

	r.Get("/", s.listVersions)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/", s.listCollections)
		r.Get("/drivers", s.listDrivers)
		r.Get("/drivers/{name}", s.showDriver)
		r.Get("/resources", s.listResources)
		r.Post("/resources", s.createResource)
		r.Get("/resources/{id}", s.showResource)
		r.Put("/resources/{id}", s.updateResource)
		r.Delete("/resources/{id}", s.deleteResource)
	})

	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	r.Get("/health", metrics.HealthHandler())
	r.Get("/ready", metrics.ReadyHandler())
	r.Get("/live", metrics.LivenessHandler())

	return r
}

// Start listens on addr and serves until Shutdown is called or the
// listener fails.
func (s *Server) Start(addr string) error {
	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info().Str("addr", addr).Msg("API server listening")
	err := s.httpSrv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// instrument records per-request metrics and a debug log line.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		timer := metrics.NewTimer()

		next.ServeHTTP(ww, r)

		pattern := chi.RouteContext(r.Context()).RoutePattern()
		if pattern == "" {
			pattern = r.URL.Path
		}
		metrics.APIRequestsTotal.WithLabelValues(r.Method, pattern, strconv.Itoa(ww.Status())).Inc()
		timer.ObserveDurationVec(metrics.APIRequestDuration, r.Method)

		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", timer.Duration()).
			Msg("request")
	})
}
