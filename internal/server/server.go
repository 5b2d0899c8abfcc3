// Package server exposes the backup engine as an HTTP trigger.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"scheduled-backup/internal/backup"
	"scheduled-backup/internal/config"
	"scheduled-backup/internal/logging"
)

// AllowedHeaders are the request headers browsers may send to the trigger
var AllowedHeaders = []string{"authorization", "x-client-info", "apikey", "content-type"}

// Runner performs one backup invocation
type Runner interface {
	Run(ctx context.Context) (*backup.RunReport, error)
}

// HealthChecker reports readiness for /readyz
type HealthChecker interface {
	HealthCheck() *config.HealthCheckResult
}

// Server routes HTTP requests to the runner
type Server struct {
	runner  Runner
	health  HealthChecker
	logger  *logging.Logger
	handler http.Handler
	// base bounds runs started by requests; it outlives any single client connection
	base context.Context
}

// New builds the router. health may be nil, in which case /readyz is not mounted.
func New(runner Runner, health HealthChecker, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	s := &Server{runner: runner, health: health, logger: logger, base: context.Background()}
	s.handler = s.routes()
	return s
}

// Handler returns the root handler
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut,
			http.MethodPatch, http.MethodDelete, http.MethodOptions,
		},
		AllowedHeaders: AllowedHeaders,
		// preflights fall through to the OPTIONS routes below
		OptionsPassthrough: true,
	}))
	r.Use(s.logRequests)

	r.Get("/healthz", s.handleHealthz)
	if s.health != nil {
		r.Get("/readyz", s.handleReadyz)
	}
	r.Handle("/metrics", promhttp.Handler())

	// catch-all first; the OPTIONS registrations replace its OPTIONS endpoint
	for _, path := range []string{"/", "/run"} {
		r.HandleFunc(path, s.handleRun)
		r.Options(path, handlePreflight)
	}

	return r
}

// handlePreflight answers OPTIONS with the permissive headers whether or not Origin was sent
func handlePreflight(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Headers", strings.Join(AllowedHeaders, ", "))
	w.WriteHeader(http.StatusOK)
}

// runContext detaches a run from the client connection. The run still stops
// when the server itself is shutting down.
func (s *Server) runContext(r *http.Request) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	stop := context.AfterFunc(s.base, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.runContext(r)
	defer cancel()

	report, err := s.runner.Run(ctx)
	if err != nil {
		s.logger.WithFields(map[string]interface{}{
			"request_id": chimiddleware.GetReqID(r.Context()),
			"error":      err.Error(),
		}).Error("Backup run failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	result := s.health.HealthCheck()
	status := http.StatusOK
	if result.OverallHealth == "unhealthy" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, result)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.WithFields(map[string]interface{}{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      ww.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
			"request_id":  chimiddleware.GetReqID(r.Context()),
		}).Debug("HTTP request")
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// ListenAndServe serves on addr until ctx is canceled, then shuts down within shutdownTimeout
func (s *Server) ListenAndServe(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	s.base = ctx
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", addr).Info("HTTP trigger listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down HTTP trigger")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}
