package health

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vietddude/syncwatch/internal/analytics"
)

// Syncer is the subset of the scheduler the server drives.
type Syncer interface {
	ForceSync(ctx context.Context)
}

// Analytics answers series queries.
type Analytics interface {
	Summary(ctx context.Context, accountID string, tf analytics.Timeframe, metric analytics.Metric) (*analytics.Summary, error)
}

// Server provides HTTP endpoints for health, analytics and manual sync.
type Server struct {
	monitor   *Monitor
	syncer    Syncer
	analytics Analytics
	router    *chi.Mux
	server    *http.Server
	logger    *slog.Logger
}

// NewServer creates a server listening on port.
func NewServer(monitor *Monitor, syncer Syncer, svc Analytics, port int, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	s := &Server{
		monitor:   monitor,
		syncer:    syncer,
		analytics: svc,
		router:    r,
		logger:    logger,
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}

	r.Get("/health", s.handleHealth)
	r.Get("/health/detailed", s.handleDetailed)
	r.Get("/analytics/{accountID}", s.handleAnalytics)
	r.Post("/sync", s.handleSync)
	r.Handle("/metrics", promhttp.Handler())

	return s
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until Stop. A clean shutdown returns nil.
func (s *Server) Start() error {
	s.logger.Info("Starting health server", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.monitor.CheckHealth(r.Context())
	code := http.StatusOK
	if report.Status == StatusCritical {
		code = http.StatusServiceUnavailable
	}
	s.writeJSON(w, code, map[string]string{"status": string(report.Status)})
}

func (s *Server) handleDetailed(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.monitor.CheckHealth(r.Context()))
}

func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	tfParam := r.URL.Query().Get("timeframe")
	if tfParam == "" {
		tfParam = string(analytics.TimeframeWeek)
	}
	tf, err := analytics.ParseTimeframe(tfParam)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	metric, err := analytics.ParseMetric(r.URL.Query().Get("metric"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	summary, err := s.analytics.Summary(r.Context(), chi.URLParam(r, "accountID"), tf, metric)
	if err != nil {
		s.logger.Error("Analytics query failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	s.syncer.ForceSync(r.Context())
	s.writeJSON(w, http.StatusAccepted, map[string]string{"status": "triggered"})
}

func (s *Server) writeError(w http.ResponseWriter, code int, err error) {
	s.writeJSON(w, code, map[string]string{"error": err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	body, err := sonic.Marshal(v)
	if err != nil {
		s.logger.Error("Failed to encode response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(body)
}
