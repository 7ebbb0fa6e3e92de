package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/disaster-alert-service/internal/pipeline"
)

// SchedulerControl is the subset of the scheduler exposed over HTTP.
type SchedulerControl interface {
	Trigger() bool
	Enable()
	Disable()
	Enabled() bool
	Running() bool
}

// AlertView supplies the latest normalized records.
type AlertView interface {
	Latest() pipeline.Latest
}

// Server exposes health, readiness, metrics, refresh control and the latest
// normalized alerts.
type Server struct {
	httpServer *http.Server
	scheduler  SchedulerControl
	alerts     AlertView
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics,
// /alerts, /refresh and /scheduler routes.
func NewServer(addr string, ready sharedobs.ReadinessChecker, scheduler SchedulerControl, alerts AlertView, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		scheduler: scheduler,
		alerts:    alerts,
		logger:    logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /alerts", s.handleAlerts)
	mux.HandleFunc("POST /refresh", s.handleRefresh)
	mux.HandleFunc("GET /scheduler", s.handleSchedulerStatus)
	mux.HandleFunc("POST /scheduler/enable", s.handleSchedulerToggle(true))
	mux.HandleFunc("POST /scheduler/disable", s.handleSchedulerToggle(false))

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleAlerts(w http.ResponseWriter, _ *http.Request) {
	sharedobs.WriteJSON(w, http.StatusOK, s.alerts.Latest())
}

func (s *Server) handleRefresh(w http.ResponseWriter, _ *http.Request) {
	if !s.scheduler.Trigger() {
		sharedobs.WriteJSON(w, http.StatusConflict, map[string]string{"status": "cycle in flight"})
		return
	}
	s.logger.Info("manual refresh triggered")
	sharedobs.WriteJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

func (s *Server) handleSchedulerStatus(w http.ResponseWriter, _ *http.Request) {
	sharedobs.WriteJSON(w, http.StatusOK, s.schedulerStatus())
}

func (s *Server) handleSchedulerToggle(enable bool) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		if enable {
			s.scheduler.Enable()
		} else {
			s.scheduler.Disable()
		}
		sharedobs.WriteJSON(w, http.StatusOK, s.schedulerStatus())
	}
}

func (s *Server) schedulerStatus() map[string]bool {
	return map[string]bool{
		"enabled": s.scheduler.Enabled(),
		"running": s.scheduler.Running(),
	}
}
