package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Ironbeetle/TCN-Communications-sub000/internal/config"
	"github.com/Ironbeetle/TCN-Communications-sub000/internal/metrics"
	"github.com/Ironbeetle/TCN-Communications-sub000/internal/payperiod"
	"github.com/Ironbeetle/TCN-Communications-sub000/internal/timesheet"
	"github.com/felixgeelhaar/fortify/ratelimit"
)

// Version is reported by the status endpoint.
const Version = "0.1.0"

// Server represents the tcnd HTTP server
type Server struct {
	cfg     *config.LocalConfig
	server  *http.Server
	router  *http.ServeMux
	handler http.Handler
	limiter ratelimit.RateLimiter
	started time.Time

	service *timesheet.Service
	ping    func(ctx context.Context) error
	history EventHistory
}

// EventHistory returns the recorded lifecycle events of a timesheet.
type EventHistory interface {
	History(ctx context.Context, timesheetID string) ([]timesheet.Event, error)
}

// ServerConfig holds configuration for creating a new server
type ServerConfig struct {
	Config  *config.LocalConfig
	Service *timesheet.Service

	// Ping checks the storage backend for the status endpoint. Optional.
	Ping func(ctx context.Context) error

	// History serves the audit trail route. Optional.
	History EventHistory
}

// NewServer creates a new daemon server
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Config == nil {
		return nil, errors.New("server config is required")
	}
	if cfg.Service == nil {
		return nil, errors.New("timesheet service is required")
	}

	s := &Server{
		cfg:     cfg.Config,
		router:  http.NewServeMux(),
		service: cfg.Service,
		ping:    cfg.Ping,
		history: cfg.History,
		started: time.Now(),
	}
	s.setupRoutes()

	var h http.Handler = s.router
	if rl := cfg.Config.Daemon.RateLimit; rl.Enabled {
		s.limiter = ratelimit.New(&ratelimit.Config{
			Rate:     rl.RequestsPerMinute,
			Burst:    rl.Burst,
			Interval: time.Minute,
		})
		h = rateLimitMiddleware(s.limiter)(h)
	}
	// Outermost first: correlation ID, then recovery, logging and limits.
	s.handler = correlationIDMiddleware(recoveryMiddleware(loggingMiddleware(h)))

	addr := fmt.Sprintf("%s:%d", cfg.Config.Daemon.Bind, cfg.Config.Daemon.Port)
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s, nil
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("GET /v1/health", s.handleHealth)
	s.router.HandleFunc("GET /v1/status", s.handleStatus)
	if s.cfg.Metrics.Enabled {
		s.router.Handle("GET /metrics", metrics.Handler())
	}

	// Timesheets
	s.router.HandleFunc("POST /v1/timesheets/current", s.handleCurrent)
	s.router.HandleFunc("GET /v1/timesheets/{id}", s.handleGetTimesheet)
	s.router.HandleFunc("GET /v1/users/{userID}/timesheets", s.handleUserTimesheets)
	s.router.HandleFunc("GET /v1/timesheets", s.handleAllTimesheets)
	s.router.HandleFunc("DELETE /v1/timesheets/{id}", s.handleDeleteTimesheet)
	s.router.HandleFunc("GET /v1/timesheets/{id}/history", s.handleHistory)

	// Entries
	s.router.HandleFunc("PUT /v1/timesheets/{id}/entries", s.handleSaveEntry)
	s.router.HandleFunc("DELETE /v1/entries/{entryID}", s.handleDeleteEntryByID)
	s.router.HandleFunc("DELETE /v1/timesheets/{id}/entries/{date}", s.handleDeleteEntryByDate)

	// Lifecycle
	s.router.HandleFunc("POST /v1/timesheets/{id}/submit", s.handleTransition(timesheet.OpSubmit))
	s.router.HandleFunc("POST /v1/timesheets/{id}/approve", s.handleTransition(timesheet.OpApprove))
	s.router.HandleFunc("POST /v1/timesheets/{id}/reject", s.handleTransition(timesheet.OpReject))
	s.router.HandleFunc("POST /v1/timesheets/{id}/revert", s.handleTransition(timesheet.OpRevert))

	s.router.HandleFunc("GET /v1/pay-period", s.handlePayPeriod)
	s.router.HandleFunc("PUT /v1/staff/{userID}", s.handleSaveStaff)

	// Command-name route kept for desktop callers
	s.router.HandleFunc("POST /v1/rpc/{command}", s.handleRPC)
}

// Handler returns the full middleware chain, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.server.Addr
}

// Start starts the HTTP server
func (s *Server) Start() error {
	slog.Info("starting tcn daemon",
		"addr", s.server.Addr,
		"backend", s.cfg.Storage.Backend,
		"metrics", s.cfg.Metrics.Enabled,
	)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("shutting down daemon...")

	if s.limiter != nil {
		if err := s.limiter.Close(); err != nil {
			slog.Warn("failed to close rate limiter", "error", err)
		}
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	storage := "ok"
	status := http.StatusOK
	if s.ping != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := s.ping(ctx); err != nil {
			slog.Warn("storage ping failed",
				"correlation_id", GetCorrelationID(r.Context()),
				"error", err,
			)
			storage = "unavailable"
			status = http.StatusServiceUnavailable
		}
	}

	current := s.service.PayPeriodInfo(nil)
	writeJSON(w, status, map[string]any{
		"status":         "running",
		"version":        Version,
		"backend":        s.cfg.Storage.Backend,
		"storage":        storage,
		"events":         s.cfg.Events.Enabled,
		"payroll_anchor": payperiod.FormatDate(s.service.Resolver().Anchor()),
		"pay_period":     current,
		"uptime_seconds": int(time.Since(s.started).Seconds()),
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
