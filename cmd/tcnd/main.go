package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/Ironbeetle/TCN-Communications-sub000/internal/config"
	"github.com/Ironbeetle/TCN-Communications-sub000/internal/daemon"
	"github.com/Ironbeetle/TCN-Communications-sub000/internal/metrics"
	"github.com/Ironbeetle/TCN-Communications-sub000/internal/queue"
	"github.com/Ironbeetle/TCN-Communications-sub000/internal/timesheet"
)

const (
	pidFileName = "tcnd.pid"
)

func main() {
	if err := run(); err != nil {
		slog.Error("daemon error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	tcnDir, err := config.EnsureTCNDir()
	if err != nil {
		return fmt.Errorf("ensure tcn dir: %w", err)
	}

	cfg, err := config.LoadLocalConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logFile, err := setupLogging(tcnDir, cfg.LogLevel())
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	defer logFile.Close()

	pidPath := filepath.Join(tcnDir, pidFileName)
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	ctx := context.Background()

	backend, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer backend.close()

	resolver, err := cfg.Resolver()
	if err != nil {
		return err
	}

	opts := []timesheet.Option{
		timesheet.WithLogger(slog.Default()),
		timesheet.WithRequireRejectionReason(cfg.Timesheets.RequireRejectionReason),
		timesheet.WithMaxAttempts(cfg.Timesheets.MaxAttempts),
		timesheet.WithStoreTimeout(cfg.StoreTimeout()),
	}
	if cfg.Metrics.Enabled {
		opts = append(opts, timesheet.WithRecorder(metrics.Recorder{}))
	}

	var publishers timesheet.MultiPublisher
	var history daemon.EventHistory
	if backend.audit != nil {
		publishers = append(publishers, backend.audit)
		history = backend.audit
	}
	if cfg.Events.Enabled {
		conn, err := queue.NewConnection(cfg.Events.AMQPURL)
		if err != nil {
			return fmt.Errorf("connect events broker: %w", err)
		}
		defer conn.Close()
		publishers = append(publishers, queue.NewPublisher(conn))
	}
	if len(publishers) > 0 {
		opts = append(opts, timesheet.WithPublisher(publishers))
	}

	svc := timesheet.NewService(backend.store, resolver, opts...)

	server, err := daemon.NewServer(daemon.ServerConfig{
		Config:  cfg,
		Service: svc,
		Ping:    backend.ping,
		History: history,
	})
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}

	// Graceful shutdown
	done := make(chan struct{})
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh

		slog.Info("received signal, shutting down", "signal", sig.String())

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
		close(done)
	}()

	if err := server.Start(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}

	<-done
	slog.Info("daemon stopped")
	return nil
}

func setupLogging(tcnDir string, level slog.Level) (*os.File, error) {
	logPath := filepath.Join(tcnDir, "logs", "tcnd.log")

	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	// JSON to the file, text to stderr for foreground mode
	slog.SetDefault(slog.New(&multiHandler{
		handlers: []slog.Handler{
			slog.NewJSONHandler(logFile, &slog.HandlerOptions{Level: level}),
			slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}),
		},
	}))

	return logFile, nil
}

func writePIDFile(path string) error {
	return os.WriteFile(path, []byte(fmt.Sprintf("%d\n", os.Getpid())), 0644)
}

// multiHandler logs to multiple handlers
type multiHandler struct {
	handlers []slog.Handler
}

func (h *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, r.Level) {
			errs = append(errs, handler.Handle(ctx, r.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (h *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithAttrs(attrs)
	}
	return &multiHandler{handlers: handlers}
}

func (h *multiHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithGroup(name)
	}
	return &multiHandler{handlers: handlers}
}
