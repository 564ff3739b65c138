package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/Ironbeetle/TCN-Communications-sub000/internal/config"
	"github.com/Ironbeetle/TCN-Communications-sub000/internal/daemon"
)

var httpClient = &http.Client{Timeout: 30 * time.Second}

// defaultAddr derives the daemon address from TCN_ADDR or the local config.
func defaultAddr() string {
	if addr := os.Getenv("TCN_ADDR"); addr != "" {
		return addr
	}
	cfg, err := config.LoadLocalConfig()
	if err != nil {
		cfg = config.DefaultLocalConfig()
	}
	return fmt.Sprintf("http://%s:%d", cfg.Daemon.Bind, cfg.Daemon.Port)
}

// call sends body to the daemon and decodes the envelope. A failed
// envelope becomes an error carrying the daemon's message.
func call(ctx context.Context, method, path string, body any) (*daemon.Response, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, daemonAddr+path, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("daemon not reachable at %s (run 'tcn start' first): %w", daemonAddr, err)
	}
	defer resp.Body.Close()

	var out daemon.Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("parse response (%s): %w", resp.Status, err)
	}
	if out.Version != daemon.EnvelopeVersion {
		return nil, fmt.Errorf("unsupported response version %q", out.Version)
	}
	if !out.Success {
		if out.Error == "" {
			return nil, errors.New(resp.Status)
		}
		return nil, errors.New(out.Error)
	}
	return &out, nil
}

// isRunning checks if the daemon is running by calling the health endpoint
func isRunning() bool {
	resp, err := httpClient.Get(daemonAddr + "/v1/health")
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
