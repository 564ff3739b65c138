// Package portal talks to the band office's central staff portal, which can
// stand in for a local database as the timesheet store.
package portal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/Ironbeetle/TCN-Communications-sub000/internal/timesheet"
	"github.com/felixgeelhaar/fortify/circuitbreaker"
	"github.com/felixgeelhaar/fortify/retry"
)

// EnvelopeVersion is the only envelope version this client understands.
const EnvelopeVersion = "1"

// maxBodySize bounds how much of a portal reply is read.
const maxBodySize = 4 << 20

// Config configures a Client.
type Config struct {
	BaseURL string
	APIKey  string

	// Timeout bounds a single HTTP attempt (default: 15s).
	Timeout time.Duration

	// MaxAttempts for retryable failures (default: 3).
	MaxAttempts int

	// InitialDelay between retries (default: 200ms).
	InitialDelay time.Duration

	// FailureThreshold of consecutive failures that opens the breaker (default: 5).
	FailureThreshold int

	// OpenTimeout is how long the breaker stays open (default: 30s).
	OpenTimeout time.Duration

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = 15 * time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = 200 * time.Millisecond
	}
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 5
	}
	if c.OpenTimeout <= 0 {
		c.OpenTimeout = 30 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// envelope is the portal's reply shape. It is decoded in exactly one place,
// Client.do.
type envelope struct {
	Version string          `json:"version"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   *apiError       `json:"error,omitempty"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// StatusError is a non-retryable portal reply outside the 2xx range.
type StatusError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("portal: status %d", e.StatusCode)
	}
	return fmt.Sprintf("portal: status %d: %s", e.StatusCode, e.Message)
}

// Is maps conflict replies onto timesheet.ErrVersionConflict.
func (e *StatusError) Is(target error) bool {
	return target == timesheet.ErrVersionConflict && e.StatusCode == http.StatusConflict
}

// reply is one raw HTTP exchange result.
type reply struct {
	status int
	body   []byte
}

// Client is a resilient JSON client for the portal API.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  *slog.Logger

	breaker circuitbreaker.CircuitBreaker[*reply]
	retrier retry.Retry[*reply]
	open    atomic.Bool
}

// NewClient creates a client. BaseURL is required.
func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("portal base URL is required")
	}
	cfg.defaults()

	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		http:    newHTTPClient(cfg.Timeout),
		logger:  cfg.Logger,
	}

	threshold := cfg.FailureThreshold
	c.breaker = circuitbreaker.New[*reply](circuitbreaker.Config{
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts circuitbreaker.Counts) bool {
			return int(counts.ConsecutiveFailures) >= threshold
		},
		OnStateChange: func(from, to circuitbreaker.State) {
			c.open.Store(strings.EqualFold(to.String(), "open"))
			c.logger.Warn("portal circuit breaker state change",
				"from", from.String(),
				"to", to.String())
		},
	})

	c.retrier = retry.New[*reply](retry.Config{
		MaxAttempts:   cfg.MaxAttempts,
		InitialDelay:  cfg.InitialDelay,
		MaxDelay:      5 * time.Second,
		Multiplier:    2.0,
		BackoffPolicy: retry.BackoffExponential,
		Jitter:        true,
		IsRetryable: func(err error) bool {
			return errors.Is(err, timesheet.ErrStorageUnavailable)
		},
	})

	return c, nil
}

func newHTTPClient(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   5 * time.Second,
		ResponseHeaderTimeout: timeout,
		IdleConnTimeout:       90 * time.Second,
		MaxIdleConns:          10,
		MaxIdleConnsPerHost:   5,
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}

// BreakerOpen reports whether the circuit breaker is currently rejecting calls.
func (c *Client) BreakerOpen() bool {
	return c.open.Load()
}

// Ping checks the portal's health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/api/v1/health", nil, nil)
}

// do sends in as JSON, decodes the envelope and unmarshals its data into out.
// Transport failures, 429 and 5xx replies are retried and count against the
// breaker; other non-2xx replies surface as *StatusError.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var payload []byte
	if in != nil {
		var err error
		if payload, err = json.Marshal(in); err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
	}

	attempt := func(ctx context.Context) (*reply, error) {
		return c.send(ctx, method, path, payload)
	}
	rep, err := c.breaker.Execute(ctx, func(ctx context.Context) (*reply, error) {
		return c.retrier.Do(ctx, attempt)
	})
	if err != nil {
		if errors.Is(err, timesheet.ErrStorageUnavailable) || errors.Is(err, context.Canceled) {
			return err
		}
		// breaker open, or retries exhausted with an unclassified error
		return fmt.Errorf("%s %s: %w: %v", method, path, timesheet.ErrStorageUnavailable, err)
	}

	var env envelope
	if len(rep.body) > 0 {
		if err := json.Unmarshal(rep.body, &env); err != nil {
			return fmt.Errorf("decode %s %s: %w", method, path, err)
		}
		if env.Version != "" && env.Version != EnvelopeVersion {
			return fmt.Errorf("%s %s: unsupported envelope version %q", method, path, env.Version)
		}
	}

	if rep.status < 200 || rep.status > 299 {
		se := &StatusError{StatusCode: rep.status}
		if env.Error != nil {
			se.Code = env.Error.Code
			se.Message = env.Error.Message
		}
		return se
	}
	if env.Error != nil {
		return &StatusError{StatusCode: rep.status, Code: env.Error.Code, Message: env.Error.Message}
	}

	if out != nil && len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decode %s %s data: %w", method, path, err)
		}
	}
	return nil
}

// send performs one HTTP attempt.
func (c *Client) send(ctx context.Context, method, path string, payload []byte) (*reply, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%s %s: %w: %v", method, path, timesheet.ErrStorageUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w: read body: %v", method, path, timesheet.ErrStorageUnavailable, err)
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		c.logger.Debug("portal transient failure", "method", method, "path", path, "status", resp.StatusCode)
		return nil, fmt.Errorf("%s %s: %w: status %d", method, path, timesheet.ErrStorageUnavailable, resp.StatusCode)
	}
	return &reply{status: resp.StatusCode, body: data}, nil
}
