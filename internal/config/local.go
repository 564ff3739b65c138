package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/Ironbeetle/TCN-Communications-sub000/internal/payperiod"
	"gopkg.in/yaml.v3"
)

// Storage backends
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendPortal   = "portal"
)

// LocalConfig holds configuration for the office daemon
type LocalConfig struct {
	Daemon     DaemonConfig     `yaml:"daemon"`
	Storage    StorageConfig    `yaml:"storage"`
	Portal     PortalConfig     `yaml:"portal"`
	Payroll    PayrollConfig    `yaml:"payroll"`
	Timesheets TimesheetsConfig `yaml:"timesheets"`
	Events     EventsConfig     `yaml:"events"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// DaemonConfig holds daemon server settings
type DaemonConfig struct {
	Port      int             `yaml:"port"`
	Bind      string          `yaml:"bind"`
	LogLevel  string          `yaml:"log_level"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig bounds requests per client address.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute"`
	Burst             int  `yaml:"burst"`
}

// StorageConfig selects and configures the timesheet store.
type StorageConfig struct {
	Backend     string `yaml:"backend"`
	SQLitePath  string `yaml:"sqlite_path,omitempty"` // default: ~/.tcn/data/timesheets.db
	DatabaseURL string `yaml:"-"`                     // Loaded from secrets.yaml
}

// PortalConfig configures the remote portal backend.
type PortalConfig struct {
	URL            string `yaml:"url,omitempty"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	MaxAttempts    int    `yaml:"max_attempts"`
	APIKey         string `yaml:"-"` // Loaded from secrets.yaml
}

// PayrollConfig pins the biweekly calendar.
type PayrollConfig struct {
	Anchor   string `yaml:"anchor"`
	Timezone string `yaml:"timezone"`
}

// TimesheetsConfig tunes the timesheet service.
type TimesheetsConfig struct {
	RequireRejectionReason bool `yaml:"require_rejection_reason"`
	StoreTimeoutSeconds    int  `yaml:"store_timeout_seconds"`
	MaxAttempts            int  `yaml:"max_attempts"`
}

// EventsConfig enables lifecycle event publishing.
type EventsConfig struct {
	Enabled bool   `yaml:"enabled"`
	AMQPURL string `yaml:"-"` // Loaded from secrets.yaml
}

// MetricsConfig enables the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// SecretsConfig holds connection strings and keys loaded from secrets.yaml
type SecretsConfig struct {
	DatabaseURL  string `yaml:"database_url,omitempty"`
	PortalAPIKey string `yaml:"portal_api_key,omitempty"`
	AMQPURL      string `yaml:"amqp_url,omitempty"`
}

// TCNDir returns the path to ~/.tcn
func TCNDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".tcn"), nil
}

// EnsureTCNDir creates ~/.tcn and its subdirectories if they don't exist
func EnsureTCNDir() (string, error) {
	dir, err := TCNDir()
	if err != nil {
		return "", err
	}

	for _, subdir := range []string{"", "logs", "data"} {
		path := filepath.Join(dir, subdir)
		if err := os.MkdirAll(path, 0755); err != nil {
			return "", fmt.Errorf("create dir %s: %w", path, err)
		}
	}
	return dir, nil
}

// DefaultLocalConfig returns the single-workstation defaults.
func DefaultLocalConfig() *LocalConfig {
	return &LocalConfig{
		Daemon: DaemonConfig{
			Port:     7480,
			Bind:     "127.0.0.1",
			LogLevel: "info",
			RateLimit: RateLimitConfig{
				Enabled:           true,
				RequestsPerMinute: 120,
				Burst:             60,
			},
		},
		Storage: StorageConfig{
			Backend: BackendSQLite,
		},
		Portal: PortalConfig{
			TimeoutSeconds: 15,
			MaxAttempts:    3,
		},
		Payroll: PayrollConfig{
			Anchor:   payperiod.FormatDate(payperiod.DefaultAnchor),
			Timezone: "America/Winnipeg",
		},
		Timesheets: TimesheetsConfig{
			StoreTimeoutSeconds: 10,
			MaxAttempts:         3,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// LoadLocalConfig loads ~/.tcn/config.yaml and secrets.yaml over the
// defaults, then applies TCN_* environment overrides.
func LoadLocalConfig() (*LocalConfig, error) {
	dir, err := TCNDir()
	if err != nil {
		return nil, err
	}
	return LoadLocalConfigFrom(dir)
}

// LoadLocalConfigFrom is LoadLocalConfig rooted at dir.
func LoadLocalConfigFrom(dir string) (*LocalConfig, error) {
	cfg := DefaultLocalConfig()

	data, err := os.ReadFile(filepath.Join(dir, "config.yaml"))
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := loadSecrets(dir, cfg); err != nil {
		return nil, fmt.Errorf("load secrets: %w", err)
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if cfg.Storage.SQLitePath == "" {
		cfg.Storage.SQLitePath = filepath.Join(dir, "data", "timesheets.db")
	}
	return cfg, nil
}

// loadSecrets loads connection strings from secrets.yaml
func loadSecrets(dir string, cfg *LocalConfig) error {
	data, err := os.ReadFile(filepath.Join(dir, "secrets.yaml"))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read secrets: %w", err)
	}

	var secrets SecretsConfig
	if err := yaml.Unmarshal(data, &secrets); err != nil {
		return fmt.Errorf("parse secrets: %w", err)
	}

	cfg.Storage.DatabaseURL = secrets.DatabaseURL
	cfg.Portal.APIKey = secrets.PortalAPIKey
	cfg.Events.AMQPURL = secrets.AMQPURL
	return nil
}

// SaveLocalConfig saves configuration to ~/.tcn/config.yaml
func SaveLocalConfig(cfg *LocalConfig) error {
	dir, err := EnsureTCNDir()
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// SaveSecrets saves connection strings to ~/.tcn/secrets.yaml
func SaveSecrets(secrets SecretsConfig) error {
	dir, err := EnsureTCNDir()
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(secrets)
	if err != nil {
		return fmt.Errorf("marshal secrets: %w", err)
	}

	// owner read/write only
	if err := os.WriteFile(filepath.Join(dir, "secrets.yaml"), data, 0600); err != nil {
		return fmt.Errorf("write secrets: %w", err)
	}
	return nil
}

// Validate reports the first invalid setting.
func (c *LocalConfig) Validate() error {
	if c.Daemon.Port < 1 || c.Daemon.Port > 65535 {
		return fmt.Errorf("daemon.port %d out of range", c.Daemon.Port)
	}
	if _, err := parseLevel(c.Daemon.LogLevel); err != nil {
		return err
	}

	switch c.Storage.Backend {
	case BackendSQLite:
	case BackendPostgres:
		if c.Storage.DatabaseURL == "" {
			return errors.New("storage backend postgres needs database_url in secrets.yaml or TCN_DATABASE_URL")
		}
	case BackendPortal:
		if c.Portal.URL == "" {
			return errors.New("storage backend portal needs portal.url or TCN_PORTAL_URL")
		}
	default:
		return fmt.Errorf("unknown storage backend %q (want sqlite, postgres or portal)", c.Storage.Backend)
	}

	if _, err := c.Resolver(); err != nil {
		return err
	}
	if c.Events.Enabled && c.Events.AMQPURL == "" {
		return errors.New("events enabled but no amqp_url in secrets.yaml or TCN_AMQP_URL")
	}
	return nil
}

// Resolver builds the pay period resolver from the payroll settings.
func (c *LocalConfig) Resolver() (*payperiod.Resolver, error) {
	anchor, err := payperiod.ParseDate(c.Payroll.Anchor)
	if err != nil {
		return nil, fmt.Errorf("payroll.anchor: %w", err)
	}
	loc := time.UTC
	if c.Payroll.Timezone != "" {
		if loc, err = time.LoadLocation(c.Payroll.Timezone); err != nil {
			return nil, fmt.Errorf("payroll.timezone: %w", err)
		}
	}
	r, err := payperiod.NewResolver(anchor, loc)
	if err != nil {
		return nil, fmt.Errorf("payroll.anchor: %w", err)
	}
	return r, nil
}

// LogLevel returns the configured slog level.
func (c *LocalConfig) LogLevel() slog.Level {
	level, err := parseLevel(c.Daemon.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return level
}

// StoreTimeout returns the per-call store timeout.
func (c *LocalConfig) StoreTimeout() time.Duration {
	return time.Duration(c.Timesheets.StoreTimeoutSeconds) * time.Second
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}
