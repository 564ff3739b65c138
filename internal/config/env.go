package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// envOverrides lists the environment variables that take precedence over
// config.yaml and secrets.yaml. Unset variables leave the field nil.
type envOverrides struct {
	Port           *int    `env:"TCN_PORT"`
	Bind           *string `env:"TCN_BIND"`
	LogLevel       *string `env:"TCN_LOG_LEVEL"`
	StorageBackend *string `env:"TCN_STORAGE_BACKEND"`
	SQLitePath     *string `env:"TCN_SQLITE_PATH"`
	DatabaseURL    *string `env:"TCN_DATABASE_URL"`
	PortalURL      *string `env:"TCN_PORTAL_URL"`
	PortalAPIKey   *string `env:"TCN_PORTAL_API_KEY"`
	AMQPURL        *string `env:"TCN_AMQP_URL"`
	PayrollAnchor  *string `env:"TCN_PAYROLL_ANCHOR"`
	PayrollZone    *string `env:"TCN_PAYROLL_TIMEZONE"`
	Metrics        *bool   `env:"TCN_METRICS_ENABLED"`
}

func applyEnv(cfg *LocalConfig) error {
	var ov envOverrides
	if err := env.Parse(&ov); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}

	set(&cfg.Daemon.Port, ov.Port)
	set(&cfg.Daemon.Bind, ov.Bind)
	set(&cfg.Daemon.LogLevel, ov.LogLevel)
	set(&cfg.Storage.Backend, ov.StorageBackend)
	set(&cfg.Storage.SQLitePath, ov.SQLitePath)
	set(&cfg.Storage.DatabaseURL, ov.DatabaseURL)
	set(&cfg.Portal.URL, ov.PortalURL)
	set(&cfg.Portal.APIKey, ov.PortalAPIKey)
	set(&cfg.Payroll.Anchor, ov.PayrollAnchor)
	set(&cfg.Payroll.Timezone, ov.PayrollZone)
	set(&cfg.Metrics.Enabled, ov.Metrics)
	if ov.AMQPURL != nil {
		cfg.Events.AMQPURL = *ov.AMQPURL
		cfg.Events.Enabled = *ov.AMQPURL != ""
	}
	return nil
}

func set[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}
