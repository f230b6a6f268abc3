package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Store backends accepted by STORE_BACKEND.
const (
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendMemory   = "memory"
)

type Config struct {
	Port            string        `mapstructure:"PORT"`
	Env             string        `mapstructure:"ENV"`
	StoreBackend    string        `mapstructure:"STORE_BACKEND"`
	DatabaseURL     string        `mapstructure:"DATABASE_URL"`
	DBMaxConns      int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns      int32         `mapstructure:"DB_MIN_CONNS"`
	RedisURL        string        `mapstructure:"REDIS_URL"`
	AlertsEnabled   bool          `mapstructure:"ALERTS_ENABLED"`
	AlertFromEmail  string        `mapstructure:"ALERT_FROM_EMAIL"`
	SendGridAPIKey  string        `mapstructure:"SENDGRID_API_KEY"`
	SendGridBaseURL string        `mapstructure:"SENDGRID_BASE_URL"`
	AlertQueueSize  int           `mapstructure:"ALERT_QUEUE_SIZE"`
	AlertWorkers    int           `mapstructure:"ALERT_WORKERS"`
	RequestTimeout  time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	CORSOrigins     []string      `mapstructure:"CORS_ORIGINS"`
}

var keys = []string{
	"PORT",
	"ENV",
	"STORE_BACKEND",
	"DATABASE_URL",
	"DB_MAX_CONNS",
	"DB_MIN_CONNS",
	"REDIS_URL",
	"ALERTS_ENABLED",
	"ALERT_FROM_EMAIL",
	"SENDGRID_API_KEY",
	"SENDGRID_BASE_URL",
	"ALERT_QUEUE_SIZE",
	"ALERT_WORKERS",
	"REQUEST_TIMEOUT",
	"CORS_ORIGINS",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "5000")
	v.SetDefault("ENV", "development")
	v.SetDefault("STORE_BACKEND", "") // auto-detect, see Backend
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("ALERTS_ENABLED", true)
	v.SetDefault("ALERT_FROM_EMAIL", "alerts@hr-sentinel.local")
	v.SetDefault("SENDGRID_BASE_URL", "https://api.sendgrid.com")
	v.SetDefault("ALERT_QUEUE_SIZE", 100)
	v.SetDefault("ALERT_WORKERS", 2)
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("CORS_ORIGINS", "*")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if len(cfg.CORSOrigins) == 1 && strings.Contains(cfg.CORSOrigins[0], ",") {
		cfg.CORSOrigins = strings.Split(cfg.CORSOrigins[0], ",")
	}
	for i, o := range cfg.CORSOrigins {
		cfg.CORSOrigins[i] = strings.TrimSpace(o)
	}
	cfg.StoreBackend = strings.ToLower(strings.TrimSpace(cfg.StoreBackend))

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Backend returns the effective store backend. If STORE_BACKEND is set it is
// returned as is. Otherwise:
//   - DATABASE_URL set → "postgres"
//   - REDIS_URL set    → "redis"
//   - Otherwise        → "memory"
func (c *Config) Backend() string {
	if c.StoreBackend != "" {
		return c.StoreBackend
	}
	if c.DatabaseURL != "" {
		return BackendPostgres
	}
	if c.RedisURL != "" {
		return BackendRedis
	}
	return BackendMemory
}

// SendGridEnabled reports whether alerts go out through SendGrid rather than
// the log-only sender.
func (c *Config) SendGridEnabled() bool {
	return c.SendGridAPIKey != ""
}

// Validate checks that the configuration is safe to run.
func (c *Config) Validate() error {
	switch c.Backend() {
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_BACKEND is %q", BackendPostgres)
		}
	case BackendRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when STORE_BACKEND is %q", BackendRedis)
		}
	case BackendMemory:
		if c.IsProduction() {
			return fmt.Errorf("the memory store loses all patients on restart; " +
				"set DATABASE_URL or REDIS_URL in production")
		}
	default:
		return fmt.Errorf("STORE_BACKEND must be %q, %q or %q, got %q",
			BackendPostgres, BackendRedis, BackendMemory, c.StoreBackend)
	}

	if c.AlertQueueSize <= 0 {
		return fmt.Errorf("ALERT_QUEUE_SIZE must be positive, got %d", c.AlertQueueSize)
	}
	if c.AlertWorkers <= 0 {
		return fmt.Errorf("ALERT_WORKERS must be positive, got %d", c.AlertWorkers)
	}
	if c.SendGridEnabled() && c.AlertFromEmail == "" {
		return fmt.Errorf("ALERT_FROM_EMAIL is required when SENDGRID_API_KEY is set")
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	return nil
}
