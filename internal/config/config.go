package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

type Config struct {
	Port               string        `mapstructure:"PORT"`
	Env                string        `mapstructure:"ENV"`
	StoreBackend       string        `mapstructure:"STORE_BACKEND"`
	DatabaseURL        string        `mapstructure:"DATABASE_URL"`
	DBMaxConns         int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns         int32         `mapstructure:"DB_MIN_CONNS"`
	RedisURL           string        `mapstructure:"REDIS_URL"`
	AlertChannel       string        `mapstructure:"ALERT_CHANNEL"`
	AlertWebhookURL    string        `mapstructure:"ALERT_WEBHOOK_URL"`
	AlertWebhookSecret string        `mapstructure:"ALERT_WEBHOOK_SECRET"`
	ReevaluateInterval time.Duration `mapstructure:"REEVALUATE_INTERVAL"`
	ReevaluateWorkers  int           `mapstructure:"REEVALUATE_WORKERS"`
	ResolverTimeout    time.Duration `mapstructure:"RESOLVER_TIMEOUT"`
	ClockTolerance     time.Duration `mapstructure:"CLOCK_TOLERANCE"`
	AlertBuffer        int           `mapstructure:"ALERT_BUFFER"`
	CORSOrigins        []string      `mapstructure:"CORS_ORIGINS"`
}

var keys = []string{
	"PORT", "ENV", "STORE_BACKEND", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
	"REDIS_URL", "ALERT_CHANNEL", "ALERT_WEBHOOK_URL", "ALERT_WEBHOOK_SECRET",
	"REEVALUATE_INTERVAL", "REEVALUATE_WORKERS", "RESOLVER_TIMEOUT", "CLOCK_TOLERANCE",
	"ALERT_BUFFER", "CORS_ORIGINS",
}

// Load reads configuration from the environment, falling back to a .env file
// in the working directory when present.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("STORE_BACKEND", BackendPostgres)
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("ALERT_CHANNEL", "ptl:breach-alerts")
	v.SetDefault("REEVALUATE_INTERVAL", "1h")
	v.SetDefault("REEVALUATE_WORKERS", 8)
	v.SetDefault("RESOLVER_TIMEOUT", "2s")
	v.SetDefault("CLOCK_TOLERANCE", "24h")
	v.SetDefault("ALERT_BUFFER", 256)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")

	// Unmarshal only sees env vars that are bound
	for _, k := range keys {
		v.BindEnv(k)
	}

	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.StoreBackend = strings.ToLower(strings.TrimSpace(cfg.StoreBackend))
	if len(cfg.CORSOrigins) == 1 && strings.Contains(cfg.CORSOrigins[0], ",") {
		cfg.CORSOrigins = strings.Split(cfg.CORSOrigins[0], ",")
	}
	for i := range cfg.CORSOrigins {
		cfg.CORSOrigins[i] = strings.TrimSpace(cfg.CORSOrigins[i])
	}
	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func (c *Config) UsePostgres() bool {
	return c.StoreBackend == BackendPostgres
}

// Validate checks that the configuration is complete enough to start.
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_BACKEND is %q", BackendPostgres)
		}
	case BackendMemory:
		if c.IsProduction() {
			return fmt.Errorf("STORE_BACKEND %q is not allowed in production", BackendMemory)
		}
	default:
		return fmt.Errorf("STORE_BACKEND must be %q or %q, got %q", BackendPostgres, BackendMemory, c.StoreBackend)
	}
	if c.ReevaluateInterval <= 0 {
		return fmt.Errorf("REEVALUATE_INTERVAL must be positive, got %s", c.ReevaluateInterval)
	}
	if c.ReevaluateWorkers <= 0 {
		return fmt.Errorf("REEVALUATE_WORKERS must be positive, got %d", c.ReevaluateWorkers)
	}
	if c.ResolverTimeout <= 0 {
		return fmt.Errorf("RESOLVER_TIMEOUT must be positive, got %s", c.ResolverTimeout)
	}
	if c.ClockTolerance < 0 {
		return fmt.Errorf("CLOCK_TOLERANCE must not be negative, got %s", c.ClockTolerance)
	}
	if c.AlertBuffer <= 0 {
		return fmt.Errorf("ALERT_BUFFER must be positive, got %d", c.AlertBuffer)
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	return nil
}
