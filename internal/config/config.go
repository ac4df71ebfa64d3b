// Package config loads application configuration from defaults, an optional
// YAML file and INCIDENTD_ environment variables, in that order of precedence.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "INCIDENTD_"

// Config is the root application configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Log      LogConfig      `koanf:"log"`
	Auth     AuthConfig     `koanf:"auth"`
	CORS     CORSConfig     `koanf:"cors"`
	Ingest   IngestConfig   `koanf:"ingest"`
	SLA      SLAConfig      `koanf:"sla"`
	Delivery DeliveryConfig `koanf:"delivery"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host              string        `koanf:"host"`
	Port              string        `koanf:"port"`
	MetricsPort       string        `koanf:"metrics_port"`
	ReadTimeout       time.Duration `koanf:"read_timeout"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout"`
	WriteTimeout      time.Duration `koanf:"write_timeout"`
	IdleTimeout       time.Duration `koanf:"idle_timeout"`
}

// DatabaseConfig contains event journal database settings. When Enabled is
// false the registry runs purely in memory and events are not persisted.
type DatabaseConfig struct {
	Enabled         bool          `koanf:"enabled"`
	URL             string        `koanf:"url"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnectTimeout  time.Duration `koanf:"connect_timeout"`
	ConnectAttempts int           `koanf:"connect_attempts"`
	MigrationsPath  string        `koanf:"migrations_path"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// AuthConfig contains API authentication settings. APIKeys maps caller names
// to bcrypt hashes of their keys. An empty JWTSecret with no APIKeys disables
// authentication, which is intended for local development only.
type AuthConfig struct {
	Enabled   bool              `koanf:"enabled"`
	JWTSecret string            `koanf:"jwt_secret"`
	APIKeys   map[string]string `koanf:"api_keys"`
}

// CORSConfig contains CORS settings.
type CORSConfig struct {
	AllowedOrigins []string `koanf:"allowed_origins"`
}

// IngestConfig contains event ingestion limits.
type IngestConfig struct {
	RateLimitPerSec float64 `koanf:"rate_limit_per_sec"`
	RateLimitBurst  int     `koanf:"rate_limit_burst"`
}

// SLAConfig controls the periodic SLA gauge refresh.
type SLAConfig struct {
	RefreshInterval time.Duration `koanf:"refresh_interval"`
}

// DeliveryConfig contains outbound notification settings.
type DeliveryConfig struct {
	Enabled bool                    `koanf:"enabled"`
	Worker  DeliveryWorkerConfig    `koanf:"worker"`
	Retry   DeliveryRetryConfig     `koanf:"retry"`
	Email   EmailConfig             `koanf:"email"`
	Webhook WebhookConfig           `koanf:"webhook"`
	SMS     SMSConfig               `koanf:"sms"`
	Targets map[string]TargetConfig `koanf:"targets"`
}

// DeliveryWorkerConfig contains delivery worker pool settings.
type DeliveryWorkerConfig struct {
	BatchSize    int           `koanf:"batch_size"`
	PollInterval time.Duration `koanf:"poll_interval"`
	NumWorkers   int           `koanf:"num_workers"`
}

// DeliveryRetryConfig contains delivery retry settings.
type DeliveryRetryConfig struct {
	MaxAttempts       int           `koanf:"max_attempts"`
	InitialBackoff    time.Duration `koanf:"initial_backoff"`
	MaxBackoff        time.Duration `koanf:"max_backoff"`
	BackoffMultiplier float64       `koanf:"backoff_multiplier"`
}

// EmailConfig contains SMTP settings.
type EmailConfig struct {
	Enabled     bool   `koanf:"enabled"`
	SMTPHost    string `koanf:"smtp_host"`
	SMTPPort    int    `koanf:"smtp_port"`
	Username    string `koanf:"username"`
	Password    string `koanf:"password"`
	FromAddress string `koanf:"from_address"`
}

// WebhookConfig contains webhook sender settings.
type WebhookConfig struct {
	Username       string        `koanf:"username"`
	IconURL        string        `koanf:"icon_url"`
	Timeout        time.Duration `koanf:"timeout"`
	RequestsPerSec float64       `koanf:"requests_per_sec"`
	Burst          int           `koanf:"burst"`
}

// SMSConfig contains SMS gateway settings.
type SMSConfig struct {
	Enabled    bool   `koanf:"enabled"`
	GatewayURL string `koanf:"gateway_url"`
	APIKey     string `koanf:"api_key"`
}

// TargetConfig is the delivery destination for one stakeholder role.
type TargetConfig struct {
	Method string `koanf:"method"`
	To     string `koanf:"to"`
}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"server.host":                "0.0.0.0",
		"server.port":                "8080",
		"server.metrics_port":        "9090",
		"server.read_timeout":        "15s",
		"server.read_header_timeout": "5s",
		"server.write_timeout":       "15s",
		"server.idle_timeout":        "60s",

		"database.enabled":           false,
		"database.max_open_conns":    10,
		"database.max_idle_conns":    2,
		"database.conn_max_lifetime": "30m",
		"database.connect_timeout":   "30s",
		"database.connect_attempts":  5,
		"database.migrations_path":   "migrations",

		"log.level":  "info",
		"log.format": "json",

		"auth.enabled": false,

		"cors.allowed_origins": []string{"*"},

		"ingest.rate_limit_per_sec": 50.0,
		"ingest.rate_limit_burst":   100,

		"sla.refresh_interval": "15s",

		"delivery.enabled":                  false,
		"delivery.worker.batch_size":        50,
		"delivery.worker.poll_interval":     "2s",
		"delivery.worker.num_workers":       3,
		"delivery.retry.max_attempts":       3,
		"delivery.retry.initial_backoff":    "1s",
		"delivery.retry.max_backoff":        "5m",
		"delivery.retry.backoff_multiplier": 2.0,
		"delivery.webhook.timeout":          "10s",
		"delivery.webhook.requests_per_sec": 5.0,
		"delivery.webhook.burst":            10,
	}
}

// Load reads configuration from defaults, the optional YAML file at path and
// environment variables. Pass an empty path to skip the file layer.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("load config file %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("stat config file %s: %w", path, err)
		}
	}

	// INCIDENTD_SERVER_PORT=8081 overrides server.port
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "_", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Database.Enabled && c.Database.URL == "" {
		return fmt.Errorf("database.url is required when database.enabled is true")
	}
	if c.Auth.Enabled && c.Auth.JWTSecret == "" && len(c.Auth.APIKeys) == 0 {
		return fmt.Errorf("auth.jwt_secret or auth.api_keys is required when auth.enabled is true")
	}
	if c.Delivery.Enabled {
		for role, target := range c.Delivery.Targets {
			switch target.Method {
			case "email", "webhook", "sms":
			default:
				return fmt.Errorf("delivery.targets.%s.method must be email, webhook or sms", role)
			}
			if target.To == "" {
				return fmt.Errorf("delivery.targets.%s.to is required", role)
			}
		}
	}
	return nil
}
