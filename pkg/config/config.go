package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/matrizhq/cobrador/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	Billing       BillingConfig
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// DatabaseConfig holds PostgreSQL settings
type DatabaseConfig struct {
	URL          string
	MaxOpenConns int
	MaxIdleConns int
	ConnLifetime time.Duration
}

// RedisConfig holds Redis settings; Redis carries the idempotency fast path
// and the webhook rate limiter, the service runs without it
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// BillingConfig holds the billing engine settings
type BillingConfig struct {
	// WebhookSecret authenticates payment provider deliveries
	WebhookSecret string
	// TrialDays is the free trial length for new root tenants
	TrialDays int
	// SweepSchedule is the cron expression for the status sweep
	SweepSchedule string
	// PricingFile optionally overrides the built-in pricing table; the file
	// is watched and hot reloaded
	PricingFile string
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel observability.LogLevel

	MetricsEnabled bool

	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("COBRADOR_HOST", "0.0.0.0"),
			Port:            getEnv("COBRADOR_PORT", "8080"),
			ReadTimeout:     getEnvDuration("COBRADOR_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("COBRADOR_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     getEnvDuration("COBRADOR_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("COBRADOR_SHUTDOWN_TIMEOUT", 30*time.Second),
			HealthPort:      getEnv("COBRADOR_HEALTH_PORT", "9090"),
		},
		Database: DatabaseConfig{
			URL:          getEnv("COBRADOR_POSTGRES_URL", ""),
			MaxOpenConns: getEnvInt("COBRADOR_POSTGRES_MAX_CONNS", 25),
			MaxIdleConns: getEnvInt("COBRADOR_POSTGRES_IDLE_CONNS", 5),
			ConnLifetime: getEnvDuration("COBRADOR_POSTGRES_CONN_LIFETIME", 30*time.Minute),
		},
		Redis: RedisConfig{
			Addr:     getEnv("COBRADOR_REDIS_ADDR", ""),
			Password: getEnv("COBRADOR_REDIS_PASSWORD", ""),
			DB:       getEnvInt("COBRADOR_REDIS_DB", 0),
		},
		Billing: BillingConfig{
			WebhookSecret: getEnv("COBRADOR_WEBHOOK_SECRET", ""),
			TrialDays:     getEnvInt("COBRADOR_TRIAL_DAYS", 14),
			SweepSchedule: getEnv("COBRADOR_SWEEP_SCHEDULE", "5 * * * *"),
			PricingFile:   getEnv("COBRADOR_PRICING_FILE", ""),
		},
		Observability: ObservabilityConfig{
			LogLevel:           observability.ParseLogLevel(getEnv("COBRADOR_LOG_LEVEL", "info")),
			MetricsEnabled:     getEnvBool("COBRADOR_METRICS_ENABLED", true),
			OTelEnabled:        getEnvBool("COBRADOR_OTEL_ENABLED", false),
			OTelEndpoint:       getEnv("COBRADOR_OTEL_ENDPOINT", "localhost:4317"),
			OTelServiceName:    getEnv("COBRADOR_OTEL_SERVICE_NAME", "cobrador"),
			OTelServiceVersion: getEnv("COBRADOR_OTEL_SERVICE_VERSION", "1.0.0"),
			OTelInsecure:       getEnvBool("COBRADOR_OTEL_INSECURE", true),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	if c.Database.URL == "" {
		return fmt.Errorf("postgres URL is required")
	}

	if c.Billing.WebhookSecret == "" {
		return fmt.Errorf("webhook secret is required")
	}
	if c.Billing.TrialDays <= 0 {
		return fmt.Errorf("trial days must be positive")
	}
	if c.Billing.SweepSchedule == "" {
		return fmt.Errorf("sweep schedule is required")
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
