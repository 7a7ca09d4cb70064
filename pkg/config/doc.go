// Package config provides application configuration management from environment variables.
//
// # Overview
//
// This package loads and validates configuration from environment variables with
// sensible defaults for all settings except the ones that cannot have one: the
// database URL and the webhook secret.
//
// # Configuration Structure
//
// Server settings:
//
//	COBRADOR_HOST="0.0.0.0"
//	COBRADOR_PORT="8080"
//	COBRADOR_HEALTH_PORT="9090"
//	COBRADOR_READ_TIMEOUT="15s"
//	COBRADOR_WRITE_TIMEOUT="15s"
//
// Database and Redis settings:
//
//	COBRADOR_POSTGRES_URL="postgres://localhost/cobrador"
//	COBRADOR_POSTGRES_MAX_CONNS="25"
//	COBRADOR_REDIS_ADDR="localhost:6379"
//
// Billing settings:
//
//	COBRADOR_WEBHOOK_SECRET="whsec_..."
//	COBRADOR_TRIAL_DAYS="14"
//	COBRADOR_SWEEP_SCHEDULE="5 * * * *"
//	COBRADOR_PRICING_FILE="/etc/cobrador/pricing.yaml"
//
// Observability settings:
//
//	COBRADOR_LOG_LEVEL="info"  # debug, info, warn, error
//	COBRADOR_METRICS_ENABLED="true"
//	COBRADOR_OTEL_ENABLED="true"
//	COBRADOR_OTEL_ENDPOINT="otel-collector:4317"
//
// # Usage Example
//
// Load configuration:
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	fmt.Printf("Server: %s:%s\n", cfg.Server.Host, cfg.Server.Port)
//	fmt.Printf("Log level: %s\n", cfg.Observability.LogLevel)
package config
