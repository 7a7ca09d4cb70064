package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"

	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/matrizhq/cobrador/pkg/api"
	"github.com/matrizhq/cobrador/pkg/billing"
	"github.com/matrizhq/cobrador/pkg/config"
	"github.com/matrizhq/cobrador/pkg/middleware"
	"github.com/matrizhq/cobrador/pkg/observability"
	"github.com/matrizhq/cobrador/pkg/payments"
	"github.com/matrizhq/cobrador/pkg/tenants"
)

const version = "1.0.0"

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		os.Stderr.WriteString("failed to load configuration: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	logger.WithField("version", version).Info("starting cobrador")

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		logger.WithError(err).Error("failed to open database")
		os.Exit(1)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnLifetime)

	if err := db.Ping(); err != nil {
		logger.WithError(err).Error("failed to ping database")
		os.Exit(1)
	}
	if err := tenants.RunMigrations(context.Background(), db); err != nil {
		logger.WithError(err).Error("failed to run migrations")
		os.Exit(1)
	}

	// Redis is optional: without it the durable gate still deduplicates
	// webhook deliveries and the rate limiter is skipped
	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logger.WithError(err).Warn("redis unreachable at startup, continuing degraded")
		}
	}

	registry := prometheus.NewRegistry()
	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(registry)
	}

	otelProviders, err := observability.InitOTel(context.Background(), observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
	}, logger)
	if err != nil {
		logger.WithError(err).Error("failed to initialize OpenTelemetry")
		os.Exit(1)
	}

	// Domain services
	tenantService := tenants.NewPostgresService(db)
	tenantService.SetTrialDays(cfg.Billing.TrialDays)
	resolver := tenants.NewResolver(tenantService)

	pricing := billing.NewPricingStore(billing.DefaultPricing())
	pricingStop := make(chan struct{})
	if cfg.Billing.PricingFile != "" {
		loaded, err := billing.LoadPricing(cfg.Billing.PricingFile)
		if err != nil {
			logger.WithError(err).Error("failed to load pricing file")
			os.Exit(1)
		}
		pricing.Set(loaded)
		go func() {
			defer observability.RecoverPanic(logger, "pricing watch")
			if err := pricing.Watch(cfg.Billing.PricingFile, pricingStop, func(err error) {
				logger.WithError(err).Warn("pricing reload failed, keeping previous table")
			}); err != nil {
				logger.WithError(err).Warn("pricing watch stopped")
			}
		}()
	}

	var idempotency payments.IdempotencyStore
	var rateLimiter *middleware.RateLimiter
	if redisClient != nil {
		idempotency = payments.NewRedisIdempotencyStore(redisClient)
		rateLimiter = middleware.NewRateLimiter(redisClient, middleware.WebhookRateLimitConfig(), "cobrador:webhook")
	}

	reconciler := payments.NewReconciler(payments.ReconcilerConfig{
		DB:          db,
		Secret:      cfg.Billing.WebhookSecret,
		Idempotency: idempotency,
		Audit:       payments.NewAuditTrail(os.Stdout),
		Logger:      logger,
		Metrics:     metrics,
		Cache:       resolver,
	})

	sweeper := billing.NewSweeper(tenantService, logger, metrics)
	if err := sweeper.Start(cfg.Billing.SweepSchedule); err != nil {
		logger.WithError(err).Error("failed to start billing sweeper")
		os.Exit(1)
	}

	server := api.NewServer(api.ServerConfig{
		TenantService: tenantService,
		Resolver:      resolver,
		Pricing:       pricing,
		Webhooks:      payments.NewWebhookHandlers(reconciler, logger),
		Gate:          middleware.NewBillingGate(resolver, logger, metrics),
		RateLimiter:   rateLimiter,
		Logger:        logger,
		Metrics:       metrics,
	})

	var apiHandler http.Handler = server.Handler()
	if cfg.Observability.OTelEnabled {
		apiHandler = otelhttp.NewHandler(apiHandler, "cobrador-api")
	}

	apiServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      apiHandler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Health and metrics on their own port for probes and scrapers
	healthMux := http.NewServeMux()
	observability.RegisterHealthRoutes(healthMux, observability.NewHealthChecker(db, redisClient, version))
	if cfg.Observability.MetricsEnabled {
		observability.RegisterMetricsEndpoint(healthMux, registry)
	}
	healthServer := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler: healthMux,
	}

	shutdown := observability.NewShutdownManager(logger, cfg.Server.ShutdownTimeout, apiServer, healthServer)
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		sweeper.Stop()
		return nil
	})
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		close(pricingStop)
		return nil
	})
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		return observability.ShutdownOTel(ctx, otelProviders, logger)
	})

	go func() {
		logger.WithField("addr", healthServer.Addr).Info("health server listening")
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("health server failed")
		}
	}()

	go func() {
		logger.WithField("addr", apiServer.Addr).Info("api server listening")
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("api server failed")
			os.Exit(1)
		}
	}()

	if err := shutdown.WaitForShutdown(); err != nil {
		logger.WithError(err).Error("shutdown finished with errors")
		os.Exit(1)
	}
	logger.Info("cobrador stopped")
}
