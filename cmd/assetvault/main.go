package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"

	"github.com/lgandecki/convex-versioned-assets-sub001/pkg/api"
	"github.com/lgandecki/convex-versioned-assets-sub001/pkg/auth"
	"github.com/lgandecki/convex-versioned-assets-sub001/pkg/blob"
	"github.com/lgandecki/convex-versioned-assets-sub001/pkg/config"
	"github.com/lgandecki/convex-versioned-assets-sub001/pkg/httputil"
	"github.com/lgandecki/convex-versioned-assets-sub001/pkg/observability"
	"github.com/lgandecki/convex-versioned-assets-sub001/pkg/storage"
	"github.com/lgandecki/convex-versioned-assets-sub001/pkg/vault"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := observability.NewLogger(observability.ParseLevel(cfg.Obs.LogLevel), os.Stdout)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Metadata repository: postgres when DATABASE_URL is set, embedded
	// sqlite under DATA_DIR otherwise.
	sqlStore, err := storage.Open(ctx, cfg.Store.DatabaseURL, cfg.Store.DataDir)
	if err != nil {
		logger.WithError(err).Error("failed to open metadata store")
		os.Exit(1)
	}

	var store vault.Store = sqlStore
	var cached *storage.CachedStore
	if cfg.Store.RedisURL != "" {
		cached, err = storage.NewCachedStore(ctx, sqlStore, cfg.Store.RedisURL, cfg.Store.RedisPoolSize)
		if err != nil {
			logger.WithError(err).Error("failed to connect to redis")
			os.Exit(1)
		}
		store = cached
		logger.Info("published-file cache enabled")
	}

	local, err := blob.NewLocalStore(filepath.Join(cfg.Store.DataDir, "blobs"), cfg.Server.PublicBaseURL)
	if err != nil {
		logger.WithError(err).Error("failed to initialize local blob store")
		os.Exit(1)
	}

	provider := config.NewProvider(cfg.Backend)
	if err := provider.Watch(ctx, cfg.Backend, cfg.Backend.OverridesFile, func(err error) {
		logger.WithError(err).Warn("backend overrides reload failed")
	}); err != nil {
		logger.WithError(err).Error("failed to watch backend overrides")
		os.Exit(1)
	}

	tracing, err := observability.InitTracing(ctx, observability.OTelConfig{
		Enabled:     cfg.Obs.OTelEnabled,
		Endpoint:    cfg.Obs.OTelEndpoint,
		ServiceName: cfg.Obs.ServiceName,
		Insecure:    true,
	}, logger)
	if err != nil {
		logger.WithError(err).Error("failed to initialize tracing")
		os.Exit(1)
	}

	var metrics *observability.Metrics
	registry := prometheus.NewRegistry()
	if cfg.Obs.MetricsEnabled {
		metrics = observability.NewMetrics(registry)
	}

	svc := vault.NewService(store, local, provider, logger, cfg.Server.PublicBaseURL, cfg.Store.IntentTTL)
	resolver := auth.NewResolver(cfg.Auth.AdminKey, cfg.Auth.AdminEmails)

	server, err := api.NewServer(svc, resolver, logger, metrics, api.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
	})
	if err != nil {
		logger.WithError(err).Error("failed to build HTTP server")
		os.Exit(1)
	}

	// Expired upload intents are swept on a fixed schedule.
	sweeper := cron.New()
	sweeper.Schedule(cron.Every(cfg.Store.SweepEvery), cron.FuncJob(func() {
		n, err := svc.SweepExpiredIntents(ctx)
		if err != nil {
			logger.WithError(err).Warn("intent sweep failed")
			return
		}
		if metrics != nil && n > 0 {
			metrics.IntentsSwept(n)
		}
	}))
	sweeper.Start()

	// Health and metrics on a separate listener, kept off the public surface.
	checker := observability.NewHealthChecker()
	checker.AddCheck("database", sqlStore.HealthCheck)
	if cached != nil {
		checker.AddOptionalCheck("redis", cached.HealthCheck)
	}
	healthMux := http.NewServeMux()
	observability.RegisterHealthRoutes(healthMux, checker)
	if cfg.Obs.MetricsEnabled {
		observability.RegisterMetricsEndpoint(healthMux, registry)
	}
	healthServer := &http.Server{Addr: cfg.Server.HealthAddr, Handler: healthMux}
	go func() {
		logger.Infof("health server listening on %s", cfg.Server.HealthAddr)
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("health server failed")
		}
	}()

	mainServer := &http.Server{
		Addr:         cfg.Server.ListenAddr,
		Handler:      httputil.LoggingMiddleware(server.Router()),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	go func() {
		logger.Infof("asset store listening on %s (backend: %s)",
			cfg.Server.ListenAddr, provider.Backend().Active())
		if err := mainServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("HTTP server failed")
			cancel()
		}
	}()

	err = observability.GracefulShutdown(logger, mainServer,
		func(ctx context.Context) error { return healthServer.Shutdown(ctx) },
		func(ctx context.Context) error { sweeper.Stop(); return nil },
		func(ctx context.Context) error { return tracing.Shutdown(ctx) },
		func(ctx context.Context) error { return store.Close() },
	)
	if err != nil {
		logger.WithError(err).Error("shutdown finished with errors")
		os.Exit(1)
	}
}
