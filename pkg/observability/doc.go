// Package observability provides structured logging, Prometheus metrics, and OpenTelemetry tracing.
//
// # Structured Logging
//
// Create logger:
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("folder", path).Info("folder created")
//
// # Prometheus Metrics
//
// Initialize and record:
//
//	metrics := observability.NewMetrics(registry)
//	done := metrics.TimeHTTPRequest("GET", "/api/folders")
//	...
//	done(200)
//
// # Health Checks
//
//	checker := observability.NewHealthChecker()
//	checker.AddCheck("database", store.HealthCheck)
//	observability.RegisterHealthRoutes(mux, checker)
//
// # Tracing
//
//	tracing, err := observability.InitTracing(ctx, cfg, logger)
//	defer tracing.Shutdown(ctx)
package observability
