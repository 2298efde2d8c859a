// Package observability provides structured logging, health checks,
// Prometheus metrics, and optional OpenTelemetry tracing for the campus
// service.
//
// The logger is a thin wrapper around stdlib slog that emits JSON and
// supports field chaining:
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("user_id", id).Info("roles resolved")
//
// Health checks expose liveness and readiness probes on a dedicated port so
// Kubernetes probes never compete with API traffic.
package observability
