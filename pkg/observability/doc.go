// Package observability provides structured logging, Prometheus metrics, and process lifecycle helpers.
//
// # Overview
//
// This package centralizes the ambient infrastructure of the inspec binary: JSON
// logging through logrus, plugin load metrics, panic recovery and shutdown hooks.
//
// # Structured Logging
//
// Create logger:
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stderr)
//	logger.WithField("plugin", name).Error("Could not load plugin")
//
// # Prometheus Metrics
//
// Initialize metrics:
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewPluginMetrics(registry)
//	metrics.RecordLoad("bundle", observability.OutcomeSuccess)
//
// Export for the node_exporter textfile collector:
//
//	err := observability.WriteTextfile("/var/lib/node_exporter/inspec.prom", registry)
//
// # Shutdown
//
//	ctx, stop := observability.SignalContext(context.Background(), logger)
//	defer stop()
//
//	sm := observability.NewShutdownManager(logger, 5*time.Second)
//	sm.RegisterShutdownFunc(flushMetrics)
//	defer sm.Shutdown()
//
// # Related Packages
//
//   - pkg/config: Observability configuration
//   - pkg/plugins: Records load outcomes
package observability
