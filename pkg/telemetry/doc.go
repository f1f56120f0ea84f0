// Package telemetry provides comprehensive observability instrumentation for propgraph.
//
// The telemetry package integrates structured logging (zerolog), distributed tracing
// (OpenTelemetry), metrics (Prometheus), and event publishing into a unified system
// for monitoring and debugging attribute graph operations.
//
// # Architecture
//
// The telemetry system is built on four pillars:
//
//  1. Structured Logging - Context-aware logging with zerolog
//  2. Distributed Tracing - OpenTelemetry traces with multiple exporters
//  3. Metrics Collection - Prometheus metrics for operational insights
//  4. Event Publishing - Async event system for audit and notifications
//
// # Usage
//
// Initialize telemetry at application startup:
//
//	cfg := telemetry.DefaultConfig()
//	cfg.ServiceName = "propgraph"
//	cfg.ServiceVersion = "1.0.0"
//
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer tel.Shutdown(context.Background())
//
//	// Start metrics server
//	if err := tel.StartMetricsServer(); err != nil {
//	    log.Fatal(err)
//	}
//
// Add telemetry to context:
//
//	ctx = tel.WithContext(ctx)
//
// # Structured Logging
//
// The logger provides component-specific logging with automatic context propagation:
//
//	logger := tel.Logger.NewComponentLogger("engine")
//	logger = logger.WithUnitID("unit-123").WithComponentID("component-456")
//	logger.Info("Attaching component to frame")
//	logger.WithError(err).Error("Attachment failed")
//
// Log levels: trace, debug, info, warn, error, fatal
//
// # Distributed Tracing
//
// Tracing provides visibility into request flow and performance:
//
//	ctx, span := tel.Tracer.Start(ctx, "operation.name")
//	defer span.End()
//
//	span.SetAttributes(
//	    attribute.String("attribute_value.id", valueID),
//	    attribute.String("operation", "update"),
//	)
//
// # Metrics
//
// Prometheus metrics cover value changes, unit commits, propagation updates,
// function evaluations and graph mutations. The metrics endpoint is served
// over HTTP at the configured listen address.
//
//	tel.Metrics.RecordValueChanged()
//	tel.Metrics.RecordFuncEvaluation("attr:identity", duration)
//
// # Events
//
// The event publisher delivers change notifications to in-process
// subscribers. Wire it into the engine through the Notifier adapter:
//
//	eng := engine.New(store, queue, funcs,
//	    engine.WithNotifier(telemetry.NewNotifier(tel)),
//	    engine.WithLogger(tel.Logger.Zerolog()),
//	)
//
//	tel.Events.Subscribe(func(e telemetry.Event) {
//	    fmt.Println(e.Type, e.Message)
//	}, telemetry.FilterByType(telemetry.EventTypeValueChanged))
package telemetry
