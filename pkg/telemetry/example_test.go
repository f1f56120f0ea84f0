package telemetry_test

import (
	"context"
	"fmt"
	"time"

	"github.com/propgraph/propgraph/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

// Example_basicSetup demonstrates basic telemetry setup.
func Example_basicSetup() {
	// Create configuration
	cfg := telemetry.DefaultConfig()
	cfg.ServiceName = "propgraph"
	cfg.ServiceVersion = "1.0.0"

	// Initialize telemetry
	tel, err := telemetry.NewTelemetry(cfg)
	if err != nil {
		panic(err)
	}
	defer tel.Shutdown(context.Background())

	// Start metrics server (non-blocking)
	if err := tel.StartMetricsServer(); err != nil {
		panic(err)
	}

	// Add telemetry to context
	ctx := tel.WithContext(context.Background())

	// Use telemetry
	logger := telemetry.FromContext(ctx)
	logger.Info("Application started")

	// Output can vary, so we don't specify output for this example
}

// Example_structuredLogging demonstrates structured logging features.
func Example_structuredLogging() {
	cfg := telemetry.DevelopmentConfig()
	cfg.Logging.Output = "stdout"

	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	// Component-specific logger
	logger := tel.Logger.NewComponentLogger("engine")

	// Add context fields
	logger = logger.WithFields(map[string]interface{}{
		"unit_id":      "unit-123",
		"component_id": "component-456",
	})

	// Log at different levels
	logger.Debug("Scaffolding component values")
	logger.Info("Component created successfully")
	logger.Warn("Socket arity nearly exhausted")

	// Log with error
	err := fmt.Errorf("socket arity exhausted")
	logger.WithError(err).Error("Failed to create connection")

	// Output varies, no output specified
}

// Example_distributedTracing demonstrates distributed tracing usage.
func Example_distributedTracing() {
	cfg := telemetry.DevelopmentConfig()
	cfg.Tracing.Exporter = "stdout"

	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	ctx := tel.WithContext(context.Background())

	// Start a span
	ctx, span := tel.Tracer.Start(ctx, "attach_frame")
	defer span.End()

	// Add attributes
	span.SetAttributes(
		attribute.String("component.id", "component-789"),
		attribute.Int("socket.count", 5),
	)

	// Add event
	span.AddEvent("validation.complete")

	// Nested span
	ctx, childSpan := tel.Tracer.Start(ctx, "create_connection")
	defer childSpan.End()

	childSpan.SetAttributes(
		attribute.String("edge.kind", "configuration"),
		attribute.String("operation", "connect"),
	)

	// Simulate work
	time.Sleep(10 * time.Millisecond)

	// Record success
	telemetry.RecordSuccess(childSpan)

	// Output varies, no output specified
}

// Example_metricsCollection demonstrates metrics collection.
func Example_metricsCollection() {
	cfg := telemetry.DefaultConfig()
	cfg.Metrics.Enabled = true

	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	// Record change set metrics
	tel.Metrics.RecordChangeSetCommitted(3)

	// Simulate update processing
	start := time.Now()
	time.Sleep(50 * time.Millisecond)
	duration := time.Since(start)

	tel.Metrics.RecordUpdateProcessed("success", duration)

	// Record function metrics
	tel.Metrics.RecordFuncEvaluation("attr:identity", 15*time.Millisecond)

	// Record graph metrics
	tel.Metrics.RecordFrameConnection()
	tel.Metrics.RecordEdgeCreated("configuration")

	// Record error metrics
	tel.Metrics.RecordError("store", "NOT_FOUND")

	// Set gauges
	tel.Metrics.SetComponentCount(10)
	tel.Metrics.SetQueuedUpdates(2)

	fmt.Println("Metrics recorded successfully")
	// Output: Metrics recorded successfully
}

// Example_eventPublishing demonstrates event publishing and subscription.
func Example_eventPublishing() {
	cfg := telemetry.DefaultConfig()
	cfg.Events.Enabled = true
	cfg.Events.EnableAsync = false // Synchronous for example

	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	// Subscribe to events
	tel.Events.Subscribe(func(event telemetry.Event) {
		fmt.Printf("Event: %s - %s\n", event.Type, event.Message)
	}, nil) // No filter, receive all events

	// Publish events
	tel.Events.PublishChangeSetWritten("unit-123", 2)
	tel.Events.PublishValueChanged("value-456")
	tel.Events.PublishFrameConnected("parent-1", "child-2")

	// Output varies due to async nature, no output specified
}

// Example_unitInstrumentation demonstrates instrumenting a unit of work.
func Example_unitInstrumentation() {
	cfg := telemetry.DevelopmentConfig()
	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	ctx := tel.WithContext(context.Background())

	// Start unit context
	unitID := "unit-123"
	ctx = telemetry.WithUnitContext(ctx, unitID)

	// Execute unit work (simulated)
	logger := telemetry.FromContext(ctx)
	logger.Info("Writing attribute values")
	time.Sleep(10 * time.Millisecond)

	// End unit context with the number of enqueued roots
	telemetry.EndUnitContext(ctx, unitID, 2, nil)

	fmt.Println("Unit instrumentation complete")
	// Output: Unit instrumentation complete
}

// Example_funcInstrumentation demonstrates instrumenting function evaluations.
func Example_funcInstrumentation() {
	cfg := telemetry.DevelopmentConfig()
	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	ctx := tel.WithContext(context.Background())

	// Record a function evaluation
	err := telemetry.RecordFuncEvaluation(ctx, "attr:identity", func() error {
		// Simulate evaluation work
		time.Sleep(15 * time.Millisecond)
		return nil
	})

	if err == nil {
		fmt.Println("Function evaluation completed successfully")
	}

	// Output: Function evaluation completed successfully
}

// Example_instrumentedOperation demonstrates using the InstrumentedContext helper.
func Example_instrumentedOperation() {
	cfg := telemetry.DevelopmentConfig()
	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	ctx := tel.WithContext(context.Background())

	// Start instrumented operation
	ic := telemetry.StartOperation(ctx, "load_catalog",
		attribute.String("catalog.path", "/etc/propgraph/catalog.cue"),
	)
	defer ic.End(nil)

	// Use the instrumented context
	ic.Logger.Info("Loading schema catalog")

	// Simulate loading
	time.Sleep(5 * time.Millisecond)

	ic.Logger.Debug("Schema catalog loaded")

	fmt.Println("Operation instrumentation complete")
	// Output: Operation instrumentation complete
}

// Example_eventFiltering demonstrates event filtering.
func Example_eventFiltering() {
	cfg := telemetry.DefaultConfig()
	cfg.Events.Enabled = true
	cfg.Events.EnableAsync = false

	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	// Subscribe with level filter (only warnings and errors)
	tel.Events.Subscribe(func(event telemetry.Event) {
		fmt.Printf("Important event: %s\n", event.Type)
	}, telemetry.FilterByLevel(telemetry.EventLevelWarning))

	// Subscribe with type filter (only update failures)
	tel.Events.Subscribe(func(event telemetry.Event) {
		fmt.Printf("Failed update: %s\n", event.Message)
	}, telemetry.FilterByType(telemetry.EventTypeUpdateFailed))

	// Publish various events
	tel.Events.PublishValueChanged("value-1")                    // Info - filtered by level filter
	tel.Events.PublishUpdateFailed("update-1", "func not found") // Error - passes both filters
	tel.Events.PublishPolicyViolation("component-1", "no-self-connection", "denied")

	// Output varies, no output specified
}

// Example_productionConfiguration demonstrates production-ready configuration.
func Example_productionConfiguration() {
	cfg := telemetry.ProductionConfig()

	// Customize for your environment
	cfg.ServiceName = "propgraph"
	cfg.ServiceVersion = "1.2.3"
	cfg.Environment = "production"

	// Configure OTLP exporter
	cfg.Tracing.Exporter = "otlp"
	cfg.Tracing.Endpoint = "otel-collector.monitoring.svc.cluster.local:4317"
	cfg.Tracing.SamplingRate = 0.1 // 10% sampling
	cfg.Tracing.Insecure = false   // Use TLS in production

	// Configure metrics
	cfg.Metrics.ListenAddress = ":9090"
	cfg.Metrics.Namespace = "propgraph"

	// Configure events
	cfg.Events.BufferSize = 10000
	cfg.Events.FlushInterval = 5 * time.Second

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		panic(err)
	}

	fmt.Println("Production configuration validated")
	// Output: Production configuration validated
}

// Example_errorRecording demonstrates error recording with proper classification.
func Example_errorRecording() {
	cfg := telemetry.DevelopmentConfig()
	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	ctx := tel.WithContext(context.Background())

	// Start a span
	ctx, span := tel.Tracer.Start(ctx, "resolve_value")
	defer span.End()

	// Simulate an error
	err := fmt.Errorf("no value matches read context")

	if err != nil {
		// Record error on span
		telemetry.RecordError(span, err)

		// Record error metric with classification
		tel.Metrics.RecordError("integrity", "VALUE_NOT_FOUND_FOR_CONTEXT")

		// Log error
		logger := telemetry.FromContext(ctx)
		logger.WithError(err).Error("Resolution failed")
	}

	fmt.Println("Error recording complete")
	// Output: Error recording complete
}

// Example_multipleComponents demonstrates telemetry in a multi-component system.
func Example_multipleComponents() {
	cfg := telemetry.DevelopmentConfig()
	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	// Component-specific loggers
	engineLogger := tel.Logger.NewComponentLogger("engine")
	runnerLogger := tel.Logger.NewComponentLogger("job_runner")
	catalogLogger := tel.Logger.NewComponentLogger("catalog")

	engineLogger.Info("Engine initialized")
	runnerLogger.Info("Draining propagation queue")
	catalogLogger.Info("Loading schema definitions")

	fmt.Println("Multi-component logging complete")
	// Output: Multi-component logging complete
}
