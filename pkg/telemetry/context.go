package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Telemetry provides a unified telemetry interface combining logging, tracing, metrics, and events.
type Telemetry struct {
	Logger  *Logger
	Tracer  *Tracer
	Metrics *Metrics
	Events  *EventPublisher
	Config  *Config
}

// telemetryContextKey is the context key for telemetry instances.
type telemetryContextKey struct{}

// NewTelemetry creates a new telemetry instance from configuration.
func NewTelemetry(cfg *Config) (*Telemetry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Initialize logger
	logger, err := NewLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}

	// Initialize tracer
	tracer, err := NewTracer(cfg.Tracing, cfg.ServiceName, cfg.ServiceVersion, cfg.Environment)
	if err != nil {
		return nil, err
	}

	// Initialize metrics
	metrics, err := NewMetrics(cfg.Metrics)
	if err != nil {
		return nil, err
	}

	// Initialize event publisher
	events, err := NewEventPublisher(cfg.Events)
	if err != nil {
		return nil, err
	}

	return &Telemetry{
		Logger:  logger,
		Tracer:  tracer,
		Metrics: metrics,
		Events:  events,
		Config:  cfg,
	}, nil
}

// WithContext adds the telemetry instance to the context.
func (t *Telemetry) WithContext(ctx context.Context) context.Context {
	ctx = context.WithValue(ctx, telemetryContextKey{}, t)
	ctx = t.Logger.WithContext(ctx)
	return ctx
}

// FromTelemetryContext retrieves the telemetry instance from the context.
// If no telemetry is found, it returns nil.
func FromTelemetryContext(ctx context.Context) *Telemetry {
	if t, ok := ctx.Value(telemetryContextKey{}).(*Telemetry); ok {
		return t
	}
	return nil
}

// Shutdown gracefully shuts down all telemetry components.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	// Shutdown in reverse order of initialization
	if err := t.Events.Shutdown(ctx); err != nil {
		return err
	}

	if err := t.Tracer.Shutdown(ctx); err != nil {
		return err
	}

	// Metrics server is not explicitly shut down here as it may need to continue
	// serving metrics until the very end of the application lifecycle

	return nil
}

// Flush forces all pending telemetry data to be exported.
func (t *Telemetry) Flush(ctx context.Context) error {
	return t.Tracer.ForceFlush(ctx)
}

// StartMetricsServer starts the metrics HTTP server if metrics are enabled.
func (t *Telemetry) StartMetricsServer() error {
	return t.Metrics.StartMetricsServer()
}

// Context Helpers for common instrumentation patterns

// InstrumentedContext creates a context with telemetry, logger fields, and a trace span.
type InstrumentedContext struct {
	Ctx    context.Context
	Span   trace.Span
	Logger *Logger
	Timer  *Timer
}

// StartOperation begins an instrumented operation with logging, tracing, and timing.
func StartOperation(ctx context.Context, operation string, attrs ...attribute.KeyValue) *InstrumentedContext {
	tel := FromTelemetryContext(ctx)
	if tel == nil {
		return &InstrumentedContext{
			Ctx:    ctx,
			Logger: FromContext(ctx),
			Timer:  NewTimer(),
		}
	}

	// Start trace span
	spanCtx, span := tel.Tracer.StartSpan(ctx, operation, attrs...)

	// Create logger with operation field
	logger := tel.Logger.WithField("operation", operation)

	// Add trace context to logger if available
	if span.SpanContext().IsValid() {
		logger = logger.WithFields(map[string]interface{}{
			"trace_id": span.SpanContext().TraceID().String(),
			"span_id":  span.SpanContext().SpanID().String(),
		})
	}

	return &InstrumentedContext{
		Ctx:    spanCtx,
		Span:   span,
		Logger: logger,
		Timer:  NewTimer(),
	}
}

// End finishes the instrumented operation, recording success or failure.
func (ic *InstrumentedContext) End(err error) {
	if ic.Span != nil {
		if err != nil {
			RecordError(ic.Span, err)
		} else {
			RecordSuccess(ic.Span)
		}
		ic.Span.End()
	}
}

// WithUnitContext creates a context enriched with unit-of-work telemetry.
func WithUnitContext(ctx context.Context, unitID string) context.Context {
	tel := FromTelemetryContext(ctx)
	if tel == nil {
		return ctx
	}

	// Start unit span
	spanCtx, span := tel.Tracer.StartUnitSpan(ctx, unitID)

	// Create unit-specific logger
	logger := tel.Logger.WithUnitID(unitID)
	spanCtx = logger.WithContext(spanCtx)

	// Store the span in context for later retrieval
	spanCtx = context.WithValue(spanCtx, unitSpanKey{}, span)

	return spanCtx
}

// unitSpanKey is the context key for unit spans.
type unitSpanKey struct{}

// EndUnitContext completes the unit context, recording metrics and events.
func EndUnitContext(ctx context.Context, unitID string, rootCount int, err error) {
	tel := FromTelemetryContext(ctx)
	if tel == nil {
		return
	}

	// Get the unit span from context
	if span, ok := ctx.Value(unitSpanKey{}).(trace.Span); ok {
		if err != nil {
			RecordError(span, err)
		} else {
			RecordSuccess(span)
		}
		span.End()
	}

	if err != nil {
		return
	}

	// Record metrics and publish the commit event
	tel.Metrics.RecordChangeSetCommitted(rootCount)
	_ = tel.Events.PublishChangeSetWritten(unitID, rootCount)
}

// WithUpdateContext creates a context enriched with propagation-update telemetry.
func WithUpdateContext(ctx context.Context, updateID string, rootCount int) context.Context {
	tel := FromTelemetryContext(ctx)
	if tel == nil {
		return ctx
	}

	// Start update span
	spanCtx, span := tel.Tracer.StartUpdateSpan(ctx, updateID, rootCount)

	// Create update-specific logger
	logger := tel.Logger.
		WithField("update_id", updateID).
		WithField("root_count", rootCount)
	spanCtx = logger.WithContext(spanCtx)

	// Store the span and timer in context
	spanCtx = context.WithValue(spanCtx, updateSpanKey{}, span)
	spanCtx = context.WithValue(spanCtx, updateTimerKey{}, NewTimer())

	return spanCtx
}

// updateSpanKey is the context key for update spans.
type updateSpanKey struct{}

// updateTimerKey is the context key for update timers.
type updateTimerKey struct{}

// EndUpdateContext completes the update context, recording metrics and events.
func EndUpdateContext(ctx context.Context, updateID string, rootCount int, err error) {
	tel := FromTelemetryContext(ctx)
	if tel == nil {
		return
	}

	// Get the span from context
	if span, ok := ctx.Value(updateSpanKey{}).(trace.Span); ok {
		if err != nil {
			RecordError(span, err)
		} else {
			RecordSuccess(span)
		}
		span.End()
	}

	// Get the timer from context
	timer, _ := ctx.Value(updateTimerKey{}).(*Timer)

	status := "success"
	if err != nil {
		status = "failure"
	}
	if timer != nil {
		tel.Metrics.RecordUpdateProcessed(status, timer.Duration())
	}

	// Publish events
	if err != nil {
		_ = tel.Events.PublishUpdateFailed(updateID, err.Error())
	} else if timer != nil {
		_ = tel.Events.PublishUpdateProcessed(updateID, rootCount, timer.Duration())
	}
}

// RecordFuncEvaluation records a function evaluation with metrics and tracing.
func RecordFuncEvaluation(ctx context.Context, funcID string, fn func() error) error {
	tel := FromTelemetryContext(ctx)

	// Start span
	var span trace.Span
	if tel != nil {
		ctx, span = tel.Tracer.StartFuncSpan(ctx, funcID)
		defer span.End()
	}

	// Start timer
	timer := NewTimer()

	// Execute evaluation
	err := fn()

	// Record metrics
	if tel != nil {
		tel.Metrics.RecordFuncEvaluation(funcID, timer.Duration())
		if err != nil {
			tel.Metrics.RecordFuncError(funcID)
			RecordError(span, err)
		} else {
			RecordSuccess(span)
		}
	}

	return err
}
