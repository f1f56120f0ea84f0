package telemetry

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for propgraph.
type Metrics struct {
	config MetricsConfig

	// Change set metrics
	changeSetsCommitted *prometheus.CounterVec
	propagationRoots    prometheus.Counter

	// Value metrics
	valuesChanged  prometheus.Counter
	valuesResolved prometheus.Counter

	// Update (propagation job) metrics
	updatesProcessed *prometheus.CounterVec
	updateDuration   *prometheus.HistogramVec

	// Function metrics
	funcEvaluations *prometheus.CounterVec
	funcDuration    *prometheus.HistogramVec
	funcErrors      *prometheus.CounterVec

	// Graph metrics
	frameConnections prometheus.Counter
	edgesCreated     *prometheus.CounterVec

	// Error metrics
	errorsByClass *prometheus.CounterVec
	errorsByCode  *prometheus.CounterVec

	// System metrics
	componentsManaged prometheus.Gauge
	queuedUpdates     prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		// Return a no-op metrics instance
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.DefaultHistogramBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	// Create a new registry
	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		// Change set metrics
		changeSetsCommitted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "change_sets_committed_total",
				Help:      "Total number of units of work committed",
			},
			[]string{"has_roots"},
		),
		propagationRoots: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "propagation_roots_enqueued_total",
				Help:      "Total number of propagation roots enqueued",
			},
		),

		// Value metrics
		valuesChanged: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "values_changed_total",
				Help:      "Total number of attribute value changes",
			},
		),
		valuesResolved: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "values_resolved_total",
				Help:      "Total number of attribute value resolutions",
			},
		),

		// Update metrics
		updatesProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dependent_value_updates_total",
				Help:      "Total number of dependent value updates processed",
			},
			[]string{"status"},
		),
		updateDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "dependent_value_update_duration_seconds",
				Help:      "Duration of dependent value update processing in seconds",
				Buckets:   buckets,
			},
			[]string{"status"},
		),

		// Function metrics
		funcEvaluations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "func_evaluations_total",
				Help:      "Total number of function evaluations",
			},
			[]string{"func"},
		),
		funcDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "func_evaluation_duration_seconds",
				Help:      "Duration of function evaluations in seconds",
				Buckets:   buckets,
			},
			[]string{"func"},
		),
		funcErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "func_errors_total",
				Help:      "Total number of function evaluation errors",
			},
			[]string{"func"},
		),

		// Graph metrics
		frameConnections: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "frame_connections_total",
				Help:      "Total number of components attached to frames",
			},
		),
		edgesCreated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "edges_created_total",
				Help:      "Total number of edges created",
			},
			[]string{"kind"},
		),

		// Error metrics
		errorsByClass: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_by_class_total",
				Help:      "Total number of errors by error class",
			},
			[]string{"class"},
		),
		errorsByCode: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_by_code_total",
				Help:      "Total number of errors by error code",
			},
			[]string{"code"},
		),

		// System metrics
		componentsManaged: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "components_managed",
				Help:      "Current number of managed components",
			},
		),
		queuedUpdates: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "queued_updates",
				Help:      "Current number of queued dependent value updates",
			},
		),
	}

	// Register all metrics
	registry.MustRegister(
		m.changeSetsCommitted,
		m.propagationRoots,
		m.valuesChanged,
		m.valuesResolved,
		m.updatesProcessed,
		m.updateDuration,
		m.funcEvaluations,
		m.funcDuration,
		m.funcErrors,
		m.frameConnections,
		m.edgesCreated,
		m.errorsByClass,
		m.errorsByCode,
		m.componentsManaged,
		m.queuedUpdates,
	)

	return m, nil
}

// Change Set Metrics

// RecordChangeSetCommitted records a committed unit of work.
func (m *Metrics) RecordChangeSetCommitted(rootCount int) {
	if m.changeSetsCommitted == nil {
		return
	}
	hasRoots := "false"
	if rootCount > 0 {
		hasRoots = "true"
	}
	m.changeSetsCommitted.WithLabelValues(hasRoots).Inc()
	m.propagationRoots.Add(float64(rootCount))
}

// Value Metrics

// RecordValueChanged increments the counter for attribute value changes.
func (m *Metrics) RecordValueChanged() {
	if m.valuesChanged == nil {
		return
	}
	m.valuesChanged.Inc()
}

// RecordValueResolved increments the counter for attribute value resolutions.
func (m *Metrics) RecordValueResolved() {
	if m.valuesResolved == nil {
		return
	}
	m.valuesResolved.Inc()
}

// Update Metrics

// RecordUpdateProcessed records a dependent value update with its status and duration.
func (m *Metrics) RecordUpdateProcessed(status string, duration time.Duration) {
	if m.updatesProcessed == nil {
		return
	}
	m.updatesProcessed.WithLabelValues(status).Inc()
	m.updateDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// Function Metrics

// RecordFuncEvaluation records a function evaluation with its duration.
func (m *Metrics) RecordFuncEvaluation(funcID string, duration time.Duration) {
	if m.funcEvaluations == nil {
		return
	}
	m.funcEvaluations.WithLabelValues(funcID).Inc()
	m.funcDuration.WithLabelValues(funcID).Observe(duration.Seconds())
}

// RecordFuncError records a function evaluation error.
func (m *Metrics) RecordFuncError(funcID string) {
	if m.funcErrors == nil {
		return
	}
	m.funcErrors.WithLabelValues(funcID).Inc()
}

// Graph Metrics

// RecordFrameConnection increments the counter for frame attachments.
func (m *Metrics) RecordFrameConnection() {
	if m.frameConnections == nil {
		return
	}
	m.frameConnections.Inc()
}

// RecordEdgeCreated records a created edge by kind.
func (m *Metrics) RecordEdgeCreated(kind string) {
	if m.edgesCreated == nil {
		return
	}
	m.edgesCreated.WithLabelValues(kind).Inc()
}

// Error Metrics

// RecordError records an error by class and optionally by code.
func (m *Metrics) RecordError(errorClass, errorCode string) {
	if m.errorsByClass == nil {
		return
	}
	m.errorsByClass.WithLabelValues(errorClass).Inc()
	if errorCode != "" && m.errorsByCode != nil {
		m.errorsByCode.WithLabelValues(errorCode).Inc()
	}
}

// System Metrics

// SetComponentCount sets the current count of managed components.
func (m *Metrics) SetComponentCount(count float64) {
	if m.componentsManaged == nil {
		return
	}
	m.componentsManaged.Set(count)
}

// SetQueuedUpdates sets the current number of queued updates.
func (m *Metrics) SetQueuedUpdates(count float64) {
	if m.queuedUpdates == nil {
		return
	}
	m.queuedUpdates.Set(count)
}

// Timer provides a convenient way to time operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer was created.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// ObserveDuration is a helper to time an operation and record it.
func (t *Timer) ObserveDuration(observer prometheus.Observer) {
	observer.Observe(t.Duration().Seconds())
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// StartMetricsServer starts an HTTP server to expose metrics.
func (m *Metrics) StartMetricsServer() error {
	if !m.config.Enabled {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(m.config.Path, m.Handler())

	server := &http.Server{
		Addr:              m.config.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			// Log error but don't fail the application
			fmt.Printf("metrics server error: %v\n", err)
		}
	}()

	return nil
}
