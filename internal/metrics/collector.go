package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Collector records run engine metrics.
type Collector struct {
	runsTotal    *prometheus.CounterVec
	runDuration  *prometheus.HistogramVec
	retriesTotal *prometheus.CounterVec
	runsActive   *prometheus.GaugeVec

	cacheHits   *prometheus.CounterVec
	cacheMisses *prometheus.CounterVec

	eventsDropped prometheus.Counter

	logger *zap.Logger
}

// NewCollector registers the engine metrics under namespace on the default
// registry.
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	c.runsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "task_runs_total",
			Help:      "Total number of task runs by terminal state",
		},
		[]string{"task", "state"},
	)

	c.runDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "task_run_duration_seconds",
			Help:      "Task run duration from the first Running transition to the terminal state",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 300},
		},
		[]string{"task"},
	)

	c.retriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "task_run_retries_total",
			Help:      "Total number of retry attempts",
		},
		[]string{"task"},
	)

	c.runsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "task_runs_active",
			Help:      "Number of task runs currently executing",
		},
		[]string{"task"},
	)

	c.cacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of cache hits",
		},
		[]string{"task"},
	)

	c.cacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total number of cache misses",
		},
		[]string{"task"},
	)

	c.eventsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dropped_total",
			Help:      "Total number of lifecycle events dropped on buffer overflow",
		},
	)

	logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// RecordRun records one finished run with its terminal state.
func (c *Collector) RecordRun(task, terminalState string, duration time.Duration) {
	c.runsTotal.WithLabelValues(task, terminalState).Inc()
	c.runDuration.WithLabelValues(task).Observe(duration.Seconds())
}

// RecordRetry records one retry attempt.
func (c *Collector) RecordRetry(task string) {
	c.retriesTotal.WithLabelValues(task).Inc()
}

// RunStarted marks a run as executing.
func (c *Collector) RunStarted(task string) {
	c.runsActive.WithLabelValues(task).Inc()
}

// RunFinished unmarks an executing run.
func (c *Collector) RunFinished(task string) {
	c.runsActive.WithLabelValues(task).Dec()
}

// RecordCacheHit records a cache hit.
func (c *Collector) RecordCacheHit(task string) {
	c.cacheHits.WithLabelValues(task).Inc()
}

// RecordCacheMiss records a cache miss.
func (c *Collector) RecordCacheMiss(task string) {
	c.cacheMisses.WithLabelValues(task).Inc()
}

// RecordDroppedEvent counts one dropped lifecycle event.
func (c *Collector) RecordDroppedEvent() {
	c.eventsDropped.Inc()
}
