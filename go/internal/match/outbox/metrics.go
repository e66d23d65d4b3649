package outbox

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsCollector defines the interface for collecting outbox metrics
type MetricsCollector interface {
	RecordEventProcessed(eventType string, success bool, duration time.Duration)
	RecordBatchProcessed(count int, duration time.Duration)
	RecordOutboxLag(lag int64)
	RecordPublishAttempt(eventType string, attempt int, success bool)
}

// NoOpMetricsCollector is a no-op implementation for when metrics aren't needed
type NoOpMetricsCollector struct{}

func (NoOpMetricsCollector) RecordEventProcessed(string, bool, time.Duration) {}
func (NoOpMetricsCollector) RecordBatchProcessed(int, time.Duration)          {}
func (NoOpMetricsCollector) RecordOutboxLag(int64)                            {}
func (NoOpMetricsCollector) RecordPublishAttempt(string, int, bool)           {}

// PrometheusMetrics implements MetricsCollector using Prometheus
type PrometheusMetrics struct {
	eventCounter    *prometheus.CounterVec
	eventDuration   *prometheus.HistogramVec
	batchSize       prometheus.Histogram
	batchDuration   prometheus.Histogram
	outboxLag       prometheus.Gauge
	publishAttempts *prometheus.CounterVec
}

// NewPrometheusMetrics registers the relay collectors on reg.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	m := &PrometheusMetrics{
		eventCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "battlescore",
			Subsystem: "outbox",
			Name:      "events_total",
			Help:      "Outbox events relayed, by type and status.",
		}, []string{"event_type", "status"}),
		eventDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "battlescore",
			Subsystem: "outbox",
			Name:      "publish_duration_seconds",
			Help:      "Time to publish one event to JetStream.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"event_type"}),
		batchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "battlescore",
			Subsystem: "outbox",
			Name:      "batch_size",
			Help:      "Events sent per fallback sweep.",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100},
		}),
		batchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "battlescore",
			Subsystem: "outbox",
			Name:      "batch_duration_seconds",
			Help:      "Duration of a fallback sweep.",
			Buckets:   prometheus.DefBuckets,
		}),
		outboxLag: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "battlescore",
			Subsystem: "outbox",
			Name:      "pending_events",
			Help:      "Unsent rows in match_outbox at the last health check.",
		}),
		publishAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "battlescore",
			Subsystem: "outbox",
			Name:      "publish_attempts_total",
			Help:      "Publish attempts, by type, attempt number and status.",
		}, []string{"event_type", "attempt", "status"}),
	}
	reg.MustRegister(m.eventCounter, m.eventDuration, m.batchSize, m.batchDuration, m.outboxLag, m.publishAttempts)
	return m
}

func (m *PrometheusMetrics) RecordEventProcessed(eventType string, success bool, duration time.Duration) {
	m.eventCounter.WithLabelValues(eventType, status(success)).Inc()
	if success {
		m.eventDuration.WithLabelValues(eventType).Observe(duration.Seconds())
	}
}

func (m *PrometheusMetrics) RecordBatchProcessed(count int, duration time.Duration) {
	m.batchSize.Observe(float64(count))
	m.batchDuration.Observe(duration.Seconds())
}

func (m *PrometheusMetrics) RecordOutboxLag(lag int64) {
	m.outboxLag.Set(float64(lag))
}

func (m *PrometheusMetrics) RecordPublishAttempt(eventType string, attempt int, success bool) {
	m.publishAttempts.WithLabelValues(eventType, strconv.Itoa(attempt), status(success)).Inc()
}

func status(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
