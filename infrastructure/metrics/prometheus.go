// Package metrics exports tournament and provider metrics to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ahrav/go-tourney/internal/ports"
)

// Metric names understood by PrometheusMetrics. Other names fall through
// to the generic event counter, gauge and duration histogram.
const (
	LLMRequestDuration = "llm_request_duration_seconds"
	LLMRequests        = "llm_requests_total"
	LLMTokens          = "llm_tokens_total"
	Judgments          = "tourney_judgments_total"
	CacheLookups       = "tourney_cache_lookups_total"
	Matrices           = "tourney_matrices_total"
	TextsDone          = "tourney_texts_done"
)

// PrometheusMetrics implements ports.MetricsCollector.
type PrometheusMetrics struct {
	registry prometheus.Gatherer

	llmLatency   *prometheus.HistogramVec
	llmRequests  *prometheus.CounterVec
	llmTokens    *prometheus.CounterVec
	judgments    *prometheus.CounterVec
	cacheLookups *prometheus.CounterVec
	matrices     *prometheus.CounterVec

	operationLatency *prometheus.HistogramVec
	events           *prometheus.CounterVec
	gauges           *prometheus.GaugeVec
}

// NewPrometheusMetrics registers every metric on a fresh registry, so
// several instances can coexist in one process.
func NewPrometheusMetrics() *PrometheusMetrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return NewPrometheusMetricsWith(reg, reg)
}

// NewPrometheusMetricsWith registers on reg and serves from gatherer.
func NewPrometheusMetricsWith(reg prometheus.Registerer, gatherer prometheus.Gatherer) *PrometheusMetrics {
	factory := promauto.With(reg)
	llmLabels := []string{"provider", "model", "status"}

	return &PrometheusMetrics{
		registry: gatherer,
		llmLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    LLMRequestDuration,
				Help:    "Latency of model requests, including retries.",
				Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 80, 160},
			},
			llmLabels,
		),
		llmRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: LLMRequests,
				Help: "Model requests by outcome.",
			},
			llmLabels,
		),
		llmTokens: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: LLMTokens,
				Help: "Tokens sent to and received from models.",
			},
			[]string{"provider", "model", "direction"},
		),
		judgments: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: Judgments,
				Help: "Pairwise judgments by judge and verdict.",
			},
			[]string{"judge", "verdict"},
		),
		cacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: CacheLookups,
				Help: "Response cache lookups by result.",
			},
			[]string{"result"},
		),
		matrices: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: Matrices,
				Help: "Score matrices by source (stored or computed).",
			},
			[]string{"source"},
		),
		operationLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tourney_operation_duration_seconds",
				Help:    "Duration of tournament operations.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		events: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tourney_events_total",
				Help: "Miscellaneous tournament events.",
			},
			[]string{"event"},
		),
		gauges: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "tourney_state",
				Help: "Current tournament state values.",
			},
			[]string{"metric"},
		),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (pm *PrometheusMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(pm.registry, promhttp.HandlerOpts{})
}

// RecordLatency observes duration under operation.
func (pm *PrometheusMetrics) RecordLatency(operation string, duration time.Duration, _ map[string]string) {
	pm.operationLatency.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordCounter adds value to the counter named metric.
func (pm *PrometheusMetrics) RecordCounter(metric string, value float64, labels map[string]string) {
	switch metric {
	case LLMRequests:
		pm.llmRequests.WithLabelValues(label(labels, "provider"), label(labels, "model"), label(labels, "status")).Add(value)
	case LLMTokens:
		pm.llmTokens.WithLabelValues(label(labels, "provider"), label(labels, "model"), label(labels, "direction")).Add(value)
	case Judgments:
		pm.judgments.WithLabelValues(label(labels, "judge"), label(labels, "verdict")).Add(value)
	case CacheLookups:
		pm.cacheLookups.WithLabelValues(label(labels, "result")).Add(value)
	case Matrices:
		pm.matrices.WithLabelValues(label(labels, "source")).Add(value)
	default:
		pm.events.WithLabelValues(metric).Add(value)
	}
}

// RecordGauge sets the gauge named metric.
func (pm *PrometheusMetrics) RecordGauge(metric string, value float64, _ map[string]string) {
	pm.gauges.WithLabelValues(metric).Set(value)
}

// RecordHistogram observes value in the histogram named metric.
func (pm *PrometheusMetrics) RecordHistogram(metric string, value float64, labels map[string]string) {
	if metric == LLMRequestDuration {
		pm.llmLatency.WithLabelValues(label(labels, "provider"), label(labels, "model"), label(labels, "status")).Observe(value)
		return
	}
	pm.operationLatency.WithLabelValues(metric).Observe(value)
}

func label(labels map[string]string, key string) string {
	if v := labels[key]; v != "" {
		return v
	}
	return "unknown"
}

var _ ports.MetricsCollector = (*PrometheusMetrics)(nil)
