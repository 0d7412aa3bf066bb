package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/secmon-lab/storyweaver/pkg/domain/model"
)

// Metrics holds the Prometheus metrics of the pipeline.
// All methods are safe to call on a nil *Metrics, which records nothing.
type Metrics struct {
	registry *prometheus.Registry

	SegmentsIngestedTotal prometheus.Counter
	RequestsTotal         *prometheus.CounterVec
	ReferencesTotal       *prometheus.CounterVec
	UnsupportedItemsTotal *prometheus.CounterVec
	ItemsDroppedTotal     *prometheus.CounterVec
	SectionsDroppedTotal  prometheus.Counter
	ModelAttemptsTotal    *prometheus.CounterVec
	ModelLatencySeconds   *prometheus.HistogramVec
}

// NewMetrics registers the metrics on a fresh registry that also carries Go and process collectors
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := newMetrics(reg)
	m.registry = reg
	return m
}

func newMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		SegmentsIngestedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "storyweaver_segments_ingested_total",
				Help: "Total segments written by ingest",
			},
		),
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "storyweaver_requests_total",
				Help: "Total pipeline operations by operation and outcome kind",
			},
			[]string{"operation", "status"},
		),
		ReferencesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "storyweaver_references_total",
				Help: "Segment references seen by the validator, kept or dropped",
			},
			[]string{"task", "result"},
		),
		UnsupportedItemsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "storyweaver_unsupported_items_total",
				Help: "Generated items left without any valid segment reference",
			},
			[]string{"task"},
		),
		ItemsDroppedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "storyweaver_items_dropped_total",
				Help: "Generated items dropped because they carried no text",
			},
			[]string{"task"},
		),
		SectionsDroppedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "storyweaver_sections_dropped_total",
				Help: "Outline sections dropped because no point survived repair",
			},
		),
		ModelAttemptsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "storyweaver_model_attempts_total",
				Help: "Generative model calls by task and outcome",
			},
			[]string{"task", "outcome"},
		),
		ModelLatencySeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "storyweaver_model_latency_seconds",
				Help:    "Generative model call latency",
				Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60, 120},
			},
			[]string{"task"},
		),
	}
}

// Handler serves the registry in Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveIngest(segments int) {
	if m == nil {
		return
	}
	m.SegmentsIngestedTotal.Add(float64(segments))
}

func (m *Metrics) ObserveRequest(operation, status string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(operation, status).Inc()
}

// ObserveModelAttempt records one model call. outcome is "success", "transient" or "error".
func (m *Metrics) ObserveModelAttempt(task, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.ModelAttemptsTotal.WithLabelValues(task, outcome).Inc()
	m.ModelLatencySeconds.WithLabelValues(task).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveRepair(task string, report model.RepairReport) {
	if m == nil {
		return
	}
	m.ReferencesTotal.WithLabelValues(task, "kept").Add(float64(report.ReferencesKept))
	m.ReferencesTotal.WithLabelValues(task, "dropped").Add(float64(report.ReferencesDropped))
	m.UnsupportedItemsTotal.WithLabelValues(task).Add(float64(report.UnsupportedItems))
	m.ItemsDroppedTotal.WithLabelValues(task).Add(float64(report.ItemsDropped))
	m.SectionsDroppedTotal.Add(float64(report.SectionsDropped))
}
