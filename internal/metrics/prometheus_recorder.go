package metrics

import (
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusRecorder forwards Recorder events to Prometheus collectors.
type PrometheusRecorder struct {
	registry            *prom.Registry
	generationsTotal    *prom.CounterVec
	generationDuration  *prom.HistogramVec
	conversionDuration  *prom.HistogramVec
	activeArtifacts     prom.Gauge
	evictionsTotal      *prom.CounterVec
}

// NewPrometheusRecorder creates a recorder with its own registry.
func NewPrometheusRecorder() *PrometheusRecorder {
	registry := prom.NewRegistry()
	r := &PrometheusRecorder{
		registry: registry,
		generationsTotal: prom.NewCounterVec(prom.CounterOpts{
			Name: "docgen_generations_total",
			Help: "Document generations by format and result.",
		}, []string{"format", "result"}),
		generationDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Name:    "docgen_generation_duration_seconds",
			Help:    "End-to-end generation pipeline duration.",
			Buckets: prom.DefBuckets,
		}, []string{"format"}),
		conversionDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Name:    "docgen_conversion_duration_seconds",
			Help:    "External converter subprocess duration.",
			Buckets: prom.DefBuckets,
		}, []string{"format"}),
		activeArtifacts: prom.NewGauge(prom.GaugeOpts{
			Name: "docgen_artifacts_active",
			Help: "Artifacts currently registered and unexpired.",
		}),
		evictionsTotal: prom.NewCounterVec(prom.CounterOpts{
			Name: "docgen_artifact_evictions_total",
			Help: "Artifact evictions by reason.",
		}, []string{"reason"}),
	}
	registry.MustRegister(
		r.generationsTotal,
		r.generationDuration,
		r.conversionDuration,
		r.activeArtifacts,
		r.evictionsTotal,
	)
	return r
}

func (r *PrometheusRecorder) IncGeneration(format string, result ResultLabel) {
	r.generationsTotal.WithLabelValues(format, string(result)).Inc()
}

func (r *PrometheusRecorder) ObserveGenerationDuration(format string, d time.Duration) {
	r.generationDuration.WithLabelValues(format).Observe(d.Seconds())
}

func (r *PrometheusRecorder) ObserveConversionDuration(format string, d time.Duration) {
	r.conversionDuration.WithLabelValues(format).Observe(d.Seconds())
}

func (r *PrometheusRecorder) SetActiveArtifacts(n int) {
	r.activeArtifacts.Set(float64(n))
}

func (r *PrometheusRecorder) IncEviction(reason EvictionReason) {
	r.evictionsTotal.WithLabelValues(string(reason)).Inc()
}

// Handler exposes the recorder's registry for the /metrics endpoint.
func (r *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
