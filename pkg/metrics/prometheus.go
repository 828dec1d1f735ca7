package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain/repository.Metrics using Prometheus.
type Recorder struct {
	vendorRequests *prometheus.CounterVec
	fallbacks      *prometheus.CounterVec
	errorsTotal    *prometheus.CounterVec
	confidence     *prometheus.GaugeVec
	latency        *prometheus.HistogramVec
	ticksPublished *prometheus.CounterVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		vendorRequests: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "markethub_vendor_requests_total",
				Help: "Vendor adapter requests by operation and outcome",
			},
			[]string{"vendor", "op", "outcome"},
		),
		fallbacks: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "markethub_fallbacks_total",
				Help: "Primary-to-secondary fallbacks by reason",
			},
			[]string{"reason"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "markethub_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		confidence: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "markethub_confidence",
				Help: "Last observed data confidence per symbol (0-100)",
			},
			[]string{"symbol"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "markethub_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		ticksPublished: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "markethub_ticks_published_total",
				Help: "Ticks published to subscribers by entity kind",
			},
			[]string{"kind"},
		),
	}
}

// RecordVendorRequest records one adapter call outcome.
func (r *Recorder) RecordVendorRequest(vendor, op, outcome string) {
	r.vendorRequests.WithLabelValues(vendor, op, outcome).Inc()
}

// RecordFallback records a router fallback and its reason.
func (r *Recorder) RecordFallback(reason string) {
	r.fallbacks.WithLabelValues(reason).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordConfidence records the last confidence score for a symbol.
func (r *Recorder) RecordConfidence(symbol string, confidence float64) {
	r.confidence.WithLabelValues(symbol).Set(confidence)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// RecordTickPublished records one published tick.
func (r *Recorder) RecordTickPublished(kind string) {
	r.ticksPublished.WithLabelValues(kind).Inc()
}
