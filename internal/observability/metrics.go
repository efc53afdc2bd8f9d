// Package observability collects Prometheus metrics for the detection
// pipeline behind a single metrics struct registered on a private registry.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds every collector the service exports.
type Metrics struct {
	registry *prometheus.Registry

	DetectionsTotal   *prometheus.CounterVec
	RejectionsTotal   *prometheus.CounterVec
	DecodeDuration    prometheus.Histogram
	InferenceDuration *prometheus.HistogramVec
	RequestDuration   prometheus.Histogram
	ModelsLoaded      prometheus.Gauge
	RequestsInFlight  prometheus.Gauge
}

// NewMetrics builds and registers all collectors.
func NewMetrics() (*Metrics, error) {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.DetectionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "voiceguard_detections_total",
		Help: "Completed detections by classification and fusion rule",
	}, []string{"classification", "rule"})

	m.RejectionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "voiceguard_rejections_total",
		Help: "Requests rejected before inference, by reason",
	}, []string{"reason"})

	m.DecodeDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "voiceguard_decode_duration_seconds",
		Help:    "Audio decode and resample latency",
		Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
	})

	m.InferenceDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "voiceguard_inference_duration_seconds",
		Help:    "Per-window model inference latency",
		Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
	}, []string{"model_id"})

	m.RequestDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "voiceguard_request_duration_seconds",
		Help:    "End to end detection request latency",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
	})

	m.ModelsLoaded = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "voiceguard_models_loaded",
		Help: "Number of classifier models currently loaded",
	})

	m.RequestsInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "voiceguard_requests_in_flight",
		Help: "Detection requests currently being processed",
	})

	collectors := []prometheus.Collector{
		m.DetectionsTotal,
		m.RejectionsTotal,
		m.DecodeDuration,
		m.InferenceDuration,
		m.RequestDuration,
		m.ModelsLoaded,
		m.RequestsInFlight,
	}
	for _, c := range collectors {
		if err := m.registry.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Registry returns the private registry backing the /metrics endpoint.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
