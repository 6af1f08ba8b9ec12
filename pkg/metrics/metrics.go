package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	PredictionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fraudengine",
		Subsystem: "scorer",
		Name:      "predictions_total",
		Help:      "Total scoring decisions by outcome.",
	}, []string{"decision"}) // "BLOCK", "APPROVE"

	PredictLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "fraudengine",
		Subsystem: "scorer",
		Name:      "predict_latency_seconds",
		Help:      "End-to-end prediction latency in seconds.",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	})

	StoreFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fraudengine",
		Subsystem: "featurestore",
		Name:      "failures_total",
		Help:      "Total backing-store failures by operation.",
	}, []string{"op"}) // "get_features", "record_event", "erase"

	StoreHealthy = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "fraudengine",
		Subsystem: "featurestore",
		Name:      "healthy",
		Help:      "1 when the backing store answers the periodic health probe.",
	})

	StorePingLatency = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "fraudengine",
		Subsystem: "featurestore",
		Name:      "ping_latency_ms",
		Help:      "Backing store ping latency from the last health probe.",
	})

	IngestedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fraudengine",
		Subsystem: "ingest",
		Name:      "events_total",
		Help:      "Total stream entries consumed by outcome.",
	}, []string{"outcome"}) // "recorded", "failed"
)

// MustRegister installs all collectors on the default registry. Call once at
// service initialization.
func MustRegister() {
	prometheus.MustRegister(
		PredictionsTotal,
		PredictLatency,
		StoreFailuresTotal,
		StoreHealthy,
		StorePingLatency,
		IngestedTotal,
	)
}
