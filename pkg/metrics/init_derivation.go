package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Derivations range from milliseconds (pbkdf2, low scrypt cost) to
// several seconds (ultra)
var derivationBuckets = []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30}

func (r *Registry) initDerivationMetrics() {
	r.DerivationsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "kdf_derivations_total",
			Help: "Total number of key derivations",
		},
		[]string{"algorithm", "status"},
	)

	r.DerivationDuration = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kdf_derivation_duration_seconds",
			Help:    "Key derivation duration in seconds",
			Buckets: derivationBuckets,
		},
		[]string{"algorithm"},
	)

	r.DerivationsInFlight = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "kdf_derivations_in_flight",
			Help: "Number of key derivations currently running",
		},
	)

	r.DerivedBytesTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "kdf_derived_bytes_total",
			Help: "Total number of key bytes derived",
		},
		[]string{"algorithm"},
	)
}

func (r *Registry) initPolicyMetrics() {
	r.PolicyRejectionsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "kdf_policy_rejections_total",
			Help: "Parameter blocks rejected by the derivation policy",
		},
		[]string{"algorithm", "field"},
	)

	r.DecodeFailuresTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "kdf_decode_failures_total",
			Help: "Parameter blocks that failed to decode, by error kind",
		},
		[]string{"kind"},
	)
}

func (r *Registry) initWorkerMetrics() {
	r.AbandonedDerivationsTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "kdf_abandoned_derivations_total",
			Help: "Background derivations whose caller gave up before completion",
		},
	)

	r.WorkerQueueRejections = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "kdf_worker_queue_rejections_total",
			Help: "Derivations refused because the worker pool was closed",
		},
	)
}
