package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds all key derivation metrics
type Registry struct {
	// Derivation Metrics
	DerivationsTotal    *prometheus.CounterVec
	DerivationDuration  *prometheus.HistogramVec
	DerivationsInFlight prometheus.Gauge
	DerivedBytesTotal   *prometheus.CounterVec

	// Policy Metrics
	PolicyRejectionsTotal *prometheus.CounterVec
	DecodeFailuresTotal   *prometheus.CounterVec

	// Worker Metrics
	AbandonedDerivationsTotal prometheus.Counter
	WorkerQueueRejections     prometheus.Counter

	// System Metrics
	GoRoutines       prometheus.Gauge
	MemoryAllocBytes prometheus.Gauge
	MemorySysBytes   prometheus.Gauge

	registry *prometheus.Registry
}

var (
	// Global registry instance
	defaultRegistry *Registry
	once            sync.Once
)

// DefaultRegistry returns the global metrics registry
func DefaultRegistry() *Registry {
	once.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// NewRegistry creates a new metrics registry with all metrics initialized
func NewRegistry() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),
	}

	r.initDerivationMetrics()
	r.initPolicyMetrics()
	r.initWorkerMetrics()
	r.initSystemMetrics()

	return r
}

// GetPrometheusRegistry returns the underlying Prometheus registry
func (r *Registry) GetPrometheusRegistry() *prometheus.Registry {
	return r.registry
}
