package metrics

import (
	"fmt"
	"io"
	"time"

	"github.com/prometheus/common/expfmt"
)

// RecordDerivation records a finished derivation with its duration
func (r *Registry) RecordDerivation(algorithm, status string, dklen int, duration time.Duration) {
	r.DerivationsTotal.WithLabelValues(algorithm, status).Inc()
	r.DerivationDuration.WithLabelValues(algorithm).Observe(duration.Seconds())
	if status == StatusSuccess {
		r.DerivedBytesTotal.WithLabelValues(algorithm).Add(float64(dklen))
	}
}

// TrackInFlight increments the in-flight gauge and returns the matching decrement
func (r *Registry) TrackInFlight() func() {
	r.DerivationsInFlight.Inc()
	return r.DerivationsInFlight.Dec
}

// RecordPolicyRejection records a parameter block refused by policy
func (r *Registry) RecordPolicyRejection(algorithm, field string) {
	r.PolicyRejectionsTotal.WithLabelValues(algorithm, field).Inc()
}

// RecordDecodeFailure records a parameter block that could not be decoded
func (r *Registry) RecordDecodeFailure(kind string) {
	r.DecodeFailuresTotal.WithLabelValues(kind).Inc()
}

// Derivation status labels
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// WriteText gathers every metric and writes it in the Prometheus text format
func (r *Registry) WriteText(w io.Writer) error {
	r.UpdateSystemMetrics()

	families, err := r.registry.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}

	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return fmt.Errorf("failed to encode metric %s: %w", mf.GetName(), err)
		}
	}
	return nil
}
