// Package deriver runs keystore key derivations under a policy, with
// structured logging, Prometheus metrics and optional background
// execution that callers can abandon through a context.
package deriver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/dd0wney/keystore-kdf/pkg/config"
	"github.com/dd0wney/keystore-kdf/pkg/kdf"
	"github.com/dd0wney/keystore-kdf/pkg/logging"
	"github.com/dd0wney/keystore-kdf/pkg/metrics"
	"github.com/dd0wney/keystore-kdf/pkg/parallel"
)

// ErrClosed is returned by DeriveContext after Close
var ErrClosed = errors.New("deriver closed")

// Deriver derives keys from passphrases for parameter blocks accepted by its policy
type Deriver struct {
	policy  config.Policy
	logger  logging.Logger
	metrics *metrics.Registry
	pool    *parallel.WorkerPool
}

// Option configures a Deriver
type Option func(*Deriver)

// WithLogger sets the logger (default: logging.DefaultLogger())
func WithLogger(logger logging.Logger) Option {
	return func(d *Deriver) {
		d.logger = logger
	}
}

// WithMetrics sets the metrics registry (default: a private registry)
func WithMetrics(registry *metrics.Registry) Option {
	return func(d *Deriver) {
		d.metrics = registry
	}
}

// New creates a Deriver for the given policy
func New(policy config.Policy, opts ...Option) (*Deriver, error) {
	if err := policy.Validate(); err != nil {
		return nil, fmt.Errorf("invalid policy: %w", err)
	}

	d := &Deriver{policy: policy}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = logging.DefaultLogger()
	}
	if d.metrics == nil {
		d.metrics = metrics.NewRegistry()
	}
	d.logger = d.logger.With(logging.Component("deriver"))

	pool, err := parallel.NewWorkerPool(policy.Workers, d.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create worker pool: %w", err)
	}
	d.pool = pool

	return d, nil
}

// Policy returns the policy the Deriver enforces
func (d *Deriver) Policy() config.Policy {
	return d.policy
}

// Metrics returns the registry derivations are recorded in
func (d *Deriver) Metrics() *metrics.Registry {
	return d.metrics
}

// NewParams returns a fresh parameter block following the policy
func (d *Deriver) NewParams() (kdf.Params, error) {
	params, err := d.policy.NewParams()
	if err != nil {
		return kdf.Params{}, err
	}
	d.logger.Debug("generated kdf parameters",
		logging.Algorithm(params.KDF.Name()),
		logging.DKLen(params.DKLen),
	)
	return params, nil
}

// NewParamsForLevel returns a fresh scrypt parameter block for level
func (d *Deriver) NewParamsForLevel(level kdf.SecurityLevel) (kdf.Params, error) {
	params, err := d.policy.NewParamsForLevel(level)
	if err != nil {
		d.logger.Warn("security level rejected", logging.SecurityLevel(level.String()), logging.Error(err))
		return kdf.Params{}, err
	}
	return params, nil
}

// Decode parses a flat KDF parameter block and checks it against the policy
func (d *Deriver) Decode(data []byte) (kdf.Params, error) {
	var params kdf.Params
	if err := json.Unmarshal(data, &params); err != nil {
		kind := errorKind(err)
		d.metrics.RecordDecodeFailure(kind)
		d.logger.Warn("kdf parameters rejected", logging.String("kind", kind), logging.Error(err))
		return kdf.Params{}, err
	}
	if err := d.check(params, d.logger); err != nil {
		return kdf.Params{}, err
	}
	return params, nil
}

// Derive derives params.DKLen bytes from passphrase on the calling goroutine
func (d *Deriver) Derive(params kdf.Params, passphrase string) ([]byte, error) {
	return d.derive(params, passphrase, d.logger)
}

// DeriveContext runs the derivation on the worker pool. If ctx ends first,
// while waiting for a queue slot or for the result, it returns ctx.Err();
// a running computation cannot be interrupted, so it completes in the
// background and its result is discarded.
func (d *Deriver) DeriveContext(ctx context.Context, params kdf.Params, passphrase string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	logger := d.logger.With(logging.JobID(uuid.NewString()))

	type result struct {
		key []byte
		err error
	}
	done := make(chan result, 1)

	err := d.pool.SubmitContext(ctx, func() {
		// Skip the work entirely if the caller left while we were queued
		if err := ctx.Err(); err != nil {
			done <- result{err: err}
			return
		}
		key, err := d.derive(params, passphrase, logger)
		done <- result{key: key, err: err}
	})
	switch {
	case errors.Is(err, parallel.ErrPoolClosed):
		d.metrics.WorkerQueueRejections.Inc()
		return nil, ErrClosed
	case err != nil:
		// The context ended while every queue slot was taken
		return nil, d.abandon(logger, err)
	}

	select {
	case r := <-done:
		return r.key, r.err
	case <-ctx.Done():
		return nil, d.abandon(logger, ctx.Err())
	}
}

func (d *Deriver) abandon(logger logging.Logger, err error) error {
	d.metrics.AbandonedDerivationsTotal.Inc()
	logger.Warn("derivation abandoned", logging.Error(err))
	return err
}

// Close stops the worker pool, waiting for queued derivations
func (d *Deriver) Close() {
	d.pool.Close()
}

func (d *Deriver) derive(params kdf.Params, passphrase string, logger logging.Logger) ([]byte, error) {
	if err := d.check(params, logger); err != nil {
		return nil, err
	}

	name := params.KDF.Name()
	defer d.metrics.TrackInFlight()()

	timer := logging.StartTimer(logger, "key derivation",
		logging.Algorithm(name),
		logging.DKLen(params.DKLen),
		logging.Redacted("passphrase"),
	)

	key, err := params.DeriveKey(passphrase)
	if err != nil {
		elapsed := timer.EndError(err)
		d.metrics.RecordDerivation(name, metrics.StatusError, params.DKLen, elapsed)
		return nil, err
	}

	elapsed := timer.End()
	d.metrics.RecordDerivation(name, metrics.StatusSuccess, params.DKLen, elapsed)
	return key, nil
}

func (d *Deriver) check(params kdf.Params, logger logging.Logger) error {
	err := d.policy.Check(params)
	if err == nil {
		return nil
	}

	algorithm := "none"
	if params.KDF != nil {
		algorithm = params.KDF.Name()
	}

	field := errorKind(err)
	fields := []logging.Field{logging.Algorithm(algorithm)}
	var le *config.LimitError
	var pe *kdf.ParamError
	switch {
	case errors.As(err, &le):
		field = le.Field
		fields = append(fields, logging.Uint64("value", le.Value), logging.Uint64("limit", le.Limit))
	case errors.As(err, &pe):
		field = pe.Field
		fields = append(fields, logging.Uint64("value", pe.Value))
	}

	d.metrics.RecordPolicyRejection(algorithm, field)
	logger.Warn("kdf parameters rejected", append(fields, logging.String("field", field), logging.Error(err))...)
	return err
}

// errorKind maps an error to a low-cardinality metrics label
func errorKind(err error) string {
	switch {
	case errors.Is(err, kdf.ErrUnsupportedKDF):
		return "unsupported_kdf"
	case errors.Is(err, kdf.ErrUnsupportedPRF):
		return "unsupported_prf"
	case errors.Is(err, kdf.ErrInvalidSalt):
		return "invalid_salt"
	case errors.Is(err, kdf.ErrInvalidParameters):
		return "invalid_parameters"
	case errors.Is(err, config.ErrPolicyViolation):
		return "policy"
	case errors.Is(err, kdf.ErrDerivationFailure):
		return "derivation_failure"
	default:
		return "malformed"
	}
}
