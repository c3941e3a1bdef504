package config

import (
	"fmt"

	"github.com/dd0wney/keystore-kdf/pkg/kdf"
)

// LimitError reports a parameter outside the policy limits.
// It unwraps to ErrPolicyViolation.
type LimitError struct {
	Algorithm string
	Field     string
	Value     uint64
	Limit     uint64
	Max       bool // Limit is an upper bound
}

func (e *LimitError) Error() string {
	if e.Max {
		return fmt.Sprintf("%v: %s %s=%d exceeds maximum %d", ErrPolicyViolation, e.Algorithm, e.Field, e.Value, e.Limit)
	}
	return fmt.Sprintf("%v: %s %s=%d is below minimum %d", ErrPolicyViolation, e.Algorithm, e.Field, e.Value, e.Limit)
}

func (e *LimitError) Unwrap() error {
	return ErrPolicyViolation
}

// Check validates params and enforces the policy limits on them
func (p Policy) Check(params kdf.Params) error {
	if err := params.Validate(); err != nil {
		return err
	}
	if err := p.checkKDF(params.KDF); err != nil {
		return err
	}
	if p.Limits.MaxDKLen > 0 && params.DKLen > p.Limits.MaxDKLen {
		return &LimitError{Algorithm: params.KDF.Name(), Field: "dklen", Value: uint64(params.DKLen), Limit: uint64(p.Limits.MaxDKLen), Max: true}
	}
	return nil
}

func (p Policy) checkKDF(k kdf.KDF) error {
	l := p.Limits

	switch v := k.(type) {
	case kdf.Scrypt:
		if v.N < l.MinScryptN {
			return &LimitError{Algorithm: kdf.ScryptName, Field: "n", Value: uint64(v.N), Limit: uint64(l.MinScryptN)}
		}
		if l.MaxScryptN > 0 && v.N > l.MaxScryptN {
			return &LimitError{Algorithm: kdf.ScryptName, Field: "n", Value: uint64(v.N), Limit: uint64(l.MaxScryptN), Max: true}
		}
		if l.MaxScryptR > 0 && v.R > l.MaxScryptR {
			return &LimitError{Algorithm: kdf.ScryptName, Field: "r", Value: uint64(v.R), Limit: uint64(l.MaxScryptR), Max: true}
		}
		if l.MaxScryptP > 0 && v.P > l.MaxScryptP {
			return &LimitError{Algorithm: kdf.ScryptName, Field: "p", Value: uint64(v.P), Limit: uint64(l.MaxScryptP), Max: true}
		}
	case kdf.PBKDF2:
		if v.Iterations < l.MinPBKDF2Iterations {
			return &LimitError{Algorithm: kdf.PBKDF2Name, Field: "c", Value: uint64(v.Iterations), Limit: uint64(l.MinPBKDF2Iterations)}
		}
		if l.MaxPBKDF2Iterations > 0 && v.Iterations > l.MaxPBKDF2Iterations {
			return &LimitError{Algorithm: kdf.PBKDF2Name, Field: "c", Value: uint64(v.Iterations), Limit: uint64(l.MaxPBKDF2Iterations), Max: true}
		}
	default:
		return fmt.Errorf("%w: %T", kdf.ErrUnsupportedKDF, k)
	}
	return nil
}
