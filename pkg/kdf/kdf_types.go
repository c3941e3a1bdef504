package kdf

import (
	"errors"
	"fmt"
)

const (
	// Algorithm names, as used for display and ParseKDF
	PBKDF2Name = "pbkdf2"
	ScryptName = "scrypt"

	DefaultDKLen            = 32     // Derived key length in bytes
	DefaultPBKDF2Iterations = 262144 // Iterations used when "pbkdf2" is parsed by name

	// Scrypt defaults (also the default KDF)
	DefaultScryptN = 1024
	DefaultScryptR = 8
	DefaultScryptP = 1

	// Upper bound for log2(N)
	maxScryptLogN = 63
)

var (
	ErrUnsupportedKDF       = errors.New("unsupported kdf")
	ErrUnsupportedPRF       = errors.New("unsupported prf")
	ErrInvalidSecurityLevel = errors.New("invalid security level")
	ErrInvalidParameters    = errors.New("invalid kdf parameters")
	ErrDerivationFailure    = errors.New("key derivation failed")
	ErrInvalidSalt          = errors.New("invalid salt")
)

// ParamError reports a numeric parameter rejected by a KDF.
// It unwraps to ErrInvalidParameters.
type ParamError struct {
	KDF    string
	Field  string
	Value  uint64
	Reason string
}

func (e *ParamError) Error() string {
	if e.KDF == "" {
		return fmt.Sprintf("%v: %s=%d: %s", ErrInvalidParameters, e.Field, e.Value, e.Reason)
	}
	return fmt.Sprintf("%v: %s %s=%d: %s", ErrInvalidParameters, e.KDF, e.Field, e.Value, e.Reason)
}

func (e *ParamError) Unwrap() error {
	return ErrInvalidParameters
}

func paramError(kdf, field string, value uint64, reason string) error {
	return &ParamError{KDF: kdf, Field: field, Value: value, Reason: reason}
}
