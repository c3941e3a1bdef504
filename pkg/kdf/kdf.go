// Package kdf implements the key derivation functions of the encrypted
// keystore format: PBKDF2 and scrypt, their parameter blocks and the
// named security levels used to pick a scrypt cost.
package kdf

import (
	"fmt"
	"math"
	"math/bits"

	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/crypto/scrypt"
)

// KDF is one of the supported key derivation functions together with its
// parameters. The set of implementations is closed: PBKDF2 and Scrypt.
type KDF interface {
	// Name returns "pbkdf2" or "scrypt"
	Name() string

	// Validate checks the numeric parameters without deriving anything.
	Validate() error

	// Derive returns exactly length bytes derived from passphrase and salt.
	// Identical inputs always produce identical output.
	Derive(length int, salt []byte, passphrase string) ([]byte, error)

	isKDF()
}

// PBKDF2 derives keys with RFC 2898 PBKDF2
type PBKDF2 struct {
	PRF        PRF
	Iterations uint32
}

// Scrypt derives keys with RFC 7914 scrypt. N is the linear cost factor
// and must be an exact power of two.
type Scrypt struct {
	N uint32
	R uint32
	P uint32
}

var (
	_ KDF = PBKDF2{}
	_ KDF = Scrypt{}
)

// DefaultKDF returns scrypt with N=1024, r=8, p=1
func DefaultKDF() KDF {
	return Scrypt{N: DefaultScryptN, R: DefaultScryptR, P: DefaultScryptP}
}

// FromIterations returns PBKDF2 with the default PRF and c iterations
func FromIterations(c uint32) KDF {
	return PBKDF2{PRF: DefaultPRF, Iterations: c}
}

// FromScrypt returns scrypt with the given cost, block size and parallelism
func FromScrypt(n, r, p uint32) KDF {
	return Scrypt{N: n, R: r, P: p}
}

// ParseKDF maps an algorithm name to that algorithm with default parameters
func ParseKDF(name string) (KDF, error) {
	switch name {
	case PBKDF2Name:
		return PBKDF2{PRF: DefaultPRF, Iterations: DefaultPBKDF2Iterations}, nil
	case ScryptName:
		return DefaultKDF(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedKDF, name)
	}
}

// maxPBKDF2Iterations is the largest count pbkdf2.Key can take as an int
var maxPBKDF2Iterations = uint64(math.MaxInt)

func (PBKDF2) isKDF() {}
func (Scrypt) isKDF() {}

func (PBKDF2) Name() string { return PBKDF2Name }
func (Scrypt) Name() string { return ScryptName }

func (k PBKDF2) String() string { return k.Name() }
func (k Scrypt) String() string { return k.Name() }

// Validate rejects unknown PRFs and a zero iteration count
func (k PBKDF2) Validate() error {
	if _, err := k.PRF.Hash(); err != nil {
		return err
	}
	if k.Iterations == 0 {
		return paramError(PBKDF2Name, "c", 0, "iteration count must be positive")
	}
	if uint64(k.Iterations) > maxPBKDF2Iterations {
		return paramError(PBKDF2Name, "c", uint64(k.Iterations), fmt.Sprintf("iteration count must not exceed %d", maxPBKDF2Iterations))
	}
	return nil
}

// Derive runs PBKDF2 over passphrase and salt
func (k PBKDF2) Derive(length int, salt []byte, passphrase string) ([]byte, error) {
	if err := checkDeriveInput(length, salt); err != nil {
		return nil, err
	}
	if err := k.Validate(); err != nil {
		return nil, err
	}

	h, _ := k.PRF.Hash()
	return guard(PBKDF2Name, func() ([]byte, error) {
		return pbkdf2.Key([]byte(passphrase), salt, int(k.Iterations), length, h), nil
	})
}

// LogN returns log2(N). It is only meaningful once Validate has passed.
func (k Scrypt) LogN() int {
	return bits.TrailingZeros32(k.N)
}

// Validate applies the scrypt parameter constraints. N is never rounded:
// a cost that is not an exact power of two is rejected.
func (k Scrypt) Validate() error {
	if k.N < 2 {
		return paramError(ScryptName, "n", uint64(k.N), "cost must be greater than 1")
	}
	if k.N&(k.N-1) != 0 {
		return paramError(ScryptName, "n", uint64(k.N), "cost must be a power of two")
	}
	if k.LogN() > maxScryptLogN {
		return paramError(ScryptName, "n", uint64(k.N), fmt.Sprintf("log2 of cost must not exceed %d", maxScryptLogN))
	}
	if k.R == 0 {
		return paramError(ScryptName, "r", 0, "block size must be positive")
	}
	if k.P == 0 {
		return paramError(ScryptName, "p", 0, "parallelism must be positive")
	}

	rp := uint64(k.R) * uint64(k.P)
	if rp >= 1<<30 {
		return paramError(ScryptName, "r*p", rp, "must be below 2^30")
	}

	// Memory bounds enforced by the scrypt primitive
	const maxInt = uint64(math.MaxInt)
	r, p, n := uint64(k.R), uint64(k.P), uint64(k.N)
	if r > maxInt/128/p || r > maxInt/256 || n > maxInt/128/r {
		return paramError(ScryptName, "n", n, "memory requirement too large")
	}
	return nil
}

// Derive runs scrypt over passphrase and salt
func (k Scrypt) Derive(length int, salt []byte, passphrase string) ([]byte, error) {
	if err := checkDeriveInput(length, salt); err != nil {
		return nil, err
	}
	if err := k.Validate(); err != nil {
		return nil, err
	}

	return guard(ScryptName, func() ([]byte, error) {
		return scrypt.Key([]byte(passphrase), salt, int(k.N), int(k.R), int(k.P), length)
	})
}

func checkDeriveInput(length int, salt []byte) error {
	if length <= 0 {
		return fmt.Errorf("%w: derived key length must be positive, got %d", ErrInvalidParameters, length)
	}
	if len(salt) == 0 {
		return fmt.Errorf("%w: salt must not be empty", ErrInvalidParameters)
	}
	return nil
}

// guard converts primitive errors and panics into ErrDerivationFailure
func guard(name string, fn func() ([]byte, error)) (key []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			key = nil
			err = fmt.Errorf("%w: %s: %v", ErrDerivationFailure, name, r)
		}
	}()

	key, err = fn()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDerivationFailure, name, err)
	}
	return key, nil
}
