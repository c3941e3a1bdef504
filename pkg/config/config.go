// Package config loads the derivation policy: which KDF new keystores
// get, and the parameter bounds accepted when opening existing ones.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/dd0wney/keystore-kdf/pkg/kdf"
	"github.com/dd0wney/keystore-kdf/pkg/logging"
	"github.com/dd0wney/keystore-kdf/pkg/parallel"
	"github.com/dd0wney/keystore-kdf/pkg/validation"
)

// ErrPolicyViolation is returned by Policy.Check for parameters outside the limits
var ErrPolicyViolation = errors.New("kdf parameters violate policy")

// Limits bounds the parameters accepted from a keystore file. The upper
// bounds keep a crafted file from pinning CPU and memory.
type Limits struct {
	MinScryptN          uint32 `yaml:"min_scrypt_n"`
	MaxScryptN          uint32 `yaml:"max_scrypt_n"`
	MaxScryptR          uint32 `yaml:"max_scrypt_r"`
	MaxScryptP          uint32 `yaml:"max_scrypt_p"`
	MinPBKDF2Iterations uint32 `yaml:"min_pbkdf2_iterations"`
	MaxPBKDF2Iterations uint32 `yaml:"max_pbkdf2_iterations"`
	MaxDKLen            int    `yaml:"max_dklen"`
}

// Policy is the derivation configuration
type Policy struct {
	SecurityLevel    kdf.SecurityLevel `yaml:"security_level"`
	KDF              string            `yaml:"kdf"`
	PBKDF2Iterations uint32            `yaml:"pbkdf2_iterations"`
	PRF              kdf.PRF           `yaml:"prf"`
	DKLen            int               `yaml:"dklen"`
	Limits           Limits            `yaml:"limits"`
	Workers          int               `yaml:"workers"`
	LogLevel         logging.Level     `yaml:"log_level"`
}

// Default returns the built-in policy
func Default() Policy {
	return Policy{
		SecurityLevel:    kdf.DefaultSecurityLevel,
		KDF:              kdf.ScryptName,
		PBKDF2Iterations: kdf.DefaultPBKDF2Iterations,
		PRF:              kdf.DefaultPRF,
		DKLen:            kdf.DefaultDKLen,
		Limits: Limits{
			MinScryptN:          2,
			MaxScryptN:          1 << 20,
			MaxScryptR:          64,
			MaxScryptP:          16,
			MinPBKDF2Iterations: 1,
			MaxPBKDF2Iterations: 10_000_000,
			MaxDKLen:            1024,
		},
		Workers:  2,
		LogLevel: logging.InfoLevel,
	}
}

// Load reads a YAML policy file. Keys absent from the file keep their defaults.
func Load(path string) (Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, fmt.Errorf("failed to read policy: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML policy over the defaults and validates it
func Parse(data []byte) (Policy, error) {
	p := Default()
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Policy{}, fmt.Errorf("failed to parse policy: %w", err)
	}
	if err := p.Validate(); err != nil {
		return Policy{}, err
	}
	return p, nil
}

// Marshal encodes the policy as YAML
func (p Policy) Marshal() ([]byte, error) {
	return yaml.Marshal(p)
}

// Validate checks the policy for consistency
func (p Policy) Validate() error {
	l := p.Limits
	cv := validation.NewConfigValidator("Policy")

	cv.OneOf("kdf", p.KDF, []string{kdf.ScryptName, kdf.PBKDF2Name}).
		Custom("prf", func() error {
			_, err := p.PRF.Hash()
			return err
		}).
		Custom("security_level", func() error {
			_, err := p.SecurityLevel.MarshalText()
			return err
		}).
		RangeInt("dklen", p.DKLen, 1, validation.DefaultOr(l.MaxDKLen, p.DKLen)).
		RangeInt("workers", p.Workers, 1, parallel.MaxWorkers).
		MinUint("limits.min_scrypt_n", uint64(l.MinScryptN), 2).
		PowerOfTwo("limits.min_scrypt_n", uint64(l.MinScryptN)).
		PowerOfTwo("limits.max_scrypt_n", uint64(l.MaxScryptN)).
		Ordered("limits.min_scrypt_n", uint64(l.MinScryptN), "limits.max_scrypt_n", uint64(l.MaxScryptN)).
		MinUint("limits.max_scrypt_r", uint64(l.MaxScryptR), 1).
		MinUint("limits.max_scrypt_p", uint64(l.MaxScryptP), 1).
		MinUint("limits.min_pbkdf2_iterations", uint64(l.MinPBKDF2Iterations), 1).
		Ordered("limits.min_pbkdf2_iterations", uint64(l.MinPBKDF2Iterations), "limits.max_pbkdf2_iterations", uint64(l.MaxPBKDF2Iterations)).
		Positive("limits.max_dklen", l.MaxDKLen)

	// The KDF new keystores receive must itself pass derivation and the limits
	field := "security_level"
	if p.KDF == kdf.PBKDF2Name {
		field = "pbkdf2_iterations"
	}
	cv.When(!cv.HasErrors(), func(cv *validation.ConfigValidator) {
		cv.Custom(field, func() error {
			k, err := p.NewKDF()
			if err != nil {
				return err
			}
			if err := k.Validate(); err != nil {
				return err
			}
			return p.checkKDF(k)
		})
	})

	return cv.Validate()
}

// NewKDF returns the KDF configured for new keystores
func (p Policy) NewKDF() (kdf.KDF, error) {
	switch p.KDF {
	case kdf.PBKDF2Name:
		return kdf.PBKDF2{PRF: p.PRF, Iterations: p.PBKDF2Iterations}, nil
	case kdf.ScryptName, "":
		return p.SecurityLevel.KDF(), nil
	default:
		return nil, fmt.Errorf("%w: %q", kdf.ErrUnsupportedKDF, p.KDF)
	}
}

// NewParams returns a fresh parameter block following the policy
func (p Policy) NewParams() (kdf.Params, error) {
	k, err := p.NewKDF()
	if err != nil {
		return kdf.Params{}, err
	}
	return p.newParams(k)
}

// NewParamsForLevel returns a fresh scrypt parameter block for level,
// using the policy's key length
func (p Policy) NewParamsForLevel(level kdf.SecurityLevel) (kdf.Params, error) {
	return p.newParams(level.KDF())
}

func (p Policy) newParams(k kdf.KDF) (kdf.Params, error) {
	params, err := kdf.NewParamsWith(k)
	if err != nil {
		return kdf.Params{}, err
	}
	params.DKLen = p.DKLen
	if err := params.Validate(); err != nil {
		return kdf.Params{}, err
	}
	if err := p.Check(params); err != nil {
		return kdf.Params{}, err
	}
	return params, nil
}
