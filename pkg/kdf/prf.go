package kdf

import (
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"hash"
)

// PRF selects the keyed hash underlying PBKDF2
type PRF int

const (
	// HMACSHA256 is the default PRF
	HMACSHA256 PRF = iota
	HMACSHA512
)

// DefaultPRF is used by FromIterations and ParseKDF
const DefaultPRF = HMACSHA256

// String returns the keystore token for the PRF
func (p PRF) String() string {
	switch p {
	case HMACSHA256:
		return "hmac-sha256"
	case HMACSHA512:
		return "hmac-sha512"
	default:
		return fmt.Sprintf("prf(%d)", int(p))
	}
}

// ParsePRF converts a keystore token to a PRF
func ParsePRF(s string) (PRF, error) {
	switch s {
	case "hmac-sha256":
		return HMACSHA256, nil
	case "hmac-sha512":
		return HMACSHA512, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedPRF, s)
	}
}

// Hash returns the hash constructor HMAC is built on
func (p PRF) Hash() (func() hash.Hash, error) {
	switch p {
	case HMACSHA256:
		return sha256.New, nil
	case HMACSHA512:
		return sha512.New, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedPRF, p)
	}
}

func (p PRF) MarshalText() ([]byte, error) {
	if _, err := p.Hash(); err != nil {
		return nil, err
	}
	return []byte(p.String()), nil
}

func (p *PRF) UnmarshalText(text []byte) error {
	parsed, err := ParsePRF(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
