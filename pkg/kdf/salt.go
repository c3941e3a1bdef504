package kdf

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// SaltSize is the fixed salt length of the keystore format
const SaltSize = 32

// Salt is the cryptographic salt stored in a KDF parameter block.
// It is serialized as a 64-character hex string.
type Salt [SaltSize]byte

// NewSalt generates a cryptographically secure random salt
func NewSalt() (Salt, error) {
	var s Salt
	if _, err := rand.Read(s[:]); err != nil {
		return s, fmt.Errorf("failed to generate salt: %w", err)
	}
	return s, nil
}

// SaltFromHex decodes a hex-encoded salt of exactly SaltSize bytes
func SaltFromHex(text string) (Salt, error) {
	var s Salt
	if len(text) != hex.EncodedLen(SaltSize) {
		return s, fmt.Errorf("%w: expected %d hex characters, got %d", ErrInvalidSalt, hex.EncodedLen(SaltSize), len(text))
	}
	if _, err := hex.Decode(s[:], []byte(text)); err != nil {
		return s, fmt.Errorf("%w: %v", ErrInvalidSalt, err)
	}
	return s, nil
}

// Bytes returns a copy of the salt as a slice
func (s Salt) Bytes() []byte {
	b := make([]byte, SaltSize)
	copy(b, s[:])
	return b
}

func (s Salt) String() string {
	return hex.EncodeToString(s[:])
}

func (s Salt) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Salt) UnmarshalText(text []byte) error {
	parsed, err := SaltFromHex(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
