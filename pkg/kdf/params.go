package kdf

import (
	"encoding/json"
	"fmt"

	"github.com/dd0wney/keystore-kdf/pkg/validation"
)

// Params is the KDF parameter block of a keystore: the KDF, the derived
// key length and the salt. A Params value is built once and not mutated.
type Params struct {
	KDF   KDF
	DKLen int
	Salt  Salt
}

// NewParams returns the default parameters with a fresh salt
func NewParams() (Params, error) {
	return NewParamsWith(DefaultKDF())
}

// NewParamsWith returns parameters for k with the default length and a fresh salt
func NewParamsWith(k KDF) (Params, error) {
	salt, err := NewSalt()
	if err != nil {
		return Params{}, err
	}
	return Params{KDF: k, DKLen: DefaultDKLen, Salt: salt}, nil
}

// NewParamsForLevel returns scrypt parameters for the security level
func NewParamsForLevel(level SecurityLevel) (Params, error) {
	return NewParamsWith(level.KDF())
}

// Validate checks the KDF parameters and the derived key length
func (p Params) Validate() error {
	if p.KDF == nil {
		return fmt.Errorf("%w: no kdf configured", ErrInvalidParameters)
	}
	if p.DKLen <= 0 {
		return fmt.Errorf("%w: dklen must be positive, got %d", ErrInvalidParameters, p.DKLen)
	}
	return p.KDF.Validate()
}

// DeriveKey derives DKLen bytes from passphrase using the stored KDF and salt
func (p Params) DeriveKey(passphrase string) ([]byte, error) {
	if p.KDF == nil {
		return nil, fmt.Errorf("%w: no kdf configured", ErrInvalidParameters)
	}
	return p.KDF.Derive(p.DKLen, p.Salt[:], passphrase)
}

// kdfWire holds the variant fields of the flat keystore object. Which
// fields are present decides the variant; there is no type tag.
type kdfWire struct {
	PRF *PRF    `json:"prf,omitempty"`
	C   *uint32 `json:"c,omitempty" validate:"omitempty,min=1"`
	N   *uint32 `json:"n,omitempty" validate:"omitempty,min=2,pow2"`
	R   *uint32 `json:"r,omitempty" validate:"omitempty,min=1"`
	P   *uint32 `json:"p,omitempty" validate:"omitempty,min=1"`
}

type paramsWire struct {
	kdfWire
	DKLen *int  `json:"dklen" validate:"required,min=1"`
	Salt  *Salt `json:"salt" validate:"required"`
}

func wireFor(k KDF) (kdfWire, error) {
	switch v := k.(type) {
	case PBKDF2:
		prf, c := v.PRF, v.Iterations
		return kdfWire{PRF: &prf, C: &c}, nil
	case Scrypt:
		n, r, p := v.N, v.R, v.P
		return kdfWire{N: &n, R: &r, P: &p}, nil
	default:
		return kdfWire{}, fmt.Errorf("%w: %T", ErrUnsupportedKDF, k)
	}
}

// variant infers the KDF from the field set present
func (w kdfWire) variant() (KDF, error) {
	hasPBKDF2 := w.PRF != nil || w.C != nil
	hasScrypt := w.N != nil || w.R != nil || w.P != nil

	switch {
	case hasPBKDF2 && hasScrypt:
		return nil, fmt.Errorf("%w: both pbkdf2 (prf, c) and scrypt (n, r, p) fields present", ErrUnsupportedKDF)
	case hasPBKDF2:
		if w.PRF == nil || w.C == nil {
			return nil, fmt.Errorf("%w: pbkdf2 requires both prf and c", ErrInvalidParameters)
		}
		return PBKDF2{PRF: *w.PRF, Iterations: *w.C}, nil
	case hasScrypt:
		if w.N == nil || w.R == nil || w.P == nil {
			return nil, fmt.Errorf("%w: scrypt requires n, r and p", ErrInvalidParameters)
		}
		return Scrypt{N: *w.N, R: *w.R, P: *w.P}, nil
	default:
		return nil, fmt.Errorf("%w: no pbkdf2 (prf, c) or scrypt (n, r, p) fields present", ErrUnsupportedKDF)
	}
}

func (w kdfWire) decode() (KDF, error) {
	k, err := w.variant()
	if err != nil {
		return nil, err
	}
	if err := k.Validate(); err != nil {
		return nil, err
	}
	return k, nil
}

// wireField binds an exact JSON key to the field it decodes into
type wireField struct {
	key    string
	target any
}

func (w *kdfWire) fields() []wireField {
	return []wireField{
		{"prf", &w.PRF},
		{"c", &w.C},
		{"n", &w.N},
		{"r", &w.R},
		{"p", &w.P},
	}
}

func (w *paramsWire) fields() []wireField {
	return append(w.kdfWire.fields(),
		wireField{"dklen", &w.DKLen},
		wireField{"salt", &w.Salt},
	)
}

// decodeFields fills fields from a JSON object by exact key. Keys that
// differ only in case ("N", "DkLen") are unknown keys and are ignored.
func decodeFields(data []byte, fields []wireField) error {
	var object map[string]json.RawMessage
	if err := json.Unmarshal(data, &object); err != nil {
		return err
	}
	for _, f := range fields {
		raw, ok := object[f.key]
		if !ok {
			continue
		}
		if err := json.Unmarshal(raw, f.target); err != nil {
			return fmt.Errorf("field %q: %w", f.key, err)
		}
	}
	return nil
}

// MarshalJSON writes the flat keystore form, e.g.
// {"n":1024,"r":8,"p":1,"dklen":32,"salt":"..."}
func (p Params) MarshalJSON() ([]byte, error) {
	if p.KDF == nil {
		return nil, fmt.Errorf("%w: no kdf configured", ErrInvalidParameters)
	}
	kw, err := wireFor(p.KDF)
	if err != nil {
		return nil, err
	}
	dklen, salt := p.DKLen, p.Salt
	return json.Marshal(paramsWire{kdfWire: kw, DKLen: &dklen, Salt: &salt})
}

// UnmarshalJSON reads the flat keystore form. The variant is inferred from
// the fields present; a scrypt cost that is not a power of two is rejected.
func (p *Params) UnmarshalJSON(data []byte) error {
	var w paramsWire
	if err := decodeFields(data, w.fields()); err != nil {
		return fmt.Errorf("decode kdf params: %w", err)
	}

	k, err := w.kdfWire.decode()
	if err != nil {
		return err
	}
	if err := validation.Struct(&w); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidParameters, err)
	}

	*p = Params{KDF: k, DKLen: *w.DKLen, Salt: *w.Salt}
	return nil
}

func (k PBKDF2) MarshalJSON() ([]byte, error) {
	w, _ := wireFor(k)
	return json.Marshal(w)
}

func (k Scrypt) MarshalJSON() ([]byte, error) {
	w, _ := wireFor(k)
	return json.Marshal(w)
}

// UnmarshalKDF decodes a bare variant object such as {"prf":"hmac-sha256","c":8}
func UnmarshalKDF(data []byte) (KDF, error) {
	var w kdfWire
	if err := decodeFields(data, w.fields()); err != nil {
		return nil, fmt.Errorf("decode kdf: %w", err)
	}
	return w.decode()
}
