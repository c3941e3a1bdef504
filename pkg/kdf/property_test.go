package kdf

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestDerivationProperties uses property-based testing to verify the
// derivation contract for arbitrary inputs
func TestDerivationProperties(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping property-based test in short mode")
	}

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50

	properties := gopter.NewProperties(parameters)

	saltGen := gen.SliceOfN(SaltSize, gen.UInt8())

	// Property 1: PBKDF2 is deterministic and honours the requested length
	properties.Property("pbkdf2 deterministic with exact length", prop.ForAll(
		func(iterations uint32, length int, salt []byte, passphrase string) bool {
			k := FromIterations(iterations)
			key1, err := k.Derive(length, salt, passphrase)
			if err != nil {
				return false
			}
			key2, err := k.Derive(length, salt, passphrase)
			if err != nil {
				return false
			}
			return len(key1) == length && bytes.Equal(key1, key2)
		},
		gen.UInt32Range(1, 64),
		gen.IntRange(1, 128),
		saltGen,
		gen.AnyString(),
	))

	// Property 2: scrypt is deterministic and honours the requested length
	properties.Property("scrypt deterministic with exact length", prop.ForAll(
		func(logN int, r, p uint32, length int, salt []byte, passphrase string) bool {
			k := FromScrypt(1<<uint(logN), r, p)
			key1, err := k.Derive(length, salt, passphrase)
			if err != nil {
				return false
			}
			key2, err := k.Derive(length, salt, passphrase)
			if err != nil {
				return false
			}
			return len(key1) == length && bytes.Equal(key1, key2)
		},
		gen.IntRange(1, 6),
		gen.UInt32Range(1, 4),
		gen.UInt32Range(1, 2),
		gen.IntRange(1, 96),
		saltGen,
		gen.AlphaString(),
	))

	// Property 3: a shorter key is a prefix of a longer one
	properties.Property("shorter key is prefix of longer key", prop.ForAll(
		func(short, extra int, salt []byte) bool {
			for _, k := range []KDF{FromIterations(4), FromScrypt(8, 2, 1)} {
				a, errA := k.Derive(short, salt, "prefix")
				b, errB := k.Derive(short+extra, salt, "prefix")
				if errA != nil || errB != nil || !bytes.HasPrefix(b, a) {
					return false
				}
			}
			return true
		},
		gen.IntRange(1, 64),
		gen.IntRange(1, 64),
		saltGen,
	))

	// Property 4: serialization round-trips to a block deriving the same key
	properties.Property("params round trip derives identical keys", prop.ForAll(
		func(usePBKDF2 bool, cost uint32, dklen int, salt []byte, passphrase string) bool {
			var s Salt
			copy(s[:], salt)

			k := FromScrypt(1<<(cost%5+1), 1, 1)
			if usePBKDF2 {
				k = FromIterations(cost)
			}
			original := Params{KDF: k, DKLen: dklen, Salt: s}

			data, err := json.Marshal(original)
			if err != nil {
				return false
			}
			var decoded Params
			if err := json.Unmarshal(data, &decoded); err != nil {
				return false
			}
			if decoded != original {
				return false
			}

			want, err1 := original.DeriveKey(passphrase)
			got, err2 := decoded.DeriveKey(passphrase)
			return err1 == nil && err2 == nil && bytes.Equal(want, got)
		},
		gen.Bool(),
		gen.UInt32Range(1, 32),
		gen.IntRange(1, 64),
		saltGen,
		gen.AlphaString(),
	))

	// Property 5: a scrypt cost that is not a power of two is never accepted
	properties.Property("non power of two scrypt cost rejected", prop.ForAll(
		func(n uint32) bool {
			_, err := FromScrypt(n, 8, 1).Derive(32, []byte("salt"), "pw")
			return errors.Is(err, ErrInvalidParameters)
		},
		gen.UInt32Range(3, 1<<20).SuchThat(func(n uint32) bool {
			return n&(n-1) != 0
		}),
	))

	// Property 6: variant is inferred from the field set alone
	properties.Property("field set decides variant", prop.ForAll(
		func(c uint32, logN int, salt []byte) bool {
			var s Salt
			copy(s[:], salt)
			hexSalt := s.String()

			var p Params
			pbkdf2Doc := []byte(`{"prf":"hmac-sha256","c":` + jsonUint(c) + `,"dklen":32,"salt":"` + hexSalt + `"}`)
			if err := json.Unmarshal(pbkdf2Doc, &p); err != nil {
				return false
			}
			if _, ok := p.KDF.(PBKDF2); !ok {
				return false
			}

			scryptDoc := []byte(`{"n":` + jsonUint(1<<uint(logN)) + `,"r":8,"p":1,"dklen":32,"salt":"` + hexSalt + `"}`)
			if err := json.Unmarshal(scryptDoc, &p); err != nil {
				return false
			}
			_, ok := p.KDF.(Scrypt)
			return ok
		},
		gen.UInt32Range(1, 1<<20),
		gen.IntRange(1, 20),
		saltGen,
	))

	properties.TestingRun(t)
}

func jsonUint(v uint32) string {
	data, _ := json.Marshal(v)
	return string(data)
}
