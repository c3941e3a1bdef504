package validation

import (
	"errors"
	"strings"
	"testing"
)

func TestConfigValidator_Positive(t *testing.T) {
	for _, v := range []int{0, -1} {
		if cv := NewConfigValidator("Policy").Positive("limits.max_dklen", v); !cv.HasErrors() {
			t.Errorf("Positive(%d) accepted", v)
		}
	}
	if cv := NewConfigValidator("Policy").Positive("limits.max_dklen", 1024); cv.HasErrors() {
		t.Error("Positive(1024) rejected")
	}
}

func TestConfigValidator_RangeInt(t *testing.T) {
	tests := []struct {
		value     int
		expectErr bool
	}{
		{0, true},
		{1, false},
		{512, false},
		{1024, false},
		{1025, true},
	}

	for _, tt := range tests {
		cv := NewConfigValidator("Policy")
		cv.RangeInt("dklen", tt.value, 1, 1024)
		if cv.HasErrors() != tt.expectErr {
			t.Errorf("RangeInt(%d) HasErrors = %v, want %v", tt.value, cv.HasErrors(), tt.expectErr)
		}
	}
}

func TestConfigValidator_MinUint(t *testing.T) {
	cv := NewConfigValidator("Policy")
	cv.MinUint("limits.min_scrypt_n", 1, 2)
	if !cv.HasErrors() {
		t.Error("Expected error for value below minimum")
	}

	cv2 := NewConfigValidator("Policy")
	cv2.MinUint("limits.min_scrypt_n", 2, 2)
	if cv2.HasErrors() {
		t.Error("Expected no error for value equal to minimum")
	}
}

func TestConfigValidator_Ordered(t *testing.T) {
	cv := NewConfigValidator("Policy")
	cv.Ordered("limits.min_scrypt_n", 4096, "limits.max_scrypt_n", 1024)
	if !cv.HasErrors() {
		t.Fatal("Expected error for inverted bounds")
	}
	if msg := cv.Validate().Error(); !strings.Contains(msg, "limits.max_scrypt_n") {
		t.Errorf("Error %q should name the upper bound", msg)
	}

	cv2 := NewConfigValidator("Policy")
	cv2.Ordered("limits.min_scrypt_n", 1024, "limits.max_scrypt_n", 1024)
	if cv2.HasErrors() {
		t.Error("Expected no error for equal bounds")
	}
}

func TestConfigValidator_PowerOfTwo(t *testing.T) {
	for _, v := range []uint64{1, 2, 1024, 262144, 1 << 63} {
		if cv := NewConfigValidator("Policy").PowerOfTwo("n", v); cv.HasErrors() {
			t.Errorf("PowerOfTwo(%d) rejected", v)
		}
	}
	for _, v := range []uint64{0, 3, 1000, 8096} {
		if cv := NewConfigValidator("Policy").PowerOfTwo("n", v); !cv.HasErrors() {
			t.Errorf("PowerOfTwo(%d) accepted", v)
		}
	}
}

func TestConfigValidator_OneOf(t *testing.T) {
	allowed := []string{"scrypt", "pbkdf2"}

	cv := NewConfigValidator("Policy")
	cv.OneOf("kdf", "scrypt", allowed)
	if cv.HasErrors() {
		t.Error("Expected no error for allowed value")
	}

	cv2 := NewConfigValidator("Policy")
	cv2.OneOf("kdf", "argon2", allowed)
	if !cv2.HasErrors() {
		t.Error("Expected error for disallowed value")
	}
}

func TestConfigValidator_Custom(t *testing.T) {
	sentinel := errors.New("custom validation failed")

	cv := NewConfigValidator("Policy")
	cv.Custom("security_level", func() error {
		return sentinel
	})

	err := cv.Validate()
	if !errors.Is(err, sentinel) {
		t.Errorf("Validate() error = %v, want it to wrap %v", err, sentinel)
	}
	if !strings.HasPrefix(err.Error(), "Policy.security_level:") {
		t.Errorf("Error %q should be prefixed with the field path", err)
	}

	cv2 := NewConfigValidator("Policy")
	cv2.Custom("security_level", func() error {
		return nil
	})
	if cv2.HasErrors() {
		t.Error("Expected no error from passing custom validation")
	}
}

func TestConfigValidator_When(t *testing.T) {
	cv := NewConfigValidator("Policy")
	cv.When(true, func(v *ConfigValidator) {
		v.MinUint("c", 0, 1)
	})
	if !cv.HasErrors() {
		t.Error("Expected error when condition is true")
	}

	cv2 := NewConfigValidator("Policy")
	cv2.When(false, func(v *ConfigValidator) {
		v.MinUint("c", 0, 1)
	})
	if cv2.HasErrors() {
		t.Error("Expected no error when condition is false")
	}
}

func TestConfigValidator_MultipleErrors(t *testing.T) {
	first := errors.New("first")

	cv := NewConfigValidator("Policy")
	cv.RangeInt("workers", 0, 1, 8).
		PowerOfTwo("n", 1000).
		Custom("kdf", func() error { return first })

	if len(cv.Errors()) != 3 {
		t.Fatalf("Expected 3 errors, got %d", len(cv.Errors()))
	}

	err := cv.Validate()
	if !strings.Contains(err.Error(), "3 errors") {
		t.Errorf("Error %q should report the error count", err)
	}
	if !errors.Is(err, first) {
		t.Error("Joined error should wrap every collected error")
	}
}

func TestConfigValidator_ValidateEmpty(t *testing.T) {
	cv := NewConfigValidator("Policy")
	cv.RangeInt("workers", 2, 1, 8).
		MinUint("limits.min_scrypt_n", 2, 2).
		PowerOfTwo("limits.max_scrypt_n", 1<<20)

	if err := cv.Validate(); err != nil {
		t.Errorf("Expected no error from Validate(), got: %v", err)
	}
}

func TestDefaultOr(t *testing.T) {
	if got := DefaultOr(0, 1024); got != 1024 {
		t.Errorf("DefaultOr(0, 1024) = %d", got)
	}
	if got := DefaultOr(64, 1024); got != 64 {
		t.Errorf("DefaultOr(64, 1024) = %d", got)
	}
	if got := DefaultOr("", "scrypt"); got != "scrypt" {
		t.Errorf("DefaultOr(\"\", scrypt) = %q", got)
	}
}
