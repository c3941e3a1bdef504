package kdf

import "fmt"

// SecurityLevel is a named scrypt cost preset. It is a construction
// shortcut only and is never stored in a parameter block.
type SecurityLevel uint32

const (
	// Normal is the default level
	Normal SecurityLevel = 1024
	// High trades more CPU time for resistance to guessing
	High SecurityLevel = 8096
	// Ultra is the most expensive level
	Ultra SecurityLevel = 262144

	DefaultSecurityLevel = Normal
)

// SecurityLevels lists every level, cheapest first
var SecurityLevels = []SecurityLevel{Normal, High, Ultra}

func (l SecurityLevel) String() string {
	switch l {
	case Normal:
		return "normal"
	case High:
		return "high"
	case Ultra:
		return "ultra"
	default:
		return fmt.Sprintf("level(%d)", uint32(l))
	}
}

// ParseSecurityLevel accepts "normal", "high" or "ultra"
func ParseSecurityLevel(s string) (SecurityLevel, error) {
	switch s {
	case "normal":
		return Normal, nil
	case "high":
		return High, nil
	case "ultra":
		return Ultra, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidSecurityLevel, s)
	}
}

// Cost returns the iteration/cost count associated with the level
func (l SecurityLevel) Cost() uint32 {
	return uint32(l)
}

// KDF returns scrypt with the level's cost, r=8 and p=1
func (l SecurityLevel) KDF() KDF {
	return FromScrypt(l.Cost(), DefaultScryptR, DefaultScryptP)
}

func (l SecurityLevel) MarshalText() ([]byte, error) {
	switch l {
	case Normal, High, Ultra:
		return []byte(l.String()), nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrInvalidSecurityLevel, uint32(l))
	}
}

func (l *SecurityLevel) UnmarshalText(text []byte) error {
	parsed, err := ParseSecurityLevel(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}
