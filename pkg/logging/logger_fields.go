package logging

import (
	"time"
)

// Common field constructors
func String(key, value string) Field {
	return Field{Key: key, Value: value}
}

func Int(key string, value int) Field {
	return Field{Key: key, Value: value}
}

func Uint64(key string, value uint64) Field {
	return Field{Key: key, Value: value}
}

func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Value: value.String()}
}

func Error(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: nil}
	}
	return Field{Key: "error", Value: err.Error()}
}

func Any(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// Redacted records that a secret was present without its value
func Redacted(key string) Field {
	return Field{Key: key, Value: "[redacted]"}
}

// Derivation field helpers
func Component(name string) Field {
	return String("component", name)
}

func Operation(op string) Field {
	return String("operation", op)
}

func Algorithm(name string) Field {
	return String("algorithm", name)
}

func DKLen(n int) Field {
	return Int("dklen", n)
}

func SecurityLevel(level string) Field {
	return String("security_level", level)
}

func JobID(id string) Field {
	return String("job_id", id)
}

func Latency(d time.Duration) Field {
	return Duration("latency", d)
}

func Path(p string) Field {
	return String("path", p)
}
