package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dd0wney/keystore-kdf/pkg/kdf"
)

const vectorParams = `{"dklen":32,"n":2,"p":1,"r":8,"salt":"fd4acb81182a2c8fa959d180967b374277f2ccf2f7f401cb08d042cc785464b4"}`

func runCLI(t *testing.T, stdin string, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(args, strings.NewReader(stdin), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestRunUsage(t *testing.T) {
	code, _, stderr := runCLI(t, "")
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "Usage:")

	code, _, stderr = runCLI(t, "", "bogus")
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "Unknown command: bogus")

	code, stdout, _ := runCLI(t, "", "help")
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "derive")
}

func TestFlagErrorsExitWithUsageStatus(t *testing.T) {
	tests := []struct {
		name string
		args []string
		code int
		want string
	}{
		{"unknown flag", []string{"new", "-bogus"}, 2, "flag provided but not defined: -bogus"},
		{"bad flag value", []string{"derive", "-timeout", "soon"}, 2, "invalid value"},
		{"stray argument", []string{"config", "extra"}, 2, "unexpected arguments"},
		{"help flag", []string{"derive", "-h"}, 0, "-params"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, stdout, stderr := runCLI(t, "", tt.args...)
			assert.Equal(t, tt.code, code)
			assert.Empty(t, stdout)
			assert.Contains(t, stderr, tt.want)
			assert.NotContains(t, stderr, "Error: flag", "flag errors are reported once")
		})
	}
}

func TestLevels(t *testing.T) {
	code, stdout, _ := runCLI(t, "", "levels")
	require.Equal(t, 0, code)

	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[1], "normal")
	assert.Contains(t, lines[2], "8096")
	assert.Contains(t, lines[2], "unusable")
	assert.Contains(t, lines[3], "262144")
}

func TestNew(t *testing.T) {
	t.Run("policy defaults", func(t *testing.T) {
		code, stdout, stderr := runCLI(t, "", "new")
		require.Equal(t, 0, code, stderr)

		var p kdf.Params
		require.NoError(t, json.Unmarshal([]byte(stdout), &p))
		assert.Equal(t, kdf.DefaultKDF(), p.KDF)
		assert.Equal(t, 32, p.DKLen)
	})

	t.Run("pbkdf2 override", func(t *testing.T) {
		code, stdout, stderr := runCLI(t, "", "new", "-kdf", "pbkdf2", "-dklen", "64")
		require.Equal(t, 0, code, stderr)

		var p kdf.Params
		require.NoError(t, json.Unmarshal([]byte(stdout), &p))
		assert.Equal(t, kdf.FromIterations(kdf.DefaultPBKDF2Iterations), p.KDF)
		assert.Equal(t, 64, p.DKLen)
		assert.Contains(t, stdout, `"prf": "hmac-sha256"`)
	})

	t.Run("ultra level", func(t *testing.T) {
		code, stdout, _ := runCLI(t, "", "new", "-level", "ultra")
		require.Equal(t, 0, code)
		assert.Contains(t, stdout, `"n": 262144`)
	})

	t.Run("high level rejected", func(t *testing.T) {
		code, stdout, stderr := runCLI(t, "", "new", "-level", "high")
		assert.Equal(t, 1, code)
		assert.Empty(t, stdout)
		assert.Contains(t, stderr, "Error:")
	})

	t.Run("unknown level", func(t *testing.T) {
		code, _, stderr := runCLI(t, "", "new", "-level", "extreme")
		assert.Equal(t, 1, code)
		assert.Contains(t, stderr, `"extreme"`)
	})

	t.Run("level and kdf together", func(t *testing.T) {
		code, _, stderr := runCLI(t, "", "new", "-level", "ultra", "-kdf", "pbkdf2")
		assert.Equal(t, 2, code)
		assert.Contains(t, stderr, "mutually exclusive")
	})
}

func TestDerive(t *testing.T) {
	params := writeFile(t, "params.json", vectorParams)

	code, stdout, stderr := runCLI(t, "1234567890\n", "derive", "-params", params)
	require.Equal(t, 0, code, stderr)
	assert.Equal(t, "52a5dacfcf80e5111d2c7fbed177113a1b48a882b066a017f2c856086680fac7\n", stdout)
	assert.NotContains(t, stderr, "1234567890")

	t.Run("metrics", func(t *testing.T) {
		code, _, stderr := runCLI(t, "1234567890", "derive", "-params", params, "-metrics")
		require.Equal(t, 0, code)
		assert.Contains(t, stderr, `kdf_derivations_total{algorithm="scrypt",status="success"} 1`)
	})

	t.Run("missing params flag", func(t *testing.T) {
		code, _, stderr := runCLI(t, "", "derive")
		assert.Equal(t, 2, code)
		assert.Contains(t, stderr, "-params is required")
	})

	t.Run("policy limit", func(t *testing.T) {
		policy := writeFile(t, "policy.yaml", "limits:\n  min_scrypt_n: 1024\n")
		code, stdout, stderr := runCLI(t, "pw", "derive", "-params", params, "-config", policy)
		assert.Equal(t, 1, code)
		assert.Empty(t, stdout)
		assert.Contains(t, stderr, "below minimum")
	})

	t.Run("malformed params", func(t *testing.T) {
		bad := writeFile(t, "bad.json", `{"dklen":32}`)
		code, _, stderr := runCLI(t, "pw", "derive", "-params", bad)
		assert.Equal(t, 1, code)
		assert.Contains(t, stderr, "Error:")
	})
}

func TestConfig(t *testing.T) {
	policy := writeFile(t, "policy.yaml", "security_level: ultra\ndklen: 64\n")

	code, stdout, stderr := runCLI(t, "", "config", "-config", policy)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "security_level: ultra")
	assert.Contains(t, stdout, "dklen: 64")

	code, _, _ = runCLI(t, "", "config", "-config", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Equal(t, 1, code)
}

func TestReadPassphrase(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"secret\n", "secret"},
		{"secret\r\n", "secret"},
		{"secret", "secret"},
		{"", ""},
		{"first\nsecond\n", "first"},
		{" spaced \n", " spaced "},
	}

	for _, tt := range tests {
		got, err := readPassphrase(strings.NewReader(tt.input))
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "input %q", tt.input)
	}
}
