package main

import (
	"bufio"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/dd0wney/keystore-kdf/pkg/config"
	"github.com/dd0wney/keystore-kdf/pkg/deriver"
	"github.com/dd0wney/keystore-kdf/pkg/kdf"
	"github.com/dd0wney/keystore-kdf/pkg/logging"
	"github.com/dd0wney/keystore-kdf/pkg/metrics"
)

// usageError marks a bad invocation; run exits with status 2 for it.
// reported is set when the flag package already printed the problem.
type usageError struct {
	err      error
	reported bool
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

func usagef(format string, args ...any) error {
	return &usageError{err: fmt.Errorf(format, args...)}
}

// parseFlags parses args, classifying failures (including -h) as usage errors
func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return &usageError{err: err, reported: true}
	}
	if fs.NArg() > 0 {
		return usagef("unexpected arguments: %v", fs.Args())
	}
	return nil
}

// loadPolicy returns the policy at path, or the defaults when path is empty
func loadPolicy(path string) (config.Policy, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

func newDeriver(policy config.Policy, op, configPath string, stderr io.Writer) (*deriver.Deriver, error) {
	logger := logging.NewJSONLogger(stderr, policy.LogLevel).With(logging.Operation(op))
	if configPath != "" {
		logger = logger.With(logging.Path(configPath))
	}
	return deriver.New(policy,
		deriver.WithLogger(logger),
		deriver.WithMetrics(metrics.NewRegistry()),
	)
}

func handleNew(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("new", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "Policy file (YAML)")
	levelName := fs.String("level", "", "Security level for scrypt parameters (normal, ultra)")
	kdfName := fs.String("kdf", "", "Override the policy KDF (scrypt, pbkdf2)")
	dklen := fs.Int("dklen", 0, "Override the derived key length in bytes")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	if *levelName != "" && *kdfName != "" {
		return usagef("-level and -kdf are mutually exclusive")
	}

	policy, err := loadPolicy(*configPath)
	if err != nil {
		return err
	}
	if *kdfName != "" {
		policy.KDF = *kdfName
	}
	if *dklen != 0 {
		policy.DKLen = *dklen
	}

	d, err := newDeriver(policy, "new", *configPath, stderr)
	if err != nil {
		return err
	}
	defer d.Close()

	var params kdf.Params
	if *levelName != "" {
		level, err := kdf.ParseSecurityLevel(*levelName)
		if err != nil {
			return err
		}
		params, err = d.NewParamsForLevel(level)
		if err != nil {
			return err
		}
	} else {
		params, err = d.NewParams()
		if err != nil {
			return err
		}
	}

	data, err := json.MarshalIndent(params, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode parameters: %w", err)
	}
	fmt.Fprintln(stdout, string(data))
	return nil
}

func handleDerive(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("derive", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "Policy file (YAML)")
	paramsPath := fs.String("params", "", "KDF parameter block (JSON file)")
	timeout := fs.Duration("timeout", 0, "Abandon the derivation after this long (0 = no limit)")
	showMetrics := fs.Bool("metrics", false, "Write Prometheus metrics to stderr when done")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if *paramsPath == "" {
		return usagef("-params is required")
	}

	policy, err := loadPolicy(*configPath)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(*paramsPath)
	if err != nil {
		return fmt.Errorf("failed to read parameters: %w", err)
	}

	passphrase, err := readPassphrase(stdin)
	if err != nil {
		return err
	}

	d, err := newDeriver(policy, "derive", *configPath, stderr)
	if err != nil {
		return err
	}
	defer d.Close()

	params, err := d.Decode(data)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if *timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *timeout)
		defer cancel()
	}

	key, err := d.DeriveContext(ctx, params, passphrase)
	if *showMetrics {
		if merr := d.Metrics().WriteText(stderr); merr != nil {
			fmt.Fprintf(stderr, "Warning: %v\n", merr)
		}
	}
	if err != nil {
		return err
	}

	fmt.Fprintln(stdout, hex.EncodeToString(key))
	return nil
}

// readPassphrase reads the first line of r without its line terminator.
// An empty passphrase is valid.
func readPassphrase(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read passphrase: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func handleLevels(stdout io.Writer) {
	fmt.Fprintf(stdout, "%-8s %-8s %s\n", "LEVEL", "COST", "STATUS")
	for _, level := range kdf.SecurityLevels {
		status := "ok"
		if err := level.KDF().Validate(); err != nil {
			status = "unusable (cost is not a power of two)"
		}
		fmt.Fprintf(stdout, "%-8s %-8d %s\n", level, level.Cost(), status)
	}
}

func handleConfig(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "Policy file (YAML)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	policy, err := loadPolicy(*configPath)
	if err != nil {
		return err
	}

	data, err := policy.Marshal()
	if err != nil {
		return err
	}
	_, err = stdout.Write(data)
	return err
}
