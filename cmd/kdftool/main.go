package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// run dispatches a subcommand and returns the process exit code
func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		printUsage(stderr)
		return 2
	}

	command := args[0]
	var err error

	switch command {
	case "new":
		err = handleNew(args[1:], stdout, stderr)
	case "derive":
		err = handleDerive(args[1:], stdin, stdout, stderr)
	case "levels":
		handleLevels(stdout)
	case "config":
		err = handleConfig(args[1:], stdout, stderr)
	case "help", "--help", "-h":
		printUsage(stdout)
	case "version", "--version", "-v":
		printVersion(stdout)
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n\n", command)
		printUsage(stderr)
		return 2
	}

	return exitCode(err, stderr)
}

// exitCode reports err and maps it to 0 (success or -h), 2 (usage) or 1
func exitCode(err error, stderr io.Writer) int {
	if err == nil || errors.Is(err, flag.ErrHelp) {
		return 0
	}

	var ue *usageError
	if errors.As(err, &ue) {
		if !ue.reported {
			fmt.Fprintf(stderr, "Error: %v\n", err)
		}
		return 2
	}

	fmt.Fprintf(stderr, "Error: %v\n", err)
	return 1
}

func printUsage(w io.Writer) {
	usage := `kdftool - Keystore key derivation parameters and keys

Usage:
  kdftool <command> [options]

Available Commands:
  new         Generate a fresh KDF parameter block as JSON
  derive      Derive a key from a parameter block and a passphrase on stdin
  levels      List the named security levels
  config      Print the effective policy as YAML
  help        Show this help message
  version     Show version information

Examples:
  # Scrypt parameters at the ultra security level
  kdftool new -level ultra > params.json

  # PBKDF2 parameters with a custom policy
  kdftool new -kdf pbkdf2 -config policy.yaml

  # Derive a hex key
  echo -n "passphrase" | kdftool derive -params params.json
`
	fmt.Fprint(w, usage)
}

func printVersion(w io.Writer) {
	fmt.Fprintln(w, "kdftool v1.0.0")
}
