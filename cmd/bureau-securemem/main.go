// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/securemem/lib/config"
	"github.com/bureau-foundation/securemem/lib/lockalloc"
	"github.com/bureau-foundation/securemem/lib/pages"
	"github.com/bureau-foundation/securemem/lib/version"
)

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	if len(args) < 1 {
		printUsage(stderr)
		return fmt.Errorf("subcommand required")
	}

	subcommand, args := args[0], args[1:]
	switch subcommand {
	case "limits":
		return runLimits(args, stdout, stderr)
	case "stress":
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runStress(ctx, args, stdout, stderr)
	case "keygen":
		return runKeygen(args, stdout, stderr)
	case "encrypt":
		return runEncrypt(args, stdin, stdout, stderr)
	case "decrypt":
		return runDecrypt(args, stdin, stdout, stderr)
	case "version", "--version":
		version.Print(stdout, "bureau-securemem")
		return nil
	case "-h", "--help", "help":
		printUsage(stdout)
		return nil
	default:
		printUsage(stderr)
		return fmt.Errorf("unknown subcommand: %q", subcommand)
	}
}

func printUsage(output io.Writer) {
	fmt.Fprintf(output, `Usage: bureau-securemem <subcommand> [flags]

Inspect and exercise the locked memory pool that holds Bureau secrets.

Subcommands:
  limits      Show page size, lockable memory, and the pool that would be built
  stress      Run concurrent randomized allocations against a private pool
  keygen      Generate an age keypair with the private key in locked memory
  encrypt     Encrypt stdin to age recipients
  decrypt     Decrypt stdin with an age private key, plaintext to stdout
  version     Print version information

Every subcommand accepts --config (default: $BUREAU_CONFIG) and
--log-level. Run 'bureau-securemem <subcommand> --help' for flags.
`)
}

// commonFlags are accepted by every subcommand.
type commonFlags struct {
	configPath string
	logLevel   string
}

func newFlagSet(name string, stderr io.Writer) (*pflag.FlagSet, *commonFlags) {
	common := &commonFlags{}
	flagSet := pflag.NewFlagSet(name, pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.StringVar(&common.configPath, "config", "", "path to config file (default: $"+config.EnvironmentVariable+")")
	flagSet.StringVar(&common.logLevel, "log-level", "info", "log level: debug, info, warn, error")
	return flagSet, common
}

// parse parses args, reporting whether the caller should stop because
// help was printed.
func parse(flagSet *pflag.FlagSet, args []string) (bool, error) {
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return true, nil
		}
		return false, err
	}
	if flagSet.NArg() > 0 {
		return false, fmt.Errorf("unexpected argument: %s", flagSet.Arg(0))
	}
	return false, nil
}

// setup loads the configuration and builds the logger. Without
// --config or BUREAU_CONFIG the built-in defaults apply.
func (c *commonFlags) setup(stderr io.Writer) (*config.Config, *slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.logLevel)); err != nil {
		return nil, nil, fmt.Errorf("invalid --log-level %q: %w", c.logLevel, err)
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	var cfg *config.Config
	var err error
	switch {
	case c.configPath != "":
		cfg, err = config.LoadFile(c.configPath)
	case os.Getenv(config.EnvironmentVariable) != "":
		cfg, err = config.Load()
	default:
		cfg = config.Default()
	}
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, logger, nil
}

// newAllocator builds a private allocator from the pool section of cfg.
// With require_locked set it fails rather than fall back to the heap.
func newAllocator(cfg *config.Config, provider pages.Provider, logger *slog.Logger) (*lockalloc.Allocator, error) {
	allocator, err := lockalloc.New(provider, cfg.Pool.AllocatorConfig(logger))
	if err != nil {
		return nil, err
	}
	if cfg.Pool.RequireLocked && !allocator.Locked() {
		allocator.Close()
		return nil, fmt.Errorf("no memory could be locked and pool.require_locked is set " +
			"(raise RLIMIT_MEMLOCK or grant CAP_IPC_LOCK)")
	}
	return allocator, nil
}

// configureProcessAllocator shapes the process-wide allocator used by
// the secret-handling subcommands from the pool section of cfg, then
// applies require_locked to it.
func configureProcessAllocator(cfg *config.Config, logger *slog.Logger) error {
	provider := pages.NewSystem(cfg.Pool.MaxLockedBytes)
	if err := lockalloc.Configure(provider, cfg.Pool.AllocatorConfig(logger)); err != nil {
		return err
	}
	if cfg.Pool.RequireLocked && !lockalloc.Instance().Locked() {
		lockalloc.Shutdown()
		return fmt.Errorf("no memory could be locked and pool.require_locked is set " +
			"(raise RLIMIT_MEMLOCK or grant CAP_IPC_LOCK)")
	}
	return nil
}
