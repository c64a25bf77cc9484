// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"
	"math"
	"os"

	"github.com/dustin/go-humanize"

	"github.com/bureau-foundation/securemem/lib/lockalloc"
	"github.com/bureau-foundation/securemem/lib/pages"
)

func runLimits(args []string, stdout, stderr io.Writer) error {
	flagSet, common := newFlagSet("limits", stderr)
	if done, err := parse(flagSet, args); done || err != nil {
		return err
	}
	cfg, logger, err := common.setup(stderr)
	if err != nil {
		return err
	}

	// Build the pool from the same settings keygen, encrypt and decrypt
	// hand to the process-wide allocator, but report rather than enforce
	// require_locked.
	provider := pages.NewSystem(cfg.Pool.MaxLockedBytes)
	allocator, err := lockalloc.New(provider, cfg.Pool.AllocatorConfig(logger))
	if err != nil {
		return err
	}
	defer allocator.Close()

	override, ok := os.LookupEnv(pages.LimitEnvironmentVariable)
	if !ok {
		override = "unset"
	} else {
		override += " KiB"
	}

	stats := allocator.Stats()
	lockable := pages.NewSystem(math.MaxInt).Limit()

	fmt.Fprintf(stdout, "page size:          %s\n", humanize.IBytes(uint64(provider.PageSize())))
	fmt.Fprintf(stdout, "lockable memory:    %s\n", humanize.IBytes(uint64(lockable)))
	fmt.Fprintf(stdout, "configured ceiling: %s\n", humanize.IBytes(uint64(cfg.Pool.MaxLockedBytes)))
	fmt.Fprintf(stdout, "%s: %s\n", pages.LimitEnvironmentVariable, override)
	fmt.Fprintf(stdout, "locked region:      %s\n", humanize.IBytes(uint64(stats.RegionBytes)))
	fmt.Fprintf(stdout, "pool requests:      %s to %s, %d-byte aligned\n",
		humanize.IBytes(uint64(cfg.Pool.MinAllocation)),
		humanize.IBytes(uint64(cfg.Pool.MaxAllocation)),
		1<<cfg.Pool.AlignmentBits)
	if stats.Locked {
		fmt.Fprintln(stdout, "status:             locked pool active")
	} else {
		fmt.Fprintln(stdout, "status:             heap only (secrets are zeroed but may be swapped)")
		if cfg.Pool.RequireLocked {
			return fmt.Errorf("pool.require_locked is set but no memory can be locked")
		}
	}
	return nil
}
