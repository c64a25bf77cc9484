// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/bureau-foundation/securemem/lib/lockalloc"
	"github.com/bureau-foundation/securemem/lib/pages"
)

type stressOptions struct {
	workers     int
	iterations  int
	live        int
	maxSize     int
	seed        uint64
	metricsFile string
}

type stressResult struct {
	operations uint64
	elapsed    time.Duration
	stats      lockalloc.Stats
}

func runStress(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var options stressOptions
	flagSet, common := newFlagSet("stress", stderr)
	flagSet.IntVar(&options.workers, "workers", 8, "concurrent goroutines")
	flagSet.IntVar(&options.iterations, "iterations", 10000, "allocate-or-free steps per goroutine")
	flagSet.IntVar(&options.live, "live", 16, "allocations each goroutine may hold at once")
	flagSet.IntVar(&options.maxSize, "max-size", 5000, "largest request in bytes (above the pool maximum exercises the heap path)")
	flagSet.Uint64Var(&options.seed, "seed", 1, "random seed")
	flagSet.StringVar(&options.metricsFile, "metrics-file", "", "write a Prometheus textfile here when done (default: metrics.textfile_path)")
	if done, err := parse(flagSet, args); done || err != nil {
		return err
	}
	if options.workers < 1 || options.iterations < 1 || options.live < 1 || options.maxSize < 1 {
		return fmt.Errorf("--workers, --iterations, --live and --max-size must be positive")
	}

	cfg, logger, err := common.setup(stderr)
	if err != nil {
		return err
	}
	if options.metricsFile == "" {
		options.metricsFile = cfg.Metrics.TextfilePath
	} else {
		cfg.Metrics.TextfilePath = options.metricsFile
	}

	allocator, err := newAllocator(cfg, pages.NewSystem(cfg.Pool.MaxLockedBytes), logger)
	if err != nil {
		return err
	}
	defer allocator.Close()

	logger.Info("starting stress run",
		"workers", options.workers,
		"iterations", options.iterations,
		"locked", allocator.Locked(),
	)
	result, stressErr := stress(ctx, allocator, options)

	if options.metricsFile != "" {
		if err := cfg.EnsureMetricsDirectory(); err != nil {
			return err
		}
		registry := prometheus.NewRegistry()
		registry.MustRegister(lockalloc.NewCollector(allocator))
		if err := prometheus.WriteToTextfile(options.metricsFile, registry); err != nil {
			return fmt.Errorf("writing metrics: %w", err)
		}
		logger.Info("wrote metrics", "path", options.metricsFile)
	}

	if stressErr != nil {
		return stressErr
	}

	stats := result.stats
	fmt.Fprintf(stdout, "operations:   %s in %s\n", humanize.Comma(int64(result.operations)), result.elapsed.Round(time.Millisecond))
	fmt.Fprintf(stdout, "pool:         %s allocations, %s deallocations\n",
		humanize.Comma(int64(stats.PoolAllocations)), humanize.Comma(int64(stats.PoolDeallocations)))
	fmt.Fprintf(stdout, "heap:         %s allocations, %s deallocations\n",
		humanize.Comma(int64(stats.HeapAllocations)), humanize.Comma(int64(stats.HeapDeallocations)))
	fmt.Fprintf(stdout, "locked region: %s, %s free\n",
		humanize.IBytes(uint64(stats.RegionBytes)), humanize.IBytes(uint64(stats.PoolFreeBytes)))
	return nil
}

// held is one live allocation and the byte it was filled with.
type held struct {
	data  []byte
	stamp byte
}

// stress runs options.workers goroutines of random allocate and free
// steps. Each allocation is checked to be zeroed on arrival, then
// filled with a per-allocation stamp that is verified before release;
// a mismatch means two live allocations overlapped.
func stress(ctx context.Context, allocator *lockalloc.Allocator, options stressOptions) (stressResult, error) {
	var (
		operations atomic.Uint64
		failure    atomic.Pointer[error]
		group      sync.WaitGroup
	)
	fail := func(err error) {
		failure.CompareAndSwap(nil, &err)
	}

	start := time.Now()
	for worker := range options.workers {
		group.Add(1)
		go func() {
			defer group.Done()
			random := rand.New(rand.NewPCG(options.seed, uint64(worker)))
			slots := make([]held, options.live)
			defer func() {
				for _, slot := range slots {
					if slot.data != nil {
						allocator.Deallocate(slot.data, len(slot.data), 1)
					}
				}
			}()

			for range options.iterations {
				if ctx.Err() != nil || failure.Load() != nil {
					return
				}
				slot := &slots[random.IntN(len(slots))]
				if slot.data != nil {
					for index, value := range slot.data {
						if value != slot.stamp {
							fail(fmt.Errorf("worker %d: byte %d of a %d-byte allocation changed from %#x to %#x while held",
								worker, index, len(slot.data), slot.stamp, value))
							return
						}
					}
					allocator.Deallocate(slot.data, len(slot.data), 1)
					slot.data = nil
				} else {
					length := 1 + random.IntN(options.maxSize)
					data := allocator.Allocate(length, 1)
					for index, value := range data {
						if value != 0 {
							fail(fmt.Errorf("worker %d: fresh %d-byte allocation has %#x at byte %d", worker, length, value, index))
							return
						}
					}
					slot.stamp = byte(1 + random.IntN(255))
					for index := range data {
						data[index] = slot.stamp
					}
					slot.data = data
				}
				operations.Add(1)
			}
		}()
	}
	group.Wait()

	result := stressResult{
		operations: operations.Load(),
		elapsed:    time.Since(start),
		stats:      allocator.Stats(),
	}
	if err := failure.Load(); err != nil {
		return result, *err
	}
	if err := ctx.Err(); err != nil {
		return result, fmt.Errorf("stress run interrupted: %w", err)
	}
	if result.stats.PoolBytesInUse != 0 {
		return result, fmt.Errorf("%d pool bytes still in use after every allocation was released", result.stats.PoolBytesInUse)
	}
	if result.stats.Locked && result.stats.PoolFreeBytes != result.stats.RegionBytes {
		return result, fmt.Errorf("pool free-list holds %d of %d bytes after every allocation was released",
			result.stats.PoolFreeBytes, result.stats.RegionBytes)
	}
	return result, nil
}
