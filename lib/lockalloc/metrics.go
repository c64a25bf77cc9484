// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package lockalloc

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricNamespace = "bureau_securemem"

type statsCollector struct {
	allocator *Allocator

	allocations   *prometheus.Desc
	deallocations *prometheus.Desc
	inUseBytes    *prometheus.Desc
	freeBytes     *prometheus.Desc
	regionBytes   *prometheus.Desc
	locked        *prometheus.Desc
}

// NewCollector returns a Prometheus collector that reads
// allocator.Stats on every scrape.
func NewCollector(allocator *Allocator) prometheus.Collector {
	return &statsCollector{
		allocator: allocator,
		allocations: prometheus.NewDesc(
			prometheus.BuildFQName(metricNamespace, "", "allocations_total"),
			"Secret allocations, by backing memory.",
			[]string{"source"}, nil,
		),
		deallocations: prometheus.NewDesc(
			prometheus.BuildFQName(metricNamespace, "", "deallocations_total"),
			"Secret deallocations, by backing memory.",
			[]string{"source"}, nil,
		),
		inUseBytes: prometheus.NewDesc(
			prometheus.BuildFQName(metricNamespace, "pool", "inuse_bytes"),
			"Bytes of the locked pool held by live allocations.",
			nil, nil,
		),
		freeBytes: prometheus.NewDesc(
			prometheus.BuildFQName(metricNamespace, "pool", "free_bytes"),
			"Bytes on the locked pool's free-list, including alignment padding.",
			nil, nil,
		),
		regionBytes: prometheus.NewDesc(
			prometheus.BuildFQName(metricNamespace, "", "region_bytes"),
			"Size of the locked region.",
			nil, nil,
		),
		locked: prometheus.NewDesc(
			prometheus.BuildFQName(metricNamespace, "", "locked"),
			"1 while a locked pool backs secret allocations.",
			nil, nil,
		),
	}
}

func (c *statsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.allocations
	ch <- c.deallocations
	ch <- c.inUseBytes
	ch <- c.freeBytes
	ch <- c.regionBytes
	ch <- c.locked
}

func (c *statsCollector) Collect(ch chan<- prometheus.Metric) {
	stats := c.allocator.Stats()

	ch <- prometheus.MustNewConstMetric(c.allocations, prometheus.CounterValue, float64(stats.PoolAllocations), "pool")
	ch <- prometheus.MustNewConstMetric(c.allocations, prometheus.CounterValue, float64(stats.HeapAllocations), "heap")
	ch <- prometheus.MustNewConstMetric(c.deallocations, prometheus.CounterValue, float64(stats.PoolDeallocations), "pool")
	ch <- prometheus.MustNewConstMetric(c.deallocations, prometheus.CounterValue, float64(stats.HeapDeallocations), "heap")
	ch <- prometheus.MustNewConstMetric(c.inUseBytes, prometheus.GaugeValue, float64(stats.PoolBytesInUse))
	ch <- prometheus.MustNewConstMetric(c.freeBytes, prometheus.GaugeValue, float64(stats.PoolFreeBytes))
	ch <- prometheus.MustNewConstMetric(c.regionBytes, prometheus.GaugeValue, float64(stats.RegionBytes))

	locked := 0.0
	if stats.Locked {
		locked = 1
	}
	ch <- prometheus.MustNewConstMetric(c.locked, prometheus.GaugeValue, locked)
}

var _ prometheus.Collector = (*statsCollector)(nil)
