// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package lockalloc

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestCollector(t *testing.T) {
	provider := &fakeProvider{limit: 8192}
	allocator := newTestAllocator(t, provider, testConfig())

	pooled := allocator.Allocate(64, 1)
	heap := allocator.Allocate(8192, 1)
	allocator.Deallocate(heap, 8192, 1)

	registry := prometheus.NewPedanticRegistry()
	if err := registry.Register(NewCollector(allocator)); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}

	values := make(map[string]float64)
	for _, family := range families {
		for _, metric := range family.GetMetric() {
			name := family.GetName()
			for _, label := range metric.GetLabel() {
				name += "{" + label.GetName() + "=" + label.GetValue() + "}"
			}
			switch {
			case metric.GetCounter() != nil:
				values[name] = metric.GetCounter().GetValue()
			case metric.GetGauge() != nil:
				values[name] = metric.GetGauge().GetValue()
			}
		}
	}

	expected := map[string]float64{
		"bureau_securemem_allocations_total{source=pool}":   1,
		"bureau_securemem_allocations_total{source=heap}":   1,
		"bureau_securemem_deallocations_total{source=pool}": 0,
		"bureau_securemem_deallocations_total{source=heap}": 1,
		"bureau_securemem_pool_inuse_bytes":                 64,
		"bureau_securemem_pool_free_bytes":                  8192 - 64,
		"bureau_securemem_region_bytes":                     8192,
		"bureau_securemem_locked":                           1,
	}
	for name, want := range expected {
		got, ok := values[name]
		if !ok {
			t.Errorf("metric %s missing; gathered %v", name, values)
			continue
		}
		if got != want {
			t.Errorf("%s = %v, want %v", name, got, want)
		}
	}
	if len(values) != len(expected) {
		t.Errorf("gathered %d series, want %d: %v", len(values), len(expected), values)
	}

	allocator.Deallocate(pooled, 64, 1)
}
