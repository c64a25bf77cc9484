// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Bureau-securemem inspects and exercises the locked memory pool that
// holds Bureau secrets. "limits" reports the page size, how much memory
// the process may lock, and the pool the configuration would build.
// "stress" hammers a private pool from many goroutines and checks that
// no two live allocations ever overlap, optionally writing Prometheus
// metrics to a node_exporter textfile. "keygen", "encrypt" and
// "decrypt" handle age keys and plaintext entirely in locked memory.
package main
