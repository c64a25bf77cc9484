// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package secret

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
)

// MaxFileSize bounds how much ReadFromPath reads from a file.
const MaxFileSize = 64 * 1024

// ReadFromPath reads a secret from a file path, or the first line of
// stdin if path is "-". The returned buffer must be closed by the
// caller. Leading/trailing whitespace is trimmed before storing.
// Returns an error if the source is empty after trimming.
func ReadFromPath(path string) (*Buffer, error) {
	if path == "-" {
		return readLine(os.Stdin)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	raw, err := NewFromReader(file, MaxFileSize)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	defer raw.Close()

	return trimmed(raw.Bytes())
}

func readLine(reader io.Reader) (*Buffer, error) {
	scanner := bufio.NewScanner(reader)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("reading stdin: %w", err)
		}
		return nil, fmt.Errorf("stdin is empty")
	}
	data := scanner.Bytes()
	defer Zero(data)

	return trimmed(data)
}

// trimmed copies data without surrounding whitespace into a new
// buffer. data is zeroed either way.
func trimmed(data []byte) (*Buffer, error) {
	value := bytes.TrimSpace(data)
	if len(value) == 0 {
		Zero(data)
		return nil, fmt.Errorf("secret is empty")
	}

	// NewFromBytes zeroes value; the whitespace around it is zeroed here.
	buffer, err := NewFromBytes(value)
	Zero(data)
	if err != nil {
		return nil, err
	}
	return buffer, nil
}
