/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

// options.go: Configuration options for go-filetransformer
package core

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/dustin/go-humanize"
)

// ChunkSizeLimitEnv caps the chunk size accepted by NewTransformer and by
// restore, e.g. FILETRANSFORMER_CHUNKSIZE_LIMIT=64MiB.
const ChunkSizeLimitEnv = "FILETRANSFORMER_CHUNKSIZE_LIMIT"

// ProgressFunc receives completion as a whole percentage between 0 and 100.
// It runs synchronously on the goroutine performing the transform.
type ProgressFunc func(percent int)

type Config struct {
	ChunkSize int
	Progress  ProgressFunc
	Checksum  bool
	Nonces    NonceDeriver
	Logger    *slog.Logger
	Overwrite bool
}

// Option defines functional options for Transformer construction.
type Option func(*Config)

// WithChunkSize sets the plaintext chunk size. NewTransformer rejects sizes
// that are not a positive multiple of 3 or exceed the chunk size limit.
func WithChunkSize(size int) Option {
	return func(cfg *Config) {
		cfg.ChunkSize = size
	}
}

// WithProgress sets a progress callback. A nil callback disables reporting.
func WithProgress(cb ProgressFunc) Option {
	return func(cfg *Config) {
		cfg.Progress = cb
	}
}

// WithChecksum enables SHA-256 of every produced file, reported in Result.Checksum.
func WithChecksum(enable bool) Option {
	return func(cfg *Config) {
		cfg.Checksum = enable
	}
}

// WithNonceDeriver replaces the default MD5 counter digest.
func WithNonceDeriver(d NonceDeriver) Option {
	return func(cfg *Config) {
		cfg.Nonces = d
	}
}

// WithLogger sets the logger used for phase transitions.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *Config) {
		cfg.Logger = logger
	}
}

// WithOverwrite lets RestoreFile replace an existing file of the same name.
func WithOverwrite(enable bool) Option {
	return func(cfg *Config) {
		cfg.Overwrite = enable
	}
}

// ChunkSizeLimit returns the largest chunk size accepted, honoring
// ChunkSizeLimitEnv when it holds a positive human-readable size.
func ChunkSizeLimit() (int, error) {
	limit := MaxChunkSize

	envLimit, ok := os.LookupEnv(ChunkSizeLimitEnv)
	if !ok {
		return limit, nil
	}

	parsed, err := humanize.ParseBytes(envLimit)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", ChunkSizeLimitEnv, err)
	}
	if parsed == 0 || parsed >= uint64(limit) {
		return limit, nil
	}

	return int(parsed), nil // #nosec G115 -- below MaxChunkSize
}
