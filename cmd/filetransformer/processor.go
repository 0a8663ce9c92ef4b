/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"github.com/gitrgoliveira/go-filetransformer"
)

type operation string

const (
	opTransform operation = "transform"
	opRestore   operation = "restore"
)

// process runs op over every file in cfg with bounded parallelism. A failing
// file does not stop the others; the returned error counts the failures.
func (a *app) process(ctx context.Context, cfg *Config, op operation) error {
	key, err := cfg.resolveKey(a.passwords, a.stderr, op == opTransform)
	if err != nil {
		return err
	}
	defer filetransformer.ZeroKey(key)

	var progress filetransformer.ProgressFunc
	if len(cfg.Files) == 1 {
		file := cfg.Files[0]
		progress = func(percent int) {
			a.logger.Debug("progress", "file", file, "percent", percent)
		}
	}

	t, err := filetransformer.New(key, cfg.options(a.logger, progress)...)
	if err != nil {
		return err
	}
	defer t.Destroy()

	var (
		mu     sync.Mutex
		failed atomic.Int32
		g      errgroup.Group
	)
	g.SetLimit(cfg.Parallel)

	for _, file := range cfg.Files {
		g.Go(func() error {
			res, err := a.processFile(ctx, t, cfg, op, file)

			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				failed.Add(1)
				a.reportError(cfg, file, err)
				return nil
			}
			if !cfg.Quiet {
				a.reportResult(cfg, op, file, res)
			}
			return nil
		})
	}
	_ = g.Wait()

	if n := failed.Load(); n > 0 {
		return fmt.Errorf("%s: %d of %d files failed", op, n, len(cfg.Files))
	}
	if err := ctx.Err(); err != nil {
		return filetransformer.SanitizeError(err)
	}
	return nil
}

func (a *app) processFile(ctx context.Context, t *filetransformer.Transformer, cfg *Config, op operation, file string) (*filetransformer.Result, error) {
	saveDir := cfg.Out
	if saveDir == "" {
		saveDir = filepath.Dir(file)
	}

	var (
		res *filetransformer.Result
		err error
	)
	switch op {
	case opTransform:
		res, err = t.TransformFile(ctx, file, saveDir, cfg.Ext)
	case opRestore:
		res, err = t.RestoreFile(ctx, file, saveDir)
	default:
		return nil, fmt.Errorf("unknown operation %q", op)
	}
	if err != nil {
		return nil, err
	}

	if cfg.Delete {
		if err := os.Remove(file); err != nil {
			a.logger.Warn("could not delete input", "file", file, "error", err)
		}
	}

	return res, nil
}

func (a *app) reportError(cfg *Config, file string, err error) {
	if cfg.Verbose {
		a.logger.Error("failed", "file", file, "error", err)
		return
	}
	fmt.Fprintf(a.stderr, "%s: %s\n", file, filetransformer.SanitizeError(err))
}

func (a *app) reportResult(cfg *Config, op operation, file string, res *filetransformer.Result) {
	a.logger.Debug("done", slog.String("op", string(op)), slog.String("input", file), slog.String("output", res.Path))

	switch op {
	case opTransform:
		fmt.Fprintf(a.stdout, "%s (%s) -> %s\n", res.Name, humanize.Bytes(uint64(res.SourceSize)), res.Path) // #nosec G115 -- sizes are non-negative
	default:
		fmt.Fprintf(a.stdout, "%s -> %s (%s)\n", file, res.Path, humanize.Bytes(uint64(res.Size))) // #nosec G115 -- sizes are non-negative
	}
	if cfg.Checksum {
		fmt.Fprintf(a.stdout, "  sha256:%s\n", res.ChecksumHex())
	}
}
