/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

// Package fileutil stages output files and opens inputs with sharing limits.
package fileutil

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
)

// tempPattern names staged output. The leading dot hides it from most listings.
const tempPattern = ".filetransformer-*.tmp"

// ErrLocked reports a file held open by a conflicting writer or reader.
var ErrLocked = errors.New("file is locked by another process")

// Output is a file being written in a hidden temp location next to its final
// path. Nothing appears at the final path until Commit succeeds.
type Output struct {
	file    *os.File
	tmpName string
	closed  bool
	done    bool
}

// CreateOutput creates an exclusively locked temp file inside dir.
func CreateOutput(dir string) (*Output, error) {
	f, err := os.CreateTemp(dir, tempPattern)
	if err != nil {
		return nil, fmt.Errorf("creating temporary file: %w", err)
	}

	if err := lockExclusive(f); err != nil {
		f.Close()           //nolint:gosec // best-effort cleanup
		os.Remove(f.Name()) //nolint:gosec // best-effort cleanup
		return nil, err
	}

	return &Output{file: f, tmpName: f.Name()}, nil
}

// File returns the underlying temp file for writing.
func (o *Output) File() *os.File {
	return o.file
}

// TempName returns the staged file's path.
func (o *Output) TempName() string {
	return o.tmpName
}

// Commit flushes the staged file and moves it to path. Without overwrite an
// existing file at path is left untouched and fs.ErrExist is returned; the
// staged file stays in place so Commit may be retried with another path.
func (o *Output) Commit(path string, overwrite bool) error {
	if o.done {
		return errors.New("output already finalized")
	}

	if !o.closed {
		if err := o.file.Sync(); err != nil {
			return fmt.Errorf("syncing %q: %w", o.tmpName, err)
		}
		o.closed = true
		if err := o.file.Close(); err != nil {
			return fmt.Errorf("closing %q: %w", o.tmpName, err)
		}
	}

	if overwrite {
		if err := os.Rename(o.tmpName, path); err != nil {
			return fmt.Errorf("renaming to %q: %w", path, err)
		}
		o.done = true
		return nil
	}

	// A hard link fails atomically when path exists.
	if err := os.Link(o.tmpName, path); err == nil {
		o.done = true
		os.Remove(o.tmpName) //nolint:gosec // best-effort cleanup
		return nil
	} else if errors.Is(err, fs.ErrExist) {
		return fmt.Errorf("%q: %w", path, fs.ErrExist)
	}

	// Filesystems without hard links.
	if _, err := os.Lstat(path); err == nil {
		return fmt.Errorf("%q: %w", path, fs.ErrExist)
	}
	if err := os.Rename(o.tmpName, path); err != nil {
		return fmt.Errorf("renaming to %q: %w", path, err)
	}
	o.done = true
	return nil
}

// Discard closes and removes the staged file. It is a no-op after Commit.
func (o *Output) Discard() error {
	if o.done {
		return nil
	}
	o.done = true

	if !o.closed {
		o.closed = true
		o.file.Close() //nolint:gosec // best-effort cleanup
	}

	if err := os.Remove(o.tmpName); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing %q: %w", o.tmpName, err)
	}
	return nil
}

// RandomName returns an unpredictable lowercase file name with an optional
// extension (given without the leading dot).
func RandomName(ext string) string {
	name := strings.ToLower(rand.Text())
	if ext != "" {
		name += "." + ext
	}
	return name
}
