//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

package fileutil

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// OpenReadLocked opens path for reading under a shared advisory lock, so a
// cooperating writer holding an exclusive lock makes it fail with ErrLocked.
func OpenReadLocked(path string) (*os.File, error) {
	f, err := os.Open(path) // #nosec G304 -- file path provided by caller
	if err != nil {
		return nil, err
	}

	if err := flock(f, unix.LOCK_SH); err != nil {
		f.Close() //nolint:gosec // best-effort cleanup
		return nil, err
	}
	return f, nil
}

func lockExclusive(f *os.File) error {
	return flock(f, unix.LOCK_EX)
}

// flock takes a non-blocking lock. Filesystems that do not implement flock
// are treated as unlocked.
func flock(f *os.File, how int) error {
	err := unix.Flock(int(f.Fd()), how|unix.LOCK_NB)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, unix.EWOULDBLOCK):
		return fmt.Errorf("%s: %w", f.Name(), ErrLocked)
	case errors.Is(err, unix.ENOLCK), errors.Is(err, unix.EOPNOTSUPP), errors.Is(err, unix.EINVAL):
		return nil
	default:
		return fmt.Errorf("locking %s: %w", f.Name(), err)
	}
}
