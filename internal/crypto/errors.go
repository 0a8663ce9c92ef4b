/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

package crypto

import (
	"context"
	"errors"
	"fmt"
	"os"
)

// Error types for container transform and restore.
var (
	// ErrConfig is the parent of every construction-time configuration error.
	ErrConfig = errors.New("configuration error")

	ErrInvalidKey   = errors.New("invalid key")
	ErrChunkSize    = errors.New("invalid chunk size")
	ErrNonceLength  = errors.New("invalid nonce length")
	ErrExtension    = errors.New("invalid file extension")
	ErrNonceDeriver = errors.New("invalid nonce deriver")

	// ErrInvalidContainer covers bad signatures, failed tag verification and
	// malformed framing alike. Callers cannot tell a wrong key from a
	// corrupted file through it.
	ErrInvalidContainer = errors.New("not a valid container for this key")

	ErrCanceled         = errors.New("operation canceled")
	ErrCounterExhausted = errors.New("chunk counter exhausted")
	ErrUnsafeName       = errors.New("unsafe file name in container")
)

// ConfigError wraps err as a configuration error with a detail message.
func ConfigError(err error, format string, args ...any) error {
	return fmt.Errorf("%w: %w: %s", ErrConfig, err, fmt.Sprintf(format, args...))
}

// Canceled reports a cooperative cancellation observed on ctx. The result
// matches both ErrCanceled and the context's own error.
func Canceled(ctx context.Context) error {
	cause := context.Cause(ctx)
	if cause == nil {
		cause = context.Canceled
	}
	return fmt.Errorf("%w: %w", ErrCanceled, cause)
}

// SanitizeError removes sensitive details for external consumption.
func SanitizeError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, ErrCanceled):
		return errors.New("operation canceled")
	case errors.Is(err, ErrInvalidContainer):
		return errors.New("not a valid container for this key")
	case errors.Is(err, ErrInvalidKey):
		return errors.New("invalid encryption key")
	case errors.Is(err, ErrConfig):
		return errors.New("invalid configuration")
	case errors.Is(err, ErrUnsafeName):
		return errors.New("container names an unsafe output file")
	case errors.Is(err, os.ErrPermission):
		return errors.New("insufficient permissions")
	case errors.Is(err, os.ErrNotExist):
		return errors.New("file not found")
	case errors.Is(err, os.ErrExist):
		return errors.New("output file already exists")
	default:
		return errors.New("file transform failed")
	}
}

// OpError records an I/O failure together with the operation, file and phase
// it happened in.
type OpError struct {
	Op    string // "transform" or "restore"
	Path  string // file being read or written
	Phase Phase
	Chunk int // body chunk index, -1 when not inside the body loop
	Err   error
}

func (e *OpError) Error() string {
	if e.Chunk >= 0 {
		return fmt.Sprintf("%s %s (%s, chunk %d): %v", e.Op, e.Path, e.Phase, e.Chunk, e.Err)
	}
	return fmt.Sprintf("%s %s (%s): %v", e.Op, e.Path, e.Phase, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

// NewOpError creates a new OpError.
func NewOpError(op, path string, phase Phase, chunk int, err error) *OpError {
	return &OpError{
		Op:    op,
		Path:  path,
		Phase: phase,
		Chunk: chunk,
		Err:   err,
	}
}

// WrapError adds context to an error
func WrapError(context string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", context, err)
}
