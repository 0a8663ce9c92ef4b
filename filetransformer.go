/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

// Package filetransformer turns files into authenticated, printable
// containers and back.
//
// A container is a sequence of records. Each record is the AES-GCM
// encryption of one chunk followed by its 12-byte tag, both Base64 framed.
// The first record carries a fixed header with the original file name and
// chunk size; the last record carries the remainder and is always present.
// Nonces are derived from the record counter, so no per-file random state is
// stored.
//
// # Basic Usage
//
//	key := make([]byte, 32)
//	rand.Read(key)
//	defer filetransformer.ZeroKey(key)
//
//	ctx := context.Background()
//
//	// Write report.pdf as <random>.enc inside outDir
//	res, err := filetransformer.TransformFile(ctx, "report.pdf", outDir, "enc", key)
//
//	// Restore it as restoreDir/report.pdf
//	res, err = filetransformer.RestoreFile(ctx, res.Path, restoreDir, key)
//
// Use New to build a Transformer once and reuse it across files and
// goroutines.
//
// # Errors
//
// Restore reports every authentication, framing or layout problem as
// ErrInvalidContainer with no further detail, so a wrong key cannot be told
// apart from a damaged file. Cancellation returns an error matching both
// ErrCanceled and context.Canceled. Bad options and keys match ErrConfig.
// On any failure no output file is left behind.
//
// # Security Considerations
//
// The default nonce derivation depends only on the record counter, so two
// containers written under one key reuse nonces. Use a distinct key per
// file, or WithNonceDeriver(NewKeyedNonceDeriver(secret)), when that matters.
package filetransformer

import (
	"context"
	"io"

	"github.com/gitrgoliveira/go-filetransformer/internal/core"
	crypto "github.com/gitrgoliveira/go-filetransformer/internal/crypto"
	"github.com/gitrgoliveira/go-filetransformer/secure"
)

// Transformer holds a key and options for repeated transform and restore runs.
type Transformer = core.Transformer

// Result describes a produced file.
type Result = core.Result

// Header is the decoded header of a container.
type Header = core.Header

// Option configures a Transformer.
type Option = core.Option

// ProgressFunc receives completion as a whole percentage.
type ProgressFunc = core.ProgressFunc

// NonceDeriver maps a record counter to a nonce.
type NonceDeriver = core.NonceDeriver

// OpError carries the operation, file and phase of an I/O failure.
type OpError = crypto.OpError

// Phase is a state of a transform or restore run.
type Phase = crypto.Phase

// Options.
var (
	WithChunkSize        = core.WithChunkSize
	WithProgress         = core.WithProgress
	WithChecksum         = core.WithChecksum
	WithNonceDeriver     = core.WithNonceDeriver
	WithLogger           = core.WithLogger
	WithOverwrite        = core.WithOverwrite
	NewKeyedNonceDeriver = core.NewKeyedNonceDeriver
)

// Errors.
var (
	ErrConfig           = crypto.ErrConfig
	ErrInvalidKey       = crypto.ErrInvalidKey
	ErrChunkSize        = crypto.ErrChunkSize
	ErrExtension        = crypto.ErrExtension
	ErrInvalidContainer = crypto.ErrInvalidContainer
	ErrCanceled         = crypto.ErrCanceled
	ErrCounterExhausted = crypto.ErrCounterExhausted
	ErrUnsafeName       = crypto.ErrUnsafeName
)

// SanitizeError maps err to a message safe to show to end users.
var SanitizeError = crypto.SanitizeError

// Checksum helpers.
var (
	CalculateChecksum    = core.CalculateChecksum
	CalculateChecksumHex = core.CalculateChecksumHex
	VerifyChecksum       = core.VerifyChecksum
	VerifyChecksumHex    = core.VerifyChecksumHex
)

// Layout and key derivation constants.
const (
	DefaultChunkSize        = core.DefaultChunkSize
	MaxChunkSize            = core.MaxChunkSize
	ChunkSizeLimitEnv       = core.ChunkSizeLimitEnv
	DefaultPBKDF2Iterations = core.DefaultPBKDF2Iterations
	DefaultSaltSize         = core.DefaultSaltSize
	DefaultKeySize          = core.DefaultKeySize
	DefaultArgon2Time       = core.DefaultArgon2Time
	DefaultArgon2Memory     = core.DefaultArgon2Memory
	DefaultArgon2Threads    = core.DefaultArgon2Threads
)

// ZeroKey securely zeroes a key slice. Always use defer ZeroKey(key) after key generation.
var ZeroKey = secure.Zero

// New returns a Transformer for key (16, 24 or 32 bytes).
func New(key []byte, opts ...Option) (*Transformer, error) {
	return core.NewTransformer(key, opts...)
}

// TransformFile writes filePath as a container with a random name inside
// saveDir, suffixed with "."+extension unless extension is empty.
func TransformFile(ctx context.Context, filePath, saveDir, extension string, key []byte, opts ...Option) (*Result, error) {
	t, err := core.NewTransformer(key, opts...)
	if err != nil {
		return nil, err
	}
	defer t.Destroy()
	return t.TransformFile(ctx, filePath, saveDir, extension)
}

// RestoreFile restores the container at filePath into saveDir under the
// file name stored in its header.
func RestoreFile(ctx context.Context, filePath, saveDir string, key []byte, opts ...Option) (*Result, error) {
	t, err := core.NewTransformer(key, opts...)
	if err != nil {
		return nil, err
	}
	defer t.Destroy()
	return t.RestoreFile(ctx, filePath, saveDir)
}

// TransformStream writes src as a container to dst with name in its header.
func TransformStream(ctx context.Context, src io.Reader, dst io.Writer, name string, key []byte, opts ...Option) error {
	t, err := core.NewTransformer(key, opts...)
	if err != nil {
		return err
	}
	defer t.Destroy()
	return t.TransformStream(ctx, src, dst, name)
}

// RestoreStream writes the content of the container read from src to dst.
// Output written before a failure must be discarded by the caller.
func RestoreStream(ctx context.Context, src io.Reader, dst io.Writer, key []byte, opts ...Option) (Header, error) {
	t, err := core.NewTransformer(key, opts...)
	if err != nil {
		return Header{}, err
	}
	defer t.Destroy()
	return t.RestoreStream(ctx, src, dst)
}

// DeriveKeySHA256 derives a 32-byte key from a passphrase with one SHA-256.
func DeriveKeySHA256(passphrase []byte) ([]byte, error) {
	return core.DeriveKeySHA256(passphrase)
}

// DeriveKeyPBKDF2 derives a key from a password using PBKDF2-HMAC-SHA256.
func DeriveKeyPBKDF2(password, salt []byte, iterations, keyLen int) ([]byte, error) {
	return core.DeriveKeyPBKDF2(password, salt, iterations, keyLen)
}

// DeriveKeyArgon2 derives a key from a password using Argon2id.
//
// OWASP 2023 recommended parameters for interactive logins:
//   - time: 3, memory: 65536 (64 MB), threads: 4, keyLen: 32
func DeriveKeyArgon2(password, salt []byte, time, memory uint32, threads uint8, keyLen uint32) ([]byte, error) {
	return core.DeriveKeyArgon2(password, salt, time, memory, threads, keyLen)
}

// GenerateSalt generates a random salt of the specified size.
func GenerateSalt(size int) ([]byte, error) {
	return core.GenerateSalt(size)
}

// GenerateKey generates a random AES key of 16, 24 or 32 bytes.
func GenerateKey(size int) ([]byte, error) {
	return core.GenerateKey(size)
}
