/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

// transformer.go: Chunked streaming transform and restore
package core

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync"

	crypto "github.com/gitrgoliveira/go-filetransformer/internal/crypto"
)

// peekBufferSize is the read buffer placed in front of a container so the
// restore loop can look one byte past each record.
const peekBufferSize = 64 * 1024

// Transformer converts files and streams to containers and back under a
// single key. A Transformer holds no per-run state; concurrent runs over
// different files are independent.
type Transformer struct {
	keyBuf     *crypto.SecureBuffer
	chunkSize  int
	limit      int
	progress   ProgressFunc
	checksum   bool
	nonces     NonceDeriver
	logger     *slog.Logger
	overwrite  bool
	bufferPool *sync.Pool
	// startCounter is a test hook for the header record counter. It remains
	// zero in normal use.
	startCounter uint32
}

// recordBuffers is the working set of one run.
type recordBuffers struct {
	chunkSize int
	plain     []byte // chunkSize
	sealed    []byte // chunkSize + TagSize
	framed    []byte // FramedRecordSize(chunkSize)
}

func newRecordBuffers(chunkSize int) *recordBuffers {
	return &recordBuffers{
		chunkSize: chunkSize,
		plain:     make([]byte, chunkSize),
		sealed:    make([]byte, 0, chunkSize+TagSize),
		framed:    make([]byte, FramedRecordSize(chunkSize)),
	}
}

// NewTransformer validates key and options. No I/O happens here.
func NewTransformer(key []byte, opts ...Option) (*Transformer, error) {
	switch len(key) {
	case 0:
		return nil, crypto.ConfigError(crypto.ErrInvalidKey, "key is required")
	case 16, 24, 32:
	default:
		return nil, crypto.ConfigError(crypto.ErrInvalidKey, "key must be 16, 24 or 32 bytes, got %d", len(key))
	}

	cfg := &Config{
		ChunkSize: DefaultChunkSize,
		Nonces:    DigestNonceDeriver{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}

	limit, err := ChunkSizeLimit()
	if err != nil {
		return nil, crypto.ConfigError(crypto.ErrChunkSize, "%v", err)
	}
	if !ValidChunkSize(cfg.ChunkSize) {
		return nil, crypto.ConfigError(crypto.ErrChunkSize, "(size*8) mod 6 must be 0 and size between %d and %d, got %d", MinChunkSize, MaxChunkSize, cfg.ChunkSize)
	}
	if cfg.ChunkSize > limit {
		return nil, crypto.ConfigError(crypto.ErrChunkSize, "%d exceeds the %s limit of %d", cfg.ChunkSize, ChunkSizeLimitEnv, limit)
	}
	if cfg.Nonces == nil {
		cfg.Nonces = DigestNonceDeriver{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}

	chunkSize := cfg.ChunkSize
	return &Transformer{
		keyBuf:    crypto.NewSecureBufferFromBytes(key),
		chunkSize: chunkSize,
		limit:     limit,
		progress:  cfg.Progress,
		checksum:  cfg.Checksum,
		nonces:    cfg.Nonces,
		logger:    cfg.Logger,
		overwrite: cfg.Overwrite,
		bufferPool: &sync.Pool{
			New: func() any {
				return newRecordBuffers(chunkSize)
			},
		},
	}, nil
}

// ChunkSize returns the plaintext chunk size used for new containers.
func (t *Transformer) ChunkSize() int {
	return t.chunkSize
}

// TransformStream writes src as a container to dst, embedding name as the
// original file name. If sizeHint > 0 it is the number of bytes src will
// yield and drives progress reporting.
func (t *Transformer) TransformStream(ctx context.Context, src io.Reader, dst io.Writer, name string, sizeHint ...int64) (err error) {
	r := t.newRun("transform", name)
	defer r.finish(&err)

	if src == nil || dst == nil {
		return errors.New("source and destination cannot be nil")
	}

	return t.transform(ctx, r, src, dst, name, firstHint(sizeHint))
}

// RestoreStream reads a container from src and writes the original content
// to dst. If sizeHint > 0 it is the container length and drives progress
// reporting. Whatever was written to dst before a failure must be discarded
// by the caller.
func (t *Transformer) RestoreStream(ctx context.Context, src io.Reader, dst io.Writer, sizeHint ...int64) (hdr Header, err error) {
	r := t.newRun("restore", "stream")
	defer r.finish(&err)

	if src == nil || dst == nil {
		return Header{}, errors.New("source and destination cannot be nil")
	}
	if ctx.Err() != nil {
		return Header{}, crypto.Canceled(ctx)
	}

	c, err := t.newCipher()
	if err != nil {
		return Header{}, err
	}

	br := bufio.NewReaderSize(src, peekBufferSize)
	meter := newProgressMeter(t.progress, firstHint(sizeHint))

	hdr, err = t.readHeader(r, c, br, meter)
	if err != nil {
		return Header{}, err
	}

	if err := t.restoreBody(ctx, r, c, hdr, br, dst, meter); err != nil {
		return Header{}, err
	}
	return hdr, nil
}

// Destroy zeroes key material and unlocks memory
func (t *Transformer) Destroy() {
	if t.keyBuf != nil {
		t.keyBuf.Destroy()
	}
}

func (t *Transformer) newCipher() (*ChunkCipher, error) {
	if t.keyBuf.Destroyed() {
		return nil, crypto.ConfigError(crypto.ErrInvalidKey, "transformer has been destroyed")
	}
	return NewChunkCipher(t.keyBuf.Data(), t.nonces)
}

func (t *Transformer) getBuffers(chunkSize int) *recordBuffers {
	if chunkSize == t.chunkSize {
		return t.bufferPool.Get().(*recordBuffers)
	}
	return newRecordBuffers(chunkSize)
}

func (t *Transformer) putBuffers(b *recordBuffers) {
	if b.chunkSize == t.chunkSize {
		t.bufferPool.Put(b)
	}
}

// transform runs Header -> Body -> Remainder into dst.
func (t *Transformer) transform(ctx context.Context, r *run, src io.Reader, dst io.Writer, name string, total int64) error {
	if ctx.Err() != nil {
		return crypto.Canceled(ctx)
	}

	c, err := t.newCipher()
	if err != nil {
		return err
	}

	bufs := t.getBuffers(t.chunkSize)
	defer t.putBuffers(bufs)

	r.enter(crypto.PhaseHeader)

	hdr, err := EncodeHeader(name, t.chunkSize)
	if err != nil {
		return crypto.ConfigError(crypto.ErrChunkSize, "%v", err)
	}
	counter := t.startCounter
	if err := t.sealRecord(r, c, bufs, dst, hdr[:], counter); err != nil {
		return err
	}

	meter := newProgressMeter(t.progress, total)

	r.enter(crypto.PhaseBody)
	for {
		if ctx.Err() != nil {
			return crypto.Canceled(ctx)
		}

		n, err := io.ReadFull(src, bufs.plain)
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			r.enter(crypto.PhaseRemainder)
			if counter, err = nextCounter(counter); err != nil {
				return err
			}
			if err := t.sealRecord(r, c, bufs, dst, bufs.plain[:n], counter); err != nil {
				return err
			}
			meter.add(n)
			break
		}
		if err != nil {
			return r.ioError("read source", err)
		}

		if counter, err = nextCounter(counter); err != nil {
			return err
		}
		if err := t.sealRecord(r, c, bufs, dst, bufs.plain, counter); err != nil {
			return err
		}
		meter.add(n)
		r.chunk++
	}

	meter.finish()
	return nil
}

// sealRecord encrypts plaintext under counter and writes frame(ct)|frame(tag).
func (t *Transformer) sealRecord(r *run, c *ChunkCipher, bufs *recordBuffers, dst io.Writer, plaintext []byte, counter uint32) error {
	ct, tag, err := c.EncryptChunk(bufs.sealed[:0], plaintext, counter)
	if err != nil {
		return err
	}

	framed := Frame(bufs.framed[:0], ct)
	framed = Frame(framed, tag)

	if _, err := dst.Write(framed); err != nil {
		return r.ioError("write record", err)
	}
	return nil
}

// readHeader reads, authenticates and decodes the header record.
func (t *Transformer) readHeader(r *run, c *ChunkCipher, src io.Reader, meter *progressMeter) (Header, error) {
	r.enter(crypto.PhaseHeader)

	rec := make([]byte, FramedHeaderSize)
	if _, err := io.ReadFull(src, rec); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return Header{}, r.invalid()
		}
		return Header{}, r.ioError("read header", err)
	}

	sealed, err := unframeRecord(make([]byte, 0, HeaderSize+TagSize), rec)
	if err != nil || len(sealed) != HeaderSize+TagSize {
		return Header{}, r.invalid()
	}

	plain, err := c.openSealed(sealed, t.startCounter)
	if err != nil {
		return Header{}, r.invalid()
	}

	hdr, err := DecodeHeader(plain)
	if err != nil {
		return Header{}, r.invalid()
	}
	if hdr.ChunkSize > t.limit {
		return Header{}, crypto.ConfigError(crypto.ErrChunkSize, "container chunk size %d exceeds the %s limit of %d", hdr.ChunkSize, ChunkSizeLimitEnv, t.limit)
	}

	meter.add(FramedHeaderSize)
	return hdr, nil
}

// restoreBody authenticates body records and writes their plaintext to dst.
// The final record is the one the stream ends in or directly after.
func (t *Transformer) restoreBody(ctx context.Context, r *run, c *ChunkCipher, hdr Header, src *bufio.Reader, dst io.Writer, meter *progressMeter) error {
	bufs := t.getBuffers(hdr.ChunkSize)
	defer t.putBuffers(bufs)

	counter := t.startCounter

	r.enter(crypto.PhaseBody)
	for {
		if ctx.Err() != nil {
			return crypto.Canceled(ctx)
		}

		n, err := io.ReadFull(src, bufs.framed)
		final := false
		switch {
		case errors.Is(err, io.EOF):
			// the remainder record is always present
			return r.invalid()
		case errors.Is(err, io.ErrUnexpectedEOF):
			final = true
		case err != nil:
			return r.ioError("read record", err)
		default:
			if _, perr := src.Peek(1); errors.Is(perr, io.EOF) {
				final = true
			} else if perr != nil {
				return r.ioError("read record", perr)
			}
		}

		if final {
			r.enter(crypto.PhaseRemainder)
		}
		if counter, err = nextCounter(counter); err != nil {
			return r.invalid()
		}

		sealed, err := unframeRecord(bufs.sealed[:0], bufs.framed[:n])
		if err != nil {
			return r.invalid()
		}
		plainLen := len(sealed) - TagSize
		if final && (plainLen < 0 || plainLen >= hdr.ChunkSize) {
			return r.invalid()
		}
		if !final && plainLen != hdr.ChunkSize {
			return r.invalid()
		}

		plain, err := c.openSealed(sealed, counter)
		if err != nil {
			return r.invalid()
		}

		if _, err := dst.Write(plain); err != nil {
			return r.ioError("write plaintext", err)
		}
		meter.add(n)

		if final {
			break
		}
		r.chunk++
	}

	meter.finish()
	return nil
}

// unframeRecord decodes frame(ct)|frame(tag) into ct|tag appended to dst.
func unframeRecord(dst, rec []byte) ([]byte, error) {
	if len(rec) < FramedTagSize {
		return nil, fmt.Errorf("%w: record is %d bytes", ErrFraming, len(rec))
	}

	split := len(rec) - FramedTagSize
	out, err := Unframe(dst, rec[:split])
	if err != nil {
		return nil, err
	}

	ctLen := len(out) - len(dst)
	out, err = Unframe(out, rec[split:])
	if err != nil {
		return nil, err
	}
	if len(out)-len(dst)-ctLen != TagSize {
		return nil, fmt.Errorf("%w: tag frame decodes to %d bytes", ErrFraming, len(out)-len(dst)-ctLen)
	}

	return out, nil
}

func nextCounter(c uint32) (uint32, error) {
	if c == math.MaxUint32 {
		return 0, crypto.ErrCounterExhausted
	}
	return c + 1, nil
}

func firstHint(sizeHint []int64) int64 {
	if len(sizeHint) > 0 && sizeHint[0] > 0 {
		return sizeHint[0]
	}
	return 0
}

// run tracks the phase of one transform or restore for errors and logs.
type run struct {
	op     string
	path   string
	phase  crypto.Phase
	chunk  int
	logger *slog.Logger
}

func (t *Transformer) newRun(op, path string) *run {
	r := &run{
		op:     op,
		path:   path,
		phase:  crypto.PhaseOpening,
		chunk:  -1,
		logger: t.logger,
	}
	r.logger.Debug("phase", slog.String("op", op), slog.String("path", path), slog.String("phase", r.phase.String()))
	return r
}

func (r *run) enter(p crypto.Phase) {
	r.phase = p
	if p == crypto.PhaseBody && r.chunk < 0 {
		r.chunk = 0
	}
	r.logger.Debug("phase", slog.String("op", r.op), slog.String("path", r.path), slog.String("phase", p.String()))
}

func (r *run) ioError(context string, err error) error {
	return crypto.NewOpError(r.op, r.path, r.phase, r.chunk, crypto.WrapError(context, err))
}

// invalid returns the unified container error. It carries neither phase nor
// cause so wrong keys and corrupted records read the same.
func (r *run) invalid() error {
	return fmt.Errorf("%s %s: %w", r.op, r.path, crypto.ErrInvalidContainer)
}

func (r *run) staging(tmp string) {
	r.logger.Debug("staging output", slog.String("op", r.op), slog.String("path", r.path), slog.String("temp", tmp))
}

// finish moves r into Closed or Failed. A run that already ended stays put.
func (r *run) finish(errp *error) {
	if r.phase.Terminal() {
		return
	}
	if *errp != nil {
		r.logger.Debug("phase",
			slog.String("op", r.op),
			slog.String("path", r.path),
			slog.String("phase", crypto.PhaseFailed.String()),
			slog.Any("err", *errp))
		r.phase = crypto.PhaseFailed
		return
	}
	r.enter(crypto.PhaseClosed)
}
