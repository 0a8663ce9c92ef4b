/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

// Package testlog routes slog output into the test log.
package testlog

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
)

type options struct {
	writers []io.Writer
	level   slog.Leveler
	records *Records
}

type Option func(*options)

// WithLevel sets the minimum level passed through. Defaults to debug.
func WithLevel(level slog.Leveler) Option {
	return func(opt *options) {
		opt.level = level
	}
}

// WithWriters copies the text output to extra writers.
func WithWriters(writers ...io.Writer) Option {
	return func(opt *options) {
		opt.writers = writers
	}
}

// WithRecords keeps every handled record in rec for later assertions.
func WithRecords(rec *Records) Option {
	return func(opt *options) {
		opt.records = rec
	}
}

// New creates a slog text logger that writes to t.Log.
func New(t testing.TB, opts ...Option) *slog.Logger {
	t.Helper()

	opt := options{level: slog.LevelDebug}
	for _, fn := range opts {
		if fn != nil {
			fn(&opt)
		}
	}

	shared := &sink{t: t, buffer: new(bytes.Buffer), records: opt.records}
	w := io.MultiWriter(append([]io.Writer{shared.buffer}, opt.writers...)...)

	return slog.New(&slogHandler{
		delegate: slog.NewTextHandler(w, &slog.HandlerOptions{Level: opt.level}),
		sink:     shared,
	})
}

// Records collects slog records as attribute maps.
type Records struct {
	mu      sync.Mutex
	entries []map[string]string
}

// Values returns the value of key from every record that has it, in order.
func (r *Records) Values(key string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []string
	for _, e := range r.entries {
		if v, ok := e[key]; ok {
			out = append(out, v)
		}
	}
	return out
}

func (r *Records) add(rec slog.Record, preset []slog.Attr) {
	entry := map[string]string{"msg": rec.Message}
	for _, a := range preset {
		entry[a.Key] = a.Value.String()
	}
	rec.Attrs(func(a slog.Attr) bool {
		entry[a.Key] = a.Value.String()
		return true
	})

	r.mu.Lock()
	r.entries = append(r.entries, entry)
	r.mu.Unlock()
}

// sink is shared by a handler and everything derived from it.
type sink struct {
	mu      sync.Mutex
	t       testing.TB
	buffer  *bytes.Buffer
	records *Records
}

type slogHandler struct {
	delegate slog.Handler
	sink     *sink
	attrs    []slog.Attr
}

func (h *slogHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.delegate.Enabled(ctx, level)
}

func (h *slogHandler) Handle(ctx context.Context, r slog.Record) error {
	h.sink.mu.Lock()
	defer h.sink.mu.Unlock()

	if err := h.delegate.Handle(ctx, r); err != nil {
		return err
	}
	if h.sink.records != nil {
		h.sink.records.add(r, h.attrs)
	}

	content := h.sink.buffer.String()
	h.sink.buffer.Reset()

	h.sink.t.Helper()
	h.sink.t.Log(strings.TrimSuffix(content, "\n"))

	return nil
}

func (h *slogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &slogHandler{
		delegate: h.delegate.WithAttrs(attrs),
		sink:     h.sink,
		attrs:    append(append([]slog.Attr(nil), h.attrs...), attrs...),
	}
}

func (h *slogHandler) WithGroup(name string) slog.Handler {
	return &slogHandler{
		delegate: h.delegate.WithGroup(name),
		sink:     h.sink,
		attrs:    h.attrs,
	}
}
