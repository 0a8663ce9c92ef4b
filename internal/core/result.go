/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

package core

import (
	"encoding/hex"
	"io"
	"math"
)

// Result describes a file produced by TransformFile or RestoreFile.
type Result struct {
	// Path of the produced file.
	Path string
	// Name is the original file name: embedded on transform, recovered on restore.
	Name string
	// Size is the number of bytes written to Path.
	Size int64
	// SourceSize is the number of bytes read from the input file.
	SourceSize int64
	// Checksum is the SHA-256 of the produced file when WithChecksum is enabled.
	Checksum []byte
}

// ChecksumHex returns Checksum hex-encoded, or "" when none was computed.
func (r *Result) ChecksumHex() string {
	if len(r.Checksum) == 0 {
		return ""
	}
	return hex.EncodeToString(r.Checksum)
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

type progressMeter struct {
	fn    ProgressFunc
	total int64
	done  int64
	last  int
}

func newProgressMeter(fn ProgressFunc, total int64) *progressMeter {
	return &progressMeter{fn: fn, total: total, last: -1}
}

func (p *progressMeter) add(n int) {
	p.done += int64(n)
	if p.fn == nil || p.total <= 0 {
		return
	}

	pct := int(math.Round(float64(p.done) / float64(p.total) * 100))
	pct = min(max(pct, 0), 100)
	p.report(pct)
}

func (p *progressMeter) finish() {
	if p.fn != nil {
		p.report(100)
	}
}

func (p *progressMeter) report(pct int) {
	if pct == p.last {
		return
	}
	p.last = pct
	p.fn(pct)
}
