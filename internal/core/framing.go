/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

// framing.go: Printable framing of encrypted records
package core

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
)

// ErrFraming reports malformed framed text. The restore path folds it into
// ErrInvalidContainer before it reaches a caller.
var ErrFraming = errors.New("malformed framed record")

// Standard alphabet with canonical padding bits. The decoder still skips CR
// and LF in strict mode, so Unframe rejects them up front.
var framing = base64.StdEncoding.Strict()

// FramedLen returns the framed length of n raw bytes.
func FramedLen(n int) int {
	return framing.EncodedLen(n)
}

// Frame appends the printable form of src to dst.
func Frame(dst, src []byte) []byte {
	return framing.AppendEncode(dst, src)
}

// Unframe appends the raw bytes encoded by src to dst.
func Unframe(dst, src []byte) ([]byte, error) {
	if len(src)%4 != 0 {
		return dst, fmt.Errorf("%w: length %d is not a multiple of 4", ErrFraming, len(src))
	}
	if i := bytes.IndexAny(src, "\r\n"); i >= 0 {
		return dst, fmt.Errorf("%w: line break at offset %d", ErrFraming, i)
	}

	out, err := framing.AppendDecode(dst, src)
	if err != nil {
		return dst, fmt.Errorf("%w: %w", ErrFraming, err)
	}
	return out, nil
}
