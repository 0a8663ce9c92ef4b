/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

// header.go: Fixed-layout plaintext header codec
package core

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

var (
	// ErrSignature reports a decrypted header that does not start with Signature.
	ErrSignature = errors.New("header signature mismatch")
	// ErrHeaderChunkSize reports a chunk size the header cannot carry.
	ErrHeaderChunkSize = errors.New("header chunk size out of range")
)

// Header is the decoded plaintext header of a container.
type Header struct {
	// FileName is the original base name, possibly truncated to
	// FileNameFieldSize bytes.
	FileName  string
	ChunkSize int
}

// EncodeHeader builds the plaintext header for name and chunkSize. Names
// longer than the field are cut at the last whole rune that fits.
func EncodeHeader(name string, chunkSize int) ([HeaderSize]byte, error) {
	var hdr [HeaderSize]byte

	if !ValidChunkSize(chunkSize) {
		return hdr, fmt.Errorf("%w: %d", ErrHeaderChunkSize, chunkSize)
	}

	copy(hdr[:SignatureSize], Signature[:])
	copy(hdr[SignatureSize:SignatureSize+FileNameFieldSize], truncateName(name, FileNameFieldSize))
	binary.LittleEndian.PutUint32(hdr[SignatureSize+FileNameFieldSize:], uint32(chunkSize)) // #nosec G115 -- bounded by MaxChunkSize

	return hdr, nil
}

// DecodeHeader parses a decrypted header.
func DecodeHeader(hdr []byte) (Header, error) {
	if len(hdr) != HeaderSize {
		return Header{}, fmt.Errorf("header is %d bytes, want %d", len(hdr), HeaderSize)
	}
	if !bytes.Equal(hdr[:SignatureSize], Signature[:]) {
		return Header{}, ErrSignature
	}

	field := hdr[SignatureSize : SignatureSize+FileNameFieldSize]
	name := strings.ToValidUTF8(string(bytes.TrimRight(field, "\x00")), "\uFFFD")

	size := binary.LittleEndian.Uint32(hdr[SignatureSize+FileNameFieldSize:])
	if size > MaxChunkSize || !ValidChunkSize(int(size)) {
		return Header{}, fmt.Errorf("%w: %d", ErrHeaderChunkSize, size)
	}

	return Header{FileName: name, ChunkSize: int(size)}, nil
}

func truncateName(name string, limit int) []byte {
	b := []byte(name)
	if len(b) <= limit {
		return b
	}

	cut := limit
	for cut > 0 && !utf8.RuneStart(b[cut]) {
		cut--
	}
	return b[:cut]
}
