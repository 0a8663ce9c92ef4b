/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

// format.go: Container layout constants
package core

import "math"

// Container layout:
//
//	frame(encrypt(signature | filename field | chunk size LE32, counter 0)) | frame(tag)
//	frame(encrypt(chunk, counter 1)) | frame(tag)
//	...
//	frame(encrypt(remainder, counter N)) | frame(tag)
//
// The remainder record is always present, even when it is empty.
const (
	// SignatureSize is the length of the magic prefix of the decrypted header.
	SignatureSize = 3
	// FileNameFieldSize is the fixed width of the zero-padded UTF-8 name field.
	FileNameFieldSize = 260
	// ChunkSizeFieldSize is the width of the little-endian chunk size field.
	ChunkSizeFieldSize = 4
	// HeaderSize is the plaintext header length.
	HeaderSize = SignatureSize + FileNameFieldSize + ChunkSizeFieldSize

	// TagSize is the truncated GCM tag length carried by every record.
	TagSize = 12
	// NonceSize is the GCM nonce length.
	NonceSize = 12

	// DefaultChunkSize is 1.5 MiB, a multiple of 3 so full chunks frame without padding.
	DefaultChunkSize = 1572864
	// MinChunkSize is the smallest chunk that satisfies the framing alignment.
	MinChunkSize = 3
	// MaxChunkSize is the largest value the chunk size field can carry.
	MaxChunkSize = math.MaxInt32 - math.MaxInt32%3
)

// Signature is the magic prefix of every decrypted header.
var Signature = [SignatureSize]byte{0x70, 0x84, 0x00}

var (
	// FramedTagSize is the framed length of a tag.
	FramedTagSize = FramedLen(TagSize)
	// FramedHeaderSize is the framed length of the header record, tag included.
	FramedHeaderSize = FramedLen(HeaderSize) + FramedTagSize
)

// ValidChunkSize reports whether size splits into whole 6-bit framing groups
// and fits the header field.
func ValidChunkSize(size int) bool {
	return size >= MinChunkSize && size <= MaxChunkSize && (int64(size)*8)%6 == 0
}

// FramedRecordSize is the framed length of a full body record for chunkSize.
func FramedRecordSize(chunkSize int) int {
	return FramedLen(chunkSize) + FramedTagSize
}
