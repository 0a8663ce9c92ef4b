/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

// cipher.go: Per-record authenticated encryption
package core

import (
	"crypto/aes"
	"crypto/cipher"
	"errors"
	"fmt"

	crypto "github.com/gitrgoliveira/go-filetransformer/internal/crypto"
)

// ErrAuthentication reports a record whose tag did not verify. The restore path
// folds it into ErrInvalidContainer before it reaches a caller.
var ErrAuthentication = errors.New("record authentication failed")

// ChunkCipher seals and opens individual records with AES-GCM (12-byte tag,
// no associated data) under nonces taken from a NonceDeriver.
type ChunkCipher struct {
	aead   cipher.AEAD
	nonces NonceDeriver
}

// NewChunkCipher creates a ChunkCipher for an AES-128/192/256 key.
func NewChunkCipher(key []byte, nonces NonceDeriver) (*ChunkCipher, error) {
	if len(key) == 0 {
		return nil, crypto.ConfigError(crypto.ErrInvalidKey, "key is empty")
	}
	if nonces == nil {
		nonces = DigestNonceDeriver{}
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, crypto.ConfigError(crypto.ErrInvalidKey, "%v", err)
	}

	aead, err := cipher.NewGCMWithTagSize(block, TagSize)
	if err != nil {
		return nil, crypto.WrapError("create GCM", err)
	}

	return &ChunkCipher{aead: aead, nonces: nonces}, nil
}

// Overhead is the number of tag bytes added to each record.
func (c *ChunkCipher) Overhead() int {
	return c.aead.Overhead()
}

// EncryptChunk seals plaintext under counter. The returned slices alias a
// single buffer that starts at dst[len(dst):].
func (c *ChunkCipher) EncryptChunk(dst, plaintext []byte, counter uint32) (ciphertext, tag []byte, err error) {
	nonce, err := c.nonces.DeriveNonce(counter, NonceSize)
	if err != nil {
		return nil, nil, err
	}

	sealed := c.aead.Seal(dst, nonce, plaintext, nil) // #nosec G407 -- nonce is derived per record counter
	sealed = sealed[len(dst):]
	split := len(sealed) - TagSize

	return sealed[:split], sealed[split:], nil
}

// DecryptChunk opens ciphertext and tag sealed under counter and appends the
// plaintext to dst. A tag mismatch returns ErrAuthentication and leaves no
// plaintext behind.
func (c *ChunkCipher) DecryptChunk(dst, ciphertext, tag []byte, counter uint32) ([]byte, error) {
	if len(tag) != TagSize {
		return nil, fmt.Errorf("%w: tag is %d bytes", ErrAuthentication, len(tag))
	}

	nonce, err := c.nonces.DeriveNonce(counter, NonceSize)
	if err != nil {
		return nil, err
	}

	sealed := make([]byte, 0, len(ciphertext)+TagSize)
	sealed = append(append(sealed, ciphertext...), tag...)

	return c.open(dst, nonce, sealed)
}

// openSealed opens ciphertext||tag in place, reusing the storage of sealed.
func (c *ChunkCipher) openSealed(sealed []byte, counter uint32) ([]byte, error) {
	if len(sealed) < TagSize {
		return nil, fmt.Errorf("%w: record is %d bytes", ErrAuthentication, len(sealed))
	}

	nonce, err := c.nonces.DeriveNonce(counter, NonceSize)
	if err != nil {
		return nil, err
	}

	return c.open(sealed[:0], nonce, sealed)
}

func (c *ChunkCipher) open(dst, nonce, sealed []byte) ([]byte, error) {
	plaintext, err := c.aead.Open(dst, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAuthentication, err)
	}
	return plaintext, nil
}
