/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

// key.go: Key derivation helpers
package core

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/pbkdf2"

	crypto "github.com/gitrgoliveira/go-filetransformer/internal/crypto"
)

const (
	// DefaultPBKDF2Iterations is the default iteration count for PBKDF2
	DefaultPBKDF2Iterations = 600000 // OWASP recommendation (2023)

	// MinPBKDF2Iterations is the minimum safe iteration count
	MinPBKDF2Iterations = 210000 // OWASP minimum

	// DefaultSaltSize is the default salt size in bytes
	DefaultSaltSize = 32

	// MinSaltSize is the shortest salt the KDF helpers accept
	MinSaltSize = 16

	// DefaultKeySize is the default derived key size (32 bytes for AES-256)
	DefaultKeySize = 32

	// Argon2id parameters, OWASP 2023 interactive profile.
	DefaultArgon2Time    = 3
	DefaultArgon2Memory  = 64 * 1024 // KiB
	DefaultArgon2Threads = 4
	MinArgon2Memory      = 19 * 1024 // KiB
)

// DeriveKeySHA256 turns a passphrase into a 32-byte AES-256 key with a single
// unsalted SHA-256. It exists for interoperability with containers keyed that
// way; prefer DeriveKeyArgon2 for new keys. The caller must zero the key.
func DeriveKeySHA256(passphrase []byte) ([]byte, error) {
	if len(passphrase) == 0 {
		return nil, crypto.ConfigError(crypto.ErrInvalidKey, "passphrase cannot be empty")
	}
	sum := sha256.Sum256(passphrase)
	return sum[:], nil
}

// DeriveKeyPBKDF2 derives a key from a password using PBKDF2-HMAC-SHA256.
// The caller must securely zero the key after use.
//
// Example:
//
//	salt, err := GenerateSalt(DefaultSaltSize)
//	if err != nil {
//	    return err
//	}
//	key, err := DeriveKeyPBKDF2([]byte("password"), salt, DefaultPBKDF2Iterations, DefaultKeySize)
//	if err != nil {
//	    return err
//	}
//	defer secure.Zero(key)
func DeriveKeyPBKDF2(password, salt []byte, iterations, keyLen int) ([]byte, error) {
	if err := checkKDFInput(password, salt); err != nil {
		return nil, err
	}
	if iterations < MinPBKDF2Iterations {
		return nil, crypto.ConfigError(crypto.ErrInvalidKey, "iterations must be at least %d, got %d", MinPBKDF2Iterations, iterations)
	}
	if err := checkKeyLen(keyLen); err != nil {
		return nil, err
	}

	return pbkdf2.Key(password, salt, iterations, keyLen, sha256.New), nil
}

// DeriveKeyArgon2 derives a key from a password using Argon2id.
//
// OWASP 2023 profiles:
//   - Interactive: memory=64MB, time=3, threads=4
//   - Background: memory=256MB, time=4, threads=4
//   - Minimum acceptable: memory=19MB, time=2, threads=1
func DeriveKeyArgon2(password, salt []byte, time, memory uint32, threads uint8, keyLen uint32) ([]byte, error) {
	if err := checkKDFInput(password, salt); err != nil {
		return nil, err
	}
	if time < 1 {
		return nil, crypto.ConfigError(crypto.ErrInvalidKey, "time cost must be at least 1, got %d", time)
	}
	if memory < MinArgon2Memory {
		return nil, crypto.ConfigError(crypto.ErrInvalidKey, "memory cost must be at least %d KiB, got %d", MinArgon2Memory, memory)
	}
	if threads < 1 {
		return nil, crypto.ConfigError(crypto.ErrInvalidKey, "threads must be at least 1, got %d", threads)
	}
	if err := checkKeyLen(int(keyLen)); err != nil {
		return nil, err
	}

	return argon2.IDKey(password, salt, time, memory, threads, keyLen), nil
}

// GenerateSalt generates a cryptographically secure random salt.
func GenerateSalt(size int) ([]byte, error) {
	if size < MinSaltSize {
		return nil, crypto.ConfigError(crypto.ErrInvalidKey, "salt size must be at least %d bytes, got %d", MinSaltSize, size)
	}

	salt := make([]byte, size)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	return salt, nil
}

// GenerateKey returns a random key of size bytes (16, 24 or 32).
func GenerateKey(size int) ([]byte, error) {
	switch size {
	case 16, 24, 32:
	default:
		return nil, crypto.ConfigError(crypto.ErrInvalidKey, "key must be 16, 24 or 32 bytes, got %d", size)
	}

	key := make([]byte, size)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	return key, nil
}

func checkKDFInput(password, salt []byte) error {
	if len(password) == 0 {
		return crypto.ConfigError(crypto.ErrInvalidKey, "password cannot be empty")
	}
	if len(salt) < MinSaltSize {
		return crypto.ConfigError(crypto.ErrInvalidKey, "salt must be at least %d bytes, got %d", MinSaltSize, len(salt))
	}
	return nil
}

func checkKeyLen(n int) error {
	if n <= 0 || n > 128 {
		return crypto.ConfigError(crypto.ErrInvalidKey, "keyLen must be between 1 and 128 bytes, got %d", n)
	}
	return nil
}
