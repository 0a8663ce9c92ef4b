/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

package crypto

import (
	"sync"

	"github.com/gitrgoliveira/go-filetransformer/secure"
)

// SecureBuffer provides memory-safe storage for sensitive key material.
type SecureBuffer struct {
	buf    []byte
	mu     sync.Mutex
	zeroed bool
	unlock func()
}

// NewSecureBufferFromBytes copies b into a new SecureBuffer.
// Locking the copy in memory is best effort.
func NewSecureBufferFromBytes(b []byte) *SecureBuffer {
	buf := make([]byte, len(b))
	copy(buf, b)

	unlock := func() {}
	if err := secure.LockMemory(buf); err == nil {
		unlock = func() {
			_ = secure.UnlockMemory(buf)
		}
	}

	return &SecureBuffer{
		buf:    buf,
		unlock: unlock,
	}
}

// Data returns the buffer contents.
func (s *SecureBuffer) Data() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf
}

// Destroyed reports whether Destroy has run.
func (s *SecureBuffer) Destroyed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.zeroed
}

// Destroy zeroes the buffer and unlocks its memory. Safe to call repeatedly.
func (s *SecureBuffer) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.zeroed {
		return
	}
	secure.Zero(s.buf)
	s.zeroed = true
	if s.unlock != nil {
		s.unlock()
	}
}
