/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

// Package secure holds helpers for handling key material in memory.
package secure

import (
	"crypto/subtle"
)

// Zero overwrites b with zeros.
func Zero(b []byte) {
	if len(b) == 0 {
		return
	}
	clear(b)
	// keep the compiler from eliding the clear
	_ = subtle.ConstantTimeCompare(b, make([]byte, len(b)))
}

// SecureCompare reports whether a and b are equal in constant time.
func SecureCompare(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}
