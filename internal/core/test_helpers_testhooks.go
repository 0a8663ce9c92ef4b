//go:build testhooks

/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

package core

// SetStartCounter sets the counter used for the header record; body records
// follow from it. Test-only helper compiled with the 'testhooks' build tag.
func SetStartCounter(t *Transformer, v uint32) {
	if t == nil {
		return
	}
	t.startCounter = v
}
