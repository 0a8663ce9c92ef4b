//go:build !(linux || darwin || freebsd || netbsd || openbsd || dragonfly)

/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

package filetransformer_test

import "errors"

// mkfifo is only available on the platforms above
func mkfifo(path string) error {
	return errors.New("named pipes not supported on this platform")
}
