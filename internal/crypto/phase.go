/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

package crypto

// Phase is a state of a transform or restore run.
//
//	Opening -> Header -> Body -> Remainder -> Closed
//
// Failed is reachable from every phase. Closed and Failed are terminal.
type Phase uint8

const (
	PhaseOpening Phase = iota
	PhaseHeader
	PhaseBody
	PhaseRemainder
	PhaseClosed
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseOpening:
		return "opening"
	case PhaseHeader:
		return "header"
	case PhaseBody:
		return "body"
	case PhaseRemainder:
		return "remainder"
	case PhaseClosed:
		return "closed"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions leave p.
func (p Phase) Terminal() bool {
	return p == PhaseClosed || p == PhaseFailed
}
