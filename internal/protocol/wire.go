// Package protocol defines the single-byte wire vocabulary shared by both
// peers. There is no framing: every message on the link is exactly one byte
// and its meaning depends on the session phase.
//
//	phase       byte meaning      range
//	handshake   random token      1..127
//	barrier     sync code         0
//	lockstep    input sample      Input bitfield
package protocol

import "strings"

// SyncCode is the barrier byte. It is disjoint from the token range so a
// late token can never be mistaken for it. The reverse is not guarded: a
// peer still waiting for a token reads a SyncCode as the lowest token.
const SyncCode byte = 0

// Token range. Zero is reserved for SyncCode and for "no token".
const (
	TokenMin byte = 1
	TokenMax byte = 0x7F
)

// ValidToken reports whether b may be used as a handshake token.
func ValidToken(b byte) bool {
	return b >= TokenMin && b <= TokenMax
}

// Input is the per-tick input sample exchanged during lockstep.
type Input uint8

const (
	InputUp Input = 1 << iota
	InputDown
	InputLeft
	InputRight
	InputA
	InputB
)

var inputNames = []struct {
	bit  Input
	name string
}{
	{InputUp, "up"},
	{InputDown, "down"},
	{InputLeft, "left"},
	{InputRight, "right"},
	{InputA, "a"},
	{InputB, "b"},
}

// Has reports whether every bit of mask is set.
func (i Input) Has(mask Input) bool {
	return i&mask == mask
}

// String lists the pressed buttons, e.g. "up+a". An empty sample is "-".
func (i Input) String() string {
	var parts []string
	for _, n := range inputNames {
		if i.Has(n.bit) {
			parts = append(parts, n.name)
		}
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, "+")
}
