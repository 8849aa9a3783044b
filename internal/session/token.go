package session

import (
	"crypto/rand"

	"github.com/1ureka/duel/internal/protocol"
)

// Token is the random byte each peer announces while establishing the
// network. Comparing the two tokens elects the primary peer.
type Token byte

// TokenSource supplies handshake tokens.
type TokenSource interface {
	Next() Token
}

// RandomTokens draws tokens in [1,127] from crypto/rand.
type RandomTokens struct{}

// Next implements TokenSource.
func (RandomTokens) Next() Token {
	var b [1]byte
	if _, err := rand.Read(b[:]); err != nil {
		// crypto/rand does not fail on supported platforms
		panic(err)
	}
	return Token((b[0] & protocol.TokenMax) | protocol.TokenMin)
}

// FixedTokens replays a scripted sequence and then keeps returning its last
// value. Values are not range-checked, which lets tests exercise the byte
// ordering directly.
type FixedTokens struct {
	seq []Token
	pos int
}

// NewFixedTokens returns a source that yields seq in order.
func NewFixedTokens(seq ...Token) *FixedTokens {
	if len(seq) == 0 {
		seq = []Token{Token(protocol.TokenMin)}
	}
	return &FixedTokens{seq: seq}
}

// Next implements TokenSource.
func (f *FixedTokens) Next() Token {
	t := f.seq[min(f.pos, len(f.seq)-1)]
	f.pos++
	return t
}

// Drawn returns how many tokens have been taken.
func (f *FixedTokens) Drawn() int {
	return f.pos
}

// ResolveRole compares the local token with the remote one. Both peers run
// the same comparison on the same pair, so they always end up with opposite
// roles. ok is false on a collision.
func ResolveRole(local, remote Token) (role Role, ok bool) {
	switch {
	case local == remote:
		return 0, false
	case local < remote:
		return Primary, true
	default:
		return Secondary, true
	}
}
