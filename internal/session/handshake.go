package session

import (
	"github.com/1ureka/duel/internal/protocol"
	"github.com/1ureka/duel/internal/util"
)

// DefaultPingInterval is the number of writable polls between two token
// announcements while establishing the network.
const DefaultPingInterval = 30

// handshakeState is everything the handshake carries between polls.
type handshakeState struct {
	phase     Phase
	token     Token
	pingTimer int
}

// view is what one poll observed on the port.
type view struct {
	writable  bool
	remote    byte
	hasRemote bool
}

// effects is what one poll asks the I/O glue to do, in this order:
// send, drain duplicates of the remote byte, regenerate the token.
type effects struct {
	send       []byte
	dedupe     bool
	regenerate bool
	assigned   bool
	role       Role
	barrier    bool
	stray      bool
}

// step is the handshake transition function. It performs no I/O, so every
// transition can be checked without a port.
//
//	EstablishingNetwork --distinct tokens--> SendSyncMessage
//	SendSyncMessage     --writable-------->  RecvSyncMessage
//	RecvSyncMessage     --sync byte------->  EnteringLevel
func step(st handshakeState, v view, interval int) (handshakeState, effects) {
	var eff effects

	switch st.phase {
	case EstablishingNetwork:
		if v.writable {
			if st.pingTimer == 0 {
				eff.send = append(eff.send, byte(st.token))
				st.pingTimer = interval - 1
			} else {
				st.pingTimer--
			}
		}

		if !v.hasRemote {
			return st, eff
		}

		eff.dedupe = true
		role, ok := ResolveRole(st.token, Token(v.remote))
		if !ok {
			eff.regenerate = true
			return st, eff
		}
		eff.assigned, eff.role = true, role
		st.phase = SendSyncMessage

	case SendSyncMessage:
		if v.writable {
			eff.send = append(eff.send, protocol.SyncCode)
			st.phase = RecvSyncMessage
		}

	case RecvSyncMessage:
		if !v.hasRemote {
			return st, eff
		}
		if v.remote == protocol.SyncCode {
			eff.barrier = true
			st.phase = EnteringLevel
		} else {
			eff.stray = true
		}
	}

	return st, eff
}

// Negotiator runs the coordinator-free role election and the start barrier
// on top of a Port.
type Negotiator struct {
	state    handshakeState
	interval int
	tokens   TokenSource
	log      Logf

	role       Role
	collisions int
}

// NewNegotiator returns a negotiator in EstablishingNetwork holding a fresh
// token from tokens.
func NewNegotiator(tokens TokenSource, interval int, log Logf) *Negotiator {
	if interval <= 0 {
		interval = DefaultPingInterval
	}
	if log == nil {
		log = nopLog
	}
	n := &Negotiator{tokens: tokens, interval: interval, log: log}
	n.Reset()
	return n
}

// Reset restarts the handshake with a fresh token.
func (n *Negotiator) Reset() {
	n.state = handshakeState{phase: EstablishingNetwork, token: n.tokens.Next()}
	n.role = Primary
	n.collisions = 0
}

// Phase returns the handshake phase. It is EnteringLevel once the barrier
// has been passed.
func (n *Negotiator) Phase() Phase { return n.state.phase }

// Token returns the current local token.
func (n *Negotiator) Token() Token { return n.state.token }

// Role returns the assigned role. It is meaningful once Phase has left
// EstablishingNetwork.
func (n *Negotiator) Role() Role { return n.role }

// Collisions returns how often the local token was regenerated.
func (n *Negotiator) Collisions() int { return n.collisions }

// Poll runs one non-blocking handshake round and reports whether the start
// barrier was satisfied during it.
func (n *Negotiator) Poll(p Port) bool {
	for {
		from := n.state.phase
		if !from.Connecting() {
			return false
		}

		v := view{writable: p.IsAvailableForWrite()}
		if from != SendSyncMessage && p.IsAvailable() {
			v.remote, v.hasRemote = p.Read(), true
		}

		next, eff := step(n.state, v, n.interval)
		n.state = next
		n.apply(p, v, eff)

		if eff.barrier {
			return true
		}
		// the sync byte went out; look for the peer's in the same poll
		if from != SendSyncMessage || next.phase != RecvSyncMessage {
			return false
		}
	}
}

func (n *Negotiator) apply(p Port, v view, eff effects) {
	for _, b := range eff.send {
		p.Write(b)
	}

	if eff.dedupe {
		for p.IsAvailable() && p.Peek() == v.remote {
			p.Read()
		}
	}

	switch {
	case eff.regenerate:
		old := n.state.token
		n.state.token = n.tokens.Next()
		n.collisions++
		util.Stats.AddCollision()
		n.log("token collision on 0x%02x, retrying with 0x%02x", byte(old), byte(n.state.token))
	case eff.assigned:
		n.role = eff.role
		n.log("tokens 0x%02x/0x%02x, local peer is %s", byte(n.state.token), v.remote, eff.role)
	case eff.barrier:
		n.log("sync barrier passed")
	case eff.stray:
		n.log("ignoring 0x%02x while waiting for sync", v.remote)
	}
}
