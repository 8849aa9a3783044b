// Package session implements the two-peer lockstep protocol: a
// coordinator-free handshake that elects a primary peer, a start barrier, and
// a per-tick exchange of one input byte per peer.
//
// Everything here is driven by non-blocking polls from a single frame loop;
// nothing blocks on the link. A Session owns all protocol state, so several
// sessions can run side by side (the tests run both peers in one process).
package session

import (
	"github.com/1ureka/duel/internal/util"
)

// Port is the non-blocking byte channel a session polls.
// transport.Channel implements it.
type Port interface {
	IsAvailable() bool
	Peek() byte
	Read() byte
	IsAvailableForWrite() bool
	Write(b byte)
}

// InputSource samples the local input device once per tick.
type InputSource interface {
	Sample() byte
}

// InputFunc adapts a function to InputSource.
type InputFunc func() byte

// Sample implements InputSource.
func (f InputFunc) Sample() byte { return f() }

// Actor is one simulated player.
type Actor interface {
	// Tick applies one input sample.
	Tick(input byte)
	Dead() bool
	AtExit() bool
}

// World is the deterministic simulation both peers advance in lockstep.
type World interface {
	// Update advances everything that is not a player (projectiles,
	// particles, enemies) by one tick.
	Update()
	// Actor returns the actor controlled by the peer holding role r.
	Actor(r Role) Actor
}

// Game is the world plus the session-level hooks the protocol triggers.
type Game interface {
	World
	// Reset restores per-session state (players, stats) after the barrier.
	Reset()
	// StartLevel builds floor and places the actors.
	StartLevel(floor int)
}

// Logf receives diagnostic messages. The protocol is silent by default.
type Logf func(format string, args ...interface{})

func nopLog(string, ...interface{}) {}

// Defaults for the session options.
const (
	DefaultMaxFloor  = 10
	DefaultFadeTicks = 60
)

// Option configures a Session.
type Option func(*Session)

// WithTokenSource replaces the crypto/rand token source.
func WithTokenSource(ts TokenSource) Option {
	return func(s *Session) { s.tokens = ts }
}

// WithPingInterval sets how many polls pass between token announcements.
func WithPingInterval(polls int) Option {
	return func(s *Session) { s.pingInterval = polls }
}

// WithMaxFloor sets the floor after which finishing a level ends the session.
func WithMaxFloor(floor int) Option {
	return func(s *Session) { s.maxFloor = floor }
}

// WithFadeTicks sets how many lockstep ticks the fade-out lasts.
func WithFadeTicks(ticks int) Option {
	return func(s *Session) { s.fadeTicks = ticks }
}

// WithLogger routes protocol diagnostics to log.
func WithLogger(log Logf) Option {
	return func(s *Session) { s.log = log }
}

// Session is the explicit context of one two-peer game.
type Session struct {
	port  Port
	game  Game
	input InputSource

	tokens       TokenSource
	pingInterval int
	maxFloor     int
	fadeTicks    int
	log          Logf

	negotiator *Negotiator
	driver     Driver

	phase    Phase
	role     Role
	tick     uint32
	floor    int
	fadeLeft int
}

// New returns a session in the Menu phase. Call Start to begin connecting.
func New(port Port, game Game, input InputSource, opts ...Option) *Session {
	s := &Session{
		port:         port,
		game:         game,
		input:        input,
		tokens:       RandomTokens{},
		pingInterval: DefaultPingInterval,
		maxFloor:     DefaultMaxFloor,
		fadeTicks:    DefaultFadeTicks,
		log:          nopLog,
		phase:        Menu,
		floor:        1,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.maxFloor < 1 {
		s.maxFloor = DefaultMaxFloor
	}
	if s.fadeTicks < 1 {
		s.fadeTicks = DefaultFadeTicks
	}
	if s.log == nil {
		s.log = nopLog
	}
	return s
}

// Start begins establishing the network with a fresh token.
func (s *Session) Start() {
	s.negotiator = NewNegotiator(s.tokens, s.pingInterval, s.log)
	s.driver = Driver{}
	s.tick = 0
	s.floor = 1
	s.role = Primary
	s.switchPhase(EstablishingNetwork)
}

// Tick is polled once per frame. It returns false only when a lockstep round
// could not complete yet; the tick counter advances exactly when a round
// completes.
func (s *Session) Tick() bool {
	switch s.phase {
	case EstablishingNetwork, SendSyncMessage, RecvSyncMessage:
		s.connect()
		return true

	case EnteringLevel:
		s.game.StartLevel(s.floor)
		s.switchPhase(InGame)
		return true

	case InGame, FadeOut:
		outcome, ok := s.driver.AdvanceTick(s.port, s.input, s.game, s.role)
		if !ok {
			util.Stats.AddStall()
			return false
		}
		s.tick++
		util.Stats.AddTick()
		s.settle(outcome)
		return true

	default:
		return true
	}
}

// connect drives the negotiator and performs the barrier reset.
func (s *Session) connect() {
	if !s.negotiator.Poll(s.port) {
		s.switchPhase(s.negotiator.Phase())
		return
	}

	s.role = s.negotiator.Role()
	s.tick = 0
	s.floor = 1
	s.game.Reset()
	s.switchPhase(EnteringLevel)
}

// settle applies the end condition of a completed round.
func (s *Session) settle(outcome Outcome) {
	if s.phase == FadeOut {
		s.fadeLeft--
		if s.fadeLeft <= 0 {
			s.switchPhase(GameOver)
		}
		return
	}

	switch outcome {
	case OutcomeGameOver:
		s.gameOver()
	case OutcomeNextLevel:
		if s.floor >= s.maxFloor {
			s.gameOver()
			return
		}
		s.floor++
		s.switchPhase(EnteringLevel)
	}
}

func (s *Session) gameOver() {
	s.fadeLeft = s.fadeTicks
	s.switchPhase(FadeOut)
}

func (s *Session) switchPhase(p Phase) {
	if s.phase != p {
		s.log("phase %s -> %s (tick %d)", s.phase, p, s.tick)
		s.phase = p
	}
}

// Phase returns the current phase.
func (s *Session) Phase() Phase { return s.phase }

// Role returns the local role.
func (s *Session) Role() Role { return s.role }

// LocalPlayerID returns the local role as a player index.
func (s *Session) LocalPlayerID() uint8 { return uint8(s.role) }

// LocalActor returns the actor driven by this peer.
func (s *Session) LocalActor() Actor { return s.game.Actor(s.role) }

// RemoteActor returns the actor driven by the other peer.
func (s *Session) RemoteActor() Actor { return s.game.Actor(s.role.Other()) }

// TickCount returns the number of completed lockstep rounds since the barrier.
func (s *Session) TickCount() uint32 { return s.tick }

// Floor returns the current floor, starting at 1.
func (s *Session) Floor() int { return s.floor }

// Collisions returns how many token collisions the handshake resolved.
func (s *Session) Collisions() int {
	if s.negotiator == nil {
		return 0
	}
	return s.negotiator.Collisions()
}

// Token returns the current local handshake token, or 0 before Start.
func (s *Session) Token() Token {
	if s.negotiator == nil {
		return 0
	}
	return s.negotiator.Token()
}

// Connecting reports whether the handshake is still running.
func (s *Session) Connecting() bool { return s.phase.Connecting() }

// InMenu reports whether the session is outside of gameplay.
func (s *Session) InMenu() bool { return !s.phase.Lockstep() }

// Waiting reports whether the current lockstep round has sent its input and
// waits for the peer's.
func (s *Session) Waiting() bool { return s.driver.Waiting() }
