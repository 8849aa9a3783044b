package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1ureka/duel/internal/link"
	"github.com/1ureka/duel/internal/transport"
)

func TestNewSessionIsInMenu(t *testing.T) {
	p := &fakePort{writable: true}
	s := New(p, newRecWorld(), &seqInput{})

	assert.Equal(t, Menu, s.Phase())
	assert.True(t, s.InMenu())
	assert.False(t, s.Connecting())
	assert.True(t, s.Tick(), "menu ticks always succeed")
	assert.Empty(t, p.tx)
	assert.Zero(t, s.Collisions())
	assert.Zero(t, s.Token())
}

func TestSessionStartConnects(t *testing.T) {
	p := &fakePort{writable: true}
	s := New(p, newRecWorld(), &seqInput{}, WithTokenSource(NewFixedTokens(42)))

	s.Start()
	assert.Equal(t, EstablishingNetwork, s.Phase())
	assert.True(t, s.Connecting())
	assert.Equal(t, Token(42), s.Token())

	assert.True(t, s.Tick())
	assert.Equal(t, []byte{42}, p.tx)
}

// pollPair ticks a then b until done returns true.
func pollPair(t *testing.T, a, b *Session, maxRounds int, done func() bool) {
	t.Helper()
	for range maxRounds {
		a.Tick()
		b.Tick()
		if done() {
			return
		}
	}
	t.Fatalf("sessions stuck in %s/%s", a.Phase(), b.Phase())
}

// TestSessionFlow runs two peers through two floors and the fade-out. The
// primary actor reaches the exit after three ticks on every floor.
func TestSessionFlow(t *testing.T) {
	pa, pb := newWire()
	wa, wb := newRecWorld(), newRecWorld()
	for _, w := range []*recWorld{wa, wb} {
		w.actors[Primary].exitAfter = 3
	}
	ia, ib := &seqInput{next: 0x10}, &seqInput{next: 0x80}

	var phasesA []string
	a := New(pa, wa, ia,
		WithTokenSource(NewFixedTokens(10)),
		WithPingInterval(1),
		WithMaxFloor(2),
		WithFadeTicks(4),
		WithLogger(func(format string, args ...interface{}) { phasesA = append(phasesA, format) }),
	)
	b := New(pb, wb, ib,
		WithTokenSource(NewFixedTokens(20)),
		WithPingInterval(1),
		WithMaxFloor(2),
		WithFadeTicks(4),
	)
	a.Start()
	b.Start()

	pollPair(t, a, b, 10, func() bool { return !a.Connecting() && !b.Connecting() })
	assert.Equal(t, Primary, a.Role())
	assert.Equal(t, Secondary, b.Role())
	assert.Equal(t, uint8(1), b.LocalPlayerID())
	assert.Equal(t, 1, wa.resets)
	assert.Equal(t, 1, wb.resets)

	pollPair(t, a, b, 100, func() bool { return a.Phase() == GameOver && b.Phase() == GameOver })

	for _, s := range []*Session{a, b} {
		assert.Equal(t, uint32(10), s.TickCount(), "3+3 ticks in game and 4 fading")
		assert.Equal(t, 2, s.Floor())
		assert.False(t, s.Connecting())
		assert.True(t, s.InMenu())
	}
	assert.Equal(t, []int{1, 2}, wa.levels)
	assert.Equal(t, wa.levels, wb.levels)
	assert.Equal(t, 10, wa.updates)
	assert.Equal(t, 10, wb.updates)

	assert.Equal(t, wa.actors[Primary].inputs, wb.actors[Primary].inputs)
	assert.Equal(t, wa.actors[Secondary].inputs, wb.actors[Secondary].inputs)
	assert.Equal(t, ia.sampled, wa.actors[Primary].inputs)
	assert.Len(t, wb.actors[Secondary].inputs, 4, "secondary is skipped once the primary stands on the exit")

	assert.Same(t, wa.actors[Primary], a.LocalActor())
	assert.Same(t, wb.actors[Primary], b.RemoteActor())
	assert.NotEmpty(t, phasesA)

	// a finished session stays put
	assert.True(t, a.Tick())
	assert.Equal(t, uint32(10), a.TickCount())
}

func TestSessionGameOverFadesOut(t *testing.T) {
	pa, pb := newWire()
	wa, wb := newRecWorld(), newRecWorld()
	for _, w := range []*recWorld{wa, wb} {
		w.actors[Secondary].dieAfter = 5
	}
	a := New(pa, wa, &seqInput{}, WithTokenSource(NewFixedTokens(1)), WithFadeTicks(2))
	b := New(pb, wb, &seqInput{}, WithTokenSource(NewFixedTokens(2)), WithFadeTicks(2))
	a.Start()
	b.Start()

	pollPair(t, a, b, 100, func() bool { return a.Phase() == FadeOut && b.Phase() == FadeOut })
	assert.Equal(t, uint32(5), a.TickCount())
	assert.Equal(t, 1, a.Floor())

	pollPair(t, a, b, 100, func() bool { return a.Phase() == GameOver && b.Phase() == GameOver })
	assert.Equal(t, uint32(7), a.TickCount())
	assert.Equal(t, uint32(7), b.TickCount())
}

func TestSessionStallDoesNotCount(t *testing.T) {
	pa, pb := newWire()
	a := New(pa, newRecWorld(), &seqInput{}, WithTokenSource(NewFixedTokens(1)))
	b := New(pb, newRecWorld(), &seqInput{}, WithTokenSource(NewFixedTokens(2)))
	a.Start()
	b.Start()
	pollPair(t, a, b, 100, func() bool { return a.Phase() == InGame && b.Phase() == InGame })

	// b stops polling: a writes its input once and then waits
	for range 5 {
		assert.False(t, a.Tick())
		assert.True(t, a.Waiting())
	}
	assert.Zero(t, a.TickCount())
	assert.Len(t, pb.rx, 1)

	assert.True(t, b.Tick())
	assert.True(t, a.Tick())
	assert.Equal(t, uint32(1), a.TickCount())
	assert.Equal(t, uint32(1), b.TickCount())
}

// TestSessionOverTransport plays 50 rounds between tokens 10 and 200 over
// real transport channels on an in-memory link and checks that both
// simulations saw the same inputs. Polls race the receiver goroutines here,
// so the round bound of the election is checked in
// TestHandshakeDistinctTokens instead.
func TestSessionOverTransport(t *testing.T) {
	const ticks = 50

	la, lb := link.Pipe()
	ca := transport.New(context.Background(), la)
	cb := transport.New(context.Background(), lb)
	t.Cleanup(func() {
		ca.Close()
		cb.Close()
	})

	wa, wb := newRecWorld(), newRecWorld()
	ia, ib := &seqInput{next: 1}, &seqInput{next: 101}
	a := New(ca, wa, ia, WithTokenSource(NewFixedTokens(10)))
	b := New(cb, wb, ib, WithTokenSource(NewFixedTokens(200)))
	a.Start()
	b.Start()

	deadline := time.Now().Add(10 * time.Second)
	for a.TickCount() < ticks || b.TickCount() < ticks {
		require.True(t, time.Now().Before(deadline), "stuck in %s/%s at %d/%d",
			a.Phase(), b.Phase(), a.TickCount(), b.TickCount())

		for _, s := range []*Session{a, b} {
			if s.TickCount() < ticks || s.Connecting() {
				s.Tick()
			}
		}
		time.Sleep(100 * time.Microsecond)
	}

	assert.Equal(t, Primary, a.Role())
	assert.Equal(t, Secondary, b.Role())
	assert.Equal(t, uint32(ticks), a.TickCount())
	assert.Equal(t, uint32(ticks), b.TickCount())

	assert.Len(t, wa.actors[Primary].inputs, ticks)
	assert.Equal(t, wa.actors[Primary].inputs, wb.actors[Primary].inputs)
	assert.Equal(t, wa.actors[Secondary].inputs, wb.actors[Secondary].inputs)
	assert.Equal(t, ia.sampled, wa.actors[Primary].inputs)
	assert.Equal(t, ib.sampled, wb.actors[Secondary].inputs)

	assert.Zero(t, ca.Stats().Dropped)
	assert.Zero(t, cb.Stats().Dropped)
}
