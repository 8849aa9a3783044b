package transport

import (
	"context"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1ureka/duel/internal/link"
)

// newPair returns a channel over one end of an in-memory pipe plus the other
// end, which the tests use as the "hardware" side.
func newPair(t *testing.T) (*Channel, *link.PipeEnd) {
	t.Helper()
	a, b := link.Pipe()
	c := New(context.Background(), a)
	t.Cleanup(func() { c.Close() })
	return c, b
}

// waitSettled blocks until the receiver has accounted for n bytes.
func waitSettled(t *testing.T, c *Channel, n int64) {
	t.Helper()
	c.ensureStarted()
	require.Eventually(t, func() bool {
		s := c.Stats()
		return s.Received+s.Dropped >= n
	}, 2*time.Second, time.Millisecond, "receiver did not drain %d bytes", n)
}

func TestEmptyChannel(t *testing.T) {
	c, _ := newPair(t)

	assert.False(t, c.IsAvailable())
	assert.Equal(t, byte(0), c.Peek())
	assert.Equal(t, byte(0), c.Read())
	assert.False(t, c.IsAvailable(), "peek on an empty queue must not fill the lookahead")
}

func TestPeekDoesNotConsume(t *testing.T) {
	c, hw := newPair(t)

	_, err := hw.Send([]byte{5, 6})
	require.NoError(t, err)
	waitSettled(t, c, 2)

	assert.Equal(t, byte(5), c.Peek())
	assert.Equal(t, byte(5), c.Peek())
	assert.True(t, c.IsAvailable())
	assert.Equal(t, byte(5), c.Read())
	assert.Equal(t, byte(6), c.Read())
	assert.False(t, c.IsAvailable())
}

// TestLookaheadOrdering feeds a known sequence and consumes it with a random
// interleaving of Peek and Read: Peek never advances, Read never skips.
func TestLookaheadOrdering(t *testing.T) {
	for seed := uint64(1); seed <= 5; seed++ {
		c, hw := newPair(t)

		want := make([]byte, 300)
		for i := range want {
			want[i] = byte(i*7 + 3)
		}
		for i := 0; i < len(want); i += 50 {
			_, err := hw.Send(want[i : i+50])
			require.NoError(t, err)
		}
		waitSettled(t, c, int64(len(want)))

		rng := rand.New(rand.NewPCG(seed, seed))
		var got []byte
		for c.IsAvailable() {
			next := want[len(got)]
			for range rng.IntN(3) {
				require.Equal(t, next, c.Peek(), "seed %d: peek at position %d", seed, len(got))
			}
			got = append(got, c.Read())
		}
		assert.Equal(t, want, got, "seed %d", seed)
	}
}

// TestQueueBounded sends a burst larger than Capacity in one go; the
// consumer sees exactly the earliest Capacity bytes.
func TestQueueBounded(t *testing.T) {
	c, hw := newPair(t)

	burst := make([]byte, Capacity+300)
	for i := range burst {
		burst[i] = byte(i % 251)
	}
	_, err := hw.Send(burst)
	require.NoError(t, err)
	waitSettled(t, c, int64(len(burst)))

	s := c.Stats()
	assert.Equal(t, int64(Capacity), s.Received)
	assert.Equal(t, int64(300), s.Dropped)

	var got []byte
	for c.IsAvailable() {
		got = append(got, c.Read())
	}
	assert.Equal(t, burst[:Capacity], got)
}

func TestWriteReachesPeer(t *testing.T) {
	c, hw := newPair(t)

	require.True(t, c.IsAvailableForWrite())
	c.Write(0)
	c.Write(42)

	buf := make([]byte, 4)
	n := hw.Receive(buf)
	assert.Equal(t, []byte{0, 42}, buf[:n])
	assert.Equal(t, int64(2), c.Stats().Sent)
}

func TestWriteOnUnpluggedLinkIsNoop(t *testing.T) {
	c, hw := newPair(t)

	hw.Unplug()
	assert.False(t, c.IsAvailableForWrite())
	c.Write(1)
	assert.Equal(t, int64(0), c.Stats().Sent)

	hw.Plug()
	assert.True(t, c.IsAvailableForWrite())
}

func TestConcurrentWriters(t *testing.T) {
	c, hw := newPair(t)

	const writers, each = 4, 100
	var wg sync.WaitGroup
	for w := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range each {
				c.Write(byte(w + 1))
			}
		}()
	}
	wg.Wait()

	counts := map[byte]int{}
	buf := make([]byte, link.PacketSize)
	for {
		n := hw.Receive(buf)
		if n == 0 {
			break
		}
		for _, b := range buf[:n] {
			counts[b]++
		}
	}
	for w := range writers {
		assert.Equal(t, each, counts[byte(w+1)], "writer %d", w)
	}
}

// TestReceiverKeepsUpWithConsumer interleaves arrivals and reads so the
// receiver is woken many times.
func TestReceiverKeepsUpWithConsumer(t *testing.T) {
	c, hw := newPair(t)

	var got []byte
	for i := range 200 {
		_, err := hw.Send([]byte{byte(i)})
		require.NoError(t, err)
		require.Eventually(t, c.IsAvailable, time.Second, 100*time.Microsecond)
		got = append(got, c.Read())
	}
	for i, b := range got {
		require.Equal(t, byte(i), b)
	}
}

func TestTrace(t *testing.T) {
	c, hw := newPair(t)

	for i := range traceSize + 10 {
		c.Write(byte(i))
	}
	_, err := hw.Send([]byte{1, 2, 3})
	require.NoError(t, err)
	waitSettled(t, c, 3)

	c.Peek()
	c.Read()
	c.Read()

	sent, consumed := c.Trace()
	require.Len(t, sent, traceSize)
	assert.Equal(t, byte(10), sent[0], "oldest kept byte")
	assert.Equal(t, byte(traceSize+9), sent[traceSize-1])
	assert.Equal(t, []byte{1, 2}, consumed, "peeked bytes are traced once, when read")
}

func TestCloseStopsReceiver(t *testing.T) {
	a, b := link.Pipe()
	c := New(context.Background(), a)
	c.IsAvailable()

	require.NoError(t, c.Close())
	assert.False(t, b.Connected())

	select {
	case <-c.done:
	default:
		t.Fatal("receiver still running after Close")
	}
}
