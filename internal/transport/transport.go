// Package transport turns a physical link into the bounded, non-blocking
// byte channel the session protocol polls once per frame.
package transport

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/armon/circbuf"

	"github.com/1ureka/duel/internal/link"
	"github.com/1ureka/duel/internal/util"
)

// Capacity is the size of the receive queue: eight native link packets.
const Capacity = 8 * link.PacketSize

// traceSize is how many recent bytes per direction Trace keeps.
const traceSize = 64

// Channel is a single-consumer byte channel over a Link.
//
// A background receiver drains the link into a bounded queue whenever the
// link signals receive-ready; bytes that do not fit are dropped. The
// consumer side (IsAvailable, Peek, Read) never blocks and must be used from
// one goroutine only. Write may be called from any goroutine.
//
// The receiver is started lazily by the first call to any method and lives
// until Close.
type Channel struct {
	link link.Link

	parent    context.Context
	startOnce sync.Once
	cancel    context.CancelFunc
	done      chan struct{}

	// mu serializes access to the physical link: the receiver's drain step
	// and every Write.
	mu      sync.Mutex
	queue   chan byte
	txTrace *circbuf.Buffer // guarded by mu

	// consumer-owned
	peeked  byte
	hasPeek bool
	rxTrace *circbuf.Buffer

	received atomic.Int64
	dropped  atomic.Int64
	sent     atomic.Int64
}

// Stats is a snapshot of a channel's byte counters.
type Stats struct {
	Received int64 // bytes accepted into the queue
	Dropped  int64 // bytes discarded because the queue was full
	Sent     int64 // bytes handed to the link
}

// New creates a Channel over l. The receiver goroutine stops when ctx is
// cancelled or Close is called.
func New(ctx context.Context, l link.Link) *Channel {
	return &Channel{
		link:    l,
		parent:  ctx,
		done:    make(chan struct{}),
		queue:   make(chan byte, Capacity),
		txTrace: mustTrace(),
		rxTrace: mustTrace(),
	}
}

func mustTrace() *circbuf.Buffer {
	b, err := circbuf.NewBuffer(traceSize)
	if err != nil {
		panic(err)
	}
	return b
}

// ensureStarted launches the receiver exactly once.
func (c *Channel) ensureStarted() {
	c.startOnce.Do(func() {
		ctx, cancel := context.WithCancel(c.parent)
		c.cancel = cancel
		go c.receive(ctx)
	})
}

// ---------------------------------------------------------------------------
// Receiver
// ---------------------------------------------------------------------------

// receive waits for receive-ready notifications and drains the link.
func (c *Channel) receive(ctx context.Context) {
	defer close(c.done)

	buf := make([]byte, link.PacketSize)
	for {
		select {
		case <-c.link.RxReady():
			c.drain(buf)
		case <-ctx.Done():
			return
		}
	}
}

// drain pulls packet-sized chunks until the link has nothing more. A short
// chunk means the link is empty for now.
func (c *Channel) drain(buf []byte) {
	for {
		c.mu.Lock()
		n := c.link.Receive(buf)
		c.mu.Unlock()

		if n == 0 {
			return
		}
		c.enqueue(buf[:n])
		if n < len(buf) {
			return
		}
	}
}

// enqueue pushes bytes into the queue and drops whatever does not fit.
func (c *Channel) enqueue(p []byte) {
	kept := 0
	for _, b := range p {
		select {
		case c.queue <- b:
			kept++
		default:
		}
	}

	c.received.Add(int64(kept))
	util.Stats.AddRecv(kept)

	if lost := len(p) - kept; lost > 0 {
		c.dropped.Add(int64(lost))
		util.Stats.AddDropped(lost)
		util.LogDebug("receive queue full, dropped %d byte(s)", lost)
	}
}

// ---------------------------------------------------------------------------
// Consumer side
// ---------------------------------------------------------------------------

// IsAvailable reports whether Read would return a byte right now.
func (c *Channel) IsAvailable() bool {
	c.ensureStarted()
	return c.hasPeek || len(c.queue) > 0
}

// Peek returns the next byte without consuming it, or 0 when nothing is
// available. Callers that cannot tell 0 from data must check IsAvailable
// first.
func (c *Channel) Peek() byte {
	c.ensureStarted()

	if c.hasPeek {
		return c.peeked
	}

	select {
	case b := <-c.queue:
		c.peeked, c.hasPeek = b, true
		return b
	default:
		return 0
	}
}

// Read consumes and returns the next byte, or 0 when nothing is available.
func (c *Channel) Read() byte {
	c.ensureStarted()

	if c.hasPeek {
		c.hasPeek = false
		c.rxTrace.Write([]byte{c.peeked})
		return c.peeked
	}

	select {
	case b := <-c.queue:
		c.rxTrace.Write([]byte{b})
		return b
	default:
		return 0
	}
}

// IsAvailableForWrite reports whether the link is up. It is not flow
// control: an accepted write may still be in flight for a while.
func (c *Channel) IsAvailableForWrite() bool {
	c.ensureStarted()
	return c.link.Connected()
}

// Write sends one byte. Failures are not reported; a dead link shows up as
// IsAvailableForWrite returning false.
func (c *Channel) Write(b byte) {
	c.ensureStarted()

	c.mu.Lock()
	defer c.mu.Unlock()

	n, err := c.link.Send([]byte{b})
	if err != nil || n != 1 {
		util.LogDebug("write of 0x%02x not delivered: %v", b, err)
		return
	}

	c.sent.Add(1)
	util.Stats.AddSent(1)
	c.txTrace.Write([]byte{b})
}

// ---------------------------------------------------------------------------
// Lifecycle & diagnostics
// ---------------------------------------------------------------------------

// Close stops the receiver and closes the link.
func (c *Channel) Close() error {
	c.ensureStarted()
	c.cancel()
	<-c.done
	return c.link.Close()
}

// Stats returns the channel's byte counters.
func (c *Channel) Stats() Stats {
	return Stats{
		Received: c.received.Load(),
		Dropped:  c.dropped.Load(),
		Sent:     c.sent.Load(),
	}
}

// Trace returns the most recent bytes written and consumed, oldest first.
// Like Read, it must be called from the consumer goroutine.
func (c *Channel) Trace() (sent, consumed []byte) {
	c.mu.Lock()
	sent = append([]byte(nil), c.txTrace.Bytes()...)
	c.mu.Unlock()

	consumed = append([]byte(nil), c.rxTrace.Bytes()...)
	return sent, consumed
}
