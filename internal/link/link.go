// Package link provides the physical duplex byte links a transport channel
// runs on: an in-memory pipe, a serial port, raw TCP, WebSocket and a WebRTC
// DataChannel. Every link buffers what the far side sends in a bounded
// hardware-side FIFO and raises a receive-ready notification; consumers pull
// bytes with the non-blocking Receive.
package link

import (
	"errors"
	"sync"
)

// PacketSize is the native transfer size of a link (a USB CDC packet).
// Consumers drain links in chunks of this size.
const PacketSize = 64

// hardwareBuffer bounds the bytes a link holds before its consumer drains
// them. Anything past it is lost, like a device FIFO overrun.
const hardwareBuffer = 64 * PacketSize

// ErrClosed is returned by Send once the link is closed or lost.
var ErrClosed = errors.New("link: closed")

// Link is a duplex byte-oriented connection to the other peer.
type Link interface {
	// Receive copies up to len(p) buffered bytes into p and returns how many
	// were copied. It never blocks.
	Receive(p []byte) int

	// Send transmits p and returns the number of bytes handed to the
	// underlying medium.
	Send(p []byte) (int, error)

	// RxReady delivers a notification whenever new bytes were buffered.
	// Notifications coalesce: one signal may stand for many arrivals.
	RxReady() <-chan struct{}

	// Connected reports whether the link can currently carry data.
	Connected() bool

	// Close releases the link. It is safe to call more than once.
	Close() error
}

// rxBuffer is the receive FIFO shared by all link implementations.
type rxBuffer struct {
	mu    sync.Mutex
	buf   []byte
	limit int
	ready chan struct{}
}

func newRxBuffer(limit int) *rxBuffer {
	return &rxBuffer{
		limit: limit,
		ready: make(chan struct{}, 1),
	}
}

// push appends as much of p as fits and returns the number of bytes kept.
// It always raises the ready signal so a consumer never misses data that
// was buffered before the call.
func (r *rxBuffer) push(p []byte) int {
	r.mu.Lock()
	n := min(len(p), r.limit-len(r.buf))
	r.buf = append(r.buf, p[:n]...)
	r.mu.Unlock()

	select {
	case r.ready <- struct{}{}:
	default:
	}
	return n
}

// pop moves up to len(p) bytes out of the buffer.
func (r *rxBuffer) pop(p []byte) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := copy(p, r.buf)
	r.buf = append(r.buf[:0], r.buf[n:]...)
	return n
}

func (r *rxBuffer) notify() <-chan struct{} {
	return r.ready
}
