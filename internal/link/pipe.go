package link

import (
	"sync"
	"sync/atomic"
)

// PipeEnd is one side of an in-memory link pair created by Pipe. Bytes sent
// on one end are buffered on the other immediately, in order.
type PipeEnd struct {
	rx   *rxBuffer
	peer *PipeEnd

	unplugged atomic.Bool
	closed    atomic.Bool
	closeOnce sync.Once
}

// Pipe creates a linked pair of in-memory links.
func Pipe() (a, b *PipeEnd) {
	a = &PipeEnd{rx: newRxBuffer(hardwareBuffer)}
	b = &PipeEnd{rx: newRxBuffer(hardwareBuffer)}
	a.peer = b
	b.peer = a
	return a, b
}

// Receive implements Link.
func (p *PipeEnd) Receive(buf []byte) int {
	return p.rx.pop(buf)
}

// Send implements Link. Bytes that do not fit in the peer's buffer are lost
// and not counted.
func (p *PipeEnd) Send(buf []byte) (int, error) {
	if !p.Connected() {
		return 0, ErrClosed
	}
	return p.peer.rx.push(buf), nil
}

// RxReady implements Link.
func (p *PipeEnd) RxReady() <-chan struct{} {
	return p.rx.notify()
}

// Connected implements Link. A pipe is connected while neither end is
// closed or unplugged.
func (p *PipeEnd) Connected() bool {
	return !p.closed.Load() && !p.peer.closed.Load() &&
		!p.unplugged.Load() && !p.peer.unplugged.Load()
}

// Unplug simulates a cable pull: both ends report not connected until Plug.
func (p *PipeEnd) Unplug() { p.unplugged.Store(true) }

// Plug reverses Unplug.
func (p *PipeEnd) Plug() { p.unplugged.Store(false) }

// Close implements Link.
func (p *PipeEnd) Close() error {
	p.closeOnce.Do(func() { p.closed.Store(true) })
	return nil
}
