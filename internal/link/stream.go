package link

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/1ureka/duel/internal/util"
)

// Stream adapts a byte stream (serial port, TCP connection) to a Link. A
// reader goroutine moves whatever the stream yields into the receive FIFO.
type Stream struct {
	name string
	rw   io.ReadWriteCloser
	rx   *rxBuffer

	wmu       sync.Mutex
	lost      atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// NewStream wraps rw and starts its reader goroutine. name only labels log
// lines.
func NewStream(name string, rw io.ReadWriteCloser) *Stream {
	s := &Stream{
		name: name,
		rw:   rw,
		rx:   newRxBuffer(hardwareBuffer),
	}
	go s.readLoop()
	return s
}

// readLoop is the single reader of the stream. It exits on the first read
// error, which also marks the link as lost.
func (s *Stream) readLoop() {
	buf := make([]byte, PacketSize)
	for {
		n, err := s.rw.Read(buf)
		if n > 0 {
			if kept := s.rx.push(buf[:n]); kept < n {
				util.LogDebug("[%s] receive buffer overrun, %d byte(s) lost", s.name, n-kept)
			}
		}
		if err != nil {
			if !s.lost.Swap(true) && err != io.EOF {
				util.LogWarning("[%s] read failed: %v", s.name, err)
			}
			return
		}
	}
}

// Receive implements Link.
func (s *Stream) Receive(p []byte) int {
	return s.rx.pop(p)
}

// Send implements Link.
func (s *Stream) Send(p []byte) (int, error) {
	if s.lost.Load() {
		return 0, ErrClosed
	}

	s.wmu.Lock()
	defer s.wmu.Unlock()

	n, err := s.rw.Write(p)
	if err != nil {
		s.lost.Store(true)
		return n, fmt.Errorf("[%s] write failed: %w", s.name, err)
	}
	return n, nil
}

// RxReady implements Link.
func (s *Stream) RxReady() <-chan struct{} {
	return s.rx.notify()
}

// Connected implements Link.
func (s *Stream) Connected() bool {
	return !s.lost.Load()
}

// Close implements Link.
func (s *Stream) Close() error {
	s.closeOnce.Do(func() {
		s.lost.Store(true)
		s.closeErr = s.rw.Close()
	})
	return s.closeErr
}
