package link

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"

	"github.com/1ureka/duel/internal/util"
)

// WebSocket carries the byte stream as binary WebSocket messages. Message
// boundaries carry no meaning; every payload byte is a separate wire byte.
type WebSocket struct {
	conn *websocket.Conn
	rx   *rxBuffer
	id   uint32

	wmu       sync.Mutex // gorilla allows one concurrent writer
	lost      atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// NewWebSocket wraps an established connection and starts its read loop.
func NewWebSocket(conn *websocket.Conn) *WebSocket {
	w := &WebSocket{
		conn: conn,
		rx:   newRxBuffer(hardwareBuffer),
		id:   util.LinkID(conn.LocalAddr(), conn.RemoteAddr()),
	}
	go w.readLoop()
	return w
}

func (w *WebSocket) readLoop() {
	for {
		typ, data, err := w.conn.ReadMessage()
		if err != nil {
			if !w.lost.Swap(true) && !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				util.LogWarning("[%08x] websocket read failed: %v", w.id, err)
			}
			return
		}
		if typ != websocket.BinaryMessage {
			continue
		}
		if kept := w.rx.push(data); kept < len(data) {
			util.LogDebug("[%08x] receive buffer overrun, %d byte(s) lost", w.id, len(data)-kept)
		}
	}
}

// Receive implements Link.
func (w *WebSocket) Receive(p []byte) int {
	return w.rx.pop(p)
}

// Send implements Link.
func (w *WebSocket) Send(p []byte) (int, error) {
	if w.lost.Load() {
		return 0, ErrClosed
	}

	w.wmu.Lock()
	defer w.wmu.Unlock()

	if err := w.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		w.lost.Store(true)
		return 0, fmt.Errorf("[%08x] websocket write failed: %w", w.id, err)
	}
	return len(p), nil
}

// RxReady implements Link.
func (w *WebSocket) RxReady() <-chan struct{} {
	return w.rx.notify()
}

// Connected implements Link.
func (w *WebSocket) Connected() bool {
	return !w.lost.Load()
}

// Close sends a close frame and closes the connection.
func (w *WebSocket) Close() error {
	w.closeOnce.Do(func() {
		w.lost.Store(true)
		w.wmu.Lock()
		w.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session over"))
		w.wmu.Unlock()
		w.closeErr = w.conn.Close()
	})
	return w.closeErr
}
