package link

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/1ureka/duel/internal/util"
)

// DataChannel carries the byte stream over a WebRTC DataChannel. The channel
// must be ordered and reliable: the wire protocol has no sequence numbers.
type DataChannel struct {
	dc    *webrtc.DataChannel
	owner io.Closer
	rx    *rxBuffer

	closeOnce sync.Once
	closeErr  error
}

// NewDataChannel wraps dc. It takes over dc's OnMessage callback, so call it
// before the channel opens to not miss early bytes. owner (usually the peer
// connection) is closed together with the link; it may be nil.
func NewDataChannel(dc *webrtc.DataChannel, owner io.Closer) *DataChannel {
	d := &DataChannel{
		dc:    dc,
		owner: owner,
		rx:    newRxBuffer(hardwareBuffer),
	}

	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		if kept := d.rx.push(msg.Data); kept < len(msg.Data) {
			util.LogDebug("[datachannel %s] receive buffer overrun, %d byte(s) lost", dc.Label(), len(msg.Data)-kept)
		}
	})

	return d
}

// Receive implements Link.
func (d *DataChannel) Receive(p []byte) int {
	return d.rx.pop(p)
}

// Send implements Link.
func (d *DataChannel) Send(p []byte) (int, error) {
	if !d.Connected() {
		return 0, ErrClosed
	}
	if err := d.dc.Send(p); err != nil {
		return 0, fmt.Errorf("[datachannel %s] send failed: %w", d.dc.Label(), err)
	}
	return len(p), nil
}

// RxReady implements Link.
func (d *DataChannel) RxReady() <-chan struct{} {
	return d.rx.notify()
}

// Connected implements Link.
func (d *DataChannel) Connected() bool {
	return d.dc.ReadyState() == webrtc.DataChannelStateOpen
}

// Close implements Link.
func (d *DataChannel) Close() error {
	d.closeOnce.Do(func() {
		err := d.dc.Close()
		if d.owner != nil {
			err = errors.Join(err, d.owner.Close())
		}
		d.closeErr = err
	})
	return d.closeErr
}
