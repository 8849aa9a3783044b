package link

import (
	"errors"
	"fmt"

	"github.com/pkg/term"
)

// DefaultBaud is used when no baud rate is configured. USB CDC ignores it,
// real UARTs do not.
const DefaultBaud = 115200

// serialPort restores the device's line settings before closing it.
type serialPort struct {
	*term.Term
}

func (p serialPort) Close() error {
	return errors.Join(p.Term.Restore(), p.Term.Close())
}

// OpenSerial opens a serial device (e.g. /dev/ttyACM0) in raw mode and wraps
// it as a Link.
func OpenSerial(device string, baud int) (*Stream, error) {
	if baud <= 0 {
		baud = DefaultBaud
	}

	t, err := term.Open(device, term.Speed(baud), term.RawMode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial device %s: %w", device, err)
	}

	return NewStream("serial "+device, serialPort{t}), nil
}
