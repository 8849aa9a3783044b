// Package input samples the local player's keyboard once per tick.
package input

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/pkg/term/termios"
	"golang.org/x/sys/unix"

	"github.com/1ureka/duel/internal/protocol"
	"github.com/1ureka/duel/internal/util"
)

// HoldFrames is how many samples a key press lasts. A terminal reports
// presses, not held keys, so each press is stretched until auto-repeat
// delivers the next one.
const HoldFrames = 8

// FromKey maps a key to its input bit.
func FromKey(b byte) (protocol.Input, bool) {
	switch b {
	case 'w', 'W':
		return protocol.InputUp, true
	case 's', 'S':
		return protocol.InputDown, true
	case 'a', 'A':
		return protocol.InputLeft, true
	case 'd', 'D':
		return protocol.InputRight, true
	case 'j', 'J':
		return protocol.InputA, true
	case 'k', 'K':
		return protocol.InputB, true
	}
	return 0, false
}

// Keyboard reads key presses from a terminal in cbreak mode.
type Keyboard struct {
	in *os.File

	canAttr    unix.Termios
	cbreakAttr unix.Termios

	mu   sync.Mutex
	last protocol.Input
	held int

	quit     chan struct{}
	quitOnce sync.Once
}

// OpenKeyboard switches f (normally os.Stdin) to cbreak mode and starts
// reading keys. 'q' requests quit. Close restores the terminal.
func OpenKeyboard(f *os.File) (*Keyboard, error) {
	k := newKeyboard()
	k.in = f

	if err := termios.Tcgetattr(f.Fd(), &k.canAttr); err != nil {
		return nil, fmt.Errorf("failed to read terminal attributes: %w", err)
	}
	k.cbreakAttr = k.canAttr
	termios.Cfmakecbreak(&k.cbreakAttr)
	if err := termios.Tcsetattr(f.Fd(), termios.TCIFLUSH, &k.cbreakAttr); err != nil {
		return nil, fmt.Errorf("failed to enter cbreak mode: %w", err)
	}

	go k.readLoop(f)
	return k, nil
}

func newKeyboard() *Keyboard {
	return &Keyboard{quit: make(chan struct{})}
}

func (k *Keyboard) readLoop(r io.Reader) {
	buf := make([]byte, 1)
	for {
		if _, err := r.Read(buf); err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, os.ErrClosed) {
				util.LogDebug("keyboard read failed: %v", err)
			}
			k.requestQuit()
			return
		}
		k.key(buf[0])
	}
}

func (k *Keyboard) key(b byte) {
	if b == 'q' || b == 'Q' {
		k.requestQuit()
		return
	}
	if in, ok := FromKey(b); ok {
		k.press(in)
	}
}

func (k *Keyboard) press(in protocol.Input) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.last = in
	k.held = HoldFrames
}

func (k *Keyboard) requestQuit() {
	k.quitOnce.Do(func() { close(k.quit) })
}

// Sample implements session.InputSource.
func (k *Keyboard) Sample() byte {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.held == 0 {
		return 0
	}
	k.held--
	return byte(k.last)
}

// Quit is closed once the player pressed 'q' or input ended.
func (k *Keyboard) Quit() <-chan struct{} {
	return k.quit
}

// Close restores the terminal mode found by OpenKeyboard.
func (k *Keyboard) Close() error {
	if k.in == nil {
		return nil
	}
	return termios.Tcsetattr(k.in.Fd(), termios.TCIFLUSH, &k.canAttr)
}
