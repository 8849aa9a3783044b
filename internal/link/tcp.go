package link

import (
	"context"
	"fmt"
	"net"

	"github.com/1ureka/duel/internal/util"
)

// DialTCP connects to a peer listening on addr.
func DialTCP(ctx context.Context, addr string) (*Stream, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", addr, err)
	}
	return newTCPStream(conn), nil
}

// ListenTCP listens on addr and returns a link for the first peer that
// connects. The listener is closed afterwards: a session has exactly two
// peers.
func ListenTCP(ctx context.Context, addr string) (*Stream, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	defer ln.Close()

	util.LogInfo("waiting for peer on %s", ln.Addr())

	type result struct {
		conn net.Conn
		err  error
	}
	accepted := make(chan result, 1)
	go func() {
		conn, err := ln.Accept()
		accepted <- result{conn, err}
	}()

	select {
	case r := <-accepted:
		if r.err != nil {
			return nil, fmt.Errorf("accept on %s: %w", addr, r.err)
		}
		return newTCPStream(r.conn), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func newTCPStream(conn net.Conn) *Stream {
	if tc, ok := conn.(*net.TCPConn); ok {
		// single-byte messages; Nagle would batch them across ticks
		tc.SetNoDelay(true)
	}
	id := util.LinkID(conn.LocalAddr(), conn.RemoteAddr())
	util.LogDebug("[%08x] tcp link %s <-> %s", id, conn.LocalAddr(), conn.RemoteAddr())
	return NewStream(fmt.Sprintf("tcp %08x", id), conn)
}
