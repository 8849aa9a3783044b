package signaling

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"net"
	"net/http"
	"net/url"

	"github.com/gorilla/websocket"

	"github.com/1ureka/duel/internal/util"
)

const (
	pinLength = 4
	wsPath    = "/ws"
)

// ErrPIN is returned by Dial when the host rejects the PIN.
var ErrPIN = errors.New("signaling: PIN rejected")

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Server is the host-side WebSocket endpoint. It hands out exactly one
// connection: the first client presenting the right PIN.
type Server struct {
	pin      string
	listener net.Listener
	srv      *http.Server
	connCh   chan *websocket.Conn
}

// Listen starts a server on addr (":0" picks a free port) with a fresh PIN.
func Listen(addr string) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to start WS server: %w", err)
	}

	s := &Server{
		pin:      generatePIN(pinLength),
		listener: listener,
		connCh:   make(chan *websocket.Conn, 1),
	}

	mux := http.NewServeMux()
	mux.HandleFunc(wsPath, s.handleWS)
	s.srv = &http.Server{Handler: mux}

	go func() {
		if err := s.srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			util.LogDebug("WS server stopped: %v", err)
		}
	}()

	return s, nil
}

// Port returns the port the server listens on.
func (s *Server) Port() int {
	return s.listener.Addr().(*net.TCPAddr).Port
}

// PIN returns the PIN clients must present.
func (s *Server) PIN() string {
	return s.pin
}

// URL returns the address a client on host should dial.
func (s *Server) URL(host string) string {
	u := url.URL{
		Scheme:   "ws",
		Host:     net.JoinHostPort(host, fmt.Sprint(s.Port())),
		Path:     wsPath,
		RawQuery: url.Values{"pin": {s.pin}}.Encode(),
	}
	return u.String()
}

// PrintBanner shows the port and PIN the other player needs.
func (s *Server) PrintBanner() {
	fmt.Println()
	fmt.Println("╔══════════════════════════════════════════╗")
	fmt.Println("║        WebSocket Signaling Server        ║")
	fmt.Println("╠══════════════════════════════════════════╣")
	fmt.Printf("║  Port : %-32d ║\n", s.Port())
	fmt.Printf("║  PIN  : %-32s ║\n", s.pin)
	fmt.Println("╠══════════════════════════════════════════╣")
	fmt.Println("║  Forward this port if the other player   ║")
	fmt.Println("║  is not on the same network.             ║")
	fmt.Println("╚══════════════════════════════════════════╝")
	fmt.Println()
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("pin") != s.pin {
		util.LogWarning("rejected WS client %s: wrong PIN", r.RemoteAddr)
		http.Error(w, "Invalid PIN", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	// Only accept the first client.
	select {
	case s.connCh <- conn:
	default:
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "already connected"))
		conn.Close()
	}
}

// Accept blocks until a client connects or ctx is cancelled.
func (s *Server) Accept(ctx context.Context) (*websocket.Conn, error) {
	select {
	case conn := <-s.connCh:
		return conn, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close stops accepting connections. Connections already handed out by
// Accept stay open.
func (s *Server) Close() error {
	return s.listener.Close()
}

// Dial connects to a host's server. The URL carries the PIN, e.g.
//
//	ws://192.168.1.20:7777/ws?pin=1234
func Dial(ctx context.Context, rawURL string) (*websocket.Conn, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, rawURL, nil)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, ErrPIN
		}
		return nil, fmt.Errorf("failed to connect to WS server: %w", err)
	}
	return conn, nil
}

// generatePIN returns a random numeric PIN of the specified length.
func generatePIN(length int) string {
	digits := make([]byte, length)
	for i := range digits {
		n, _ := rand.Int(rand.Reader, big.NewInt(10))
		digits[i] = byte('0') + byte(n.Int64())
	}
	return string(digits)
}
