package signaling

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1ureka/duel/internal/link"
	"github.com/1ureka/duel/internal/webrtc"
)

func TestGeneratePIN(t *testing.T) {
	for range 100 {
		pin := generatePIN(pinLength)
		require.Len(t, pin, pinLength)
		for _, c := range pin {
			require.True(t, c >= '0' && c <= '9', "pin %q", pin)
		}
	}
}

func TestServerURL(t *testing.T) {
	srv, err := Listen("127.0.0.1:0")
	require.NoError(t, err)
	defer srv.Close()

	u := srv.URL("127.0.0.1")
	assert.True(t, strings.HasPrefix(u, "ws://127.0.0.1:"), u)
	assert.True(t, strings.HasSuffix(u, "/ws?pin="+srv.PIN()), u)
	assert.NotZero(t, srv.Port())
}

func TestDialRejectsWrongPIN(t *testing.T) {
	srv, err := Listen("127.0.0.1:0")
	require.NoError(t, err)
	defer srv.Close()

	wrong := "0000"
	if srv.PIN() == wrong {
		wrong = "1111"
	}
	bad := strings.Replace(srv.URL("127.0.0.1"), "pin="+srv.PIN(), "pin="+wrong, 1)

	_, err = Dial(context.Background(), bad)
	assert.ErrorIs(t, err, ErrPIN)
}

func TestAcceptHonoursContext(t *testing.T) {
	srv, err := Listen("127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = AcceptWebSocket(ctx, srv)
	assert.ErrorIs(t, err, context.Canceled)
}

// exchangeBytes checks that bytes written on a reach b in order.
func exchangeBytes(t *testing.T, a, b link.Link) {
	t.Helper()
	want := []byte{0x11, 0x00, 0x7f, 0x80, 0xff}
	require.Eventually(t, a.Connected, 5*time.Second, 10*time.Millisecond)
	_, err := a.Send(want)
	require.NoError(t, err)

	var got []byte
	buf := make([]byte, 16)
	require.Eventually(t, func() bool {
		n := b.Receive(buf)
		got = append(got, buf[:n]...)
		return len(got) >= len(want)
	}, 5*time.Second, time.Millisecond)
	assert.Equal(t, want, got)
}

func TestWebSocketLink(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	srv, err := Listen("127.0.0.1:0")
	require.NoError(t, err)

	hostCh := make(chan *link.WebSocket, 1)
	go func() {
		l, err := AcceptWebSocket(ctx, srv)
		assert.NoError(t, err)
		hostCh <- l
	}()

	client, err := DialWebSocket(ctx, srv.URL("127.0.0.1"))
	require.NoError(t, err)
	defer client.Close()

	host := <-hostCh
	require.NotNil(t, host)
	defer host.Close()

	exchangeBytes(t, client, host)
	exchangeBytes(t, host, client)
}

func TestWebRTCLink(t *testing.T) {
	if testing.Short() {
		t.Skip("negotiates a real DataChannel")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	srv, err := Listen("127.0.0.1:0")
	require.NoError(t, err)

	opts := []webrtc.Option{webrtc.WithICEServers(), webrtc.WithLoopbackCandidates()}

	hostCh := make(chan *link.DataChannel, 1)
	go func() {
		l, err := EstablishAsHost(ctx, srv, opts...)
		assert.NoError(t, err)
		hostCh <- l
	}()

	client, err := EstablishAsClient(ctx, srv.URL("127.0.0.1"), opts...)
	require.NoError(t, err)
	defer client.Close()

	host := <-hostCh
	require.NotNil(t, host)
	defer host.Close()

	exchangeBytes(t, client, host)
	exchangeBytes(t, host, client)
}
