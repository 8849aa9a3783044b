package signaling

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gorilla/websocket"
	pion "github.com/pion/webrtc/v4"

	"github.com/1ureka/duel/internal/link"
	"github.com/1ureka/duel/internal/util"
	"github.com/1ureka/duel/internal/webrtc"
)

// AcceptWebSocket waits for the client on srv and uses the WebSocket itself
// as the byte link. srv stops listening once the client is in.
func AcceptWebSocket(ctx context.Context, srv *Server) (*link.WebSocket, error) {
	defer srv.Close()

	conn, err := srv.Accept(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to wait for client: %w", err)
	}
	util.LogInfo("client connected from %s", conn.RemoteAddr())
	return link.NewWebSocket(conn), nil
}

// DialWebSocket connects to a host and uses the WebSocket as the byte link.
func DialWebSocket(ctx context.Context, url string) (*link.WebSocket, error) {
	conn, err := Dial(ctx, url)
	if err != nil {
		return nil, err
	}
	util.LogInfo("connected to %s", conn.RemoteAddr())
	return link.NewWebSocket(conn), nil
}

// EstablishAsHost runs the host side of the WebRTC signaling flow:
//  1. Wait for the client on srv
//  2. Create the Peer (its link starts buffering immediately)
//  3. Send the offer and trade ICE candidates
//  4. Wait for the DataChannel to open
//  5. Close the WS server and connection
func EstablishAsHost(ctx context.Context, srv *Server, opts ...webrtc.Option) (*link.DataChannel, error) {
	defer srv.Close()

	wsConn, err := srv.Accept(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to wait for client: %w", err)
	}
	defer wsConn.Close()
	util.LogInfo("client connected, negotiating DataChannel")

	return exchange(ctx, wsConn, true, opts)
}

// EstablishAsClient runs the client side of the WebRTC signaling flow: dial
// the host, answer its offer, wait for the DataChannel and drop the WS.
func EstablishAsClient(ctx context.Context, url string, opts ...webrtc.Option) (*link.DataChannel, error) {
	wsConn, err := Dial(ctx, url)
	if err != nil {
		return nil, err
	}
	defer wsConn.Close()
	util.LogInfo("connected to host, negotiating DataChannel")

	return exchange(ctx, wsConn, false, opts)
}

func exchange(ctx context.Context, wsConn *websocket.Conn, offer bool, opts []webrtc.Option) (*link.DataChannel, error) {
	peer, err := webrtc.NewPeer(ctx, opts...)
	if err != nil {
		return nil, err
	}

	s := &sender{peer: peer, conn: wsConn}
	r := &receiver{peer: peer, conn: wsConn, sender: s}

	peer.OnICECandidate(func(c *pion.ICECandidate) {
		if c != nil {
			data, _ := json.Marshal(c.ToJSON())
			// best effort: the WS may already be gone once the channel opened
			s.sendCandidate(string(data))
		}
	})

	// exits when wsConn is closed by the caller
	errCh := make(chan error, 1)
	go func() {
		errCh <- r.watch()
	}()

	if offer {
		if err := s.sendOffer(); err != nil {
			peer.Close()
			return nil, fmt.Errorf("failed to send offer: %w", err)
		}
	}

	select {
	case <-peer.Ready():
		util.LogSuccess("WebRTC DataChannel established")
		return peer.Link(), nil

	case err := <-errCh:
		select {
		case <-peer.Ready():
			return peer.Link(), nil
		default:
		}
		peer.Close()
		return nil, fmt.Errorf("signaling failed: %w", err)

	case <-ctx.Done():
		peer.Close()
		return nil, ctx.Err()
	}
}
