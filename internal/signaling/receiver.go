package signaling

import (
	"encoding/json"
	"fmt"

	"github.com/gorilla/websocket"
	pion "github.com/pion/webrtc/v4"

	"github.com/1ureka/duel/internal/webrtc"
)

// receiver applies incoming signaling messages to the peer.
type receiver struct {
	peer   *webrtc.Peer
	conn   *websocket.Conn
	sender *sender

	// candidates that arrived before the remote description
	pending []pion.ICECandidateInit
}

// watch runs until the WebSocket fails or closes.
func (r *receiver) watch() error {
	for {
		var msg message
		if err := r.conn.ReadJSON(&msg); err != nil {
			return fmt.Errorf("failed to read signaling message: %w", err)
		}

		switch msg.Type {
		case msgTypeOffer:
			if err := r.setRemote(pion.SDPTypeOffer, msg.SDP); err != nil {
				return err
			}
			if err := r.sender.sendAnswer(); err != nil {
				return fmt.Errorf("failed to send answer: %w", err)
			}

		case msgTypeAnswer:
			if err := r.setRemote(pion.SDPTypeAnswer, msg.SDP); err != nil {
				return err
			}

		case msgTypeCandidate:
			var init pion.ICECandidateInit
			if err := json.Unmarshal([]byte(msg.Candidate), &init); err != nil {
				return fmt.Errorf("failed to parse ICE candidate: %w", err)
			}
			if !r.peer.HasRemoteDescription() {
				r.pending = append(r.pending, init)
				continue
			}
			if err := r.peer.AddICECandidate(init); err != nil {
				return fmt.Errorf("failed to add ICE candidate: %w", err)
			}
		}
	}
}

func (r *receiver) setRemote(typ pion.SDPType, sdp string) error {
	if err := r.peer.SetRemoteDescription(pion.SessionDescription{Type: typ, SDP: sdp}); err != nil {
		return fmt.Errorf("failed to set remote %s: %w", typ, err)
	}

	for _, c := range r.pending {
		if err := r.peer.AddICECandidate(c); err != nil {
			return fmt.Errorf("failed to add ICE candidate: %w", err)
		}
	}
	r.pending = nil
	return nil
}
