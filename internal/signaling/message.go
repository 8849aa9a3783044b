// Package signaling sets up the network links that need a rendezvous: a
// PIN-protected WebSocket server that either carries the byte stream itself or
// brokers the SDP/ICE exchange for a WebRTC DataChannel.
package signaling

type messageType string

const (
	msgTypeOffer     messageType = "offer"
	msgTypeAnswer    messageType = "answer"
	msgTypeCandidate messageType = "candidate"
)

// message is the JSON structure exchanged over the WebSocket during signaling.
type message struct {
	Type      messageType `json:"type"`
	SDP       string      `json:"sdp,omitempty"`
	Candidate string      `json:"candidate,omitempty"` // JSON-encoded ICECandidateInit
}
