// Package webrtc wraps a PeerConnection and the single DataChannel that
// carries the duel byte stream.
package webrtc

import (
	"context"
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/1ureka/duel/internal/link"
	"github.com/1ureka/duel/internal/util"
)

// DefaultSTUNServers are used for ICE candidate gathering. No TURN: the two
// peers are expected to reach each other directly.
var DefaultSTUNServers = []string{
	"stun:stun.l.google.com:19302",
	"stun:stun1.l.google.com:19302",
}

const channelLabel = "duel"

// Option configures a Peer.
type Option func(*options)

type options struct {
	iceServers []string
	loopback   bool
}

// WithICEServers replaces DefaultSTUNServers. No servers means host
// candidates only.
func WithICEServers(urls ...string) Option {
	return func(o *options) { o.iceServers = urls }
}

// WithLoopbackCandidates lets ICE pair loopback addresses, so two peers in
// one process can connect without a network.
func WithLoopbackCandidates() Option {
	return func(o *options) { o.loopback = true }
}

// Peer is one PeerConnection plus a pre-negotiated DataChannel.
//
// The DataChannel is ordered and reliable: the lockstep wire protocol has no
// sequence numbers, so every byte must arrive exactly once and in order.
// Its lifecycle follows the DataChannel state and the context passed to
// NewPeer; the PeerConnection state is recorded but drives nothing.
type Peer struct {
	pc   *webrtc.PeerConnection
	dc   *webrtc.DataChannel
	link *link.DataChannel

	openSignal chan struct{}

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.RWMutex
	pcState webrtc.PeerConnectionState
}

// NewPeer creates the PeerConnection and its DataChannel. Both sides create
// the channel themselves (negotiated, ID 0), so no OnDataChannel round trip
// is needed. Signaling happens through the SDP and ICE methods.
func NewPeer(ctx context.Context, opts ...Option) (*Peer, error) {
	o := options{iceServers: DefaultSTUNServers}
	for _, opt := range opts {
		opt(&o)
	}

	pc, err := newPeerConnection(o)
	if err != nil {
		return nil, fmt.Errorf("failed to create PeerConnection: %w", err)
	}

	ordered := true
	negotiated := true
	id := uint16(0)
	dc, err := pc.CreateDataChannel(channelLabel, &webrtc.DataChannelInit{
		Ordered:    &ordered,
		Negotiated: &negotiated,
		ID:         &id,
	})
	if err != nil {
		pc.Close()
		return nil, fmt.Errorf("failed to create DataChannel: %w", err)
	}

	pCtx, pCancel := context.WithCancel(ctx)

	p := &Peer{
		pc:         pc,
		dc:         dc,
		link:       link.NewDataChannel(dc, pc),
		openSignal: make(chan struct{}),
		ctx:        pCtx,
		cancel:     pCancel,
		pcState:    webrtc.PeerConnectionStateNew,
	}

	var openOnce sync.Once
	dc.OnOpen(func() {
		openOnce.Do(func() { close(p.openSignal) })
	})

	dc.OnClose(func() {
		util.LogDebug("DataChannel closed")
		pCancel()
	})

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		util.LogDebug("PeerConnection state: %s", state.String())
		p.mu.Lock()
		p.pcState = state
		p.mu.Unlock()
	})

	return p, nil
}

func newPeerConnection(o options) (*webrtc.PeerConnection, error) {
	config := webrtc.Configuration{}
	if len(o.iceServers) > 0 {
		config.ICEServers = []webrtc.ICEServer{{URLs: o.iceServers}}
	}

	var se webrtc.SettingEngine
	if o.loopback {
		se.SetIncludeLoopbackCandidate(true)
		se.SetNetworkTypes([]webrtc.NetworkType{webrtc.NetworkTypeUDP4})
	}

	return webrtc.NewAPI(webrtc.WithSettingEngine(se)).NewPeerConnection(config)
}

// Ready is closed once the DataChannel is open.
func (p *Peer) Ready() <-chan struct{} {
	return p.openSignal
}

// Done is closed when the DataChannel closes or the parent context ends.
func (p *Peer) Done() <-chan struct{} {
	return p.ctx.Done()
}

// Link returns the byte link running over the DataChannel. Closing the link
// closes the whole peer.
func (p *Peer) Link() *link.DataChannel {
	return p.link
}

// Close shuts down the DataChannel and the PeerConnection.
func (p *Peer) Close() error {
	p.cancel()
	return p.link.Close()
}

// ConnectionState returns the last observed PeerConnection state.
func (p *Peer) ConnectionState() webrtc.PeerConnectionState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.pcState
}

// CreateOffer generates an SDP offer.
func (p *Peer) CreateOffer() (webrtc.SessionDescription, error) {
	return p.pc.CreateOffer(nil)
}

// CreateAnswer generates an SDP answer.
func (p *Peer) CreateAnswer() (webrtc.SessionDescription, error) {
	return p.pc.CreateAnswer(nil)
}

// SetLocalDescription applies the local SDP.
func (p *Peer) SetLocalDescription(sdp webrtc.SessionDescription) error {
	return p.pc.SetLocalDescription(sdp)
}

// SetRemoteDescription applies the remote SDP.
func (p *Peer) SetRemoteDescription(sdp webrtc.SessionDescription) error {
	return p.pc.SetRemoteDescription(sdp)
}

// HasRemoteDescription reports whether the remote SDP has been applied.
func (p *Peer) HasRemoteDescription() bool {
	return p.pc.RemoteDescription() != nil
}

// OnICECandidate registers a callback for every gathered local candidate.
// A nil candidate marks the end of gathering.
func (p *Peer) OnICECandidate(fn func(*webrtc.ICECandidate)) {
	p.pc.OnICECandidate(fn)
}

// AddICECandidate adds a remote candidate received through signaling.
func (p *Peer) AddICECandidate(candidate webrtc.ICECandidateInit) error {
	return p.pc.AddICECandidate(candidate)
}
