package rtc

import (
	"sync"

	"github.com/pion/webrtc/v4"
)

// PeerState labels the negotiation progress of one remote participant.
type PeerState int

const (
	StateNew PeerState = iota
	StateOfferSent
	StateOfferReceived
	StateAnswerExchanged
	StateConnected
	// StateClosed is terminal and reachable from any state.
	StateClosed
)

func (s PeerState) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateOfferSent:
		return "offer-sent"
	case StateOfferReceived:
		return "offer-received"
	case StateAnswerExchanged:
		return "answer-exchanged"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Participant identifies a remote video-room member as announced by the relay.
type Participant struct {
	SocketID string `json:"socketId"`
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
}

// Peer is the descriptor of one remote participant: its connection id and
// identity, the negotiated peer connection, and, once negotiation completes,
// the remote media stream id for UI consumption. The accessors are safe to
// poll from other goroutines while negotiation is still in flight.
type Peer struct {
	SocketID string
	UserID   string
	UserName string

	pc *webrtc.PeerConnection

	mu           sync.RWMutex
	state        PeerState
	remoteStream string
	remoteTracks []*webrtc.TrackRemote
}

// State returns the current negotiation state.
func (p *Peer) State() PeerState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

func (p *Peer) setState(s PeerState) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}

// RemoteStream returns the id of the remote media stream, or "" before the
// first remote track arrived.
func (p *Peer) RemoteStream() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.remoteStream
}

// RemoteTracks returns a snapshot of the remote media tracks received so far.
func (p *Peer) RemoteTracks() []*webrtc.TrackRemote {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]*webrtc.TrackRemote(nil), p.remoteTracks...)
}

// Connection exposes the underlying peer connection.
func (p *Peer) Connection() *webrtc.PeerConnection {
	return p.pc
}

// DefaultConfig is the peer connection configuration used when none is
// injected.
func DefaultConfig() webrtc.Configuration {
	return webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{
			{
				URLs: []string{"stun:stun.l.google.com:19302"},
			},
		},
	}
}
