package rtc

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/pion/webrtc/v4"

	"example.com/campus-chat/models"
)

// Signaler carries negotiation events to a single remote connection. The
// websocket client implements it on top of the relay events.
type Signaler interface {
	SendOffer(target string, sdp string) error
	SendAnswer(target string, sdp string) error
	SendCandidate(target string, candidate webrtc.ICECandidateInit) error
}

// TrackHandler is invoked when remote media arrives from a peer.
type TrackHandler func(socketID string, track *webrtc.TrackRemote)

// Manager keeps the full-mesh peer state of one video-room session: one
// descriptor per remote participant, keyed by the remote connection id.
// Peers never share descriptors, and candidates that outrun their session
// descriptions are buffered until the remote description lands.
type Manager struct {
	mu       sync.Mutex
	config   webrtc.Configuration
	signaler Signaler
	identity models.Identity
	media    MediaSource
	peers    map[string]*Peer
	pending  map[string][]webrtc.ICECandidateInit
	onTrack  TrackHandler
	logger   *slog.Logger
}

type ManagerOption func(*Manager)

func WithConfig(config webrtc.Configuration) ManagerOption {
	return func(m *Manager) {
		m.config = config
	}
}

func WithManagerLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithTrackHandler registers a callback for incoming remote tracks.
func WithTrackHandler(handler TrackHandler) ManagerOption {
	return func(m *Manager) {
		m.onTrack = handler
	}
}

func NewManager(identity models.Identity, signaler Signaler, media MediaSource, opts ...ManagerOption) *Manager {
	m := &Manager{
		config:   DefaultConfig(),
		signaler: signaler,
		identity: identity,
		media:    media,
		peers:    make(map[string]*Peer),
		pending:  make(map[string][]webrtc.ICECandidateInit),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Peer returns the descriptor for the given remote connection id.
func (m *Manager) Peer(socketID string) (*Peer, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	peer, ok := m.peers[socketID]
	return peer, ok
}

// Peers returns a snapshot of all current descriptors.
func (m *Manager) Peers() []*Peer {
	m.mu.Lock()
	defer m.mu.Unlock()
	peers := make([]*Peer, 0, len(m.peers))
	for _, peer := range m.peers {
		peers = append(peers, peer)
	}
	return peers
}

// HandleExistingParticipants initiates negotiation towards every participant
// already in the room. The joiner is always the offerer.
func (m *Manager) HandleExistingParticipants(participants []Participant) error {
	for _, participant := range participants {
		if err := m.dial(participant); err != nil {
			return fmt.Errorf("dial %s: %w", participant.SocketID, err)
		}
	}
	return nil
}

func (m *Manager) dial(participant Participant) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.peers[participant.SocketID]; ok {
		return nil
	}

	peer, err := m.createPeerLocked(participant)
	if err != nil {
		return err
	}

	offer, err := peer.pc.CreateOffer(nil)
	if err != nil {
		m.closePeerLocked(participant.SocketID)
		return fmt.Errorf("create offer: %w", err)
	}
	if err := peer.pc.SetLocalDescription(offer); err != nil {
		m.closePeerLocked(participant.SocketID)
		return fmt.Errorf("set local description: %w", err)
	}
	peer.setState(StateOfferSent)

	if err := m.signaler.SendOffer(participant.SocketID, offer.SDP); err != nil {
		m.closePeerLocked(participant.SocketID)
		return fmt.Errorf("send offer: %w", err)
	}
	return nil
}

// HandleOffer answers an incoming offer from a new participant. An offer
// from an already-known peer is ignored: both sides offered at once, or the
// remote re-offered, and the in-flight answer settles the session on the
// existing descriptor.
func (m *Manager) HandleOffer(from string, userID, userName string, sdp string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if peer, ok := m.peers[from]; ok {
		m.logger.Warn("duplicate offer ignored", "from", from, "state", peer.State().String())
		return nil
	}

	peer, err := m.createPeerLocked(Participant{SocketID: from, UserID: userID, UserName: userName})
	if err != nil {
		return err
	}
	peer.setState(StateOfferReceived)

	remote := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: sdp}
	if err := peer.pc.SetRemoteDescription(remote); err != nil {
		m.closePeerLocked(from)
		return fmt.Errorf("set remote description: %w", err)
	}
	m.flushPendingLocked(peer)

	answer, err := peer.pc.CreateAnswer(nil)
	if err != nil {
		m.closePeerLocked(from)
		return fmt.Errorf("create answer: %w", err)
	}
	if err := peer.pc.SetLocalDescription(answer); err != nil {
		m.closePeerLocked(from)
		return fmt.Errorf("set local description: %w", err)
	}
	peer.setState(StateAnswerExchanged)

	if err := m.signaler.SendAnswer(from, answer.SDP); err != nil {
		m.closePeerLocked(from)
		return fmt.Errorf("send answer: %w", err)
	}
	return nil
}

// HandleAnswer completes negotiation started by a local offer. Answers from
// unknown peers or in unexpected states are logged and dropped.
func (m *Manager) HandleAnswer(from string, sdp string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	peer, ok := m.peers[from]
	if !ok {
		m.logger.Warn("answer from unknown peer", "from", from)
		return nil
	}
	if peer.State() != StateOfferSent {
		m.logger.Warn("unexpected answer", "from", from, "state", peer.State().String())
		return nil
	}

	remote := webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: sdp}
	if err := peer.pc.SetRemoteDescription(remote); err != nil {
		return fmt.Errorf("set remote description: %w", err)
	}
	peer.setState(StateAnswerExchanged)
	m.flushPendingLocked(peer)
	return nil
}

// HandleCandidate applies a remote ICE candidate. Candidates can outrun the
// session descriptions on the signaling channel; those are held and applied
// once the remote description lands.
func (m *Manager) HandleCandidate(from string, candidate webrtc.ICECandidateInit) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	peer, ok := m.peers[from]
	if !ok || peer.pc.RemoteDescription() == nil {
		m.pending[from] = append(m.pending[from], candidate)
		return nil
	}
	if peer.State() == StateClosed {
		return nil
	}

	if err := peer.pc.AddICECandidate(candidate); err != nil {
		return fmt.Errorf("add ice candidate: %w", err)
	}
	return nil
}

// HandleUserLeft tears down the descriptor for a departed participant.
func (m *Manager) HandleUserLeft(socketID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closePeerLocked(socketID)
}

// Leave ends the session: every peer is closed and local capture stops.
func (m *Manager) Leave() {
	m.mu.Lock()
	for socketID := range m.peers {
		m.closePeerLocked(socketID)
	}
	m.pending = make(map[string][]webrtc.ICECandidateInit)
	m.mu.Unlock()

	if err := m.media.Close(); err != nil {
		m.logger.Error("close media source", "err", err)
	}
}

func (m *Manager) createPeerLocked(participant Participant) (*Peer, error) {
	pc, err := webrtc.NewPeerConnection(m.config)
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}

	for _, track := range m.media.Tracks() {
		if _, err := pc.AddTrack(track); err != nil {
			pc.Close()
			return nil, fmt.Errorf("add local track: %w", err)
		}
	}

	socketID := participant.SocketID
	pc.OnICECandidate(func(candidate *webrtc.ICECandidate) {
		if candidate == nil {
			return
		}
		if err := m.signaler.SendCandidate(socketID, candidate.ToJSON()); err != nil {
			m.logger.Error("send candidate", "target", socketID, "err", err)
		}
	})
	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		m.setConnected(socketID, track.StreamID(), track)
	})

	peer := &Peer{
		SocketID: participant.SocketID,
		UserID:   participant.UserID,
		UserName: participant.UserName,
		pc:       pc,
		state:    StateNew,
	}
	m.peers[socketID] = peer
	return peer, nil
}

func (m *Manager) closePeerLocked(socketID string) {
	// a departed remote may only have buffered candidates, never a descriptor
	delete(m.pending, socketID)
	peer, ok := m.peers[socketID]
	if !ok {
		return
	}
	if err := peer.pc.Close(); err != nil {
		m.logger.Error("close peer connection", "socketId", socketID, "err", err)
	}
	peer.setState(StateClosed)
	delete(m.peers, socketID)
}

func (m *Manager) flushPendingLocked(peer *Peer) {
	for _, candidate := range m.pending[peer.SocketID] {
		if err := peer.pc.AddICECandidate(candidate); err != nil {
			m.logger.Error("apply buffered candidate", "from", peer.SocketID, "err", err)
		}
	}
	delete(m.pending, peer.SocketID)
}

func (m *Manager) setConnected(socketID string, streamID string, track *webrtc.TrackRemote) {
	m.mu.Lock()
	peer, ok := m.peers[socketID]
	if !ok {
		m.mu.Unlock()
		return
	}
	peer.mu.Lock()
	if peer.state == StateClosed {
		peer.mu.Unlock()
		m.mu.Unlock()
		return
	}
	peer.state = StateConnected
	peer.remoteStream = streamID
	if track != nil {
		peer.remoteTracks = append(peer.remoteTracks, track)
	}
	peer.mu.Unlock()
	handler := m.onTrack
	m.mu.Unlock()

	if handler != nil && track != nil {
		handler(socketID, track)
	}
}
