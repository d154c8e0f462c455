package rtc

import (
	"sync"
	"testing"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/campus-chat/models"
)

type sentSignal struct {
	target string
	sdp    string
}

type fakeSignaler struct {
	mu         sync.Mutex
	offers     []sentSignal
	answers    []sentSignal
	candidates []string
}

func (s *fakeSignaler) SendOffer(target string, sdp string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offers = append(s.offers, sentSignal{target: target, sdp: sdp})
	return nil
}

func (s *fakeSignaler) SendAnswer(target string, sdp string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.answers = append(s.answers, sentSignal{target: target, sdp: sdp})
	return nil
}

func (s *fakeSignaler) SendCandidate(target string, _ webrtc.ICECandidateInit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.candidates = append(s.candidates, target)
	return nil
}

func (s *fakeSignaler) sentOffers() []sentSignal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sentSignal(nil), s.offers...)
}

func (s *fakeSignaler) sentAnswers() []sentSignal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sentSignal(nil), s.answers...)
}

func newTestManager(t *testing.T) (*Manager, *fakeSignaler) {
	media, err := SampleSource(true, true)
	require.NoError(t, err)

	signaler := &fakeSignaler{}
	manager := NewManager(
		models.Identity{UserID: "u1", Name: "User One"},
		signaler,
		media,
	)
	t.Cleanup(manager.Leave)
	return manager, signaler
}

// newRemotePeer builds a stand-in for the far side of a negotiation so tests
// can produce real session descriptions.
func newRemotePeer(t *testing.T) *webrtc.PeerConnection {
	remote, err := webrtc.NewPeerConnection(DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(func() { remote.Close() })
	return remote
}

func remoteOfferSDP(t *testing.T, remote *webrtc.PeerConnection) string {
	_, err := remote.AddTransceiverFromKind(webrtc.RTPCodecTypeVideo)
	require.NoError(t, err)

	offer, err := remote.CreateOffer(nil)
	require.NoError(t, err)
	require.NoError(t, remote.SetLocalDescription(offer))
	return offer.SDP
}

func Test_HandleExistingParticipants(t *testing.T) {

	t.Run("offers every existing participant", func(t *testing.T) {
		manager, signaler := newTestManager(t)

		err := manager.HandleExistingParticipants([]Participant{
			{SocketID: "s2", UserID: "u2", UserName: "User Two"},
			{SocketID: "s3", UserID: "u3", UserName: "User Three"},
		})
		require.NoError(t, err)

		offers := signaler.sentOffers()
		require.Len(t, offers, 2)
		assert.Equal(t, "s2", offers[0].target)
		assert.Equal(t, "s3", offers[1].target)
		assert.NotEmpty(t, offers[0].sdp)

		for _, socketID := range []string{"s2", "s3"} {
			peer, ok := manager.Peer(socketID)
			require.True(t, ok)
			assert.Equal(t, StateOfferSent, peer.State())
		}
	})

	t.Run("empty room creates no peers", func(t *testing.T) {
		manager, signaler := newTestManager(t)

		require.NoError(t, manager.HandleExistingParticipants(nil))
		assert.Empty(t, manager.Peers())
		assert.Empty(t, signaler.sentOffers())
	})

	t.Run("known participant is not dialed twice", func(t *testing.T) {
		manager, signaler := newTestManager(t)

		participant := Participant{SocketID: "s2", UserID: "u2", UserName: "User Two"}
		require.NoError(t, manager.HandleExistingParticipants([]Participant{participant}))
		require.NoError(t, manager.HandleExistingParticipants([]Participant{participant}))

		assert.Len(t, signaler.sentOffers(), 1)
		assert.Len(t, manager.Peers(), 1)
	})
}

func Test_HandleOffer(t *testing.T) {

	t.Run("answers an offer from a new participant", func(t *testing.T) {
		manager, signaler := newTestManager(t)
		remote := newRemotePeer(t)

		err := manager.HandleOffer("s2", "u2", "User Two", remoteOfferSDP(t, remote))
		require.NoError(t, err)

		peer, ok := manager.Peer("s2")
		require.True(t, ok)
		assert.Equal(t, StateAnswerExchanged, peer.State())
		assert.Equal(t, "u2", peer.UserID)
		assert.Equal(t, "User Two", peer.UserName)

		answers := signaler.sentAnswers()
		require.Len(t, answers, 1)
		assert.Equal(t, "s2", answers[0].target)
		assert.NotEmpty(t, answers[0].sdp)
	})

	t.Run("offer from a known peer keeps the existing descriptor", func(t *testing.T) {
		manager, signaler := newTestManager(t)
		remote := newRemotePeer(t)

		// both sides offered at once
		require.NoError(t, manager.HandleExistingParticipants([]Participant{
			{SocketID: "s2", UserID: "u2", UserName: "User Two"},
		}))

		err := manager.HandleOffer("s2", "u2", "User Two", remoteOfferSDP(t, remote))
		require.NoError(t, err)

		require.Len(t, manager.Peers(), 1)
		peer, _ := manager.Peer("s2")
		assert.Equal(t, StateOfferSent, peer.State())
		assert.Empty(t, signaler.sentAnswers())
	})
}

func Test_HandleAnswer(t *testing.T) {

	t.Run("completes negotiation after a local offer", func(t *testing.T) {
		manager, signaler := newTestManager(t)
		remote := newRemotePeer(t)

		require.NoError(t, manager.HandleExistingParticipants([]Participant{
			{SocketID: "s2", UserID: "u2", UserName: "User Two"},
		}))
		offers := signaler.sentOffers()
		require.Len(t, offers, 1)

		require.NoError(t, remote.SetRemoteDescription(webrtc.SessionDescription{
			Type: webrtc.SDPTypeOffer,
			SDP:  offers[0].sdp,
		}))
		answer, err := remote.CreateAnswer(nil)
		require.NoError(t, err)
		require.NoError(t, remote.SetLocalDescription(answer))

		require.NoError(t, manager.HandleAnswer("s2", answer.SDP))

		peer, ok := manager.Peer("s2")
		require.True(t, ok)
		assert.Equal(t, StateAnswerExchanged, peer.State())
	})

	t.Run("answer from an unknown peer is dropped", func(t *testing.T) {
		manager, _ := newTestManager(t)

		require.NoError(t, manager.HandleAnswer("s404", "bogus"))
		assert.Empty(t, manager.Peers())
	})
}

func Test_HandleCandidate(t *testing.T) {

	hostCandidate := webrtc.ICECandidateInit{
		Candidate: "candidate:1 1 udp 2130706431 127.0.0.1 54321 typ host",
	}

	t.Run("candidate before the descriptor is buffered and applied", func(t *testing.T) {
		manager, _ := newTestManager(t)
		remote := newRemotePeer(t)

		require.NoError(t, manager.HandleCandidate("s2", hostCandidate))

		manager.mu.Lock()
		buffered := len(manager.pending["s2"])
		manager.mu.Unlock()
		assert.Equal(t, 1, buffered)

		require.NoError(t, manager.HandleOffer("s2", "u2", "User Two", remoteOfferSDP(t, remote)))

		manager.mu.Lock()
		buffered = len(manager.pending["s2"])
		manager.mu.Unlock()
		assert.Equal(t, 0, buffered)

		peer, ok := manager.Peer("s2")
		require.True(t, ok)
		assert.Equal(t, StateAnswerExchanged, peer.State())
	})

	t.Run("candidate before the remote description is buffered", func(t *testing.T) {
		manager, _ := newTestManager(t)

		// the local offer is out but no answer arrived yet
		require.NoError(t, manager.HandleExistingParticipants([]Participant{
			{SocketID: "s2", UserID: "u2", UserName: "User Two"},
		}))
		require.NoError(t, manager.HandleCandidate("s2", hostCandidate))

		manager.mu.Lock()
		buffered := len(manager.pending["s2"])
		manager.mu.Unlock()
		assert.Equal(t, 1, buffered)
	})

	t.Run("candidate after the remote description is applied directly", func(t *testing.T) {
		manager, _ := newTestManager(t)
		remote := newRemotePeer(t)

		require.NoError(t, manager.HandleOffer("s2", "u2", "User Two", remoteOfferSDP(t, remote)))
		require.NoError(t, manager.HandleCandidate("s2", hostCandidate))

		manager.mu.Lock()
		buffered := len(manager.pending["s2"])
		manager.mu.Unlock()
		assert.Equal(t, 0, buffered)
	})
}

func Test_HandleUserLeft(t *testing.T) {

	t.Run("removes the descriptor and buffered candidates", func(t *testing.T) {
		manager, _ := newTestManager(t)

		require.NoError(t, manager.HandleExistingParticipants([]Participant{
			{SocketID: "s2", UserID: "u2", UserName: "User Two"},
		}))
		require.NoError(t, manager.HandleCandidate("s2", webrtc.ICECandidateInit{
			Candidate: "candidate:1 1 udp 2130706431 127.0.0.1 54321 typ host",
		}))

		manager.HandleUserLeft("s2")

		_, ok := manager.Peer("s2")
		assert.False(t, ok)
		manager.mu.Lock()
		_, pendingLeft := manager.pending["s2"]
		manager.mu.Unlock()
		assert.False(t, pendingLeft)
	})

	t.Run("unknown peer is a no-op", func(t *testing.T) {
		manager, _ := newTestManager(t)
		manager.HandleUserLeft("s404")
		assert.Empty(t, manager.Peers())
	})

	t.Run("buffered candidates without a descriptor are discarded", func(t *testing.T) {
		manager, _ := newTestManager(t)

		// the remote's candidates arrived but its offer never did
		require.NoError(t, manager.HandleCandidate("s2", webrtc.ICECandidateInit{
			Candidate: "candidate:1 1 udp 2130706431 127.0.0.1 54321 typ host",
		}))

		manager.HandleUserLeft("s2")

		manager.mu.Lock()
		_, pendingLeft := manager.pending["s2"]
		manager.mu.Unlock()
		assert.False(t, pendingLeft)
	})
}

func Test_Leave(t *testing.T) {
	manager, _ := newTestManager(t)

	require.NoError(t, manager.HandleExistingParticipants([]Participant{
		{SocketID: "s2", UserID: "u2", UserName: "User Two"},
		{SocketID: "s3", UserID: "u3", UserName: "User Three"},
	}))
	require.Len(t, manager.Peers(), 2)

	manager.Leave()
	assert.Empty(t, manager.Peers())
}

func Test_setConnected(t *testing.T) {

	t.Run("remote media marks the peer connected", func(t *testing.T) {
		manager, _ := newTestManager(t)

		require.NoError(t, manager.HandleExistingParticipants([]Participant{
			{SocketID: "s2", UserID: "u2", UserName: "User Two"},
		}))

		manager.setConnected("s2", "stream-1", nil)

		peer, ok := manager.Peer("s2")
		require.True(t, ok)
		assert.Equal(t, StateConnected, peer.State())
		assert.Equal(t, "stream-1", peer.RemoteStream())
	})

	t.Run("media for a departed peer is ignored", func(t *testing.T) {
		manager, _ := newTestManager(t)

		manager.setConnected("s404", "stream-1", nil)
		assert.Empty(t, manager.Peers())
	})

	t.Run("accessors are safe while negotiation progresses", func(t *testing.T) {
		manager, _ := newTestManager(t)

		require.NoError(t, manager.HandleExistingParticipants([]Participant{
			{SocketID: "s2", UserID: "u2", UserName: "User Two"},
		}))
		peer, ok := manager.Peer("s2")
		require.True(t, ok)

		// a UI goroutine polls the descriptor while remote media lands
		done := make(chan struct{})
		go func() {
			defer close(done)
			for i := 0; i < 1000; i++ {
				_ = peer.State()
				_ = peer.RemoteStream()
				_ = peer.RemoteTracks()
			}
		}()
		for i := 0; i < 1000; i++ {
			manager.setConnected("s2", "stream-1", nil)
		}
		<-done

		assert.Equal(t, StateConnected, peer.State())
		assert.Equal(t, "stream-1", peer.RemoteStream())
	})
}
