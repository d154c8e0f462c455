package ws

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"example.com/campus-chat/models"
	"example.com/campus-chat/store"
)

type MockConn struct {
	in                chan *OutPacket
	id                string
	identity          models.Identity
	done              chan struct{}
	hub               Hub
	closeDelay        time.Duration
	onClose           func()
	onReadLoopCalled  func()
	onWriteLoopCalled func()
}

func NewMockConn(id string, hub Hub) *MockConn {
	return &MockConn{
		id:       id,
		identity: models.Identity{UserID: "user-" + id, Name: "User " + id},
		in:       make(chan *OutPacket),
		done:     make(chan struct{}),
		hub:      hub,
	}
}

func (c *MockConn) OnReadLoopCalled(f func()) {
	c.onReadLoopCalled = f
}

func (c *MockConn) OnWriteLoopCalled(f func()) {
	c.onWriteLoopCalled = f
}

func (c *MockConn) OnCloseCalled(f func()) {
	c.onClose = f
}

func (c *MockConn) pass() chan<- *OutPacket {
	return c.in
}

func (c *MockConn) close() {
	if c.closeDelay > 0 {
		time.Sleep(c.closeDelay)
	}
	close(c.done)
	if c.onClose != nil {
		c.onClose()
	}
}

func (c *MockConn) ID() string {
	return c.id
}

func (c *MockConn) Identity() models.Identity {
	return c.identity
}

func (c *MockConn) readLoop() {
	if c.onReadLoopCalled != nil {
		c.onReadLoopCalled()
	}
	<-c.done
}

func (c *MockConn) writeLoop() {
	if c.onWriteLoopCalled != nil {
		c.onWriteLoopCalled()
	}
	<-c.done
}

type MockConnFactory struct {
	shouldFail bool
}

func (f *MockConnFactory) NewConn(w http.ResponseWriter, r *http.Request,
	hub Hub, id string, identity models.Identity) (Conn, bool) {
	if f.shouldFail {
		return nil, false
	}
	c := NewMockConn(id, hub)
	c.identity = identity
	return c, true
}

type MockAuthenticator struct {
	id         atomic.Int64
	shouldFail bool
}

func (a *MockAuthenticator) Authenticate(w http.ResponseWriter, req *http.Request) (models.Identity, bool) {
	if a.shouldFail {
		return models.Identity{}, false
	}
	id := fmt.Sprintf("%d", a.id.Load())
	a.id.Add(1)
	return models.Identity{UserID: "user-" + id, Name: "User " + id}, true
}

type recordedBroadcast struct {
	packet *OutPacket
	ids    []string
}

// recordingActions is a HubActions that records fan-out calls so relay
// handlers can be exercised without a running hub.
type recordingActions struct {
	mu         sync.Mutex
	broadcasts []recordedBroadcast
}

func (a *recordingActions) BroadcastToClients(p *OutPacket, ids ...string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.broadcasts = append(a.broadcasts, recordedBroadcast{packet: p, ids: ids})
}

// packetsTo returns the packets delivered to the given connection id.
func (a *recordingActions) packetsTo(id string) []*OutPacket {
	a.mu.Lock()
	defer a.mu.Unlock()
	var packets []*OutPacket
	for _, b := range a.broadcasts {
		for _, target := range b.ids {
			if target == id {
				packets = append(packets, b.packet)
			}
		}
	}
	return packets
}

type appendCall struct {
	input store.MessageCreateInput
}

// mockMessageStore records appends and can be configured to fail.
type mockMessageStore struct {
	mu       sync.Mutex
	appends  []appendCall
	appended chan appendCall
	err      error
}

func newMockMessageStore() *mockMessageStore {
	return &mockMessageStore{appended: make(chan appendCall, 16)}
}

func (s *mockMessageStore) Append(ctx context.Context, input store.MessageCreateInput) (*models.Message, error) {
	s.mu.Lock()
	call := appendCall{input: input}
	s.appends = append(s.appends, call)
	err := s.err
	s.mu.Unlock()
	s.appended <- call
	if err != nil {
		return nil, err
	}
	return &models.Message{
		ID:         len(s.appends),
		RoomID:     input.RoomID,
		SenderID:   input.SenderID,
		SenderName: input.SenderName,
		Body:       input.Body,
		SentAt:     input.SentAt,
	}, nil
}

func (s *mockMessageStore) History(ctx context.Context, roomID string, limit int) ([]models.Message, error) {
	return nil, nil
}
