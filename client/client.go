// Package client implements the participant side of the relay: a single
// websocket connection multiplexing chat and video signaling events, with
// event subscriptions for the UI and an rtc.Signaler implementation for the
// peer connection manager.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"

	"example.com/campus-chat/models"
	"example.com/campus-chat/rtc"
	"example.com/campus-chat/ws"
)

const (
	writeWait    = time.Second * 10
	pongWait     = time.Second * 60
	pingInterval = (pongWait * 9) / 10
)

// ErrClosed is returned when emitting on a closed client.
var ErrClosed = errors.New("client closed")

// Handler consumes the body of one relay event.
type Handler func(body json.RawMessage)

type Client struct {
	conn     *websocket.Conn
	identity models.Identity
	logger   *slog.Logger

	mu          sync.Mutex
	handlers    map[string]map[int]Handler
	nextID      int
	currentRoom string

	out       chan *ws.OutPacket
	done      chan struct{}
	closeOnce sync.Once
}

var _ rtc.Signaler = (*Client)(nil)

type Option func(*Client)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// Dial connects to the relay endpoint, presenting the token as the "token"
// query parameter. identity must match the token's claims; it is echoed into
// outgoing chat messages and offers.
func Dial(ctx context.Context, rawURL string, token string, identity models.Identity, opts ...Option) (*Client, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	query := u.Query()
	query.Set("token", token)
	u.RawQuery = query.Encode()

	conn, res, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if res != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", u.Host, err, res.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", u.Host, err)
	}

	c := &Client{
		conn:     conn,
		identity: identity,
		logger: slog.New(slog.NewTextHandler(os.Stdout,
			&slog.HandlerOptions{Level: slog.LevelInfo})),
		handlers: make(map[string]map[int]Handler),
		out:      make(chan *ws.OutPacket, 16),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	go c.readLoop()
	go c.writeLoop()

	return c, nil
}

// Subscribe registers a handler for an event type and returns its
// unsubscribe function. Handlers run on the read loop in receipt order.
func (c *Client) Subscribe(event string, handler Handler) func() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.handlers[event] == nil {
		c.handlers[event] = make(map[int]Handler)
	}
	id := c.nextID
	c.nextID++
	c.handlers[event][id] = handler

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.handlers[event], id)
	}
}

// JoinRoom enters a chat room. A client occupies at most one chat room, so
// switching rooms leaves the previous one first.
func (c *Client) JoinRoom(roomID string) error {
	c.mu.Lock()
	previous := c.currentRoom
	c.currentRoom = roomID
	c.mu.Unlock()

	if previous != "" && previous != roomID {
		if err := c.emit(ws.EventLeaveRoom, ws.JoinRoomPayload{RoomID: previous}); err != nil {
			return err
		}
	}
	return c.emit(ws.EventJoinRoom, ws.JoinRoomPayload{RoomID: roomID})
}

// LeaveRoom exits a chat room. Leaving a room the client is not in is
// harmless on the server side.
func (c *Client) LeaveRoom(roomID string) error {
	c.mu.Lock()
	if c.currentRoom == roomID {
		c.currentRoom = ""
	}
	c.mu.Unlock()
	return c.emit(ws.EventLeaveRoom, ws.JoinRoomPayload{RoomID: roomID})
}

// SendMessage emits a chat message to the current room. Delivery back to
// this client happens via the receive-message event like any other member.
func (c *Client) SendMessage(roomID string, text string) error {
	return c.emit(ws.EventSendMessage, ws.SendMessagePayload{
		SenderID:   c.identity.UserID,
		SenderName: c.identity.Name,
		Text:       text,
		RoomID:     roomID,
	})
}

// JoinVideoRoom announces this client to a video room. The server responds
// with existing-participants; negotiation is driven from that event.
func (c *Client) JoinVideoRoom(roomID string) error {
	return c.emit(ws.EventJoinVideo, ws.JoinVideoRoomPayload{
		RoomID:   roomID,
		UserID:   c.identity.UserID,
		UserName: c.identity.Name,
	})
}

func (c *Client) LeaveVideoRoom(roomID string) error {
	return c.emit(ws.EventLeaveVideo, ws.LeaveVideoRoomPayload{RoomID: roomID})
}

// SendOffer implements rtc.Signaler.
func (c *Client) SendOffer(target string, sdp string) error {
	return c.emit(ws.EventOffer, ws.OfferPayload{
		Target:         target,
		SDP:            sdp,
		CallerUserID:   c.identity.UserID,
		CallerUserName: c.identity.Name,
	})
}

// SendAnswer implements rtc.Signaler.
func (c *Client) SendAnswer(target string, sdp string) error {
	return c.emit(ws.EventAnswer, ws.AnswerPayload{Target: target, SDP: sdp})
}

// SendCandidate implements rtc.Signaler.
func (c *Client) SendCandidate(target string, candidate webrtc.ICECandidateInit) error {
	raw, err := json.Marshal(candidate)
	if err != nil {
		return fmt.Errorf("marshal candidate: %w", err)
	}
	return c.emit(ws.EventICECandidate, ws.CandidatePayload{Target: target, Candidate: raw})
}

// BindManager routes incoming signaling events into the peer connection
// manager and returns a function removing the subscriptions.
func (c *Client) BindManager(manager *rtc.Manager) func() {
	unsubscribes := []func(){
		c.Subscribe(ws.EventExistingParts, func(body json.RawMessage) {
			var participants []rtc.Participant
			if err := json.Unmarshal(body, &participants); err != nil {
				c.logger.Error("decode existing-participants", "err", err)
				return
			}
			if err := manager.HandleExistingParticipants(participants); err != nil {
				c.logger.Error("dial existing participants", "err", err)
			}
		}),
		c.Subscribe(ws.EventOffer, func(body json.RawMessage) {
			var payload ws.OfferPayload
			if err := json.Unmarshal(body, &payload); err != nil {
				c.logger.Error("decode offer", "err", err)
				return
			}
			if err := manager.HandleOffer(payload.Caller, payload.CallerUserID, payload.CallerUserName, payload.SDP); err != nil {
				c.logger.Error("handle offer", "from", payload.Caller, "err", err)
			}
		}),
		c.Subscribe(ws.EventAnswer, func(body json.RawMessage) {
			var payload ws.AnswerPayload
			if err := json.Unmarshal(body, &payload); err != nil {
				c.logger.Error("decode answer", "err", err)
				return
			}
			if err := manager.HandleAnswer(payload.Answerer, payload.SDP); err != nil {
				c.logger.Error("handle answer", "from", payload.Answerer, "err", err)
			}
		}),
		c.Subscribe(ws.EventICECandidate, func(body json.RawMessage) {
			var payload ws.CandidatePayload
			if err := json.Unmarshal(body, &payload); err != nil {
				c.logger.Error("decode candidate", "err", err)
				return
			}
			var candidate webrtc.ICECandidateInit
			if err := json.Unmarshal(payload.Candidate, &candidate); err != nil {
				c.logger.Error("decode candidate init", "err", err)
				return
			}
			if err := manager.HandleCandidate(payload.From, candidate); err != nil {
				c.logger.Error("handle candidate", "from", payload.From, "err", err)
			}
		}),
		c.Subscribe(ws.EventUserLeft, func(body json.RawMessage) {
			var payload ws.UserLeftPayload
			if err := json.Unmarshal(body, &payload); err != nil {
				c.logger.Error("decode user-left", "err", err)
				return
			}
			manager.HandleUserLeft(payload.SocketID)
		}),
	}

	return func() {
		for _, unsubscribe := range unsubscribes {
			unsubscribe()
		}
	}
}

// Close tears the connection down. Safe to call more than once.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait),
		)
		c.conn.Close()
	})
	return nil
}

func (c *Client) emit(event string, body interface{}) error {
	select {
	case c.out <- &ws.OutPacket{Type: event, Body: body}:
		return nil
	case <-c.done:
		return ErrClosed
	}
}

func (c *Client) readLoop() {
	defer c.Close()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Error("read", "err", err)
			}
			return
		}

		var packet struct {
			Type string          `json:"type"`
			Body json.RawMessage `json:"body"`
		}
		if err := json.Unmarshal(data, &packet); err != nil {
			c.logger.Error("decode packet", "err", err)
			continue
		}
		c.dispatch(packet.Type, packet.Body)
	}
}

func (c *Client) dispatch(event string, body json.RawMessage) {
	c.mu.Lock()
	handlers := make([]Handler, 0, len(c.handlers[event]))
	for _, handler := range c.handlers[event] {
		handlers = append(handlers, handler)
	}
	c.mu.Unlock()

	for _, handler := range handlers {
		handler(body)
	}
}

func (c *Client) writeLoop() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case packet := <-c.out:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(packet); err != nil {
				c.logger.Error("write", "err", err)
				c.Close()
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}
		case <-c.done:
			return
		}
	}
}
