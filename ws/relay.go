package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/go-playground/validator/v10"

	"example.com/campus-chat/store"
)

var validate = validator.New()

// Relay forwards events between connections without interpreting payload
// content beyond routing keys. All operations are best-effort: a missing
// target is a silent no-op, and persistence failures never block delivery.
type Relay struct {
	registry *RoomRegistry
	store    store.MessageStore
	logger   *slog.Logger
	// appendTimeout bounds the best-effort history append.
	appendTimeout time.Duration
}

type RelayOption func(*Relay)

func WithRelayLogger(logger *slog.Logger) RelayOption {
	return func(rl *Relay) {
		rl.logger = logger
	}
}

func NewRelay(registry *RoomRegistry, messageStore store.MessageStore, opts ...RelayOption) *Relay {
	rl := &Relay{
		registry: registry,
		store:    messageStore,
		logger: slog.New(slog.NewTextHandler(os.Stdout,
			&slog.HandlerOptions{Level: slog.LevelInfo})),
		appendTimeout: time.Second * 5,
	}
	for _, opt := range opts {
		opt(rl)
	}
	return rl
}

// Bind registers the relay's packet handlers on the router.
// The disconnect hook must be wired separately via Hub.OnDisconnect(relay.HandleDisconnect).
func (rl *Relay) Bind(router *Router) {
	router.On(EventJoinRoom, rl.HandleJoinRoom)
	router.On(EventLeaveRoom, rl.HandleLeaveRoom)
	router.On(EventSendMessage, rl.HandleSendMessage)
	router.On(EventJoinVideo, rl.HandleJoinVideoRoom)
	router.On(EventLeaveVideo, rl.HandleLeaveVideoRoom)
	router.On(EventOffer, rl.HandleOffer)
	router.On(EventAnswer, rl.HandleAnswer)
	router.On(EventICECandidate, rl.HandleCandidate)
}

func (rl *Relay) HandleJoinRoom(_ HubActions, p *InPacket) error {
	var payload JoinRoomPayload
	if err := json.Unmarshal(p.Body, &payload); err != nil {
		return fmt.Errorf("Unmarshal: %w", err)
	}
	if err := validate.Struct(&payload); err != nil {
		return fmt.Errorf("validate: %w", err)
	}
	rl.registry.JoinChatRoom(p.Sender, payload.RoomID)
	return nil
}

func (rl *Relay) HandleLeaveRoom(_ HubActions, p *InPacket) error {
	var payload JoinRoomPayload
	if err := json.Unmarshal(p.Body, &payload); err != nil {
		return fmt.Errorf("Unmarshal: %w", err)
	}
	rl.registry.LeaveChatRoom(p.Sender, payload.RoomID)
	return nil
}

// HandleSendMessage fans a chat message out to every member of the room's
// chat member set, including the sender: the sender's own UI updates via the
// same receive-message path as everyone else. The sender fields come from
// the connection's authenticated identity, never from the payload. The
// message is appended to the store afterwards, asynchronously, so
// persistence can never stall delivery.
func (rl *Relay) HandleSendMessage(a HubActions, p *InPacket) error {
	var payload SendMessagePayload
	if err := json.Unmarshal(p.Body, &payload); err != nil {
		return fmt.Errorf("Unmarshal: %w", err)
	}
	if err := validate.Struct(&payload); err != nil {
		return fmt.Errorf("validate: %w", err)
	}

	sender := p.Identity
	out := ReceiveMessagePayload{
		SenderID:   sender.UserID,
		SenderName: sender.Name,
		Text:       payload.Text,
		RoomID:     payload.RoomID,
		Timestamp:  time.Now().UTC(),
	}

	members := rl.registry.ChatRoomMembers(payload.RoomID)
	a.BroadcastToClients(&OutPacket{Type: EventReceiveMsg, Body: out}, members...)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), rl.appendTimeout)
		defer cancel()
		_, err := rl.store.Append(ctx, store.MessageCreateInput{
			RoomID:     payload.RoomID,
			SenderID:   sender.UserID,
			SenderName: sender.Name,
			Body:       payload.Text,
			SentAt:     out.Timestamp,
		})
		if err != nil {
			rl.logger.Error(fmt.Sprintf("message store append: %v", err))
		}
	}()

	return nil
}

func (rl *Relay) HandleJoinVideoRoom(a HubActions, p *InPacket) error {
	var payload JoinVideoRoomPayload
	if err := json.Unmarshal(p.Body, &payload); err != nil {
		return fmt.Errorf("Unmarshal: %w", err)
	}
	if err := validate.Struct(&payload); err != nil {
		return fmt.Errorf("validate: %w", err)
	}

	existing := rl.registry.JoinVideoRoom(p.Sender, payload.RoomID, p.Identity.UserID, p.Identity.Name)

	participants := make([]ParticipantPayload, 0, len(existing))
	others := make([]string, 0, len(existing))
	for _, m := range existing {
		participants = append(participants, ParticipantPayload{
			SocketID: m.ConnID,
			UserID:   m.UserID,
			UserName: m.UserName,
		})
		others = append(others, m.ConnID)
	}

	// the joiner gets the pre-join snapshot so it can initiate an offer to
	// each existing member
	a.BroadcastToClients(&OutPacket{Type: EventExistingParts, Body: participants}, p.Sender)

	// existing members wait passively for the joiner's offer
	a.BroadcastToClients(&OutPacket{Type: EventUserJoined, Body: ParticipantPayload{
		SocketID: p.Sender,
		UserID:   p.Identity.UserID,
		UserName: p.Identity.Name,
	}}, others...)

	return nil
}

func (rl *Relay) HandleLeaveVideoRoom(a HubActions, p *InPacket) error {
	var payload LeaveVideoRoomPayload
	if err := json.Unmarshal(p.Body, &payload); err != nil {
		return fmt.Errorf("Unmarshal: %w", err)
	}
	remaining := rl.registry.LeaveVideoRoom(p.Sender, payload.RoomID)
	if len(remaining) > 0 {
		a.BroadcastToClients(&OutPacket{
			Type: EventUserLeft,
			Body: UserLeftPayload{SocketID: p.Sender},
		}, remaining...)
	}
	return nil
}

func (rl *Relay) HandleOffer(a HubActions, p *InPacket) error {
	var payload OfferPayload
	if err := json.Unmarshal(p.Body, &payload); err != nil {
		return fmt.Errorf("Unmarshal: %w", err)
	}
	if payload.Target == "" {
		return fmt.Errorf("offer: missing target")
	}
	target := payload.Target
	payload.Target = ""
	payload.Caller = p.Sender
	payload.CallerUserID = p.Identity.UserID
	payload.CallerUserName = p.Identity.Name
	a.BroadcastToClients(&OutPacket{Type: EventOffer, Body: payload}, target)
	return nil
}

func (rl *Relay) HandleAnswer(a HubActions, p *InPacket) error {
	var payload AnswerPayload
	if err := json.Unmarshal(p.Body, &payload); err != nil {
		return fmt.Errorf("Unmarshal: %w", err)
	}
	if payload.Target == "" {
		return fmt.Errorf("answer: missing target")
	}
	target := payload.Target
	payload.Target = ""
	payload.Answerer = p.Sender
	a.BroadcastToClients(&OutPacket{Type: EventAnswer, Body: payload}, target)
	return nil
}

func (rl *Relay) HandleCandidate(a HubActions, p *InPacket) error {
	var payload CandidatePayload
	if err := json.Unmarshal(p.Body, &payload); err != nil {
		return fmt.Errorf("Unmarshal: %w", err)
	}
	if payload.Target == "" {
		return fmt.Errorf("ice-candidate: missing target")
	}
	target := payload.Target
	payload.Target = ""
	payload.From = p.Sender
	a.BroadcastToClients(&OutPacket{Type: EventICECandidate, Body: payload}, target)
	return nil
}

// HandleDisconnect treats an ungraceful disconnect identically to explicit
// leave-room and leave-video-room for every room the connection occupied,
// so no phantom participants are left behind.
func (rl *Relay) HandleDisconnect(a HubActions, c Conn) {
	left := rl.registry.DropConn(c.ID())
	for _, remaining := range left {
		if len(remaining) == 0 {
			continue
		}
		a.BroadcastToClients(&OutPacket{
			Type: EventUserLeft,
			Body: UserLeftPayload{SocketID: c.ID()},
		}, remaining...)
	}
}
