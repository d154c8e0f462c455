package ws

import (
	"encoding/json"
	"time"
)

// Event names carried over the persistent connection. Offer, answer and
// ice-candidate are bidirectional: the server relays them verbatim to the
// target connection, re-tagged with the sender's connection id.
const (
	EventJoinRoom      = "join-room"
	EventLeaveRoom     = "leave-room"
	EventSendMessage   = "send-message"
	EventReceiveMsg    = "receive-message"
	EventJoinVideo     = "join-video-room"
	EventLeaveVideo    = "leave-video-room"
	EventExistingParts = "existing-participants"
	EventUserJoined    = "user-joined"
	EventUserLeft      = "user-left"
	EventOffer         = "offer"
	EventAnswer        = "answer"
	EventICECandidate  = "ice-candidate"
)

type JoinRoomPayload struct {
	RoomID string `json:"roomId" validate:"required"`
}

// SendMessagePayload carries a chat message from a client. SenderID and
// SenderName are accepted for wire compatibility but the relay stamps the
// fan-out with the connection's authenticated identity instead.
type SendMessagePayload struct {
	SenderID   string `json:"senderId"`
	SenderName string `json:"senderName"`
	Text       string `json:"text" validate:"required"`
	RoomID     string `json:"roomId" validate:"required"`
}

type ReceiveMessagePayload struct {
	SenderID   string    `json:"senderId"`
	SenderName string    `json:"senderName"`
	Text       string    `json:"text"`
	RoomID     string    `json:"roomId"`
	Timestamp  time.Time `json:"timestamp"`
}

// JoinVideoRoomPayload announces presence in a video room. UserID and
// UserName are accepted for wire compatibility; the relay registers the
// connection's authenticated identity.
type JoinVideoRoomPayload struct {
	RoomID   string `json:"roomId" validate:"required"`
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
}

type LeaveVideoRoomPayload struct {
	RoomID string `json:"roomId" validate:"required"`
}

// ParticipantPayload describes one video-room member to its peers.
type ParticipantPayload struct {
	SocketID string `json:"socketId"`
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
}

type UserLeftPayload struct {
	SocketID string `json:"socketId"`
}

// OfferPayload is sent client->server with Target set; the relay rewrites it
// so the receiver sees Caller instead, with the caller identity taken from
// the sending connection.
type OfferPayload struct {
	Target         string `json:"target,omitempty"`
	Caller         string `json:"caller,omitempty"`
	SDP            string `json:"sdp"`
	CallerUserID   string `json:"callerUserId"`
	CallerUserName string `json:"callerUserName"`
}

type AnswerPayload struct {
	Target   string `json:"target,omitempty"`
	Answerer string `json:"answerer,omitempty"`
	SDP      string `json:"sdp"`
}

type CandidatePayload struct {
	Target    string          `json:"target,omitempty"`
	From      string          `json:"from,omitempty"`
	Candidate json.RawMessage `json:"candidate"`
}
