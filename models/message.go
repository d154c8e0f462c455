package models

import (
	"time"
)

// Message is a chat message persisted for history replay.
// Messages are immutable once stored; the relay never consults them for
// live delivery.
type Message struct {
	ID         int       `json:"id"`
	RoomID     string    `json:"room_id"`
	SenderID   string    `json:"sender_id"`
	SenderName string    `json:"sender_name"`
	Body       string    `json:"body"`
	SentAt     time.Time `json:"sent_at"`
}

// Identity is the user identity attached to a connection by the
// authentication layer before any room operation is accepted.
type Identity struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
}
