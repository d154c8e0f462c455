package store

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"

	"example.com/campus-chat/models"
)

var (
	// ErrInvalidMessage is returned when a message fails validation.
	ErrInvalidMessage = errors.New("invalid message")
)

// DefaultHistoryLimit bounds the cost of history replay on room join.
const DefaultHistoryLimit = 100

var validate = validator.New()

// MessageStore is an append-only durable log of chat messages, queried by
// room. Append failures are logged by callers, never propagated to the relay
// path: chat liveness must not depend on persistence availability.
type MessageStore interface {
	// Append inserts a message. There is no uniqueness constraint beyond
	// natural insertion order. The created message is returned with its
	// assigned ID.
	Append(ctx context.Context, input MessageCreateInput) (*models.Message, error)

	// History returns messages for the room ordered oldest-first, capped at
	// limit. A limit of zero or anything above DefaultHistoryLimit is
	// clamped to DefaultHistoryLimit.
	History(ctx context.Context, roomID string, limit int) ([]models.Message, error)
}

// MessageCreateInput is the input for appending a message.
type MessageCreateInput struct {
	RoomID     string    `json:"room_id" validate:"required"`
	SenderID   string    `json:"sender_id" validate:"required"`
	SenderName string    `json:"sender_name" validate:"required"`
	Body       string    `json:"body" validate:"required"`
	SentAt     time.Time `json:"sent_at"`
}

// Validate validates the message input.
func (m *MessageCreateInput) Validate() error {
	if err := validate.Struct(m); err != nil {
		return ErrInvalidMessage
	}
	return nil
}
