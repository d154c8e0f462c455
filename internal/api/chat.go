package api

import (
	"net/http"
	"strconv"
	"time"

	"example.com/campus-chat/models"
	"example.com/campus-chat/store"
)

type ChatHandler struct {
	messageStore store.MessageStore
}

func NewChatHandler(messageStore store.MessageStore) *ChatHandler {
	return &ChatHandler{messageStore: messageStore}
}

type MessageResponse struct {
	ID         int       `json:"id"`
	RoomID     string    `json:"roomId"`
	SenderID   string    `json:"senderId"`
	SenderName string    `json:"senderName"`
	Text       string    `json:"text"`
	Timestamp  time.Time `json:"timestamp"`
}

func NewMessageResponse(message models.Message) MessageResponse {
	return MessageResponse{
		ID:         message.ID,
		RoomID:     message.RoomID,
		SenderID:   message.SenderID,
		SenderName: message.SenderName,
		Text:       message.Body,
		Timestamp:  message.SentAt,
	}
}

func NewMessagesResponse(messages []models.Message) []MessageResponse {
	messagesResponse := make([]MessageResponse, 0, len(messages))
	for _, message := range messages {
		messagesResponse = append(messagesResponse, NewMessageResponse(message))
	}
	return messagesResponse
}

// GetRoomMessagesHandler serves chat history replay: messages for the room
// ordered oldest-first, capped at 100. It is hit once per room join by the
// client, independent of the live relay path.
func (h *ChatHandler) GetRoomMessagesHandler(w http.ResponseWriter, r *http.Request) error {
	roomID := r.PathValue("roomID")

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return NewApiError("invalid limit", http.StatusBadRequest)
		}
		limit = parsed
	}

	messages, err := h.messageStore.History(r.Context(), roomID, limit)
	if err != nil {
		return err
	}

	return WriteJsonResponse(w, NewMessagesResponse(messages))
}
