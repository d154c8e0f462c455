package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/gorilla/websocket"

	"example.com/campus-chat/models"
)

type InPacket struct {
	context  context.Context `json:"-"`
	Sender   string          `json:"-"`
	Identity models.Identity `json:"-"`
	Type     string          `json:"type"`
	Body     json.RawMessage `json:"body"`
}

func (p *InPacket) Context() context.Context {
	if p.context == nil {
		return context.Background()
	}
	return p.context
}

type OutPacket struct {
	Type string      `json:"type"`
	Body interface{} `json:"body"`
}

func partiallyDecodeInPacket(t int, r io.Reader) (*InPacket, error) {
	if t != websocket.TextMessage {
		return nil, fmt.Errorf("unexpected message type: %d", t)
	}

	var packet InPacket
	if err := json.NewDecoder(r).Decode(&packet); err != nil {
		return nil, fmt.Errorf("json.Decoder.Decode: %w", err)
	}
	return &packet, nil
}

func encodeOutPacket(f func(t int) (io.WriteCloser, error), packet *OutPacket) error {
	w, err := f(websocket.TextMessage)
	if err != nil {
		return fmt.Errorf("NextWriter: %w", err)
	}
	defer w.Close()

	if err := json.NewEncoder(w).Encode(packet); err != nil {
		return fmt.Errorf("json.Encoder.Encode: %w", err)
	}

	return nil
}
