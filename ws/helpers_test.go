package ws

import (
	"encoding/json"
	"testing"
	"time"

	"example.com/campus-chat/models"
)

// waitOrTimeout waits for fn to finish or times out.
func waitOrTimeout(timeout time.Duration, fn func()) bool {
	done := make(chan struct{})
	go func() {
		fn()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}

func mustBody(t *testing.T, v any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

// inPacket builds a packet as the hub would deliver it: the sender id and
// the authenticated identity are stamped by the connection layer, never
// taken from the payload.
func inPacket(t *testing.T, sender, packetType string, body any) *InPacket {
	t.Helper()
	return &InPacket{
		Sender:   sender,
		Identity: models.Identity{UserID: "u" + sender, Name: "User " + sender},
		Type:     packetType,
		Body:     mustBody(t, body),
	}
}
