// internal/realtime/protocol_test.go
package realtime

import (
	"testing"
)

func TestMessageEncodeDecode(t *testing.T) {
	msg, err := NewMessage(EventNotification, &NotificationPayload{
		ID:      "n1",
		Type:    TypeSuccess,
		Title:   "Orden lista",
		Message: "Su vehículo está listo",
		Data:    map[string]any{"orderId": "o1"},
	})
	if err != nil {
		t.Fatalf("NewMessage failed: %v", err)
	}

	data, err := msg.Encode()
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	decoded, err := DecodeMessage(data)
	if err != nil {
		t.Fatalf("DecodeMessage failed: %v", err)
	}
	if decoded.Event != EventNotification {
		t.Errorf("expected event %s, got %s", EventNotification, decoded.Event)
	}

	var payload NotificationPayload
	if err := decoded.DecodePayload(&payload); err != nil {
		t.Fatalf("DecodePayload failed: %v", err)
	}
	if payload.Title != "Orden lista" || payload.Type != TypeSuccess {
		t.Errorf("payload mismatch: %+v", payload)
	}
}

func TestDecodeMessageErrors(t *testing.T) {
	if _, err := DecodeMessage([]byte("not json")); err == nil {
		t.Error("expected error for invalid JSON")
	}
	if _, err := DecodeMessage([]byte(`{"payload": {}}`)); err == nil {
		t.Error("expected error for missing event")
	}
}

func TestDecodePayloadEmpty(t *testing.T) {
	msg := &Message{Event: EventJoinUserRoom}
	var payload JoinUserRoomPayload
	if err := msg.DecodePayload(&payload); err == nil {
		t.Error("expected error for empty payload")
	}
}

func TestNewMessageNilPayload(t *testing.T) {
	msg, err := NewMessage(EventJoinAdminRoom, nil)
	if err != nil {
		t.Fatalf("NewMessage failed: %v", err)
	}
	data, err := msg.Encode()
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	decoded, err := DecodeMessage(data)
	if err != nil {
		t.Fatalf("DecodeMessage failed: %v", err)
	}
	if len(decoded.Payload) != 0 {
		t.Errorf("expected empty payload, got %s", decoded.Payload)
	}
}
