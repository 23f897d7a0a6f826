// Package realtime implements the notification fabric: a websocket
// connection registry, room-based fan-out and a fire-and-forget dispatcher.
// It carries signals to refetch, never authoritative data; the REST layer
// stays the durable fallback path.
package realtime

import (
	"encoding/json"
	"fmt"
)

// Message is the wire envelope for both directions.
type Message struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Client events
const (
	EventAuthenticate  = "authenticate"
	EventJoinAdminRoom = "join-admin-room"
	EventJoinUserRoom  = "join-user-room"
	EventResponse      = "notification-response"
)

// Server events
const (
	EventAuthenticated      = "authenticated"
	EventNotification       = "notification"
	EventAdminNotification  = "admin-notification"
	EventSystemNotification = "system-notification"
	EventDashboardUpdate    = "dashboard-update"
	EventOrderUpdate        = "service-order-update"
	EventInventoryUpdate    = "inventory-update"
)

// NotificationType is the closed set of notification severities.
type NotificationType string

const (
	TypeInfo    NotificationType = "info"
	TypeSuccess NotificationType = "success"
	TypeWarning NotificationType = "warning"
	TypeError   NotificationType = "error"
)

// NotificationPayload is the transient push body. The fabric does not retain
// it; durable storage belongs to the notifications store.
type NotificationPayload struct {
	ID               string           `json:"id"`
	Type             NotificationType `json:"type"`
	Title            string           `json:"title"`
	Message          string           `json:"message"`
	Category         string           `json:"category,omitempty"`
	UserID           string           `json:"userId,omitempty"`
	RequiresResponse bool             `json:"requiresResponse,omitempty"`
	Data             map[string]any   `json:"data,omitempty"`
}

// AuthenticatePayload is the client's session handshake.
type AuthenticatePayload struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
}

// AuthenticatedPayload acknowledges a handshake.
type AuthenticatedPayload struct {
	Success bool   `json:"success"`
	UserID  string `json:"userId,omitempty"`
	Role    string `json:"role,omitempty"`
	Message string `json:"message,omitempty"`
}

// JoinUserRoomPayload is the manual user-room join request.
type JoinUserRoomPayload struct {
	UserID string `json:"userId"`
}

// ResponsePayload is a user's reply to a requires-response notification.
type ResponsePayload struct {
	NotificationID string `json:"notificationId"`
	Response       string `json:"response"`
}

// UpdateSignal is the marker payload of a cache-invalidation push.
type UpdateSignal struct {
	Resource string         `json:"resource"`
	Data     map[string]any `json:"data,omitempty"`
}

// NewMessage builds an envelope around any JSON-serializable payload.
func NewMessage(event string, payload any) (*Message, error) {
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s payload: %w", event, err)
		}
		raw = data
	}
	return &Message{Event: event, Payload: raw}, nil
}

// Encode serializes a message to JSON bytes.
func (m *Message) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// DecodeMessage parses JSON bytes into a Message.
func DecodeMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("invalid message format: %w", err)
	}
	if msg.Event == "" {
		return nil, fmt.Errorf("message missing event")
	}
	return &msg, nil
}

// DecodePayload unmarshals the envelope payload into dst.
func (m *Message) DecodePayload(dst any) error {
	if len(m.Payload) == 0 {
		return fmt.Errorf("%s: empty payload", m.Event)
	}
	if err := json.Unmarshal(m.Payload, dst); err != nil {
		return fmt.Errorf("%s: invalid payload: %w", m.Event, err)
	}
	return nil
}
