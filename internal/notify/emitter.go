package notify

import (
	"fmt"

	"github.com/davem/wrenchd/internal/ids"
	"github.com/davem/wrenchd/internal/log"
	"github.com/davem/wrenchd/internal/realtime"
)

// Draft is the caller-facing shape of a notification before it gets an ID
// and a row.
type Draft struct {
	Type             realtime.NotificationType
	Title            string
	Message          string
	Category         string
	Priority         Priority
	RequiresResponse bool
	Data             map[string]any
}

// Emitter persists notifications and echoes them over the realtime fabric.
// Persistence is the source of truth: if the insert fails the push is
// skipped, but a failed push never rolls back the row.
type Emitter struct {
	store      *Store
	dispatcher *realtime.Dispatcher
}

// NewEmitter creates an Emitter.
func NewEmitter(store *Store, dispatcher *realtime.Dispatcher) *Emitter {
	return &Emitter{store: store, dispatcher: dispatcher}
}

// NotifyUser stores a notification for one user and pushes it to their
// session if connected.
func (e *Emitter) NotifyUser(userID string, d Draft) (*Notification, error) {
	n, err := e.persist(userID, d)
	if err != nil {
		return nil, err
	}
	e.dispatcher.PushToUser(userID, payloadFor(n))
	return n, nil
}

// NotifyAdmins stores an admin-room notification and pushes it to every
// admin session.
func (e *Emitter) NotifyAdmins(d Draft) (*Notification, error) {
	n, err := e.persist("", d)
	if err != nil {
		return nil, err
	}
	e.dispatcher.PushToAdmins(payloadFor(n))
	return n, nil
}

// Broadcast stores a system notification and pushes it to every connected
// session.
func (e *Emitter) Broadcast(d Draft) (*Notification, error) {
	n, err := e.persist("", d)
	if err != nil {
		return nil, err
	}
	e.dispatcher.PushToAll(payloadFor(n))
	return n, nil
}

// Respond records a user's reply on the stored row and relays it to the
// admin room through the dispatcher.
func (e *Emitter) Respond(id, userID, response string) error {
	if err := e.store.SetResponse(id, userID, response); err != nil {
		return err
	}
	e.dispatcher.PushToAdmins(&realtime.NotificationPayload{
		ID:       id + "-response",
		Type:     realtime.TypeInfo,
		Title:    "Respuesta del cliente",
		Message:  fmt.Sprintf("El usuario %s respondió: %s", userID, response),
		Category: "notification-response",
		Data: map[string]any{
			"notificationId": id,
			"userId":         userID,
			"response":       response,
		},
	})
	return nil
}

func (e *Emitter) persist(userID string, d Draft) (*Notification, error) {
	if d.Type == "" {
		d.Type = realtime.TypeInfo
	}
	n := &Notification{
		ID:               ids.New(),
		UserID:           userID,
		Type:             d.Type,
		Title:            d.Title,
		Message:          d.Message,
		Category:         d.Category,
		Priority:         d.Priority,
		RequiresResponse: d.RequiresResponse,
		Data:             d.Data,
	}
	if err := e.store.Create(n); err != nil {
		log.Error("failed to persist notification", "title", d.Title, "error", err)
		return nil, err
	}
	return n, nil
}

func payloadFor(n *Notification) *realtime.NotificationPayload {
	return &realtime.NotificationPayload{
		ID:               n.ID,
		Type:             n.Type,
		Title:            n.Title,
		Message:          n.Message,
		Category:         n.Category,
		UserID:           n.UserID,
		RequiresResponse: n.RequiresResponse,
		Data:             n.Data,
	}
}
