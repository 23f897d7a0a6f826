// internal/realtime/dispatcher.go
package realtime

import (
	"fmt"

	"github.com/davem/wrenchd/internal/log"
)

// Dispatcher resolves a target scope to live sessions and pushes payloads.
// Every operation is fire-and-forget: no acknowledgment, no retry, no
// delivery guarantee. An offline target silently misses the push and relies
// on the notifications store for eventual visibility.
type Dispatcher struct {
	registry *Registry
	router   *Router
}

// NewDispatcher creates a dispatcher over the given registry and router.
// It is constructed once in the server composition root and injected into
// whatever handlers need to trigger notifications.
func NewDispatcher(registry *Registry, router *Router) *Dispatcher {
	return &Dispatcher{registry: registry, router: router}
}

// PushToUser delivers the payload to the user's live session. A silent
// no-op when the user is offline.
func (d *Dispatcher) PushToUser(userID string, payload *NotificationPayload) {
	sessions := d.router.Resolve(User(userID))
	if len(sessions) == 0 {
		log.Debug("realtime: push to offline user dropped", "user_id", userID)
		return
	}
	for _, s := range sessions {
		s.Send(EventNotification, payload)
	}
}

// PushToAdmins delivers the payload to every session in the admin room at
// call time.
func (d *Dispatcher) PushToAdmins(payload *NotificationPayload) {
	for _, s := range d.router.Resolve(AdminBroadcast()) {
		s.Send(EventAdminNotification, payload)
	}
}

// PushToAll delivers the payload to every connected session unconditionally.
func (d *Dispatcher) PushToAll(payload *NotificationPayload) {
	for _, s := range d.router.Resolve(GlobalBroadcast()) {
		s.Send(EventSystemNotification, payload)
	}
}

// SignalDashboard tells admin sessions to refetch dashboard data.
func (d *Dispatcher) SignalDashboard(data map[string]any) {
	d.signal(EventDashboardUpdate, AdminBroadcast(), "dashboard", data)
}

// SignalOrders tells admin sessions, and the order's client if given, to
// refetch service-order data.
func (d *Dispatcher) SignalOrders(userID string, data map[string]any) {
	d.signal(EventOrderUpdate, AdminBroadcast(), "service-orders", data)
	if userID != "" {
		d.signal(EventOrderUpdate, User(userID), "service-orders", data)
	}
}

// SignalInventory tells admin sessions to refetch inventory data.
func (d *Dispatcher) SignalInventory(data map[string]any) {
	d.signal(EventInventoryUpdate, AdminBroadcast(), "inventory", data)
}

func (d *Dispatcher) signal(event string, scope Scope, resource string, data map[string]any) {
	payload := &UpdateSignal{Resource: resource, Data: data}
	for _, s := range d.router.Resolve(scope) {
		s.Send(event, payload)
	}
}

// HandleResponse relays a client's reply to a requires-response notification
// as a fresh info push to the admin room. It is a notify-only side channel:
// the originating notification record is not updated here.
func (d *Dispatcher) HandleResponse(s *Session, notificationID, response string) {
	payload := &NotificationPayload{
		ID:       notificationID + "-response",
		Type:     TypeInfo,
		Title:    "Respuesta del cliente",
		Message:  fmt.Sprintf("El usuario %s respondió: %s", s.UserID, response),
		Category: "notification-response",
		Data: map[string]any{
			"notificationId": notificationID,
			"userId":         s.UserID,
			"response":       response,
		},
	}
	d.PushToAdmins(payload)
}
