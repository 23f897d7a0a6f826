// Package shop implements the repair-shop domain: clients, vehicles,
// service orders and inventory, with realtime echoes on state changes.
package shop

import "fmt"

// OrderStatus is the lifecycle state of a service order. The set is closed;
// the database enforces it with a CHECK constraint as well.
type OrderStatus string

const (
	StatusReceived     OrderStatus = "received"
	StatusDiagnosing   OrderStatus = "diagnosing"
	StatusInProgress   OrderStatus = "in_progress"
	StatusWaitingParts OrderStatus = "waiting_parts"
	StatusReady        OrderStatus = "ready"
	StatusDelivered    OrderStatus = "delivered"
	StatusCancelled    OrderStatus = "cancelled"
)

// transitions lists the allowed next states per state. Delivered and
// cancelled are terminal.
var transitions = map[OrderStatus][]OrderStatus{
	StatusReceived:     {StatusDiagnosing, StatusInProgress, StatusCancelled},
	StatusDiagnosing:   {StatusInProgress, StatusWaitingParts, StatusReady, StatusCancelled},
	StatusInProgress:   {StatusWaitingParts, StatusReady, StatusCancelled},
	StatusWaitingParts: {StatusInProgress, StatusReady, StatusCancelled},
	StatusReady:        {StatusDelivered, StatusInProgress, StatusCancelled},
	StatusDelivered:    {},
	StatusCancelled:    {},
}

// ParseOrderStatus validates a status string.
func ParseOrderStatus(s string) (OrderStatus, error) {
	status := OrderStatus(s)
	if _, ok := transitions[status]; !ok {
		return "", fmt.Errorf("invalid order status: %q", s)
	}
	return status, nil
}

// CanTransition reports whether an order may move from one status to
// another.
func CanTransition(from, to OrderStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether a status admits no further transitions.
func (s OrderStatus) Terminal() bool {
	return len(transitions[s]) == 0
}
