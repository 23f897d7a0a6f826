package shop

import (
	"context"
	"fmt"

	"github.com/davem/wrenchd/internal/log"
	"github.com/davem/wrenchd/internal/notify"
	"github.com/davem/wrenchd/internal/realtime"
)

// OrderMailer sends order lifecycle mail to clients. Mail failures are
// logged, never propagated: the status change already happened.
type OrderMailer interface {
	SendOrderReady(ctx context.Context, client *Client, vehicle *Vehicle, order *ServiceOrder) error
	SendOrderDelivered(ctx context.Context, client *Client, vehicle *Vehicle, order *ServiceOrder) error
}

// Service coordinates the stores and fans state changes out to the
// notification emitter, the realtime dispatcher and the mailer.
type Service struct {
	Clients   *ClientStore
	Vehicles  *VehicleStore
	Orders    *OrderStore
	Inventory *InventoryStore

	emitter    *notify.Emitter
	dispatcher *realtime.Dispatcher
	mailer     OrderMailer
}

// NewService wires a shop Service. mailer may be nil when mail is disabled.
func NewService(clients *ClientStore, vehicles *VehicleStore, orders *OrderStore,
	inventory *InventoryStore, emitter *notify.Emitter, dispatcher *realtime.Dispatcher,
	mailer OrderMailer) *Service {
	return &Service{
		Clients:    clients,
		Vehicles:   vehicles,
		Orders:     orders,
		Inventory:  inventory,
		emitter:    emitter,
		dispatcher: dispatcher,
		mailer:     mailer,
	}
}

// statusNotice maps each client-visible status to its notification text.
type statusNotice struct {
	Type    realtime.NotificationType
	Title   string
	Message string
}

var statusNotices = map[OrderStatus]statusNotice{
	StatusDiagnosing:   {realtime.TypeInfo, "Diagnóstico en curso", "Estamos diagnosticando su vehículo %s."},
	StatusInProgress:   {realtime.TypeInfo, "Reparación en progreso", "Comenzamos a trabajar en su vehículo %s."},
	StatusWaitingParts: {realtime.TypeWarning, "Esperando refacciones", "Su orden del vehículo %s está en espera de refacciones."},
	StatusReady:        {realtime.TypeSuccess, "Orden lista", "Su vehículo %s está listo para recoger."},
	StatusDelivered:    {realtime.TypeSuccess, "Vehículo entregado", "Su vehículo %s fue entregado. ¡Gracias por su preferencia!"},
	StatusCancelled:    {realtime.TypeError, "Orden cancelada", "La orden de su vehículo %s fue cancelada."},
}

// CreateOrder opens an order and announces it to the admin room.
func (s *Service) CreateOrder(o *ServiceOrder) error {
	vehicle, err := s.Vehicles.Get(o.VehicleID)
	if err != nil {
		return err
	}
	o.ClientID = vehicle.ClientID

	if err := s.Orders.Create(o); err != nil {
		return err
	}

	if _, err := s.emitter.NotifyAdmins(notify.Draft{
		Type:     realtime.TypeInfo,
		Title:    "Nueva orden de servicio",
		Message:  fmt.Sprintf("Ingresó el vehículo %s %s (%s).", vehicle.Make, vehicle.Model, vehicle.Plate),
		Category: "service-order",
		Data:     map[string]any{"orderId": o.ID},
	}); err != nil {
		log.Error("failed to emit new-order notification", "order", o.ID, "error", err)
	}

	s.signalOrderChange(o)
	return nil
}

// SetOrderStatus moves an order through its lifecycle and notifies the
// client, the admin room and any open dashboards.
func (s *Service) SetOrderStatus(ctx context.Context, id string, to OrderStatus) (*ServiceOrder, error) {
	order, err := s.Orders.SetStatus(id, to)
	if err != nil {
		return nil, err
	}

	client, err := s.Clients.Get(order.ClientID)
	if err != nil {
		return nil, err
	}
	vehicle, err := s.Vehicles.Get(order.VehicleID)
	if err != nil {
		return nil, err
	}

	if notice, ok := statusNotices[to]; ok && client.UserID != "" {
		if _, err := s.emitter.NotifyUser(client.UserID, notify.Draft{
			Type:     notice.Type,
			Title:    notice.Title,
			Message:  fmt.Sprintf(notice.Message, vehicle.Plate),
			Category: "service-order",
			Data:     map[string]any{"orderId": order.ID, "status": string(to)},
		}); err != nil {
			log.Error("failed to emit status notification", "order", order.ID, "error", err)
		}
	}

	if _, err := s.emitter.NotifyAdmins(notify.Draft{
		Type:     realtime.TypeInfo,
		Title:    "Orden actualizada",
		Message:  fmt.Sprintf("La orden del vehículo %s pasó a %s.", vehicle.Plate, to),
		Category: "service-order",
		Data:     map[string]any{"orderId": order.ID, "status": string(to)},
	}); err != nil {
		log.Error("failed to emit admin status notification", "order", order.ID, "error", err)
	}

	s.signalOrderChange(order)
	s.sendStatusMail(ctx, client, vehicle, order)
	return order, nil
}

// AddOrderLine appends a line to an order. A parts line deducts stock and
// may raise a low-stock alert.
func (s *Service) AddOrderLine(orderID string, line *OrderLine) error {
	if line.ItemID != "" {
		item, err := s.Inventory.Adjust(line.ItemID, -line.Quantity)
		if err != nil {
			return err
		}
		if line.Description == "" {
			line.Description = item.Name
		}
		if line.UnitPrice == 0 {
			line.UnitPrice = item.UnitPrice
		}
		s.checkLowStock(item)
		s.dispatcher.SignalInventory(map[string]any{"itemId": item.ID})
	}

	if err := s.Orders.AddLine(orderID, line); err != nil {
		// The stock deduction stands; the operator restocks explicitly if
		// the line never materializes.
		return err
	}

	order, err := s.Orders.Get(orderID)
	if err != nil {
		return err
	}
	s.signalOrderChange(order)
	return nil
}

// RemoveOrderLine deletes a line. A parts line returns its stock.
func (s *Service) RemoveOrderLine(orderID string, lineID int64) error {
	order, err := s.Orders.Get(orderID)
	if err != nil {
		return err
	}

	var removed *OrderLine
	for i := range order.Lines {
		if order.Lines[i].ID == lineID {
			removed = &order.Lines[i]
			break
		}
	}
	if removed == nil {
		return ErrNotFound
	}

	if err := s.Orders.RemoveLine(orderID, lineID); err != nil {
		return err
	}

	if removed.ItemID != "" {
		if _, err := s.Inventory.Adjust(removed.ItemID, removed.Quantity); err != nil {
			log.Error("failed to restock removed line", "item", removed.ItemID, "error", err)
		} else {
			s.dispatcher.SignalInventory(map[string]any{"itemId": removed.ItemID})
		}
	}

	order, err = s.Orders.Get(orderID)
	if err != nil {
		return err
	}
	s.signalOrderChange(order)
	return nil
}

// AdjustStock changes an item's quantity, alerting the admin room when the
// item drops to or below its minimum.
func (s *Service) AdjustStock(id string, delta int) (*InventoryItem, error) {
	item, err := s.Inventory.Adjust(id, delta)
	if err != nil {
		return nil, err
	}
	if delta < 0 {
		s.checkLowStock(item)
	}
	s.dispatcher.SignalInventory(map[string]any{"itemId": item.ID})
	return item, nil
}

func (s *Service) checkLowStock(item *InventoryItem) {
	if !item.Low() {
		return
	}
	if _, err := s.emitter.NotifyAdmins(notify.Draft{
		Type:     realtime.TypeWarning,
		Title:    "Stock bajo",
		Message:  fmt.Sprintf("Quedan %d unidades de %s (%s).", item.Quantity, item.Name, item.SKU),
		Category: "inventory",
		Priority: notify.PriorityHigh,
		Data:     map[string]any{"itemId": item.ID, "quantity": item.Quantity},
	}); err != nil {
		log.Error("failed to emit low-stock notification", "item", item.ID, "error", err)
	}
}

func (s *Service) signalOrderChange(order *ServiceOrder) {
	var userID string
	if client, err := s.Clients.Get(order.ClientID); err == nil {
		userID = client.UserID
	}
	s.dispatcher.SignalOrders(userID, map[string]any{
		"orderId": order.ID,
		"status":  string(order.Status),
	})
	s.dispatcher.SignalDashboard(map[string]any{"orderId": order.ID})
}

func (s *Service) sendStatusMail(ctx context.Context, client *Client, vehicle *Vehicle, order *ServiceOrder) {
	if s.mailer == nil || client.Email == "" {
		return
	}
	var err error
	switch order.Status {
	case StatusReady:
		err = s.mailer.SendOrderReady(ctx, client, vehicle, order)
	case StatusDelivered:
		err = s.mailer.SendOrderDelivered(ctx, client, vehicle, order)
	default:
		return
	}
	if err != nil {
		log.Error("failed to send order mail", "order", order.ID, "to", client.Email, "error", err)
	}
}
