package shop

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/davem/wrenchd/internal/db"
	"github.com/davem/wrenchd/internal/ids"
)

// ServiceOrder is one repair job on one vehicle.
type ServiceOrder struct {
	ID          string      `json:"id"`
	VehicleID   string      `json:"vehicleId"`
	ClientID    string      `json:"clientId"`
	Status      OrderStatus `json:"status"`
	Description string      `json:"description"`
	Diagnosis   string      `json:"diagnosis,omitempty"`
	Total       float64     `json:"total"`
	AssignedTo  string      `json:"assignedTo,omitempty"`
	Lines       []OrderLine `json:"lines,omitempty"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
	DeliveredAt *time.Time  `json:"deliveredAt,omitempty"`
}

// OrderLine is one labor or parts entry on an order. ItemID links parts
// lines to inventory.
type OrderLine struct {
	ID          int64   `json:"id"`
	OrderID     string  `json:"orderId"`
	ItemID      string  `json:"itemId,omitempty"`
	Description string  `json:"description"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unitPrice"`
}

// OrderFilter narrows List results. Zero values mean no constraint.
type OrderFilter struct {
	Status     OrderStatus
	ClientID   string
	VehicleID  string
	AssignedTo string
}

// OrderStore reads and writes service orders and their lines.
type OrderStore struct {
	db *db.DB
}

// NewOrderStore creates an OrderStore.
func NewOrderStore(database *db.DB) *OrderStore {
	return &OrderStore{db: database}
}

const orderColumns = `id, vehicle_id, client_id, status, description, diagnosis,
	total, assigned_to, created_at, updated_at, delivered_at`

// Create inserts an order in the received state and assigns its ID.
func (s *OrderStore) Create(o *ServiceOrder) error {
	o.ID = ids.New()
	o.Status = StatusReceived
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.Exec(`
		INSERT INTO service_orders (id, vehicle_id, client_id, status, description, diagnosis,
			total, assigned_to, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, 0, ?, ?, ?)
	`, o.ID, o.VehicleID, o.ClientID, string(o.Status), o.Description,
		nullable(o.Diagnosis), nullable(o.AssignedTo), now, now)
	if err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}
	o.Total = 0
	o.CreatedAt, _ = time.Parse(time.RFC3339, now)
	o.UpdatedAt = o.CreatedAt
	return nil
}

// Get returns an order with its lines.
func (s *OrderStore) Get(id string) (*ServiceOrder, error) {
	row := s.db.QueryRow(`SELECT `+orderColumns+` FROM service_orders WHERE id = ?`, id)
	o, err := scanOrder(row)
	if err != nil {
		return nil, err
	}
	o.Lines, err = s.lines(id)
	if err != nil {
		return nil, err
	}
	return o, nil
}

// List returns orders matching the filter, newest first, without lines.
func (s *OrderStore) List(f OrderFilter) ([]*ServiceOrder, error) {
	query := `SELECT ` + orderColumns + ` FROM service_orders WHERE 1=1`
	var args []any
	if f.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(f.Status))
	}
	if f.ClientID != "" {
		query += ` AND client_id = ?`
		args = append(args, f.ClientID)
	}
	if f.VehicleID != "" {
		query += ` AND vehicle_id = ?`
		args = append(args, f.VehicleID)
	}
	if f.AssignedTo != "" {
		query += ` AND assigned_to = ?`
		args = append(args, f.AssignedTo)
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	var out []*ServiceOrder
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// Update rewrites an order's descriptive fields. Status moves through
// SetStatus only.
func (s *OrderStore) Update(o *ServiceOrder) error {
	now := time.Now().UTC().Format(time.RFC3339)
	res, err := s.db.Exec(`
		UPDATE service_orders SET description = ?, diagnosis = ?, assigned_to = ?, updated_at = ?
		WHERE id = ?
	`, o.Description, nullable(o.Diagnosis), nullable(o.AssignedTo), now, o.ID)
	if err != nil {
		return fmt.Errorf("failed to update order: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	o.UpdatedAt, _ = time.Parse(time.RFC3339, now)
	return nil
}

// SetStatus moves an order to a new status, enforcing the transition table.
// Moving to delivered stamps delivered_at.
func (s *OrderStore) SetStatus(id string, to OrderStatus) (*ServiceOrder, error) {
	o, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(o.Status, to) {
		return nil, fmt.Errorf("cannot move order from %s to %s", o.Status, to)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	var deliveredAt any
	if to == StatusDelivered {
		deliveredAt = now
	}
	_, err = s.db.Exec(`
		UPDATE service_orders SET status = ?, updated_at = ?,
			delivered_at = COALESCE(?, delivered_at)
		WHERE id = ?
	`, string(to), now, deliveredAt, id)
	if err != nil {
		return nil, fmt.Errorf("failed to update order status: %w", err)
	}
	return s.Get(id)
}

// AddLine appends a line and recomputes the order total.
func (s *OrderStore) AddLine(orderID string, line *OrderLine) error {
	if _, err := s.Get(orderID); err != nil {
		return err
	}
	res, err := s.db.Exec(`
		INSERT INTO order_lines (order_id, item_id, description, quantity, unit_price)
		VALUES (?, ?, ?, ?, ?)
	`, orderID, nullable(line.ItemID), line.Description, line.Quantity, line.UnitPrice)
	if err != nil {
		return fmt.Errorf("failed to add order line: %w", err)
	}
	line.ID, _ = res.LastInsertId()
	line.OrderID = orderID
	return s.recomputeTotal(orderID)
}

// RemoveLine deletes a line and recomputes the order total.
func (s *OrderStore) RemoveLine(orderID string, lineID int64) error {
	res, err := s.db.Exec(
		`DELETE FROM order_lines WHERE id = ? AND order_id = ?`, lineID, orderID)
	if err != nil {
		return fmt.Errorf("failed to remove order line: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return s.recomputeTotal(orderID)
}

// Counts returns the number of orders per status for the dashboard.
func (s *OrderStore) Counts() (map[OrderStatus]int, error) {
	rows, err := s.db.Query(`SELECT status, COUNT(*) FROM service_orders GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count orders: %w", err)
	}
	defer rows.Close()

	counts := make(map[OrderStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan order count: %w", err)
		}
		counts[OrderStatus(status)] = n
	}
	return counts, rows.Err()
}

func (s *OrderStore) recomputeTotal(orderID string) error {
	_, err := s.db.Exec(`
		UPDATE service_orders
		SET total = (SELECT COALESCE(SUM(quantity * unit_price), 0) FROM order_lines WHERE order_id = ?),
		    updated_at = ?
		WHERE id = ?
	`, orderID, time.Now().UTC().Format(time.RFC3339), orderID)
	if err != nil {
		return fmt.Errorf("failed to recompute order total: %w", err)
	}
	return nil
}

func (s *OrderStore) lines(orderID string) ([]OrderLine, error) {
	rows, err := s.db.Query(`
		SELECT id, order_id, item_id, description, quantity, unit_price
		FROM order_lines WHERE order_id = ? ORDER BY id
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list order lines: %w", err)
	}
	defer rows.Close()

	var out []OrderLine
	for rows.Next() {
		var line OrderLine
		var itemID sql.NullString
		if err := rows.Scan(&line.ID, &line.OrderID, &itemID, &line.Description,
			&line.Quantity, &line.UnitPrice); err != nil {
			return nil, fmt.Errorf("failed to scan order line: %w", err)
		}
		line.ItemID = itemID.String
		out = append(out, line)
	}
	return out, rows.Err()
}

func scanOrder(row rowScanner) (*ServiceOrder, error) {
	var o ServiceOrder
	var status string
	var diagnosis, assignedTo, deliveredAt sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(&o.ID, &o.VehicleID, &o.ClientID, &status, &o.Description,
		&diagnosis, &o.Total, &assignedTo, &createdAt, &updatedAt, &deliveredAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan order: %w", err)
	}

	o.Status = OrderStatus(status)
	o.Diagnosis = diagnosis.String
	o.AssignedTo = assignedTo.String
	o.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	o.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	if deliveredAt.Valid {
		t, _ := time.Parse(time.RFC3339, deliveredAt.String)
		o.DeliveredAt = &t
	}
	return &o, nil
}
