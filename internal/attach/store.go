package attach

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/davem/wrenchd/internal/db"
	"github.com/davem/wrenchd/internal/ids"
)

// ErrNotFound is returned when an attachment record does not exist.
var ErrNotFound = errors.New("attachment not found")

// Attachment is a file linked to a service order or a vehicle. The blob
// itself lives in a Backend; this record only carries the metadata and the
// storage key.
type Attachment struct {
	ID          string    `json:"id"`
	OrderID     string    `json:"orderId,omitempty"`
	VehicleID   string    `json:"vehicleId,omitempty"`
	FileName    string    `json:"fileName"`
	ContentType string    `json:"contentType"`
	Size        int64     `json:"size"`
	StorageKey  string    `json:"-"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Store reads and writes the attachments table.
type Store struct {
	db *db.DB
}

// NewStore creates a Store.
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

const attachmentColumns = `id, order_id, vehicle_id, file_name, content_type, size, storage_key, created_at`

// Create inserts an attachment record and assigns its ID and storage key.
// Exactly one of OrderID or VehicleID must be set.
func (s *Store) Create(a *Attachment) error {
	if (a.OrderID == "") == (a.VehicleID == "") {
		return fmt.Errorf("attachment must reference exactly one of an order or a vehicle")
	}
	a.ID = ids.New()
	if a.OrderID != "" {
		a.StorageKey = fmt.Sprintf("orders/%s/%s-%s", a.OrderID, a.ID, a.FileName)
	} else {
		a.StorageKey = fmt.Sprintf("vehicles/%s/%s-%s", a.VehicleID, a.ID, a.FileName)
	}
	if a.ContentType == "" {
		a.ContentType = "application/octet-stream"
	}
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.Exec(`
		INSERT INTO attachments (id, order_id, vehicle_id, file_name, content_type, size, storage_key, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, a.ID, nullable(a.OrderID), nullable(a.VehicleID), a.FileName,
		a.ContentType, a.Size, a.StorageKey, now)
	if err != nil {
		return fmt.Errorf("failed to create attachment: %w", err)
	}
	a.CreatedAt, _ = time.Parse(time.RFC3339, now)
	return nil
}

// Get returns an attachment by id.
func (s *Store) Get(id string) (*Attachment, error) {
	row := s.db.QueryRow(`SELECT `+attachmentColumns+` FROM attachments WHERE id = ?`, id)
	return scanAttachment(row)
}

// ListForOrder returns attachments on a service order, newest first.
func (s *Store) ListForOrder(orderID string) ([]*Attachment, error) {
	return s.list(`order_id = ?`, orderID)
}

// ListForVehicle returns attachments on a vehicle, newest first.
func (s *Store) ListForVehicle(vehicleID string) ([]*Attachment, error) {
	return s.list(`vehicle_id = ?`, vehicleID)
}

func (s *Store) list(where string, arg any) ([]*Attachment, error) {
	rows, err := s.db.Query(`
		SELECT `+attachmentColumns+` FROM attachments
		WHERE `+where+` ORDER BY created_at DESC, id DESC
	`, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to list attachments: %w", err)
	}
	defer rows.Close()

	var attachments []*Attachment
	for rows.Next() {
		a, err := scanAttachment(rows)
		if err != nil {
			return nil, err
		}
		attachments = append(attachments, a)
	}
	return attachments, rows.Err()
}

// Delete removes an attachment record.
func (s *Store) Delete(id string) error {
	result, err := s.db.Exec(`DELETE FROM attachments WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete attachment: %w", err)
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAttachment(row rowScanner) (*Attachment, error) {
	var a Attachment
	var orderID, vehicleID sql.NullString
	var createdAt string
	err := row.Scan(&a.ID, &orderID, &vehicleID, &a.FileName, &a.ContentType,
		&a.Size, &a.StorageKey, &createdAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan attachment: %w", err)
	}
	a.OrderID = orderID.String
	a.VehicleID = vehicleID.String
	a.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &a, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
