package shop

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/davem/wrenchd/internal/db"
	"github.com/davem/wrenchd/internal/ids"
)

// Vehicle is a client's car. Plates are unique across the shop.
type Vehicle struct {
	ID        string    `json:"id"`
	ClientID  string    `json:"clientId"`
	Plate     string    `json:"plate"`
	Make      string    `json:"make"`
	Model     string    `json:"model"`
	Year      int       `json:"year,omitempty"`
	Color     string    `json:"color,omitempty"`
	VIN       string    `json:"vin,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// VehicleStore reads and writes the vehicles table.
type VehicleStore struct {
	db *db.DB
}

// NewVehicleStore creates a VehicleStore.
func NewVehicleStore(database *db.DB) *VehicleStore {
	return &VehicleStore{db: database}
}

const vehicleColumns = `id, client_id, plate, make, model, year, color, vin, created_at, updated_at`

// Create inserts a vehicle and assigns its ID. The plate is normalized to
// upper case without surrounding space.
func (s *VehicleStore) Create(v *Vehicle) error {
	v.ID = ids.New()
	v.Plate = normalizePlate(v.Plate)
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.Exec(`
		INSERT INTO vehicles (id, client_id, plate, make, model, year, color, vin, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, v.ID, v.ClientID, v.Plate, v.Make, v.Model, zeroNull(v.Year),
		nullable(v.Color), nullable(v.VIN), now, now)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("vehicle with plate %s already exists", v.Plate)
		}
		return fmt.Errorf("failed to create vehicle: %w", err)
	}
	v.CreatedAt, _ = time.Parse(time.RFC3339, now)
	v.UpdatedAt = v.CreatedAt
	return nil
}

// Get returns a vehicle by id.
func (s *VehicleStore) Get(id string) (*Vehicle, error) {
	row := s.db.QueryRow(`SELECT `+vehicleColumns+` FROM vehicles WHERE id = ?`, id)
	return scanVehicle(row)
}

// GetByPlate returns a vehicle by its normalized plate.
func (s *VehicleStore) GetByPlate(plate string) (*Vehicle, error) {
	row := s.db.QueryRow(`SELECT `+vehicleColumns+` FROM vehicles WHERE plate = ?`,
		normalizePlate(plate))
	return scanVehicle(row)
}

// List returns vehicles, optionally narrowed to one client.
func (s *VehicleStore) List(clientID string) ([]*Vehicle, error) {
	query := `SELECT ` + vehicleColumns + ` FROM vehicles`
	var args []any
	if clientID != "" {
		query += ` WHERE client_id = ?`
		args = append(args, clientID)
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list vehicles: %w", err)
	}
	defer rows.Close()

	var out []*Vehicle
	for rows.Next() {
		v, err := scanVehicle(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// Update rewrites a vehicle's mutable fields.
func (s *VehicleStore) Update(v *Vehicle) error {
	v.Plate = normalizePlate(v.Plate)
	now := time.Now().UTC().Format(time.RFC3339)
	res, err := s.db.Exec(`
		UPDATE vehicles SET plate = ?, make = ?, model = ?, year = ?, color = ?, vin = ?, updated_at = ?
		WHERE id = ?
	`, v.Plate, v.Make, v.Model, zeroNull(v.Year), nullable(v.Color), nullable(v.VIN), now, v.ID)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("vehicle with plate %s already exists", v.Plate)
		}
		return fmt.Errorf("failed to update vehicle: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	v.UpdatedAt, _ = time.Parse(time.RFC3339, now)
	return nil
}

// Delete removes a vehicle. Its orders cascade.
func (s *VehicleStore) Delete(id string) error {
	res, err := s.db.Exec(`DELETE FROM vehicles WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete vehicle: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func normalizePlate(plate string) string {
	return strings.ToUpper(strings.TrimSpace(plate))
}

func scanVehicle(row rowScanner) (*Vehicle, error) {
	var v Vehicle
	var year sql.NullInt64
	var color, vin sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(&v.ID, &v.ClientID, &v.Plate, &v.Make, &v.Model, &year,
		&color, &vin, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan vehicle: %w", err)
	}

	v.Year = int(year.Int64)
	v.Color = color.String
	v.VIN = vin.String
	v.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	v.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &v, nil
}

func zeroNull(n int) any {
	if n == 0 {
		return nil
	}
	return n
}
