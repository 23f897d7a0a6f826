package shop

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/davem/wrenchd/internal/db"
	"github.com/davem/wrenchd/internal/ids"
)

// InventoryItem is a stocked part. Quantity at or below MinStock flags the
// item as low.
type InventoryItem struct {
	ID        string    `json:"id"`
	SKU       string    `json:"sku"`
	Name      string    `json:"name"`
	Category  string    `json:"category,omitempty"`
	Quantity  int       `json:"quantity"`
	MinStock  int       `json:"minStock"`
	UnitPrice float64   `json:"unitPrice"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Low reports whether the item is at or below its minimum stock.
func (i *InventoryItem) Low() bool {
	return i.Quantity <= i.MinStock
}

// InventoryStore reads and writes the inventory_items table.
type InventoryStore struct {
	db *db.DB
}

// NewInventoryStore creates an InventoryStore.
func NewInventoryStore(database *db.DB) *InventoryStore {
	return &InventoryStore{db: database}
}

const inventoryColumns = `id, sku, name, category, quantity, min_stock, unit_price, created_at, updated_at`

// Create inserts an item and assigns its ID.
func (s *InventoryStore) Create(i *InventoryItem) error {
	i.ID = ids.New()
	i.SKU = strings.ToUpper(strings.TrimSpace(i.SKU))
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.Exec(`
		INSERT INTO inventory_items (id, sku, name, category, quantity, min_stock, unit_price, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, i.ID, i.SKU, i.Name, nullable(i.Category), i.Quantity, i.MinStock, i.UnitPrice, now, now)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("inventory item with SKU %s already exists", i.SKU)
		}
		return fmt.Errorf("failed to create inventory item: %w", err)
	}
	i.CreatedAt, _ = time.Parse(time.RFC3339, now)
	i.UpdatedAt = i.CreatedAt
	return nil
}

// Get returns an item by id.
func (s *InventoryStore) Get(id string) (*InventoryItem, error) {
	row := s.db.QueryRow(`SELECT `+inventoryColumns+` FROM inventory_items WHERE id = ?`, id)
	return scanItem(row)
}

// GetBySKU returns an item by its SKU.
func (s *InventoryStore) GetBySKU(sku string) (*InventoryItem, error) {
	row := s.db.QueryRow(`SELECT `+inventoryColumns+` FROM inventory_items WHERE sku = ?`,
		strings.ToUpper(strings.TrimSpace(sku)))
	return scanItem(row)
}

// List returns items ordered by name. lowOnly narrows to items at or below
// minimum stock.
func (s *InventoryStore) List(lowOnly bool) ([]*InventoryItem, error) {
	query := `SELECT ` + inventoryColumns + ` FROM inventory_items`
	if lowOnly {
		query += ` WHERE quantity <= min_stock`
	}
	query += ` ORDER BY name`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list inventory: %w", err)
	}
	defer rows.Close()

	var out []*InventoryItem
	for rows.Next() {
		i, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, i)
	}
	return out, rows.Err()
}

// Update rewrites an item's mutable fields except quantity, which moves
// through Adjust.
func (s *InventoryStore) Update(i *InventoryItem) error {
	i.SKU = strings.ToUpper(strings.TrimSpace(i.SKU))
	now := time.Now().UTC().Format(time.RFC3339)
	res, err := s.db.Exec(`
		UPDATE inventory_items SET sku = ?, name = ?, category = ?, min_stock = ?, unit_price = ?, updated_at = ?
		WHERE id = ?
	`, i.SKU, i.Name, nullable(i.Category), i.MinStock, i.UnitPrice, now, i.ID)
	if err != nil {
		return fmt.Errorf("failed to update inventory item: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	i.UpdatedAt, _ = time.Parse(time.RFC3339, now)
	return nil
}

// Adjust changes an item's quantity by delta and returns the updated row.
// It fails rather than letting stock go negative.
func (s *InventoryStore) Adjust(id string, delta int) (*InventoryItem, error) {
	item, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	next := item.Quantity + delta
	if next < 0 {
		return nil, fmt.Errorf("insufficient stock for %s: have %d, need %d",
			item.SKU, item.Quantity, -delta)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	_, err = s.db.Exec(
		`UPDATE inventory_items SET quantity = ?, updated_at = ? WHERE id = ?`,
		next, now, id)
	if err != nil {
		return nil, fmt.Errorf("failed to adjust stock: %w", err)
	}
	return s.Get(id)
}

// Delete removes an item.
func (s *InventoryStore) Delete(id string) error {
	res, err := s.db.Exec(`DELETE FROM inventory_items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete inventory item: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func scanItem(row rowScanner) (*InventoryItem, error) {
	var i InventoryItem
	var category sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(&i.ID, &i.SKU, &i.Name, &category, &i.Quantity, &i.MinStock,
		&i.UnitPrice, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan inventory item: %w", err)
	}

	i.Category = category.String
	i.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	i.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &i, nil
}
