package shop

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/davem/wrenchd/internal/db"
	"github.com/davem/wrenchd/internal/ids"
)

// ErrNotFound is returned when a shop record does not exist.
var ErrNotFound = errors.New("record not found")

// Client is a shop customer. UserID links the customer to a login account
// so order updates can reach their realtime session; walk-in customers have
// none.
type Client struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId,omitempty"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Address   string    `json:"address,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ClientStore reads and writes the clients table.
type ClientStore struct {
	db *db.DB
}

// NewClientStore creates a ClientStore.
func NewClientStore(database *db.DB) *ClientStore {
	return &ClientStore{db: database}
}

const clientColumns = `id, user_id, name, email, phone, address, created_at, updated_at`

// Create inserts a client and assigns its ID.
func (s *ClientStore) Create(c *Client) error {
	c.ID = ids.New()
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.Exec(`
		INSERT INTO clients (id, user_id, name, email, phone, address, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, c.ID, nullable(c.UserID), c.Name, nullable(c.Email), nullable(c.Phone),
		nullable(c.Address), now, now)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}
	c.CreatedAt, _ = time.Parse(time.RFC3339, now)
	c.UpdatedAt = c.CreatedAt
	return nil
}

// Get returns a client by id.
func (s *ClientStore) Get(id string) (*Client, error) {
	row := s.db.QueryRow(`SELECT `+clientColumns+` FROM clients WHERE id = ?`, id)
	return scanClient(row)
}

// GetByUserID returns the client linked to a login account.
func (s *ClientStore) GetByUserID(userID string) (*Client, error) {
	row := s.db.QueryRow(`SELECT `+clientColumns+` FROM clients WHERE user_id = ?`, userID)
	return scanClient(row)
}

// List returns clients ordered by name. A non-empty search narrows by name,
// email or phone substring.
func (s *ClientStore) List(search string) ([]*Client, error) {
	query := `SELECT ` + clientColumns + ` FROM clients`
	var args []any
	if search != "" {
		query += ` WHERE name LIKE ? OR email LIKE ? OR phone LIKE ?`
		pattern := "%" + strings.TrimSpace(search) + "%"
		args = append(args, pattern, pattern, pattern)
	}
	query += ` ORDER BY name`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}
	defer rows.Close()

	var out []*Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Update rewrites a client's mutable fields.
func (s *ClientStore) Update(c *Client) error {
	now := time.Now().UTC().Format(time.RFC3339)
	res, err := s.db.Exec(`
		UPDATE clients SET user_id = ?, name = ?, email = ?, phone = ?, address = ?, updated_at = ?
		WHERE id = ?
	`, nullable(c.UserID), c.Name, nullable(c.Email), nullable(c.Phone),
		nullable(c.Address), now, c.ID)
	if err != nil {
		return fmt.Errorf("failed to update client: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	c.UpdatedAt, _ = time.Parse(time.RFC3339, now)
	return nil
}

// Delete removes a client. Vehicles and orders cascade.
func (s *ClientStore) Delete(id string) error {
	res, err := s.db.Exec(`DELETE FROM clients WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete client: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func scanClient(row rowScanner) (*Client, error) {
	var c Client
	var userID, email, phone, address sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(&c.ID, &userID, &c.Name, &email, &phone, &address, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan client: %w", err)
	}

	c.UserID = userID.String
	c.Email = email.String
	c.Phone = phone.String
	c.Address = address.String
	c.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	c.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &c, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
