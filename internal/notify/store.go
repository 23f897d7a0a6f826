// Package notify persists notifications and emits their realtime echoes.
// The database row is the durable record; the websocket push is best-effort.
package notify

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/davem/wrenchd/internal/db"
	"github.com/davem/wrenchd/internal/realtime"
)

// ErrNotFound is returned when a notification id does not exist or does not
// belong to the requesting user.
var ErrNotFound = errors.New("notification not found")

// Priority orders notifications in client lists.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

// Notification is a persisted notification row. UserID is empty for rows
// addressed to the admin room rather than a single user.
type Notification struct {
	ID               string                    `json:"id"`
	UserID           string                    `json:"userId,omitempty"`
	Type             realtime.NotificationType `json:"type"`
	Title            string                    `json:"title"`
	Message          string                    `json:"message"`
	Category         string                    `json:"category,omitempty"`
	Priority         Priority                  `json:"priority"`
	RequiresResponse bool                      `json:"requiresResponse"`
	Response         string                    `json:"response,omitempty"`
	Read             bool                      `json:"read"`
	Data             map[string]any            `json:"data,omitempty"`
	CreatedAt        time.Time                 `json:"createdAt"`
}

// Store reads and writes the notifications table.
type Store struct {
	db *db.DB
}

// NewStore creates a Store.
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

const notificationColumns = `id, user_id, type, title, message, category, priority,
	requires_response, response, read, data, created_at`

// Create inserts a notification row. The caller assigns the ID.
func (s *Store) Create(n *Notification) error {
	if n.Priority == "" {
		n.Priority = PriorityNormal
	}
	data := "{}"
	if n.Data != nil {
		encoded, err := json.Marshal(n.Data)
		if err != nil {
			return fmt.Errorf("failed to encode notification data: %w", err)
		}
		data = string(encoded)
	}
	now := time.Now().UTC().Format(time.RFC3339)
	n.CreatedAt, _ = time.Parse(time.RFC3339, now)

	var userID any
	if n.UserID != "" {
		userID = n.UserID
	}

	_, err := s.db.Exec(`
		INSERT INTO notifications (id, user_id, type, title, message, category, priority,
			requires_response, response, read, data, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, n.ID, userID, string(n.Type), n.Title, n.Message, nullable(n.Category),
		string(n.Priority), n.RequiresResponse, nullable(n.Response), n.Read, data, now)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

// Get returns a notification by id.
func (s *Store) Get(id string) (*Notification, error) {
	row := s.db.QueryRow(`SELECT `+notificationColumns+` FROM notifications WHERE id = ?`, id)
	return scanNotification(row)
}

// ListForUser returns a user's notifications, newest first. Rows pushed to
// the admin room (user_id NULL) are included for privileged listings via
// ListAdmin instead.
func (s *Store) ListForUser(userID string, unreadOnly bool, limit int) ([]*Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE user_id = ?`
	if unreadOnly {
		query += ` AND read = 0`
	}
	query += ` ORDER BY created_at DESC, id DESC`
	args := []any{userID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	return s.list(query, args...)
}

// ListAdmin returns admin-room notifications, newest first.
func (s *Store) ListAdmin(unreadOnly bool, limit int) ([]*Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE user_id IS NULL`
	if unreadOnly {
		query += ` AND read = 0`
	}
	query += ` ORDER BY created_at DESC, id DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	return s.list(query, args...)
}

// UnreadCount returns the number of unread notifications for a user.
func (s *Store) UnreadCount(userID string) (int, error) {
	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM notifications WHERE user_id = ? AND read = 0`, userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	return count, nil
}

// MarkRead marks a single notification read, scoped to its owner.
func (s *Store) MarkRead(id, userID string) error {
	res, err := s.db.Exec(
		`UPDATE notifications SET read = 1 WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkAllRead marks every unread notification of a user read and returns how
// many rows changed.
func (s *Store) MarkAllRead(userID string) (int, error) {
	res, err := s.db.Exec(
		`UPDATE notifications SET read = 1 WHERE user_id = ? AND read = 0`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications read: %w", err)
	}
	affected, _ := res.RowsAffected()
	return int(affected), nil
}

// SetResponse records a user's reply on a requires-response notification.
// The row stays addressed to the user; relaying to admins is the emitter's
// concern.
func (s *Store) SetResponse(id, userID, response string) error {
	res, err := s.db.Exec(`
		UPDATE notifications SET response = ?
		WHERE id = ? AND user_id = ? AND requires_response = 1
	`, response, id, userID)
	if err != nil {
		return fmt.Errorf("failed to record response: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) list(query string, args ...any) ([]*Notification, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	var out []*Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNotification(row rowScanner) (*Notification, error) {
	var n Notification
	var userID, category, response sql.NullString
	var ntype, priority, data, createdAt string

	err := row.Scan(&n.ID, &userID, &ntype, &n.Title, &n.Message, &category,
		&priority, &n.RequiresResponse, &response, &n.Read, &data, &createdAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan notification: %w", err)
	}

	n.UserID = userID.String
	n.Category = category.String
	n.Response = response.String
	n.Type = realtime.NotificationType(ntype)
	n.Priority = Priority(priority)
	if data != "" && data != "{}" {
		_ = json.Unmarshal([]byte(data), &n.Data)
	}
	n.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &n, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
