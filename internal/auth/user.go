// internal/auth/user.go
package auth

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/davem/wrenchd/internal/db"
	"golang.org/x/crypto/bcrypt"
)

type User struct {
	ID                string     `json:"id"`
	Email             string     `json:"email"`
	EncryptedPassword string     `json:"-"`
	Name              string     `json:"name"`
	Role              Role       `json:"role"`
	LastSignInAt      *time.Time `json:"last_sign_in_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

type Service struct {
	db        *db.DB
	jwtSecret string
}

func NewService(database *db.DB, jwtSecret string) *Service {
	return &Service{db: database, jwtSecret: jwtSecret}
}

func generateID() string {
	b := make([]byte, 16)
	rand.Read(b)
	return hex.EncodeToString(b)
}

func (s *Service) CreateUser(email, password, name string, role Role) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	if _, err := ParseRole(string(role)); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	id := generateID()
	now := time.Now().UTC().Format(time.RFC3339)

	_, err = s.db.Exec(`
		INSERT INTO users (id, email, encrypted_password, name, role, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, id, email, string(hash), name, string(role), now, now)

	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, fmt.Errorf("user with email %s already exists", email)
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return s.GetUserByID(id)
}

func (s *Service) GetUserByID(id string) (*User, error) {
	return s.getUser("id = ?", id)
}

func (s *Service) GetUserByEmail(email string) (*User, error) {
	return s.getUser("email = ?", strings.ToLower(strings.TrimSpace(email)))
}

func (s *Service) getUser(where string, arg any) (*User, error) {
	var user User
	var role string
	var createdAt, updatedAt string
	var lastSignInAt sql.NullString

	err := s.db.QueryRow(`
		SELECT id, email, encrypted_password, name, role, last_sign_in_at, created_at, updated_at
		FROM users WHERE `+where, arg).Scan(
		&user.ID, &user.Email, &user.EncryptedPassword, &user.Name, &role,
		&lastSignInAt, &createdAt, &updatedAt)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	user.Role = Role(role)
	user.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	user.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	if lastSignInAt.Valid {
		t, _ := time.Parse(time.RFC3339, lastSignInAt.String)
		user.LastSignInAt = &t
	}
	return &user, nil
}

// Authenticate verifies credentials and records the sign-in time.
func (s *Service) Authenticate(email, password string) (*User, error) {
	user, err := s.GetUserByEmail(email)
	if err != nil {
		return nil, fmt.Errorf("invalid credentials")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.EncryptedPassword), []byte(password)); err != nil {
		return nil, fmt.Errorf("invalid credentials")
	}

	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := s.db.Exec("UPDATE users SET last_sign_in_at = ? WHERE id = ?", now, user.ID); err != nil {
		return nil, fmt.Errorf("failed to record sign-in: %w", err)
	}

	return user, nil
}

// ListUsers returns all users ordered by creation time.
func (s *Service) ListUsers() ([]*User, error) {
	rows, err := s.db.Query(`
		SELECT id, email, encrypted_password, name, role, last_sign_in_at, created_at, updated_at
		FROM users ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		var user User
		var role string
		var createdAt, updatedAt string
		var lastSignInAt sql.NullString
		if err := rows.Scan(&user.ID, &user.Email, &user.EncryptedPassword, &user.Name,
			&role, &lastSignInAt, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		user.Role = Role(role)
		user.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		user.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		if lastSignInAt.Valid {
			t, _ := time.Parse(time.RFC3339, lastSignInAt.String)
			user.LastSignInAt = &t
		}
		users = append(users, &user)
	}
	return users, rows.Err()
}

// UpdateRole changes a user's role. Room membership of a live realtime
// session only reflects this after re-authentication.
func (s *Service) UpdateRole(userID string, role Role) error {
	if _, err := ParseRole(string(role)); err != nil {
		return err
	}
	now := time.Now().UTC().Format(time.RFC3339)
	res, err := s.db.Exec("UPDATE users SET role = ?, updated_at = ? WHERE id = ?",
		string(role), now, userID)
	if err != nil {
		return fmt.Errorf("failed to update role: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("user not found")
	}
	return nil
}

// DeleteUser removes a user and cascades sessions and refresh tokens.
func (s *Service) DeleteUser(userID string) error {
	res, err := s.db.Exec("DELETE FROM users WHERE id = ?", userID)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("user not found")
	}
	return nil
}
