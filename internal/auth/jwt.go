// internal/auth/jwt.go
package auth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
}

const (
	AccessTokenExpiry  = 3600   // 1 hour
	RefreshTokenExpiry = 604800 // 1 week
)

func (s *Service) GenerateAccessToken(user *User, sessionID string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"exp":        now.Add(time.Duration(AccessTokenExpiry) * time.Second).Unix(),
		"iat":        now.Unix(),
		"iss":        "wrenchd",
		"sub":        user.ID,
		"email":      user.Email,
		"name":       user.Name,
		"role":       string(user.Role),
		"session_id": sessionID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.jwtSecret))
}

func (s *Service) ValidateAccessToken(tokenString string) (*jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	})

	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}

	return &claims, nil
}

// Identity is the authenticated principal extracted from a validated token.
type Identity struct {
	UserID    string
	Email     string
	Name      string
	Role      Role
	SessionID string
}

// IdentityFromToken validates a token and maps claims onto an Identity.
// The role claim must parse into the closed role set.
func (s *Service) IdentityFromToken(tokenString string) (*Identity, error) {
	claims, err := s.ValidateAccessToken(tokenString)
	if err != nil {
		return nil, err
	}

	ident := &Identity{}
	if sub, ok := (*claims)["sub"].(string); ok {
		ident.UserID = sub
	}
	if email, ok := (*claims)["email"].(string); ok {
		ident.Email = email
	}
	if name, ok := (*claims)["name"].(string); ok {
		ident.Name = name
	}
	if sid, ok := (*claims)["session_id"].(string); ok {
		ident.SessionID = sid
	}
	roleStr, _ := (*claims)["role"].(string)
	role, err := ParseRole(roleStr)
	if err != nil {
		return nil, fmt.Errorf("invalid role claim: %w", err)
	}
	ident.Role = role

	if ident.UserID == "" {
		return nil, fmt.Errorf("missing sub claim")
	}
	return ident, nil
}

func generateRefreshToken() string {
	b := make([]byte, 32)
	rand.Read(b)
	return "v1." + base64.RawURLEncoding.EncodeToString(b)
}

func (s *Service) CreateSession(user *User) (*Session, string, error) {
	sessionID := generateID()
	refreshToken := generateRefreshToken()
	now := time.Now().UTC().Format(time.RFC3339)

	_, err := s.db.Exec(`
		INSERT INTO auth_sessions (id, user_id, created_at) VALUES (?, ?, ?)
	`, sessionID, user.ID, now)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create session: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO auth_refresh_tokens (token, user_id, session_id, created_at)
		VALUES (?, ?, ?, ?)
	`, refreshToken, user.ID, sessionID, now)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create refresh token: %w", err)
	}

	session := &Session{
		ID:        sessionID,
		UserID:    user.ID,
		CreatedAt: time.Now().UTC(),
	}
	return session, refreshToken, nil
}

// TokenPairFor creates a session and issues an access/refresh token pair.
func (s *Service) TokenPairFor(user *User) (*TokenPair, error) {
	session, refreshToken, err := s.CreateSession(user)
	if err != nil {
		return nil, err
	}
	access, err := s.GenerateAccessToken(user, session.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to sign access token: %w", err)
	}
	return &TokenPair{
		AccessToken:  access,
		TokenType:    "bearer",
		ExpiresIn:    AccessTokenExpiry,
		RefreshToken: refreshToken,
	}, nil
}

func (s *Service) RefreshSession(refreshToken string) (*User, *TokenPair, error) {
	var userID, sessionID string
	var revoked int

	err := s.db.QueryRow(`
		SELECT user_id, session_id, revoked FROM auth_refresh_tokens WHERE token = ?
	`, refreshToken).Scan(&userID, &sessionID, &revoked)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid refresh token")
	}
	if revoked == 1 {
		return nil, nil, fmt.Errorf("refresh token has been revoked")
	}

	// Rotate: revoke the old token, issue a new one under the same session
	if _, err := s.db.Exec("UPDATE auth_refresh_tokens SET revoked = 1 WHERE token = ?", refreshToken); err != nil {
		return nil, nil, fmt.Errorf("failed to revoke old refresh token: %w", err)
	}

	user, err := s.GetUserByID(userID)
	if err != nil {
		return nil, nil, err
	}

	newRefresh := generateRefreshToken()
	now := time.Now().UTC().Format(time.RFC3339)
	_, err = s.db.Exec(`
		INSERT INTO auth_refresh_tokens (token, user_id, session_id, created_at)
		VALUES (?, ?, ?, ?)
	`, newRefresh, user.ID, sessionID, now)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create refresh token: %w", err)
	}

	access, err := s.GenerateAccessToken(user, sessionID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to sign access token: %w", err)
	}

	return user, &TokenPair{
		AccessToken:  access,
		TokenType:    "bearer",
		ExpiresIn:    AccessTokenExpiry,
		RefreshToken: newRefresh,
	}, nil
}

func (s *Service) RevokeSession(sessionID string) error {
	if _, err := s.db.Exec("UPDATE auth_refresh_tokens SET revoked = 1 WHERE session_id = ?", sessionID); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	if _, err := s.db.Exec("DELETE FROM auth_sessions WHERE id = ?", sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}
