// internal/server/auth_handlers.go
package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/davem/wrenchd/internal/auth"
	"github.com/davem/wrenchd/internal/log"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, status int, errCode, message string) {
	s.writeJSON(w, status, ErrorResponse{Error: errCode, Message: message})
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Tokens *auth.TokenPair `json:"tokens"`
	User   *auth.User      `json:"user"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		s.writeError(w, http.StatusBadRequest, "validation_failed", "Email and password are required")
		return
	}

	user, err := s.authService.Authenticate(req.Email, req.Password)
	if err != nil {
		s.writeError(w, http.StatusUnauthorized, "invalid_credentials", "Invalid email or password")
		return
	}

	tokens, err := s.authService.TokenPairFor(user)
	if err != nil {
		log.Error("failed to create session", "user", user.ID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "server_error", "Failed to create session")
		return
	}

	s.writeJSON(w, http.StatusOK, LoginResponse{Tokens: tokens, User: user})
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}
	if req.RefreshToken == "" {
		s.writeError(w, http.StatusBadRequest, "validation_failed", "Refresh token is required")
		return
	}

	user, tokens, err := s.authService.RefreshSession(req.RefreshToken)
	if err != nil {
		s.writeError(w, http.StatusUnauthorized, "invalid_refresh_token", "Invalid or revoked refresh token")
		return
	}

	s.writeJSON(w, http.StatusOK, LoginResponse{Tokens: tokens, User: user})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	ident, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		s.writeError(w, http.StatusUnauthorized, "missing_token", "Not authenticated")
		return
	}
	if err := s.authService.RevokeSession(ident.SessionID); err != nil {
		s.writeError(w, http.StatusInternalServerError, "server_error", "Failed to revoke session")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	ident, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		s.writeError(w, http.StatusUnauthorized, "missing_token", "Not authenticated")
		return
	}
	user, err := s.authService.GetUserByID(ident.UserID)
	if err != nil {
		s.writeError(w, http.StatusNotFound, "not_found", "User not found")
		return
	}
	s.writeJSON(w, http.StatusOK, user)
}

type CreateUserRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Role     string `json:"role"`
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.authService.ListUsers()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "server_error", "Failed to list users")
		return
	}
	s.writeJSON(w, http.StatusOK, users)
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		s.writeError(w, http.StatusBadRequest, "validation_failed", "Email and password are required")
		return
	}
	if len(req.Password) < 8 {
		s.writeError(w, http.StatusBadRequest, "validation_failed", "Password must be at least 8 characters")
		return
	}
	role := auth.RoleUser
	if req.Role != "" {
		parsed, err := auth.ParseRole(req.Role)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
			return
		}
		role = parsed
	}
	// Only a superAdmin may mint another privileged account.
	ident, _ := auth.IdentityFromContext(r.Context())
	if role.Privileged() && (ident == nil || ident.Role != auth.RoleSuperAdmin) {
		s.writeError(w, http.StatusForbidden, "forbidden", "Only a super admin can create privileged users")
		return
	}

	user, err := s.authService.CreateUser(req.Email, req.Password, req.Name, role)
	if err != nil {
		if strings.Contains(err.Error(), "already exists") {
			s.writeError(w, http.StatusConflict, "user_already_exists", "User already registered")
			return
		}
		s.writeError(w, http.StatusInternalServerError, "server_error", "Failed to create user")
		return
	}

	if err := s.emailService.SendWelcome(r.Context(), user.Email, user.Name); err != nil {
		log.Warn("failed to send welcome email", "user", user.ID, "error", err)
	}

	s.writeJSON(w, http.StatusCreated, user)
}

type UpdateRoleRequest struct {
	Role string `json:"role"`
}

func (s *Server) handleUpdateUserRole(w http.ResponseWriter, r *http.Request) {
	var req UpdateRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}
	role, err := auth.ParseRole(req.Role)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}
	ident, _ := auth.IdentityFromContext(r.Context())
	if role.Privileged() && (ident == nil || ident.Role != auth.RoleSuperAdmin) {
		s.writeError(w, http.StatusForbidden, "forbidden", "Only a super admin can grant privileged roles")
		return
	}

	userID := chi.URLParam(r, "id")
	if err := s.authService.UpdateRole(userID, role); err != nil {
		s.writeError(w, http.StatusNotFound, "not_found", "User not found")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"id": userID, "role": role.String()})
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	ident, _ := auth.IdentityFromContext(r.Context())
	if ident != nil && ident.UserID == userID {
		s.writeError(w, http.StatusBadRequest, "invalid_request", "Cannot delete your own account")
		return
	}
	if err := s.authService.DeleteUser(userID); err != nil {
		s.writeError(w, http.StatusNotFound, "not_found", "User not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
