// internal/auth/role.go
package auth

import "fmt"

// Role is the closed set of user roles. Room assignment and authorization
// switch exhaustively on it; unknown strings are rejected at the boundary.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "superAdmin"
	RoleOperator   Role = "operator"
	RoleUser       Role = "user"
)

// ParseRole validates a role string from a request or token.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleAdmin, RoleSuperAdmin, RoleOperator, RoleUser:
		return Role(s), nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// Privileged reports whether the role belongs in the admin room.
func (r Role) Privileged() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

func (r Role) String() string {
	return string(r)
}
