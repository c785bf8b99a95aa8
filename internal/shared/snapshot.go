// Package shared holds types and helpers used on both sides of the wire.
package shared

import (
	"slices"
	"time"
)

// UserSnapshot is the denormalized identity payload embedded in login
// responses and returned by /auth/me. Permissions is the user's effective
// set at the time the snapshot was built; clients treat it as a read-mostly
// cache refreshed on login.
type UserSnapshot struct {
	ID          string     `json:"id"`
	Username    string     `json:"username"`
	Email       string     `json:"email"`
	FullName    string     `json:"full_name"`
	IsActive    bool       `json:"is_active"`
	IsSuperuser bool       `json:"is_superuser"`
	Roles       []string   `json:"roles"`
	Permissions []string   `json:"permissions"`
	LastLogin   *time.Time `json:"last_login,omitempty"`
}

// Can reports whether the snapshot grants the named permission. A superuser
// passes every check without consulting the permission list.
func (s *UserSnapshot) Can(permission string) bool {
	if s == nil {
		return false
	}
	if s.IsSuperuser {
		return true
	}
	return slices.Contains(s.Permissions, permission)
}
