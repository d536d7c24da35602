package models

import "time"

// Role gates admin-only operations
type Role string

const (
	RoleUser       Role = "user"
	RoleAdmin      Role = "admin"
	RoleMajorAdmin Role = "majorAdmin"
)

// Valid reports whether r is one of the known roles
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAdmin, RoleMajorAdmin:
		return true
	}
	return false
}

// IsAdmin is true for admin and majorAdmin
func (r Role) IsAdmin() bool {
	return r == RoleAdmin || r == RoleMajorAdmin
}

// User is the public view of an account
type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}
