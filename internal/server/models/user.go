// Package models holds the server-side domain records and the value objects
// shared between repositories, services and the transport layer.
package models

import "time"

// Roles assignable to a user account.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// ValidRole reports whether role is one of the assignable roles.
func ValidRole(role string) bool {
	return role == RoleUser || role == RoleAdmin
}

// User is the identity record. Accounts are soft-deleted by flipping IsActive;
// records are never hard-deleted by this service.
type User struct {
	ID           int64
	Email        string
	FirstName    string
	LastName     string
	PasswordHash string
	IsActive     bool
	Role         string
	CreatedAt    time.Time
	UpdatedAt    *time.Time
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// UserUpdate describes a partial update of a user record. Nil fields are left
// unchanged.
type UserUpdate struct {
	FirstName *string
	LastName  *string
	Email     *string
	IsActive  *bool
	Role      *string
}

// Empty reports whether no field is set.
func (u UserUpdate) Empty() bool {
	return u.FirstName == nil && u.LastName == nil && u.Email == nil &&
		u.IsActive == nil && u.Role == nil
}
