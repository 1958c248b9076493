package users

import (
	"time"

	"github.com/google/uuid"
)

// Status is the coarse account lifecycle state.
type Status string

// Account statuses. Only active accounts may authenticate.
const (
	StatusPending     Status = "pending"
	StatusActive      Status = "active"
	StatusSuspended   Status = "suspended"
	StatusDeactivated Status = "deactivated"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusActive, StatusSuspended, StatusDeactivated:
		return true
	}
	return false
}

// User represents a user account for management.
type User struct {
	ID        int64      `json:"id"`
	Email     string     `json:"email"`
	Name      string     `json:"name"`
	Status    Status     `json:"status"`
	RoleID    *uuid.UUID `json:"role_id"`
	RoleName  string     `json:"role_name,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}
