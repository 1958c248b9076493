package rbac

import (
	"time"

	"github.com/google/uuid"
)

// Role is a named, reusable bundle of permissions.
//
// IsAdmin is informational. Authorization only ever consults Permissions.
type Role struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	IsAdmin     bool      `json:"is_admin"`
	Permissions Document  `json:"permissions"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Subject is an authenticated user joined with its resolved role. Role is nil
// when the user has no role or the role could not be resolved.
type Subject struct {
	UserID int64
	Role   *Role
}
