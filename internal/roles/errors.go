package roles

import (
	"fmt"

	"github.com/fieldops/fieldops/internal/platform/httpx"
)

// Registry errors. Each wraps an httpx sentinel so handlers can map them
// directly.
var (
	ErrNotFound      = fmt.Errorf("roles: not found: %w", httpx.ErrNotFound)
	ErrDuplicateName = fmt.Errorf("roles: name already in use: %w", httpx.ErrDuplicate)
	ErrInUse         = fmt.Errorf("roles: role is assigned to users: %w", httpx.ErrConflict)
	ErrInvalidRole   = fmt.Errorf("roles: invalid role: %w", httpx.ErrValidation)
)
