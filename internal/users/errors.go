package users

import (
	"fmt"

	"github.com/fieldops/fieldops/internal/platform/httpx"
)

var (
	// ErrNotFound indicates the user does not exist.
	ErrNotFound = fmt.Errorf("users: not found: %w", httpx.ErrNotFound)
	// ErrRoleNotFound indicates an assignment named a role that does not exist.
	ErrRoleNotFound = fmt.Errorf("users: role not found: %w", httpx.ErrValidation)
	// ErrInvalidStatus indicates an unknown account status.
	ErrInvalidStatus = fmt.Errorf("users: invalid status: %w", httpx.ErrValidation)
)
