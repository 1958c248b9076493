package users

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/fieldops/fieldops/internal/shared"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	ListUsers(ctx context.Context) ([]User, error)
	AssignRole(ctx context.Context, userID int64, roleID *uuid.UUID) error
	SetStatus(ctx context.Context, userID int64, status Status) error
}

// Service handles user business logic.
type Service struct {
	repo   RepositoryPort
	audit  shared.AuditRecorder
	logger *slog.Logger
}

// NewService builds Service instance. audit and logger may be nil.
func NewService(repo RepositoryPort, audit shared.AuditRecorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, logger: logger}
}

// ListUsers returns all users.
func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	return s.repo.ListUsers(ctx)
}

// AssignRole binds the user to roleID, or leaves the user without a role
// when roleID is nil. The change is visible to the next authorization check.
func (s *Service) AssignRole(ctx context.Context, userID int64, roleID *uuid.UUID) error {
	if err := s.repo.AssignRole(ctx, userID, roleID); err != nil {
		return err
	}
	meta := map[string]any{"role_id": nil}
	if roleID != nil {
		meta["role_id"] = roleID.String()
	}
	s.record(ctx, "user.assign_role", userID, meta)
	return nil
}

// SetStatus moves the account to status. Accounts that are not active are
// denied every capability from the next check on.
func (s *Service) SetStatus(ctx context.Context, userID int64, status Status) error {
	if !status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidStatus, status)
	}
	if err := s.repo.SetStatus(ctx, userID, status); err != nil {
		return err
	}
	s.record(ctx, "user.set_status", userID, map[string]any{"status": string(status)})
	return nil
}

func (s *Service) record(ctx context.Context, action string, userID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  shared.ActorFromContext(ctx),
		Action:   action,
		Entity:   "user",
		EntityID: formatID(userID),
		Meta:     meta,
	})
	if err != nil {
		s.logger.Warn("audit user change", slog.String("action", action), slog.Int64("user_id", userID), slog.Any("error", err))
	}
}
