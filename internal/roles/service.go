package roles

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"

	"github.com/fieldops/fieldops/internal/platform/httpx"
	"github.com/fieldops/fieldops/internal/rbac"
	"github.com/fieldops/fieldops/internal/shared"
)

// RepositoryPort defines data access methods for roles. Implementations must
// enforce name uniqueness and the user reference check inside the store.
type RepositoryPort interface {
	ListRoles(ctx context.Context) ([]rbac.Role, error)
	GetRole(ctx context.Context, id uuid.UUID) (rbac.Role, error)
	CreateRole(ctx context.Context, role rbac.Role) (rbac.Role, error)
	UpdateRole(ctx context.Context, role rbac.Role) (rbac.Role, error)
	DeleteRole(ctx context.Context, id uuid.UUID, reassignTo *uuid.UUID) error
}

// RoleInput carries the full replacement state of a role.
type RoleInput struct {
	Name        string        `json:"name" validate:"required,max=100"`
	Description string        `json:"description" validate:"max=500"`
	IsAdmin     bool          `json:"is_admin"`
	Permissions rbac.Document `json:"permissions"`
}

// DeleteOptions controls role deletion. When ReassignTo is set every user
// holding the deleted role is moved to that role first.
type DeleteOptions struct {
	ReassignTo *uuid.UUID
}

// Service handles role business logic.
type Service struct {
	repo      RepositoryPort
	audit     shared.AuditRecorder
	logger    *slog.Logger
	validator *validator.Validate
}

// NewService builds Service instance. audit and logger may be nil.
func NewService(repo RepositoryPort, audit shared.AuditRecorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, logger: logger, validator: validator.New()}
}

// List returns all roles ordered by name.
func (s *Service) List(ctx context.Context) ([]rbac.Role, error) {
	return s.repo.ListRoles(ctx)
}

// Get returns a role by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (rbac.Role, error) {
	return s.repo.GetRole(ctx, id)
}

// Create validates input and stores a new role.
func (s *Service) Create(ctx context.Context, input RoleInput) (rbac.Role, error) {
	role, err := s.prepare(input)
	if err != nil {
		return rbac.Role{}, err
	}
	role.ID = uuid.New()
	created, err := s.repo.CreateRole(ctx, role)
	if err != nil {
		return rbac.Role{}, err
	}
	s.record(ctx, "role.create", created.ID, map[string]any{"name": created.Name, "grants": grants(created.Permissions)})
	return created, nil
}

// Update replaces name, description, admin flag and permissions of a role.
// Nothing from the previous document is kept.
func (s *Service) Update(ctx context.Context, id uuid.UUID, input RoleInput) (rbac.Role, error) {
	role, err := s.prepare(input)
	if err != nil {
		return rbac.Role{}, err
	}
	role.ID = id
	updated, err := s.repo.UpdateRole(ctx, role)
	if err != nil {
		return rbac.Role{}, err
	}
	s.record(ctx, "role.update", updated.ID, map[string]any{"name": updated.Name, "grants": grants(updated.Permissions)})
	return updated, nil
}

// Delete removes a role. It fails with ErrInUse while users still hold the
// role unless opts.ReassignTo names another existing role.
func (s *Service) Delete(ctx context.Context, id uuid.UUID, opts DeleteOptions) error {
	if opts.ReassignTo != nil && *opts.ReassignTo == id {
		return fmt.Errorf("%w: cannot reassign users to the role being deleted", ErrInvalidRole)
	}
	if err := s.repo.DeleteRole(ctx, id, opts.ReassignTo); err != nil {
		return err
	}
	meta := map[string]any{}
	if opts.ReassignTo != nil {
		meta["reassigned_to"] = opts.ReassignTo.String()
	}
	s.record(ctx, "role.delete", id, meta)
	return nil
}

func (s *Service) prepare(input RoleInput) (rbac.Role, error) {
	input.Name = NormalizeName(input.Name)
	input.Description = strings.TrimSpace(input.Description)
	if err := s.validator.Struct(input); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return rbac.Role{}, fmt.Errorf("%w: %s failed %s", ErrInvalidRole, strings.ToLower(verrs[0].Field()), verrs[0].Tag())
		}
		return rbac.Role{}, fmt.Errorf("%w: %v", ErrInvalidRole, err)
	}
	doc := input.Permissions
	if doc == nil {
		doc = rbac.Document{}
	}
	if err := doc.Validate(); err != nil {
		return rbac.Role{}, fmt.Errorf("%w: %w", httpx.ErrValidation, err)
	}
	if unknown := rbac.UnknownCapabilities(doc); len(unknown) > 0 {
		s.logger.Warn("role document names unknown capabilities",
			slog.String("role", input.Name),
			slog.Any("capabilities", unknown),
		)
	}
	return rbac.Role{
		Name:        input.Name,
		Description: input.Description,
		IsAdmin:     input.IsAdmin,
		Permissions: doc.Clone(),
	}, nil
}

func (s *Service) record(ctx context.Context, action string, id uuid.UUID, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  shared.ActorFromContext(ctx),
		Action:   action,
		Entity:   "role",
		EntityID: id.String(),
		Meta:     meta,
	})
	if err != nil {
		s.logger.Warn("audit role change", slog.String("action", action), slog.Any("error", err))
	}
}

// grants lists the capability paths a document sets to true.
func grants(doc rbac.Document) []string {
	out := []string{}
	for _, leaf := range doc.Paths() {
		if leaf.Granted {
			out = append(out, leaf.Path)
		}
	}
	return out
}

// NormalizeName trims and NFC-normalises a role name. Uniqueness is checked
// against the normalised form.
func NormalizeName(name string) string {
	return norm.NFC.String(strings.TrimSpace(name))
}
