package users

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fieldops/fieldops/internal/platform/db"
	"github.com/fieldops/fieldops/internal/rbac"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{pool: pool, logger: logger}
}

// ListUsers returns all users with their role name.
func (r *Repository) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT u.id, u.email, u.name, u.status, u.role_id, COALESCE(ro.name, ''), u.created_at, u.updated_at
		FROM users u
		LEFT JOIN roles ro ON ro.id = u.role_id
		ORDER BY u.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var users []User
	for rows.Next() {
		var (
			user   User
			roleID uuid.NullUUID
		)
		if err := rows.Scan(&user.ID, &user.Email, &user.Name, &user.Status, &roleID, &user.RoleName, &user.CreatedAt, &user.UpdatedAt); err != nil {
			return nil, err
		}
		if roleID.Valid {
			id := roleID.UUID
			user.RoleID = &id
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

// AssignRole points the user at roleID, or clears the role when nil.
func (r *Repository) AssignRole(ctx context.Context, userID int64, roleID *uuid.UUID) error {
	var arg uuid.NullUUID
	if roleID != nil {
		arg = uuid.NullUUID{UUID: *roleID, Valid: true}
	}
	tag, err := r.pool.Exec(ctx, `UPDATE users SET role_id = $2, updated_at = NOW() WHERE id = $1`, userID, arg)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return ErrRoleNotFound
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetStatus changes the account status.
func (r *Repository) SetStatus(ctx context.Context, userID int64, status Status) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET status = $2, updated_at = NOW() WHERE id = $1`, userID, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CountWithoutRole returns the number of active users holding no role.
func (r *Repository) CountWithoutRole(ctx context.Context) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE role_id IS NULL AND status = $1`, StatusActive).Scan(&count)
	return count, err
}

// LoadSubject joins the user with its current role. Accounts that are not
// active resolve without a role.
func (r *Repository) LoadSubject(ctx context.Context, userID int64) (*rbac.Subject, error) {
	var (
		status      Status
		roleID      uuid.NullUUID
		roleName    *string
		roleIsAdmin *bool
		permissions []byte
	)
	err := r.pool.QueryRow(ctx, `
		SELECT u.status, ro.id, ro.name, ro.is_admin, ro.permissions
		FROM users u
		LEFT JOIN roles ro ON ro.id = u.role_id
		WHERE u.id = $1`, userID).Scan(&status, &roleID, &roleName, &roleIsAdmin, &permissions)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, rbac.ErrSubjectNotFound
		}
		return nil, err
	}
	subject := &rbac.Subject{UserID: userID}
	if status != StatusActive || !roleID.Valid {
		return subject, nil
	}
	doc, dropped := rbac.LoadDocument(permissions)
	if len(dropped) > 0 {
		r.logger.Warn("stored role document has invalid entries",
			slog.String("role_id", roleID.UUID.String()),
			slog.Any("dropped", dropped),
		)
	}
	role := rbac.Role{ID: roleID.UUID, Permissions: doc}
	if roleName != nil {
		role.Name = *roleName
	}
	if roleIsAdmin != nil {
		role.IsAdmin = *roleIsAdmin
	}
	subject.Role = &role
	return subject, nil
}

var _ rbac.SubjectLoader = (*Repository)(nil)
