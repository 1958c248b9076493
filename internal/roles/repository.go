package roles

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

const roleColumns = `id, name, description, is_admin, permissions, created_at, updated_at`

// PGRepository provides PostgreSQL backed persistence. Name uniqueness is the
// roles_name_key unique index; user references are a foreign key with
// ON DELETE RESTRICT.
type PGRepository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool, logger *slog.Logger) *PGRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PGRepository{pool: pool, logger: logger}
}

// ListRoles returns all roles ordered by name.
func (r *PGRepository) ListRoles(ctx context.Context) ([]rbac.Role, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+roleColumns+` FROM roles ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []rbac.Role
	for rows.Next() {
		role, err := r.scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return roles, nil
}

// GetRole fetches a role by id.
func (r *PGRepository) GetRole(ctx context.Context, id uuid.UUID) (rbac.Role, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE id = $1`, id)
	role, err := r.scanRole(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return rbac.Role{}, ErrNotFound
		}
		return rbac.Role{}, err
	}
	return role, nil
}

// CreateRole inserts a new role.
func (r *PGRepository) CreateRole(ctx context.Context, role rbac.Role) (rbac.Role, error) {
	doc, err := role.Permissions.MarshalJSON()
	if err != nil {
		return rbac.Role{}, err
	}
	row := r.pool.QueryRow(ctx, `
		INSERT INTO roles (id, name, description, is_admin, permissions, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		RETURNING `+roleColumns,
		role.ID, role.Name, role.Description, role.IsAdmin, doc)
	created, err := r.scanRole(row)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return rbac.Role{}, ErrDuplicateName
		}
		return rbac.Role{}, err
	}
	return created, nil
}

// UpdateRole replaces every mutable column of a role.
func (r *PGRepository) UpdateRole(ctx context.Context, role rbac.Role) (rbac.Role, error) {
	doc, err := role.Permissions.MarshalJSON()
	if err != nil {
		return rbac.Role{}, err
	}
	row := r.pool.QueryRow(ctx, `
		UPDATE roles
		SET name = $2, description = $3, is_admin = $4, permissions = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING `+roleColumns,
		role.ID, role.Name, role.Description, role.IsAdmin, doc)
	updated, err := r.scanRole(row)
	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return rbac.Role{}, ErrNotFound
		case db.IsUniqueViolation(err):
			return rbac.Role{}, ErrDuplicateName
		}
		return rbac.Role{}, err
	}
	return updated, nil
}

// DeleteRole removes a role, optionally moving its users to reassignTo in the
// same transaction.
func (r *PGRepository) DeleteRole(ctx context.Context, id uuid.UUID, reassignTo *uuid.UUID) error {
	return db.WithTx(ctx, r.pool, pgx.ReadCommitted, func(tx pgx.Tx) error {
		if reassignTo != nil {
			var target uuid.UUID
			err := tx.QueryRow(ctx, `SELECT id FROM roles WHERE id = $1 FOR SHARE`, *reassignTo).Scan(&target)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return ErrNotFound
				}
				return err
			}
			if _, err := tx.Exec(ctx, `UPDATE users SET role_id = $2, updated_at = NOW() WHERE role_id = $1`, id, target); err != nil {
				return err
			}
		}
		tag, err := tx.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
		if err != nil {
			if db.IsForeignKeyViolation(err) {
				return ErrInUse
			}
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// RawDocuments returns every stored permission document undecoded, keyed by
// role. It feeds the role document audit.
func (r *PGRepository) RawDocuments(ctx context.Context) (map[uuid.UUID]RawDocument, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, permissions FROM roles`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[uuid.UUID]RawDocument)
	for rows.Next() {
		var (
			id  uuid.UUID
			doc RawDocument
		)
		if err := rows.Scan(&id, &doc.Name, &doc.JSON); err != nil {
			return nil, err
		}
		out[id] = doc
	}
	return out, rows.Err()
}

// RawDocument is a stored permission document before decoding.
type RawDocument struct {
	Name string
	JSON []byte
}

func (r *PGRepository) scanRole(row pgx.Row) (rbac.Role, error) {
	var (
		role rbac.Role
		raw  []byte
	)
	if err := row.Scan(&role.ID, &role.Name, &role.Description, &role.IsAdmin, &raw, &role.CreatedAt, &role.UpdatedAt); err != nil {
		return rbac.Role{}, err
	}
	doc, dropped := rbac.LoadDocument(raw)
	if len(dropped) > 0 {
		r.logger.Warn("stored role document has invalid entries",
			slog.String("role_id", role.ID.String()),
			slog.Any("dropped", dropped),
		)
	}
	role.Permissions = doc
	return role, nil
}

var _ RepositoryPort = (*PGRepository)(nil)
