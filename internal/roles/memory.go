package roles

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fieldops/fieldops/internal/rbac"
)

// MemoryRepository is an in-process role store that also tracks which role
// each user holds. All checks and writes happen under one lock, so it gives
// the same uniqueness and reference guarantees as the PostgreSQL schema.
type MemoryRepository struct {
	mu     sync.RWMutex
	roles  map[uuid.UUID]rbac.Role
	byName map[string]uuid.UUID
	users  map[int64]*uuid.UUID
	now    func() time.Time
}

// NewMemoryRepository returns an empty store.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		roles:  make(map[uuid.UUID]rbac.Role),
		byName: make(map[string]uuid.UUID),
		users:  make(map[int64]*uuid.UUID),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// ListRoles returns all roles ordered by name.
func (m *MemoryRepository) ListRoles(ctx context.Context) ([]rbac.Role, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]rbac.Role, 0, len(m.roles))
	for _, role := range m.roles {
		out = append(out, cloneRole(role))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// GetRole fetches a role by id.
func (m *MemoryRepository) GetRole(ctx context.Context, id uuid.UUID) (rbac.Role, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	role, ok := m.roles[id]
	if !ok {
		return rbac.Role{}, ErrNotFound
	}
	return cloneRole(role), nil
}

// CreateRole inserts a new role.
func (m *MemoryRepository) CreateRole(ctx context.Context, role rbac.Role) (rbac.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, taken := m.byName[role.Name]; taken {
		return rbac.Role{}, ErrDuplicateName
	}
	if _, exists := m.roles[role.ID]; exists {
		return rbac.Role{}, ErrDuplicateName
	}
	now := m.now()
	role = cloneRole(role)
	role.CreatedAt = now
	role.UpdatedAt = now
	m.roles[role.ID] = role
	m.byName[role.Name] = role.ID
	return cloneRole(role), nil
}

// UpdateRole replaces every mutable field of a role.
func (m *MemoryRepository) UpdateRole(ctx context.Context, role rbac.Role) (rbac.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.roles[role.ID]
	if !ok {
		return rbac.Role{}, ErrNotFound
	}
	if holder, taken := m.byName[role.Name]; taken && holder != role.ID {
		return rbac.Role{}, ErrDuplicateName
	}
	delete(m.byName, existing.Name)
	role = cloneRole(role)
	role.CreatedAt = existing.CreatedAt
	role.UpdatedAt = m.now()
	m.roles[role.ID] = role
	m.byName[role.Name] = role.ID
	return cloneRole(role), nil
}

// DeleteRole removes a role, optionally moving its users to reassignTo.
func (m *MemoryRepository) DeleteRole(ctx context.Context, id uuid.UUID, reassignTo *uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	role, ok := m.roles[id]
	if !ok {
		return ErrNotFound
	}
	if reassignTo != nil {
		if _, ok := m.roles[*reassignTo]; !ok {
			return ErrNotFound
		}
		target := *reassignTo
		for userID, held := range m.users {
			if held != nil && *held == id {
				m.users[userID] = &target
			}
		}
	}
	for _, held := range m.users {
		if held != nil && *held == id {
			return ErrInUse
		}
	}
	delete(m.roles, id)
	delete(m.byName, role.Name)
	return nil
}

// AddUser registers a user holding roleID, which may be nil.
func (m *MemoryRepository) AddUser(userID int64, roleID *uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bindLocked(userID, roleID)
}

// AssignRole changes the role a known user holds.
func (m *MemoryRepository) AssignRole(ctx context.Context, userID int64, roleID *uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[userID]; !ok {
		return rbac.ErrSubjectNotFound
	}
	return m.bindLocked(userID, roleID)
}

func (m *MemoryRepository) bindLocked(userID int64, roleID *uuid.UUID) error {
	if roleID == nil {
		m.users[userID] = nil
		return nil
	}
	if _, ok := m.roles[*roleID]; !ok {
		return ErrNotFound
	}
	id := *roleID
	m.users[userID] = &id
	return nil
}

// CountUsers returns how many users hold roleID.
func (m *MemoryRepository) CountUsers(ctx context.Context, roleID uuid.UUID) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, held := range m.users {
		if held != nil && *held == roleID {
			count++
		}
	}
	return count, nil
}

// CountWithoutRole returns how many users hold no role.
func (m *MemoryRepository) CountWithoutRole(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, held := range m.users {
		if held == nil {
			count++
		}
	}
	return count, nil
}

// RawDocuments encodes every stored document, keyed by role.
func (m *MemoryRepository) RawDocuments(ctx context.Context) (map[uuid.UUID]RawDocument, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[uuid.UUID]RawDocument, len(m.roles))
	for id, role := range m.roles {
		data, err := role.Permissions.MarshalJSON()
		if err != nil {
			return nil, err
		}
		out[id] = RawDocument{Name: role.Name, JSON: data}
	}
	return out, nil
}

// LoadSubject resolves the user's current role.
func (m *MemoryRepository) LoadSubject(ctx context.Context, userID int64) (*rbac.Subject, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	held, ok := m.users[userID]
	if !ok {
		return nil, rbac.ErrSubjectNotFound
	}
	subject := &rbac.Subject{UserID: userID}
	if held != nil {
		if role, ok := m.roles[*held]; ok {
			r := cloneRole(role)
			subject.Role = &r
		}
	}
	return subject, nil
}

func cloneRole(role rbac.Role) rbac.Role {
	role.Permissions = role.Permissions.Clone()
	return role
}

var (
	_ RepositoryPort     = (*MemoryRepository)(nil)
	_ rbac.SubjectLoader = (*MemoryRepository)(nil)
)
