package rbac

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/campushq/campus/pkg/apperr"
)

// MemoryStore is an in-memory Store used in tests.
type MemoryStore struct {
	mu          sync.RWMutex
	nextID      int64
	roles       map[int64]*Role
	permissions map[Tag]*Permission
	grants      map[int64]map[int64]bool // role ID -> permission IDs
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nextID:      1,
		roles:       make(map[int64]*Role),
		permissions: make(map[Tag]*Permission),
		grants:      make(map[int64]map[int64]bool),
	}
}

func (s *MemoryStore) CreateRole(_ context.Context, role *Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.roles {
		if existing.Name == role.Name && sameSchool(existing.SchoolID, role.SchoolID) {
			return apperr.Conflict("a role with this name already exists")
		}
	}

	now := time.Now()
	role.ID = s.nextID
	role.CreatedAt = now
	role.UpdatedAt = now
	s.nextID++

	clone := *role
	s.roles[role.ID] = &clone
	return nil
}

func (s *MemoryStore) GetRole(_ context.Context, id int64) (*Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	role, ok := s.roles[id]
	if !ok {
		return nil, apperr.NotFound("role not found")
	}
	return s.withPermissions(role), nil
}

func (s *MemoryStore) GetRoleByName(_ context.Context, name string, schoolID *int64) (*Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, role := range s.roles {
		if role.Name == name && sameSchool(role.SchoolID, schoolID) {
			return s.withPermissions(role), nil
		}
	}
	return nil, apperr.NotFound("role not found")
}

func (s *MemoryStore) ListRoles(_ context.Context, schoolID *int64) ([]*Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var roles []*Role
	for _, role := range s.roles {
		if role.SchoolID == nil || (schoolID != nil && *role.SchoolID == *schoolID) {
			roles = append(roles, s.withPermissions(role))
		}
	}
	sort.Slice(roles, func(i, j int) bool {
		if (roles[i].SchoolID == nil) != (roles[j].SchoolID == nil) {
			return roles[i].SchoolID == nil
		}
		return roles[i].Name < roles[j].Name
	})
	return roles, nil
}

func (s *MemoryStore) ListOwnedRoleNames(_ context.Context, schoolID int64) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var names []string
	for _, role := range s.roles {
		if role.SchoolID != nil && *role.SchoolID == schoolID {
			names = append(names, role.Name)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (s *MemoryStore) CreatePermission(_ context.Context, permission *Permission) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.permissions[permission.Name]; exists {
		return apperr.Conflict("a permission with this name already exists")
	}

	permission.ID = s.nextID
	permission.CreatedAt = time.Now()
	s.nextID++

	clone := *permission
	s.permissions[permission.Name] = &clone
	return nil
}

func (s *MemoryStore) GetPermissionByName(_ context.Context, name Tag) (*Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	permission, ok := s.permissions[name]
	if !ok {
		return nil, apperr.NotFound("permission not found")
	}
	clone := *permission
	return &clone, nil
}

func (s *MemoryStore) ListPermissions(_ context.Context) ([]*Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var permissions []*Permission
	for _, permission := range s.permissions {
		clone := *permission
		permissions = append(permissions, &clone)
	}
	sort.Slice(permissions, func(i, j int) bool {
		if permissions[i].Category != permissions[j].Category {
			return permissions[i].Category < permissions[j].Category
		}
		return permissions[i].Name < permissions[j].Name
	})
	return permissions, nil
}

func (s *MemoryStore) GrantPermission(_ context.Context, roleID, permissionID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.grants[roleID] == nil {
		s.grants[roleID] = make(map[int64]bool)
	}
	if s.grants[roleID][permissionID] {
		return apperr.Conflict("permission already granted to role")
	}
	s.grants[roleID][permissionID] = true
	return nil
}

func (s *MemoryStore) withPermissions(role *Role) *Role {
	clone := *role
	clone.Permissions = nil
	for _, permission := range s.permissions {
		if s.grants[role.ID][permission.ID] {
			clone.Permissions = append(clone.Permissions, *permission)
		}
	}
	sort.Slice(clone.Permissions, func(i, j int) bool {
		return clone.Permissions[i].Name < clone.Permissions[j].Name
	})
	return &clone
}

func sameSchool(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

var _ Store = (*MemoryStore)(nil)
