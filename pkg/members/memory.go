package members

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/campushq/campus/pkg/apperr"
	"github.com/campushq/campus/pkg/rbac"
)

// MemoryStore is an in-memory Store used in tests.
type MemoryStore struct {
	mu          sync.RWMutex
	nextID      int64
	memberships map[int64]*Membership
	roles       rbac.Store
}

// NewMemoryStore creates an empty MemoryStore resolving roles through the
// given rbac store.
func NewMemoryStore(roles rbac.Store) *MemoryStore {
	return &MemoryStore{
		nextID:      1,
		memberships: make(map[int64]*Membership),
		roles:       roles,
	}
}

func (s *MemoryStore) Create(_ context.Context, membership *Membership) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.memberships {
		if existing.UserID == membership.UserID && existing.SchoolID == membership.SchoolID {
			return apperr.Conflict("user already belongs to this school")
		}
	}

	now := time.Now()
	membership.ID = s.nextID
	membership.CreatedAt = now
	membership.UpdatedAt = now
	s.nextID++

	clone := *membership
	clone.Role = nil
	s.memberships[membership.ID] = &clone
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id int64) (*Membership, error) {
	s.mu.RLock()
	membership, ok := s.memberships[id]
	if !ok {
		s.mu.RUnlock()
		return nil, apperr.NotFound("membership not found")
	}
	clone := *membership
	s.mu.RUnlock()

	return s.attachRole(ctx, &clone)
}

func (s *MemoryStore) GetByUserAndSchool(ctx context.Context, userID, schoolID int64) (*Membership, error) {
	s.mu.RLock()
	var found *Membership
	for _, membership := range s.memberships {
		if membership.UserID == userID && membership.SchoolID == schoolID {
			clone := *membership
			found = &clone
			break
		}
	}
	s.mu.RUnlock()

	if found == nil {
		return nil, apperr.NotFound("membership not found")
	}
	return s.attachRole(ctx, found)
}

func (s *MemoryStore) GetByInvitationToken(ctx context.Context, token string) (*Membership, error) {
	s.mu.RLock()
	var found *Membership
	for _, membership := range s.memberships {
		if membership.InvitationToken != nil && *membership.InvitationToken == token {
			clone := *membership
			found = &clone
			break
		}
	}
	s.mu.RUnlock()

	if found == nil {
		return nil, apperr.NotFound("membership not found")
	}
	return s.attachRole(ctx, found)
}

func (s *MemoryStore) ListBySchool(ctx context.Context, schoolID int64) ([]*Membership, error) {
	s.mu.RLock()
	var memberships []*Membership
	for _, membership := range s.memberships {
		if membership.SchoolID == schoolID {
			clone := *membership
			memberships = append(memberships, &clone)
		}
	}
	s.mu.RUnlock()

	sort.Slice(memberships, func(i, j int) bool {
		return memberships[i].ID < memberships[j].ID
	})

	for i, membership := range memberships {
		attached, err := s.attachRole(ctx, membership)
		if err != nil {
			return nil, err
		}
		memberships[i] = attached
	}
	return memberships, nil
}

func (s *MemoryStore) UpdateRole(_ context.Context, id, roleID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	membership, ok := s.memberships[id]
	if !ok {
		return apperr.NotFound("membership not found")
	}
	membership.RoleID = roleID
	membership.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) Activate(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	membership, ok := s.memberships[id]
	if !ok {
		return apperr.NotFound("membership not found")
	}
	now := time.Now()
	membership.IsActive = true
	membership.IsValidated = true
	membership.JoinedAt = &now
	membership.InvitationToken = nil
	membership.InvitationExpiresAt = nil
	membership.UpdatedAt = now
	return nil
}

func (s *MemoryStore) SetActive(_ context.Context, id int64, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	membership, ok := s.memberships[id]
	if !ok {
		return apperr.NotFound("membership not found")
	}
	membership.IsActive = active
	membership.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.memberships[id]; !ok {
		return apperr.NotFound("membership not found")
	}
	delete(s.memberships, id)
	return nil
}

func (s *MemoryStore) DeleteExpiredInvitations(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	for id, membership := range s.memberships {
		if !membership.IsValidated &&
			membership.InvitationToken != nil &&
			membership.InvitationExpiresAt != nil &&
			membership.InvitationExpiresAt.Before(before) {
			delete(s.memberships, id)
			removed++
		}
	}
	return removed, nil
}

func (s *MemoryStore) attachRole(ctx context.Context, membership *Membership) (*Membership, error) {
	if s.roles == nil {
		return membership, nil
	}
	role, err := s.roles.GetRole(ctx, membership.RoleID)
	if err != nil {
		return nil, err
	}
	membership.Role = role
	return membership, nil
}

var _ Store = (*MemoryStore)(nil)
