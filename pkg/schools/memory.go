package schools

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/campushq/campus/pkg/apperr"
)

// MemoryStore is an in-memory Store used in tests.
type MemoryStore struct {
	mu      sync.RWMutex
	nextID  int64
	schools map[int64]*School
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nextID:  1,
		schools: make(map[int64]*School),
	}
}

func (s *MemoryStore) Create(_ context.Context, school *School) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(school.Email)
	for _, existing := range s.schools {
		if existing.Email == email {
			return apperr.Conflict("a school with this email already exists")
		}
	}

	now := time.Now()
	school.ID = s.nextID
	school.Email = email
	school.DirectorEmail = strings.ToLower(school.DirectorEmail)
	school.Status = StatusPending
	school.CreatedAt = now
	school.UpdatedAt = now
	s.nextID++

	clone := *school
	s.schools[school.ID] = &clone
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id int64) (*School, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	school, ok := s.schools[id]
	if !ok {
		return nil, apperr.NotFound("school not found")
	}
	clone := *school
	return &clone, nil
}

func (s *MemoryStore) EmailInUse(_ context.Context, email string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	email = strings.ToLower(email)
	for _, school := range s.schools {
		if school.Email == email || school.DirectorEmail == email {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) List(_ context.Context, status *SchoolStatus) ([]*School, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var schools []*School
	for _, school := range s.schools {
		if status != nil && school.Status != *status {
			continue
		}
		clone := *school
		schools = append(schools, &clone)
	}
	sort.Slice(schools, func(i, j int) bool {
		return schools[i].ID < schools[j].ID
	})
	return schools, nil
}

func (s *MemoryStore) Approve(_ context.Context, id, approverID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	school, ok := s.schools[id]
	if !ok {
		return apperr.NotFound("school not found")
	}
	if school.Status != StatusPending {
		return apperr.Conflict("school is not in the required status for this transition")
	}

	now := time.Now()
	school.Status = StatusValidated
	school.ValidatedAt = &now
	school.ValidatedBy = &approverID
	school.UpdatedAt = now
	return nil
}

func (s *MemoryStore) Reject(_ context.Context, id int64, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	school, ok := s.schools[id]
	if !ok {
		return apperr.NotFound("school not found")
	}
	if school.Status != StatusPending {
		return apperr.Conflict("school is not in the required status for this transition")
	}

	school.Status = StatusRejected
	school.RejectionReason = reason
	school.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) Suspend(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	school, ok := s.schools[id]
	if !ok {
		return apperr.NotFound("school not found")
	}
	if school.Status != StatusValidated {
		return apperr.Conflict("school is not in the required status for this transition")
	}

	school.Status = StatusSuspended
	school.UpdatedAt = time.Now()
	return nil
}

var _ Store = (*MemoryStore)(nil)
