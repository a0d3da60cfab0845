package users

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/campushq/campus/pkg/apperr"
	"github.com/campushq/campus/pkg/auth"
)

// MemoryStore is an in-memory Store used in tests.
type MemoryStore struct {
	mu      sync.RWMutex
	nextID  int64
	byID    map[int64]*User
	byEmail map[string]int64
	tokens  map[string]int64 // token hash -> user ID
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nextID:  1,
		byID:    make(map[int64]*User),
		byEmail: make(map[string]int64),
		tokens:  make(map[string]int64),
	}
}

func (s *MemoryStore) Create(_ context.Context, user *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(user.Email)
	if _, exists := s.byEmail[email]; exists {
		return apperr.Conflict("a user with this email already exists")
	}

	now := time.Now()
	user.ID = s.nextID
	user.Email = email
	user.CreatedAt = now
	user.UpdatedAt = now
	s.nextID++

	clone := *user
	s.byID[user.ID] = &clone
	s.byEmail[email] = user.ID
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id int64) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.byID[id]
	if !ok {
		return nil, apperr.NotFound("user not found")
	}
	clone := *user
	return &clone, nil
}

func (s *MemoryStore) GetByEmail(_ context.Context, email string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, apperr.NotFound("user not found")
	}
	clone := *s.byID[id]
	return &clone, nil
}

func (s *MemoryStore) EnsureByEmail(ctx context.Context, email, firstName, lastName string) (*User, error) {
	existing, err := s.GetByEmail(ctx, email)
	if err == nil {
		return existing, nil
	}
	if !apperr.IsNotFound(err) {
		return nil, err
	}

	user := &User{
		Email:     email,
		FirstName: firstName,
		LastName:  lastName,
		IsActive:  false,
	}
	if err := s.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *MemoryStore) MarkEmailVerified(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.byID[id]
	if !ok {
		return apperr.NotFound("user not found")
	}
	user.IsEmailVerified = true
	user.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) SetActive(_ context.Context, id int64, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.byID[id]
	if !ok {
		return apperr.NotFound("user not found")
	}
	user.IsActive = active
	user.UpdatedAt = time.Now()
	return nil
}

// AddToken associates a token hash with a user for test authentication.
func (s *MemoryStore) AddToken(tokenHash string, userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[tokenHash] = userID
}

func (s *MemoryStore) IdentityByTokenHash(_ context.Context, tokenHash string) (*auth.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	userID, ok := s.tokens[tokenHash]
	if !ok {
		return nil, apperr.Authentication("invalid or expired token")
	}
	user, ok := s.byID[userID]
	if !ok || !user.IsActive {
		return nil, apperr.Authentication("invalid or expired token")
	}
	return &auth.Identity{UserID: user.ID, Email: user.Email}, nil
}

var _ Store = (*MemoryStore)(nil)
var _ auth.TokenStore = (*MemoryStore)(nil)
