package members

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/campushq/campus/pkg/apperr"
	"github.com/campushq/campus/pkg/observability"
	"github.com/campushq/campus/pkg/rbac"
	"github.com/campushq/campus/pkg/users"
)

// DefaultInvitationTTL is how long a membership invitation stays acceptable.
const DefaultInvitationTTL = 7 * 24 * time.Hour

// Service implements membership management: invitations, role changes, and
// removal, all scoped to a single school.
type Service struct {
	store         Store
	roles         rbac.Store
	users         users.Store
	logger        *observability.Logger
	invitationTTL time.Duration
}

// NewService creates a new membership Service.
func NewService(store Store, roles rbac.Store, userStore users.Store, logger *observability.Logger) *Service {
	return &Service{
		store:         store,
		roles:         roles,
		users:         userStore,
		logger:        logger,
		invitationTTL: DefaultInvitationTTL,
	}
}

// InviteRequest describes a membership invitation.
type InviteRequest struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	RoleID    int64  `json:"role_id"`
}

// Invite creates an inactive membership for the invited user, creating an
// inactive user record if the email is unknown. The membership stays
// inactive and unvalidated until the invitation is accepted.
func (s *Service) Invite(ctx context.Context, schoolID, inviterID int64, req InviteRequest) (*Membership, error) {
	if req.Email == "" {
		return nil, apperr.Validation("email is required")
	}
	if req.RoleID == 0 {
		return nil, apperr.Validation("role_id is required")
	}

	role, err := s.roles.GetRole(ctx, req.RoleID)
	if err != nil {
		if apperr.IsNotFound(err) {
			return nil, apperr.Validation("role does not exist")
		}
		return nil, err
	}
	if !role.IsGlobal() && *role.SchoolID != schoolID {
		// Roles owned by other schools are invisible here.
		return nil, apperr.Validation("role does not exist")
	}

	user, err := s.users.EnsureByEmail(ctx, req.Email, req.FirstName, req.LastName)
	if err != nil {
		return nil, err
	}

	token := uuid.NewString()
	expiresAt := time.Now().Add(s.invitationTTL)
	membership := &Membership{
		UserID:              user.ID,
		SchoolID:            schoolID,
		RoleID:              role.ID,
		IsActive:            false,
		IsValidated:         false,
		InvitationToken:     &token,
		InvitationExpiresAt: &expiresAt,
		InvitedBy:           &inviterID,
	}

	if err := s.store.Create(ctx, membership); err != nil {
		return nil, err
	}

	s.logger.WithFields(map[string]interface{}{
		"school_id": schoolID,
		"user_id":   user.ID,
		"role":      role.Name,
	}).Info("membership invitation created")

	membership.Role = role
	membership.UserEmail = user.Email
	membership.UserFirstName = user.FirstName
	membership.UserLastName = user.LastName
	return membership, nil
}

// AcceptInvitation activates the membership behind an invitation token and
// activates the invited user account.
func (s *Service) AcceptInvitation(ctx context.Context, token string) (*Membership, error) {
	if token == "" {
		return nil, apperr.Validation("invitation token is required")
	}

	membership, err := s.store.GetByInvitationToken(ctx, token)
	if err != nil {
		if apperr.IsNotFound(err) {
			return nil, apperr.NotFound("invitation not found")
		}
		return nil, err
	}

	if membership.InvitationExpiresAt != nil && membership.InvitationExpiresAt.Before(time.Now()) {
		return nil, apperr.Validation("invitation has expired")
	}

	if err := s.store.Activate(ctx, membership.ID); err != nil {
		return nil, err
	}
	if err := s.users.SetActive(ctx, membership.UserID, true); err != nil {
		return nil, err
	}

	s.logger.WithFields(map[string]interface{}{
		"school_id":     membership.SchoolID,
		"membership_id": membership.ID,
	}).Info("membership invitation accepted")

	return s.store.Get(ctx, membership.ID)
}

// List returns all memberships of a school.
func (s *Service) List(ctx context.Context, schoolID int64) ([]*Membership, error) {
	return s.store.ListBySchool(ctx, schoolID)
}

// UpdateRole changes the role of a membership within the school.
func (s *Service) UpdateRole(ctx context.Context, schoolID, membershipID, roleID int64) (*Membership, error) {
	membership, err := s.memberOf(ctx, schoolID, membershipID)
	if err != nil {
		return nil, err
	}

	role, err := s.roles.GetRole(ctx, roleID)
	if err != nil {
		if apperr.IsNotFound(err) {
			return nil, apperr.Validation("role does not exist")
		}
		return nil, err
	}
	if !role.IsGlobal() && *role.SchoolID != schoolID {
		return nil, apperr.Validation("role does not exist")
	}

	if err := s.store.UpdateRole(ctx, membership.ID, role.ID); err != nil {
		return nil, err
	}

	return s.store.Get(ctx, membership.ID)
}

// SetActive administratively enables or disables a membership.
func (s *Service) SetActive(ctx context.Context, schoolID, membershipID int64, active bool) (*Membership, error) {
	membership, err := s.memberOf(ctx, schoolID, membershipID)
	if err != nil {
		return nil, err
	}
	if err := s.store.SetActive(ctx, membership.ID, active); err != nil {
		return nil, err
	}
	return s.store.Get(ctx, membership.ID)
}

// Remove deletes a membership from the school.
func (s *Service) Remove(ctx context.Context, schoolID, membershipID int64) error {
	membership, err := s.memberOf(ctx, schoolID, membershipID)
	if err != nil {
		return err
	}
	return s.store.Delete(ctx, membership.ID)
}

// CleanupExpiredInvitations removes never-accepted invitations past their
// expiry. It runs on a schedule.
func (s *Service) CleanupExpiredInvitations(ctx context.Context) error {
	removed, err := s.store.DeleteExpiredInvitations(ctx, time.Now())
	if err != nil {
		return fmt.Errorf("failed to clean up expired invitations: %w", err)
	}
	if removed > 0 {
		s.logger.WithField("removed", removed).Info("removed expired membership invitations")
	}
	return nil
}

// memberOf fetches a membership and confirms it belongs to the school. A
// membership of another school is reported as not found so the ID space does
// not leak across tenants.
func (s *Service) memberOf(ctx context.Context, schoolID, membershipID int64) (*Membership, error) {
	membership, err := s.store.Get(ctx, membershipID)
	if err != nil {
		return nil, err
	}
	if membership.SchoolID != schoolID {
		return nil, apperr.NotFound("membership not found")
	}
	return membership, nil
}
