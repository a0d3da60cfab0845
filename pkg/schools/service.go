package schools

import (
	"context"
	"fmt"
	"strings"

	"github.com/campushq/campus/pkg/apperr"
	"github.com/campushq/campus/pkg/members"
	"github.com/campushq/campus/pkg/observability"
	"github.com/campushq/campus/pkg/rbac"
	"github.com/campushq/campus/pkg/users"
)

// Service implements the school lifecycle: registration, approval,
// rejection, and suspension. It exclusively owns status transitions and the
// founding membership's activation flags.
type Service struct {
	schools     Store
	memberships members.Store
	users       users.Store
	roles       rbac.Store
	provisioner *rbac.Provisioner
	logger      *observability.Logger
	metrics     *observability.Metrics
}

// NewService creates a new school Service. metrics may be nil.
func NewService(
	schoolStore Store,
	membershipStore members.Store,
	userStore users.Store,
	roleStore rbac.Store,
	provisioner *rbac.Provisioner,
	logger *observability.Logger,
	metrics *observability.Metrics,
) *Service {
	return &Service{
		schools:     schoolStore,
		memberships: membershipStore,
		users:       userStore,
		roles:       roleStore,
		provisioner: provisioner,
		logger:      logger,
		metrics:     metrics,
	}
}

// RegisterRequest carries the school profile and the founding administrator
// profile.
type RegisterRequest struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	City    string `json:"city"`
	Phone   string `json:"phone"`
	Email   string `json:"email"`

	DirectorFirstName string `json:"director_first_name"`
	DirectorLastName  string `json:"director_last_name"`
	DirectorEmail     string `json:"director_email"`
	DirectorPhone     string `json:"director_phone"`
}

// RegisterResponse is returned by the onboarding endpoint.
type RegisterResponse struct {
	ID      int64        `json:"id"`
	Name    string       `json:"name"`
	Email   string       `json:"email"`
	Status  SchoolStatus `json:"status"`
	Message string       `json:"message"`
}

// Register creates a school in pending status with its default role set, the
// founding director's user record, and an inactive founding membership bound
// to the global admin role. The membership stays dormant until approval.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*RegisterResponse, error) {
	if err := validateRegisterRequest(req); err != nil {
		return nil, err
	}

	for _, email := range []string{req.Email, req.DirectorEmail} {
		inUse, err := s.schools.EmailInUse(ctx, email)
		if err != nil {
			return nil, err
		}
		if inUse {
			return nil, apperr.Conflict("email is already associated with a school registration")
		}
	}

	// The global admin role is provisioned at startup; its absence here is
	// a configuration error, not a caller mistake.
	adminRole, err := s.roles.GetRoleByName(ctx, rbac.RoleAdmin, nil)
	if err != nil {
		return nil, fmt.Errorf("global admin role is not provisioned: %w", err)
	}

	school := &School{
		Name:              req.Name,
		Address:           req.Address,
		City:              req.City,
		Phone:             req.Phone,
		Email:             req.Email,
		DirectorFirstName: req.DirectorFirstName,
		DirectorLastName:  req.DirectorLastName,
		DirectorEmail:     req.DirectorEmail,
		DirectorPhone:     req.DirectorPhone,
	}
	if err := s.schools.Create(ctx, school); err != nil {
		s.countRegistration("conflict")
		return nil, err
	}

	if err := s.provisioner.EnsureDefaultRoles(ctx, school.ID); err != nil {
		return nil, err
	}

	director, err := s.users.EnsureByEmail(ctx, req.DirectorEmail, req.DirectorFirstName, req.DirectorLastName)
	if err != nil {
		return nil, err
	}

	membership := &members.Membership{
		UserID:      director.ID,
		SchoolID:    school.ID,
		RoleID:      adminRole.ID,
		IsActive:    false,
		IsValidated: false,
	}
	if err := s.memberships.Create(ctx, membership); err != nil {
		return nil, err
	}

	s.countRegistration("pending")
	s.logger.WithFields(map[string]interface{}{
		"school_id": school.ID,
		"name":      school.Name,
	}).Info("school registered")

	return &RegisterResponse{
		ID:      school.ID,
		Name:    school.Name,
		Email:   school.Email,
		Status:  school.Status,
		Message: "Registration received and awaiting validation",
	}, nil
}

// Approve transitions a pending school to validated and activates its
// founding membership. The status transition is the concurrency guard: only
// the caller that wins it applies the membership side effects.
func (s *Service) Approve(ctx context.Context, schoolID, approverID int64) (*School, error) {
	school, err := s.schools.Get(ctx, schoolID)
	if err != nil {
		return nil, err
	}

	if err := s.schools.Approve(ctx, schoolID, approverID); err != nil {
		// A validated school with a dormant founding membership means a
		// previous approval crashed between the status flip and the side
		// effects. Finish the activation before reporting the conflict so
		// the school does not stay wedged.
		if apperr.IsConflict(err) && school.Status == StatusValidated {
			if repairErr := s.activateFounding(ctx, school); repairErr != nil {
				s.logger.WithFields(map[string]interface{}{
					"school_id": schoolID,
					"error":     repairErr.Error(),
				}).Error("founding membership repair failed")
			}
		}
		return nil, err
	}

	if err := s.activateFounding(ctx, school); err != nil {
		return nil, err
	}

	s.countTransition(StatusValidated)
	s.logger.WithFields(map[string]interface{}{
		"school_id":   schoolID,
		"approved_by": approverID,
	}).Info("school approved")

	return s.schools.Get(ctx, schoolID)
}

// activateFounding flips the founding membership live and activates the
// director account. Every step is idempotent, so it can re-run to complete a
// partially applied approval.
func (s *Service) activateFounding(ctx context.Context, school *School) error {
	director, err := s.users.GetByEmail(ctx, school.DirectorEmail)
	if err != nil {
		return fmt.Errorf("founding director record missing: %w", err)
	}
	membership, err := s.memberships.GetByUserAndSchool(ctx, director.ID, school.ID)
	if err != nil {
		return fmt.Errorf("founding membership record missing: %w", err)
	}

	if err := s.memberships.Activate(ctx, membership.ID); err != nil {
		return err
	}
	if err := s.users.MarkEmailVerified(ctx, director.ID); err != nil {
		return err
	}
	return s.users.SetActive(ctx, director.ID, true)
}

// Reject transitions a pending school to rejected. The founding membership
// is left untouched.
func (s *Service) Reject(ctx context.Context, schoolID int64, reason string) (*School, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, apperr.Validation("rejection reason is required")
	}

	if err := s.schools.Reject(ctx, schoolID, reason); err != nil {
		return nil, err
	}

	s.countTransition(StatusRejected)
	s.logger.WithField("school_id", schoolID).Info("school rejected")

	return s.schools.Get(ctx, schoolID)
}

// Suspend transitions a validated school to suspended, making it
// inaccessible to all members.
func (s *Service) Suspend(ctx context.Context, schoolID int64) (*School, error) {
	if err := s.schools.Suspend(ctx, schoolID); err != nil {
		return nil, err
	}

	s.countTransition(StatusSuspended)
	s.logger.WithField("school_id", schoolID).Info("school suspended")

	return s.schools.Get(ctx, schoolID)
}

// Get retrieves a school by ID.
func (s *Service) Get(ctx context.Context, schoolID int64) (*School, error) {
	return s.schools.Get(ctx, schoolID)
}

// List returns schools, optionally filtered by status.
func (s *Service) List(ctx context.Context, status *SchoolStatus) ([]*School, error) {
	return s.schools.List(ctx, status)
}

func (s *Service) countRegistration(outcome string) {
	if s.metrics != nil {
		s.metrics.SchoolRegistrationsTotal.WithLabelValues(outcome).Inc()
	}
}

func (s *Service) countTransition(to SchoolStatus) {
	if s.metrics != nil {
		s.metrics.SchoolTransitionsTotal.WithLabelValues(string(to)).Inc()
	}
}

func validateRegisterRequest(req RegisterRequest) error {
	switch {
	case strings.TrimSpace(req.Name) == "":
		return apperr.Validation("school name is required")
	case strings.TrimSpace(req.Email) == "":
		return apperr.Validation("school email is required")
	case strings.TrimSpace(req.DirectorEmail) == "":
		return apperr.Validation("director email is required")
	case strings.TrimSpace(req.DirectorFirstName) == "":
		return apperr.Validation("director first name is required")
	case strings.TrimSpace(req.DirectorLastName) == "":
		return apperr.Validation("director last name is required")
	}
	return nil
}
