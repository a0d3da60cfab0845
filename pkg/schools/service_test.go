package schools

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campushq/campus/pkg/apperr"
	"github.com/campushq/campus/pkg/members"
	"github.com/campushq/campus/pkg/observability"
	"github.com/campushq/campus/pkg/rbac"
	"github.com/campushq/campus/pkg/users"
)

type serviceFixture struct {
	service     *Service
	schools     *MemoryStore
	memberships *members.MemoryStore
	users       *users.MemoryStore
	roles       *rbac.MemoryStore
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()

	roles := rbac.NewMemoryStore()
	userStore := users.NewMemoryStore()
	membershipStore := members.NewMemoryStore(roles)
	schoolStore := NewMemoryStore()
	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	provisioner := rbac.NewProvisioner(roles, logger)
	require.NoError(t, provisioner.EnsureSystemCatalog(context.Background()))

	return &serviceFixture{
		service:     NewService(schoolStore, membershipStore, userStore, roles, provisioner, logger, nil),
		schools:     schoolStore,
		memberships: membershipStore,
		users:       userStore,
		roles:       roles,
	}
}

func registerRequest() RegisterRequest {
	return RegisterRequest{
		Name:              "Northside Academy",
		Address:           "12 Hill Road",
		City:              "Springfield",
		Phone:             "+15550100",
		Email:             "office@northside.example.com",
		DirectorFirstName: "Ada",
		DirectorLastName:  "Lovelace",
		DirectorEmail:     "ada@northside.example.com",
		DirectorPhone:     "+15550101",
	}
}

func TestService_Register(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)

	resp, err := f.service.Register(ctx, registerRequest())
	require.NoError(t, err)

	assert.Equal(t, StatusPending, resp.Status)
	assert.Equal(t, "Northside Academy", resp.Name)
	assert.NotZero(t, resp.ID)

	// Founding director exists but is dormant until approval.
	director, err := f.users.GetByEmail(ctx, "ada@northside.example.com")
	require.NoError(t, err)
	assert.False(t, director.IsActive)
	assert.False(t, director.IsEmailVerified)

	// Founding membership is bound to the global admin role, inactive and
	// unvalidated.
	membership, err := f.memberships.GetByUserAndSchool(ctx, director.ID, resp.ID)
	require.NoError(t, err)
	assert.False(t, membership.IsActive)
	assert.False(t, membership.IsValidated)
	require.NotNil(t, membership.Role)
	assert.Equal(t, rbac.RoleAdmin, membership.Role.Name)
	assert.True(t, membership.Role.IsGlobal())

	// Default roles are provisioned at registration.
	names, err := f.roles.ListOwnedRoleNames(ctx, resp.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, rbac.DefaultRoleNames(), names)
}

func TestService_Register_DuplicateSchoolEmail(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)

	_, err := f.service.Register(ctx, registerRequest())
	require.NoError(t, err)

	second := registerRequest()
	second.DirectorEmail = "someone.else@example.com"
	_, err = f.service.Register(ctx, second)
	assert.True(t, apperr.IsConflict(err))
}

func TestService_Register_DuplicateDirectorEmail(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)

	_, err := f.service.Register(ctx, registerRequest())
	require.NoError(t, err)

	second := registerRequest()
	second.Email = "other@example.com"
	_, err = f.service.Register(ctx, second)
	assert.True(t, apperr.IsConflict(err))
}

func TestService_Register_MissingFields(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)

	req := registerRequest()
	req.Name = ""
	_, err := f.service.Register(ctx, req)
	assert.True(t, apperr.IsValidation(err))

	req = registerRequest()
	req.DirectorEmail = ""
	_, err = f.service.Register(ctx, req)
	assert.True(t, apperr.IsValidation(err))
}

func TestService_Approve(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)

	resp, err := f.service.Register(ctx, registerRequest())
	require.NoError(t, err)

	approverID := int64(500)
	school, err := f.service.Approve(ctx, resp.ID, approverID)
	require.NoError(t, err)

	assert.Equal(t, StatusValidated, school.Status)
	require.NotNil(t, school.ValidatedAt)
	require.NotNil(t, school.ValidatedBy)
	assert.Equal(t, approverID, *school.ValidatedBy)

	director, err := f.users.GetByEmail(ctx, "ada@northside.example.com")
	require.NoError(t, err)
	assert.True(t, director.IsEmailVerified)
	assert.True(t, director.IsActive)

	membership, err := f.memberships.GetByUserAndSchool(ctx, director.ID, resp.ID)
	require.NoError(t, err)
	assert.True(t, membership.IsActive)
	assert.True(t, membership.IsValidated)
	require.NotNil(t, membership.JoinedAt)
}

func TestService_Approve_NotPending(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)

	resp, err := f.service.Register(ctx, registerRequest())
	require.NoError(t, err)

	_, err = f.service.Approve(ctx, resp.ID, 500)
	require.NoError(t, err)

	// A second approval hits a validated school.
	_, err = f.service.Approve(ctx, resp.ID, 500)
	assert.True(t, apperr.IsConflict(err))
}

func TestService_Approve_CompletesInterruptedActivation(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)

	resp, err := f.service.Register(ctx, registerRequest())
	require.NoError(t, err)

	// The status flip landed but the process died before the membership
	// side effects: the school is validated, the founding membership dormant.
	require.NoError(t, f.schools.Approve(ctx, resp.ID, 500))

	director, err := f.users.GetByEmail(ctx, "ada@northside.example.com")
	require.NoError(t, err)
	membership, err := f.memberships.GetByUserAndSchool(ctx, director.ID, resp.ID)
	require.NoError(t, err)
	require.False(t, membership.IsActive)

	// Re-approving still conflicts, but finishes the activation.
	_, err = f.service.Approve(ctx, resp.ID, 500)
	assert.True(t, apperr.IsConflict(err))

	membership, err = f.memberships.GetByUserAndSchool(ctx, director.ID, resp.ID)
	require.NoError(t, err)
	assert.True(t, membership.IsActive)
	assert.True(t, membership.IsValidated)

	director, err = f.users.GetByEmail(ctx, "ada@northside.example.com")
	require.NoError(t, err)
	assert.True(t, director.IsEmailVerified)
	assert.True(t, director.IsActive)

	school, err := f.schools.Get(ctx, resp.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusValidated, school.Status)
}

func TestService_Approve_UnknownSchool(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)

	_, err := f.service.Approve(ctx, 999, 500)
	assert.True(t, apperr.IsNotFound(err))
}

func TestService_Reject(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)

	resp, err := f.service.Register(ctx, registerRequest())
	require.NoError(t, err)

	school, err := f.service.Reject(ctx, resp.ID, "Missing required documentation")
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, school.Status)
	assert.Equal(t, "Missing required documentation", school.RejectionReason)

	// Rejection leaves the founding membership untouched.
	director, err := f.users.GetByEmail(ctx, "ada@northside.example.com")
	require.NoError(t, err)
	membership, err := f.memberships.GetByUserAndSchool(ctx, director.ID, resp.ID)
	require.NoError(t, err)
	assert.False(t, membership.IsActive)
	assert.False(t, membership.IsValidated)

	// Rejected is terminal: approval can no longer happen.
	_, err = f.service.Approve(ctx, resp.ID, 500)
	assert.True(t, apperr.IsConflict(err))
}

func TestService_Reject_RequiresReason(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)

	resp, err := f.service.Register(ctx, registerRequest())
	require.NoError(t, err)

	_, err = f.service.Reject(ctx, resp.ID, "  ")
	assert.True(t, apperr.IsValidation(err))
}

func TestService_Suspend(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)

	resp, err := f.service.Register(ctx, registerRequest())
	require.NoError(t, err)

	// Suspension requires a validated school.
	_, err = f.service.Suspend(ctx, resp.ID)
	assert.True(t, apperr.IsConflict(err))

	_, err = f.service.Approve(ctx, resp.ID, 500)
	require.NoError(t, err)

	school, err := f.service.Suspend(ctx, resp.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusSuspended, school.Status)
}

func TestService_List(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)

	first, err := f.service.Register(ctx, registerRequest())
	require.NoError(t, err)

	second := registerRequest()
	second.Name = "Southside Academy"
	second.Email = "office@southside.example.com"
	second.DirectorEmail = "dir@southside.example.com"
	_, err = f.service.Register(ctx, second)
	require.NoError(t, err)

	_, err = f.service.Approve(ctx, first.ID, 500)
	require.NoError(t, err)

	all, err := f.service.List(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	pending := StatusPending
	onlyPending, err := f.service.List(ctx, &pending)
	require.NoError(t, err)
	require.Len(t, onlyPending, 1)
	assert.Equal(t, "Southside Academy", onlyPending[0].Name)
}

func TestSchoolStatus_AllowsAccess(t *testing.T) {
	assert.True(t, StatusValidated.AllowsAccess())
	assert.False(t, StatusPending.AllowsAccess())
	assert.False(t, StatusRejected.AllowsAccess())
	assert.False(t, StatusSuspended.AllowsAccess())
}
