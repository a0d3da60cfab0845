package middleware

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campushq/campus/pkg/apperr"
	"github.com/campushq/campus/pkg/auth"
	"github.com/campushq/campus/pkg/members"
	"github.com/campushq/campus/pkg/observability"
	"github.com/campushq/campus/pkg/rbac"
	"github.com/campushq/campus/pkg/schools"
)

// pipelineFixture assembles the full access-control chain against in-memory
// stores: authentication, school resolution, membership validation, and an
// optional permission check.
type pipelineFixture struct {
	roles       *rbac.MemoryStore
	schools     *schools.MemoryStore
	memberships *members.MemoryStore
	tokens      map[string]*auth.Identity
	logger      *observability.Logger
	schoolSeq   int
}

func newPipelineFixture(t *testing.T) *pipelineFixture {
	t.Helper()
	roles := rbac.NewMemoryStore()
	return &pipelineFixture{
		roles:       roles,
		schools:     schools.NewMemoryStore(),
		memberships: members.NewMemoryStore(roles),
		tokens:      make(map[string]*auth.Identity),
		logger:      observability.NewLogger(observability.ErrorLevel, io.Discard),
	}
}

func (f *pipelineFixture) verify(_ context.Context, token string) (*auth.Identity, error) {
	if identity, ok := f.tokens[token]; ok {
		return identity, nil
	}
	return nil, apperr.Authentication("invalid or expired token")
}

// handler builds the chained pipeline ending in a 200 probe. tag "" means
// the operation declares no required permission.
func (f *pipelineFixture) handler(tag rbac.Tag) http.Handler {
	probe := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	var h http.Handler = probe
	if tag != "" {
		h = RequirePermission(tag, nil)(h)
	}
	h = MembershipValidator(f.memberships, nil, f.logger)(h)
	h = SchoolResolver(f.schools, nil, f.logger)(h)
	h = Authentication(f.verify, f.logger)(h)
	return h
}

func (f *pipelineFixture) addUser(t *testing.T, token string, userID int64) {
	t.Helper()
	f.tokens[token] = &auth.Identity{UserID: userID, Email: "user@example.com"}
}

func (f *pipelineFixture) addSchool(t *testing.T, status schools.SchoolStatus) *schools.School {
	t.Helper()
	// School emails are unique, so each fixture school gets its own.
	f.schoolSeq++
	school := &schools.School{
		Name:  "Test School " + strconv.Itoa(f.schoolSeq),
		Email: "school" + strconv.Itoa(f.schoolSeq) + "@example.com",
	}
	require.NoError(t, f.schools.Create(context.Background(), school))
	switch status {
	case schools.StatusValidated:
		require.NoError(t, f.schools.Approve(context.Background(), school.ID, 1))
	case schools.StatusRejected:
		require.NoError(t, f.schools.Reject(context.Background(), school.ID, "denied"))
	case schools.StatusSuspended:
		require.NoError(t, f.schools.Approve(context.Background(), school.ID, 1))
		require.NoError(t, f.schools.Suspend(context.Background(), school.ID))
	}
	updated, err := f.schools.Get(context.Background(), school.ID)
	require.NoError(t, err)
	return updated
}

func (f *pipelineFixture) addRole(t *testing.T, schoolID int64, name string, tags ...rbac.Tag) *rbac.Role {
	t.Helper()
	role := &rbac.Role{Name: name, SchoolID: &schoolID, IsActive: true}
	require.NoError(t, f.roles.CreateRole(context.Background(), role))
	for _, tag := range tags {
		permission := &rbac.Permission{Name: tag, Category: "test"}
		if existing, err := f.roles.GetPermissionByName(context.Background(), tag); err == nil {
			permission = existing
		} else {
			require.NoError(t, f.roles.CreatePermission(context.Background(), permission))
		}
		require.NoError(t, f.roles.GrantPermission(context.Background(), role.ID, permission.ID))
	}
	loaded, err := f.roles.GetRole(context.Background(), role.ID)
	require.NoError(t, err)
	return loaded
}

func (f *pipelineFixture) addMembership(t *testing.T, userID, schoolID int64, role *rbac.Role, active, validated bool) {
	t.Helper()
	membership := &members.Membership{
		UserID:      userID,
		SchoolID:    schoolID,
		RoleID:      role.ID,
		IsActive:    active,
		IsValidated: validated,
	}
	require.NoError(t, f.memberships.Create(context.Background(), membership))
}

func doRequest(handler http.Handler, token string, schoolID string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if schoolID != "" {
		req.Header.Set(SchoolIDHeader, schoolID)
	}
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)
	return recorder
}

func errorMessage(t *testing.T, recorder *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	return body["error"]
}

func TestPipeline_MissingSchoolID(t *testing.T) {
	f := newPipelineFixture(t)
	f.addUser(t, "good-token", 7)
	handler := f.handler("")

	// Missing school ID fails the same way with or without credentials.
	for _, token := range []string{"", "good-token"} {
		recorder := doRequest(handler, token, "")
		assert.Equal(t, http.StatusBadRequest, recorder.Code)
		assert.Equal(t, "School ID is required", errorMessage(t, recorder))
	}
}

func TestPipeline_MalformedSchoolID(t *testing.T) {
	f := newPipelineFixture(t)
	f.addUser(t, "good-token", 7)

	recorder := doRequest(f.handler(""), "good-token", "not-a-number")
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestPipeline_UnauthenticatedWithSchoolID(t *testing.T) {
	f := newPipelineFixture(t)
	school := f.addSchool(t, schools.StatusValidated)

	recorder := doRequest(f.handler(""), "", strconv.FormatInt(school.ID, 10))
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
}

func TestPipeline_InvalidToken(t *testing.T) {
	f := newPipelineFixture(t)
	school := f.addSchool(t, schools.StatusValidated)

	recorder := doRequest(f.handler(""), "bad-token", strconv.FormatInt(school.ID, 10))
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
}

func TestPipeline_UnknownSchool(t *testing.T) {
	f := newPipelineFixture(t)
	f.addUser(t, "good-token", 7)

	recorder := doRequest(f.handler(""), "good-token", "999")
	assert.Equal(t, http.StatusForbidden, recorder.Code)
	assert.Equal(t, "access denied", errorMessage(t, recorder))
}

func TestPipeline_NonValidatedSchoolStatuses(t *testing.T) {
	for _, status := range []schools.SchoolStatus{
		schools.StatusPending,
		schools.StatusRejected,
		schools.StatusSuspended,
	} {
		t.Run(string(status), func(t *testing.T) {
			f := newPipelineFixture(t)
			f.addUser(t, "good-token", 7)
			school := f.addSchool(t, status)
			role := f.addRole(t, school.ID, "teacher", rbac.TagViewStudents)
			f.addMembership(t, 7, school.ID, role, true, true)

			// Even a member with an active, validated membership is
			// denied while the school is not validated.
			recorder := doRequest(f.handler(""), "good-token", strconv.FormatInt(school.ID, 10))
			assert.Equal(t, http.StatusForbidden, recorder.Code)
			assert.Equal(t, "access denied", errorMessage(t, recorder))
		})
	}
}

func TestPipeline_NoMembership(t *testing.T) {
	f := newPipelineFixture(t)
	f.addUser(t, "good-token", 7)
	school := f.addSchool(t, schools.StatusValidated)

	recorder := doRequest(f.handler(""), "good-token", strconv.FormatInt(school.ID, 10))
	assert.Equal(t, http.StatusForbidden, recorder.Code)
	assert.Equal(t, "access denied", errorMessage(t, recorder))
}

func TestPipeline_DormantMembership(t *testing.T) {
	cases := []struct {
		name      string
		active    bool
		validated bool
	}{
		{"inactive", false, true},
		{"unvalidated", true, false},
		{"both", false, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newPipelineFixture(t)
			f.addUser(t, "good-token", 7)
			school := f.addSchool(t, schools.StatusValidated)
			role := f.addRole(t, school.ID, "teacher", rbac.TagViewStudents)
			f.addMembership(t, 7, school.ID, role, tc.active, tc.validated)

			recorder := doRequest(f.handler(""), "good-token", strconv.FormatInt(school.ID, 10))
			assert.Equal(t, http.StatusForbidden, recorder.Code)
		})
	}
}

func TestPipeline_MembershipOnlyOperation(t *testing.T) {
	f := newPipelineFixture(t)
	f.addUser(t, "good-token", 7)
	school := f.addSchool(t, schools.StatusValidated)
	role := f.addRole(t, school.ID, "student")
	f.addMembership(t, 7, school.ID, role, true, true)

	// No declared tag: membership alone is enough, even with zero
	// permissions on the role.
	recorder := doRequest(f.handler(""), "good-token", strconv.FormatInt(school.ID, 10))
	assert.Equal(t, http.StatusOK, recorder.Code)
}

func TestPipeline_InsufficientPermission(t *testing.T) {
	f := newPipelineFixture(t)
	f.addUser(t, "good-token", 7)
	school := f.addSchool(t, schools.StatusValidated)
	role := f.addRole(t, school.ID, "teacher", rbac.TagViewStudents)
	f.addMembership(t, 7, school.ID, role, true, true)

	denied := doRequest(f.handler(rbac.TagManageUsers), "good-token", strconv.FormatInt(school.ID, 10))
	assert.Equal(t, http.StatusForbidden, denied.Code)
	assert.Equal(t, "access denied", errorMessage(t, denied))

	allowed := doRequest(f.handler(rbac.TagViewStudents), "good-token", strconv.FormatInt(school.ID, 10))
	assert.Equal(t, http.StatusOK, allowed.Code)
}

func TestPipeline_WildcardPermission(t *testing.T) {
	f := newPipelineFixture(t)
	f.addUser(t, "good-token", 7)
	school := f.addSchool(t, schools.StatusValidated)
	role := f.addRole(t, school.ID, "admin", rbac.TagAll)
	f.addMembership(t, 7, school.ID, role, true, true)

	for _, tag := range []rbac.Tag{rbac.TagManageUsers, rbac.TagViewStudents, rbac.TagManageFinances} {
		recorder := doRequest(f.handler(tag), "good-token", strconv.FormatInt(school.ID, 10))
		assert.Equal(t, http.StatusOK, recorder.Code)
	}
}

func TestPipeline_DenialMessagesDoNotLeakStage(t *testing.T) {
	f := newPipelineFixture(t)
	f.addUser(t, "good-token", 7)

	validated := f.addSchool(t, schools.StatusValidated)
	pending := f.addSchool(t, schools.StatusPending)

	f.addUser(t, "member-token", 8)
	role := f.addRole(t, validated.ID, "teacher", rbac.TagViewStudents)
	f.addMembership(t, 8, validated.ID, role, true, true)

	// Unknown school, pending school, missing membership, and insufficient
	// permission all read the same to the caller.
	unknownSchool := doRequest(f.handler(""), "good-token", "999")
	pendingSchool := doRequest(f.handler(""), "good-token", strconv.FormatInt(pending.ID, 10))
	noMembership := doRequest(f.handler(""), "good-token", strconv.FormatInt(validated.ID, 10))
	noPermission := doRequest(f.handler(rbac.TagManageUsers), "member-token", strconv.FormatInt(validated.ID, 10))

	for _, recorder := range []*httptest.ResponseRecorder{unknownSchool, pendingSchool, noMembership, noPermission} {
		assert.Equal(t, http.StatusForbidden, recorder.Code)
		assert.Equal(t, "access denied", errorMessage(t, recorder))
	}
}
