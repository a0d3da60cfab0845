package rbac

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/campushq/campus/pkg/apperr"
)

func roleWithTags(tags ...Tag) *Role {
	role := &Role{ID: 1, Name: "test", IsActive: true}
	for _, tag := range tags {
		role.Permissions = append(role.Permissions, Permission{Name: tag})
	}
	return role
}

func TestCheck_ExactMatch(t *testing.T) {
	role := roleWithTags(TagViewStudents, TagViewGrades)

	assert.NoError(t, Check(role, TagViewStudents))
	assert.NoError(t, Check(role, TagViewGrades))
}

func TestCheck_MissingTag(t *testing.T) {
	role := roleWithTags(TagViewStudents)

	err := Check(role, TagManageUsers)
	assert.True(t, apperr.IsAuthorization(err))
	assert.Equal(t, apperr.ReasonInsufficientGrant, apperr.AuthorizationReason(err))
	assert.Equal(t, "access denied", err.Error())
}

func TestCheck_Wildcard(t *testing.T) {
	role := roleWithTags(TagAll)

	assert.NoError(t, Check(role, TagManageUsers))
	assert.NoError(t, Check(role, TagManageFinances))
	assert.NoError(t, Check(role, Tag("some_future_permission")))
}

func TestCheck_NilRole(t *testing.T) {
	err := Check(nil, TagViewStudents)
	assert.True(t, apperr.IsAuthorization(err))
}

func TestCheck_EmptyRole(t *testing.T) {
	role := roleWithTags()

	err := Check(role, TagViewStudents)
	assert.True(t, apperr.IsAuthorization(err))
}

func TestCheck_GrantFlipsResult(t *testing.T) {
	role := roleWithTags(TagViewStudents)

	assert.Error(t, Check(role, TagManageUsers))

	role.Permissions = append(role.Permissions, Permission{Name: TagManageUsers})
	assert.NoError(t, Check(role, TagManageUsers))
}

func TestRoleHasPermission_WildcardBeforeExact(t *testing.T) {
	// The wildcard grants tags that appear nowhere in the permission list.
	role := roleWithTags(TagViewStudents, TagAll)
	assert.True(t, role.HasPermission(TagManageFinances))
	assert.True(t, role.HasPermission(TagViewStudents))
}
