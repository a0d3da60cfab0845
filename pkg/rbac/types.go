package rbac

import (
	"time"
)

// Tag identifies a named capability required by an operation.
type Tag string

// TagAll is the wildcard permission. A role holding it passes every
// permission check; it is reserved for the global admin role.
const TagAll Tag = "*"

const (
	TagViewStudents   Tag = "view_students"
	TagManageStudents Tag = "manage_students"
	TagViewUsers      Tag = "view_users"
	TagManageUsers    Tag = "manage_users"
	TagInviteUsers    Tag = "invite_users"
	TagViewRoles      Tag = "view_roles"
	TagManageRoles    Tag = "manage_roles"
	TagViewGrades     Tag = "view_grades"
	TagManageGrades   Tag = "manage_grades"
	TagViewFinances   Tag = "view_finances"
	TagManageFinances Tag = "manage_finances"
	TagManageSchool   Tag = "manage_school"
)

// Permission categories used for grouping in the catalog.
const (
	CategoryStudents = "students"
	CategoryUsers    = "users"
	CategoryRoles    = "roles"
	CategoryGrades   = "grades"
	CategoryFinances = "finances"
	CategorySchool   = "school"
	CategorySystem   = "system"
)

// Permission represents a named capability in the global catalog.
// Permissions are administered system-wide and are not school-scoped.
type Permission struct {
	ID          int64     `json:"id"`
	Name        Tag       `json:"name"`
	Category    string    `json:"category"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// Role represents a named permission bundle. SchoolID is nil for a global
// role visible to every school, or set for a school-owned role.
type Role struct {
	ID           int64        `json:"id"`
	Name         string       `json:"name"`
	Description  string       `json:"description"`
	SchoolID     *int64       `json:"school_id,omitempty"`
	IsSystemRole bool         `json:"is_system_role"`
	IsActive     bool         `json:"is_active"`
	Permissions  []Permission `json:"permissions"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// IsGlobal reports whether the role is visible to all schools.
func (r *Role) IsGlobal() bool {
	return r.SchoolID == nil
}

// HasPermission reports whether the role grants the given tag. The wildcard
// is checked before any exact match.
func (r *Role) HasPermission(tag Tag) bool {
	for _, p := range r.Permissions {
		if p.Name == TagAll {
			return true
		}
	}
	for _, p := range r.Permissions {
		if p.Name == tag {
			return true
		}
	}
	return false
}

// RoleAdmin is the global role bound to every founding membership during
// school registration. It must exist before any school can register.
const RoleAdmin = "admin"

// Default role names provisioned for every new school.
const (
	RoleDirector   = "director"
	RoleTeacher    = "teacher"
	RoleStudent    = "student"
	RoleParent     = "parent"
	RoleAccountant = "accountant"
	RoleStaff      = "staff"
)

// RoleTemplate describes a default role and the permissions it carries.
type RoleTemplate struct {
	Name        string
	Description string
	Permissions []Tag
}

// DefaultRoleTemplates returns the role set provisioned for each school.
func DefaultRoleTemplates() []RoleTemplate {
	return []RoleTemplate{
		{
			Name:        RoleDirector,
			Description: "School director with full administrative access",
			Permissions: []Tag{
				TagViewStudents, TagManageStudents,
				TagViewUsers, TagManageUsers, TagInviteUsers,
				TagViewRoles, TagManageRoles,
				TagViewGrades, TagManageGrades,
				TagViewFinances, TagManageFinances,
				TagManageSchool,
			},
		},
		{
			Name:        RoleTeacher,
			Description: "Teaching staff",
			Permissions: []Tag{
				TagViewStudents,
				TagViewGrades, TagManageGrades,
			},
		},
		{
			Name:        RoleStudent,
			Description: "Enrolled student",
			Permissions: []Tag{
				TagViewGrades,
			},
		},
		{
			Name:        RoleParent,
			Description: "Parent or guardian of an enrolled student",
			Permissions: []Tag{
				TagViewGrades,
			},
		},
		{
			Name:        RoleAccountant,
			Description: "Finance and billing staff",
			Permissions: []Tag{
				TagViewFinances, TagManageFinances,
			},
		},
		{
			Name:        RoleStaff,
			Description: "General administrative staff",
			Permissions: []Tag{
				TagViewStudents, TagViewUsers,
			},
		},
	}
}

// DefaultRoleNames returns the names of the default role set in catalog order.
func DefaultRoleNames() []string {
	templates := DefaultRoleTemplates()
	names := make([]string, 0, len(templates))
	for _, tmpl := range templates {
		names = append(names, tmpl.Name)
	}
	return names
}

// PermissionCatalog returns the full global permission catalog, including
// the wildcard reserved for the admin role.
func PermissionCatalog() []Permission {
	return []Permission{
		{Name: TagAll, Category: CategorySystem, Description: "All permissions"},
		{Name: TagViewStudents, Category: CategoryStudents, Description: "View student records"},
		{Name: TagManageStudents, Category: CategoryStudents, Description: "Create and update student records"},
		{Name: TagViewUsers, Category: CategoryUsers, Description: "View school members"},
		{Name: TagManageUsers, Category: CategoryUsers, Description: "Update and remove school members"},
		{Name: TagInviteUsers, Category: CategoryUsers, Description: "Invite new school members"},
		{Name: TagViewRoles, Category: CategoryRoles, Description: "View roles and permissions"},
		{Name: TagManageRoles, Category: CategoryRoles, Description: "Create and update school roles"},
		{Name: TagViewGrades, Category: CategoryGrades, Description: "View grades"},
		{Name: TagManageGrades, Category: CategoryGrades, Description: "Record and update grades"},
		{Name: TagViewFinances, Category: CategoryFinances, Description: "View financial records"},
		{Name: TagManageFinances, Category: CategoryFinances, Description: "Manage financial records"},
		{Name: TagManageSchool, Category: CategorySchool, Description: "Update school profile and settings"},
	}
}
