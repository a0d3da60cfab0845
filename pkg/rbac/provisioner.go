package rbac

import (
	"context"
	"fmt"

	"github.com/campushq/campus/pkg/apperr"
	"github.com/campushq/campus/pkg/observability"
)

// Provisioner creates the global permission catalog, the global admin role,
// and each school's default role set.
type Provisioner struct {
	store  Store
	logger *observability.Logger
}

// NewProvisioner creates a new Provisioner.
func NewProvisioner(store Store, logger *observability.Logger) *Provisioner {
	return &Provisioner{store: store, logger: logger}
}

// EnsureSystemCatalog creates any missing catalog permissions and the global
// admin role holding the wildcard. It runs once at startup; an error here is
// a fatal configuration problem, school registration depends on the admin
// role existing.
func (p *Provisioner) EnsureSystemCatalog(ctx context.Context) error {
	for _, entry := range PermissionCatalog() {
		if err := p.ensurePermission(ctx, entry); err != nil {
			return fmt.Errorf("failed to ensure permission %q: %w", entry.Name, err)
		}
	}

	if err := p.ensureAdminRole(ctx); err != nil {
		return fmt.Errorf("failed to ensure admin role: %w", err)
	}

	p.logger.Info("system role catalog ready")
	return nil
}

// EnsureDefaultRoles creates the missing default roles for a school. It is
// idempotent: roles the school already owns are skipped, and a concurrent
// duplicate insert is treated as already provisioned.
func (p *Provisioner) EnsureDefaultRoles(ctx context.Context, schoolID int64) error {
	owned, err := p.store.ListOwnedRoleNames(ctx, schoolID)
	if err != nil {
		return fmt.Errorf("failed to list existing roles: %w", err)
	}

	existing := make(map[string]bool, len(owned))
	for _, name := range owned {
		existing[name] = true
	}

	created := 0
	for _, tmpl := range DefaultRoleTemplates() {
		if existing[tmpl.Name] {
			continue
		}

		role := &Role{
			Name:        tmpl.Name,
			Description: tmpl.Description,
			SchoolID:    &schoolID,
			IsActive:    true,
		}
		if err := p.store.CreateRole(ctx, role); err != nil {
			if apperr.IsConflict(err) {
				// Lost the race to a concurrent provisioning call.
				continue
			}
			return fmt.Errorf("failed to create role %q: %w", tmpl.Name, err)
		}

		if err := p.grantTags(ctx, role.ID, tmpl.Permissions); err != nil {
			return err
		}
		created++
	}

	if created > 0 {
		p.logger.WithFields(map[string]interface{}{
			"school_id": schoolID,
			"created":   created,
		}).Info("provisioned default roles")
	}

	return nil
}

func (p *Provisioner) ensurePermission(ctx context.Context, entry Permission) error {
	_, err := p.store.GetPermissionByName(ctx, entry.Name)
	if err == nil {
		return nil
	}
	if !apperr.IsNotFound(err) {
		return err
	}

	createErr := p.store.CreatePermission(ctx, &entry)
	if createErr != nil && !apperr.IsConflict(createErr) {
		return createErr
	}
	return nil
}

func (p *Provisioner) ensureAdminRole(ctx context.Context) error {
	role, err := p.store.GetRoleByName(ctx, RoleAdmin, nil)
	if apperr.IsNotFound(err) {
		role = &Role{
			Name:         RoleAdmin,
			Description:  "Global administrator role bound to founding school memberships",
			IsSystemRole: true,
			IsActive:     true,
		}
		if createErr := p.store.CreateRole(ctx, role); createErr != nil {
			if !apperr.IsConflict(createErr) {
				return createErr
			}
			role, err = p.store.GetRoleByName(ctx, RoleAdmin, nil)
			if err != nil {
				return err
			}
		}
	} else if err != nil {
		return err
	}

	if role.HasPermission(TagAll) {
		return nil
	}
	return p.grantTags(ctx, role.ID, []Tag{TagAll})
}

func (p *Provisioner) grantTags(ctx context.Context, roleID int64, tags []Tag) error {
	for _, tag := range tags {
		permission, err := p.store.GetPermissionByName(ctx, tag)
		if err != nil {
			return fmt.Errorf("failed to resolve permission %q: %w", tag, err)
		}
		if err := p.store.GrantPermission(ctx, roleID, permission.ID); err != nil && !apperr.IsConflict(err) {
			return fmt.Errorf("failed to grant permission %q: %w", tag, err)
		}
	}
	return nil
}
