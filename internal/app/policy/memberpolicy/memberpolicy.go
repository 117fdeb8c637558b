// Package memberpolicy holds the rules for changing who belongs to an
// organization and with which role.
//
// Authorization rules:
//   - Owners can manage every member and grant any role
//   - Admins can manage admins and members, never owners
//   - Nobody is invited as owner; ownership is granted after joining
//   - Members cannot manage anyone (the admin surface already refuses them)
package memberpolicy

import (
	"errors"

	"github.com/dalemusser/tenanthub/internal/domain/models"
)

var (
	ErrNotAdministrator = errors.New("only owners and admins can manage members")
	ErrOwnerProtected   = errors.New("only owners can change another owner")
	ErrOwnerGrant       = errors.New("only owners can grant ownership")
	ErrInviteRole       = errors.New(`role must be "admin" or "member"`)
)

func administers(r models.Role) bool {
	return r == models.RoleOwner || r == models.RoleAdmin
}

// CanManage reports whether actor may change or remove a member holding
// target.
func CanManage(actor, target models.Role) error {
	if !administers(actor) {
		return ErrNotAdministrator
	}
	if target == models.RoleOwner && actor != models.RoleOwner {
		return ErrOwnerProtected
	}
	return nil
}

// CanAssign reports whether actor may give someone role. Role validity is
// the store's concern.
func CanAssign(actor, role models.Role) error {
	if !administers(actor) {
		return ErrNotAdministrator
	}
	if role == models.RoleOwner && actor != models.RoleOwner {
		return ErrOwnerGrant
	}
	return nil
}

// CanInvite reports whether actor may invite someone as role.
func CanInvite(actor, role models.Role) error {
	if !administers(actor) {
		return ErrNotAdministrator
	}
	if role != models.RoleAdmin && role != models.RoleMember {
		return ErrInviteRole
	}
	return nil
}
