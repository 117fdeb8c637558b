// internal/domain/models/membership.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Role is a member's role inside one organization.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// Valid reports whether r is one of the closed set of roles.
func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleMember:
		return true
	}
	return false
}

// CanAdminister reports whether the role may use the admin console.
func (r Role) CanAdminister() bool {
	return r == RoleOwner || r == RoleAdmin
}

// Membership joins a user to an organization.
//
// Memberships are never physically deleted. Removal sets DeletedAt, and every
// read path filters those out (see membershipstore.Active).
type Membership struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID         string             `bson:"user_id" json:"user_id"`
	OrganizationID primitive.ObjectID `bson:"organization_id" json:"organization_id"`
	Role           Role               `bson:"role" json:"role"`
	DeletedAt      *time.Time         `bson:"deleted_at" json:"deleted_at,omitempty"`
	CreatedAt      time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt      time.Time          `bson:"updated_at" json:"updated_at"`
}

// MembershipView is an active membership joined with the organization it
// points at. This is the shape the tenant resolver and redirect router consume.
type MembershipView struct {
	OrganizationID   primitive.ObjectID `json:"organization_id"`
	OrganizationName string             `json:"organization_name"`
	OrganizationSlug string             `json:"organization_slug"`
	Role             Role               `json:"role"`
}
