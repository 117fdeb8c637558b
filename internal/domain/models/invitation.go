// internal/domain/models/invitation.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Invitation lets an owner or admin bring a new member into an organization.
// Token is the opaque value carried in the invitation link.
type Invitation struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	OrganizationID primitive.ObjectID `bson:"organization_id" json:"organization_id"`
	Email          string             `bson:"email" json:"email"`
	EmailCI        string             `bson:"email_ci" json:"-"`
	Role           Role               `bson:"role" json:"role"`
	Token          string             `bson:"token" json:"-"`
	InvitedBy      string             `bson:"invited_by" json:"invited_by"`
	ExpiresAt      time.Time          `bson:"expires_at" json:"expires_at"`
	AcceptedAt     *time.Time         `bson:"accepted_at,omitempty" json:"accepted_at,omitempty"`
	AcceptedBy     string             `bson:"accepted_by,omitempty" json:"accepted_by,omitempty"`
	CreatedAt      time.Time          `bson:"created_at" json:"created_at"`
}

// Pending reports whether the invitation can still be accepted at now.
func (i Invitation) Pending(now time.Time) bool {
	return i.AcceptedAt == nil && now.Before(i.ExpiresAt)
}
