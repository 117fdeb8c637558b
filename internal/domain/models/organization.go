// internal/domain/models/organization.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Subscription plans.
const (
	PlanFree       = "free"
	PlanStarter    = "starter"
	PlanPro        = "pro"
	PlanEnterprise = "enterprise"
)

// Subscription statuses.
const (
	SubscriptionTrialing = "trialing"
	SubscriptionActive   = "active"
	SubscriptionPastDue  = "past_due"
	SubscriptionCanceled = "canceled"
)

// Organization is a tenant. Users reach it only through a Membership.
type Organization struct {
	ID     primitive.ObjectID `bson:"_id" json:"id"`
	Name   string             `bson:"name" json:"name"`
	NameCI string             `bson:"name_ci" json:"-"` // ← always stored
	Slug   string             `bson:"slug" json:"slug"`

	Plan               string     `bson:"plan" json:"plan"`
	SubscriptionStatus string     `bson:"subscription_status" json:"subscription_status"`
	TrialEndsAt        *time.Time `bson:"trial_ends_at,omitempty" json:"trial_ends_at,omitempty"`

	CreatedBy string    `bson:"created_by" json:"created_by"` // identity provider user id
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
