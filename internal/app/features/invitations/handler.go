// internal/app/features/invitations/handler.go
package invitations

import (
	"context"

	uierrors "github.com/dalemusser/tenanthub/internal/app/features/errors"
	invitationstore "github.com/dalemusser/tenanthub/internal/app/store/invitations"
	membershipstore "github.com/dalemusser/tenanthub/internal/app/store/memberships"
	organizationstore "github.com/dalemusser/tenanthub/internal/app/store/organizations"
	"github.com/dalemusser/tenanthub/internal/app/system/auditlog"
	"github.com/dalemusser/tenanthub/internal/app/system/mailer"
	"github.com/dalemusser/tenanthub/internal/app/system/ratelimit"
	"github.com/dalemusser/tenanthub/internal/app/system/router"
	"github.com/dalemusser/tenanthub/internal/app/system/tenant"
	"github.com/dalemusser/tenanthub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// MembershipAdder writes the membership an accepted invitation grants.
// membershipstore.Store satisfies it.
type MembershipAdder interface {
	Add(ctx context.Context, orgID primitive.ObjectID, userID string, role models.Role) (models.Membership, error)
}

// Handler serves both sides of an invitation: owners and admins create them
// on the admin surface, invitees accept them on the app surface.
type Handler struct {
	Client      *mongo.Client
	Invitations *invitationstore.Store
	Orgs        *organizationstore.Store
	Memberships MembershipAdder
	Tenants     *tenant.Resolver
	Limiter     *ratelimit.Limiter
	Mailer      *mailer.Mailer
	Targets     *router.Targets
	AuditLog    *auditlog.Logger
	ErrLog      *uierrors.ErrorLogger
	Log         *zap.Logger
}

func NewHandler(
	db *mongo.Database,
	tenants *tenant.Resolver,
	limiter *ratelimit.Limiter,
	mail *mailer.Mailer,
	targets *router.Targets,
	audit *auditlog.Logger,
	errLog *uierrors.ErrorLogger,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		Client:      db.Client(),
		Invitations: invitationstore.New(db),
		Orgs:        organizationstore.New(db),
		Memberships: membershipstore.New(db),
		Tenants:     tenants,
		Limiter:     limiter,
		Mailer:      mail,
		Targets:     targets,
		AuditLog:    audit,
		ErrLog:      errLog,
		Log:         logger,
	}
}
