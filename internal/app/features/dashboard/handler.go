// internal/app/features/dashboard/handler.go
package dashboard

import (
	uierrors "github.com/dalemusser/tenanthub/internal/app/features/errors"
	"github.com/dalemusser/tenanthub/internal/app/store/audit"
	invitationstore "github.com/dalemusser/tenanthub/internal/app/store/invitations"
	membershipstore "github.com/dalemusser/tenanthub/internal/app/store/memberships"
	organizationstore "github.com/dalemusser/tenanthub/internal/app/store/organizations"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler serves the root page of the app, admin and ops surfaces. Which one
// a visitor may see has already been settled by the surface guard.
type Handler struct {
	Orgs        *organizationstore.Store
	Memberships *membershipstore.Store
	Invitations *invitationstore.Store
	Events      *audit.Store
	ErrLog      *uierrors.ErrorLogger
	Log         *zap.Logger
}

func NewHandler(db *mongo.Database, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		Orgs:        organizationstore.New(db),
		Memberships: membershipstore.New(db),
		Invitations: invitationstore.New(db),
		Events:      audit.New(db),
		ErrLog:      errLog,
		Log:         logger,
	}
}
