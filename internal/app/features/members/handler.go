// internal/app/features/members/handler.go
package members

import (
	uierrors "github.com/dalemusser/tenanthub/internal/app/features/errors"
	membershipstore "github.com/dalemusser/tenanthub/internal/app/store/memberships"
	"github.com/dalemusser/tenanthub/internal/app/system/auditlog"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler is the feature-level handler for Members on the admin surface.
// Every action is scoped to the active organization.
type Handler struct {
	Log         *zap.Logger
	ErrLog      *uierrors.ErrorLogger
	AuditLog    *auditlog.Logger
	Memberships *membershipstore.Store
}

func NewHandler(db *mongo.Database, errLog *uierrors.ErrorLogger, audit *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{
		Log:         logger,
		ErrLog:      errLog,
		AuditLog:    audit,
		Memberships: membershipstore.New(db),
	}
}
