package router

import (
	"context"

	"github.com/dalemusser/tenanthub/internal/app/system/tenant"
	"github.com/dalemusser/tenanthub/internal/app/system/timeouts"
	"github.com/dalemusser/tenanthub/internal/domain/models"
	"go.uber.org/zap"
)

// LandingURL is where u goes right after signing in: ret when it points at
// one of our surfaces, otherwise the absolute Landing URL. Ops users skip the
// membership lookup.
func (t *Targets) LandingURL(ctx context.Context, src tenant.MembershipSource, u models.User, ret string, logger *zap.Logger) (string, error) {
	if ret != "" && t.SafeReturn(ret) {
		return ret, nil
	}
	if u.IsOps || src == nil {
		return t.URL(Landing(u.IsOps, nil)), nil
	}

	ctx, cancel := timeouts.WithTimeout(ctx, timeouts.Short(), logger, "landing memberships")
	defer cancel()
	ms, err := src.ListActiveForUser(ctx, u.ID)
	if err != nil {
		return "", err
	}
	return t.URL(Landing(false, ms)), nil
}
