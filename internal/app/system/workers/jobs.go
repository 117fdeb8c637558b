// internal/app/system/workers/jobs.go
package workers

import (
	"context"
	"time"

	"github.com/dalemusser/waffle/pantry/jobs"
	"go.uber.org/zap"
)

// InvitationCleanupName is the scheduler name of the invitation cleanup job.
const InvitationCleanupName = "invitation-cleanup"

// ExpiredInvitationDeleter is the slice of the invitation store the cleanup
// job needs.
type ExpiredInvitationDeleter interface {
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

// InvitationCleanupJob deletes invitations that expired more than retention
// ago without being accepted.
func InvitationCleanupJob(store ExpiredInvitationDeleter, logger *zap.Logger, interval, retention time.Duration) *jobs.ScheduledJob {
	return &jobs.ScheduledJob{
		Name:     InvitationCleanupName,
		Interval: interval,
		Timeout:  time.Minute,
		Handler: func(ctx context.Context) error {
			count, err := store.DeleteExpired(ctx, time.Now().UTC().Add(-retention))
			if err != nil {
				return err
			}
			if count > 0 {
				logger.Info("deleted expired invitations",
					zap.Int64("count", count),
					zap.Duration("retention", retention))
			}
			return nil
		},
	}
}
