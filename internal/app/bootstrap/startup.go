// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"
	"sync"

	invitationstore "github.com/dalemusser/tenanthub/internal/app/store/invitations"
	"github.com/dalemusser/tenanthub/internal/app/system/timeouts"
	"github.com/dalemusser/tenanthub/internal/app/system/workers"
	"github.com/dalemusser/waffle/config"
	"github.com/dalemusser/waffle/pantry/jobs"
	"go.uber.org/zap"
)

var (
	workersMu sync.Mutex
	scheduler *jobs.Scheduler
)

// Startup runs one-time initialization after DB connections and schema setup
// are complete, but before the HTTP handler is built.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	timeouts.Configure(timeouts.Config{
		Ping:   appCfg.TimeoutPing,
		Short:  appCfg.TimeoutShort,
		Medium: appCfg.TimeoutMedium,
	})

	s, err := workers.NewScheduler(logger, deps.Redis,
		workers.InvitationCleanupJob(invitationstore.New(deps.MongoDatabase), logger,
			appCfg.InvitationCleanupInterval, appCfg.InvitationRetention),
	)
	if err != nil {
		return err
	}

	workersMu.Lock()
	defer workersMu.Unlock()
	scheduler = s
	scheduler.Start()
	return nil
}

func stopWorkers(ctx context.Context) error {
	workersMu.Lock()
	defer workersMu.Unlock()
	if scheduler == nil {
		return nil
	}
	err := scheduler.Stop(ctx)
	scheduler = nil
	return err
}
