package workers_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dalemusser/tenanthub/internal/app/system/workers"
	"github.com/dalemusser/waffle/pantry/jobs"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type fakeDeleter struct {
	mu      sync.Mutex
	cutoffs []time.Time
	err     error
}

func (f *fakeDeleter) DeleteExpired(_ context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cutoffs = append(f.cutoffs, cutoff)
	return 3, f.err
}

func (f *fakeDeleter) calls() []time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Time(nil), f.cutoffs...)
}

func TestInvitationCleanupJob_Cutoff(t *testing.T) {
	del := &fakeDeleter{}
	job := workers.InvitationCleanupJob(del, zap.NewNop(), time.Hour, 30*24*time.Hour)

	before := time.Now().UTC()
	if err := job.Handler(t.Context()); err != nil {
		t.Fatalf("Handler: %v", err)
	}
	calls := del.calls()
	if len(calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(calls))
	}
	want := before.Add(-30 * 24 * time.Hour)
	if d := calls[0].Sub(want); d < 0 || d > time.Minute {
		t.Errorf("cutoff %v not close to %v", calls[0], want)
	}
}

func TestInvitationCleanupJob_PropagatesError(t *testing.T) {
	del := &fakeDeleter{err: errors.New("mongo down")}
	job := workers.InvitationCleanupJob(del, zap.NewNop(), time.Hour, time.Hour)
	if err := job.Handler(t.Context()); err == nil {
		t.Error("expected error")
	}
}

func TestNewScheduler_SkipsDisabledJobs(t *testing.T) {
	del := &fakeDeleter{}
	s, err := workers.NewScheduler(zap.NewNop(), nil,
		workers.InvitationCleanupJob(del, zap.NewNop(), 0, time.Hour),
		&jobs.ScheduledJob{Name: "no-handler", Interval: time.Minute},
	)
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	if got := s.List(); len(got) != 0 {
		t.Errorf("expected no registered jobs, got %v", got)
	}
}

func TestScheduler_RunsUntilStopped(t *testing.T) {
	del := &fakeDeleter{}
	s, err := workers.NewScheduler(zap.NewNop(), nil,
		workers.InvitationCleanupJob(del, zap.NewNop(), 10*time.Millisecond, time.Hour),
	)
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	s.Start()

	deadline := time.Now().Add(2 * time.Second)
	for len(del.calls()) < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if err := s.Stop(t.Context()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := s.Stop(t.Context()); err != nil {
		t.Errorf("second Stop: %v", err)
	}

	n := len(del.calls())
	if n < 2 {
		t.Fatalf("expected at least 2 runs, got %d", n)
	}
	time.Sleep(30 * time.Millisecond)
	if got := len(del.calls()); got != n {
		t.Errorf("job ran after Stop: %d -> %d", n, got)
	}
}

func TestScheduler_RedisLockSkipsWhenHeldElsewhere(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	del := &fakeDeleter{}
	s, err := workers.NewScheduler(zap.NewNop(), client,
		workers.InvitationCleanupJob(del, zap.NewNop(), time.Hour, time.Hour),
	)
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}

	if err := s.RunNow(t.Context(), workers.InvitationCleanupName); err != nil {
		t.Fatalf("RunNow: %v", err)
	}
	if got := len(del.calls()); got != 1 {
		t.Fatalf("expected 1 run, got %d", got)
	}
	lockKey := workers.LockPrefix + "scheduler:" + workers.InvitationCleanupName
	if mr.Exists(lockKey) {
		t.Error("lock should be released after the run")
	}

	// Another instance holds the lock.
	if err := mr.Set(lockKey, "other-instance"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.RunNow(t.Context(), workers.InvitationCleanupName); err != nil {
		t.Fatalf("RunNow: %v", err)
	}
	if got := len(del.calls()); got != 1 {
		t.Errorf("expected the run to be skipped, got %d runs", got)
	}
	if v, _ := mr.Get(lockKey); v != "other-instance" {
		t.Errorf("foreign lock was touched: %q", v)
	}
}
