package ratelimit_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dalemusser/tenanthub/internal/app/system/ratelimit"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *ratelimit.Limiter) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, ratelimit.New(ratelimit.NewRedisCounter(client), zap.NewNop())
}

func TestCheck_CountsUpWithinWindow(t *testing.T) {
	_, l := newRedis(t)
	ctx := context.Background()
	opts := ratelimit.Options{Limit: 3, Window: time.Minute, Prefix: "rl:test"}

	for want := 1; want <= 3; want++ {
		res := l.Check(ctx, "id", opts)
		if res.Current != want || !res.Success {
			t.Fatalf("call %d: got current=%d success=%v", want, res.Current, res.Success)
		}
		if res.Limit != 3 {
			t.Errorf("limit: got %d", res.Limit)
		}
	}
	if res := l.Check(ctx, "id", opts); res.Success || res.Current != 4 {
		t.Errorf("call 4: expected rejection, got %+v", res)
	}
}

func TestCheck_WindowExpiryStartsOver(t *testing.T) {
	mr, l := newRedis(t)
	ctx := context.Background()
	opts := ratelimit.Options{Limit: 2, Window: time.Minute, Prefix: "rl:test"}

	for i := 0; i < 3; i++ {
		l.Check(ctx, "id", opts)
	}
	mr.FastForward(time.Minute + time.Second)

	res := l.Check(ctx, "id", opts)
	if res.Current != 1 || !res.Success {
		t.Errorf("expected fresh window, got %+v", res)
	}
}

func TestCheck_LoginSixthAttemptBlocked(t *testing.T) {
	mr, l := newRedis(t)
	ctx := context.Background()

	var res ratelimit.Result
	for i := 1; i <= 6; i++ {
		res = l.Check(ctx, "user@example.com", ratelimit.Login)
		if i <= 5 && !res.Success {
			t.Fatalf("attempt %d rejected early: %+v", i, res)
		}
	}
	if res.Success {
		t.Fatal("6th attempt within 5 minutes must be rejected")
	}
	if res.ResetIn <= 0 || res.ResetIn > 5*time.Minute {
		t.Errorf("resetIn: got %v", res.ResetIn)
	}
	if !mr.Exists("rl:login:user@example.com") {
		t.Errorf("expected key %q in counter store, have %v", "rl:login:user@example.com", mr.Keys())
	}
	if res.Message() == "" || res.RetryAfter() == "0" {
		t.Errorf("expected a wait hint, got %q / %q", res.Message(), res.RetryAfter())
	}
}

func TestCheck_KeyFormat(t *testing.T) {
	mr, l := newRedis(t)
	ctx := context.Background()

	l.Check(ctx, "a@example.com", ratelimit.PasswordReset)
	l.Check(ctx, "org-1", ratelimit.Invitation)
	l.Check(ctx, "x", ratelimit.Options{Limit: 1, Window: time.Second})

	want := []string{"rate_limit:x", "rl:invitation:org-1", "rl:password_reset:a@example.com"}
	got := mr.Keys()
	sort.Strings(got)
	if len(got) != len(want) {
		t.Fatalf("keys: got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("keys: got %v, want %v", got, want)
		}
	}
}

func TestCheck_RestoresMissingTTL(t *testing.T) {
	mr, l := newRedis(t)
	_ = mr.Set("rl:test:id", "2")

	res := l.Check(context.Background(), "id", ratelimit.Options{Limit: 5, Window: time.Minute, Prefix: "rl:test"})
	if res.Current != 3 {
		t.Errorf("current: got %d, want 3", res.Current)
	}
	if ttl := mr.TTL("rl:test:id"); ttl <= 0 {
		t.Errorf("expected TTL to be set, got %v", ttl)
	}
}

func TestCheck_ConcurrentHitsAreSerialized(t *testing.T) {
	_, l := newRedis(t)
	opts := ratelimit.Options{Limit: 100, Window: time.Minute, Prefix: "rl:test"}

	const n = 40
	seen := make([]int, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			seen[i] = l.Check(context.Background(), "id", opts).Current
		}(i)
	}
	wg.Wait()

	sort.Ints(seen)
	for i, v := range seen {
		if v != i+1 {
			t.Fatalf("expected counts 1..%d, got %v", n, seen)
		}
	}
}

func TestReset_DeletesCounter(t *testing.T) {
	mr, l := newRedis(t)
	ctx := context.Background()
	for i := 0; i < 6; i++ {
		l.Check(ctx, "user@example.com", ratelimit.Login)
	}

	if err := l.Reset(ctx, "user@example.com", ratelimit.Login.Prefix); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if mr.Exists("rl:login:user@example.com") {
		t.Error("key should be gone after Reset")
	}
	if res := l.Check(ctx, "user@example.com", ratelimit.Login); res.Current != 1 {
		t.Errorf("expected count to restart, got %d", res.Current)
	}
}

type brokenCounter struct{ calls int }

func (b *brokenCounter) Hit(context.Context, string, time.Duration) (int64, time.Duration, error) {
	b.calls++
	return 0, 0, errors.New("dial tcp: connection refused")
}

func (b *brokenCounter) Del(context.Context, string) error {
	return errors.New("dial tcp: connection refused")
}

// Failing open is intentional: when the counter store is down, sign-in and
// password reset stay available. Changing this to fail closed turns a Redis
// outage into a full lockout.
func TestCheck_FailOpen_CounterErrorsAlwaysAllow(t *testing.T) {
	bc := &brokenCounter{}
	l := ratelimit.New(bc, zap.NewNop())

	for i := 0; i < 20; i++ {
		res := l.Check(context.Background(), "user@example.com", ratelimit.Login)
		if !res.Success || res.Current != 1 {
			t.Fatalf("call %d: expected success=true current=1, got %+v", i, res)
		}
	}
	if bc.calls != 20 {
		t.Errorf("expected every call to reach the counter, got %d", bc.calls)
	}
}

func TestCheck_FailOpen_StoreDown(t *testing.T) {
	mr, l := newRedis(t)
	mr.Close()

	res := l.Check(context.Background(), "user@example.com", ratelimit.Login)
	if !res.Success || res.Current != 1 {
		t.Errorf("expected fail-open result, got %+v", res)
	}
}

func TestCheck_FailOpen_Unconfigured(t *testing.T) {
	l := ratelimit.New(nil, nil)

	for i := 0; i < 10; i++ {
		if res := l.Check(context.Background(), "x", ratelimit.Login); !res.Success || res.Current != 1 {
			t.Fatalf("expected fail-open result, got %+v", res)
		}
	}
	if err := l.Reset(context.Background(), "x", "rl:login"); err != nil {
		t.Errorf("Reset on unconfigured limiter: %v", err)
	}
}

func TestResult_MessageAndRetryAfter(t *testing.T) {
	tests := []struct {
		in    time.Duration
		msg   string
		retry string
	}{
		{90 * time.Second, "Too many attempts. Please try again in 2 minutes.", "90"},
		{45 * time.Second, "Too many attempts. Please try again in 45 seconds.", "45"},
		{500 * time.Millisecond, "Too many attempts. Please try again in 1 second.", "1"},
		{time.Hour, "Too many attempts. Please try again in 60 minutes.", "3600"},
	}
	for _, tt := range tests {
		res := ratelimit.Result{Success: false, ResetIn: tt.in}
		if got := res.Message(); got != tt.msg {
			t.Errorf("Message(%v) = %q, want %q", tt.in, got, tt.msg)
		}
		if got := res.RetryAfter(); got != tt.retry {
			t.Errorf("RetryAfter(%v) = %q, want %q", tt.in, got, tt.retry)
		}
	}
	if (ratelimit.Result{Success: true}).Message() != "" {
		t.Error("allowed results carry no message")
	}
}

func TestLoginLimiter_PerAddressCap(t *testing.T) {
	_, l := newRedis(t)
	ll := ratelimit.LoginLimiter{Limiter: l}

	var res ratelimit.Result
	for i := 0; i < ratelimit.LoginIP.Limit+1; i++ {
		req := httptest.NewRequest("POST", "/login", nil)
		req.RemoteAddr = "203.0.113.7:5555"
		// A different email every time: only the address cap can trip.
		res = ll.CheckLogin(req, string(rune('a'+i))+"@example.com")
	}
	if res.Success {
		t.Error("expected per-address cap to reject")
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name, xff, xri, remote, want string
	}{
		{"forwarded", "198.51.100.1, 10.0.0.1", "", "10.0.0.2:1", "198.51.100.1"},
		{"real ip", "", "198.51.100.2", "10.0.0.2:1", "198.51.100.2"},
		{"remote", "", "", "192.0.2.3:4444", "192.0.2.3"},
		{"remote without port", "", "", "192.0.2.4", "192.0.2.4"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remote
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				req.Header.Set("X-Real-IP", tt.xri)
			}
			if got := ratelimit.ClientIP(req); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}
