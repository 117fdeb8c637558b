package auditlog_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	uierrors "github.com/dalemusser/tenanthub/internal/app/features/errors"
	"github.com/dalemusser/tenanthub/internal/app/features/auditlog"
	"github.com/dalemusser/tenanthub/internal/app/store/audit"
	"github.com/dalemusser/tenanthub/internal/testutil"
	"go.uber.org/zap"
)

func TestServeList_FiltersByCategory(t *testing.T) {
	db := testutil.SetupTestDB(t)
	logger := zap.NewNop()
	h := auditlog.NewHandler(db, uierrors.NewErrorLogger(logger), logger)

	ctx, cancel := testutil.TestContext()
	defer cancel()
	store := audit.New(db)
	_ = store.Log(ctx, audit.Event{Category: audit.CategoryAuth, EventType: audit.EventLoginSuccess, Success: true})
	_ = store.Log(ctx, audit.Event{Category: audit.CategorySecurity, EventType: audit.EventRateLimited})
	_ = store.Log(ctx, audit.Event{Category: audit.CategorySecurity, EventType: audit.EventRateLimitReset, Success: true})

	rec := httptest.NewRecorder()
	h.ServeList(rec, httptest.NewRequest(http.MethodGet, "/audit?category=security", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	var out struct {
		Items []struct {
			Category  string `json:"category"`
			EventType string `json:"event_type"`
		} `json:"items"`
		Total int64 `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if out.Total != 2 || len(out.Items) != 2 {
		t.Fatalf("expected 2 security events, got total=%d items=%d", out.Total, len(out.Items))
	}
	// Newest first.
	if out.Items[0].EventType != audit.EventRateLimitReset {
		t.Errorf("first item: got %q", out.Items[0].EventType)
	}
}

func TestServeList_RejectsBadFilters(t *testing.T) {
	db := testutil.SetupTestDB(t)
	logger := zap.NewNop()
	h := auditlog.NewHandler(db, uierrors.NewErrorLogger(logger), logger)

	for _, target := range []string{"/audit?category=billing", "/audit?org=zzz"} {
		rec := httptest.NewRecorder()
		h.ServeList(rec, httptest.NewRequest(http.MethodGet, target, nil))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected status %d, got %d", target, http.StatusBadRequest, rec.Code)
		}
	}
}
