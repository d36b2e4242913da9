package auditlog_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/branchrate/branchrate/internal/app/features/auditlog"
	uierrors "github.com/branchrate/branchrate/internal/app/features/errors"
	"github.com/branchrate/branchrate/internal/app/store/audit"
	"github.com/branchrate/branchrate/internal/app/system/auth"
	"github.com/branchrate/branchrate/internal/app/system/authz"
	"github.com/branchrate/branchrate/internal/app/system/metrics"
	"github.com/branchrate/branchrate/internal/domain/models"
	"github.com/branchrate/branchrate/internal/testutil"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

func newRouter(t *testing.T, db *mongo.Database) chi.Router {
	t.Helper()
	logger := zap.NewNop()
	sm, err := auth.NewSessionManager("0123456789abcdef0123456789abcdef", "branchrate_session", "", false, logger)
	if err != nil {
		t.Fatalf("session manager: %v", err)
	}
	h := &auditlog.Handler{
		DB:      db,
		Audit:   audit.New(db),
		Metrics: metrics.New(),
		ErrLog:  uierrors.NewErrorLogger(logger),
		Log:     logger,
	}
	return auditlog.Routes(h, sm)
}

func do(t *testing.T, router chi.Router, path string, ac *authz.AuthContext) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if ac != nil {
		req = testutil.AuthedRequest(http.MethodGet, path, nil, ac)
	} else {
		req = httptest.NewRequest(http.MethodGet, path, nil)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func logEvent(t *testing.T, db *mongo.Database, e audit.Event) {
	t.Helper()
	ctx, cancel := testutil.TestContext()
	defer cancel()
	if err := audit.New(db).Log(ctx, e); err != nil {
		t.Fatalf("log event: %v", err)
	}
}

type listResponse struct {
	Events []struct {
		ID         string            `json:"id"`
		Category   string            `json:"category"`
		EventType  string            `json:"event_type"`
		ActorName  string            `json:"actor_name"`
		TargetName string            `json:"target_name"`
		Success    bool              `json:"success"`
		Details    map[string]string `json:"details"`
	} `json:"events"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	TotalPages int   `json:"total_pages"`
}

func TestList_OwnerSeesEvents(t *testing.T) {
	db := testutil.SetupTestDB(t)
	router := newRouter(t, db)

	actor := testutil.CreateAdmin(t, db, "actor@example.com", models.RoleOwner, nil)
	target := primitive.NewObjectID()
	logEvent(t, db, audit.Event{
		Category:  audit.CategoryAdmin,
		EventType: audit.EventAdminCreated,
		ActorID:   &actor.ID,
		AdminID:   &target,
		Success:   true,
		Details:   map[string]string{"email": "new@example.com"},
	})

	rec := do(t, router, "/", testutil.OwnerContext())
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp listResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if resp.Total != 1 || len(resp.Events) != 1 {
		t.Fatalf("total = %d, events = %d, want 1/1", resp.Total, len(resp.Events))
	}
	e := resp.Events[0]
	if e.EventType != audit.EventAdminCreated || !e.Success {
		t.Errorf("event = %+v", e)
	}
	if e.ActorName != actor.Name {
		t.Errorf("actor name = %q, want %q", e.ActorName, actor.Name)
	}
	// The target account does not exist, so the raw ID stands in.
	if e.TargetName != target.Hex() {
		t.Errorf("target name = %q, want %q", e.TargetName, target.Hex())
	}
}

func TestList_Filters(t *testing.T) {
	db := testutil.SetupTestDB(t)
	router := newRouter(t, db)

	old := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)
	logEvent(t, db, audit.Event{
		Timestamp: old,
		Category:  audit.CategoryAuth,
		EventType: audit.EventLoginSuccess,
		Success:   true,
	})
	logEvent(t, db, audit.Event{
		Category:  audit.CategoryAdmin,
		EventType: audit.EventBranchCreated,
		Success:   true,
	})

	cases := []struct {
		name  string
		query string
		want  string
	}{
		{"by category", "?category=auth", audit.EventLoginSuccess},
		{"by event type", "?event_type=branch_created", audit.EventBranchCreated},
		{"by date window", "?start_date=2026-01-01&end_date=2026-01-31", audit.EventLoginSuccess},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, router, "/"+tc.query, testutil.OwnerContext())
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
			}
			var resp listResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("parse response: %v", err)
			}
			if len(resp.Events) != 1 || resp.Events[0].EventType != tc.want {
				t.Errorf("events = %+v, want one %s", resp.Events, tc.want)
			}
		})
	}
}

func TestList_BadParams(t *testing.T) {
	db := testutil.SetupTestDB(t)
	router := newRouter(t, db)

	for _, q := range []string{"?page=0", "?start_date=notadate", "?start_date=2026-02-01&end_date=2026-01-01"} {
		rec := do(t, router, "/"+q, testutil.OwnerContext())
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", q, rec.Code)
		}
	}
}

func TestList_OwnerOnly(t *testing.T) {
	db := testutil.SetupTestDB(t)
	router := newRouter(t, db)

	for _, role := range []string{models.RoleManager, models.RoleViewer} {
		rec := do(t, router, "/", testutil.ScopedContext(role))
		if rec.Code != http.StatusForbidden {
			t.Errorf("%s: status = %d, want 403", role, rec.Code)
		}
	}
	rec := do(t, router, "/", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("signed out: status = %d, want 401", rec.Code)
	}
}

func TestFailedLogins(t *testing.T) {
	db := testutil.SetupTestDB(t)
	router := newRouter(t, db)

	logEvent(t, db, audit.Event{
		Category:      audit.CategoryAuth,
		EventType:     audit.EventLoginFailedWrongPassword,
		Success:       false,
		FailureReason: "wrong_password",
	})
	logEvent(t, db, audit.Event{
		Category:  audit.CategoryAuth,
		EventType: audit.EventLoginSuccess,
		Success:   true,
	})
	// Stale failures fall outside the window.
	logEvent(t, db, audit.Event{
		Timestamp: time.Now().UTC().Add(-48 * time.Hour),
		Category:  audit.CategoryAuth,
		EventType: audit.EventLoginFailedWrongPassword,
		Success:   false,
	})

	rec := do(t, router, "/failed-logins", testutil.OwnerContext())
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Events []struct {
			EventType string `json:"event_type"`
			Success   bool   `json:"success"`
		} `json:"events"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if len(resp.Events) != 1 {
		t.Fatalf("got %d events, want 1", len(resp.Events))
	}
	if resp.Events[0].Success || resp.Events[0].EventType != audit.EventLoginFailedWrongPassword {
		t.Errorf("event = %+v", resp.Events[0])
	}
}

func TestRecent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	router := newRouter(t, db)

	now := time.Now().UTC()
	for i := 0; i < 3; i++ {
		logEvent(t, db, audit.Event{
			Timestamp: now.Add(time.Duration(i) * time.Minute),
			Category:  audit.CategoryExport,
			EventType: audit.EventReportExported,
			Success:   true,
		})
	}

	rec := do(t, router, "/recent", testutil.OwnerContext())
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Events []struct {
			Timestamp time.Time `json:"timestamp"`
		} `json:"events"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if len(resp.Events) != 3 {
		t.Fatalf("got %d events, want 3", len(resp.Events))
	}
	for i := 1; i < len(resp.Events); i++ {
		if resp.Events[i].Timestamp.After(resp.Events[i-1].Timestamp) {
			t.Errorf("events not newest first at %d", i)
		}
	}
}
