package reviews_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	uierrors "github.com/branchrate/branchrate/internal/app/features/errors"
	"github.com/branchrate/branchrate/internal/app/features/reviews"
	branchstore "github.com/branchrate/branchrate/internal/app/store/branches"
	reviewstore "github.com/branchrate/branchrate/internal/app/store/reviews"
	"github.com/branchrate/branchrate/internal/app/system/metrics"
	"github.com/branchrate/branchrate/internal/domain/models"
	"github.com/branchrate/branchrate/internal/testutil"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

func newHandler(db *mongo.Database) *reviews.Handler {
	logger := zap.NewNop()
	return &reviews.Handler{
		Reviews:  reviewstore.New(db),
		Branches: branchstore.New(db),
		Metrics:  metrics.New(),
		ErrLog:   uierrors.NewErrorLogger(logger),
		Log:      logger,
	}
}

type listResponse struct {
	Reviews []struct {
		ID         string `json:"id"`
		BranchID   string `json:"branch_id"`
		BranchName string `json:"branch_name"`
		Rating     int    `json:"rating"`
	} `json:"reviews"`
	NextCursor   string `json:"next_cursor"`
	HasMore      bool   `json:"has_more"`
	RequestToken string `json:"request_token"`
}

func TestList_OwnerSeesAllWithNames(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := newHandler(db)

	b := testutil.CreateBranch(t, db, "Harbor View")
	testutil.CreateReview(t, db, b.ID, 5, time.Now().UTC().Add(-time.Minute))
	testutil.CreateReview(t, db, b.ID, 3, time.Now().UTC())

	req := testutil.AuthedRequest(http.MethodGet, "/api/admin/reviews?request_token=req-42", nil,
		testutil.OwnerContext())
	rec := httptest.NewRecorder()
	h.List(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp listResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if len(resp.Reviews) != 2 {
		t.Fatalf("got %d reviews, want 2", len(resp.Reviews))
	}
	// Newest first.
	if resp.Reviews[0].Rating != 3 {
		t.Errorf("first review rating = %d, want newest (3)", resp.Reviews[0].Rating)
	}
	if resp.Reviews[0].BranchName != "Harbor View" {
		t.Errorf("branch name = %q", resp.Reviews[0].BranchName)
	}
	if resp.RequestToken != "req-42" {
		t.Errorf("request token = %q, want echo of req-42", resp.RequestToken)
	}
}

func TestList_ScopedViewerSeesOnlyAllowed(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := newHandler(db)

	mine := testutil.CreateBranch(t, db, "Mine")
	other := testutil.CreateBranch(t, db, "Other")
	testutil.CreateReview(t, db, mine.ID, 4, time.Now().UTC())
	testutil.CreateReview(t, db, other.ID, 2, time.Now().UTC())

	req := testutil.AuthedRequest(http.MethodGet, "/api/admin/reviews", nil,
		testutil.ScopedContext(models.RoleViewer, mine.ID))
	rec := httptest.NewRecorder()
	h.List(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp listResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if len(resp.Reviews) != 1 {
		t.Fatalf("got %d reviews, want 1", len(resp.Reviews))
	}
	if resp.Reviews[0].BranchID != mine.ID.Hex() {
		t.Errorf("review from branch %s leaked", resp.Reviews[0].BranchID)
	}
}

func TestList_EmptyScopeGetsEmptyPage(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := newHandler(db)

	b := testutil.CreateBranch(t, db, "Somewhere")
	testutil.CreateReview(t, db, b.ID, 4, time.Now().UTC())

	req := testutil.AuthedRequest(http.MethodGet, "/api/admin/reviews", nil,
		testutil.ScopedContext(models.RoleManager))
	rec := httptest.NewRecorder()
	h.List(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("empty scope should be 200, got %d", rec.Code)
	}
	var resp listResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if len(resp.Reviews) != 0 || resp.HasMore {
		t.Errorf("got %d reviews, HasMore=%v", len(resp.Reviews), resp.HasMore)
	}
}

func TestList_NoAuthContextForbidden(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := newHandler(db)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/reviews", nil)
	rec := httptest.NewRecorder()
	h.List(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}

func TestList_CursorPaging(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := newHandler(db)

	b := testutil.CreateBranch(t, db, "Paged")
	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		testutil.CreateReview(t, db, b.ID, 4, base.Add(time.Duration(i)*time.Second))
	}

	req := testutil.AuthedRequest(http.MethodGet, "/api/admin/reviews?page_size=2", nil,
		testutil.OwnerContext())
	rec := httptest.NewRecorder()
	h.List(rec, req)

	var first listResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &first); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if len(first.Reviews) != 2 || !first.HasMore || first.NextCursor == "" {
		t.Fatalf("first page = %+v", first)
	}

	req = testutil.AuthedRequest(http.MethodGet,
		"/api/admin/reviews?page_size=2&cursor="+first.NextCursor, nil,
		testutil.OwnerContext())
	rec = httptest.NewRecorder()
	h.List(rec, req)

	var second listResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &second); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if len(second.Reviews) != 2 || !second.HasMore {
		t.Fatalf("second page = %+v", second)
	}
	if second.Reviews[0].ID == first.Reviews[0].ID {
		t.Error("pages overlap")
	}
}

func TestList_BadParams(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := newHandler(db)

	cases := []struct {
		name  string
		query string
		field string
	}{
		{"bad branch", "?branch_id=zzz", "branch_id"},
		{"bad from", "?from=yesterday", "from"},
		{"bad rating", "?min_rating=9", "min_rating"},
		{"inverted ratings", "?min_rating=4&max_rating=2", "min_rating"},
		{"bad page size", "?page_size=-1", "page_size"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := testutil.AuthedRequest(http.MethodGet, "/api/admin/reviews"+tc.query, nil,
				testutil.OwnerContext())
			rec := httptest.NewRecorder()
			h.List(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			var resp struct {
				Field string `json:"field"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("parse response: %v", err)
			}
			if resp.Field != tc.field {
				t.Errorf("field = %q, want %q", resp.Field, tc.field)
			}
		})
	}
}
