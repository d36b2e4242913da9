package customers_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/branchrate/branchrate/internal/app/features/customers"
	uierrors "github.com/branchrate/branchrate/internal/app/features/errors"
	reviewstore "github.com/branchrate/branchrate/internal/app/store/reviews"
	"github.com/branchrate/branchrate/internal/app/system/metrics"
	"github.com/branchrate/branchrate/internal/domain/models"
	"github.com/branchrate/branchrate/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

func newHandler(db *mongo.Database) *customers.Handler {
	logger := zap.NewNop()
	return &customers.Handler{
		DB:      db,
		Metrics: metrics.New(),
		ErrLog:  uierrors.NewErrorLogger(logger),
		Log:     logger,
	}
}

func seed(t *testing.T, db *mongo.Database, branch primitive.ObjectID, contact string, ratings ...int) {
	t.Helper()
	ctx, cancel := testutil.TestContext()
	defer cancel()
	store := reviewstore.New(db)
	for i, rating := range ratings {
		if _, err := store.Create(ctx, models.Review{
			BranchID:  branch,
			Rating:    rating,
			Contact:   contact,
			CreatedAt: time.Now().UTC().Add(time.Duration(i) * time.Second),
		}); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
}

type response struct {
	Customers []struct {
		Contact       string  `json:"contact"`
		Count         int     `json:"count"`
		AverageRating float64 `json:"average_rating"`
	} `json:"customers"`
	Truncated bool `json:"truncated"`
}

func TestServe_RepeatThreshold(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := newHandler(db)
	branch := testutil.CreateBranch(t, db, "Main")

	seed(t, db, branch.ID, "regular@example.com", 5, 4, 3)
	seed(t, db, branch.ID, "once@example.com", 2)
	seed(t, db, branch.ID, "", 1) // no contact, never listed

	req := testutil.AuthedRequest(http.MethodGet, "/api/admin/customers", nil, testutil.OwnerContext())
	rec := httptest.NewRecorder()
	h.Serve(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if len(resp.Customers) != 1 {
		t.Fatalf("got %d customers, want 1", len(resp.Customers))
	}
	c := resp.Customers[0]
	if c.Contact != "regular@example.com" || c.Count != 3 || c.AverageRating != 4.0 {
		t.Errorf("customer = %+v", c)
	}
}

func TestServe_MinReviewsParam(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := newHandler(db)
	branch := testutil.CreateBranch(t, db, "Main")

	seed(t, db, branch.ID, "a@example.com", 5)
	seed(t, db, branch.ID, "b@example.com", 4, 4)

	req := testutil.AuthedRequest(http.MethodGet, "/api/admin/customers?min_reviews=1", nil,
		testutil.OwnerContext())
	rec := httptest.NewRecorder()
	h.Serve(rec, req)

	var resp response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if len(resp.Customers) != 2 {
		t.Fatalf("got %d customers, want 2", len(resp.Customers))
	}
	// Sorted by count descending.
	if resp.Customers[0].Contact != "b@example.com" {
		t.Errorf("first customer = %+v", resp.Customers[0])
	}
}

func TestServe_ScopedExcludesOtherBranches(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := newHandler(db)
	mine := testutil.CreateBranch(t, db, "Mine")
	other := testutil.CreateBranch(t, db, "Other")

	seed(t, db, mine.ID, "shared@example.com", 5, 5)
	seed(t, db, other.ID, "shared@example.com", 1, 1)

	req := testutil.AuthedRequest(http.MethodGet, "/api/admin/customers", nil,
		testutil.ScopedContext(models.RoleViewer, mine.ID))
	rec := httptest.NewRecorder()
	h.Serve(rec, req)

	var resp response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if len(resp.Customers) != 1 {
		t.Fatalf("got %d customers, want 1", len(resp.Customers))
	}
	// Only the in-scope reviews count toward the rollup.
	if resp.Customers[0].Count != 2 || resp.Customers[0].AverageRating != 5.0 {
		t.Errorf("customer = %+v", resp.Customers[0])
	}
}

func TestServe_DateRangeBoundsCount(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := newHandler(db)
	branch := testutil.CreateBranch(t, db, "Main")

	ctx, cancel := testutil.TestContext()
	defer cancel()
	store := reviewstore.New(db)
	now := time.Now().UTC()
	for _, age := range []time.Duration{0, time.Hour, 90 * 24 * time.Hour} {
		if _, err := store.Create(ctx, models.Review{
			BranchID:  branch.ID,
			Rating:    5,
			Contact:   "regular@example.com",
			CreatedAt: now.Add(-age),
		}); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	// The window starts a week back, so the 90-day-old review is out.
	from := now.AddDate(0, 0, -7).Format(time.RFC3339)
	req := testutil.AuthedRequest(http.MethodGet,
		"/api/admin/customers?min_reviews=1&from="+from, nil, testutil.OwnerContext())
	rec := httptest.NewRecorder()
	h.Serve(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if len(resp.Customers) != 1 {
		t.Fatalf("got %d customers, want 1", len(resp.Customers))
	}
	if resp.Customers[0].Count != 2 {
		t.Errorf("count = %d, want 2 (review outside the window must not count)", resp.Customers[0].Count)
	}
}

func TestServe_BadDateRange(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := newHandler(db)

	for _, q := range []string{"from=yesterday", "from=2026-02-02T00:00:00Z&to=2026-01-01T00:00:00Z"} {
		req := testutil.AuthedRequest(http.MethodGet, "/api/admin/customers?"+q, nil,
			testutil.OwnerContext())
		rec := httptest.NewRecorder()
		h.Serve(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", q, rec.Code)
		}
	}
}

func TestServe_BadMinReviews(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := newHandler(db)

	req := testutil.AuthedRequest(http.MethodGet, "/api/admin/customers?min_reviews=0", nil,
		testutil.OwnerContext())
	rec := httptest.NewRecorder()
	h.Serve(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}
