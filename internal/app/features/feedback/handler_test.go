package feedback_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	uierrors "github.com/branchrate/branchrate/internal/app/features/errors"
	"github.com/branchrate/branchrate/internal/app/features/feedback"
	"github.com/branchrate/branchrate/internal/app/policy/reviewpolicy"
	branchstore "github.com/branchrate/branchrate/internal/app/store/branches"
	reviewstore "github.com/branchrate/branchrate/internal/app/store/reviews"
	"github.com/branchrate/branchrate/internal/app/system/metrics"
	"github.com/branchrate/branchrate/internal/domain/models"
	"github.com/branchrate/branchrate/internal/testutil"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

func newHandler(db *mongo.Database) *feedback.Handler {
	logger := zap.NewNop()
	return &feedback.Handler{
		Reviews:  reviewstore.New(db),
		Branches: branchstore.New(db),
		Metrics:  metrics.New(),
		ErrLog:   uierrors.NewErrorLogger(logger),
		Log:      logger,
	}
}

func TestSubmitReview(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := newHandler(db)
	branch := testutil.CreateBranch(t, db, "Kiosk Branch")

	body := `{"branch_id":"` + branch.ID.Hex() + `","rating":5,"comment":"<script>x</script>Lovely","customer_name":"Dana"}`
	req := httptest.NewRequest(http.MethodPost, "/api/feedback/reviews", strings.NewReader(body))
	rec := httptest.NewRecorder()

	h.SubmitReview(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		ID        string    `json:"id"`
		CreatedAt time.Time `json:"created_at"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if resp.ID == "" || resp.CreatedAt.IsZero() {
		t.Errorf("response = %+v", resp)
	}

	// Stored comment is sanitized.
	ctx, cancel := testutil.TestContext()
	defer cancel()
	res, err := reviewstore.New(db).List(ctx,
		reviewpolicy.ReviewScope{CanView: true, AllBranches: true},
		reviewstore.Filter{}, reviewstore.Page{Size: 10})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(res.Reviews) != 1 {
		t.Fatalf("got %d reviews", len(res.Reviews))
	}
	if res.Reviews[0].Comment != "Lovely" {
		t.Errorf("comment = %q, want sanitized %q", res.Reviews[0].Comment, "Lovely")
	}
}

func TestSubmitReview_ValidationErrors(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := newHandler(db)

	cases := []struct {
		name  string
		body  string
		field string
	}{
		{"missing branch", `{"rating":3}`, "branch_id"},
		{"malformed branch", `{"branch_id":"nothex","rating":3}`, "branch_id"},
		{"rating too low", `{"branch_id":"64b000000000000000000001","rating":0}`, "rating"},
		{"rating too high", `{"branch_id":"64b000000000000000000001","rating":6}`, "rating"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/feedback/reviews", strings.NewReader(tc.body))
			rec := httptest.NewRecorder()
			h.SubmitReview(rec, req)

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

func TestSubmitReview_MalformedJSON(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := newHandler(db)

	req := httptest.NewRequest(http.MethodPost, "/api/feedback/reviews", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	h.SubmitReview(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestListBranches_ActiveOnly(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := newHandler(db)

	active := testutil.CreateBranch(t, db, "Active One")
	inactive := testutil.CreateBranch(t, db, "Closing Down")
	ctx, cancel := testutil.TestContext()
	defer cancel()
	if err := branchstore.New(db).Update(ctx, inactive.ID, models.Branch{IsActive: false}); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/feedback/branches", nil)
	rec := httptest.NewRecorder()
	h.ListBranches(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Branches []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"branches"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if len(resp.Branches) != 1 {
		t.Fatalf("got %d branches, want 1", len(resp.Branches))
	}
	if resp.Branches[0].ID != active.ID.Hex() {
		t.Errorf("branch = %+v", resp.Branches[0])
	}
}
