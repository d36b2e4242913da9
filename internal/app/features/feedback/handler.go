// internal/app/features/feedback/handler.go

// Package feedback serves the public kiosk API: the active-branch
// picker and anonymous review submission. No authentication; the
// endpoints expose nothing beyond branch names and accept only inserts.
package feedback

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	uierrors "github.com/branchrate/branchrate/internal/app/features/errors"
	branchstore "github.com/branchrate/branchrate/internal/app/store/branches"
	reviewstore "github.com/branchrate/branchrate/internal/app/store/reviews"
	"github.com/branchrate/branchrate/internal/app/system/inputval"
	"github.com/branchrate/branchrate/internal/app/system/limits"
	"github.com/branchrate/branchrate/internal/app/system/metrics"
	"github.com/branchrate/branchrate/internal/app/system/sanitize"
	"github.com/branchrate/branchrate/internal/app/system/timeouts"
	"github.com/branchrate/branchrate/internal/domain/models"
	"go.uber.org/zap"
)

type Handler struct {
	Reviews  *reviewstore.Store
	Branches *branchstore.Store
	Metrics  *metrics.Metrics
	ErrLog   *uierrors.ErrorLogger
	Log      *zap.Logger
}

type branchOption struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Location string `json:"location"`
}

// ListBranches handles GET /api/feedback/branches: the active branches
// a kiosk can submit against.
func (h *Handler) ListBranches(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	branches, err := h.Branches.ListActive(ctx)
	if err != nil {
		h.Metrics.StoreError("branches")
		h.ErrLog.StoreUnavailable(w, r, "list active branches", err)
		return
	}

	out := make([]branchOption, 0, len(branches))
	for _, b := range branches {
		out = append(out, branchOption{
			ID:       b.ID.Hex(),
			Name:     b.Name,
			Location: b.Location,
		})
	}
	uierrors.WriteJSON(w, http.StatusOK, map[string]any{"branches": out})
}

// SubmitReview handles POST /api/feedback/reviews.
//
// The branch ID must be well formed but is NOT checked for existence;
// a kiosk mid-submission while its branch is deleted still gets its
// review recorded.
func (h *Handler) SubmitReview(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, limits.MaxReviewBodySize)

	var in inputval.ReviewInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		uierrors.WriteError(w, http.StatusBadRequest, "malformed JSON body")
		return
	}

	branchID, ferr := inputval.ValidateReview(in)
	if ferr != nil {
		uierrors.WriteFieldError(w, ferr.Field, ferr.Reason)
		return
	}

	rv := models.Review{
		BranchID:     branchID,
		Rating:       in.Rating,
		Comment:      sanitize.Text(in.Comment),
		CustomerName: sanitize.Text(in.CustomerName),
		Contact:      sanitize.Text(in.Contact),
		BillID:       sanitize.Text(in.BillID),
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	created, err := h.Reviews.Create(ctx, rv)
	if err != nil {
		h.Metrics.StoreError("reviews")
		h.ErrLog.StoreUnavailable(w, r, "insert review", err)
		return
	}

	h.Metrics.ReviewSubmitted(strconv.Itoa(created.Rating))
	h.Log.Info("review submitted",
		zap.String("review_id", created.ID.Hex()),
		zap.String("branch_id", created.BranchID.Hex()),
		zap.Int("rating", created.Rating))

	uierrors.WriteJSON(w, http.StatusCreated, map[string]any{
		"id":         created.ID.Hex(),
		"created_at": created.CreatedAt,
	})
}
