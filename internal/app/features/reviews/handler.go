// internal/app/features/reviews/handler.go

// Package reviews serves the admin review listing: scoped, filtered,
// cursor-paginated, newest first.
package reviews

import (
	"context"
	"net/http"
	"strconv"
	"time"

	uierrors "github.com/branchrate/branchrate/internal/app/features/errors"
	"github.com/branchrate/branchrate/internal/app/policy/reviewpolicy"
	branchstore "github.com/branchrate/branchrate/internal/app/store/branches"
	reviewstore "github.com/branchrate/branchrate/internal/app/store/reviews"
	"github.com/branchrate/branchrate/internal/app/system/authz"
	"github.com/branchrate/branchrate/internal/app/system/limits"
	"github.com/branchrate/branchrate/internal/app/system/metrics"
	"github.com/branchrate/branchrate/internal/app/system/timeouts"
	"github.com/branchrate/branchrate/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type Handler struct {
	Reviews  *reviewstore.Store
	Branches *branchstore.Store
	Metrics  *metrics.Metrics
	ErrLog   *uierrors.ErrorLogger
	Log      *zap.Logger
}

type reviewRow struct {
	ID           string    `json:"id"`
	BranchID     string    `json:"branch_id"`
	BranchName   string    `json:"branch_name,omitempty"`
	Rating       int       `json:"rating"`
	Comment      string    `json:"comment,omitempty"`
	CustomerName string    `json:"customer_name,omitempty"`
	Contact      string    `json:"contact,omitempty"`
	BillID       string    `json:"bill_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

type listResponse struct {
	Reviews      []reviewRow `json:"reviews"`
	NextCursor   string      `json:"next_cursor,omitempty"`
	HasMore      bool        `json:"has_more"`
	RequestToken string      `json:"request_token,omitempty"`
}

// List handles GET /api/admin/reviews.
//
// Query parameters: branch_id, from, to (RFC 3339), min_rating,
// max_rating, page_size, cursor. The optional request_token is echoed
// back verbatim so a client that fired overlapping filter changes can
// drop responses for stale requests.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ac, _ := authz.FromRequest(r)
	scope := reviewpolicy.CanViewReviews(ac)
	if !scope.CanView {
		uierrors.WriteError(w, http.StatusForbidden, "forbidden")
		return
	}

	filter, ferr := parseFilter(r)
	if ferr != nil {
		uierrors.WriteFieldError(w, ferr.field, ferr.reason)
		return
	}

	page := reviewstore.Page{
		Size:  limits.DefaultPageSize,
		After: query.Get(r, "cursor"),
	}
	if raw := query.Get(r, "page_size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			uierrors.WriteFieldError(w, "page_size", "must be a positive integer")
			return
		}
		page.Size = n
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	res, err := h.Reviews.List(ctx, scope, filter, page)
	if err != nil {
		h.Metrics.StoreError("reviews")
		h.ErrLog.StoreUnavailable(w, r, "list reviews", err)
		return
	}

	names, err := h.branchNames(ctx, res.Reviews)
	if err != nil {
		// Names are decoration; log and serve rows without them.
		h.Log.Warn("resolve branch names", zap.Error(err))
	}

	rows := make([]reviewRow, 0, len(res.Reviews))
	for _, rv := range res.Reviews {
		rows = append(rows, reviewRow{
			ID:           rv.ID.Hex(),
			BranchID:     rv.BranchID.Hex(),
			BranchName:   names[rv.BranchID],
			Rating:       rv.Rating,
			Comment:      rv.Comment,
			CustomerName: rv.CustomerName,
			Contact:      rv.Contact,
			BillID:       rv.BillID,
			CreatedAt:    rv.CreatedAt,
		})
	}

	uierrors.WriteJSON(w, http.StatusOK, listResponse{
		Reviews:      rows,
		NextCursor:   res.NextCursor,
		HasMore:      res.HasMore,
		RequestToken: query.Get(r, "request_token"),
	})
}

func (h *Handler) branchNames(ctx context.Context, reviews []models.Review) (map[primitive.ObjectID]string, error) {
	idSet := make(map[primitive.ObjectID]struct{}, len(reviews))
	for _, rv := range reviews {
		idSet[rv.BranchID] = struct{}{}
	}
	ids := make([]primitive.ObjectID, 0, len(idSet))
	for id := range idSet {
		ids = append(ids, id)
	}
	branches, err := h.Branches.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	names := make(map[primitive.ObjectID]string, len(branches))
	for _, b := range branches {
		names[b.ID] = b.Name
	}
	return names, nil
}

type paramError struct {
	field  string
	reason string
}

func parseFilter(r *http.Request) (reviewstore.Filter, *paramError) {
	var f reviewstore.Filter

	if raw := query.Get(r, "branch_id"); raw != "" {
		id, err := primitive.ObjectIDFromHex(raw)
		if err != nil {
			return f, &paramError{"branch_id", "must be a valid id"}
		}
		f.BranchID = &id
	}
	if raw := query.Get(r, "from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return f, &paramError{"from", "must be an RFC 3339 timestamp"}
		}
		f.From = &t
	}
	if raw := query.Get(r, "to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return f, &paramError{"to", "must be an RFC 3339 timestamp"}
		}
		f.To = &t
	}
	if raw := query.Get(r, "min_rating"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < models.MinRating || n > models.MaxRating {
			return f, &paramError{"min_rating", "must be between 1 and 5"}
		}
		f.MinRating = n
	}
	if raw := query.Get(r, "max_rating"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < models.MinRating || n > models.MaxRating {
			return f, &paramError{"max_rating", "must be between 1 and 5"}
		}
		f.MaxRating = n
	}
	if f.MinRating > 0 && f.MaxRating > 0 && f.MinRating > f.MaxRating {
		return f, &paramError{"min_rating", "must not exceed max_rating"}
	}
	return f, nil
}
