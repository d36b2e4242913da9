// internal/app/features/dashboard/handler.go

// Package dashboard serves the admin statistics endpoint: headline
// totals, per-branch rollups, and the zero-filled daily series.
package dashboard

import (
	"context"
	"net/http"
	"time"

	uierrors "github.com/branchrate/branchrate/internal/app/features/errors"
	"github.com/branchrate/branchrate/internal/app/policy/reviewpolicy"
	branchstore "github.com/branchrate/branchrate/internal/app/store/branches"
	"github.com/branchrate/branchrate/internal/app/store/queries/reviewstats"
	"github.com/branchrate/branchrate/internal/app/system/authz"
	"github.com/branchrate/branchrate/internal/app/system/metrics"
	"github.com/branchrate/branchrate/internal/app/system/stats"
	"github.com/branchrate/branchrate/internal/app/system/timeouts"
	"github.com/branchrate/branchrate/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// defaultDailyWindow is how many days the daily series covers when the
// caller gives no range. maxDailySpanDays bounds an explicit range:
// every day in the span gets a bucket, even empty ones, so an
// unbounded span would mean an unbounded response.
const (
	defaultDailyWindow = 30
	maxDailySpanDays   = 366
)

type Handler struct {
	DB       *mongo.Database
	Branches *branchstore.Store
	Metrics  *metrics.Metrics
	ErrLog   *uierrors.ErrorLogger
	Log      *zap.Logger
}

type branchStatRow struct {
	BranchID      string  `json:"branch_id"`
	BranchName    string  `json:"branch_name,omitempty"`
	Count         int     `json:"count"`
	AverageRating float64 `json:"average_rating"`
}

type dashboardResponse struct {
	Totals      stats.Totals        `json:"totals"`
	BranchStats []branchStatRow     `json:"branch_stats"`
	DailyStats  []stats.DailyBucket `json:"daily_stats"`
	Truncated   bool                `json:"truncated"`
}

// Serve handles GET /api/admin/dashboard.
//
// Optional from/to (RFC 3339) bound both the fetch and the daily
// series; without them the fetch is unbounded (up to the scan cap) and
// the daily series covers the last 30 days. An explicit range longer
// than a year is rejected. Truncated is true when the
// scan cap was hit, meaning all numbers are computed from a partial
// set.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	ac, _ := authz.FromRequest(r)
	scope := reviewpolicy.CanViewReviews(ac)
	if !scope.CanView {
		uierrors.WriteError(w, http.StatusForbidden, "forbidden")
		return
	}

	rng, dailyStart, dailyEnd, ferr := parseRange(r)
	if ferr != nil {
		uierrors.WriteFieldError(w, ferr.field, ferr.reason)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	fetched, err := reviewstats.FetchForScope(ctx, h.DB, scope, rng)
	if err != nil {
		h.Metrics.StoreError("reviews")
		h.ErrLog.StoreUnavailable(w, r, "fetch reviews for dashboard", err)
		return
	}

	branches, err := h.visibleBranches(ctx, scope)
	if err != nil {
		h.Metrics.StoreError("branches")
		h.ErrLog.StoreUnavailable(w, r, "fetch branches for dashboard", err)
		return
	}
	names := make(map[primitive.ObjectID]string, len(branches))
	for _, b := range branches {
		names[b.ID] = b.Name
	}

	tallies := stats.BranchStats(fetched.Reviews)
	rows := make([]branchStatRow, 0, len(branches))
	seen := make(map[primitive.ObjectID]bool, len(branches))
	for _, b := range branches {
		tally := tallies[b.ID]
		rows = append(rows, branchStatRow{
			BranchID:      b.ID.Hex(),
			BranchName:    b.Name,
			Count:         tally.Count,
			AverageRating: tally.AverageRating(),
		})
		seen[b.ID] = true
	}
	// Reviews can reference branches that were deleted since; keep
	// their numbers visible under the raw ID.
	for id, tally := range tallies {
		if seen[id] {
			continue
		}
		rows = append(rows, branchStatRow{
			BranchID:      id.Hex(),
			Count:         tally.Count,
			AverageRating: tally.AverageRating(),
		})
	}

	uierrors.WriteJSON(w, http.StatusOK, dashboardResponse{
		Totals:      stats.DashboardTotals(fetched.Reviews, branches),
		BranchStats: rows,
		DailyStats:  stats.DailyStats(fetched.Reviews, dailyStart, dailyEnd),
		Truncated:   fetched.Truncated,
	})
}

// visibleBranches returns the branches inside the caller's scope.
func (h *Handler) visibleBranches(ctx context.Context, scope reviewpolicy.ReviewScope) ([]models.Branch, error) {
	if scope.AllBranches {
		return h.Branches.List(ctx)
	}
	return h.Branches.GetByIDs(ctx, scope.BranchIDs)
}

type paramError struct {
	field  string
	reason string
}

func parseRange(r *http.Request) (reviewstats.Range, time.Time, time.Time, *paramError) {
	var rng reviewstats.Range

	if raw := query.Get(r, "from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return rng, time.Time{}, time.Time{}, &paramError{"from", "must be an RFC 3339 timestamp"}
		}
		rng.From = &t
	}
	if raw := query.Get(r, "to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return rng, time.Time{}, time.Time{}, &paramError{"to", "must be an RFC 3339 timestamp"}
		}
		rng.To = &t
	}
	if rng.From != nil && rng.To != nil && rng.To.Before(*rng.From) {
		return rng, time.Time{}, time.Time{}, &paramError{"to", "must not precede from"}
	}

	now := time.Now().UTC()
	dailyEnd := now
	if rng.To != nil {
		dailyEnd = *rng.To
	}
	dailyStart := dailyEnd.AddDate(0, 0, -(defaultDailyWindow - 1))
	if rng.From != nil {
		dailyStart = *rng.From
		if dailyEnd.Sub(dailyStart) > maxDailySpanDays*24*time.Hour {
			return rng, time.Time{}, time.Time{}, &paramError{"from", "range exceeds 366 days"}
		}
	}
	return rng, dailyStart, dailyEnd, nil
}
