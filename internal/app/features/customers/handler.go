// internal/app/features/customers/handler.go

// Package customers serves the repeat-customer report: reviews grouped
// by contact, filtered to customers with a minimum review count.
package customers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	uierrors "github.com/branchrate/branchrate/internal/app/features/errors"
	"github.com/branchrate/branchrate/internal/app/policy/reviewpolicy"
	"github.com/branchrate/branchrate/internal/app/store/queries/reviewstats"
	"github.com/branchrate/branchrate/internal/app/system/authz"
	"github.com/branchrate/branchrate/internal/app/system/limits"
	"github.com/branchrate/branchrate/internal/app/system/metrics"
	"github.com/branchrate/branchrate/internal/app/system/stats"
	"github.com/branchrate/branchrate/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/pantry/query"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type Handler struct {
	DB      *mongo.Database
	Metrics *metrics.Metrics
	ErrLog  *uierrors.ErrorLogger
	Log     *zap.Logger
}

type frequencyResponse struct {
	Customers []stats.CustomerRow `json:"customers"`
	Truncated bool                `json:"truncated"`
}

// Serve handles GET /api/admin/customers.
//
// min_reviews (default 2) sets the repeat threshold; optional from/to
// (RFC 3339) bound which reviews count toward it. Reviews without
// contact information never appear here.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	ac, _ := authz.FromRequest(r)
	scope := reviewpolicy.CanViewReviews(ac)
	if !scope.CanView {
		uierrors.WriteError(w, http.StatusForbidden, "forbidden")
		return
	}

	minReviews := limits.DefaultMinReviews
	if raw := query.Get(r, "min_reviews"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			uierrors.WriteFieldError(w, "min_reviews", "must be a positive integer")
			return
		}
		minReviews = n
	}

	rng, ferr := parseRange(r)
	if ferr != nil {
		uierrors.WriteFieldError(w, ferr.field, ferr.reason)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	fetched, err := reviewstats.FetchForScope(ctx, h.DB, scope, rng)
	if err != nil {
		h.Metrics.StoreError("reviews")
		h.ErrLog.StoreUnavailable(w, r, "fetch reviews for customer report", err)
		return
	}

	rows := stats.CustomerFrequency(fetched.Reviews, minReviews)
	uierrors.WriteJSON(w, http.StatusOK, frequencyResponse{
		Customers: rows,
		Truncated: fetched.Truncated,
	})
}

type paramError struct {
	field  string
	reason string
}

func parseRange(r *http.Request) (reviewstats.Range, *paramError) {
	var rng reviewstats.Range
	if raw := query.Get(r, "from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return rng, &paramError{"from", "must be an RFC 3339 timestamp"}
		}
		rng.From = &t
	}
	if raw := query.Get(r, "to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return rng, &paramError{"to", "must be an RFC 3339 timestamp"}
		}
		rng.To = &t
	}
	if rng.From != nil && rng.To != nil && rng.To.Before(*rng.From) {
		return rng, &paramError{"to", "must not precede from"}
	}
	return rng, nil
}
