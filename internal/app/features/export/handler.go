// internal/app/features/export/handler.go

// Package export serves CSV report downloads for owners and managers.
package export

import (
	"context"
	"net/http"
	"sort"
	"time"

	uierrors "github.com/branchrate/branchrate/internal/app/features/errors"
	"github.com/branchrate/branchrate/internal/app/policy/reviewpolicy"
	branchstore "github.com/branchrate/branchrate/internal/app/store/branches"
	"github.com/branchrate/branchrate/internal/app/store/queries/reviewstats"
	"github.com/branchrate/branchrate/internal/app/system/auditlog"
	"github.com/branchrate/branchrate/internal/app/system/authz"
	"github.com/branchrate/branchrate/internal/app/system/csvutil"
	"github.com/branchrate/branchrate/internal/app/system/metrics"
	"github.com/branchrate/branchrate/internal/app/system/stats"
	"github.com/branchrate/branchrate/internal/app/system/timeouts"
	"github.com/branchrate/branchrate/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type Handler struct {
	DB       *mongo.Database
	Branches *branchstore.Store
	AuditLog *auditlog.Logger
	Metrics  *metrics.Metrics
	ErrLog   *uierrors.ErrorLogger
	Log      *zap.Logger
}

// Reviews handles GET /api/admin/export/reviews.csv. Optional from/to
// (RFC 3339) bound the exported range. When the scan cap truncates the
// data the response carries X-Data-Truncated: true.
func (h *Handler) Reviews(w http.ResponseWriter, r *http.Request) {
	ac, _ := authz.FromRequest(r)
	scope := reviewpolicy.CanExportReviews(ac)
	if !scope.CanView {
		uierrors.WriteError(w, http.StatusForbidden, "forbidden")
		return
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
		h.ErrLog.StoreUnavailable(w, r, "fetch reviews for export", err)
		return
	}

	names, err := h.branchNames(ctx, fetched.Reviews)
	if err != nil {
		h.Log.Warn("resolve branch names for export", zap.Error(err))
	}

	filename := csvutil.ExportFilename("reviews", time.Now(), uuid.NewString()[:8])
	writeCSVHeaders(w, filename, fetched.Truncated)
	if err := csvutil.WriteReviews(w, fetched.Reviews, names); err != nil {
		// Headers are already out; all we can do is log.
		h.Log.Error("write reviews csv", zap.Error(err))
		return
	}

	h.Metrics.ExportGenerated("reviews")
	h.AuditLog.ReportExported(ctx, r, ac.AdminID, "reviews", filename, len(fetched.Reviews))
}

// BranchStats handles GET /api/admin/export/branch-stats.csv.
func (h *Handler) BranchStats(w http.ResponseWriter, r *http.Request) {
	ac, _ := authz.FromRequest(r)
	scope := reviewpolicy.CanExportReviews(ac)
	if !scope.CanView {
		uierrors.WriteError(w, http.StatusForbidden, "forbidden")
		return
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
		h.ErrLog.StoreUnavailable(w, r, "fetch reviews for export", err)
		return
	}

	tallies := stats.BranchStats(fetched.Reviews)
	names, err := h.branchNames(ctx, fetched.Reviews)
	if err != nil {
		h.Log.Warn("resolve branch names for export", zap.Error(err))
	}

	// Stable row order: branch name ascending, unknown branches last.
	order := make([]primitive.ObjectID, 0, len(tallies))
	for id := range tallies {
		order = append(order, id)
	}
	sort.Slice(order, func(i, j int) bool {
		ni, iok := names[order[i]]
		nj, jok := names[order[j]]
		if iok != jok {
			return iok
		}
		if ni != nj {
			return ni < nj
		}
		return order[i].Hex() < order[j].Hex()
	})

	filename := csvutil.ExportFilename("branch-stats", time.Now(), uuid.NewString()[:8])
	writeCSVHeaders(w, filename, fetched.Truncated)
	if err := csvutil.WriteBranchStats(w, tallies, names, order); err != nil {
		h.Log.Error("write branch stats csv", zap.Error(err))
		return
	}

	h.Metrics.ExportGenerated("branch_stats")
	h.AuditLog.ReportExported(ctx, r, ac.AdminID, "branch_stats", filename, len(order))
}

func writeCSVHeaders(w http.ResponseWriter, filename string, truncated bool) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	if truncated {
		w.Header().Set("X-Data-Truncated", "true")
	}
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
