// internal/app/features/auditlog/handler.go

// Package auditlog serves the audit trail to owners: filtered event
// listing, the most recent activity, and failed sign-in attempts.
package auditlog

import (
	"context"
	"net/http"
	"strconv"
	"time"

	uierrors "github.com/branchrate/branchrate/internal/app/features/errors"
	adminstore "github.com/branchrate/branchrate/internal/app/store/admins"
	"github.com/branchrate/branchrate/internal/app/store/audit"
	branchstore "github.com/branchrate/branchrate/internal/app/store/branches"
	"github.com/branchrate/branchrate/internal/app/system/metrics"
	"github.com/branchrate/branchrate/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/pantry/query"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

const (
	pageSize = 50

	// recentLimit bounds the /recent convenience view.
	recentLimit = 20

	// failedLoginWindow is how far back /failed-logins reaches by
	// default.
	failedLoginWindow = 24 * time.Hour
)

type Handler struct {
	DB      *mongo.Database
	Audit   *audit.Store
	Metrics *metrics.Metrics
	ErrLog  *uierrors.ErrorLogger
	Log     *zap.Logger
}

type listItem struct {
	ID            string            `json:"id"`
	Timestamp     time.Time         `json:"timestamp"`
	Category      string            `json:"category"`
	EventType     string            `json:"event_type"`
	ActorName     string            `json:"actor_name,omitempty"`
	TargetName    string            `json:"target_name,omitempty"`
	BranchName    string            `json:"branch_name,omitempty"`
	IP            string            `json:"ip,omitempty"`
	Success       bool              `json:"success"`
	FailureReason string            `json:"failure_reason,omitempty"`
	Details       map[string]string `json:"details,omitempty"`
}

type listResponse struct {
	Events     []listItem `json:"events"`
	Total      int64      `json:"total"`
	Page       int        `json:"page"`
	TotalPages int        `json:"total_pages"`
}

// List handles GET /api/admin/audit.
//
// Filters: category, event_type, start_date/end_date (2006-01-02,
// end_date inclusive through end of day). page selects a 50-row page.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page := 1
	if raw := query.Get(r, "page"); raw != "" {
		p, err := strconv.Atoi(raw)
		if err != nil || p < 1 {
			uierrors.WriteFieldError(w, "page", "must be a positive integer")
			return
		}
		page = p
	}

	filter := audit.QueryFilter{
		Category:  query.Get(r, "category"),
		EventType: query.Get(r, "event_type"),
		Limit:     pageSize,
		Offset:    int64((page - 1) * pageSize),
	}
	if raw := query.Get(r, "start_date"); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			uierrors.WriteFieldError(w, "start_date", "must be a 2006-01-02 date")
			return
		}
		filter.StartTime = &t
	}
	if raw := query.Get(r, "end_date"); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			uierrors.WriteFieldError(w, "end_date", "must be a 2006-01-02 date")
			return
		}
		endOfDay := t.Add(24*time.Hour - time.Second)
		filter.EndTime = &endOfDay
	}
	if filter.StartTime != nil && filter.EndTime != nil && filter.EndTime.Before(*filter.StartTime) {
		uierrors.WriteFieldError(w, "end_date", "must not precede start_date")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	events, err := h.Audit.Query(ctx, filter)
	if err != nil {
		h.Metrics.StoreError("audit")
		h.ErrLog.StoreUnavailable(w, r, "query audit events", err)
		return
	}
	total, err := h.Audit.CountByFilter(ctx, filter)
	if err != nil {
		h.Metrics.StoreError("audit")
		h.ErrLog.StoreUnavailable(w, r, "count audit events", err)
		return
	}

	totalPages := int((total + pageSize - 1) / pageSize)
	if totalPages < 1 {
		totalPages = 1
	}
	uierrors.WriteJSON(w, http.StatusOK, listResponse{
		Events:     h.toItems(ctx, events),
		Total:      total,
		Page:       page,
		TotalPages: totalPages,
	})
}

// Recent handles GET /api/admin/audit/recent: the newest events across
// all categories, for the dashboard activity panel.
func (h *Handler) Recent(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	events, err := h.Audit.GetRecent(ctx, recentLimit)
	if err != nil {
		h.Metrics.StoreError("audit")
		h.ErrLog.StoreUnavailable(w, r, "fetch recent audit events", err)
		return
	}
	uierrors.WriteJSON(w, http.StatusOK, map[string]any{"events": h.toItems(ctx, events)})
}

// FailedLogins handles GET /api/admin/audit/failed-logins: failed
// sign-in attempts over the last 24 hours, for abuse review.
func (h *Handler) FailedLogins(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	since := time.Now().UTC().Add(-failedLoginWindow)
	events, err := h.Audit.GetFailedLogins(ctx, since, pageSize)
	if err != nil {
		h.Metrics.StoreError("audit")
		h.ErrLog.StoreUnavailable(w, r, "fetch failed logins", err)
		return
	}
	uierrors.WriteJSON(w, http.StatusOK, map[string]any{"events": h.toItems(ctx, events)})
}

// toItems renders events with actor, target, and branch IDs resolved
// to names. Accounts or branches deleted since the event keep their
// hex ID so the trail stays readable.
func (h *Handler) toItems(ctx context.Context, events []audit.Event) []listItem {
	adminIDs := make(map[primitive.ObjectID]struct{})
	branchIDs := make(map[primitive.ObjectID]struct{})
	for _, e := range events {
		if e.ActorID != nil {
			adminIDs[*e.ActorID] = struct{}{}
		}
		if e.AdminID != nil {
			adminIDs[*e.AdminID] = struct{}{}
		}
		if e.BranchID != nil {
			branchIDs[*e.BranchID] = struct{}{}
		}
	}

	adminNames := make(map[primitive.ObjectID]string, len(adminIDs))
	if len(adminIDs) > 0 {
		ids := make([]primitive.ObjectID, 0, len(adminIDs))
		for id := range adminIDs {
			ids = append(ids, id)
		}
		accounts, err := adminstore.New(h.DB).GetByIDs(ctx, ids)
		if err != nil {
			h.Log.Warn("resolve admin names for audit list", zap.Error(err))
		}
		for _, a := range accounts {
			adminNames[a.ID] = a.Name
		}
	}

	branchNames := make(map[primitive.ObjectID]string, len(branchIDs))
	if len(branchIDs) > 0 {
		ids := make([]primitive.ObjectID, 0, len(branchIDs))
		for id := range branchIDs {
			ids = append(ids, id)
		}
		list, err := branchstore.New(h.DB).GetByIDs(ctx, ids)
		if err != nil {
			h.Log.Warn("resolve branch names for audit list", zap.Error(err))
		}
		for _, b := range list {
			branchNames[b.ID] = b.Name
		}
	}

	name := func(names map[primitive.ObjectID]string, id primitive.ObjectID) string {
		if n, ok := names[id]; ok {
			return n
		}
		return id.Hex()
	}

	items := make([]listItem, 0, len(events))
	for _, e := range events {
		item := listItem{
			ID:            e.ID.Hex(),
			Timestamp:     e.Timestamp,
			Category:      e.Category,
			EventType:     e.EventType,
			IP:            e.IP,
			Success:       e.Success,
			FailureReason: e.FailureReason,
			Details:       e.Details,
		}
		if e.ActorID != nil {
			item.ActorName = name(adminNames, *e.ActorID)
		}
		if e.AdminID != nil {
			item.TargetName = name(adminNames, *e.AdminID)
		}
		if e.BranchID != nil {
			item.BranchName = name(branchNames, *e.BranchID)
		}
		items = append(items, item)
	}
	return items
}
