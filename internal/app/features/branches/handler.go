// internal/app/features/branches/handler.go

// Package branches serves branch administration: listing for all admin
// roles, create/update/delete for owners.
package branches

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	uierrors "github.com/branchrate/branchrate/internal/app/features/errors"
	"github.com/branchrate/branchrate/internal/app/store/audit"
	branchstore "github.com/branchrate/branchrate/internal/app/store/branches"
	"github.com/branchrate/branchrate/internal/app/system/auditlog"
	"github.com/branchrate/branchrate/internal/app/system/authz"
	"github.com/branchrate/branchrate/internal/app/system/limits"
	"github.com/branchrate/branchrate/internal/app/system/metrics"
	"github.com/branchrate/branchrate/internal/app/system/sanitize"
	"github.com/branchrate/branchrate/internal/app/system/timeouts"
	"github.com/branchrate/branchrate/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const maxNameLen = 120

type Handler struct {
	Branches *branchstore.Store
	AuditLog *auditlog.Logger
	Metrics  *metrics.Metrics
	ErrLog   *uierrors.ErrorLogger
	Log      *zap.Logger
}

type branchInput struct {
	Name     string `json:"name"`
	Location string `json:"location"`
	Address  string `json:"address"`
	IsActive bool   `json:"is_active"`
}

type branchRow struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Location  string    `json:"location"`
	Address   string    `json:"address,omitempty"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toRow(b models.Branch) branchRow {
	return branchRow{
		ID:        b.ID.Hex(),
		Name:      b.Name,
		Location:  b.Location,
		Address:   b.Address,
		IsActive:  b.IsActive,
		CreatedAt: b.CreatedAt,
		UpdatedAt: b.UpdatedAt,
	}
}

// List handles GET /api/admin/branches. Owners see every branch,
// scoped accounts only their allowed set.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ac, ok := authz.FromRequest(r)
	if !ok {
		uierrors.WriteError(w, http.StatusForbidden, "forbidden")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	var (
		list []models.Branch
		err  error
	)
	if ac.Unrestricted() {
		list, err = h.Branches.List(ctx)
	} else {
		list, err = h.Branches.GetByIDs(ctx, ac.AllowedBranchIDs)
	}
	if err != nil {
		h.Metrics.StoreError("branches")
		h.ErrLog.StoreUnavailable(w, r, "list branches", err)
		return
	}

	rows := make([]branchRow, 0, len(list))
	for _, b := range list {
		rows = append(rows, toRow(b))
	}
	uierrors.WriteJSON(w, http.StatusOK, map[string]any{"branches": rows})
}

// Create handles POST /api/admin/branches. The manage_branches gate
// sits on the router, so only owners reach the write handlers.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	ac, ok := authz.FromRequest(r)
	if !ok {
		uierrors.WriteError(w, http.StatusForbidden, "forbidden")
		return
	}

	in, ferr := decodeInput(w, r)
	if ferr != nil {
		uierrors.WriteFieldError(w, ferr.field, ferr.reason)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	created, err := h.Branches.Create(ctx, models.Branch{
		Name:     in.Name,
		Location: in.Location,
		Address:  in.Address,
		IsActive: in.IsActive,
	})
	if errors.Is(err, branchstore.ErrDuplicateBranch) {
		uierrors.WriteFieldError(w, "name", "a branch with this name already exists")
		return
	}
	if err != nil {
		h.Metrics.StoreError("branches")
		h.ErrLog.StoreUnavailable(w, r, "create branch", err)
		return
	}

	h.AuditLog.BranchEvent(ctx, r, audit.EventBranchCreated, ac.AdminID, created.ID,
		map[string]string{"name": created.Name})
	uierrors.WriteJSON(w, http.StatusCreated, toRow(created))
}

// Update handles PUT /api/admin/branches/{branchID}.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	ac, ok := authz.FromRequest(r)
	if !ok {
		uierrors.WriteError(w, http.StatusForbidden, "forbidden")
		return
	}
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "branchID"))
	if err != nil {
		uierrors.WriteFieldError(w, "branch_id", "must be a valid id")
		return
	}

	in, ferr := decodeInput(w, r)
	if ferr != nil {
		uierrors.WriteFieldError(w, ferr.field, ferr.reason)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	err = h.Branches.Update(ctx, id, models.Branch{
		Name:     in.Name,
		Location: in.Location,
		Address:  in.Address,
		IsActive: in.IsActive,
	})
	switch {
	case errors.Is(err, branchstore.ErrNotFound):
		uierrors.WriteError(w, http.StatusNotFound, "branch not found")
		return
	case errors.Is(err, branchstore.ErrDuplicateBranch):
		uierrors.WriteFieldError(w, "name", "a branch with this name already exists")
		return
	case err != nil:
		h.Metrics.StoreError("branches")
		h.ErrLog.StoreUnavailable(w, r, "update branch", err)
		return
	}

	updated, err := h.Branches.GetByID(ctx, id)
	if err != nil {
		h.Metrics.StoreError("branches")
		h.ErrLog.StoreUnavailable(w, r, "reload branch", err)
		return
	}

	h.AuditLog.BranchEvent(ctx, r, audit.EventBranchUpdated, ac.AdminID, id,
		map[string]string{"name": updated.Name})
	uierrors.WriteJSON(w, http.StatusOK, toRow(updated))
}

// Delete handles DELETE /api/admin/branches/{branchID}. Reviews
// referencing the branch are intentionally left in place.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	ac, ok := authz.FromRequest(r)
	if !ok {
		uierrors.WriteError(w, http.StatusForbidden, "forbidden")
		return
	}
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "branchID"))
	if err != nil {
		uierrors.WriteFieldError(w, "branch_id", "must be a valid id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	err = h.Branches.Delete(ctx, id)
	if errors.Is(err, branchstore.ErrNotFound) {
		uierrors.WriteError(w, http.StatusNotFound, "branch not found")
		return
	}
	if err != nil {
		h.Metrics.StoreError("branches")
		h.ErrLog.StoreUnavailable(w, r, "delete branch", err)
		return
	}

	h.AuditLog.BranchEvent(ctx, r, audit.EventBranchDeleted, ac.AdminID, id, nil)
	w.WriteHeader(http.StatusNoContent)
}

type paramError struct {
	field  string
	reason string
}

func decodeInput(w http.ResponseWriter, r *http.Request) (branchInput, *paramError) {
	r.Body = http.MaxBytesReader(w, r.Body, limits.MaxAdminBodySize)

	var in branchInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		return in, &paramError{"body", "malformed JSON body"}
	}
	in.Name = sanitize.Text(in.Name)
	in.Location = sanitize.Text(in.Location)
	in.Address = sanitize.Text(in.Address)

	if in.Name == "" {
		return in, &paramError{"name", "is required"}
	}
	if len(in.Name) > maxNameLen {
		return in, &paramError{"name", "is too long"}
	}
	if in.Location == "" {
		return in, &paramError{"location", "is required"}
	}
	return in, nil
}
