// internal/app/features/admins/handler.go

// Package admins serves admin-account administration (owner only):
// listing, creation, role and branch-scope edits, and deletion.
package admins

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	uierrors "github.com/branchrate/branchrate/internal/app/features/errors"
	adminstore "github.com/branchrate/branchrate/internal/app/store/admins"
	"github.com/branchrate/branchrate/internal/app/store/audit"
	"github.com/branchrate/branchrate/internal/app/system/auditlog"
	"github.com/branchrate/branchrate/internal/app/system/authz"
	"github.com/branchrate/branchrate/internal/app/system/inputval"
	"github.com/branchrate/branchrate/internal/app/system/limits"
	"github.com/branchrate/branchrate/internal/app/system/metrics"
	"github.com/branchrate/branchrate/internal/app/system/sanitize"
	"github.com/branchrate/branchrate/internal/app/system/timeouts"
	"github.com/branchrate/branchrate/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLen = 10

type Handler struct {
	Admins   *adminstore.Store
	AuditLog *auditlog.Logger
	Metrics  *metrics.Metrics
	ErrLog   *uierrors.ErrorLogger
	Log      *zap.Logger
}

type adminInput struct {
	Email            string   `json:"email"`
	Name             string   `json:"name"`
	Role             string   `json:"role"`
	AllowedBranchIDs []string `json:"allowed_branch_ids"`
	Password         string   `json:"password,omitempty"`
}

type adminRow struct {
	ID               string    `json:"id"`
	Email            string    `json:"email"`
	Name             string    `json:"name"`
	Role             string    `json:"role"`
	AllowedBranchIDs []string  `json:"allowed_branch_ids,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func toRow(a models.AdminAccount) adminRow {
	row := adminRow{
		ID:        a.ID.Hex(),
		Email:     a.Email,
		Name:      a.Name,
		Role:      a.Role,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
	for _, id := range a.AllowedBranchIDs {
		row.AllowedBranchIDs = append(row.AllowedBranchIDs, id.Hex())
	}
	return row
}

// List handles GET /api/admin/admins. The manage_admins gate sits on
// the router, so only owners reach any of these handlers.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	accounts, err := h.Admins.List(ctx)
	if err != nil {
		h.Metrics.StoreError("admins")
		h.ErrLog.StoreUnavailable(w, r, "list admins", err)
		return
	}

	rows := make([]adminRow, 0, len(accounts))
	for _, a := range accounts {
		rows = append(rows, toRow(a))
	}
	uierrors.WriteJSON(w, http.StatusOK, map[string]any{"admins": rows})
}

// Create handles POST /api/admin/admins.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	ac, ok := authz.FromRequest(r)
	if !ok {
		uierrors.WriteError(w, http.StatusForbidden, "forbidden")
		return
	}

	in, branchIDs, ferr := decodeInput(w, r, true)
	if ferr != nil {
		uierrors.WriteFieldError(w, ferr.field, ferr.reason)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		h.ErrLog.ServerError(w, r, "hash password", err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	created, err := h.Admins.Create(ctx, models.AdminAccount{
		Email:            in.Email,
		Name:             in.Name,
		Role:             in.Role,
		AllowedBranchIDs: branchIDs,
		PasswordHash:     string(hash),
	})
	if errors.Is(err, adminstore.ErrDuplicateEmail) {
		uierrors.WriteFieldError(w, "email", "an admin with this email already exists")
		return
	}
	if err != nil {
		h.Metrics.StoreError("admins")
		h.ErrLog.StoreUnavailable(w, r, "create admin", err)
		return
	}

	h.AuditLog.AdminEvent(ctx, r, audit.EventAdminCreated, ac.AdminID, &created.ID,
		map[string]string{"email": created.Email, "role": created.Role})
	uierrors.WriteJSON(w, http.StatusCreated, toRow(created))
}

// Update handles PUT /api/admin/admins/{adminID}.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	ac, ok := authz.FromRequest(r)
	if !ok {
		uierrors.WriteError(w, http.StatusForbidden, "forbidden")
		return
	}
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "adminID"))
	if err != nil {
		uierrors.WriteFieldError(w, "admin_id", "must be a valid id")
		return
	}

	in, branchIDs, ferr := decodeInput(w, r, false)
	if ferr != nil {
		uierrors.WriteFieldError(w, ferr.field, ferr.reason)
		return
	}

	update := models.AdminAccount{
		Email:            in.Email,
		Name:             in.Name,
		Role:             in.Role,
		AllowedBranchIDs: branchIDs,
	}
	if in.Password != "" {
		if len(in.Password) < minPasswordLen {
			uierrors.WriteFieldError(w, "password", "is too short")
			return
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
		if err != nil {
			h.ErrLog.ServerError(w, r, "hash password", err)
			return
		}
		update.PasswordHash = string(hash)
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	err = h.Admins.Update(ctx, id, update)
	switch {
	case errors.Is(err, adminstore.ErrNotFound):
		uierrors.WriteError(w, http.StatusNotFound, "admin not found")
		return
	case errors.Is(err, adminstore.ErrDuplicateEmail):
		uierrors.WriteFieldError(w, "email", "an admin with this email already exists")
		return
	case err != nil:
		h.Metrics.StoreError("admins")
		h.ErrLog.StoreUnavailable(w, r, "update admin", err)
		return
	}

	updated, err := h.Admins.GetByID(ctx, id)
	if err != nil {
		h.Metrics.StoreError("admins")
		h.ErrLog.StoreUnavailable(w, r, "reload admin", err)
		return
	}

	h.AuditLog.AdminEvent(ctx, r, audit.EventAdminUpdated, ac.AdminID, &id,
		map[string]string{"email": updated.Email, "role": updated.Role})
	uierrors.WriteJSON(w, http.StatusOK, toRow(updated))
}

// Delete handles DELETE /api/admin/admins/{adminID}. Deleting your
// own account is rejected.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	ac, ok := authz.FromRequest(r)
	if !ok {
		uierrors.WriteError(w, http.StatusForbidden, "forbidden")
		return
	}
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "adminID"))
	if err != nil {
		uierrors.WriteFieldError(w, "admin_id", "must be a valid id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	err = h.Admins.Delete(ctx, id, ac.AdminID)
	switch {
	case errors.Is(err, adminstore.ErrSelfDelete):
		uierrors.WriteError(w, http.StatusBadRequest, "cannot delete your own account")
		return
	case errors.Is(err, adminstore.ErrNotFound):
		uierrors.WriteError(w, http.StatusNotFound, "admin not found")
		return
	case err != nil:
		h.Metrics.StoreError("admins")
		h.ErrLog.StoreUnavailable(w, r, "delete admin", err)
		return
	}

	h.AuditLog.AdminEvent(ctx, r, audit.EventAdminDeleted, ac.AdminID, &id, nil)
	w.WriteHeader(http.StatusNoContent)
}

type paramError struct {
	field  string
	reason string
}

func decodeInput(w http.ResponseWriter, r *http.Request, requirePassword bool) (adminInput, []primitive.ObjectID, *paramError) {
	r.Body = http.MaxBytesReader(w, r.Body, limits.MaxAdminBodySize)

	var in adminInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		return in, nil, &paramError{"body", "malformed JSON body"}
	}
	in.Email = sanitize.Text(in.Email)
	in.Name = sanitize.Text(in.Name)

	if in.Email == "" {
		return in, nil, &paramError{"email", "is required"}
	}
	if !inputval.IsValidEmail(in.Email) {
		return in, nil, &paramError{"email", "must be a valid address"}
	}
	if in.Name == "" {
		return in, nil, &paramError{"name", "is required"}
	}
	if !models.ValidRole(in.Role) {
		return in, nil, &paramError{"role", "must be owner, manager, or viewer"}
	}
	if requirePassword {
		if in.Password == "" {
			return in, nil, &paramError{"password", "is required"}
		}
		if len(in.Password) < minPasswordLen {
			return in, nil, &paramError{"password", "is too short"}
		}
	}

	var branchIDs []primitive.ObjectID
	if in.Role != models.RoleOwner {
		branchIDs = make([]primitive.ObjectID, 0, len(in.AllowedBranchIDs))
		for _, raw := range in.AllowedBranchIDs {
			id, err := primitive.ObjectIDFromHex(raw)
			if err != nil {
				return in, nil, &paramError{"allowed_branch_ids", "contains an invalid id"}
			}
			branchIDs = append(branchIDs, id)
		}
	}
	return in, branchIDs, nil
}
