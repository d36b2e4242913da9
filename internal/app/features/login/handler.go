// internal/app/features/login/handler.go

// Package login authenticates admins with email and password and
// reports the signed-in identity.
package login

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	uierrors "github.com/branchrate/branchrate/internal/app/features/errors"
	adminstore "github.com/branchrate/branchrate/internal/app/store/admins"
	"github.com/branchrate/branchrate/internal/app/system/auditlog"
	"github.com/branchrate/branchrate/internal/app/system/auth"
	"github.com/branchrate/branchrate/internal/app/system/limits"
	"github.com/branchrate/branchrate/internal/app/system/timeouts"
	"github.com/branchrate/branchrate/internal/domain/models"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type Handler struct {
	Admins     *adminstore.Store
	SessionMgr *auth.SessionManager
	AuditLog   *auditlog.Logger
	ErrLog     *uierrors.ErrorLogger
	Log        *zap.Logger
}

type loginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type identityRow struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	Email            string   `json:"email"`
	Role             string   `json:"role"`
	AllowedBranchIDs []string `json:"allowed_branch_ids"`
}

/*─────────────────────────────────────────────────────────────────────────────*
| POST /api/auth/login                                                         |
*─────────────────────────────────────────────────────────────────────────────*/

// SignIn verifies email and password and establishes a session.
// Unknown accounts and wrong passwords both answer 401 with the same
// message so the endpoint does not confirm which emails exist.
func (h *Handler) SignIn(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, limits.MaxAdminBodySize)

	var in loginInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		uierrors.WriteError(w, http.StatusBadRequest, "malformed JSON body")
		return
	}
	in.Email = strings.TrimSpace(in.Email)
	if in.Email == "" {
		uierrors.WriteFieldError(w, "email", "is required")
		return
	}
	if in.Password == "" {
		uierrors.WriteFieldError(w, "password", "is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	a, err := h.Admins.GetByEmail(ctx, in.Email)
	if errors.Is(err, adminstore.ErrNotFound) {
		h.AuditLog.LoginFailedUserNotFound(ctx, r, in.Email)
		uierrors.WriteError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}
	if err != nil {
		h.ErrLog.StoreUnavailable(w, r, "look up admin for login", err)
		return
	}

	// Accounts without a hash sign in with Google only.
	if a.PasswordHash == "" ||
		bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(in.Password)) != nil {
		h.AuditLog.LoginFailedWrongPassword(ctx, r, a.ID, a.Email)
		uierrors.WriteError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}

	if err := h.SessionMgr.SignIn(w, r, auth.SessionUser{
		ID:    a.ID.Hex(),
		Name:  a.Name,
		Email: a.Email,
	}); err != nil {
		h.ErrLog.ServerError(w, r, "save session", err)
		return
	}

	h.AuditLog.LoginSuccess(ctx, r, a.ID, a.Email)
	h.Log.Info("admin signed in",
		zap.String("admin_id", a.ID.Hex()),
		zap.String("role", a.Role))

	uierrors.WriteJSON(w, http.StatusOK, identityFor(a))
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET /api/auth/me                                                             |
*─────────────────────────────────────────────────────────────────────────────*/

// Me reports the identity and authorization scope of the current
// session. Mounted behind LoadSessionUser.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	u, ok := auth.CurrentUser(r)
	if !ok {
		uierrors.WriteError(w, http.StatusUnauthorized, "not signed in")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	a, err := h.Admins.GetByEmail(ctx, u.Email)
	if errors.Is(err, adminstore.ErrNotFound) {
		uierrors.WriteError(w, http.StatusUnauthorized, "account no longer exists")
		return
	}
	if err != nil {
		h.ErrLog.StoreUnavailable(w, r, "look up admin for session", err)
		return
	}

	uierrors.WriteJSON(w, http.StatusOK, identityFor(a))
}

func identityFor(a models.AdminAccount) identityRow {
	ids := make([]string, 0, len(a.AllowedBranchIDs))
	for _, id := range a.AllowedBranchIDs {
		ids = append(ids, id.Hex())
	}
	return identityRow{
		ID:               a.ID.Hex(),
		Name:             a.Name,
		Email:            a.Email,
		Role:             a.Role,
		AllowedBranchIDs: ids,
	}
}
