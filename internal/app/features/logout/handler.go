// internal/app/features/logout/handler.go
package logout

import (
	"net/http"

	"github.com/branchrate/branchrate/internal/app/system/auditlog"
	"github.com/branchrate/branchrate/internal/app/system/auth"
	"go.uber.org/zap"
)

type Handler struct {
	SessionMgr *auth.SessionManager
	AuditLog   *auditlog.Logger
	Log        *zap.Logger
}

// SignOut handles POST /api/auth/logout. Signing out an already
// anonymous request is a no-op 204.
func (h *Handler) SignOut(w http.ResponseWriter, r *http.Request) {
	if u, ok := auth.CurrentUser(r); ok {
		h.AuditLog.Logout(r.Context(), r, u.ID)
	}

	if err := h.SessionMgr.SignOut(w, r); err != nil {
		h.Log.Error("clear session", zap.Error(err))
	}
	w.WriteHeader(http.StatusNoContent)
}
