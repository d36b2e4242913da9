// internal/app/system/authz/authz.go

// Package authz holds the advisory authorization model for the admin API.
//
// An AuthContext is resolved once per request from the signed-in admin's
// authorization record and threaded explicitly through policy checks and
// store queries. It is never kept in package-level state, so role changes
// take effect on the next request and checks stay testable without a
// live session.
//
// These checks are advisory: they decide what the UI may attempt. The
// stores re-apply the same branch predicate in every Mongo filter, which
// is the authoritative enforcement point.
package authz

import (
	"context"
	"net/http"
	"strings"

	"github.com/branchrate/branchrate/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Action names an operation gated by the permission matrix.
type Action string

const (
	ActionManageAdmins   Action = "manage_admins"
	ActionManageBranches Action = "manage_branches"
	ActionExportReports  Action = "export_reports"
	ActionViewReviews    Action = "view_reviews"
)

// AuthContext is the resolved {role, allowedBranchIds} pair for the
// current request.
//
// AllowedBranchIDs is nil for owners (no restriction) and non-nil,
// possibly empty, for managers and viewers. An empty set means the admin
// can see no branches at all.
type AuthContext struct {
	AdminID primitive.ObjectID
	Name    string
	Email   string
	Role    string // owner | manager | viewer (lowercased)

	AllowedBranchIDs []primitive.ObjectID
}

// Unrestricted reports whether the context carries no branch restriction.
// Only owners are unrestricted.
func (c *AuthContext) Unrestricted() bool {
	return c != nil && c.Role == models.RoleOwner && c.AllowedBranchIDs == nil
}

// CanAccessBranch reports whether the context may see data for branchID.
// Owners may access every branch id, including ids that no longer exist.
// A nil context (unauthenticated, or authenticated without an
// authorization record) can access nothing.
func (c *AuthContext) CanAccessBranch(branchID primitive.ObjectID) bool {
	if c == nil {
		return false
	}
	if c.Role == models.RoleOwner {
		return true
	}
	for _, id := range c.AllowedBranchIDs {
		if id == branchID {
			return true
		}
	}
	return false
}

// CanPerform applies the role/action permission matrix:
//
//	action          owner  manager  viewer
//	manage_admins   allow  deny     deny
//	manage_branches allow  deny     deny
//	export_reports  allow  allow    deny
//	view_reviews    allow  allow    allow
func (c *AuthContext) CanPerform(action Action) bool {
	if c == nil {
		return false
	}
	switch action {
	case ActionManageAdmins, ActionManageBranches:
		return c.Role == models.RoleOwner
	case ActionExportReports:
		return c.Role == models.RoleOwner || c.Role == models.RoleManager
	case ActionViewReviews:
		return c.Role == models.RoleOwner || c.Role == models.RoleManager || c.Role == models.RoleViewer
	}
	return false
}

// FromAccount builds an AuthContext from a stored authorization record,
// normalizing the invariant: owners carry no branch set, managers and
// viewers always carry a non-nil one.
func FromAccount(a *models.AdminAccount) *AuthContext {
	ctx := &AuthContext{
		AdminID: a.ID,
		Name:    a.Name,
		Email:   a.Email,
		Role:    strings.ToLower(a.Role),
	}
	if ctx.Role != models.RoleOwner {
		ctx.AllowedBranchIDs = a.AllowedBranchIDs
		if ctx.AllowedBranchIDs == nil {
			// "no branches" is the safe default, not "all branches".
			ctx.AllowedBranchIDs = []primitive.ObjectID{}
		}
	}
	return ctx
}

/*─────────────────────────────────────────────────────────────────────────────*
| Request plumbing                                                             |
*─────────────────────────────────────────────────────────────────────────────*/

type ctxKey string

const authCtxKey ctxKey = "authContext"

// WithRequest returns a shallow copy of r carrying the AuthContext.
func WithRequest(r *http.Request, c *AuthContext) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), authCtxKey, c))
}

// FromRequest returns the AuthContext resolved for this request and a
// found flag. ok=false means the caller is either not signed in or has
// no authorization record; handlers must treat both as "access denied",
// never as partial access.
func FromRequest(r *http.Request) (*AuthContext, bool) {
	c, ok := r.Context().Value(authCtxKey).(*AuthContext)
	return c, ok && c != nil
}
