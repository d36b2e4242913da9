// internal/testutil/http.go
package testutil

import (
	"io"
	"net/http"
	"net/http/httptest"

	"github.com/branchrate/branchrate/internal/app/system/auth"
	"github.com/branchrate/branchrate/internal/app/system/authz"
	"github.com/branchrate/branchrate/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AuthedRequest builds a request carrying a signed-in identity and a
// resolved authorization context, bypassing the cookie store.
func AuthedRequest(method, target string, body io.Reader, ac *authz.AuthContext) *http.Request {
	r := httptest.NewRequest(method, target, body)
	r = auth.WithTestUser(r, &auth.SessionUser{
		ID:    ac.AdminID.Hex(),
		Name:  ac.Name,
		Email: ac.Email,
	})
	return authz.WithRequest(r, ac)
}

// OwnerContext returns an owner authorization context.
func OwnerContext() *authz.AuthContext {
	return &authz.AuthContext{
		AdminID: primitive.NewObjectID(),
		Name:    "Test Owner",
		Email:   "owner@example.com",
		Role:    models.RoleOwner,
	}
}

// ScopedContext returns a manager or viewer context restricted to the
// given branches.
func ScopedContext(role string, branchIDs ...primitive.ObjectID) *authz.AuthContext {
	if branchIDs == nil {
		branchIDs = []primitive.ObjectID{}
	}
	return &authz.AuthContext{
		AdminID:          primitive.NewObjectID(),
		Name:             "Test Admin",
		Email:            "admin@example.com",
		Role:             role,
		AllowedBranchIDs: branchIDs,
	}
}
