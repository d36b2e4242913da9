// internal/domain/models/adminaccount.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Admin roles.
const (
	RoleOwner   = "owner"
	RoleManager = "manager"
	RoleViewer  = "viewer"
)

// AdminAccount is an authorization record for a dashboard user.
//
// AllowedBranchIDs is nil for owners (unrestricted) and never nil for
// managers and viewers; an empty slice means "no branches", which is the
// safe default, not "all branches". The admins store enforces this
// invariant on every write.
type AdminAccount struct {
	ID      primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Email   string             `bson:"email" json:"email"`
	EmailCI string             `bson:"email_ci" json:"-"` // lowercase, diacritics-stripped
	Name    string             `bson:"name" json:"name"`
	Role    string             `bson:"role" json:"role"` // owner | manager | viewer

	AllowedBranchIDs []primitive.ObjectID `bson:"allowed_branch_ids,omitempty" json:"allowed_branch_ids,omitempty"`

	// PasswordHash is empty for accounts that sign in with Google only.
	PasswordHash string `bson:"password_hash,omitempty" json:"-"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// ValidRole reports whether role is one of the known admin roles.
func ValidRole(role string) bool {
	switch role {
	case RoleOwner, RoleManager, RoleViewer:
		return true
	}
	return false
}
