// Package reviewpolicy provides authorization policies for review data
// access (listing, statistics, exports).
//
// Authorization rules:
//   - Owners can view reviews and statistics for all branches
//   - Managers and viewers can view reviews for their allowed branches
//   - A scoped account with an empty branch set can view nothing
//   - Exports additionally require the export_reports action, which
//     viewers do not have
package reviewpolicy

import (
	"github.com/branchrate/branchrate/internal/app/system/authz"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ReviewScope represents the slice of review data a user may read.
type ReviewScope struct {
	// CanView indicates whether the user can read review data at all.
	CanView bool
	// AllBranches indicates whether the user sees every branch.
	// If false, BranchIDs holds the permitted set (possibly empty).
	AllBranches bool
	// BranchIDs is the permitted branch set for scoped accounts.
	BranchIDs []primitive.ObjectID
}

// Allows reports whether a given branch falls inside the scope.
func (s ReviewScope) Allows(branchID primitive.ObjectID) bool {
	if !s.CanView {
		return false
	}
	if s.AllBranches {
		return true
	}
	for _, id := range s.BranchIDs {
		if id == branchID {
			return true
		}
	}
	return false
}

// CanViewReviews determines what scope of review data the user can read.
//
// Authorization:
//   - Owner: all branches
//   - Manager/viewer: their allowed branch set; an empty set still
//     returns CanView true with zero visible branches, so callers
//     produce an empty result instead of an authorization error
//   - Missing auth context: no access
func CanViewReviews(ac *authz.AuthContext) ReviewScope {
	if ac == nil || !ac.CanPerform(authz.ActionViewReviews) {
		return ReviewScope{CanView: false}
	}
	if ac.Unrestricted() {
		return ReviewScope{CanView: true, AllBranches: true}
	}
	return ReviewScope{CanView: true, BranchIDs: ac.AllowedBranchIDs}
}

// CanExportReviews determines the scope for CSV exports. Same branch
// scoping as viewing, gated on the export_reports action.
func CanExportReviews(ac *authz.AuthContext) ReviewScope {
	if ac == nil || !ac.CanPerform(authz.ActionExportReports) {
		return ReviewScope{CanView: false}
	}
	if ac.Unrestricted() {
		return ReviewScope{CanView: true, AllBranches: true}
	}
	return ReviewScope{CanView: true, BranchIDs: ac.AllowedBranchIDs}
}
