package authz_test

import (
	"testing"

	"github.com/branchrate/branchrate/internal/app/system/authz"
	"github.com/branchrate/branchrate/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func ownerCtx() *authz.AuthContext {
	return &authz.AuthContext{AdminID: primitive.NewObjectID(), Role: models.RoleOwner}
}

func scopedCtx(role string, branchIDs ...primitive.ObjectID) *authz.AuthContext {
	if branchIDs == nil {
		branchIDs = []primitive.ObjectID{}
	}
	return &authz.AuthContext{
		AdminID:          primitive.NewObjectID(),
		Role:             role,
		AllowedBranchIDs: branchIDs,
	}
}

func TestCanAccessBranch_OwnerSeesEverything(t *testing.T) {
	ctx := ownerCtx()
	// Including ids that were never created.
	for i := 0; i < 5; i++ {
		if !ctx.CanAccessBranch(primitive.NewObjectID()) {
			t.Fatal("owner should access any branch id")
		}
	}
}

func TestCanAccessBranch_ScopedRoles(t *testing.T) {
	allowed := primitive.NewObjectID()
	other := primitive.NewObjectID()

	for _, role := range []string{models.RoleManager, models.RoleViewer} {
		t.Run(role, func(t *testing.T) {
			ctx := scopedCtx(role, allowed)
			if !ctx.CanAccessBranch(allowed) {
				t.Error("expected access to allowed branch")
			}
			if ctx.CanAccessBranch(other) {
				t.Error("expected no access to other branch")
			}
		})
	}
}

func TestCanAccessBranch_EmptySetDeniesAll(t *testing.T) {
	ctx := scopedCtx(models.RoleManager)
	if ctx.CanAccessBranch(primitive.NewObjectID()) {
		t.Error("empty allowed set must deny every branch")
	}
}

func TestCanAccessBranch_NilContext(t *testing.T) {
	var ctx *authz.AuthContext
	if ctx.CanAccessBranch(primitive.NewObjectID()) {
		t.Error("nil context must deny access")
	}
}

func TestCanPerform_Matrix(t *testing.T) {
	branch := primitive.NewObjectID()
	owner := ownerCtx()
	manager := scopedCtx(models.RoleManager, branch)
	viewer := scopedCtx(models.RoleViewer, branch)

	tests := []struct {
		name   string
		ctx    *authz.AuthContext
		action authz.Action
		want   bool
	}{
		{"owner manage_admins", owner, authz.ActionManageAdmins, true},
		{"manager manage_admins", manager, authz.ActionManageAdmins, false},
		{"viewer manage_admins", viewer, authz.ActionManageAdmins, false},
		{"owner manage_branches", owner, authz.ActionManageBranches, true},
		{"manager manage_branches", manager, authz.ActionManageBranches, false},
		{"viewer manage_branches", viewer, authz.ActionManageBranches, false},
		{"owner export_reports", owner, authz.ActionExportReports, true},
		{"manager export_reports", manager, authz.ActionExportReports, true},
		{"viewer export_reports", viewer, authz.ActionExportReports, false},
		{"owner view_reviews", owner, authz.ActionViewReviews, true},
		{"manager view_reviews", manager, authz.ActionViewReviews, true},
		{"viewer view_reviews", viewer, authz.ActionViewReviews, true},
		{"no context export_reports", nil, authz.ActionExportReports, false},
		{"no context view_reviews", nil, authz.ActionViewReviews, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.ctx.CanPerform(tt.action); got != tt.want {
				t.Errorf("CanPerform(%s) = %v, want %v", tt.action, got, tt.want)
			}
		})
	}
}

func TestFromAccount_OwnerIgnoresBranchSet(t *testing.T) {
	// An owner record must never carry a restricting set, even if the
	// stored document has one.
	acct := &models.AdminAccount{
		ID:               primitive.NewObjectID(),
		Role:             "Owner",
		AllowedBranchIDs: []primitive.ObjectID{primitive.NewObjectID()},
	}
	ctx := authz.FromAccount(acct)
	if !ctx.Unrestricted() {
		t.Error("owner context should be unrestricted")
	}
	if ctx.AllowedBranchIDs != nil {
		t.Error("owner context should carry no branch set")
	}
}

func TestFromAccount_ScopedDefaultsToEmptySet(t *testing.T) {
	acct := &models.AdminAccount{
		ID:   primitive.NewObjectID(),
		Role: models.RoleViewer,
	}
	ctx := authz.FromAccount(acct)
	if ctx.AllowedBranchIDs == nil {
		t.Fatal("scoped context must carry a non-nil branch set")
	}
	if len(ctx.AllowedBranchIDs) != 0 {
		t.Errorf("expected empty set, got %d ids", len(ctx.AllowedBranchIDs))
	}
	if ctx.Unrestricted() {
		t.Error("viewer must not be unrestricted")
	}
}
