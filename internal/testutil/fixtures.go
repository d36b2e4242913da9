// internal/testutil/fixtures.go
package testutil

import (
	"testing"
	"time"

	adminstore "github.com/branchrate/branchrate/internal/app/store/admins"
	branchstore "github.com/branchrate/branchrate/internal/app/store/branches"
	reviewstore "github.com/branchrate/branchrate/internal/app/store/reviews"
	"github.com/branchrate/branchrate/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// CreateBranch inserts an active branch and returns it.
func CreateBranch(t *testing.T, db *mongo.Database, name string) models.Branch {
	t.Helper()
	ctx, cancel := TestContext()
	defer cancel()

	b, err := branchstore.New(db).Create(ctx, models.Branch{
		Name:     name,
		Location: "Test Location",
		IsActive: true,
	})
	if err != nil {
		t.Fatalf("fixture branch %q: %v", name, err)
	}
	return b
}

// CreateReview inserts a review for the branch at the given time.
func CreateReview(t *testing.T, db *mongo.Database, branchID primitive.ObjectID, rating int, at time.Time) models.Review {
	t.Helper()
	ctx, cancel := TestContext()
	defer cancel()

	rv, err := reviewstore.New(db).Create(ctx, models.Review{
		BranchID:  branchID,
		Rating:    rating,
		CreatedAt: at,
	})
	if err != nil {
		t.Fatalf("fixture review: %v", err)
	}
	return rv
}

// CreateAdmin inserts an admin account. A nil branch set with a scoped
// role stores an empty set per the store's normalization.
func CreateAdmin(t *testing.T, db *mongo.Database, email, role string, branchIDs []primitive.ObjectID) models.AdminAccount {
	t.Helper()
	ctx, cancel := TestContext()
	defer cancel()

	a, err := adminstore.New(db).Create(ctx, models.AdminAccount{
		Email:            email,
		Name:             "Test Admin",
		Role:             role,
		AllowedBranchIDs: branchIDs,
	})
	if err != nil {
		t.Fatalf("fixture admin %q: %v", email, err)
	}
	return a
}
