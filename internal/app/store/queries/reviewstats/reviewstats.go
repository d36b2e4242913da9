// internal/app/store/queries/reviewstats/reviewstats.go

// Package reviewstats fetches the scoped review set that the
// aggregation and export paths consume. Statistics are computed in
// memory, so this is the one place a bounded full scan happens.
package reviewstats

import (
	"context"
	"time"

	"github.com/branchrate/branchrate/internal/app/policy/reviewpolicy"
	reviewstore "github.com/branchrate/branchrate/internal/app/store/reviews"
	"github.com/branchrate/branchrate/internal/app/system/limits"
	"github.com/branchrate/branchrate/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Result is the scoped review set plus a truncation marker. When
// Truncated is true the scan stopped at the cap and downstream numbers
// are computed from a partial data set; responses must say so rather
// than present them as exact.
type Result struct {
	Reviews   []models.Review
	Truncated bool
}

// Range bounds a fetch by created_at. Nil ends are open.
type Range struct {
	From *time.Time
	To   *time.Time
}

// FetchForScope pulls reviews visible to the scope, newest first,
// stopping at the scan cap.
//
// Branch scoping follows the same pushdown rule as the review listing:
// small allowed sets become an $in constraint, larger sets are filtered
// in memory. In the in-memory case the cap bounds rows SCANNED, not
// rows kept, so a heavily filtered scan can truncate with fewer than
// cap rows returned.
func FetchForScope(ctx context.Context, db *mongo.Database, scope reviewpolicy.ReviewScope, rng Range) (Result, error) {
	if !scope.CanView {
		return Result{Reviews: []models.Review{}}, nil
	}

	filter := bson.M{}
	if rng.From != nil || rng.To != nil {
		created := bson.M{}
		if rng.From != nil {
			created["$gte"] = rng.From.UTC()
		}
		if rng.To != nil {
			created["$lte"] = rng.To.UTC()
		}
		filter["created_at"] = created
	}

	clientFilter := false
	switch {
	case scope.AllBranches:
	case len(scope.BranchIDs) == 0:
		return Result{Reviews: []models.Review{}}, nil
	case len(scope.BranchIDs) <= reviewstore.BranchPushdownLimit:
		filter["branch_id"] = bson.M{"$in": scope.BranchIDs}
	default:
		clientFilter = true
	}

	find := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(limits.StatsScanCap + 1))

	cur, err := db.Collection("reviews").Find(ctx, filter, find)
	if err != nil {
		return Result{}, err
	}
	defer cur.Close(ctx)

	var rows []models.Review
	if err := cur.All(ctx, &rows); err != nil {
		return Result{}, err
	}

	res := Result{}
	if len(rows) > limits.StatsScanCap {
		rows = rows[:limits.StatsScanCap]
		res.Truncated = true
	}

	if !clientFilter {
		res.Reviews = rows
		if res.Reviews == nil {
			res.Reviews = []models.Review{}
		}
		return res, nil
	}

	allowed := make(map[primitive.ObjectID]struct{}, len(scope.BranchIDs))
	for _, id := range scope.BranchIDs {
		allowed[id] = struct{}{}
	}
	kept := make([]models.Review, 0, len(rows))
	for _, rv := range rows {
		if _, ok := allowed[rv.BranchID]; ok {
			kept = append(kept, rv)
		}
	}
	res.Reviews = kept
	return res, nil
}
