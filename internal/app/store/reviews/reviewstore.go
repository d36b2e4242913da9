// internal/app/store/reviews/reviewstore.go

// Package reviewstore persists customer reviews and serves the scoped,
// cursor-paginated listing used by the admin dashboard.
package reviewstore

import (
	"context"
	"time"

	"github.com/branchrate/branchrate/internal/app/policy/reviewpolicy"
	"github.com/branchrate/branchrate/internal/app/system/limits"
	"github.com/branchrate/branchrate/internal/domain/models"
	mongodb "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// BranchPushdownLimit is the largest allowed-branch set that is pushed
// down as an $in constraint. Larger sets fall back to client-side
// filtering, since very large $in arrays degrade index selection.
const BranchPushdownLimit = 10

// fetchBatchSize is how many candidate rows each round of the
// client-side filter path pulls before filtering.
const fetchBatchSize = 200

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("reviews")}
}

// Create inserts a review. Reviews are immutable after insert; there is
// no update or delete path.
func (s *Store) Create(ctx context.Context, rv models.Review) (models.Review, error) {
	rv.ID = primitive.NewObjectID()
	if rv.CreatedAt.IsZero() {
		rv.CreatedAt = time.Now().UTC()
	}
	if _, err := s.c.InsertOne(ctx, rv); err != nil {
		return models.Review{}, err
	}
	return rv, nil
}

// Filter narrows a review listing. Zero values mean "no constraint".
type Filter struct {
	BranchID  *primitive.ObjectID
	From      *time.Time
	To        *time.Time
	MinRating int
	MaxRating int
}

// Page describes one requested page. After is an opaque cursor from a
// previous ListResult; empty means the first page.
type Page struct {
	Size  int
	After string
}

// ListResult is one page of reviews, newest first.
type ListResult struct {
	Reviews    []models.Review
	NextCursor string
	HasMore    bool
}

// List returns one page of reviews visible to the given scope, sorted
// by created_at descending with _id as the tiebreak.
//
// Scoping strategy:
//   - unrestricted scope: no branch constraint
//   - scoped with <= BranchPushdownLimit branches: $in pushdown
//   - larger sets: unconstrained fetch with client-side filtering,
//     over-fetching in batches until the page fills or data runs out
//
// A branch filter outside the caller's scope yields an empty page, not
// an error, matching how an empty allowed set behaves.
func (s *Store) List(ctx context.Context, scope reviewpolicy.ReviewScope, f Filter, p Page) (ListResult, error) {
	if !scope.CanView {
		return ListResult{Reviews: []models.Review{}}, nil
	}
	if p.Size <= 0 {
		p.Size = limits.DefaultPageSize
	}
	if p.Size > limits.MaxPageSize {
		p.Size = limits.MaxPageSize
	}

	base := baseFilter(f)

	// Explicit branch filter: intersect with scope first.
	if f.BranchID != nil {
		if !scope.Allows(*f.BranchID) {
			return ListResult{Reviews: []models.Review{}}, nil
		}
		base["branch_id"] = *f.BranchID
		return s.listPushdown(ctx, base, p)
	}

	if scope.AllBranches {
		return s.listPushdown(ctx, base, p)
	}
	if len(scope.BranchIDs) == 0 {
		return ListResult{Reviews: []models.Review{}}, nil
	}
	if len(scope.BranchIDs) <= BranchPushdownLimit {
		base["branch_id"] = bson.M{"$in": scope.BranchIDs}
		return s.listPushdown(ctx, base, p)
	}
	return s.listClientFiltered(ctx, base, scope, p)
}

// listPushdown runs the query with the branch constraint (if any)
// already in the filter. Fetches one extra row to learn HasMore.
func (s *Store) listPushdown(ctx context.Context, filter bson.M, p Page) (ListResult, error) {
	applyCursorWindow(filter, p.After)

	find := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(p.Size + 1))

	cur, err := s.c.Find(ctx, filter, find)
	if err != nil {
		return ListResult{}, err
	}
	defer cur.Close(ctx)

	var rows []models.Review
	if err := cur.All(ctx, &rows); err != nil {
		return ListResult{}, err
	}

	res := ListResult{Reviews: rows}
	if len(rows) > p.Size {
		res.Reviews = rows[:p.Size]
		res.HasMore = true
	}
	if n := len(res.Reviews); n > 0 && res.HasMore {
		last := res.Reviews[n-1]
		res.NextCursor = encodeReviewCursor(last)
	}
	if res.Reviews == nil {
		res.Reviews = []models.Review{}
	}
	return res, nil
}

// listClientFiltered handles allowed sets too large to push down. Rows
// come back unconstrained by branch and are filtered here, over-fetching
// batch by batch until the page plus a look-ahead row is collected.
//
// The cursor always points at the last row RETURNED, so a follow-up
// request rescans any skipped rows after it; they are filtered out
// again, which keeps pages stable even if the allowed set changes
// between requests.
func (s *Store) listClientFiltered(ctx context.Context, base bson.M, scope reviewpolicy.ReviewScope, p Page) (ListResult, error) {
	allowed := make(map[primitive.ObjectID]struct{}, len(scope.BranchIDs))
	for _, id := range scope.BranchIDs {
		allowed[id] = struct{}{}
	}

	window := cursorWindow(p.After)
	collected := make([]models.Review, 0, p.Size+1)

	for len(collected) <= p.Size {
		filter := bson.M{}
		for k, v := range base {
			filter[k] = v
		}
		if window != nil {
			filter["$or"] = window
		}

		find := options.Find().
			SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
			SetLimit(int64(fetchBatchSize))

		cur, err := s.c.Find(ctx, filter, find)
		if err != nil {
			return ListResult{}, err
		}
		var batch []models.Review
		err = cur.All(ctx, &batch)
		cur.Close(ctx)
		if err != nil {
			return ListResult{}, err
		}
		if len(batch) == 0 {
			break
		}

		for _, rv := range batch {
			if _, ok := allowed[rv.BranchID]; ok {
				collected = append(collected, rv)
				if len(collected) > p.Size {
					break
				}
			}
		}

		// Advance past the last raw row, matched or not.
		last := batch[len(batch)-1]
		window = keysetBefore(last.CreatedAt, last.ID)

		if len(batch) < fetchBatchSize {
			break
		}
	}

	res := ListResult{Reviews: collected}
	if len(collected) > p.Size {
		res.Reviews = collected[:p.Size]
		res.HasMore = true
	}
	if n := len(res.Reviews); n > 0 && res.HasMore {
		res.NextCursor = encodeReviewCursor(res.Reviews[n-1])
	}
	return res, nil
}

// CountForScope returns how many reviews the scope can see, using the
// same pushdown rule as List. For over-limit sets it sums per-branch
// counts instead of scanning.
func (s *Store) CountForScope(ctx context.Context, scope reviewpolicy.ReviewScope) (int64, error) {
	if !scope.CanView {
		return 0, nil
	}
	if scope.AllBranches {
		return s.c.CountDocuments(ctx, bson.M{})
	}
	if len(scope.BranchIDs) == 0 {
		return 0, nil
	}
	return s.c.CountDocuments(ctx, bson.M{"branch_id": bson.M{"$in": scope.BranchIDs}})
}

func baseFilter(f Filter) bson.M {
	base := bson.M{}
	if f.From != nil || f.To != nil {
		rng := bson.M{}
		if f.From != nil {
			rng["$gte"] = f.From.UTC()
		}
		if f.To != nil {
			rng["$lte"] = f.To.UTC()
		}
		base["created_at"] = rng
	}
	if f.MinRating > 0 || f.MaxRating > 0 {
		rng := bson.M{}
		if f.MinRating > 0 {
			rng["$gte"] = f.MinRating
		}
		if f.MaxRating > 0 {
			rng["$lte"] = f.MaxRating
		}
		base["rating"] = rng
	}
	return base
}

func encodeReviewCursor(rv models.Review) string {
	return mongodb.EncodeCursor(rv.CreatedAt.UTC().Format(time.RFC3339Nano), rv.ID)
}

// cursorWindow decodes an opaque cursor into a keyset window for
// "strictly older than the cursor row". A malformed cursor is treated
// as the first page.
func cursorWindow(after string) []bson.M {
	if after == "" {
		return nil
	}
	c, ok := mongodb.DecodeCursor(after)
	if !ok {
		return nil
	}
	ts, err := time.Parse(time.RFC3339Nano, c.CI)
	if err != nil {
		return nil
	}
	return keysetBefore(ts, c.ID)
}

func keysetBefore(ts time.Time, id primitive.ObjectID) []bson.M {
	return []bson.M{
		{"created_at": bson.M{"$lt": ts}},
		{"created_at": ts, "_id": bson.M{"$lt": id}},
	}
}

// applyCursorWindow adds the keyset window as a top-level $or. Any
// created_at range in the filter still applies; top-level keys AND
// together.
func applyCursorWindow(filter bson.M, after string) {
	if window := cursorWindow(after); window != nil {
		filter["$or"] = window
	}
}
