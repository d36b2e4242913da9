// internal/app/store/branches/branchstore.go
package branchstore

import (
	"context"
	"errors"
	"time"

	"github.com/branchrate/branchrate/internal/domain/models"
	mongodb "github.com/dalemusser/waffle/pantry/mongo"
	textfold "github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	// ErrNotFound reports that no branch matched the given ID.
	ErrNotFound = errors.New("branch not found")

	ErrDuplicateBranch = errors.New("a branch with this name already exists")
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("branches")}
}

func (s *Store) Create(ctx context.Context, b models.Branch) (models.Branch, error) {
	now := time.Now().UTC()
	b.ID = primitive.NewObjectID()
	b.NameCI = textfold.Fold(b.Name)
	b.CreatedAt = now
	b.UpdatedAt = now
	_, err := s.c.InsertOne(ctx, b)
	if err != nil {
		if mongodb.IsDup(err) {
			return models.Branch{}, ErrDuplicateBranch
		}
		return models.Branch{}, err
	}
	return b, nil
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Branch, error) {
	var b models.Branch
	err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&b)
	if err == mongo.ErrNoDocuments {
		return models.Branch{}, ErrNotFound
	}
	if err != nil {
		return models.Branch{}, err
	}
	return b, nil
}

// GetByIDs loads multiple branches by ID. Missing IDs are silently
// absent from the result.
func (s *Store) GetByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Branch, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	cur, err := s.c.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []models.Branch
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// List returns all branches sorted by folded name.
func (s *Store) List(ctx context.Context) ([]models.Branch, error) {
	return s.find(ctx, bson.M{})
}

// ListActive returns active branches only, for the public kiosk
// branch picker.
func (s *Store) ListActive(ctx context.Context) ([]models.Branch, error) {
	return s.find(ctx, bson.M{"is_active": true})
}

func (s *Store) find(ctx context.Context, filter bson.M) ([]models.Branch, error) {
	opts := options.Find().SetSort(bson.D{{Key: "name_ci", Value: 1}})
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []models.Branch
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Update modifies a branch's mutable fields and refreshes UpdatedAt.
// IsActive is always written so branches can be deactivated.
func (s *Store) Update(ctx context.Context, id primitive.ObjectID, b models.Branch) error {
	set := bson.M{
		"is_active":  b.IsActive,
		"updated_at": time.Now().UTC(),
	}
	if b.Name != "" {
		set["name"] = b.Name
		set["name_ci"] = textfold.Fold(b.Name)
	}
	if b.Location != "" {
		set["location"] = b.Location
	}
	if b.Address != "" {
		set["address"] = b.Address
	}
	res, err := s.c.UpdateByID(ctx, id, bson.M{"$set": set})
	if err != nil {
		if mongodb.IsDup(err) {
			return ErrDuplicateBranch
		}
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a branch. Reviews for the branch are kept; historical
// review data outlives the branch record.
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Count returns the number of branches matching the filter.
func (s *Store) Count(ctx context.Context, filter bson.M) (int64, error) {
	return s.c.CountDocuments(ctx, filter)
}
