// internal/app/store/admins/adminstore.go

// Package adminstore persists admin accounts and resolves session
// identities into authorization contexts.
package adminstore

import (
	"context"
	"errors"
	"time"

	"github.com/branchrate/branchrate/internal/app/system/authz"
	"github.com/branchrate/branchrate/internal/domain/models"
	mongodb "github.com/dalemusser/waffle/pantry/mongo"
	textfold "github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	// ErrNotFound reports that no admin account matched. This is a
	// business outcome (treat as access denied or 404), never a
	// transient failure.
	ErrNotFound = errors.New("admin account not found")

	// ErrDuplicateEmail reports a case-insensitive email collision.
	ErrDuplicateEmail = errors.New("an admin with this email already exists")

	// ErrSelfDelete reports an attempt by an account to delete itself.
	ErrSelfDelete = errors.New("an admin cannot delete their own account")
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("admins")}
}

// Resolve maps a session identity to its authorization context.
// Returns (nil, nil) when no record exists so callers can distinguish
// "no access" from a store failure.
func (s *Store) Resolve(ctx context.Context, accountID primitive.ObjectID) (*authz.AuthContext, error) {
	a, err := s.GetByID(ctx, accountID)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return authz.FromAccount(&a), nil
}

func (s *Store) Create(ctx context.Context, a models.AdminAccount) (models.AdminAccount, error) {
	now := time.Now().UTC()
	a.ID = primitive.NewObjectID()
	a.EmailCI = textfold.Fold(a.Email)
	if a.Role == models.RoleOwner {
		a.AllowedBranchIDs = nil
	} else if a.AllowedBranchIDs == nil {
		a.AllowedBranchIDs = []primitive.ObjectID{}
	}
	a.CreatedAt = now
	a.UpdatedAt = now
	_, err := s.c.InsertOne(ctx, a)
	if err != nil {
		if mongodb.IsDup(err) {
			return models.AdminAccount{}, ErrDuplicateEmail
		}
		return models.AdminAccount{}, err
	}
	return a, nil
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.AdminAccount, error) {
	var a models.AdminAccount
	err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&a)
	if err == mongo.ErrNoDocuments {
		return models.AdminAccount{}, ErrNotFound
	}
	if err != nil {
		return models.AdminAccount{}, err
	}
	return a, nil
}

// GetByEmail looks an account up by its folded email.
func (s *Store) GetByEmail(ctx context.Context, email string) (models.AdminAccount, error) {
	var a models.AdminAccount
	err := s.c.FindOne(ctx, bson.M{"email_ci": textfold.Fold(email)}).Decode(&a)
	if err == mongo.ErrNoDocuments {
		return models.AdminAccount{}, ErrNotFound
	}
	if err != nil {
		return models.AdminAccount{}, err
	}
	return a, nil
}

// GetByIDs loads multiple admin accounts by ID. Missing IDs are
// silently absent from the result.
func (s *Store) GetByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.AdminAccount, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	cur, err := s.c.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []models.AdminAccount
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// List returns all admin accounts sorted by folded email.
func (s *Store) List(ctx context.Context) ([]models.AdminAccount, error) {
	opts := options.Find().SetSort(bson.D{{Key: "email_ci", Value: 1}})
	cur, err := s.c.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []models.AdminAccount
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Update modifies mutable fields and refreshes UpdatedAt. The branch
// set is normalized against the role: owners always store nil, scoped
// roles always store a non-nil set.
func (s *Store) Update(ctx context.Context, id primitive.ObjectID, a models.AdminAccount) error {
	set := bson.M{
		"updated_at": time.Now().UTC(),
	}
	if a.Email != "" {
		set["email"] = a.Email
		set["email_ci"] = textfold.Fold(a.Email)
	}
	if a.Name != "" {
		set["name"] = a.Name
	}
	if a.Role != "" {
		set["role"] = a.Role
		if a.Role == models.RoleOwner {
			set["allowed_branch_ids"] = nil
		} else {
			ids := a.AllowedBranchIDs
			if ids == nil {
				ids = []primitive.ObjectID{}
			}
			set["allowed_branch_ids"] = ids
		}
	}
	if a.PasswordHash != "" {
		set["password_hash"] = a.PasswordHash
	}
	res, err := s.c.UpdateByID(ctx, id, bson.M{"$set": set})
	if err != nil {
		if mongodb.IsDup(err) {
			return ErrDuplicateEmail
		}
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes an account. Self-deletion is rejected so a chain can
// never lock out its last administrator by accident.
func (s *Store) Delete(ctx context.Context, id, actorID primitive.ObjectID) error {
	if id == actorID {
		return ErrSelfDelete
	}
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// CountOwners returns how many owner accounts exist.
func (s *Store) CountOwners(ctx context.Context) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{"role": models.RoleOwner})
}
