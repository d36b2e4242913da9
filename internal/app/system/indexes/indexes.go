// internal/app/system/indexes/indexes.go

// Package indexes creates the MongoDB indexes the query paths depend
// on. Runs at startup; index creation is idempotent.
package indexes

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Ensure creates all collection indexes.
//
//	reviews:  (branch_id, created_at desc) for scoped listings,
//	          (created_at desc) for unscoped listings and stats scans
//	admins:   unique email_ci for case-insensitive email identity
//	branches: unique name_ci
func Ensure(ctx context.Context, db *mongo.Database) error {
	reviews := []mongo.IndexModel{
		{Keys: bson.D{
			{Key: "branch_id", Value: 1},
			{Key: "created_at", Value: -1},
			{Key: "_id", Value: -1},
		}},
		{Keys: bson.D{
			{Key: "created_at", Value: -1},
			{Key: "_id", Value: -1},
		}},
	}
	if _, err := db.Collection("reviews").Indexes().CreateMany(ctx, reviews); err != nil {
		return err
	}

	admins := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email_ci", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}
	if _, err := db.Collection("admins").Indexes().CreateMany(ctx, admins); err != nil {
		return err
	}

	branches := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "name_ci", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}
	if _, err := db.Collection("branches").Indexes().CreateMany(ctx, branches); err != nil {
		return err
	}

	return nil
}
