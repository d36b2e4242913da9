// internal/domain/models/review.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Rating bounds for reviews.
const (
	MinRating = 1
	MaxRating = 5
)

// Review is an immutable customer feedback record tied to one branch.
// Reviews are created by unauthenticated kiosks and never updated or
// deleted afterward; there is deliberately no write path besides create.
//
// BranchID is taken as submitted and not validated for existence, so a
// review written while its branch is being deleted is kept rather than
// lost.
type Review struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	BranchID     primitive.ObjectID `bson:"branch_id" json:"branch_id"`
	Rating       int                `bson:"rating" json:"rating"` // 1..5
	Comment      string             `bson:"comment,omitempty" json:"comment,omitempty"`
	CustomerName string             `bson:"customer_name,omitempty" json:"customer_name,omitempty"`
	Contact      string             `bson:"contact,omitempty" json:"contact,omitempty"`
	BillID       string             `bson:"bill_id,omitempty" json:"bill_id,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}
