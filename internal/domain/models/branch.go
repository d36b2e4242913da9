// internal/domain/models/branch.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Branch is a physical restaurant location. Includes a case/diacritic-
// insensitive name field for search/sort.
type Branch struct {
	ID       primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name     string             `bson:"name" json:"name"`
	NameCI   string             `bson:"name_ci" json:"-"` // always stored
	Location string             `bson:"location" json:"location"`
	Address  string             `bson:"address,omitempty" json:"address,omitempty"`
	IsActive bool               `bson:"is_active" json:"is_active"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
