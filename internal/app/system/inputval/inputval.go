// internal/app/system/inputval/inputval.go

// Package inputval validates review submissions before any store call is
// attempted. Failures are field-specific so the kiosk can highlight the
// offending input.
package inputval

import (
	"fmt"
	"net/mail"
	"strings"

	"github.com/branchrate/branchrate/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Maximum lengths for free-text review fields.
const (
	MaxCommentLen      = 2000
	MaxCustomerNameLen = 120
	MaxContactLen      = 120
	MaxBillIDLen       = 64
)

// FieldError reports a validation failure on a single named field.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// ReviewInput is a raw kiosk submission prior to validation.
type ReviewInput struct {
	BranchID     string `json:"branch_id"`
	Rating       int    `json:"rating"`
	Comment      string `json:"comment"`
	CustomerName string `json:"customer_name"`
	Contact      string `json:"contact"`
	BillID       string `json:"bill_id"`
}

// ValidateReview checks a submission and returns the parsed branch id.
// The branch id must be well-formed, but existence is deliberately not
// checked here.
func ValidateReview(in ReviewInput) (primitive.ObjectID, *FieldError) {
	if strings.TrimSpace(in.BranchID) == "" {
		return primitive.NilObjectID, &FieldError{Field: "branch_id", Reason: "required"}
	}
	branchID, err := primitive.ObjectIDFromHex(strings.TrimSpace(in.BranchID))
	if err != nil {
		return primitive.NilObjectID, &FieldError{Field: "branch_id", Reason: "malformed id"}
	}
	if in.Rating < models.MinRating || in.Rating > models.MaxRating {
		return primitive.NilObjectID, &FieldError{
			Field:  "rating",
			Reason: fmt.Sprintf("must be between %d and %d", models.MinRating, models.MaxRating),
		}
	}
	if len(in.Comment) > MaxCommentLen {
		return primitive.NilObjectID, &FieldError{Field: "comment", Reason: "too long"}
	}
	if len(in.CustomerName) > MaxCustomerNameLen {
		return primitive.NilObjectID, &FieldError{Field: "customer_name", Reason: "too long"}
	}
	if len(in.Contact) > MaxContactLen {
		return primitive.NilObjectID, &FieldError{Field: "contact", Reason: "too long"}
	}
	if len(in.BillID) > MaxBillIDLen {
		return primitive.NilObjectID, &FieldError{Field: "bill_id", Reason: "too long"}
	}
	return branchID, nil
}

// IsValidEmail reports whether s parses as a bare RFC 5322 address
// (display-name forms are rejected). Used for admin account emails.
func IsValidEmail(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	addr, err := mail.ParseAddress(s)
	if err != nil {
		return false
	}
	return addr.Address == s
}
