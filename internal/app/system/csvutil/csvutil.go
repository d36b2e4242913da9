// internal/app/system/csvutil/csvutil.go

// Package csvutil renders review data as CSV for report exports.
package csvutil

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/branchrate/branchrate/internal/app/system/stats"
	"github.com/branchrate/branchrate/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// timeLayout is the timestamp format used in exported files.
const timeLayout = "2006-01-02 15:04:05"

// WriteReviews streams reviews to w as CSV, one row per review.
// Branch names come from the lookup map; an unknown branch falls back
// to its hex ID so rows for deleted branches are still attributable.
func WriteReviews(w io.Writer, reviews []models.Review, branchNames map[primitive.ObjectID]string) error {
	cw := csv.NewWriter(w)

	header := []string{"created_at", "branch", "rating", "comment", "customer_name", "contact", "bill_id"}
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, rv := range reviews {
		branch, ok := branchNames[rv.BranchID]
		if !ok {
			branch = rv.BranchID.Hex()
		}
		row := []string{
			rv.CreatedAt.UTC().Format(timeLayout),
			branch,
			strconv.Itoa(rv.Rating),
			rv.Comment,
			rv.CustomerName,
			rv.Contact,
			rv.BillID,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteBranchStats writes one row per branch with review count and
// average rating (one decimal, round half up).
func WriteBranchStats(w io.Writer, tallies map[primitive.ObjectID]stats.BranchTally, branchNames map[primitive.ObjectID]string, order []primitive.ObjectID) error {
	cw := csv.NewWriter(w)

	if err := cw.Write([]string{"branch", "review_count", "average_rating"}); err != nil {
		return err
	}

	for _, id := range order {
		tally := tallies[id]
		branch, ok := branchNames[id]
		if !ok {
			branch = id.Hex()
		}
		row := []string{
			branch,
			strconv.Itoa(tally.Count),
			strconv.FormatFloat(tally.AverageRating(), 'f', 1, 64),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// ExportFilename builds a dated attachment filename such as
// "reviews-2026-09-01-<id>.csv". The unique suffix keeps repeated
// downloads from colliding in the user's download folder.
func ExportFilename(kind string, now time.Time, unique string) string {
	return kind + "-" + now.UTC().Format("2006-01-02") + "-" + unique + ".csv"
}
