// internal/app/system/stats/stats.go

// Package stats computes dashboard rollups from in-memory review slices.
//
// Every function here is a pure, stateless reduction over reviews that
// have already been scoped by the reviews store; none of them touch the
// database. Statistics paths fetch the full eligible set (bounded by
// limits.StatsScanCap) instead of paginating.
package stats

import (
	"math"
	"sort"
	"time"

	"github.com/branchrate/branchrate/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// BranchTally accumulates reviews for one branch.
type BranchTally struct {
	Count       int   `json:"count"`
	TotalRating int64 `json:"total_rating"`
}

// AverageRating returns the tally's average rounded to one decimal,
// or 0 when the tally is empty.
func (t BranchTally) AverageRating() float64 {
	if t.Count == 0 {
		return 0
	}
	return Round1(float64(t.TotalRating) / float64(t.Count))
}

// Round1 rounds to one decimal place, half away from zero.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// BranchStats folds reviews into per-branch tallies in a single pass.
func BranchStats(reviews []models.Review) map[primitive.ObjectID]BranchTally {
	out := make(map[primitive.ObjectID]BranchTally)
	for _, r := range reviews {
		t := out[r.BranchID]
		t.Count++
		t.TotalRating += int64(r.Rating)
		out[r.BranchID] = t
	}
	return out
}

// DailyBucket is one calendar day's rollup.
type DailyBucket struct {
	Date          string  `json:"date"` // 2006-01-02, UTC
	Count         int     `json:"count"`
	AverageRating float64 `json:"average_rating"`
}

const dayFormat = "2006-01-02"

// DailyStats folds reviews into one bucket per calendar day in
// [start, end] inclusive. Days with no reviews still appear with a zero
// count, and output is ordered chronologically ascending. Reviews
// outside the range are ignored.
func DailyStats(reviews []models.Review, start, end time.Time) []DailyBucket {
	start = truncateDay(start)
	end = truncateDay(end)
	if end.Before(start) {
		return nil
	}

	type tally struct {
		count int
		total int64
	}
	days := make(map[string]*tally)
	var order []string
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		key := d.Format(dayFormat)
		days[key] = &tally{}
		order = append(order, key)
	}

	for _, r := range reviews {
		key := r.CreatedAt.UTC().Format(dayFormat)
		if t, ok := days[key]; ok {
			t.count++
			t.total += int64(r.Rating)
		}
	}

	out := make([]DailyBucket, 0, len(order))
	for _, key := range order {
		t := days[key]
		b := DailyBucket{Date: key, Count: t.count}
		if t.count > 0 {
			b.AverageRating = Round1(float64(t.total) / float64(t.count))
		}
		out = append(out, b)
	}
	return out
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// CustomerRow is one repeat customer's rollup.
type CustomerRow struct {
	Contact        string    `json:"contact"`
	CustomerName   string    `json:"customer_name,omitempty"`
	Count          int       `json:"count"`
	AverageRating  float64   `json:"average_rating"`
	LastReviewDate time.Time `json:"last_review_date"`
}

// CustomerFrequency groups reviews by contact and keeps groups with at
// least minReviews entries, sorted by count descending. Reviews without
// a contact are excluded entirely; within a group the customer name is
// the first non-empty one encountered and the last review date is the
// maximum created-at.
func CustomerFrequency(reviews []models.Review, minReviews int) []CustomerRow {
	type group struct {
		row   CustomerRow
		total int64
	}
	groups := make(map[string]*group)
	for _, r := range reviews {
		if r.Contact == "" {
			continue
		}
		g, ok := groups[r.Contact]
		if !ok {
			g = &group{row: CustomerRow{Contact: r.Contact}}
			groups[r.Contact] = g
		}
		g.row.Count++
		g.total += int64(r.Rating)
		if g.row.CustomerName == "" && r.CustomerName != "" {
			g.row.CustomerName = r.CustomerName
		}
		if r.CreatedAt.After(g.row.LastReviewDate) {
			g.row.LastReviewDate = r.CreatedAt
		}
	}

	out := make([]CustomerRow, 0, len(groups))
	for _, g := range groups {
		if g.row.Count < minReviews {
			continue
		}
		g.row.AverageRating = Round1(float64(g.total) / float64(g.row.Count))
		out = append(out, g.row)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Contact < out[j].Contact
	})
	return out
}

// Totals is the headline dashboard summary.
type Totals struct {
	TotalReviews   int     `json:"total_reviews"`
	AverageRating  float64 `json:"average_rating"`
	ActiveBranches int     `json:"active_branches"`
}

// DashboardTotals computes the headline numbers for the dashboard.
func DashboardTotals(reviews []models.Review, branches []models.Branch) Totals {
	t := Totals{TotalReviews: len(reviews)}
	if len(reviews) > 0 {
		var sum int64
		for _, r := range reviews {
			sum += int64(r.Rating)
		}
		t.AverageRating = Round1(float64(sum) / float64(len(reviews)))
	}
	for _, b := range branches {
		if b.IsActive {
			t.ActiveBranches++
		}
	}
	return t
}
