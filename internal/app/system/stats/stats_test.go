package stats_test

import (
	"reflect"
	"testing"
	"time"

	"github.com/branchrate/branchrate/internal/app/system/stats"
	"github.com/branchrate/branchrate/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func review(branch primitive.ObjectID, rating int, createdAt time.Time) models.Review {
	return models.Review{
		ID:        primitive.NewObjectID(),
		BranchID:  branch,
		Rating:    rating,
		CreatedAt: createdAt,
	}
}

func TestRound1(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{4.0, 4.0},
		{4.04, 4.0},
		{4.05, 4.1},
		{4.26, 4.3},
		{3.999, 4.0},
		{0, 0},
	}
	for _, tt := range tests {
		if got := stats.Round1(tt.in); got != tt.want {
			t.Errorf("Round1(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestBranchStats_KnownFixture(t *testing.T) {
	b1 := primitive.NewObjectID()
	now := time.Now().UTC()
	reviews := []models.Review{
		review(b1, 5, now),
		review(b1, 3, now),
		review(b1, 4, now),
	}

	out := stats.BranchStats(reviews)
	tally, ok := out[b1]
	if !ok {
		t.Fatal("expected tally for b1")
	}
	if tally.Count != 3 || tally.TotalRating != 12 {
		t.Errorf("got count=%d total=%d, want 3/12", tally.Count, tally.TotalRating)
	}
	if avg := tally.AverageRating(); avg != 4.0 {
		t.Errorf("average = %v, want 4.0", avg)
	}
}

func TestBranchStats_Idempotent(t *testing.T) {
	b1 := primitive.NewObjectID()
	b2 := primitive.NewObjectID()
	now := time.Now().UTC()
	reviews := []models.Review{
		review(b1, 5, now),
		review(b2, 1, now),
		review(b1, 2, now),
	}

	first := stats.BranchStats(reviews)
	second := stats.BranchStats(reviews)
	if !reflect.DeepEqual(first, second) {
		t.Error("BranchStats should be a pure function of its input")
	}
}

func TestBranchStats_EmptyInput(t *testing.T) {
	out := stats.BranchStats(nil)
	if len(out) != 0 {
		t.Errorf("expected empty map, got %d entries", len(out))
	}
}

func TestDailyStats_ZeroFillsEveryDay(t *testing.T) {
	b := primitive.NewObjectID()
	reviews := []models.Review{
		review(b, 4, day("2025-03-02").Add(10*time.Hour)),
		review(b, 2, day("2025-03-02").Add(11*time.Hour)),
		review(b, 5, day("2025-03-05")),
	}

	out := stats.DailyStats(reviews, day("2025-03-01"), day("2025-03-07"))
	if len(out) != 7 {
		t.Fatalf("expected 7 buckets, got %d", len(out))
	}
	if out[0].Date != "2025-03-01" || out[6].Date != "2025-03-07" {
		t.Errorf("unexpected bucket order: first=%s last=%s", out[0].Date, out[6].Date)
	}
	if out[0].Count != 0 {
		t.Errorf("day with no reviews should have count 0, got %d", out[0].Count)
	}
	if out[1].Count != 2 || out[1].AverageRating != 3.0 {
		t.Errorf("2025-03-02: got count=%d avg=%v, want 2/3.0", out[1].Count, out[1].AverageRating)
	}
	if out[4].Count != 1 || out[4].AverageRating != 5.0 {
		t.Errorf("2025-03-05: got count=%d avg=%v, want 1/5.0", out[4].Count, out[4].AverageRating)
	}
}

func TestDailyStats_IgnoresOutOfRange(t *testing.T) {
	b := primitive.NewObjectID()
	reviews := []models.Review{
		review(b, 5, day("2025-02-28")),
		review(b, 5, day("2025-03-08")),
	}
	out := stats.DailyStats(reviews, day("2025-03-01"), day("2025-03-07"))
	for _, bucket := range out {
		if bucket.Count != 0 {
			t.Errorf("bucket %s should be empty, got %d", bucket.Date, bucket.Count)
		}
	}
}

func TestDailyStats_InvertedRange(t *testing.T) {
	if out := stats.DailyStats(nil, day("2025-03-07"), day("2025-03-01")); out != nil {
		t.Errorf("inverted range should yield no buckets, got %d", len(out))
	}
}

func TestCustomerFrequency_MinReviewsBoundary(t *testing.T) {
	b := primitive.NewObjectID()
	now := time.Now().UTC()

	once := review(b, 5, now)
	once.Contact = "+1-555-0100"

	twiceA := review(b, 4, now.Add(-time.Hour))
	twiceA.Contact = "+1-555-0200"
	twiceB := review(b, 2, now)
	twiceB.Contact = "+1-555-0200"
	twiceB.CustomerName = "Dana"

	out := stats.CustomerFrequency([]models.Review{once, twiceA, twiceB}, 2)
	if len(out) != 1 {
		t.Fatalf("expected exactly one group, got %d", len(out))
	}
	row := out[0]
	if row.Contact != "+1-555-0200" {
		t.Errorf("wrong group kept: %s", row.Contact)
	}
	if row.Count != 2 || row.AverageRating != 3.0 {
		t.Errorf("got count=%d avg=%v, want 2/3.0", row.Count, row.AverageRating)
	}
	if row.CustomerName != "Dana" {
		t.Errorf("expected first non-empty name, got %q", row.CustomerName)
	}
	if !row.LastReviewDate.Equal(twiceB.CreatedAt) {
		t.Errorf("last review date = %v, want %v", row.LastReviewDate, twiceB.CreatedAt)
	}
}

func TestCustomerFrequency_ExcludesMissingContact(t *testing.T) {
	b := primitive.NewObjectID()
	now := time.Now().UTC()
	anon1 := review(b, 5, now)
	anon2 := review(b, 5, now)

	if out := stats.CustomerFrequency([]models.Review{anon1, anon2}, 1); len(out) != 0 {
		t.Errorf("reviews without contact must be excluded, got %d groups", len(out))
	}
}

func TestCustomerFrequency_SortsByCountDesc(t *testing.T) {
	b := primitive.NewObjectID()
	now := time.Now().UTC()
	var reviews []models.Review
	for i := 0; i < 3; i++ {
		r := review(b, 4, now)
		r.Contact = "heavy"
		reviews = append(reviews, r)
	}
	r := review(b, 4, now)
	r.Contact = "light"
	reviews = append(reviews, r)

	out := stats.CustomerFrequency(reviews, 1)
	if len(out) != 2 || out[0].Contact != "heavy" || out[1].Contact != "light" {
		t.Errorf("unexpected order: %+v", out)
	}
}

func TestDashboardTotals(t *testing.T) {
	b1 := primitive.NewObjectID()
	now := time.Now().UTC()
	reviews := []models.Review{
		review(b1, 5, now),
		review(b1, 4, now),
	}
	branches := []models.Branch{
		{ID: b1, IsActive: true},
		{ID: primitive.NewObjectID(), IsActive: false},
	}

	got := stats.DashboardTotals(reviews, branches)
	if got.TotalReviews != 2 || got.AverageRating != 4.5 || got.ActiveBranches != 1 {
		t.Errorf("unexpected totals: %+v", got)
	}
}

func TestDashboardTotals_Empty(t *testing.T) {
	got := stats.DashboardTotals(nil, nil)
	if got.TotalReviews != 0 || got.AverageRating != 0 || got.ActiveBranches != 0 {
		t.Errorf("unexpected totals for empty input: %+v", got)
	}
}
