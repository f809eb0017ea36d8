package summary

import (
	"testing"
	"time"

	performance "fleetsys/internal/performance/domain"
	trip "fleetsys/internal/trip/domain"
	voyage "fleetsys/internal/voyage/domain"
)

func TestBuildNoTrips(t *testing.T) {
	got := Build("V1", 7, nil, []performance.Segment{{Activity: "Sailing"}}, nil)
	if got != nil {
		t.Fatalf("expected nil summary without trips, got %+v", got)
	}
}

func TestBuildAggregates(t *testing.T) {
	base := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	trips := []trip.Trip{
		{Number: 2, Start: base.Add(48 * time.Hour), End: base.Add(96 * time.Hour)},
		{Number: 1, Start: base, End: base.Add(48 * time.Hour)},
	}
	segments := []performance.Segment{
		{Activity: "Sailing", DurationMin: 600, FOConsKL: 12, DOConsKL: 1},
		{Activity: "at anchor", DurationMin: 300, FOConsKL: 2, DOConsKL: 0.5},
		{Activity: "SAILING", DurationMin: 400, FOConsKL: 8, DOConsKL: 0.5},
	}
	decks := []voyage.DeckSample{
		{Dist24Hours: voyage.Ptr(240)},
		{Dist24Hours: nil},
		{Dist24Hours: voyage.Ptr(180)},
	}

	got := Build("V1", 7, trips, segments, decks)
	if got == nil {
		t.Fatal("expected a summary")
	}
	if got.TripCount != 2 {
		t.Fatalf("trip count = %d", got.TripCount)
	}
	if !got.Start.Equal(base) || !got.End.Equal(base.Add(96*time.Hour)) {
		t.Fatalf("span = %v .. %v", got.Start, got.End)
	}
	if got.TotalFOConsKL != 22 || got.TotalDOConsKL != 2 {
		t.Fatalf("totals = %v FO, %v DO", got.TotalFOConsKL, got.TotalDOConsKL)
	}
	// case-insensitive sailing match, anchor segment excluded
	if got.SailingDurationMin != 1000 || got.SailingFOConsKL != 20 || got.SailingDOConsKL != 1 {
		t.Fatalf("sailing = %v min, %v FO, %v DO", got.SailingDurationMin, got.SailingFOConsKL, got.SailingDOConsKL)
	}
	if got.DistanceNM != 420 {
		t.Fatalf("distance = %v", got.DistanceNM)
	}
}
