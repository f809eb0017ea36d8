package summary

import (
	"strings"
	"time"

	performance "fleetsys/internal/performance/domain"
	trip "fleetsys/internal/trip/domain"
	voyage "fleetsys/internal/voyage/domain"
)

// SailingActivity names the underway activity whose segments feed the
// sailing-only aggregates. The match is case-insensitive because the
// activity column arrives as free text.
const SailingActivity = "sailing"

// VoyageSummary is the per-voyage rollup derived from resolved trips,
// activity segments and deck-log distances.
type VoyageSummary struct {
	VesselID     string
	VoyageNumber int

	TripCount int
	Start     time.Time
	End       time.Time

	TotalDurationMin float64
	TotalFOConsKL    float64
	TotalDOConsKL    float64

	SailingDurationMin float64
	SailingFOConsKL    float64
	SailingDOConsKL    float64

	DistanceNM float64
}

// Build rolls a voyage's derived data into one summary. A voyage with no
// resolved trips has no summary yet and yields nil.
func Build(vesselID string, voyageNumber int, trips []trip.Trip, segments []performance.Segment, decks []voyage.DeckSample) *VoyageSummary {
	if len(trips) == 0 {
		return nil
	}

	s := &VoyageSummary{
		VesselID:     vesselID,
		VoyageNumber: voyageNumber,
		TripCount:    len(trips),
		Start:        trips[0].Start,
		End:          trips[0].End,
	}
	for _, t := range trips {
		if t.Start.Before(s.Start) {
			s.Start = t.Start
		}
		if t.End.After(s.End) {
			s.End = t.End
		}
	}

	for _, seg := range segments {
		s.TotalDurationMin += seg.DurationMin
		s.TotalFOConsKL += seg.FOConsKL
		s.TotalDOConsKL += seg.DOConsKL
		if strings.EqualFold(seg.Activity, SailingActivity) {
			s.SailingDurationMin += seg.DurationMin
			s.SailingFOConsKL += seg.FOConsKL
			s.SailingDOConsKL += seg.DOConsKL
		}
	}

	for _, d := range decks {
		s.DistanceNM += voyage.Value(d.Dist24Hours)
	}
	return s
}
