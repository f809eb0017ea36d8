package performance

import (
	"time"

	voyage "fleetsys/internal/voyage/domain"
)

// Segment is a maximal run of consecutive engine samples sharing one
// activity within a voyage.
type Segment struct {
	VesselID     string
	VoyageNumber int
	Activity     string
	Start        time.Time
	End          time.Time
	FOConsKL     float64
	DOConsKL     float64
	DurationMin  float64
}

// BuildSegments partitions a time-ordered sample stream into contiguous
// activity blocks. Each sample belongs to exactly one segment; consumption
// and duration sums treat missing readings as zero. An empty stream yields
// no segments.
func BuildSegments(vesselID string, voyageNumber int, samples []voyage.EngineSample) []Segment {
	var segments []Segment
	var current *Segment

	for _, sample := range samples {
		if current == nil || sample.Activity != current.Activity {
			if current != nil {
				segments = append(segments, *current)
			}
			current = &Segment{
				VesselID:     vesselID,
				VoyageNumber: voyageNumber,
				Activity:     sample.Activity,
				Start:        sample.Timestamp,
			}
		}
		current.End = sample.Timestamp
		current.FOConsKL += voyage.Value(sample.MEFOCons)
		current.DOConsKL += voyage.Value(sample.MEDOCons)
		current.DurationMin += voyage.Value(sample.MERunMin)
	}
	if current != nil {
		segments = append(segments, *current)
	}
	return segments
}
