package application

import (
	"context"
	"errors"

	performance "fleetsys/internal/performance/domain"
	voyage "fleetsys/internal/voyage/domain"
)

// SampleReader loads the engine sample stream for one voyage in timestamp
// order with stable ties.
type SampleReader interface {
	ListEngineSamples(ctx context.Context, vesselID string, voyageNumber int) ([]voyage.EngineSample, error)
}

// SegmentStore replaces the derived segments of one voyage atomically.
type SegmentStore interface {
	ReplaceVoyageSegments(ctx context.Context, vesselID string, voyageNumber int, segments []performance.Segment) error
}

// Service recomputes performance segments for a voyage.
type Service struct {
	samples SampleReader
	store   SegmentStore
}

// NewService constructs the segmenter service.
func NewService(samples SampleReader, store SegmentStore) (*Service, error) {
	if samples == nil {
		return nil, errors.New("performance service: nil sample reader")
	}
	if store == nil {
		return nil, errors.New("performance service: nil segment store")
	}
	return &Service{samples: samples, store: store}, nil
}

// RecomputeVoyage rebuilds all segments for one voyage. A voyage without
// samples ends up with no segments, which is not an error.
func (s *Service) RecomputeVoyage(ctx context.Context, vesselID string, voyageNumber int) ([]performance.Segment, error) {
	samples, err := s.samples.ListEngineSamples(ctx, vesselID, voyageNumber)
	if err != nil {
		return nil, err
	}
	segments := performance.BuildSegments(vesselID, voyageNumber, samples)
	if err := s.store.ReplaceVoyageSegments(ctx, vesselID, voyageNumber, segments); err != nil {
		return nil, err
	}
	return segments, nil
}
