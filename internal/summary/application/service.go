package application

import (
	"context"
	"errors"
	"log"
	"time"

	performance "fleetsys/internal/performance/domain"
	summary "fleetsys/internal/summary/domain"
	trip "fleetsys/internal/trip/domain"
	voyage "fleetsys/internal/voyage/domain"
)

type TripReader interface {
	ListVoyageTrips(ctx context.Context, vesselID string, voyageNumber int) ([]trip.Trip, error)
}

type SegmentReader interface {
	ListVoyageSegments(ctx context.Context, vesselID string, voyageNumber int) ([]performance.Segment, error)
}

type DeckReader interface {
	ListDeckSamples(ctx context.Context, vesselID string, voyageNumber int) (map[time.Time]voyage.DeckSample, error)
}

// SummaryStore persists the rollup. Delete clears a stale summary when a
// voyage loses all its trips after a re-upload.
type SummaryStore interface {
	UpsertSummary(ctx context.Context, s summary.VoyageSummary) error
	DeleteSummary(ctx context.Context, vesselID string, voyageNumber int) error
}

// Service recomputes voyage summaries from trips, segments and deck logs.
type Service struct {
	trips    TripReader
	segments SegmentReader
	decks    DeckReader
	store    SummaryStore
	logger   *log.Logger
}

func NewService(trips TripReader, segments SegmentReader, decks DeckReader, store SummaryStore, logger *log.Logger) (*Service, error) {
	if trips == nil {
		return nil, errors.New("summary service: nil trip reader")
	}
	if segments == nil {
		return nil, errors.New("summary service: nil segment reader")
	}
	if decks == nil {
		return nil, errors.New("summary service: nil deck reader")
	}
	if store == nil {
		return nil, errors.New("summary service: nil store")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Service{trips: trips, segments: segments, decks: decks, store: store, logger: logger}, nil
}

// RecomputeVoyageSummary rebuilds one voyage's rollup. Without any resolved
// trips the stored summary, if any, is removed instead.
func (s *Service) RecomputeVoyageSummary(ctx context.Context, vesselID string, voyageNumber int) (*summary.VoyageSummary, error) {
	trips, err := s.trips.ListVoyageTrips(ctx, vesselID, voyageNumber)
	if err != nil {
		return nil, err
	}
	if len(trips) == 0 {
		if err := s.store.DeleteSummary(ctx, vesselID, voyageNumber); err != nil {
			return nil, err
		}
		return nil, nil
	}

	segments, err := s.segments.ListVoyageSegments(ctx, vesselID, voyageNumber)
	if err != nil {
		return nil, err
	}
	deckByTS, err := s.decks.ListDeckSamples(ctx, vesselID, voyageNumber)
	if err != nil {
		return nil, err
	}
	decks := make([]voyage.DeckSample, 0, len(deckByTS))
	for _, d := range deckByTS {
		decks = append(decks, d)
	}

	result := summary.Build(vesselID, voyageNumber, trips, segments, decks)
	if err := s.store.UpsertSummary(ctx, *result); err != nil {
		return nil, err
	}
	return result, nil
}
