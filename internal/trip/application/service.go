package application

import (
	"context"
	"errors"
	"log"
	"time"

	trip "fleetsys/internal/trip/domain"
	voyage "fleetsys/internal/voyage/domain"
)

// BoundaryReader locates boundary reports by trip label.
type BoundaryReader interface {
	FindBoundary(ctx context.Context, vesselID string, voyageNumber int, label string) (*time.Time, error)
	ListBoundaryLabels(ctx context.Context, vesselID string, voyageNumber int, suffix string) ([]string, error)
}

// IntervalReader loads the engine samples inside a trip interval, both
// bounds inclusive; a nil "to" reads to the end of the stream.
type IntervalReader interface {
	ListEngineSamplesBetween(ctx context.Context, vesselID string, voyageNumber int, from time.Time, to *time.Time) ([]voyage.EngineSample, error)
}

// TripStore upserts derived trips and fuel balances.
type TripStore interface {
	UpsertTrip(ctx context.Context, t trip.Trip) error
	UpsertFuelBalance(ctx context.Context, balance trip.FuelBalance) error
}

// Service resolves trip boundaries and reconciles fuel per trip.
type Service struct {
	boundaries BoundaryReader
	samples    IntervalReader
	store      TripStore
	logger     *log.Logger
}

// NewService constructs the trip service.
func NewService(boundaries BoundaryReader, samples IntervalReader, store TripStore, logger *log.Logger) (*Service, error) {
	if boundaries == nil {
		return nil, errors.New("trip service: nil boundary reader")
	}
	if samples == nil {
		return nil, errors.New("trip service: nil interval reader")
	}
	if store == nil {
		return nil, errors.New("trip service: nil store")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Service{boundaries: boundaries, samples: samples, store: store, logger: logger}, nil
}

// ResolveTrip locates trip n's interval and persists its trip row plus one
// fuel balance per fuel type. A missing start boundary means the trip does
// not exist yet: the result is nil with no error. A missing end boundary
// leaves the trip open-ended, provisionally closed at the latest sample.
func (s *Service) ResolveTrip(ctx context.Context, vesselID string, voyageNumber, tripNumber int) (*trip.Trip, error) {
	start, err := s.boundaries.FindBoundary(ctx, vesselID, voyageNumber, trip.BoundaryLabel(tripNumber))
	if err != nil {
		return nil, err
	}
	if start == nil {
		return nil, nil
	}

	end, err := s.boundaries.FindBoundary(ctx, vesselID, voyageNumber, trip.BoundaryLabel(tripNumber+1))
	if err != nil {
		return nil, err
	}

	samples, err := s.samples.ListEngineSamplesBetween(ctx, vesselID, voyageNumber, *start, end)
	if err != nil {
		return nil, err
	}

	result := trip.Trip{
		VesselID:     vesselID,
		VoyageNumber: voyageNumber,
		Number:       tripNumber,
		Start:        *start,
	}
	switch {
	case end != nil:
		result.End = *end
	case len(samples) > 0:
		result.End = samples[len(samples)-1].Timestamp
		result.OpenEnded = true
	default:
		result.End = *start
		result.OpenEnded = true
	}

	rec := trip.Reconcile(vesselID, voyageNumber, tripNumber, samples)
	result.DurationMin = rec.DurationMin

	if err := s.store.UpsertTrip(ctx, result); err != nil {
		return nil, err
	}
	for _, balance := range rec.Balances {
		if err := s.store.UpsertFuelBalance(ctx, balance); err != nil {
			return nil, err
		}
	}
	return &result, nil
}

// RecomputeVoyageTrips resolves every trip number discoverable from the
// voyage's boundary labels. A failing trip is logged and skipped so its
// siblings still get recomputed; the first failure is reported after the
// sweep completes.
func (s *Service) RecomputeVoyageTrips(ctx context.Context, vesselID string, voyageNumber int) (int, error) {
	labels, err := s.boundaries.ListBoundaryLabels(ctx, vesselID, voyageNumber, trip.BoundarySuffix)
	if err != nil {
		return 0, err
	}

	var firstErr error
	resolved := 0
	for _, n := range trip.DiscoverTripNumbers(labels) {
		result, err := s.ResolveTrip(ctx, vesselID, voyageNumber, n)
		if err != nil {
			s.logger.Printf("trip recompute: vessel=%s voyage=%d trip=%d error: %v", vesselID, voyageNumber, n, err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if result != nil {
			resolved++
		}
	}
	return resolved, firstErr
}
