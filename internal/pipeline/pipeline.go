package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"fleetsys/internal/forward"
	"fleetsys/internal/observability/metrics"
	performance "fleetsys/internal/performance/domain"
	summary "fleetsys/internal/summary/domain"
	voyage "fleetsys/internal/voyage/domain"
)

// ReportStore persists raw voyage data.
type ReportStore interface {
	EnsureVoyage(ctx context.Context, vesselID string, voyageNumber int) (*voyage.Voyage, error)
	ReplaceVoyageData(ctx context.Context, batch voyage.Batch) error
}

// VoyageReader supplies the committed data the forwarder needs.
type VoyageReader interface {
	GetVoyage(ctx context.Context, vesselID string, voyageNumber int) (*voyage.Voyage, error)
	ListReports(ctx context.Context, vesselID string, voyageNumber int) ([]voyage.Report, error)
	ListDeckSamples(ctx context.Context, vesselID string, voyageNumber int) (map[time.Time]voyage.DeckSample, error)
}

// SegmentRecomputer rebuilds a voyage's activity segments.
type SegmentRecomputer interface {
	RecomputeVoyage(ctx context.Context, vesselID string, voyageNumber int) ([]performance.Segment, error)
}

// TripRecomputer rebuilds a voyage's trips and fuel balances.
type TripRecomputer interface {
	RecomputeVoyageTrips(ctx context.Context, vesselID string, voyageNumber int) (int, error)
}

// SummaryRecomputer rebuilds the voyage rollup.
type SummaryRecomputer interface {
	RecomputeVoyageSummary(ctx context.Context, vesselID string, voyageNumber int) (*summary.VoyageSummary, error)
}

// Forwarder pushes the finalized voyage to the remote system.
type Forwarder interface {
	Push(ctx context.Context, payload forward.VoyagePayload) error
}

// Pipeline runs the full recompute chain for one (vessel, voyage). Derived
// tables are regenerated with delete-then-insert, so runs against the same
// key are serialized through a per-key lock.
type Pipeline struct {
	store     ReportStore
	reader    VoyageReader
	segments  SegmentRecomputer
	trips     TripRecomputer
	summaries SummaryRecomputer
	forwarder Forwarder
	logger    *log.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewPipeline wires the stages. The forwarder may be nil when outbound push
// is disabled.
func NewPipeline(store ReportStore, reader VoyageReader, segments SegmentRecomputer, trips TripRecomputer, summaries SummaryRecomputer, forwarder Forwarder, logger *log.Logger) (*Pipeline, error) {
	if store == nil {
		return nil, errors.New("pipeline: nil report store")
	}
	if reader == nil {
		return nil, errors.New("pipeline: nil voyage reader")
	}
	if segments == nil {
		return nil, errors.New("pipeline: nil segment recomputer")
	}
	if trips == nil {
		return nil, errors.New("pipeline: nil trip recomputer")
	}
	if summaries == nil {
		return nil, errors.New("pipeline: nil summary recomputer")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Pipeline{
		store:     store,
		reader:    reader,
		segments:  segments,
		trips:     trips,
		summaries: summaries,
		forwarder: forwarder,
		logger:    logger,
		locks:     map[string]*sync.Mutex{},
	}, nil
}

// IngestBatch replaces a voyage's raw data and recomputes everything
// derived from it.
func (p *Pipeline) IngestBatch(ctx context.Context, batch voyage.Batch) error {
	if len(batch.Reports) == 0 {
		return voyage.ErrNoReportsInBatch
	}
	unlock := p.lock(batch.VesselID, batch.VoyageNumber)
	defer unlock()

	if _, err := p.store.EnsureVoyage(ctx, batch.VesselID, batch.VoyageNumber); err != nil {
		return fmt.Errorf("vessel=%s voyage=%d ensure: %w", batch.VesselID, batch.VoyageNumber, err)
	}
	if err := p.store.ReplaceVoyageData(ctx, batch); err != nil {
		return fmt.Errorf("vessel=%s voyage=%d replace: %w", batch.VesselID, batch.VoyageNumber, err)
	}
	if batch.SkippedFields > 0 {
		p.logger.Printf("ingest: vessel=%s voyage=%d skipped %d non-numeric fields", batch.VesselID, batch.VoyageNumber, batch.SkippedFields)
	}
	return p.recomputeLocked(ctx, batch.VesselID, batch.VoyageNumber)
}

// Recompute reruns the derived stages for an already-ingested voyage.
func (p *Pipeline) Recompute(ctx context.Context, vesselID string, voyageNumber int) error {
	unlock := p.lock(vesselID, voyageNumber)
	defer unlock()
	return p.recomputeLocked(ctx, vesselID, voyageNumber)
}

// recomputeLocked runs segments, trips and summary in order, then forwards.
// A stage failure stops the chain because later stages read its output; the
// forward failure alone is logged and swallowed, the derived data is
// already committed.
func (p *Pipeline) recomputeLocked(ctx context.Context, vesselID string, voyageNumber int) error {
	if _, err := p.segments.RecomputeVoyage(ctx, vesselID, voyageNumber); err != nil {
		return fmt.Errorf("vessel=%s voyage=%d segments: %w", vesselID, voyageNumber, err)
	}
	resolved, err := p.trips.RecomputeVoyageTrips(ctx, vesselID, voyageNumber)
	if err != nil {
		return fmt.Errorf("vessel=%s voyage=%d trips: %w", vesselID, voyageNumber, err)
	}
	metrics.AddTripsResolved(resolved)
	if _, err := p.summaries.RecomputeVoyageSummary(ctx, vesselID, voyageNumber); err != nil {
		return fmt.Errorf("vessel=%s voyage=%d summary: %w", vesselID, voyageNumber, err)
	}

	if p.forwarder == nil {
		return nil
	}
	if err := p.forwardVoyage(ctx, vesselID, voyageNumber); err != nil {
		p.logger.Printf("forward: vessel=%s voyage=%d push failed: %v", vesselID, voyageNumber, err)
	}
	return nil
}

func (p *Pipeline) forwardVoyage(ctx context.Context, vesselID string, voyageNumber int) error {
	v, err := p.reader.GetVoyage(ctx, vesselID, voyageNumber)
	if err != nil {
		return err
	}
	if v == nil {
		return errors.New("voyage not found")
	}
	reports, err := p.reader.ListReports(ctx, vesselID, voyageNumber)
	if err != nil {
		return err
	}
	decks, err := p.reader.ListDeckSamples(ctx, vesselID, voyageNumber)
	if err != nil {
		return err
	}
	return p.forwarder.Push(ctx, forward.BuildPayload(*v, reports, decks))
}

func (p *Pipeline) lock(vesselID string, voyageNumber int) func() {
	key := fmt.Sprintf("%s/%d", vesselID, voyageNumber)
	p.mu.Lock()
	m, ok := p.locks[key]
	if !ok {
		m = &sync.Mutex{}
		p.locks[key] = m
	}
	p.mu.Unlock()
	m.Lock()
	return m.Unlock
}
