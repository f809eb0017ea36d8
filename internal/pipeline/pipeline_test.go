package pipeline

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"fleetsys/internal/forward"
	performance "fleetsys/internal/performance/domain"
	summary "fleetsys/internal/summary/domain"
	voyage "fleetsys/internal/voyage/domain"
)

type stubStore struct {
	ensured  int
	replaced int
}

func (s *stubStore) EnsureVoyage(_ context.Context, vesselID string, voyageNumber int) (*voyage.Voyage, error) {
	s.ensured++
	return &voyage.Voyage{UUID: "u-1", VesselID: vesselID, VoyageNumber: voyageNumber}, nil
}

func (s *stubStore) ReplaceVoyageData(context.Context, voyage.Batch) error {
	s.replaced++
	return nil
}

type stubReader struct{}

func (stubReader) GetVoyage(_ context.Context, vesselID string, voyageNumber int) (*voyage.Voyage, error) {
	return &voyage.Voyage{UUID: "u-1", VesselID: vesselID, VoyageNumber: voyageNumber}, nil
}

func (stubReader) ListReports(context.Context, string, int) ([]voyage.Report, error) {
	return []voyage.Report{{ActivityID: "a-1"}}, nil
}

func (stubReader) ListDeckSamples(context.Context, string, int) (map[time.Time]voyage.DeckSample, error) {
	return nil, nil
}

type stageCalls struct {
	segments  int
	trips     int
	summaries int
	tripErr   error
}

func (s *stageCalls) RecomputeVoyage(context.Context, string, int) ([]performance.Segment, error) {
	s.segments++
	return nil, nil
}

func (s *stageCalls) RecomputeVoyageTrips(context.Context, string, int) (int, error) {
	s.trips++
	return 1, s.tripErr
}

func (s *stageCalls) RecomputeVoyageSummary(context.Context, string, int) (*summary.VoyageSummary, error) {
	s.summaries++
	return &summary.VoyageSummary{}, nil
}

type stubForwarder struct {
	pushed int
	err    error
}

func (f *stubForwarder) Push(context.Context, forward.VoyagePayload) error {
	f.pushed++
	return f.err
}

func newPipeline(t *testing.T, store *stubStore, stages *stageCalls, fwd Forwarder) *Pipeline {
	t.Helper()
	p, err := NewPipeline(store, stubReader{}, stages, stages, stages, fwd, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func sampleBatch() voyage.Batch {
	return voyage.Batch{
		VesselID:     "V1",
		VoyageNumber: 7,
		Reports:      []voyage.Report{{ActivityID: "a-1", Timestamp: time.Now()}},
	}
}

func TestIngestBatchRunsAllStages(t *testing.T) {
	store := &stubStore{}
	stages := &stageCalls{}
	fwd := &stubForwarder{}
	p := newPipeline(t, store, stages, fwd)

	if err := p.IngestBatch(context.Background(), sampleBatch()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.ensured != 1 || store.replaced != 1 {
		t.Fatalf("store calls = %d/%d", store.ensured, store.replaced)
	}
	if stages.segments != 1 || stages.trips != 1 || stages.summaries != 1 {
		t.Fatalf("stage calls = %+v", stages)
	}
	if fwd.pushed != 1 {
		t.Fatalf("pushes = %d", fwd.pushed)
	}
}

func TestIngestBatchEmpty(t *testing.T) {
	p := newPipeline(t, &stubStore{}, &stageCalls{}, nil)
	if err := p.IngestBatch(context.Background(), voyage.Batch{VesselID: "V1"}); !errors.Is(err, voyage.ErrNoReportsInBatch) {
		t.Fatalf("err = %v", err)
	}
}

func TestStageFailureStopsChain(t *testing.T) {
	stages := &stageCalls{tripErr: errors.New("boundary scan failed")}
	fwd := &stubForwarder{}
	p := newPipeline(t, &stubStore{}, stages, fwd)

	err := p.Recompute(context.Background(), "V1", 7)
	if err == nil {
		t.Fatal("expected trip failure to surface")
	}
	if stages.summaries != 0 {
		t.Fatal("summary must not run after trip failure")
	}
	if fwd.pushed != 0 {
		t.Fatal("forward must not run after trip failure")
	}
}

func TestForwardFailureDoesNotFailRecompute(t *testing.T) {
	stages := &stageCalls{}
	fwd := &stubForwarder{err: errors.New("remote down")}
	p := newPipeline(t, &stubStore{}, stages, fwd)

	if err := p.Recompute(context.Background(), "V1", 7); err != nil {
		t.Fatalf("forward failure must be non-fatal: %v", err)
	}
	if fwd.pushed != 1 {
		t.Fatalf("pushes = %d", fwd.pushed)
	}
}

func TestNilForwarderSkipsPush(t *testing.T) {
	stages := &stageCalls{}
	p := newPipeline(t, &stubStore{}, stages, nil)
	if err := p.Recompute(context.Background(), "V1", 7); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
