package application

import (
	"context"
	"io"
	"log"
	"math"
	"testing"
	"time"

	calibration "fleetsys/internal/calibration/domain"
)

type stubSessions struct {
	session *calibration.Session
}

func (s *stubSessions) GetOrCreateSession(_ context.Context, vesselID, name string, start time.Time) (calibration.Session, error) {
	if s.session == nil {
		s.session = &calibration.Session{ID: 1, VesselID: vesselID, Name: name, StartDate: start}
	}
	return *s.session, nil
}

func (s *stubSessions) FindSession(context.Context, string, SessionPolicy) (*calibration.Session, error) {
	return s.session, nil
}

type stubReadings struct {
	stored []calibration.Reading
	pairs  map[string][]Pair
}

func (s *stubReadings) UpsertReading(_ context.Context, r calibration.Reading) error {
	s.stored = append(s.stored, r)
	return nil
}

func (s *stubReadings) ListPairs(_ context.Context, _ int64, indep, dep string) ([]Pair, error) {
	return s.pairs[indep+"/"+dep], nil
}

type stubModels struct {
	models map[calibration.Purpose]calibration.Model
}

func (s *stubModels) UpsertModel(_ context.Context, m calibration.Model) error {
	if s.models == nil {
		s.models = map[calibration.Purpose]calibration.Model{}
	}
	s.models[m.Purpose] = m
	return nil
}

func (s *stubModels) GetModel(_ context.Context, _ string, _ int64, purpose calibration.Purpose) (*calibration.Model, error) {
	m, ok := s.models[purpose]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

type stubParams struct {
	values map[string]float64
	saved  []calibration.DerivedValue
}

func (s *stubParams) GetValue(_ context.Context, _ string, _ time.Time, code string) (*float64, error) {
	v, ok := s.values[code]
	if !ok {
		return nil, nil
	}
	return &v, nil
}

func (s *stubParams) SaveDerived(_ context.Context, _ string, _ time.Time, values []calibration.DerivedValue) error {
	s.saved = append(s.saved, values...)
	return nil
}

func newTestService(t *testing.T, sessions *stubSessions, readings *stubReadings, models *stubModels, params *stubParams, opts ...Option) *Service {
	t.Helper()
	svc, err := NewService(sessions, readings, models, params, log.New(io.Discard, "", 0), opts...)
	if err != nil {
		t.Fatal(err)
	}
	return svc
}

func exactPairs(a, b, c float64, xs ...float64) []Pair {
	out := make([]Pair, len(xs))
	for i, x := range xs {
		out[i] = Pair{X: x, Y: a*x*x + b*x + c}
	}
	return out
}

func TestIngestReadingsFitsAvailablePurposes(t *testing.T) {
	sessions := &stubSessions{}
	readings := &stubReadings{pairs: map[string][]Pair{
		calibration.CodePower + "/" + calibration.CodeShipSpeed: exactPairs(0.01, 1, 2, 1000, 2000, 3000, 4000),
		// no fuel pairs, no exponent pairs
	}}
	models := &stubModels{}
	svc := newTestService(t, sessions, readings, models, &stubParams{})

	session, err := svc.IngestReadings(context.Background(), "V1", "trial-1", []calibration.Reading{
		{Timestamp: time.Now(), ParameterCode: calibration.CodePower, Value: 1000},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if session.ID != 1 {
		t.Fatalf("session id = %d", session.ID)
	}
	if _, ok := models.models[calibration.PurposeSpeed]; !ok {
		t.Fatal("speed model should have been fitted")
	}
	if _, ok := models.models[calibration.PurposeFuel]; ok {
		t.Fatal("fuel model fitted without data")
	}
	speed := models.models[calibration.PurposeSpeed]
	if math.Abs(speed.A-0.01) > 1e-6 || math.Abs(speed.R2-1) > 1e-9 {
		t.Fatalf("speed fit = %+v", speed)
	}
}

func TestForecastUnavailableWithoutSession(t *testing.T) {
	svc := newTestService(t, &stubSessions{}, &stubReadings{}, &stubModels{}, &stubParams{})
	x := 5.0
	got, err := svc.Forecast(context.Background(), "V1", calibration.PurposeSpeed, &x)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Fatalf("expected unavailable forecast, got %v", *got)
	}
}

func TestForecastNilInput(t *testing.T) {
	sessions := &stubSessions{session: &calibration.Session{ID: 1, VesselID: "V1"}}
	svc := newTestService(t, sessions, &stubReadings{}, &stubModels{}, &stubParams{})
	got, err := svc.Forecast(context.Background(), "V1", calibration.PurposeSpeed, nil)
	if err != nil || got != nil {
		t.Fatalf("got %v, %v", got, err)
	}
}

func TestDeriveBenchmarksSkipsWithoutPmax(t *testing.T) {
	params := &stubParams{values: map[string]float64{calibration.CodeShaftRPM: 90}}
	svc := newTestService(t, &stubSessions{}, &stubReadings{}, &stubModels{}, params)

	done, err := svc.DeriveBenchmarks(context.Background(), "V1", time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if done {
		t.Fatal("derivation should have been skipped")
	}
	if len(params.saved) != 0 {
		t.Fatalf("nothing should have been saved, got %d values", len(params.saved))
	}
}

func TestDeriveBenchmarksAtomicWithoutExponentModel(t *testing.T) {
	params := &stubParams{values: map[string]float64{
		calibration.CodePmax:     100,
		calibration.CodeShaftRPM: 90,
	}}
	// session exists but no exponent model was ever fitted
	sessions := &stubSessions{session: &calibration.Session{ID: 1, VesselID: "V1"}}
	svc := newTestService(t, sessions, &stubReadings{}, &stubModels{}, params)

	done, err := svc.DeriveBenchmarks(context.Background(), "V1", time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if done {
		t.Fatal("derivation should have been skipped")
	}
	if len(params.saved) != 0 {
		t.Fatalf("no partial writes allowed, got %d values", len(params.saved))
	}
}

func TestDeriveBenchmarksWritesTriple(t *testing.T) {
	params := &stubParams{values: map[string]float64{
		calibration.CodePmax:     100,
		calibration.CodeShaftRPM: 60,
	}}
	sessions := &stubSessions{session: &calibration.Session{ID: 1, VesselID: "V1"}}
	models := &stubModels{models: map[calibration.Purpose]calibration.Model{
		// constant exponent of 2 regardless of plan
		calibration.PurposeExponent: {Purpose: calibration.PurposeExponent, C: 2},
	}}
	svc := newTestService(t, sessions, &stubReadings{}, models, params)

	done, err := svc.DeriveBenchmarks(context.Background(), "V1", time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !done {
		t.Fatal("expected derivation to run")
	}
	if len(params.saved) != 3 {
		t.Fatalf("saved %d values, want 3", len(params.saved))
	}

	byCode := map[string]float64{}
	for _, v := range params.saved {
		byCode[v.ParameterCode] = v.Value
	}
	plan := calibration.DefaultBenchmarkConstants().PowerPlan(100, 60)
	if math.Abs(byCode[calibration.CodePowerPlan]-plan) > 1e-12 {
		t.Fatalf("plan = %v", byCode[calibration.CodePowerPlan])
	}
	if byCode[calibration.CodeExponent] != 2 {
		t.Fatalf("exponent = %v", byCode[calibration.CodeExponent])
	}
	if math.Abs(byCode[calibration.CodePower]-plan*100) > 1e-9 {
		t.Fatalf("power = %v", byCode[calibration.CodePower])
	}
}
