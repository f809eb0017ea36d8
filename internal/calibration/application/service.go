package application

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	calibration "fleetsys/internal/calibration/domain"
	"fleetsys/internal/observability/metrics"
)

// SessionPolicy selects which of a vessel's sessions feeds forecasting.
type SessionPolicy string

const (
	// SessionEarliest picks the lowest session id. Sea-trial models are
	// fitted against the commissioning run, so later sessions do not
	// silently change forecasts.
	SessionEarliest SessionPolicy = "earliest"
	SessionLatest   SessionPolicy = "latest"
)

// Pair is one matched (independent, dependent) observation.
type Pair struct {
	X float64
	Y float64
}

type SessionStore interface {
	GetOrCreateSession(ctx context.Context, vesselID, name string, startDate time.Time) (calibration.Session, error)
	FindSession(ctx context.Context, vesselID string, policy SessionPolicy) (*calibration.Session, error)
}

type ReadingStore interface {
	UpsertReading(ctx context.Context, r calibration.Reading) error
	// ListPairs joins readings of the two parameter codes on equal
	// timestamps within one session.
	ListPairs(ctx context.Context, sessionID int64, independentCode, dependentCode string) ([]Pair, error)
}

type ModelStore interface {
	UpsertModel(ctx context.Context, m calibration.Model) error
	GetModel(ctx context.Context, vesselID string, sessionID int64, purpose calibration.Purpose) (*calibration.Model, error)
}

// ParameterStore reads raw operational readings and writes derived ones.
// SaveDerived must be all-or-nothing across the given values.
type ParameterStore interface {
	GetValue(ctx context.Context, vesselID string, date time.Time, parameterCode string) (*float64, error)
	SaveDerived(ctx context.Context, vesselID string, date time.Time, values []calibration.DerivedValue) error
}

// Service fits calibration models and derives benchmarked parameters.
type Service struct {
	sessions  SessionStore
	readings  ReadingStore
	models    ModelStore
	params    ParameterStore
	policy    SessionPolicy
	constants calibration.BenchmarkConstants
	logger    *log.Logger
}

type Option func(*Service)

func WithSessionPolicy(p SessionPolicy) Option {
	return func(s *Service) {
		if p == SessionLatest {
			s.policy = SessionLatest
		} else {
			s.policy = SessionEarliest
		}
	}
}

func WithBenchmarkConstants(c calibration.BenchmarkConstants) Option {
	return func(s *Service) { s.constants = c }
}

func NewService(sessions SessionStore, readings ReadingStore, models ModelStore, params ParameterStore, logger *log.Logger, opts ...Option) (*Service, error) {
	if sessions == nil {
		return nil, errors.New("calibration service: nil session store")
	}
	if readings == nil {
		return nil, errors.New("calibration service: nil reading store")
	}
	if models == nil {
		return nil, errors.New("calibration service: nil model store")
	}
	if params == nil {
		return nil, errors.New("calibration service: nil parameter store")
	}
	if logger == nil {
		logger = log.Default()
	}
	s := &Service{
		sessions:  sessions,
		readings:  readings,
		models:    models,
		params:    params,
		policy:    SessionEarliest,
		constants: calibration.DefaultBenchmarkConstants(),
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// IngestReadings stores a batch of session readings and refits every
// purpose that has enough paired data. Purposes without data are skipped,
// not failed: a sea-trial workbook rarely carries all three.
func (s *Service) IngestReadings(ctx context.Context, vesselID, sessionName string, readings []calibration.Reading) (calibration.Session, error) {
	if len(readings) == 0 {
		return calibration.Session{}, errors.New("calibration service: empty reading batch")
	}
	session, err := s.sessions.GetOrCreateSession(ctx, vesselID, sessionName, readings[0].Timestamp)
	if err != nil {
		return calibration.Session{}, err
	}
	for _, r := range readings {
		r.SessionID = session.ID
		r.VesselID = vesselID
		if err := s.readings.UpsertReading(ctx, r); err != nil {
			return calibration.Session{}, fmt.Errorf("store reading %s@%s: %w", r.ParameterCode, r.Timestamp.Format(time.RFC3339), err)
		}
	}
	if err := s.FitSession(ctx, session); err != nil {
		return calibration.Session{}, err
	}
	return session, nil
}

// FitSession refits every purpose of one session from its stored readings.
func (s *Service) FitSession(ctx context.Context, session calibration.Session) error {
	for _, purpose := range calibration.Purposes() {
		indep, dep := purpose.VariableCodes()
		pairs, err := s.readings.ListPairs(ctx, session.ID, indep, dep)
		if err != nil {
			return err
		}
		xs := make([]float64, len(pairs))
		ys := make([]float64, len(pairs))
		for i, p := range pairs {
			xs[i] = p.X
			ys[i] = p.Y
		}

		res, err := calibration.FitQuadratic(xs, ys)
		if errors.Is(err, calibration.ErrInsufficientData) || errors.Is(err, calibration.ErrSingularFit) {
			s.logger.Printf("calibration: vessel=%s session=%d purpose=%s not fitted: %v", session.VesselID, session.ID, purpose, err)
			metrics.IncFit(metrics.ResultSkipped)
			continue
		}
		if err != nil {
			return err
		}

		model := calibration.Model{
			VesselID:        session.VesselID,
			SessionID:       session.ID,
			Purpose:         purpose,
			IndependentCode: indep,
			DependentCode:   dep,
			A:               res.A,
			B:               res.B,
			C:               res.C,
			R2:              res.R2,
		}
		if err := s.models.UpsertModel(ctx, model); err != nil {
			metrics.IncFit(metrics.ResultError)
			return err
		}
		metrics.IncFit(metrics.ResultSuccess)
	}
	return nil
}

// Forecast evaluates the vessel's fitted model for a purpose at x. A nil
// result means no session, no model, or no input; none of those is an
// error.
func (s *Service) Forecast(ctx context.Context, vesselID string, purpose calibration.Purpose, x *float64) (*float64, error) {
	if x == nil {
		return nil, nil
	}
	session, err := s.sessions.FindSession(ctx, vesselID, s.policy)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, nil
	}
	model, err := s.models.GetModel(ctx, vesselID, session.ID, purpose)
	if err != nil {
		return nil, err
	}
	if model == nil {
		return nil, nil
	}
	y := model.Evaluate(*x)
	return &y, nil
}

// DeriveBenchmarks runs the benchmark pipeline for one vessel and date:
// power plan from Pmax and shaft rpm, exponent forecast from the plan, and
// power = plan * 10^exponent. Missing preconditions skip the date with a
// logged reason; the three derived values are persisted atomically or not
// at all.
func (s *Service) DeriveBenchmarks(ctx context.Context, vesselID string, date time.Time) (bool, error) {
	pmax, err := s.params.GetValue(ctx, vesselID, date, calibration.CodePmax)
	if err != nil {
		return false, err
	}
	if pmax == nil {
		s.logger.Printf("benchmark: vessel=%s date=%s no pmax reading, skipping", vesselID, date.Format("2006-01-02"))
		return false, nil
	}

	rpm, err := s.params.GetValue(ctx, vesselID, date, calibration.CodeShaftRPM)
	if err != nil {
		return false, err
	}
	if rpm == nil {
		s.logger.Printf("benchmark: vessel=%s date=%s no shaft rpm reading, skipping", vesselID, date.Format("2006-01-02"))
		return false, nil
	}

	plan := s.constants.PowerPlan(*pmax, *rpm)
	if plan <= 0 {
		s.logger.Printf("benchmark: vessel=%s date=%s power plan %v not positive, skipping", vesselID, date.Format("2006-01-02"), plan)
		return false, nil
	}

	exponent, err := s.Forecast(ctx, vesselID, calibration.PurposeExponent, &plan)
	if err != nil {
		return false, err
	}
	if exponent == nil {
		s.logger.Printf("benchmark: vessel=%s date=%s no exponent model, skipping", vesselID, date.Format("2006-01-02"))
		return false, nil
	}

	power := plan * math.Pow(10, *exponent)
	values := []calibration.DerivedValue{
		{ParameterCode: calibration.CodePowerPlan, Value: plan},
		{ParameterCode: calibration.CodeExponent, Value: *exponent},
		{ParameterCode: calibration.CodePower, Value: power},
	}
	if err := s.params.SaveDerived(ctx, vesselID, date, values); err != nil {
		return false, err
	}
	return true, nil
}
