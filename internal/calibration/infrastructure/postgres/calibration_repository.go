package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"fleetsys/internal/calibration/application"
	calibration "fleetsys/internal/calibration/domain"
)

// CalibrationRepository persists sessions, readings and fitted models.
type CalibrationRepository struct {
	db *sql.DB
}

func NewCalibrationRepository(db *sql.DB) (*CalibrationRepository, error) {
	if db == nil {
		return nil, errors.New("calibration repository: nil db")
	}
	return &CalibrationRepository{db: db}, nil
}

func (r *CalibrationRepository) GetOrCreateSession(ctx context.Context, vesselID, name string, startDate time.Time) (calibration.Session, error) {
	const q = `
INSERT INTO calibration_sessions (vessel_id, session_name, start_date)
VALUES ($1, $2, $3)
ON CONFLICT (vessel_id, session_name) DO UPDATE SET session_name = EXCLUDED.session_name
RETURNING id, vessel_id, session_name, start_date`
	var s calibration.Session
	if err := r.db.QueryRowContext(ctx, q, vesselID, name, startDate.UTC()).Scan(
		&s.ID, &s.VesselID, &s.Name, &s.StartDate,
	); err != nil {
		return calibration.Session{}, fmt.Errorf("get or create session: %w", err)
	}
	s.StartDate = s.StartDate.UTC()
	return s, nil
}

func (r *CalibrationRepository) FindSession(ctx context.Context, vesselID string, policy application.SessionPolicy) (*calibration.Session, error) {
	order := "ASC"
	if policy == application.SessionLatest {
		order = "DESC"
	}
	q := fmt.Sprintf(`
SELECT id, vessel_id, session_name, start_date
FROM calibration_sessions
WHERE vessel_id = $1
ORDER BY id %s
LIMIT 1`, order)
	var s calibration.Session
	err := r.db.QueryRowContext(ctx, q, vesselID).Scan(&s.ID, &s.VesselID, &s.Name, &s.StartDate)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find session: %w", err)
	}
	s.StartDate = s.StartDate.UTC()
	return &s, nil
}

func (r *CalibrationRepository) UpsertReading(ctx context.Context, reading calibration.Reading) error {
	const q = `
INSERT INTO calibration_readings (session_id, vessel_id, ts, parameter_code, value, displacement)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (session_id, ts, parameter_code) DO UPDATE SET
    value = EXCLUDED.value,
    displacement = EXCLUDED.displacement`
	var displacement sql.NullFloat64
	if reading.Displacement != nil {
		displacement = sql.NullFloat64{Float64: *reading.Displacement, Valid: true}
	}
	if _, err := r.db.ExecContext(ctx, q,
		reading.SessionID, reading.VesselID, reading.Timestamp.UTC(), reading.ParameterCode, reading.Value, displacement,
	); err != nil {
		return fmt.Errorf("upsert reading: %w", err)
	}
	return nil
}

// ListPairs self-joins the session's readings on equal timestamps, yielding
// (independent, dependent) observation pairs for fitting.
func (r *CalibrationRepository) ListPairs(ctx context.Context, sessionID int64, independentCode, dependentCode string) ([]application.Pair, error) {
	const q = `
SELECT rx.value, ry.value
FROM calibration_readings rx
JOIN calibration_readings ry
  ON ry.session_id = rx.session_id AND ry.ts = rx.ts
WHERE rx.session_id = $1 AND rx.parameter_code = $2 AND ry.parameter_code = $3
ORDER BY rx.ts ASC`
	rows, err := r.db.QueryContext(ctx, q, sessionID, independentCode, dependentCode)
	if err != nil {
		return nil, fmt.Errorf("list pairs: %w", err)
	}
	defer rows.Close()

	var out []application.Pair
	for rows.Next() {
		var p application.Pair
		if err := rows.Scan(&p.X, &p.Y); err != nil {
			return nil, fmt.Errorf("scan pair: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *CalibrationRepository) UpsertModel(ctx context.Context, m calibration.Model) error {
	const q = `
INSERT INTO calibration_models (vessel_id, session_id, purpose, independent_code, dependent_code,
    coefficient_a, coefficient_b, coefficient_c, r_squared)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (vessel_id, session_id, purpose) DO UPDATE SET
    independent_code = EXCLUDED.independent_code,
    dependent_code = EXCLUDED.dependent_code,
    coefficient_a = EXCLUDED.coefficient_a,
    coefficient_b = EXCLUDED.coefficient_b,
    coefficient_c = EXCLUDED.coefficient_c,
    r_squared = EXCLUDED.r_squared,
    updated_at = NOW()`
	if _, err := r.db.ExecContext(ctx, q,
		m.VesselID, m.SessionID, string(m.Purpose), m.IndependentCode, m.DependentCode,
		m.A, m.B, m.C, m.R2,
	); err != nil {
		return fmt.Errorf("upsert model: %w", err)
	}
	return nil
}

func (r *CalibrationRepository) GetModel(ctx context.Context, vesselID string, sessionID int64, purpose calibration.Purpose) (*calibration.Model, error) {
	const q = `
SELECT vessel_id, session_id, purpose, independent_code, dependent_code,
       coefficient_a, coefficient_b, coefficient_c, r_squared
FROM calibration_models
WHERE vessel_id = $1 AND session_id = $2 AND purpose = $3`
	var (
		m          calibration.Model
		rowPurpose string
	)
	err := r.db.QueryRowContext(ctx, q, vesselID, sessionID, string(purpose)).Scan(
		&m.VesselID, &m.SessionID, &rowPurpose, &m.IndependentCode, &m.DependentCode,
		&m.A, &m.B, &m.C, &m.R2,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get model: %w", err)
	}
	m.Purpose = calibration.Purpose(rowPurpose)
	return &m, nil
}
