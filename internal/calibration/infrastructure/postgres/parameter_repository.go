package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	calibration "fleetsys/internal/calibration/domain"
)

// ParameterRepository holds the generic (vessel, date, parameter, value)
// facts plus the benchmark records derived from them.
type ParameterRepository struct {
	db *sql.DB
}

func NewParameterRepository(db *sql.DB) (*ParameterRepository, error) {
	if db == nil {
		return nil, errors.New("parameter repository: nil db")
	}
	return &ParameterRepository{db: db}, nil
}

func (r *ParameterRepository) GetValue(ctx context.Context, vesselID string, date time.Time, parameterCode string) (*float64, error) {
	const q = `
SELECT value FROM parameter_values
WHERE vessel_id = $1 AND reading_date = $2 AND parameter_code = $3`
	var v sql.NullFloat64
	err := r.db.QueryRowContext(ctx, q, vesselID, dateOnly(date), parameterCode).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && !v.Valid) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get parameter value: %w", err)
	}
	out := v.Float64
	return &out, nil
}

func (r *ParameterRepository) UpsertValue(ctx context.Context, vesselID string, date time.Time, parameterCode string, value float64) error {
	const q = `
INSERT INTO parameter_values (vessel_id, reading_date, parameter_code, value)
VALUES ($1, $2, $3, $4)
ON CONFLICT (vessel_id, reading_date, parameter_code) DO UPDATE SET
    value = EXCLUDED.value,
    updated_at = NOW()`
	if _, err := r.db.ExecContext(ctx, q, vesselID, dateOnly(date), parameterCode, value); err != nil {
		return fmt.Errorf("upsert parameter value: %w", err)
	}
	return nil
}

// SaveDerived writes the benchmark outputs in one transaction: each derived
// value becomes a parameter_values row and a benchmark_records row with a
// null difference. Either all values land or none do.
func (r *ParameterRepository) SaveDerived(ctx context.Context, vesselID string, date time.Time, values []calibration.DerivedValue) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin derived save: %w", err)
	}
	defer tx.Rollback()

	const upsertValue = `
INSERT INTO parameter_values (vessel_id, reading_date, parameter_code, value)
VALUES ($1, $2, $3, $4)
ON CONFLICT (vessel_id, reading_date, parameter_code) DO UPDATE SET
    value = EXCLUDED.value,
    updated_at = NOW()
RETURNING id`
	const upsertBenchmark = `
INSERT INTO benchmark_records (parameter_value_id, benchmark_value, difference)
VALUES ($1, $2, NULL)
ON CONFLICT (parameter_value_id) DO UPDATE SET
    benchmark_value = EXCLUDED.benchmark_value,
    difference = NULL,
    updated_at = NOW()`

	for _, v := range values {
		var id int64
		if err := tx.QueryRowContext(ctx, upsertValue, vesselID, dateOnly(date), v.ParameterCode, v.Value).Scan(&id); err != nil {
			return fmt.Errorf("upsert derived %s: %w", v.ParameterCode, err)
		}
		if _, err := tx.ExecContext(ctx, upsertBenchmark, id, v.Value); err != nil {
			return fmt.Errorf("upsert benchmark %s: %w", v.ParameterCode, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit derived save: %w", err)
	}
	return nil
}

// ListVesselDates returns the dates for which a vessel has the given
// parameter on record, oldest first. The backfill tool walks these.
func (r *ParameterRepository) ListVesselDates(ctx context.Context, vesselID, parameterCode string) ([]time.Time, error) {
	const q = `
SELECT reading_date FROM parameter_values
WHERE vessel_id = $1 AND parameter_code = $2 AND value IS NOT NULL
ORDER BY reading_date ASC`
	rows, err := r.db.QueryContext(ctx, q, vesselID, parameterCode)
	if err != nil {
		return nil, fmt.Errorf("list vessel dates: %w", err)
	}
	defer rows.Close()

	var out []time.Time
	for rows.Next() {
		var d time.Time
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("scan date: %w", err)
		}
		out = append(out, d.UTC())
	}
	return out, rows.Err()
}

func dateOnly(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
