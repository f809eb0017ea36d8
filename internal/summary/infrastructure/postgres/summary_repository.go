package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	summary "fleetsys/internal/summary/domain"
)

// SummaryRepository persists per-voyage rollups.
type SummaryRepository struct {
	db *sql.DB
}

func NewSummaryRepository(db *sql.DB) (*SummaryRepository, error) {
	if db == nil {
		return nil, errors.New("summary repository: nil db")
	}
	return &SummaryRepository{db: db}, nil
}

func (r *SummaryRepository) UpsertSummary(ctx context.Context, s summary.VoyageSummary) error {
	const q = `
INSERT INTO voyage_summaries (vessel_id, voyage_number, trip_count, start_ts, end_ts,
    total_duration_min, total_fo_cons_kl, total_do_cons_kl,
    sailing_duration_min, sailing_fo_cons_kl, sailing_do_cons_kl, distance_nm)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
ON CONFLICT (vessel_id, voyage_number) DO UPDATE SET
    trip_count = EXCLUDED.trip_count,
    start_ts = EXCLUDED.start_ts,
    end_ts = EXCLUDED.end_ts,
    total_duration_min = EXCLUDED.total_duration_min,
    total_fo_cons_kl = EXCLUDED.total_fo_cons_kl,
    total_do_cons_kl = EXCLUDED.total_do_cons_kl,
    sailing_duration_min = EXCLUDED.sailing_duration_min,
    sailing_fo_cons_kl = EXCLUDED.sailing_fo_cons_kl,
    sailing_do_cons_kl = EXCLUDED.sailing_do_cons_kl,
    distance_nm = EXCLUDED.distance_nm,
    updated_at = NOW()`
	if _, err := r.db.ExecContext(ctx, q,
		s.VesselID, s.VoyageNumber, s.TripCount, s.Start.UTC(), s.End.UTC(),
		s.TotalDurationMin, s.TotalFOConsKL, s.TotalDOConsKL,
		s.SailingDurationMin, s.SailingFOConsKL, s.SailingDOConsKL, s.DistanceNM,
	); err != nil {
		return fmt.Errorf("upsert summary: %w", err)
	}
	return nil
}

func (r *SummaryRepository) DeleteSummary(ctx context.Context, vesselID string, voyageNumber int) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM voyage_summaries WHERE vessel_id = $1 AND voyage_number = $2`,
		vesselID, voyageNumber,
	); err != nil {
		return fmt.Errorf("delete summary: %w", err)
	}
	return nil
}

func (r *SummaryRepository) GetSummary(ctx context.Context, vesselID string, voyageNumber int) (*summary.VoyageSummary, error) {
	const q = `
SELECT vessel_id, voyage_number, trip_count, start_ts, end_ts,
       total_duration_min, total_fo_cons_kl, total_do_cons_kl,
       sailing_duration_min, sailing_fo_cons_kl, sailing_do_cons_kl, distance_nm
FROM voyage_summaries
WHERE vessel_id = $1 AND voyage_number = $2`
	var s summary.VoyageSummary
	err := r.db.QueryRowContext(ctx, q, vesselID, voyageNumber).Scan(
		&s.VesselID, &s.VoyageNumber, &s.TripCount, &s.Start, &s.End,
		&s.TotalDurationMin, &s.TotalFOConsKL, &s.TotalDOConsKL,
		&s.SailingDurationMin, &s.SailingFOConsKL, &s.SailingDOConsKL, &s.DistanceNM,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get summary: %w", err)
	}
	s.Start = s.Start.UTC()
	s.End = s.End.UTC()
	return &s, nil
}
