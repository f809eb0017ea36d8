package postgres

import (
	"context"
	"database/sql"
	"errors"

	performance "fleetsys/internal/performance/domain"
)

// SegmentRepository persists derived performance segments.
type SegmentRepository struct {
	db *sql.DB
}

// NewSegmentRepository constructs a repository.
func NewSegmentRepository(db *sql.DB) *SegmentRepository {
	return &SegmentRepository{db: db}
}

// ReplaceVoyageSegments wipes and reinserts all segments of a voyage in one
// transaction. Derived rows carry no independent truth, so replace-all keeps
// reprocessing idempotent.
func (r *SegmentRepository) ReplaceVoyageSegments(ctx context.Context, vesselID string, voyageNumber int, segments []performance.Segment) error {
	if r == nil || r.db == nil {
		return errors.New("segment repo: nil db")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
DELETE FROM performance_segments
WHERE vessel_id = $1 AND voyage_number = $2`, vesselID, voyageNumber); err != nil {
		_ = tx.Rollback()
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO performance_segments (
	vessel_id, voyage_number, activity, start_at, end_at,
	fo_cons_kl, do_cons_kl, duration_min
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, segment := range segments {
		if _, err := stmt.ExecContext(ctx,
			segment.VesselID, segment.VoyageNumber, segment.Activity,
			segment.Start.UTC(), segment.End.UTC(),
			segment.FOConsKL, segment.DOConsKL, segment.DurationMin,
		); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// ListVoyageSegments returns segments of one voyage in start order.
func (r *SegmentRepository) ListVoyageSegments(ctx context.Context, vesselID string, voyageNumber int) ([]performance.Segment, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("segment repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT vessel_id, voyage_number, activity, start_at, end_at,
	fo_cons_kl, do_cons_kl, duration_min
FROM performance_segments
WHERE vessel_id = $1 AND voyage_number = $2
ORDER BY start_at ASC`, vesselID, voyageNumber)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []performance.Segment
	for rows.Next() {
		var s performance.Segment
		if err := rows.Scan(&s.VesselID, &s.VoyageNumber, &s.Activity, &s.Start, &s.End,
			&s.FOConsKL, &s.DOConsKL, &s.DurationMin); err != nil {
			return nil, err
		}
		s.Start = s.Start.UTC()
		s.End = s.End.UTC()
		result = append(result, s)
	}
	return result, rows.Err()
}
