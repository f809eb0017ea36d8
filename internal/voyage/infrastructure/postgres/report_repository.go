package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	voyage "fleetsys/internal/voyage/domain"
)

// ReportRepository persists voyages, reports and their samples.
type ReportRepository struct {
	db *sql.DB
}

// NewReportRepository constructs a repository.
func NewReportRepository(db *sql.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// EnsureVoyage upserts the voyage row and returns it. A fresh voyage gets a
// generated UUID; re-ingest keeps the existing one.
func (r *ReportRepository) EnsureVoyage(ctx context.Context, vesselID string, voyageNumber int) (*voyage.Voyage, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("report repo: nil db")
	}
	if vesselID == "" {
		return nil, voyage.ErrEmptyVesselID
	}
	now := time.Now().UTC()
	row := r.db.QueryRowContext(ctx, `
INSERT INTO voyages (uuid, vessel_id, voyage_number, start_at, end_at, status)
VALUES ($1, $2, $3, $4, $4, 'active')
ON CONFLICT (vessel_id, voyage_number)
DO UPDATE SET status = voyages.status
RETURNING uuid, vessel_id, voyage_number, start_at, end_at, status`,
		uuid.NewString(), vesselID, voyageNumber, now)

	var v voyage.Voyage
	if err := row.Scan(&v.UUID, &v.VesselID, &v.VoyageNumber, &v.Start, &v.End, &v.Status); err != nil {
		return nil, err
	}
	v.Start = v.Start.UTC()
	v.End = v.End.UTC()
	return &v, nil
}

// ReplaceVoyageData wipes and reinserts one voyage's reports and samples in
// a single transaction, so re-ingesting the same workbook is idempotent.
func (r *ReportRepository) ReplaceVoyageData(ctx context.Context, batch voyage.Batch) error {
	if r == nil || r.db == nil {
		return errors.New("report repo: nil db")
	}
	if len(batch.Reports) == 0 {
		return voyage.ErrNoReportsInBatch
	}
	if len(batch.Engine) != len(batch.Reports) {
		return voyage.ErrSampleCountSkewed
	}
	if ts, ok := batch.DuplicateTimestamp(); ok {
		return fmt.Errorf("%w: %s", voyage.ErrDuplicateReport, ts.Format(time.RFC3339))
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	for _, table := range []string{"deck_samples", "engine_samples", "voyage_reports"} {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM `+table+` WHERE vessel_id = $1 AND voyage_number = $2`,
			batch.VesselID, batch.VoyageNumber); err != nil {
			_ = tx.Rollback()
			return err
		}
	}

	reportStmt, err := tx.PrepareContext(ctx, `
INSERT INTO voyage_reports (
	activity_id, vessel_id, voyage_number, trip_label, ts, tz_offset,
	activity, step, duration_min, loc_from, loc_to
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer reportStmt.Close()

	engineStmt, err := tx.PrepareContext(ctx, `
INSERT INTO engine_samples (
	vessel_id, voyage_number, ts,
	me_rpm, me_load, prop_rpm, speed,
	me_flow_in, me_flow_out, me_fo_cons, me_do_cons, me_run_min,
	boiler_fo_cons, boiler_do_cons, aux_do_cons,
	total_fo_cons, total_do_cons,
	fo_rob, fo_supply, fo_correction, fo_supply_type,
	do_rob, do_supply, do_correction, do_supply_type,
	fo_sg, do_sg
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26,$27)`)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer engineStmt.Close()

	for i, report := range batch.Reports {
		if report.Timestamp.IsZero() {
			_ = tx.Rollback()
			return voyage.ErrInvalidTimestamp
		}
		activityID := report.ActivityID
		if activityID == "" {
			activityID = uuid.NewString()
		}
		if _, err := reportStmt.ExecContext(ctx,
			activityID, batch.VesselID, batch.VoyageNumber,
			report.TripLabel, report.Timestamp.UTC(), report.TZOffset,
			report.Activity, report.Step, nullFloat(report.DurationMin),
			nullString(report.LocFrom), nullString(report.LocTo),
		); err != nil {
			_ = tx.Rollback()
			return err
		}

		sample := batch.Engine[i]
		if _, err := engineStmt.ExecContext(ctx,
			batch.VesselID, batch.VoyageNumber, report.Timestamp.UTC(),
			nullFloat(sample.MERPM), nullFloat(sample.MELoad), nullFloat(sample.PropRPM), nullFloat(sample.Speed),
			nullFloat(sample.MEFlowIn), nullFloat(sample.MEFlowOut), nullFloat(sample.MEFOCons), nullFloat(sample.MEDOCons), nullFloat(sample.MERunMin),
			nullFloat(sample.BoilerFOCons), nullFloat(sample.BoilerDOCons), nullFloat(sample.AuxDOCons),
			nullFloat(sample.TotalFOCons), nullFloat(sample.TotalDOCons),
			nullFloat(sample.FOROB), nullFloat(sample.FOSupply), nullFloat(sample.FOCorrection), nullString(sample.FOSupplyType),
			nullFloat(sample.DOROB), nullFloat(sample.DOSupply), nullFloat(sample.DOCorrection), nullString(sample.DOSupplyType),
			nullFloat(sample.FOSG), nullFloat(sample.DOSG),
		); err != nil {
			_ = tx.Rollback()
			return err
		}
	}

	if len(batch.Deck) > 0 {
		deckStmt, err := tx.PrepareContext(ctx, `
INSERT INTO deck_samples (
	vessel_id, voyage_number, ts,
	fw_rob, fw_supply, fw_cons_noon,
	cargo1_rob, cargo1_type, cargo2_rob, cargo2_type, ballast,
	draft_fore, draft_mid, draft_aft,
	dist_lastport, dist_24h, dist_togo,
	speed_log, speed_gps,
	lat_degree, lat_decimal, lat_quad, lon_degree, lon_decimal, lon_quad, coord_notes,
	wind_dir, wind_speed, wave_height, remarks
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26,$27,$28,$29,$30)`)
		if err != nil {
			_ = tx.Rollback()
			return err
		}
		defer deckStmt.Close()

		for _, deck := range batch.Deck {
			if deck.Timestamp.IsZero() {
				continue
			}
			if _, err := deckStmt.ExecContext(ctx,
				batch.VesselID, batch.VoyageNumber, deck.Timestamp.UTC(),
				nullFloat(deck.FWROB), nullFloat(deck.FWSupply), nullFloat(deck.FWConsNoon),
				nullFloat(deck.Cargo1ROB), nullString(deck.Cargo1Type), nullFloat(deck.Cargo2ROB), nullString(deck.Cargo2Type), nullFloat(deck.Ballast),
				nullFloat(deck.DraftFore), nullFloat(deck.DraftMid), nullFloat(deck.DraftAft),
				nullFloat(deck.DistLastPort), nullFloat(deck.Dist24Hours), nullFloat(deck.DistToGo),
				nullFloat(deck.SpeedLog), nullFloat(deck.SpeedGPS),
				nullFloat(deck.LatDegree), nullFloat(deck.LatDecimal), nullString(deck.LatQuad),
				nullFloat(deck.LonDegree), nullFloat(deck.LonDecimal), nullString(deck.LonQuad), nullString(deck.CoordNotes),
				nullString(deck.WindDir), nullFloat(deck.WindSpeed), nullFloat(deck.WaveHeight), nullString(deck.Remarks),
			); err != nil {
				_ = tx.Rollback()
				return err
			}
		}
	}

	return tx.Commit()
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullString(v string) sql.NullString {
	if v == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: v, Valid: true}
}
