package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	voyage "fleetsys/internal/voyage/domain"
)

// VoyageQuery reads voyages and their report stream.
type VoyageQuery struct {
	db *sql.DB
}

// NewVoyageQuery constructs a query reader.
func NewVoyageQuery(db *sql.DB) *VoyageQuery {
	return &VoyageQuery{db: db}
}

// GetVoyage fetches one voyage, nil when absent.
func (q *VoyageQuery) GetVoyage(ctx context.Context, vesselID string, voyageNumber int) (*voyage.Voyage, error) {
	if q == nil || q.db == nil {
		return nil, errors.New("voyage query: nil db")
	}
	row := q.db.QueryRowContext(ctx, `
SELECT uuid, vessel_id, voyage_number, start_at, end_at, status
FROM voyages
WHERE vessel_id = $1 AND voyage_number = $2
LIMIT 1`, vesselID, voyageNumber)

	var v voyage.Voyage
	err := row.Scan(&v.UUID, &v.VesselID, &v.VoyageNumber, &v.Start, &v.End, &v.Status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	v.Start = v.Start.UTC()
	v.End = v.End.UTC()
	return &v, nil
}

// ListVoyages returns every known (vessel, voyage) pair, oldest first.
func (q *VoyageQuery) ListVoyages(ctx context.Context) ([]voyage.Voyage, error) {
	if q == nil || q.db == nil {
		return nil, errors.New("voyage query: nil db")
	}
	rows, err := q.db.QueryContext(ctx, `
SELECT uuid, vessel_id, voyage_number, start_at, end_at, status
FROM voyages
ORDER BY vessel_id ASC, voyage_number ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []voyage.Voyage
	for rows.Next() {
		var v voyage.Voyage
		if err := rows.Scan(&v.UUID, &v.VesselID, &v.VoyageNumber, &v.Start, &v.End, &v.Status); err != nil {
			return nil, err
		}
		v.Start = v.Start.UTC()
		v.End = v.End.UTC()
		result = append(result, v)
	}
	return result, rows.Err()
}

// ListReports returns the report stream in timestamp order. Ties keep
// insertion order via the serial id, since the source data carries no
// secondary ordering key.
func (q *VoyageQuery) ListReports(ctx context.Context, vesselID string, voyageNumber int) ([]voyage.Report, error) {
	if q == nil || q.db == nil {
		return nil, errors.New("voyage query: nil db")
	}
	rows, err := q.db.QueryContext(ctx, `
SELECT activity_id, vessel_id, voyage_number, trip_label, ts, tz_offset,
	activity, step, duration_min, loc_from, loc_to
FROM voyage_reports
WHERE vessel_id = $1 AND voyage_number = $2
ORDER BY ts ASC, id ASC`, vesselID, voyageNumber)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []voyage.Report
	for rows.Next() {
		var r voyage.Report
		var duration sql.NullFloat64
		var locFrom, locTo sql.NullString
		if err := rows.Scan(&r.ActivityID, &r.VesselID, &r.VoyageNumber, &r.TripLabel, &r.Timestamp,
			&r.TZOffset, &r.Activity, &r.Step, &duration, &locFrom, &locTo); err != nil {
			return nil, err
		}
		r.Timestamp = r.Timestamp.UTC()
		if duration.Valid {
			v := duration.Float64
			r.DurationMin = &v
		}
		r.LocFrom = locFrom.String
		r.LocTo = locTo.String
		result = append(result, r)
	}
	return result, rows.Err()
}

// ListEngineSamples returns engine samples joined with their report's
// timestamp, trip label and activity, in stream order.
func (q *VoyageQuery) ListEngineSamples(ctx context.Context, vesselID string, voyageNumber int) ([]voyage.EngineSample, error) {
	return q.listEngineSamples(ctx, vesselID, voyageNumber, time.Time{}, nil)
}

// ListEngineSamplesBetween returns the samples with report timestamp in
// [from, to]; a nil "to" leaves the interval open-ended.
func (q *VoyageQuery) ListEngineSamplesBetween(ctx context.Context, vesselID string, voyageNumber int, from time.Time, to *time.Time) ([]voyage.EngineSample, error) {
	return q.listEngineSamples(ctx, vesselID, voyageNumber, from, to)
}

func (q *VoyageQuery) listEngineSamples(ctx context.Context, vesselID string, voyageNumber int, from time.Time, to *time.Time) ([]voyage.EngineSample, error) {
	if q == nil || q.db == nil {
		return nil, errors.New("voyage query: nil db")
	}
	query := `
SELECT r.ts, r.trip_label, r.activity,
	s.me_rpm, s.me_load, s.prop_rpm, s.speed,
	s.me_flow_in, s.me_flow_out, s.me_fo_cons, s.me_do_cons, s.me_run_min,
	s.boiler_fo_cons, s.boiler_do_cons, s.aux_do_cons,
	s.total_fo_cons, s.total_do_cons,
	s.fo_rob, s.fo_supply, s.fo_correction, s.fo_supply_type,
	s.do_rob, s.do_supply, s.do_correction, s.do_supply_type,
	s.fo_sg, s.do_sg
FROM engine_samples s
JOIN voyage_reports r
	ON r.vessel_id = s.vessel_id AND r.voyage_number = s.voyage_number AND r.ts = s.ts
WHERE s.vessel_id = $1 AND s.voyage_number = $2`
	args := []any{vesselID, voyageNumber}
	if !from.IsZero() {
		query += ` AND r.ts >= $3`
		args = append(args, from)
		if to != nil {
			query += ` AND r.ts <= $4`
			args = append(args, *to)
		}
	}
	query += ` ORDER BY r.ts ASC, r.id ASC`

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []voyage.EngineSample
	for rows.Next() {
		sample, err := scanEngineSample(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, sample)
	}
	return result, rows.Err()
}

// FindBoundary returns the earliest report timestamp whose trip label
// matches case-insensitively, nil when the label never occurs.
func (q *VoyageQuery) FindBoundary(ctx context.Context, vesselID string, voyageNumber int, label string) (*time.Time, error) {
	if q == nil || q.db == nil {
		return nil, errors.New("voyage query: nil db")
	}
	row := q.db.QueryRowContext(ctx, `
SELECT ts
FROM voyage_reports
WHERE vessel_id = $1 AND voyage_number = $2 AND LOWER(trip_label) = LOWER($3)
ORDER BY ts ASC
LIMIT 1`, vesselID, voyageNumber, label)

	var ts time.Time
	if err := row.Scan(&ts); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	ts = ts.UTC()
	return &ts, nil
}

// ListBoundaryLabels returns the trip labels carrying the boundary suffix
// for one voyage, in stream order.
func (q *VoyageQuery) ListBoundaryLabels(ctx context.Context, vesselID string, voyageNumber int, suffix string) ([]string, error) {
	if q == nil || q.db == nil {
		return nil, errors.New("voyage query: nil db")
	}
	rows, err := q.db.QueryContext(ctx, `
SELECT trip_label
FROM voyage_reports
WHERE vessel_id = $1 AND voyage_number = $2 AND LOWER(trip_label) LIKE '%' || LOWER($3)
ORDER BY ts ASC`, vesselID, voyageNumber, suffix)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var labels []string
	for rows.Next() {
		var label string
		if err := rows.Scan(&label); err != nil {
			return nil, err
		}
		labels = append(labels, label)
	}
	return labels, rows.Err()
}

// ListDeckSamples returns deck samples keyed by report timestamp.
func (q *VoyageQuery) ListDeckSamples(ctx context.Context, vesselID string, voyageNumber int) (map[time.Time]voyage.DeckSample, error) {
	if q == nil || q.db == nil {
		return nil, errors.New("voyage query: nil db")
	}
	rows, err := q.db.QueryContext(ctx, `
SELECT ts, fw_rob, fw_supply, fw_cons_noon,
	cargo1_rob, cargo1_type, cargo2_rob, cargo2_type, ballast,
	draft_fore, draft_mid, draft_aft,
	dist_lastport, dist_24h, dist_togo,
	speed_log, speed_gps,
	lat_degree, lat_decimal, lat_quad, lon_degree, lon_decimal, lon_quad, coord_notes,
	wind_dir, wind_speed, wave_height, remarks
FROM deck_samples
WHERE vessel_id = $1 AND voyage_number = $2
ORDER BY ts ASC`, vesselID, voyageNumber)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[time.Time]voyage.DeckSample)
	for rows.Next() {
		var d voyage.DeckSample
		var (
			fwROB, fwSupply, fwConsNoon                 sql.NullFloat64
			cargo1ROB, cargo2ROB, ballast               sql.NullFloat64
			cargo1Type, cargo2Type                      sql.NullString
			draftFore, draftMid, draftAft               sql.NullFloat64
			distLastPort, dist24h, distToGo             sql.NullFloat64
			speedLog, speedGPS                          sql.NullFloat64
			latDeg, latDec, lonDeg, lonDec              sql.NullFloat64
			latQuad, lonQuad, coordNotes, windDir       sql.NullString
			windSpeed, waveHeight                       sql.NullFloat64
			remarks                                     sql.NullString
		)
		if err := rows.Scan(&d.Timestamp, &fwROB, &fwSupply, &fwConsNoon,
			&cargo1ROB, &cargo1Type, &cargo2ROB, &cargo2Type, &ballast,
			&draftFore, &draftMid, &draftAft,
			&distLastPort, &dist24h, &distToGo,
			&speedLog, &speedGPS,
			&latDeg, &latDec, &latQuad, &lonDeg, &lonDec, &lonQuad, &coordNotes,
			&windDir, &windSpeed, &waveHeight, &remarks); err != nil {
			return nil, err
		}
		d.Timestamp = d.Timestamp.UTC()
		d.FWROB = floatPtr(fwROB)
		d.FWSupply = floatPtr(fwSupply)
		d.FWConsNoon = floatPtr(fwConsNoon)
		d.Cargo1ROB = floatPtr(cargo1ROB)
		d.Cargo1Type = cargo1Type.String
		d.Cargo2ROB = floatPtr(cargo2ROB)
		d.Cargo2Type = cargo2Type.String
		d.Ballast = floatPtr(ballast)
		d.DraftFore = floatPtr(draftFore)
		d.DraftMid = floatPtr(draftMid)
		d.DraftAft = floatPtr(draftAft)
		d.DistLastPort = floatPtr(distLastPort)
		d.Dist24Hours = floatPtr(dist24h)
		d.DistToGo = floatPtr(distToGo)
		d.SpeedLog = floatPtr(speedLog)
		d.SpeedGPS = floatPtr(speedGPS)
		d.LatDegree = floatPtr(latDeg)
		d.LatDecimal = floatPtr(latDec)
		d.LatQuad = latQuad.String
		d.LonDegree = floatPtr(lonDeg)
		d.LonDecimal = floatPtr(lonDec)
		d.LonQuad = lonQuad.String
		d.CoordNotes = coordNotes.String
		d.WindDir = windDir.String
		d.WindSpeed = floatPtr(windSpeed)
		d.WaveHeight = floatPtr(waveHeight)
		d.Remarks = remarks.String
		result[d.Timestamp] = d
	}
	return result, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEngineSample(row rowScanner) (voyage.EngineSample, error) {
	var s voyage.EngineSample
	var (
		meRPM, meLoad, propRPM, speed                  sql.NullFloat64
		flowIn, flowOut, meFO, meDO, meRun             sql.NullFloat64
		boilerFO, boilerDO, auxDO                      sql.NullFloat64
		totalFO, totalDO                               sql.NullFloat64
		foROB, foSupply, foCorrection                  sql.NullFloat64
		doROB, doSupply, doCorrection                  sql.NullFloat64
		foSupplyType, doSupplyType                     sql.NullString
		foSG, doSG                                     sql.NullFloat64
	)
	err := row.Scan(&s.Timestamp, &s.TripLabel, &s.Activity,
		&meRPM, &meLoad, &propRPM, &speed,
		&flowIn, &flowOut, &meFO, &meDO, &meRun,
		&boilerFO, &boilerDO, &auxDO,
		&totalFO, &totalDO,
		&foROB, &foSupply, &foCorrection, &foSupplyType,
		&doROB, &doSupply, &doCorrection, &doSupplyType,
		&foSG, &doSG)
	if err != nil {
		return voyage.EngineSample{}, err
	}
	s.Timestamp = s.Timestamp.UTC()
	s.MERPM = floatPtr(meRPM)
	s.MELoad = floatPtr(meLoad)
	s.PropRPM = floatPtr(propRPM)
	s.Speed = floatPtr(speed)
	s.MEFlowIn = floatPtr(flowIn)
	s.MEFlowOut = floatPtr(flowOut)
	s.MEFOCons = floatPtr(meFO)
	s.MEDOCons = floatPtr(meDO)
	s.MERunMin = floatPtr(meRun)
	s.BoilerFOCons = floatPtr(boilerFO)
	s.BoilerDOCons = floatPtr(boilerDO)
	s.AuxDOCons = floatPtr(auxDO)
	s.TotalFOCons = floatPtr(totalFO)
	s.TotalDOCons = floatPtr(totalDO)
	s.FOROB = floatPtr(foROB)
	s.FOSupply = floatPtr(foSupply)
	s.FOCorrection = floatPtr(foCorrection)
	s.FOSupplyType = foSupplyType.String
	s.DOROB = floatPtr(doROB)
	s.DOSupply = floatPtr(doSupply)
	s.DOCorrection = floatPtr(doCorrection)
	s.DOSupplyType = doSupplyType.String
	s.FOSG = floatPtr(foSG)
	s.DOSG = floatPtr(doSG)
	return s, nil
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	value := v.Float64
	return &value
}
