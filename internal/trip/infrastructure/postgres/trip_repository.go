package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	trip "fleetsys/internal/trip/domain"
	voyage "fleetsys/internal/voyage/domain"
)

// TripRepository persists resolved trips and their fuel balances.
type TripRepository struct {
	db *sql.DB
}

func NewTripRepository(db *sql.DB) (*TripRepository, error) {
	if db == nil {
		return nil, errors.New("trip repository: nil db")
	}
	return &TripRepository{db: db}, nil
}

func (r *TripRepository) UpsertTrip(ctx context.Context, t trip.Trip) error {
	const q = `
INSERT INTO trips (vessel_id, voyage_number, trip_number, start_ts, end_ts, open_ended, duration_min)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (vessel_id, voyage_number, trip_number) DO UPDATE SET
    start_ts = EXCLUDED.start_ts,
    end_ts = EXCLUDED.end_ts,
    open_ended = EXCLUDED.open_ended,
    duration_min = EXCLUDED.duration_min,
    updated_at = NOW()`
	if _, err := r.db.ExecContext(ctx, q,
		t.VesselID, t.VoyageNumber, t.Number, t.Start.UTC(), t.End.UTC(), t.OpenEnded, t.DurationMin,
	); err != nil {
		return fmt.Errorf("upsert trip: %w", err)
	}
	return nil
}

func (r *TripRepository) UpsertFuelBalance(ctx context.Context, b trip.FuelBalance) error {
	const q = `
INSERT INTO fuel_balances (vessel_id, voyage_number, trip_number, fuel,
    start_rob, end_rob, supply_qty, correction_qty, flowmeter_cons, sounding_cons)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (vessel_id, voyage_number, trip_number, fuel) DO UPDATE SET
    start_rob = EXCLUDED.start_rob,
    end_rob = EXCLUDED.end_rob,
    supply_qty = EXCLUDED.supply_qty,
    correction_qty = EXCLUDED.correction_qty,
    flowmeter_cons = EXCLUDED.flowmeter_cons,
    sounding_cons = EXCLUDED.sounding_cons,
    updated_at = NOW()`
	if _, err := r.db.ExecContext(ctx, q,
		b.VesselID, b.VoyageNumber, b.TripNumber, string(b.Fuel),
		nullFloat(b.StartROB), nullFloat(b.EndROB),
		b.SupplyQty, b.CorrectionQty, b.FlowmeterCons, b.SoundingCons,
	); err != nil {
		return fmt.Errorf("upsert fuel balance: %w", err)
	}
	return nil
}

// ListVoyageTrips returns the resolved trips of a voyage ordered by number.
func (r *TripRepository) ListVoyageTrips(ctx context.Context, vesselID string, voyageNumber int) ([]trip.Trip, error) {
	const q = `
SELECT vessel_id, voyage_number, trip_number, start_ts, end_ts, open_ended, duration_min
FROM trips
WHERE vessel_id = $1 AND voyage_number = $2
ORDER BY trip_number ASC`
	rows, err := r.db.QueryContext(ctx, q, vesselID, voyageNumber)
	if err != nil {
		return nil, fmt.Errorf("list trips: %w", err)
	}
	defer rows.Close()

	var out []trip.Trip
	for rows.Next() {
		var t trip.Trip
		if err := rows.Scan(&t.VesselID, &t.VoyageNumber, &t.Number, &t.Start, &t.End, &t.OpenEnded, &t.DurationMin); err != nil {
			return nil, fmt.Errorf("scan trip: %w", err)
		}
		t.Start = t.Start.UTC()
		t.End = t.End.UTC()
		out = append(out, t)
	}
	return out, rows.Err()
}

// ListTripBalances returns the fuel balances of a voyage ordered by trip
// number then fuel type.
func (r *TripRepository) ListTripBalances(ctx context.Context, vesselID string, voyageNumber int) ([]trip.FuelBalance, error) {
	const q = `
SELECT vessel_id, voyage_number, trip_number, fuel,
       start_rob, end_rob, supply_qty, correction_qty, flowmeter_cons, sounding_cons
FROM fuel_balances
WHERE vessel_id = $1 AND voyage_number = $2
ORDER BY trip_number ASC, fuel ASC`
	rows, err := r.db.QueryContext(ctx, q, vesselID, voyageNumber)
	if err != nil {
		return nil, fmt.Errorf("list fuel balances: %w", err)
	}
	defer rows.Close()

	var out []trip.FuelBalance
	for rows.Next() {
		var (
			b        trip.FuelBalance
			fuel     string
			startROB sql.NullFloat64
			endROB   sql.NullFloat64
		)
		if err := rows.Scan(&b.VesselID, &b.VoyageNumber, &b.TripNumber, &fuel,
			&startROB, &endROB, &b.SupplyQty, &b.CorrectionQty, &b.FlowmeterCons, &b.SoundingCons); err != nil {
			return nil, fmt.Errorf("scan fuel balance: %w", err)
		}
		b.Fuel = voyage.FuelType(fuel)
		if startROB.Valid {
			v := startROB.Float64
			b.StartROB = &v
		}
		if endROB.Valid {
			v := endROB.Float64
			b.EndROB = &v
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}
