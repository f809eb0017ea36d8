package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// Seeds synthetic voyage data for load and pipeline testing: one voyage per
// (vessel, number) with a report every interval, trip boundaries every
// tripSize reports, engine samples with a declining ROB, and matching deck
// samples.

type config struct {
	dsn           string
	vesselPrefix  string
	vesselCount   int
	voyagesPer    int
	reportsPer    int
	tripSize      int
	startDate     string
	intervalHours int
}

func main() {
	cfg := parseConfig()
	if cfg.dsn == "" {
		log.Fatal("PG_DSN or DATABASE_URL is required")
	}
	if cfg.vesselCount <= 0 || cfg.voyagesPer <= 0 || cfg.reportsPer <= 0 {
		log.Fatal("vessels, voyages and reports must be > 0")
	}
	if cfg.tripSize <= 0 {
		log.Fatal("trip-size must be > 0")
	}

	start, err := time.Parse("2006-01-02", cfg.startDate)
	if err != nil {
		log.Fatalf("invalid start-date: %v", err)
	}

	db, err := sql.Open("pgx", cfg.dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	total := 0
	for v := 0; v < cfg.vesselCount; v++ {
		vesselID := fmt.Sprintf("%s%03d", cfg.vesselPrefix, v+1)
		for n := 1; n <= cfg.voyagesPer; n++ {
			if err := seedVoyage(ctx, db, vesselID, n, start, cfg); err != nil {
				log.Fatalf("seed vessel=%s voyage=%d: %v", vesselID, n, err)
			}
			total++
		}
	}
	log.Printf("seeded %d voyages (%d vessels x %d)", total, cfg.vesselCount, cfg.voyagesPer)
}

func parseConfig() config {
	cfg := config{}
	flag.StringVar(&cfg.dsn, "dsn", getenvDefault("PG_DSN", os.Getenv("DATABASE_URL")), "postgres dsn")
	flag.StringVar(&cfg.vesselPrefix, "vessel-prefix", "vessel-", "vessel id prefix")
	flag.IntVar(&cfg.vesselCount, "vessels", 2, "number of vessels")
	flag.IntVar(&cfg.voyagesPer, "voyages", 1, "voyages per vessel")
	flag.IntVar(&cfg.reportsPer, "reports", 24, "reports per voyage")
	flag.IntVar(&cfg.tripSize, "trip-size", 8, "reports per trip")
	flag.StringVar(&cfg.startDate, "start-date", "2025-01-01", "first report date (YYYY-MM-DD)")
	flag.IntVar(&cfg.intervalHours, "interval-hours", 12, "hours between reports")
	flag.Parse()
	return cfg
}

var activities = []string{"Sailing", "Sailing", "Working", "Anchorage"}

func seedVoyage(ctx context.Context, db *sql.DB, vesselID string, voyageNumber int, start time.Time, cfg config) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
INSERT INTO voyages (uuid, vessel_id, voyage_number, start_at, end_at, status)
VALUES ($1, $2, $3, $4, $4, 'active')
ON CONFLICT (vessel_id, voyage_number) DO NOTHING`,
		uuid.NewString(), vesselID, voyageNumber, start.UTC()); err != nil {
		return err
	}

	for _, table := range []string{"deck_samples", "engine_samples", "voyage_reports"} {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM `+table+` WHERE vessel_id = $1 AND voyage_number = $2`,
			vesselID, voyageNumber); err != nil {
			return err
		}
	}

	interval := time.Duration(cfg.intervalHours) * time.Hour
	foROB := 900.0
	doROB := 120.0
	for i := 0; i < cfg.reportsPer; i++ {
		ts := start.Add(time.Duration(i) * interval).UTC()
		activity := activities[i%len(activities)]
		tripLabel := ""
		if i%cfg.tripSize == 0 {
			tripLabel = fmt.Sprintf("%dB", i/cfg.tripSize+1)
		}

		if _, err := tx.ExecContext(ctx, `
INSERT INTO voyage_reports (
	activity_id, vessel_id, voyage_number, trip_label, ts, tz_offset,
	activity, step, duration_min, loc_from, loc_to
) VALUES ($1,$2,$3,NULLIF($4,''),$5,$6,$7,$8,$9,$10,$11)`,
			uuid.NewString(), vesselID, voyageNumber, tripLabel, ts, 9,
			activity, "noon", float64(cfg.intervalHours*60), "PORT-A", "PORT-B"); err != nil {
			return err
		}

		rpm := 84 + 3*math.Sin(float64(i))
		foCons := 8 + math.Sin(float64(i))
		foROB -= foCons
		doCons := 0.8
		doROB -= doCons
		if _, err := tx.ExecContext(ctx, `
INSERT INTO engine_samples (
	vessel_id, voyage_number, ts,
	me_rpm, speed, me_flow_in, me_flow_out, me_fo_cons, me_run_min,
	total_fo_cons, total_do_cons,
	fo_rob, fo_supply, fo_correction,
	do_rob, do_supply, do_correction
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,0,0,$13,0,0)`,
			vesselID, voyageNumber, ts,
			rpm, 12.5+math.Sin(float64(i))/2, foCons+0.4, 0.4, foCons, float64(cfg.intervalHours*60),
			foCons, doCons, foROB, doROB); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `
INSERT INTO deck_samples (
	vessel_id, voyage_number, ts,
	fw_rob, cargo1_rob, cargo1_type, dist_24h, speed_gps,
	lat_degree, lat_decimal, lat_quad, lon_degree, lon_decimal, lon_quad
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
			vesselID, voyageNumber, ts,
			180.0, 9000.0, "crude", float64(140+i%20), 12.4,
			34.0, 0.5, "N", 135.0, 0.25, "E"); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}
