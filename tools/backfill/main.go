package main

import (
	"context"
	"database/sql"
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"

	calapp "fleetsys/internal/calibration/application"
	calibration "fleetsys/internal/calibration/domain"
	calrepo "fleetsys/internal/calibration/infrastructure/postgres"
	perfapp "fleetsys/internal/performance/application"
	perfrepo "fleetsys/internal/performance/infrastructure/postgres"
	"fleetsys/internal/pipeline"
	summaryapp "fleetsys/internal/summary/application"
	summaryrepo "fleetsys/internal/summary/infrastructure/postgres"
	tripapp "fleetsys/internal/trip/application"
	triprepo "fleetsys/internal/trip/infrastructure/postgres"
	voyagerepo "fleetsys/internal/voyage/infrastructure/postgres"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Backfills derived data after schema changes or imports: reruns the
// recompute pipeline for every stored voyage and re-derives daily
// benchmarks for every (vessel, date) with a Pmax reading. Results land in
// a CSV report for review.

type config struct {
	dsn        string
	vessel     string
	recompute  bool
	benchmarks bool
	outPath    string
}

func main() {
	cfg := parseConfig()
	if cfg.dsn == "" {
		log.Fatal("PG_DSN or DATABASE_URL is required")
	}
	if !cfg.recompute && !cfg.benchmarks {
		log.Fatal("nothing to do: enable -recompute or -benchmarks")
	}

	db, err := sql.Open("pgx", cfg.dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	logger := log.New(os.Stdout, "", log.LstdFlags)
	ctx := context.Background()

	out := csv.NewWriter(os.Stdout)
	if cfg.outPath != "" {
		f, err := os.Create(cfg.outPath)
		if err != nil {
			log.Fatalf("create report: %v", err)
		}
		defer f.Close()
		out = csv.NewWriter(f)
	}
	defer out.Flush()
	_ = out.Write([]string{"kind", "vessel_id", "key", "result"})

	if cfg.recompute {
		if err := recomputeVoyages(ctx, db, cfg.vessel, logger, out); err != nil {
			log.Fatalf("recompute: %v", err)
		}
	}
	if cfg.benchmarks {
		if err := backfillBenchmarks(ctx, db, cfg.vessel, logger, out); err != nil {
			log.Fatalf("benchmarks: %v", err)
		}
	}
}

func parseConfig() config {
	cfg := config{}
	flag.StringVar(&cfg.dsn, "dsn", getenvDefault("PG_DSN", os.Getenv("DATABASE_URL")), "postgres dsn")
	flag.StringVar(&cfg.vessel, "vessel", "", "restrict to one vessel id")
	flag.BoolVar(&cfg.recompute, "recompute", true, "rerun the voyage recompute pipeline")
	flag.BoolVar(&cfg.benchmarks, "benchmarks", true, "re-derive daily benchmarks")
	flag.StringVar(&cfg.outPath, "out", "", "CSV report path (default stdout)")
	flag.Parse()
	return cfg
}

func recomputeVoyages(ctx context.Context, db *sql.DB, vessel string, logger *log.Logger, out *csv.Writer) error {
	reportRepo := voyagerepo.NewReportRepository(db)
	voyageQuery := voyagerepo.NewVoyageQuery(db)
	segmentRepo := perfrepo.NewSegmentRepository(db)
	tripRepo, err := triprepo.NewTripRepository(db)
	if err != nil {
		return err
	}
	summaryRepo, err := summaryrepo.NewSummaryRepository(db)
	if err != nil {
		return err
	}
	segmentService, err := perfapp.NewService(voyageQuery, segmentRepo)
	if err != nil {
		return err
	}
	tripService, err := tripapp.NewService(voyageQuery, voyageQuery, tripRepo, logger)
	if err != nil {
		return err
	}
	summaryService, err := summaryapp.NewService(tripRepo, segmentRepo, voyageQuery, summaryRepo, logger)
	if err != nil {
		return err
	}
	pipe, err := pipeline.NewPipeline(reportRepo, voyageQuery, segmentService, tripService, summaryService, nil, logger)
	if err != nil {
		return err
	}

	voyages, err := voyageQuery.ListVoyages(ctx)
	if err != nil {
		return err
	}
	for _, v := range voyages {
		if vessel != "" && v.VesselID != vessel {
			continue
		}
		result := "ok"
		if err := pipe.Recompute(ctx, v.VesselID, v.VoyageNumber); err != nil {
			result = err.Error()
			logger.Printf("recompute vessel=%s voyage=%d: %v", v.VesselID, v.VoyageNumber, err)
		}
		_ = out.Write([]string{"recompute", v.VesselID, strconv.Itoa(v.VoyageNumber), result})
	}
	return nil
}

func backfillBenchmarks(ctx context.Context, db *sql.DB, vessel string, logger *log.Logger, out *csv.Writer) error {
	calibrationRepo, err := calrepo.NewCalibrationRepository(db)
	if err != nil {
		return err
	}
	parameterRepo, err := calrepo.NewParameterRepository(db)
	if err != nil {
		return err
	}
	service, err := calapp.NewService(calibrationRepo, calibrationRepo, calibrationRepo, parameterRepo, logger)
	if err != nil {
		return err
	}

	vessels := []string{vessel}
	if vessel == "" {
		vessels, err = listVessels(ctx, db)
		if err != nil {
			return err
		}
	}

	for _, vesselID := range vessels {
		dates, err := parameterRepo.ListVesselDates(ctx, vesselID, calibration.CodePmax)
		if err != nil {
			return err
		}
		for _, date := range dates {
			result := "skipped"
			derived, err := service.DeriveBenchmarks(ctx, vesselID, date)
			if err != nil {
				result = err.Error()
				logger.Printf("benchmarks vessel=%s date=%s: %v", vesselID, date.Format("2006-01-02"), err)
			} else if derived {
				result = "derived"
			}
			_ = out.Write([]string{"benchmark", vesselID, date.Format("2006-01-02"), result})
		}
	}
	return nil
}

func listVessels(ctx context.Context, db *sql.DB) ([]string, error) {
	rows, err := db.QueryContext(ctx, `
SELECT DISTINCT vessel_id FROM parameter_values
WHERE parameter_code = $1
ORDER BY vessel_id ASC`, calibration.CodePmax)
	if err != nil {
		return nil, fmt.Errorf("list vessels: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}
