package metrics

import (
	"context"
	"database/sql"
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// registerDBMetrics exposes row counts for the core tables as gauges.
// Each gauge runs a COUNT query at scrape time, so scrape intervals
// below a few seconds are not recommended.
func registerDBMetrics(db *sql.DB, logger *log.Logger) {
	gauges := []struct {
		name  string
		help  string
		query string
	}{
		{
			name:  metricPrefix + "voyages_total",
			help:  "Number of voyages currently stored",
			query: `SELECT COUNT(*) FROM voyages`,
		},
		{
			name:  metricPrefix + "voyage_reports_total",
			help:  "Number of voyage report rows currently stored",
			query: `SELECT COUNT(*) FROM voyage_reports`,
		},
		{
			name:  metricPrefix + "trips_open_total",
			help:  "Number of trips without a closing boundary",
			query: `SELECT COUNT(*) FROM trips WHERE open_ended`,
		},
		{
			name:  metricPrefix + "calibration_models_total",
			help:  "Number of fitted calibration models",
			query: `SELECT COUNT(*) FROM calibration_models`,
		},
		{
			name:  metricPrefix + "benchmark_records_total",
			help:  "Number of benchmark records",
			query: `SELECT COUNT(*) FROM benchmark_records`,
		},
	}

	for _, g := range gauges {
		query := g.query
		prometheus.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: g.name,
				Help: g.help,
			},
			func() float64 {
				return queryCount(db, logger, query)
			},
		))
	}
}

func queryCount(db *sql.DB, logger *log.Logger, query string) float64 {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var n int64
	if err := db.QueryRowContext(ctx, query).Scan(&n); err != nil {
		if logger != nil {
			logger.Printf("metrics: count query failed: %v", err)
		}
		return 0
	}
	return float64(n)
}
