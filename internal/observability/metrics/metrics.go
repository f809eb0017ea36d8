package metrics

import (
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "fleet_"

	resultSuccess = "success"
	resultError   = "error"
	resultSkipped = "skipped"
)

var (
	registerOnce sync.Once

	ingestRequests *prometheus.CounterVec
	ingestErrors   *prometheus.CounterVec
	ingestLatency  *prometheus.HistogramVec
	ingestSkipped  prometheus.Counter

	recomputeTotal   *prometheus.CounterVec
	recomputeLatency *prometheus.HistogramVec

	tripsResolved prometheus.Counter

	benchmarkTotal   *prometheus.CounterVec
	benchmarkLatency *prometheus.HistogramVec

	fitTotal *prometheus.CounterVec

	forwardTotal   *prometheus.CounterVec
	forwardRetries prometheus.Counter

	exportTotal   *prometheus.CounterVec
	exportLatency *prometheus.HistogramVec
)

// Init registers observability metrics and DB-backed gauges.
func Init(db *sql.DB, logger *log.Logger) {
	registerOnce.Do(func() {
		ingestRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_requests_total",
				Help: "Total workbook ingest requests by result",
			},
			[]string{"result"},
		)
		ingestErrors = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_errors_total",
				Help: "Total ingest errors by reason",
			},
			[]string{"reason"},
		)
		ingestLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "ingest_latency_seconds",
				Help:    "Workbook ingest latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)
		ingestSkipped = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_skipped_fields_total",
				Help: "Total non-numeric cells coerced to missing during ingest",
			},
		)

		recomputeTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "voyage_recompute_total",
				Help: "Total voyage recompute runs by result",
			},
			[]string{"result"},
		)
		recomputeLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "voyage_recompute_latency_seconds",
				Help:    "Voyage recompute latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		tripsResolved = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "trips_resolved_total",
				Help: "Total trips resolved across recompute runs",
			},
		)

		benchmarkTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "benchmark_runs_total",
				Help: "Total benchmark derivations by result",
			},
			[]string{"result"},
		)
		benchmarkLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "benchmark_latency_seconds",
				Help:    "Benchmark derivation latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		fitTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "calibration_fits_total",
				Help: "Total calibration model fits by result",
			},
			[]string{"result"},
		)

		forwardTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "forward_pushes_total",
				Help: "Total outbound voyage pushes by result",
			},
			[]string{"result"},
		)
		forwardRetries = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "forward_auth_retries_total",
				Help: "Total pushes retried after an expired token",
			},
		)

		exportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "summary_export_total",
				Help: "Total summary export operations by format and result",
			},
			[]string{"format", "result"},
		)
		exportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "summary_export_latency_seconds",
				Help:    "Summary export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format", "result"},
		)

		prometheus.MustRegister(
			ingestRequests,
			ingestErrors,
			ingestLatency,
			ingestSkipped,
			recomputeTotal,
			recomputeLatency,
			tripsResolved,
			benchmarkTotal,
			benchmarkLatency,
			fitTotal,
			forwardTotal,
			forwardRetries,
			exportTotal,
			exportLatency,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// ObserveIngest records ingest request duration and result.
func ObserveIngest(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if ingestRequests != nil {
		ingestRequests.WithLabelValues(result).Inc()
	}
	if ingestLatency != nil {
		ingestLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// IncIngestError increments ingest error counter.
func IncIngestError(reason string) {
	if reason == "" {
		reason = "unknown"
	}
	if ingestErrors != nil {
		ingestErrors.WithLabelValues(reason).Inc()
	}
}

// AddIngestSkippedFields counts cells coerced to missing.
func AddIngestSkippedFields(count int) {
	if count <= 0 {
		return
	}
	if ingestSkipped != nil {
		ingestSkipped.Add(float64(count))
	}
}

// ObserveRecompute records a voyage recompute run.
func ObserveRecompute(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if recomputeTotal != nil {
		recomputeTotal.WithLabelValues(result).Inc()
	}
	if recomputeLatency != nil {
		recomputeLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// AddTripsResolved counts trips resolved in a recompute run.
func AddTripsResolved(count int) {
	if count <= 0 {
		return
	}
	if tripsResolved != nil {
		tripsResolved.Add(float64(count))
	}
}

// ObserveBenchmark records a benchmark derivation.
func ObserveBenchmark(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if benchmarkTotal != nil {
		benchmarkTotal.WithLabelValues(result).Inc()
	}
	if benchmarkLatency != nil {
		benchmarkLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// IncFit increments the model fit counter.
func IncFit(result string) {
	if result == "" {
		result = resultSuccess
	}
	if fitTotal != nil {
		fitTotal.WithLabelValues(result).Inc()
	}
}

// IncForward increments the outbound push counter.
func IncForward(result string) {
	if result == "" {
		result = resultSuccess
	}
	if forwardTotal != nil {
		forwardTotal.WithLabelValues(result).Inc()
	}
}

// IncForwardRetry counts a push retried after token refresh.
func IncForwardRetry() {
	if forwardRetries != nil {
		forwardRetries.Inc()
	}
}

// ObserveExport records export latency and result.
func ObserveExport(format, result string, duration time.Duration) {
	if format == "" {
		format = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if exportTotal != nil {
		exportTotal.WithLabelValues(format, result).Inc()
	}
	if exportLatency != nil {
		exportLatency.WithLabelValues(format, result).Observe(duration.Seconds())
	}
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError
	ResultSkipped = resultSkipped
)
