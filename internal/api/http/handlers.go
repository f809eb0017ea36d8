package apihttp

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"fleetsys/internal/audit"
	"fleetsys/internal/auth"
	calapp "fleetsys/internal/calibration/application"
	calibration "fleetsys/internal/calibration/domain"
	seatrial "fleetsys/internal/calibration/interfaces/excel"
	"fleetsys/internal/observability/metrics"
	"fleetsys/internal/pipeline"
	summarypg "fleetsys/internal/summary/infrastructure/postgres"
	summaryexport "fleetsys/internal/summary/interfaces"
	trippg "fleetsys/internal/trip/infrastructure/postgres"
	voyageexcel "fleetsys/internal/voyage/interfaces/excel"
)

const (
	dateLayout = "2006-01-02"

	// Workbook uploads beyond this size are rejected outright.
	maxUploadBytes = 32 << 20
)

// IngestVoyageHandler accepts a voyage workbook upload and runs the full
// ingest pipeline.
type IngestVoyageHandler struct {
	pipeline *pipeline.Pipeline
	audit    audit.Logger
	logger   *log.Logger
}

// NewIngestVoyageHandler constructs an IngestVoyageHandler.
func NewIngestVoyageHandler(p *pipeline.Pipeline, auditLogger audit.Logger, logger *log.Logger) *IngestVoyageHandler {
	if logger == nil {
		logger = log.Default()
	}
	return &IngestVoyageHandler{pipeline: p, audit: auditLogger, logger: logger}
}

// ServeHTTP handles POST /ingest/voyage.
func (h *IngestVoyageHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.pipeline == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}
	started := time.Now()

	body, err := workbookBody(r)
	if err != nil {
		metrics.IncIngestError("upload")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	defer body.Close()

	batch, err := voyageexcel.ParseWorkbook(body)
	if err != nil {
		metrics.IncIngestError("parse")
		metrics.ObserveIngest(metrics.ResultError, time.Since(started))
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	metrics.AddIngestSkippedFields(batch.SkippedFields)

	if err := h.pipeline.IngestBatch(r.Context(), *batch); err != nil {
		metrics.IncIngestError("pipeline")
		metrics.ObserveIngest(metrics.ResultError, time.Since(started))
		h.logger.Printf("ingest: vessel=%s voyage=%d failed: %v", batch.VesselID, batch.VoyageNumber, err)
		http.Error(w, "ingest failed", http.StatusInternalServerError)
		return
	}
	metrics.ObserveIngest(metrics.ResultSuccess, time.Since(started))
	logAudit(r, h.audit, h.logger, "voyage.ingest", batch.VesselID, batch.VoyageNumber)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"vessel_id":      batch.VesselID,
		"voyage_number":  batch.VoyageNumber,
		"reports":        len(batch.Reports),
		"skipped_fields": batch.SkippedFields,
	})
}

// IngestSeatrialHandler accepts a sea-trial workbook and stores its readings,
// refitting the session models.
type IngestSeatrialHandler struct {
	service *calapp.Service
	audit   audit.Logger
	logger  *log.Logger
}

// NewIngestSeatrialHandler constructs an IngestSeatrialHandler.
func NewIngestSeatrialHandler(s *calapp.Service, auditLogger audit.Logger, logger *log.Logger) *IngestSeatrialHandler {
	if logger == nil {
		logger = log.Default()
	}
	return &IngestSeatrialHandler{service: s, audit: auditLogger, logger: logger}
}

// ServeHTTP handles POST /ingest/seatrial.
func (h *IngestSeatrialHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.service == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}

	body, err := workbookBody(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	defer body.Close()

	batch, err := seatrial.ParseWorkbook(body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	session, err := h.service.IngestReadings(r.Context(), batch.VesselID, batch.SessionName, batch.Readings)
	if err != nil {
		h.logger.Printf("seatrial: vessel=%s session=%s failed: %v", batch.VesselID, batch.SessionName, err)
		http.Error(w, "sea-trial ingest failed", http.StatusInternalServerError)
		return
	}

	logAudit(r, h.audit, h.logger, "seatrial.ingest", batch.VesselID, 0)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"vessel_id":     session.VesselID,
		"session_id":    session.ID,
		"session_name":  session.Name,
		"readings":      len(batch.Readings),
		"skipped_cells": batch.SkippedCells,
	})
}

// RecomputeVoyageHandler reruns the derived stages for one voyage.
type RecomputeVoyageHandler struct {
	pipeline *pipeline.Pipeline
	audit    audit.Logger
	logger   *log.Logger
}

// NewRecomputeVoyageHandler constructs a RecomputeVoyageHandler.
func NewRecomputeVoyageHandler(p *pipeline.Pipeline, auditLogger audit.Logger, logger *log.Logger) *RecomputeVoyageHandler {
	if logger == nil {
		logger = log.Default()
	}
	return &RecomputeVoyageHandler{pipeline: p, audit: auditLogger, logger: logger}
}

// ServeHTTP handles POST /api/v1/voyages/recompute.
func (h *RecomputeVoyageHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.pipeline == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}

	vesselID, voyageNumber, err := voyageKey(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	started := time.Now()
	if err := h.pipeline.Recompute(r.Context(), vesselID, voyageNumber); err != nil {
		metrics.ObserveRecompute(metrics.ResultError, time.Since(started))
		http.Error(w, "recompute failed", http.StatusInternalServerError)
		return
	}
	metrics.ObserveRecompute(metrics.ResultSuccess, time.Since(started))
	logAudit(r, h.audit, h.logger, "voyage.recompute", vesselID, voyageNumber)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"vessel_id":     vesselID,
		"voyage_number": voyageNumber,
	})
}

// VoyagesHandler serves voyage listing queries.
type VoyagesHandler struct {
	db *sql.DB
}

// NewVoyagesHandler constructs a VoyagesHandler.
func NewVoyagesHandler(db *sql.DB) *VoyagesHandler {
	return &VoyagesHandler{db: db}
}

// ServeHTTP handles GET /api/v1/voyages.
func (h *VoyagesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.db == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}

	rows, err := queryVoyages(r.Context(), h.db, r.URL.Query().Get("vessel_id"))
	if err != nil {
		http.Error(w, "query voyages error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// VoyageSummaryHandler serves the per-voyage rollup.
type VoyageSummaryHandler struct {
	db *sql.DB
}

// NewVoyageSummaryHandler constructs a VoyageSummaryHandler.
func NewVoyageSummaryHandler(db *sql.DB) *VoyageSummaryHandler {
	return &VoyageSummaryHandler{db: db}
}

// ServeHTTP handles GET /api/v1/voyages/summary.
func (h *VoyageSummaryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.db == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}

	vesselID, voyageNumber, err := voyageKey(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	row, err := querySummary(r.Context(), h.db, vesselID, voyageNumber)
	if err != nil {
		http.Error(w, "query summary error", http.StatusInternalServerError)
		return
	}
	if row == nil {
		http.Error(w, "summary not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, row)
}

// TripsHandler serves trips and their fuel balances for one voyage.
type TripsHandler struct {
	db *sql.DB
}

// NewTripsHandler constructs a TripsHandler.
func NewTripsHandler(db *sql.DB) *TripsHandler {
	return &TripsHandler{db: db}
}

// ServeHTTP handles GET /api/v1/trips.
func (h *TripsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.db == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}

	vesselID, voyageNumber, err := voyageKey(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	trips, err := queryTrips(r.Context(), h.db, vesselID, voyageNumber)
	if err != nil {
		http.Error(w, "query trips error", http.StatusInternalServerError)
		return
	}
	balances, err := queryFuelBalances(r.Context(), h.db, vesselID, voyageNumber)
	if err != nil {
		http.Error(w, "query fuel balances error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"trips":         trips,
		"fuel_balances": balances,
	})
}

// SegmentsHandler serves the derived activity segments of one voyage.
type SegmentsHandler struct {
	db *sql.DB
}

// NewSegmentsHandler constructs a SegmentsHandler.
func NewSegmentsHandler(db *sql.DB) *SegmentsHandler {
	return &SegmentsHandler{db: db}
}

// ServeHTTP handles GET /api/v1/segments.
func (h *SegmentsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.db == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}

	vesselID, voyageNumber, err := voyageKey(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	rows, err := querySegments(r.Context(), h.db, vesselID, voyageNumber)
	if err != nil {
		http.Error(w, "query segments error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// BenchmarksRunHandler derives the daily benchmark triple for one vessel.
type BenchmarksRunHandler struct {
	service *calapp.Service
	audit   audit.Logger
	logger  *log.Logger
}

// NewBenchmarksRunHandler constructs a BenchmarksRunHandler.
func NewBenchmarksRunHandler(s *calapp.Service, auditLogger audit.Logger, logger *log.Logger) *BenchmarksRunHandler {
	if logger == nil {
		logger = log.Default()
	}
	return &BenchmarksRunHandler{service: s, audit: auditLogger, logger: logger}
}

// ServeHTTP handles POST /api/v1/benchmarks/run.
func (h *BenchmarksRunHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.service == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}

	vesselID := r.URL.Query().Get("vessel_id")
	if vesselID == "" {
		http.Error(w, "vessel_id is required", http.StatusBadRequest)
		return
	}
	rawDate := r.URL.Query().Get("date")
	if rawDate == "" {
		http.Error(w, "date is required", http.StatusBadRequest)
		return
	}
	date, err := time.Parse(dateLayout, rawDate)
	if err != nil {
		http.Error(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	started := time.Now()
	derived, err := h.service.DeriveBenchmarks(r.Context(), vesselID, date)
	if err != nil {
		metrics.ObserveBenchmark(metrics.ResultError, time.Since(started))
		http.Error(w, "benchmark derivation failed", http.StatusInternalServerError)
		return
	}
	if derived {
		metrics.ObserveBenchmark(metrics.ResultSuccess, time.Since(started))
	} else {
		metrics.ObserveBenchmark(metrics.ResultSkipped, time.Since(started))
	}

	logAudit(r, h.audit, h.logger, "benchmarks.run", vesselID, 0)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"vessel_id": vesselID,
		"date":      date.Format(dateLayout),
		"derived":   derived,
	})
}

// ForecastHandler evaluates a fitted model at one point.
type ForecastHandler struct {
	service *calapp.Service
}

// NewForecastHandler constructs a ForecastHandler.
func NewForecastHandler(s *calapp.Service) *ForecastHandler {
	return &ForecastHandler{service: s}
}

// ServeHTTP handles GET /api/v1/forecast.
func (h *ForecastHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.service == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}

	vesselID := r.URL.Query().Get("vessel_id")
	if vesselID == "" {
		http.Error(w, "vessel_id is required", http.StatusBadRequest)
		return
	}
	purpose := calibration.Purpose(r.URL.Query().Get("purpose"))
	switch purpose {
	case calibration.PurposeSpeed, calibration.PurposeFuel, calibration.PurposeExponent:
	default:
		http.Error(w, "purpose must be speed, fuel or exponent", http.StatusBadRequest)
		return
	}

	var x *float64
	if raw := r.URL.Query().Get("x"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			http.Error(w, "x must be numeric", http.StatusBadRequest)
			return
		}
		x = &parsed
	}

	value, err := h.service.Forecast(r.Context(), vesselID, purpose, x)
	if err != nil {
		http.Error(w, "forecast error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"vessel_id": vesselID,
		"purpose":   string(purpose),
		"forecast":  value,
	})
}

// ExportVoyageHandler renders the voyage summary as a downloadable document.
type ExportVoyageHandler struct {
	summaries *summarypg.SummaryRepository
	trips     *trippg.TripRepository
	format    string
}

// NewExportVoyageHandler constructs an ExportVoyageHandler for "pdf" or
// "xlsx".
func NewExportVoyageHandler(summaries *summarypg.SummaryRepository, trips *trippg.TripRepository, format string) *ExportVoyageHandler {
	return &ExportVoyageHandler{summaries: summaries, trips: trips, format: format}
}

// ServeHTTP handles GET /api/v1/exports/voyage.pdf and voyage.xlsx.
func (h *ExportVoyageHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.summaries == nil || h.trips == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}

	vesselID, voyageNumber, err := voyageKey(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	started := time.Now()
	s, err := h.summaries.GetSummary(r.Context(), vesselID, voyageNumber)
	if err != nil {
		metrics.ObserveExport(h.format, metrics.ResultError, time.Since(started))
		http.Error(w, "query summary error", http.StatusInternalServerError)
		return
	}
	if s == nil {
		http.Error(w, "summary not found", http.StatusNotFound)
		return
	}
	balances, err := h.trips.ListTripBalances(r.Context(), vesselID, voyageNumber)
	if err != nil {
		metrics.ObserveExport(h.format, metrics.ResultError, time.Since(started))
		http.Error(w, "query fuel balances error", http.StatusInternalServerError)
		return
	}

	var (
		payload     []byte
		contentType string
	)
	switch h.format {
	case "pdf":
		payload, err = summaryexport.BuildSummaryPDF(s, balances)
		contentType = "application/pdf"
	case "xlsx":
		payload, err = summaryexport.BuildSummaryXLSX(s, balances)
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		http.Error(w, "unsupported export format", http.StatusNotFound)
		return
	}
	if err != nil {
		metrics.ObserveExport(h.format, metrics.ResultError, time.Since(started))
		http.Error(w, "export render error", http.StatusInternalServerError)
		return
	}
	metrics.ObserveExport(h.format, metrics.ResultSuccess, time.Since(started))

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition",
		"attachment; filename=voyage_"+vesselID+"_"+strconv.Itoa(voyageNumber)+"."+h.format)
	_, _ = w.Write(payload)
}

// HealthzHandler reports process liveness and DB reachability.
type HealthzHandler struct {
	db *sql.DB
}

// NewHealthzHandler constructs a HealthzHandler.
func NewHealthzHandler(db *sql.DB) *HealthzHandler {
	return &HealthzHandler{db: db}
}

// ServeHTTP handles GET /healthz.
func (h *HealthzHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.db == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.db.PingContext(ctx); err != nil {
		http.Error(w, "db unreachable", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type voyageRow struct {
	UUID         string    `json:"uuid"`
	VesselID     string    `json:"vessel_id"`
	VoyageNumber int       `json:"voyage_number"`
	Start        time.Time `json:"start_at"`
	End          time.Time `json:"end_at"`
	Status       string    `json:"status"`
}

type summaryRow struct {
	VesselID           string    `json:"vessel_id"`
	VoyageNumber       int       `json:"voyage_number"`
	TripCount          int       `json:"trip_count"`
	Start              time.Time `json:"start_ts"`
	End                time.Time `json:"end_ts"`
	TotalDurationMin   float64   `json:"total_duration_min"`
	TotalFOConsKL      float64   `json:"total_fo_cons_kl"`
	TotalDOConsKL      float64   `json:"total_do_cons_kl"`
	SailingDurationMin float64   `json:"sailing_duration_min"`
	SailingFOConsKL    float64   `json:"sailing_fo_cons_kl"`
	SailingDOConsKL    float64   `json:"sailing_do_cons_kl"`
	DistanceNM         float64   `json:"distance_nm"`
}

type tripRow struct {
	VesselID     string    `json:"vessel_id"`
	VoyageNumber int       `json:"voyage_number"`
	TripNumber   int       `json:"trip_number"`
	Start        time.Time `json:"start_ts"`
	End          time.Time `json:"end_ts"`
	OpenEnded    bool      `json:"open_ended"`
	DurationMin  float64   `json:"duration_min"`
}

type fuelBalanceRow struct {
	VesselID      string   `json:"vessel_id"`
	VoyageNumber  int      `json:"voyage_number"`
	TripNumber    int      `json:"trip_number"`
	Fuel          string   `json:"fuel"`
	StartROB      *float64 `json:"start_rob"`
	EndROB        *float64 `json:"end_rob"`
	SupplyQty     float64  `json:"supply_qty"`
	CorrectionQty float64  `json:"correction_qty"`
	FlowmeterCons float64  `json:"flowmeter_cons"`
	SoundingCons  float64  `json:"sounding_cons"`
}

type segmentRow struct {
	VesselID     string    `json:"vessel_id"`
	VoyageNumber int       `json:"voyage_number"`
	Activity     string    `json:"activity"`
	Start        time.Time `json:"start_at"`
	End          time.Time `json:"end_at"`
	FOConsKL     float64   `json:"fo_cons_kl"`
	DOConsKL     float64   `json:"do_cons_kl"`
	DurationMin  float64   `json:"duration_min"`
}

func queryVoyages(ctx context.Context, db *sql.DB, vesselID string) ([]voyageRow, error) {
	query := `
SELECT uuid, vessel_id, voyage_number, start_at, end_at, status
FROM voyages`
	var args []interface{}
	if vesselID != "" {
		query += `
WHERE vessel_id = $1`
		args = append(args, vesselID)
	}
	query += `
ORDER BY vessel_id ASC, voyage_number ASC`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []voyageRow
	for rows.Next() {
		var row voyageRow
		if err := rows.Scan(&row.UUID, &row.VesselID, &row.VoyageNumber,
			&row.Start, &row.End, &row.Status); err != nil {
			return nil, err
		}
		row.Start = row.Start.UTC()
		row.End = row.End.UTC()
		result = append(result, row)
	}
	return result, rows.Err()
}

func querySummary(ctx context.Context, db *sql.DB, vesselID string, voyageNumber int) (*summaryRow, error) {
	row := db.QueryRowContext(ctx, `
SELECT vessel_id, voyage_number, trip_count, start_ts, end_ts,
	total_duration_min, total_fo_cons_kl, total_do_cons_kl,
	sailing_duration_min, sailing_fo_cons_kl, sailing_do_cons_kl, distance_nm
FROM voyage_summaries
WHERE vessel_id = $1 AND voyage_number = $2`, vesselID, voyageNumber)

	var s summaryRow
	err := row.Scan(&s.VesselID, &s.VoyageNumber, &s.TripCount, &s.Start, &s.End,
		&s.TotalDurationMin, &s.TotalFOConsKL, &s.TotalDOConsKL,
		&s.SailingDurationMin, &s.SailingFOConsKL, &s.SailingDOConsKL, &s.DistanceNM)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	s.Start = s.Start.UTC()
	s.End = s.End.UTC()
	return &s, nil
}

func queryTrips(ctx context.Context, db *sql.DB, vesselID string, voyageNumber int) ([]tripRow, error) {
	rows, err := db.QueryContext(ctx, `
SELECT vessel_id, voyage_number, trip_number, start_ts, end_ts, open_ended, duration_min
FROM trips
WHERE vessel_id = $1 AND voyage_number = $2
ORDER BY trip_number ASC`, vesselID, voyageNumber)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []tripRow
	for rows.Next() {
		var row tripRow
		if err := rows.Scan(&row.VesselID, &row.VoyageNumber, &row.TripNumber,
			&row.Start, &row.End, &row.OpenEnded, &row.DurationMin); err != nil {
			return nil, err
		}
		row.Start = row.Start.UTC()
		row.End = row.End.UTC()
		result = append(result, row)
	}
	return result, rows.Err()
}

func queryFuelBalances(ctx context.Context, db *sql.DB, vesselID string, voyageNumber int) ([]fuelBalanceRow, error) {
	rows, err := db.QueryContext(ctx, `
SELECT vessel_id, voyage_number, trip_number, fuel,
	start_rob, end_rob, supply_qty, correction_qty, flowmeter_cons, sounding_cons
FROM fuel_balances
WHERE vessel_id = $1 AND voyage_number = $2
ORDER BY trip_number ASC, fuel ASC`, vesselID, voyageNumber)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []fuelBalanceRow
	for rows.Next() {
		var (
			row      fuelBalanceRow
			startROB sql.NullFloat64
			endROB   sql.NullFloat64
		)
		if err := rows.Scan(&row.VesselID, &row.VoyageNumber, &row.TripNumber, &row.Fuel,
			&startROB, &endROB, &row.SupplyQty, &row.CorrectionQty,
			&row.FlowmeterCons, &row.SoundingCons); err != nil {
			return nil, err
		}
		if startROB.Valid {
			v := startROB.Float64
			row.StartROB = &v
		}
		if endROB.Valid {
			v := endROB.Float64
			row.EndROB = &v
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

func querySegments(ctx context.Context, db *sql.DB, vesselID string, voyageNumber int) ([]segmentRow, error) {
	rows, err := db.QueryContext(ctx, `
SELECT vessel_id, voyage_number, activity, start_at, end_at,
	fo_cons_kl, do_cons_kl, duration_min
FROM performance_segments
WHERE vessel_id = $1 AND voyage_number = $2
ORDER BY start_at ASC`, vesselID, voyageNumber)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []segmentRow
	for rows.Next() {
		var row segmentRow
		if err := rows.Scan(&row.VesselID, &row.VoyageNumber, &row.Activity,
			&row.Start, &row.End, &row.FOConsKL, &row.DOConsKL, &row.DurationMin); err != nil {
			return nil, err
		}
		row.Start = row.Start.UTC()
		row.End = row.End.UTC()
		result = append(result, row)
	}
	return result, rows.Err()
}

// workbookBody returns the uploaded workbook stream, either the "file" part
// of a multipart form or the raw request body.
func workbookBody(r *http.Request) (io.ReadCloser, error) {
	r.Body = http.MaxBytesReader(nil, r.Body, maxUploadBytes)
	contentType := r.Header.Get("Content-Type")
	if contentType == "" || !isMultipart(contentType) {
		return r.Body, nil
	}
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return nil, errors.New("invalid multipart form")
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		return nil, errors.New("file part is required")
	}
	return file, nil
}

func isMultipart(contentType string) bool {
	return len(contentType) >= len("multipart/") && contentType[:len("multipart/")] == "multipart/"
}

func voyageKey(r *http.Request) (string, int, error) {
	vesselID := r.URL.Query().Get("vessel_id")
	if vesselID == "" {
		return "", 0, errors.New("vessel_id is required")
	}
	raw := r.URL.Query().Get("voyage_number")
	if raw == "" {
		return "", 0, errors.New("voyage_number is required")
	}
	voyageNumber, err := strconv.Atoi(raw)
	if err != nil || voyageNumber <= 0 {
		return "", 0, errors.New("voyage_number must be a positive integer")
	}
	return vesselID, voyageNumber, nil
}

// logAudit records a successful mutating call. Audit failures never affect
// the response.
func logAudit(r *http.Request, logger audit.Logger, fallback *log.Logger, action, vesselID string, voyageNumber int) {
	if logger == nil {
		return
	}
	ctx := r.Context()
	entry := audit.Entry{
		CompanyID:    auth.CompanyIDFromContext(ctx),
		Actor:        auth.SubjectFromContext(ctx),
		Role:         string(auth.RoleFromContext(ctx)),
		Action:       action,
		VesselID:     vesselID,
		VoyageNumber: voyageNumber,
		IP:           audit.ClientIP(r),
		UserAgent:    r.UserAgent(),
	}
	if err := logger.Log(ctx, entry); err != nil && fallback != nil {
		fallback.Printf("audit: %s failed: %v", action, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
