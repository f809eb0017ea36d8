package integration_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	apihttp "fleetsys/internal/api/http"
	"fleetsys/internal/auth"
	perfapp "fleetsys/internal/performance/application"
	perfrepo "fleetsys/internal/performance/infrastructure/postgres"
	"fleetsys/internal/pipeline"
	summaryapp "fleetsys/internal/summary/application"
	summaryrepo "fleetsys/internal/summary/infrastructure/postgres"
	tripapp "fleetsys/internal/trip/application"
	triprepo "fleetsys/internal/trip/infrastructure/postgres"
	voyage "fleetsys/internal/voyage/domain"
	voyagerepo "fleetsys/internal/voyage/infrastructure/postgres"

	"github.com/golang-jwt/jwt/v5"
	_ "github.com/jackc/pgx/v5/stdlib"
)

func TestRecomputeForbiddenForViewer(t *testing.T) {
	dsn := os.Getenv("PG_DSN")
	if dsn == "" {
		t.Skip("PG_DSN not set")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	if err := applyMigrations(db); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}

	pipe := buildPipeline(t, db)
	mux := http.NewServeMux()
	mux.Handle("/api/v1/voyages/recompute", apihttp.NewRecomputeVoyageHandler(pipe, nil, nil))

	secret := []byte("test-secret")
	mw := auth.NewMiddleware(secret, auth.NewDefaultPolicy(nil, nil))
	server := httptest.NewServer(mw.Wrap(mux))
	defer server.Close()

	token := mustToken(t, secret, "company-itest", "viewer")
	resp := doRequest(t, http.MethodPost, server.URL+"/api/v1/voyages/recompute?vessel_id=ITEST-VSL-01&voyage_number=7", token)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for viewer, got %d", resp.StatusCode)
	}

	resp = doRequest(t, http.MethodPost, server.URL+"/api/v1/voyages/recompute?vessel_id=ITEST-VSL-01&voyage_number=7", "")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}
}

func TestRecomputeAndQueryFlow(t *testing.T) {
	dsn := os.Getenv("PG_DSN")
	if dsn == "" {
		t.Skip("PG_DSN not set")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	if err := applyMigrations(db); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}

	ctx := context.Background()
	vesselID := "ITEST-VSL-01"
	voyageNumber := 7

	reports := voyagerepo.NewReportRepository(db)
	if _, err := reports.EnsureVoyage(ctx, vesselID, voyageNumber); err != nil {
		t.Fatalf("ensure voyage: %v", err)
	}
	if err := reports.ReplaceVoyageData(ctx, seedBatch(vesselID, voyageNumber)); err != nil {
		t.Fatalf("replace voyage data: %v", err)
	}

	pipe := buildPipeline(t, db)
	mux := http.NewServeMux()
	mux.Handle("/api/v1/voyages/recompute", apihttp.NewRecomputeVoyageHandler(pipe, nil, nil))
	mux.Handle("/api/v1/trips", apihttp.NewTripsHandler(db))
	mux.Handle("/api/v1/voyages/summary", apihttp.NewVoyageSummaryHandler(db))

	secret := []byte("test-secret")
	mw := auth.NewMiddleware(secret, auth.NewDefaultPolicy(nil, nil))
	server := httptest.NewServer(mw.Wrap(mux))
	defer server.Close()

	operator := mustToken(t, secret, "company-itest", "operator")
	query := "?vessel_id=" + vesselID + "&voyage_number=" + strconv.Itoa(voyageNumber)

	resp := doRequest(t, http.MethodPost, server.URL+"/api/v1/voyages/recompute"+query, operator)
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		t.Fatalf("recompute: expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	viewer := mustToken(t, secret, "company-itest", "viewer")

	resp = doRequest(t, http.MethodGet, server.URL+"/api/v1/trips"+query, viewer)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("trips: expected 200, got %d", resp.StatusCode)
	}
	var tripsBody struct {
		Trips []struct {
			TripNumber  int     `json:"trip_number"`
			OpenEnded   bool    `json:"open_ended"`
			DurationMin float64 `json:"duration_min"`
		} `json:"trips"`
		FuelBalances []struct {
			TripNumber    int     `json:"trip_number"`
			Fuel          string  `json:"fuel"`
			FlowmeterCons float64 `json:"flowmeter_cons"`
			SoundingCons  float64 `json:"sounding_cons"`
		} `json:"fuel_balances"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tripsBody); err != nil {
		t.Fatalf("decode trips: %v", err)
	}
	if len(tripsBody.Trips) != 2 {
		t.Fatalf("expected 2 trips, got %d", len(tripsBody.Trips))
	}
	if tripsBody.Trips[0].OpenEnded {
		t.Fatalf("trip 1 should be closed")
	}
	if !tripsBody.Trips[1].OpenEnded {
		t.Fatalf("trip 2 should be open-ended")
	}

	var foTrip1Found bool
	for _, b := range tripsBody.FuelBalances {
		if b.TripNumber != 1 || b.Fuel != string(voyage.FuelOil) {
			continue
		}
		foTrip1Found = true
		// Opening boundary sample is excluded from the flow total; the
		// shared reading belongs to the previous interval.
		if !almostEqual(b.FlowmeterCons, 20) {
			t.Fatalf("trip 1 FO flowmeter: expected 20, got %v", b.FlowmeterCons)
		}
		if !almostEqual(b.SoundingCons, 20) {
			t.Fatalf("trip 1 FO sounding: expected 20, got %v", b.SoundingCons)
		}
	}
	if !foTrip1Found {
		t.Fatalf("no FO balance for trip 1 in %+v", tripsBody.FuelBalances)
	}

	resp = doRequest(t, http.MethodGet, server.URL+"/api/v1/voyages/summary"+query, viewer)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("summary: expected 200, got %d", resp.StatusCode)
	}
	var summaryBody struct {
		VesselID     string `json:"vessel_id"`
		VoyageNumber int    `json:"voyage_number"`
		TripCount    int    `json:"trip_count"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&summaryBody); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if summaryBody.VesselID != vesselID || summaryBody.VoyageNumber != voyageNumber {
		t.Fatalf("summary key mismatch: %+v", summaryBody)
	}
	if summaryBody.TripCount != 2 {
		t.Fatalf("expected trip_count 2, got %d", summaryBody.TripCount)
	}
}

func TestReplaceRejectsDuplicateReportTimestamp(t *testing.T) {
	dsn := os.Getenv("PG_DSN")
	if dsn == "" {
		t.Skip("PG_DSN not set")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	if err := applyMigrations(db); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}

	ctx := context.Background()
	vesselID := "ITEST-VSL-02"
	voyageNumber := 3

	reports := voyagerepo.NewReportRepository(db)
	if _, err := reports.EnsureVoyage(ctx, vesselID, voyageNumber); err != nil {
		t.Fatalf("ensure voyage: %v", err)
	}

	batch := seedBatch(vesselID, voyageNumber)
	// Collapse the last report onto the timestamp of its predecessor. A
	// repeated instant would cross-match on the report/sample equijoin and
	// double-count consumption, so the write must be refused outright.
	batch.Reports[4].Timestamp = batch.Reports[3].Timestamp
	batch.Engine[4].Timestamp = batch.Engine[3].Timestamp

	err = reports.ReplaceVoyageData(ctx, batch)
	if !errors.Is(err, voyage.ErrDuplicateReport) {
		t.Fatalf("expected duplicate report error, got %v", err)
	}

	var count int
	if err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM voyage_reports WHERE vessel_id = $1 AND voyage_number = $2`,
		vesselID, voyageNumber).Scan(&count); err != nil {
		t.Fatalf("count reports: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no reports written, got %d", count)
	}
}

// seedBatch builds one voyage of five 12-hour reports with trip boundaries
// at the first and third report. The boundary label on the third report is
// lowercase on purpose.
func seedBatch(vesselID string, voyageNumber int) voyage.Batch {
	base := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)
	labels := []string{"1B", "", "2b", "", ""}
	activities := []string{"Sailing", "Sailing", "Sailing", "Sailing", "Anchoring"}
	foROB := []float64{500, 490, 480, 470, 462}
	foCons := []float64{10, 10, 10, 10, 8}
	doROB := []float64{50, 49, 48, 47, 46}

	batch := voyage.Batch{VesselID: vesselID, VoyageNumber: voyageNumber}
	for i := 0; i < 5; i++ {
		ts := base.Add(time.Duration(i) * 12 * time.Hour)
		batch.Reports = append(batch.Reports, voyage.Report{
			ActivityID:   vesselID + "-v7-r" + strconv.Itoa(i),
			VesselID:     vesselID,
			VoyageNumber: voyageNumber,
			TripLabel:    labels[i],
			Timestamp:    ts,
			Activity:     activities[i],
			Step:         "Noon",
			DurationMin:  voyage.Ptr(720),
		})
		batch.Engine = append(batch.Engine, voyage.EngineSample{
			Timestamp:   ts,
			TripLabel:   labels[i],
			Activity:    activities[i],
			MERPM:       voyage.Ptr(84),
			Speed:       voyage.Ptr(12.5),
			MERunMin:    voyage.Ptr(720),
			TotalFOCons: voyage.Ptr(foCons[i]),
			TotalDOCons: voyage.Ptr(1),
			FOROB:       voyage.Ptr(foROB[i]),
			DOROB:       voyage.Ptr(doROB[i]),
		})
		batch.Deck = append(batch.Deck, voyage.DeckSample{
			Timestamp:   ts,
			Dist24Hours: voyage.Ptr(240),
			SpeedGPS:    voyage.Ptr(12.4),
		})
	}
	return batch
}

func buildPipeline(t *testing.T, db *sql.DB) *pipeline.Pipeline {
	t.Helper()
	logger := log.New(os.Stderr, "itest ", log.LstdFlags)

	reportRepo := voyagerepo.NewReportRepository(db)
	voyageQuery := voyagerepo.NewVoyageQuery(db)
	segmentRepo := perfrepo.NewSegmentRepository(db)
	tripRepo, err := triprepo.NewTripRepository(db)
	if err != nil {
		t.Fatalf("trip repository: %v", err)
	}
	summaryRepo, err := summaryrepo.NewSummaryRepository(db)
	if err != nil {
		t.Fatalf("summary repository: %v", err)
	}

	segmentService, err := perfapp.NewService(voyageQuery, segmentRepo)
	if err != nil {
		t.Fatalf("segment service: %v", err)
	}
	tripService, err := tripapp.NewService(voyageQuery, voyageQuery, tripRepo, logger)
	if err != nil {
		t.Fatalf("trip service: %v", err)
	}
	summaryService, err := summaryapp.NewService(tripRepo, segmentRepo, voyageQuery, summaryRepo, logger)
	if err != nil {
		t.Fatalf("summary service: %v", err)
	}

	pipe, err := pipeline.NewPipeline(reportRepo, voyageQuery, segmentService, tripService, summaryService, nil, logger)
	if err != nil {
		t.Fatalf("pipeline: %v", err)
	}
	return pipe
}

func applyMigrations(db *sql.DB) error {
	path := filepath.Join(projectRoot(), "migrations", "001_init.sql")
	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	_, err = db.Exec(string(content))
	return err
}

func projectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return "."
	}
	return filepath.Clean(filepath.Join(dir, "..", "..", ".."))
}

func mustToken(t *testing.T, secret []byte, companyID, role string) string {
	t.Helper()
	claims := auth.Claims{
		CompanyID: companyID,
		Role:      role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-time.Minute)),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func doRequest(t *testing.T, method, url, token string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	return resp
}

func almostEqual(got, want float64) bool {
	diff := got - want
	if diff < 0 {
		diff = -diff
	}
	return diff < 1e-6
}
