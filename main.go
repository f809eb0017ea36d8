package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"time"

	apihttp "fleetsys/internal/api/http"
	"fleetsys/internal/audit"
	"fleetsys/internal/auth"
	calapp "fleetsys/internal/calibration/application"
	calrepo "fleetsys/internal/calibration/infrastructure/postgres"
	"fleetsys/internal/config"
	"fleetsys/internal/forward"
	"fleetsys/internal/observability/metrics"
	perfapp "fleetsys/internal/performance/application"
	perfrepo "fleetsys/internal/performance/infrastructure/postgres"
	"fleetsys/internal/pipeline"
	summaryapp "fleetsys/internal/summary/application"
	summaryrepo "fleetsys/internal/summary/infrastructure/postgres"
	tripapp "fleetsys/internal/trip/application"
	triprepo "fleetsys/internal/trip/infrastructure/postgres"
	voyagerepo "fleetsys/internal/voyage/infrastructure/postgres"
	"fleetsys/internal/voyage/interfaces/watch"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	logger := log.New(os.Stdout, "", log.LstdFlags)

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("db open error: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatalf("db ping error: %v", err)
	}

	metrics.Init(db, logger)
	auditRepo := audit.NewRepository(db)

	reportRepo := voyagerepo.NewReportRepository(db)
	voyageQuery := voyagerepo.NewVoyageQuery(db)
	segmentRepo := perfrepo.NewSegmentRepository(db)
	tripRepo, err := triprepo.NewTripRepository(db)
	if err != nil {
		logger.Fatalf("trip repository error: %v", err)
	}
	summaryRepo, err := summaryrepo.NewSummaryRepository(db)
	if err != nil {
		logger.Fatalf("summary repository error: %v", err)
	}

	segmentService, err := perfapp.NewService(voyageQuery, segmentRepo)
	if err != nil {
		logger.Fatalf("segment service error: %v", err)
	}
	tripService, err := tripapp.NewService(voyageQuery, voyageQuery, tripRepo, logger)
	if err != nil {
		logger.Fatalf("trip service error: %v", err)
	}
	summaryService, err := summaryapp.NewService(tripRepo, segmentRepo, voyageQuery, summaryRepo, logger)
	if err != nil {
		logger.Fatalf("summary service error: %v", err)
	}

	var forwarder pipeline.Forwarder
	if cfg.Forward.Enabled() {
		tokens, err := forward.NewTokenSource(cfg.Forward.TokenURL, forward.Credentials{
			CompanyCode: cfg.Forward.CompanyCode,
			Username:    cfg.Forward.Username,
			Password:    cfg.Forward.Password,
			HostAddress: cfg.Forward.HostAddress,
		}, forward.WithTokenTTL(time.Duration(cfg.Forward.TokenTTL)))
		if err != nil {
			logger.Fatalf("token source error: %v", err)
		}
		client, err := forward.NewClient(cfg.Forward.PushURL, tokens)
		if err != nil {
			logger.Fatalf("forward client error: %v", err)
		}
		forwarder = client
	}

	pipe, err := pipeline.NewPipeline(reportRepo, voyageQuery, segmentService, tripService, summaryService, forwarder, logger)
	if err != nil {
		logger.Fatalf("pipeline error: %v", err)
	}

	calibrationRepo, err := calrepo.NewCalibrationRepository(db)
	if err != nil {
		logger.Fatalf("calibration repository error: %v", err)
	}
	parameterRepo, err := calrepo.NewParameterRepository(db)
	if err != nil {
		logger.Fatalf("parameter repository error: %v", err)
	}
	calOpts := []calapp.Option{calapp.WithBenchmarkConstants(cfg.Benchmark)}
	if cfg.SessionPolicy == "latest" {
		calOpts = append(calOpts, calapp.WithSessionPolicy(calapp.SessionLatest))
	}
	calibrationService, err := calapp.NewService(calibrationRepo, calibrationRepo, calibrationRepo, parameterRepo, logger, calOpts...)
	if err != nil {
		logger.Fatalf("calibration service error: %v", err)
	}

	if cfg.WatchDir != "" {
		watcher, err := watch.NewWatcher(cfg.WatchDir, pipe, logger)
		if err != nil {
			logger.Fatalf("watcher error: %v", err)
		}
		go func() {
			if err := watcher.Run(context.Background()); err != nil {
				logger.Printf("watcher stopped: %v", err)
			}
		}()
	}

	policy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, nil)
	authMiddleware := auth.NewMiddleware([]byte(cfg.JWTSecret), policy)

	mux := http.NewServeMux()
	mux.Handle("/ingest/voyage", apihttp.NewIngestVoyageHandler(pipe, auditRepo, logger))
	mux.Handle("/ingest/seatrial", apihttp.NewIngestSeatrialHandler(calibrationService, auditRepo, logger))
	mux.Handle("/api/v1/voyages", apihttp.NewVoyagesHandler(db))
	mux.Handle("/api/v1/voyages/summary", apihttp.NewVoyageSummaryHandler(db))
	mux.Handle("/api/v1/voyages/recompute", apihttp.NewRecomputeVoyageHandler(pipe, auditRepo, logger))
	mux.Handle("/api/v1/trips", apihttp.NewTripsHandler(db))
	mux.Handle("/api/v1/segments", apihttp.NewSegmentsHandler(db))
	mux.Handle("/api/v1/benchmarks/run", apihttp.NewBenchmarksRunHandler(calibrationService, auditRepo, logger))
	mux.Handle("/api/v1/forecast", apihttp.NewForecastHandler(calibrationService))
	mux.Handle("/api/v1/exports/voyage.pdf", apihttp.NewExportVoyageHandler(summaryRepo, tripRepo, "pdf"))
	mux.Handle("/api/v1/exports/voyage.xlsx", apihttp.NewExportVoyageHandler(summaryRepo, tripRepo, "xlsx"))
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", apihttp.NewHealthzHandler(db))

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: loggingMiddleware(authMiddleware.Wrap(mux), logger)}
	logger.Printf("http listening on %s", cfg.HTTPAddr)
	logger.Fatal(server.ListenAndServe())
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
