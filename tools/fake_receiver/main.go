package main

import (
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// fakeReceiver stands in for the remote voyage collection system. It issues
// bearer tokens with a short lifetime and accepts voyage pushes, so the
// forward gateway's refresh-and-retry path can be exercised locally.
type fakeReceiver struct {
	start    time.Time
	latency  time.Duration
	tokenTTL time.Duration
	failRate float64

	mu         sync.Mutex
	tokens     map[string]time.Time
	byVessel   map[string]int64
	voyages    []receivedVoyage
	tokenSeq   int64
	totalCalls int64
	rejected   int64
}

type receivedVoyage struct {
	VoyageUUID   string `json:"voyage_uuid"`
	VesselID     string `json:"vessel_id"`
	VoyageNumber int    `json:"voyage_number"`
	Entries      int    `json:"entries"`
}

func main() {
	addr := getenvDefault("FAKE_RECEIVER_ADDR", ":18080")
	latencyMs := getenvIntDefault("FAKE_RECEIVER_LATENCY_MS", 0)
	tokenTTLSec := getenvIntDefault("FAKE_RECEIVER_TOKEN_TTL_SECONDS", 3600)
	failRate := getenvFloatDefault("FAKE_RECEIVER_FAIL_RATE", 0)

	srv := &fakeReceiver{
		start:    time.Now().UTC(),
		latency:  time.Duration(latencyMs) * time.Millisecond,
		tokenTTL: time.Duration(tokenTTLSec) * time.Second,
		failRate: failRate,
		tokens:   make(map[string]time.Time),
		byVessel: make(map[string]int64),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", srv.handleHealth)
	mux.HandleFunc("/metrics", srv.handleMetrics)
	mux.HandleFunc("/api/token", srv.handleToken)
	mux.HandleFunc("/api/voyages", srv.handleVoyages)

	log.Printf("fake receiver listening on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatal(err)
	}
}

func (s *fakeReceiver) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *fakeReceiver) handleMetrics(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	payload := map[string]any{
		"started_at": s.start.Format(time.RFC3339),
		"total":      atomic.LoadInt64(&s.totalCalls),
		"rejected":   atomic.LoadInt64(&s.rejected),
		"by_vessel":  s.byVessel,
		"received":   len(s.voyages),
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *fakeReceiver) handleToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var creds struct {
		CompanyCode string `json:"companyCode"`
		Username    string `json:"username"`
		Password    string `json:"password"`
		HostAddress string `json:"hostAddress"`
	}
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(creds.Username) == "" || strings.TrimSpace(creds.Password) == "" {
		http.Error(w, "credentials required", http.StatusUnauthorized)
		return
	}

	token := fmt.Sprintf("token-%d", atomic.AddInt64(&s.tokenSeq, 1))
	s.mu.Lock()
	s.tokens[token] = time.Now().Add(s.tokenTTL)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"access_token": token})
}

func (s *fakeReceiver) handleVoyages(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.mu.Lock()
		defer s.mu.Unlock()
		writeJSON(w, http.StatusOK, s.voyages)
	case http.MethodPost:
		s.handlePush(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (s *fakeReceiver) handlePush(w http.ResponseWriter, r *http.Request) {
	atomic.AddInt64(&s.totalCalls, 1)
	if s.latency > 0 {
		time.Sleep(s.latency)
	}

	if !s.authorized(r) {
		atomic.AddInt64(&s.rejected, 1)
		http.Error(w, "token expired", http.StatusUnauthorized)
		return
	}
	if s.failRate > 0 && rand.Float64() < s.failRate {
		http.Error(w, "fake receiver failure", http.StatusInternalServerError)
		return
	}

	var payload struct {
		VoyageUUID   string `json:"voyage_uuid"`
		VesselID     string `json:"vessel_id"`
		VoyageNumber int    `json:"voyage_number"`
		Entries      []any  `json:"entries"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.byVessel[payload.VesselID]++
	s.voyages = append(s.voyages, receivedVoyage{
		VoyageUUID:   payload.VoyageUUID,
		VesselID:     payload.VesselID,
		VoyageNumber: payload.VoyageNumber,
		Entries:      len(payload.Entries),
	})
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"status": "received"})
}

func (s *fakeReceiver) authorized(r *http.Request) bool {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return false
	}
	token := strings.TrimPrefix(header, "Bearer ")
	s.mu.Lock()
	defer s.mu.Unlock()
	expiry, ok := s.tokens[token]
	if !ok {
		return false
	}
	if time.Now().After(expiry) {
		delete(s.tokens, token)
		return false
	}
	return true
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvFloatDefault(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
