package forward

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	voyage "fleetsys/internal/voyage/domain"
)

func tokenServer(t *testing.T, issued *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := issued.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"access_token": "tok-" + string(rune('0'+n)),
		})
	}))
}

func TestTokenSourceCachesWithinTTL(t *testing.T) {
	var issued atomic.Int32
	ts := tokenServer(t, &issued)
	defer ts.Close()

	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	source, err := NewTokenSource(ts.URL, Credentials{}, WithTokenClock(func() time.Time { return now }))
	if err != nil {
		t.Fatal(err)
	}

	first, err := source.Token(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := source.Token(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first != second || issued.Load() != 1 {
		t.Fatalf("token refetched inside ttl: %s vs %s, fetches=%d", first, second, issued.Load())
	}

	now = now.Add(DefaultTokenTTL + time.Minute)
	third, err := source.Token(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if third == first || issued.Load() != 2 {
		t.Fatalf("token not refreshed after ttl: fetches=%d", issued.Load())
	}
}

func TestPushRetriesOnceOn401(t *testing.T) {
	var issued atomic.Int32
	ts := tokenServer(t, &issued)
	defer ts.Close()

	var pushes atomic.Int32
	forwardSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if pushes.Add(1) == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.Header.Get("Authorization") == "" {
			t.Error("retry without bearer token")
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer forwardSrv.Close()

	source, err := NewTokenSource(ts.URL, Credentials{})
	if err != nil {
		t.Fatal(err)
	}
	client, err := NewClient(forwardSrv.URL, source)
	if err != nil {
		t.Fatal(err)
	}

	if err := client.Push(context.Background(), VoyagePayload{VoyageUUID: "u-1"}); err != nil {
		t.Fatalf("push should succeed after retry: %v", err)
	}
	if pushes.Load() != 2 {
		t.Fatalf("pushes = %d, want 2", pushes.Load())
	}
	if issued.Load() != 2 {
		t.Fatalf("token fetches = %d, want 2 (initial + refresh)", issued.Load())
	}
}

func TestPushSurfacesDouble401(t *testing.T) {
	var issued atomic.Int32
	ts := tokenServer(t, &issued)
	defer ts.Close()

	var pushes atomic.Int32
	forwardSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pushes.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer forwardSrv.Close()

	source, err := NewTokenSource(ts.URL, Credentials{})
	if err != nil {
		t.Fatal(err)
	}
	client, err := NewClient(forwardSrv.URL, source)
	if err != nil {
		t.Fatal(err)
	}

	if err := client.Push(context.Background(), VoyagePayload{VoyageUUID: "u-1"}); err == nil {
		t.Fatal("second 401 must surface as failure")
	}
	if pushes.Load() != 2 {
		t.Fatalf("pushes = %d, want exactly 2", pushes.Load())
	}
}

func TestBuildPayloadCargoAndCoordinate(t *testing.T) {
	base := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	v := voyage.Voyage{UUID: "u-1", VesselID: "V1", VoyageNumber: 7, Status: "ballast"}
	reports := []voyage.Report{
		{ActivityID: "a-1", Timestamp: base, TZOffset: 9, Activity: "Sailing", LocFrom: "KRPUS", LocTo: "JPYOK"},
		{ActivityID: "a-2", Timestamp: base.Add(time.Hour), Activity: "At Anchor"},
	}
	decks := map[time.Time]voyage.DeckSample{
		base: {
			Cargo1ROB: voyage.Ptr(1200),
			Cargo2ROB: nil,
			LatDegree: voyage.Ptr(35), LatDecimal: voyage.Ptr(6.5), LatQuad: "N",
			LonDegree: voyage.Ptr(129), LonDecimal: voyage.Ptr(2.1), LonQuad: "E",
		},
	}

	p := BuildPayload(v, reports, decks)
	if len(p.Entries) != 2 {
		t.Fatalf("entries = %d", len(p.Entries))
	}
	first := p.Entries[0]
	if first.CargoOnBoard == nil || *first.CargoOnBoard != 1200 {
		t.Fatalf("cargo = %v", first.CargoOnBoard)
	}
	if first.Coordinate == "" {
		t.Fatal("expected coordinate string")
	}
	if first.Location != "KRPUS-JPYOK" {
		t.Fatalf("location = %q", first.Location)
	}
	// no deck sample for the second report
	if p.Entries[1].CargoOnBoard != nil {
		t.Fatalf("cargo without deck sample = %v", *p.Entries[1].CargoOnBoard)
	}
}
