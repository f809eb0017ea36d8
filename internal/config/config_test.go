package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadEnvFallbacks(t *testing.T) {
	t.Setenv("FLEET_CONFIG", "")
	t.Setenv("DATABASE_URL", "postgres://localhost/fleet")
	t.Setenv("AUTH_JWT_SECRET", "secret")
	t.Setenv("SESSION_POLICY", "")
	t.Setenv("FORWARD_PUSH_URL", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DatabaseURL != "postgres://localhost/fleet" {
		t.Fatalf("unexpected database url %q", cfg.DatabaseURL)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("unexpected http addr %q", cfg.HTTPAddr)
	}
	if cfg.SessionPolicy != "earliest" {
		t.Fatalf("unexpected session policy %q", cfg.SessionPolicy)
	}
	if cfg.Forward.Enabled() {
		t.Fatal("forwarding should be disabled without a push url")
	}
	if cfg.Benchmark.Cylinders != 8 {
		t.Fatalf("unexpected cylinder count %v", cfg.Benchmark.Cylinders)
	}
}

func TestLoadBenchmarkEnvOverrides(t *testing.T) {
	t.Setenv("FLEET_CONFIG", "")
	t.Setenv("DATABASE_URL", "postgres://localhost/fleet")
	t.Setenv("AUTH_JWT_SECRET", "secret")
	t.Setenv("BENCHMARK_LOAD_FRACTION", "0.5")
	t.Setenv("BENCHMARK_BORE_M", "0.4")
	t.Setenv("BENCHMARK_RATED_RPM", "96")
	t.Setenv("BENCHMARK_CYLINDERS", "6")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Benchmark.LoadFraction != 0.5 {
		t.Fatalf("unexpected load fraction %v", cfg.Benchmark.LoadFraction)
	}
	if cfg.Benchmark.BoreM != 0.4 {
		t.Fatalf("unexpected bore %v", cfg.Benchmark.BoreM)
	}
	if cfg.Benchmark.RatedRPM != 96 {
		t.Fatalf("unexpected rated rpm %v", cfg.Benchmark.RatedRPM)
	}
	if cfg.Benchmark.Cylinders != 6 {
		t.Fatalf("unexpected cylinder count %v", cfg.Benchmark.Cylinders)
	}
}

func TestLoadYAMLOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fleet.yaml")
	data := []byte(`
database_url: postgres://db/fleet
http_addr: ":9090"
jwt_secret: yaml-secret
session_policy: latest
benchmark:
  load_fraction: 0.5
  bore_m: 0.4
  rated_rpm: 100
  cylinders: 6
forward:
  push_url: https://remote/api/voyages
  token_url: https://remote/api/token
  company_code: CC01
  username: fleet
  password: pw
  host_address: vessel-01
  token_ttl: 30m
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("FLEET_CONFIG", path)
	t.Setenv("DATABASE_URL", "")
	t.Setenv("PG_DSN", "")
	t.Setenv("AUTH_JWT_SECRET", "")
	t.Setenv("JWT_SECRET", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPAddr != ":9090" {
		t.Fatalf("unexpected http addr %q", cfg.HTTPAddr)
	}
	if cfg.SessionPolicy != "latest" {
		t.Fatalf("unexpected session policy %q", cfg.SessionPolicy)
	}
	if cfg.Benchmark.LoadFraction != 0.5 || cfg.Benchmark.Cylinders != 6 {
		t.Fatalf("benchmark overlay not applied: %+v", cfg.Benchmark)
	}
	if !cfg.Forward.Enabled() {
		t.Fatal("forwarding should be enabled")
	}
	if time.Duration(cfg.Forward.TokenTTL) != 30*time.Minute {
		t.Fatalf("unexpected token ttl %v", cfg.Forward.TokenTTL)
	}
}

func TestLoadRejectsBadPolicy(t *testing.T) {
	t.Setenv("FLEET_CONFIG", "")
	t.Setenv("DATABASE_URL", "postgres://localhost/fleet")
	t.Setenv("AUTH_JWT_SECRET", "secret")
	t.Setenv("SESSION_POLICY", "newest")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for unknown session policy")
	}
}

func TestLoadRequiresTokenURLWhenForwarding(t *testing.T) {
	t.Setenv("FLEET_CONFIG", "")
	t.Setenv("DATABASE_URL", "postgres://localhost/fleet")
	t.Setenv("AUTH_JWT_SECRET", "secret")
	t.Setenv("SESSION_POLICY", "earliest")
	t.Setenv("FORWARD_PUSH_URL", "https://remote/api/voyages")
	t.Setenv("FORWARD_TOKEN_URL", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing token url")
	}
}
