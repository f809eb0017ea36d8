package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	calibration "fleetsys/internal/calibration/domain"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from yaml scalars like "30m".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// ForwardConfig holds the outbound push gateway settings. An empty PushURL
// disables forwarding entirely.
type ForwardConfig struct {
	PushURL     string   `yaml:"push_url"`
	TokenURL    string   `yaml:"token_url"`
	CompanyCode string   `yaml:"company_code"`
	Username    string   `yaml:"username"`
	Password    string   `yaml:"password"`
	HostAddress string   `yaml:"host_address"`
	TokenTTL    Duration `yaml:"token_ttl"`
}

// Enabled reports whether outbound forwarding is configured.
func (f ForwardConfig) Enabled() bool {
	return f.PushURL != ""
}

// Config is the process configuration, loaded from yaml with env fallbacks.
type Config struct {
	DatabaseURL   string                         `yaml:"database_url"`
	HTTPAddr      string                         `yaml:"http_addr"`
	JWTSecret     string                         `yaml:"jwt_secret"`
	WatchDir      string                         `yaml:"watch_dir"`
	SessionPolicy string                         `yaml:"session_policy"`
	Benchmark     calibration.BenchmarkConstants `yaml:"benchmark"`
	Forward       ForwardConfig                  `yaml:"forward"`
}

// Load builds the configuration from env defaults, then overlays the yaml
// file named by FLEET_CONFIG when set.
func Load() (Config, error) {
	cfg := Config{
		DatabaseURL:   getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		HTTPAddr:      getenvDefault("HTTP_ADDR", ":8080"),
		JWTSecret:     getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", "")),
		WatchDir:      os.Getenv("WATCH_DIR"),
		SessionPolicy: getenvDefault("SESSION_POLICY", "earliest"),
		Benchmark:     benchmarkFromEnv(),
		Forward: ForwardConfig{
			PushURL:     os.Getenv("FORWARD_PUSH_URL"),
			TokenURL:    os.Getenv("FORWARD_TOKEN_URL"),
			CompanyCode: os.Getenv("FORWARD_COMPANY_CODE"),
			Username:    os.Getenv("FORWARD_USERNAME"),
			Password:    os.Getenv("FORWARD_PASSWORD"),
			HostAddress: os.Getenv("FORWARD_HOST_ADDRESS"),
			TokenTTL:    Duration(getenvDuration("FORWARD_TOKEN_TTL", time.Hour)),
		},
	}

	if path := os.Getenv("FLEET_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}

	if cfg.DatabaseURL == "" {
		return cfg, errors.New("config: DATABASE_URL or PG_DSN is required")
	}
	if cfg.JWTSecret == "" {
		return cfg, errors.New("config: AUTH_JWT_SECRET is required")
	}
	switch cfg.SessionPolicy {
	case "earliest", "latest":
	default:
		return cfg, errors.New("config: session_policy must be earliest or latest")
	}
	if cfg.Forward.Enabled() && cfg.Forward.TokenURL == "" {
		return cfg, errors.New("config: forward token_url is required when push_url is set")
	}
	if cfg.Benchmark.Cylinders <= 0 || cfg.Benchmark.RatedRPM <= 0 || cfg.Benchmark.BoreM <= 0 {
		return cfg, errors.New("config: benchmark constants must be positive")
	}
	return cfg, nil
}

func benchmarkFromEnv() calibration.BenchmarkConstants {
	c := calibration.DefaultBenchmarkConstants()
	c.LoadFraction = getenvFloatDefault("BENCHMARK_LOAD_FRACTION", c.LoadFraction)
	c.BoreM = getenvFloatDefault("BENCHMARK_BORE_M", c.BoreM)
	c.RatedRPM = getenvFloatDefault("BENCHMARK_RATED_RPM", c.RatedRPM)
	c.Cylinders = getenvFloatDefault("BENCHMARK_CYLINDERS", c.Cylinders)
	return c
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
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
