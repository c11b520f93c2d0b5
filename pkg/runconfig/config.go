// Package runconfig loads and validates the process-wide configuration
// described in spec §6.5: environment variables for the dynamic and
// canonical database connections, backpressure tuning, and pipeline
// confidence gates. Grounded on the teacher's pkg/config/loader.go
// Initialize/load/validate shape (a Load function returning a populated
// struct, validated fail-fast at startup) but driven entirely by
// environment variables instead of YAML files, since §6.5 defines the
// core's configuration surface as env vars only.
package runconfig

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/sleetrun/sleet/pkg/backpressure"
)

// DBConfig names one logical database connection: URL/user/pass/ns/db,
// matching §6.5's "*_URL/USER/PASS/NS/DB for both dynamic and canonical
// DBs".
type DBConfig struct {
	URL       string
	User      string
	Password  string
	Namespace string
	Database  string
}

// Config is the fully-loaded, validated process configuration.
type Config struct {
	Dynamic   DBConfig
	Canonical DBConfig

	Backpressure backpressure.Config

	MinItemConfidence float64
	MinPlanConfidence float64

	HTTPAddr string
}

// ErrConfig wraps any environment-variable loading or validation
// failure. The CLI maps this to exit code 1 (§6.5: "1 configuration
// error (e.g., missing canonical DB env)").
type ErrConfig struct {
	Field  string
	Reason string
}

func (e *ErrConfig) Error() string {
	return fmt.Sprintf("runconfig: %s: %s", e.Field, e.Reason)
}

// Load reads every environment variable §6.5 names and returns a
// validated Config, or an *ErrConfig describing the first problem found.
func Load() (*Config, error) {
	dynamic := loadDBConfig("STELE_DYNAMIC")
	canonical := loadDBConfig("STELE_CANONICAL")

	if canonical.URL == "" {
		return nil, &ErrConfig{Field: "STELE_CANONICAL_URL", Reason: "missing canonical database URL"}
	}
	if dynamic.Namespace != "" && dynamic.Namespace == canonical.Namespace && dynamic.Database == canonical.Database {
		return nil, &ErrConfig{Field: "namespace/database", Reason: "dynamic and canonical stores must use distinct namespace+database (§6.4)"}
	}

	minItem, err := floatEnv("STELE_MIN_ITEM_CONFIDENCE", 0.5)
	if err != nil {
		return nil, err
	}
	minPlan, err := floatEnv("STELE_MIN_PLAN_CONFIDENCE", 0.5)
	if err != nil {
		return nil, err
	}

	bp, err := loadBackpressureConfig()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Dynamic:           dynamic,
		Canonical:         canonical,
		Backpressure:      bp,
		MinItemConfidence: minItem,
		MinPlanConfidence: minPlan,
		HTTPAddr:          getEnvOrDefault("STELE_HTTP_ADDR", ":8080"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate range-checks the confidence gates; the canonical-URL and
// namespace+database checks happen only in Load. Exported
// so tests and embedders can validate a hand-built Config without going
// through environment variables.
func (c *Config) Validate() error {
	if c.MinItemConfidence < 0 || c.MinItemConfidence > 1 {
		return &ErrConfig{Field: "STELE_MIN_ITEM_CONFIDENCE", Reason: "must be in [0,1]"}
	}
	if c.MinPlanConfidence < 0 || c.MinPlanConfidence > 1 {
		return &ErrConfig{Field: "STELE_MIN_PLAN_CONFIDENCE", Reason: "must be in [0,1]"}
	}
	return nil
}

func loadDBConfig(prefix string) DBConfig {
	return DBConfig{
		URL:       os.Getenv(prefix + "_URL"),
		User:      os.Getenv(prefix + "_USER"),
		Password:  os.Getenv(prefix + "_PASS"),
		Namespace: os.Getenv(prefix + "_NS"),
		Database:  os.Getenv(prefix + "_DB"),
	}
}

func loadBackpressureConfig() (backpressure.Config, error) {
	cfg := backpressure.DefaultConfig()

	if d, err := durationEnv("STELE_BP_SHORT_HALF_LIFE", cfg.ShortHalfLife); err == nil {
		cfg.ShortHalfLife = d
	} else {
		return cfg, err
	}
	if d, err := durationEnv("STELE_BP_LONG_HALF_LIFE", cfg.LongHalfLife); err == nil {
		cfg.LongHalfLife = d
	} else {
		return cfg, err
	}
	if f, err := floatEnv("STELE_BP_DEPTH_WEIGHT", cfg.DepthWeight); err == nil {
		cfg.DepthWeight = f
	} else {
		return cfg, err
	}
	if f, err := floatEnv("STELE_BP_LATENCY_WEIGHT", cfg.LatencyWeight); err == nil {
		cfg.LatencyWeight = f
	} else {
		return cfg, err
	}
	if f, err := floatEnv("STELE_BP_ERROR_WEIGHT", cfg.ErrorWeight); err == nil {
		cfg.ErrorWeight = f
	} else {
		return cfg, err
	}
	if i, err := intEnv("STELE_BP_WARMUP_SAMPLES", cfg.WarmupSamples); err == nil {
		cfg.WarmupSamples = i
	} else {
		return cfg, err
	}

	if forced := os.Getenv("STELE_BP_FORCED_LEVEL"); forced != "" {
		level, err := parseLevel(forced)
		if err != nil {
			return cfg, err
		}
		cfg.ForcedLevel = &level
	}

	return cfg, nil
}

func parseLevel(s string) (backpressure.Level, error) {
	switch s {
	case "green":
		return backpressure.Green, nil
	case "amber":
		return backpressure.Amber, nil
	case "red":
		return backpressure.Red, nil
	default:
		return 0, &ErrConfig{Field: "STELE_BP_FORCED_LEVEL", Reason: "must be one of green, amber, red"}
	}
}

func getEnvOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func floatEnv(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, &ErrConfig{Field: key, Reason: "must be a number"}
	}
	return f, nil
}

func intEnv(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, &ErrConfig{Field: key, Reason: "must be an integer"}
	}
	return i, nil
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, &ErrConfig{Field: key, Reason: "must be a Go duration (e.g. 5s)"}
	}
	return d, nil
}
