package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is the process-level configuration for the engine: listen
// addresses, SQLite store paths, and telemetry. Numeric modelling knobs
// live in PipelineConfig (pipeline.go) instead, loaded separately so a
// league-override tweak never requires a process restart's worth of env
// vars to change.
type Config struct {
	// HTTP API
	APIHost string
	APIPort int

	// SQLite stores
	FeatureStoreDBPath    string
	CalibrationDBPath     string
	SnapshotStoreDBPath   string
	IngestionLogDBPath    string

	// Odds feed (live market-odds movement, consumed by the draw adjuster
	// and odds blender's odds_drift / overround signals)
	OddsFeedWSURL     string
	OddsFeedEnabled   bool

	// Pipeline config file
	PipelineConfigPath string

	// Request handling
	RequestTimeout time.Duration

	// Rate limiting of outbound feature-store HTTP reads
	FeatureStoreRateLimitPerSec int

	// Telemetry
	LogLevel string
}

func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		APIHost: envStr("API_HOST", "0.0.0.0"),
		APIPort: envInt("API_PORT", 8080),

		FeatureStoreDBPath:  envStr("FEATURE_STORE_DB_PATH", "data/feature_store.db"),
		CalibrationDBPath:   envStr("CALIBRATION_DB_PATH", "data/calibration.db"),
		SnapshotStoreDBPath: envStr("SNAPSHOT_STORE_DB_PATH", "data/snapshots.db"),
		IngestionLogDBPath:  envStr("INGESTION_LOG_DB_PATH", "data/ingestion_log.db"),

		OddsFeedWSURL:   envStr("ODDS_FEED_WS_URL", "ws://localhost:9200/odds"),
		OddsFeedEnabled: envStr("ODDS_FEED_ENABLED", "false") == "true",

		PipelineConfigPath: envStr("PIPELINE_CONFIG_PATH", "internal/config/pipeline.yaml"),

		RequestTimeout: time.Duration(envInt("REQUEST_TIMEOUT_SEC", 10)) * time.Second,

		FeatureStoreRateLimitPerSec: envInt("FEATURE_STORE_RATE_LIMIT_PER_SEC", 20),

		LogLevel: envStr("LOG_LEVEL", "info"),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
