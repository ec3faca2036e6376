// Package config loads and validates service configuration from the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix is the prefix for all service environment variables
// (GRIDPULSE_EVENT_ID, GRIDPULSE_REDIS_ADDR, ...). POD_NAME is read without
// the prefix because it is injected by the workload scheduler.
const EnvPrefix = "GRIDPULSE"

// Config is the full service configuration.
type Config struct {
	// EventID identifies the event this instance ingests. Required.
	EventID int `envconfig:"EVENT_ID" required:"true"`

	// PodName identifies this instance for workload distribution. Required.
	PodName string `envconfig:"POD_NAME"`

	// FinalizeQuietPeriod is how long a session may stay silent before it is
	// finalized.
	FinalizeQuietPeriod time.Duration `envconfig:"FINALIZE_QUIET_PERIOD" default:"10m"`

	// LapFinalizeDelay is how long finalized laps are held before emission so
	// that late passing records can still correct lap times.
	LapFinalizeDelay time.Duration `envconfig:"LAP_FINALIZE_DELAY" default:"1s"`

	// PitDedupWindow bounds the retention of seen pit-passing triples.
	PitDedupWindow time.Duration `envconfig:"PIT_DEDUP_WINDOW" default:"60s"`

	// StaleCheckMinLap suppresses stale-car checks until every car has
	// completed this many laps.
	StaleCheckMinLap int `envconfig:"STALE_CHECK_MIN_LAP" default:"3"`

	// ListenAddr serves health, readiness, metrics and debug endpoints.
	ListenAddr string `envconfig:"LISTEN_ADDR" default:":8080"`

	Redis RedisConfig `envconfig:"REDIS"`

	// DBPath is the sqlite database used for finalized sessions and lap logs.
	DBPath string `envconfig:"DB_PATH" default:"gridpulse.db"`

	// ArchiveDir enables gzip session archives when non-empty.
	ArchiveDir string `envconfig:"ARCHIVE_DIR"`

	// LogLevel is the zerolog level name.
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// QueueDepth bounds the per-session inbound message queue.
	QueueDepth int `envconfig:"QUEUE_DEPTH" default:"256"`
}

// RedisConfig holds patch-transport connection settings.
type RedisConfig struct {
	Addr     string `envconfig:"ADDR" default:"localhost:6379"`
	Password string `envconfig:"PASSWORD"`
	DB       int    `envconfig:"DB" default:"0"`
}

// Load reads configuration from the environment and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if cfg.PodName == "" {
		// Fall back to the unprefixed variable injected by the scheduler.
		cfg.PodName = os.Getenv("POD_NAME")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks required fields and value ranges.
func (c *Config) Validate() error {
	var errs []error
	if c.EventID <= 0 {
		errs = append(errs, fmt.Errorf("EVENT_ID must be a positive integer, got %d", c.EventID))
	}
	if c.PodName == "" {
		errs = append(errs, errors.New("POD_NAME is required"))
	}
	if c.FinalizeQuietPeriod <= 0 {
		errs = append(errs, fmt.Errorf("FINALIZE_QUIET_PERIOD must be positive, got %s", c.FinalizeQuietPeriod))
	}
	if c.LapFinalizeDelay < 0 {
		errs = append(errs, fmt.Errorf("LAP_FINALIZE_DELAY must not be negative, got %s", c.LapFinalizeDelay))
	}
	if c.PitDedupWindow <= 0 {
		errs = append(errs, fmt.Errorf("PIT_DEDUP_WINDOW must be positive, got %s", c.PitDedupWindow))
	}
	if c.StaleCheckMinLap < 0 {
		errs = append(errs, fmt.Errorf("STALE_CHECK_MIN_LAP must not be negative, got %d", c.StaleCheckMinLap))
	}
	if c.QueueDepth <= 0 {
		errs = append(errs, fmt.Errorf("QUEUE_DEPTH must be positive, got %d", c.QueueDepth))
	}
	return errors.Join(errs...)
}
