// Package config loads process tunables from the environment, using the
// same caarlos0/env + godotenv pattern the rest of this project's family of
// webcam tools relies on.
package config

import (
	"github.com/caarlos0/env/v9"
)

// Config holds every tunable named by the pipeline: fetch limits, goal
// counts, file locations and server ports. Fields map 1:1 onto the
// constants the reference implementation hard-coded.
type Config struct {
	Webcams Webcams
	Fetch   Fetch
	Buffer  Buffer
	Server  Server
	Logging Logging
}

// Webcams points at the camera list file consumed by the registry and
// mutated by the health-check utility.
type Webcams struct {
	File string `env:"WEBCAM_FILE" envDefault:"webcams.txt"`
}

// Fetch bounds the concurrent-fetch and format-reader behavior.
type Fetch struct {
	ConcurrencyLimit   int `env:"FETCH_CONCURRENCY" envDefault:"50"`
	TimeoutSeconds     int `env:"FETCH_TIMEOUT" envDefault:"10"`
	MaxSnapshotBytes   int `env:"MAX_SNAPSHOT_BYTES" envDefault:"4194304"`
	MaxMJPEGScanBytes  int `env:"MAX_MJPEG_SCAN_BYTES" envDefault:"2097152"`
	SuccessGoal        int `env:"NUM_SUCCESSFUL_CAMERAS_GOAL" envDefault:"100"`
	FailureThreshold   int `env:"FAILURE_THRESHOLD" envDefault:"10"`
	DigestWindowSize   int `env:"RECENT_DIGEST_WINDOW" envDefault:"4"`
}

// Buffer configures the output buffer and its persistent mirror.
type Buffer struct {
	DBPath         string `env:"RNG_DB_FILE" envDefault:"rng_buffer.db"`
	LowWaterMark   int    `env:"BUFFER_SIZE" envDefault:"50"`
	BlocksPerRound int    `env:"NUM_RANDOMS_PER_FETCH" envDefault:"10"`
}

// Server configures the thin HTTP query service.
type Server struct {
	Port string `env:"PORT" envDefault:"8085"`
}

// Logging configures the zerolog + lumberjack rotating file sink.
type Logging struct {
	Level      string `env:"LOG_LEVEL" envDefault:"info"`
	File       string `env:"LOG_FILE" envDefault:"webcam_rng.log"`
	MaxSizeMB  int    `env:"LOG_MAX_SIZE_MB" envDefault:"5"`
	MaxBackups int    `env:"LOG_MAX_BACKUPS" envDefault:"3"`
}

// New loads Config from the environment (and any .env file loaded by the
// caller via godotenv/autoload), applying defaults for anything unset.
func New() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
