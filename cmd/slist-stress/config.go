package main

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/23skdu/slist/internal/arena"
	"github.com/23skdu/slist/internal/codec"
	"github.com/23skdu/slist/internal/limiter"
)

const envPrefix = "SLIST"

const (
	ModeConservation = "conservation"
	ModeChurn        = "churn"
)

// Config validation errors
var (
	ErrInvalidMode             = errors.New("mode must be 'conservation' or 'churn'")
	ErrInvalidCodec            = errors.New("codec must be auto, narrow, or wide")
	ErrInvalidWorkers          = errors.New("workers must be positive")
	ErrInvalidEntriesPerWorker = errors.New("entries_per_worker must be positive")
	ErrInvalidBatchSize        = errors.New("batch_size must be between 1 and 65535")
	ErrInvalidDuration         = errors.New("duration must be positive")
	ErrInvalidRateLimit        = errors.New("rate_limit cannot be negative")
	ErrInvalidSlabEntries      = errors.New("slab_entries out of range")
	ErrInvalidMaxSlabs         = errors.New("max_slabs out of range")
	ErrInsufficientCapacity    = errors.New("arena capacity cannot hold every entry the run keeps live")
	ErrInvalidLogFormat        = errors.New("log_format must be 'json' or 'console'")
	ErrInvalidLogLevel         = errors.New("log_level must be debug, info, warn, or error")
)

// Config is read from SLIST_* environment variables; flags override it.
type Config struct {
	Mode             string        `envconfig:"MODE" default:"conservation"`
	Codec            string        `envconfig:"CODEC" default:"auto"`
	Workers          int           `envconfig:"WORKERS" default:"4"`
	EntriesPerWorker int           `envconfig:"ENTRIES_PER_WORKER" default:"10000"`
	BatchSize        int           `envconfig:"BATCH_SIZE" default:"1"`
	Duration         time.Duration `envconfig:"DURATION" default:"5s"`
	RateLimit        int           `envconfig:"RATE_LIMIT" default:"0"` // ops/s per producer, 0 is unlimited
	SlabEntries      int           `envconfig:"SLAB_ENTRIES" default:"4096"`
	MaxSlabs         int           `envconfig:"MAX_SLABS" default:"1024"`
	MetricsAddr      string        `envconfig:"METRICS_ADDR" default:""`
	LogFormat        string        `envconfig:"LOG_FORMAT" default:"json"`
	LogLevel         string        `envconfig:"LOG_LEVEL" default:"info"`
}

// DefaultConfig returns a Config with default values
func DefaultConfig() Config {
	return Config{
		Mode:             ModeConservation,
		Codec:            codec.NameAuto,
		Workers:          4,
		EntriesPerWorker: 10000,
		BatchSize:        1,
		Duration:         5 * time.Second,
		RateLimit:        0,
		SlabEntries:      4096,
		MaxSlabs:         1024,
		MetricsAddr:      "",
		LogFormat:        "json",
		LogLevel:         "info",
	}
}

// LoadConfig applies an optional dotenv file to the process environment and
// then decodes SLIST_* variables. A missing file is not an error.
func LoadConfig(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", envFile, err)
		}
	}
	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("process environment: %w", err)
	}
	return cfg, nil
}

// ParseFlags overrides cfg with any flags present in args.
func ParseFlags(args []string, cfg *Config) error {
	flags := flag.NewFlagSet("slist-stress", flag.ContinueOnError)
	flags.StringVar(&cfg.Mode, "mode", cfg.Mode, "Stress mode: 'conservation' or 'churn'")
	flags.StringVar(&cfg.Codec, "codec", cfg.Codec, "Header layout: auto, narrow, or wide")
	flags.IntVar(&cfg.Workers, "workers", cfg.Workers, "Number of producers and of consumers")
	flags.IntVar(&cfg.EntriesPerWorker, "entries", cfg.EntriesPerWorker, "Entries pushed by each producer (conservation mode)")
	flags.IntVar(&cfg.BatchSize, "batch-size", cfg.BatchSize, "Entries per push; values above 1 use PushBatch")
	flags.DurationVar(&cfg.Duration, "duration", cfg.Duration, "Run length (churn mode)")
	flags.IntVar(&cfg.RateLimit, "rate-limit", cfg.RateLimit, "Operations per second per producer, 0 for unlimited")
	flags.IntVar(&cfg.SlabEntries, "slab-entries", cfg.SlabEntries, "Entries per arena slab")
	flags.IntVar(&cfg.MaxSlabs, "max-slabs", cfg.MaxSlabs, "Maximum arena slabs")
	flags.StringVar(&cfg.MetricsAddr, "metrics", cfg.MetricsAddr, "Address for the Prometheus /metrics endpoint, empty to disable")
	flags.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log format: json or console")
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn, or error")
	return flags.Parse(args)
}

// ValidateConfig validates the configuration and returns an error if invalid
func ValidateConfig(cfg *Config) error {
	if cfg.Mode != ModeConservation && cfg.Mode != ModeChurn {
		return ErrInvalidMode
	}
	if _, err := codec.Lookup(cfg.Codec); err != nil {
		return ErrInvalidCodec
	}
	if cfg.Workers <= 0 {
		return ErrInvalidWorkers
	}
	if cfg.EntriesPerWorker <= 0 {
		return ErrInvalidEntriesPerWorker
	}
	if cfg.BatchSize <= 0 || cfg.BatchSize > 0xFFFF {
		return ErrInvalidBatchSize
	}
	if cfg.Duration <= 0 {
		return ErrInvalidDuration
	}
	if cfg.RateLimit < 0 {
		return ErrInvalidRateLimit
	}
	if cfg.SlabEntries <= 0 || cfg.SlabEntries > arena.MaxSlabEntries {
		return ErrInvalidSlabEntries
	}
	if cfg.MaxSlabs <= 0 || cfg.MaxSlabs > arena.MaxSlabs {
		return ErrInvalidMaxSlabs
	}
	if uint64(cfg.SlabEntries)*uint64(cfg.MaxSlabs) < LiveEntries(cfg) {
		return ErrInsufficientCapacity
	}
	if cfg.LogFormat != "json" && cfg.LogFormat != "console" {
		return ErrInvalidLogFormat
	}
	if cfg.LogLevel != "debug" && cfg.LogLevel != "info" && cfg.LogLevel != "warn" && cfg.LogLevel != "error" {
		return ErrInvalidLogLevel
	}
	return nil
}

// LiveEntries is the most entries a run holds at once.
func LiveEntries(cfg *Config) uint64 {
	if cfg.Mode == ModeChurn {
		return uint64(cfg.Workers) * uint64(cfg.BatchSize)
	}
	return uint64(cfg.Workers) * uint64(cfg.EntriesPerWorker)
}

// BuildArenaConfig creates the arena sizing from config
func BuildArenaConfig(cfg *Config) arena.Config {
	return arena.Config{
		SlabEntries: cfg.SlabEntries,
		MaxSlabs:    cfg.MaxSlabs,
	}
}

// BuildLimiterConfig creates per-producer pacing from config. Burst covers
// a whole batch so PushBatch never asks for more tokens than the bucket
// holds.
func BuildLimiterConfig(cfg *Config) limiter.Config {
	burst := cfg.RateLimit
	if burst > 0 && burst < cfg.BatchSize {
		burst = cfg.BatchSize
	}
	return limiter.Config{
		RPS:   cfg.RateLimit,
		Burst: burst,
	}
}
