package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// Build-time variables injected via -ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// Config holds all memcheck configuration loaded from environment variables.
type Config struct {
	// Debug enables verbose logging.
	Debug bool

	// DataDir is the root directory for persistent data (device ID).
	DataDir string

	// LogDir is the directory for log files.
	LogDir string

	// VolumeDir is the directory backing the flash test volume.
	VolumeDir string

	// VolumeSize caps the flash test volume. Zero means the free space
	// of the underlying file system.
	VolumeSize uint64

	// PoolSize is the capacity of the external RAM pool filled by the
	// memory probe.
	PoolSize uint64

	// HeapSize is the capacity of the internal heap used as a fallback
	// for the storage probe's scratch buffer.
	HeapSize uint64

	// HTTPAddr enables the HTTP command surface when non-empty.
	HTTPAddr string

	// HTTPToken, when set, is required in the X-Memcheck-Token header.
	HTTPToken string

	// ReportURL enables publishing run reports to a collector when non-empty.
	ReportURL string

	// ReportToken is sent as a bearer token to the collector.
	ReportToken string

	// ProgressInterval is the minimum time between progress lines.
	ProgressInterval time.Duration
}

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		DataDir:          "/var/lib/memcheck",
		LogDir:           "/var/log/memcheck",
		VolumeDir:        "/var/lib/memcheck/volume",
		VolumeSize:       16 << 20,
		PoolSize:         8 << 20,
		HeapSize:         320 << 10,
		ProgressInterval: time.Second,
	}
}

// Load reads configuration from environment variables, applying defaults
// for anything not explicitly set. Returns an error if values are
// malformed.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	cfg.Debug = os.Getenv("MEMCHECK_DEBUG") == "true"

	if v := os.Getenv("MEMCHECK_DATA_DIR"); v != "" {
		cfg.DataDir = v
		cfg.VolumeDir = v + "/volume"
	}

	if v := os.Getenv("MEMCHECK_LOG_DIR"); v != "" {
		cfg.LogDir = v
	}

	if v := os.Getenv("MEMCHECK_VOLUME_DIR"); v != "" {
		cfg.VolumeDir = v
	}

	var err error
	if cfg.VolumeSize, err = sizeEnv("MEMCHECK_VOLUME_SIZE", cfg.VolumeSize); err != nil {
		return nil, err
	}
	if cfg.PoolSize, err = sizeEnv("MEMCHECK_POOL_SIZE", cfg.PoolSize); err != nil {
		return nil, err
	}
	if cfg.PoolSize == 0 {
		return nil, fmt.Errorf("MEMCHECK_POOL_SIZE must be greater than zero")
	}
	if cfg.HeapSize, err = sizeEnv("MEMCHECK_HEAP_SIZE", cfg.HeapSize); err != nil {
		return nil, err
	}

	cfg.HTTPAddr = strings.TrimSpace(os.Getenv("MEMCHECK_HTTP_ADDR"))
	cfg.HTTPToken = strings.TrimSpace(os.Getenv("MEMCHECK_HTTP_TOKEN"))

	cfg.ReportURL = strings.TrimSpace(os.Getenv("MEMCHECK_REPORT_URL"))
	if cfg.ReportURL != "" &&
		!strings.HasPrefix(cfg.ReportURL, "http://") &&
		!strings.HasPrefix(cfg.ReportURL, "https://") {
		return nil, fmt.Errorf("MEMCHECK_REPORT_URL must be an http or https URL")
	}
	cfg.ReportToken = strings.TrimSpace(os.Getenv("MEMCHECK_REPORT_TOKEN"))

	if v := os.Getenv("MEMCHECK_PROGRESS_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("MEMCHECK_PROGRESS_INTERVAL: %w", err)
		}
		if d <= 0 {
			return nil, fmt.Errorf("MEMCHECK_PROGRESS_INTERVAL must be positive")
		}
		cfg.ProgressInterval = d
	}

	return cfg, nil
}

// sizeEnv parses a human-readable size such as "8MiB" or "320 KiB".
func sizeEnv(key string, def uint64) (uint64, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := humanize.ParseBytes(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

// NewLogger creates a structured JSON logger writing to <LogDir>/<name>.log.
func NewLogger(cfg *Config, name string) (*slog.Logger, error) {
	if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}

	logPath := cfg.LogDir + "/" + name + ".log"
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file %s: %w", logPath, err)
	}

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}

	handler := slog.NewJSONHandler(file, &slog.HandlerOptions{Level: level})
	return slog.New(handler), nil
}
