package flash

import (
	"io"
	"log/slog"
	"time"
)

const (
	// DefaultChunkSize is the largest single write.
	DefaultChunkSize = 32 * 1024

	// DefaultFillByte is the pattern written to the artifact.
	DefaultFillByte byte = 0xBB

	// DefaultArtifactName is the test file created on the volume.
	DefaultArtifactName = "test_file.bin"

	// DefaultProgressInterval is the wall-clock spacing of progress reports.
	DefaultProgressInterval = time.Second
)

type config struct {
	chunkSize        int
	fill             byte
	artifact         string
	progressInterval time.Duration
	now              func() time.Time
	logger           *slog.Logger
}

func defaultConfig() config {
	return config{
		chunkSize:        DefaultChunkSize,
		fill:             DefaultFillByte,
		artifact:         DefaultArtifactName,
		progressInterval: DefaultProgressInterval,
		now:              time.Now,
		logger:           slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// Option configures a Writer.
type Option func(*config)

// WithChunkSize sets the largest single write.
func WithChunkSize(size int) Option {
	return func(c *config) {
		if size > 0 {
			c.chunkSize = size
		}
	}
}

// WithFillByte sets the artifact pattern. Zero is rejected because it
// reads back like erased storage.
func WithFillByte(b byte) Option {
	return func(c *config) {
		if b != 0 {
			c.fill = b
		}
	}
}

// WithArtifactName sets the name of the test file.
func WithArtifactName(name string) Option {
	return func(c *config) {
		if name != "" {
			c.artifact = name
		}
	}
}

// WithProgressInterval sets how often progress is reported.
func WithProgressInterval(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.progressInterval = d
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *config) {
		if now != nil {
			c.now = now
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}
