package memory

import (
	"io"
	"log/slog"
	"time"
)

const (
	// DefaultStartBlock is the first block size the prober requests.
	DefaultStartBlock = 32 * 1024

	// DefaultFloorBlock is the smallest block size the prober requests.
	DefaultFloorBlock = 1024

	// DefaultFillByte is stamped into every allocated region.
	DefaultFillByte byte = 0xAA

	// DefaultProgressInterval is the wall-clock spacing of progress reports.
	DefaultProgressInterval = time.Second
)

type config struct {
	startBlock       int
	floorBlock       int
	fill             byte
	progressInterval time.Duration
	now              func() time.Time
	logger           *slog.Logger
}

func defaultConfig() config {
	return config{
		startBlock:       DefaultStartBlock,
		floorBlock:       DefaultFloorBlock,
		fill:             DefaultFillByte,
		progressInterval: DefaultProgressInterval,
		now:              time.Now,
		logger:           slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// Option configures a Prober.
type Option func(*config)

// WithBlockSizes sets the starting and the floor block size. Values that
// are not positive, or a start below the floor, are ignored.
func WithBlockSizes(start, floor int) Option {
	return func(c *config) {
		if floor > 0 && start >= floor {
			c.startBlock = start
			c.floorBlock = floor
		}
	}
}

// WithFillByte sets the byte stamped into allocated regions. Zero is
// rejected because it cannot be told apart from untouched memory.
func WithFillByte(b byte) Option {
	return func(c *config) {
		if b != 0 {
			c.fill = b
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
