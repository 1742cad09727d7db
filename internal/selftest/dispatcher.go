// Package selftest dispatches single-character console commands to the
// capacity probes and keeps their latest results.
package selftest

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/qudata/memcheck/internal/domain"
	"github.com/qudata/memcheck/internal/memory"
)

const (
	CmdWrite = 'w'
	CmdRead  = 'r'
)

const unknownCommandMsg = "Unknown command. Use 'w' to write or 'r' to read."

// MemoryProber is satisfied by *memory.Prober.
type MemoryProber interface {
	Probe(progress domain.ProgressFunc) (domain.AllocationResult, *memory.Arena)
}

// StorageProber is satisfied by *flash.Writer.
type StorageProber interface {
	Probe(progress domain.ProgressFunc) domain.WriteResult
}

// RunHook is called with the new state after every write test.
type RunHook func(ctx context.Context, state domain.State)

// Dispatcher owns the process state. Commands run one at a time; a
// command arriving while a probe runs waits for it to finish.
type Dispatcher struct {
	mem     MemoryProber
	storage StorageProber
	logger  *slog.Logger

	hook  RunHook
	newID func() string
	now   func() time.Time

	mu    sync.Mutex
	state domain.State
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithRunHook registers a hook called after every write test.
func WithRunHook(hook RunHook) Option {
	return func(d *Dispatcher) {
		d.hook = hook
	}
}

// WithClock replaces time.Now for state timestamps.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) {
		if now != nil {
			d.now = now
		}
	}
}

func NewDispatcher(mem MemoryProber, storage StorageProber, logger *slog.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		mem:     mem,
		storage: storage,
		logger:  logger,
		newID:   uuid.NewString,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// State returns a copy of the latest results.
func (d *Dispatcher) State() domain.State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Handle runs one command and writes its human-readable output to out.
// An unknown command is reported on out and returned as
// domain.ErrUnknownCommand; the state is left untouched.
func (d *Dispatcher) Handle(ctx context.Context, cmd byte, out io.Writer) error {
	switch cmd {
	case CmdWrite:
		state := d.runWriteTest(out)
		if d.hook != nil {
			d.hook(ctx, state)
		}
		return nil

	case CmdRead:
		printResults(out, d.State())
		return nil

	default:
		d.logger.Debug("unknown command", "cmd", string(cmd))
		fmt.Fprintln(out, unknownCommandMsg)
		return domain.ErrUnknownCommand{Command: cmd}
	}
}

func (d *Dispatcher) runWriteTest(out io.Writer) domain.State {
	d.mu.Lock()
	defer d.mu.Unlock()

	runID := d.newID()
	d.logger.Info("write test started", "run_id", runID)

	fmt.Fprintln(out, "Filling RAM...")
	mem, arena := d.mem.Probe(func(p domain.Progress) {
		fmt.Fprintf(out, "Allocated %s\n", humanize.IBytes(p.Bytes))
	})
	printMemory(out, mem)

	// The arena stays alive through the storage probe, so the scratch
	// buffer has to come from whatever the memory probe left behind.
	fmt.Fprintln(out, "Filling Flash...")
	storage := d.storage.Probe(func(p domain.Progress) {
		fmt.Fprintf(out, "Written %s\n", humanize.IBytes(p.Bytes))
	})
	arena.Release()
	printStorage(out, storage)

	d.state = domain.State{
		RunID:     runID,
		Memory:    mem,
		Storage:   storage,
		UpdatedAt: d.now(),
	}

	d.logger.Info("write test finished",
		"run_id", runID,
		"ram_bytes", mem.TotalBytes,
		"flash_bytes", storage.TotalBytes,
		"flash_outcome", string(storage.Outcome),
	)
	return d.state
}

// Serve reads commands from in one byte at a time and dispatches each
// before reading the next. CR and LF are line framing and are skipped.
// It returns nil on EOF or when ctx is cancelled.
func (d *Dispatcher) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	cmds := make(chan byte)
	readErr := make(chan error, 1)

	go func() {
		r := bufio.NewReader(in)
		for {
			b, err := r.ReadByte()
			if err != nil {
				readErr <- err
				return
			}
			select {
			case cmds <- b:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read command: %w", err)
		case b := <-cmds:
			if b == '\r' || b == '\n' {
				continue
			}
			_ = d.Handle(ctx, b, out)
		}
	}
}
