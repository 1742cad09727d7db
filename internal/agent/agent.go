package agent

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/qudata/memcheck/internal/config"
	"github.com/qudata/memcheck/internal/domain"
	"github.com/qudata/memcheck/internal/flash"
	"github.com/qudata/memcheck/internal/memory"
	"github.com/qudata/memcheck/internal/report"
	"github.com/qudata/memcheck/internal/selftest"
	"github.com/qudata/memcheck/internal/server"
	"github.com/qudata/memcheck/internal/storage"
	"github.com/qudata/memcheck/internal/system"
)

const publishTimeout = 2 * time.Minute

// Agent is the top-level application that wires the probes to the
// console and the optional HTTP and reporting surfaces.
type Agent struct {
	cfg    *config.Config
	logger *slog.Logger

	store      *storage.Store
	reporter   *report.Client
	probe      *system.Probe
	dispatcher *selftest.Dispatcher

	httpServer *server.Server

	in  io.Reader
	out io.Writer

	deviceID   string
	publishing sync.WaitGroup
}

// New creates and wires all subsystems.
func New(cfg *config.Config, logger *slog.Logger) (*Agent, error) {
	store, err := storage.NewStore(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	psram := memory.NewPool("psram", cfg.PoolSize)
	heap := memory.NewPool("heap", cfg.HeapSize)
	volume := flash.NewDirVolume(cfg.VolumeDir, cfg.VolumeSize)

	prober := memory.NewProber(psram,
		memory.WithLogger(logger),
		memory.WithProgressInterval(cfg.ProgressInterval),
	)
	writer := flash.NewWriter(volume, psram, heap,
		flash.WithLogger(logger),
		flash.WithProgressInterval(cfg.ProgressInterval),
	)

	a := &Agent{
		cfg:    cfg,
		logger: logger,
		store:  store,
		probe:  system.NewProbe(psram),
		in:     os.Stdin,
		out:    os.Stdout,
	}

	if cfg.ReportURL != "" {
		a.reporter = report.NewClient(cfg.ReportURL, cfg.ReportToken, logger)
	}

	a.dispatcher = selftest.NewDispatcher(prober, writer, logger,
		selftest.WithRunHook(a.publish),
	)

	if cfg.HTTPAddr != "" {
		a.httpServer = server.New(cfg.HTTPAddr, cfg.HTTPToken, a.dispatcher, a.probe, logger)
	}

	return a, nil
}

// Run prints the hardware banner and serves console commands until the
// context is cancelled. When the console reaches EOF and the HTTP surface
// is enabled, Run keeps serving HTTP until cancellation.
func (a *Agent) Run(ctx context.Context) error {
	deviceID, err := a.store.DeviceID()
	if err != nil {
		return fmt.Errorf("device id: %w", err)
	}
	a.deviceID = deviceID

	selftest.Banner(a.out, a.probe.Info())

	errCh := make(chan error, 1)
	if a.httpServer != nil {
		go func() {
			errCh <- a.httpServer.Start()
		}()
	}

	a.logger.Info("memcheck ready",
		"version", config.Version,
		"device_id", deviceID,
		"pool_size", a.cfg.PoolSize,
		"volume_dir", a.cfg.VolumeDir,
		"http", a.cfg.HTTPAddr != "",
		"report", a.reporter != nil,
	)

	if a.reporter != nil {
		a.publishing.Add(1)
		go a.checkCollector(ctx)
	}

	consoleErr := make(chan error, 1)
	go func() {
		consoleErr <- a.dispatcher.Serve(ctx, a.in, a.out)
	}()

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("shutting down")
			return a.shutdown()

		case err := <-consoleErr:
			if err != nil {
				a.shutdown()
				return fmt.Errorf("console: %w", err)
			}
			if a.httpServer == nil {
				a.logger.Info("console closed")
				return a.shutdown()
			}
			a.logger.Info("console closed, serving http only")
			consoleErr = nil

		case err := <-errCh:
			a.shutdown()
			if err != nil {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		}
	}
}

// checkCollector logs whether the collector is reachable. Reports are
// still attempted after a failed check.
func (a *Agent) checkCollector(ctx context.Context) {
	defer a.publishing.Done()

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := a.reporter.Ping(ctx); err != nil {
		a.logger.Warn("collector unreachable", "url", a.cfg.ReportURL, "err", err)
		return
	}
	a.logger.Info("collector reachable", "url", a.cfg.ReportURL)
}

// publish sends the finished run to the collector in the background so
// the console is not held up by retries.
func (a *Agent) publish(ctx context.Context, state domain.State) {
	if a.reporter == nil {
		return
	}

	rep := domain.RunReport{
		RunID:    state.RunID,
		DeviceID: a.deviceID,
		Version:  config.Version,
		Hardware: a.probe.Info(),
		Memory:   state.Memory,
		Storage:  state.Storage,
	}

	a.publishing.Add(1)
	go func() {
		defer a.publishing.Done()

		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
		defer cancel()

		if err := a.reporter.Publish(ctx, rep); err != nil {
			a.logger.Warn("failed to publish run report", "run_id", rep.RunID, "err", err)
			return
		}
		a.logger.Info("run report published", "run_id", rep.RunID)
	}()
}

func (a *Agent) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if a.httpServer != nil {
		if err := a.httpServer.Shutdown(ctx); err != nil {
			a.logger.Error("http server shutdown error", "err", err)
		}
	}

	done := make(chan struct{})
	go func() {
		a.publishing.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		a.logger.Warn("gave up waiting for run reports")
	}

	a.logger.Info("memcheck stopped")
	return nil
}
