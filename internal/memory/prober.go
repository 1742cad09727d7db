package memory

import (
	"errors"

	"github.com/qudata/memcheck/internal/domain"
)

const (
	PhaseBlocks    = "blocks"
	PhaseFragments = "fragments"
)

// Prober finds how much an allocator can really hand out by allocating
// until it refuses.
type Prober struct {
	alloc Allocator
	cfg   config
}

// NewProber creates a prober over alloc.
func NewProber(alloc Allocator, opts ...Option) *Prober {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Prober{alloc: alloc, cfg: cfg}
}

// Probe allocates blocks, halving the size after each refusal, until the
// size drops below the floor. It then takes floor-sized blocks until the
// first refusal. Every region is stamped and kept in the returned Arena;
// nothing is freed until the caller releases it.
//
// Running out of memory is the measurement, not an error: an exhausted
// allocator yields an all-zero result.
func (p *Prober) Probe(progress domain.ProgressFunc) (domain.AllocationResult, *Arena) {
	var res domain.AllocationResult
	arena := newArena(p.alloc)

	start := p.cfg.now()
	lastReport := start

	take := func(size int) bool {
		r, err := p.alloc.Alloc(size)
		if err != nil {
			if !errors.Is(err, domain.ErrExhausted) {
				p.cfg.logger.Debug("allocation refused", "size", size, "err", err)
			}
			return false
		}
		r.Fill(p.cfg.fill)
		arena.add(r, p.cfg.fill)
		res.TotalBytes += uint64(r.Len())
		res.Allocations++
		return true
	}

	report := func(phase string) {
		if progress == nil {
			return
		}
		now := p.cfg.now()
		if now.Sub(lastReport) < p.cfg.progressInterval {
			return
		}
		lastReport = now
		progress(domain.Progress{
			Phase:       phase,
			Bytes:       res.TotalBytes,
			Allocations: res.Allocations,
			Elapsed:     now.Sub(start),
		})
	}

	block := p.cfg.startBlock
	for block >= p.cfg.floorBlock {
		if !take(block) {
			block /= 2
		}
		report(PhaseBlocks)
	}

	for take(p.cfg.floorBlock) {
		report(PhaseFragments)
	}

	res.Elapsed = p.cfg.now().Sub(start)

	if s, ok := p.alloc.(Stats); ok {
		res.PoolTotal = s.Size()
		res.PoolFree = s.Available()
	}

	p.cfg.logger.Info("memory probe finished",
		"bytes", res.TotalBytes,
		"allocations", res.Allocations,
		"elapsed", res.Elapsed.String(),
	)

	return res, arena
}
