package flash

import (
	"errors"
	"fmt"

	"github.com/qudata/memcheck/internal/domain"
	"github.com/qudata/memcheck/internal/memory"
)

const PhaseWriting = "writing"

// Writer fills a volume with a fixed pattern in bounded chunks.
type Writer struct {
	vol      Volume
	primary  memory.Allocator
	fallback memory.Allocator
	cfg      config
}

// NewWriter creates a writer for vol. The scratch buffer comes from
// primary, or from fallback when primary cannot serve it. Either
// allocator may be nil.
func NewWriter(vol Volume, primary, fallback memory.Allocator, opts ...Option) *Writer {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Writer{vol: vol, primary: primary, fallback: fallback, cfg: cfg}
}

// Probe mounts the volume, writes the artifact until the space that was
// available at the start is used up or a write comes up short, and
// unmounts again. Failures end the probe early and are reported through
// the result's Outcome and the log; they are never returned.
func (w *Writer) Probe(progress domain.ProgressFunc) domain.WriteResult {
	var res domain.WriteResult
	log := w.cfg.logger

	if err := w.mount(); err != nil {
		log.Error("volume mount failed", "err", err)
		res.Outcome = domain.OutcomeMountFailed
		return res
	}
	defer func() {
		if err := w.vol.Unmount(); err != nil {
			log.Warn("volume unmount failed", "err", err)
		}
	}()

	quota, err := w.vol.Quota()
	if err != nil {
		log.Error("volume quota failed", "err", domain.ErrMount{Op: "quota", Err: err})
		res.Outcome = domain.OutcomeMountFailed
		return res
	}
	res.Quota = quota

	available := quota.Available()
	if available == 0 {
		log.Warn("no available space on volume", "total", quota.Total, "used", quota.Used)
		res.Outcome = domain.OutcomeNoSpace
		return res
	}

	chunk := w.cfg.chunkSize
	if uint64(chunk) > available {
		chunk = int(available)
	}
	res.ChunkSize = chunk

	buf, release, err := w.scratch(chunk)
	if err != nil {
		log.Error("scratch buffer unavailable", "err", err)
		res.Outcome = domain.OutcomeBufferFailed
		return res
	}
	defer release()

	artifact, err := w.vol.Create(w.cfg.artifact)
	if err != nil {
		log.Error("artifact open failed", "err", domain.ErrArtifactOpen{Name: w.cfg.artifact, Err: err})
		res.Outcome = domain.OutcomeOpenFailed
		return res
	}

	log.Info("storage probe started",
		"total", quota.Total,
		"available", available,
		"chunk", chunk,
	)

	res.Outcome = domain.OutcomeComplete
	start := w.cfg.now()
	lastReport := start

	for res.TotalBytes < available {
		n := chunk
		if rem := available - res.TotalBytes; rem < uint64(n) {
			n = int(rem)
		}

		wrote, err := artifact.Write(buf[:n])
		if wrote > 0 {
			res.TotalBytes += uint64(wrote)
		}

		if wrote < n || err != nil {
			log.Warn("write error", "err", domain.ErrShortWrite{Requested: n, Written: wrote, Err: err})
			res.Outcome = domain.OutcomeShortWrite
			break
		}

		if res.TotalBytes > available {
			log.Error("accounting invariant violated",
				"err", domain.ErrAccounting{Written: res.TotalBytes, Available: available})
			res.Outcome = domain.OutcomeAccounting
			break
		}

		if now := w.cfg.now(); progress != nil && now.Sub(lastReport) >= w.cfg.progressInterval {
			lastReport = now
			progress(domain.Progress{
				Phase:   PhaseWriting,
				Bytes:   res.TotalBytes,
				Elapsed: now.Sub(start),
			})
		}
	}

	if err := artifact.Close(); err != nil {
		log.Warn("artifact close failed", "err", err)
	}
	res.Elapsed = w.cfg.now().Sub(start)

	log.Info("storage probe finished",
		"bytes", res.TotalBytes,
		"outcome", string(res.Outcome),
		"elapsed", res.Elapsed.String(),
	)
	return res
}

// mount mounts the volume, formatting it once if the first attempt fails.
func (w *Writer) mount() error {
	err := w.vol.Mount()
	if err == nil {
		return nil
	}

	w.cfg.logger.Warn("volume mount failed, formatting", "err", err)
	if err := w.vol.Format(); err != nil {
		return domain.ErrMount{Op: "format", Err: err}
	}
	if err := w.vol.Mount(); err != nil {
		return domain.ErrMount{Op: "mount", Err: err}
	}
	return nil
}

// scratch obtains a size-byte buffer stamped with the fill pattern.
func (w *Writer) scratch(size int) ([]byte, func(), error) {
	var errs []error
	for _, alloc := range []memory.Allocator{w.primary, w.fallback} {
		if alloc == nil {
			continue
		}
		r, err := alloc.Alloc(size)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if len(r.Bytes()) < size {
			alloc.Free(r)
			errs = append(errs, fmt.Errorf("allocator returned %d bytes without backing memory", r.Len()))
			continue
		}
		r.Fill(w.cfg.fill)
		return r.Bytes()[:size], func() { alloc.Free(r) }, nil
	}

	if len(errs) == 0 {
		errs = append(errs, errors.New("no allocator configured"))
	}
	return nil, nil, domain.ErrBufferAlloc{Size: size, Err: errors.Join(errs...)}
}
