package domain

import "time"

// AllocationResult is the outcome of one memory capacity probe.
type AllocationResult struct {
	TotalBytes  uint64        `json:"total_bytes"`
	Allocations uint64        `json:"allocations"`
	Elapsed     time.Duration `json:"elapsed_ns"`

	// PoolTotal and PoolFree are filled in when the probed allocator
	// reports its own size. PoolFree is sampled after the probe.
	PoolTotal uint64 `json:"pool_total,omitempty"`
	PoolFree  uint64 `json:"pool_free,omitempty"`
}

// Throughput returns the allocation rate in bytes per second.
func (r AllocationResult) Throughput() float64 {
	if r.Elapsed <= 0 {
		return 0
	}
	return float64(r.TotalBytes) / r.Elapsed.Seconds()
}

// Utilization returns the share of the pool in use after the probe, in percent.
func (r AllocationResult) Utilization() float64 {
	if r.PoolTotal == 0 || r.PoolFree > r.PoolTotal {
		return 0
	}
	return 100.0 * float64(r.PoolTotal-r.PoolFree) / float64(r.PoolTotal)
}

// StorageQuota is the space report of a mounted volume.
type StorageQuota struct {
	Total uint64 `json:"total"`
	Used  uint64 `json:"used"`
}

// Available returns Total-Used, or 0 when the volume is full.
func (q StorageQuota) Available() uint64 {
	if q.Used >= q.Total {
		return 0
	}
	return q.Total - q.Used
}

// WriteOutcome says how a storage probe ended.
type WriteOutcome string

const (
	OutcomeNotRun       WriteOutcome = ""
	OutcomeComplete     WriteOutcome = "complete"
	OutcomeNoSpace      WriteOutcome = "no_space"
	OutcomeMountFailed  WriteOutcome = "mount_failed"
	OutcomeBufferFailed WriteOutcome = "buffer_failed"
	OutcomeOpenFailed   WriteOutcome = "open_failed"
	OutcomeShortWrite   WriteOutcome = "short_write"
	OutcomeAccounting   WriteOutcome = "accounting_violation"
)

// WriteResult is the outcome of one storage write probe.
type WriteResult struct {
	TotalBytes uint64        `json:"total_bytes"`
	Elapsed    time.Duration `json:"elapsed_ns"`
	Quota      StorageQuota  `json:"quota"`
	ChunkSize  int           `json:"chunk_size"`
	Outcome    WriteOutcome  `json:"outcome"`
}

// Throughput returns the average write rate in bytes per second.
// ok is false when the probe finished too quickly to measure.
func (r WriteResult) Throughput() (bps float64, ok bool) {
	if r.Elapsed <= 0 {
		return 0, false
	}
	return float64(r.TotalBytes) / r.Elapsed.Seconds(), true
}

// State holds the most recent probe results for the lifetime of the process.
type State struct {
	RunID     string           `json:"run_id,omitempty"`
	Memory    AllocationResult `json:"memory"`
	Storage   WriteResult      `json:"storage"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// RunReport is published to the report collector after every write test.
type RunReport struct {
	RunID    string           `json:"run_id"`
	DeviceID string           `json:"device_id"`
	Version  string           `json:"version"`
	Hardware HardwareInfo     `json:"hardware"`
	Memory   AllocationResult `json:"memory"`
	Storage  WriteResult      `json:"storage"`
}

// Progress is a periodic observation emitted while a probe runs.
type Progress struct {
	Phase       string        `json:"phase"`
	Bytes       uint64        `json:"bytes"`
	Allocations uint64        `json:"allocations,omitempty"`
	Elapsed     time.Duration `json:"elapsed_ns"`
}

// ProgressFunc receives progress observations. It must return quickly.
type ProgressFunc func(Progress)
