package domain

import (
	"errors"
	"io"
	"math"
	"testing"
	"time"
)

func TestStorageQuotaAvailable(t *testing.T) {
	tests := []struct {
		name string
		q    StorageQuota
		want uint64
	}{
		{"empty volume", StorageQuota{Total: 1 << 20}, 1 << 20},
		{"partly used", StorageQuota{Total: 100 << 10, Used: 40 << 10}, 60 << 10},
		{"full", StorageQuota{Total: 4096, Used: 4096}, 0},
		{"overcommitted", StorageQuota{Total: 4096, Used: 8192}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.q.Available(); got != tt.want {
				t.Errorf("Available() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestWriteResultThroughput(t *testing.T) {
	r := WriteResult{TotalBytes: 60 << 10, Elapsed: 2 * time.Second}
	bps, ok := r.Throughput()
	if !ok || bps != 30<<10 {
		t.Errorf("Throughput() = %v, %v", bps, ok)
	}

	if _, ok := (WriteResult{TotalBytes: 1024}).Throughput(); ok {
		t.Error("zero elapsed time produced a throughput")
	}
}

func TestAllocationResultRates(t *testing.T) {
	r := AllocationResult{
		TotalBytes: 8 << 20,
		Elapsed:    500 * time.Millisecond,
		PoolTotal:  8 << 20,
		PoolFree:   2 << 20,
	}
	if got := r.Throughput(); got != 16<<20 {
		t.Errorf("Throughput() = %v", got)
	}
	if got := r.Utilization(); math.Abs(got-75) > 1e-9 {
		t.Errorf("Utilization() = %v, want 75", got)
	}

	if got := (AllocationResult{}).Throughput(); got != 0 {
		t.Errorf("empty Throughput() = %v", got)
	}
	if got := (AllocationResult{PoolTotal: 10, PoolFree: 20}).Utilization(); got != 0 {
		t.Errorf("inconsistent pool Utilization() = %v", got)
	}
}

func TestHardwareLayout(t *testing.T) {
	h := HardwareInfo{Partitions: []Partition{
		{Label: "nvs", Address: 0x9000, Size: 0x5000},
		{Label: "app0", Address: 0x10000, Size: 0x140000},
		{Label: "spiffs", Address: 0x290000, Size: 0x160000},
	}}
	if got := h.HighestAddress(); got != 0x3F0000 {
		t.Errorf("HighestAddress() = %#x", got)
	}
	if got := h.TotalPartitionSize(); got != 0x2A5000 {
		t.Errorf("TotalPartitionSize() = %#x", got)
	}
	if got := h.InferredFlashSize(); got != h.HighestAddress() {
		t.Errorf("InferredFlashSize() = %#x", got)
	}
	if got := (HardwareInfo{}).HighestAddress(); got != 0 {
		t.Errorf("no partitions: HighestAddress() = %#x", got)
	}
}

func TestTotalPartitionSizeSkipsPartitionedDisks(t *testing.T) {
	h := HardwareInfo{Partitions: []Partition{
		{Label: "sda", Type: "disk", Size: 4 << 30},
		{Label: "sda1", Type: "part", Subtype: "sda", Address: 1 << 20, Size: 1 << 30},
		{Label: "sda2", Type: "part", Subtype: "sda", Address: 1<<30 + 1<<20, Size: 2 << 30},
		{Label: "sdb", Type: "disk", Size: 512 << 20},
	}}
	if got, want := h.TotalPartitionSize(), uint64(3<<30+512<<20); got != want {
		t.Errorf("TotalPartitionSize() = %d, want %d", got, want)
	}
	if got := h.HighestAddress(); got != 4<<30 {
		t.Errorf("HighestAddress() = %d, want end of sda", got)
	}
}

func TestErrorsUnwrap(t *testing.T) {
	err := ErrShortWrite{Requested: 4096, Written: 100, Err: io.ErrShortWrite}
	if !errors.Is(err, io.ErrShortWrite) {
		t.Error("ErrShortWrite does not unwrap to its cause")
	}

	var mount ErrMount
	if !errors.As(error(ErrMount{Op: "format", Err: ErrExhausted}), &mount) || mount.Op != "format" {
		t.Error("ErrMount not matched by errors.As")
	}
	if !errors.Is(ErrMount{Op: "format", Err: ErrExhausted}, ErrExhausted) {
		t.Error("ErrMount does not unwrap to its cause")
	}
}
