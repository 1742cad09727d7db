package domain

// Partition describes one entry of the device partition table.
type Partition struct {
	Label     string `json:"label"`
	Type      string `json:"type"`
	Subtype   string `json:"subtype"`
	Address   uint64 `json:"address"`
	Size      uint64 `json:"size"`
	Encrypted bool   `json:"encrypted"`
}

// HardwareInfo is the read-only identity and capacity report of the device.
type HardwareInfo struct {
	ChipModel  string      `json:"chip_model"`
	Cores      int         `json:"cores"`
	Revision   string      `json:"revision"`
	CPUFreqMHz float64     `json:"cpu_freq_mhz"`
	Features   []string    `json:"features,omitempty"`
	MAC        string      `json:"mac"`
	PoolTotal  uint64      `json:"pool_total"`
	PoolFree   uint64      `json:"pool_free"`
	HeapTotal  uint64      `json:"heap_total"`
	HeapFree   uint64      `json:"heap_free"`
	Partitions []Partition `json:"partitions"`
}

// HighestAddress returns the end address of the furthest partition.
func (h HardwareInfo) HighestAddress() uint64 {
	var highest uint64
	for _, p := range h.Partitions {
		if end := p.Address + p.Size; end > highest {
			highest = end
		}
	}
	return highest
}

// TotalPartitionSize sums the sizes of all partitions. A whole-disk
// entry counts only when no partition of it is listed.
func (h HardwareInfo) TotalPartitionSize() uint64 {
	parents := make(map[string]bool)
	for _, p := range h.Partitions {
		if p.Type != "disk" && p.Subtype != "" {
			parents[p.Subtype] = true
		}
	}

	var total uint64
	for _, p := range h.Partitions {
		if p.Type == "disk" && parents[p.Label] {
			continue
		}
		total += p.Size
	}
	return total
}

// InferredFlashSize guesses the size of the backing device from the
// partition layout.
func (h HardwareInfo) InferredFlashSize() uint64 {
	return h.HighestAddress()
}
