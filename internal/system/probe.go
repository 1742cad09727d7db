package system

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/qudata/memcheck/internal/domain"
	"github.com/qudata/memcheck/internal/memory"
)

// Probe collects static hardware facts for display. Nothing it returns
// feeds back into the capacity probes.
type Probe struct {
	pool memory.Stats

	procRoot string
	sysRoot  string
}

// NewProbe creates a probe that reports pool as the external RAM.
func NewProbe(pool memory.Stats) *Probe {
	return &Probe{pool: pool, procRoot: "/proc", sysRoot: "/sys"}
}

// Info returns a fresh hardware report.
func (p *Probe) Info() domain.HardwareInfo {
	cpu := parseCPUInfo(p.readProc("cpuinfo"))
	heapTotal, heapFree := parseMemInfo(p.readProc("meminfo"))

	info := domain.HardwareInfo{
		ChipModel:  cpu.model,
		Cores:      runtime.NumCPU(),
		Revision:   cpu.revision,
		CPUFreqMHz: cpu.mhz,
		Features:   cpu.features,
		MAC:        macAddress(),
		HeapTotal:  heapTotal,
		HeapFree:   heapFree,
		Partitions: p.partitions(),
	}
	if p.pool != nil {
		info.PoolTotal = p.pool.Size()
		info.PoolFree = p.pool.Available()
	}
	return info
}

func (p *Probe) readProc(name string) string {
	data, err := os.ReadFile(filepath.Join(p.procRoot, name))
	if err != nil {
		return ""
	}
	return string(data)
}

// --- CPU ---

type cpuInfo struct {
	model    string
	revision string
	mhz      float64
	features []string
}

func parseCPUInfo(data string) cpuInfo {
	info := cpuInfo{model: "unknown"}
	for _, line := range strings.Split(data, "\n") {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		switch key {
		case "model name", "Model":
			if info.model == "unknown" && value != "" {
				info.model = value
			}
		case "stepping", "CPU revision":
			if info.revision == "" {
				info.revision = value
			}
		case "cpu MHz":
			if info.mhz == 0 {
				info.mhz, _ = strconv.ParseFloat(value, 64)
			}
		case "flags", "Features":
			if info.features == nil {
				info.features = strings.Fields(value)
			}
		}
	}
	return info
}

// --- RAM ---

// parseMemInfo returns MemTotal and MemAvailable in bytes.
func parseMemInfo(data string) (total, available uint64) {
	for _, line := range strings.Split(data, "\n") {
		var kb uint64
		switch {
		case strings.HasPrefix(line, "MemTotal:"):
			fmt.Sscanf(line, "MemTotal: %d kB", &kb)
			total = kb * 1024
		case strings.HasPrefix(line, "MemAvailable:"):
			fmt.Sscanf(line, "MemAvailable: %d kB", &kb)
			available = kb * 1024
		}
	}
	return total, available
}

// --- Network ---

func macAddress() string {
	ifaces, err := net.Interfaces()
	if err != nil {
		return ""
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 || len(iface.HardwareAddr) == 0 {
			continue
		}
		return strings.ToUpper(iface.HardwareAddr.String())
	}
	return ""
}

// --- Partitions ---

type partitionEntry struct {
	name   string
	blocks uint64 // 1 KiB units
}

func parsePartitions(data string) []partitionEntry {
	var entries []partitionEntry
	for _, line := range strings.Split(data, "\n") {
		fields := strings.Fields(line)
		if len(fields) != 4 {
			continue
		}
		blocks, err := strconv.ParseUint(fields[2], 10, 64)
		if err != nil {
			continue // header
		}
		name := fields[3]
		if strings.HasPrefix(name, "loop") || strings.HasPrefix(name, "ram") {
			continue
		}
		entries = append(entries, partitionEntry{name: name, blocks: blocks})
	}
	return entries
}

func (p *Probe) partitions() []domain.Partition {
	var parts []domain.Partition
	for _, e := range parsePartitions(p.readProc("partitions")) {
		dir := filepath.Join(p.sysRoot, "class", "block", e.name)

		part := domain.Partition{
			Label:     e.name,
			Type:      "disk",
			Size:      e.blocks * 1024,
			Encrypted: p.encrypted(dir),
		}
		if _, err := os.Stat(filepath.Join(dir, "partition")); err == nil {
			part.Type = "part"
			part.Subtype = parentDevice(dir)
			if sector, ok := readUint(filepath.Join(dir, "start")); ok {
				part.Address = sector * 512
			}
		}
		parts = append(parts, part)
	}
	return parts
}

// encrypted reports whether a dm-crypt mapping sits on top of the device.
func (p *Probe) encrypted(dir string) bool {
	holders, err := os.ReadDir(filepath.Join(dir, "holders"))
	if err != nil {
		return false
	}
	for _, h := range holders {
		uuid, err := os.ReadFile(filepath.Join(p.sysRoot, "class", "block", h.Name(), "dm", "uuid"))
		if err == nil && strings.HasPrefix(string(uuid), "CRYPT-") {
			return true
		}
	}
	return false
}

func parentDevice(dir string) string {
	target, err := filepath.EvalSymlinks(dir)
	if err != nil {
		return ""
	}
	return filepath.Base(filepath.Dir(target))
}

func readUint(path string) (uint64, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	v, err := strconv.ParseUint(strings.TrimSpace(string(data)), 10, 64)
	return v, err == nil
}
