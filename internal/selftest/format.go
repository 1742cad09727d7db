package selftest

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/qudata/memcheck/internal/domain"
)

const separator = "************************************"

// PrintHardware writes the device identity and capacity report.
func PrintHardware(out io.Writer, info domain.HardwareInfo) {
	fmt.Fprintln(out, "Chip Information:")
	fmt.Fprintf(out, "  Model: %s\n", info.ChipModel)
	fmt.Fprintf(out, "  Cores: %d\n", info.Cores)
	if info.Revision != "" {
		fmt.Fprintf(out, "  Revision: %s\n", info.Revision)
	}
	if len(info.Features) > 0 {
		fmt.Fprintf(out, "  Features: %s\n", strings.Join(info.Features, " "))
	}
	fmt.Fprintln(out, separator)

	if info.CPUFreqMHz > 0 {
		fmt.Fprintf(out, "CPU Frequency: %.0f MHz\n", info.CPUFreqMHz)
		fmt.Fprintln(out, separator)
	}

	mac := info.MAC
	if mac == "" {
		mac = "unknown"
	}
	fmt.Fprintf(out, "MAC Address: %s\n", mac)
	fmt.Fprintln(out, separator)

	fmt.Fprintln(out, "PSRAM Information:")
	fmt.Fprintf(out, "  Total Size: %s\n", humanize.IBytes(info.PoolTotal))
	fmt.Fprintf(out, "  Free Size: %s\n", humanize.IBytes(info.PoolFree))
	fmt.Fprintln(out, separator)

	fmt.Fprintln(out, "Built-in RAM Information:")
	fmt.Fprintf(out, "  Total Size: %s\n", humanize.IBytes(info.HeapTotal))
	fmt.Fprintf(out, "  Free Size: %s\n", humanize.IBytes(info.HeapFree))
	fmt.Fprintln(out, separator)

	fmt.Fprintln(out, "Partition Information:")
	if len(info.Partitions) == 0 {
		fmt.Fprintln(out, "  No partitions found.")
	}
	for _, p := range info.Partitions {
		encrypted := "No"
		if p.Encrypted {
			encrypted = "Yes"
		}
		fmt.Fprintf(out, "  Label: %s\n", p.Label)
		fmt.Fprintf(out, "    Type: %s, Subtype: %s\n", p.Type, p.Subtype)
		fmt.Fprintf(out, "    Address: 0x%X\n", p.Address)
		fmt.Fprintf(out, "    Size: %s\n", humanize.IBytes(p.Size))
		fmt.Fprintf(out, "    Encrypted: %s\n", encrypted)
	}
	fmt.Fprintf(out, "Highest Partition Address: 0x%X\n", info.HighestAddress())
	fmt.Fprintf(out, "Total Partition Size: %s\n", humanize.IBytes(info.TotalPartitionSize()))
	fmt.Fprintf(out, "Inferred Total Flash Size: %s\n", humanize.IBytes(info.InferredFlashSize()))
	fmt.Fprintln(out, separator)
}

// Banner writes the start-up report: hardware facts followed by the
// command list.
func Banner(out io.Writer, info domain.HardwareInfo) {
	PrintHardware(out, info)
	PrintHelp(out)
}

// PrintHelp writes the command list.
func PrintHelp(out io.Writer) {
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Commands:")
	fmt.Fprintln(out, "'w' - Write test (fill RAM and Flash)")
	fmt.Fprintln(out, "'r' - Read test (report allocated RAM and written Flash)")
}

func printMemory(out io.Writer, res domain.AllocationResult) {
	fmt.Fprintf(out, "Allocated RAM: %d bytes (%s)\n", res.TotalBytes, humanize.IBytes(res.TotalBytes))
	fmt.Fprintf(out, "Number of allocations: %d\n", res.Allocations)
	fmt.Fprintf(out, "Allocation speed: %.2f KB/s\n", res.Throughput()/1024)
	if res.PoolTotal > 0 {
		fmt.Fprintf(out, "Total PSRAM: %d bytes (%s)\n", res.PoolTotal, humanize.IBytes(res.PoolTotal))
		fmt.Fprintf(out, "Free PSRAM after allocation: %d bytes (%s)\n", res.PoolFree, humanize.IBytes(res.PoolFree))
		fmt.Fprintf(out, "PSRAM utilization: %.2f%%\n", res.Utilization())
	}
}

func printStorage(out io.Writer, res domain.WriteResult) {
	switch res.Outcome {
	case domain.OutcomeMountFailed:
		fmt.Fprintln(out, "Flash mount failed")
		return
	case domain.OutcomeNoSpace:
		fmt.Fprintln(out, "No available space in flash volume")
		return
	}

	fmt.Fprintf(out, "Total flash space: %d bytes\n", res.Quota.Total)
	fmt.Fprintf(out, "Available space: %d bytes\n", res.Quota.Available())

	switch res.Outcome {
	case domain.OutcomeBufferFailed:
		fmt.Fprintln(out, "Failed to allocate buffer")
		return
	case domain.OutcomeOpenFailed:
		fmt.Fprintln(out, "Failed to open file for writing")
		return
	case domain.OutcomeShortWrite:
		fmt.Fprintln(out, "Reached end of available space or write error occurred")
	case domain.OutcomeAccounting:
		fmt.Fprintln(out, "Error: Written more than available space")
	}

	fmt.Fprintf(out, "Using buffer size: %d bytes\n", res.ChunkSize)
	fmt.Fprintf(out, "Total Written Flash: %d bytes\n", res.TotalBytes)
	if bps, ok := res.Throughput(); ok {
		fmt.Fprintf(out, "Average Write speed: %.2f KB/s\n", bps/1024)
	} else {
		fmt.Fprintln(out, "Write duration too short to calculate speed")
	}
}

func printResults(out io.Writer, state domain.State) {
	fmt.Fprintf(out, "Allocated RAM: %d bytes\n", state.Memory.TotalBytes)
	fmt.Fprintf(out, "Written Flash: %d bytes\n", state.Storage.TotalBytes)
}
