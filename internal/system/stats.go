package system

import (
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// Stats is a snapshot of host and process resource usage.
type Stats struct {
	LogicalCPUs   int
	ProcessCPU    float64 // percent of one core
	ProcessRSS    uint64
	HostMemTotal  uint64
	HostMemUsed   float64 // percent
	Goroutines    int
	HeapAllocated uint64
}

// CollectStats reads the current resource usage. Fields gopsutil cannot read
// on this platform stay zero.
func CollectStats() (Stats, error) {
	var s Stats
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	s.Goroutines = runtime.NumGoroutine()
	s.HeapAllocated = ms.HeapAlloc

	var errs []string
	if n, err := cpu.Counts(true); err == nil {
		s.LogicalCPUs = n
	} else {
		errs = append(errs, err.Error())
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		s.HostMemTotal = vm.Total
		s.HostMemUsed = vm.UsedPercent
	} else {
		errs = append(errs, err.Error())
	}
	if p, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if pct, err := p.CPUPercent(); err == nil {
			s.ProcessCPU = pct
		}
		if mi, err := p.MemoryInfo(); err == nil {
			s.ProcessRSS = mi.RSS
		}
	} else {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return s, fmt.Errorf("partial stats: %s", strings.Join(errs, "; "))
	}
	return s, nil
}

// Report formats a performance report in the CLI's style.
func Report(build string, phases map[string]time.Duration, order []string, s Stats) string {
	var b strings.Builder
	b.WriteString("--- [PERFORMANCE REPORT] ---\n")
	fmt.Fprintf(&b, "Build: %s\n", build)
	for _, name := range order {
		fmt.Fprintf(&b, "%s: %.2fs\n", name, phases[name].Seconds())
	}
	fmt.Fprintf(&b, "CPU: %d logical | process %.1f%%\n", s.LogicalCPUs, s.ProcessCPU)
	fmt.Fprintf(&b, "Memory: RSS %.1f MiB | heap %.1f MiB | host used %.1f%%\n",
		mib(s.ProcessRSS), mib(s.HeapAllocated), s.HostMemUsed)
	fmt.Fprintf(&b, "Goroutines: %d\n", s.Goroutines)
	b.WriteString("----------------------------\n")
	return b.String()
}

func mib(n uint64) float64 {
	return float64(n) / (1 << 20)
}
