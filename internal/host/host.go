package host

import (
	"context"
	"fmt"

	"github.com/pbnjay/memory"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/lazypower/tabpulse/internal/model"
)

const bytesPerMB = 1024 * 1024

// Host serves the engine from the registry and the local machine's memory
// counters.
type Host struct {
	*Registry
	log zerolog.Logger

	processRSS func(ctx context.Context, pid int32) (uint64, error)
	available  func(ctx context.Context) (uint64, error)
	free       func() uint64
}

// New creates a Host over an empty registry.
func New(log zerolog.Logger) *Host {
	return &Host{
		Registry:   NewRegistry(),
		log:        log.With().Str("component", "host").Logger(),
		processRSS: processRSS,
		available:  virtualAvailable,
		free:       memory.FreeMemory,
	}
}

// PreciseMemory prefers the browser-reported private memory, then the RSS
// of the tab's renderer process. Read failures count as unavailable.
func (h *Host) PreciseMemory(ctx context.Context, d model.Descriptor) (float64, bool) {
	if d.MemoryBytes > 0 {
		return float64(d.MemoryBytes) / bytesPerMB, true
	}
	if d.PID <= 0 {
		return 0, false
	}
	rss, err := h.processRSS(ctx, d.PID)
	if err != nil {
		h.log.Debug().Err(err).Int("tab", d.ID).Int32("pid", d.PID).Msg("process memory unavailable")
		return 0, false
	}
	return float64(rss) / bytesPerMB, true
}

// SystemAvailableMemory returns the host's available memory in MB.
func (h *Host) SystemAvailableMemory(ctx context.Context) (float64, error) {
	avail, err := h.available(ctx)
	if err == nil && avail > 0 {
		return float64(avail) / bytesPerMB, nil
	}
	if free := h.free(); free > 0 {
		return float64(free) / bytesPerMB, nil
	}
	if err == nil {
		err = fmt.Errorf("no memory counters available")
	}
	return 0, fmt.Errorf("read available memory: %w", err)
}

// TotalMemory returns the host's physical memory in MB, 0 if unknown.
func TotalMemory() float64 {
	return float64(memory.TotalMemory()) / bytesPerMB
}

func processRSS(ctx context.Context, pid int32) (uint64, error) {
	p, err := process.NewProcessWithContext(ctx, pid)
	if err != nil {
		return 0, err
	}
	info, err := p.MemoryInfoWithContext(ctx)
	if err != nil {
		return 0, err
	}
	return info.RSS, nil
}

func virtualAvailable(ctx context.Context) (uint64, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, err
	}
	return vm.Available, nil
}
