package gpu

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"github.com/pxseu/flipper-pc-monitor-backend/internal/execx"
)

const (
	appleSiliconArch = "arm64"

	deviceUtilizationKey = `"Device Utilization %"=`
	inUseMemoryKey       = `"In use system memory"=`
	allocMemoryKey       = `"Alloc system memory"=`
)

// AppleSiliconProbe reads GPU statistics for Apple-designed GPUs from the
// IOAccelerator registry subtree. Apple GPUs share system memory, so the
// "VRAM" figures are the accelerator's slice of unified memory.
type AppleSiliconProbe struct {
	runner execx.Runner
	logger *slog.Logger
}

// NewAppleSiliconProbe constructs the probe.
func NewAppleSiliconProbe(runner execx.Runner, logger *slog.Logger) *AppleSiliconProbe {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &AppleSiliconProbe{runner: runner, logger: logger.With("probe", "apple_silicon")}
}

// Name implements Probe.
func (p *AppleSiliconProbe) Name() string { return "apple-silicon" }

// Probe implements Probe. Stage one checks the machine architecture,
// which is a cheap negative on Intel Macs; stage two scans the registry
// dump line by line.
func (p *AppleSiliconProbe) Probe(ctx context.Context) (Sample, bool) {
	arch, err := p.runner.Run(ctx, "uname", "-m")
	if err != nil {
		return Sample{}, false
	}
	if strings.TrimSpace(arch) != appleSiliconArch {
		return Sample{}, false
	}

	dump, ok := ioregDump(ctx, p.runner)
	if !ok {
		return Sample{}, false
	}
	return p.parse(dump)
}

func (p *AppleSiliconProbe) parse(dump string) (Sample, bool) {
	var (
		sample     Sample
		isAppleGPU bool
	)

	for _, line := range strings.Split(dump, "\n") {
		if strings.Contains(line, "AGXAccelerator") || strings.Contains(line, `"model" = "Apple`) {
			isAppleGPU = true
		}

		if !strings.Contains(line, `"PerformanceStatistics"`) {
			continue
		}

		if usage, ok := scanIoregNumber(line, deviceUtilizationKey); ok {
			sample.Usage = usage
		}
		if mem, ok := scanIoregNumber(line, inUseMemoryKey); ok {
			sample.VRAMUsed = bytesToMiB(mem)
		}
		if mem, ok := scanIoregNumber(line, allocMemoryKey); ok {
			sample.VRAMMax = bytesToMiB(mem)
		}
	}

	// Statistics without the Apple marker mean some other accelerator
	// answered the registry query.
	if !isAppleGPU {
		return Sample{}, false
	}

	sample.Name = "Apple GPU"
	return sample, true
}
