package gpu

import (
	"context"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/pxseu/flipper-pc-monitor-backend/internal/execx"
)

// AppleIntelProbe covers Intel iGPUs in pre-Apple-Silicon Macs. The
// registry exposes the framebuffer size but no utilization counters, so
// usage and used-memory stay zero.
type AppleIntelProbe struct {
	runner execx.Runner
	logger *slog.Logger
}

// NewAppleIntelProbe constructs the probe.
func NewAppleIntelProbe(runner execx.Runner, logger *slog.Logger) *AppleIntelProbe {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &AppleIntelProbe{runner: runner, logger: logger.With("probe", "apple_intel")}
}

// Name implements Probe.
func (p *AppleIntelProbe) Name() string { return "apple-intel" }

// Probe implements Probe.
func (p *AppleIntelProbe) Probe(ctx context.Context) (Sample, bool) {
	dump, ok := ioregDump(ctx, p.runner)
	if !ok {
		return Sample{}, false
	}
	return p.parse(dump)
}

func (p *AppleIntelProbe) parse(dump string) (Sample, bool) {
	var (
		vramMax uint64
		isIntel bool
	)

	for _, line := range strings.Split(dump, "\n") {
		if strings.Contains(line, `"IOClass" = "IntelAccelerator"`) ||
			strings.Contains(line, `"model" = <"Intel`) {
			isIntel = true
		}

		if !strings.Contains(line, `"VRAM,totalMB"`) {
			continue
		}
		if mb, ok := parseVRAMTotalMB(line); ok {
			vramMax = mb
		}
	}

	// Zero VRAM is treated as absent; the probe must not outrank a later
	// one on the strength of a marker alone.
	if !isIntel || vramMax == 0 {
		return Sample{}, false
	}

	return Sample{VRAMMax: vramMax, Name: "Intel GPU"}, true
}

// parseVRAMTotalMB extracts the integer from a line like
// `"VRAM,totalMB" = <1536>`: the value follows '=' wrapped in angle
// brackets and is already in MiB.
func parseVRAMTotalMB(line string) (uint64, bool) {
	eq := strings.IndexByte(line, '=')
	if eq < 0 {
		return 0, false
	}

	raw := strings.TrimSpace(line[eq+1:])
	raw = strings.TrimPrefix(raw, "<")
	raw = strings.TrimSuffix(raw, ">")
	raw = strings.TrimSpace(raw)

	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return value, true
}
