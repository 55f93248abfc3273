package gpu

import (
	"context"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/pxseu/flipper-pc-monitor-backend/internal/execx"
)

// WindowsIntelProbe lists video controllers through WMI and picks the
// first Intel-named adapter with a reported RAM size. WMI exposes no
// utilization, so usage and used-memory stay zero.
type WindowsIntelProbe struct {
	runner execx.Runner
	logger *slog.Logger
}

// NewWindowsIntelProbe constructs the probe.
func NewWindowsIntelProbe(runner execx.Runner, logger *slog.Logger) *WindowsIntelProbe {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &WindowsIntelProbe{runner: runner, logger: logger.With("probe", "windows_intel")}
}

// Name implements Probe.
func (p *WindowsIntelProbe) Name() string { return "windows-intel" }

// Probe implements Probe.
func (p *WindowsIntelProbe) Probe(ctx context.Context) (Sample, bool) {
	out, err := p.runner.Run(ctx,
		"wmic", "path", "win32_VideoController", "get", "Name,AdapterRAM", "/format:csv")
	if err != nil {
		return Sample{}, false
	}
	return p.parse(out)
}

func (p *WindowsIntelProbe) parse(report string) (Sample, bool) {
	lines := strings.Split(report, "\n")
	if len(lines) < 2 {
		return Sample{}, false
	}

	// First line is the CSV header.
	for _, line := range lines[1:] {
		line = strings.TrimSpace(line)
		if line == "" || !strings.Contains(strings.ToLower(line), "intel") {
			continue
		}

		ramBytes, name, ok := parseControllerRow(line)
		if !ok {
			continue
		}
		return Sample{VRAMMax: bytesToMiB(ramBytes), Name: name}, true
	}

	return Sample{}, false
}

// parseControllerRow pulls the adapter RAM out of a CSV row. wmic orders
// the requested columns alphabetically and prepends the node name, so the
// RAM column is found by value shape (the first positive integer) rather
// than by position.
func parseControllerRow(line string) (ramBytes uint64, name string, ok bool) {
	parts := strings.Split(line, ",")
	if len(parts) < 2 {
		return 0, "", false
	}

	for _, part := range parts {
		part = strings.TrimSpace(part)
		value, err := strconv.ParseUint(part, 10, 64)
		if err == nil && value > 0 {
			if ramBytes == 0 {
				ramBytes = value
			}
			continue
		}
		if strings.Contains(strings.ToLower(part), "intel") {
			name = part
		}
	}
	if ramBytes == 0 {
		return 0, "", false
	}
	return ramBytes, name, true
}
