package gpu

import (
	"context"
	"encoding/xml"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/pxseu/flipper-pc-monitor-backend/internal/execx"
)

// NvidiaProbe queries nvidia-smi in XML mode and reads utilization plus
// frame-buffer memory totals for the first GPU in the report.
type NvidiaProbe struct {
	runner execx.Runner
	logger *slog.Logger
}

// NewNvidiaProbe constructs the probe.
func NewNvidiaProbe(runner execx.Runner, logger *slog.Logger) *NvidiaProbe {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &NvidiaProbe{runner: runner, logger: logger.With("probe", "nvidia")}
}

// Name implements Probe.
func (p *NvidiaProbe) Name() string { return "nvidia" }

// smiLog mirrors the slice of the `nvidia-smi -q -x` document the probe
// needs. Numeric values arrive unit-suffixed ("85 %", "8192 MiB").
type smiLog struct {
	XMLName xml.Name `xml:"nvidia_smi_log"`
	GPUs    []struct {
		ProductName string `xml:"product_name"`
		Utilization struct {
			GPUUtil string `xml:"gpu_util"`
		} `xml:"utilization"`
		FBMemoryUsage struct {
			Total string `xml:"total"`
			Used  string `xml:"used"`
		} `xml:"fb_memory_usage"`
	} `xml:"gpu"`
}

// Probe implements Probe. Any failure, from a missing binary to a field
// that does not parse, collapses to "no sample".
func (p *NvidiaProbe) Probe(ctx context.Context) (Sample, bool) {
	out, err := p.runner.Run(ctx, "nvidia-smi", "-q", "-x")
	if err != nil {
		return Sample{}, false
	}
	return p.parse(out)
}

func (p *NvidiaProbe) parse(report string) (Sample, bool) {
	var log smiLog
	if err := xml.Unmarshal([]byte(report), &log); err != nil {
		p.logger.Debug("undecodable nvidia-smi output", "err", err)
		return Sample{}, false
	}
	if len(log.GPUs) == 0 {
		return Sample{}, false
	}

	gpu := log.GPUs[0]
	usage, ok := numericPrefix(gpu.Utilization.GPUUtil)
	if !ok {
		return Sample{}, false
	}
	total, ok := numericPrefix(gpu.FBMemoryUsage.Total)
	if !ok {
		return Sample{}, false
	}
	used, ok := numericPrefix(gpu.FBMemoryUsage.Used)
	if !ok {
		return Sample{}, false
	}

	return Sample{
		Usage:    usage,
		VRAMMax:  total,
		VRAMUsed: used,
		Name:     strings.TrimSpace(gpu.ProductName),
	}, true
}

// numericPrefix strips trailing unit text from a field like "8192 MiB"
// and parses the leading token as a non-negative integer.
func numericPrefix(value string) (uint64, bool) {
	fields := strings.Fields(strings.TrimSpace(value))
	if len(fields) == 0 {
		return 0, false
	}
	parsed, err := strconv.ParseUint(fields[0], 10, 64)
	if err != nil {
		return 0, false
	}
	return parsed, true
}
