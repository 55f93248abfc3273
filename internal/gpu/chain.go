package gpu

import (
	"context"
	"io"
	"log/slog"

	"github.com/pxseu/flipper-pc-monitor-backend/internal/execx"
)

// Probe is a single vendor/OS-specific attempt to obtain GPU figures.
// A false return means "this system does not have that GPU type"; probes
// never surface errors.
type Probe interface {
	Name() string
	Probe(ctx context.Context) (Sample, bool)
}

// Chain tries probes sequentially in priority order, stopping at the
// first success. It keeps no state between calls.
type Chain struct {
	probes []Probe
	logger *slog.Logger
}

// NewChain builds a chain over an explicit probe order.
func NewChain(probes []Probe, logger *slog.Logger) *Chain {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Chain{probes: probes, logger: logger.With("component", "gpu_chain")}
}

// ChainFor assembles the probe order for the given GOOS. Ordering encodes
// which vendor's tooling is authoritative on machines where several could
// match; probes are not cheap, so the chain short-circuits.
//
//	darwin:          apple-silicon, apple-intel, nvidia (legacy discrete)
//	linux, windows:  nvidia, then the platform Intel probe
func ChainFor(goos string, runner execx.Runner, sysfsRoot string, logger *slog.Logger) *Chain {
	var probes []Probe
	switch goos {
	case "darwin":
		probes = []Probe{
			NewAppleSiliconProbe(runner, logger),
			NewAppleIntelProbe(runner, logger),
			NewNvidiaProbe(runner, logger),
		}
	case "windows":
		probes = []Probe{
			NewNvidiaProbe(runner, logger),
			NewWindowsIntelProbe(runner, logger),
		}
	default:
		probes = []Probe{
			NewNvidiaProbe(runner, logger),
			NewLinuxIntelProbe(sysfsRoot, logger),
		}
	}
	return NewChain(probes, logger)
}

// Discover walks the chain and returns the first sample found. A false
// return means no probe matched; that is a valid outcome on headless or
// unsupported systems, not an error.
func (c *Chain) Discover(ctx context.Context) (Sample, bool) {
	for _, probe := range c.probes {
		sample, ok := probe.Probe(ctx)
		if !ok {
			c.logger.Debug("probe found nothing", "probe", probe.Name())
			continue
		}
		c.logger.Debug("probe matched",
			"probe", probe.Name(),
			"usage_pct", sample.Usage,
			"vram_max_mib", sample.VRAMMax,
		)
		return sample, true
	}
	return Sample{}, false
}

// Probes exposes the configured order, mostly for diagnostics.
func (c *Chain) Probes() []string {
	names := make([]string, 0, len(c.probes))
	for _, probe := range c.probes {
		names = append(names, probe.Name())
	}
	return names
}
