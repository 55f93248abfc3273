package gpu

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode"
)

const (
	drmClassPath      = "class/drm"
	intelPCIVendorID  = "0x8086"
	vramTotalFilename = "mem_info_vram_total"
)

// LinuxIntelProbe walks the DRM class directory and reports the VRAM
// size of the first Intel adapter it finds. The DRM statistics files
// carry no utilization for i915, so usage and used-memory stay zero.
type LinuxIntelProbe struct {
	sysfsRoot string
	logger    *slog.Logger
}

// NewLinuxIntelProbe constructs the probe over the given sysfs root
// (normally "/sys"; tests point it at a fixture tree).
func NewLinuxIntelProbe(sysfsRoot string, logger *slog.Logger) *LinuxIntelProbe {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &LinuxIntelProbe{sysfsRoot: sysfsRoot, logger: logger.With("probe", "linux_intel")}
}

// Name implements Probe.
func (p *LinuxIntelProbe) Name() string { return "linux-intel" }

// Probe implements Probe. Unreadable or non-Intel device nodes are
// skipped; a missing DRM tree means no sample.
func (p *LinuxIntelProbe) Probe(_ context.Context) (Sample, bool) {
	entries, err := os.ReadDir(filepath.Join(p.sysfsRoot, drmClassPath))
	if err != nil {
		return Sample{}, false
	}

	for _, entry := range entries {
		name := entry.Name()
		if !isCardNode(name) {
			continue
		}

		devicePath := filepath.Join(p.sysfsRoot, drmClassPath, name, "device")
		vendor, err := readTrim(filepath.Join(devicePath, "vendor"))
		if err != nil || vendor != intelPCIVendorID {
			continue
		}

		// First Intel card decides the outcome either way: a VRAM
		// file that is missing or malformed yields no sample.
		sample, ok := p.readCard(name, devicePath)
		return sample, ok
	}

	return Sample{}, false
}

func (p *LinuxIntelProbe) readCard(cardID, devicePath string) (Sample, bool) {
	raw, err := readTrim(filepath.Join(devicePath, vramTotalFilename))
	if err != nil {
		p.logger.Debug("vram total unreadable", "card", cardID, "err", err)
		return Sample{}, false
	}
	memBytes, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		p.logger.Debug("vram total unparseable", "card", cardID, "value", raw)
		return Sample{}, false
	}

	return Sample{
		VRAMMax: bytesToMiB(memBytes),
		Name:    p.adapterName(devicePath),
	}, true
}

// adapterName resolves the marketing name through the PCI ID database.
// Best effort; an empty name only degrades logging and the JSON API.
func (p *LinuxIntelProbe) adapterName(devicePath string) string {
	device, err := readTrim(filepath.Join(devicePath, "device"))
	if err != nil {
		return ""
	}
	return lookupAdapterName(intelPCIVendorID, device)
}

func isCardNode(name string) bool {
	if !strings.HasPrefix(name, "card") || strings.ContainsRune(name, '-') {
		return false
	}
	suffix := name[len("card"):]
	if suffix == "" {
		return false
	}
	for _, r := range suffix {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func readTrim(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
