// Package gpu discovers GPU utilization and video memory figures through
// an ordered chain of vendor- and OS-specific probes.
package gpu

// Sample holds normalized GPU figures from a single successful probe.
// Memory magnitudes are MiB regardless of what the source reported.
type Sample struct {
	// Usage is the vendor-reported GPU utilization percentage (0-100),
	// zero when the source cannot measure it.
	Usage uint64 `json:"usage_pct"`
	// VRAMMax is the total video memory in MiB.
	VRAMMax uint64 `json:"vram_max_mib"`
	// VRAMUsed is the used video memory in MiB, zero when the source
	// cannot measure it.
	VRAMUsed uint64 `json:"vram_used_mib"`
	// Name is the adapter model when the source offers one. Informational
	// only; it never reaches the packed record.
	Name string `json:"name,omitempty"`
}
