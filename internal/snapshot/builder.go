package snapshot

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/pxseu/flipper-pc-monitor-backend/internal/gpu"
	"github.com/pxseu/flipper-pc-monitor-backend/internal/units"
)

// memoryStats narrows the OS metrics provider for tests.
type memoryStats struct {
	Total uint64
	Used  uint64
}

type osMetrics interface {
	CPUPercents(ctx context.Context) ([]float64, error)
	Memory(ctx context.Context) (memoryStats, error)
}

// gopsutilMetrics reads CPU and RAM figures through gopsutil. CPU
// percentages are deltas since the previous call, so the builder owns
// one instance for the whole sampling lifetime.
type gopsutilMetrics struct{}

func (gopsutilMetrics) CPUPercents(ctx context.Context) ([]float64, error) {
	return cpu.PercentWithContext(ctx, 0, true)
}

func (gopsutilMetrics) Memory(ctx context.Context) (memoryStats, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return memoryStats{}, err
	}
	return memoryStats{Total: vm.Total, Used: vm.Used}, nil
}

// Builder combines OS metrics with GPU discovery into snapshots.
type Builder struct {
	chain   *gpu.Chain
	metrics osMetrics
	logger  *slog.Logger
}

// NewBuilder constructs a Builder over the given discovery chain.
func NewBuilder(chain *gpu.Chain, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Builder{
		chain:   chain,
		metrics: gopsutilMetrics{},
		logger:  logger.With("component", "snapshot_builder"),
	}
}

// Build produces one snapshot. CPU/RAM read failures are errors; a GPU
// that cannot be discovered is not, it maps to sentinel fields.
func (b *Builder) Build(ctx context.Context) (Snapshot, error) {
	percents, err := b.metrics.CPUPercents(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("read cpu usage: %w", err)
	}

	memory, err := b.metrics.Memory(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("read memory: %w", err)
	}

	ramScaled := units.Scaled(memory.Total, units.Base)

	snap := Snapshot{
		CPUUsage:  averagePercent(percents),
		RAMMax:    ramScaled.Value,
		RAMUsage:  usagePercent(memory.Used, memory.Total),
		RAMUnit:   ramScaled.Unit,
		Timestamp: time.Now().UTC(),
	}

	sample, found := b.chain.Discover(ctx)
	if !found {
		snap.GPUUsage = MetricUnavailable
		snap.VRAMUsage = MetricUnavailable
		snap.VRAMUnit = units.Pack(units.Label(0))
		return snap, nil
	}

	vramBytes := sample.VRAMMax * units.MiB
	vramScaled := units.Scaled(vramBytes, units.Base)

	snap.GPUUsage = clampPercent(sample.Usage)
	snap.VRAMMax = vramScaled.Value
	snap.VRAMUsage = usagePercent(sample.VRAMUsed*units.MiB, vramBytes)
	snap.VRAMUnit = vramScaled.Unit
	snap.GPUName = sample.Name
	return snap, nil
}

// usagePercent is the guarded used/total ratio: a zero total means the
// metric is unknown, not 0%.
func usagePercent(used, total uint64) uint8 {
	if total == 0 {
		return MetricUnavailable
	}
	return clampPercent(used * 100 / total)
}

func averagePercent(percents []float64) uint8 {
	if len(percents) == 0 {
		return 0
	}
	var sum float64
	for _, p := range percents {
		sum += p
	}
	return clampPercent(uint64(sum / float64(len(percents))))
}

func clampPercent(v uint64) uint8 {
	if v > 100 {
		return 100
	}
	return uint8(v)
}
