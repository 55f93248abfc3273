package snapshot

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/pxseu/flipper-pc-monitor-backend/internal/gpu"
	"github.com/pxseu/flipper-pc-monitor-backend/internal/units"
)

type fakeMetrics struct {
	cpu    []float64
	memory memoryStats
	err    error
}

func (f fakeMetrics) CPUPercents(context.Context) ([]float64, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.cpu, nil
}

func (f fakeMetrics) Memory(context.Context) (memoryStats, error) {
	if f.err != nil {
		return memoryStats{}, f.err
	}
	return f.memory, nil
}

type fixedProbe struct {
	sample gpu.Sample
	ok     bool
}

func (p fixedProbe) Name() string { return "fixed" }

func (p fixedProbe) Probe(context.Context) (gpu.Sample, bool) { return p.sample, p.ok }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestBuilder(metrics osMetrics, probe gpu.Probe) *Builder {
	builder := NewBuilder(gpu.NewChain([]gpu.Probe{probe}, testLogger()), testLogger())
	builder.metrics = metrics
	return builder
}

func TestBuildWithGPU(t *testing.T) {
	t.Parallel()

	metrics := fakeMetrics{
		cpu: []float64{20, 40},
		memory: memoryStats{
			Total: 17179869184, // 16 GiB
			Used:  8589934592,  // 8 GiB
		},
	}
	probe := fixedProbe{
		sample: gpu.Sample{Usage: 50, VRAMMax: 8192, VRAMUsed: 4096, Name: "Test GPU"},
		ok:     true,
	}

	snap, err := newTestBuilder(metrics, probe).Build(context.Background())
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}

	if snap.CPUUsage != 30 {
		t.Errorf("cpu usage = %d, want 30", snap.CPUUsage)
	}
	if snap.RAMMax != 160 {
		t.Errorf("ram max = %d, want 160 (16.0 GB)", snap.RAMMax)
	}
	if snap.RAMUsage != 50 {
		t.Errorf("ram usage = %d, want 50", snap.RAMUsage)
	}
	if snap.RAMUnit != units.Pack("GB") {
		t.Errorf("ram unit = %v", snap.RAMUnit)
	}
	if snap.GPUUsage != 50 {
		t.Errorf("gpu usage = %d, want 50", snap.GPUUsage)
	}
	if snap.VRAMMax != 80 {
		t.Errorf("vram max = %d, want 80 (8.0 GB)", snap.VRAMMax)
	}
	if snap.VRAMUsage != 50 {
		t.Errorf("vram usage = %d, want 50", snap.VRAMUsage)
	}
	if snap.VRAMUnit != units.Pack("GB") {
		t.Errorf("vram unit = %v", snap.VRAMUnit)
	}
	if snap.GPUName != "Test GPU" {
		t.Errorf("gpu name = %q", snap.GPUName)
	}
	if snap.Timestamp.IsZero() {
		t.Error("timestamp not set")
	}
}

func TestBuildNoGPU(t *testing.T) {
	t.Parallel()

	metrics := fakeMetrics{
		cpu:    []float64{10},
		memory: memoryStats{Total: 17179869184, Used: 4294967296},
	}

	snap, err := newTestBuilder(metrics, fixedProbe{}).Build(context.Background())
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}

	if snap.GPUUsage != MetricUnavailable {
		t.Errorf("gpu usage = %d, want sentinel", snap.GPUUsage)
	}
	if snap.VRAMMax != 0 {
		t.Errorf("vram max = %d, want 0", snap.VRAMMax)
	}
	if snap.VRAMUsage != MetricUnavailable {
		t.Errorf("vram usage = %d, want sentinel", snap.VRAMUsage)
	}
	if snap.VRAMUnit != units.Pack("B") {
		t.Errorf("vram unit = %v, want B", snap.VRAMUnit)
	}
}

func TestBuildZeroVRAMTotal(t *testing.T) {
	t.Parallel()

	// A probe can report a sample with unknown capacity; the percentage
	// denominator guard must kick in instead of dividing by zero.
	metrics := fakeMetrics{
		cpu:    []float64{10},
		memory: memoryStats{Total: 8589934592, Used: 1073741824},
	}
	probe := fixedProbe{sample: gpu.Sample{Usage: 15}, ok: true}

	snap, err := newTestBuilder(metrics, probe).Build(context.Background())
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	if snap.VRAMUsage != MetricUnavailable {
		t.Errorf("vram usage = %d, want sentinel for zero total", snap.VRAMUsage)
	}
	if snap.GPUUsage != 15 {
		t.Errorf("gpu usage = %d, want 15", snap.GPUUsage)
	}
}

func TestBuildZeroRAMTotal(t *testing.T) {
	t.Parallel()

	metrics := fakeMetrics{cpu: []float64{5}, memory: memoryStats{}}
	snap, err := newTestBuilder(metrics, fixedProbe{}).Build(context.Background())
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	if snap.RAMUsage != MetricUnavailable {
		t.Errorf("ram usage = %d, want sentinel for zero total", snap.RAMUsage)
	}
}

func TestBuildMetricsError(t *testing.T) {
	t.Parallel()

	metrics := fakeMetrics{err: fmt.Errorf("proc unavailable")}
	if _, err := newTestBuilder(metrics, fixedProbe{}).Build(context.Background()); err == nil {
		t.Fatal("expected error when the OS metrics provider fails")
	}
}

func TestAveragePercent(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		in   []float64
		want uint8
	}{
		{"Empty", nil, 0},
		{"Single", []float64{42.9}, 42},
		{"Averages", []float64{0, 100}, 50},
		{"ClampsHigh", []float64{250, 250}, 100},
	}

	for _, tc := range testCases {
		if got := averagePercent(tc.in); got != tc.want {
			t.Errorf("%s: averagePercent(%v) = %d, want %d", tc.name, tc.in, got, tc.want)
		}
	}
}
