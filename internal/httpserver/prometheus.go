package httpserver

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/pxseu/flipper-pc-monitor-backend/internal/sampler"
	"github.com/pxseu/flipper-pc-monitor-backend/internal/snapshot"
	"github.com/pxseu/flipper-pc-monitor-backend/internal/units"
)

const metricsNamespace = "pcmonitor"

type snapshotCollector struct {
	sampler *sampler.Manager
	metrics []snapshotMetric

	gpuInfoDesc *prometheus.Desc
}

type snapshotMetric struct {
	desc      *prometheus.Desc
	valueType prometheus.ValueType
	extract   func(snap snapshot.Snapshot) (float64, bool)
}

func newSnapshotCollector(samplerManager *sampler.Manager) prometheus.Collector {
	if samplerManager == nil {
		return nil
	}

	collector := &snapshotCollector{
		sampler: samplerManager,
		gpuInfoDesc: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, "gpu", "info"),
			"Adapter name of the detected GPU.",
			[]string{"name"},
			nil,
		),
	}

	desc := func(subsystem, name, help string) *prometheus.Desc {
		return prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, subsystem, name),
			help,
			nil,
			nil,
		)
	}

	collector.metrics = []snapshotMetric{
		{
			desc:      desc("cpu", "usage_percent", "Average CPU utilization across all logical cores."),
			valueType: prometheus.GaugeValue,
			extract: func(snap snapshot.Snapshot) (float64, bool) {
				return percentValue(snap.CPUUsage)
			},
		},
		{
			desc:      desc("ram", "total_bytes", "Total physical memory in bytes."),
			valueType: prometheus.GaugeValue,
			extract: func(snap snapshot.Snapshot) (float64, bool) {
				return scaledBytes(snap.RAMMax, snap.RAMUnit)
			},
		},
		{
			desc:      desc("ram", "used_bytes", "Used physical memory in bytes."),
			valueType: prometheus.GaugeValue,
			extract: func(snap snapshot.Snapshot) (float64, bool) {
				total, ok := scaledBytes(snap.RAMMax, snap.RAMUnit)
				if !ok {
					return 0, false
				}
				usage, ok := percentValue(snap.RAMUsage)
				if !ok {
					return 0, false
				}
				return total * usage / 100, true
			},
		},
		{
			desc:      desc("ram", "usage_percent", "Used physical memory as a percentage of total."),
			valueType: prometheus.GaugeValue,
			extract: func(snap snapshot.Snapshot) (float64, bool) {
				return percentValue(snap.RAMUsage)
			},
		},
		{
			desc:      desc("gpu", "usage_percent", "GPU engine utilization."),
			valueType: prometheus.GaugeValue,
			extract: func(snap snapshot.Snapshot) (float64, bool) {
				return percentValue(snap.GPUUsage)
			},
		},
		{
			desc:      desc("vram", "total_bytes", "Total video memory in bytes."),
			valueType: prometheus.GaugeValue,
			extract: func(snap snapshot.Snapshot) (float64, bool) {
				if snap.VRAMUsage == snapshot.MetricUnavailable {
					return 0, false
				}
				return scaledBytes(snap.VRAMMax, snap.VRAMUnit)
			},
		},
		{
			desc:      desc("vram", "used_bytes", "Used video memory in bytes."),
			valueType: prometheus.GaugeValue,
			extract: func(snap snapshot.Snapshot) (float64, bool) {
				if snap.VRAMUsage == snapshot.MetricUnavailable {
					return 0, false
				}
				total, ok := scaledBytes(snap.VRAMMax, snap.VRAMUnit)
				if !ok {
					return 0, false
				}
				return total * float64(snap.VRAMUsage) / 100, true
			},
		},
		{
			desc:      desc("vram", "usage_percent", "Used video memory as a percentage of total."),
			valueType: prometheus.GaugeValue,
			extract: func(snap snapshot.Snapshot) (float64, bool) {
				return percentValue(snap.VRAMUsage)
			},
		},
		{
			desc:      desc("sample", "timestamp_seconds", "Unix timestamp of the latest snapshot."),
			valueType: prometheus.GaugeValue,
			extract: func(snap snapshot.Snapshot) (float64, bool) {
				if snap.Timestamp.IsZero() {
					return 0, false
				}
				return float64(snap.Timestamp.Unix()), true
			},
		},
		{
			desc:      desc("sample", "age_seconds", "Seconds elapsed since the latest snapshot was collected."),
			valueType: prometheus.GaugeValue,
			extract: func(snap snapshot.Snapshot) (float64, bool) {
				if snap.Timestamp.IsZero() {
					return 0, false
				}
				age := time.Since(snap.Timestamp).Seconds()
				if age < 0 {
					age = 0
				}
				return age, true
			},
		},
	}

	return collector
}

func (c *snapshotCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.gpuInfoDesc
	for _, metric := range c.metrics {
		ch <- metric.desc
	}
}

func (c *snapshotCollector) Collect(ch chan<- prometheus.Metric) {
	snap, ok := c.sampler.Latest()
	if !ok {
		return
	}
	if snap.GPUName != "" {
		ch <- prometheus.MustNewConstMetric(c.gpuInfoDesc, prometheus.GaugeValue, 1, snap.GPUName)
	}
	for _, metric := range c.metrics {
		value, ok := metric.extract(snap)
		if !ok {
			continue
		}
		ch <- prometheus.MustNewConstMetric(metric.desc, metric.valueType, value)
	}
}

func percentValue(value uint8) (float64, bool) {
	if value == snapshot.MetricUnavailable {
		return 0, false
	}
	return float64(value), true
}

// scaledBytes reverses the tenths-of-a-unit packing back into bytes.
func scaledBytes(value uint16, unit [units.UnitSize]byte) (float64, bool) {
	label := strings.TrimRight(string(unit[:]), "\x00")
	factor, ok := unitFactors[label]
	if !ok {
		return 0, false
	}
	return float64(value) / 10 * factor, true
}

var unitFactors = map[string]float64{
	"B":  1,
	"KB": 1 << 10,
	"MB": 1 << 20,
	"GB": 1 << 30,
	"TB": 1 << 40,
}
