// Package snapshot assembles point-in-time host telemetry records in the
// fixed binary layout consumed by the display firmware.
package snapshot

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"time"

	"github.com/pxseu/flipper-pc-monitor-backend/internal/units"
)

// MetricUnavailable marks a percentage field whose metric could not be
// obtained. Distinct from a genuine zero.
const MetricUnavailable uint8 = 255

// PackedSize is the byte length of the packed record.
//
//	cpu_usage  u8
//	ram_max    u16 (tenths of ram_unit)
//	ram_usage  u8
//	ram_unit   [4]u8
//	gpu_usage  u8
//	vram_max   u16 (tenths of vram_unit)
//	vram_usage u8
//	vram_unit  [4]u8
const PackedSize = 16

// Snapshot is one telemetry record. Constructed fresh per sampling tick
// and never mutated afterwards.
type Snapshot struct {
	CPUUsage  uint8
	RAMMax    uint16
	RAMUsage  uint8
	RAMUnit   [units.UnitSize]byte
	GPUUsage  uint8
	VRAMMax   uint16
	VRAMUsage uint8
	VRAMUnit  [units.UnitSize]byte

	// Informational fields outside the packed record.
	GPUName   string
	Timestamp time.Time
}

// MarshalBinary packs the record little-endian with no padding. This is
// the wire contract toward the downstream consumer; the layout must not
// change.
func (s Snapshot) MarshalBinary() ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, PackedSize))
	buf.WriteByte(s.CPUUsage)
	_ = binary.Write(buf, binary.LittleEndian, s.RAMMax)
	buf.WriteByte(s.RAMUsage)
	buf.Write(s.RAMUnit[:])
	buf.WriteByte(s.GPUUsage)
	_ = binary.Write(buf, binary.LittleEndian, s.VRAMMax)
	buf.WriteByte(s.VRAMUsage)
	buf.Write(s.VRAMUnit[:])
	return buf.Bytes(), nil
}

// MarshalJSON renders unit buffers as trimmed strings for the HTTP API.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	return json.Marshal(snapshotJSON{
		CPUUsage:  s.CPUUsage,
		RAMMax:    s.RAMMax,
		RAMUsage:  s.RAMUsage,
		RAMUnit:   unitString(s.RAMUnit),
		GPUUsage:  s.GPUUsage,
		VRAMMax:   s.VRAMMax,
		VRAMUsage: s.VRAMUsage,
		VRAMUnit:  unitString(s.VRAMUnit),
		GPUName:   s.GPUName,
		Timestamp: s.Timestamp,
	})
}

// UnmarshalJSON restores a snapshot from its API representation.
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	var decoded snapshotJSON
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	*s = Snapshot{
		CPUUsage:  decoded.CPUUsage,
		RAMMax:    decoded.RAMMax,
		RAMUsage:  decoded.RAMUsage,
		RAMUnit:   units.Pack(decoded.RAMUnit),
		GPUUsage:  decoded.GPUUsage,
		VRAMMax:   decoded.VRAMMax,
		VRAMUsage: decoded.VRAMUsage,
		VRAMUnit:  units.Pack(decoded.VRAMUnit),
		GPUName:   decoded.GPUName,
		Timestamp: decoded.Timestamp,
	}
	return nil
}

type snapshotJSON struct {
	CPUUsage  uint8     `json:"cpu_usage"`
	RAMMax    uint16    `json:"ram_max"`
	RAMUsage  uint8     `json:"ram_usage"`
	RAMUnit   string    `json:"ram_unit"`
	GPUUsage  uint8     `json:"gpu_usage"`
	VRAMMax   uint16    `json:"vram_max"`
	VRAMUsage uint8     `json:"vram_usage"`
	VRAMUnit  string    `json:"vram_unit"`
	GPUName   string    `json:"gpu_name,omitempty"`
	Timestamp time.Time `json:"ts"`
}

func unitString(unit [units.UnitSize]byte) string {
	return string(bytes.TrimRight(unit[:], "\x00"))
}
