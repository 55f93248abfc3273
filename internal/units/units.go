// Package units converts raw byte magnitudes into the fixed-point
// value + short unit label encoding used by the wire record.
package units

import "math"

// Base is the scaling base applied to both RAM and VRAM magnitudes.
const Base uint64 = 1024

// MiB is the byte size of one mebibyte.
const MiB uint64 = 1024 * 1024

// UnitSize is the width of the padded unit label on the wire.
const UnitSize = 4

// Magnitude is a scaled quantity ready for the wire record: a value in
// tenths of the chosen unit plus the NUL-padded unit label.
type Magnitude struct {
	Value uint16
	Unit  [UnitSize]byte
}

// Exponent returns the largest e in {0..4} such that magnitude >= base^e.
// Anything at or above base^4 maps to 4; zero maps to 0.
func Exponent(magnitude, base uint64) uint32 {
	switch {
	case magnitude >= pow(base, 4):
		return 4
	case magnitude >= pow(base, 3):
		return 3
	case magnitude >= pow(base, 2):
		return 2
	case magnitude >= base:
		return 1
	default:
		return 0
	}
}

// Scale reduces magnitude by base^exp and encodes it as integer tenths,
// truncated (16.0 becomes 160). Values that cannot fit saturate at
// MaxUint16 rather than wrapping.
func Scale(magnitude uint64, exp uint32, base uint64) uint16 {
	tenths := magnitude / pow(base, exp) * 10
	rem := magnitude % pow(base, exp)
	tenths += rem * 10 / pow(base, exp)
	if tenths > math.MaxUint16 {
		return math.MaxUint16
	}
	return uint16(tenths)
}

// Label maps an exponent to its unit label. Exponents outside 0..4 map
// to "UB"; Exponent never produces one, but the fallback is part of the
// encoding contract.
func Label(exp uint32) string {
	switch exp {
	case 0:
		return "B"
	case 1:
		return "KB"
	case 2:
		return "MB"
	case 3:
		return "GB"
	case 4:
		return "TB"
	default:
		return "UB"
	}
}

// Pack copies an ASCII label into the fixed wire buffer, NUL padded.
// Labels longer than the buffer are truncated.
func Pack(label string) [UnitSize]byte {
	var out [UnitSize]byte
	copy(out[:], label)
	return out
}

// Scaled derives the full wire magnitude for a raw byte quantity.
func Scaled(magnitude, base uint64) Magnitude {
	exp := Exponent(magnitude, base)
	return Magnitude{
		Value: Scale(magnitude, exp, base),
		Unit:  Pack(Label(exp)),
	}
}

func pow(base uint64, exp uint32) uint64 {
	result := uint64(1)
	for i := uint32(0); i < exp; i++ {
		result *= base
	}
	return result
}
