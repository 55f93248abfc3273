package gpu

import (
	"context"
	"strconv"
	"strings"

	"github.com/pxseu/flipper-pc-monitor-backend/internal/execx"
	"github.com/pxseu/flipper-pc-monitor-backend/internal/units"
)

// ioregDump fetches the accelerator subtree of the macOS device registry.
// Both Apple probes parse the same dump.
func ioregDump(ctx context.Context, runner execx.Runner) (string, bool) {
	out, err := runner.Run(ctx, "ioreg", "-r", "-c", "IOAccelerator")
	if err != nil {
		return "", false
	}
	return out, true
}

// scanIoregNumber locates a literal key in a registry line and reads the
// contiguous digit run immediately following it. The registry dump has no
// stable schema, so this is a best-effort heuristic parser: a format
// drift makes it miss, never misparse.
func scanIoregNumber(line, key string) (uint64, bool) {
	start := strings.Index(line, key)
	if start < 0 {
		return 0, false
	}

	rest := line[start+len(key):]
	end := 0
	for end < len(rest) && rest[end] >= '0' && rest[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, false
	}

	value, err := strconv.ParseUint(rest[:end], 10, 64)
	if err != nil {
		return 0, false
	}
	return value, true
}

// bytesToMiB converts a registry byte count to the MiB unit used by
// Sample magnitudes.
func bytesToMiB(b uint64) uint64 {
	return b / units.MiB
}
