// Package execx funnels external diagnostic tool invocations through one
// narrow interface so probe parsers can be tested against fixture strings.
package execx

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"
	"unicode/utf8"
)

// Runner invokes an external program and returns its captured stdout.
// Implementations must return an error for spawn failures and non-zero
// exits; callers treat any error as "tool unavailable", not as fatal.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (string, error)
	ReadFile(path string) (string, error)
}

// SystemRunner executes real processes with a per-invocation timeout.
// A zero Timeout disables the deadline.
type SystemRunner struct {
	Timeout time.Duration
	Logger  *slog.Logger
}

// NewSystemRunner constructs a SystemRunner.
func NewSystemRunner(timeout time.Duration, logger *slog.Logger) *SystemRunner {
	if logger == nil {
		logger = slog.Default()
	}
	return &SystemRunner{Timeout: timeout, Logger: logger.With("component", "runner")}
}

// Run spawns the program, waits for completion and returns decoded stdout.
// Output that is not valid UTF-8 is decoded lossily rather than rejected.
func (r *SystemRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	start := time.Now()
	out, err := exec.CommandContext(ctx, name, args...).Output()
	if err != nil {
		r.Logger.Debug("command failed", "cmd", name, "err", err, "duration", time.Since(start))
		return "", fmt.Errorf("run %s: %w", name, err)
	}

	return decodeLossy(out), nil
}

// ReadFile reads a file, covering probes that source diagnostics from a
// filesystem tree instead of a process.
func (r *SystemRunner) ReadFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return decodeLossy(data), nil
}

func decodeLossy(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}
	return strings.ToValidUTF8(string(data), string(utf8.RuneError))
}
