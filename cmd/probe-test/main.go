package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"time"

	"github.com/pxseu/flipper-pc-monitor-backend/internal/execx"
	"github.com/pxseu/flipper-pc-monitor-backend/internal/gpu"
	"github.com/pxseu/flipper-pc-monitor-backend/internal/snapshot"
)

type options struct {
	goos       string
	sysfsRoot  string
	timeout    time.Duration
	doSnapshot bool
	jsonOutput bool
	rawOutput  bool
}

func parseFlags() options {
	defaultSysfs := envOrDefault("APP_SYSFS_ROOT", "/sys")

	var opts options
	flag.StringVar(&opts.goos, "os", runtime.GOOS, "Operating system to build the probe chain for")
	flag.StringVar(&opts.sysfsRoot, "sysfs", defaultSysfs, "Path to sysfs root")
	flag.DurationVar(&opts.timeout, "timeout", 5*time.Second, "Per-probe subprocess timeout")
	flag.BoolVar(&opts.doSnapshot, "snapshot", false, "Build a full telemetry snapshot")
	flag.BoolVar(&opts.jsonOutput, "json", false, "Emit results as JSON")
	flag.BoolVar(&opts.rawOutput, "raw", false, "Print the packed snapshot record as hex")
	flag.Parse()
	return opts
}

func main() {
	opts := parseFlags()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	ctx := context.Background()

	runner := execx.NewSystemRunner(opts.timeout, logger.With("component", "execx"))
	chain := gpu.ChainFor(opts.goos, runner, opts.sysfsRoot, logger)

	fmt.Printf("Probe chain for %s: %v\n", opts.goos, chain.Probes())

	sample, ok := chain.Discover(ctx)
	if !ok {
		fmt.Println("No GPU detected")
	} else if opts.jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(sample); err != nil {
			logger.Error("encode discovery output", "err", err)
			os.Exit(1)
		}
	} else {
		fmt.Printf("Detected GPU: %s (usage: %d%%, vram: %d/%d MiB)\n",
			sample.Name, sample.Usage, sample.VRAMUsed, sample.VRAMMax)
	}

	if !opts.doSnapshot {
		return
	}

	builder := snapshot.NewBuilder(chain, logger.With("component", "snapshot"))
	snap, err := builder.Build(ctx)
	if err != nil {
		logger.Error("snapshot build failed", "err", err)
		os.Exit(1)
	}

	if opts.rawOutput {
		data, err := snap.MarshalBinary()
		if err != nil {
			logger.Error("pack snapshot", "err", err)
			os.Exit(1)
		}
		fmt.Printf("Packed record (%d bytes): %s\n", len(data), hex.EncodeToString(data))
		return
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		logger.Error("encode snapshot", "err", err)
		os.Exit(1)
	}
	fmt.Printf("Snapshot:\n%s\n", string(data))
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
