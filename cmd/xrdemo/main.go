// Command xrdemo renders stereo frames into a simulated headset compositor.
//
// It opens a device (the noop backend by default, Vulkan with -backend
// vulkan), creates a renderer with the options from an optional TOML file,
// ticks it a fixed number of times and prints what the compositor received.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/gogpu/wgpu/hal/noop"

	"github.com/gogpu/xr"
	"github.com/gogpu/xr/compositor/sim"
	"github.com/gogpu/xr/internal/gpu"
)

func main() {
	var (
		configPath = flag.String("config", "", "renderer config file (TOML)")
		backend    = flag.String("backend", "noop", "GPU backend: noop or vulkan")
		frames     = flag.Int("frames", 90, "frames to render, 0 runs until interrupted")
		refresh    = flag.Float64("refresh", sim.DefaultRefreshRate, "simulated display refresh rate in Hz")
		memoryMB   = flag.Int("memory-mb", gpu.DefaultMaxMemoryMB, "attachment memory budget in MB")
		verbose    = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	xr.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	cfg := xr.DefaultConfig()
	if *configPath != "" {
		f, err := os.Open(*configPath)
		if err != nil {
			log.Fatalf("open config: %v", err)
		}
		cfg, err = xr.LoadConfig(f)
		_ = f.Close()
		if err != nil {
			log.Fatalf("%v", err)
		}
	}
	opts, err := cfg.Options()
	if err != nil {
		log.Fatalf("%v", err)
	}

	ctxOpts := []gpu.ContextOption{gpu.WithMemoryBudget(*memoryMB)}
	switch *backend {
	case "noop":
		ctxOpts = append(ctxOpts, gpu.WithBackend(&noop.API{}))
	case "vulkan":
	default:
		log.Fatalf("unknown backend %q", *backend)
	}
	gctx, err := gpu.NewContext(ctxOpts...)
	if err != nil {
		log.Fatalf("gpu: %v", err)
	}
	defer gctx.Destroy()

	comp := sim.New(gctx.Device(), sim.WithRefreshRate(*refresh))
	defer comp.Destroy()
	session := comp.BeginSession()
	defer comp.EndSession()

	r, err := xr.New(gctx, comp, session, opts...)
	if err != nil {
		log.Fatalf("renderer: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	start := time.Now()
	runErr := r.Run(ctx, *frames)
	elapsed := time.Since(start)
	stats := r.Stats()
	mem := gctx.Memory().Stats()
	r.Close()
	if runErr != nil {
		log.Fatalf("frame loop: %v", runErr)
	}

	fmt.Printf("adapter:   %s\n", gctx.AdapterName())
	fmt.Printf("frames:    %d submitted, %d dropped, last index %d\n",
		stats.FramesSubmitted, stats.DroppedFrames, stats.FrameIndex)
	fmt.Printf("pipelines: %d hits, %d misses\n", stats.PipelineHits, stats.PipelineMisses)
	fmt.Printf("memory:    %s\n", mem)
	if elapsed > 0 {
		fmt.Printf("rate:      %.1f frames/s (%v)\n", float64(stats.FrameIndex)/elapsed.Seconds(), elapsed.Round(time.Millisecond))
	}
	if recorded := comp.Frames(); len(recorded) > 0 {
		last := recorded[len(recorded)-1]
		fmt.Printf("last:      frame %d at %v, slots %d/%d\n",
			last.FrameIndex, last.DisplayTime, last.Eyes[0].SlotIndex, last.Eyes[1].SlotIndex)
	}
}
