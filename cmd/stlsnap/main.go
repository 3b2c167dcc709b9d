// Command stlsnap renders an STL model to a PNG without a window or GPU.
//
// It reads the same configuration and flags as stlviewer and adds:
//
//	stlsnap -model part.stl -out part.png [-samples 4] [-frames 1]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/stlviewer/internal/config"
	"github.com/Faultbox/stlviewer/internal/engine/debug"
	"github.com/Faultbox/stlviewer/internal/engine/softrender"
	"github.com/Faultbox/stlviewer/internal/logger"
	"github.com/Faultbox/stlviewer/internal/viewer"
)

var (
	flagOut     = flag.String("out", "snapshot.png", "Output PNG path")
	flagSamples = flag.Int("samples", 0, "Supersampling factor (0 uses the config value)")
	flagFrames  = flag.Int("frames", 1, "Frames to advance before capturing (lets auto-rotate turn the model)")
	flagTimeout = flag.Duration("timeout", time.Minute, "Model load timeout")
)

func main() {
	config.ParseFlags()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Close()

	if err := snapshot(cfg); err != nil {
		logger.Error("snapshot failed", zap.Error(err))
		logger.Close()
		os.Exit(1)
	}
}

func snapshot(cfg *config.Config) error {
	samples := cfg.Render.Samples
	if *flagSamples > 0 {
		samples = *flagSamples
	}
	if *flagFrames < 1 {
		return errors.New("-frames must be at least 1")
	}

	surface := softrender.NewSurface(cfg.Window.Width, cfg.Window.Height)
	r := softrender.New(softrender.Config{
		Width:      cfg.Window.Width,
		Height:     cfg.Window.Height,
		Samples:    samples,
		ShowBounds: cfg.Render.ShowBounds,
	})
	defer r.Close()

	v, err := viewer.New(viewer.ConfigFrom(cfg), viewer.Host{
		Surface:  surface,
		Renderer: r,
	})
	if err != nil {
		return err
	}
	defer v.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *flagTimeout)
	defer cancel()
	if err := v.WaitReady(ctx); err != nil {
		return err
	}

	start := time.Now()
	for i := 0; i < *flagFrames; i++ {
		if err := v.Frame(); err != nil {
			return err
		}
	}

	img, err := r.Snapshot()
	if err != nil {
		return err
	}
	if err := debug.SavePNG(*flagOut, img); err != nil {
		return err
	}

	logger.Info("snapshot written",
		zap.String("path", *flagOut),
		zap.Int("width", cfg.Window.Width),
		zap.Int("height", cfg.Window.Height),
		zap.Int("samples", samples),
		zap.Duration("render_time", time.Since(start)),
	)
	return nil
}
