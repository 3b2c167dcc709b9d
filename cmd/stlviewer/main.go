// Package main is the entry point for the STL viewer.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/Faultbox/stlviewer/internal/config"
	"github.com/Faultbox/stlviewer/internal/engine/renderer"
	"github.com/Faultbox/stlviewer/internal/engine/window"
	"github.com/Faultbox/stlviewer/internal/logger"
	"github.com/Faultbox/stlviewer/internal/viewer"
)

func main() {
	// Parse CLI flags first
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

	if err := run(cfg); err != nil {
		logger.Error("viewer error", zap.Error(err))
		logger.Close()
		os.Exit(1)
	}

	logger.Info("viewer closed normally")
	logger.Close()
}

func run(cfg *config.Config) error {
	logger.Info("=== STL Viewer ===")
	logger.Sugar.Debugf("Config: %+v", cfg)

	win, err := window.New(window.Config{
		Title:      cfg.Window.Title,
		Width:      cfg.Window.Width,
		Height:     cfg.Window.Height,
		Fullscreen: cfg.Window.Fullscreen,
		VSync:      cfg.Window.VSync,
	})
	if err != nil {
		return fmt.Errorf("creating window: %w", err)
	}
	defer win.Close()

	width, height := win.Size()
	r, err := renderer.New(renderer.Config{
		Width:      width,
		Height:     height,
		ShowBounds: cfg.Render.ShowBounds,
	})
	if err != nil {
		return fmt.Errorf("creating renderer: %w", err)
	}
	defer r.Close()

	v, err := viewer.New(viewer.ConfigFrom(cfg), viewer.Host{
		Surface:  win,
		Renderer: r,
	})
	if err != nil {
		return err
	}
	defer v.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := v.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
