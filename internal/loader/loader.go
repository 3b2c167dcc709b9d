// Package loader reads mesh assets off the render thread.
package loader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/stlviewer/internal/logger"
	"github.com/Faultbox/stlviewer/pkg/formats"
)

// Result is the outcome of one load. Exactly one of Model and Err is set.
type Result struct {
	Path     string
	Model    *formats.STL
	Err      error
	Duration time.Duration
}

// ParseFunc decodes raw asset bytes.
type ParseFunc func(data []byte) (*formats.STL, error)

// Loader loads STL assets asynchronously.
type Loader struct {
	readFile func(string) ([]byte, error)
	parse    ParseFunc
}

// New creates a loader that reads from the local filesystem.
func New() *Loader {
	return &Loader{
		readFile: os.ReadFile,
		parse:    formats.ParseSTL,
	}
}

// Load starts loading path and returns a channel that receives exactly one
// Result and is then closed. Cancelling ctx before the load finishes
// yields a Result carrying ctx.Err().
func (l *Loader) Load(ctx context.Context, path string) <-chan Result {
	out := make(chan Result, 1)

	go func() {
		defer close(out)
		start := time.Now()
		model, err := l.load(ctx, path)
		res := Result{Path: path, Model: model, Err: err, Duration: time.Since(start)}

		if err != nil {
			logger.Warn("model load failed", zap.String("path", path), zap.Error(err))
		} else {
			logger.Info("model loaded",
				zap.String("path", path),
				zap.Int("triangles", len(model.Triangles)),
				zap.Int("fixed_normals", model.FixedNormals),
				zap.Duration("took", res.Duration),
			)
		}
		out <- res
	}()

	return out
}

func (l *Loader) load(ctx context.Context, path string) (*formats.STL, error) {
	if ext := strings.ToLower(filepath.Ext(path)); ext != ".stl" {
		return nil, fmt.Errorf("unsupported model format %q", ext)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := l.readFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	model, err := l.parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return model, nil
}

// Load is a convenience wrapper around New().Load.
func Load(ctx context.Context, path string) <-chan Result {
	return New().Load(ctx, path)
}
