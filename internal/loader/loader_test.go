package loader

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Faultbox/stlviewer/internal/logger"
	"github.com/Faultbox/stlviewer/pkg/formats"
	"github.com/Faultbox/stlviewer/pkg/math"
)

func TestMain(m *testing.M) {
	logger.InitWithFileConfig("error", logger.FileConfig{}, false)
	os.Exit(m.Run())
}

func writeTriangle(t *testing.T, dir string) string {
	t.Helper()
	s := &formats.STL{
		Name: "tri",
		Triangles: []formats.STLTriangle{{
			Normal:   math.Vec3{Z: 1},
			Vertices: [3]math.Vec3{{}, {X: 1}, {Y: 1}},
		}},
	}
	var buf bytes.Buffer
	if err := formats.WriteBinarySTL(&buf, s); err != nil {
		t.Fatalf("WriteBinarySTL failed: %v", err)
	}
	path := filepath.Join(dir, "tri.stl")
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatalf("failed to write model: %v", err)
	}
	return path
}

func receive(t *testing.T, ch <-chan Result) Result {
	t.Helper()
	select {
	case res, ok := <-ch:
		if !ok {
			t.Fatal("result channel closed without a result")
		}
		if _, more := <-ch; more {
			t.Error("expected channel to close after one result")
		}
		return res
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for load result")
	}
	return Result{}
}

func TestLoadSuccess(t *testing.T) {
	path := writeTriangle(t, t.TempDir())

	res := receive(t, Load(context.Background(), path))
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if res.Model == nil || len(res.Model.Triangles) != 1 {
		t.Fatalf("expected 1 triangle, got %+v", res.Model)
	}
	if res.Path != path {
		t.Errorf("expected path %s, got %s", path, res.Path)
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	garbage := filepath.Join(dir, "garbage.stl")
	if err := os.WriteFile(garbage, []byte("not a mesh"), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	tests := []struct {
		name  string
		path  string
		check func(error) bool
	}{
		{"missing file", filepath.Join(dir, "missing.stl"), func(err error) bool { return errors.Is(err, os.ErrNotExist) }},
		{"bad data", garbage, func(err error) bool { return errors.Is(err, formats.ErrTruncatedSTL) }},
		{"wrong extension", filepath.Join(dir, "model.obj"), func(err error) bool { return err != nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := receive(t, Load(context.Background(), tt.path))
			if res.Model != nil {
				t.Error("expected no model on failure")
			}
			if !tt.check(res.Err) {
				t.Errorf("unexpected error: %v", res.Err)
			}
		})
	}
}

func TestLoadCancelled(t *testing.T) {
	path := writeTriangle(t, t.TempDir())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := receive(t, Load(ctx, path))
	if !errors.Is(res.Err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", res.Err)
	}
}

func TestLoadCustomParser(t *testing.T) {
	parseErr := errors.New("boom")
	l := &Loader{
		readFile: func(string) ([]byte, error) { return []byte("x"), nil },
		parse:    func([]byte) (*formats.STL, error) { return nil, parseErr },
	}

	res := receive(t, l.Load(context.Background(), "model.stl"))
	if !errors.Is(res.Err, parseErr) {
		t.Errorf("expected parse error, got %v", res.Err)
	}
}
