package viewer

import (
	"bytes"
	"context"
	"errors"
	"image"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/chewxy/math32"

	"github.com/Faultbox/stlviewer/internal/config"
	"github.com/Faultbox/stlviewer/internal/engine/camera"
	"github.com/Faultbox/stlviewer/internal/engine/input"
	"github.com/Faultbox/stlviewer/internal/engine/scene"
	"github.com/Faultbox/stlviewer/internal/engine/softrender"
	"github.com/Faultbox/stlviewer/internal/loader"
	"github.com/Faultbox/stlviewer/internal/logger"
	"github.com/Faultbox/stlviewer/pkg/formats"
	"github.com/Faultbox/stlviewer/pkg/math"
)

func TestMain(m *testing.M) {
	logger.InitWithFileConfig("error", logger.FileConfig{}, false)
	os.Exit(m.Run())
}

type fakeRenderer struct {
	sizes   [][2]int
	renders int
	lastZ   float32
	bounds  bool
	err     error
}

func (r *fakeRenderer) SetSize(w, h int) { r.sizes = append(r.sizes, [2]int{w, h}) }

func (r *fakeRenderer) Render(_ *scene.Scene, cam *camera.PerspectiveCamera) error {
	if r.err != nil {
		return r.err
	}
	r.renders++
	r.lastZ = cam.Position.Z
	return nil
}

func (r *fakeRenderer) SetShowBounds(show bool) { r.bounds = show }
func (r *fakeRenderer) ShowBounds() bool        { return r.bounds }

func (r *fakeRenderer) Snapshot() (image.Image, error) {
	return image.NewRGBA(image.Rect(0, 0, 2, 2)), nil
}

func (r *fakeRenderer) lastSize() [2]int {
	if len(r.sizes) == 0 {
		return [2]int{}
	}
	return r.sizes[len(r.sizes)-1]
}

// testModel has a bounding box maximum of (20, 10, 5).
func testModel() *formats.STL {
	return &formats.STL{
		Name: "wedge",
		Triangles: []formats.STLTriangle{{
			Normal:   math.Vec3{Z: 1},
			Vertices: [3]math.Vec3{{}, {X: 20}, {Y: 10, Z: 5}},
		}},
	}
}

type harness struct {
	viewer   *Viewer
	surface  *softrender.Surface
	renderer *fakeRenderer
	results  chan loader.Result
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	h := &harness{
		surface:  softrender.NewSurface(800, 600),
		renderer: &fakeRenderer{},
		results:  make(chan loader.Result, 1),
	}
	v, err := New(cfg, Host{
		Surface:  h.surface,
		Renderer: h.renderer,
		Load: func(ctx context.Context, path string) <-chan loader.Result {
			return h.results
		},
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(v.Close)
	h.viewer = v
	return h
}

func (h *harness) deliver() {
	h.results <- loader.Result{Path: "models/wedge.stl", Model: testModel()}
}

func testConfig(t *testing.T) Config {
	cfg := DefaultConfig()
	cfg.ModelPath = "models/wedge.stl"
	cfg.ScreenshotDir = t.TempDir()
	return cfg
}

func escape() input.Event {
	return input.Event{Type: input.EventKeyDown, Key: input.KeyEscape}
}

func TestNewBootstrap(t *testing.T) {
	h := newHarness(t, testConfig(t))
	v := h.viewer

	if got := h.renderer.lastSize(); got != [2]int{800, 600} {
		t.Errorf("renderer should be sized to the surface, got %v", got)
	}
	if want := float32(800) / 600; v.Camera().Aspect != want {
		t.Errorf("expected aspect %f, got %f", want, v.Camera().Aspect)
	}
	if v.Camera().FOV != 70 || v.Camera().Near != 1 || v.Camera().Far != 1000 {
		t.Errorf("unexpected projection %+v", v.Camera())
	}
	if v.Ready() {
		t.Error("viewer must not be ready before the model loads")
	}
	if err := v.Frame(); !errors.Is(err, ErrNotReady) {
		t.Errorf("expected ErrNotReady, got %v", err)
	}
	if n := len(v.Scene().Lights()); n != 5 {
		t.Errorf("expected 5 lights, got %d", n)
	}
}

func TestNewValidation(t *testing.T) {
	surface := softrender.NewSurface(10, 10)
	tests := []struct {
		name string
		cfg  Config
		host Host
	}{
		{"no surface", DefaultConfig(), Host{Renderer: &fakeRenderer{}}},
		{"no renderer", DefaultConfig(), Host{Surface: surface}},
		{"no model", Config{}, Host{Surface: surface, Renderer: &fakeRenderer{}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.cfg, tt.host); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestRunRendersOnlyAfterLoad(t *testing.T) {
	h := newHarness(t, testConfig(t))

	const loadAt = 3
	rendersBeforeLoad := -1
	h.surface.OnPoll(func(polls int) []input.Event {
		switch {
		case polls == loadAt:
			rendersBeforeLoad = h.renderer.renders
			h.deliver()
		case polls >= loadAt+5:
			return []input.Event{escape()}
		}
		return nil
	})

	if err := h.viewer.Run(context.Background()); err != nil {
		t.Fatalf("Run returned %v", err)
	}

	if rendersBeforeLoad != 0 {
		t.Errorf("expected no renders while loading, got %d", rendersBeforeLoad)
	}
	if h.renderer.renders == 0 {
		t.Fatal("expected frames after the model loaded")
	}
	if h.surface.Presents() != h.renderer.renders {
		t.Errorf("every render should be presented: %d renders, %d presents", h.renderer.renders, h.surface.Presents())
	}

	// Largest component of the box maximum (20) times 1.5.
	if math32.Abs(h.renderer.lastZ-30) > 1e-3 {
		t.Errorf("expected camera z 30, got %f", h.renderer.lastZ)
	}
	if m := h.viewer.Mesh(); m == nil || m.Name != "wedge" {
		t.Errorf("expected mesh named wedge, got %+v", m)
	}
}

func TestRunLoadError(t *testing.T) {
	h := newHarness(t, testConfig(t))
	boom := errors.New("boom")
	h.results <- loader.Result{Path: "models/wedge.stl", Err: boom}

	err := h.viewer.Run(context.Background())
	if !errors.Is(err, ErrModelLoad) || !errors.Is(err, boom) {
		t.Fatalf("expected ErrModelLoad wrapping boom, got %v", err)
	}
	if h.renderer.renders != 0 {
		t.Errorf("nothing should render after a failed load, got %d", h.renderer.renders)
	}

	if err := h.viewer.Run(context.Background()); !errors.Is(err, boom) {
		t.Errorf("a second Run should report the same failure, got %v", err)
	}
	if err := h.viewer.WaitReady(context.Background()); !errors.Is(err, ErrModelLoad) {
		t.Errorf("WaitReady should report the failure, got %v", err)
	}
}

func TestRunLoaderClosedWithoutResult(t *testing.T) {
	h := newHarness(t, testConfig(t))
	close(h.results)

	if err := h.viewer.Run(context.Background()); !errors.Is(err, ErrModelLoad) {
		t.Fatalf("expected ErrModelLoad, got %v", err)
	}
}

func TestRunLoaderReturnedNoModel(t *testing.T) {
	h := newHarness(t, testConfig(t))
	h.results <- loader.Result{Path: "models/wedge.stl"}

	if err := h.viewer.Run(context.Background()); !errors.Is(err, ErrModelLoad) {
		t.Fatalf("expected ErrModelLoad, got %v", err)
	}
	if h.renderer.renders != 0 {
		t.Errorf("nothing should render without a model, got %d", h.renderer.renders)
	}
	if n := len(h.viewer.scene.Meshes()); n != 0 {
		t.Errorf("no mesh should be attached, scene has %d", n)
	}
}

func TestRunRenderError(t *testing.T) {
	h := newHarness(t, testConfig(t))
	h.renderer.err = errors.New("device lost")
	h.deliver()

	if err := h.viewer.Run(context.Background()); !errors.Is(err, h.renderer.err) {
		t.Fatalf("expected render error, got %v", err)
	}
}

func TestResize(t *testing.T) {
	h := newHarness(t, testConfig(t))
	h.deliver()

	h.surface.OnPoll(func(polls int) []input.Event {
		switch polls {
		case 2:
			return []input.Event{{Type: input.EventWindowResize, Width: 1000, Height: 500}}
		case 4:
			return []input.Event{escape()}
		}
		return nil
	})

	if err := h.viewer.Run(context.Background()); err != nil {
		t.Fatalf("Run returned %v", err)
	}
	if got := h.renderer.lastSize(); got != [2]int{1000, 500} {
		t.Errorf("renderer size = %v, want [1000 500]", got)
	}
	if h.viewer.Camera().Aspect != 2 {
		t.Errorf("camera aspect = %f, want 2", h.viewer.Camera().Aspect)
	}
}

func TestResizeIgnoresZeroHeight(t *testing.T) {
	h := newHarness(t, testConfig(t))
	before := h.viewer.Camera().Aspect

	h.viewer.Resize(640, 0)
	if h.viewer.Camera().Aspect != before {
		t.Errorf("zero height should keep aspect %f, got %f", before, h.viewer.Camera().Aspect)
	}
}

func TestStop(t *testing.T) {
	h := newHarness(t, testConfig(t))
	h.deliver()

	done := make(chan error, 1)
	go func() { done <- h.viewer.Run(context.Background()) }()

	deadline := time.After(5 * time.Second)
	for !h.viewer.Running() {
		select {
		case <-deadline:
			t.Fatal("render loop did not start")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	h.viewer.Stop()
	h.viewer.Stop()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v after Stop", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after Stop")
	}
}

func TestRunAlreadyRunning(t *testing.T) {
	h := newHarness(t, testConfig(t))

	done := make(chan error, 1)
	go func() { done <- h.viewer.Run(context.Background()) }()

	deadline := time.After(5 * time.Second)
	for !h.viewer.Running() {
		select {
		case <-deadline:
			t.Fatal("render loop did not start")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	if err := h.viewer.Run(context.Background()); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("expected ErrAlreadyRunning, got %v", err)
	}

	h.viewer.Stop()
	<-done
}

func TestRunContextCancelWhileLoading(t *testing.T) {
	h := newHarness(t, testConfig(t))

	ctx, cancel := context.WithCancel(context.Background())
	h.surface.OnPoll(func(polls int) []input.Event {
		if polls == 2 {
			cancel()
		}
		return nil
	})

	if err := h.viewer.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if h.renderer.renders != 0 {
		t.Errorf("expected no renders, got %d", h.renderer.renders)
	}
}

func TestQuitEvent(t *testing.T) {
	h := newHarness(t, testConfig(t))
	h.surface.Push(input.Event{Type: input.EventQuit})

	if err := h.viewer.Run(context.Background()); err != nil {
		t.Fatalf("Run returned %v", err)
	}
}

func TestKeyBindings(t *testing.T) {
	cfg := testConfig(t)
	h := newHarness(t, cfg)
	h.deliver()
	v := h.viewer

	if err := v.WaitReady(context.Background()); err != nil {
		t.Fatalf("WaitReady failed: %v", err)
	}
	home := v.Camera().Position

	key := func(k input.Key) input.Event { return input.Event{Type: input.EventKeyDown, Key: k} }
	drag := input.Event{Type: input.EventMouseMove, DeltaX: 200, Buttons: input.MaskOf(input.ButtonLeft)}

	h.surface.OnPoll(func(polls int) []input.Event {
		switch polls {
		case 1:
			return []input.Event{drag}
		case 40:
			return []input.Event{key(input.KeyR), key(input.KeyB), key(input.KeyF12)}
		case 41:
			return []input.Event{escape()}
		}
		return nil
	})

	if err := v.Run(context.Background()); err != nil {
		t.Fatalf("Run returned %v", err)
	}

	if !h.renderer.bounds {
		t.Error("B should toggle the bounds overlay on")
	}
	if p := v.Camera().Position; p.Distance(home) > 1e-2 {
		t.Errorf("R should restore the framed pose %v, got %v", home, p)
	}

	shots, err := filepath.Glob(filepath.Join(cfg.ScreenshotDir, "*.png"))
	if err != nil {
		t.Fatal(err)
	}
	if len(shots) != 1 {
		t.Errorf("F12 should write one screenshot, found %v", shots)
	}
}

func TestClose(t *testing.T) {
	h := newHarness(t, testConfig(t))
	h.viewer.Close()
	h.viewer.Close()

	if err := h.viewer.Run(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
	if err := h.viewer.WaitReady(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

func TestCenterModel(t *testing.T) {
	cfg := testConfig(t)
	cfg.CenterModel = true
	h := newHarness(t, cfg)
	h.deliver()

	if err := h.viewer.WaitReady(context.Background()); err != nil {
		t.Fatal(err)
	}
	box := h.viewer.Mesh().Geometry.BoundingBox()
	if c := box.Center(); c.Length() > 1e-5 {
		t.Errorf("centered model should be around the origin, got center %v", c)
	}
	// Centered box max is (10, 5, 2.5).
	if z := h.viewer.Camera().Position.Z; math32.Abs(z-15) > 1e-4 {
		t.Errorf("expected camera z 15, got %f", z)
	}
}

func TestEndToEndWithLoaderAndSoftRenderer(t *testing.T) {
	var buf bytes.Buffer
	if err := formats.WriteBinarySTL(&buf, testModel()); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "wedge.stl")
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}

	cfg := testConfig(t)
	cfg.ModelPath = path
	surface := softrender.NewSurface(64, 48)
	r := softrender.New(softrender.Config{Samples: 1})

	v, err := New(cfg, Host{Surface: surface, Renderer: r})
	if err != nil {
		t.Fatal(err)
	}
	defer v.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := v.WaitReady(ctx); err != nil {
		t.Fatalf("WaitReady failed: %v", err)
	}
	if err := v.Frame(); err != nil {
		t.Fatalf("Frame failed: %v", err)
	}

	img := r.Image()
	if img == nil || img.Bounds().Dx() != 64 || img.Bounds().Dy() != 48 {
		t.Fatalf("unexpected frame %v", img)
	}
	if surface.Presents() != 1 {
		t.Errorf("expected 1 present, got %d", surface.Presents())
	}
}

func TestConfigFrom(t *testing.T) {
	c := config.Default()
	c.Model.Color = 0x00ff00
	c.Controls.MaxPolarAngle = 90
	c.Render.Background = 0xffffff

	cfg := ConfigFrom(c)
	if cfg.Material.Color != (scene.Color{G: 1}) {
		t.Errorf("unexpected material color %v", cfg.Material.Color)
	}
	if math32.Abs(cfg.Controls.MaxPolarAngle-math32.Pi/2) > 1e-6 {
		t.Errorf("polar limit should be converted to radians, got %f", cfg.Controls.MaxPolarAngle)
	}
	if cfg.Background != (scene.Color{R: 1, G: 1, B: 1}) {
		t.Errorf("unexpected background %v", cfg.Background)
	}
	if cfg.DistanceFactor != 1.5 || cfg.ModelPath != c.Model.Path {
		t.Errorf("unexpected config %+v", cfg)
	}
}
