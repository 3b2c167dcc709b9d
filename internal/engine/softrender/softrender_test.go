package softrender

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/Faultbox/stlviewer/internal/engine/camera"
	"github.com/Faultbox/stlviewer/internal/engine/input"
	"github.com/Faultbox/stlviewer/internal/engine/scene"
	"github.com/Faultbox/stlviewer/pkg/math"
)

// quad returns a unit square in the XY plane facing +Z.
func quad() *scene.Geometry {
	return &scene.Geometry{
		Positions: []float32{
			-0.5, -0.5, 0, 0.5, -0.5, 0, 0.5, 0.5, 0,
			-0.5, -0.5, 0, 0.5, 0.5, 0, -0.5, 0.5, 0,
		},
		Normals: []float32{
			0, 0, 1, 0, 0, 1, 0, 0, 1,
			0, 0, 1, 0, 0, 1, 0, 0, 1,
		},
	}
}

func testScene() (*scene.Scene, *scene.Mesh, *camera.PerspectiveCamera) {
	s := scene.New()
	s.Background = scene.Hex(0x0000ff)
	s.AddLight(scene.AmbientLight(0xffffff, 1))

	m := scene.NewMesh("quad", quad(), scene.PhongMaterial(0xff0000, 0x000000, 1))
	s.Add(m)

	cam := camera.NewPerspective(70, 1, 0.1, 100)
	cam.Position = math.Vec3{Z: 3}
	cam.LookAt(math.Vec3{})
	return s, m, cam
}

func pixel(img image.Image, x, y int) color.NRGBA {
	return color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
}

func TestRender(t *testing.T) {
	s, _, cam := testScene()
	r := New(Config{Width: 64, Height: 64, Samples: 2})

	if _, err := r.Snapshot(); !errors.Is(err, ErrNoFrame) {
		t.Fatalf("expected ErrNoFrame before rendering, got %v", err)
	}

	if err := r.Render(s, cam); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	img, err := r.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 64 || b.Dy() != 64 {
		t.Fatalf("expected 64x64 frame, got %v", b)
	}

	center := pixel(img, 32, 32)
	if center.R < 200 || center.B > 50 {
		t.Errorf("center should show the red mesh, got %v", center)
	}
	corner := pixel(img, 0, 0)
	if corner.B < 200 || corner.R > 50 {
		t.Errorf("corner should show the blue background, got %v", corner)
	}
}

func TestRenderHiddenMesh(t *testing.T) {
	s, m, cam := testScene()
	m.Visible = false
	r := New(Config{Width: 32, Height: 32})

	if err := r.Render(s, cam); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if c := pixel(r.Image(), 16, 16); c.R > 50 {
		t.Errorf("hidden mesh was drawn: %v", c)
	}
}

func TestBoundsOverlay(t *testing.T) {
	s, _, cam := testScene()
	r := New(Config{Width: 64, Height: 64})

	if err := r.Render(s, cam); err != nil {
		t.Fatal(err)
	}
	plain := r.Image()

	r.SetShowBounds(true)
	if !r.ShowBounds() {
		t.Fatal("expected bounds overlay enabled")
	}
	if err := r.Render(s, cam); err != nil {
		t.Fatal(err)
	}
	overlay := r.Image()

	diff := 0
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			if pixel(plain, x, y) != pixel(overlay, x, y) {
				diff++
			}
		}
	}
	if diff == 0 {
		t.Error("bounds overlay did not change the frame")
	}
}

func TestFrameStableAcrossRenders(t *testing.T) {
	for _, samples := range []int{1, 2} {
		s, m, cam := testScene()
		r := New(Config{Width: 32, Height: 32, Samples: samples})

		if err := r.Render(s, cam); err != nil {
			t.Fatal(err)
		}
		first, err := r.Snapshot()
		if err != nil {
			t.Fatal(err)
		}
		before := pixel(first, 16, 16)

		s.Background = scene.Hex(0x000000)
		m.Visible = false
		if err := r.Render(s, cam); err != nil {
			t.Fatal(err)
		}

		if after := pixel(first, 16, 16); after != before {
			t.Errorf("samples=%d: earlier frame changed after Render: %v -> %v", samples, before, after)
		}
		if now := pixel(r.Image(), 16, 16); now.R > 50 {
			t.Errorf("samples=%d: latest frame should not show the hidden mesh, got %v", samples, now)
		}
	}
}

func TestMeshCache(t *testing.T) {
	s, m, cam := testScene()
	r := New(Config{Width: 16, Height: 16})

	if err := r.Render(s, cam); err != nil {
		t.Fatal(err)
	}
	first := r.meshes[m].mesh

	if err := r.Render(s, cam); err != nil {
		t.Fatal(err)
	}
	if r.meshes[m].mesh != first {
		t.Error("unchanged geometry should reuse the cached mesh")
	}

	m.Geometry.Translate(math.Vec3{X: 1})
	if err := r.Render(s, cam); err != nil {
		t.Fatal(err)
	}
	if r.meshes[m].mesh == first {
		t.Error("modified geometry should rebuild the cached mesh")
	}
	if r.meshes[m].version != m.Geometry.Version() {
		t.Errorf("cache version %d, geometry version %d", r.meshes[m].version, m.Geometry.Version())
	}
}

func TestSetSize(t *testing.T) {
	r := New(Config{Width: 32, Height: 16, Samples: 3})
	r.SetSize(0, 10)
	if w, h := r.Size(); w != 32 || h != 16 {
		t.Errorf("zero width should be ignored, got %dx%d", w, h)
	}

	r.SetSize(20, 10)
	if w, h := r.Size(); w != 20 || h != 10 {
		t.Errorf("expected 20x10, got %dx%d", w, h)
	}
	if r.ctx.Width != 60 || r.ctx.Height != 30 {
		t.Errorf("expected 60x30 supersampled context, got %dx%d", r.ctx.Width, r.ctx.Height)
	}
}

func TestSurface(t *testing.T) {
	s := NewSurface(100, 50)
	s.Push(input.Event{Type: input.EventWindowResize, Width: 200, Height: 100})
	if w, h := s.Size(); w != 200 || h != 100 {
		t.Errorf("resize event should update size, got %dx%d", w, h)
	}

	s.OnPoll(func(polls int) []input.Event {
		if polls == 2 {
			return []input.Event{{Type: input.EventQuit}}
		}
		return nil
	})

	q := input.New()
	s.PollEvents(q)
	if len(q.Events()) != 1 || q.Quit() {
		t.Errorf("first poll should deliver the pushed resize only, got %v", q.Events())
	}

	q.Reset()
	s.PollEvents(q)
	if !q.Quit() {
		t.Error("second poll should deliver quit")
	}

	s.Present()
	s.Present()
	if s.Presents() != 2 {
		t.Errorf("expected 2 presents, got %d", s.Presents())
	}
}
