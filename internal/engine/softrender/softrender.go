// Package softrender rasterizes scenes on the CPU. It backs the headless
// snapshot tool and tests that need real pixels without a GPU.
package softrender

import (
	"errors"
	"image"
	"image/draw"
	"sync"

	"github.com/fogleman/fauxgl"
	"github.com/nfnt/resize"
	"go.uber.org/zap"

	"github.com/Faultbox/stlviewer/internal/engine/camera"
	"github.com/Faultbox/stlviewer/internal/engine/debug"
	"github.com/Faultbox/stlviewer/internal/engine/scene"
	"github.com/Faultbox/stlviewer/internal/logger"
	"github.com/Faultbox/stlviewer/pkg/math"
)

// ErrNoFrame is returned by Snapshot before the first Render.
var ErrNoFrame = errors.New("no frame rendered")

// boundsColor is the color of the bounds overlay.
var boundsColor = fauxgl.Color{R: 1, G: 1, B: 0, A: 1}

// Config holds renderer settings.
type Config struct {
	Width  int
	Height int
	// Samples is the supersampling factor per axis. Values below 1 mean 1.
	Samples    int
	ShowBounds bool
}

type cachedMesh struct {
	version uint64
	mesh    *fauxgl.Mesh
}

// Renderer is a CPU rasterizer with the same contract as the GL renderer.
type Renderer struct {
	mu sync.Mutex

	width, height int
	samples       int
	showBounds    bool

	ctx    *fauxgl.Context
	meshes map[*scene.Mesh]cachedMesh
	frame  image.Image
	log    *zap.Logger
}

// New creates a renderer with a w×h output.
func New(cfg Config) *Renderer {
	if cfg.Samples < 1 {
		cfg.Samples = 1
	}
	r := &Renderer{
		samples:    cfg.Samples,
		showBounds: cfg.ShowBounds,
		meshes:     make(map[*scene.Mesh]cachedMesh),
		log:        logger.Named("softrender"),
	}
	r.SetSize(cfg.Width, cfg.Height)
	return r
}

// SetSize resizes the output. Non-positive sizes are ignored.
func (r *Renderer) SetSize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if width == r.width && height == r.height && r.ctx != nil {
		return
	}
	r.width, r.height = width, height
	r.ctx = fauxgl.NewContext(width*r.samples, height*r.samples)
	r.ctx.Cull = fauxgl.CullNone
	r.log.Debug("context resized",
		zap.Int("width", width),
		zap.Int("height", height),
		zap.Int("samples", r.samples),
	)
}

// Size returns the output size.
func (r *Renderer) Size() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.width, r.height
}

// SetShowBounds toggles the bounds overlay.
func (r *Renderer) SetShowBounds(show bool) {
	r.mu.Lock()
	r.showBounds = show
	r.mu.Unlock()
}

// ShowBounds reports whether the bounds overlay is drawn.
func (r *Renderer) ShowBounds() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.showBounds
}

// Render draws s from cam.
func (r *Renderer) Render(s *scene.Scene, cam *camera.PerspectiveCamera) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ctx == nil {
		return errors.New("renderer has no size")
	}

	bg := s.Background
	r.ctx.ClearColorBufferWith(fauxgl.Color{R: float64(bg.R), G: float64(bg.G), B: float64(bg.B), A: 1})
	r.ctx.ClearDepthBuffer()

	matrix := fauxgl.LookAt(toVector(cam.Position), toVector(cam.Target), toVector(cam.Up)).
		Perspective(float64(cam.FOV), float64(cam.Aspect), float64(cam.Near), float64(cam.Far))

	sh := &phongShader{
		matrix:   matrix,
		eye:      cam.Position,
		lighting: s.Lighting(),
	}

	meshes := s.Meshes()
	for _, m := range meshes {
		if !m.Visible || m.Geometry == nil {
			continue
		}
		sh.material = m.Material
		r.ctx.Shader = sh
		r.ctx.DrawMesh(r.meshFor(m))
	}

	if r.showBounds {
		r.ctx.Shader = fauxgl.NewSolidColorShader(matrix, boundsColor)
		for _, m := range meshes {
			if !m.Visible || m.Geometry == nil {
				continue
			}
			r.ctx.DrawLines(boundsLines(m.Geometry.BoundingBox()))
		}
	}

	// The context reuses its color buffer, so the stored frame must be a copy.
	if r.samples > 1 {
		r.frame = resize.Resize(uint(r.width), uint(r.height), r.ctx.Image(), resize.Bilinear)
	} else {
		r.frame = cloneImage(r.ctx.Image())
	}
	return nil
}

func cloneImage(src image.Image) *image.NRGBA {
	if n, ok := src.(*image.NRGBA); ok {
		dst := image.NewNRGBA(n.Rect)
		copy(dst.Pix, n.Pix)
		return dst
	}
	dst := image.NewNRGBA(src.Bounds())
	draw.Draw(dst, dst.Rect, src, src.Bounds().Min, draw.Src)
	return dst
}

// meshFor returns the rasterizer mesh for m, rebuilding it when the
// geometry has changed.
func (r *Renderer) meshFor(m *scene.Mesh) *fauxgl.Mesh {
	version := m.Geometry.Version()
	if c, ok := r.meshes[m]; ok && c.version == version {
		return c.mesh
	}
	mesh := buildMesh(m.Geometry)
	r.meshes[m] = cachedMesh{version: version, mesh: mesh}
	r.log.Debug("mesh uploaded",
		zap.String("name", m.Name),
		zap.Int("triangles", m.Geometry.TriangleCount()),
	)
	return mesh
}

// Image returns the last rendered frame, or nil before the first Render.
func (r *Renderer) Image() image.Image {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frame
}

// Snapshot returns the last rendered frame.
func (r *Renderer) Snapshot() (image.Image, error) {
	img := r.Image()
	if img == nil {
		return nil, ErrNoFrame
	}
	return img, nil
}

// Close releases cached meshes.
func (r *Renderer) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.meshes = make(map[*scene.Mesh]cachedMesh)
	r.frame = nil
}

func buildMesh(g *scene.Geometry) *fauxgl.Mesh {
	tris := make([]*fauxgl.Triangle, 0, g.TriangleCount())
	for i := 0; i+2 < g.VertexCount(); i += 3 {
		tris = append(tris, fauxgl.NewTriangle(vertex(g, i), vertex(g, i+1), vertex(g, i+2)))
	}
	return fauxgl.NewTriangleMesh(tris)
}

func vertex(g *scene.Geometry, i int) fauxgl.Vertex {
	return fauxgl.Vertex{
		Position: toVector(g.Vertex(i)),
		Normal:   toVector(g.Normal(i)),
	}
}

func boundsLines(box math.Box3) []*fauxgl.Line {
	segs := debug.BoxWireframeSegments(box, debug.DefaultBBoxPadding)
	lines := make([]*fauxgl.Line, 0, len(segs))
	for _, s := range segs {
		lines = append(lines, fauxgl.NewLineForPoints(toVector(s[0]), toVector(s[1])))
	}
	return lines
}

func toVector(v math.Vec3) fauxgl.Vector {
	return fauxgl.Vector{X: float64(v.X), Y: float64(v.Y), Z: float64(v.Z)}
}

func fromVector(v fauxgl.Vector) math.Vec3 {
	return math.Vec3{X: float32(v.X), Y: float32(v.Y), Z: float32(v.Z)}
}
