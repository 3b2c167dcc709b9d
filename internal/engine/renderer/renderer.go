// Package renderer provides OpenGL rendering functionality.
package renderer

import (
	"fmt"
	"image"

	"github.com/go-gl/gl/v4.1-core/gl"
	"go.uber.org/zap"

	"github.com/Faultbox/stlviewer/internal/engine/camera"
	"github.com/Faultbox/stlviewer/internal/engine/debug"
	"github.com/Faultbox/stlviewer/internal/engine/scene"
	"github.com/Faultbox/stlviewer/internal/engine/shader"
	"github.com/Faultbox/stlviewer/internal/logger"
	"github.com/Faultbox/stlviewer/pkg/math"
)

// Config holds renderer configuration.
type Config struct {
	Width      int
	Height     int
	ShowBounds bool
}

// gpuMesh is a mesh uploaded to the GPU.
type gpuMesh struct {
	vao, vbo    uint32
	vertexCount int32
	version     uint64
}

// Renderer draws scenes with OpenGL.
type Renderer struct {
	config Config
	log    *zap.Logger

	meshProgram *shader.Program
	lineProgram *shader.Program

	meshes map[*scene.Mesh]*gpuMesh

	boundsVAO uint32
	boundsVBO uint32
}

// New creates a new renderer.
// IMPORTANT: Must be called AFTER OpenGL context is created!
func New(cfg Config) (*Renderer, error) {
	r := &Renderer{
		config: cfg,
		log:    logger.Named("renderer"),
		meshes: make(map[*scene.Mesh]*gpuMesh),
	}

	if err := gl.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize OpenGL: %w", err)
	}

	r.log.Info("OpenGL initialized",
		zap.String("version", gl.GoStr(gl.GetString(gl.VERSION))),
		zap.String("renderer", gl.GoStr(gl.GetString(gl.RENDERER))),
	)

	gl.Enable(gl.DEPTH_TEST)
	gl.DepthFunc(gl.LESS)
	gl.Enable(gl.MULTISAMPLE)

	var err error
	r.meshProgram, err = shader.Load("mesh")
	if err != nil {
		return nil, fmt.Errorf("failed to create mesh shader: %w", err)
	}
	r.lineProgram, err = shader.Load("line")
	if err != nil {
		r.meshProgram.Delete()
		return nil, fmt.Errorf("failed to create line shader: %w", err)
	}

	gl.GenVertexArrays(1, &r.boundsVAO)
	gl.GenBuffers(1, &r.boundsVBO)
	gl.BindVertexArray(r.boundsVAO)
	gl.BindBuffer(gl.ARRAY_BUFFER, r.boundsVBO)
	gl.BufferData(gl.ARRAY_BUFFER, debug.BBoxWireframeVertexCount*3*4, nil, gl.DYNAMIC_DRAW)
	gl.VertexAttribPointer(0, 3, gl.FLOAT, false, 3*4, gl.PtrOffset(0))
	gl.EnableVertexAttribArray(0)
	gl.BindVertexArray(0)

	r.SetSize(cfg.Width, cfg.Height)
	return r, nil
}

// Close cleans up renderer resources.
func (r *Renderer) Close() {
	r.log.Info("closing renderer")
	for m, g := range r.meshes {
		deleteMesh(g)
		delete(r.meshes, m)
	}
	if r.boundsVAO != 0 {
		gl.DeleteVertexArrays(1, &r.boundsVAO)
	}
	if r.boundsVBO != 0 {
		gl.DeleteBuffers(1, &r.boundsVBO)
	}
	r.meshProgram.Delete()
	r.lineProgram.Delete()
}

// SetSize handles window resize.
func (r *Renderer) SetSize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	r.config.Width = width
	r.config.Height = height
	gl.Viewport(0, 0, int32(width), int32(height))
	r.log.Debug("renderer resized",
		zap.Int("width", width),
		zap.Int("height", height),
	)
}

// SetShowBounds toggles the bounds overlay.
func (r *Renderer) SetShowBounds(show bool) {
	r.config.ShowBounds = show
}

// ShowBounds reports whether the bounds overlay is drawn.
func (r *Renderer) ShowBounds() bool {
	return r.config.ShowBounds
}

// Render draws s from cam.
func (r *Renderer) Render(s *scene.Scene, cam *camera.PerspectiveCamera) error {
	bg := s.Background
	gl.ClearColor(bg.R, bg.G, bg.B, 1.0)
	gl.Clear(gl.COLOR_BUFFER_BIT | gl.DEPTH_BUFFER_BIT)

	view := cam.ViewMatrix()
	proj := cam.ProjectionMatrix()
	model := math.Identity()
	lighting := s.Lighting()

	p := r.meshProgram
	p.Use()
	p.SetMat4("uModel", model)
	p.SetMat4("uView", view)
	p.SetMat4("uProjection", proj)
	p.SetVec3("uCameraPos", cam.Position.Array())
	p.SetVec3("uAmbient", lighting.Ambient.Array())
	p.SetVec3("uSkyColor", lighting.Sky.Array())
	p.SetVec3("uGroundColor", lighting.Ground.Array())

	points := lighting.Points
	if len(points) > shader.MaxPointLights {
		points = points[:shader.MaxPointLights]
	}
	p.SetInt("uPointCount", int32(len(points)))
	for i, pl := range points {
		p.SetVec3(fmt.Sprintf("uPointPos[%d]", i), pl.Position.Array())
		p.SetVec3(fmt.Sprintf("uPointColor[%d]", i), pl.Color.Array())
	}

	meshes := s.Meshes()
	for _, m := range meshes {
		if !m.Visible || m.Geometry == nil {
			continue
		}
		g := r.upload(m)
		p.SetVec3("uDiffuse", m.Material.Color.Array())
		p.SetVec3("uSpecular", m.Material.Specular.Array())
		p.SetFloat("uShininess", m.Material.Shininess)

		gl.BindVertexArray(g.vao)
		gl.DrawArrays(gl.TRIANGLES, 0, g.vertexCount)
	}

	if r.config.ShowBounds {
		r.drawBounds(meshes, view, proj)
	}

	gl.BindVertexArray(0)
	r.collect(meshes)

	if code := gl.GetError(); code != gl.NO_ERROR {
		return fmt.Errorf("GL error 0x%x", code)
	}
	return nil
}

func (r *Renderer) drawBounds(meshes []*scene.Mesh, view, proj math.Mat4) {
	l := r.lineProgram
	l.Use()
	l.SetMat4("uView", view)
	l.SetMat4("uProjection", proj)
	l.SetVec3("uColor", [3]float32{1, 1, 0})

	gl.BindVertexArray(r.boundsVAO)
	gl.BindBuffer(gl.ARRAY_BUFFER, r.boundsVBO)
	for _, m := range meshes {
		if !m.Visible || m.Geometry == nil {
			continue
		}
		verts := debug.BoxWireframe(m.Geometry.BoundingBox(), debug.DefaultBBoxPadding)
		if verts == nil {
			continue
		}
		gl.BufferSubData(gl.ARRAY_BUFFER, 0, len(verts)*4, gl.Ptr(verts))
		gl.DrawArrays(gl.LINES, 0, debug.BBoxWireframeVertexCount)
	}
}

// upload returns the GPU copy of m, re-uploading when the geometry changed.
func (r *Renderer) upload(m *scene.Mesh) *gpuMesh {
	g, ok := r.meshes[m]
	if ok && g.version == m.Geometry.Version() {
		return g
	}
	if !ok {
		g = &gpuMesh{}
		gl.GenVertexArrays(1, &g.vao)
		gl.GenBuffers(1, &g.vbo)
		r.meshes[m] = g
	}

	data := interleave(m.Geometry)
	gl.BindVertexArray(g.vao)
	gl.BindBuffer(gl.ARRAY_BUFFER, g.vbo)
	if len(data) > 0 {
		gl.BufferData(gl.ARRAY_BUFFER, len(data)*4, gl.Ptr(data), gl.STATIC_DRAW)
	} else {
		gl.BufferData(gl.ARRAY_BUFFER, 0, nil, gl.STATIC_DRAW)
	}

	// Position (location 0), normal (location 1).
	stride := int32(6 * 4)
	gl.VertexAttribPointer(0, 3, gl.FLOAT, false, stride, gl.PtrOffset(0))
	gl.EnableVertexAttribArray(0)
	gl.VertexAttribPointer(1, 3, gl.FLOAT, false, stride, gl.PtrOffset(3*4))
	gl.EnableVertexAttribArray(1)
	gl.BindVertexArray(0)

	g.vertexCount = int32(m.Geometry.VertexCount())
	g.version = m.Geometry.Version()

	r.log.Debug("mesh uploaded",
		zap.String("name", m.Name),
		zap.Int32("vertices", g.vertexCount),
		zap.Uint64("version", g.version),
	)
	return g
}

// collect frees GPU meshes no longer in the scene.
func (r *Renderer) collect(live []*scene.Mesh) {
	if len(r.meshes) <= len(live) {
		return
	}
	keep := make(map[*scene.Mesh]bool, len(live))
	for _, m := range live {
		keep[m] = true
	}
	for m, g := range r.meshes {
		if !keep[m] {
			deleteMesh(g)
			delete(r.meshes, m)
		}
	}
}

func deleteMesh(g *gpuMesh) {
	gl.DeleteVertexArrays(1, &g.vao)
	gl.DeleteBuffers(1, &g.vbo)
}

// interleave packs positions and normals as [px py pz nx ny nz] per vertex.
func interleave(g *scene.Geometry) []float32 {
	n := g.VertexCount()
	out := make([]float32, 0, n*6)
	for i := 0; i < n; i++ {
		out = append(out,
			g.Positions[i*3], g.Positions[i*3+1], g.Positions[i*3+2],
			g.Normals[i*3], g.Normals[i*3+1], g.Normals[i*3+2],
		)
	}
	return out
}

// Snapshot reads back the last presented frame.
func (r *Renderer) Snapshot() (image.Image, error) {
	w, h := r.config.Width, r.config.Height
	pixels := make([]byte, w*h*4)
	gl.PixelStorei(gl.PACK_ALIGNMENT, 1)
	// The back buffer is undefined after a swap.
	gl.ReadBuffer(gl.FRONT)
	defer gl.ReadBuffer(gl.BACK)
	gl.ReadPixels(0, 0, int32(w), int32(h), gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(pixels))
	return debug.ImageFromPixels(pixels, w, h)
}
