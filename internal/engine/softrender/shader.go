package softrender

import (
	"github.com/fogleman/fauxgl"

	"github.com/Faultbox/stlviewer/internal/engine/scene"
	"github.com/Faultbox/stlviewer/pkg/math"
)

// phongShader shades fragments with the scene lighting model.
type phongShader struct {
	matrix   fauxgl.Matrix
	eye      math.Vec3
	lighting scene.Lighting
	material scene.Material
}

func (s *phongShader) Vertex(v fauxgl.Vertex) fauxgl.Vertex {
	v.Output = s.matrix.MulPositionW(v.Position)
	return v
}

func (s *phongShader) Fragment(v fauxgl.Vertex) fauxgl.Color {
	c := s.lighting.Shade(s.material, fromVector(v.Position), fromVector(v.Normal), s.eye).Clamp()
	return fauxgl.Color{R: float64(c.R), G: float64(c.G), B: float64(c.B), A: 1}
}
