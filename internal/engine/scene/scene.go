// Package scene holds the renderable state of the viewer: meshes, their
// materials and the lights that shade them.
package scene

import (
	"github.com/Faultbox/stlviewer/pkg/math"
)

// Color is a linear RGB color with components in [0, 1].
type Color struct {
	R, G, B float32
}

// Hex converts a 0xRRGGBB value to a Color.
func Hex(rgb uint32) Color {
	return Color{
		R: float32((rgb>>16)&0xff) / 255,
		G: float32((rgb>>8)&0xff) / 255,
		B: float32(rgb&0xff) / 255,
	}
}

// Scale returns c multiplied by s.
func (c Color) Scale(s float32) Color {
	return Color{c.R * s, c.G * s, c.B * s}
}

// Add returns the component-wise sum.
func (c Color) Add(o Color) Color {
	return Color{c.R + o.R, c.G + o.G, c.B + o.B}
}

// Mul returns the component-wise product.
func (c Color) Mul(o Color) Color {
	return Color{c.R * o.R, c.G * o.G, c.B * o.B}
}

// Lerp interpolates from c to o by t.
func (c Color) Lerp(o Color, t float32) Color {
	return Color{
		c.R + (o.R-c.R)*t,
		c.G + (o.G-c.G)*t,
		c.B + (o.B-c.B)*t,
	}
}

// Clamp limits every component to [0, 1].
func (c Color) Clamp() Color {
	f := func(v float32) float32 {
		if v < 0 {
			return 0
		}
		if v > 1 {
			return 1
		}
		return v
	}
	return Color{f(c.R), f(c.G), f(c.B)}
}

// Array returns the color as [r, g, b].
func (c Color) Array() [3]float32 {
	return [3]float32{c.R, c.G, c.B}
}

// Scene is an ordered collection of meshes and lights.
type Scene struct {
	Background Color

	meshes []*Mesh
	lights []Light
}

// New creates an empty scene with a dark background.
func New() *Scene {
	return &Scene{
		Background: Color{0.1, 0.1, 0.15},
	}
}

// Add appends a mesh. Adding the same mesh twice is a no-op.
func (s *Scene) Add(m *Mesh) {
	for _, existing := range s.meshes {
		if existing == m {
			return
		}
	}
	s.meshes = append(s.meshes, m)
}

// Remove detaches a mesh and reports whether it was present.
func (s *Scene) Remove(m *Mesh) bool {
	for i, existing := range s.meshes {
		if existing == m {
			s.meshes = append(s.meshes[:i], s.meshes[i+1:]...)
			return true
		}
	}
	return false
}

// AddLight appends a light.
func (s *Scene) AddLight(l Light) {
	s.lights = append(s.lights, l)
}

// Meshes returns the meshes in insertion order.
func (s *Scene) Meshes() []*Mesh {
	return s.meshes
}

// Lights returns the lights in insertion order.
func (s *Scene) Lights() []Light {
	return s.lights
}

// Bounds returns the union of the bounding boxes of all visible meshes.
func (s *Scene) Bounds() math.Box3 {
	box := math.EmptyBox()
	for _, m := range s.meshes {
		if !m.Visible || m.Geometry == nil {
			continue
		}
		box = box.Union(m.Geometry.BoundingBox())
	}
	return box
}
