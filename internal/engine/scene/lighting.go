package scene

import (
	"github.com/chewxy/math32"

	"github.com/Faultbox/stlviewer/pkg/math"
)

// PointSample is a point light with its intensity folded into the color.
type PointSample struct {
	Position math.Vec3
	Color    Color
}

// Lighting is the scene's lights reduced to the terms the Phong shaders use.
type Lighting struct {
	Ambient Color
	Sky     Color
	Ground  Color
	Points  []PointSample
}

// Lighting sums the scene lights by kind.
func (s *Scene) Lighting() Lighting {
	var l Lighting
	for _, light := range s.lights {
		switch light.Kind {
		case LightAmbient:
			l.Ambient = l.Ambient.Add(light.Color.Scale(light.Intensity))
		case LightHemisphere:
			l.Sky = l.Sky.Add(light.Color.Scale(light.Intensity))
			l.Ground = l.Ground.Add(light.GroundColor.Scale(light.Intensity))
		case LightPoint:
			l.Points = append(l.Points, PointSample{
				Position: light.Position,
				Color:    light.Color.Scale(light.Intensity),
			})
		}
	}
	return l
}

// Shade evaluates Phong lighting for a surface point seen from eye. It is
// the same model mesh.frag implements.
func (l Lighting) Shade(m Material, pos, normal, eye math.Vec3) Color {
	n := normal.Normalize()
	viewDir := eye.Sub(pos).Normalize()
	if n.Dot(viewDir) < 0 {
		n = n.Scale(-1)
	}

	hemi := 0.5*n.Y + 0.5
	irradiance := l.Ambient.Add(l.Ground.Lerp(l.Sky, hemi))
	var specular Color

	for _, p := range l.Points {
		dir := p.Position.Sub(pos).Normalize()
		diff := math32.Max(n.Dot(dir), 0)
		irradiance = irradiance.Add(p.Color.Scale(diff))

		h := dir.Add(viewDir).Normalize()
		highlight := math32.Pow(math32.Max(n.Dot(h), 0), m.Shininess)
		specular = specular.Add(p.Color.Mul(m.Specular).Scale(highlight * diff))
	}

	return m.Color.Mul(irradiance).Add(specular)
}
