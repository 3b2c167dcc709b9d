package scene

import "github.com/Faultbox/stlviewer/pkg/math"

// LightKind identifies how a light contributes to shading.
type LightKind int

const (
	// LightAmbient adds a constant term to every fragment.
	LightAmbient LightKind = iota
	// LightHemisphere blends sky and ground colors by the normal's Y component.
	LightHemisphere
	// LightPoint is a positional diffuse + specular light.
	LightPoint
)

// String returns a human-readable light kind.
func (k LightKind) String() string {
	switch k {
	case LightAmbient:
		return "ambient"
	case LightHemisphere:
		return "hemisphere"
	case LightPoint:
		return "point"
	default:
		return "unknown"
	}
}

// Light is a single light source.
type Light struct {
	Kind        LightKind
	Color       Color // sky color for hemisphere lights
	GroundColor Color // hemisphere lights only
	Intensity   float32
	Position    math.Vec3 // point lights only
}

// AmbientLight creates an ambient light.
func AmbientLight(rgb uint32, intensity float32) Light {
	return Light{Kind: LightAmbient, Color: Hex(rgb), Intensity: intensity}
}

// HemisphereLight creates a sky/ground hemisphere light.
func HemisphereLight(sky, ground uint32, intensity float32) Light {
	return Light{
		Kind:        LightHemisphere,
		Color:       Hex(sky),
		GroundColor: Hex(ground),
		Intensity:   intensity,
	}
}

// PointLight creates a point light at pos.
func PointLight(rgb uint32, intensity float32, pos math.Vec3) Light {
	return Light{Kind: LightPoint, Color: Hex(rgb), Intensity: intensity, Position: pos}
}

// Hemisphere evaluates a hemisphere light for a unit normal, returning the
// blended color scaled by intensity.
func (l Light) Hemisphere(normal math.Vec3) Color {
	return l.GroundColor.Lerp(l.Color, 0.5*normal.Y+0.5).Scale(l.Intensity)
}
