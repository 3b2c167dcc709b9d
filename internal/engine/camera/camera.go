// Package camera provides the perspective camera used to view the model.
package camera

import (
	gomath "math"

	"github.com/Faultbox/stlviewer/pkg/math"
)

// DefaultFrameFactor is the multiplier applied to the largest bounding
// dimension when framing a model.
const DefaultFrameFactor = 1.5

// PerspectiveCamera is a pinhole camera looking from Position at Target.
type PerspectiveCamera struct {
	// Vertical field of view in degrees
	FOV    float32
	Aspect float32
	Near   float32
	Far    float32

	Position math.Vec3
	Target   math.Vec3
	Up       math.Vec3

	projection math.Mat4
}

// NewPerspective creates a camera at the origin looking down -Z.
func NewPerspective(fov, aspect, near, far float32) *PerspectiveCamera {
	c := &PerspectiveCamera{
		FOV:    fov,
		Aspect: aspect,
		Near:   near,
		Far:    far,
		Target: math.Vec3{Z: -1},
		Up:     math.Vec3{Y: 1},
	}
	c.UpdateProjectionMatrix()
	return c
}

// AspectFromSize returns width/height, or ok=false when height is zero.
func AspectFromSize(width, height int) (aspect float32, ok bool) {
	if width <= 0 || height <= 0 {
		return 0, false
	}
	return float32(width) / float32(height), true
}

// SetSize updates the aspect ratio for a surface of the given size and
// rebuilds the projection. A degenerate size keeps the previous aspect.
func (c *PerspectiveCamera) SetSize(width, height int) bool {
	aspect, ok := AspectFromSize(width, height)
	if !ok {
		return false
	}
	c.Aspect = aspect
	c.UpdateProjectionMatrix()
	return true
}

// UpdateProjectionMatrix must be called after changing FOV, Aspect, Near or Far.
func (c *PerspectiveCamera) UpdateProjectionMatrix() {
	fovY := float32(float64(c.FOV) * gomath.Pi / 180)
	c.projection = math.Perspective(fovY, c.Aspect, c.Near, c.Far)
}

// ProjectionMatrix returns the cached projection matrix.
func (c *PerspectiveCamera) ProjectionMatrix() math.Mat4 {
	return c.projection
}

// ViewMatrix returns the world-to-camera matrix.
func (c *PerspectiveCamera) ViewMatrix() math.Mat4 {
	return math.LookAt(c.Position, c.Target, c.Up)
}

// LookAt points the camera at target.
func (c *PerspectiveCamera) LookAt(target math.Vec3) {
	c.Target = target
}

// Forward returns the unit viewing direction.
func (c *PerspectiveCamera) Forward() math.Vec3 {
	return c.Target.Sub(c.Position).Normalize()
}

// Right returns the unit vector pointing to the right of the view.
func (c *PerspectiveCamera) Right() math.Vec3 {
	return c.Forward().Cross(c.Up).Normalize()
}

// ScreenUp returns the unit vector pointing up in screen space.
func (c *PerspectiveCamera) ScreenUp() math.Vec3 {
	return c.Right().Cross(c.Forward())
}

// FrameDistance returns the camera distance that frames box: factor times
// the largest component of the box maximum. When the box lies entirely in
// non-positive space the largest box size is used instead, and a
// zero-size box yields factor.
func FrameDistance(box math.Box3, factor float32) float32 {
	if box.IsEmpty() {
		return factor
	}
	largest := box.Max.MaxComponent()
	if largest <= 0 {
		largest = box.Size().MaxComponent()
	}
	if largest <= 0 {
		largest = 1
	}
	return largest * factor
}

// FrameBounds moves the camera along Z so the model inside box is in view
// and returns the new Z position.
func (c *PerspectiveCamera) FrameBounds(box math.Box3, factor float32) float32 {
	c.Position.Z = FrameDistance(box, factor)
	return c.Position.Z
}
