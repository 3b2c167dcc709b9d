// Package controls moves a camera in response to pointer input.
package controls

import (
	"github.com/chewxy/math32"

	"github.com/Faultbox/stlviewer/internal/engine/camera"
	"github.com/Faultbox/stlviewer/internal/engine/input"
	"github.com/Faultbox/stlviewer/pkg/math"
)

// polarEpsilon keeps the camera off the poles where LookAt degenerates.
const polarEpsilon = 1e-6

// Config holds orbit behaviour settings.
type Config struct {
	EnableDamping bool
	DampingFactor float32

	MinDistance float32
	MaxDistance float32

	// Polar angle limits in radians measured from +Y.
	MinPolarAngle float32
	MaxPolarAngle float32

	// Azimuth limits in radians. Infinite values disable the limit.
	MinAzimuthAngle float32
	MaxAzimuthAngle float32

	RotateSpeed float32
	ZoomSpeed   float32
	PanSpeed    float32

	// ScreenSpacePanning pans in the view plane instead of the ground plane.
	ScreenSpacePanning bool

	AutoRotate bool
	// AutoRotateSpeed of 1 is one turn per minute at 60 updates per second.
	AutoRotateSpeed float32
}

// DefaultConfig mirrors the settings the viewer ships with.
func DefaultConfig() Config {
	return Config{
		EnableDamping:      true,
		DampingFactor:      0.05,
		MinDistance:        10,
		MaxDistance:        400,
		MinPolarAngle:      0,
		MaxPolarAngle:      math32.Pi,
		MinAzimuthAngle:    math32.Inf(-1),
		MaxAzimuthAngle:    math32.Inf(1),
		RotateSpeed:        1,
		ZoomSpeed:          1,
		PanSpeed:           1,
		ScreenSpacePanning: true,
		AutoRotate:         false,
		AutoRotateSpeed:    2,
	}
}

type spherical struct {
	radius float32
	theta  float32 // azimuth around +Y, 0 on +Z
	phi    float32 // polar angle from +Y
}

func sphericalFromOffset(v math.Vec3) spherical {
	r := v.Length()
	if r == 0 {
		return spherical{}
	}
	return spherical{
		radius: r,
		theta:  math32.Atan2(v.X, v.Z),
		phi:    math32.Acos(clamp(v.Y/r, -1, 1)),
	}
}

func (s spherical) offset() math.Vec3 {
	sinPhi := math32.Sin(s.phi) * s.radius
	return math.Vec3{
		X: sinPhi * math32.Sin(s.theta),
		Y: math32.Cos(s.phi) * s.radius,
		Z: sinPhi * math32.Cos(s.theta),
	}
}

// OrbitControls orbits a camera around a target point.
type OrbitControls struct {
	Config
	Enabled bool
	Target  math.Vec3

	camera         *camera.PerspectiveCamera
	viewportHeight float32

	sphericalDelta spherical
	scale          float32
	panOffset      math.Vec3
	dragging       bool

	savedPosition math.Vec3
	savedTarget   math.Vec3
}

// NewOrbitControls binds controls to cam. The camera looks at the target
// after the first Update.
func NewOrbitControls(cam *camera.PerspectiveCamera, cfg Config) *OrbitControls {
	c := &OrbitControls{
		Config:         cfg,
		Enabled:        true,
		camera:         cam,
		viewportHeight: 1,
		scale:          1,
	}
	c.SaveState()
	return c
}

// SetViewport sets the surface height used to convert pixels to angles.
func (c *OrbitControls) SetViewport(width, height int) {
	if height > 0 {
		c.viewportHeight = float32(height)
	}
}

// SaveState records the current pose as the Reset pose.
func (c *OrbitControls) SaveState() {
	c.savedPosition = c.camera.Position
	c.savedTarget = c.Target
}

// Reset restores the saved pose and drops pending motion.
func (c *OrbitControls) Reset() {
	c.camera.Position = c.savedPosition
	c.Target = c.savedTarget
	c.camera.LookAt(c.Target)
	c.sphericalDelta = spherical{}
	c.panOffset = math.Vec3{}
	c.scale = 1
}

// HandleDrag rotates by a pointer drag of deltaX, deltaY pixels.
func (c *OrbitControls) HandleDrag(deltaX, deltaY float32) {
	c.sphericalDelta.theta -= 2 * math32.Pi * deltaX / c.viewportHeight * c.RotateSpeed
	c.sphericalDelta.phi -= 2 * math32.Pi * deltaY / c.viewportHeight * c.RotateSpeed
}

// HandleZoom dollies by wheel steps. Positive values move closer.
func (c *OrbitControls) HandleZoom(steps float32) {
	if steps == 0 {
		return
	}
	c.scale *= math32.Pow(0.95, c.ZoomSpeed*steps)
}

// HandlePan moves the target by a pointer drag of deltaX, deltaY pixels.
func (c *OrbitControls) HandlePan(deltaX, deltaY float32) {
	offset := c.camera.Position.Sub(c.Target)
	fov := c.camera.FOV * math32.Pi / 180
	// Distance covered by half the viewport height at the target depth.
	targetDistance := offset.Length() * math32.Tan(fov/2)

	left := 2 * deltaX * targetDistance / c.viewportHeight * c.PanSpeed
	up := 2 * deltaY * targetDistance / c.viewportHeight * c.PanSpeed

	right := c.camera.Right()
	c.panOffset = c.panOffset.Add(right.Scale(-left))

	var upDir math.Vec3
	if c.ScreenSpacePanning {
		upDir = c.camera.ScreenUp()
	} else {
		upDir = c.camera.Up.Cross(right).Normalize()
	}
	c.panOffset = c.panOffset.Add(upDir.Scale(up))
}

// HandleEvent applies one input event. Left drag rotates, right or middle
// drag pans, the wheel zooms. It reports whether the event was consumed.
func (c *OrbitControls) HandleEvent(e input.Event) bool {
	if !c.Enabled {
		return false
	}
	switch e.Type {
	case input.EventMouseDown:
		c.dragging = true
	case input.EventMouseUp:
		c.dragging = e.Buttons != 0
	case input.EventMouseMove:
		switch {
		case e.Buttons.Has(input.ButtonLeft):
			c.HandleDrag(e.DeltaX, e.DeltaY)
		case e.Buttons.Has(input.ButtonRight), e.Buttons.Has(input.ButtonMiddle):
			c.HandlePan(e.DeltaX, e.DeltaY)
		default:
			return false
		}
	case input.EventMouseWheel:
		c.HandleZoom(e.DeltaY)
	default:
		return false
	}
	return true
}

// Update applies pending motion to the camera and advances damping. It
// reports whether the camera moved.
func (c *OrbitControls) Update() bool {
	before := c.camera.Position

	sph := sphericalFromOffset(c.camera.Position.Sub(c.Target))

	if c.AutoRotate && !c.dragging {
		c.sphericalDelta.theta -= 2 * math32.Pi / 60 / 60 * c.AutoRotateSpeed
	}

	if c.EnableDamping {
		sph.theta += c.sphericalDelta.theta * c.DampingFactor
		sph.phi += c.sphericalDelta.phi * c.DampingFactor
	} else {
		sph.theta += c.sphericalDelta.theta
		sph.phi += c.sphericalDelta.phi
	}

	if !math32.IsInf(c.MinAzimuthAngle, 0) && !math32.IsInf(c.MaxAzimuthAngle, 0) {
		sph.theta = clamp(sph.theta, c.MinAzimuthAngle, c.MaxAzimuthAngle)
	}
	sph.phi = clamp(sph.phi, c.MinPolarAngle, c.MaxPolarAngle)
	sph.phi = clamp(sph.phi, polarEpsilon, math32.Pi-polarEpsilon)

	sph.radius = clamp(sph.radius*c.scale, c.MinDistance, c.MaxDistance)

	if c.EnableDamping {
		c.Target = c.Target.Add(c.panOffset.Scale(c.DampingFactor))
	} else {
		c.Target = c.Target.Add(c.panOffset)
	}

	c.camera.Position = c.Target.Add(sph.offset())
	c.camera.LookAt(c.Target)

	if c.EnableDamping {
		decay := 1 - c.DampingFactor
		c.sphericalDelta.theta *= decay
		c.sphericalDelta.phi *= decay
		c.panOffset = c.panOffset.Scale(decay)
	} else {
		c.sphericalDelta = spherical{}
		c.panOffset = math.Vec3{}
	}
	c.scale = 1

	return before.Distance(c.camera.Position) > 1e-4
}

// Distance returns the current camera-to-target distance.
func (c *OrbitControls) Distance() float32 {
	return c.camera.Position.Distance(c.Target)
}

func clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
