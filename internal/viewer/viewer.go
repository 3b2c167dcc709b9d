// Package viewer displays a single mesh with orbit controls.
//
// A Viewer is bootstrapped by New, which creates the camera, controls and
// scene and starts loading the model in the background. Run drives the
// render loop on the calling goroutine: it waits for the model, frames the
// camera on it, then renders one frame per tick until the context is
// cancelled, Stop is called or the surface asks to quit.
package viewer

import (
	"context"
	"errors"
	"fmt"
	"image"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/stlviewer/internal/config"
	"github.com/Faultbox/stlviewer/internal/engine/camera"
	"github.com/Faultbox/stlviewer/internal/engine/controls"
	"github.com/Faultbox/stlviewer/internal/engine/debug"
	"github.com/Faultbox/stlviewer/internal/engine/input"
	"github.com/Faultbox/stlviewer/internal/engine/scene"
	"github.com/Faultbox/stlviewer/internal/loader"
	"github.com/Faultbox/stlviewer/internal/logger"
	"github.com/Faultbox/stlviewer/pkg/math"
)

// Viewer errors.
var (
	ErrModelLoad      = errors.New("model load failed")
	ErrNotReady       = errors.New("viewer is not bootstrapped")
	ErrClosed         = errors.New("viewer is closed")
	ErrAlreadyRunning = errors.New("render loop already running")
)

// idlePoll is how often input is pumped while the model is loading.
const idlePoll = 16 * time.Millisecond

// Surface is the output the viewer draws into and reads input from.
type Surface interface {
	Size() (width, height int)
	PollEvents(q *input.Queue)
	Present()
}

// Renderer draws a scene from a camera.
type Renderer interface {
	SetSize(width, height int)
	Render(s *scene.Scene, cam *camera.PerspectiveCamera) error
}

// Snapshotter is implemented by renderers that can read back the last frame.
type Snapshotter interface {
	Snapshot() (image.Image, error)
}

// BoundsToggler is implemented by renderers that can overlay mesh bounds.
type BoundsToggler interface {
	SetShowBounds(show bool)
	ShowBounds() bool
}

// LoadFunc starts an asynchronous model load.
type LoadFunc func(ctx context.Context, path string) <-chan loader.Result

// Host bundles the collaborators a Viewer drives.
type Host struct {
	Surface  Surface
	Renderer Renderer
	// Load defaults to loader.Load.
	Load LoadFunc
}

// Config holds viewer settings.
type Config struct {
	ModelPath      string
	Material       scene.Material
	CenterModel    bool
	Background     scene.Color
	FOV            float32
	Near           float32
	Far            float32
	DistanceFactor float32
	Controls       controls.Config
	FPSLimit       int
	ScreenshotDir  string
}

// DefaultConfig returns the viewer defaults.
func DefaultConfig() Config {
	return ConfigFrom(config.Default())
}

// ConfigFrom derives viewer settings from the application config.
func ConfigFrom(cfg *config.Config) Config {
	ctl := controls.DefaultConfig()
	ctl.EnableDamping = cfg.Controls.EnableDamping
	ctl.DampingFactor = cfg.Controls.DampingFactor
	ctl.MinDistance = cfg.Controls.MinDistance
	ctl.MaxDistance = cfg.Controls.MaxDistance
	ctl.MinPolarAngle = degToRad(cfg.Controls.MinPolarAngle)
	ctl.MaxPolarAngle = degToRad(cfg.Controls.MaxPolarAngle)
	ctl.ScreenSpacePanning = cfg.Controls.ScreenSpacePanning
	ctl.AutoRotate = cfg.Controls.AutoRotate
	ctl.AutoRotateSpeed = cfg.Controls.AutoRotateSpeed
	ctl.RotateSpeed = cfg.Controls.RotateSpeed
	ctl.ZoomSpeed = cfg.Controls.ZoomSpeed
	ctl.PanSpeed = cfg.Controls.PanSpeed

	return Config{
		ModelPath:      cfg.Model.Path,
		Material:       scene.PhongMaterial(uint32(cfg.Model.Color), uint32(cfg.Model.Specular), cfg.Model.Shininess),
		CenterModel:    cfg.Model.Center,
		Background:     scene.Hex(uint32(cfg.Render.Background)),
		FOV:            cfg.Camera.FOV,
		Near:           cfg.Camera.Near,
		Far:            cfg.Camera.Far,
		DistanceFactor: cfg.Camera.DistanceFactor,
		Controls:       ctl,
		FPSLimit:       cfg.Window.FPSLimit,
		ScreenshotDir:  cfg.Debug.ScreenshotDir,
	}
}

func degToRad(deg float32) float32 {
	return deg * 3.14159265358979323846 / 180
}

// Viewer owns the camera, controls and scene of one model view.
type Viewer struct {
	cfg      Config
	surface  Surface
	renderer Renderer
	log      *zap.Logger

	camera   *camera.PerspectiveCamera
	controls *controls.OrbitControls
	scene    *scene.Scene
	events   *input.Queue
	mesh     *scene.Mesh

	cancelLoad context.CancelFunc
	loadCh     <-chan loader.Result
	loadErr    error
	ready      bool

	screenshots *debug.ScreenshotCapture

	running  atomic.Bool
	stop     chan struct{}
	stopOnce sync.Once
	closed   bool

	frames     uint64
	fpsFrames  int
	fpsStarted time.Time
}

// New bootstraps a viewer: the renderer is sized to the surface, the camera
// and controls are created with the surface aspect, the scene is lit and
// the model load is started. The render loop does not start until Run.
func New(cfg Config, host Host) (*Viewer, error) {
	if host.Surface == nil || host.Renderer == nil {
		return nil, errors.New("viewer needs a surface and a renderer")
	}
	if cfg.ModelPath == "" {
		return nil, errors.New("viewer needs a model path")
	}
	load := host.Load
	if load == nil {
		load = loader.Load
	}

	v := &Viewer{
		cfg:         cfg,
		surface:     host.Surface,
		renderer:    host.Renderer,
		log:         logger.Named("viewer"),
		events:      input.New(),
		stop:        make(chan struct{}),
		screenshots: debug.NewScreenshotCapture(cfg.ScreenshotDir, "stlviewer"),
	}

	width, height := v.surface.Size()
	v.renderer.SetSize(width, height)

	aspect, ok := camera.AspectFromSize(width, height)
	if !ok {
		aspect = 1
	}
	v.camera = camera.NewPerspective(cfg.FOV, aspect, cfg.Near, cfg.Far)

	v.controls = controls.NewOrbitControls(v.camera, cfg.Controls)
	v.controls.SetViewport(width, height)

	v.scene = scene.New()
	v.scene.Background = cfg.Background
	addLights(v.scene)

	var loadCtx context.Context
	loadCtx, v.cancelLoad = context.WithCancel(context.Background())
	v.loadCh = load(loadCtx, cfg.ModelPath)

	v.log.Info("viewer bootstrapped",
		zap.String("model", cfg.ModelPath),
		zap.Int("width", width),
		zap.Int("height", height),
		zap.Float32("aspect", aspect),
	)
	return v, nil
}

// addLights installs the fixed studio lighting.
func addLights(s *scene.Scene) {
	s.AddLight(scene.HemisphereLight(0xffffff, 0x000000, 1.0))
	s.AddLight(scene.AmbientLight(0xaaaaaa, 0.15))
	s.AddLight(scene.PointLight(0xc0c090, 0.33, math.Vec3{X: -300, Y: 100, Z: -300}))
	s.AddLight(scene.PointLight(0xc0c090, 0.33, math.Vec3{X: 300, Y: 100, Z: -300}))
	s.AddLight(scene.PointLight(0xc0c090, 0.33, math.Vec3{X: -300, Y: -100, Z: 300}))
}

// Camera returns the viewer camera.
func (v *Viewer) Camera() *camera.PerspectiveCamera { return v.camera }

// Controls returns the orbit controls.
func (v *Viewer) Controls() *controls.OrbitControls { return v.controls }

// Scene returns the scene.
func (v *Viewer) Scene() *scene.Scene { return v.scene }

// Mesh returns the loaded mesh, or nil before the model is ready.
func (v *Viewer) Mesh() *scene.Mesh { return v.mesh }

// Ready reports whether the model has loaded and the camera is framed.
func (v *Viewer) Ready() bool { return v.ready }

// Frames returns the number of frames rendered.
func (v *Viewer) Frames() uint64 { return v.frames }

// Running reports whether Run is active.
func (v *Viewer) Running() bool { return v.running.Load() }

// Resize updates the renderer output size and the camera aspect.
func (v *Viewer) Resize(width, height int) {
	v.renderer.SetSize(width, height)
	if v.camera.SetSize(width, height) {
		v.controls.SetViewport(width, height)
	}
	v.log.Debug("viewer resized",
		zap.Int("width", width),
		zap.Int("height", height),
		zap.Float32("aspect", v.camera.Aspect),
	)
}

// WaitReady blocks until the model has loaded and been attached.
func (v *Viewer) WaitReady(ctx context.Context) error {
	if v.closed {
		return ErrClosed
	}
	if v.ready || v.loadErr != nil {
		return v.loadErr
	}
	select {
	case res, ok := <-v.loadCh:
		return v.handleLoad(res, ok)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (v *Viewer) handleLoad(res loader.Result, ok bool) error {
	v.loadCh = nil
	if !ok {
		v.loadErr = fmt.Errorf("%w: loader closed without a result", ErrModelLoad)
		return v.loadErr
	}
	if res.Err != nil {
		v.log.Error("model load failed", zap.String("path", res.Path), zap.Error(res.Err))
		v.loadErr = fmt.Errorf("%w: %w", ErrModelLoad, res.Err)
		return v.loadErr
	}
	if res.Model == nil {
		v.log.Error("model load returned no model", zap.String("path", res.Path))
		v.loadErr = fmt.Errorf("%w: loader returned no model", ErrModelLoad)
		return v.loadErr
	}
	v.attachModel(res)
	return nil
}

// attachModel adds the loaded mesh to the scene and frames the camera on it.
func (v *Viewer) attachModel(res loader.Result) {
	geom := scene.GeometryFromSTL(res.Model)
	if v.cfg.CenterModel {
		offset := geom.Center()
		v.log.Debug("model centered", zap.Any("offset", offset))
	}
	box := geom.ComputeBoundingBox()

	name := strings.TrimSuffix(filepath.Base(res.Path), filepath.Ext(res.Path))
	v.mesh = scene.NewMesh(name, geom, v.cfg.Material)
	v.scene.Add(v.mesh)

	z := v.camera.FrameBounds(box, v.cfg.DistanceFactor)
	v.camera.LookAt(v.controls.Target)
	v.controls.SaveState()
	v.ready = true

	size := box.Size()
	v.log.Info("model framed",
		zap.String("name", name),
		zap.Int("triangles", geom.TriangleCount()),
		zap.Float32("size_x", size.X),
		zap.Float32("size_y", size.Y),
		zap.Float32("size_z", size.Z),
		zap.Float32("camera_z", z),
	)
}

// Frame advances control damping and renders one frame.
func (v *Viewer) Frame() error {
	if v.closed {
		return ErrClosed
	}
	if !v.ready {
		return ErrNotReady
	}

	v.controls.Update()
	if err := v.renderer.Render(v.scene, v.camera); err != nil {
		return fmt.Errorf("render: %w", err)
	}
	v.surface.Present()
	v.frames++

	v.fpsFrames++
	if v.fpsStarted.IsZero() {
		v.fpsStarted = time.Now()
	} else if elapsed := time.Since(v.fpsStarted); elapsed >= time.Second {
		v.log.Debug("fps", zap.Float64("fps", float64(v.fpsFrames)/elapsed.Seconds()))
		v.fpsFrames = 0
		v.fpsStarted = time.Now()
	}
	return nil
}

// Run drives the render loop until ctx is cancelled, Stop is called or the
// surface reports quit. Nothing is rendered until the model has loaded; a
// failed load ends Run with an error wrapping ErrModelLoad. Run returns nil
// after Stop or quit and ctx.Err() after cancellation.
func (v *Viewer) Run(ctx context.Context) error {
	if v.closed {
		return ErrClosed
	}
	if v.loadErr != nil {
		return v.loadErr
	}
	if !v.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer v.running.Store(false)

	var pace <-chan time.Time
	if v.cfg.FPSLimit > 0 {
		ticker := time.NewTicker(time.Second / time.Duration(v.cfg.FPSLimit))
		defer ticker.Stop()
		pace = ticker.C
	}

	v.log.Info("render loop started")
	defer v.log.Info("render loop stopped", zap.Uint64("frames", v.frames))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-v.stop:
			return nil
		default:
		}

		v.events.Reset()
		v.surface.PollEvents(v.events)
		if quit := v.handleEvents(); quit {
			return nil
		}

		if !v.ready {
			if err := v.waitModel(ctx); err != nil {
				return err
			}
			continue
		}

		if err := v.Frame(); err != nil {
			return err
		}

		if pace != nil {
			select {
			case <-pace:
			case <-ctx.Done():
				return ctx.Err()
			case <-v.stop:
				return nil
			}
		}
	}
}

// waitModel waits up to one idle period for the load result so input keeps
// being pumped while the model loads. Cancellation is picked up by the
// caller's next iteration.
func (v *Viewer) waitModel(ctx context.Context) error {
	timer := time.NewTimer(idlePoll)
	defer timer.Stop()

	select {
	case res, ok := <-v.loadCh:
		return v.handleLoad(res, ok)
	case <-timer.C:
	case <-ctx.Done():
	case <-v.stop:
	}
	return nil
}

// handleEvents dispatches this frame's input and reports whether to quit.
func (v *Viewer) handleEvents() bool {
	if v.events.Quit() {
		v.log.Info("quit requested")
		return true
	}

	for _, e := range v.events.Events() {
		switch e.Type {
		case input.EventWindowResize:
			v.Resize(e.Width, e.Height)
		case input.EventKeyDown:
			if v.handleKey(e.Key) {
				return true
			}
		default:
			v.controls.HandleEvent(e)
		}
	}
	return false
}

func (v *Viewer) handleKey(key input.Key) (quit bool) {
	switch key {
	case input.KeyEscape:
		v.log.Info("escape pressed")
		return true
	case input.KeyR:
		v.controls.Reset()
	case input.KeyB:
		if t, ok := v.renderer.(BoundsToggler); ok {
			t.SetShowBounds(!t.ShowBounds())
			v.log.Debug("bounds overlay toggled", zap.Bool("show", t.ShowBounds()))
		}
	case input.KeyF12:
		if _, err := v.Screenshot(); err != nil {
			v.log.Warn("screenshot failed", zap.Error(err))
		}
	}
	return false
}

// Screenshot saves the last rendered frame as PNG and returns its path.
func (v *Viewer) Screenshot() (string, error) {
	snap, ok := v.renderer.(Snapshotter)
	if !ok {
		return "", errors.New("renderer cannot read back frames")
	}
	img, err := snap.Snapshot()
	if err != nil {
		return "", err
	}
	path, err := v.screenshots.CaptureFromImage(img)
	if err != nil {
		return "", err
	}
	v.log.Info("screenshot saved", zap.String("path", path))
	return path, nil
}

// Stop ends the render loop. It is safe to call from any goroutine and more
// than once.
func (v *Viewer) Stop() {
	v.stopOnce.Do(func() {
		close(v.stop)
	})
}

// Close stops the loop and abandons a pending load. The caller closes the
// surface and renderer it supplied.
func (v *Viewer) Close() {
	if v.closed {
		return
	}
	v.Stop()
	v.cancelLoad()
	v.closed = true
	v.log.Debug("viewer closed")
}
