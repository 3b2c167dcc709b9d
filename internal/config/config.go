// Package config handles viewer configuration loading and management.
package config

import (
	"errors"
	"fmt"
)

// Config holds all viewer settings.
type Config struct {
	Window   WindowConfig   `yaml:"window"`
	Model    ModelConfig    `yaml:"model"`
	Camera   CameraConfig   `yaml:"camera"`
	Controls ControlsConfig `yaml:"controls"`
	Render   RenderConfig   `yaml:"render"`
	Debug    DebugConfig    `yaml:"debug"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// WindowConfig holds display settings.
type WindowConfig struct {
	Title      string `yaml:"title"`
	Width      int    `yaml:"width"`
	Height     int    `yaml:"height"`
	Fullscreen bool   `yaml:"fullscreen"`
	VSync      bool   `yaml:"vsync"`
	FPSLimit   int    `yaml:"fps_limit"` // 0 = unlimited
}

// ModelConfig selects the mesh and its surface.
type ModelConfig struct {
	Path      string   `yaml:"path"`
	Color     HexColor `yaml:"color"`
	Specular  HexColor `yaml:"specular"`
	Shininess float32  `yaml:"shininess"`
	// Center moves the mesh so its bounding box is centered on the origin.
	Center bool `yaml:"center"`
}

// CameraConfig holds projection settings.
type CameraConfig struct {
	FOV            float32 `yaml:"fov"` // vertical, degrees
	Near           float32 `yaml:"near"`
	Far            float32 `yaml:"far"`
	DistanceFactor float32 `yaml:"distance_factor"`
}

// ControlsConfig holds orbit control settings. Angles are in degrees.
type ControlsConfig struct {
	EnableDamping      bool    `yaml:"enable_damping"`
	DampingFactor      float32 `yaml:"damping_factor"`
	MinDistance        float32 `yaml:"min_distance"`
	MaxDistance        float32 `yaml:"max_distance"`
	MinPolarAngle      float32 `yaml:"min_polar_angle"`
	MaxPolarAngle      float32 `yaml:"max_polar_angle"`
	ScreenSpacePanning bool    `yaml:"screen_space_panning"`
	AutoRotate         bool    `yaml:"auto_rotate"`
	AutoRotateSpeed    float32 `yaml:"auto_rotate_speed"`
	RotateSpeed        float32 `yaml:"rotate_speed"`
	ZoomSpeed          float32 `yaml:"zoom_speed"`
	PanSpeed           float32 `yaml:"pan_speed"`
}

// RenderConfig holds renderer settings.
type RenderConfig struct {
	Background HexColor `yaml:"background"`
	ShowBounds bool     `yaml:"show_bounds"`
	// Samples is the supersampling factor of the software renderer.
	Samples int `yaml:"samples"`
}

// DebugConfig holds developer tooling settings.
type DebugConfig struct {
	ScreenshotDir string `yaml:"screenshot_dir"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Window: WindowConfig{
			Title:      "STL Viewer",
			Width:      1280,
			Height:     720,
			Fullscreen: false,
			VSync:      true,
			FPSLimit:   0,
		},
		Model: ModelConfig{
			Path:      "assets/H-1-R.Final.stl",
			Color:     0xff5533,
			Specular:  0x646464,
			Shininess: 100,
			Center:    false,
		},
		Camera: CameraConfig{
			FOV:            70,
			Near:           1,
			Far:            1000,
			DistanceFactor: 1.5,
		},
		Controls: ControlsConfig{
			EnableDamping:      true,
			DampingFactor:      0.05,
			MinDistance:        10,
			MaxDistance:        400,
			MinPolarAngle:      0,
			MaxPolarAngle:      180,
			ScreenSpacePanning: true,
			AutoRotate:         false,
			AutoRotateSpeed:    0.75,
			RotateSpeed:        1,
			ZoomSpeed:          1,
			PanSpeed:           1,
		},
		Render: RenderConfig{
			Background: 0x1a1a26,
			ShowBounds: false,
			Samples:    2,
		},
		Debug: DebugConfig{
			ScreenshotDir: "screenshots",
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}

// ErrInvalid is returned by Validate.
var ErrInvalid = errors.New("invalid config")

// Validate checks value ranges that would otherwise break rendering.
func (c *Config) Validate() error {
	switch {
	case c.Window.Width <= 0 || c.Window.Height <= 0:
		return fmt.Errorf("%w: window size %dx%d", ErrInvalid, c.Window.Width, c.Window.Height)
	case c.Window.FPSLimit < 0:
		return fmt.Errorf("%w: negative fps_limit", ErrInvalid)
	case c.Model.Path == "":
		return fmt.Errorf("%w: model.path is empty", ErrInvalid)
	case c.Camera.FOV <= 0 || c.Camera.FOV >= 180:
		return fmt.Errorf("%w: camera.fov %.1f out of (0, 180)", ErrInvalid, c.Camera.FOV)
	case c.Camera.Near <= 0 || c.Camera.Far <= c.Camera.Near:
		return fmt.Errorf("%w: camera near/far %.2f/%.2f", ErrInvalid, c.Camera.Near, c.Camera.Far)
	case c.Camera.DistanceFactor <= 0:
		return fmt.Errorf("%w: camera.distance_factor must be positive", ErrInvalid)
	case c.Controls.DampingFactor <= 0 || c.Controls.DampingFactor > 1:
		return fmt.Errorf("%w: controls.damping_factor %.3f out of (0, 1]", ErrInvalid, c.Controls.DampingFactor)
	case c.Controls.MinDistance < 0 || c.Controls.MaxDistance < c.Controls.MinDistance:
		return fmt.Errorf("%w: controls distance range %.1f..%.1f", ErrInvalid, c.Controls.MinDistance, c.Controls.MaxDistance)
	case c.Controls.MinPolarAngle < 0 || c.Controls.MaxPolarAngle > 180 || c.Controls.MaxPolarAngle < c.Controls.MinPolarAngle:
		return fmt.Errorf("%w: controls polar range %.1f..%.1f", ErrInvalid, c.Controls.MinPolarAngle, c.Controls.MaxPolarAngle)
	case c.Render.Samples < 1:
		return fmt.Errorf("%w: render.samples must be at least 1", ErrInvalid)
	}
	return nil
}
