package shader

import (
	"embed"
	"fmt"
)

//go:embed glsl/*.vert glsl/*.frag
var sources embed.FS

// MaxPointLights matches MAX_POINT_LIGHTS in mesh.frag.
const MaxPointLights = 4

// Source returns the vertex and fragment sources of a named program.
func Source(name string) (vertex, fragment string, err error) {
	v, err := sources.ReadFile("glsl/" + name + ".vert")
	if err != nil {
		return "", "", fmt.Errorf("shader %q: %w", name, err)
	}
	f, err := sources.ReadFile("glsl/" + name + ".frag")
	if err != nil {
		return "", "", fmt.Errorf("shader %q: %w", name, err)
	}
	return string(v), string(f), nil
}

// Load compiles a named embedded program.
func Load(name string) (*Program, error) {
	v, f, err := Source(name)
	if err != nil {
		return nil, err
	}
	p, err := NewProgram(v, f)
	if err != nil {
		return nil, fmt.Errorf("shader %q: %w", name, err)
	}
	return p, nil
}
