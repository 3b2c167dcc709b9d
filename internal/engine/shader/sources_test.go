package shader

import (
	"strings"
	"testing"
)

func TestSource(t *testing.T) {
	for _, name := range []string{"mesh", "line"} {
		t.Run(name, func(t *testing.T) {
			v, f, err := Source(name)
			if err != nil {
				t.Fatalf("Source(%q) failed: %v", name, err)
			}
			if !strings.HasPrefix(v, "#version 410 core") || !strings.HasPrefix(f, "#version 410 core") {
				t.Error("expected GLSL 410 core sources")
			}
		})
	}

	if _, _, err := Source("missing"); err == nil {
		t.Error("expected error for unknown program")
	}
}

func TestMeshShaderLightLimit(t *testing.T) {
	_, f, err := Source("mesh")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(f, "#define MAX_POINT_LIGHTS 4") {
		t.Error("MaxPointLights is out of sync with mesh.frag")
	}
}
