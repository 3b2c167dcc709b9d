package scene

import (
	"github.com/Faultbox/stlviewer/pkg/formats"
	"github.com/Faultbox/stlviewer/pkg/math"
)

// Geometry is a non-indexed triangle list.
// Positions and Normals hold x, y, z per vertex, three vertices per triangle.
type Geometry struct {
	Positions []float32
	Normals   []float32

	bounds      math.Box3
	boundsValid bool
	version     uint64
}

// GeometryFromSTL flattens STL facets into a triangle list using the facet
// normal for each of its vertices.
func GeometryFromSTL(s *formats.STL) *Geometry {
	n := len(s.Triangles) * 9
	g := &Geometry{
		Positions: make([]float32, 0, n),
		Normals:   make([]float32, 0, n),
	}
	for _, t := range s.Triangles {
		for _, v := range t.Vertices {
			g.Positions = append(g.Positions, v.X, v.Y, v.Z)
			g.Normals = append(g.Normals, t.Normal.X, t.Normal.Y, t.Normal.Z)
		}
	}
	return g
}

// VertexCount returns the number of vertices.
func (g *Geometry) VertexCount() int {
	return len(g.Positions) / 3
}

// TriangleCount returns the number of triangles.
func (g *Geometry) TriangleCount() int {
	return g.VertexCount() / 3
}

// Version changes whenever the vertex data is modified through Geometry
// methods. Renderers use it to detect stale GPU buffers.
func (g *Geometry) Version() uint64 {
	return g.version
}

// Vertex returns vertex i.
func (g *Geometry) Vertex(i int) math.Vec3 {
	return math.Vec3{X: g.Positions[i*3], Y: g.Positions[i*3+1], Z: g.Positions[i*3+2]}
}

// Normal returns the normal of vertex i.
func (g *Geometry) Normal(i int) math.Vec3 {
	return math.Vec3{X: g.Normals[i*3], Y: g.Normals[i*3+1], Z: g.Normals[i*3+2]}
}

// ComputeBoundingBox recomputes and caches the bounding box.
func (g *Geometry) ComputeBoundingBox() math.Box3 {
	box := math.EmptyBox()
	for i := 0; i < g.VertexCount(); i++ {
		box = box.ExpandByPoint(g.Vertex(i))
	}
	g.bounds = box
	g.boundsValid = true
	return box
}

// BoundingBox returns the cached bounding box, computing it on first use.
func (g *Geometry) BoundingBox() math.Box3 {
	if !g.boundsValid {
		return g.ComputeBoundingBox()
	}
	return g.bounds
}

// Translate moves every vertex by offset.
func (g *Geometry) Translate(offset math.Vec3) {
	for i := 0; i+2 < len(g.Positions); i += 3 {
		g.Positions[i] += offset.X
		g.Positions[i+1] += offset.Y
		g.Positions[i+2] += offset.Z
	}
	if g.boundsValid {
		g.bounds = g.bounds.Translate(offset)
	}
	g.version++
}

// Center translates the geometry so its bounding box is centered on the
// origin and returns the applied offset.
func (g *Geometry) Center() math.Vec3 {
	offset := g.BoundingBox().Center().Scale(-1)
	if offset != (math.Vec3{}) {
		g.Translate(offset)
	}
	return offset
}

// Material describes Phong surface shading.
type Material struct {
	Color     Color
	Specular  Color
	Shininess float32
}

// PhongMaterial creates a material from 0xRRGGBB colors.
func PhongMaterial(color, specular uint32, shininess float32) Material {
	return Material{
		Color:     Hex(color),
		Specular:  Hex(specular),
		Shininess: shininess,
	}
}

// Mesh is a renderable geometry with a material.
type Mesh struct {
	Name     string
	Geometry *Geometry
	Material Material
	Visible  bool
}

// NewMesh creates a visible mesh.
func NewMesh(name string, g *Geometry, m Material) *Mesh {
	return &Mesh{
		Name:     name,
		Geometry: g,
		Material: m,
		Visible:  true,
	}
}
