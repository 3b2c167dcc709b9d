// Package debug provides debug visualization utilities.
package debug

import "github.com/Faultbox/stlviewer/pkg/math"

// BBoxWireframeVertexCount is the number of vertices for a bbox wireframe (12 edges × 2).
const BBoxWireframeVertexCount = 24

// DefaultBBoxPadding is the padding applied to the bounds overlay so it does
// not z-fight with the mesh surface.
const DefaultBBoxPadding = 0.01

// GenerateBBoxWireframeVertices creates line vertices for a wireframe bounding box.
// Returns 24 vertices (12 edges × 2 endpoints), format: [x, y, z] per vertex.
// minX, minY, minZ, maxX, maxY, maxZ define the box corners in world space.
func GenerateBBoxWireframeVertices(minX, minY, minZ, maxX, maxY, maxZ float32) []float32 {
	return []float32{
		// Bottom face
		minX, minY, minZ, maxX, minY, minZ,
		maxX, minY, minZ, maxX, minY, maxZ,
		maxX, minY, maxZ, minX, minY, maxZ,
		minX, minY, maxZ, minX, minY, minZ,
		// Top face
		minX, maxY, minZ, maxX, maxY, minZ,
		maxX, maxY, minZ, maxX, maxY, maxZ,
		maxX, maxY, maxZ, minX, maxY, maxZ,
		minX, maxY, maxZ, minX, maxY, minZ,
		// Vertical edges
		minX, minY, minZ, minX, maxY, minZ,
		maxX, minY, minZ, maxX, maxY, minZ,
		maxX, minY, maxZ, maxX, maxY, maxZ,
		minX, minY, maxZ, minX, maxY, maxZ,
	}
}

// BoxWireframe creates wireframe vertices for box grown by padding relative
// to its largest dimension. An empty box yields nil.
func BoxWireframe(box math.Box3, padding float32) []float32 {
	if box.IsEmpty() {
		return nil
	}
	pad := box.Size().MaxComponent() * padding
	grow := math.Vec3{X: pad, Y: pad, Z: pad}
	lo := box.Min.Sub(grow)
	hi := box.Max.Add(grow)
	return GenerateBBoxWireframeVertices(lo.X, lo.Y, lo.Z, hi.X, hi.Y, hi.Z)
}

// BoxWireframeSegments returns the 12 edges of box as endpoint pairs.
func BoxWireframeSegments(box math.Box3, padding float32) [][2]math.Vec3 {
	v := BoxWireframe(box, padding)
	if v == nil {
		return nil
	}
	segs := make([][2]math.Vec3, 0, BBoxWireframeVertexCount/2)
	for i := 0; i+5 < len(v); i += 6 {
		segs = append(segs, [2]math.Vec3{
			{X: v[i], Y: v[i+1], Z: v[i+2]},
			{X: v[i+3], Y: v[i+4], Z: v[i+5]},
		})
	}
	return segs
}
