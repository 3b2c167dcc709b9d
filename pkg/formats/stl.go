package formats

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/chewxy/math32"
	"gonum.org/v1/gonum/spatial/r3"

	vmath "github.com/Faultbox/stlviewer/pkg/math"
)

// STL format errors.
var (
	ErrTruncatedSTL = errors.New("truncated STL data")
	ErrEmptySTL     = errors.New("STL contains no triangles")
	ErrInvalidSTL   = errors.New("invalid STL data")
)

const (
	stlHeaderSize   = 80
	stlRecordSize   = 50
	stlMaxTriangles = 50_000_000
	// normalTolerance is how far a stored normal may drift from the one
	// implied by the winding before it gets replaced.
	normalTolerance = 5e-2
)

// STLTriangle is a single facet.
type STLTriangle struct {
	Normal   vmath.Vec3
	Vertices [3]vmath.Vec3
}

// STL represents a parsed stereolithography mesh.
type STL struct {
	// Name is the solid name for ASCII files or the trimmed header for binary ones.
	Name      string
	Binary    bool
	Triangles []STLTriangle

	// FixedNormals counts facets whose stored normal was missing or
	// inconsistent with the vertex winding and was recomputed.
	FixedNormals int
}

// Bounds returns the axis-aligned bounding box of every vertex.
func (s *STL) Bounds() vmath.Box3 {
	box := vmath.EmptyBox()
	for _, t := range s.Triangles {
		for _, v := range t.Vertices {
			box = box.ExpandByPoint(v)
		}
	}
	return box
}

// ParseSTL parses binary or ASCII STL data.
func ParseSTL(data []byte) (*STL, error) {
	if isASCIISTL(data) {
		return parseASCIISTL(data)
	}
	return parseBinarySTL(data)
}

// ParseSTLFile parses an STL file from disk.
func ParseSTLFile(path string) (*STL, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading STL file: %w", err)
	}
	return ParseSTL(data)
}

// isASCIISTL reports whether data looks like an ASCII STL. Some binary
// exporters start their header with "solid" too, so the size check and a
// "facet" keyword are both required.
func isASCIISTL(data []byte) bool {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if !bytes.HasPrefix(trimmed, []byte("solid")) {
		return false
	}
	if len(data) >= stlHeaderSize+4 {
		count := binary.LittleEndian.Uint32(data[stlHeaderSize:])
		if uint64(len(data)) == stlHeaderSize+4+uint64(count)*stlRecordSize {
			return false
		}
	}
	probe := trimmed
	if len(probe) > 1024 {
		probe = probe[:1024]
	}
	return bytes.Contains(probe, []byte("facet")) || bytes.Contains(probe, []byte("endsolid"))
}

func parseBinarySTL(data []byte) (*STL, error) {
	if len(data) < stlHeaderSize+4 {
		return nil, fmt.Errorf("%w: header", ErrTruncatedSTL)
	}

	count := binary.LittleEndian.Uint32(data[stlHeaderSize:])
	if count == 0 {
		return nil, ErrEmptySTL
	}
	if count > stlMaxTriangles {
		return nil, fmt.Errorf("%w: triangle count %d exceeds limit", ErrInvalidSTL, count)
	}

	body := data[stlHeaderSize+4:]
	need := uint64(count) * stlRecordSize
	if uint64(len(body)) < need {
		return nil, fmt.Errorf("%w: %d/%d triangles present", ErrTruncatedSTL, len(body)/stlRecordSize, count)
	}

	s := &STL{
		Name:      strings.TrimRight(string(bytes.TrimRight(data[:stlHeaderSize], "\x00")), " "),
		Binary:    true,
		Triangles: make([]STLTriangle, 0, count),
	}

	for i := 0; i < int(count); i++ {
		rec := body[i*stlRecordSize:]
		tri := STLTriangle{
			Normal: get3F32(rec),
			Vertices: [3]vmath.Vec3{
				get3F32(rec[12:]),
				get3F32(rec[24:]),
				get3F32(rec[36:]),
			},
		}
		if err := s.add(tri); err != nil {
			return nil, fmt.Errorf("triangle %d/%d: %w", i+1, count, err)
		}
	}

	return s, nil
}

func parseASCIISTL(data []byte) (*STL, error) {
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 64*1024), 1024*1024)

	s := &STL{}
	var (
		tri     STLTriangle
		nverts  int
		inFacet bool
		line    int
	)

	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "solid":
			s.Name = strings.Join(fields[1:], " ")
		case "facet":
			if inFacet {
				return nil, fmt.Errorf("%w: line %d: nested facet", ErrInvalidSTL, line)
			}
			inFacet = true
			nverts = 0
			tri = STLTriangle{}
			if len(fields) == 5 && fields[1] == "normal" {
				n, err := parseVec3(fields[2:])
				if err != nil {
					return nil, fmt.Errorf("%w: line %d: %v", ErrInvalidSTL, line, err)
				}
				tri.Normal = n
			}
		case "vertex":
			if !inFacet {
				return nil, fmt.Errorf("%w: line %d: vertex outside facet", ErrInvalidSTL, line)
			}
			if nverts == 3 {
				return nil, fmt.Errorf("%w: line %d: more than 3 vertices in facet", ErrInvalidSTL, line)
			}
			if len(fields) != 4 {
				return nil, fmt.Errorf("%w: line %d: vertex needs 3 coordinates", ErrInvalidSTL, line)
			}
			v, err := parseVec3(fields[1:])
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %v", ErrInvalidSTL, line, err)
			}
			tri.Vertices[nverts] = v
			nverts++
		case "endfacet":
			if !inFacet || nverts != 3 {
				return nil, fmt.Errorf("%w: line %d: facet has %d vertices", ErrInvalidSTL, line, nverts)
			}
			inFacet = false
			if err := s.add(tri); err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
		case "outer", "endloop", "endsolid":
		default:
			return nil, fmt.Errorf("%w: line %d: unexpected keyword %q", ErrInvalidSTL, line, fields[0])
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSTL, err)
	}
	if inFacet {
		return nil, fmt.Errorf("%w: unterminated facet", ErrTruncatedSTL)
	}
	if len(s.Triangles) == 0 {
		return nil, ErrEmptySTL
	}
	return s, nil
}

// add validates a facet, fixes its normal if needed and appends it.
func (s *STL) add(tri STLTriangle) error {
	for _, v := range tri.Vertices {
		if bad3F32(v) {
			return fmt.Errorf("%w: inf/NaN vertex", ErrInvalidSTL)
		}
	}

	calc := normalFromVertices(tri.Vertices)
	if bad3F32(tri.Normal) || !normalMatches(tri.Normal, calc) {
		tri.Normal = calc
		s.FixedNormals++
	}

	s.Triangles = append(s.Triangles, tri)
	return nil
}

// WriteBinarySTL writes s in binary STL form. Normals are written as stored.
func WriteBinarySTL(w io.Writer, s *STL) error {
	if len(s.Triangles) == 0 {
		return ErrEmptySTL
	}

	var header [stlHeaderSize + 4]byte
	copy(header[:stlHeaderSize], s.Name)
	binary.LittleEndian.PutUint32(header[stlHeaderSize:], uint32(len(s.Triangles)))
	if _, err := w.Write(header[:]); err != nil {
		return err
	}

	var rec [stlRecordSize]byte
	for _, t := range s.Triangles {
		put3F32(rec[:], t.Normal)
		put3F32(rec[12:], t.Vertices[0])
		put3F32(rec[24:], t.Vertices[1])
		put3F32(rec[36:], t.Vertices[2])
		binary.LittleEndian.PutUint16(rec[48:], 0)
		if _, err := w.Write(rec[:]); err != nil {
			return err
		}
	}
	return nil
}

func parseVec3(fields []string) (vmath.Vec3, error) {
	var f [3]float32
	for i := 0; i < 3; i++ {
		v, err := strconv.ParseFloat(fields[i], 32)
		if err != nil {
			return vmath.Vec3{}, fmt.Errorf("bad number %q", fields[i])
		}
		f[i] = float32(v)
	}
	return vmath.Vec3{X: f[0], Y: f[1], Z: f[2]}, nil
}

func get3F32(b []byte) vmath.Vec3 {
	_ = b[11] // early bounds check
	return vmath.Vec3{
		X: math.Float32frombits(binary.LittleEndian.Uint32(b)),
		Y: math.Float32frombits(binary.LittleEndian.Uint32(b[4:])),
		Z: math.Float32frombits(binary.LittleEndian.Uint32(b[8:])),
	}
}

func put3F32(b []byte, v vmath.Vec3) {
	_ = b[11] // early bounds check
	binary.LittleEndian.PutUint32(b, math.Float32bits(v.X))
	binary.LittleEndian.PutUint32(b[4:], math.Float32bits(v.Y))
	binary.LittleEndian.PutUint32(b[8:], math.Float32bits(v.Z))
}

func bad3F32(v vmath.Vec3) bool {
	return math32.IsNaN(v.X) || math32.IsInf(v.X, 0) ||
		math32.IsNaN(v.Y) || math32.IsInf(v.Y, 0) ||
		math32.IsNaN(v.Z) || math32.IsInf(v.Z, 0)
}

func toR3(v vmath.Vec3) r3.Vec {
	return r3.Vec{X: float64(v.X), Y: float64(v.Y), Z: float64(v.Z)}
}

// normalFromVertices returns the counter-clockwise facet normal, or zero for
// a degenerate facet.
func normalFromVertices(v [3]vmath.Vec3) vmath.Vec3 {
	v1, v2, v3 := toR3(v[0]), toR3(v[1]), toR3(v[2])
	n := r3.Cross(r3.Sub(v2, v1), r3.Sub(v3, v1))
	if r3.Norm(n) == 0 {
		return vmath.Vec3{}
	}
	n = r3.Unit(n)
	return vmath.Vec3{X: float32(n.X), Y: float32(n.Y), Z: float32(n.Z)}
}

func normalMatches(stored, calc vmath.Vec3) bool {
	if stored == (vmath.Vec3{}) {
		return false
	}
	// Degenerate facets keep whatever the file says.
	if calc == (vmath.Vec3{}) {
		return true
	}
	return math32.Abs(stored.X-calc.X) <= normalTolerance &&
		math32.Abs(stored.Y-calc.Y) <= normalTolerance &&
		math32.Abs(stored.Z-calc.Z) <= normalTolerance
}
