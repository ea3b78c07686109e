package mesh

import (
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
)

// Shape is an immutable indexed triangle mesh used as the template for one lane.
type Shape struct {
	name      string
	positions []mgl32.Vec3
	normals   []mgl32.Vec3
	tangents  []mgl32.Vec4
	uv0       []mgl32.Vec2
	indices   []uint16
}

// NewShape copies the given attribute streams into a new shape. Normals, tangents
// and uvs may be nil, in which case they are zero-filled.
func NewShape(name string, positions, normals []mgl32.Vec3, tangents []mgl32.Vec4, uv0 []mgl32.Vec2, indices []uint16) (*Shape, error) {
	n := len(positions)
	if n == 0 {
		return nil, errors.Errorf("shape %q: no vertices", name)
	}
	if len(indices)%3 != 0 {
		return nil, errors.Errorf("shape %q: index count %d is not a multiple of 3", name, len(indices))
	}
	for _, idx := range indices {
		if int(idx) >= n {
			return nil, errors.Errorf("shape %q: index %d out of range (%d vertices)", name, idx, n)
		}
	}
	if normals != nil && len(normals) != n {
		return nil, errors.Errorf("shape %q: %d normals for %d vertices", name, len(normals), n)
	}
	if tangents != nil && len(tangents) != n {
		return nil, errors.Errorf("shape %q: %d tangents for %d vertices", name, len(tangents), n)
	}
	if uv0 != nil && len(uv0) != n {
		return nil, errors.Errorf("shape %q: %d uvs for %d vertices", name, len(uv0), n)
	}

	s := &Shape{
		name:      name,
		positions: append([]mgl32.Vec3(nil), positions...),
		normals:   make([]mgl32.Vec3, n),
		tangents:  make([]mgl32.Vec4, n),
		uv0:       make([]mgl32.Vec2, n),
		indices:   append([]uint16(nil), indices...),
	}
	copy(s.normals, normals)
	copy(s.tangents, tangents)
	copy(s.uv0, uv0)
	return s, nil
}

func (s *Shape) Name() string              { return s.name }
func (s *Shape) VertexCount() int          { return len(s.positions) }
func (s *Shape) IndexCount() int           { return len(s.indices) }
func (s *Shape) Indices() []uint16         { return s.indices }
func (s *Shape) Position(i int) mgl32.Vec3 { return s.positions[i] }

// mustShape is for the built-in shapes whose data is known to be valid.
func mustShape(s *Shape, err error) *Shape {
	if err != nil {
		panic(err)
	}
	return s
}

var (
	defaultQuad = mustShape(buildQuad())
	unitCube    = mustShape(buildCube())
	tetrahedron = mustShape(buildTetrahedron())
)

// DefaultQuad returns the double-sided unit quad used when no shapes are configured.
func DefaultQuad() *Shape { return defaultQuad }

// Cube returns a unit cube with flat-shaded faces.
func Cube() *Shape { return unitCube }

// Tetrahedron returns a small flat-shaded tetrahedron.
func Tetrahedron() *Shape { return tetrahedron }

// ShapeByName resolves a built-in shape ("quad", "cube", "tetrahedron").
func ShapeByName(name string) (*Shape, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "quad", "":
		return defaultQuad, nil
	case "cube", "box":
		return unitCube, nil
	case "tetrahedron", "tetra":
		return tetrahedron, nil
	default:
		return nil, errors.Errorf("unknown shape %q", name)
	}
}

func buildQuad() (*Shape, error) {
	// Front face looks down +Z, back face is the same plane with reversed winding.
	positions := []mgl32.Vec3{
		{-0.5, -0.5, 0}, {0.5, -0.5, 0}, {-0.5, 0.5, 0}, {0.5, 0.5, 0},
		{-0.5, -0.5, 0}, {0.5, -0.5, 0}, {-0.5, 0.5, 0}, {0.5, 0.5, 0},
	}
	normals := []mgl32.Vec3{
		{0, 0, 1}, {0, 0, 1}, {0, 0, 1}, {0, 0, 1},
		{0, 0, -1}, {0, 0, -1}, {0, 0, -1}, {0, 0, -1},
	}
	tangents := []mgl32.Vec4{
		{1, 0, 0, 1}, {1, 0, 0, 1}, {1, 0, 0, 1}, {1, 0, 0, 1},
		{-1, 0, 0, 1}, {-1, 0, 0, 1}, {-1, 0, 0, 1}, {-1, 0, 0, 1},
	}
	uvs := []mgl32.Vec2{
		{0, 0}, {1, 0}, {0, 1}, {1, 1},
		{1, 0}, {0, 0}, {1, 1}, {0, 1},
	}
	indices := []uint16{
		0, 1, 3, 0, 3, 2,
		4, 7, 5, 4, 6, 7,
	}
	return NewShape("quad", positions, normals, tangents, uvs, indices)
}

func buildCube() (*Shape, error) {
	faces := []struct{ n, t mgl32.Vec3 }{
		{mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 0, -1}},
		{mgl32.Vec3{-1, 0, 0}, mgl32.Vec3{0, 0, 1}},
		{mgl32.Vec3{0, 1, 0}, mgl32.Vec3{1, 0, 0}},
		{mgl32.Vec3{0, -1, 0}, mgl32.Vec3{1, 0, 0}},
		{mgl32.Vec3{0, 0, 1}, mgl32.Vec3{1, 0, 0}},
		{mgl32.Vec3{0, 0, -1}, mgl32.Vec3{-1, 0, 0}},
	}

	var (
		positions []mgl32.Vec3
		normals   []mgl32.Vec3
		tangents  []mgl32.Vec4
		uvs       []mgl32.Vec2
		indices   []uint16
	)
	corners := [4][2]float32{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}}
	for _, f := range faces {
		b := f.n.Cross(f.t)
		base := uint16(len(positions))
		for _, c := range corners {
			p := f.n.Mul(0.5).Add(f.t.Mul(0.5 * c[0])).Add(b.Mul(0.5 * c[1]))
			positions = append(positions, p)
			normals = append(normals, f.n)
			tangents = append(tangents, f.t.Vec4(1))
			uvs = append(uvs, mgl32.Vec2{(c[0] + 1) * 0.5, (c[1] + 1) * 0.5})
		}
		indices = append(indices, base, base+1, base+2, base, base+2, base+3)
	}
	return NewShape("cube", positions, normals, tangents, uvs, indices)
}

func buildTetrahedron() (*Shape, error) {
	const s = 0.35
	a := mgl32.Vec3{s, s, s}
	b := mgl32.Vec3{s, -s, -s}
	c := mgl32.Vec3{-s, s, -s}
	d := mgl32.Vec3{-s, -s, s}
	faces := [4][3]mgl32.Vec3{{a, b, c}, {a, c, d}, {a, d, b}, {b, d, c}}

	var (
		positions []mgl32.Vec3
		normals   []mgl32.Vec3
		tangents  []mgl32.Vec4
		uvs       []mgl32.Vec2
		indices   []uint16
	)
	faceUV := [3]mgl32.Vec2{{0, 0}, {1, 0}, {0.5, 1}}
	for _, f := range faces {
		n := f[1].Sub(f[0]).Cross(f[2].Sub(f[0])).Normalize()
		t := f[1].Sub(f[0]).Normalize()
		base := uint16(len(positions))
		for i, p := range f {
			positions = append(positions, p)
			normals = append(normals, n)
			tangents = append(tangents, t.Vec4(1))
			uvs = append(uvs, faceUV[i])
		}
		indices = append(indices, base, base+1, base+2)
	}
	return NewShape("tetrahedron", positions, normals, tangents, uvs, indices)
}
