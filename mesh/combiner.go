package mesh

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const (
	// MaxVertices is the vertex cap of a combined mesh; indices are uint16.
	MaxVertices = 65535
	// MaxLanes caps the number of shape copies and therefore the state texture width.
	MaxLanes = 4096
	// BoundsExtent is the half-size of the static bounding box given to every combined mesh.
	BoundsExtent = 1000
)

// ErrNoLanes is returned when not even one copy of the first shape fits under MaxVertices.
var ErrNoLanes = errors.New("mesh: shape list yields no lanes")

// Vertex matches the vertex input of the particle surface shader.
type Vertex struct {
	Position [3]float32 `layout:"vertex" format:"float3" location:"0"`
	Normal   [3]float32 `layout:"vertex" format:"float3" location:"1"`
	Tangent  [4]float32 `layout:"vertex" format:"float4" location:"2"`
	UV0      [2]float32 `layout:"vertex" format:"float2" location:"3"`
	UV1      [2]float32 `layout:"vertex" format:"float2" location:"4"`
}

type Bounds struct {
	Min mgl32.Vec3
	Max mgl32.Vec3
}

// Combined is the packed mesh: copyCount lanes, each a copy of one input shape
// tagged with its lane coordinate in UV1.x.
type Combined struct {
	id        uuid.UUID
	vertices  []Vertex
	indices   []uint16
	copyCount int
	bounds    Bounds
	released  bool
}

// ID changes every time a mesh is built, so consumers can tell a rebuild apart from
// the mesh they already uploaded.
func (m *Combined) ID() uuid.UUID          { return m.id }
func (m *Combined) Vertices() []Vertex     { return m.vertices }
func (m *Combined) Indices() []uint16      { return m.indices }
func (m *Combined) CopyCount() int         { return m.copyCount }
func (m *Combined) VertexCount() int       { return len(m.vertices) }
func (m *Combined) IndexCount() int        { return len(m.indices) }
func (m *Combined) Bounds() Bounds         { return m.bounds }
func (m *Combined) Released() bool         { return m.released }
func (m *Combined) LaneU(lane int) float32 { return LaneU(lane, m.copyCount) }

// Release drops the geometry. A released mesh must not be drawn.
func (m *Combined) Release() {
	m.vertices = nil
	m.indices = nil
	m.released = true
}

// LaneU is the horizontal state-texture coordinate of a lane.
func LaneU(lane, copyCount int) float32 {
	return (float32(lane) + 0.5) / float32(copyCount)
}

// usableShapes drops nil entries and falls back to the default quad.
func usableShapes(shapes []*Shape) []*Shape {
	out := make([]*Shape, 0, len(shapes))
	for _, s := range shapes {
		if s != nil {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		out = append(out, defaultQuad)
	}
	return out
}

// Packing returns how many lanes fit when cycling through shapes round-robin, and the
// resulting vertex and index totals.
func Packing(shapes []*Shape) (copyCount, vertexCount, indexCount int) {
	shapes = usableShapes(shapes)
	for copyCount < MaxLanes {
		s := shapes[copyCount%len(shapes)]
		if vertexCount+s.VertexCount() > MaxVertices {
			break
		}
		vertexCount += s.VertexCount()
		indexCount += s.IndexCount()
		copyCount++
	}
	return copyCount, vertexCount, indexCount
}

// Combine packs as many copies of shapes as the caps allow into a single mesh.
func Combine(shapes []*Shape) (*Combined, error) {
	shapes = usableShapes(shapes)
	copyCount, vcount, icount := Packing(shapes)
	if copyCount == 0 {
		return nil, errors.Wrapf(ErrNoLanes, "shape %q has %d vertices (cap %d)",
			shapes[0].Name(), shapes[0].VertexCount(), MaxVertices)
	}

	m := &Combined{
		id:        uuid.New(),
		vertices:  make([]Vertex, 0, vcount),
		indices:   make([]uint16, 0, icount),
		copyCount: copyCount,
		bounds: Bounds{
			Min: mgl32.Vec3{-BoundsExtent, -BoundsExtent, -BoundsExtent},
			Max: mgl32.Vec3{BoundsExtent, BoundsExtent, BoundsExtent},
		},
	}

	for lane := 0; lane < copyCount; lane++ {
		s := shapes[lane%len(shapes)]
		base := uint16(len(m.vertices))
		uv1 := [2]float32{LaneU(lane, copyCount), 0}
		for i := range s.positions {
			m.vertices = append(m.vertices, Vertex{
				Position: s.positions[i],
				Normal:   s.normals[i],
				Tangent:  s.tangents[i],
				UV0:      s.uv0[i],
				UV1:      uv1,
			})
		}
		for _, idx := range s.indices {
			m.indices = append(m.indices, base+idx)
		}
	}
	return m, nil
}

// Combiner owns the combined mesh of one simulation.
type Combiner struct {
	mesh *Combined
}

// Build constructs the mesh if there is none yet.
func (c *Combiner) Build(shapes []*Shape) error {
	if c.mesh != nil {
		return nil
	}
	m, err := Combine(shapes)
	if err != nil {
		return err
	}
	c.mesh = m
	return nil
}

// Rebuild releases the current mesh and builds a new one from shapes.
func (c *Combiner) Rebuild(shapes []*Shape) error {
	c.Release()
	return c.Build(shapes)
}

// Release disposes of the mesh; CopyCount reports 0 afterwards.
func (c *Combiner) Release() {
	if c.mesh != nil {
		c.mesh.Release()
		c.mesh = nil
	}
}

func (c *Combiner) Mesh() *Combined { return c.mesh }

func (c *Combiner) CopyCount() int {
	if c.mesh == nil {
		return 0
	}
	return c.mesh.copyCount
}
