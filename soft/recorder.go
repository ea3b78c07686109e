package soft

import (
	"github.com/gekko3d/particles/device"
	"github.com/gekko3d/particles/kernel"
	"github.com/gekko3d/particles/mesh"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
)

// Recorder is a renderer that keeps the draw calls it receives.
type Recorder struct {
	Calls []device.DrawCall
}

func (r *Recorder) Draw(call device.DrawCall) error {
	if call.Mesh == nil || call.Mesh.Released() {
		return errors.Wrap(device.ErrReleased, "soft: draw without a mesh")
	}
	for _, t := range []device.Texture{call.Position, call.Rotation} {
		st, ok := t.(*Texture)
		if !ok {
			return errors.Wrapf(device.ErrForeignTexture, "soft: draw binding %T", t)
		}
		if st.released {
			return errors.Wrapf(device.ErrReleased, "soft: draw binding %s", st.label)
		}
	}
	r.Calls = append(r.Calls, call)
	return nil
}

func (r *Recorder) Reset() { r.Calls = r.Calls[:0] }

// Instance is one particle as the surface shader sees it.
type Instance struct {
	Lane     int
	Row      int
	Position mgl32.Vec3
	Life     float32
	Rotation mgl32.Quat
	Scale    float32
}

// Instances resolves every recorded call into its particles by sampling the bound
// textures at the mesh's lane coordinate plus the call's row offset.
func (r *Recorder) Instances() []Instance {
	var out []Instance
	for _, call := range r.Calls {
		pos := call.Position.(*Texture)
		rot := call.Rotation.(*Texture)
		n := call.Mesh.CopyCount()
		for lane := 0; lane < n; lane++ {
			uv := mgl32.Vec2{mesh.LaneU(lane, n), call.RowOffset}
			p := pos.Sample(uv)
			out = append(out, Instance{
				Lane:     lane,
				Row:      call.Row,
				Position: p.Vec3(),
				Life:     p[3],
				Rotation: kernel.QuatFromTexel(rot.Sample(uv)),
				Scale:    kernel.ParticleScale(uv, p[3], call.Surface.Scale, call.Surface.ScaleRandomness, call.Surface.Seed),
			})
		}
	}
	return out
}
