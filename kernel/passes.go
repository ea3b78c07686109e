// Package kernel holds the particle kernel program as pure per-texel functions.
//
// Every pass maps the texels of one (lane, row) cell plus the frame's Params to the
// cell's new texel. The same math is expressed in shaders/kernel.wgsl for the GPU
// device; the software device calls these functions directly.
package kernel

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

const (
	// LifeNew is the life of a freshly respawned particle.
	LifeNew = 0.5
	// LifeDead is the lower life bound; a particle at or below it respawns.
	LifeDead = -0.5
)

type Pass int

const (
	InitPosition Pass = iota
	InitVelocity
	InitRotation
	UpdatePosition
	UpdateVelocity
	UpdateRotation
)

// InitPasses and UpdatePasses list the passes in dispatch order.
var (
	InitPasses   = []Pass{InitPosition, InitVelocity, InitRotation}
	UpdatePasses = []Pass{UpdatePosition, UpdateVelocity, UpdateRotation}
)

// EntryPoint is the name of the pass's compute entry point in kernel.wgsl.
func (p Pass) EntryPoint() string {
	switch p {
	case InitPosition:
		return "init_position"
	case InitVelocity:
		return "init_velocity"
	case InitRotation:
		return "init_rotation"
	case UpdatePosition:
		return "update_position"
	case UpdateVelocity:
		return "update_velocity"
	case UpdateRotation:
		return "update_rotation"
	default:
		return fmt.Sprintf("pass_%d", int(p))
	}
}

func (p Pass) String() string { return p.EntryPoint() }

func (p Pass) Valid() bool { return p >= InitPosition && p <= UpdateRotation }

// Inputs are the source texels of one cell.
type Inputs struct {
	Position mgl32.Vec4
	Velocity mgl32.Vec4
	Rotation mgl32.Vec4
}

// Run evaluates pass for the cell at uv.
func Run(pass Pass, uv mgl32.Vec2, in Inputs, p *Params) mgl32.Vec4 {
	switch pass {
	case InitPosition:
		return InitialPosition(uv, p)
	case InitVelocity:
		return NewVelocity(uv, p).Vec4(0)
	case InitRotation:
		return quatTexel(RandomQuaternion(uv, p.Seed))
	case UpdatePosition:
		return StepPosition(uv, in.Position, in.Velocity, p)
	case UpdateVelocity:
		return StepVelocity(uv, in.Position, in.Velocity, p)
	case UpdateRotation:
		return StepRotation(uv, in.Velocity, in.Rotation, p)
	default:
		return mgl32.Vec4{}
	}
}

// NewPosition places a particle at a random point of the emitter box with full life.
// The elapsed time is part of the salt so successive respawns of a cell land apart.
func NewPosition(uv mgl32.Vec2, p *Params) mgl32.Vec4 {
	t := p.Time
	r := mgl32.Vec3{
		p.rand(uv, t+SaltPositionX) - 0.5,
		p.rand(uv, t+SaltPositionY) - 0.5,
		p.rand(uv, t+SaltPositionZ) - 0.5,
	}
	pos := mgl32.Vec3{
		r[0]*p.EmitterSize[0] + p.EmitterCenter[0],
		r[1]*p.EmitterSize[1] + p.EmitterCenter[1],
		r[2]*p.EmitterSize[2] + p.EmitterCenter[2],
	}
	return pos.Vec4(LifeNew)
}

// InitialPosition is NewPosition with a staggered life in (-0.5, 0.5] so the first
// population does not expire at once.
func InitialPosition(uv mgl32.Vec2, p *Params) mgl32.Vec4 {
	pos := NewPosition(uv, p)
	pos[3] -= p.rand(uv, SaltInitialLife)
	return pos
}

// NewVelocity is the configured direction, optionally spread towards a random
// direction, scaled by a speed between SpeedMin and SpeedMax.
func NewVelocity(uv mgl32.Vec2, p *Params) mgl32.Vec3 {
	dir := p.Direction
	if p.Spread > 0 {
		r := mgl32.Vec3{
			p.rand(uv, SaltSpreadX)*2 - 1,
			p.rand(uv, SaltSpreadY)*2 - 1,
			p.rand(uv, SaltSpreadZ)*2 - 1,
		}
		dir = lerp3(dir, r, p.Spread)
	}
	l := dir.Len()
	if l < 1e-6 {
		return mgl32.Vec3{}
	}
	speed := lerp(p.SpeedMax, p.SpeedMin, p.rand(uv, SaltSpeed))
	return dir.Mul(speed / l)
}

// StepPosition decays life and integrates velocity; a particle whose life drops to
// LifeDead is respawned in place.
func StepPosition(uv mgl32.Vec2, pos, vel mgl32.Vec4, p *Params) mgl32.Vec4 {
	dt := p.DeltaTime
	pos[3] -= lerp(p.DecayMin, p.DecayMax, p.rand(uv, SaltDecay)) * dt
	if pos[3] > LifeDead {
		pos[0] += vel[0] * dt
		pos[1] += vel[1] * dt
		pos[2] += vel[2] * dt
		return pos
	}
	return NewPosition(uv, p)
}

// StepVelocity reads the position written by StepPosition in the same frame. A cell
// that respawned this frame (life back at LifeNew) gets a new velocity; the others
// are integrated with drag, acceleration and curl-noise turbulence.
func StepVelocity(uv mgl32.Vec2, pos, vel mgl32.Vec4, p *Params) mgl32.Vec4 {
	if pos[3] >= LifeNew {
		return NewVelocity(uv, p).Vec4(0)
	}
	dt := p.DeltaTime
	v := vel.Vec3().Mul(p.Drag)
	v = v.Add(p.Acceleration.Mul(dt))
	if p.NoiseAmplitude != 0 {
		np := pos.Vec3().Add(p.NoiseOffset).Mul(p.NoiseFrequency)
		v = v.Add(Curl(np).Mul(p.NoiseAmplitude * dt))
	}
	return v.Vec4(0)
}

// SpinAngle is the rotation applied to a particle moving at speed this frame.
func SpinAngle(uv mgl32.Vec2, speed float32, p *Params) float32 {
	angle := speed * p.Spin
	if p.SpinMax > 0 && angle > p.SpinMax {
		angle = p.SpinMax
	}
	return angle * p.DeltaTime * (1 - p.rand(uv, SaltSpin)*p.SpinRandomness)
}

// StepRotation spins the particle around its own random axis by an angle that
// scales with its speed, and renormalizes to keep the quaternion from drifting.
func StepRotation(uv mgl32.Vec2, vel, rot mgl32.Vec4, p *Params) mgl32.Vec4 {
	axis := RandomAxis(uv, p.Seed)
	angle := SpinAngle(uv, vel.Vec3().Len(), p)
	dq := mgl32.QuatRotate(angle, axis)
	return quatTexel(dq.Mul(QuatFromTexel(rot)).Normalize())
}

// QuatFromTexel reads a rotation texel (x, y, z, w).
func QuatFromTexel(t mgl32.Vec4) mgl32.Quat {
	return mgl32.Quat{W: t[3], V: t.Vec3()}
}

func quatTexel(q mgl32.Quat) mgl32.Vec4 {
	return mgl32.Vec4{q.V[0], q.V[1], q.V[2], q.W}
}
