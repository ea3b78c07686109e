package kernel

import (
	"encoding/binary"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// ParamsSize is the size of the uniform block declared as `Params` in kernel.wgsl.
const ParamsSize = 160

// Params is the per-frame uniform payload of the kernel program. It is immutable
// for the duration of one frame.
type Params struct {
	EmitterCenter mgl32.Vec3
	EmitterSize   mgl32.Vec3

	// DecayMin is 1/lifeMax, DecayMax is 1/lifeMin: life units lost per second.
	DecayMin float32
	DecayMax float32

	Direction mgl32.Vec3 // normalized
	Spread    float32
	SpeedMin  float32
	SpeedMax  float32

	Acceleration mgl32.Vec3
	Drag         float32 // velocity multiplier for this frame, 1 = no drag

	NoiseOffset    mgl32.Vec3
	NoiseFrequency float32
	NoiseAmplitude float32

	Spin           float32 // radians per unit of speed
	SpinMax        float32 // radians per second, <= 0 means unbounded
	SpinRandomness float32

	DeltaTime float32
	Time      float32
	Seed      float32
}

func (p *Params) rand(uv mgl32.Vec2, salt float32) float32 {
	return Rand(uv, salt+p.Seed)
}

// Bytes packs p in the std140 layout of kernel.wgsl:
//
//	struct Params {
//	  emitter_center: vec4<f32>, // xyz
//	  emitter_size:   vec4<f32>, // xyz
//	  life:           vec4<f32>, // x decay min, y decay max
//	  direction:      vec4<f32>, // xyz direction, w spread
//	  speed:          vec4<f32>, // x min, y max
//	  acceleration:   vec4<f32>, // xyz, w drag
//	  noise_offset:   vec4<f32>, // xyz
//	  noise:          vec4<f32>, // x frequency, y amplitude
//	  spin:           vec4<f32>, // x spin, y max, z randomness
//	  config:         vec4<f32>, // x dt, y time, z seed
//	}
func (p *Params) Bytes() []byte {
	vals := [ParamsSize / 4]float32{
		p.EmitterCenter[0], p.EmitterCenter[1], p.EmitterCenter[2], 0,
		p.EmitterSize[0], p.EmitterSize[1], p.EmitterSize[2], 0,
		p.DecayMin, p.DecayMax, 0, 0,
		p.Direction[0], p.Direction[1], p.Direction[2], p.Spread,
		p.SpeedMin, p.SpeedMax, 0, 0,
		p.Acceleration[0], p.Acceleration[1], p.Acceleration[2], p.Drag,
		p.NoiseOffset[0], p.NoiseOffset[1], p.NoiseOffset[2], 0,
		p.NoiseFrequency, p.NoiseAmplitude, 0, 0,
		p.Spin, p.SpinMax, p.SpinRandomness, 0,
		p.DeltaTime, p.Time, p.Seed, 0,
	}
	buf := make([]byte, ParamsSize)
	for i, v := range vals {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}
