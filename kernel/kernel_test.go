package kernel

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testParams() *Params {
	// life=4, lifeRandomness=0.6: lifeMax=4, lifeMin=1.6.
	return &Params{
		EmitterCenter:  mgl32.Vec3{0, 0, 0},
		EmitterSize:    mgl32.Vec3{1, 1, 1},
		DecayMin:       1.0 / 4.0,
		DecayMax:       1.0 / 1.6,
		Direction:      mgl32.Vec3{0, 0, 1},
		SpeedMin:       4,
		SpeedMax:       4,
		Acceleration:   mgl32.Vec3{0, -1, 0},
		Drag:           1,
		NoiseFrequency: 0.2,
		NoiseAmplitude: 1,
		Spin:           1,
		SpinRandomness: 1,
		DeltaTime:      0.1,
		Time:           3.5,
	}
}

func cells(w, h int) []mgl32.Vec2 {
	out := make([]mgl32.Vec2, 0, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			out = append(out, mgl32.Vec2{(float32(x) + 0.5) / float32(w), (float32(y) + 0.5) / float32(h)})
		}
	}
	return out
}

func TestRand_RangeAndReproducible(t *testing.T) {
	for _, uv := range cells(32, 32) {
		for _, salt := range []float32{0, 1, 12, 14, 1000.25} {
			r := Rand(uv, salt)
			require.GreaterOrEqual(t, r, float32(0))
			require.Less(t, r, float32(1))
			require.Equal(t, r, Rand(uv, salt))
		}
	}
	uv := mgl32.Vec2{0.25, 0.75}
	assert.NotEqual(t, Rand(uv, SaltDecay), Rand(uv, SaltInitialLife))
}

func TestRand_RoughlyUniform(t *testing.T) {
	var sum float64
	var buckets [4]int
	all := cells(64, 64)
	for _, uv := range all {
		r := Rand(uv, SaltDecay)
		sum += float64(r)
		buckets[int(r*4)]++
	}
	mean := sum / float64(len(all))
	assert.InDelta(t, 0.5, mean, 0.05)
	for _, b := range buckets {
		assert.InDelta(t, len(all)/4, b, float64(len(all))*0.05)
	}
}

func TestRandomQuaternion_Unit(t *testing.T) {
	for _, uv := range cells(16, 16) {
		q := RandomQuaternion(uv, 0)
		assert.InDelta(t, 1, q.Len(), 1e-5)
	}
}

func TestRandomAxis_Unit(t *testing.T) {
	for _, uv := range cells(16, 16) {
		assert.InDelta(t, 1, RandomAxis(uv, 0).Len(), 1e-5)
	}
}

func TestInitialPosition_StaggeredLifeInsideEmitter(t *testing.T) {
	p := testParams()
	p.EmitterCenter = mgl32.Vec3{10, -2, 3}
	p.EmitterSize = mgl32.Vec3{2, 4, 0}
	lifes := map[float32]bool{}
	for _, uv := range cells(16, 16) {
		pos := InitialPosition(uv, p)
		assert.Greater(t, pos[3], float32(LifeDead))
		assert.LessOrEqual(t, pos[3], float32(LifeNew))
		assert.InDelta(t, 10, pos[0], 1.0001)
		assert.InDelta(t, -2, pos[1], 2.0001)
		assert.Equal(t, float32(3), pos[2])
		lifes[pos[3]] = true
	}
	assert.Greater(t, len(lifes), 100, "initial lives should be staggered")
}

func TestInitVelocity_DirectionTimesSpeed(t *testing.T) {
	p := testParams()
	p.Direction = mgl32.Vec3{1, 1, 0}.Normalize()
	p.SpeedMin, p.SpeedMax = 3, 3
	v := NewVelocity(mgl32.Vec2{0.1, 0.9}, p)
	assert.InDelta(t, 3, v.Len(), 1e-5)
	assert.InDelta(t, 1, v.Normalize().Dot(p.Direction), 1e-5)

	p.Direction = mgl32.Vec3{}
	assert.Equal(t, mgl32.Vec3{}, NewVelocity(mgl32.Vec2{0.1, 0.9}, p))
}

func TestInitVelocity_SpreadAndSpeedRandomness(t *testing.T) {
	p := testParams()
	p.Spread = 1
	p.SpeedMin, p.SpeedMax = 1, 2
	dirs := map[mgl32.Vec3]bool{}
	for _, uv := range cells(8, 8) {
		v := NewVelocity(uv, p)
		if v.Len() == 0 {
			continue
		}
		assert.GreaterOrEqual(t, v.Len(), float32(1-1e-5))
		assert.LessOrEqual(t, v.Len(), float32(2+1e-5))
		dirs[v.Normalize()] = true
	}
	assert.Greater(t, len(dirs), 32)
}

func TestStepPosition_IntegratesWithoutTeleport(t *testing.T) {
	p := testParams()
	for _, uv := range cells(16, 16) {
		pos := InitialPosition(uv, p)
		vel := NewVelocity(uv, p).Vec4(0)
		next := StepPosition(uv, pos, vel, p)

		decay := pos[3] - next[3]
		if next[3] == LifeNew && decay < 0 {
			continue // respawned
		}
		delta := next.Vec3().Sub(pos.Vec3()).Len()
		assert.LessOrEqual(t, delta, vel.Vec3().Len()*p.DeltaTime+1e-5)
		assert.GreaterOrEqual(t, decay, p.DecayMin*p.DeltaTime-1e-6)
		assert.LessOrEqual(t, decay, p.DecayMax*p.DeltaTime+1e-6)
	}
}

func TestStepPosition_Respawn(t *testing.T) {
	p := testParams()
	uv := mgl32.Vec2{0.3, 0.6}
	dying := mgl32.Vec4{100, 100, 100, -0.49}
	vel := mgl32.Vec4{0, 0, 50, 0}

	next := StepPosition(uv, dying, vel, p)
	assert.Greater(t, next[3], float32(0))
	assert.LessOrEqual(t, next[3], float32(LifeNew))
	assert.Equal(t, NewPosition(uv, p), next)
	assert.InDelta(t, 0, next[0], 0.5001)
	assert.InDelta(t, 0, next[2], 0.5001)

	// Same cell, same params: same respawn point.
	assert.Equal(t, next, StepPosition(uv, dying, vel, p))
}

func TestStepPosition_NeverLeavesDeadLife(t *testing.T) {
	p := testParams()
	p.DeltaTime = 0.5
	for _, uv := range cells(16, 16) {
		pos := InitialPosition(uv, p)
		vel := NewVelocity(uv, p).Vec4(0)
		for i := 0; i < 40; i++ {
			p.Time += p.DeltaTime
			pos = StepPosition(uv, pos, vel, p)
			require.Greater(t, pos[3], float32(LifeDead))
			require.LessOrEqual(t, pos[3], float32(LifeNew))
		}
	}
}

func TestStepVelocity_RespawnedGetsNewVelocity(t *testing.T) {
	p := testParams()
	uv := mgl32.Vec2{0.7, 0.2}
	pos := mgl32.Vec4{0, 0, 0, LifeNew}
	got := StepVelocity(uv, pos, mgl32.Vec4{9, 9, 9, 0}, p)
	assert.Equal(t, NewVelocity(uv, p).Vec4(0), got)
}

func TestStepVelocity_AccelerationAndDrag(t *testing.T) {
	p := testParams()
	p.NoiseAmplitude = 0
	p.Drag = 0.5
	uv := mgl32.Vec2{0.7, 0.2}
	pos := mgl32.Vec4{1, 2, 3, 0.1}
	got := StepVelocity(uv, pos, mgl32.Vec4{2, 0, 0, 0}, p)
	assert.InDelta(t, 1, got[0], 1e-6)
	assert.InDelta(t, -0.1, got[1], 1e-6)
	assert.Equal(t, float32(0), got[3])
}

func TestStepVelocity_TurbulenceMatchesCurl(t *testing.T) {
	p := testParams()
	p.Acceleration = mgl32.Vec3{}
	uv := mgl32.Vec2{0.7, 0.2}
	pos := mgl32.Vec4{1.3, 2.1, -0.4, 0.1}
	got := StepVelocity(uv, pos, mgl32.Vec4{}, p)

	np := pos.Vec3().Add(p.NoiseOffset).Mul(p.NoiseFrequency)
	want := Curl(np).Mul(p.NoiseAmplitude * p.DeltaTime)
	assert.InDelta(t, want[0], got[0], 1e-6)
	assert.InDelta(t, want[1], got[1], 1e-6)
	assert.InDelta(t, want[2], got[2], 1e-6)
}

func TestStepRotation_StaysUnit(t *testing.T) {
	p := testParams()
	p.DeltaTime = 1.0 / 60.0
	for _, uv := range cells(8, 8) {
		rot := Run(InitRotation, uv, Inputs{}, p)
		vel := mgl32.Vec4{3, -7, 11, 0}
		for i := 0; i < 5000; i++ {
			rot = StepRotation(uv, vel, rot, p)
		}
		assert.InDelta(t, 1, rot.Len(), 1e-4)
	}
}

func TestStepRotation_AngleScalesWithSpeed(t *testing.T) {
	p := testParams()
	p.SpinRandomness = 0
	uv := mgl32.Vec2{0.5, 0.5}
	assert.Equal(t, float32(0), SpinAngle(uv, 0, p))
	assert.InDelta(t, 2*p.DeltaTime, SpinAngle(uv, 2, p), 1e-6)

	p.SpinMax = 1
	assert.InDelta(t, 1*p.DeltaTime, SpinAngle(uv, 5, p), 1e-6)

	// Zero speed leaves the orientation untouched.
	rot := quatTexel(RandomQuaternion(uv, 0))
	same := StepRotation(uv, mgl32.Vec4{}, rot, p)
	for i := 0; i < 4; i++ {
		assert.InDelta(t, rot[i], same[i], 1e-6)
	}
}

func TestSimplexGrad_MatchesFiniteDifference(t *testing.T) {
	const h = 1e-5
	points := [][3]float64{{0.1, 0.2, 0.3}, {1.7, -3.2, 5.9}, {-12.25, 0.5, 7.125}, {42.1, 17.3, -8.8}}
	for _, pt := range points {
		_, g := simplexGrad(pt)
		for axis := 0; axis < 3; axis++ {
			a, b := pt, pt
			a[axis] += h
			b[axis] -= h
			na, _ := simplexGrad(a)
			nb, _ := simplexGrad(b)
			fd := (na - nb) / (2 * h)
			assert.InDelta(t, fd, g[axis], 1e-4, "point %v axis %d", pt, axis)
		}
	}
}

func TestSimplex_Bounded(t *testing.T) {
	for _, uv := range cells(32, 32) {
		p := mgl32.Vec3{uv[0] * 37, uv[1] * 19, uv[0]*uv[1]*11 - 3}
		n, _ := SimplexGrad(p)
		assert.LessOrEqual(t, math.Abs(float64(n)), 1.25)
	}
}

func TestCurl_DivergenceFree(t *testing.T) {
	const h = 1e-4
	curl := func(p [3]float64) [3]float64 {
		_, g1 := simplexGrad(p)
		_, g2 := simplexGrad([3]float64{p[0], p[1] + 13.28, p[2]})
		return [3]float64{
			g1[1]*g2[2] - g1[2]*g2[1],
			g1[2]*g2[0] - g1[0]*g2[2],
			g1[0]*g2[1] - g1[1]*g2[0],
		}
	}
	for _, pt := range [][3]float64{{0.3, 0.1, 0.7}, {2.2, -1.4, 3.3}, {-5.5, 6.25, 0.125}} {
		var div, scale float64
		for axis := 0; axis < 3; axis++ {
			a, b := pt, pt
			a[axis] += h
			b[axis] -= h
			ca, cb := curl(a), curl(b)
			d := (ca[axis] - cb[axis]) / (2 * h)
			div += d
			scale += math.Abs(d)
		}
		assert.InDelta(t, 0, div, 1e-3*math.Max(1, scale), "point %v", pt)
	}
}

func TestRun_DispatchesEveryPass(t *testing.T) {
	p := testParams()
	uv := mgl32.Vec2{0.5, 0.5}
	in := Inputs{
		Position: mgl32.Vec4{1, 1, 1, 0.2},
		Velocity: mgl32.Vec4{0, 1, 0, 0},
		Rotation: mgl32.Vec4{0, 0, 0, 1},
	}
	assert.Equal(t, InitialPosition(uv, p), Run(InitPosition, uv, in, p))
	assert.Equal(t, NewVelocity(uv, p).Vec4(0), Run(InitVelocity, uv, in, p))
	assert.Equal(t, StepPosition(uv, in.Position, in.Velocity, p), Run(UpdatePosition, uv, in, p))
	assert.Equal(t, StepVelocity(uv, in.Position, in.Velocity, p), Run(UpdateVelocity, uv, in, p))
	assert.Equal(t, StepRotation(uv, in.Velocity, in.Rotation, p), Run(UpdateRotation, uv, in, p))

	for _, pass := range append(append([]Pass{}, InitPasses...), UpdatePasses...) {
		assert.True(t, pass.Valid())
		assert.NotEmpty(t, pass.EntryPoint())
	}
	assert.False(t, Pass(42).Valid())
}

func TestParams_Bytes(t *testing.T) {
	p := testParams()
	p.Seed = 7
	buf := p.Bytes()
	require.Len(t, buf, ParamsSize)

	f := func(i int) float32 { return math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:])) }
	assert.Equal(t, p.DecayMin, f(8))
	assert.Equal(t, p.DecayMax, f(9))
	assert.Equal(t, p.Direction[2], f(14))
	assert.Equal(t, p.Drag, f(23))
	assert.Equal(t, p.DeltaTime, f(36))
	assert.Equal(t, p.Time, f(37))
	assert.Equal(t, p.Seed, f(38))
}

func TestParticleScale_FadesAtBothEnds(t *testing.T) {
	uv := mgl32.Vec2{0.3, 0.7}
	assert.InDelta(t, 2, ParticleScale(uv, 0, 2, 0, 0), 1e-6)
	assert.InDelta(t, 0, ParticleScale(uv, LifeNew, 2, 0, 0), 1e-6)
	assert.InDelta(t, 0, ParticleScale(uv, LifeDead, 2, 0, 0), 1e-6)
	assert.InDelta(t, 1, ParticleScale(uv, LifeNew-0.05, 2, 0, 0), 1e-5)

	r := ParticleScale(uv, 0, 2, 1, 0)
	assert.InDelta(t, 2*(1-Rand(uv, SaltScale)), r, 1e-6)
}
