package kernel

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Salts used by the kernel passes. Each random quantity of a particle has its own
// salt so the values are independent while staying reproducible per cell.
const (
	SaltPositionX   = 1
	SaltPositionY   = 2
	SaltPositionZ   = 3
	SaltSpreadX     = 4
	SaltSpreadY     = 5
	SaltSpreadZ     = 6
	SaltSpeed       = 7
	SaltAxisHeight  = 10
	SaltAxisAngle   = 11
	SaltDecay       = 12
	SaltInitialLife = 14
	SaltRotationA   = 15
	SaltRotationB   = 16
	SaltRotationC   = 17
	SaltSpin        = 18
	SaltScale       = 19
)

// maxBelowOne is the largest float32 below 1.
var maxBelowOne = math.Nextafter32(1, 0)

// Rand is the hashed-sine generator shared with kernel.wgsl:
// fract(sin(dot(uv, (12.9898, 78.233)) + salt) * 43758.5453). The result is in [0, 1)
// and depends only on its arguments.
func Rand(uv mgl32.Vec2, salt float32) float32 {
	d := float64(uv[0])*12.9898 + float64(uv[1])*78.233 + float64(salt)
	x := math.Sin(d) * 43758.5453
	r := float32(x - math.Floor(x))
	if r > maxBelowOne {
		r = maxBelowOne
	}
	return r
}

// RandomAxis returns a unit vector uniformly distributed on the sphere.
func RandomAxis(uv mgl32.Vec2, seed float32) mgl32.Vec3 {
	u := float64(Rand(uv, SaltAxisHeight+seed))*2 - 1
	theta := float64(Rand(uv, SaltAxisAngle+seed)) * 2 * math.Pi
	r := math.Sqrt(math.Max(0, 1-u*u))
	return mgl32.Vec3{
		float32(r * math.Cos(theta)),
		float32(r * math.Sin(theta)),
		float32(u),
	}
}

// RandomQuaternion returns a uniformly distributed unit quaternion using Shoemake's
// construction from three uniform numbers.
func RandomQuaternion(uv mgl32.Vec2, seed float32) mgl32.Quat {
	u1 := float64(Rand(uv, SaltRotationA+seed))
	u2 := float64(Rand(uv, SaltRotationB+seed)) * 2 * math.Pi
	u3 := float64(Rand(uv, SaltRotationC+seed)) * 2 * math.Pi
	s1 := math.Sqrt(1 - u1)
	s2 := math.Sqrt(u1)
	return mgl32.Quat{
		W: float32(s2 * math.Cos(u3)),
		V: mgl32.Vec3{
			float32(s1 * math.Sin(u2)),
			float32(s1 * math.Cos(u2)),
			float32(s2 * math.Sin(u3)),
		},
	}
}

func lerp(a, b, t float32) float32 { return a + (b-a)*t }

func lerp3(a, b mgl32.Vec3, t float32) mgl32.Vec3 {
	return a.Add(b.Sub(a).Mul(t))
}
