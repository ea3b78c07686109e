package kernel

import "github.com/go-gl/mathgl/mgl32"

// ParticleScale is the size particles.wgsl gives a particle: the base scale shrunk
// by up to randomness, growing in over the first tenth of life and out over the last.
func ParticleScale(uv mgl32.Vec2, life, scale, randomness, seed float32) float32 {
	s := scale * (1 - Rand(uv, SaltScale+seed)*randomness)
	l := life + 0.5
	d := 5 - l*10
	if d < 0 {
		d = -d
	}
	return s * mgl32.Clamp(5-d, 0, 1)
}
