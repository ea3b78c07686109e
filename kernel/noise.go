package kernel

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// CurlOffset separates the two gradient samples whose cross product forms the curl field.
var CurlOffset = mgl32.Vec3{0, 13.28, 0}

func mod289(x float64) float64  { return x - math.Floor(x*(1.0/289.0))*289.0 }
func permute(x float64) float64 { return mod289((x*34.0 + 1.0) * x) }

// step is the GLSL step(): 0 when x < edge, else 1.
func step(edge, x float64) float64 {
	if x < edge {
		return 0
	}
	return 1
}

func dot3(a, b [3]float64) float64 { return a[0]*b[0] + a[1]*b[1] + a[2]*b[2] }

// simplexGrad is 3D simplex noise with its analytical gradient, following the
// permutation-polynomial formulation that kernel.wgsl uses so both devices sample
// the same field.
func simplexGrad(v [3]float64) (float64, [3]float64) {
	const (
		cx = 1.0 / 6.0
		cy = 1.0 / 3.0
	)

	// First corner.
	s := (v[0] + v[1] + v[2]) * cy
	i := [3]float64{math.Floor(v[0] + s), math.Floor(v[1] + s), math.Floor(v[2] + s)}
	t := (i[0] + i[1] + i[2]) * cx
	x0 := [3]float64{v[0] - i[0] + t, v[1] - i[1] + t, v[2] - i[2] + t}

	// Other corners.
	g := [3]float64{step(x0[1], x0[0]), step(x0[2], x0[1]), step(x0[0], x0[2])}
	l := [3]float64{1 - g[0], 1 - g[1], 1 - g[2]}
	i1 := [3]float64{math.Min(g[0], l[2]), math.Min(g[1], l[0]), math.Min(g[2], l[1])}
	i2 := [3]float64{math.Max(g[0], l[2]), math.Max(g[1], l[0]), math.Max(g[2], l[1])}

	var x [4][3]float64
	x[0] = x0
	for k := 0; k < 3; k++ {
		x[1][k] = x0[k] - i1[k] + cx
		x[2][k] = x0[k] - i2[k] + cy
		x[3][k] = x0[k] - 0.5
	}

	// Permutations.
	for k := range i {
		i[k] = mod289(i[k])
	}
	offs := [4][3]float64{{0, 0, 0}, i1, i2, {1, 1, 1}}

	// Gradients: 7x7 points over a square, mapped onto an octahedron.
	const nsx, nsy, nsz = 2.0 / 7.0, 0.5/7.0 - 1.0, 1.0 / 7.0

	var value float64
	var grad [3]float64
	for k := 0; k < 4; k++ {
		p := permute(permute(permute(i[2]+offs[k][2])+i[1]+offs[k][1]) + i[0] + offs[k][0])

		j := p - 49.0*math.Floor(p*nsz*nsz)
		gx := math.Floor(j * nsz)
		gy := math.Floor(j - 7.0*gx)
		px := gx*nsx + nsy
		py := gy*nsx + nsy
		h := 1.0 - math.Abs(px) - math.Abs(py)

		sh := -step(h, 0)
		gk := [3]float64{
			px + (math.Floor(px)*2+1)*sh,
			py + (math.Floor(py)*2+1)*sh,
			h,
		}
		norm := 1.79284291400159 - 0.85373472095314*dot3(gk, gk)
		for c := range gk {
			gk[c] *= norm
		}

		m := math.Max(0.5-dot3(x[k], x[k]), 0)
		m2 := m * m
		m4 := m2 * m2
		pdotx := dot3(gk, x[k])

		value += m4 * pdotx
		temp := m2 * m * pdotx
		for c := 0; c < 3; c++ {
			grad[c] += -8.0*temp*x[k][c] + m4*gk[c]
		}
	}

	for c := range grad {
		grad[c] *= 105.0
	}
	return 105.0 * value, grad
}

// SimplexGrad returns simplex noise at p and its gradient.
func SimplexGrad(p mgl32.Vec3) (float32, mgl32.Vec3) {
	n, g := simplexGrad([3]float64{float64(p[0]), float64(p[1]), float64(p[2])})
	return float32(n), mgl32.Vec3{float32(g[0]), float32(g[1]), float32(g[2])}
}

// Curl is the divergence-free turbulence field at p: the cross product of two
// offset noise gradients.
func Curl(p mgl32.Vec3) mgl32.Vec3 {
	_, g1 := SimplexGrad(p)
	_, g2 := SimplexGrad(p.Add(CurlOffset))
	return g1.Cross(g2)
}
