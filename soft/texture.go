package soft

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Texture is a host-memory rgba32float texture, row-major.
type Texture struct {
	owner    *Device
	label    string
	width    int
	height   int
	texels   []mgl32.Vec4
	released bool
}

func (t *Texture) Label() string  { return t.label }
func (t *Texture) Width() int     { return t.width }
func (t *Texture) Height() int    { return t.height }
func (t *Texture) Released() bool { return t.released }

func (t *Texture) Release() {
	t.texels = nil
	t.released = true
}

// At returns texel (x, y).
func (t *Texture) At(x, y int) mgl32.Vec4 {
	return t.texels[y*t.width+x]
}

// Set overwrites texel (x, y).
func (t *Texture) Set(x, y int, v mgl32.Vec4) {
	t.texels[y*t.width+x] = v
}

// Texels returns the backing storage. Callers must not hold it across a Submit.
func (t *Texture) Texels() []mgl32.Vec4 { return t.texels }

// Sample reads the texel under uv with nearest filtering and repeat addressing, the
// way the surface shader's sampler does.
func (t *Texture) Sample(uv mgl32.Vec2) mgl32.Vec4 {
	x := wrap(int(floor(uv[0]*float32(t.width))), t.width)
	y := wrap(int(floor(uv[1]*float32(t.height))), t.height)
	return t.At(x, y)
}

func floor(v float32) float32 {
	i := float32(int(v))
	if v < i {
		i--
	}
	return i
}

func wrap(i, n int) int {
	i %= n
	if i < 0 {
		i += n
	}
	return i
}
