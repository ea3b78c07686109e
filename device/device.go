// Package device defines what the simulation needs from an executor of the kernel
// program and from a renderer.
package device

import (
	"github.com/gekko3d/particles/kernel"
	"github.com/gekko3d/particles/mesh"
	"github.com/pkg/errors"
)

var (
	// ErrAliasedTarget is returned when a pass would write a texture it also reads.
	ErrAliasedTarget = errors.New("device: dispatch target is also bound as a source")
	// ErrReleased is returned when a released resource is used.
	ErrReleased = errors.New("device: resource released")
	// ErrForeignTexture is returned when a texture created by another device is bound.
	ErrForeignTexture = errors.New("device: texture belongs to another device")
)

// Texture is a 2D four-channel float texture holding one generation of one state
// channel. Texel (x, y) is lane x, row y.
type Texture interface {
	Label() string
	Width() int
	Height() int
	Release()
}

// Bindings are the textures a pass reads and the texture it writes.
type Bindings struct {
	Position Texture
	Velocity Texture
	Rotation Texture
	Target   Texture
}

// Validate checks that every slot is bound, that all textures share one size and that
// the target is not also a source.
func (b Bindings) Validate() error {
	if b.Position == nil || b.Velocity == nil || b.Rotation == nil || b.Target == nil {
		return errors.New("device: incomplete bindings")
	}
	w, h := b.Target.Width(), b.Target.Height()
	for _, src := range []Texture{b.Position, b.Velocity, b.Rotation} {
		if src == b.Target {
			return errors.Wrapf(ErrAliasedTarget, "texture %s", src.Label())
		}
		if src.Width() != w || src.Height() != h {
			return errors.Errorf("device: %s is %dx%d, target %s is %dx%d",
				src.Label(), src.Width(), src.Height(), b.Target.Label(), w, h)
		}
	}
	return nil
}

// Frame is one batch of passes sharing a uniform payload. Passes run in the order
// they were dispatched; each completes before the next one reads its output.
type Frame interface {
	Dispatch(pass kernel.Pass, b Bindings) error
	Submit() error
}

// Device executes the kernel program over state textures.
type Device interface {
	Name() string
	MaxTextureDimension2D() int
	CreateStateTexture(label string, width, height int) (Texture, error)
	// BeginFrame uploads params for the passes of the returned frame. A frame must be
	// submitted before the next one begins.
	BeginFrame(params kernel.Params) (Frame, error)
}

// Surface holds the render-side particle parameters.
type Surface struct {
	Scale           float32
	ScaleRandomness float32
	Seed            float32
}

// DrawCall draws every lane of one state texture row.
type DrawCall struct {
	Mesh     *mesh.Combined
	Position Texture
	Rotation Texture
	Row      int
	// RowOffset is the V coordinate of the row's texel centers; added to the mesh's
	// baked UV1 it addresses each particle's state.
	RowOffset float32
	Surface   Surface
}

// Renderer issues one instanced draw per call without mutating shared material state.
type Renderer interface {
	Draw(call DrawCall) error
}
