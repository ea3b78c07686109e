// Package state owns the double-buffered particle state textures.
package state

import (
	"fmt"

	"github.com/gekko3d/particles/device"
	"github.com/gekko3d/particles/kernel"
	"github.com/pkg/errors"
)

// ErrTextureTooLarge is returned when the requested particle count needs a texture
// the device cannot allocate.
var ErrTextureTooLarge = errors.New("state: buffer exceeds the device texture size limit")

// Dimensions returns the state texture size for maxParticles spread over lanes:
// one column per lane and maxParticles/lanes+1 rows, so width*height >= maxParticles.
func Dimensions(maxParticles, lanes int) (width, height int) {
	if lanes <= 0 {
		return 0, 0
	}
	if maxParticles < 0 {
		maxParticles = 0
	}
	return lanes, maxParticles/lanes + 1
}

// Pair is one channel's two generations. Swap flips which slot is current; the
// textures themselves are never copied.
type Pair struct {
	slots   [2]device.Texture
	current int
}

func (p *Pair) Current() device.Texture { return p.slots[p.current] }
func (p *Pair) Next() device.Texture    { return p.slots[p.current^1] }
func (p *Pair) Swap()                   { p.current ^= 1 }

func (p *Pair) Release() {
	for i, t := range p.slots {
		if t != nil {
			t.Release()
			p.slots[i] = nil
		}
	}
	p.current = 0
}

// Buffers are the six state textures of a simulation.
type Buffers struct {
	Position Pair
	Velocity Pair
	Rotation Pair

	width  int
	height int
}

// Allocate creates the six textures on dev. It fails with ErrTextureTooLarge rather
// than clamping when either dimension exceeds the device limit.
func Allocate(dev device.Device, label string, width, height int) (*Buffers, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.Errorf("state: invalid buffer size %dx%d", width, height)
	}
	if limit := dev.MaxTextureDimension2D(); width > limit || height > limit {
		return nil, errors.Wrapf(ErrTextureTooLarge, "%dx%d requested, %s allows %d",
			width, height, dev.Name(), limit)
	}

	b := &Buffers{width: width, height: height}
	channels := []struct {
		name string
		pair *Pair
	}{
		{"position", &b.Position},
		{"velocity", &b.Velocity},
		{"rotation", &b.Rotation},
	}
	for _, ch := range channels {
		for slot := 0; slot < 2; slot++ {
			tex, err := dev.CreateStateTexture(fmt.Sprintf("%s/%s[%d]", label, ch.name, slot), width, height)
			if err != nil {
				b.Release()
				return nil, errors.Wrapf(err, "state: allocate %s", ch.name)
			}
			ch.pair.slots[slot] = tex
		}
	}
	return b, nil
}

// Swap advances all three channels by one generation.
func (b *Buffers) Swap() {
	b.Position.Swap()
	b.Velocity.Swap()
	b.Rotation.Swap()
}

func (b *Buffers) Release() {
	b.Position.Release()
	b.Velocity.Release()
	b.Rotation.Release()
}

func (b *Buffers) Width() int    { return b.width }
func (b *Buffers) Height() int   { return b.height }
func (b *Buffers) Capacity() int { return b.width * b.height }

// RowOffset is the V coordinate of row y's texel centers.
func (b *Buffers) RowOffset(y int) float32 {
	return (float32(y) + 0.5) / float32(b.height)
}

// Bindings returns the generation discipline of pass: every pass writes the next
// generation of its channel; init and update-position read the current generation,
// update-velocity and update-rotation read the freshly written next position.
func (b *Buffers) Bindings(pass kernel.Pass) device.Bindings {
	bind := device.Bindings{
		Position: b.Position.Current(),
		Velocity: b.Velocity.Current(),
		Rotation: b.Rotation.Current(),
	}
	switch pass {
	case kernel.InitPosition, kernel.UpdatePosition:
		bind.Target = b.Position.Next()
	case kernel.InitVelocity:
		bind.Target = b.Velocity.Next()
	case kernel.InitRotation:
		bind.Target = b.Rotation.Next()
	case kernel.UpdateVelocity:
		bind.Position = b.Position.Next()
		bind.Target = b.Velocity.Next()
	case kernel.UpdateRotation:
		bind.Position = b.Position.Next()
		bind.Target = b.Rotation.Next()
	}
	return bind
}

// Latest returns the most recently written position and rotation generations.
func (b *Buffers) Latest() (position, rotation device.Texture) {
	return b.Position.Next(), b.Rotation.Next()
}
