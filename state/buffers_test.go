package state_test

import (
	"errors"
	"testing"

	"github.com/gekko3d/particles/device"
	"github.com/gekko3d/particles/kernel"
	"github.com/gekko3d/particles/soft"
	"github.com/gekko3d/particles/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDimensions(t *testing.T) {
	w, h := state.Dimensions(100000, 64)
	assert.Equal(t, 64, w)
	assert.Equal(t, 1563, h)
	assert.Equal(t, 100032, w*h)

	w, h = state.Dimensions(1000, 4096)
	assert.Equal(t, 4096, w)
	assert.Equal(t, 1, h)

	for _, n := range []int{1, 63, 64, 65, 4095, 4096, 99999} {
		for _, lanes := range []int{1, 7, 64, 4096} {
			w, h := state.Dimensions(n, lanes)
			assert.GreaterOrEqual(t, w*h, n, "n=%d lanes=%d", n, lanes)
		}
	}

	w, h = state.Dimensions(100, 0)
	assert.Zero(t, w)
	assert.Zero(t, h)
}

func TestAllocate_Sizes(t *testing.T) {
	dev := soft.New()
	b, err := state.Allocate(dev, "test", 64, 1563)
	require.NoError(t, err)
	defer b.Release()

	assert.Equal(t, 64, b.Width())
	assert.Equal(t, 1563, b.Height())
	assert.Equal(t, 100032, b.Capacity())
	for _, p := range []*state.Pair{&b.Position, &b.Velocity, &b.Rotation} {
		assert.Equal(t, 64, p.Current().Width())
		assert.Equal(t, 1563, p.Next().Height())
		assert.NotSame(t, p.Current(), p.Next())
	}
	assert.Equal(t, "test/velocity[1]", b.Velocity.Next().Label())
}

func TestAllocate_TooLarge(t *testing.T) {
	dev := soft.New(soft.WithMaxTextureDimension(1024))
	_, err := state.Allocate(dev, "big", 64, 1563)
	require.Error(t, err)
	assert.True(t, errors.Is(err, state.ErrTextureTooLarge))

	_, err = state.Allocate(dev, "wide", 2048, 4)
	assert.True(t, errors.Is(err, state.ErrTextureTooLarge))

	_, err = state.Allocate(dev, "empty", 0, 4)
	require.Error(t, err)
	assert.False(t, errors.Is(err, state.ErrTextureTooLarge))
}

func TestPair_SwapFlipsWithoutCopying(t *testing.T) {
	dev := soft.New()
	b, err := state.Allocate(dev, "swap", 4, 4)
	require.NoError(t, err)

	cur, next := b.Position.Current(), b.Position.Next()
	b.Swap()
	assert.Same(t, next, b.Position.Current())
	assert.Same(t, cur, b.Position.Next())
	b.Swap()
	assert.Same(t, cur, b.Position.Current())

	b.Release()
	assert.True(t, cur.(*soft.Texture).Released())
	assert.True(t, next.(*soft.Texture).Released())
	assert.Nil(t, b.Position.Current())
}

func TestBindings_GenerationDiscipline(t *testing.T) {
	dev := soft.New()
	b, err := state.Allocate(dev, "bind", 4, 4)
	require.NoError(t, err)
	defer b.Release()

	for _, pass := range append(append([]kernel.Pass{}, kernel.InitPasses...), kernel.UpdatePasses...) {
		bind := b.Bindings(pass)
		require.NoError(t, bind.Validate(), pass.String())
		assert.Same(t, b.Velocity.Current(), bind.Velocity, pass.String())
		assert.Same(t, b.Rotation.Current(), bind.Rotation, pass.String())
	}

	assert.Same(t, b.Position.Next(), b.Bindings(kernel.UpdatePosition).Target)
	assert.Same(t, b.Position.Current(), b.Bindings(kernel.UpdatePosition).Position)
	assert.Same(t, b.Position.Next(), b.Bindings(kernel.UpdateVelocity).Position)
	assert.Same(t, b.Velocity.Next(), b.Bindings(kernel.UpdateVelocity).Target)
	assert.Same(t, b.Position.Next(), b.Bindings(kernel.UpdateRotation).Position)
	assert.Same(t, b.Rotation.Next(), b.Bindings(kernel.UpdateRotation).Target)

	pos, rot := b.Latest()
	assert.Same(t, b.Position.Next(), pos)
	assert.Same(t, b.Rotation.Next(), rot)

	aliased := b.Bindings(kernel.UpdatePosition)
	aliased.Target = aliased.Position
	assert.True(t, errors.Is(aliased.Validate(), device.ErrAliasedTarget))
}

func TestRowOffset(t *testing.T) {
	dev := soft.New()
	b, err := state.Allocate(dev, "rows", 8, 4)
	require.NoError(t, err)
	defer b.Release()

	assert.InDelta(t, 0.125, b.RowOffset(0), 1e-7)
	assert.InDelta(t, 0.875, b.RowOffset(3), 1e-7)
}
