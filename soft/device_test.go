package soft

import (
	"bytes"
	"errors"
	"image/png"
	"testing"

	"github.com/gekko3d/particles/device"
	"github.com/gekko3d/particles/kernel"
	"github.com/gekko3d/particles/mesh"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testParams() kernel.Params {
	return kernel.Params{
		EmitterSize: mgl32.Vec3{1, 1, 1},
		DecayMin:    1.0 / 4.0,
		DecayMax:    1.0 / 1.6,
		Direction:   mgl32.Vec3{0, 0, 1},
		SpeedMin:    4,
		SpeedMax:    4,
		Drag:        1,
		Spin:        1,
		DeltaTime:   0.1,
	}
}

func newTextures(t *testing.T, d *Device, w, h int) (pos, vel, rot, dst *Texture) {
	t.Helper()
	mk := func(label string) *Texture {
		tex, err := d.CreateStateTexture(label, w, h)
		require.NoError(t, err)
		return tex.(*Texture)
	}
	return mk("pos"), mk("vel"), mk("rot"), mk("dst")
}

func TestDevice_RunsKernelPerTexel(t *testing.T) {
	d := New(WithWorkers(3))
	pos, vel, rot, dst := newTextures(t, d, 5, 7)
	p := testParams()

	f, err := d.BeginFrame(p)
	require.NoError(t, err)
	require.NoError(t, f.Dispatch(kernel.InitPosition, device.Bindings{Position: pos, Velocity: vel, Rotation: rot, Target: dst}))
	require.NoError(t, f.Submit())

	for y := 0; y < 7; y++ {
		for x := 0; x < 5; x++ {
			uv := mgl32.Vec2{(float32(x) + 0.5) / 5, (float32(y) + 0.5) / 7}
			assert.Equal(t, kernel.InitialPosition(uv, &p), dst.At(x, y))
		}
	}
	assert.EqualValues(t, 1, d.Dispatches())
	assert.EqualValues(t, 1, d.Submits())
}

func TestDevice_PassesRunInOrder(t *testing.T) {
	d := New()
	a, vel, rot, b := newTextures(t, d, 4, 4)
	p := testParams()

	f, err := d.BeginFrame(p)
	require.NoError(t, err)
	require.NoError(t, f.Dispatch(kernel.InitPosition, device.Bindings{Position: b, Velocity: vel, Rotation: rot, Target: a}))
	require.NoError(t, f.Dispatch(kernel.InitVelocity, device.Bindings{Position: a, Velocity: b, Rotation: rot, Target: vel}))
	require.NoError(t, f.Dispatch(kernel.UpdatePosition, device.Bindings{Position: a, Velocity: vel, Rotation: rot, Target: b}))
	require.NoError(t, f.Submit())

	for i := range b.Texels() {
		want := kernel.StepPosition(uvOf(i, 4, 4), a.Texels()[i], vel.Texels()[i], &p)
		assert.Equal(t, want, b.Texels()[i])
		assert.InDelta(t, 4, vel.Texels()[i].Vec3().Len(), 1e-5)
	}
}

func uvOf(i, w, h int) mgl32.Vec2 {
	return mgl32.Vec2{(float32(i%w) + 0.5) / float32(w), (float32(i/w) + 0.5) / float32(h)}
}

func TestDevice_RejectsBadDispatch(t *testing.T) {
	d := New()
	pos, vel, rot, dst := newTextures(t, d, 4, 4)
	other := New()
	foreign, err := other.CreateStateTexture("foreign", 4, 4)
	require.NoError(t, err)

	f, err := d.BeginFrame(testParams())
	require.NoError(t, err)

	err = f.Dispatch(kernel.UpdatePosition, device.Bindings{Position: pos, Velocity: vel, Rotation: rot, Target: pos})
	assert.True(t, errors.Is(err, device.ErrAliasedTarget))

	err = f.Dispatch(kernel.UpdatePosition, device.Bindings{Position: pos, Velocity: vel, Rotation: rot, Target: foreign})
	assert.True(t, errors.Is(err, device.ErrForeignTexture))

	err = f.Dispatch(kernel.Pass(42), device.Bindings{Position: pos, Velocity: vel, Rotation: rot, Target: dst})
	assert.Error(t, err)

	small, err := d.CreateStateTexture("small", 2, 2)
	require.NoError(t, err)
	assert.Error(t, f.Dispatch(kernel.UpdatePosition, device.Bindings{Position: pos, Velocity: vel, Rotation: rot, Target: small}))

	dst.Release()
	err = f.Dispatch(kernel.UpdatePosition, device.Bindings{Position: pos, Velocity: vel, Rotation: rot, Target: dst})
	assert.True(t, errors.Is(err, device.ErrReleased))

	require.NoError(t, f.Submit())
	assert.Error(t, f.Submit())
	assert.Error(t, f.Dispatch(kernel.UpdatePosition, device.Bindings{Position: pos, Velocity: vel, Rotation: rot, Target: dst}))
}

func TestDevice_OneFrameAtATime(t *testing.T) {
	d := New()
	f, err := d.BeginFrame(testParams())
	require.NoError(t, err)
	_, err = d.BeginFrame(testParams())
	assert.Error(t, err)
	require.NoError(t, f.Submit())
	_, err = d.BeginFrame(testParams())
	assert.NoError(t, err)
}

func TestDevice_TextureLimit(t *testing.T) {
	d := New(WithMaxTextureDimension(16))
	assert.Equal(t, 16, d.MaxTextureDimension2D())
	_, err := d.CreateStateTexture("ok", 16, 16)
	assert.NoError(t, err)
	_, err = d.CreateStateTexture("wide", 17, 1)
	assert.Error(t, err)
}

func TestTexture_SampleNearestRepeat(t *testing.T) {
	d := New()
	tex, err := d.CreateStateTexture("s", 4, 2)
	require.NoError(t, err)
	st := tex.(*Texture)
	for i := range st.Texels() {
		st.Texels()[i] = mgl32.Vec4{float32(i)}
	}

	assert.Equal(t, float32(0), st.Sample(mgl32.Vec2{0.125, 0.25})[0])
	assert.Equal(t, float32(7), st.Sample(mgl32.Vec2{0.875, 0.75})[0])
	assert.Equal(t, float32(1), st.Sample(mgl32.Vec2{1.375, 0.25})[0])
	assert.Equal(t, float32(7), st.Sample(mgl32.Vec2{-0.125, -0.25})[0])
}

func TestRecorder_ResolvesInstances(t *testing.T) {
	d := New()
	combined, err := mesh.Combine(nil)
	require.NoError(t, err)
	lanes := combined.CopyCount()

	pos, err := d.CreateStateTexture("pos", lanes, 2)
	require.NoError(t, err)
	rot, err := d.CreateStateTexture("rot", lanes, 2)
	require.NoError(t, err)
	pt, rt := pos.(*Texture), rot.(*Texture)
	for x := 0; x < lanes; x++ {
		pt.Set(x, 1, mgl32.Vec4{float32(x), 1, 2, 0})
		rt.Set(x, 1, mgl32.Vec4{0, 0, 0, 1})
	}

	rec := &Recorder{}
	require.NoError(t, rec.Draw(device.DrawCall{
		Mesh: combined, Position: pos, Rotation: rot, Row: 1, RowOffset: 0.75,
		Surface: device.Surface{Scale: 1},
	}))
	inst := rec.Instances()
	require.Len(t, inst, lanes)
	for i, in := range inst {
		assert.Equal(t, i, in.Lane)
		assert.Equal(t, float32(i), in.Position[0])
		assert.Equal(t, float32(1), in.Rotation.W)
		assert.InDelta(t, 1, in.Scale, 1e-6)
	}

	rec.Reset()
	assert.Empty(t, rec.Calls)

	combined.Release()
	assert.True(t, errors.Is(rec.Draw(device.DrawCall{Mesh: combined, Position: pos, Rotation: rot}), device.ErrReleased))
}

func TestWritePNG(t *testing.T) {
	d := New()
	tex, err := d.CreateStateTexture("snap", 3, 2)
	require.NoError(t, err)
	st := tex.(*Texture)
	st.Set(0, 0, mgl32.Vec4{1, -1, 0, 0.5})

	var buf bytes.Buffer
	require.NoError(t, WritePNG(&buf, st, SignedEncoder(1), 4))
	img, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, 12, img.Bounds().Dx())
	assert.Equal(t, 8, img.Bounds().Dy())
	r, g, _, a := img.At(3, 3).RGBA()
	assert.EqualValues(t, 0xffff, r)
	assert.EqualValues(t, 0, g)
	assert.EqualValues(t, 0xffff, a)

	c := LifeEncoder(mgl32.Vec4{0, 0, 0, -0.5})
	assert.EqualValues(t, 0, c.R)
	c = LifeEncoder(mgl32.Vec4{0, 0, 0, 0.5})
	assert.EqualValues(t, 255, c.R)

	st.Release()
	assert.True(t, errors.Is(WritePNG(&buf, st, LifeEncoder, 1), device.ErrReleased))
}
