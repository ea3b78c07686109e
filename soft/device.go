// Package soft is a host-memory implementation of the particle device. It runs the
// kernel program on the CPU, row-parallel, and is used headless and in tests.
package soft

import (
	"runtime"
	"sync/atomic"

	"github.com/gekko3d/particles/device"
	"github.com/gekko3d/particles/kernel"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// DefaultMaxTextureDimension matches the WebGPU default limit.
const DefaultMaxTextureDimension = 8192

type Device struct {
	maxDim  int
	workers int

	dispatches atomic.Int64
	submits    atomic.Int64
	open       bool
}

type Option func(*Device)

// WithMaxTextureDimension overrides the reported texture size limit.
func WithMaxTextureDimension(n int) Option {
	return func(d *Device) { d.maxDim = n }
}

// WithWorkers bounds the number of rows processed concurrently.
func WithWorkers(n int) Option {
	return func(d *Device) { d.workers = n }
}

func New(opts ...Option) *Device {
	d := &Device{
		maxDim:  DefaultMaxTextureDimension,
		workers: runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.workers < 1 {
		d.workers = 1
	}
	return d
}

func (d *Device) Name() string               { return "soft" }
func (d *Device) MaxTextureDimension2D() int { return d.maxDim }

// Dispatches is the number of passes executed so far.
func (d *Device) Dispatches() int64 { return d.dispatches.Load() }

// Submits is the number of frames submitted so far.
func (d *Device) Submits() int64 { return d.submits.Load() }

func (d *Device) CreateStateTexture(label string, width, height int) (device.Texture, error) {
	if width <= 0 || height <= 0 || width > d.maxDim || height > d.maxDim {
		return nil, errors.Errorf("soft: cannot create %s at %dx%d (limit %d)", label, width, height, d.maxDim)
	}
	return &Texture{
		owner:  d,
		label:  label,
		width:  width,
		height: height,
		texels: make([]mgl32.Vec4, width*height),
	}, nil
}

func (d *Device) BeginFrame(params kernel.Params) (device.Frame, error) {
	if d.open {
		return nil, errors.New("soft: previous frame was not submitted")
	}
	d.open = true
	return &frame{dev: d, params: params}, nil
}

type dispatch struct {
	pass kernel.Pass
	pos  *Texture
	vel  *Texture
	rot  *Texture
	dst  *Texture
}

type frame struct {
	dev       *Device
	params    kernel.Params
	passes    []dispatch
	submitted bool
}

func (f *frame) Dispatch(pass kernel.Pass, b device.Bindings) error {
	if f.submitted {
		return errors.New("soft: dispatch on a submitted frame")
	}
	if !pass.Valid() {
		return errors.Errorf("soft: unknown pass %d", int(pass))
	}
	if err := b.Validate(); err != nil {
		return err
	}
	var texs [4]*Texture
	for i, t := range []device.Texture{b.Position, b.Velocity, b.Rotation, b.Target} {
		st, ok := t.(*Texture)
		if !ok || st.owner != f.dev {
			return errors.Wrapf(device.ErrForeignTexture, "binding %s", t.Label())
		}
		if st.released {
			return errors.Wrapf(device.ErrReleased, "texture %s", st.label)
		}
		texs[i] = st
	}
	f.passes = append(f.passes, dispatch{pass: pass, pos: texs[0], vel: texs[1], rot: texs[2], dst: texs[3]})
	return nil
}

// Submit runs the queued passes in order. Each pass completes before the next starts.
func (f *frame) Submit() error {
	if f.submitted {
		return errors.New("soft: frame submitted twice")
	}
	f.submitted = true
	f.dev.open = false
	for _, d := range f.passes {
		if err := f.dev.run(d, &f.params); err != nil {
			return errors.Wrapf(err, "soft: %s", d.pass)
		}
		f.dev.dispatches.Add(1)
	}
	f.dev.submits.Add(1)
	return nil
}

func (d *Device) run(job dispatch, params *kernel.Params) error {
	w, h := job.dst.width, job.dst.height
	rows := (h + d.workers*4 - 1) / (d.workers * 4)
	if rows < 1 {
		rows = 1
	}

	g := new(errgroup.Group)
	g.SetLimit(d.workers)
	for y0 := 0; y0 < h; y0 += rows {
		y0 := y0
		y1 := min(y0+rows, h)
		g.Go(func() error {
			for y := y0; y < y1; y++ {
				v := (float32(y) + 0.5) / float32(h)
				for x := 0; x < w; x++ {
					i := y*w + x
					uv := mgl32.Vec2{(float32(x) + 0.5) / float32(w), v}
					in := kernel.Inputs{
						Position: job.pos.texels[i],
						Velocity: job.vel.texels[i],
						Rotation: job.rot.texels[i],
					}
					job.dst.texels[i] = kernel.Run(job.pass, uv, in, params)
				}
			}
			return nil
		})
	}
	return g.Wait()
}
