// Package gpu runs the particle kernel program and draws particles with WebGPU.
package gpu

import (
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gekko3d/particles/device"
	"github.com/gekko3d/particles/kernel"
	"github.com/gekko3d/particles/shaders"
	"github.com/pkg/errors"
)

const (
	// StateFormat is the texel format of every state texture.
	StateFormat = wgpu.TextureFormatRGBA32Float
	workgroup   = 8
)

// Texture is a state texture: sampled by the next pass or the surface shader and
// written as a storage texture by the pass that produces it.
type Texture struct {
	owner    *Device
	label    string
	width    int
	height   int
	texture  *wgpu.Texture
	view     *wgpu.TextureView
	released bool
}

func (t *Texture) Label() string           { return t.label }
func (t *Texture) Width() int              { return t.width }
func (t *Texture) Height() int             { return t.height }
func (t *Texture) View() *wgpu.TextureView { return t.view }

func (t *Texture) Release() {
	if t.released {
		return
	}
	t.released = true
	if t.view != nil {
		t.view.Release()
		t.view = nil
	}
	if t.texture != nil {
		t.texture.Release()
		t.texture = nil
	}
}

// Device executes kernel passes as compute dispatches. All passes share one bind
// group layout: params, three sampled sources and one storage target.
type Device struct {
	device    *wgpu.Device
	queue     *wgpu.Queue
	maxDim    int
	layout    *wgpu.BindGroupLayout
	pipelines [kernel.UpdateRotation + 1]*wgpu.ComputePipeline
	params    *wgpu.Buffer
	open      bool
}

// NewDevice compiles the kernel program on dev.
func NewDevice(dev *wgpu.Device) (*Device, error) {
	d := &Device{
		device: dev,
		queue:  dev.GetQueue(),
		maxDim: int(dev.GetLimits().Limits.MaxTextureDimension2D),
	}

	module, err := dev.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "ParticleKernel",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: shaders.KernelWGSL},
	})
	if err != nil {
		return nil, errors.Wrap(err, "gpu: compile kernel")
	}
	defer module.Release()

	source := func(binding uint32) wgpu.BindGroupLayoutEntry {
		return wgpu.BindGroupLayoutEntry{
			Binding:    binding,
			Visibility: wgpu.ShaderStageCompute,
			Texture: wgpu.TextureBindingLayout{
				SampleType:    wgpu.TextureSampleTypeUnfilterableFloat,
				ViewDimension: wgpu.TextureViewDimension2D,
			},
		}
	}
	d.layout, err = dev.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: "ParticleKernelBGL",
		Entries: []wgpu.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: wgpu.ShaderStageCompute,
				Buffer: wgpu.BufferBindingLayout{
					Type:           wgpu.BufferBindingTypeUniform,
					MinBindingSize: kernel.ParamsSize,
				},
			},
			source(1),
			source(2),
			source(3),
			{
				Binding:    4,
				Visibility: wgpu.ShaderStageCompute,
				StorageTexture: wgpu.StorageTextureBindingLayout{
					Access:        wgpu.StorageTextureAccessWriteOnly,
					Format:        StateFormat,
					ViewDimension: wgpu.TextureViewDimension2D,
				},
			},
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "gpu: kernel bind group layout")
	}

	pipelineLayout, err := dev.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            "ParticleKernelLayout",
		BindGroupLayouts: []*wgpu.BindGroupLayout{d.layout},
	})
	if err != nil {
		d.Release()
		return nil, errors.Wrap(err, "gpu: kernel pipeline layout")
	}
	defer pipelineLayout.Release()

	for _, pass := range append(append([]kernel.Pass{}, kernel.InitPasses...), kernel.UpdatePasses...) {
		d.pipelines[pass], err = dev.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
			Label:  "ParticleKernel/" + pass.EntryPoint(),
			Layout: pipelineLayout,
			Compute: wgpu.ProgrammableStageDescriptor{
				Module:     module,
				EntryPoint: pass.EntryPoint(),
			},
		})
		if err != nil {
			d.Release()
			return nil, errors.Wrapf(err, "gpu: pipeline %s", pass)
		}
	}

	d.params, err = dev.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "ParticleParams",
		Size:  kernel.ParamsSize,
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		d.Release()
		return nil, errors.Wrap(err, "gpu: params buffer")
	}
	return d, nil
}

func (d *Device) Name() string               { return "webgpu" }
func (d *Device) MaxTextureDimension2D() int { return d.maxDim }

// Release frees the pipelines and the params buffer. State textures are owned by
// their buffers and released there.
func (d *Device) Release() {
	for i, p := range d.pipelines {
		if p != nil {
			p.Release()
			d.pipelines[i] = nil
		}
	}
	if d.params != nil {
		d.params.Release()
		d.params = nil
	}
	if d.layout != nil {
		d.layout.Release()
		d.layout = nil
	}
}

func (d *Device) CreateStateTexture(label string, width, height int) (device.Texture, error) {
	if width <= 0 || height <= 0 || width > d.maxDim || height > d.maxDim {
		return nil, errors.Errorf("gpu: cannot create %s at %dx%d (limit %d)", label, width, height, d.maxDim)
	}
	tex, err := d.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         label,
		Size:          wgpu.Extent3D{Width: uint32(width), Height: uint32(height), DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        StateFormat,
		Usage:         wgpu.TextureUsageTextureBinding | wgpu.TextureUsageStorageBinding,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "gpu: create %s", label)
	}
	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return nil, errors.Wrapf(err, "gpu: view %s", label)
	}
	return &Texture{owner: d, label: label, width: width, height: height, texture: tex, view: view}, nil
}

func (d *Device) BeginFrame(params kernel.Params) (device.Frame, error) {
	if d.params == nil {
		return nil, errors.Wrap(device.ErrReleased, "gpu: device")
	}
	if d.open {
		return nil, errors.New("gpu: previous frame was not submitted")
	}
	if err := d.queue.WriteBuffer(d.params, 0, params.Bytes()); err != nil {
		return nil, errors.Wrap(err, "gpu: upload params")
	}
	d.open = true
	return &frame{dev: d}, nil
}

type dispatch struct {
	pass   kernel.Pass
	width  int
	height int
	group  *wgpu.BindGroup
}

type frame struct {
	dev       *Device
	passes    []dispatch
	submitted bool
}

func (f *frame) Dispatch(pass kernel.Pass, b device.Bindings) error {
	if f.submitted {
		return errors.New("gpu: dispatch on a submitted frame")
	}
	if !pass.Valid() {
		return errors.Errorf("gpu: unknown pass %d", int(pass))
	}
	if err := b.Validate(); err != nil {
		return err
	}
	var views [4]*wgpu.TextureView
	for i, t := range []device.Texture{b.Position, b.Velocity, b.Rotation, b.Target} {
		gt, ok := t.(*Texture)
		if !ok || gt.owner != f.dev {
			return errors.Wrapf(device.ErrForeignTexture, "binding %s", t.Label())
		}
		if gt.released {
			return errors.Wrapf(device.ErrReleased, "texture %s", gt.label)
		}
		views[i] = gt.view
	}

	group, err := f.dev.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "ParticleKernel/" + pass.EntryPoint(),
		Layout: f.dev.layout,
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, Buffer: f.dev.params, Size: kernel.ParamsSize},
			{Binding: 1, TextureView: views[0]},
			{Binding: 2, TextureView: views[1]},
			{Binding: 3, TextureView: views[2]},
			{Binding: 4, TextureView: views[3]},
		},
	})
	if err != nil {
		return errors.Wrapf(err, "gpu: bind group %s", pass)
	}
	f.passes = append(f.passes, dispatch{
		pass:   pass,
		width:  b.Target.Width(),
		height: b.Target.Height(),
		group:  group,
	})
	return nil
}

// Submit encodes one compute pass per dispatch so every pass observes the
// storage writes of the one before it.
func (f *frame) Submit() error {
	if f.submitted {
		return errors.New("gpu: frame submitted twice")
	}
	f.submitted = true
	f.dev.open = false
	defer func() {
		for _, d := range f.passes {
			d.group.Release()
		}
	}()
	if len(f.passes) == 0 {
		return nil
	}

	encoder, err := f.dev.device.CreateCommandEncoder(nil)
	if err != nil {
		return errors.Wrap(err, "gpu: command encoder")
	}
	defer encoder.Release()

	for _, d := range f.passes {
		pass := encoder.BeginComputePass(&wgpu.ComputePassDescriptor{Label: d.pass.EntryPoint()})
		pass.SetPipeline(f.dev.pipelines[d.pass])
		pass.SetBindGroup(0, d.group, nil)
		pass.DispatchWorkgroups(
			uint32((d.width+workgroup-1)/workgroup),
			uint32((d.height+workgroup-1)/workgroup),
			1,
		)
		if err := pass.End(); err != nil {
			return errors.Wrapf(err, "gpu: end %s", d.pass)
		}
		pass.Release()
	}

	cmd, err := encoder.Finish(nil)
	if err != nil {
		return errors.Wrap(err, "gpu: finish")
	}
	defer cmd.Release()
	f.dev.queue.Submit(cmd)
	return nil
}
