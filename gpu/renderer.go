package gpu

import (
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gekko3d/particles/device"
	"github.com/gekko3d/particles/mesh"
	"github.com/gekko3d/particles/shaders"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// rowStride is the dynamic uniform offset alignment every WebGPU adapter accepts.
const rowStride = 256

// Camera matches the Camera uniform of particles.wgsl.
type Camera struct {
	ViewProj mgl32.Mat4
	LightDir mgl32.Vec4
	Color    mgl32.Vec4
}

type rowUniform struct {
	Offset  mgl32.Vec4
	Surface mgl32.Vec4
}

const rowUniformSize = 32

type meshBuffers struct {
	source     *mesh.Combined
	vertices   *wgpu.Buffer
	indices    *wgpu.Buffer
	indexCount uint32
}

func (b *meshBuffers) release() {
	if b.vertices != nil {
		b.vertices.Release()
	}
	if b.indices != nil {
		b.indices.Release()
	}
}

type stateKey struct {
	position *Texture
	rotation *Texture
}

// Renderer draws particle rows into a render pass. Draw queues a call; Encode
// uploads the per-row uniforms and records one indexed draw per queued call.
// Rows never share mutable material state: each call has its own uniform slot.
type Renderer struct {
	device   *wgpu.Device
	queue    *wgpu.Queue
	pipeline *wgpu.RenderPipeline
	sampler  *wgpu.Sampler

	cameraLayout *wgpu.BindGroupLayout
	rowLayout    *wgpu.BindGroupLayout
	stateLayout  *wgpu.BindGroupLayout

	cameraBuffer *wgpu.Buffer
	cameraGroup  *wgpu.BindGroup

	rowBuffer   *wgpu.Buffer
	rowGroup    *wgpu.BindGroup
	rowCapacity int

	meshes      map[uuid.UUID]*meshBuffers
	stateGroups map[stateKey]*wgpu.BindGroup
	calls       []device.DrawCall
}

// NewRenderer builds the particle surface pipeline for color targets of format.
func NewRenderer(dev *wgpu.Device, format wgpu.TextureFormat, depth wgpu.TextureFormat) (*Renderer, error) {
	r := &Renderer{
		device:      dev,
		queue:       dev.GetQueue(),
		meshes:      make(map[uuid.UUID]*meshBuffers),
		stateGroups: make(map[stateKey]*wgpu.BindGroup),
	}

	module, err := dev.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "ParticleSurface",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: shaders.ParticlesWGSL},
	})
	if err != nil {
		return nil, errors.Wrap(err, "gpu: compile surface")
	}
	defer module.Release()

	r.cameraLayout, err = dev.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: "ParticleCameraBGL",
		Entries: []wgpu.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: wgpu.ShaderStageVertex | wgpu.ShaderStageFragment,
				Buffer: wgpu.BufferBindingLayout{
					Type:           wgpu.BufferBindingTypeUniform,
					MinBindingSize: 96,
				},
			},
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "gpu: camera layout")
	}

	r.rowLayout, err = dev.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: "ParticleRowBGL",
		Entries: []wgpu.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: wgpu.ShaderStageVertex,
				Buffer: wgpu.BufferBindingLayout{
					Type:             wgpu.BufferBindingTypeUniform,
					MinBindingSize:   rowUniformSize,
					HasDynamicOffset: true,
				},
			},
		},
	})
	if err != nil {
		r.Release()
		return nil, errors.Wrap(err, "gpu: row layout")
	}

	stateTexture := func(binding uint32) wgpu.BindGroupLayoutEntry {
		return wgpu.BindGroupLayoutEntry{
			Binding:    binding,
			Visibility: wgpu.ShaderStageVertex,
			Texture: wgpu.TextureBindingLayout{
				SampleType:    wgpu.TextureSampleTypeUnfilterableFloat,
				ViewDimension: wgpu.TextureViewDimension2D,
			},
		}
	}
	r.stateLayout, err = dev.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: "ParticleStateBGL",
		Entries: []wgpu.BindGroupLayoutEntry{
			stateTexture(0),
			stateTexture(1),
			{
				Binding:    2,
				Visibility: wgpu.ShaderStageVertex,
				Sampler:    wgpu.SamplerBindingLayout{Type: wgpu.SamplerBindingTypeNonFiltering},
			},
		},
	})
	if err != nil {
		r.Release()
		return nil, errors.Wrap(err, "gpu: state layout")
	}

	r.sampler, err = dev.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         "ParticleStateSampler",
		AddressModeU:  wgpu.AddressModeRepeat,
		AddressModeV:  wgpu.AddressModeRepeat,
		AddressModeW:  wgpu.AddressModeRepeat,
		MagFilter:     wgpu.FilterModeNearest,
		MinFilter:     wgpu.FilterModeNearest,
		MipmapFilter:  wgpu.MipmapFilterModeNearest,
		LodMinClamp:   0,
		LodMaxClamp:   1,
		Compare:       wgpu.CompareFunctionUndefined,
		MaxAnisotropy: 1,
	})
	if err != nil {
		r.Release()
		return nil, errors.Wrap(err, "gpu: state sampler")
	}

	vertexLayout, err := vertexBufferLayout(mesh.Vertex{})
	if err != nil {
		r.Release()
		return nil, err
	}

	pipelineLayout, err := dev.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            "ParticleSurfaceLayout",
		BindGroupLayouts: []*wgpu.BindGroupLayout{r.cameraLayout, r.rowLayout, r.stateLayout},
	})
	if err != nil {
		r.Release()
		return nil, errors.Wrap(err, "gpu: surface pipeline layout")
	}
	defer pipelineLayout.Release()

	var depthStencil *wgpu.DepthStencilState
	if depth != wgpu.TextureFormatUndefined {
		depthStencil = &wgpu.DepthStencilState{
			Format:            depth,
			DepthWriteEnabled: true,
			DepthCompare:      wgpu.CompareFunctionLess,
			StencilFront:      wgpu.StencilFaceState{Compare: wgpu.CompareFunctionAlways},
			StencilBack:       wgpu.StencilFaceState{Compare: wgpu.CompareFunctionAlways},
		}
	}

	r.pipeline, err = dev.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  "ParticleSurface",
		Layout: pipelineLayout,
		Vertex: wgpu.VertexState{
			Module:     module,
			EntryPoint: "vs_main",
			Buffers:    []wgpu.VertexBufferLayout{vertexLayout},
		},
		Fragment: &wgpu.FragmentState{
			Module:     module,
			EntryPoint: "fs_main",
			Targets: []wgpu.ColorTargetState{
				{
					Format:    format,
					WriteMask: wgpu.ColorWriteMaskAll,
				},
			},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  wgpu.PrimitiveTopologyTriangleList,
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  wgpu.CullModeBack,
		},
		DepthStencil: depthStencil,
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		r.Release()
		return nil, errors.Wrap(err, "gpu: surface pipeline")
	}

	r.cameraBuffer, err = dev.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "ParticleCamera",
		Size:  96,
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		r.Release()
		return nil, errors.Wrap(err, "gpu: camera buffer")
	}
	r.cameraGroup, err = dev.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   "ParticleCameraBG",
		Layout:  r.cameraLayout,
		Entries: []wgpu.BindGroupEntry{{Binding: 0, Buffer: r.cameraBuffer, Size: 96}},
	})
	if err != nil {
		r.Release()
		return nil, errors.Wrap(err, "gpu: camera bind group")
	}
	return r, nil
}

// SetCamera uploads the camera for the next Encode.
func (r *Renderer) SetCamera(c Camera) error {
	data, err := uniformBytes(c)
	if err != nil {
		return err
	}
	return errors.Wrap(r.queue.WriteBuffer(r.cameraBuffer, 0, data), "gpu: upload camera")
}

// Draw queues one row.
func (r *Renderer) Draw(call device.DrawCall) error {
	if call.Mesh == nil || call.Mesh.Released() {
		return errors.Wrap(device.ErrReleased, "gpu: draw without a mesh")
	}
	for _, t := range []device.Texture{call.Position, call.Rotation} {
		gt, ok := t.(*Texture)
		if !ok {
			return errors.Wrapf(device.ErrForeignTexture, "gpu: draw binding %T", t)
		}
		if gt.released {
			return errors.Wrapf(device.ErrReleased, "gpu: draw binding %s", gt.label)
		}
	}
	r.calls = append(r.calls, call)
	return nil
}

// Encode records the queued rows into pass and clears the queue.
func (r *Renderer) Encode(pass *wgpu.RenderPassEncoder) error {
	calls := r.calls
	r.calls = r.calls[:0]
	if len(calls) == 0 {
		return nil
	}
	r.prune()

	if err := r.ensureRows(len(calls)); err != nil {
		return err
	}
	rows := make([]byte, len(calls)*rowStride)
	for i, call := range calls {
		data, err := uniformBytes(rowUniform{
			Offset:  mgl32.Vec4{0, call.RowOffset, 0, 0},
			Surface: mgl32.Vec4{call.Surface.Scale, call.Surface.ScaleRandomness, call.Surface.Seed, 0},
		})
		if err != nil {
			return err
		}
		copy(rows[i*rowStride:], data)
	}
	if err := r.queue.WriteBuffer(r.rowBuffer, 0, rows); err != nil {
		return errors.Wrap(err, "gpu: upload rows")
	}

	pass.SetPipeline(r.pipeline)
	pass.SetBindGroup(0, r.cameraGroup, nil)
	for i, call := range calls {
		buffers, err := r.meshBuffers(call.Mesh)
		if err != nil {
			return err
		}
		group, err := r.stateGroup(call.Position.(*Texture), call.Rotation.(*Texture))
		if err != nil {
			return err
		}
		pass.SetVertexBuffer(0, buffers.vertices, 0, wgpu.WholeSize)
		pass.SetIndexBuffer(buffers.indices, wgpu.IndexFormatUint16, 0, wgpu.WholeSize)
		pass.SetBindGroup(1, r.rowGroup, []uint32{uint32(i * rowStride)})
		pass.SetBindGroup(2, group, nil)
		pass.DrawIndexed(buffers.indexCount, 1, 0, 0, 0)
	}
	return nil
}

func (r *Renderer) ensureRows(n int) error {
	if n <= r.rowCapacity {
		return nil
	}
	if r.rowGroup != nil {
		r.rowGroup.Release()
		r.rowGroup = nil
	}
	if r.rowBuffer != nil {
		r.rowBuffer.Release()
		r.rowBuffer = nil
	}
	capacity := n + 64
	var err error
	r.rowBuffer, err = r.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "ParticleRows",
		Size:  uint64(capacity * rowStride),
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		r.rowCapacity = 0
		return errors.Wrap(err, "gpu: row buffer")
	}
	r.rowGroup, err = r.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   "ParticleRowsBG",
		Layout:  r.rowLayout,
		Entries: []wgpu.BindGroupEntry{{Binding: 0, Buffer: r.rowBuffer, Size: rowUniformSize}},
	})
	if err != nil {
		r.rowCapacity = 0
		return errors.Wrap(err, "gpu: row bind group")
	}
	r.rowCapacity = capacity
	return nil
}

// meshBuffers returns the GPU copy of m, uploading it on first use. A rebuilt mesh
// has a new ID and is uploaded again.
func (r *Renderer) meshBuffers(m *mesh.Combined) (*meshBuffers, error) {
	if b, ok := r.meshes[m.ID()]; ok {
		return b, nil
	}

	b := &meshBuffers{source: m, indexCount: uint32(m.IndexCount())}
	var err error
	b.vertices, err = r.device.CreateBufferInit(&wgpu.BufferInitDescriptor{
		Label:    "ParticleMeshVertices",
		Contents: wgpu.ToBytes(m.Vertices()),
		Usage:    wgpu.BufferUsageVertex,
	})
	if err != nil {
		return nil, errors.Wrap(err, "gpu: upload mesh vertices")
	}
	indices := m.Indices()
	if len(indices)%2 != 0 {
		// Buffer sizes must be a multiple of 4 bytes.
		indices = append(append([]uint16{}, indices...), 0)
	}
	b.indices, err = r.device.CreateBufferInit(&wgpu.BufferInitDescriptor{
		Label:    "ParticleMeshIndices",
		Contents: wgpu.ToBytes(indices),
		Usage:    wgpu.BufferUsageIndex,
	})
	if err != nil {
		b.release()
		return nil, errors.Wrap(err, "gpu: upload mesh indices")
	}
	r.meshes[m.ID()] = b
	return b, nil
}

func (r *Renderer) stateGroup(position, rotation *Texture) (*wgpu.BindGroup, error) {
	key := stateKey{position: position, rotation: rotation}
	if g, ok := r.stateGroups[key]; ok {
		return g, nil
	}
	g, err := r.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "ParticleStateBG",
		Layout: r.stateLayout,
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, TextureView: position.view},
			{Binding: 1, TextureView: rotation.view},
			{Binding: 2, Sampler: r.sampler},
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "gpu: state bind group")
	}
	r.stateGroups[key] = g
	return g, nil
}

// prune drops GPU copies of released meshes and bind groups of released textures.
func (r *Renderer) prune() {
	for id, b := range r.meshes {
		if b.source.Released() {
			b.release()
			delete(r.meshes, id)
		}
	}
	for key, g := range r.stateGroups {
		if key.position.released || key.rotation.released {
			g.Release()
			delete(r.stateGroups, key)
		}
	}
}

func (r *Renderer) Release() {
	for key, g := range r.stateGroups {
		g.Release()
		delete(r.stateGroups, key)
	}
	for id, b := range r.meshes {
		b.release()
		delete(r.meshes, id)
	}
	for _, g := range []*wgpu.BindGroup{r.rowGroup, r.cameraGroup} {
		if g != nil {
			g.Release()
		}
	}
	r.rowGroup, r.cameraGroup = nil, nil
	for _, b := range []*wgpu.Buffer{r.rowBuffer, r.cameraBuffer} {
		if b != nil {
			b.Release()
		}
	}
	r.rowBuffer, r.cameraBuffer = nil, nil
	r.rowCapacity = 0
	for _, l := range []*wgpu.BindGroupLayout{r.cameraLayout, r.rowLayout, r.stateLayout} {
		if l != nil {
			l.Release()
		}
	}
	r.cameraLayout, r.rowLayout, r.stateLayout = nil, nil, nil
	if r.sampler != nil {
		r.sampler.Release()
		r.sampler = nil
	}
	if r.pipeline != nil {
		r.pipeline.Release()
		r.pipeline = nil
	}
}
