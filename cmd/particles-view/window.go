package main

import (
	"runtime"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/cogentcore/webgpu/wgpuglfw"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/pkg/errors"
)

const depthFormat = wgpu.TextureFormatDepth24Plus

type windowState struct {
	window *glfw.Window
	width  int
	height int
}

type gpuState struct {
	surface       *wgpu.Surface
	adapter       *wgpu.Adapter
	device        *wgpu.Device
	queue         *wgpu.Queue
	surfaceConfig *wgpu.SurfaceConfiguration

	depth     *wgpu.Texture
	depthView *wgpu.TextureView
}

func createWindowState(width, height int, title string) (*windowState, error) {
	runtime.LockOSThread()
	if err := glfw.Init(); err != nil {
		return nil, errors.Wrap(err, "glfw init")
	}

	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	glfw.WindowHint(glfw.Resizable, glfw.True)

	win, err := glfw.CreateWindow(width, height, title, nil, nil)
	if err != nil {
		glfw.Terminate()
		return nil, errors.Wrap(err, "create window")
	}
	return &windowState{window: win, width: width, height: height}, nil
}

func (s *windowState) release() {
	s.window.Destroy()
	glfw.Terminate()
}

func createGpuState(s *windowState) (*gpuState, error) {
	instance := wgpu.CreateInstance(nil)
	defer instance.Release()

	surface := instance.CreateSurface(wgpuglfw.GetSurfaceDescriptor(s.window))
	adapter, err := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		CompatibleSurface: surface,
		PowerPreference:   wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		return nil, errors.Wrap(err, "request adapter")
	}
	device, err := adapter.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "Particles Device",
	})
	if err != nil {
		return nil, errors.Wrap(err, "request device")
	}

	width, height := s.window.GetFramebufferSize()
	caps := surface.GetCapabilities(adapter)
	g := &gpuState{
		surface: surface,
		adapter: adapter,
		device:  device,
		queue:   device.GetQueue(),
		surfaceConfig: &wgpu.SurfaceConfiguration{
			Usage:       wgpu.TextureUsageRenderAttachment,
			Format:      caps.Formats[0],
			Width:       uint32(width),
			Height:      uint32(height),
			PresentMode: wgpu.PresentModeFifo,
			AlphaMode:   caps.AlphaModes[0],
		},
	}
	surface.Configure(adapter, device, g.surfaceConfig)
	if err := g.createDepth(); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *gpuState) createDepth() error {
	g.releaseDepth()
	var err error
	g.depth, err = g.device.CreateTexture(&wgpu.TextureDescriptor{
		Label: "Particles Depth",
		Size: wgpu.Extent3D{
			Width:              g.surfaceConfig.Width,
			Height:             g.surfaceConfig.Height,
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        depthFormat,
		Usage:         wgpu.TextureUsageRenderAttachment,
	})
	if err != nil {
		return errors.Wrap(err, "create depth texture")
	}
	g.depthView, err = g.depth.CreateView(nil)
	return errors.Wrap(err, "create depth view")
}

func (g *gpuState) releaseDepth() {
	if g.depthView != nil {
		g.depthView.Release()
		g.depthView = nil
	}
	if g.depth != nil {
		g.depth.Release()
		g.depth = nil
	}
}

// resize reconfigures the surface; zero sizes (minimized window) are ignored.
func (g *gpuState) resize(width, height int) error {
	if width <= 0 || height <= 0 {
		return nil
	}
	if uint32(width) == g.surfaceConfig.Width && uint32(height) == g.surfaceConfig.Height {
		return nil
	}
	g.surfaceConfig.Width = uint32(width)
	g.surfaceConfig.Height = uint32(height)
	g.surface.Configure(g.adapter, g.device, g.surfaceConfig)
	return g.createDepth()
}

func (g *gpuState) release() {
	g.releaseDepth()
	g.device.Release()
	g.adapter.Release()
	g.surface.Release()
}
