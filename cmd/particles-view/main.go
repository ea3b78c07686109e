// Command particles-view runs a particle simulation on the GPU and draws it in a
// window.
package main

import (
	"flag"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gekko3d/particles"
	"github.com/gekko3d/particles/gpu"
	"github.com/gekko3d/particles/mesh"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	var (
		configPath = flag.String("config", "", "YAML configuration file")
		count      = flag.Int("particles", 0, "override max particles")
		shapes     = flag.String("shapes", "", "comma separated built-in shapes (quad, cube, tetrahedron)")
		width      = flag.Int("width", 1280, "window width")
		height     = flag.Int("height", 720, "window height")
		metrics    = flag.String("metrics", "", "serve Prometheus metrics on this address, e.g. :9090")
		debug      = flag.Bool("debug", false, "debug logging")
	)
	flag.Parse()

	logger := particles.NewLogger("particles-view", *debug)
	defer func() { _ = logger.Sync() }()

	cfg, err := loadConfig(*configPath, *count, *shapes)
	if err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}

	profiler := particles.NewProfiler()
	if *metrics != "" {
		reg := prometheus.NewRegistry()
		if err := profiler.Register(reg); err != nil {
			logger.Errorf("%v", err)
			os.Exit(1)
		}
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		go func() {
			logger.Infof("metrics on %s/metrics", *metrics)
			if err := http.ListenAndServe(*metrics, mux); err != nil {
				logger.Errorf("metrics server: %v", err)
			}
		}()
	}

	if err := run(cfg, *width, *height, logger, profiler); err != nil {
		logger.Errorf("%+v", err)
		os.Exit(1)
	}
}

func loadConfig(path string, count int, shapes string) (particles.Config, error) {
	cfg := particles.DefaultConfig()
	if path != "" {
		var err error
		if cfg, err = particles.LoadConfig(path); err != nil {
			return cfg, err
		}
	}
	if count > 0 {
		cfg.MaxParticles = count
	}
	if shapes != "" {
		cfg.Shapes = nil
		for _, name := range strings.Split(shapes, ",") {
			s, err := mesh.ShapeByName(strings.TrimSpace(name))
			if err != nil {
				return cfg, err
			}
			cfg.Shapes = append(cfg.Shapes, s)
		}
	}
	return cfg, cfg.Validate()
}

func run(cfg particles.Config, width, height int, logger particles.Logger, profiler *particles.Profiler) error {
	ws, err := createWindowState(width, height, "particles")
	if err != nil {
		return err
	}
	defer ws.release()

	gs, err := createGpuState(ws)
	if err != nil {
		return err
	}
	defer gs.release()

	dev, err := gpu.NewDevice(gs.device)
	if err != nil {
		return err
	}
	defer dev.Release()

	renderer, err := gpu.NewRenderer(gs.device, gs.surfaceConfig.Format, depthFormat)
	if err != nil {
		return err
	}
	defer renderer.Release()

	sim := particles.NewSimulation(dev, particles.WithLogger(logger), particles.WithProfiler(profiler))
	defer sim.Release()
	if err := sim.Init(cfg); err != nil {
		return err
	}

	cam := newOrbitCamera(cfg.EmitterCenter)
	ws.window.SetScrollCallback(func(_ *glfw.Window, _, yoff float64) {
		cam.zoom(float32(yoff))
	})

	clock := newClock()
	lastReport := time.Now()
	for !ws.window.ShouldClose() {
		glfw.PollEvents()
		if ws.window.GetKey(glfw.KeyEscape) == glfw.Press {
			ws.window.SetShouldClose(true)
		}

		dt, elapsed := clock.tick()
		cam.update(ws.window, dt)

		fw, fh := ws.window.GetFramebufferSize()
		if err := gs.resize(fw, fh); err != nil {
			return err
		}
		if fw == 0 || fh == 0 {
			continue
		}

		if err := sim.Step(dt, elapsed, cfg); err != nil {
			return err
		}
		if err := renderFrame(gs, renderer, sim, cam); err != nil {
			return err
		}

		if time.Since(lastReport) > 5*time.Second && logger.DebugEnabled() {
			logger.Debugf("\n%s", profiler.String())
			lastReport = time.Now()
		}
	}
	return nil
}

func renderFrame(gs *gpuState, renderer *gpu.Renderer, sim *particles.Simulation, cam *orbitCamera) error {
	aspect := float32(gs.surfaceConfig.Width) / float32(gs.surfaceConfig.Height)
	if err := renderer.SetCamera(gpu.Camera{
		ViewProj: cam.viewProj(aspect),
		LightDir: mgl32.Vec4{0.4, 1, 0.3, 0},
		Color:    mgl32.Vec4{0.9, 0.85, 0.8, 1},
	}); err != nil {
		return err
	}
	if err := sim.Draw(renderer); err != nil {
		return err
	}

	next, err := gs.surface.GetCurrentTexture()
	if err != nil {
		return errors.Wrap(err, "surface texture")
	}
	defer next.Release()
	view, err := next.CreateView(nil)
	if err != nil {
		return errors.Wrap(err, "surface view")
	}
	defer view.Release()

	encoder, err := gs.device.CreateCommandEncoder(nil)
	if err != nil {
		return errors.Wrap(err, "command encoder")
	}
	defer encoder.Release()

	pass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{
			{
				View:       view,
				LoadOp:     wgpu.LoadOpClear,
				StoreOp:    wgpu.StoreOpStore,
				ClearValue: wgpu.Color{R: 0.05, G: 0.05, B: 0.07, A: 1.0},
			},
		},
		DepthStencilAttachment: &wgpu.RenderPassDepthStencilAttachment{
			View:            gs.depthView,
			DepthLoadOp:     wgpu.LoadOpClear,
			DepthStoreOp:    wgpu.StoreOpStore,
			DepthClearValue: 1,
		},
	})
	if err := renderer.Encode(pass); err != nil {
		_ = pass.End()
		pass.Release()
		return err
	}
	if err := pass.End(); err != nil {
		return errors.Wrap(err, "end render pass")
	}
	pass.Release()

	cmd, err := encoder.Finish(nil)
	if err != nil {
		return errors.Wrap(err, "finish")
	}
	defer cmd.Release()
	gs.queue.Submit(cmd)
	gs.surface.Present()
	return nil
}
