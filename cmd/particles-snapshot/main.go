// Command particles-snapshot runs a simulation on the host device and writes its
// state textures as PNG images.
package main

import (
	"flag"
	"os"
	"path/filepath"

	"github.com/gekko3d/particles"
	"github.com/gekko3d/particles/device"
	"github.com/gekko3d/particles/soft"
	"github.com/pkg/errors"
)

func main() {
	var (
		configPath = flag.String("config", "", "YAML configuration file")
		count      = flag.Int("particles", 0, "override max particles")
		steps      = flag.Int("steps", 120, "simulation steps after prewarm")
		dt         = flag.Float64("dt", 1.0/60, "seconds per step")
		out        = flag.String("out", ".", "output directory")
		scale      = flag.Int("scale", 4, "pixels per texel")
		extent     = flag.Float64("extent", 10, "position range mapped to the full color range")
		debug      = flag.Bool("debug", false, "debug logging")
	)
	flag.Parse()

	logger := particles.NewLogger("particles-snapshot", *debug)
	defer func() { _ = logger.Sync() }()

	cfg := particles.DefaultConfig()
	if *configPath != "" {
		var err error
		if cfg, err = particles.LoadConfig(*configPath); err != nil {
			logger.Errorf("%v", err)
			os.Exit(1)
		}
	}
	if *count > 0 {
		cfg.MaxParticles = *count
	}

	opts := options{steps: *steps, dt: float32(*dt), out: *out, scale: *scale, extent: float32(*extent)}
	if err := run(cfg, opts, logger); err != nil {
		logger.Errorf("%+v", err)
		os.Exit(1)
	}
}

type options struct {
	steps  int
	dt     float32
	out    string
	scale  int
	extent float32
}

func run(cfg particles.Config, opts options, logger particles.Logger) error {
	if opts.dt <= 0 {
		return errors.Errorf("dt must be positive, got %v", opts.dt)
	}
	if err := os.MkdirAll(opts.out, 0o755); err != nil {
		return errors.Wrap(err, "create output directory")
	}

	profiler := particles.NewProfiler()
	sim := particles.NewSimulation(soft.New(), particles.WithLogger(logger), particles.WithProfiler(profiler))
	defer sim.Release()

	var elapsed float32
	for i := 0; i < opts.steps; i++ {
		elapsed += opts.dt
		if err := sim.Step(opts.dt, elapsed, cfg); err != nil {
			return err
		}
	}
	if !sim.Ready() {
		return errors.New("simulation has no particle lanes")
	}

	rec := &soft.Recorder{}
	if err := sim.Draw(rec); err != nil {
		return err
	}
	alive := 0
	for _, inst := range rec.Instances() {
		if inst.Life > -0.5 && inst.Life < 0.5 {
			alive++
		}
	}
	logger.Infof("%d steps, %d of %d slots alive", opts.steps, alive, sim.Buffers().Capacity())

	b := sim.Buffers()
	images := []struct {
		name string
		tex  device.Texture
		enc  soft.Encoder
	}{
		{"position.png", b.Position.Next(), soft.SignedEncoder(opts.extent)},
		{"velocity.png", b.Velocity.Next(), soft.SignedEncoder(opts.extent)},
		{"rotation.png", b.Rotation.Next(), soft.SignedEncoder(1)},
		{"life.png", b.Position.Next(), soft.LifeEncoder},
	}
	for _, img := range images {
		if err := writeImage(filepath.Join(opts.out, img.name), img.tex, img.enc, opts.scale); err != nil {
			return err
		}
	}
	logger.Debugf("\n%s", profiler.String())
	return nil
}

func writeImage(path string, tex device.Texture, enc soft.Encoder, scale int) error {
	st, ok := tex.(*soft.Texture)
	if !ok {
		return errors.Wrapf(device.ErrForeignTexture, "snapshot %s", tex.Label())
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create image")
	}
	if err := soft.WritePNG(f, st, enc, scale); err != nil {
		_ = f.Close()
		return err
	}
	return errors.Wrapf(f.Close(), "close %s", path)
}
