// Package particles runs a particle system whose whole state lives in
// double-buffered device textures. A Simulation owns the combined mesh and the
// state buffers, drives the kernel passes every tick and hands one draw per state
// row to a renderer.
package particles

import (
	"github.com/gekko3d/particles/device"
	"github.com/gekko3d/particles/kernel"
	"github.com/gekko3d/particles/mesh"
	"github.com/gekko3d/particles/state"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const (
	// PrewarmCycles is the number of update cycles run after initialization so the
	// first visible population is not all born at once.
	PrewarmCycles = 8
	// PrewarmStep is the tick length used while prewarming.
	PrewarmStep = float32(1.0 / 30.0)
)

type Simulation struct {
	id       uuid.UUID
	dev      device.Device
	logger   Logger
	profiler *Profiler

	combiner mesh.Combiner
	buffers  *state.Buffers

	shapes       []*mesh.Shape
	maxParticles int
	surface      device.Surface
	ready        bool
}

type Option func(*Simulation)

func WithLogger(l Logger) Option {
	return func(s *Simulation) { s.logger = l }
}

func WithProfiler(p *Profiler) Option {
	return func(s *Simulation) { s.profiler = p }
}

func WithID(id uuid.UUID) Option {
	return func(s *Simulation) { s.id = id }
}

// NewSimulation creates an uninitialized simulation on dev. Resources are created by
// Init or by the first Step.
func NewSimulation(dev device.Device, opts ...Option) *Simulation {
	s := &Simulation{
		id:     uuid.New(),
		dev:    dev,
		logger: NewNopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.profiler == nil {
		s.profiler = NewProfiler()
	}
	return s
}

func (s *Simulation) ID() uuid.UUID           { return s.id }
func (s *Simulation) Ready() bool             { return s.ready }
func (s *Simulation) CopyCount() int          { return s.combiner.CopyCount() }
func (s *Simulation) Buffers() *state.Buffers { return s.buffers }
func (s *Simulation) Mesh() *mesh.Combined    { return s.combiner.Mesh() }
func (s *Simulation) Profiler() *Profiler     { return s.profiler }
func (s *Simulation) Device() device.Device   { return s.dev }
func (s *Simulation) Surface() device.Surface { return s.surface }

// Init combines the shapes, allocates the state buffers, runs the init passes and
// prewarms. It does nothing once the simulation is ready.
func (s *Simulation) Init(cfg Config) error {
	if s.ready {
		return nil
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	s.profiler.BeginScope(ScopeInit)
	defer s.profiler.EndScope(ScopeInit)

	if err := s.combiner.Build(cfg.Shapes); err != nil {
		return errors.Wrap(err, "particles: combine shapes")
	}
	lanes := s.combiner.CopyCount()
	width, height := state.Dimensions(cfg.MaxParticles, lanes)
	buffers, err := state.Allocate(s.dev, "particles/"+s.id.String(), width, height)
	if err != nil {
		s.combiner.Release()
		return errors.Wrapf(err, "particles: %d particles over %d lanes", cfg.MaxParticles, lanes)
	}
	s.buffers = buffers
	s.shapes = cfg.Shapes
	s.maxParticles = cfg.MaxParticles
	s.surface = cfg.Surface()

	if err := s.run(cfg.Params(0, 0), kernel.InitPasses); err != nil {
		s.release()
		return errors.Wrap(err, "particles: init passes")
	}

	s.profiler.BeginScope(ScopePrewarm)
	for i := 0; i < PrewarmCycles; i++ {
		s.buffers.Swap()
		if err := s.run(cfg.Params(PrewarmStep, PrewarmStep*float32(i+1)), kernel.UpdatePasses); err != nil {
			s.profiler.EndScope(ScopePrewarm)
			s.release()
			return errors.Wrap(err, "particles: prewarm")
		}
	}
	s.profiler.EndScope(ScopePrewarm)

	s.profiler.SetCount("lanes", lanes)
	s.profiler.SetCount("rows", height)
	s.profiler.SetCount("capacity", buffers.Capacity())
	s.logger.Infof("simulation %s: %d lanes x %d rows on %s (%d particles requested)",
		s.id, lanes, height, s.dev.Name(), cfg.MaxParticles)
	s.ready = true
	return nil
}

// Step advances the simulation by dt. A change of shapes or particle count resets
// the resources first. When the shapes yield no lanes the tick is skipped.
func (s *Simulation) Step(dt, elapsed float32, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if s.ready && s.needsReset(cfg) {
		s.profiler.BeginScope(ScopeReset)
		s.logger.Debugf("simulation %s: resetting resources", s.id)
		s.release()
		s.profiler.EndScope(ScopeReset)
	}
	if !s.ready {
		if err := s.Init(cfg); err != nil {
			if errors.Is(err, mesh.ErrNoLanes) {
				s.logger.Debugf("simulation %s: skipping tick: %v", s.id, err)
				return nil
			}
			return err
		}
	}

	s.surface = cfg.Surface()
	s.profiler.BeginScope(ScopeUpdate)
	defer s.profiler.EndScope(ScopeUpdate)
	s.buffers.Swap()
	return s.run(cfg.Params(dt, elapsed), kernel.UpdatePasses)
}

// Draw hands every row of the latest generation to r.
func (s *Simulation) Draw(r device.Renderer) error {
	if !s.ready {
		return nil
	}
	s.profiler.BeginScope(ScopeDraw)
	defer s.profiler.EndScope(ScopeDraw)

	position, rotation := s.buffers.Latest()
	m := s.combiner.Mesh()
	for y := 0; y < s.buffers.Height(); y++ {
		err := r.Draw(device.DrawCall{
			Mesh:      m,
			Position:  position,
			Rotation:  rotation,
			Row:       y,
			RowOffset: s.buffers.RowOffset(y),
			Surface:   s.surface,
		})
		if err != nil {
			return errors.Wrapf(err, "particles: draw row %d", y)
		}
	}
	return nil
}

// Release frees the buffers and the mesh. The simulation can be initialized again.
func (s *Simulation) Release() {
	s.release()
}

func (s *Simulation) release() {
	if s.buffers != nil {
		s.buffers.Release()
		s.buffers = nil
	}
	s.combiner.Release()
	s.shapes = nil
	s.maxParticles = 0
	s.ready = false
}

func (s *Simulation) needsReset(cfg Config) bool {
	if cfg.MaxParticles != s.maxParticles || len(cfg.Shapes) != len(s.shapes) {
		return true
	}
	for i := range cfg.Shapes {
		if cfg.Shapes[i] != s.shapes[i] {
			return true
		}
	}
	return false
}

// run dispatches passes in order as one frame.
func (s *Simulation) run(params kernel.Params, passes []kernel.Pass) error {
	frame, err := s.dev.BeginFrame(params)
	if err != nil {
		return err
	}
	for _, pass := range passes {
		if err := frame.Dispatch(pass, s.buffers.Bindings(pass)); err != nil {
			// The device accepts no new frame until this one is submitted.
			_ = frame.Submit()
			return errors.Wrapf(err, "dispatch %s", pass)
		}
	}
	return frame.Submit()
}
