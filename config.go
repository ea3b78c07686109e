package particles

import (
	"math"
	"os"

	"github.com/gekko3d/particles/device"
	"github.com/gekko3d/particles/kernel"
	"github.com/gekko3d/particles/mesh"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config is the host-side description of a simulation. Changing Shapes or
// MaxParticles resets the simulation's resources; every other field only affects
// the next tick's parameters.
type Config struct {
	MaxParticles    int        `yaml:"max_particles"`
	EmitterCenter   mgl32.Vec3 `yaml:"emitter_center"`
	EmitterSize     mgl32.Vec3 `yaml:"emitter_size"`
	Life            float32    `yaml:"life"`
	LifeRandomness  float32    `yaml:"life_randomness"`
	InitialVelocity mgl32.Vec3 `yaml:"initial_velocity"`
	Acceleration    mgl32.Vec3 `yaml:"acceleration"`

	// Shapes are compared by identity; nil or empty means the default quad.
	Shapes []*mesh.Shape `yaml:"-"`

	Spread          float32 `yaml:"spread"`
	SpeedRandomness float32 `yaml:"speed_randomness"`
	// Drag is the exponential velocity decay per second.
	Drag float32 `yaml:"drag"`

	NoiseAmplitude float32 `yaml:"noise_amplitude"`
	NoiseFrequency float32 `yaml:"noise_frequency"`
	NoiseSpeed     float32 `yaml:"noise_speed"`

	// Spin is radians per unit of speed; SpinMax caps it in radians per second,
	// zero meaning no cap.
	Spin           float32 `yaml:"spin"`
	SpinMax        float32 `yaml:"spin_max"`
	SpinRandomness float32 `yaml:"spin_randomness"`

	Scale           float32 `yaml:"scale"`
	ScaleRandomness float32 `yaml:"scale_randomness"`

	RandomSeed float32 `yaml:"random_seed"`
}

func DefaultConfig() Config {
	return Config{
		MaxParticles:    1000,
		EmitterSize:     mgl32.Vec3{1, 1, 1},
		Life:            4,
		LifeRandomness:  0.6,
		InitialVelocity: mgl32.Vec3{0, 0, 4},
		NoiseAmplitude:  1,
		NoiseFrequency:  0.2,
		NoiseSpeed:      0.2,
		Spin:            1,
		SpinRandomness:  1,
		Scale:           1,
	}
}

func (c Config) Validate() error {
	if c.MaxParticles <= 0 {
		return errors.Wrapf(ErrInvalidConfig, "max particles %d", c.MaxParticles)
	}
	if c.Life <= 0 {
		return errors.Wrapf(ErrInvalidConfig, "life %g", c.Life)
	}
	fractions := []struct {
		name  string
		value float32
	}{
		{"life randomness", c.LifeRandomness},
		{"spread", c.Spread},
		{"speed randomness", c.SpeedRandomness},
		{"spin randomness", c.SpinRandomness},
		{"scale randomness", c.ScaleRandomness},
	}
	for _, f := range fractions {
		if f.value < 0 || f.value > 1 {
			return errors.Wrapf(ErrInvalidConfig, "%s %g outside [0,1]", f.name, f.value)
		}
	}
	if c.Drag < 0 {
		return errors.Wrapf(ErrInvalidConfig, "drag %g", c.Drag)
	}
	if c.NoiseFrequency < 0 {
		return errors.Wrapf(ErrInvalidConfig, "noise frequency %g", c.NoiseFrequency)
	}
	return nil
}

// Params converts c into the kernel uniforms of a tick of length dt at elapsed.
func (c Config) Params(dt, elapsed float32) kernel.Params {
	decayMin := 1 / max(c.Life, 0.01)
	decayMax := decayMin / max(1-c.LifeRandomness, 0.01)

	speed := c.InitialVelocity.Len()
	var dir mgl32.Vec3
	if speed > 1e-6 {
		dir = c.InitialVelocity.Mul(1 / speed)
	}

	return kernel.Params{
		EmitterCenter:  c.EmitterCenter,
		EmitterSize:    c.EmitterSize,
		DecayMin:       decayMin,
		DecayMax:       decayMax,
		Direction:      dir,
		Spread:         c.Spread,
		SpeedMin:       speed * (1 - c.SpeedRandomness),
		SpeedMax:       speed,
		Acceleration:   c.Acceleration,
		Drag:           float32(math.Exp(-float64(c.Drag) * float64(dt))),
		NoiseOffset:    mgl32.Vec3{0, 0, c.NoiseSpeed * elapsed},
		NoiseFrequency: c.NoiseFrequency,
		NoiseAmplitude: c.NoiseAmplitude,
		Spin:           c.Spin,
		SpinMax:        c.SpinMax,
		SpinRandomness: c.SpinRandomness,
		DeltaTime:      dt,
		Time:           elapsed,
		Seed:           c.RandomSeed,
	}
}

// Surface returns the render-side parameters of c.
func (c Config) Surface() device.Surface {
	return device.Surface{
		Scale:           c.Scale,
		ScaleRandomness: c.ScaleRandomness,
		Seed:            c.RandomSeed,
	}
}

type configFile struct {
	Config `yaml:",inline"`
	Shapes []string `yaml:"shapes"`
}

// LoadConfig reads a YAML configuration on top of DefaultConfig. Shapes are given
// by built-in name.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "particles: read config")
	}
	return ParseConfig(data)
}

func ParseConfig(data []byte) (Config, error) {
	file := configFile{Config: DefaultConfig()}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return Config{}, errors.Wrap(err, "particles: parse config")
	}
	cfg := file.Config
	for _, name := range file.Shapes {
		s, err := mesh.ShapeByName(name)
		if err != nil {
			return Config{}, errors.Wrapf(ErrInvalidConfig, "%v", err)
		}
		cfg.Shapes = append(cfg.Shapes, s)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
