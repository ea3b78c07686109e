package particles

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/gekko3d/particles/mesh"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
}

func TestConfig_Validate(t *testing.T) {
	cases := map[string]func(*Config){
		"no particles":       func(c *Config) { c.MaxParticles = 0 },
		"negative particles": func(c *Config) { c.MaxParticles = -5 },
		"no life":            func(c *Config) { c.Life = 0 },
		"life randomness":    func(c *Config) { c.LifeRandomness = 1.5 },
		"spread":             func(c *Config) { c.Spread = -0.1 },
		"speed randomness":   func(c *Config) { c.SpeedRandomness = 2 },
		"spin randomness":    func(c *Config) { c.SpinRandomness = -1 },
		"scale randomness":   func(c *Config) { c.ScaleRandomness = 1.01 },
		"drag":               func(c *Config) { c.Drag = -1 },
		"noise frequency":    func(c *Config) { c.NoiseFrequency = -0.2 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			mutate(&cfg)
			assert.True(t, errors.Is(cfg.Validate(), ErrInvalidConfig))
		})
	}
}

func TestParseConfig(t *testing.T) {
	cfg, err := ParseConfig([]byte(`
max_particles: 100000
emitter_center: [0, 2, 0]
life: 6
acceleration: [0, -9.8, 0]
spread: 0.25
shapes: [cube, tetrahedron]
`))
	require.NoError(t, err)

	assert.Equal(t, 100000, cfg.MaxParticles)
	assert.Equal(t, mgl32.Vec3{0, 2, 0}, cfg.EmitterCenter)
	assert.Equal(t, float32(6), cfg.Life)
	assert.Equal(t, mgl32.Vec3{0, -9.8, 0}, cfg.Acceleration)
	assert.Equal(t, float32(0.25), cfg.Spread)
	require.Len(t, cfg.Shapes, 2)
	assert.Same(t, mesh.Cube(), cfg.Shapes[0])
	assert.Same(t, mesh.Tetrahedron(), cfg.Shapes[1])

	// Unset keys keep their defaults.
	def := DefaultConfig()
	assert.Equal(t, def.EmitterSize, cfg.EmitterSize)
	assert.Equal(t, def.LifeRandomness, cfg.LifeRandomness)
	assert.Equal(t, def.InitialVelocity, cfg.InitialVelocity)
}

func TestParseConfig_Errors(t *testing.T) {
	_, err := ParseConfig([]byte("shapes: [dodecahedron]"))
	assert.True(t, errors.Is(err, ErrInvalidConfig))

	_, err = ParseConfig([]byte("max_particles: 0"))
	assert.True(t, errors.Is(err, ErrInvalidConfig))

	_, err = ParseConfig([]byte("emitter_size: [1, 2]"))
	assert.Error(t, err)
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "particles.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_particles: 2048\n"), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 2048, cfg.MaxParticles)
	assert.Empty(t, cfg.Shapes)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
