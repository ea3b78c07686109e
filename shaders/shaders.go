package shaders

import (
	_ "embed"
)

//go:embed kernel.wgsl
var KernelWGSL string

//go:embed particles.wgsl
var ParticlesWGSL string
