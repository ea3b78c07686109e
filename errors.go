package particles

import "github.com/pkg/errors"

// ErrInvalidConfig is returned for configurations no simulation can run.
var ErrInvalidConfig = errors.New("particles: invalid configuration")
