package tracex

import "errors"

// ErrGlobalDefaultSet is returned by SetGlobalDefault when a global default
// dispatch has already been installed in this process.
var ErrGlobalDefaultSet = errors.New("tracex: a global default dispatch has already been set")

// ErrInvalidLevel is returned when a level name cannot be parsed.
var ErrInvalidLevel = errors.New("tracex: invalid level")

// ErrDisabled is returned when a component is built from a disabled config.
var ErrDisabled = errors.New("tracex: telemetry is disabled")
