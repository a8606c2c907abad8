package tracex

import (
	"fmt"
	"strings"
)

// Level describes the verbosity of a span or event.
// Values line up with log/slog levels so bridged records map one to one.
type Level int8

// Verbosity levels, from most to least verbose.
const (
	LevelTrace Level = -8
	LevelDebug Level = -4
	LevelInfo  Level = 0
	LevelWarn  Level = 4
	LevelError Level = 8
)

// String returns the lower-case level name.
func (l Level) String() string {
	switch l {
	case LevelTrace:
		return "trace"
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return fmt.Sprintf("level(%d)", int8(l))
	}
}

// LevelFilter is the least verbose level a collector accepts.
// A filter enables a level when the level is at least as severe as the filter.
type LevelFilter struct {
	min Level
	off bool
}

// Predefined filters.
var (
	FilterTrace = LevelFilter{min: LevelTrace}
	FilterDebug = LevelFilter{min: LevelDebug}
	FilterInfo  = LevelFilter{min: LevelInfo}
	FilterWarn  = LevelFilter{min: LevelWarn}
	FilterError = LevelFilter{min: LevelError}
	FilterOff   = LevelFilter{off: true}
)

// NewLevelFilter returns a filter enabling min and everything more severe.
func NewLevelFilter(min Level) LevelFilter {
	return LevelFilter{min: min}
}

// Enables reports whether l passes the filter.
func (f LevelFilter) Enables(l Level) bool {
	return !f.off && l >= f.min
}

// IsOff reports whether the filter disables every level.
func (f LevelFilter) IsOff() bool {
	return f.off
}

// Min returns the least severe enabled level. The result is meaningless when IsOff.
func (f LevelFilter) Min() Level {
	return f.min
}

// MoreVerbose returns whichever of f and o enables more levels.
func (f LevelFilter) MoreVerbose(o LevelFilter) LevelFilter {
	switch {
	case f.off:
		return o
	case o.off:
		return f
	case o.min < f.min:
		return o
	default:
		return f
	}
}

// Stricter returns whichever of f and o enables fewer levels.
func (f LevelFilter) Stricter(o LevelFilter) LevelFilter {
	switch {
	case f.off:
		return f
	case o.off:
		return o
	case o.min > f.min:
		return o
	default:
		return f
	}
}

// String returns the filter in the form accepted by ParseLevelFilter.
func (f LevelFilter) String() string {
	if f.off {
		return "off"
	}

	return f.min.String()
}

// ParseLevelFilter parses "trace", "debug", "info", "warn", "error" or "off"
// (case-insensitive; "warning" is accepted for warn).
func ParseLevelFilter(s string) (LevelFilter, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return FilterTrace, nil
	case "debug":
		return FilterDebug, nil
	case "info", "":
		return FilterInfo, nil
	case "warn", "warning":
		return FilterWarn, nil
	case "error":
		return FilterError, nil
	case "off", "none":
		return FilterOff, nil
	default:
		return LevelFilter{}, fmt.Errorf("%w: %q", ErrInvalidLevel, s)
	}
}
