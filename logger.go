package tracex

import (
	"log/slog"
	"sync/atomic"
)

var internalLogger atomic.Pointer[slog.Logger]

func init() {
	internalLogger.Store(slog.New(slog.DiscardHandler))
}

// SetLogger sets the logger used for the package's own diagnostics.
// A nil logger restores the default, which discards everything.
//
// If the logger's handler feeds back into tracex (see the logbridge
// package), pass the context received from a collector method when logging
// from inside a collector so the record is not dispatched to it again.
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(slog.DiscardHandler)
	}
	internalLogger.Store(l)
}

// Logger returns the package logger.
func Logger() *slog.Logger {
	return internalLogger.Load()
}

func logger() *slog.Logger {
	return internalLogger.Load()
}
