package tracex

import (
	"sync/atomic"

	"github.com/arloliu/tracex/internal/tracker"
)

var (
	global tracker.Slot[*box]
	exists atomic.Bool
)

// SetGlobalDefault installs d as the fallback dispatch for every context
// without a scoped default, for the rest of the process.
//
// Only the first call in a process succeeds; later calls return
// ErrGlobalDefaultSet and leave the installed dispatch in place. A scoped
// dispatch is promoted into the immortal arena and never released.
//
// Libraries should not call this; leave the choice to the executable.
func SetGlobalDefault(d Dispatch) error {
	if !global.TrySet(d.b) {
		return ErrGlobalDefaultSet
	}
	if d.b != nil {
		immortal.keep(d.b)
	}
	exists.Store(true)
	RebuildInterestCache()
	logger().Debug("tracex: global default installed", "dispatch", d.String())

	return nil
}

// HasBeenSet reports whether any default dispatch, global or scoped, has
// ever been installed. It is a cheap hint for skipping instrumentation in
// programs that never configure tracing, not a synchronization point.
func HasBeenSet() bool {
	return exists.Load()
}

// GlobalDefault returns the global default dispatch, or the none dispatch
// if none has been installed yet.
func GlobalDefault() Dispatch {
	return getGlobal()
}

func getGlobal() Dispatch {
	b, _ := global.Load()
	return Dispatch{b: b}
}
