package reload

import (
	"errors"
)

// Sentinel errors matched by errors.Is against *Error.
var (
	// ErrSubscriberGone is returned when the reloadable layer was garbage
	// collected together with the collector it belonged to.
	ErrSubscriberGone = errors.New("reload: subscriber no longer exists")

	// ErrPoisoned is returned when a previous modification panicked while
	// holding the lock.
	ErrPoisoned = errors.New("reload: lock poisoned")
)

// ErrorKind classifies an Error.
type ErrorKind uint8

const (
	// KindSubscriberGone means the layer no longer exists.
	KindSubscriberGone ErrorKind = iota + 1
	// KindPoisoned means the layer's lock is poisoned.
	KindPoisoned
)

// Error is returned by Handle operations.
type Error struct {
	kind ErrorKind
}

var (
	errGone     = &Error{kind: KindSubscriberGone}
	errPoisoned = &Error{kind: KindPoisoned}
)

// Kind returns the error's kind.
func (e *Error) Kind() ErrorKind { return e.kind }

// IsSubscriberGone reports whether the layer no longer exists.
func (e *Error) IsSubscriberGone() bool { return e.kind == KindSubscriberGone }

// IsPoisoned reports whether the layer's lock is poisoned.
func (e *Error) IsPoisoned() bool { return e.kind == KindPoisoned }

func (e *Error) Error() string {
	switch e.kind {
	case KindSubscriberGone:
		return ErrSubscriberGone.Error()
	case KindPoisoned:
		return ErrPoisoned.Error()
	default:
		return "reload: unknown error"
	}
}

// Is lets errors.Is match the package sentinels.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrSubscriberGone:
		return e.kind == KindSubscriberGone
	case ErrPoisoned:
		return e.kind == KindPoisoned
	default:
		return false
	}
}
