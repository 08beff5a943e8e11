package session

import "errors"

var (
	// ErrAlreadySpectating is returned by a non-forced start while a session runs.
	ErrAlreadySpectating = errors.New("session: viewer is already spectating")
	// ErrTargetUnresolvable is returned when an entity target cannot be found.
	ErrTargetUnresolvable = errors.New("session: target cannot be resolved")
	// ErrNoActiveSession is returned by operations that need a running session.
	ErrNoActiveSession = errors.New("session: no active session")
	// ErrUnknownPoint is returned when a named point does not exist.
	ErrUnknownPoint = errors.New("session: unknown point")
	// ErrUnknownViewer is returned when the host does not know the viewer.
	ErrUnknownViewer = errors.New("session: unknown viewer")
)
