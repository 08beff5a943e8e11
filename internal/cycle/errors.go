package cycle

import "errors"

var (
	// ErrEmptyPlaylist is returned by start or advance on a playlist with no entries.
	ErrEmptyPlaylist = errors.New("cycle: playlist is empty")
	// ErrDuplicateTarget is returned when a target with the same name is already queued.
	ErrDuplicateTarget = errors.New("cycle: target already in playlist")
	// ErrUnknownTarget is returned when removing a target that is not queued.
	ErrUnknownTarget = errors.New("cycle: target not in playlist")
	// ErrNoPlaylist is returned when the viewer has no playlist.
	ErrNoPlaylist = errors.New("cycle: no playlist")
	// ErrInvalidDwell is returned for dwell times below one second.
	ErrInvalidDwell = errors.New("cycle: dwell must be at least one second")
)
