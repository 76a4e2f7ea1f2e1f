package task

import "errors"

var (
	// ErrAlreadyRunning is returned by Start for a name that is alive.
	ErrAlreadyRunning = errors.New("task already running")
	// ErrUnknownTask is returned for a name that is not alive.
	ErrUnknownTask = errors.New("no such task")
	// ErrSelfStop is returned when a worker asks to stop its own task. The
	// call is a no-op; the worker should return instead.
	ErrSelfStop = errors.New("task cannot stop itself")
)
