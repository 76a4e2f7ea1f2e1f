package transport

import "errors"

var (
	// ErrClosed is returned by orchestrator operations after Close.
	ErrClosed = errors.New("transport closed")
	// ErrInvalidConfig is returned by New for an unusable Config.
	ErrInvalidConfig = errors.New("invalid transport config")
)
