package engine

import "errors"

// Lifecycle-state conflicts are detected synchronously and returned without
// side effects; transport failures roll the session back to a safe state
// before surfacing.
var (
	// ErrAlreadyConnecting is returned by Connect while a join is in flight.
	ErrAlreadyConnecting = errors.New("engine: connect already in progress")
	// ErrAlreadyConnected is returned by Connect when a session exists.
	ErrAlreadyConnected = errors.New("engine: already connected to a voice channel")
	// ErrNotConnected is returned when an operation needs a connected session.
	ErrNotConnected = errors.New("engine: not connected to a voice channel")
	// ErrConnectFailed wraps transport-level join failures and timeouts.
	ErrConnectFailed = errors.New("engine: voice channel join failed")
)
