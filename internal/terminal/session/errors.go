package session

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned for ids the registry does not hold.
	ErrNotFound = errors.New("session not found")

	// ErrInvalidSize is returned for non-positive or oversized dimensions.
	ErrInvalidSize = errors.New("invalid terminal size")

	// ErrSessionClosed is returned when writing to a session whose process
	// has exited or is being torn down.
	ErrSessionClosed = errors.New("session is closed")
)

// Spawn failure reasons
const (
	ReasonStart       = "start"
	ReasonCircuitOpen = "circuit_open"
	ReasonCanceled    = "canceled"
	ReasonShutdown    = "shutdown"
)

// SpawnError reports a Create call that produced no session.
type SpawnError struct {
	Reason string
	Err    error
}

func (e *SpawnError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("spawn failed: %s", e.Reason)
	}
	return fmt.Sprintf("spawn failed (%s): %v", e.Reason, e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}
