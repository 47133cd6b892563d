package session

import (
	"fmt"
	"time"

	"github.com/GriffinCanCode/termstream/internal/shared/id"
	"github.com/GriffinCanCode/termstream/internal/terminal/escape"
)

// Status is a session's lifecycle state
type Status int

const (
	StatusActive Status = iota
	StatusIdle
	StatusCompleted
	StatusErrored
)

// String returns the string representation of the status
func (s Status) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusIdle:
		return "idle"
	case StatusCompleted:
		return "completed"
	case StatusErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (s *Status) UnmarshalText(text []byte) error {
	for _, candidate := range []Status{StatusActive, StatusIdle, StatusCompleted, StatusErrored} {
		if candidate.String() == string(text) {
			*s = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown session status %q", text)
}

// Terminal reports whether the status is final
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusErrored
}

// Info is the public representation of a session
type Info struct {
	ID           id.SessionID `json:"id"`
	Shell        string       `json:"shell"`
	PID          int          `json:"pid"`
	Cols         int          `json:"cols"`
	Rows         int          `json:"rows"`
	Status       Status       `json:"status"`
	CreatedAt    time.Time    `json:"created_at"`
	LastActivity time.Time    `json:"last_activity"`
	ExitCode     *int         `json:"exit_code,omitempty"`
}

// Config is fixed when the registry is built
type Config struct {
	Shell    string
	Args     []string
	Env      []string
	Dir      string
	TermType string

	// ReadBufferSize bounds a single pty read and so a single chunk.
	ReadBufferSize int
	// IdleAfter is the quiet period before Active becomes Idle. Zero
	// disables idle tracking.
	IdleAfter time.Duration
	// GracePeriod is how long Close waits after the polite signals before
	// killing the process group.
	GracePeriod time.Duration

	Escape escape.Options

	// SpawnFailures consecutive failed spawns open the spawn guard for
	// SpawnCooldown. Zero never opens it.
	SpawnFailures int
	SpawnCooldown time.Duration
}

// DefaultConfig returns default registry configuration
func DefaultConfig() Config {
	return Config{
		Shell:          "/bin/sh",
		TermType:       "xterm-256color",
		ReadBufferSize: 4096,
		IdleAfter:      30 * time.Second,
		GracePeriod:    2 * time.Second,
		Escape:         escape.DefaultOptions(),
		SpawnFailures:  5,
		SpawnCooldown:  30 * time.Second,
	}
}

// Recorder observes registry activity. monitoring.Metrics implements it.
type Recorder interface {
	SessionStarted()
	SessionEnded(status string)
	SpawnFailed(reason string)
	OutputDecoded(n int, chunk escape.DecodedChunk)
	SubscriberLag(dropped int)
}

type nopRecorder struct{}

func (nopRecorder) SessionStarted() {}
func (nopRecorder) SessionEnded(string) {}
func (nopRecorder) SpawnFailed(string) {}
func (nopRecorder) OutputDecoded(int, escape.DecodedChunk) {}
func (nopRecorder) SubscriberLag(int) {}
