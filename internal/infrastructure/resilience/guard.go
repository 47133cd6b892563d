package resilience

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrOpen is returned by Do while spawns are being refused.
var ErrOpen = errors.New("spawn guard is open")

// State is where a Guard stands between spawns
type State int

const (
	StateClosed State = iota
	StateOpen
	StateTrial
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateTrial:
		return "trial"
	default:
		return "unknown"
	}
}

// Config configures a Guard
type Config struct {
	// Threshold consecutive failed spawns open the guard. Zero or less
	// never opens it.
	Threshold int
	// Cooldown is how long an open guard refuses spawns before letting
	// a single trial through.
	Cooldown time.Duration
	// IsFailure decides whether a spawn error counts toward Threshold.
	// Defaults to everything except context cancellation.
	IsFailure func(err error) bool
	// OnChange is called with the guard's lock held, so it must not call
	// back into the guard.
	OnChange func(from, to State)
}

// Guard refuses process spawns after a run of failures. Once Cooldown has
// passed, one trial spawn is allowed: success closes the guard, failure
// opens it for another Cooldown. Safe for concurrent use.
type Guard struct {
	cfg Config
	now func() time.Time

	mu       sync.Mutex
	state    State
	failures int
	until    time.Time
	// bumped every time the guard opens
	epoch uint64
}

type outcome int

const (
	succeeded outcome = iota
	failed
	uncounted
)

// NewGuard creates a closed guard
func NewGuard(cfg Config) *Guard {
	if cfg.IsFailure == nil {
		cfg.IsFailure = func(err error) bool {
			return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
		}
	}
	return &Guard{cfg: cfg, now: time.Now}
}

// Do calls spawn unless the guard is open, and records the outcome.
// spawn's error is returned unchanged.
func (g *Guard) Do(spawn func() error) error {
	trial, epoch, err := g.acquire()
	if err != nil {
		return err
	}

	err = spawn()
	result := succeeded
	if err != nil {
		result = failed
		if !g.cfg.IsFailure(err) {
			result = uncounted
		}
	}
	g.record(trial, epoch, result)
	return err
}

func (g *Guard) acquire() (trial bool, epoch uint64, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch g.state {
	case StateOpen:
		if g.now().Before(g.until) {
			return false, g.epoch, ErrOpen
		}
		g.setState(StateTrial)
		return true, g.epoch, nil
	case StateTrial:
		// the single trial is still running
		return false, g.epoch, ErrOpen
	}
	return false, g.epoch, nil
}

func (g *Guard) record(trial bool, epoch uint64, result outcome) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if trial {
		switch result {
		case succeeded:
			g.failures = 0
			g.setState(StateClosed)
		case failed:
			g.open()
		case uncounted:
			// until has passed, so the next spawn becomes the trial
			g.setState(StateOpen)
		}
		return
	}

	// Spawns that started before the guard last opened do not move it.
	if g.state != StateClosed || epoch != g.epoch {
		return
	}
	switch result {
	case succeeded:
		g.failures = 0
	case failed:
		g.failures++
		if g.cfg.Threshold > 0 && g.failures >= g.cfg.Threshold {
			g.open()
		}
	}
}

func (g *Guard) open() {
	g.failures = 0
	g.epoch++
	g.until = g.now().Add(g.cfg.Cooldown)
	g.setState(StateOpen)
}

func (g *Guard) setState(to State) {
	if g.state == to {
		return
	}
	from := g.state
	g.state = to
	if g.cfg.OnChange != nil {
		g.cfg.OnChange(from, to)
	}
}
