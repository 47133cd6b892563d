package session

import (
	"sync"
	"time"

	"github.com/GriffinCanCode/termstream/internal/shared/id"
	"github.com/GriffinCanCode/termstream/internal/terminal/escape"
	"go.uber.org/zap"
)

// Session is one pty-backed child process. The machine is touched only by
// the session's reader goroutine.
type Session struct {
	id        id.SessionID
	shell     string
	proc      *process
	machine   *escape.Machine
	logger    *zap.Logger
	createdAt time.Time

	mu           sync.Mutex
	cols, rows   int
	status       Status
	lastActivity time.Time
	closing      bool
	idle         *time.Timer
	final        Info

	readDone chan struct{} // reader has returned
	exited   chan struct{} // process reaped
	done     chan struct{} // resources released, final populated
}

func newSession(sid id.SessionID, cfg Config, proc *process, cols, rows int, logger *zap.Logger) *Session {
	now := time.Now()
	// CreatedAt is the time encoded in the id.
	created, err := sid.Timestamp()
	if err != nil {
		created = now
	}
	return &Session{
		id:           sid,
		shell:        cfg.Shell,
		proc:         proc,
		machine:      escape.New(cfg.Escape),
		logger:       logger,
		createdAt:    created,
		cols:         cols,
		rows:         rows,
		status:       StatusActive,
		lastActivity: now,
		readDone:     make(chan struct{}),
		exited:       make(chan struct{}),
		done:         make(chan struct{}),
	}
}

// startIdleTimer arms idle detection. Must run before the reader starts.
func (s *Session) startIdleTimer(after time.Duration) {
	if after <= 0 {
		return
	}
	s.idle = time.AfterFunc(after, s.markIdle)
}

func (s *Session) markIdle() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == StatusActive {
		s.status = StatusIdle
		s.logger.Debug("Session idle", zap.Duration("quiet_for", time.Since(s.lastActivity)))
	}
}

// touch records output and rearms the idle timer.
func (s *Session) touch(idleAfter time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastActivity = time.Now()
	if s.status == StatusIdle {
		s.status = StatusActive
		s.logger.Debug("Session active")
	}
	if s.idle != nil && !s.status.Terminal() {
		s.idle.Reset(idleAfter)
	}
}

// beginClose marks the session as closed by its owner. It reports false if
// another caller got there first.
func (s *Session) beginClose() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closing {
		return false
	}
	s.closing = true
	return true
}

// finish moves the session to its terminal status. The pty must already be
// closed.
func (s *Session) finish(waitErr error) Info {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.idle != nil {
		s.idle.Stop()
	}

	switch {
	case s.closing, waitErr == nil:
		s.status = StatusCompleted
	default:
		s.status = StatusErrored
	}

	s.final = s.infoLocked()
	return s.final
}

func (s *Session) info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.infoLocked()
}

func (s *Session) infoLocked() Info {
	var exitCode *int
	select {
	case <-s.exited:
		exitCode = s.proc.exitCode()
	default:
	}

	return Info{
		ID:           s.id,
		Shell:        s.shell,
		PID:          s.proc.pid(),
		Cols:         s.cols,
		Rows:         s.rows,
		Status:       s.status,
		CreatedAt:    s.createdAt,
		LastActivity: s.lastActivity,
		ExitCode:     exitCode,
	}
}

func (s *Session) finalInfo() Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.final
}
