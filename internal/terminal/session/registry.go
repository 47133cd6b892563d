package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"sync"
	"syscall"
	"time"

	"github.com/GriffinCanCode/termstream/internal/infrastructure/logging"
	"github.com/GriffinCanCode/termstream/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/termstream/internal/shared/id"
	"github.com/GriffinCanCode/termstream/internal/terminal/broadcast"
	"github.com/GriffinCanCode/termstream/internal/terminal/escape"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// Option configures a Registry
type Option func(*Registry)

// WithLogger sets the registry logger
func WithLogger(logger *zap.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithRecorder sets the activity recorder
func WithRecorder(rec Recorder) Option {
	return func(r *Registry) {
		if rec != nil {
			r.recorder = rec
		}
	}
}

// WithSpawnGuard replaces the spawn guard built from Config
func WithSpawnGuard(g *resilience.Guard) Option {
	return func(r *Registry) {
		if g != nil {
			r.guard = g
		}
	}
}

// Registry owns every live session
type Registry struct {
	cfg         Config
	broadcaster *broadcast.Broadcaster
	logger      *zap.Logger
	recorder    Recorder
	guard       *resilience.Guard

	mu       sync.Mutex
	sessions map[id.SessionID]*Session
	closed   bool
}

// NewRegistry creates a session registry publishing to b
func NewRegistry(cfg Config, b *broadcast.Broadcaster, opts ...Option) *Registry {
	if cfg.ReadBufferSize <= 0 {
		cfg.ReadBufferSize = DefaultConfig().ReadBufferSize
	}

	r := &Registry{
		cfg:         cfg,
		broadcaster: b,
		logger:      zap.NewNop(),
		recorder:    nopRecorder{},
		sessions:    make(map[id.SessionID]*Session),
	}
	for _, opt := range opts {
		opt(r)
	}

	if r.guard == nil {
		r.guard = resilience.NewGuard(resilience.Config{
			Threshold: cfg.SpawnFailures,
			Cooldown:  cfg.SpawnCooldown,
			OnChange: func(from, to resilience.State) {
				r.logger.Warn("Spawn guard state changed",
					zap.Stringer("from", from),
					zap.Stringer("to", to))
			},
		})
	}
	return r
}

// Create spawns the configured shell on a cols x rows pty and starts
// decoding its output. On error no session exists.
func (r *Registry) Create(ctx context.Context, cols, rows int) (id.SessionID, error) {
	if !validSize(cols, rows) {
		return "", fmt.Errorf("%w: %dx%d", ErrInvalidSize, cols, rows)
	}
	if err := ctx.Err(); err != nil {
		return "", r.spawnFailed(ReasonCanceled, err)
	}
	if r.isClosed() {
		return "", r.spawnFailed(ReasonShutdown, nil)
	}

	var proc *process
	err := r.guard.Do(func() error {
		var err error
		proc, err = startProcess(r.cfg, cols, rows)
		return err
	})
	if err != nil {
		reason := ReasonStart
		if errors.Is(err, resilience.ErrOpen) {
			reason = ReasonCircuitOpen
		}
		return "", r.spawnFailed(reason, err)
	}

	sid := id.NewSessionID()
	s := newSession(sid, r.cfg, proc, cols, rows, logging.Session(r.logger, sid))
	r.broadcaster.Open(sid)
	r.recorder.SessionStarted()

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		r.start(s)
		r.terminate(s)
		return "", r.spawnFailed(ReasonShutdown, nil)
	}
	r.sessions[sid] = s
	r.mu.Unlock()

	r.start(s)

	s.logger.Info("Session created",
		zap.String("shell", r.cfg.Shell),
		zap.Int("pid", proc.pid()),
		zap.Int("cols", cols),
		zap.Int("rows", rows))
	return sid, nil
}

func (r *Registry) spawnFailed(reason string, err error) error {
	r.recorder.SpawnFailed(reason)
	r.logger.Error("Session spawn failed", zap.String("reason", reason), zap.Error(err))
	return &SpawnError{Reason: reason, Err: err}
}

func (r *Registry) start(s *Session) {
	s.startIdleTimer(r.cfg.IdleAfter)
	go r.read(s)
	go r.wait(s)
}

// read is the only goroutine that touches the session's machine.
func (r *Registry) read(s *Session) {
	defer close(s.readDone)

	buf := make([]byte, r.cfg.ReadBufferSize)
	for {
		n, err := s.proc.pty.Read(buf)
		if n > 0 {
			s.touch(r.cfg.IdleAfter)
			r.publish(s, n, s.machine.Process(buf[:n]))
		}
		if err != nil {
			// EIO is how Linux reports a hung-up pty once the child exits
			if !errors.Is(err, io.EOF) && !errors.Is(err, os.ErrClosed) && !errors.Is(err, syscall.EIO) {
				s.logger.Warn("Pty read failed", zap.Error(err))
			}
			break
		}
	}

	r.publish(s, 0, s.machine.Flush())
}

func (r *Registry) publish(s *Session, n int, chunk escape.DecodedChunk) {
	r.recorder.OutputDecoded(n, chunk)
	if chunk.Empty() {
		return
	}

	if ce := s.logger.Check(zap.DebugLevel, "Chunk decoded"); ce != nil {
		described := make([]string, len(chunk.Events))
		for i, ev := range chunk.Events {
			described[i] = escape.Describe(ev)
		}
		ce.Write(zap.Int("width", chunk.Width), zap.Strings("events", described))
	}

	if dropped := r.broadcaster.Publish(s.id, chunk); dropped > 0 {
		r.recorder.SubscriberLag(dropped)
	}
}

// wait reaps the process and releases everything the session owns: pty
// first, then the status change, then registry and broadcaster entries.
func (r *Registry) wait(s *Session) {
	waitErr := s.proc.cmd.Wait()
	close(s.exited)

	drain := time.NewTimer(r.drainTimeout())
	select {
	case <-s.readDone:
	case <-drain.C:
		s.logger.Warn("Pty still open after exit, closing")
	}
	drain.Stop()

	if err := s.proc.pty.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
		s.logger.Warn("Failed to close pty", zap.Error(err))
	}

	info := s.finish(waitErr)

	r.mu.Lock()
	if r.sessions[s.id] == s {
		delete(r.sessions, s.id)
	}
	r.mu.Unlock()

	r.recorder.SessionEnded(info.Status.String())
	close(s.done)
	r.broadcaster.CloseSession(s.id)

	fields := []zap.Field{zap.Stringer("status", info.Status)}
	if info.ExitCode != nil {
		fields = append(fields, zap.Int("exit_code", *info.ExitCode))
	}
	if waitErr != nil {
		fields = append(fields, zap.Error(waitErr))
	}
	s.logger.Info("Session ended", fields...)
}

func (r *Registry) drainTimeout() time.Duration {
	if r.cfg.GracePeriod > 0 {
		return r.cfg.GracePeriod
	}
	return time.Second
}

// terminate signals the process group and blocks until the session's
// resources are released.
func (r *Registry) terminate(s *Session) {
	if !s.beginClose() {
		<-s.done
		return
	}

	select {
	case <-s.exited:
	default:
		// Interactive shells ignore SIGTERM; SIGHUP is what a closing
		// terminal delivers.
		for _, sig := range []unix.Signal{unix.SIGHUP, unix.SIGTERM} {
			if err := s.proc.signal(sig); err != nil {
				s.logger.Warn("Failed to signal process group", zap.Stringer("signal", sig), zap.Error(err))
			}
		}

		grace := time.NewTimer(r.cfg.GracePeriod)
		select {
		case <-s.exited:
		case <-grace.C:
			s.logger.Warn("Grace period expired, killing process group", zap.Duration("grace", r.cfg.GracePeriod))
			if err := s.proc.signal(unix.SIGKILL); err != nil {
				s.logger.Error("Failed to kill process group", zap.Error(err))
			}
		}
		grace.Stop()
	}

	<-s.done
}

// Resize records the new size and propagates it to the pty, which sends
// SIGWINCH to the foreground process group. The decoder is not touched.
func (r *Registry) Resize(sid id.SessionID, cols, rows int) error {
	s, ok := r.get(sid)
	if !ok {
		return ErrNotFound
	}
	if !validSize(cols, rows) {
		return fmt.Errorf("%w: %dx%d", ErrInvalidSize, cols, rows)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.cols, s.rows = cols, rows
	if err := s.proc.resize(cols, rows); err != nil {
		// the process may be exiting; the recorded size still stands
		s.logger.Warn("Pty resize failed", zap.Int("cols", cols), zap.Int("rows", rows), zap.Error(err))
		return nil
	}
	s.logger.Debug("Session resized", zap.Int("cols", cols), zap.Int("rows", rows))
	return nil
}

// Write sends input to the session's pty
func (r *Registry) Write(sid id.SessionID, p []byte) error {
	s, ok := r.get(sid)
	if !ok {
		return ErrNotFound
	}

	select {
	case <-s.exited:
		return ErrSessionClosed
	default:
	}

	if _, err := s.proc.pty.Write(p); err != nil {
		if errors.Is(err, os.ErrClosed) || errors.Is(err, syscall.EIO) {
			return ErrSessionClosed
		}
		return fmt.Errorf("failed to write to session %s: %w", sid, err)
	}
	return nil
}

// Close terminates the session and releases its resources. Unknown and
// already closed ids are a no-op.
func (r *Registry) Close(sid id.SessionID) error {
	r.mu.Lock()
	s, ok := r.sessions[sid]
	if ok {
		delete(r.sessions, sid)
	}
	r.mu.Unlock()

	if !ok {
		return nil
	}

	s.logger.Info("Closing session")
	r.terminate(s)
	return nil
}

// List returns a sorted snapshot of live session ids
func (r *Registry) List() []id.SessionID {
	r.mu.Lock()
	ids := make([]id.SessionID, 0, len(r.sessions))
	for sid := range r.sessions {
		ids = append(ids, sid)
	}
	r.mu.Unlock()

	slices.Sort(ids)
	return ids
}

// Snapshot returns info for every live session, ordered by id
func (r *Registry) Snapshot() []Info {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.Unlock()

	infos := make([]Info, len(sessions))
	for i, s := range sessions {
		infos[i] = s.info()
	}
	slices.SortFunc(infos, func(a, b Info) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		default:
			return 0
		}
	})
	return infos
}

// Get returns a snapshot of one session
func (r *Registry) Get(sid id.SessionID) (Info, error) {
	s, ok := r.get(sid)
	if !ok {
		return Info{}, ErrNotFound
	}
	return s.info(), nil
}

// Subscribe attaches a new observer to the session's decoded output. The
// subscription ends when the session does.
func (r *Registry) Subscribe(sid id.SessionID) (*broadcast.Subscription, error) {
	if _, ok := r.get(sid); !ok {
		return nil, ErrNotFound
	}
	sub, err := r.broadcaster.Subscribe(sid)
	if errors.Is(err, broadcast.ErrUnknownSession) {
		return nil, ErrNotFound
	}
	return sub, err
}

// Unsubscribe detaches an observer. Safe after the session has ended.
func (r *Registry) Unsubscribe(sub *broadcast.Subscription) {
	r.broadcaster.Unsubscribe(sub)
}

// Done returns a channel that yields the session's final info once it has
// ended and released its resources.
func (r *Registry) Done(sid id.SessionID) (<-chan Info, error) {
	s, ok := r.get(sid)
	if !ok {
		return nil, ErrNotFound
	}

	ch := make(chan Info, 1)
	go func() {
		<-s.done
		ch <- s.finalInfo()
	}()
	return ch, nil
}

// Wait blocks until the session ends and returns its final info
func (r *Registry) Wait(ctx context.Context, sid id.SessionID) (Info, error) {
	done, err := r.Done(sid)
	if err != nil {
		return Info{}, err
	}

	select {
	case info := <-done:
		return info, nil
	case <-ctx.Done():
		return Info{}, ctx.Err()
	}
}

// Shutdown closes every session and refuses new ones
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	sessions := make([]*Session, 0, len(r.sessions))
	for sid, s := range r.sessions {
		sessions = append(sessions, s)
		delete(r.sessions, sid)
	}
	r.mu.Unlock()

	if len(sessions) > 0 {
		r.logger.Info("Shutting down sessions", zap.Int("count", len(sessions)))
	}

	var wg sync.WaitGroup
	for _, s := range sessions {
		wg.Add(1)
		go func(s *Session) {
			defer wg.Done()
			r.terminate(s)
		}(s)
	}

	finished := make(chan struct{})
	go func() {
		wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Registry) get(sid id.SessionID) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sid]
	return s, ok
}

func (r *Registry) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}
