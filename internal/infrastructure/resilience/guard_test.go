package resilience

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errNoShell = errors.New("fork/exec /bin/missing: no such file or directory")

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestGuard(threshold int, cooldown time.Duration) (*Guard, *clock) {
	c := &clock{t: time.Unix(1700000000, 0)}
	g := NewGuard(Config{Threshold: threshold, Cooldown: cooldown})
	g.now = c.now
	return g, c
}

func spawnResult(err error) func() error {
	return func() error { return err }
}

func TestGuardSpawnOutcomes(t *testing.T) {
	tests := []struct {
		name     string
		attempts []error // nil = spawn succeeds
		wantOpen bool
	}{
		{"successful spawns pass", []error{nil, nil, nil}, false},
		{"failures below threshold pass", []error{errNoShell, errNoShell}, false},
		{"threshold failures refuse the next spawn", []error{errNoShell, errNoShell, errNoShell}, true},
		{"success resets the streak", []error{errNoShell, errNoShell, nil, errNoShell, errNoShell}, false},
		{"cancellation is not counted", []error{errNoShell, context.Canceled, errNoShell, context.DeadlineExceeded}, false},
		{"cancellation does not reset the streak", []error{errNoShell, context.Canceled, errNoShell, errNoShell}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, _ := newTestGuard(3, time.Minute)
			for _, attempt := range tt.attempts {
				assert.ErrorIs(t, g.Do(spawnResult(attempt)), attempt)
			}

			ran := false
			err := g.Do(func() error {
				ran = true
				return nil
			})
			if tt.wantOpen {
				assert.ErrorIs(t, err, ErrOpen)
				assert.False(t, ran, "spawn ran while guard open")
			} else {
				assert.NoError(t, err)
				assert.True(t, ran)
			}
		})
	}
}

func TestGuardZeroThresholdNeverOpens(t *testing.T) {
	g, _ := newTestGuard(0, time.Minute)
	for i := 0; i < 50; i++ {
		require.ErrorIs(t, g.Do(spawnResult(errNoShell)), errNoShell)
	}
	assert.NoError(t, g.Do(spawnResult(nil)))
}

func TestGuardTrialSuccessCloses(t *testing.T) {
	g, c := newTestGuard(2, time.Minute)
	_ = g.Do(spawnResult(errNoShell))
	_ = g.Do(spawnResult(errNoShell))
	require.ErrorIs(t, g.Do(spawnResult(nil)), ErrOpen)

	c.advance(59 * time.Second)
	require.ErrorIs(t, g.Do(spawnResult(nil)), ErrOpen, "still cooling down")

	c.advance(time.Second)
	require.NoError(t, g.Do(spawnResult(nil)), "trial spawn")

	// Closed again, with a fresh failure budget.
	assert.ErrorIs(t, g.Do(spawnResult(errNoShell)), errNoShell)
	assert.NoError(t, g.Do(spawnResult(nil)))
}

func TestGuardTrialFailureReopens(t *testing.T) {
	g, c := newTestGuard(1, 10*time.Second)
	_ = g.Do(spawnResult(errNoShell))

	c.advance(10 * time.Second)
	assert.ErrorIs(t, g.Do(spawnResult(errNoShell)), errNoShell, "trial spawn")
	assert.ErrorIs(t, g.Do(spawnResult(nil)), ErrOpen)

	c.advance(10 * time.Second)
	assert.NoError(t, g.Do(spawnResult(nil)))
}

func TestGuardCanceledTrialLeavesNextSpawnAsTrial(t *testing.T) {
	g, c := newTestGuard(1, time.Second)
	_ = g.Do(spawnResult(errNoShell))
	c.advance(time.Second)

	assert.ErrorIs(t, g.Do(spawnResult(context.Canceled)), context.Canceled)
	assert.ErrorIs(t, g.Do(spawnResult(errNoShell)), errNoShell, "next spawn is the trial")
	assert.ErrorIs(t, g.Do(spawnResult(nil)), ErrOpen)
}

func TestGuardAllowsOneTrialAtATime(t *testing.T) {
	g, c := newTestGuard(1, time.Second)
	_ = g.Do(spawnResult(errNoShell))
	c.advance(time.Second)

	started := make(chan struct{})
	release := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = g.Do(func() error {
			close(started)
			<-release
			return nil
		})
	}()

	<-started
	assert.ErrorIs(t, g.Do(spawnResult(nil)), ErrOpen, "second spawn during trial")
	close(release)
	wg.Wait()

	assert.NoError(t, g.Do(spawnResult(nil)))
}

func TestGuardLateFailureDoesNotReopen(t *testing.T) {
	g, c := newTestGuard(1, time.Second)

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error)
	go func() {
		done <- g.Do(func() error {
			close(started)
			<-release
			return errNoShell
		})
	}()
	<-started

	// Open the guard and pass a trial while the slow spawn is still running.
	_ = g.Do(spawnResult(errNoShell))
	c.advance(time.Second)
	require.NoError(t, g.Do(spawnResult(nil)))

	close(release)
	assert.ErrorIs(t, <-done, errNoShell)
	assert.NoError(t, g.Do(spawnResult(nil)), "slow failure from before the trial is ignored")
}

func TestGuardReportsTransitions(t *testing.T) {
	var got []string
	c := &clock{t: time.Unix(0, 0)}
	g := NewGuard(Config{
		Threshold: 1,
		Cooldown:  time.Second,
		OnChange: func(from, to State) {
			got = append(got, from.String()+"->"+to.String())
		},
	})
	g.now = c.now

	_ = g.Do(spawnResult(errNoShell))
	c.advance(time.Second)
	_ = g.Do(spawnResult(nil))

	assert.Equal(t, []string{"closed->open", "open->trial", "trial->closed"}, got)
}

func TestGuardCustomFailureClassifier(t *testing.T) {
	errBadSize := errors.New("invalid size")
	g := NewGuard(Config{
		Threshold: 1,
		Cooldown:  time.Minute,
		IsFailure: func(err error) bool { return !errors.Is(err, errBadSize) },
	})

	_ = g.Do(spawnResult(errBadSize))
	assert.NoError(t, g.Do(spawnResult(nil)))

	_ = g.Do(spawnResult(errNoShell))
	assert.ErrorIs(t, g.Do(spawnResult(nil)), ErrOpen)
}
