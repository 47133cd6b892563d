/*
Package resilience keeps the session registry from hammering a host that
cannot spawn processes.

A host out of file descriptors or process slots, or one missing the
configured shell, fails every spawn the same way. After Threshold
consecutive failures a Guard refuses spawns with ErrOpen for Cooldown.
The first spawn after that is a trial: if it succeeds the guard closes,
if it fails the guard stays open for another Cooldown. Other spawns
arriving while the trial runs are refused.

Context cancellation is returned to the caller but never counted.

	guard := resilience.NewGuard(resilience.Config{
		Threshold: 5,
		Cooldown:  30 * time.Second,
	})

	err := guard.Do(func() error {
		ptmx, err = pty.StartWithSize(cmd, size)
		return err
	})
*/
package resilience
