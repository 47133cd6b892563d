// Package session owns pty-backed child processes and turns their output
// into decoded chunks for the broadcaster.
//
// Each session runs two goroutines. The reader owns the session's
// escape.Machine and publishes chunks in read order. The waiter reaps the
// process and then releases everything in a fixed order: pty, status,
// registry entry, broadcaster topic. Subscribers therefore see their stream
// end only after the session's final status is known.
//
// Lifecycle:
//
//	Active <-> Idle      output / IdleAfter of quiet
//	  |
//	  +--> Completed     exit code 0, or closed by the caller
//	  +--> Errored       nonzero exit or killed by a signal
//
// Close sends SIGHUP and SIGTERM to the process group, waits up to
// GracePeriod, then sends SIGKILL. Spawns go through a resilience.Guard so a
// host that cannot fork fails fast.
//
// Example Usage:
//
//	b := broadcast.New(broadcast.DefaultOptions())
//	reg := session.NewRegistry(session.DefaultConfig(), b)
//
//	sid, err := reg.Create(ctx, 80, 24)
//	sub, err := reg.Subscribe(sid)
//	_ = reg.Write(sid, []byte("ls\n"))
//	_ = reg.Resize(sid, 120, 40)
//	_ = reg.Close(sid)
package session
