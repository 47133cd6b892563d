// Package broadcast fans decoded session output out to subscribers.
//
// Every subscription owns a bounded queue. Publishing never blocks the
// session reader: a subscriber that falls behind loses its oldest queued
// chunks, and the number lost is reported on the next message it receives.
// Other subscribers of the same session are unaffected.
//
// Example Usage:
//
//	b := broadcast.New(broadcast.DefaultOptions())
//	b.Open(sessionID)
//	sub, _ := b.Subscribe(sessionID)
//	defer b.Unsubscribe(sub)
//
//	for {
//	    msg, err := sub.Next(ctx)
//	    if err != nil {
//	        return
//	    }
//	    if msg.Dropped > 0 {
//	        // this subscriber lagged
//	    }
//	}
package broadcast
