package session

import (
	"context"
	"time"
)

// elapsedTimer ticks while a session is Active. Each tick recomputes the
// elapsed time from the wall clock. Stop blocks until the goroutine exits, so
// no tick is delivered after Stop returns.
type elapsedTimer struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func startTimer(start time.Time, interval time.Duration, now func() time.Time, onTick func(time.Duration)) *elapsedTimer {
	ctx, cancel := context.WithCancel(context.Background())
	t := &elapsedTimer{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(t.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				// A stop may race the tick; ctx wins
				if ctx.Err() != nil {
					return
				}
				onTick(elapsedSince(start, now()))
			}
		}
	}()
	return t
}

func (t *elapsedTimer) Stop() {
	if t == nil {
		return
	}
	t.cancel()
	<-t.done
}

func elapsedSince(start, now time.Time) time.Duration {
	d := now.Sub(start)
	if d < 0 {
		return 0
	}
	return d.Truncate(time.Second)
}
