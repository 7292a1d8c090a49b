package app

import (
	"context"
	"log"
	"time"

	"github.com/cenkalti/backoff/v4"
)

type watcher interface {
	Watch(ctx context.Context) error
	Refresh(ctx context.Context) int
}

func watchBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 0
	return b
}

// keepWatching runs w.Watch until ctx is done. A failed feed is restarted
// with backoff and followed by a refresh, so listeners catch up on whatever
// changed while nobody was watching.
func keepWatching(ctx context.Context, w watcher, newBackOff func() backoff.BackOff, logger *log.Logger) {
	b := backoff.WithContext(newBackOff(), ctx)
	for {
		started := time.Now()
		err := w.Watch(ctx)
		if ctx.Err() != nil {
			return
		}
		if time.Since(started) > time.Minute {
			b.Reset()
		}
		wait := b.NextBackOff()
		if wait == backoff.Stop {
			return
		}
		if logger != nil {
			logger.Printf("[Watch] feed failed, restarting | retry_in=%s err=%v", wait, err)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
		w.Refresh(ctx)
	}
}
