package postgres

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"elo-sync/internal/database"
	"elo-sync/internal/storage"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/require"
)

type fakeSub struct {
	notes  chan database.Notification
	failed chan error
	closed chan struct{}
	once   sync.Once
}

func newFakeSub() *fakeSub {
	return &fakeSub{
		notes:  make(chan database.Notification, 8),
		failed: make(chan error, 1),
		closed: make(chan struct{}),
	}
}

func (s *fakeSub) Next(ctx context.Context) (database.Notification, error) {
	select {
	case n := <-s.notes:
		return n, nil
	case err := <-s.failed:
		return database.Notification{}, err
	case <-ctx.Done():
		return database.Notification{}, ctx.Err()
	}
}

func (s *fakeSub) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}

func (s *fakeSub) notify(payload string) {
	s.notes <- database.Notification{Channel: NotifyChannel, Payload: payload}
}

// listenDB hands out queued subscriptions; an empty queue fails the LISTEN.
type listenDB struct {
	database.DB

	mu    sync.Mutex
	subs  []*fakeSub
	calls int
}

func (d *listenDB) Listen(ctx context.Context, channel string) (database.Subscription, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	if len(d.subs) == 0 {
		return nil, errors.New("connection refused")
	}
	s := d.subs[0]
	d.subs = d.subs[1:]
	return s, nil
}

func (d *listenDB) queue(s *fakeSub) {
	d.mu.Lock()
	d.subs = append(d.subs, s)
	d.mu.Unlock()
}

func (d *listenDB) listenCalls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

func nextChange(t *testing.T, feed <-chan storage.Change) storage.Change {
	t.Helper()
	select {
	case c, ok := <-feed:
		require.True(t, ok, "feed closed")
		return c
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for change")
		return storage.Change{}
	}
}

func TestKVRepository_WatchRelistensAfterConnectionLoss(t *testing.T) {
	first, second := newFakeSub(), newFakeSub()
	db := &listenDB{subs: []*fakeSub{first}}
	kv := NewKVRepository(db, nil)
	kv.newBackOff = func() backoff.BackOff { return backoff.NewConstantBackOff(5 * time.Millisecond) }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	feed, err := kv.Watch(ctx, "elo")
	require.NoError(t, err)

	first.notify(`{"key":"other","origin":"b"}`)
	first.notify(`{"key":"elo","origin":"b"}`)
	require.Equal(t, storage.Change{Key: "elo", Origin: "b"}, nextChange(t, feed))

	// Let a few LISTEN attempts fail before the database comes back.
	first.failed <- errors.New("conn closed")
	<-first.closed
	require.Eventually(t, func() bool { return db.listenCalls() >= 3 }, 2*time.Second, 5*time.Millisecond)
	db.queue(second)

	require.Equal(t, storage.Change{Key: "elo"}, nextChange(t, feed))

	second.notify(`{"key":"elo","origin":"c","deleted":true}`)
	require.Equal(t, storage.Change{Key: "elo", Origin: "c", Deleted: true}, nextChange(t, feed))

	cancel()
	select {
	case _, ok := <-feed:
		require.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatalf("feed did not close after cancel")
	}
	<-second.closed
}

func TestKVRepository_WatchInitialListenError(t *testing.T) {
	kv := NewKVRepository(&listenDB{}, nil)
	_, err := kv.Watch(context.Background(), "elo")
	require.Error(t, err)
}
