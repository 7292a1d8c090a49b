// Package storagetest holds the behaviour every storage.KV backend shares,
// so each backend's tests only need to construct one.
package storagetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"elo-sync/internal/storage"

	"github.com/stretchr/testify/require"
)

type Caps struct {
	// Origin is set when the feed reports the writer's origin.
	Origin bool
	// Payload is set when the feed carries the written value.
	Payload bool
}

// Next waits for one change or fails the test.
func Next(t *testing.T, feed <-chan storage.Change) storage.Change {
	t.Helper()
	select {
	case c, ok := <-feed:
		require.True(t, ok, "feed closed early")
		return c
	case <-time.After(10 * time.Second):
		t.Fatalf("timed out waiting for change")
	}
	return storage.Change{}
}

func Run(t *testing.T, kv storage.KV, caps Caps) {
	t.Run("GetMissing", func(t *testing.T) {
		_, err := kv.Get(context.Background(), "missing-"+t.Name())
		require.True(t, errors.Is(err, storage.ErrNotFound), "got %v", err)
	})

	t.Run("PutGetDelete", func(t *testing.T) {
		ctx := context.Background()
		key := "roundtrip"
		require.NoError(t, kv.Put(ctx, key, []byte(`{"elo":1850}`), "a"))
		got, err := kv.Get(ctx, key)
		require.NoError(t, err)
		require.JSONEq(t, `{"elo":1850}`, string(got))

		require.NoError(t, kv.Put(ctx, key, []byte(`{"elo":1875}`), "a"))
		got, err = kv.Get(ctx, key)
		require.NoError(t, err)
		require.JSONEq(t, `{"elo":1875}`, string(got))

		require.NoError(t, kv.Delete(ctx, key, "a"))
		_, err = kv.Get(ctx, key)
		require.True(t, errors.Is(err, storage.ErrNotFound), "got %v", err)
	})

	t.Run("Feed", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		key := "watched"

		feed, err := kv.Watch(ctx, key)
		require.NoError(t, err)

		require.NoError(t, kv.Put(context.Background(), key, []byte(`{"elo":1200}`), "writer"))
		c := Next(t, feed)
		require.Equal(t, key, c.Key)
		require.False(t, c.Deleted)
		if caps.Origin {
			require.Equal(t, "writer", c.Origin)
		}
		if caps.Payload {
			require.True(t, c.HasValue)
			require.JSONEq(t, `{"elo":1200}`, string(c.Value))
		}

		require.NoError(t, kv.Delete(context.Background(), key, "writer"))
		c = Next(t, feed)
		require.Equal(t, key, c.Key)
		require.True(t, c.Deleted)
	})

	t.Run("FeedIgnoresOtherKeys", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		feed, err := kv.Watch(ctx, "mine")
		require.NoError(t, err)

		require.NoError(t, kv.Put(context.Background(), "theirs", []byte(`{}`), "x"))
		require.NoError(t, kv.Put(context.Background(), "mine", []byte(`{"elo":7}`), "x"))

		c := Next(t, feed)
		require.Equal(t, "mine", c.Key)
	})

	t.Run("FeedClosesOnCancel", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		feed, err := kv.Watch(ctx, "cancelled")
		require.NoError(t, err)
		cancel()

		deadline := time.After(10 * time.Second)
		for {
			select {
			case _, ok := <-feed:
				if !ok {
					return
				}
			case <-deadline:
				t.Fatalf("feed not closed after cancel")
			}
		}
	})
}
