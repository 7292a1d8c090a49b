package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"elo-sync/internal/database"
	"elo-sync/internal/storage"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5"
)

// NotifyChannel carries {key, origin, deleted} for every write. The value is
// left out to stay under the NOTIFY payload limit, so watchers re-read.
const NotifyChannel = "kv_changed"

type notifyPayload struct {
	Key     string `json:"key"`
	Origin  string `json:"origin,omitempty"`
	Deleted bool   `json:"deleted,omitempty"`
}

type KVRepository struct {
	db         database.DB
	logger     *log.Logger
	newBackOff func() backoff.BackOff
}

func NewKVRepository(db database.DB, logger *log.Logger) *KVRepository {
	return &KVRepository{db: db, logger: logger, newBackOff: listenBackOff}
}

// listenBackOff paces LISTEN retries after the dedicated connection drops.
// It never gives up; the watcher's context ends the retries.
func listenBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 250 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 0
	return b
}

func (r *KVRepository) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := r.db.QueryRow(ctx, `SELECT value FROM kv_store WHERE key = $1`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	return value, nil
}

func (r *KVRepository) Put(ctx context.Context, key string, value []byte, origin string) error {
	return r.inTx(ctx, notifyPayload{Key: key, Origin: origin}, func(tx database.Tx) error {
		_, err := tx.Exec(ctx, `
INSERT INTO kv_store (key, value, origin, updated_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (key) DO UPDATE
SET value = EXCLUDED.value,
	origin = EXCLUDED.origin,
	revision = kv_store.revision + 1,
	updated_at = now()`, key, value, origin)
		return err
	})
}

func (r *KVRepository) Delete(ctx context.Context, key string, origin string) error {
	return r.inTx(ctx, notifyPayload{Key: key, Origin: origin, Deleted: true}, func(tx database.Tx) error {
		_, err := tx.Exec(ctx, `DELETE FROM kv_store WHERE key = $1`, key)
		return err
	})
}

// inTx runs write and queues the notification in one transaction; Postgres
// delivers it on commit only.
func (r *KVRepository) inTx(ctx context.Context, p notifyPayload, write func(tx database.Tx) error) error {
	msg, err := json.Marshal(p)
	if err != nil {
		return err
	}
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := write(tx); err != nil {
		return fmt.Errorf("kv write %s: %w", p.Key, err)
	}
	if _, err := tx.Exec(ctx, `SELECT pg_notify($1, $2)`, NotifyChannel, string(msg)); err != nil {
		return fmt.Errorf("kv notify %s: %w", p.Key, err)
	}
	return tx.Commit(ctx)
}

func (r *KVRepository) Watch(ctx context.Context, key string) (<-chan storage.Change, error) {
	sub, err := r.db.Listen(ctx, NotifyChannel)
	if err != nil {
		return nil, err
	}

	out := make(chan storage.Change, storage.FeedBuffer)
	go func() {
		defer close(out)
		for sub != nil {
			r.relay(ctx, sub, key, out)
			_ = sub.Close()
			sub = r.relisten(ctx, key)
			if sub == nil {
				return
			}
			// Anything written while disconnected was missed; make the
			// watcher re-read.
			select {
			case out <- storage.Change{Key: key}:
			case <-ctx.Done():
				_ = sub.Close()
				return
			}
		}
	}()
	return out, nil
}

// relay forwards notifications for key until the subscription fails or ctx
// is done.
func (r *KVRepository) relay(ctx context.Context, sub database.Subscription, key string, out chan<- storage.Change) {
	for {
		n, err := sub.Next(ctx)
		if err != nil {
			if ctx.Err() == nil {
				r.logf("[KV] postgres listener lost | key=%s err=%v", key, err)
			}
			return
		}
		var p notifyPayload
		if err := json.Unmarshal([]byte(n.Payload), &p); err != nil {
			r.logf("[KV] postgres feed: bad payload | err=%v", err)
			continue
		}
		if p.Key != key {
			continue
		}
		select {
		case out <- storage.Change{Key: p.Key, Deleted: p.Deleted, Origin: p.Origin}:
		case <-ctx.Done():
			return
		}
	}
}

// relisten retries LISTEN with backoff. It returns nil once ctx is done.
func (r *KVRepository) relisten(ctx context.Context, key string) database.Subscription {
	b := backoff.WithContext(r.newBackOff(), ctx)
	for {
		wait := b.NextBackOff()
		if wait == backoff.Stop {
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
		sub, err := r.db.Listen(ctx, NotifyChannel)
		if err == nil {
			r.logf("[KV] postgres listener restored | key=%s", key)
			return sub
		}
		if ctx.Err() != nil {
			return nil
		}
		r.logf("[KV] postgres relisten failed | key=%s retry_in=%s err=%v", key, wait, err)
	}
}

func (r *KVRepository) logf(format string, args ...any) {
	if r.logger != nil {
		r.logger.Printf(format, args...)
	}
}

// Close is a no-op; the pool belongs to whoever opened it.
func (r *KVRepository) Close() error {
	return nil
}
