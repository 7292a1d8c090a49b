// Package natskv keeps the slot in a JetStream KeyValue bucket and uses the
// bucket's watcher as the change feed. Entries do not record the writer, so
// a process also sees its own writes on the feed.
package natskv

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"elo-sync/internal/storage"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

type Options struct {
	URL    string
	Bucket string
	// Name is reported to the server as the connection name.
	Name string
}

type KV struct {
	nc     *nats.Conn
	kv     jetstream.KeyValue
	logger *log.Logger
}

func Connect(ctx context.Context, opts Options, logger *log.Logger) (*KV, error) {
	url := strings.TrimSpace(opts.URL)
	if url == "" {
		url = nats.DefaultURL
	}
	bucket := strings.TrimSpace(opts.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("nats bucket is required")
	}
	name := opts.Name
	if name == "" {
		name = "elo-sync"
	}

	nc, err := nats.Connect(url, nats.Name(name), nats.Timeout(10*time.Second))
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", url, err)
	}
	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create jetstream context: %w", err)
	}
	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      bucket,
		Description: "elo-sync user slot",
		History:     1,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("open bucket %s: %w", bucket, err)
	}
	if logger != nil {
		logger.Printf("[KV] nats connected | url=%s bucket=%s", url, bucket)
	}
	return &KV{nc: nc, kv: kv, logger: logger}, nil
}

func (k *KV) Get(ctx context.Context, key string) ([]byte, error) {
	e, err := k.kv.Get(ctx, key)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) || errors.Is(err, jetstream.ErrKeyDeleted) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	return e.Value(), nil
}

func (k *KV) Put(ctx context.Context, key string, value []byte, _ string) error {
	_, err := k.kv.Put(ctx, key, value)
	return err
}

func (k *KV) Delete(ctx context.Context, key string, _ string) error {
	err := k.kv.Delete(ctx, key)
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return nil
	}
	return err
}

func (k *KV) Watch(ctx context.Context, key string) (<-chan storage.Change, error) {
	w, err := k.kv.Watch(ctx, key, jetstream.UpdatesOnly())
	if err != nil {
		return nil, fmt.Errorf("watch %s: %w", key, err)
	}

	out := make(chan storage.Change, storage.FeedBuffer)
	go func() {
		defer close(out)
		defer func() {
			_ = w.Stop()
		}()
		updates := w.Updates()
		for {
			select {
			case <-ctx.Done():
				return
			case e, ok := <-updates:
				if !ok {
					if k.logger != nil {
						k.logger.Printf("[KV] nats feed stopped | key=%s", key)
					}
					return
				}
				if e == nil {
					continue
				}
				c := storage.Change{Key: e.Key(), HasValue: true}
				switch e.Operation() {
				case jetstream.KeyValueDelete, jetstream.KeyValuePurge:
					c.Deleted = true
				default:
					c.Value = e.Value()
				}
				select {
				case out <- c:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (k *KV) Close() error {
	return k.nc.Drain()
}
