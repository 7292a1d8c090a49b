package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"elo-sync/internal/storage"

	"github.com/redis/go-redis/v9"
)

const channelPrefix = "elo:kv:"

type Options struct {
	// URL takes precedence over Addr/Password/DB, e.g. redis://:pass@host:6379/0.
	URL      string
	Addr     string
	Password string
	DB       int
}

// Redis stores slots as plain string keys and announces every write on
// elo:kv:<key>.
type Redis struct {
	client *redis.Client
	logger *log.Logger

	warnedUnavailable atomic.Bool

	closeOnce sync.Once
}

type envelope struct {
	Key     string `json:"key"`
	Origin  string `json:"origin,omitempty"`
	Value   []byte `json:"value,omitempty"`
	Deleted bool   `json:"deleted,omitempty"`
}

func NewRedis(ctx context.Context, opts Options, logger *log.Logger) (*Redis, error) {
	ro, err := clientOptions(opts)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(ro)

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", ro.Addr, err)
	}
	if logger != nil {
		logger.Printf("[KV] redis connected | addr=%s db=%d", ro.Addr, ro.DB)
	}
	return &Redis{client: client, logger: logger}, nil
}

func clientOptions(opts Options) (*redis.Options, error) {
	if u := strings.TrimSpace(opts.URL); u != "" {
		ro, err := redis.ParseURL(u)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		return ro, nil
	}
	addr := strings.TrimSpace(opts.Addr)
	if addr == "" {
		addr = "localhost:6379"
	}
	return &redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(opts.Password),
		DB:       opts.DB,
	}, nil
}

func ChannelFor(key string) string {
	return channelPrefix + key
}

func (r *Redis) warnUnavailableOnce(err error) {
	if r.logger == nil {
		return
	}
	if r.warnedUnavailable.CompareAndSwap(false, true) {
		r.logger.Printf("[KV] redis unavailable: %v", err)
	}
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, storage.ErrNotFound
		}
		r.warnUnavailableOnce(err)
		return nil, err
	}
	return b, nil
}

// Put writes the value and publishes it in one MULTI/EXEC so subscribers
// never see an announcement for a write that did not happen.
func (r *Redis) Put(ctx context.Context, key string, value []byte, origin string) error {
	msg, err := json.Marshal(envelope{Key: key, Origin: origin, Value: value})
	if err != nil {
		return err
	}
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, key, value, 0)
		pipe.Publish(ctx, ChannelFor(key), msg)
		return nil
	})
	if err != nil {
		r.warnUnavailableOnce(err)
		return err
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, key string, origin string) error {
	msg, err := json.Marshal(envelope{Key: key, Origin: origin, Deleted: true})
	if err != nil {
		return err
	}
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.Publish(ctx, ChannelFor(key), msg)
		return nil
	})
	if err != nil {
		r.warnUnavailableOnce(err)
		return err
	}
	return nil
}

// Watch subscribes to the key's channel. The subscription is confirmed
// before Watch returns, so writes made afterwards are delivered.
func (r *Redis) Watch(ctx context.Context, key string) (<-chan storage.Change, error) {
	ps := r.client.Subscribe(ctx, ChannelFor(key))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", ChannelFor(key), err)
	}

	out := make(chan storage.Change, storage.FeedBuffer)
	go func() {
		defer close(out)
		defer ps.Close()
		msgs := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-msgs:
				if !ok {
					return
				}
				c, ok := r.decode(key, m.Payload)
				if !ok {
					continue
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

func (r *Redis) decode(key, payload string) (storage.Change, bool) {
	var env envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		if r.logger != nil {
			r.logger.Printf("[KV] redis feed: bad message | channel=%s err=%v", ChannelFor(key), err)
		}
		return storage.Change{}, false
	}
	if env.Key == "" {
		env.Key = key
	}
	return storage.Change{
		Key:      env.Key,
		Value:    env.Value,
		HasValue: true,
		Deleted:  env.Deleted,
		Origin:   env.Origin,
	}, true
}

func (r *Redis) Close() error {
	var err error
	r.closeOnce.Do(func() {
		err = r.client.Close()
	})
	return err
}
