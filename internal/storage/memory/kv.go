// Package memory is an in-process storage.KV. Every store sharing one KV sees
// the others' writes through Watch, the way tabs over one browser profile do.
package memory

import (
	"context"
	"log"
	"slices"
	"sync"

	"elo-sync/internal/storage"
)

type watcher struct {
	key string
	ch  chan storage.Change
}

type KV struct {
	mu       sync.RWMutex
	data     map[string][]byte
	watchers map[*watcher]struct{}
	closed   bool
	logger   *log.Logger
}

func New(logger *log.Logger) *KV {
	return &KV{
		data:     map[string][]byte{},
		watchers: map[*watcher]struct{}{},
		logger:   logger,
	}
}

func (m *KV) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return slices.Clone(v), nil
}

func (m *KV) Put(ctx context.Context, key string, value []byte, origin string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	m.data[key] = slices.Clone(value)
	targets := m.watchersFor(key)
	m.mu.Unlock()

	m.fanOut(targets, storage.Change{Key: key, Value: slices.Clone(value), HasValue: true, Origin: origin})
	return nil
}

func (m *KV) Delete(ctx context.Context, key string, origin string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.data, key)
	targets := m.watchersFor(key)
	m.mu.Unlock()

	m.fanOut(targets, storage.Change{Key: key, HasValue: true, Deleted: true, Origin: origin})
	return nil
}

func (m *KV) Watch(ctx context.Context, key string) (<-chan storage.Change, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	w := &watcher{key: key, ch: make(chan storage.Change, storage.FeedBuffer)}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		close(w.ch)
		return w.ch, nil
	}
	m.watchers[w] = struct{}{}
	m.mu.Unlock()

	go func() {
		<-ctx.Done()
		m.mu.Lock()
		if _, ok := m.watchers[w]; ok {
			delete(m.watchers, w)
			close(w.ch)
		}
		m.mu.Unlock()
	}()

	return w.ch, nil
}

func (m *KV) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	for w := range m.watchers {
		delete(m.watchers, w)
		close(w.ch)
	}
	return nil
}

func (m *KV) WatcherCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.watchers)
}

func (m *KV) watchersFor(key string) []*watcher {
	out := make([]*watcher, 0, len(m.watchers))
	for w := range m.watchers {
		if w.key == key {
			out = append(out, w)
		}
	}
	return out
}

// fanOut never blocks the writer: a watcher whose buffer is full misses the
// change and is told so in the log.
func (m *KV) fanOut(targets []*watcher, c storage.Change) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, w := range targets {
		if _, ok := m.watchers[w]; !ok {
			continue
		}
		select {
		case w.ch <- c:
		default:
			if m.logger != nil {
				m.logger.Printf("[KV] memory feed dropped | key=%s reason=buffer_full", c.Key)
			}
		}
	}
}
