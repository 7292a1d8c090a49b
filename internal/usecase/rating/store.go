package rating

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"elo-sync/internal/domain/user"
	"elo-sync/internal/storage"

	"github.com/google/uuid"
)

const (
	DefaultKey    = "loggedInUser"
	DefaultRating = 1200
)

// NoUserPolicy decides what SetRating and AddDelta do while nobody is logged in.
type NoUserPolicy string

const (
	// NoUserTransient keeps a rating in memory for this context only and
	// notifies local listeners. Nothing is persisted.
	NoUserTransient NoUserPolicy = "transient"
	// NoUserIgnore turns mutations into no-ops.
	NoUserIgnore NoUserPolicy = "ignore"
)

func ParsePolicy(s string) (NoUserPolicy, error) {
	switch NoUserPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", NoUserTransient:
		return NoUserTransient, nil
	case NoUserIgnore:
		return NoUserIgnore, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidPolicy, s)
	}
}

var (
	ErrInvalidPolicy = errors.New("invalid no-user policy")
	ErrNoUser        = errors.New("no user logged in")
)

type Source string

const (
	SourceLocal   Source = "local"
	SourceRemote  Source = "remote"
	SourceRefresh Source = "refresh"
)

// Change is the ratingChanged notification.
type Change struct {
	Rating int    `json:"newRating"`
	Source Source `json:"source"`
}

type Listener func(Change)

type Options struct {
	Key           string
	DefaultRating int
	Policy        NoUserPolicy
	// Origin identifies this context on the backend feed. A random id is
	// used when empty.
	Origin string
	Logger *log.Logger
}

// Store is the single source of truth for one context's view of the user
// record. Reads never fail: backend errors and malformed data degrade to the
// configured default.
type Store struct {
	kv     storage.KV
	key    string
	def    int
	policy NoUserPolicy
	origin string
	logger *log.Logger

	// mutMu serialises read-modify-write sequences of this context.
	mutMu sync.Mutex

	mu        sync.Mutex
	transient *int
	listeners map[uint64]Listener
	order     []uint64
	nextID    uint64
}

func NewStore(kv storage.KV, opts Options) *Store {
	key := strings.TrimSpace(opts.Key)
	if key == "" {
		key = DefaultKey
	}
	policy := opts.Policy
	if policy == "" {
		policy = NoUserTransient
	}
	origin := strings.TrimSpace(opts.Origin)
	if origin == "" {
		origin = uuid.NewString()
	}
	return &Store{
		kv:        kv,
		key:       key,
		def:       user.ClampRating(opts.DefaultRating),
		policy:    policy,
		origin:    origin,
		logger:    opts.Logger,
		listeners: map[uint64]Listener{},
	}
}

func (s *Store) Key() string { return s.key }

func (s *Store) Origin() string { return s.origin }

func (s *Store) Policy() NoUserPolicy { return s.policy }

func (s *Store) DefaultRating() int { return s.def }

// Rating returns the stored rating, the transient one when no user is stored,
// or the default.
func (s *Store) Rating(ctx context.Context) int {
	rec, ok := s.User(ctx)
	return s.ratingOf(rec, ok)
}

// User reads the stored record. Missing or malformed data reports false.
func (s *Store) User(ctx context.Context) (user.Record, bool) {
	b, err := s.kv.Get(ctx, s.key)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.logf("[Store] read failed, using defaults | key=%s err=%v", s.key, err)
		}
		return user.Record{}, false
	}
	rec, ok := user.ParseRecord(b)
	if !ok {
		s.logf("[Store] malformed user record treated as logged out | key=%s", s.key)
	}
	return rec, ok
}

// SetRating clamps rating into [0, user.MaxRating], stores it and notifies listeners.
// It returns the rating in effect afterwards.
func (s *Store) SetRating(ctx context.Context, rating int) int {
	return s.mutate(ctx, func(int) int { return rating })
}

// AddDelta is SetRating(Rating()+delta) without losing concurrent local updates.
func (s *Store) AddDelta(ctx context.Context, delta int) int {
	return s.mutate(ctx, func(base int) int { return user.AddRating(base, delta) })
}

// mutate runs the read-modify-write under mutMu and notifies after releasing
// it, so listeners may mutate again.
func (s *Store) mutate(ctx context.Context, next func(base int) int) int {
	s.mutMu.Lock()
	r, changed := s.mutateLocked(ctx, next)
	s.mutMu.Unlock()

	if changed {
		s.emit(Change{Rating: r, Source: SourceLocal})
	}
	return r
}

func (s *Store) mutateLocked(ctx context.Context, next func(base int) int) (int, bool) {
	rec, ok := s.User(ctx)
	base := s.ratingOf(rec, ok)
	target := user.ClampRating(next(base))

	if !ok {
		if s.policy == NoUserIgnore {
			return base, false
		}
		s.mu.Lock()
		s.transient = &target
		s.mu.Unlock()
		return target, true
	}

	rec.SetRating(target)
	if err := s.write(ctx, rec); err != nil {
		s.logf("[Store] rating write failed | key=%s rating=%d err=%v", s.key, target, err)
		return base, false
	}
	return target, true
}

// SaveUser stores rec as the logged-in user (login) and notifies listeners.
func (s *Store) SaveUser(ctx context.Context, rec user.Record) error {
	s.mutMu.Lock()
	if err := s.write(ctx, rec); err != nil {
		s.mutMu.Unlock()
		return fmt.Errorf("save user: %w", err)
	}
	s.mu.Lock()
	s.transient = nil
	s.mu.Unlock()
	s.mutMu.Unlock()

	s.emit(Change{Rating: s.ratingOf(rec, true), Source: SourceLocal})
	return nil
}

// ClearUser removes the stored user (logout) and notifies listeners.
func (s *Store) ClearUser(ctx context.Context) error {
	s.mutMu.Lock()
	if err := s.kv.Delete(ctx, s.key, s.origin); err != nil && !errors.Is(err, storage.ErrNotFound) {
		s.mutMu.Unlock()
		return fmt.Errorf("clear user: %w", err)
	}
	s.mu.Lock()
	s.transient = nil
	s.mu.Unlock()
	s.mutMu.Unlock()

	s.emit(Change{Rating: s.def, Source: SourceLocal})
	return nil
}

// Refresh re-reads the slot and notifies listeners, for consumers that
// suspect they missed a change.
func (s *Store) Refresh(ctx context.Context) int {
	r := s.Rating(ctx)
	s.emit(Change{Rating: r, Source: SourceRefresh})
	return r
}

// OnChange registers l for every later change. There is no replay.
func (s *Store) OnChange(l Listener) (cancel func()) {
	if l == nil {
		return func() {}
	}
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.listeners[id] = l
	s.order = append(s.order, id)
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			for i, v := range s.order {
				if v == id {
					s.order = append(s.order[:i], s.order[i+1:]...)
					break
				}
			}
			s.mu.Unlock()
		})
	}
}

// ListenerCount is the number of registered listeners.
func (s *Store) ListenerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.listeners)
}

// Watch relays changes other contexts make to the slot until ctx is done.
// Changes carrying the record are decoded in place; bare signals cause a
// fresh read.
func (s *Store) Watch(ctx context.Context) error {
	feed, err := s.kv.Watch(ctx, s.key)
	if err != nil {
		return fmt.Errorf("watch %s: %w", s.key, err)
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case c, ok := <-feed:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("watch %s: feed closed", s.key)
			}
			s.applyRemote(ctx, c)
		}
	}
}

func (s *Store) applyRemote(ctx context.Context, c storage.Change) {
	if c.Key != "" && c.Key != s.key {
		return
	}
	if c.Origin != "" && c.Origin == s.origin {
		return
	}

	var r int
	switch {
	case c.Deleted:
		r = s.ratingOf(user.Record{}, false)
	case c.HasValue:
		rec, ok := user.ParseRecord(c.Value)
		r = s.ratingOf(rec, ok)
	default:
		r = s.Rating(ctx)
	}
	s.emit(Change{Rating: r, Source: SourceRemote})
}

func (s *Store) ratingOf(rec user.Record, ok bool) int {
	if ok {
		if r, valid := rec.Rating(); valid {
			return r
		}
		return s.def
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.policy == NoUserTransient && s.transient != nil {
		return *s.transient
	}
	return s.def
}

func (s *Store) write(ctx context.Context, rec user.Record) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.kv.Put(ctx, s.key, b, s.origin)
}

func (s *Store) emit(c Change) {
	s.mu.Lock()
	targets := make([]Listener, 0, len(s.order))
	for _, id := range s.order {
		targets = append(targets, s.listeners[id])
	}
	s.mu.Unlock()

	for _, l := range targets {
		l(c)
	}
}

func (s *Store) logf(format string, args ...any) {
	if s.logger != nil {
		s.logger.Printf(format, args...)
	}
}
