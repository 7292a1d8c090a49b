// Package sqlite is a file-backed storage.KV. Processes sharing the file see
// each other's writes by polling a per-key revision.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	"elo-sync/internal/storage"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS kv_store (
	key TEXT PRIMARY KEY,
	value BLOB,
	origin TEXT NOT NULL DEFAULT '',
	revision INTEGER NOT NULL DEFAULT 1,
	updated_at INTEGER NOT NULL
)`

const DefaultPollInterval = 250 * time.Millisecond

type Store struct {
	sqlDB  *sql.DB
	poll   time.Duration
	logger *log.Logger
}

func Open(path string, poll time.Duration, logger *log.Logger) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	dsn := filepath.Clean(path) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{sqlDB: sqlDB, poll: poll, logger: logger}, nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.sqlDB.QueryRowContext(ctx, `SELECT value FROM kv_store WHERE key = ?`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	if value == nil {
		return nil, storage.ErrNotFound
	}
	return value, nil
}

func (s *Store) Put(ctx context.Context, key string, value []byte, origin string) error {
	if value == nil {
		value = []byte{}
	}
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO kv_store (key, value, origin, revision, updated_at)
VALUES (?, ?, ?, 1, ?)
ON CONFLICT (key) DO UPDATE
SET value = excluded.value,
	origin = excluded.origin,
	revision = kv_store.revision + 1,
	updated_at = excluded.updated_at`,
		key, value, origin, time.Now().UTC().UnixMilli(),
	)
	return err
}

// Delete leaves a tombstone so pollers can tell a delete from a missing key.
func (s *Store) Delete(ctx context.Context, key string, origin string) error {
	_, err := s.sqlDB.ExecContext(ctx, `
UPDATE kv_store
SET value = NULL, origin = ?, revision = revision + 1, updated_at = ?
WHERE key = ? AND value IS NOT NULL`,
		origin, time.Now().UTC().UnixMilli(), key,
	)
	return err
}

type snapshot struct {
	value    []byte
	origin   string
	revision int64
}

func (s *Store) read(ctx context.Context, key string) (snapshot, error) {
	var snap snapshot
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT value, origin, revision FROM kv_store WHERE key = ?`, key,
	).Scan(&snap.value, &snap.origin, &snap.revision)
	if errors.Is(err, sql.ErrNoRows) {
		return snapshot{}, nil
	}
	return snap, err
}

// Watch polls key's revision. Writes landing within one interval collapse
// into a single change carrying the latest value.
func (s *Store) Watch(ctx context.Context, key string) (<-chan storage.Change, error) {
	start, err := s.read(ctx, key)
	if err != nil {
		return nil, err
	}

	out := make(chan storage.Change, storage.FeedBuffer)
	go func() {
		defer close(out)
		ticker := time.NewTicker(s.poll)
		defer ticker.Stop()

		last := start.revision
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			snap, err := s.read(ctx, key)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				if s.logger != nil {
					s.logger.Printf("[KV] sqlite poll failed | key=%s err=%v", key, err)
				}
				continue
			}
			if snap.revision <= last {
				continue
			}
			last = snap.revision
			c := storage.Change{
				Key:      key,
				Value:    snap.value,
				HasValue: true,
				Deleted:  snap.value == nil,
				Origin:   snap.origin,
			}
			select {
			case out <- c:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}
