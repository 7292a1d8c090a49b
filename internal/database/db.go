package database

import (
	"context"
	"database/sql"
)

type DB interface {
	Ping(ctx context.Context) error
	Close() error

	Exec(ctx context.Context, query string, args ...any) (int64, error)
	Query(ctx context.Context, query string, args ...any) (Rows, error)
	QueryRow(ctx context.Context, query string, args ...any) Row

	Begin(ctx context.Context) (Tx, error)

	// Listen holds a dedicated connection subscribed to channel until the
	// subscription is closed.
	Listen(ctx context.Context, channel string) (Subscription, error)

	SQLDB() *sql.DB
}

type Notification struct {
	Channel string
	Payload string
}

type Subscription interface {
	// Next blocks until a notification arrives or ctx is done.
	Next(ctx context.Context) (Notification, error)
	Close() error
}

type Tx interface {
	Exec(ctx context.Context, query string, args ...any) (int64, error)
	Query(ctx context.Context, query string, args ...any) (Rows, error)
	QueryRow(ctx context.Context, query string, args ...any) Row

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

type Rows interface {
	Close()
	Next() bool
	Scan(dest ...any) error
	Err() error
}

type Row interface {
	Scan(dest ...any) error
}
