// Package core persists custom domains and platform subdomains in
// PostgreSQL.
package core

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of pgxpool.Pool used by the stores.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var (
	ErrNotFound        = errors.New("not found")
	ErrHostnameTaken   = errors.New("hostname already registered")
	ErrSlugTaken       = errors.New("slug already taken in namespace")
	ErrAlreadyAssigned = errors.New("owner already has a subdomain in namespace")
	// ErrStaleRecord is returned by Update when the stored version moved on
	// since the record was read.
	ErrStaleRecord = errors.New("record was modified concurrently")
)

func uniqueViolation(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return pgErr, true
	}
	return nil, false
}
