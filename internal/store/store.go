// Package store persists users, tickets, orders and payments with dbx.
// Every mutation of a ticket or order is guarded by its version column.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pocketbase/dbx"
	_ "modernc.org/sqlite"

	"ticket-market/internal/apperr"
)

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("store: not found")

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "pgx"
)

// default sqlite connection pragmas
const sqlitePragmas = "_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=synchronous(NORMAL)&_txlock=immediate"

type Store struct {
	db     *dbx.DB
	driver string
}

// Open connects to the database at dsn using driver ("sqlite" or "pgx").
func Open(driver, dsn string) (*Store, error) {
	switch driver {
	case "", DriverSQLite:
		driver = DriverSQLite
		if !strings.Contains(dsn, "_pragma") {
			sep := "?"
			if strings.Contains(dsn, "?") {
				sep = "&"
			}
			dsn += sep + sqlitePragmas
		}
	case DriverPostgres, "postgres":
		driver = DriverPostgres
		if _, ok := dbx.BuilderFuncMap[DriverPostgres]; !ok {
			dbx.BuilderFuncMap[DriverPostgres] = dbx.NewPgsqlBuilder
		}
	default:
		return nil, fmt.Errorf("store: unsupported driver %q", driver)
	}

	db, err := dbx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	if driver == DriverSQLite {
		db.DB().SetMaxOpenConns(1)
	} else {
		db.DB().SetMaxOpenConns(25)
		db.DB().SetMaxIdleConns(5)
		db.DB().SetConnMaxLifetime(30 * time.Minute)
	}
	return &Store{db: db, driver: driver}, nil
}

// New wraps an existing connection.
func New(db *dbx.DB) *Store {
	return &Store{db: db, driver: db.DriverName()}
}

func (s *Store) DB() *dbx.DB { return s.db }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Ping(ctx context.Context) error {
	return s.db.DB().PingContext(ctx)
}

// tx runs f in a transaction bound to ctx.
func (s *Store) tx(ctx context.Context, f func(tx *dbx.Tx) error) error {
	return s.db.TransactionalContext(ctx, nil, f)
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// affected returns ErrVersionConflict when an update touched no row.
func affected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return apperr.ErrVersionConflict
	}
	return nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "sqlstate 23505")
}

func millis(t time.Time) int64 { return t.UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

func nullString(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}
