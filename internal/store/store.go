// Package store is the relational store adapter. It runs parameterized
// statements against an embedded SQLite file or a PostgreSQL server and
// scopes multi-statement work in transactions.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/claude/liftlog/internal/models"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Driver selects the storage engine.
type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// Options configures Open and Migrate.
type Options struct {
	Driver Driver
	// Path is the SQLite database file.
	Path string
	// DSN is the PostgreSQL connection URL.
	DSN string
}

func (o Options) driver() Driver {
	if o.Driver == "" {
		return DriverSQLite
	}
	return o.Driver
}

// Result is the outcome of a single write.
type Result struct {
	LastInsertID int64
	RowsAffected int64
}

// Scanner is satisfied by *sql.Row and *sql.Rows.
type Scanner interface {
	Scan(dest ...any) error
}

// Querier runs statements. Both *DB and the handle passed to a WithTx body
// implement it, so query helpers work inside and outside transactions.
type Querier interface {
	Exec(ctx context.Context, query string, args ...any) (Result, error)
	Query(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRow(ctx context.Context, query string, args ...any) *sql.Row
}

// conn is the subset of *sql.DB and *sql.Tx the runner needs.
type conn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type runner struct {
	c      conn
	driver Driver
}

func (r runner) Exec(ctx context.Context, query string, args ...any) (Result, error) {
	if r.driver == DriverPostgres {
		return r.execPostgres(ctx, query, args...)
	}
	res, err := r.c.ExecContext(ctx, query, args...)
	if err != nil {
		return Result{}, &models.StorageError{Op: "exec", Err: err}
	}
	var out Result
	if out.LastInsertID, err = res.LastInsertId(); err != nil {
		return Result{}, &models.StorageError{Op: "last insert id", Err: err}
	}
	if out.RowsAffected, err = res.RowsAffected(); err != nil {
		return Result{}, &models.StorageError{Op: "rows affected", Err: err}
	}
	return out, nil
}

// execPostgres emulates LastInsertId, which PostgreSQL lacks, by appending
// RETURNING id to inserts.
func (r runner) execPostgres(ctx context.Context, query string, args ...any) (Result, error) {
	query = rebind(query)
	if isInsert(query) {
		var id int64
		err := r.c.QueryRowContext(ctx, query+" RETURNING id", args...).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			// ON CONFLICT DO NOTHING skipped the row.
			return Result{}, nil
		}
		if err != nil {
			return Result{}, &models.StorageError{Op: "exec", Err: err}
		}
		return Result{LastInsertID: id, RowsAffected: 1}, nil
	}
	res, err := r.c.ExecContext(ctx, query, args...)
	if err != nil {
		return Result{}, &models.StorageError{Op: "exec", Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return Result{}, &models.StorageError{Op: "rows affected", Err: err}
	}
	return Result{RowsAffected: n}, nil
}

func (r runner) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	if r.driver == DriverPostgres {
		query = rebind(query)
	}
	rows, err := r.c.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &models.StorageError{Op: "query", Err: err}
	}
	return rows, nil
}

func (r runner) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	if r.driver == DriverPostgres {
		query = rebind(query)
	}
	return r.c.QueryRowContext(ctx, query, args...)
}

// DB is an open store.
type DB struct {
	runner
	sql *sql.DB
}

// Open connects to the store described by opts and verifies the connection.
func Open(ctx context.Context, opts Options) (*DB, error) {
	var (
		db  *sql.DB
		err error
	)
	switch opts.driver() {
	case DriverSQLite:
		if opts.Path == "" {
			return nil, fmt.Errorf("sqlite store needs a path")
		}
		db, err = sql.Open("sqlite", sqliteDSN(opts.Path))
		if err != nil {
			return nil, fmt.Errorf("opening sqlite: %w", err)
		}
		// Single writer: a transaction owns the only connection.
		db.SetMaxOpenConns(1)
	case DriverPostgres:
		db, err = sql.Open("pgx", opts.DSN)
		if err != nil {
			return nil, fmt.Errorf("opening postgres: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown store driver %q", opts.Driver)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return &DB{runner: runner{c: db, driver: opts.driver()}, sql: db}, nil
}

func sqliteDSN(path string) string {
	return "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

// Close closes the underlying connection pool.
func (db *DB) Close() error {
	return db.sql.Close()
}

// Driver reports the engine behind db.
func (db *DB) Driver() Driver {
	return db.driver
}

// WithTx runs fn inside a transaction. It commits when fn returns nil and
// rolls back on any error or panic; fn's error is returned unchanged.
func (db *DB) WithTx(ctx context.Context, fn func(q Querier) error) (err error) {
	tx, err := db.sql.BeginTx(ctx, nil)
	if err != nil {
		return &models.StorageError{Op: "begin transaction", Err: err}
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback() //nolint:errcheck // re-panicking
			panic(p)
		}
		if err != nil {
			tx.Rollback() //nolint:errcheck // the body's error wins
		}
	}()

	if err = fn(runner{c: tx, driver: db.driver}); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return &models.StorageError{Op: "commit transaction", Err: err}
	}
	return nil
}

// QueryAll runs query and scans every row. It returns an empty, non-nil
// slice when nothing matches.
func QueryAll[T any](ctx context.Context, q Querier, scan func(Scanner) (T, error), query string, args ...any) ([]T, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]T, 0)
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, &models.StorageError{Op: "scanning row", Err: err}
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, &models.StorageError{Op: "iterating rows", Err: err}
	}
	return out, nil
}

// QueryFirst runs query and scans at most one row. found is false when no
// row matched; that is not an error.
func QueryFirst[T any](ctx context.Context, q Querier, scan func(Scanner) (T, error), query string, args ...any) (v T, found bool, err error) {
	v, err = scan(q.QueryRow(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		var zero T
		return zero, false, nil
	}
	if err != nil {
		var zero T
		return zero, false, &models.StorageError{Op: "query first", Err: err}
	}
	return v, true, nil
}

// rebind rewrites ? placeholders to PostgreSQL's $n form, leaving quoted
// literals alone.
func rebind(query string) string {
	if !strings.Contains(query, "?") {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	inQuote := false
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case c == '\'':
			inQuote = !inQuote
			b.WriteByte(c)
		case c == '?' && !inQuote:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

func isInsert(query string) bool {
	q := strings.TrimSpace(query)
	return len(q) >= 6 && strings.EqualFold(q[:6], "INSERT") &&
		!strings.Contains(strings.ToUpper(q), "RETURNING")
}
