// Package postgres is the Postgres store.Driver. Repositories run on sqlx
// over an otelsql-instrumented lib/pq connection.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/XSAM/otelsql"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/jensholdgaard/clubhub/internal/clock"
	"github.com/jensholdgaard/clubhub/internal/config"
	"github.com/jensholdgaard/clubhub/internal/store"
)

func init() {
	store.Register("postgres", open)
}

func open(ctx context.Context, cfg config.DatabaseConfig, clk clock.Clock) (*store.Store, error) {
	if cfg.Migrate {
		if err := Migrate(cfg.DSN()); err != nil {
			return nil, err
		}
	}
	db, err := Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return New(db, clk).Store(), nil
}

// Connect opens and verifies a Postgres connection with OTEL instrumentation.
func Connect(ctx context.Context, cfg config.DatabaseConfig) (*sqlx.DB, error) {
	dsn := cfg.DSN()

	// Register the OTel-instrumented driver wrapping lib/pq.
	driverName, err := otelsql.Register("postgres",
		otelsql.WithAttributes(semconv.DBSystemPostgreSQL),
	)
	if err != nil {
		return nil, fmt.Errorf("registering otel driver: %w", err)
	}

	db, err := sqlx.ConnectContext(ctx, driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	if _, err := otelsql.RegisterDBStatsMetrics(db.DB, otelsql.WithAttributes(semconv.DBSystemPostgreSQL)); err != nil {
		db.Close()
		return nil, fmt.Errorf("registering db stats metrics: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return db, nil
}

// DB binds the repositories to a connection pool.
type DB struct {
	db  *sqlx.DB
	clk clock.Clock
}

// New wraps an open connection. The schema must already be migrated.
func New(db *sqlx.DB, clk clock.Clock) *DB {
	return &DB{db: db, clk: clk}
}

// Store exposes the database through the store contracts.
func (d *DB) Store() *store.Store {
	return &store.Store{
		Repositories: d.repositories(d.db, false),
		Transactor:   d,
		Closer:       d.db,
		Ping:         d.db.PingContext,
	}
}

// InTx runs fn in a READ COMMITTED transaction. Single-row reads made
// through the handed repositories take row locks until the transaction ends.
func (d *DB) InTx(ctx context.Context, fn func(ctx context.Context, tx *store.Repositories) error) (err error) {
	tx, err := d.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(ctx, d.repositories(tx, true)); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func (d *DB) repositories(q sqlx.ExtContext, inTx bool) *store.Repositories {
	c := &conn{q: q, inTx: inTx, clk: d.clk}
	return &store.Repositories{
		Users:         &userRepo{c},
		Profiles:      &profileRepo{c},
		Sports:        &sportRepo{c},
		Memberships:   &membershipRepo{c},
		Teams:         &teamRepo{c},
		Requests:      &requestRepo{c},
		Tournaments:   &tournamentRepo{c},
		Matches:       &matchRepo{c},
		Sessions:      &sessionRepo{c},
		Notifications: &notificationRepo{c},
		Events:        &EventStore{c},
	}
}

// conn is the handle shared by the repositories of one Repositories value:
// either the pool or a single transaction.
type conn struct {
	q    sqlx.ExtContext
	inTx bool
	clk  clock.Clock
}

// locking appends a row lock to a single-row select inside a transaction.
func (c *conn) locking(query string) string {
	if c.inTx {
		return query + " FOR UPDATE"
	}
	return query
}

// get loads one row into dest.
func (c *conn) get(ctx context.Context, dest any, what, key, query string, args ...any) error {
	err := sqlx.GetContext(ctx, c.q, dest, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", what, key, store.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("loading %s: %w", what, err)
	}
	return nil
}

// scalar reads a single value. An empty result is an error.
func (c *conn) scalar(ctx context.Context, dest any, query string, args ...any) error {
	return sqlx.GetContext(ctx, c.q, dest, query, args...)
}

func (c *conn) list(ctx context.Context, dest any, what, query string, args ...any) error {
	if err := sqlx.SelectContext(ctx, c.q, dest, query, args...); err != nil {
		return fmt.Errorf("listing %s: %w", what, err)
	}
	return nil
}

// insert runs an INSERT. Unique violations become store.ErrDuplicate.
func (c *conn) insert(ctx context.Context, what, query string, args ...any) error {
	if _, err := c.q.ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%s: %w", what, store.ErrDuplicate)
		}
		return fmt.Errorf("inserting %s: %w", what, err)
	}
	return nil
}

// insertOnce runs an INSERT ... ON CONFLICT DO NOTHING RETURNING statement
// and reports a skipped row as store.ErrDuplicate. The statement never
// fails, so the surrounding transaction stays usable.
func (c *conn) insertOnce(ctx context.Context, what, query string, args ...any) error {
	var id string
	err := c.q.QueryRowxContext(ctx, query, args...).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, store.ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("inserting %s: %w", what, err)
	}
	return nil
}

// update runs a named UPDATE and reports a missing row as store.ErrNotFound.
func (c *conn) update(ctx context.Context, what, key, query string, arg any) error {
	res, err := sqlx.NamedExecContext(ctx, c.q, query, arg)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%s %s: %w", what, key, store.ErrDuplicate)
		}
		return fmt.Errorf("updating %s: %w", what, err)
	}
	return affected(res, what, key)
}

// upsert runs a named INSERT ... ON CONFLICT DO UPDATE.
func (c *conn) upsert(ctx context.Context, what, query string, arg any) error {
	if _, err := sqlx.NamedExecContext(ctx, c.q, query, arg); err != nil {
		return fmt.Errorf("saving %s: %w", what, err)
	}
	return nil
}

func affected(res sql.Result, what, key string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking %s rows: %w", what, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", what, key, store.ErrNotFound)
	}
	return nil
}

func isDuplicate(err error) bool { return errors.Is(err, store.ErrDuplicate) }

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
