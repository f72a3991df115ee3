package kvstore

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"

	"github.com/dmitrijs2005/iptdesk/internal/dbx"
	"github.com/dmitrijs2005/iptdesk/internal/filex"
	"github.com/dmitrijs2005/iptdesk/internal/kvstore/migrations"
	"github.com/pressly/goose/v3"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Driver names accepted by Open, as registered with database/sql.
const (
	DriverSQLite = "sqlite"
	DriverPgx    = "pgx"
)

// DB is a migrated key/value database. It embeds the non-transactional
// Store and adds transactions and Close.
type DB struct {
	*SQLStore
	sql     *sql.DB
	dialect Dialect
}

// DialectFor maps a database/sql driver name to its Dialect.
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case DriverSQLite:
		return DialectSQLite, nil
	case DriverPgx:
		return DialectPostgres, nil
	default:
		return "", fmt.Errorf("unsupported driver %q", driver)
	}
}

// Open connects to dsn with the given driver and applies the embedded
// migrations for its dialect.
func Open(ctx context.Context, driver, dsn string) (*DB, error) {
	dialect, err := DialectFor(driver)
	if err != nil {
		return nil, err
	}

	if p := filex.SQLitePath(dsn); dialect == DialectSQLite && p != "" {
		if _, err := filex.EnsureParentDir(p); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if dialect == DialectSQLite {
		// a single connection keeps ":memory:" databases and the writer lock sane
		db.SetMaxOpenConns(1)
	}

	if err := RunMigrations(ctx, db, dialect); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &DB{SQLStore: NewSQLStore(db, dialect), sql: db, dialect: dialect}, nil
}

// RunMigrations applies the embedded goose migrations for dialect.
func RunMigrations(ctx context.Context, db *sql.DB, dialect Dialect) error {
	dir, gooseDialect := "sqlite", "sqlite3"
	if dialect == DialectPostgres {
		dir, gooseDialect = "postgres", "postgres"
	}

	sub, err := fs.Sub(migrations.FS, dir)
	if err != nil {
		return fmt.Errorf("migrations fs: %w", err)
	}
	goose.SetBaseFS(sub)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect(gooseDialect); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// WithTx runs fn against a transactional Store; every write made through it
// is committed together or not at all.
func (d *DB) WithTx(ctx context.Context, fn func(ctx context.Context, s Store) error) error {
	return dbx.WithTx(ctx, d.sql, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return fn(ctx, NewSQLStore(tx, d.dialect))
	})
}

func (d *DB) Close() error {
	return d.sql.Close()
}
