package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"

	"github.com/darkodi/whatsapp-redirect/internal/config"
	"github.com/darkodi/whatsapp-redirect/internal/logger"
	"github.com/darkodi/whatsapp-redirect/internal/migrations"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("record already exists")
)

// DB is a connection pool that knows its SQL dialect
type DB struct {
	*sql.DB
	driver string
}

// Open connects to the configured database, checks it and applies migrations
func Open(ctx context.Context, cfg *config.DatabaseConfig, log *logger.Logger) (*DB, error) {
	switch cfg.Driver {
	case "sqlite3":
		if err := ensureSQLiteDir(cfg.DSN); err != nil {
			return nil, err
		}
	case "postgres":
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	sqlDB, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Driver, err)
	}

	if cfg.Driver == "sqlite3" {
		// one connection: ":memory:" stays a single database and writers never contend
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ping %s: %w", cfg.Driver, err)
	}

	m, err := migrations.New(sqlDB, cfg.Driver, cfg.DSN, log.Logger)
	if err != nil {
		sqlDB.Close()
		return nil, err
	}
	defer m.Close()
	if err := m.Up(); err != nil {
		sqlDB.Close()
		return nil, err
	}

	return &DB{DB: sqlDB, driver: cfg.Driver}, nil
}

// OpenMemory opens a migrated in-memory SQLite database. Used by tests.
func OpenMemory(ctx context.Context) (*DB, error) {
	return Open(ctx, &config.DatabaseConfig{Driver: "sqlite3", DSN: ":memory:"}, logger.Nop())
}

// Driver returns the SQL dialect name
func (d *DB) Driver() string {
	return d.driver
}

// rebind rewrites "?" placeholders to "$n" for postgres
func (d *DB) rebind(query string) string {
	if d.driver != "postgres" {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

func (d *DB) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return d.ExecContext(ctx, d.rebind(query), args...)
}

func (d *DB) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return d.QueryRowContext(ctx, d.rebind(query), args...)
}

func (d *DB) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return d.QueryContext(ctx, d.rebind(query), args...)
}

// insert runs an INSERT and returns the new row id
func (d *DB) insert(ctx context.Context, query string, args ...any) (int64, error) {
	var id int64
	err := d.queryRow(ctx, query+" RETURNING id", args...).Scan(&id)
	if err != nil {
		if isDuplicate(err) {
			return 0, ErrDuplicate
		}
		return 0, err
	}
	return id, nil
}

// updateOne runs an UPDATE or DELETE that must touch exactly one row
func (d *DB) updateOne(ctx context.Context, query string, args ...any) error {
	res, err := d.exec(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (d *DB) count(ctx context.Context, query string, args ...any) (int64, error) {
	var n int64
	if err := d.queryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func isDuplicate(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

func ensureSQLiteDir(dsn string) error {
	if dsn == ":memory:" || strings.HasPrefix(dsn, "file:") {
		return nil
	}
	dir := filepath.Dir(dsn)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create database directory: %w", err)
	}
	return nil
}

// now returns the current time in the form every timestamp column stores
func now() time.Time {
	return dbTime(time.Now())
}

func dbTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}
