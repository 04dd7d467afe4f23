// Daybook - Save-Game Persistence for 365 Adventure: Cthulhu
// Copyright 2026 Grimoire Interactive
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/grimoire-interactive/daybook

package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"syscall"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // pure-Go sqlite driver
)

// EngineSQLite is the Name of the SQLite key/value fallback engine.
const EngineSQLite = "sqlite"

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS kv (
	key   TEXT PRIMARY KEY,
	value BLOB NOT NULL
);`

// sqliteEngine is the fallback backend: a single key/value table. It trades
// Badger's throughput for the ability to run anywhere the pure-Go sqlite
// driver does, which is everywhere.
type sqliteEngine struct {
	db *sqlx.DB
}

// OpenSQLite opens (or creates) the fallback database at path. WAL mode and
// a busy timeout keep concurrent readers from tripping over the writer.
func OpenSQLite(path string) (Engine, error) {
	db, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite at %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite at %s: %w", path, err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create kv table: %w", err)
	}
	return &sqliteEngine{db: db}, nil
}

func (e *sqliteEngine) Name() string { return EngineSQLite }

func (e *sqliteEngine) Put(ctx context.Context, key string, value []byte) error {
	_, err := e.db.ExecContext(ctx,
		`INSERT INTO kv (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return classifySQLiteWriteError(err)
}

func (e *sqliteEngine) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := e.db.GetContext(ctx, &value, `SELECT value FROM kv WHERE key = ?`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return value, nil
}

func (e *sqliteEngine) Delete(ctx context.Context, key string) error {
	_, err := e.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key)
	return err
}

func (e *sqliteEngine) List(ctx context.Context, prefix string) ([]Entry, error) {
	rows, err := e.db.QueryxContext(ctx,
		`SELECT key, value FROM kv WHERE key >= ? AND key < ? ORDER BY key`,
		prefix, prefixUpperBound(prefix))
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", prefix, err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Key, &e.Value); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (e *sqliteEngine) Apply(ctx context.Context, ops []Op) error {
	tx, err := e.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	for _, op := range ops {
		switch op.Type {
		case OpPut:
			_, err = tx.ExecContext(ctx,
				`INSERT INTO kv (key, value) VALUES (?, ?)
				 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, op.Key, op.Value)
		case OpDelete:
			_, err = tx.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, op.Key)
		case OpDeletePrefix:
			_, err = tx.ExecContext(ctx,
				`DELETE FROM kv WHERE key >= ? AND key < ?`,
				op.Key, prefixUpperBound(op.Key))
		default:
			err = fmt.Errorf("unknown op type %d", op.Type)
		}
		if err != nil {
			return classifySQLiteWriteError(err)
		}
	}

	if err := tx.Commit(); err != nil {
		return classifySQLiteWriteError(err)
	}
	return nil
}

func (e *sqliteEngine) Close() error {
	return e.db.Close()
}

// prefixUpperBound returns the smallest string greater than every string
// with the given prefix, for half-open range scans. An empty prefix scans
// the whole table; \xff keys never occur because keys are ASCII.
func prefixUpperBound(prefix string) string {
	if prefix == "" {
		return "\xff"
	}
	b := []byte(prefix)
	for i := len(b) - 1; i >= 0; i-- {
		if b[i] < 0xff {
			b[i]++
			return string(b[:i+1])
		}
	}
	return string(b) + "\xff"
}

func classifySQLiteWriteError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, syscall.ENOSPC) ||
		strings.Contains(err.Error(), "database or disk is full") ||
		strings.Contains(err.Error(), "no space left on device") {
		return fmt.Errorf("%w: %v", ErrQuotaExceeded, err)
	}
	return err
}
