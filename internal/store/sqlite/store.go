// Package sqlite provides a store.KV backed by an embedded SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fitcoach/fitcoach-server/internal/store"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// KV is a store.KV on a single SQLite table.
type KV struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ store.KV = (*KV)(nil)

// Open creates or opens a SQLite database at path.
// It configures WAL mode, sets pragmas, and applies the schema.
func Open(path string, logger *slog.Logger) (*KV, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// One connection serializes writers; SQLite allows a single writer anyway.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec pragma %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("exec schema: %w", err)
	}

	logger.Info("SQLite database opened", "path", path)

	return &KV{db: db, logger: logger}, nil
}

// View implements store.KV.
func (s *KV) View(ctx context.Context, fn func(store.Txn) error) error {
	return s.run(ctx, true, fn)
}

// Update implements store.KV.
func (s *KV) Update(ctx context.Context, fn func(store.Txn) error) error {
	return s.run(ctx, false, fn)
}

func (s *KV) run(ctx context.Context, readOnly bool, fn func(store.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: readOnly})
	if err != nil {
		return store.Unavailable("sqlite begin", err)
	}

	if err := fn(&txn{ctx: ctx, tx: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}

	if readOnly {
		return store.Unavailable("sqlite rollback", tx.Rollback())
	}
	return store.Unavailable("sqlite commit", tx.Commit())
}

// NextSequence implements store.KV.
func (s *KV) NextSequence(ctx context.Context, name string) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var n uint64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO sequences (name, value) VALUES (?, 1)
		ON CONFLICT (name) DO UPDATE SET value = value + 1
		RETURNING value`, name).Scan(&n)
	if err != nil {
		return 0, store.Unavailable("sqlite sequence", err)
	}
	return n, nil
}

// Close closes the underlying database connection.
func (s *KV) Close() error {
	s.logger.Info("Closing SQLite database")
	return s.db.Close()
}

// txn adapts *sql.Tx to store.Txn.
type txn struct {
	ctx context.Context
	tx  *sql.Tx
}

func (t *txn) Get(key []byte) ([]byte, error) {
	var value []byte
	err := t.tx.QueryRowContext(t.ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, store.Unavailable("sqlite get", err)
	}
	return value, nil
}

func (t *txn) Set(key, value []byte) error {
	_, err := t.tx.ExecContext(t.ctx, `
		INSERT INTO kv (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value`, key, value)
	return store.Unavailable("sqlite set", err)
}

func (t *txn) Delete(key []byte) error {
	_, err := t.tx.ExecContext(t.ctx, `DELETE FROM kv WHERE key = ?`, key)
	return store.Unavailable("sqlite delete", err)
}

// Scan reads every matching row before calling fn, so fn may write through the same transaction.
func (t *txn) Scan(prefix []byte, fn func(key, value []byte) error) error {
	var (
		rows *sql.Rows
		err  error
	)
	if end := store.PrefixEnd(prefix); end != nil {
		rows, err = t.tx.QueryContext(t.ctx,
			`SELECT key, value FROM kv WHERE key >= ? AND key < ? ORDER BY key`, prefix, end)
	} else {
		rows, err = t.tx.QueryContext(t.ctx,
			`SELECT key, value FROM kv WHERE key >= ? ORDER BY key`, prefix)
	}
	if err != nil {
		return store.Unavailable("sqlite scan", err)
	}

	type pair struct{ key, value []byte }
	var pairs []pair
	for rows.Next() {
		var p pair
		if err := rows.Scan(&p.key, &p.value); err != nil {
			rows.Close()
			return store.Unavailable("sqlite scan row", err)
		}
		pairs = append(pairs, p)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return store.Unavailable("sqlite scan rows", err)
	}
	rows.Close()

	for _, p := range pairs {
		if err := fn(p.key, p.value); err != nil {
			return err
		}
	}
	return nil
}
