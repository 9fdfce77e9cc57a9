// Package sqlite implements kv.Store in a single SQLite file, for deployments
// without a Redis server.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"plugbot/internal/kv"
	"plugbot/internal/logger"
)

//go:embed schema.sql
var schema string

// Store is a kv.Store over database/sql.
type Store struct {
	db *sql.DB
}

var _ kv.Store = (*Store)(nil)

// Open opens (creating if needed) the database at path and applies the schema.
// Use ":memory:" for a throwaway store.
func Open(path string) (*Store, error) {
	dsn := path
	if path != ":memory:" {
		dsn = "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// One writer at a time; also keeps ":memory:" on a single connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	logger.Debug("sqlite store opened", "path", path)
	return &Store{db: db}, nil
}

// Get implements kv.Store.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv_strings WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

// Set implements kv.Store.
func (s *Store) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv_strings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

// HGet implements kv.Store.
func (s *Store) HGet(ctx context.Context, key, field string) (string, bool, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv_hashes WHERE key = ? AND field = ?`, key, field).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

// HSet implements kv.Store.
func (s *Store) HSet(ctx context.Context, key, field, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv_hashes (key, field, value) VALUES (?, ?, ?)
		ON CONFLICT(key, field) DO UPDATE SET value = excluded.value
	`, key, field, value)
	return err
}

// SAdd implements kv.Store. All members are added in one transaction.
func (s *Store) SAdd(ctx context.Context, key string, members ...string) (int64, error) {
	return s.eachMember(ctx, `INSERT OR IGNORE INTO kv_sets (key, member) VALUES (?, ?)`, key, members)
}

// SRem implements kv.Store. All members are removed in one transaction.
func (s *Store) SRem(ctx context.Context, key string, members ...string) (int64, error) {
	return s.eachMember(ctx, `DELETE FROM kv_sets WHERE key = ? AND member = ?`, key, members)
}

func (s *Store) eachMember(ctx context.Context, query, key string, members []string) (int64, error) {
	if len(members) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	var n int64
	for _, m := range members {
		res, err := stmt.ExecContext(ctx, key, m)
		if err != nil {
			return 0, err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		n += affected
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return n, nil
}

// SIsMember implements kv.Store.
func (s *Store) SIsMember(ctx context.Context, key, member string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM kv_sets WHERE key = ? AND member = ?`, key, member).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

// SMIsMember implements kv.Store with a single IN query.
func (s *Store) SMIsMember(ctx context.Context, key string, members ...string) ([]bool, error) {
	if len(members) == 0 {
		return nil, nil
	}
	args := make([]interface{}, 0, len(members)+1)
	args = append(args, key)
	for _, m := range members {
		args = append(args, m)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(members)), ",")

	rows, err := s.db.QueryContext(ctx,
		`SELECT member FROM kv_sets WHERE key = ? AND member IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	present := make(map[string]bool, len(members))
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return nil, err
		}
		present[m] = true
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]bool, len(members))
	for i, m := range members {
		out[i] = present[m]
	}
	return out, nil
}

// SRandMember implements kv.Store.
func (s *Store) SRandMember(ctx context.Context, key string) (string, bool, error) {
	var m string
	err := s.db.QueryRowContext(ctx, `SELECT member FROM kv_sets WHERE key = ? ORDER BY RANDOM() LIMIT 1`, key).Scan(&m)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return m, true, nil
}

// Close implements kv.Store.
func (s *Store) Close() error {
	return s.db.Close()
}
