package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store on a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens the database at dsn and creates the journal table.
func OpenSQLite(ctx context.Context, dsn string) (*SQLiteStore, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("journal dsn is required")
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	s := &SQLiteStore{db: db}
	if err := s.createTable(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) createTable(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS journal_entries (
			seq        INTEGER PRIMARY KEY AUTOINCREMENT,
			id         TEXT NOT NULL UNIQUE,
			proxy_id   INTEGER NOT NULL,
			native_id  TEXT NOT NULL,
			type       TEXT NOT NULL,
			properties TEXT NOT NULL DEFAULT '[]',
			changes    INTEGER NOT NULL,
			at_ms      INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_journal_native_time
			ON journal_entries (native_id, at_ms DESC);
	`)
	if err != nil {
		return fmt.Errorf("creating journal table: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Record(ctx context.Context, e Entry) error {
	props, err := json.Marshal(e.Properties)
	if err != nil {
		return fmt.Errorf("encoding properties: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO journal_entries (id, proxy_id, native_id, type, properties, changes, at_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, int64(e.ProxyID), e.NativeID, e.Type, string(props), e.Changes, e.At.UTC().UnixMilli())
	if err != nil {
		return fmt.Errorf("inserting journal entry: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Recent(ctx context.Context, nativeID string, limit int) ([]Entry, error) {
	query := `SELECT id, proxy_id, native_id, type, properties, changes, at_ms FROM journal_entries`
	var args []any
	if nativeID != "" {
		query += ` WHERE native_id = ?`
		args = append(args, nativeID)
	}
	query += ` ORDER BY at_ms DESC, seq DESC LIMIT ?`
	args = append(args, clampLimit(limit))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying journal: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e       Entry
			proxyID int64
			props   string
			atMs    int64
		)
		if err := rows.Scan(&e.ID, &proxyID, &e.NativeID, &e.Type, &props, &e.Changes, &atMs); err != nil {
			return nil, fmt.Errorf("scanning journal entry: %w", err)
		}
		if err := json.Unmarshal([]byte(props), &e.Properties); err != nil {
			return nil, fmt.Errorf("decoding properties of %s: %w", e.ID, err)
		}
		e.ProxyID = uint64(proxyID)
		e.At = time.UnixMilli(atMs).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

var (
	_ Store = (*SQLiteStore)(nil)
	_ Store = (*MemoryStore)(nil)
)
