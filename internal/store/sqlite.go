package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// migrations run in order on every open; each is idempotent.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS commands (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		address    TEXT NOT NULL DEFAULT '',
		command    TEXT NOT NULL,
		response   TEXT NOT NULL DEFAULT '',
		sent_at    TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS commands_session ON commands (session_id, id)`,
}

// SQLiteStore implements Store on a SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates the database at path and migrates it.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close() //nolint:errcheck
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	for _, stmt := range migrations {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migration: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) RecordCommand(ctx context.Context, rec *CommandRecord) error {
	if rec.SentAt.IsZero() {
		rec.SentAt = time.Now()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO commands (session_id, address, command, response, sent_at) VALUES (?, ?, ?, ?, ?)`,
		rec.SessionID, rec.Address, rec.Command, rec.Response, rec.SentAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return err
	}
	rec.ID, _ = res.LastInsertId()
	return nil
}

func (s *SQLiteStore) RecentCommands(ctx context.Context, sessionID string, limit int) ([]*CommandRecord, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, address, command, response, sent_at FROM commands
		 WHERE ? = '' OR session_id = ? ORDER BY id DESC LIMIT ?`,
		sessionID, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	var out []*CommandRecord
	for rows.Next() {
		var r CommandRecord
		var sent string
		if err := rows.Scan(&r.ID, &r.SessionID, &r.Address, &r.Command, &r.Response, &sent); err != nil {
			return nil, err
		}
		r.SentAt, _ = time.Parse(time.RFC3339Nano, sent)
		out = append(out, &r)
	}
	return out, rows.Err()
}
