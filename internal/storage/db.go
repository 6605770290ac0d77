// Package storage persists the question log and the correction journal in SQLite.
package storage

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

const schema = `
CREATE TABLE IF NOT EXISTS questions (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	ts          INTEGER NOT NULL,
	user_id     TEXT    NOT NULL DEFAULT '',
	text        TEXT    NOT NULL,
	topic       TEXT    NOT NULL DEFAULT '',
	confidence  REAL    NOT NULL DEFAULT 0,
	answered    INTEGER NOT NULL DEFAULT 0,
	tokens_used INTEGER NOT NULL DEFAULT 0,
	cost_usd    REAL    NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_questions_ts ON questions(ts);

CREATE TABLE IF NOT EXISTS correction_journal (
	seq          INTEGER PRIMARY KEY AUTOINCREMENT,
	id           TEXT    NOT NULL,
	wrong_text   TEXT    NOT NULL,
	correct_text TEXT    NOT NULL,
	topics       TEXT    NOT NULL DEFAULT '[]',
	status       TEXT    NOT NULL,
	created_at   INTEGER NOT NULL,
	applied_at   INTEGER
);
CREATE INDEX IF NOT EXISTS idx_correction_journal_id ON correction_journal(id);
`

// Open opens (creating if needed) the SQLite database at path and applies the schema.
// Use ":memory:" for a throwaway database.
func Open(ctx context.Context, path string) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite allows a single writer; in-memory databases are per-connection
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return db, nil
}
