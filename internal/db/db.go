package db

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Open connects to the SQLite database and runs schema migrations.
func Open(path string) (*sql.DB, error) {
	conn, err := sql.Open("sqlite", fmt.Sprintf("file:%s?_pragma=foreign_keys(1)", path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// A single connection serialises writers, which keeps review updates
	// for the same card from interleaving.
	conn.SetMaxOpenConns(1)
	conn.SetConnMaxLifetime(0)

	if err := migrate(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return conn, nil
}

func migrate(db *sql.DB) error {
	stmts := []string{
		`PRAGMA foreign_keys = ON;`,
		`CREATE TABLE IF NOT EXISTS notes (
			id TEXT PRIMARY KEY,
			user_id TEXT,
			title TEXT NOT NULL DEFAULT '',
			source_type TEXT NOT NULL CHECK(source_type IN ('text','image','pdf')),
			raw_text TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS flashcards (
			id TEXT PRIMARY KEY,
			note_id TEXT NOT NULL,
			user_id TEXT,
			front TEXT NOT NULL,
			back TEXT NOT NULL,
			ease_factor REAL NOT NULL DEFAULT 2.5,
			interval INTEGER NOT NULL DEFAULT 0,
			repetitions INTEGER NOT NULL DEFAULT 0,
			next_review DATETIME,
			stability REAL NOT NULL DEFAULT 0,
			difficulty REAL NOT NULL DEFAULT 0,
			lapses INTEGER NOT NULL DEFAULT 0,
			memory_state INTEGER NOT NULL DEFAULT 0,
			last_review DATETIME,
			created_at DATETIME NOT NULL,
			FOREIGN KEY(note_id) REFERENCES notes(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS review_logs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			flashcard_id TEXT NOT NULL,
			quality INTEGER NOT NULL,
			rating INTEGER NOT NULL,
			interval INTEGER NOT NULL,
			ease_factor REAL NOT NULL,
			reviewed_at DATETIME NOT NULL,
			FOREIGN KEY(flashcard_id) REFERENCES flashcards(id) ON DELETE CASCADE
		);`,
		`CREATE INDEX IF NOT EXISTS idx_notes_created ON notes(created_at);`,
		`CREATE INDEX IF NOT EXISTS idx_flashcards_note ON flashcards(note_id);`,
		`CREATE INDEX IF NOT EXISTS idx_flashcards_next_review ON flashcards(next_review);`,
		`CREATE INDEX IF NOT EXISTS idx_review_logs_card ON review_logs(flashcard_id);`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("execute %q: %w", stmt, err)
		}
	}
	return nil
}
