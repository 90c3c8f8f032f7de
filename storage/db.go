package storage

import (
	"database/sql"
	"fmt"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// DB is the single SQLite database holding conversations, the provider
// audit log and file checkpoints. Timestamps are stored in UTC so that
// they compare and sort correctly as text.
type DB struct {
	db *sql.DB
}

// Open opens (creating if needed) tcode.db inside dataDir.
func Open(dataDir string) (*DB, error) {
	return OpenPath(filepath.Join(dataDir, "tcode.db"))
}

// OpenPath opens the database at dbPath and brings its schema up to date.
func OpenPath(dbPath string) (*DB, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection serialises writers; the message log has a single writer.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	storage := &DB{db: db}

	if err := storage.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return storage, nil
}

func (s *DB) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS conversations (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS messages (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		conversation_id TEXT NOT NULL REFERENCES conversations(id),
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		provider TEXT,
		model TEXT,
		token_count INTEGER NOT NULL DEFAULT 0,
		metadata TEXT,
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, seq);

	CREATE TABLE IF NOT EXISTS provider_calls (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		provider TEXT NOT NULL,
		request_id TEXT,
		success INTEGER NOT NULL,
		status_code INTEGER NOT NULL DEFAULT 0,
		latency_ms INTEGER NOT NULL DEFAULT 0,
		tokens_used INTEGER NOT NULL DEFAULT 0,
		error_message TEXT,
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_provider_calls_provider ON provider_calls(provider);

	CREATE TABLE IF NOT EXISTS failover_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		from_provider TEXT NOT NULL,
		to_provider TEXT NOT NULL,
		reason TEXT,
		context_size INTEGER NOT NULL DEFAULT 0,
		success INTEGER NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS checkpoints (
		id TEXT PRIMARY KEY,
		file_path TEXT NOT NULL,
		content BLOB,
		existed INTEGER NOT NULL,
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_checkpoints_created ON checkpoints(created_at);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return err
	}

	if err := s.migrateSchema(); err != nil {
		return fmt.Errorf("schema migration failed: %w", err)
	}

	return nil
}

// migrateSchema adds columns introduced after a database was first created.
func (s *DB) migrateSchema() error {
	migrations := []struct {
		table  string
		column string
		ddl    string
	}{
		{"messages", "token_count", `ALTER TABLE messages ADD COLUMN token_count INTEGER NOT NULL DEFAULT 0`},
		{"messages", "metadata", `ALTER TABLE messages ADD COLUMN metadata TEXT`},
		{"provider_calls", "tokens_used", `ALTER TABLE provider_calls ADD COLUMN tokens_used INTEGER NOT NULL DEFAULT 0`},
	}

	for _, m := range migrations {
		exists, err := s.columnExists(m.table, m.column)
		if err != nil {
			return fmt.Errorf("failed to check for %s.%s column: %w", m.table, m.column, err)
		}

		switch {
		case !exists:
			if _, err := s.db.Exec(m.ddl); err != nil {
				return fmt.Errorf("failed to add %s.%s column: %w", m.table, m.column, err)
			}
		}
	}

	return nil
}

// columnExists checks if a column exists in a table using PRAGMA table_info
func (s *DB) columnExists(tableName, columnName string) (bool, error) {
	query := fmt.Sprintf("PRAGMA table_info(%s)", tableName)
	rows, err := s.db.Query(query)
	if err != nil {
		return false, err
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name string
		var dataType string
		var notNull int
		var defaultValue interface{}
		var pk int

		if err := rows.Scan(&cid, &name, &dataType, &notNull, &defaultValue, &pk); err != nil {
			return false, err
		}

		if name == columnName {
			return true, nil
		}
	}

	return false, rows.Err()
}

func (s *DB) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
