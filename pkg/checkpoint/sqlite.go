package checkpoint

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps one row per layer in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoint directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open checkpoint database: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS checkpoints (
		layer INTEGER PRIMARY KEY,
		run_id TEXT NOT NULL,
		batch_cursor INTEGER NOT NULL,
		total_items INTEGER NOT NULL,
		entry TEXT NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to migrate checkpoint database: %w", err)
	}

	return nil
}

func (s *SQLiteStore) Load(layer int) (*Entry, error) {
	var data string
	err := s.db.QueryRow(`SELECT entry FROM checkpoints WHERE layer = ?`, layer).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint for layer %d: %w", layer, err)
	}

	entry := &Entry{}
	if err := json.Unmarshal([]byte(data), entry); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint for layer %d: %w", layer, err)
	}
	entry.normalize()

	return entry, nil
}

func (s *SQLiteStore) Save(entry *Entry) error {
	entry.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode checkpoint for layer %d: %w", entry.Layer, err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM checkpoints WHERE layer = ?`, entry.Layer); err != nil {
		return fmt.Errorf("failed to save checkpoint for layer %d: %w", entry.Layer, err)
	}
	if _, err := tx.Exec(
		`INSERT INTO checkpoints (layer, run_id, batch_cursor, total_items, entry, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		entry.Layer, entry.RunID, entry.BatchCursor, entry.TotalItems, string(data), entry.UpdatedAt,
	); err != nil {
		return fmt.Errorf("failed to save checkpoint for layer %d: %w", entry.Layer, err)
	}

	return tx.Commit()
}

func (s *SQLiteStore) Clear(layer int) error {
	if _, err := s.db.Exec(`DELETE FROM checkpoints WHERE layer = ?`, layer); err != nil {
		return fmt.Errorf("failed to clear checkpoint for layer %d: %w", layer, err)
	}
	return nil
}

func (s *SQLiteStore) ClearAll() error {
	if _, err := s.db.Exec(`DELETE FROM checkpoints`); err != nil {
		return fmt.Errorf("failed to clear checkpoints: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
