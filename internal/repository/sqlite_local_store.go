package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"mikasa-gate/internal/domain"

	_ "modernc.org/sqlite"
)

const memoryDSN = ":memory:"

// SQLiteKeyValueStore is durable local storage backed by an embedded SQLite file.
// It stands in for the browser's local storage when the gate runs server-side.
type SQLiteKeyValueStore struct {
	db     *sql.DB
	logger domain.Logger
	now    func() time.Time
}

// NewSQLiteKeyValueStore opens (or creates) the store at path. ":memory:" keeps it in-process.
func NewSQLiteKeyValueStore(path string, logger domain.Logger) (*SQLiteKeyValueStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("local store path is required")
	}

	dsn := memoryDSN
	if path != memoryDSN {
		path = filepath.Clean(path)
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("create local store dir: %w", err)
		}
		dsn = path + "?" + url.Values{
			"_pragma": []string{
				"busy_timeout(5000)",
				"journal_mode(WAL)",
				"synchronous(NORMAL)",
			},
		}.Encode()
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}
	// A single connection serializes writers and keeps ":memory:" on one database.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &SQLiteKeyValueStore{db: db, logger: logger, now: time.Now}
	if err := s.initSchema(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, errors.Join(err, fmt.Errorf("close local store after schema init failure: %w", closeErr))
		}
		return nil, err
	}

	logger.Info("Local store opened", "path", path)
	return s, nil
}

func (s *SQLiteKeyValueStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS kv_store (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("init local store schema: %w", err)
	}
	return nil
}

// Get returns the value stored under key
func (s *SQLiteKeyValueStore) Get(key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM kv_store WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read %q: %w", key, err)
	}
	return value, true, nil
}

// Set replaces the value stored under key
func (s *SQLiteKeyValueStore) Set(key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO kv_store (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, s.now().Unix())
	if err != nil {
		return fmt.Errorf("write %q: %w", key, err)
	}
	return nil
}

// Close releases the database handle
func (s *SQLiteKeyValueStore) Close() error {
	return s.db.Close()
}
