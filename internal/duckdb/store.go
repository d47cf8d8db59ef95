// Package duckdb is the embedded state database: a small key-value table
// holding the inspector's persisted snapshot.
package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/sirupsen/logrus"

	"github.com/tinytelemetry/pageinspect/internal/duckdb/migrate"
	"github.com/tinytelemetry/pageinspect/internal/logging"
)

// Store is a DuckDB-backed key-value store. Writes and checkpoints are
// serialized by mu.
type Store struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string
	logger *logrus.Logger
}

// NewStore opens or creates the database at dbPath and applies pending
// migrations. An empty dbPath opens an in-memory database.
func NewStore(ctx context.Context, dbPath string, logger *logrus.Logger) (*Store, error) {
	logger = logging.OrDiscard(logger)
	if dbPath != "" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("duckdb: create data dir: %w", err)
		}
	}

	db, err := sql.Open("duckdb", dbPath)
	if err != nil {
		return nil, fmt.Errorf("duckdb: open %q: %w", dbPath, err)
	}

	applied, err := migrate.NewRunner(db).Run(ctx)
	if err != nil {
		db.Close()
		return nil, err
	}
	if applied > 0 {
		logger.WithFields(logrus.Fields{"path": dbPath, "applied": applied}).Info("state database migrated")
	}

	return &Store{db: db, dbPath: dbPath, logger: logger}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the value stored under key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var value []byte
	err := s.db.QueryRowContext(ctx, "SELECT value FROM kv_store WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("duckdb: get %q: %w", key, err)
	}
	return value, true, nil
}

// Set stores value under key, replacing any previous value.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `INSERT INTO kv_store (key, value, size_bytes, updated_at)
		VALUES (?, ?, ?, current_timestamp)
		ON CONFLICT (key) DO UPDATE SET
			value = excluded.value,
			size_bytes = excluded.size_bytes,
			updated_at = excluded.updated_at`,
		key, value, int64(len(value)))
	if err != nil {
		return fmt.Errorf("duckdb: set %q: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, "DELETE FROM kv_store WHERE key = ?", key); err != nil {
		return fmt.Errorf("duckdb: delete %q: %w", key, err)
	}
	return nil
}
