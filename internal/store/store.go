// Package store provides the durable SQLite-backed state of the tryon companion.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/tryon-ai/tryon/internal/logger"
)

// ErrStoreClosed is returned for operations issued after Close.
var ErrStoreClosed = errors.New("store is closed")

// Store owns the SQLite database and the write queue shared by its sub-stores.
type Store struct {
	path  string
	db    *sql.DB
	queue *Queue
	log   logger.Logger
	mu    sync.RWMutex
}

// NewStore creates a new Store for the given database file.
func NewStore(path string, log logger.Logger) *Store {
	return &Store{
		path: path,
		log:  log,
	}
}

// Initialize opens the database, creates the schema and starts the write queue.
func (s *Store) Initialize() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		return nil
	}

	// Ensure directory exists
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	if err := s.connectDB(); err != nil {
		return err
	}

	if err := s.initSchema(); err != nil {
		s.db.Close()
		s.db = nil
		return fmt.Errorf("failed to init schema: %w", err)
	}

	s.queue = NewQueue(s.db, 64)
	return nil
}

// connectDB opens the SQLite connection.
func (s *Store) connectDB() error {
	db, err := sql.Open("sqlite3", s.path+"?_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	s.db = db
	return nil
}

// initSchema creates every table used by the sub-stores.
func (s *Store) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS task_images (
			task_id TEXT PRIMARY KEY,
			saved_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS task_image_slots (
			task_id TEXT NOT NULL REFERENCES task_images(task_id) ON DELETE CASCADE,
			slot TEXT NOT NULL,
			present INTEGER NOT NULL,
			content BLOB,
			file_name TEXT,
			mimetype TEXT,
			size INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (task_id, slot)
		)`,
		`CREATE TABLE IF NOT EXISTS settings (
			namespace TEXT NOT NULL,
			name TEXT NOT NULL,
			content TEXT NOT NULL,
			mtime INTEGER NOT NULL,
			PRIMARY KEY (namespace, name)
		)`,
		`CREATE TABLE IF NOT EXISTS tasks (
			id TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			state TEXT NOT NULL,
			remote_status TEXT,
			message TEXT,
			progress INTEGER NOT NULL DEFAULT 0,
			result_image_url TEXT,
			error_message TEXT,
			ctime INTEGER NOT NULL,
			mtime INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_state ON tasks(state)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Close stops the write queue and closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.queue != nil {
		s.queue.Close()
		s.queue = nil
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			return err
		}
		s.db = nil
	}

	return nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// write runs fn on the single-writer queue, after every write queued before it.
func (s *Store) write(ctx context.Context, fn func(db *sql.DB) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.queue == nil {
		return ErrStoreClosed
	}
	return s.queue.Do(ctx, fn)
}

// read runs fn directly against the database. Readers never block the queue.
func (s *Store) read(ctx context.Context, fn func(db *sql.DB) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return ErrStoreClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(s.db)
}
