package store

import (
	"path/filepath"
	"testing"

	"github.com/tryon-ai/tryon/internal/logger"
)

// openTestStore creates an initialized store in a temporary directory.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	s := NewStore(filepath.Join(t.TempDir(), "nested", "tryon.db"), logger.Discard())
	if err := s.Initialize(); err != nil {
		t.Fatalf("Failed to initialize store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_InitializeIsRepeatable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tryon.db")

	first := NewStore(path, logger.Discard())
	if err := first.Initialize(); err != nil {
		t.Fatalf("First initialize failed: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	second := NewStore(path, logger.Discard())
	if err := second.Initialize(); err != nil {
		t.Fatalf("Second initialize failed: %v", err)
	}
	defer second.Close()
}

func TestStore_CloseIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("Second close failed: %v", err)
	}
}
