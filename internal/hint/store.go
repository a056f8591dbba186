// Package hint persists the last service a music tab was found on, so the
// router can reopen it after a restart.
package hint

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dgnsrekt/musicbridge/internal/service"
)

// Record is the on-disk hint.
type Record struct {
	Service   string    `json:"service"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store manages a single hint file. A nil Store is valid and remembers
// nothing.
type Store struct {
	path string
	mu   sync.RWMutex
	last string
}

// NewStore creates a Store and ensures the parent directory exists.
func NewStore(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("hint store: mkdir %s: %w", filepath.Dir(path), err)
	}
	return &Store{path: path}, nil
}

// Load returns the remembered service name. Missing, unreadable or unknown
// hints report false.
func (s *Store) Load() (string, bool) {
	if s == nil {
		return "", false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("hint store read failed", "path", s.path, "error", err)
		}
		return "", false
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		slog.Warn("hint store ignoring corrupt file", "path", s.path, "error", err)
		return "", false
	}
	if _, ok := service.ByName(rec.Service); !ok {
		return "", false
	}
	return rec.Service, true
}

// Save records name as the last used service. Rewriting the same name is a
// no-op within one process.
func (s *Store) Save(name string) error {
	if s == nil {
		return nil
	}
	if _, ok := service.ByName(name); !ok {
		return fmt.Errorf("hint store: unknown service %q", name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.last == name {
		return nil
	}

	data, err := json.MarshalIndent(Record{Service: name, UpdatedAt: time.Now().UTC()}, "", "  ")
	if err != nil {
		return fmt.Errorf("hint store: marshal: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("hint store: write: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		if rmErr := os.Remove(tmp); rmErr != nil {
			slog.Debug("hint store temp cleanup failed", "path", tmp, "error", rmErr)
		}
		return fmt.Errorf("hint store: rename: %w", err)
	}
	s.last = name
	return nil
}
