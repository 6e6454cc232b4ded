// Package file implements small on-disk stores for state that does not
// belong in PostgreSQL, such as the position tracker snapshot.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cexarb/arbot/internal/domain"
)

// PositionStore persists the position book as a JSON file. Writes go through
// a temp file and rename so a crash cannot leave a truncated snapshot.
type PositionStore struct {
	path string
}

// NewPositionStore creates a store writing to path.
func NewPositionStore(path string) *PositionStore {
	return &PositionStore{path: path}
}

// Load reads the position book. It returns domain.ErrNotFound when no
// snapshot has ever been written.
func (s *PositionStore) Load(_ context.Context) (domain.PositionBook, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return domain.PositionBook{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.PositionBook{}, fmt.Errorf("file: read positions %s: %w", s.path, err)
	}

	var book domain.PositionBook
	if err := json.Unmarshal(data, &book); err != nil {
		return domain.PositionBook{}, fmt.Errorf("file: parse positions %s: %w", s.path, err)
	}
	return book, nil
}

// Save writes the position book atomically.
func (s *PositionStore) Save(_ context.Context, book domain.PositionBook) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("file: mkdir for %s: %w", s.path, err)
	}

	data, err := json.MarshalIndent(book, "", "  ")
	if err != nil {
		return fmt.Errorf("file: marshal positions: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".positions-*.json")
	if err != nil {
		return fmt.Errorf("file: create temp: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("file: write temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("file: close temp: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("file: rename into place: %w", err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.PositionStore = (*PositionStore)(nil)
