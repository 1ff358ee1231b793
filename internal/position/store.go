package position

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/natefinch/atomic"

	"github.com/csheth/feedscout/internal/infinite"
)

type entry struct {
	Start     int       `json:"start"`
	Cursor    string    `json:"cursor,omitempty"`
	Limit     int       `json:"limit"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Store keeps one position per list key in a JSON file.
type Store struct {
	path string
	mu   sync.Mutex
}

// NewStore returns a store backed by path. The file is created on the first Save.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the backing file.
func (s *Store) Path() string {
	return s.path
}

// Load returns the saved position for key, or ErrNoPosition.
func (s *Store) Load(key string) (infinite.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := s.load()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return infinite.Position{}, ErrNoPosition
		}
		return infinite.Position{}, err
	}
	e, ok := entries[key]
	if !ok {
		return infinite.Position{}, ErrNoPosition
	}
	return infinite.Position{Start: e.Start, Cursor: e.Cursor, Limit: e.Limit}, nil
}

// Save upserts the position for key.
func (s *Store) Save(key string, pos infinite.Position) error {
	if s.path == "" || key == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	entries, err := s.load()
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return err
		}
		entries = map[string]entry{}
	}
	entries[key] = entry{Start: pos.Start, Cursor: pos.Cursor, Limit: pos.Limit, UpdatedAt: time.Now().UTC()}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	if err := atomic.WriteFile(s.path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("write %s: %w", s.path, err)
	}
	glog.Infof("[position] saved %s %s", key, Encode(pos))
	return nil
}

func (s *Store) load() (map[string]entry, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, err
	}
	entries := map[string]entry{}
	if len(bytes.TrimSpace(data)) == 0 {
		return entries, nil
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.path, err)
	}
	return entries, nil
}
