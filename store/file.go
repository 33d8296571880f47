package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// File is a Store backed by a single JSON document, rewritten atomically
// on every update. Suited to cron-style runs where the process exits
// between checks.
type File struct {
	path string
	mu   sync.Mutex
	m    map[string]string
}

// NewFile opens (or creates) a file-backed store at path.
func NewFile(path string) (*File, error) {
	s := &File{
		path: path,
		m:    make(map[string]string),
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading store file %s: %w", path, err)
	}
	if len(data) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(data, &s.m); err != nil {
		return nil, fmt.Errorf("parsing store file %s: %w", path, err)
	}
	return s, nil
}

func (s *File) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.m[key]
	return v, ok, nil
}

func (s *File) Set(_ context.Context, key, version string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = version
	return s.flush()
}

func (s *File) Close() error {
	return nil
}

// flush writes the whole document via a temp file and rename, so a crash
// mid-write never leaves a truncated store.
func (s *File) flush() error {
	data, err := json.MarshalIndent(s.m, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".watch-store-*")
	if err != nil {
		return fmt.Errorf("creating temp store file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("writing store file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replacing store file: %w", err)
	}
	return nil
}
