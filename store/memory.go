package store

import (
	"context"
	"sync"
)

// Memory is an in-process Store. Safe for concurrent use.
type Memory struct {
	mu sync.RWMutex
	m  map[string]string
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{m: make(map[string]string)}
}

func (s *Memory) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.m[key]
	return v, ok, nil
}

func (s *Memory) Set(_ context.Context, key, version string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = version
	return nil
}

func (s *Memory) Close() error {
	return nil
}

// Len returns the number of stored entries.
func (s *Memory) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.m)
}
