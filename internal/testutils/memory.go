package testutils

import (
	"context"
	"sync"

	"github.com/ahrav/go-tourney/internal/domain"
	"github.com/ahrav/go-tourney/internal/ports"
)

// MemoryCache is an in-memory ports.ResponseCache.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]string
	gets    int
}

var _ ports.ResponseCache = (*MemoryCache)(nil)

// NewMemoryCache returns an empty cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]string)}
}

// Get returns the entry for key.
func (c *MemoryCache) Get(_ context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	v, ok := c.entries[key]
	return v, ok, nil
}

// Put stores response under key.
func (c *MemoryCache) Put(_ context.Context, key, response string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = response
	return nil
}

// Len returns the number of entries.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// MemoryStore is an in-memory ports.MatrixStore. Matrices are cloned on
// the way in and out so callers cannot mutate stored state.
type MemoryStore struct {
	mu       sync.Mutex
	matrices domain.Results
	locks    map[string]*sync.Mutex
	saves    int
}

var _ ports.MatrixStore = (*MemoryStore)(nil)

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{matrices: make(domain.Results), locks: make(map[string]*sync.Mutex)}
}

// Load returns a copy of the stored matrix.
func (s *MemoryStore) Load(_ context.Context, textID, judgeID string) (*domain.ScoreMatrix, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.matrices[textID][judgeID]
	if !ok {
		return nil, false, nil
	}
	return m.Clone(), true, nil
}

// Save stores a copy of m.
func (s *MemoryStore) Save(_ context.Context, textID, judgeID string, m *domain.ScoreMatrix) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.matrices.Put(textID, judgeID, m.Clone())
	s.saves++
	return nil
}

// Lock takes a per-pair mutex.
func (s *MemoryStore) Lock(_ context.Context, textID, judgeID string) (func() error, error) {
	s.mu.Lock()
	key := textID + "\x00" + judgeID
	l, ok := s.locks[key]
	if !ok {
		l = &sync.Mutex{}
		s.locks[key] = l
	}
	s.mu.Unlock()

	l.Lock()
	return func() error { l.Unlock(); return nil }, nil
}

// LoadAll returns copies of every stored matrix.
func (s *MemoryStore) LoadAll(_ context.Context) (domain.Results, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(domain.Results)
	for textID, byJudge := range s.matrices {
		for judgeID, m := range byJudge {
			out.Put(textID, judgeID, m.Clone())
		}
	}
	return out, nil
}

// Saves returns how many times Save was called.
func (s *MemoryStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}
