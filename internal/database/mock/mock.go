// Package mock provides mock implementations of database interfaces for testing.
package mock

import (
	"context"
	"sort"
	"sync"

	"github.com/kozaktomas/faceid/internal/database"
)

// MockGalleryStore is a map-backed database.GalleryWriter
type MockGalleryStore struct {
	mu         sync.RWMutex
	embeddings map[string]database.StoredEmbedding

	// Error injection
	LoadError   error
	HasError    error
	CountError  error
	SaveError   error
	DeleteError error

	// Call tracking
	SaveCalls   []database.StoredEmbedding
	DeleteCalls []string
}

// NewMockGalleryStore creates a new empty mock store
func NewMockGalleryStore() *MockGalleryStore {
	return &MockGalleryStore{
		embeddings: make(map[string]database.StoredEmbedding),
	}
}

// AddEmbedding seeds the store without recording a save call
func (m *MockGalleryStore) AddEmbedding(e database.StoredEmbedding) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.embeddings[e.Identity] = e
}

// Embedding returns the stored record for identity
func (m *MockGalleryStore) Embedding(identity string) (database.StoredEmbedding, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.embeddings[identity]
	return e, ok
}

// LoadGallery returns every record ordered by identity
func (m *MockGalleryStore) LoadGallery(ctx context.Context) ([]database.StoredEmbedding, error) {
	if m.LoadError != nil {
		return nil, m.LoadError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]database.StoredEmbedding, 0, len(m.embeddings))
	for _, e := range m.embeddings {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Identity < out[j].Identity })
	return out, nil
}

// HasEmbedding checks if an embedding exists
func (m *MockGalleryStore) HasEmbedding(ctx context.Context, identity string) (bool, error) {
	if m.HasError != nil {
		return false, m.HasError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.embeddings[identity]
	return ok, nil
}

// Count returns the number of records
func (m *MockGalleryStore) Count(ctx context.Context) (int, error) {
	if m.CountError != nil {
		return 0, m.CountError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.embeddings), nil
}

// SaveEmbedding upserts a record
func (m *MockGalleryStore) SaveEmbedding(ctx context.Context, e database.StoredEmbedding) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SaveCalls = append(m.SaveCalls, e)
	if m.SaveError != nil {
		return m.SaveError
	}
	m.embeddings[e.Identity] = e
	return nil
}

// DeleteEmbedding removes a record, absent identities are ignored
func (m *MockGalleryStore) DeleteEmbedding(ctx context.Context, identity string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DeleteCalls = append(m.DeleteCalls, identity)
	if m.DeleteError != nil {
		return m.DeleteError
	}
	delete(m.embeddings, identity)
	return nil
}

var _ database.GalleryWriter = (*MockGalleryStore)(nil)
