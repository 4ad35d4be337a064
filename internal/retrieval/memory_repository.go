package retrieval

import (
	"context"
	"sync"
)

// MemoryChunkRepository is a process-local ChunkRepository for tests and
// single-process deployments without Redis.
type MemoryChunkRepository struct {
	mu       sync.RWMutex
	chunks   map[Collection][]string
	versions map[Collection]int64
}

func NewMemoryChunkRepository() *MemoryChunkRepository {
	return &MemoryChunkRepository{
		chunks:   make(map[Collection][]string),
		versions: make(map[Collection]int64),
	}
}

func (r *MemoryChunkRepository) Append(_ context.Context, collection Collection, chunks []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chunks[collection] = append(r.chunks[collection], chunks...)
	return nil
}

func (r *MemoryChunkRepository) Replace(_ context.Context, collection Collection, chunks []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chunks[collection] = append([]string(nil), chunks...)
	r.versions[collection]++
	return nil
}

func (r *MemoryChunkRepository) Get(_ context.Context, collection Collection) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.chunks[collection]...), nil
}

func (r *MemoryChunkRepository) Version(_ context.Context, collection Collection) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.versions[collection], nil
}
