package retrieval

import (
	"context"
	"errors"
	"math"
	"sort"
	"sync"
)

// VectorStore keeps embedded chunks in memory, one index per collection, and
// ranks them by cosine similarity.
type VectorStore struct {
	embedder Embedder

	mu   sync.RWMutex
	docs map[Collection][]storedChunk
}

type storedChunk struct {
	content   string
	embedding []float32
}

func NewVectorStore(embedder Embedder) *VectorStore {
	if embedder == nil {
		panic("retrieval: embedder cannot be nil")
	}
	return &VectorStore{
		embedder: embedder,
		docs:     make(map[Collection][]storedChunk),
	}
}

// Add embeds and appends chunks to a collection.
func (s *VectorStore) Add(ctx context.Context, collection Collection, chunks []string) error {
	embedded, err := s.embed(ctx, chunks)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[collection] = append(s.docs[collection], embedded...)
	return nil
}

// Replace swaps the whole collection for chunks.
func (s *VectorStore) Replace(ctx context.Context, collection Collection, chunks []string) error {
	embedded, err := s.embed(ctx, chunks)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[collection] = embedded
	return nil
}

// Len reports how many chunks a collection holds.
func (s *VectorStore) Len(collection Collection) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs[collection])
}

func (s *VectorStore) Search(ctx context.Context, collection Collection, query string, k int) ([]Passage, error) {
	if k <= 0 {
		k = DefaultTopK
	}

	s.mu.RLock()
	empty := len(s.docs[collection]) == 0
	s.mu.RUnlock()
	if empty {
		return nil, nil
	}

	vecs, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 {
		return nil, nil
	}
	queryVec := vecs[0]

	s.mu.RLock()
	candidates := s.docs[collection]
	results := make([]Passage, 0, len(candidates))
	for _, doc := range candidates {
		results = append(results, Passage{Content: doc.content, Score: cosineSimilarity(queryVec, doc.embedding)})
	}
	s.mu.RUnlock()

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

func (s *VectorStore) embed(ctx context.Context, chunks []string) ([]storedChunk, error) {
	if len(chunks) == 0 {
		return nil, nil
	}
	vecs, err := s.embedder.Embed(ctx, chunks)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(chunks) {
		return nil, errors.New("retrieval: embedder returned wrong number of vectors")
	}
	out := make([]storedChunk, len(chunks))
	for i := range chunks {
		out[i] = storedChunk{content: chunks[i], embedding: vecs[i]}
	}
	return out, nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i] * b[i])
		normA += float64(a[i] * a[i])
		normB += float64(b[i] * b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
