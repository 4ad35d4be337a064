// Package retrieval turns a query into supporting context from an indexed
// document collection.
package retrieval

import (
	"context"
	"fmt"
	"strings"
)

// Collection names a separately indexed body of documents.
type Collection string

const (
	// CompanyDocs holds text extracted from the business's PDF documents.
	CompanyDocs Collection = "company_docs"
	// WebDocs holds pages scraped from the business's website.
	WebDocs Collection = "web_docs"
)

// ParseCollection validates a collection name from configuration or a request.
func ParseCollection(s string) (Collection, error) {
	switch c := Collection(strings.TrimSpace(s)); c {
	case CompanyDocs, WebDocs:
		return c, nil
	default:
		return "", fmt.Errorf("retrieval: unknown collection %q", s)
	}
}

// DefaultTopK is how many passages are requested per query.
const DefaultTopK = 3

// Separator joins passages into a single context string.
const Separator = "\n\n"

// Passage is one stored chunk returned by a search.
type Passage struct {
	Content string
	Score   float64
}

// Searcher is the vector search backend.
type Searcher interface {
	Search(ctx context.Context, collection Collection, query string, k int) ([]Passage, error)
}

// Retriever fetches the top passages for a query and joins them, in the order
// returned, into one context string. It does no re-ranking or deduplication.
type Retriever struct {
	searcher Searcher
	topK     int
}

func NewRetriever(searcher Searcher, topK int) *Retriever {
	if searcher == nil {
		panic("retrieval: searcher cannot be nil")
	}
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Retriever{searcher: searcher, topK: topK}
}

func (r *Retriever) Retrieve(ctx context.Context, query string, collection Collection) (string, error) {
	passages, err := r.searcher.Search(ctx, collection, query, r.topK)
	if err != nil {
		return "", fmt.Errorf("retrieval: search %s: %w", collection, err)
	}
	parts := make([]string, 0, len(passages))
	for _, p := range passages {
		parts = append(parts, p.Content)
	}
	return strings.Join(parts, Separator), nil
}
