// File: internal/vector/index.go

// Package vector provides an in-memory document index with cosine
// similarity search. It backs the retrieval tool in development and tests;
// production deployments substitute a real vector store behind the same
// schemas.DocumentIndex interface.
package vector

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/reagentworks/reagent/api/schemas"
)

// Document is one indexed entry: its text, vector, and free-form metadata.
type Document struct {
	ID       string
	Text     string
	Vector   []float32
	Metadata map[string]any
}

// Index stores documents per collection and answers similarity searches.
// Reads dominate; a RWMutex guards the collection map.
type Index struct {
	mu          sync.RWMutex
	collections map[string][]Document
	logger      *zap.Logger
}

var _ schemas.DocumentIndex = (*Index)(nil)

// NewIndex creates an empty index.
func NewIndex(logger *zap.Logger) *Index {
	return &Index{
		collections: make(map[string][]Document),
		logger:      logger.Named("vector"),
	}
}

// Upsert adds a document to a collection, replacing any existing document
// with the same id.
func (idx *Index) Upsert(collection string, doc Document) error {
	if collection == "" {
		return fmt.Errorf("collection name must not be empty")
	}
	if len(doc.Vector) == 0 {
		return fmt.Errorf("document %q has an empty vector", doc.ID)
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	docs := idx.collections[collection]
	for i, existing := range docs {
		if existing.ID == doc.ID && doc.ID != "" {
			docs[i] = doc
			return nil
		}
	}
	idx.collections[collection] = append(docs, doc)
	return nil
}

// Count returns the number of documents in a collection.
func (idx *Index) Count(collection string) int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.collections[collection])
}

// Collections lists the known collection names, sorted.
func (idx *Index) Collections() []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	names := make([]string, 0, len(idx.collections))
	for name := range idx.collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Search returns up to topK documents whose cosine similarity to the query
// vector meets threshold, best first. An unknown collection yields no
// results, not an error.
func (idx *Index) Search(ctx context.Context, collection string, vector []float32, topK int, threshold float32) ([]schemas.SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(vector) == 0 {
		return nil, fmt.Errorf("query vector must not be empty")
	}

	idx.mu.RLock()
	docs := idx.collections[collection]
	results := make([]schemas.SearchResult, 0, len(docs))
	for _, doc := range docs {
		score, ok := cosine(vector, doc.Vector)
		if !ok {
			idx.logger.Warn("Skipping document with mismatched dimensions",
				zap.String("collection", collection),
				zap.String("id", doc.ID),
				zap.Int("query_dims", len(vector)),
				zap.Int("doc_dims", len(doc.Vector)),
			)
			continue
		}
		if score < threshold {
			continue
		}
		results = append(results, schemas.SearchResult{
			Text:     doc.Text,
			Score:    score,
			Metadata: doc.Metadata,
		})
	}
	idx.mu.RUnlock()

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// cosine computes cosine similarity. ok is false for mismatched dimensions
// or zero vectors.
func cosine(a, b []float32) (float32, bool) {
	if len(a) != len(b) {
		return 0, false
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0, false
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB))), true
}
