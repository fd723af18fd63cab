// internal/vector/index_test.go
package vector

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestIndex(t *testing.T) *Index {
	t.Helper()
	return NewIndex(zaptest.NewLogger(t))
}

func TestIndexUpsertAndSearch(t *testing.T) {
	idx := newTestIndex(t)

	require.NoError(t, idx.Upsert("docs", Document{ID: "a", Text: "east", Vector: []float32{1, 0}}))
	require.NoError(t, idx.Upsert("docs", Document{ID: "b", Text: "north", Vector: []float32{0, 1}}))
	require.NoError(t, idx.Upsert("docs", Document{ID: "c", Text: "northeast", Vector: []float32{1, 1}}))

	results, err := idx.Search(context.Background(), "docs", []float32{1, 0}, 0, 0)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "east", results[0].Text)
	assert.InDelta(t, 1.0, float64(results[0].Score), 1e-6)
	assert.Equal(t, "northeast", results[1].Text)
	assert.Equal(t, "north", results[2].Text)
}

func TestIndexSearchTopK(t *testing.T) {
	idx := newTestIndex(t)
	for i := 0; i < 5; i++ {
		require.NoError(t, idx.Upsert("docs", Document{
			ID: fmt.Sprintf("d%d", i), Text: "t", Vector: []float32{1, float32(i)},
		}))
	}

	results, err := idx.Search(context.Background(), "docs", []float32{1, 0}, 2, 0)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestIndexSearchThreshold(t *testing.T) {
	idx := newTestIndex(t)
	require.NoError(t, idx.Upsert("docs", Document{ID: "a", Text: "aligned", Vector: []float32{1, 0}}))
	require.NoError(t, idx.Upsert("docs", Document{ID: "b", Text: "orthogonal", Vector: []float32{0, 1}}))

	results, err := idx.Search(context.Background(), "docs", []float32{1, 0}, 0, 0.5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "aligned", results[0].Text)
}

func TestIndexSearchUnknownCollection(t *testing.T) {
	idx := newTestIndex(t)
	results, err := idx.Search(context.Background(), "nope", []float32{1}, 5, 0)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestIndexSearchEmptyVector(t *testing.T) {
	idx := newTestIndex(t)
	_, err := idx.Search(context.Background(), "docs", nil, 5, 0)
	assert.Error(t, err)
}

func TestIndexSearchSkipsMismatchedDimensions(t *testing.T) {
	idx := newTestIndex(t)
	require.NoError(t, idx.Upsert("docs", Document{ID: "a", Text: "good", Vector: []float32{1, 0}}))
	require.NoError(t, idx.Upsert("docs", Document{ID: "b", Text: "bad", Vector: []float32{1, 0, 0}}))

	results, err := idx.Search(context.Background(), "docs", []float32{1, 0}, 0, 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "good", results[0].Text)
}

func TestIndexUpsertReplacesByID(t *testing.T) {
	idx := newTestIndex(t)
	require.NoError(t, idx.Upsert("docs", Document{ID: "a", Text: "old", Vector: []float32{1, 0}}))
	require.NoError(t, idx.Upsert("docs", Document{ID: "a", Text: "new", Vector: []float32{1, 0}}))

	assert.Equal(t, 1, idx.Count("docs"))
	results, err := idx.Search(context.Background(), "docs", []float32{1, 0}, 1, 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "new", results[0].Text)
}

func TestIndexUpsertValidation(t *testing.T) {
	idx := newTestIndex(t)
	assert.Error(t, idx.Upsert("", Document{ID: "a", Vector: []float32{1}}))
	assert.Error(t, idx.Upsert("docs", Document{ID: "a"}))
}

func TestIndexCollections(t *testing.T) {
	idx := newTestIndex(t)
	require.NoError(t, idx.Upsert("b", Document{ID: "1", Vector: []float32{1}}))
	require.NoError(t, idx.Upsert("a", Document{ID: "2", Vector: []float32{1}}))

	assert.Equal(t, []string{"a", "b"}, idx.Collections())
}

func TestIndexConcurrentAccess(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				id := fmt.Sprintf("w%d-d%d", n, j)
				assert.NoError(t, idx.Upsert("docs", Document{ID: id, Text: id, Vector: []float32{1, float32(j)}}))
				_, err := idx.Search(ctx, "docs", []float32{1, 1}, 3, 0)
				assert.NoError(t, err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 200, idx.Count("docs"))
}
