//go:build integration

package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDimension = 8

// setupTestIndex connects to a local Qdrant and prepares a throwaway
// collection. Skips when Qdrant is not running.
func setupTestIndex(t *testing.T) *QdrantIndex {
	idx, err := NewQdrantIndex("localhost", 6334, "aor_test_"+t.Name(), testDimension)
	if err != nil {
		t.Skipf("Qdrant not available: %v", err)
	}
	t.Cleanup(func() { idx.Close() })

	require.NoError(t, idx.EnsureCollection(context.Background()))
	t.Cleanup(func() { _ = idx.client.DeleteCollection(context.Background(), idx.collection) })

	return idx
}

func vec(seed float32) []float32 {
	v := make([]float32, testDimension)
	for i := range v {
		v[i] = seed + float32(i)*0.01
	}
	return v
}

func TestUpsertAndQuery(t *testing.T) {
	idx := setupTestIndex(t)
	ctx := context.Background()

	entries := []Entry{
		{ChunkID: "c1", DocumentID: "d1", SourcePath: "kb/sla.md", Position: 0, Text: "Notre SLA de support est de 4 heures.", Vector: vec(1)},
		{ChunkID: "c2", DocumentID: "d1", SourcePath: "kb/sla.md", Position: 1, Text: "Les astreintes couvrent le week-end.", Vector: vec(-1)},
	}
	require.NoError(t, idx.Upsert(ctx, entries))

	results, err := idx.Query(ctx, vec(1), 5, 0)
	require.NoError(t, err)
	require.NotEmpty(t, results)

	assert.Equal(t, "c1", results[0].ChunkID)
	assert.Equal(t, "d1", results[0].DocumentID)
	assert.Equal(t, "kb/sla.md", results[0].SourcePath)
	assert.Greater(t, results[0].Score, 0.9)
}

func TestUpsert_IsIdempotent(t *testing.T) {
	idx := setupTestIndex(t)
	ctx := context.Background()

	entry := Entry{ChunkID: "c1", DocumentID: "d1", SourcePath: "kb/a.md", Text: "texte", Vector: vec(2)}
	require.NoError(t, idx.Upsert(ctx, []Entry{entry}))
	require.NoError(t, idx.Upsert(ctx, []Entry{entry}))

	count, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)
}

func TestUpsert_DimensionMismatch(t *testing.T) {
	idx := setupTestIndex(t)

	err := idx.Upsert(context.Background(), []Entry{
		{ChunkID: "c1", DocumentID: "d1", Vector: []float32{1, 2}},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDimensionMismatch))
}

func TestQuery_ThresholdFiltersResults(t *testing.T) {
	idx := setupTestIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, []Entry{
		{ChunkID: "near", DocumentID: "d1", Text: "proche", Vector: vec(1)},
		{ChunkID: "far", DocumentID: "d1", Text: "lointain", Vector: vec(-1)},
	}))

	results, err := idx.Query(ctx, vec(1), 10, 0.95)
	require.NoError(t, err)

	for _, r := range results {
		assert.GreaterOrEqual(t, r.Score, 0.95)
	}
}

func TestQuery_EmptyResultIsNotAnError(t *testing.T) {
	idx := setupTestIndex(t)

	results, err := idx.Query(context.Background(), vec(1), 5, 0.99)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestManifestLifecycle(t *testing.T) {
	idx := setupTestIndex(t)
	ctx := context.Background()

	_, err := idx.Manifest(ctx, "kb/nouveau.md")
	assert.True(t, errors.Is(err, ErrManifestNotFound))

	m := Manifest{
		DocumentID:  "d1",
		SourcePath:  "kb/nouveau.md",
		ContentHash: "hash1",
		ChunkIDs:    []string{"c1", "c2"},
		IndexedAt:   time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, idx.PutManifest(ctx, m))

	got, err := idx.Manifest(ctx, "kb/nouveau.md")
	require.NoError(t, err)
	assert.Equal(t, m.ContentHash, got.ContentHash)
	assert.Equal(t, m.ChunkIDs, got.ChunkIDs)

	// Replacing the manifest for the same path keeps a single point.
	m.ContentHash = "hash2"
	m.ChunkIDs = []string{"c3"}
	require.NoError(t, idx.PutManifest(ctx, m))

	got, err = idx.Manifest(ctx, "kb/nouveau.md")
	require.NoError(t, err)
	assert.Equal(t, "hash2", got.ContentHash)
	assert.Equal(t, []string{"c3"}, got.ChunkIDs)
}

func TestDeleteChunks(t *testing.T) {
	idx := setupTestIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, []Entry{
		{ChunkID: "keep", DocumentID: "d1", Text: "garde", Vector: vec(1)},
		{ChunkID: "stale", DocumentID: "d1", Text: "périmé", Vector: vec(2)},
	}))

	require.NoError(t, idx.DeleteChunks(ctx, []string{"stale"}))

	results, err := idx.Query(ctx, vec(2), 10, 0)
	require.NoError(t, err)
	for _, r := range results {
		assert.NotEqual(t, "stale", r.ChunkID)
	}
}
