package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qvidal/aor/internal/chunker"
	"github.com/qvidal/aor/internal/knowledge"
	"github.com/qvidal/aor/internal/storage"
)

// fakeSource serves a fixed document set.
type fakeSource struct {
	docs []knowledge.Document
	err  error
}

func (f *fakeSource) Documents(ctx context.Context) ([]knowledge.Document, error) {
	return f.docs, f.err
}

// fakeEmbedder counts batch calls and fails for texts containing failOn.
type fakeEmbedder struct {
	mu     sync.Mutex
	calls  int
	failOn string
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		if f.failOn != "" && strings.Contains(text, f.failOn) {
			return nil, errors.New("embedding provider error")
		}
		vectors[i] = []float32{float32(len(text)), 1}
	}
	return vectors, nil
}

func (f *fakeEmbedder) batchCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// memoryIndex is an in-memory Index implementation.
type memoryIndex struct {
	mu        sync.Mutex
	entries   map[string]storage.Entry
	manifests map[string]storage.Manifest
}

func newMemoryIndex() *memoryIndex {
	return &memoryIndex{
		entries:   make(map[string]storage.Entry),
		manifests: make(map[string]storage.Manifest),
	}
}

func (m *memoryIndex) Upsert(ctx context.Context, entries []storage.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range entries {
		m.entries[e.ChunkID] = e
	}
	return nil
}

func (m *memoryIndex) Query(ctx context.Context, vector []float32, topK int, minScore float64) ([]storage.ScoredChunk, error) {
	return nil, nil
}

func (m *memoryIndex) Manifest(ctx context.Context, sourcePath string) (*storage.Manifest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if mf, ok := m.manifests[sourcePath]; ok {
		return &mf, nil
	}
	return nil, storage.ErrManifestNotFound
}

func (m *memoryIndex) PutManifest(ctx context.Context, mf storage.Manifest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.manifests[mf.SourcePath] = mf
	return nil
}

func (m *memoryIndex) DeleteChunks(ctx context.Context, chunkIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range chunkIDs {
		delete(m.entries, id)
	}
	return nil
}

func (m *memoryIndex) entryCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func docFrom(path, text string) knowledge.Document {
	return knowledge.NewDocument(path, text, time.Time{})
}

func newTestIndexer(source knowledge.Source, embedder BatchEmbedder, index Index) *Indexer {
	return NewIndexer(source, chunker.New(100, 20), embedder, index, 2, nil)
}

func TestIndexAll_FreshDocuments(t *testing.T) {
	source := &fakeSource{docs: []knowledge.Document{
		docFrom("kb/sla.md", "Notre SLA de support est de 4 heures."),
		docFrom("kb/securite.md", "Les données sont hébergées en France."),
	}}
	embedder := &fakeEmbedder{}
	index := newMemoryIndex()

	result, err := newTestIndexer(source, embedder, index).IndexAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, result.TotalDocs)
	assert.Equal(t, 2, result.IndexedDocs)
	assert.Equal(t, 0, result.SkippedDocs)
	assert.Empty(t, result.FailedDocs)
	assert.Equal(t, 2, result.TotalChunks)
	assert.Equal(t, 2, index.entryCount())
	assert.Len(t, index.manifests, 2)
}

func TestIndexAll_UnchangedDocumentsSkipEmbedding(t *testing.T) {
	source := &fakeSource{docs: []knowledge.Document{
		docFrom("kb/sla.md", "Notre SLA de support est de 4 heures."),
	}}
	embedder := &fakeEmbedder{}
	index := newMemoryIndex()
	indexer := newTestIndexer(source, embedder, index)

	_, err := indexer.IndexAll(context.Background())
	require.NoError(t, err)
	firstCalls := embedder.batchCalls()
	firstEntries := index.entryCount()

	result, err := indexer.IndexAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.SkippedDocs)
	assert.Equal(t, 0, result.IndexedDocs)
	assert.Equal(t, firstCalls, embedder.batchCalls(), "re-indexing unchanged content must not call the embedder")
	assert.Equal(t, firstEntries, index.entryCount(), "entry set must stay unchanged")
}

func TestIndexAll_ChangedDocumentGarbageCollectsStaleChunks(t *testing.T) {
	longText := strings.Repeat("Ancien contenu détaillé sur les garanties. ", 10)
	source := &fakeSource{docs: []knowledge.Document{docFrom("kb/garanties.md", longText)}}
	embedder := &fakeEmbedder{}
	index := newMemoryIndex()

	_, err := newTestIndexer(source, embedder, index).IndexAll(context.Background())
	require.NoError(t, err)
	oldManifest := index.manifests["kb/garanties.md"]
	require.Greater(t, len(oldManifest.ChunkIDs), 1)

	// Same path, different content: new document identity, new chunk ids.
	source.docs = []knowledge.Document{docFrom("kb/garanties.md", "Contenu entièrement réécrit.")}

	result, err := newTestIndexer(source, embedder, index).IndexAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.IndexedDocs)
	assert.Equal(t, len(oldManifest.ChunkIDs), result.DeletedChunks)

	newManifest := index.manifests["kb/garanties.md"]
	assert.NotEqual(t, oldManifest.ContentHash, newManifest.ContentHash)
	assert.Equal(t, index.entryCount(), len(newManifest.ChunkIDs))
	for _, stale := range oldManifest.ChunkIDs {
		_, present := index.entries[stale]
		assert.False(t, present, "stale chunk %s survived garbage collection", stale)
	}
}

func TestIndexAll_OneFailureDoesNotAbortBatch(t *testing.T) {
	source := &fakeSource{docs: []knowledge.Document{
		docFrom("kb/ok.md", "Document parfaitement valide."),
		docFrom("kb/casse.md", "Document TOXIQUE pour l'embedder."),
	}}
	embedder := &fakeEmbedder{failOn: "TOXIQUE"}
	index := newMemoryIndex()

	result, err := newTestIndexer(source, embedder, index).IndexAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.IndexedDocs)
	require.Len(t, result.FailedDocs, 1)
	assert.Equal(t, "kb/casse.md", result.FailedDocs[0].SourcePath)
	assert.Contains(t, result.FailedDocs[0].Reason, "embed")
}

func TestIndexAll_SourceFailureAborts(t *testing.T) {
	source := &fakeSource{err: errors.New("scan failed")}

	_, err := newTestIndexer(source, &fakeEmbedder{}, newMemoryIndex()).IndexAll(context.Background())
	require.Error(t, err)
}

func TestIndexAll_CancelledContextPreservesPartialResult(t *testing.T) {
	source := &fakeSource{docs: []knowledge.Document{
		docFrom("kb/a.md", "Premier document."),
		docFrom("kb/b.md", "Deuxième document."),
	}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := newTestIndexer(source, &fakeEmbedder{}, newMemoryIndex()).IndexAll(ctx)
	require.Error(t, err)
	require.NotNil(t, result)
	assert.Equal(t, 2, result.TotalDocs)
}

func TestStaleChunkIDs(t *testing.T) {
	stale := staleChunkIDs([]string{"a", "b", "c"}, []string{"b", "d"})
	assert.Equal(t, []string{"a", "c"}, stale)

	assert.Empty(t, staleChunkIDs([]string{"a"}, []string{"a"}))
	assert.Empty(t, staleChunkIDs(nil, []string{"a"}))
}
