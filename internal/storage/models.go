package storage

import (
	"context"
	"time"
)

// Entry is the persisted triple of a chunk, its embedding and the metadata
// retrieval needs. ChunkID is the upsert key: re-indexing an unchanged
// document writes the same entries over themselves.
type Entry struct {
	ChunkID    string
	DocumentID string
	SourcePath string
	Position   int
	Text       string
	Vector     []float32
}

// ScoredChunk is one ranked similarity result.
type ScoredChunk struct {
	ChunkID    string
	DocumentID string
	SourcePath string
	Position   int
	Text       string
	Score      float64
}

// Manifest records what the index holds for one source document. The
// content hash drives skip-unchanged re-indexing; the chunk id set drives
// garbage collection of chunks a changed document no longer produces.
type Manifest struct {
	DocumentID  string
	SourcePath  string
	ContentHash string
	ChunkIDs    []string
	IndexedAt   time.Time
}

// VectorIndex is the capability the retrieval core needs from a vector
// store backend. Alternative backends substitute here without touching the
// chunker, retriever or answer generator.
type VectorIndex interface {
	// Upsert inserts entries, replacing any sharing the same ChunkID. A
	// failed batch commits nothing and can be re-driven.
	Upsert(ctx context.Context, entries []Entry) error

	// Query returns at most topK entries with score >= minScore, ranked by
	// similarity. An empty result is not an error: it means no sufficiently
	// relevant knowledge exists.
	Query(ctx context.Context, vector []float32, topK int, minScore float64) ([]ScoredChunk, error)
}
