// Package pipeline orchestrates the two batch flows: indexing knowledge
// documents into the vector store, and answering questionnaires against it.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/qvidal/aor/internal/chunker"
	"github.com/qvidal/aor/internal/knowledge"
	"github.com/qvidal/aor/internal/storage"
)

// BatchEmbedder is the batched embedding capability indexing needs.
type BatchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Index extends the core VectorIndex capability with the manifest
// bookkeeping that makes re-indexing idempotent and garbage-collected.
type Index interface {
	storage.VectorIndex
	Manifest(ctx context.Context, sourcePath string) (*storage.Manifest, error)
	PutManifest(ctx context.Context, m storage.Manifest) error
	DeleteChunks(ctx context.Context, chunkIDs []string) error
}

// IndexResult summarizes one indexing run so the operator can re-run only
// the failed documents.
type IndexResult struct {
	TotalDocs     int
	IndexedDocs   int
	SkippedDocs   int
	TotalChunks   int
	DeletedChunks int
	FailedDocs    []FailedDoc
	Duration      time.Duration
}

// FailedDoc is one document that could not be indexed.
type FailedDoc struct {
	SourcePath string
	Reason     string
}

// Indexer drives documents from a knowledge source into the vector index.
type Indexer struct {
	source   knowledge.Source
	chunker  *chunker.Chunker
	embedder BatchEmbedder
	index    Index
	workers  int
	logger   *slog.Logger
}

// NewIndexer creates an indexing pipeline. workers bounds document-level
// parallelism to respect embedding provider rate limits.
func NewIndexer(source knowledge.Source, ch *chunker.Chunker, embedder BatchEmbedder, index Index, workers int, logger *slog.Logger) *Indexer {
	if workers <= 0 {
		workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{
		source:   source,
		chunker:  ch,
		embedder: embedder,
		index:    index,
		workers:  workers,
		logger:   logger,
	}
}

// IndexAll enumerates the knowledge source and indexes every document,
// skipping those whose content hash is unchanged since the last run. One
// document's failure never aborts the batch. On cancellation, in-flight
// documents finish and already-indexed work stays valid; the partial
// result comes back alongside the context error.
func (p *Indexer) IndexAll(ctx context.Context) (*IndexResult, error) {
	start := time.Now()

	docs, err := p.source.Documents(ctx)
	if err != nil {
		return nil, fmt.Errorf("enumerate documents: %w", err)
	}

	result := &IndexResult{TotalDocs: len(docs)}
	p.logger.Info("Starting indexing", "documents", len(docs), "workers", p.workers)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)

	for _, doc := range docs {
		if gctx.Err() != nil {
			break // cancelled: finish in-flight work, start nothing new
		}

		g.Go(func() error {
			outcome, err := p.indexDocument(gctx, doc)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				p.logger.Warn("Failed to index document", "path", doc.SourcePath, "error", err)
				result.FailedDocs = append(result.FailedDocs, FailedDoc{
					SourcePath: doc.SourcePath,
					Reason:     err.Error(),
				})
				return nil
			}
			if outcome.skipped {
				result.SkippedDocs++
			} else {
				result.IndexedDocs++
				result.TotalChunks += outcome.chunks
				result.DeletedChunks += outcome.deleted
			}
			return nil
		})
	}

	waitErr := g.Wait()
	result.Duration = time.Since(start)

	p.logger.Info("Indexing complete",
		"indexed", result.IndexedDocs,
		"skipped", result.SkippedDocs,
		"failed", len(result.FailedDocs),
		"chunks", result.TotalChunks,
		"deleted_chunks", result.DeletedChunks,
		"duration", result.Duration,
	)

	if waitErr != nil {
		return result, waitErr
	}
	return result, ctx.Err()
}

type indexOutcome struct {
	skipped bool
	chunks  int
	deleted int
}

// indexDocument runs the full per-document flow: hash check, chunking,
// embedding, upsert, stale chunk garbage collection, manifest update.
func (p *Indexer) indexDocument(ctx context.Context, doc knowledge.Document) (indexOutcome, error) {
	previous, err := p.index.Manifest(ctx, doc.SourcePath)
	switch {
	case err == nil:
		if previous.ContentHash == doc.ContentHash {
			// Unchanged content: same chunk ids, same vectors. No-op.
			p.logger.Debug("Skipping unchanged document", "path", doc.SourcePath)
			return indexOutcome{skipped: true}, nil
		}
	case errors.Is(err, storage.ErrManifestNotFound):
		previous = nil
	default:
		return indexOutcome{}, fmt.Errorf("load manifest: %w", err)
	}

	chunks := p.chunker.Chunk(doc)
	if len(chunks) == 0 {
		p.logger.Warn("Document produced no chunks", "path", doc.SourcePath)
		return indexOutcome{skipped: true}, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	vectors, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return indexOutcome{}, fmt.Errorf("embed chunks: %w", err)
	}

	entries := make([]storage.Entry, len(chunks))
	chunkIDs := make([]string, len(chunks))
	for i, c := range chunks {
		entries[i] = storage.Entry{
			ChunkID:    c.ID,
			DocumentID: c.DocumentID,
			SourcePath: doc.SourcePath,
			Position:   c.Position,
			Text:       c.Text,
			Vector:     vectors[i],
		}
		chunkIDs[i] = c.ID
	}

	if err := p.index.Upsert(ctx, entries); err != nil {
		return indexOutcome{}, fmt.Errorf("upsert entries: %w", err)
	}

	// Chunks the previous content produced but the new one does not are
	// garbage-collected; without this, stale vectors accumulate forever.
	deleted := 0
	if previous != nil {
		stale := staleChunkIDs(previous.ChunkIDs, chunkIDs)
		if len(stale) > 0 {
			if err := p.index.DeleteChunks(ctx, stale); err != nil {
				return indexOutcome{}, fmt.Errorf("delete stale chunks: %w", err)
			}
			deleted = len(stale)
		}
	}

	if err := p.index.PutManifest(ctx, storage.Manifest{
		DocumentID:  doc.ID,
		SourcePath:  doc.SourcePath,
		ContentHash: doc.ContentHash,
		ChunkIDs:    chunkIDs,
		IndexedAt:   time.Now().UTC(),
	}); err != nil {
		return indexOutcome{}, fmt.Errorf("store manifest: %w", err)
	}

	p.logger.Info("Indexed document", "path", doc.SourcePath, "chunks", len(chunks), "stale_deleted", deleted)
	return indexOutcome{chunks: len(chunks), deleted: deleted}, nil
}

// staleChunkIDs returns the ids in previous that current no longer holds.
func staleChunkIDs(previous, current []string) []string {
	keep := make(map[string]bool, len(current))
	for _, id := range current {
		keep[id] = true
	}

	var stale []string
	for _, id := range previous {
		if !keep[id] {
			stale = append(stale, id)
		}
	}
	return stale
}
