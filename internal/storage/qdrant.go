// Package storage persists chunk embeddings and document manifests in
// Qdrant and serves similarity queries over them.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

// vectorName is the named vector carrying chunk embeddings. Manifest points
// share the collection but carry no vector.
const vectorName = "content"

// pointNamespace anchors SHA1 UUIDs so content-derived string keys become
// valid, deterministic Qdrant point ids. Same key, same point: that is what
// makes Upsert idempotent.
var pointNamespace = uuid.MustParse("7c4a24f2-30c8-4b44-9764-81d2e1c0a571")

// QdrantIndex implements VectorIndex on a Qdrant collection, plus the
// manifest bookkeeping the indexing pipeline needs for skip-unchanged
// re-indexing and stale chunk garbage collection.
type QdrantIndex struct {
	client     *qdrant.Client
	collection string
	dimension  int
}

// NewQdrantIndex connects to Qdrant and validates health with retry,
// failing fast with ErrStoreUnavailable if the backend stays unreachable.
func NewQdrantIndex(host string, port int, collection string, dimension int) (*QdrantIndex, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("create qdrant client: %w", err)
	}

	idx := &QdrantIndex{
		client:     client,
		collection: collection,
		dimension:  dimension,
	}

	if err := idx.healthCheckWithRetry(context.Background()); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	return idx, nil
}

func (s *QdrantIndex) healthCheckWithRetry(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second

	return backoff.Retry(func() error {
		return s.Health(ctx)
	}, backoff.WithContext(b, ctx))
}

// Health performs a single health check.
func (s *QdrantIndex) Health(ctx context.Context) error {
	result, err := s.client.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if result == nil || result.Title == "" {
		return fmt.Errorf("health check returned invalid response")
	}
	return nil
}

// EnsureCollection creates the collection (cosine distance, configured
// dimension) and its payload indexes if they do not exist. Idempotent.
func (s *QdrantIndex) EnsureCollection(ctx context.Context) error {
	collections, err := s.client.ListCollections(ctx)
	if err != nil {
		return fmt.Errorf("%w: list collections: %v", ErrStoreUnavailable, err)
	}
	for _, name := range collections {
		if name == s.collection {
			return nil
		}
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfigMap(map[string]*qdrant.VectorParams{
			vectorName: {
				Size:     uint64(s.dimension),
				Distance: qdrant.Distance_Cosine,
			},
		}),
	})
	if err != nil {
		return fmt.Errorf("%w: create collection: %v", ErrStoreUnavailable, err)
	}

	// Without these indexes payload filtering degrades badly on large bases.
	for _, field := range []string{"type", "source_path", "document_id"} {
		_, err := s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: s.collection,
			FieldName:      field,
			FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
		})
		if err != nil {
			return fmt.Errorf("%w: create index for %s: %v", ErrStoreUnavailable, field, err)
		}
	}

	return nil
}

// ClearCollection drops and recreates the collection.
func (s *QdrantIndex) ClearCollection(ctx context.Context) error {
	if err := s.client.DeleteCollection(ctx, s.collection); err != nil {
		return fmt.Errorf("%w: delete collection: %v", ErrStoreUnavailable, err)
	}
	return s.EnsureCollection(ctx)
}

// Close releases the client connection.
func (s *QdrantIndex) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// Upsert stores entries in batches of 100. Each batch is retried as a unit
// with exponential backoff; a batch that ultimately fails commits nothing
// and the caller can re-drive the whole call.
func (s *QdrantIndex) Upsert(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	for i, entry := range entries {
		if len(entry.Vector) != s.dimension {
			return fmt.Errorf("%w: entry %d has %d dimensions, expected %d",
				ErrDimensionMismatch, i, len(entry.Vector), s.dimension)
		}
	}

	const batchSize = 100
	for i := 0; i < len(entries); i += batchSize {
		end := min(i+batchSize, len(entries))
		batch := entries[i:end]

		points := make([]*qdrant.PointStruct, len(batch))
		for j, entry := range batch {
			points[j] = &qdrant.PointStruct{
				Id: pointID("chunk", entry.ChunkID),
				Vectors: qdrant.NewVectorsMap(map[string]*qdrant.Vector{
					vectorName: qdrant.NewVector(entry.Vector...),
				}),
				Payload: qdrant.NewValueMap(map[string]any{
					"type":        "chunk",
					"chunk_id":    entry.ChunkID,
					"document_id": entry.DocumentID,
					"source_path": entry.SourcePath,
					"position":    entry.Position,
					"text":        entry.Text,
				}),
			}
		}

		if err := s.upsertWithRetry(ctx, points); err != nil {
			return fmt.Errorf("%w: upsert batch %d-%d: %v", ErrStoreUnavailable, i, end, err)
		}
	}

	return nil
}

func (s *QdrantIndex) upsertWithRetry(ctx context.Context, points []*qdrant.PointStruct) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second

	return backoff.Retry(func() error {
		_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: s.collection,
			Points:         points,
		})
		return err
	}, backoff.WithContext(b, ctx))
}

// Query runs a similarity search over chunk points. The score threshold is
// applied by the backend, so a result below minScore never comes back.
func (s *QdrantIndex) Query(ctx context.Context, vector []float32, topK int, minScore float64) ([]ScoredChunk, error) {
	if len(vector) != s.dimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, expected %d",
			ErrDimensionMismatch, len(vector), s.dimension)
	}

	using := vectorName
	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(vector...),
		Using:          &using,
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatch("type", "chunk")},
		},
		Limit:          qdrant.PtrOf(uint64(topK)),
		ScoreThreshold: qdrant.PtrOf(float32(minScore)),
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(false),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: query: %v", ErrStoreUnavailable, err)
	}

	chunks := make([]ScoredChunk, 0, len(results))
	for _, result := range results {
		payload := result.Payload
		chunks = append(chunks, ScoredChunk{
			ChunkID:    payload["chunk_id"].GetStringValue(),
			DocumentID: payload["document_id"].GetStringValue(),
			SourcePath: payload["source_path"].GetStringValue(),
			Position:   int(payload["position"].GetIntegerValue()),
			Text:       payload["text"].GetStringValue(),
			Score:      float64(result.Score),
		})
	}

	return chunks, nil
}

// Manifest retrieves the index manifest for a source document. Returns
// ErrManifestNotFound if the document has never been indexed.
func (s *QdrantIndex) Manifest(ctx context.Context, sourcePath string) (*Manifest, error) {
	results, err := s.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: s.collection,
		Ids:            []*qdrant.PointId{pointID("manifest", sourcePath)},
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: get manifest: %v", ErrStoreUnavailable, err)
	}
	if len(results) == 0 {
		return nil, ErrManifestNotFound
	}

	return manifestFromPayload(results[0].Payload), nil
}

// PutManifest records what the index now holds for a document.
func (s *QdrantIndex) PutManifest(ctx context.Context, m Manifest) error {
	chunkIDs := make([]any, len(m.ChunkIDs))
	for i, id := range m.ChunkIDs {
		chunkIDs[i] = id
	}

	point := &qdrant.PointStruct{
		Id:      pointID("manifest", m.SourcePath),
		Vectors: qdrant.NewVectorsMap(map[string]*qdrant.Vector{}),
		Payload: qdrant.NewValueMap(map[string]any{
			"type":         "manifest",
			"document_id":  m.DocumentID,
			"source_path":  m.SourcePath,
			"content_hash": m.ContentHash,
			"chunk_ids":    chunkIDs,
			"indexed_at":   m.IndexedAt.Format(time.RFC3339),
		}),
	}

	if err := s.upsertWithRetry(ctx, []*qdrant.PointStruct{point}); err != nil {
		return fmt.Errorf("%w: put manifest: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// DeleteChunks removes chunk points by chunk id. Used to garbage-collect
// chunks a re-indexed document no longer produces.
func (s *QdrantIndex) DeleteChunks(ctx context.Context, chunkIDs []string) error {
	if len(chunkIDs) == 0 {
		return nil
	}

	ids := make([]*qdrant.PointId, len(chunkIDs))
	for i, id := range chunkIDs {
		ids[i] = pointID("chunk", id)
	}

	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collection,
		Points:         qdrant.NewPointsSelector(ids...),
	})
	if err != nil {
		return fmt.Errorf("%w: delete chunks: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Manifests scrolls all document manifests, for status reporting.
func (s *QdrantIndex) Manifests(ctx context.Context) ([]Manifest, error) {
	var manifests []Manifest
	var offset *qdrant.PointId
	batchSize := uint32(100)

	for {
		results, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
			CollectionName: s.collection,
			Filter: &qdrant.Filter{
				Must: []*qdrant.Condition{qdrant.NewMatch("type", "manifest")},
			},
			Limit:       qdrant.PtrOf(batchSize),
			Offset:      offset,
			WithPayload: qdrant.NewWithPayload(true),
		})
		if err != nil {
			return nil, fmt.Errorf("%w: scroll manifests: %v", ErrStoreUnavailable, err)
		}

		for _, result := range results {
			manifests = append(manifests, *manifestFromPayload(result.Payload))
		}

		if uint32(len(results)) < batchSize {
			break
		}
		offset = results[len(results)-1].Id
	}

	return manifests, nil
}

// Count returns the total number of points in the collection.
func (s *QdrantIndex) Count(ctx context.Context) (uint64, error) {
	info, err := s.client.GetCollectionInfo(ctx, s.collection)
	if err != nil {
		return 0, fmt.Errorf("%w: get collection: %v", ErrStoreUnavailable, err)
	}
	return info.GetPointsCount(), nil
}

func manifestFromPayload(payload map[string]*qdrant.Value) *Manifest {
	indexedAt, err := time.Parse(time.RFC3339, payload["indexed_at"].GetStringValue())
	if err != nil {
		indexedAt = time.Time{}
	}

	var chunkIDs []string
	if list := payload["chunk_ids"].GetListValue(); list != nil {
		for _, v := range list.Values {
			chunkIDs = append(chunkIDs, v.GetStringValue())
		}
	}

	return &Manifest{
		DocumentID:  payload["document_id"].GetStringValue(),
		SourcePath:  payload["source_path"].GetStringValue(),
		ContentHash: payload["content_hash"].GetStringValue(),
		ChunkIDs:    chunkIDs,
		IndexedAt:   indexedAt,
	}
}

// pointID derives a deterministic Qdrant point id from a content-derived
// key. The kind prefix keeps chunk and manifest id spaces disjoint.
func pointID(kind, key string) *qdrant.PointId {
	return qdrant.NewIDUUID(uuid.NewSHA1(pointNamespace, []byte(kind+":"+key)).String())
}
