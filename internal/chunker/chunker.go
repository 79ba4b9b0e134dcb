// Package chunker splits document text into bounded, overlapping segments
// that serve as retrieval units.
package chunker

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/qvidal/aor/internal/knowledge"
)

const (
	DefaultMaxSize = 1000
	DefaultOverlap = 200
)

// Chunk is a retrieval unit. Its ID is a deterministic hash of the document
// id, the chunk position and the chunk text, so re-chunking an unchanged
// document yields identical ids. That makes the ID the upsert key.
type Chunk struct {
	ID         string
	DocumentID string
	Text       string
	Position   int
	Start      int // byte offset of the segment in the document text
	End        int
}

// Chunker is a pure function of document text and configuration: same
// input, same chunks.
type Chunker struct {
	maxSize int
	overlap int
}

// New creates a chunker. Out-of-range values fall back to defaults; the
// configuration layer rejects them before a pipeline is built.
func New(maxSize, overlap int) *Chunker {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	if overlap < 0 || overlap >= maxSize {
		overlap = min(DefaultOverlap, maxSize/2)
	}
	return &Chunker{maxSize: maxSize, overlap: overlap}
}

// Chunk splits a document into ordered segments of at most maxSize bytes.
// Cuts prefer paragraph breaks, then sentence ends, then word boundaries
// inside the overlap window; a hard cut happens only when a single unit
// exceeds maxSize. An empty document produces no chunks; a document shorter
// than maxSize produces exactly one chunk spanning the whole text.
func (c *Chunker) Chunk(doc knowledge.Document) []Chunk {
	text := doc.RawText
	if strings.TrimSpace(text) == "" {
		return nil
	}

	if len(text) <= c.maxSize {
		return []Chunk{c.newChunk(doc.ID, 0, text, 0, len(text))}
	}

	var chunks []Chunk
	start := 0
	for start < len(text) {
		end := start + c.maxSize
		if end >= len(text) {
			end = len(text)
		} else {
			end = c.cut(text, start, end)
		}

		if strings.TrimSpace(text[start:end]) != "" {
			chunks = append(chunks, c.newChunk(doc.ID, len(chunks), text[start:end], start, end))
		}

		if end == len(text) {
			break
		}
		next := end - c.overlap
		if next <= start {
			next = end
		}
		start = next
	}

	return chunks
}

// MaxSize reports the configured chunk size bound.
func (c *Chunker) MaxSize() int { return c.maxSize }

// Overlap reports the configured overlap between consecutive chunks.
func (c *Chunker) Overlap() int { return c.overlap }

func (c *Chunker) newChunk(docID string, position int, segment string, start, end int) Chunk {
	return Chunk{
		ID:         ChunkID(docID, position, segment),
		DocumentID: docID,
		Text:       strings.TrimSpace(segment),
		Position:   position,
		Start:      start,
		End:        end,
	}
}

// cut picks a boundary in (start, limit], preferring semantic breaks. The
// search window for sentence and word boundaries is the overlap span, so a
// boundary never slides further back than one window.
func (c *Chunker) cut(text string, start, limit int) int {
	window := max(start+1, limit-c.overlap)

	// Paragraph breaks may appear anywhere in the chunk.
	if i := strings.LastIndex(text[start:limit], "\n\n"); i > 0 {
		return start + i + 2
	}

	for _, sep := range []string{". ", "! ", "? ", "\n"} {
		if i := strings.LastIndex(text[window:limit], sep); i >= 0 {
			return window + i + len(sep)
		}
	}

	if i := strings.LastIndex(text[window:limit], " "); i >= 0 {
		return window + i + 1
	}

	// Hard cut, aligned to a rune boundary.
	for limit > start+1 && !utf8.RuneStart(text[limit]) {
		limit--
	}
	return limit
}

// ChunkID derives the deterministic identity of a chunk.
func ChunkID(documentID string, position int, text string) string {
	sum := sha256.Sum256(fmt.Appendf(nil, "%s\x1f%d\x1f%s", documentID, position, text))
	return hex.EncodeToString(sum[:16])
}
