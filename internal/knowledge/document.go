// Package knowledge loads tender knowledge documents from local and remote
// sources and normalizes them into plain text for indexing.
package knowledge

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Document is a unit of knowledge content. Its ID is derived from the source
// path and the content hash, so re-reading an unchanged file yields the same
// identity while a content change produces a new one.
type Document struct {
	ID           string
	SourcePath   string
	RawText      string
	ContentHash  string
	LastModified time.Time
}

// Source enumerates knowledge documents from somewhere (a local directory, a
// GitHub repository folder).
type Source interface {
	Documents(ctx context.Context) ([]Document, error)
}

// Reader extracts plain text from a single file.
type Reader interface {
	Read(path string) (string, error)
}

// NewDocument builds a Document with its content-derived identity.
func NewDocument(sourcePath, text string, modified time.Time) Document {
	hash := ContentHash(text)
	return Document{
		ID:           documentID(sourcePath, hash),
		SourcePath:   sourcePath,
		RawText:      text,
		ContentHash:  hash,
		LastModified: modified,
	}
}

// ContentHash returns the hex SHA-256 of the document text. It is the
// idempotence key for skip-unchanged re-indexing.
func ContentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

func documentID(sourcePath, contentHash string) string {
	sum := sha256.Sum256(fmt.Appendf(nil, "%s\x1f%s", sourcePath, contentHash))
	return hex.EncodeToString(sum[:16])
}
